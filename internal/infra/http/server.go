package http

import (
	"context"
	"net/http"
	"time"

	"meshwatch/internal/config"
	"meshwatch/internal/domain"
	cryptoinfra "meshwatch/internal/infra/crypto"
	"meshwatch/internal/infra/db"
	"meshwatch/internal/infra/policy"
	"meshwatch/internal/infra/ratelimit"
	"meshwatch/internal/usecase"

	"github.com/gin-gonic/gin"
)

type Server struct {
	cfg   config.Config
	store *db.Store
	r     *gin.Engine

	packets PacketStore
	nodes   NodeStore
	source  usecase.PacketSource

	decryptor   *cryptoinfra.Decryptor
	channelKeys []string

	channelPolicy ChannelPolicy
	policyInitErr error

	ingestAPIKey string

	rateLimiter         domain.RateLimiter
	rateLimitRequests   int
	rateLimitWindow     time.Duration
	rateLimitFailClosed bool
}

func NewServer(cfg config.Config, store *db.Store) *Server {
	r := gin.New()
	r.Use(gin.Recovery())

	s := &Server{cfg: cfg, store: store, r: r}
	s.initDeps()
	s.routes()
	return s
}

type ServerDeps struct {
	Packets       PacketStore
	Nodes         NodeStore
	Source        usecase.PacketSource
	Decryptor     *cryptoinfra.Decryptor
	ChannelKeys   []string
	ChannelPolicy ChannelPolicy
	RateLimiter   domain.RateLimiter
	IngestAPIKey  string
}

func NewServerWithDeps(cfg config.Config, deps ServerDeps) *Server {
	r := gin.New()
	r.Use(gin.Recovery())

	s := &Server{
		cfg:           cfg,
		r:             r,
		packets:       deps.Packets,
		nodes:         deps.Nodes,
		source:        deps.Source,
		decryptor:     deps.Decryptor,
		channelKeys:   deps.ChannelKeys,
		channelPolicy: deps.ChannelPolicy,
		ingestAPIKey:  deps.IngestAPIKey,
	}
	if s.decryptor == nil {
		s.decryptor = cryptoinfra.NewDecryptor(nil)
	}
	if s.channelKeys == nil {
		s.channelKeys = cfg.ChannelKeys
	}
	s.initRateLimit(deps.RateLimiter)
	s.routes()
	return s
}

func (s *Server) initDeps() {
	s.channelKeys = s.cfg.ChannelKeys
	s.decryptor = cryptoinfra.NewDecryptor(cryptoinfra.NewFingerprintCache())
	s.ingestAPIKey = s.cfg.IngestAPIKey

	if s.store != nil && s.store.DB != nil {
		packetRepo := db.NewPacketRepository(s.store.DB)
		s.packets = packetRepo
		s.source = packetRepo
		s.nodes = db.NewNodeRepository(s.store.DB)
	}

	if s.cfg.PolicyBundlePath != "" {
		engine, err := policy.NewEngineFromBundlePath(context.Background(), s.cfg.PolicyBundlePath, s.cfg.PolicyBundleID)
		if err != nil {
			s.policyInitErr = err
		} else {
			s.channelPolicy = engine
		}
	}

	s.initRateLimit(nil)
}

func (s *Server) initRateLimit(override domain.RateLimiter) {
	if override != nil {
		s.rateLimiter = override
	}
	if s.rateLimiter == nil && s.cfg.RateLimitRequests > 0 {
		if s.cfg.RedisAddr != "" {
			if limiter, err := ratelimit.NewRedisLimiter(s.cfg.RedisAddr, s.cfg.RedisPassword, s.cfg.RedisDB, nil); err == nil {
				s.rateLimiter = limiter
			}
		}
		if s.rateLimiter == nil {
			s.rateLimiter = ratelimit.NewMemoryLimiter(ratelimit.MemoryLimiterConfig{
				MaxKeys: s.cfg.RateLimitMaxKeys,
			})
		}
	}
	s.rateLimitRequests = s.cfg.RateLimitRequests
	s.rateLimitWindow = s.cfg.RateLimitWindow()
	s.rateLimitFailClosed = s.cfg.RateLimitFailClosed
}

func (s *Server) routes() {
	s.r.GET("/healthz", func(c *gin.Context) {
		dbMode := "no-db"
		if s.store != nil && s.store.DB != nil {
			dbMode = "db"
		}
		out := gin.H{"status": "ok", "mode": dbMode}
		if s.channelPolicy != nil {
			out["policy_bundle"] = s.channelPolicy.BundleHash()
		}
		c.JSON(http.StatusOK, out)
	})

	v1 := s.r.Group("/v1")
	{
		v1.GET("/nodes", s.handleListNodes)
		v1.GET("/nodes/:node_id", s.handleGetNode)
		v1.GET("/packets/recent", s.handleRecentPackets)
		v1.GET("/stream/packets", s.handleStreamPackets)
		v1.GET("/stream/chat", s.handleStreamChat)

		v1.POST("/packets", s.handleIngestPacket)
	}

	s.r.NoRoute(func(c *gin.Context) {
		writeErrorCode(c, http.StatusNotFound, "NOT_FOUND", "route not found")
	})
}

func (s *Server) Run() error {
	if s.policyInitErr != nil {
		return s.policyInitErr
	}
	return s.r.Run(s.cfg.HTTPAddr)
}
