package http

import (
	"encoding/json"
	"log"
	"net/http"
	"strings"
	"time"

	"meshwatch/internal/domain"
	"meshwatch/internal/usecase"

	"github.com/gin-gonic/gin"
)

type streamPacketEvent struct {
	packetResponse
	Cursor    string                   `json:"cursor"`
	Decrypted *domain.DecryptedMessage `json:"decrypted,omitempty"`
}

type streamErrorEvent struct {
	Type      string `json:"type"`
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
}

// handleStreamPackets serves a live NDJSON tail of the packet table. The
// response never completes on its own; the client hangs up when it is done.
func (s *Server) handleStreamPackets(c *gin.Context) {
	if s.source == nil {
		writeError(c, domain.ErrNotFound)
		return
	}
	if !s.enforceRateLimit(c, "stream:packets") {
		return
	}

	filter := domain.TailFilter{ChannelHash: strings.ToLower(c.Query("channel"))}
	if !s.allowChannel(c, filter.ChannelHash, "stream:packets") {
		return
	}
	s.streamTail(c, usecase.TailConfig{
		PollInterval: s.cfg.PollInterval(),
		MaxRows:      s.cfg.MaxRowsPerPoll,
		SkipInitial:  queryBool(c, "skip_initial"),
		Filter:       filter,
	}, queryBool(c, "decrypt"))
}

// handleStreamChat is the packet stream narrowed to the text-message port,
// with decryption always on. Packets no configured key opens still stream;
// they just carry no decrypted field.
func (s *Server) handleStreamChat(c *gin.Context) {
	if s.source == nil {
		writeError(c, domain.ErrNotFound)
		return
	}
	if !s.enforceRateLimit(c, "stream:chat") {
		return
	}

	filter := domain.TailFilter{
		ChannelHash: strings.ToLower(c.Query("channel")),
		PortNum:     domain.PortTextMessage,
	}
	if !s.allowChannel(c, filter.ChannelHash, "stream:chat") {
		return
	}
	s.streamTail(c, usecase.TailConfig{
		PollInterval: s.cfg.PollInterval(),
		MaxRows:      s.cfg.MaxRowsPerPoll,
		SkipInitial:  queryBool(c, "skip_initial"),
		Filter:       filter,
	}, true)
}

func (s *Server) streamTail(c *gin.Context, cfg usecase.TailConfig, decrypt bool) {
	tail := &usecase.PacketTail{Source: s.source}
	events := tail.Run(c.Request.Context(), cfg)

	c.Writer.Header().Set("Content-Type", "application/x-ndjson")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.WriteHeader(http.StatusOK)
	c.Writer.Flush()

	enc := json.NewEncoder(c.Writer)
	for event := range events {
		if event.Err != nil {
			if err := enc.Encode(streamErrorEvent{
				Type:      "error",
				Message:   event.Err.Error(),
				Timestamp: time.Now().UTC().Format(time.RFC3339),
			}); err != nil {
				return
			}
			c.Writer.Flush()
			continue
		}

		out := streamPacketEvent{
			packetResponse: buildPacketResponse(*event.Packet),
			Cursor:         event.Cursor,
		}
		if decrypt {
			msg, err := s.decryptor.OpenMessage(event.Packet.Envelope(), s.channelKeys)
			if err != nil {
				log.Printf("decrypt packet %s: %v", event.Packet.ID, err)
			} else if msg != nil {
				out.Decrypted = msg
			}
		}
		if err := enc.Encode(out); err != nil {
			return
		}
		c.Writer.Flush()
	}
}

// allowChannel consults the policy engine when one is configured. With no
// engine every channel streams.
func (s *Server) allowChannel(c *gin.Context, channel, route string) bool {
	if s.channelPolicy == nil {
		return true
	}
	eval, err := s.channelPolicy.Evaluate(c.Request.Context(), domain.PolicyInput{
		Subject: c.ClientIP(),
		Channel: channel,
		Route:   route,
	})
	if err != nil {
		writeErrorCode(c, http.StatusInternalServerError, "POLICY_ERROR", "policy evaluation failed")
		return false
	}
	if !eval.Result.Allow {
		code, message := "FORBIDDEN", "channel access denied"
		if len(eval.Result.Deny) > 0 {
			code, message = eval.Result.Deny[0].Code, eval.Result.Deny[0].Message
		}
		writeErrorCode(c, http.StatusForbidden, code, message)
		return false
	}
	return true
}
