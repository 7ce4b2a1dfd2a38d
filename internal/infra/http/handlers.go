package http

import (
	"context"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"meshwatch/internal/domain"

	"github.com/gin-gonic/gin"
)

type PacketStore interface {
	Create(ctx context.Context, packet domain.Packet) (domain.Packet, error)
	ListRecent(ctx context.Context, limit int) ([]domain.Packet, error)
}

type NodeStore interface {
	Upsert(ctx context.Context, node domain.Node) error
	List(ctx context.Context, limit int) ([]domain.Node, error)
	GetByID(ctx context.Context, nodeID uint32) (domain.Node, error)
}

type ChannelPolicy interface {
	Evaluate(ctx context.Context, input domain.PolicyInput) (domain.PolicyEvaluation, error)
	BundleHash() string
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type nodeResponse struct {
	NodeID    uint32  `json:"node_id"`
	LongName  string  `json:"long_name"`
	ShortName string  `json:"short_name"`
	HwModel   string  `json:"hw_model,omitempty"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Altitude  int32   `json:"altitude"`
	LastHeard string  `json:"last_heard"`
}

type packetResponse struct {
	ID          string  `json:"id"`
	FromNode    uint32  `json:"from_node"`
	ToNode      uint32  `json:"to_node"`
	PortNum     int32   `json:"port_num"`
	ChannelHash string  `json:"channel_hash"`
	MAC         string  `json:"mac,omitempty"`
	Payload     string  `json:"payload,omitempty"`
	RxSNR       float64 `json:"rx_snr"`
	RxRSSI      int32   `json:"rx_rssi"`
	ImportedAt  string  `json:"imported_at"`
}

type ingestNodeInfo struct {
	LongName  string  `json:"long_name"`
	ShortName string  `json:"short_name"`
	HwModel   string  `json:"hw_model,omitempty"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Altitude  int32   `json:"altitude"`
}

type ingestPacketRequest struct {
	FromNode    uint32          `json:"from_node"`
	ToNode      uint32          `json:"to_node"`
	PortNum     int32           `json:"port_num"`
	ChannelHash string          `json:"channel_hash"`
	MAC         string          `json:"mac"`
	Payload     string          `json:"payload"`
	RxSNR       float64         `json:"rx_snr"`
	RxRSSI      int32           `json:"rx_rssi"`
	Node        *ingestNodeInfo `json:"node,omitempty"`
}

type ingestPacketResponse struct {
	ID         string `json:"id"`
	ImportedAt string `json:"imported_at"`
}

func (s *Server) handleListNodes(c *gin.Context) {
	if s.nodes == nil {
		writeError(c, domain.ErrNotFound)
		return
	}
	if !s.enforceRateLimit(c, "nodes:list") {
		return
	}
	nodes, err := s.nodes.List(c.Request.Context(), queryInt(c, "limit", 200))
	if err != nil {
		writeError(c, err)
		return
	}
	out := make([]nodeResponse, 0, len(nodes))
	for _, node := range nodes {
		out = append(out, buildNodeResponse(node))
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) handleGetNode(c *gin.Context) {
	if s.nodes == nil {
		writeError(c, domain.ErrNotFound)
		return
	}
	if !s.enforceRateLimit(c, "nodes:get") {
		return
	}
	nodeID, err := strconv.ParseUint(c.Param("node_id"), 0, 32)
	if err != nil {
		writeErrorCode(c, http.StatusBadRequest, "INVALID_NODE_ID", "invalid node id")
		return
	}
	node, err := s.nodes.GetByID(c.Request.Context(), uint32(nodeID))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, buildNodeResponse(node))
}

func (s *Server) handleRecentPackets(c *gin.Context) {
	if s.packets == nil {
		writeError(c, domain.ErrNotFound)
		return
	}
	if !s.enforceRateLimit(c, "packets:recent") {
		return
	}
	packets, err := s.packets.ListRecent(c.Request.Context(), queryInt(c, "limit", 50))
	if err != nil {
		writeError(c, err)
		return
	}
	out := make([]packetResponse, 0, len(packets))
	for _, packet := range packets {
		out = append(out, buildPacketResponse(packet))
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) handleIngestPacket(c *gin.Context) {
	if s.packets == nil {
		writeError(c, domain.ErrNotFound)
		return
	}
	if s.ingestAPIKey == "" {
		writeError(c, domain.ErrUnauthorized)
		return
	}
	provided := c.GetHeader("X-API-Key")
	if subtle.ConstantTimeCompare([]byte(provided), []byte(s.ingestAPIKey)) != 1 {
		writeError(c, domain.ErrUnauthorized)
		return
	}

	var req ingestPacketRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeErrorCode(c, http.StatusBadRequest, "INVALID_JSON", "invalid json")
		return
	}
	packet, err := packetFromIngest(req)
	if err != nil {
		writeErrorCode(c, http.StatusBadRequest, "INVALID_PACKET", err.Error())
		return
	}

	created, err := s.packets.Create(c.Request.Context(), packet)
	if err != nil {
		writeError(c, err)
		return
	}
	if req.Node != nil && s.nodes != nil {
		node := domain.Node{
			NodeID:    req.FromNode,
			LongName:  req.Node.LongName,
			ShortName: req.Node.ShortName,
			HwModel:   req.Node.HwModel,
			Latitude:  req.Node.Latitude,
			Longitude: req.Node.Longitude,
			Altitude:  req.Node.Altitude,
			LastHeard: created.ImportedAt,
		}
		if err := s.nodes.Upsert(c.Request.Context(), node); err != nil {
			writeError(c, err)
			return
		}
	}
	c.JSON(http.StatusCreated, ingestPacketResponse{
		ID:         created.ID,
		ImportedAt: created.ImportedAt.Format(time.RFC3339),
	})
}

func packetFromIngest(req ingestPacketRequest) (domain.Packet, error) {
	channelHash := strings.ToLower(req.ChannelHash)
	if channelHash != "" {
		if len(channelHash) != 2 {
			return domain.Packet{}, errors.New("channel_hash must be 2 hex characters")
		}
		if _, err := hex.DecodeString(channelHash); err != nil {
			return domain.Packet{}, errors.New("channel_hash must be 2 hex characters")
		}
	}
	var mac []byte
	if req.MAC != "" {
		decoded, err := hex.DecodeString(req.MAC)
		if err != nil || len(decoded) != 2 {
			return domain.Packet{}, errors.New("mac must be 4 hex characters")
		}
		mac = decoded
	}
	var payload []byte
	if req.Payload != "" {
		decoded, err := base64.StdEncoding.DecodeString(req.Payload)
		if err != nil {
			return domain.Packet{}, errors.New("payload must be base64")
		}
		payload = decoded
	}
	return domain.Packet{
		FromNode:    req.FromNode,
		ToNode:      req.ToNode,
		PortNum:     req.PortNum,
		ChannelHash: channelHash,
		MAC:         mac,
		Payload:     payload,
		RxSNR:       req.RxSNR,
		RxRSSI:      req.RxRSSI,
	}, nil
}

func buildNodeResponse(node domain.Node) nodeResponse {
	return nodeResponse{
		NodeID:    node.NodeID,
		LongName:  node.LongName,
		ShortName: node.ShortName,
		HwModel:   node.HwModel,
		Latitude:  node.Latitude,
		Longitude: node.Longitude,
		Altitude:  node.Altitude,
		LastHeard: node.LastHeard.UTC().Format(time.RFC3339),
	}
}

func buildPacketResponse(packet domain.Packet) packetResponse {
	out := packetResponse{
		ID:          packet.ID,
		FromNode:    packet.FromNode,
		ToNode:      packet.ToNode,
		PortNum:     packet.PortNum,
		ChannelHash: packet.ChannelHash,
		RxSNR:       packet.RxSNR,
		RxRSSI:      packet.RxRSSI,
		ImportedAt:  packet.ImportedAt.UTC().Format(time.RFC3339),
	}
	if len(packet.MAC) > 0 {
		out.MAC = hex.EncodeToString(packet.MAC)
	}
	if len(packet.Payload) > 0 {
		out.Payload = base64.StdEncoding.EncodeToString(packet.Payload)
	}
	return out
}

func queryInt(c *gin.Context, name string, def int) int {
	raw := c.Query(name)
	if raw == "" {
		return def
	}
	parsed, err := strconv.Atoi(raw)
	if err != nil || parsed <= 0 {
		return def
	}
	return parsed
}

func queryBool(c *gin.Context, name string) bool {
	switch c.Query(name) {
	case "1", "true", "yes":
		return true
	}
	return false
}

func writeError(c *gin.Context, err error) {
	status, code := http.StatusInternalServerError, "INTERNAL"
	switch {
	case errors.Is(err, domain.ErrNotFound):
		status, code = http.StatusNotFound, "NOT_FOUND"
	case errors.Is(err, domain.ErrUnauthorized):
		status, code = http.StatusUnauthorized, "UNAUTHORIZED"
	case errors.Is(err, domain.ErrForbidden):
		status, code = http.StatusForbidden, "FORBIDDEN"
	case errors.Is(err, domain.ErrInvalidChannelKey):
		status, code = http.StatusBadRequest, "INVALID_CHANNEL_KEY"
	}
	writeErrorCode(c, status, code, err.Error())
}

func writeErrorCode(c *gin.Context, status int, code, message string) {
	c.AbortWithStatusJSON(status, errorResponse{
		Code:    code,
		Message: message,
	})
}
