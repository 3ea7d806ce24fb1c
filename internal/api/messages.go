package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/nerrad567/gray-logic-relay/internal/archive"
	"github.com/nerrad567/gray-logic-relay/internal/infrastructure/mqtt"
)

// PublishRequest is the POST /publish body. Payload is any JSON value and is
// published in its compact encoding.
type PublishRequest struct {
	Topic    string          `json:"topic"`
	Payload  json.RawMessage `json:"payload"`
	Retained bool            `json:"retained"`
}

// handlePublish publishes a JSON payload through the resilient client.
// Success means the client accepted the message, not that the broker did.
func (s *Server) handlePublish(w http.ResponseWriter, r *http.Request) {
	var req PublishRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if req.Topic == "" {
		writeBadRequest(w, "topic is required")
		return
	}
	if len(req.Payload) == 0 {
		writeBadRequest(w, "payload is required")
		return
	}

	err := s.mqtt.PublishJSON(req.Topic, req.Payload, req.Retained)
	switch {
	case err == nil:
	case errors.Is(err, mqtt.ErrInvalidTopic), errors.Is(err, mqtt.ErrPayloadTooLarge):
		writeBadRequest(w, err.Error())
		return
	case errors.Is(err, mqtt.ErrClientClosed), errors.Is(err, mqtt.ErrNotConnected):
		writeUnavailable(w, "mqtt client unavailable")
		return
	default:
		s.logger.Warn("publish via API failed", "topic", req.Topic, "error", err)
		writeError(w, http.StatusBadGateway, ErrCodeUnavailable, "publish failed")
		return
	}

	fields := []any{"topic", req.Topic, "retained", req.Retained}
	if claims := claimsFromContext(r.Context()); claims != nil {
		fields = append(fields, "subject", claims.Subject)
	}
	s.logger.Info("message published via API", fields...)

	writeJSON(w, http.StatusAccepted, map[string]any{
		"status": "accepted",
		"topic":  req.Topic,
	})
}

// handleListMessages serves archived messages.
//
// Query parameters: topic, prefix, since (RFC3339), limit, offset.
func (s *Server) handleListMessages(w http.ResponseWriter, r *http.Request) {
	if s.archive == nil {
		writeUnavailable(w, "message archive is disabled")
		return
	}

	q := r.URL.Query()
	filter := archive.Filter{
		Topic:       q.Get("topic"),
		TopicPrefix: q.Get("prefix"),
	}

	if v := q.Get("since"); v != "" {
		since, err := time.Parse(time.RFC3339, v)
		if err != nil {
			writeBadRequest(w, "since must be an RFC3339 timestamp")
			return
		}
		filter.Since = since
	}
	if v := q.Get("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil || limit < 0 {
			writeBadRequest(w, "limit must be a non-negative integer")
			return
		}
		filter.Limit = limit
	}
	if v := q.Get("offset"); v != "" {
		offset, err := strconv.Atoi(v)
		if err != nil || offset < 0 {
			writeBadRequest(w, "offset must be a non-negative integer")
			return
		}
		filter.Offset = offset
	}

	result, err := s.archive.List(r.Context(), filter)
	if err != nil {
		s.logger.Error("listing archived messages failed", "error", err)
		writeInternalError(w, "failed to list messages")
		return
	}

	writeJSON(w, http.StatusOK, result)
}
