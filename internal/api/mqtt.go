package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/samuelsono/nelo-fms/internal/infrastructure/mqtt"
	"github.com/samuelsono/nelo-fms/internal/ingest"
)

// handleMQTTStatus reports the ingestion pipeline state.
func (s *Server) handleMQTTStatus(w http.ResponseWriter, _ *http.Request) {
	if s.ingest == nil {
		writeJSON(w, http.StatusOK, ingest.Status{})
		return
	}
	writeJSON(w, http.StatusOK, s.ingest.Status())
}

// testBroadcastRequest is the body for POST /mqtt/test-broadcast.
// Payload defaults to a small location sample when omitted.
type testBroadcastRequest struct {
	IMEI    string          `json:"imei"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// handleTestBroadcast publishes a synthetic reading to the unit data
// topic, exercising the full pipeline end to end: broker, decode, cache,
// fan-out, sinks.
func (s *Server) handleTestBroadcast(w http.ResponseWriter, r *http.Request) {
	if s.publisher == nil || !s.publisher.IsConnected() {
		writeUnavailable(w, "broker connection unavailable")
		return
	}

	var req testBroadcastRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if req.IMEI == "" {
		writeBadRequest(w, "imei is required")
		return
	}

	payload := string(req.Payload)
	if payload == "" {
		payload = fmt.Sprintf(`{"ts": %d, "latlng": "-33.9249,18.4241", "sp": 0}`,
			time.Now().UnixMilli())
	}

	topic := mqtt.UnitData(req.IMEI)
	if err := s.publisher.PublishString(topic, payload, 1, false); err != nil {
		s.logger.Error("test broadcast failed", "topic", topic, "error", err)
		writeInternalError(w, "publish failed")
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]any{
		"topic":     topic,
		"published": true,
	})
}
