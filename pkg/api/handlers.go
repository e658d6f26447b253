package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/Mindburn-Labs/pact/pkg/identity"
	"github.com/Mindburn-Labs/pact/pkg/sweep"
)

// WebhookRequest is one inbound chat message.
type WebhookRequest struct {
	From string `json:"from"`
	Text string `json:"text"`
}

// WebhookResponse carries the bot's reply text.
type WebhookResponse struct {
	Reply string `json:"reply"`
}

// HandleWebhook handles the /v1/webhook endpoint.
func (s *Server) HandleWebhook(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		WriteMethodNotAllowed(w)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, 64<<10) // 64KB limit
	var req WebhookRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteBadRequest(w, "Invalid request body")
		return
	}
	if req.From == "" || req.Text == "" {
		WriteBadRequest(w, "Missing required fields: from, text")
		return
	}

	from, err := identity.Normalize(req.From)
	if err != nil {
		WriteBadRequest(w, "Invalid sender phone number")
		return
	}

	if !s.limiter.Allow(from.String()) {
		WriteTooManyRequests(w, 1)
		return
	}

	reply := s.dispatcher.HandleMessage(r.Context(), from, req.Text)

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(WebhookResponse{Reply: reply})
}

// HandleHealth handles the /v1/health endpoint.
func (s *Server) HandleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		WriteMethodNotAllowed(w)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

// SweepRunner triggers a single sweep pass on demand.
type SweepRunner interface {
	RunOnce(ctx context.Context) (sweep.Report, error)
}

// HandleSweep handles the /v1/admin/sweep endpoint. Runs one sweep pass
// synchronously and reports what it did.
func (s *Server) HandleSweep(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		WriteMethodNotAllowed(w)
		return
	}

	report, err := s.sweeper.RunOnce(r.Context())
	if err != nil {
		WriteInternal(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(report)
}
