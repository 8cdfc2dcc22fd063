// Package httpapi exposes the ingest surface: health, event ingest, approval
// recording, and broker consumer startup. It is a thin adapter over the
// orchestrator; all pipeline semantics live in the runtime packages.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/intermesh-io/intermesh/broker"
	"github.com/intermesh-io/intermesh/runtime/event"
	"github.com/intermesh-io/intermesh/runtime/orchestrator"
	"github.com/intermesh-io/intermesh/runtime/telemetry"
)

// ConsumerFactory builds a broker consumer for a group and topic. Injected so
// tests can supply an in-memory consumer.
type ConsumerFactory func(groupID, topic string) (broker.Consumer, error)

// Server is the HTTP ingest surface.
type Server struct {
	orch        *orchestrator.Orchestrator
	logger      telemetry.Logger
	newConsumer ConsumerFactory
	router      chi.Router
}

// New builds the server. newConsumer may be nil when no broker is configured;
// /consume/start then reports an error.
func New(orch *orchestrator.Orchestrator, logger telemetry.Logger, newConsumer ConsumerFactory) *Server {
	if logger == nil {
		logger = telemetry.NoopLogger{}
	}
	s := &Server{orch: orch, logger: logger, newConsumer: newConsumer}
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get("/health", s.handleHealth)
	r.Post("/ingest", s.handleIngest)
	r.Post("/approve", s.handleApprove)
	r.Post("/consume/start", s.handleConsumeStart)
	s.router = r
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "time": time.Now().Unix()})
}

func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	var ev event.Event
	if err := json.NewDecoder(r.Body).Decode(&ev); err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]any{"detail": "malformed event: " + err.Error()})
		return
	}
	outcome, err := s.orch.HandleEvent(r.Context(), &ev)
	if err != nil {
		s.logger.Error(r.Context(), "ingest_failed", "error", err.Error(), "event_id", ev.ID, "etype", ev.Type)
		writeJSON(w, http.StatusInternalServerError, map[string]any{"detail": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "result": outcome})
}

type approvalRequest struct {
	TraceID    string `json:"trace_id"`
	StepName   string `json:"step_name"`
	ApprovedBy string `json:"approved_by"`
}

func (s *Server) handleApprove(w http.ResponseWriter, r *http.Request) {
	var req approvalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]any{"detail": "malformed approval: " + err.Error()})
		return
	}
	if req.TraceID == "" || req.StepName == "" {
		writeJSON(w, http.StatusInternalServerError, map[string]any{"detail": "trace_id and step_name are required"})
		return
	}
	s.orch.Approvals().Approve(req.TraceID, req.StepName, req.ApprovedBy)
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":       true,
		"approved": map[string]any{"trace_id": req.TraceID, "step": req.StepName},
	})
}

func (s *Server) handleConsumeStart(w http.ResponseWriter, r *http.Request) {
	groupID := r.URL.Query().Get("group_id")
	if groupID == "" {
		groupID = "agentic-consumer"
	}
	topic := r.URL.Query().Get("topic")
	if topic == "" {
		topic = "orders.created"
	}
	if s.newConsumer == nil {
		writeJSON(w, http.StatusInternalServerError, map[string]any{"detail": "broker not configured"})
		return
	}
	consumer, err := s.newConsumer(groupID, topic)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]any{"detail": err.Error()})
		return
	}
	go s.consumeLoop(context.Background(), consumer, topic)
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "status": "started", "group_id": groupID, "topic": topic})
}

// consumeLoop decodes each broker record as an Event and hands it to the
// orchestrator. Malformed records and failed outcomes are logged and skipped;
// the loop ends when the consumer's fetch fails terminally.
func (s *Server) consumeLoop(ctx context.Context, consumer broker.Consumer, topic string) {
	defer consumer.Close()
	s.logger.Info(ctx, "consumer_started", "topic", topic)
	for {
		msg, err := consumer.Fetch(ctx)
		if err != nil {
			if !errors.Is(err, context.Canceled) {
				s.logger.Error(ctx, "consumer_stopped", "topic", topic, "error", err.Error())
			}
			return
		}
		var ev event.Event
		if err := json.Unmarshal(msg.Value, &ev); err != nil {
			s.logger.Error(ctx, "consumer_decode_failed", "topic", topic, "error", err.Error())
			continue
		}
		if _, err := s.orch.HandleEvent(ctx, &ev); err != nil {
			s.logger.Error(ctx, "consumer_handle_failed", "topic", topic, "event_id", ev.ID, "error", err.Error())
		}
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
