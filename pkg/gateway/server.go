// Package gateway is the inbound HTTP surface of the browser-session
// gateway. It normalizes automation requests, hands them to the request
// queue, and translates outcomes into HTTP responses.
package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/entrhq/gateway/pkg/browser"
	"github.com/entrhq/gateway/pkg/config"
	"github.com/entrhq/gateway/pkg/dispatch"
	"github.com/entrhq/gateway/pkg/logging"
	"github.com/entrhq/gateway/pkg/pool"
	"github.com/entrhq/gateway/pkg/queue"
)

// Server accepts automation requests over HTTP and returns structured
// results or errors.
type Server struct {
	cfg    *config.Config
	queue  *queue.Queue
	pool   *pool.Pool
	policy *URLPolicy
	log    *logging.Logger

	http *http.Server
}

// NewServer wires the HTTP surface to the queue and pool.
func NewServer(cfg *config.Config, q *queue.Queue, p *pool.Pool, log *logging.Logger) (*Server, error) {
	policy, err := NewURLPolicy(cfg.URLPolicy.Allow, cfg.URLPolicy.Deny)
	if err != nil {
		return nil, fmt.Errorf("invalid url policy: %w", err)
	}

	s := &Server{
		cfg:    cfg,
		queue:  q,
		pool:   p,
		policy: policy,
		log:    log,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/requests", s.handleExecute)
	mux.HandleFunc("GET /v1/status", s.handleStatus)
	mux.HandleFunc("GET /healthz", s.handleHealthz)
	mux.HandleFunc("GET /{$}", s.handleHome)

	s.http = &http.Server{
		Addr:        net.JoinHostPort(cfg.Server.Host, fmt.Sprintf("%d", cfg.Server.Port)),
		Handler:     mux,
		ReadTimeout: cfg.Server.ReadTimeout,
	}
	return s, nil
}

// ListenAndServe serves until the listener fails or Shutdown is called.
func (s *Server) ListenAndServe() error {
	s.log.Infof("gateway listening on %s", s.http.Addr)
	err := s.http.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown stops accepting requests and drains in-flight HTTP handlers.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

// executeRequest is the wire form of an automation request.
type executeRequest struct {
	Action    string `json:"action"`
	URL       string `json:"url"`
	WaitUntil string `json:"wait_until,omitempty"`
	Selector  string `json:"selector,omitempty"`
	Format    string `json:"format,omitempty"`
	MaxLength int    `json:"max_length,omitempty"`
	FullPage  bool   `json:"full_page,omitempty"`
	Script    string `json:"script,omitempty"`
	TimeoutMS int    `json:"timeout_ms,omitempty"`
}

// executeResponse is the wire form of a successful outcome.
type executeResponse struct {
	RequestID string          `json:"request_id"`
	ElapsedMS int64           `json:"elapsed_ms"`
	Result    *browser.Result `json:"result"`
}

// errorResponse is the wire form of a failed outcome.
type errorResponse struct {
	RequestID string        `json:"request_id,omitempty"`
	Kind      dispatch.Kind `json:"kind"`
	Message   string        `json:"message"`
}

func (s *Server) handleExecute(w http.ResponseWriter, r *http.Request) {
	var wire executeRequest
	if err := json.NewDecoder(r.Body).Decode(&wire); err != nil {
		s.writeError(w, http.StatusBadRequest, "", dispatch.KindInternal, fmt.Sprintf("invalid request body: %v", err))
		return
	}

	action, err := s.normalize(wire)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "", dispatch.KindInternal, err.Error())
		return
	}
	if !s.policy.Permits(action.URL) {
		s.writeError(w, http.StatusForbidden, "", dispatch.KindInternal, fmt.Sprintf("url not permitted by policy: %s", action.URL))
		return
	}

	timeout := s.cfg.Pool.RequestTimeout
	if wire.TimeoutMS > 0 {
		timeout = time.Duration(wire.TimeoutMS) * time.Millisecond
	}
	req := queue.NewRequest(action, time.Now().Add(timeout))

	if err := s.queue.Enqueue(req); err != nil {
		s.writeError(w, statusFor(dispatch.KindOf(err)), req.ID(), dispatch.KindOf(err), err.Error())
		return
	}

	select {
	case outcome := <-req.Outcome():
		if outcome.Err != nil {
			kind := dispatch.KindOf(outcome.Err)
			s.writeError(w, statusFor(kind), req.ID(), kind, outcome.Err.Error())
			return
		}
		s.writeJSON(w, http.StatusOK, executeResponse{
			RequestID: req.ID(),
			ElapsedMS: outcome.Elapsed.Milliseconds(),
			Result:    outcome.Result,
		})

	case <-r.Context().Done():
		// Client went away: prevent dispatch if still queued. An
		// in-flight request finishes on its own deadline.
		req.Cancel()
	}
}

// normalize converts the wire request into a validated browser action.
func (s *Server) normalize(wire executeRequest) (browser.Action, error) {
	actionType := browser.ActionType(wire.Action)
	if !actionType.Valid() {
		return browser.Action{}, fmt.Errorf("unsupported action: %q", wire.Action)
	}

	if wire.URL == "" {
		return browser.Action{}, fmt.Errorf("url is required")
	}
	target, err := url.Parse(wire.URL)
	if err != nil || target.Host == "" {
		return browser.Action{}, fmt.Errorf("invalid url: %q", wire.URL)
	}
	scheme := strings.ToLower(target.Scheme)
	if scheme != "http" && scheme != "https" {
		return browser.Action{}, fmt.Errorf("unsupported url scheme: %q", target.Scheme)
	}

	if actionType == browser.ActionEvaluate && wire.Script == "" {
		return browser.Action{}, fmt.Errorf("script is required for evaluate")
	}

	switch wire.WaitUntil {
	case "", "load", "domcontentloaded", "networkidle":
	default:
		return browser.Action{}, fmt.Errorf("invalid wait_until: %q", wire.WaitUntil)
	}

	return browser.Action{
		Type:      actionType,
		URL:       wire.URL,
		WaitUntil: wire.WaitUntil,
		Selector:  wire.Selector,
		Format:    browser.ExtractFormat(wire.Format),
		MaxLength: wire.MaxLength,
		FullPage:  wire.FullPage,
		Script:    wire.Script,
	}, nil
}

// statusResponse reports pool and queue occupancy.
type statusResponse struct {
	Pool  pool.Stats  `json:"pool"`
	Queue queueStatus `json:"queue"`
}

type queueStatus struct {
	Pending  int `json:"pending"`
	Capacity int `json:"capacity"`
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, statusResponse{
		Pool: s.pool.Stats(),
		Queue: queueStatus{
			Pending:  s.queue.Len(),
			Capacity: s.queue.Capacity(),
		},
	})
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleHome(w http.ResponseWriter, _ *http.Request) {
	stats := s.pool.Stats()
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprintf(w, "<h3>Browser Gateway is Running</h3><p>Sessions: %d busy / %d max, %d queued</p>",
		stats.Busy, stats.Max, s.queue.Len())
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.log.Errorf("failed to encode response: %v", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, requestID string, kind dispatch.Kind, message string) {
	s.writeJSON(w, status, errorResponse{
		RequestID: requestID,
		Kind:      kind,
		Message:   message,
	})
}

// statusFor maps outcome kinds onto HTTP statuses.
func statusFor(kind dispatch.Kind) int {
	switch kind {
	case dispatch.KindQueueFull:
		return http.StatusTooManyRequests
	case dispatch.KindTimedOut, dispatch.KindActionTimeout:
		return http.StatusGatewayTimeout
	case dispatch.KindPoolExhausted, dispatch.KindShuttingDown:
		return http.StatusServiceUnavailable
	case dispatch.KindBrowserStartFailed, dispatch.KindActionError:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
