// Package rpc exposes the instruction surface of spec.md §6 over
// HTTP+JSON and streams advisory events over a websocket, adapted from
// the teacher's chain/node/rpc.go JSON method-dispatch server: the
// route registration, rate limiting, and wsUpgrader pattern survive,
// but each instruction is a typed handler method rather than an
// untyped map[string]interface{} JSON-RPC method, since spec.md §7
// holds these entry points to a strict numeric-coded error taxonomy.
package rpc

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"finova-core/chain/fintypes"
)

// Event is one advisory notification of spec.md §6 ("Events are
// advisory; no core invariant depends on their delivery").
type Event struct {
	Kind string      `json:"kind"`
	Data interface{} `json:"data"`
	TS   int64       `json:"ts"`
}

// Hub fans out events to every connected websocket observer. Adapted
// from the teacher's handleWebSocket loop, generalized from a single
// request/response round trip to a broadcast registry.
type Hub struct {
	mu      sync.Mutex
	clients map[*websocket.Conn]chan Event
}

func newHub() *Hub {
	return &Hub{clients: make(map[*websocket.Conn]chan Event)}
}

// Broadcast enqueues an event for every connected observer. A slow
// client that can't keep up with its 64-event buffer is dropped rather
// than blocking the publisher, matching spec.md §6's "advisory" framing.
func (h *Hub) Broadcast(ev Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for conn, ch := range h.clients {
		select {
		case ch <- ev:
		default:
			delete(h.clients, conn)
			close(ch)
		}
	}
}

func (h *Hub) register(conn *websocket.Conn) chan Event {
	h.mu.Lock()
	defer h.mu.Unlock()
	ch := make(chan Event, 64)
	h.clients[conn] = ch
	return ch
}

func (h *Hub) unregister(conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if ch, ok := h.clients[conn]; ok {
		delete(h.clients, conn)
		close(ch)
	}
}

// RateLimiter is a per-client fixed-window request counter, kept from the
// teacher's RPCServer.rateLimiter almost unchanged.
type RateLimiter struct {
	mu       sync.Mutex
	requests map[string]*clientBucket
	limit    int
	window   time.Duration
}

type clientBucket struct {
	count     int
	resetTime time.Time
}

func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	return &RateLimiter{requests: make(map[string]*clientBucket), limit: limit, window: window}
}

func (rl *RateLimiter) IsAllowed(clientID string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	b, exists := rl.requests[clientID]
	if !exists || now.After(b.resetTime) {
		rl.requests[clientID] = &clientBucket{count: 1, resetTime: now.Add(rl.window)}
		return true
	}
	if b.count < rl.limit {
		b.count++
		return true
	}
	return false
}

func (rl *RateLimiter) Clean() {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	now := time.Now()
	for id, b := range rl.requests {
		if now.After(b.resetTime.Add(rl.window)) {
			delete(rl.requests, id)
		}
	}
}

// Server is the HTTP+websocket front door onto a Handlers instance.
type Server struct {
	handlers    *Handlers
	rateLimiter *RateLimiter
	hub         *Hub
	wsUpgrader  websocket.Upgrader

	httpServer *http.Server
	listenAddr string

	wg sync.WaitGroup
}

// Config configures the listen address for NewServer.
type Config struct {
	ListenAddr string
}

// NewServer builds an RPC server over the given Handlers. Call Start to
// begin serving.
func NewServer(h *Handlers, cfg Config) *Server {
	s := &Server{
		handlers:    h,
		rateLimiter: NewRateLimiter(100, time.Minute),
		hub:         newHub(),
		wsUpgrader:  websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }},
		listenAddr:  cfg.ListenAddr,
	}
	h.events = s.hub
	return s
}

func (s *Server) router() *mux.Router {
	r := mux.NewRouter()
	r.Use(s.rateLimitMiddleware)

	post := func(path string, fn func(*http.Request) (interface{}, error)) {
		r.HandleFunc(path, s.wrap(fn)).Methods(http.MethodPost)
	}

	post("/v1/staking/deposit", s.handlers.Deposit)
	post("/v1/staking/withdraw", s.handlers.Withdraw)
	post("/v1/staking/claim", s.handlers.Claim)
	post("/v1/staking/compound", s.handlers.Compound)

	post("/v1/emission/claim_rewards", s.handlers.ClaimRewards)

	post("/v1/referral/register_referral", s.handlers.RegisterReferral)

	post("/v1/cards/use_special_card", s.handlers.UseSpecialCard)

	post("/v1/bridge/lock_tokens", s.handlers.LockTokens)
	post("/v1/bridge/submit_signature", s.handlers.SubmitSignature)
	post("/v1/bridge/unlock_tokens", s.handlers.UnlockTokens)
	post("/v1/bridge/emergency_pause", s.handlers.BridgeEmergencyPause)
	post("/v1/bridge/resume", s.handlers.BridgeResume)
	post("/v1/bridge/cancel", s.handlers.BridgeCancel)

	post("/v1/oracle/submit_price", s.handlers.SubmitPrice)
	post("/v1/oracle/activate_circuit_breaker", s.handlers.ActivateCircuitBreaker)
	post("/v1/oracle/deactivate_circuit_breaker", s.handlers.DeactivateCircuitBreaker)

	r.HandleFunc("/v1/events", s.handleWebSocket)
	return r
}

func (s *Server) rateLimitMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		clientIP := clientIP(r)
		if !s.rateLimiter.IsAllowed(clientIP) {
			writeError(w, http.StatusTooManyRequests, fintypes.ErrRateLimited(fintypes.CodeCooldownActive, "rate limit exceeded for %s", clientIP))
			return
		}
		next.ServeHTTP(w, r)
	})
}

func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if idx := strings.Index(xff, ","); idx != -1 {
			return strings.TrimSpace(xff[:idx])
		}
		return strings.TrimSpace(xff)
	}
	if idx := strings.LastIndex(r.RemoteAddr, ":"); idx != -1 {
		return r.RemoteAddr[:idx]
	}
	return r.RemoteAddr
}

// wrap turns a (request)->(result, error) handler into an http.HandlerFunc
// that decodes no body itself (handlers decode their own typed params),
// encodes the result as JSON, and maps a *fintypes.CoreError to an HTTP
// status via its Kind.
func (s *Server) wrap(fn func(*http.Request) (interface{}, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				writeError(w, http.StatusInternalServerError, fintypes.ErrSystemState(0, "internal error: %v", rec))
			}
		}()

		result, err := fn(r)
		if err != nil {
			writeError(w, statusForError(err), err)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(result)
	}
}

func statusForError(err error) int {
	coreErr, ok := err.(*fintypes.CoreError)
	if !ok {
		return http.StatusInternalServerError
	}
	switch coreErr.Kind {
	case fintypes.KindAuthorization:
		return http.StatusForbidden
	case fintypes.KindInvariant, fintypes.KindConfiguration:
		return http.StatusUnprocessableEntity
	case fintypes.KindArithmetic:
		return http.StatusUnprocessableEntity
	case fintypes.KindStaleness:
		return http.StatusGone
	case fintypes.KindCryptographic:
		return http.StatusUnauthorized
	case fintypes.KindRateLimited:
		return http.StatusTooManyRequests
	case fintypes.KindSystemState:
		return http.StatusServiceUnavailable
	default:
		return http.StatusBadRequest
	}
}

type errorResponse struct {
	Code    int    `json:"code"`
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

func writeError(w http.ResponseWriter, status int, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if coreErr, ok := err.(*fintypes.CoreError); ok {
		json.NewEncoder(w).Encode(errorResponse{Code: coreErr.Code, Kind: coreErr.Kind.String(), Message: coreErr.Message})
		return
	}
	json.NewEncoder(w).Encode(errorResponse{Message: err.Error()})
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("rpc: websocket upgrade failed: %v", err)
		return
	}

	ch := s.hub.register(conn)
	defer s.hub.unregister(conn)
	defer conn.Close()

	for ev := range ch {
		if err := conn.WriteJSON(ev); err != nil {
			return
		}
	}
}

// Start launches the HTTP+websocket server in the background.
func (s *Server) Start() error {
	s.httpServer = &http.Server{
		Addr:         s.listenAddr,
		Handler:      s.router(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("rpc: server error: %v", err)
		}
	}()
	return nil
}

// Stop shuts the server down, waiting for its listener goroutine to exit.
func (s *Server) Stop() {
	if s.httpServer == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	s.httpServer.Shutdown(ctx)
	s.wg.Wait()
}

func decodeJSON(r *http.Request, out interface{}) error {
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(out); err != nil {
		return fmt.Errorf("decode request body: %w", err)
	}
	return nil
}
