// Package server runs map generation jobs for WebSocket clients. Each
// connection sends generate requests; every job streams progress messages
// and ends with the exported map or an error.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/lawnchairsociety/roomweaver/internal/config"
	"github.com/lawnchairsociety/roomweaver/internal/database"
	"github.com/lawnchairsociety/roomweaver/internal/library"
	"github.com/lawnchairsociety/roomweaver/internal/logger"
	"github.com/lawnchairsociety/roomweaver/internal/mapfile"
	"github.com/lawnchairsociety/roomweaver/internal/rando"
)

// RunRecorder stores finished generation runs.
type RunRecorder interface {
	RecordRun(run *database.Run) error
}

// Server accepts WebSocket sessions and runs their generation jobs on a
// bounded worker pool.
type Server struct {
	cfg *config.ServiceConfig
	lib *library.Library

	runs        RunRecorder
	connLimiter *ConnLimiter
	limiter     *RequestLimiter

	// jobs is a semaphore sized by Jobs.MaxConcurrent. A slot stays taken
	// until the generation itself returns, not when its client stops waiting.
	jobs     chan struct{}
	running  atomic.Int32
	generate func(context.Context, *library.Library, *config.Settings, rando.Options) (*rando.Result, error)

	httpServer   *http.Server
	shutdown     chan struct{}
	shutdownOnce sync.Once

	mu       sync.Mutex
	sessions map[*WebSocketClient]struct{}
}

// NewServer creates a server that generates maps from lib.
func NewServer(cfg *config.ServiceConfig, lib *library.Library) *Server {
	workers := cfg.Jobs.MaxConcurrent
	if workers <= 0 {
		workers = 1
	}
	return &Server{
		cfg:         cfg,
		lib:         lib,
		connLimiter: NewConnLimiter(cfg.Connections),
		limiter:     NewRequestLimiter(cfg.RateLimit),
		jobs:        make(chan struct{}, workers),
		generate:    rando.GenerateContext,
		shutdown:    make(chan struct{}),
		sessions:    make(map[*WebSocketClient]struct{}),
	}
}

// SetRunRecorder sets where finished jobs are recorded.
func (s *Server) SetRunRecorder(r RunRecorder) {
	s.runs = r
}

// Handler returns the HTTP routes of the service.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/generate", s.handleWebSocketUpgrade)
	mux.HandleFunc("/healthz", s.handleHealth)
	return mux
}

// Start listens on the configured address until Shutdown is called.
func (s *Server) Start() error {
	s.mu.Lock()
	s.httpServer = &http.Server{
		Addr:              s.cfg.ListenAddr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	srv := s.httpServer
	s.mu.Unlock()

	logger.Info("Generation service listening", "address", s.cfg.ListenAddr, "rooms", s.lib.Len())
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to start server: %w", err)
	}
	return nil
}

// Shutdown stops accepting sessions and closes the open ones. It is safe to
// call more than once.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		close(s.shutdown)
		s.limiter.Stop()

		s.mu.Lock()
		srv := s.httpServer
		for c := range s.sessions {
			c.Close()
		}
		s.mu.Unlock()

		if srv != nil {
			err = srv.Shutdown(ctx)
		}
		logger.Info("Generation service stopped")
	})
	return err
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	sessions, ips := s.connLimiter.Stats()
	w.Header().Set("Content-Type", "text/plain")
	fmt.Fprintf(w, "ok sessions=%d ips=%d jobs=%d\n", sessions, ips, s.running.Load())
}

// handleWebSocketUpgrade upgrades an HTTP connection to WebSocket.
func (s *Server) handleWebSocketUpgrade(w http.ResponseWriter, r *http.Request) {
	select {
	case <-s.shutdown:
		http.Error(w, "Service is shutting down.", http.StatusServiceUnavailable)
		return
	default:
	}

	clientIP := getRealIP(r)

	if !s.connLimiter.TryAcquire(clientIP) {
		logger.Warning("WebSocket connection rejected - limit exceeded",
			"remote_addr", r.RemoteAddr,
			"client_ip", clientIP)
		http.Error(w, "Too many connections. Please try again later.", http.StatusTooManyRequests)
		return
	}

	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			allowed := s.cfg.WebSocket.IsOriginAllowed(origin, r.Host)
			if !allowed {
				logger.Warning("WebSocket connection rejected - origin not allowed",
					"origin", origin,
					"host", r.Host,
					"remote_addr", r.RemoteAddr)
			}
			return allowed
		},
	}

	wsConn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Error("WebSocket upgrade failed", "error", err)
		s.connLimiter.Release(clientIP)
		return
	}
	if s.cfg.WebSocket.MaxMessageSize > 0 {
		wsConn.SetReadLimit(s.cfg.WebSocket.MaxMessageSize)
	}

	go s.handleWebSocketConnection(wsConn, clientIP)
}

// handleWebSocketConnection serves requests until the client disconnects.
func (s *Server) handleWebSocketConnection(wsConn *websocket.Conn, clientIP string) {
	client := NewWebSocketClient(wsConn)

	s.mu.Lock()
	s.sessions[client] = struct{}{}
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.sessions, client)
		s.mu.Unlock()
		s.connLimiter.Release(clientIP)
		client.Close()
		logger.Debug("Client disconnected", "client_ip", clientIP)
	}()

	logger.Debug("Client connected", "client_ip", clientIP)
	for {
		req, bad, err := client.ReadRequest()
		if err != nil {
			return
		}

		if locked, remaining := s.limiter.IsLocked(clientIP); locked {
			client.Send(errorMessage("", fmt.Sprintf("too many rejected requests, retry in %s", remaining.Round(time.Second))))
			continue
		}
		if bad != nil {
			s.reject(client, clientIP, "", bad.Error())
			continue
		}

		switch req.Type {
		case RequestPing:
			client.Send(Message{Type: MessagePong})
		case RequestGenerate:
			s.runJob(client, clientIP, req)
		default:
			s.reject(client, clientIP, "", fmt.Sprintf("unknown request type %q", req.Type))
		}
	}
}

// reject reports a refused request and counts it against the client
func (s *Server) reject(client *WebSocketClient, clientIP, jobID, reason string) {
	locked, lockout := s.limiter.RecordReject(clientIP)
	if locked {
		logger.Warning("Client locked out", "client_ip", clientIP, "lockout", lockout)
	}
	client.Send(errorMessage(jobID, reason))
}

// runJob generates one map for the client. The job waits for a free worker
// slot; progress events are forwarded until the job returns.
func (s *Server) runJob(client *WebSocketClient, clientIP string, req Request) {
	settings, err := config.ParseSettings([]byte(req.Settings))
	if err != nil {
		s.reject(client, clientIP, "", fmt.Sprintf("invalid settings: %v", err))
		return
	}
	s.limiter.RecordAccepted(clientIP)

	jobID := uuid.NewString()
	log := logger.With("job_id", jobID, "seed", settings.Seed, "client_ip", clientIP)
	client.Send(Message{Type: MessageAccepted, JobID: jobID})

	select {
	case s.jobs <- struct{}{}:
	case <-s.shutdown:
		client.Send(errorMessage(jobID, "service is shutting down"))
		return
	}
	s.running.Add(1)
	release := func() {
		s.running.Add(-1)
		<-s.jobs
	}

	ctx := context.Background()
	if secs := s.cfg.Jobs.TimeoutSeconds; secs > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(secs)*time.Second)
		defer cancel()
	}

	var (
		attempts atomic.Int32
		finished atomic.Bool
	)
	observer := func(ev rando.Event) {
		if ev.Kind == rando.EventAttemptStarted {
			attempts.Add(1)
		}
		// room placements are too frequent to forward
		if finished.Load() || ev.Kind == rando.EventRoomPlaced {
			return
		}
		client.Send(progressMessage(jobID, ev))
	}

	run := database.NewRun(settings)
	run.ID = jobID
	start := time.Now()
	result, genErr := s.generate(ctx, s.lib, settings, rando.Options{
		MaxAttempts: req.MaxAttempts,
		Observer:    observer,
		Finished:    release,
	})
	finished.Store(true)
	run.Complete(result, genErr, int(attempts.Load()), time.Since(start))
	s.record(log, run)

	if genErr != nil {
		log.Warn("Generation job failed", "error", genErr)
		client.Send(errorMessage(jobID, genErr.Error()))
		return
	}

	data := mapfile.Serialize(result.Map, settings)
	data.RunID = jobID
	raw, err := mapfile.Marshal(data)
	if err != nil {
		log.Error("Failed to export map", "error", err)
		client.Send(errorMessage(jobID, err.Error()))
		return
	}

	log.Info("Generation job finished", "rooms", run.Rooms, "attempts", run.Attempts, "duration", run.Duration)
	client.Send(Message{
		Type:       MessageResult,
		JobID:      jobID,
		Attempt:    result.Attempt,
		Rooms:      run.Rooms,
		Worth:      run.Worth,
		Backtracks: run.Backtracks,
		Map:        string(raw),
	})
}

func (s *Server) record(log *slog.Logger, run *database.Run) {
	if s.runs == nil {
		return
	}
	if err := s.runs.RecordRun(run); err != nil {
		log.Error("Failed to record run", "error", err)
	}
}

// getRealIP extracts the real client IP from an HTTP request.
// It checks X-Forwarded-For header first (for reverse proxy setups),
// then falls back to the direct remote address.
func getRealIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		// the first entry is the original client
		client, _, _ := strings.Cut(xff, ",")
		if client = strings.TrimSpace(client); client != "" {
			return client
		}
	}

	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}

	return extractIP(r.RemoteAddr)
}
