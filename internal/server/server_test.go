package server

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/lawnchairsociety/roomweaver/internal/config"
	"github.com/lawnchairsociety/roomweaver/internal/database"
	"github.com/lawnchairsociety/roomweaver/internal/library"
	"github.com/lawnchairsociety/roomweaver/internal/mapfile"
	"github.com/lawnchairsociety/roomweaver/internal/rando"
)

const chainLibrary = `
source: test
rooms:
  - name: Start
    start: true
    worth: 1
    tiles: ["########", "#......#", "#......#", "##....##"]
    holes: [{side: down, idx: 0}]
  - name: Middle
    worth: 1
    tiles: ["##....##", "#......#", "#......#", "##....##"]
    holes: [{side: up, idx: 0}, {side: down, idx: 0}]
  - name: End
    worth: 1
    end: {}
    tiles: ["##....##", "#......#", "#......#", "########"]
    holes: [{side: up, idx: 0}]
`

const chainSettings = `
seed: test
strawberries: none
budget: {min_worth: 2, max_worth: 3}
`

type memoryRecorder struct {
	mu   sync.Mutex
	runs []*database.Run
}

func (m *memoryRecorder) RecordRun(run *database.Run) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs = append(m.runs, run)
	return nil
}

func (m *memoryRecorder) all() []*database.Run {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*database.Run(nil), m.runs...)
}

func testLibrary(t *testing.T) *library.Library {
	t.Helper()
	rooms, err := library.Parse([]byte(chainLibrary))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	lib, err := library.New(rooms)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return lib
}

func startTestServer(t *testing.T, mutate func(*config.ServiceConfig)) (*Server, *httptest.Server, *memoryRecorder) {
	t.Helper()
	cfg := config.DefaultServiceConfig()
	cfg.WebSocket.AllowedOrigins = []string{"*"}
	if mutate != nil {
		mutate(cfg)
	}

	s := NewServer(cfg, testLibrary(t))
	rec := &memoryRecorder{}
	s.SetRunRecorder(rec)

	ts := httptest.NewServer(s.Handler())
	t.Cleanup(func() {
		ts.Close()
		s.Shutdown(context.Background())
	})
	return s, ts, rec
}

func dial(t *testing.T, ts *httptest.Server) *websocket.Conn {
	t.Helper()
	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/generate"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("Failed to connect: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

// readUntil reads messages until one of type want arrives
func readUntil(t *testing.T, conn *websocket.Conn, want string) (Message, []Message) {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(10 * time.Second))
	var seen []Message
	for {
		var msg Message
		if err := conn.ReadJSON(&msg); err != nil {
			t.Fatalf("ReadJSON failed waiting for %s: %v (seen %d messages)", want, err, len(seen))
		}
		if msg.Type == want {
			return msg, seen
		}
		seen = append(seen, msg)
	}
}

func TestGenerateJob(t *testing.T) {
	_, ts, rec := startTestServer(t, nil)
	conn := dial(t, ts)

	if err := conn.WriteJSON(Request{Type: RequestGenerate, Settings: chainSettings}); err != nil {
		t.Fatalf("WriteJSON failed: %v", err)
	}

	accepted, _ := readUntil(t, conn, MessageAccepted)
	if accepted.JobID == "" {
		t.Fatal("accepted message has no job id")
	}

	result, progress := readUntil(t, conn, MessageResult)
	if result.JobID != accepted.JobID {
		t.Errorf("result job id = %s, want %s", result.JobID, accepted.JobID)
	}
	if result.Rooms != 3 {
		t.Errorf("Rooms = %d, want 3", result.Rooms)
	}

	events := make([]string, 0, len(progress))
	for _, p := range progress {
		events = append(events, p.Event)
	}
	if len(events) != 2 || events[0] != "attempt_started" || events[1] != "generated" {
		t.Errorf("progress events = %v, want [attempt_started generated]", events)
	}

	data, err := mapfile.Unmarshal([]byte(result.Map))
	if err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if data.RunID != accepted.JobID || len(data.Rooms) != 3 || data.Seed != "test" {
		t.Errorf("map = run %s, %d rooms, seed %s", data.RunID, len(data.Rooms), data.Seed)
	}

	runs := rec.all()
	if len(runs) != 1 {
		t.Fatalf("recorded %d runs, want 1", len(runs))
	}
	if runs[0].ID != accepted.JobID || !runs[0].Success || runs[0].Attempts != 1 || runs[0].Rooms != 3 {
		t.Errorf("recorded run = %+v", runs[0])
	}
}

func TestGenerateJobFailure(t *testing.T) {
	_, ts, rec := startTestServer(t, nil)
	conn := dial(t, ts)

	impossible := "seed: test\nstrawberries: none\nbudget: {min_worth: 10, max_worth: 12}\n"
	conn.WriteJSON(Request{Type: RequestGenerate, Settings: impossible, MaxAttempts: 2})

	accepted, _ := readUntil(t, conn, MessageAccepted)
	failure, progress := readUntil(t, conn, MessageError)
	if failure.JobID != accepted.JobID {
		t.Errorf("error job id = %s, want %s", failure.JobID, accepted.JobID)
	}
	if !strings.Contains(failure.Error, "failed after 2 attempts") {
		t.Errorf("error = %q", failure.Error)
	}

	failed := 0
	for _, p := range progress {
		if p.Event == "attempt_failed" {
			failed++
		}
	}
	if failed != 2 {
		t.Errorf("attempt_failed events = %d, want 2", failed)
	}

	runs := rec.all()
	if len(runs) != 1 || runs[0].Success || runs[0].Attempts != 2 || runs[0].Error == "" {
		t.Errorf("recorded runs = %+v", runs)
	}
}

func TestRejectedRequests(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		want    string
	}{
		{"malformed", "{not json", "malformed request"},
		{"unknown type", `{"type":"teleport"}`, "unknown request type"},
		{"invalid settings", `{"type":"generate","settings":"algorithm: maze"}`, "invalid settings"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, ts, rec := startTestServer(t, nil)
			conn := dial(t, ts)

			conn.WriteMessage(websocket.TextMessage, []byte(tt.payload))
			msg, _ := readUntil(t, conn, MessageError)
			if !strings.Contains(msg.Error, tt.want) {
				t.Errorf("error = %q, want it to mention %q", msg.Error, tt.want)
			}
			if len(rec.all()) != 0 {
				t.Error("rejected requests should not be recorded")
			}
		})
	}
}

func TestLockoutAfterRejects(t *testing.T) {
	_, ts, _ := startTestServer(t, func(cfg *config.ServiceConfig) {
		cfg.RateLimit = config.RateLimitConfig{MaxAttempts: 2, LockoutSeconds: 60, MaxLockoutSeconds: 60}
	})
	conn := dial(t, ts)

	for i := 0; i < 2; i++ {
		conn.WriteJSON(Request{Type: "bogus"})
		readUntil(t, conn, MessageError)
	}

	conn.WriteJSON(Request{Type: RequestGenerate, Settings: chainSettings})
	msg, _ := readUntil(t, conn, MessageError)
	if !strings.Contains(msg.Error, "too many rejected requests") {
		t.Errorf("error = %q, want lockout", msg.Error)
	}
}

func TestPing(t *testing.T) {
	_, ts, _ := startTestServer(t, nil)
	conn := dial(t, ts)

	conn.WriteJSON(Request{Type: RequestPing})
	readUntil(t, conn, MessagePong)
}

func TestOriginRejected(t *testing.T) {
	_, ts, _ := startTestServer(t, func(cfg *config.ServiceConfig) {
		cfg.WebSocket.AllowedOrigins = []string{"https://weaver.example"}
	})

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/generate"
	header := http.Header{"Origin": []string{"https://evil.example"}}
	_, resp, err := websocket.DefaultDialer.Dial(wsURL, header)
	if err == nil {
		t.Fatal("expected dial to fail for a foreign origin")
	}
	if resp == nil || resp.StatusCode != http.StatusForbidden {
		t.Errorf("response = %v, want 403", resp)
	}
}

func TestConnectionLimit(t *testing.T) {
	_, ts, _ := startTestServer(t, func(cfg *config.ServiceConfig) {
		cfg.Connections = config.ConnectionsConfig{MaxPerIP: 1, MaxTotal: 10}
	})
	dial(t, ts)

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/generate"
	_, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err == nil {
		t.Fatal("second connection should be refused")
	}
	if resp == nil || resp.StatusCode != http.StatusTooManyRequests {
		t.Errorf("response = %v, want 429", resp)
	}
}

func TestHealth(t *testing.T) {
	_, ts, _ := startTestServer(t, nil)

	resp, err := http.Get(ts.URL + "/healthz")
	if err != nil {
		t.Fatalf("GET /healthz failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}
}

func healthBody(t *testing.T, ts *httptest.Server) string {
	t.Helper()
	resp, err := http.Get(ts.URL + "/healthz")
	if err != nil {
		t.Fatalf("GET /healthz failed: %v", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("reading /healthz failed: %v", err)
	}
	return string(body)
}

func TestTimedOutJobKeepsSlot(t *testing.T) {
	s, ts, _ := startTestServer(t, func(cfg *config.ServiceConfig) {
		cfg.Jobs.MaxConcurrent = 1
		cfg.Jobs.TimeoutSeconds = 1
	})

	// every run stalls on its first attempt until release is closed
	release := make(chan struct{})
	s.generate = func(ctx context.Context, lib *library.Library, settings *config.Settings, opts rando.Options) (*rando.Result, error) {
		forward := opts.Observer
		opts.Observer = func(ev rando.Event) {
			if ev.Kind == rando.EventAttemptStarted {
				<-release
			}
			forward(ev)
		}
		return rando.GenerateContext(ctx, lib, settings, opts)
	}
	defer func() {
		select {
		case <-release:
		default:
			close(release)
		}
	}()

	first := dial(t, ts)
	first.WriteJSON(Request{Type: RequestGenerate, Settings: chainSettings})
	failure, _ := readUntil(t, first, MessageError)
	if !strings.Contains(failure.Error, "deadline") {
		t.Errorf("error = %q, want deadline exceeded", failure.Error)
	}

	if body := healthBody(t, ts); !strings.Contains(body, "jobs=1") {
		t.Errorf("health after timeout = %q, want jobs=1", body)
	}

	second := dial(t, ts)
	second.WriteJSON(Request{Type: RequestGenerate, Settings: chainSettings})
	accepted, _ := readUntil(t, second, MessageAccepted)

	if body := healthBody(t, ts); !strings.Contains(body, "jobs=1") {
		t.Errorf("health with a queued job = %q, want jobs=1", body)
	}

	close(release)
	result, _ := readUntil(t, second, MessageResult)
	if result.JobID != accepted.JobID || result.Rooms != 3 {
		t.Errorf("result = job %s, %d rooms, want job %s, 3 rooms", result.JobID, result.Rooms, accepted.JobID)
	}

	deadline := time.Now().Add(5 * time.Second)
	for !strings.Contains(healthBody(t, ts), "jobs=0") {
		if time.Now().After(deadline) {
			t.Fatalf("health = %q, want jobs=0 once both runs returned", healthBody(t, ts))
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestShutdownTwice(t *testing.T) {
	s := NewServer(config.DefaultServiceConfig(), testLibrary(t))

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := s.Shutdown(context.Background()); err != nil {
				t.Errorf("Shutdown() = %v", err)
			}
		}()
	}
	wg.Wait()

	rr := httptest.NewRecorder()
	s.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/generate", nil))
	if rr.Code != http.StatusServiceUnavailable {
		t.Errorf("status after shutdown = %d, want 503", rr.Code)
	}
}

func TestGetRealIP(t *testing.T) {
	tests := []struct {
		name       string
		xff        string
		xri        string
		remoteAddr string
		expected   string
	}{
		{"X-Forwarded-For single IP", "203.0.113.50", "", "10.0.0.1:12345", "203.0.113.50"},
		{"X-Forwarded-For chain", "203.0.113.50, 70.41.3.18", "", "10.0.0.1:12345", "203.0.113.50"},
		{"X-Real-IP", "", "203.0.113.50", "10.0.0.1:12345", "203.0.113.50"},
		{"X-Forwarded-For wins", "203.0.113.50", "198.51.100.25", "10.0.0.1:12345", "203.0.113.50"},
		{"RemoteAddr", "", "", "192.168.1.100:54321", "192.168.1.100"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := &http.Request{RemoteAddr: tt.remoteAddr, Header: make(http.Header)}
			if tt.xff != "" {
				req.Header.Set("X-Forwarded-For", tt.xff)
			}
			if tt.xri != "" {
				req.Header.Set("X-Real-IP", tt.xri)
			}
			if got := getRealIP(req); got != tt.expected {
				t.Errorf("getRealIP() = %q, want %q", got, tt.expected)
			}
		})
	}
}
