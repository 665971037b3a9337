// Package fakemarket is a stand-in marketplace API that records the status
// pushes it receives.
package fakemarket

import (
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"
)

// Call is one status push received by the fake.
type Call struct {
	Method         string
	Path           string
	IdempotencyKey string
	Body           map[string]any
	ReceivedAt     time.Time
}

// Server records calls and can be told to reject the next few.
type Server struct {
	listener net.Listener
	srv      *http.Server

	mu       sync.Mutex
	calls    []Call
	failNext int
}

// Start listens on addr and serves in the background.
func Start(addr string) (*Server, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	s := &Server{listener: ln}
	s.srv = &http.Server{Handler: http.HandlerFunc(s.handle), ReadHeaderTimeout: 5 * time.Second}
	go func() { _ = s.srv.Serve(ln) }()
	return s, nil
}

// URL is the base URL the service should be configured with.
func (s *Server) URL() string {
	return "http://" + s.listener.Addr().String()
}

// Close stops the server.
func (s *Server) Close() {
	_ = s.srv.Close()
}

// FailNext makes the next n calls answer 503.
func (s *Server) FailNext(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failNext = n
}

// CallsFor returns recorded calls whose path mentions externalOrderID.
func (s *Server) CallsFor(externalOrderID string) []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Call
	for _, c := range s.calls {
		if strings.Contains(c.Path, externalOrderID) {
			out = append(out, c)
		}
	}
	return out
}

func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	raw, _ := io.ReadAll(r.Body)
	call := Call{
		Method:         r.Method,
		Path:           r.URL.Path,
		IdempotencyKey: r.Header.Get("Idempotency-Key"),
		ReceivedAt:     time.Now(),
	}
	_ = json.Unmarshal(raw, &call.Body)

	s.mu.Lock()
	s.calls = append(s.calls, call)
	fail := s.failNext > 0
	if fail {
		s.failNext--
	}
	s.mu.Unlock()

	if fail {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(`{"ok":true}`))
}
