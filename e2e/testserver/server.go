// Package testserver provides a fake market data API for E2E tests.
package testserver

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"time"
)

// Server wraps httptest.Server and records the requests it serves.
type Server struct {
	*httptest.Server
	mu       sync.Mutex
	requests []*RecordedRequest
}

// RecordedRequest stores request details for verification.
type RecordedRequest struct {
	Path  string
	Query string
	Time  time.Time
}

// New creates a test server with the given routes.
func New(routes map[string]http.HandlerFunc) *Server {
	s := &Server{}

	mux := http.NewServeMux()
	for pattern, handler := range routes {
		mux.HandleFunc(pattern, s.record(handler))
	}

	s.Server = httptest.NewServer(mux)
	return s
}

// NewMarket creates a server answering the market, search and chart
// endpoints for coins. Every coin's chart is served from prices.
func NewMarket(coins []Coin, prices ...float64) *Server {
	h := Handlers{}
	routes := map[string]http.HandlerFunc{
		"/coins/markets": h.Markets(coins),
		"/search":        h.Search(coins),
	}
	for _, c := range coins {
		routes["/coins/"+c.ID+"/market_chart"] = h.Chart(prices...)
	}
	return New(routes)
}

func (s *Server) record(h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.requests = append(s.requests, &RecordedRequest{
			Path:  r.URL.Path,
			Query: r.URL.RawQuery,
			Time:  time.Now(),
		})
		s.mu.Unlock()
		h(w, r)
	}
}

// Requests returns all recorded requests.
func (s *Server) Requests() []*RecordedRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	result := make([]*RecordedRequest, len(s.requests))
	copy(result, s.requests)
	return result
}

// RequestCount returns the number of requests made to path.
func (s *Server) RequestCount(path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, r := range s.requests {
		if r.Path == path {
			n++
		}
	}
	return n
}
