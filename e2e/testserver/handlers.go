package testserver

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// Coin is a market listing served by the fake API.
type Coin struct {
	ID        string  `json:"id"`
	Name      string  `json:"name"`
	Symbol    string  `json:"symbol"`
	Image     string  `json:"image,omitempty"`
	Price     float64 `json:"current_price"`
	Change24h float64 `json:"price_change_percentage_24h"`
	MarketCap float64 `json:"market_cap"`
}

// DefaultCoins is a small top list.
var DefaultCoins = []Coin{
	{ID: "bitcoin", Name: "Bitcoin", Symbol: "btc", Price: 43000, Change24h: 1.2, MarketCap: 840e9},
	{ID: "ethereum", Name: "Ethereum", Symbol: "eth", Price: 2300, Change24h: -0.8, MarketCap: 276e9},
	{ID: "solana", Name: "Solana", Symbol: "sol", Price: 98.5, Change24h: 4.1, MarketCap: 42e9},
}

// Handlers provides reusable market API handlers.
type Handlers struct{}

// Markets serves /coins/markets, honoring the ids and per_page parameters.
func (Handlers) Markets(coins []Coin) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		out := coins
		if ids := r.URL.Query().Get("ids"); ids != "" {
			want := make(map[string]bool)
			for _, id := range strings.Split(ids, ",") {
				want[id] = true
			}
			out = nil
			for _, c := range coins {
				if want[c.ID] {
					out = append(out, c)
				}
			}
		}
		if n, err := strconv.Atoi(r.URL.Query().Get("per_page")); err == nil && n >= 0 && n < len(out) {
			out = out[:n]
		}
		writeJSON(w, http.StatusOK, out)
	}
}

// Search serves /search by matching names and symbols.
func (Handlers) Search(coins []Coin) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := strings.ToLower(r.URL.Query().Get("query"))
		type hit struct {
			ID string `json:"id"`
		}
		hits := []hit{}
		for _, c := range coins {
			if strings.Contains(strings.ToLower(c.Name), q) || strings.Contains(c.Symbol, q) {
				hits = append(hits, hit{ID: c.ID})
			}
		}
		writeJSON(w, http.StatusOK, map[string]any{"coins": hits})
	}
}

// Chart serves a market chart with one point per hour ending an hour ago.
func (Handlers) Chart(prices ...float64) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		end := time.Now().Add(-time.Hour)
		points := make([][2]float64, 0, len(prices))
		for i, p := range prices {
			at := end.Add(-time.Duration(len(prices)-1-i) * time.Hour)
			points = append(points, [2]float64{float64(at.UnixMilli()), p})
		}
		writeJSON(w, http.StatusOK, map[string]any{"prices": points})
	}
}

// Error returns a handler that responds with an API error.
func (Handlers) Error(code int, message string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, code, map[string]string{"error": message})
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}
