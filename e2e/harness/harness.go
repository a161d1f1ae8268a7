// Package harness provides E2E testing utilities for Coinshelf.
package harness

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/artpar/coinshelf/e2e/testserver"
	"github.com/artpar/coinshelf/internal/config"
)

// E2EHarness is the main test orchestrator. CLI runs and TUI sessions
// created from one harness share its data directory.
type E2EHarness struct {
	t          *testing.T
	server     *testserver.Server
	dataDir    string
	configFile string
	timeout    time.Duration
}

// Config configures the harness.
type Config struct {
	Market  *testserver.Server // optional fake market API
	Timeout time.Duration      // Default: 5 seconds
}

// New creates a new E2E harness.
func New(t *testing.T, cfg Config) *E2EHarness {
	t.Helper()

	if cfg.Timeout == 0 {
		cfg.Timeout = 5 * time.Second
	}

	t.Setenv("HOME", t.TempDir())

	h := &E2EHarness{
		t:       t,
		server:  cfg.Market,
		dataDir: t.TempDir(),
		timeout: cfg.Timeout,
	}

	if h.server != nil {
		t.Cleanup(h.server.Close)
		h.configFile = filepath.Join(t.TempDir(), "config.yaml")
		content := fmt.Sprintf("market:\n  base_url: %s\n  cache_ttl: 1ms\n", h.server.URL)
		if err := os.WriteFile(h.configFile, []byte(content), 0644); err != nil {
			t.Fatalf("failed to write config: %v", err)
		}
	}

	return h
}

// Market returns the fake market server, or nil.
func (h *E2EHarness) Market() *testserver.Server {
	return h.server
}

// DataDir returns the shared data directory.
func (h *E2EHarness) DataDir() string {
	return h.dataDir
}

// AppConfig returns the configuration a CLI run would resolve.
func (h *E2EHarness) AppConfig() config.Config {
	cfg := config.DefaultConfig()
	cfg.DataDir = h.dataDir
	if h.server != nil {
		cfg.Market.BaseURL = h.server.URL
	}
	return cfg
}

// Timeout returns the configured timeout.
func (h *E2EHarness) Timeout() time.Duration {
	return h.timeout
}

// T returns the testing.T instance.
func (h *E2EHarness) T() *testing.T {
	return h.t
}

// CLI returns a CLI runner for this harness.
func (h *E2EHarness) CLI() *CLIRunner {
	return &CLIRunner{harness: h}
}

// TUI returns a TUI runner for this harness.
func (h *E2EHarness) TUI() *TUIRunner {
	return &TUIRunner{harness: h}
}
