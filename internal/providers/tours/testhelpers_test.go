package tours

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/Checker-Finance/experiences/pkg/model"
)

// writeJSON encodes v as JSON into w.
func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		panic("test helper writeJSON: " + err.Error())
	}
}

// mockUpstream routes tours API calls to canned handlers and counts hits per path.
type mockUpstream struct {
	mu       sync.Mutex
	hits     map[string]int
	lastAuth string
	handlers map[string]http.HandlerFunc
}

func (m *mockUpstream) count(path string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.hits[path]
}

func (m *mockUpstream) total() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, v := range m.hits {
		n += v
	}
	return n
}

// newMockUpstream starts an httptest server. Handlers are keyed by URL path;
// unknown paths answer 404.
func newMockUpstream(t *testing.T, handlers map[string]http.HandlerFunc) (*httptest.Server, *mockUpstream) {
	t.Helper()
	m := &mockUpstream{hits: map[string]int{}, handlers: handlers}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m.mu.Lock()
		m.hits[r.URL.Path]++
		m.lastAuth = r.Header.Get("Authorization")
		h, ok := m.handlers[r.URL.Path]
		m.mu.Unlock()
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		h(w, r)
	}))
	t.Cleanup(srv.Close)
	return srv, m
}

func testConfig(baseURL string) Config {
	return Config{
		Name:         "heavenly_tours",
		DisplayName:  "Heavenly Tours",
		BaseURL:      baseURL,
		APIKey:       "test-key",
		Timeout:      2 * time.Second,
		CacheTTL:     time.Hour,
		Enabled:      true,
		MockFallback: true,
		RetryMax:     0,
	}
}

func newTestProvider(t *testing.T, cfg Config) *Provider {
	t.Helper()
	p, err := New(cfg, zap.NewNop(), nil, NewMemoryCaches(cfg.Name))
	if err != nil {
		t.Fatalf("new provider: %v", err)
	}
	return p
}

func status(code int) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(code) }
}

func jsonBody(body string) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(strings.TrimSpace(body)))
	}
}

func testRange() model.DateRange {
	return model.DateRange{
		Start: model.Date{Year: 2026, Month: time.March, Day: 1},
		End:   model.Date{Year: 2026, Month: time.March, Day: 15},
	}
}
