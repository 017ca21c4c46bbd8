package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_CounterReuse(t *testing.T) {
	r := NewRegistry("t")
	a := r.Counter("hits_total", "hits", Label("kind", "text"))
	b := r.Counter("hits_total", "hits", Label("kind", "text"))
	a.Inc()
	b.Inc()
	assert.Same(t, a, b)
	assert.Equal(t, int64(2), a.Value())
}

func TestRegistry_Render(t *testing.T) {
	r := NewRegistry("t")
	r.Counter("replies_total", "Replies", Label("decision", "pushed")).Inc()
	r.Counter("replies_total", "Replies", Label("decision", "sync_reply")).Inc()
	h := r.Histogram("latency_seconds", "Latency", "", []float64{1, 5})
	h.Observe(0.5)
	h.Observe(3)
	h.Observe(9)

	rec := httptest.NewRecorder()
	r.Handler()(rec, httptest.NewRequest("GET", "/metrics", nil))
	body := rec.Body.String()

	require.Contains(t, rec.Header().Get("Content-Type"), "text/plain")
	assert.Equal(t, 1, strings.Count(body, "# TYPE t_replies_total counter"))
	assert.Contains(t, body, `t_replies_total{decision="pushed"} 1`)
	assert.Contains(t, body, `t_replies_total{decision="sync_reply"} 1`)
	assert.Contains(t, body, `t_latency_seconds_bucket{le="1"} 1`)
	assert.Contains(t, body, `t_latency_seconds_bucket{le="5"} 2`)
	assert.Contains(t, body, `t_latency_seconds_bucket{le="+Inf"} 3`)
	assert.Contains(t, body, "t_latency_seconds_count 3")
	assert.Contains(t, body, "t_uptime_seconds")
}

func TestLabel_Escapes(t *testing.T) {
	assert.Equal(t, `k="a\"b\\c"`, Label("k", `a"b\c`))
}
