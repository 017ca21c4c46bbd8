// Package metrics renders Prometheus text exposition for the webhook
// pipeline without pulling in client_golang.
package metrics

import (
	"fmt"
	"io"
	"math"
	"net/http"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// Default is the process-wide registry used by the pipeline and server.
var Default = NewRegistry("truthline")

// Registry holds counters and histograms keyed by name and label set.
type Registry struct {
	namespace  string
	counters   sync.Map // key -> *Counter
	histograms sync.Map // key -> *Histogram
	startTime  time.Time
}

func NewRegistry(namespace string) *Registry {
	return &Registry{namespace: namespace, startTime: time.Now()}
}

// Uptime returns how long the registry has existed.
func (r *Registry) Uptime() time.Duration {
	return time.Since(r.startTime)
}

// Counter is a monotonically increasing value.
type Counter struct {
	name   string
	help   string
	labels string
	value  atomic.Int64
}

func (c *Counter) Inc()         { c.value.Add(1) }
func (c *Counter) Value() int64 { return c.value.Load() }

// Histogram tracks a distribution over fixed upper bounds.
type Histogram struct {
	name    string
	help    string
	labels  string
	mu      sync.Mutex
	count   int64
	sum     float64
	bounds  []float64
	buckets []int64
}

// Observe records v. Bucket counts are cumulative on render.
func (h *Histogram) Observe(v float64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.count++
	h.sum += v
	for i, le := range h.bounds {
		if v <= le {
			h.buckets[i]++
			return
		}
	}
}

// Since observes the seconds elapsed from start.
func (h *Histogram) Since(start time.Time) {
	h.Observe(time.Since(start).Seconds())
}

// Label renders a single name="value" pair with the value escaped.
func Label(name, value string) string {
	r := strings.NewReplacer(`\`, `\\`, `"`, `\"`, "\n", `\n`)
	return name + `="` + r.Replace(value) + `"`
}

func (r *Registry) fullName(name string) string {
	if r.namespace == "" {
		return name
	}
	return r.namespace + "_" + name
}

// Counter returns or creates the counter for name and labels.
func (r *Registry) Counter(name, help, labels string) *Counter {
	name = r.fullName(name)
	key := name + "{" + labels + "}"
	if v, ok := r.counters.Load(key); ok {
		return v.(*Counter)
	}
	actual, _ := r.counters.LoadOrStore(key, &Counter{name: name, help: help, labels: labels})
	return actual.(*Counter)
}

// Histogram returns or creates the histogram for name and labels.
func (r *Registry) Histogram(name, help, labels string, bounds []float64) *Histogram {
	name = r.fullName(name)
	key := name + "{" + labels + "}"
	if v, ok := r.histograms.Load(key); ok {
		return v.(*Histogram)
	}
	b := append([]float64(nil), bounds...)
	sort.Float64s(b)
	h := &Histogram{name: name, help: help, labels: labels, bounds: b, buckets: make([]int64, len(b))}
	actual, _ := r.histograms.LoadOrStore(key, h)
	return actual.(*Histogram)
}

// Handler serves the registry in Prometheus text format.
func (r *Registry) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
		r.WriteTo(w)
	}
}

// WriteTo renders every metric, sorted by name and labels.
func (r *Registry) WriteTo(w io.Writer) (int64, error) {
	var sb strings.Builder

	uptime := r.fullName("uptime_seconds")
	fmt.Fprintf(&sb, "# HELP %s Time since start in seconds\n", uptime)
	fmt.Fprintf(&sb, "# TYPE %s gauge\n", uptime)
	fmt.Fprintf(&sb, "%s %d\n", uptime, int64(r.Uptime().Seconds()))

	var counters []*Counter
	r.counters.Range(func(_, v any) bool {
		counters = append(counters, v.(*Counter))
		return true
	})
	sort.Slice(counters, func(i, j int) bool {
		if counters[i].name != counters[j].name {
			return counters[i].name < counters[j].name
		}
		return counters[i].labels < counters[j].labels
	})
	last := ""
	for _, c := range counters {
		if c.name != last {
			fmt.Fprintf(&sb, "# HELP %s %s\n# TYPE %s counter\n", c.name, c.help, c.name)
			last = c.name
		}
		fmt.Fprintf(&sb, "%s%s %d\n", c.name, braces(c.labels), c.Value())
	}

	var hists []*Histogram
	r.histograms.Range(func(_, v any) bool {
		hists = append(hists, v.(*Histogram))
		return true
	})
	sort.Slice(hists, func(i, j int) bool {
		if hists[i].name != hists[j].name {
			return hists[i].name < hists[j].name
		}
		return hists[i].labels < hists[j].labels
	})
	last = ""
	for _, h := range hists {
		if h.name != last {
			fmt.Fprintf(&sb, "# HELP %s %s\n# TYPE %s histogram\n", h.name, h.help, h.name)
			last = h.name
		}
		h.writeTo(&sb)
	}

	n, err := io.WriteString(w, sb.String())
	return int64(n), err
}

func (h *Histogram) writeTo(sb *strings.Builder) {
	h.mu.Lock()
	defer h.mu.Unlock()

	prefix := ""
	if h.labels != "" {
		prefix = h.labels + ","
	}
	var cum int64
	for i, le := range h.bounds {
		cum += h.buckets[i]
		bound := fmt.Sprintf("%g", le)
		if math.IsInf(le, 1) {
			bound = "+Inf"
		}
		fmt.Fprintf(sb, "%s_bucket{%sle=\"%s\"} %d\n", h.name, prefix, bound, cum)
	}
	if len(h.bounds) == 0 || !math.IsInf(h.bounds[len(h.bounds)-1], 1) {
		fmt.Fprintf(sb, "%s_bucket{%sle=\"+Inf\"} %d\n", h.name, prefix, h.count)
	}
	fmt.Fprintf(sb, "%s_sum%s %g\n", h.name, braces(h.labels), h.sum)
	fmt.Fprintf(sb, "%s_count%s %d\n", h.name, braces(h.labels), h.count)
}

func braces(labels string) string {
	if labels == "" {
		return ""
	}
	return "{" + labels + "}"
}
