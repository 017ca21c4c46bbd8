package metrics

import "time"

var pipelineBuckets = []float64{0.5, 1, 2, 5, 10, 20, 30, 60, 120}

// RequestReceived counts one inbound event by classified kind.
func RequestReceived(kind string) {
	Default.Counter("requests_total", "Inbound events by input kind", Label("kind", kind)).Inc()
}

// ReplyDelivered counts the delivery path chosen for a reply.
func ReplyDelivered(decision string) {
	Default.Counter("replies_total", "Replies by delivery decision", Label("decision", decision)).Inc()
}

// ProviderError counts a failed external call by pipeline stage.
func ProviderError(stage string) {
	Default.Counter("provider_errors_total", "Failed external calls by stage", Label("stage", stage)).Inc()
}

// PipelineDone records end-to-end pipeline latency.
func PipelineDone(start time.Time) {
	Default.Histogram("pipeline_seconds", "Pipeline latency in seconds", "", pipelineBuckets).Since(start)
}
