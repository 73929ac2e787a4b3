package metrics

// PipelineDurationBuckets covers one question from routing to a terminal state.
// Generation with retries can take tens of seconds.
var PipelineDurationBuckets = []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20, 40, 80, 160}

// CollaboratorDurationBuckets defines latency buckets for single model or search calls.
var CollaboratorDurationBuckets = []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30}

// HTTPDurationBuckets defines latency buckets for HTTP request duration metrics.
var HTTPDurationBuckets = []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60}
