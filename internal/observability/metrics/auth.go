package metrics

import (
	"time"

	obserrors "github.com/target/sessiond/internal/observability/errors"
	"github.com/target/sessiond/internal/observability/statsd"
)

// Result constants for metric tagging.
const (
	ResultSuccess  = "success"
	ResultRejected = "rejected"
	ResultError    = "error"
	ResultNoop     = "noop"
)

// AuthMetric describes one authentication operation.
type AuthMetric struct {
	// Operation is register, login, provider_callback, logout or resolve.
	Operation string
	// Method is password or the provider name; empty when not applicable.
	Method string
	Result string
	// Reason is the rejection reason for ResultRejected.
	Reason string
	Err    error
}

// EmitAuth counts an authentication outcome.
func EmitAuth(sink statsd.Sink, in AuthMetric) {
	if sink == nil {
		return
	}
	tags := map[string]string{
		"operation": in.Operation,
		"result":    in.Result,
	}
	if in.Method != "" {
		tags["method"] = in.Method
	}
	if in.Reason != "" {
		tags["reason"] = in.Reason
	}
	if in.Err != nil && in.Result != ResultSuccess {
		if class := obserrors.Classify(in.Err); class != "" {
			tags["error_class"] = class
		}
	}
	sink.Count("auth.operation", 1, tags)
}

// SweepMetric describes one pass of the session reaper.
type SweepMetric struct {
	Reclaimed int
	Duration  time.Duration
	Err       error
}

// EmitSweep records a sweep pass and how many records it reclaimed.
func EmitSweep(sink statsd.Sink, in SweepMetric) {
	if sink == nil {
		return
	}
	result := ResultSuccess
	switch {
	case in.Err != nil:
		result = ResultError
	case in.Reclaimed == 0:
		result = ResultNoop
	}
	tags := map[string]string{"result": result}
	if in.Err != nil {
		tags["error_class"] = obserrors.Classify(in.Err)
	}

	sink.Count("session.sweep", 1, tags)
	if in.Reclaimed > 0 {
		sink.Count("session.reclaimed", int64(in.Reclaimed), nil)
	}
	if in.Duration > 0 {
		sink.Timing("session.sweep.duration", in.Duration, CloneTags(tags))
	}
}

// CloneTags returns a shallow copy of src, or nil when it is empty.
func CloneTags(src map[string]string) map[string]string {
	if len(src) == 0 {
		return nil
	}
	out := make(map[string]string, len(src))
	for k, v := range src {
		out[k] = v
	}
	return out
}
