package internaldefs

import (
	"strconv"
	"strings"

	goMormot "github.com/MrEthical07/goMormot"
)

// CounterDef names one exported counter.
type CounterDef struct {
	ID   goMormot.MetricID
	Name string
	Help string
}

// HistogramDef names one exported latency histogram.
type HistogramDef struct {
	ID   goMormot.MetricID
	Name string
	Help string
}

// BucketCount is the number of latency buckets, including +Inf.
const BucketCount = len(goMormot.HistogramBucketBounds) + 1

// AuditDroppedName is the counter of audit events dropped on backpressure.
const AuditDroppedName = "mormot_client_audit_dropped_total"

// CounterDefs lists every client counter in export order.
var CounterDefs = []CounterDef{
	{ID: goMormot.MetricLoginSuccess, Name: "mormot_client_login_success_total", Help: "Completed login handshakes."},
	{ID: goMormot.MetricLoginFailure, Name: "mormot_client_login_failure_total", Help: "Login handshakes that failed."},
	{ID: goMormot.MetricLogoutSuccess, Name: "mormot_client_logout_success_total", Help: "Logouts acknowledged by the server."},
	{ID: goMormot.MetricLogoutFailure, Name: "mormot_client_logout_failure_total", Help: "Logouts whose server call failed."},
	{ID: goMormot.MetricRequestSigned, Name: "mormot_client_request_signed_total", Help: "Signed requests sent."},
	{ID: goMormot.MetricRequestUnsigned, Name: "mormot_client_request_unsigned_total", Help: "Unsigned requests sent."},
	{ID: goMormot.MetricRequestFailure, Name: "mormot_client_request_failure_total", Help: "Requests that returned an error."},
	{ID: goMormot.MetricServerRejection, Name: "mormot_client_server_rejection_total", Help: "Responses with a non-2xx status."},
	{ID: goMormot.MetricSessionResumed, Name: "mormot_client_session_resumed_total", Help: "Sessions restored from Redis."},
	{ID: goMormot.MetricSessionPersistFailure, Name: "mormot_client_session_persist_failure_total", Help: "Failed Redis session saves or deletes."},
}

// HistogramDefs lists the latency histograms.
var HistogramDefs = []HistogramDef{
	{ID: goMormot.MetricLoginLatency, Name: "mormot_client_login_latency_seconds", Help: "Login handshake latency."},
	{ID: goMormot.MetricRequestLatency, Name: "mormot_client_request_latency_seconds", Help: "Single request latency."},
}

// UpperBounds returns the finite bucket bounds in seconds.
func UpperBounds() []float64 {
	out := make([]float64, len(goMormot.HistogramBucketBounds))
	for i, d := range goMormot.HistogramBucketBounds {
		out[i] = d.Seconds()
	}
	return out
}

// BoundSuffix returns instrument name suffixes such as "0_005" and "inf".
func BoundSuffix() []string {
	out := make([]string, 0, BucketCount)
	for _, b := range UpperBounds() {
		out = append(out, strings.ReplaceAll(strconv.FormatFloat(b, 'f', -1, 64), ".", "_"))
	}
	return append(out, "inf")
}

// NormalizeBuckets pads or truncates raw to BucketCount entries.
func NormalizeBuckets(raw []uint64) [BucketCount]uint64 {
	var out [BucketCount]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets turns per-bucket counts into running totals.
func CumulativeBuckets(raw [BucketCount]uint64) [BucketCount]uint64 {
	var out [BucketCount]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
