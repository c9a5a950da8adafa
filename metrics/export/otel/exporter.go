package otel

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	goMormot "github.com/MrEthical07/goMormot"
	"github.com/MrEthical07/goMormot/metrics/export/internaldefs"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var (
	// ErrNilMeter is returned for a nil metric.Meter.
	ErrNilMeter = errors.New("nil meter")
	// ErrNilSource is returned for a nil client or source.
	ErrNilSource = errors.New("nil metrics source")
)

// SessionActiveName is the 0/1 gauge reporting whether the client holds a
// session. Only registered for sources that expose IsAuthenticated.
const SessionActiveName = "mormot_client_session_active"

type metricsSource interface {
	MetricsSnapshot() goMormot.MetricsSnapshot
	AuditDropped() uint64
}

type sessionSource interface {
	IsAuthenticated() bool
}

type observedCounter struct {
	id         goMormot.MetricID
	instrument metric.Int64ObservableCounter
}

// observedHistogram reports cumulative bucket counts on one gauge, one
// data point per "le" attribute value.
type observedHistogram struct {
	id      goMormot.MetricID
	buckets metric.Int64ObservableGauge
	count   metric.Int64ObservableGauge
}

// OTelExporter observes client metrics on every collection cycle of the
// meter's reader.
type OTelExporter struct {
	source        metricsSource
	session       sessionSource
	registration  metric.Registration
	counters      []observedCounter
	histograms    []observedHistogram
	bucketLabels  [internaldefs.BucketCount]metric.ObserveOption
	auditDropped  metric.Int64ObservableCounter
	sessionActive metric.Int64ObservableGauge
}

// NewOTelExporter registers instruments for client on meter.
func NewOTelExporter(meter metric.Meter, client *goMormot.Client) (*OTelExporter, error) {
	if client == nil {
		return nil, ErrNilSource
	}
	return NewOTelExporterFromSource(meter, client)
}

// NewOTelExporterFromSource registers instruments for any snapshot source.
func NewOTelExporterFromSource(meter metric.Meter, source metricsSource) (*OTelExporter, error) {
	if meter == nil {
		return nil, ErrNilMeter
	}
	if source == nil {
		return nil, ErrNilSource
	}

	e := &OTelExporter{
		source:     source,
		counters:   make([]observedCounter, 0, len(internaldefs.CounterDefs)),
		histograms: make([]observedHistogram, 0, len(internaldefs.HistogramDefs)),
	}
	for i, b := range internaldefs.UpperBounds() {
		e.bucketLabels[i] = metric.WithAttributes(attribute.String("le", strconv.FormatFloat(b, 'f', -1, 64)))
	}
	e.bucketLabels[internaldefs.BucketCount-1] = metric.WithAttributes(attribute.String("le", "+Inf"))

	var observables []metric.Observable

	for _, def := range internaldefs.CounterDefs {
		ins, err := meter.Int64ObservableCounter(def.Name, metric.WithDescription(def.Help))
		if err != nil {
			return nil, fmt.Errorf("create counter %s: %w", def.Name, err)
		}
		e.counters = append(e.counters, observedCounter{id: def.ID, instrument: ins})
		observables = append(observables, ins)
	}

	for _, def := range internaldefs.HistogramDefs {
		buckets, err := meter.Int64ObservableGauge(def.Name+"_bucket",
			metric.WithDescription(def.Help+" Cumulative count per upper bound."))
		if err != nil {
			return nil, fmt.Errorf("create histogram %s: %w", def.Name, err)
		}
		count, err := meter.Int64ObservableGauge(def.Name+"_count",
			metric.WithDescription(def.Help+" Sample count."))
		if err != nil {
			return nil, fmt.Errorf("create histogram count %s: %w", def.Name, err)
		}
		e.histograms = append(e.histograms, observedHistogram{id: def.ID, buckets: buckets, count: count})
		observables = append(observables, buckets, count)
	}

	auditDropped, err := meter.Int64ObservableCounter(internaldefs.AuditDroppedName,
		metric.WithDescription("Audit events dropped on a full buffer."))
	if err != nil {
		return nil, fmt.Errorf("create audit dropped counter: %w", err)
	}
	e.auditDropped = auditDropped
	observables = append(observables, auditDropped)

	if s, ok := source.(sessionSource); ok {
		active, err := meter.Int64ObservableGauge(SessionActiveName,
			metric.WithDescription("1 while the client holds a mORMot session."))
		if err != nil {
			return nil, fmt.Errorf("create session gauge: %w", err)
		}
		e.session = s
		e.sessionActive = active
		observables = append(observables, active)
	}

	registration, err := meter.RegisterCallback(e.observe, observables...)
	if err != nil {
		return nil, fmt.Errorf("register callback: %w", err)
	}
	e.registration = registration
	return e, nil
}

func (e *OTelExporter) observe(_ context.Context, o metric.Observer) error {
	snapshot := e.source.MetricsSnapshot()
	for _, c := range e.counters {
		o.ObserveInt64(c.instrument, int64(snapshot.Counters[c.id]))
	}

	for _, h := range e.histograms {
		raw, ok := snapshot.Histograms[h.id]
		if !ok {
			continue
		}
		cumulative := internaldefs.CumulativeBuckets(internaldefs.NormalizeBuckets(raw))
		for i, v := range cumulative {
			o.ObserveInt64(h.buckets, int64(v), e.bucketLabels[i])
		}
		o.ObserveInt64(h.count, int64(cumulative[len(cumulative)-1]))
	}

	o.ObserveInt64(e.auditDropped, int64(e.source.AuditDropped()))

	if e.session != nil {
		var active int64
		if e.session.IsAuthenticated() {
			active = 1
		}
		o.ObserveInt64(e.sessionActive, active)
	}
	return nil
}

// Close unregisters the collection callback.
func (e *OTelExporter) Close() error {
	if e == nil || e.registration == nil {
		return nil
	}
	return e.registration.Unregister()
}
