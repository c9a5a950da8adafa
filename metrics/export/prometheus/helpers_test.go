package prometheus

import (
	"context"
	"io"
	"testing"

	"github.com/MrEthical07/goMormot/transport"
	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
)

type transportFunc func(req *transport.Request) (*transport.Response, error)

func (f transportFunc) Do(_ context.Context, req *transport.Request) (*transport.Response, error) {
	return f(req)
}

func quietLogger() logrus.FieldLogger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

// singleCollector re-emits one named metric of an exporter, for testutil.ToFloat64.
type singleCollector struct {
	exp  *PrometheusExporter
	name string
}

func onlyMetric(t *testing.T, exp *PrometheusExporter, name string) prom.Collector {
	t.Helper()
	return singleCollector{exp: exp, name: name}
}

func (s singleCollector) Describe(ch chan<- *prom.Desc) {
	prom.DescribeByCollect(s, ch)
}

func (s singleCollector) Collect(ch chan<- prom.Metric) {
	all := make(chan prom.Metric, 32)
	go func() {
		s.exp.Collect(all)
		close(all)
	}()
	for m := range all {
		if m.Desc() == s.descFor() {
			ch <- m
		}
	}
}

func (s singleCollector) descFor() *prom.Desc {
	for _, c := range s.exp.counters {
		if c.name == s.name {
			return c.desc
		}
	}
	return nil
}
