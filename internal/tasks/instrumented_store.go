package tasks

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var storeOpDuration = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "task_store_operation_duration_seconds",
		Help:    "Duration of whole-collection store loads and saves",
		Buckets: prometheus.DefBuckets,
	},
	[]string{"op", "result"},
)

func init() {
	prometheus.MustRegister(storeOpDuration)
}

// InstrumentedStore records a span and a latency sample for every Load and Save.
type InstrumentedStore struct {
	next    Store
	backend string
}

func NewInstrumentedStore(next Store, backend string) *InstrumentedStore {
	return &InstrumentedStore{next: next, backend: backend}
}

func (s *InstrumentedStore) Load(ctx context.Context) (Collection, error) {
	var c Collection
	err := s.observe(ctx, "load", func(ctx context.Context) error {
		var err error
		c, err = s.next.Load(ctx)
		return err
	}, func() []attribute.KeyValue {
		return []attribute.KeyValue{attribute.Int("tasks.count", len(c))}
	})
	return c, err
}

func (s *InstrumentedStore) Save(ctx context.Context, c Collection) error {
	return s.observe(ctx, "save", func(ctx context.Context) error {
		return s.next.Save(ctx, c)
	}, func() []attribute.KeyValue {
		return []attribute.KeyValue{attribute.Int("tasks.count", len(c))}
	})
}

func (s *InstrumentedStore) observe(ctx context.Context, op string, fn func(context.Context) error, attrs func() []attribute.KeyValue) error {
	ctx, span := otel.Tracer("tasks/store").Start(ctx, "store."+op)
	defer span.End()

	start := time.Now()
	err := fn(ctx)
	dur := time.Since(start).Seconds()

	result := "ok"
	if err != nil {
		result = "error"
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.SetAttributes(attribute.String("store.backend", s.backend))
	span.SetAttributes(attrs()...)
	storeOpDuration.With(prometheus.Labels{"op": op, "result": result}).Observe(dur)
	return err
}
