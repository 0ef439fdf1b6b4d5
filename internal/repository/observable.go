package repository

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"classificados/internal/model"
)

const tracerName = "classificados/internal/repository"

// Observable decorates a ListingRepository with a span and a duration sample per call.
type Observable struct {
	next     ListingRepository
	backend  string
	tracer   trace.Tracer
	duration *prometheus.HistogramVec
}

var _ ListingRepository = (*Observable)(nil)

// NewObservable wraps next. A nil tp uses the global tracer provider.
func NewObservable(next ListingRepository, backend string, reg prometheus.Registerer, tp trace.TracerProvider) (*Observable, error) {
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	o := &Observable{
		next:    next,
		backend: backend,
		tracer:  tp.Tracer(tracerName),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "listing_repository_operation_duration_seconds",
				Help:    "Duration of listing collection loads and commits.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"backend", "operation", "result"},
		),
	}
	if err := reg.Register(o.duration); err != nil {
		return nil, err
	}
	return o, nil
}

func (o *Observable) Load(ctx context.Context) ([]model.Listing, error) {
	ctx, span := o.tracer.Start(ctx, "ListingRepository.Load")
	defer span.End()
	span.SetAttributes(attribute.String("store.backend", o.backend))

	start := time.Now()
	listings, err := o.next.Load(ctx)
	o.observe("load", start, span, err)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.Int("listings.count", len(listings)))
	return listings, nil
}

func (o *Observable) Save(ctx context.Context, listings []model.Listing) error {
	ctx, span := o.tracer.Start(ctx, "ListingRepository.Save")
	defer span.End()
	span.SetAttributes(
		attribute.String("store.backend", o.backend),
		attribute.Int("listings.count", len(listings)),
	)

	start := time.Now()
	err := o.next.Save(ctx, listings)
	o.observe("save", start, span, err)
	return err
}

// Ping forwards to the wrapped backend when it supports it.
func (o *Observable) Ping(ctx context.Context) error {
	if p, ok := o.next.(Pinger); ok {
		return p.Ping(ctx)
	}
	return nil
}

func (o *Observable) observe(op string, start time.Time, span trace.Span, err error) {
	result := "success"
	if err != nil {
		result = "error"
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	o.duration.WithLabelValues(o.backend, op, result).Observe(time.Since(start).Seconds())
}
