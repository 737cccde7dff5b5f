package engines

import (
	"context"
	"io"
	"time"

	"github.com/cockroachdb/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/rubiojr/sieve/pkg/core"
	"github.com/rubiojr/sieve/pkg/extract"
	"github.com/rubiojr/sieve/pkg/log"
	"github.com/rubiojr/sieve/pkg/transport"
)

// EmitFunc hands one result to the consumer. A non nil error means the
// consumer is gone and the run must stop.
type EmitFunc func(core.Result) error

// Options tune an adapter.
type Options struct {
	Extract extract.Options
	// Timeout bounds a whole run, request and body included. Zero means no
	// limit beyond the caller's context.
	Timeout time.Duration
	// TracerProvider receives the engine.run spans. Nil uses the global
	// provider.
	TracerProvider trace.TracerProvider
}

// Adapter binds a validated Spec to the extractor and the transport.
type Adapter struct {
	spec   Spec
	rules  *extract.Rules
	opts   Options
	tracer trace.Tracer
}

// NewAdapter validates spec and compiles its patterns.
func NewAdapter(spec Spec, opts Options) (*Adapter, error) {
	rules, err := spec.compile()
	if err != nil {
		return nil, err
	}
	tp := opts.TracerProvider
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	return &Adapter{
		spec:   spec,
		rules:  rules,
		opts:   opts,
		tracer: tp.Tracer("sieve-engines"),
	}, nil
}

func (a *Adapter) Engine() core.Engine {
	return a.spec.Engine
}

func (a *Adapter) Spec() Spec {
	return a.spec
}

func (a *Adapter) Request(query string) transport.Request {
	return a.spec.Request.BuildRequest(query)
}

// NewExtractor returns a fresh extractor owned by the caller.
func (a *Adapter) NewExtractor() *extract.Extractor {
	return extract.New(a.rules, a.opts.Extract)
}

// Run fetches the page for query and emits every result in page order.
//
// It returns nil when the page ended normally, the transport error when the
// fetch failed, and ErrConsumerGone when emit refused a result.
func (a *Adapter) Run(ctx context.Context, query string, fetcher transport.Fetcher, emit EmitFunc) error {
	name := a.spec.Engine.String()
	l := log.ForService(name)

	ctx, span := a.tracer.Start(ctx, "engine.run",
		trace.WithAttributes(
			attribute.String("engine.name", name),
			attribute.String("search.query", query),
		),
	)
	defer span.End()

	if a.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.opts.Timeout)
		defer cancel()
	}

	count, err := a.run(ctx, query, fetcher, emit)
	span.SetAttributes(attribute.Int("engine.results", count))
	switch {
	case errors.Is(err, ErrConsumerGone):
		l.Debugf("consumer gone after %d results", count)
		span.SetStatus(codes.Ok, "consumer gone")
	case err != nil:
		span.RecordError(err)
		span.SetStatus(codes.Error, "engine run failed")
		l.Warnf("search failed after %d results: %v", count, err)
	default:
		span.SetStatus(codes.Ok, "completed")
		l.Debugf("finished with %d results", count)
	}
	return err
}

func (a *Adapter) run(ctx context.Context, query string, fetcher transport.Fetcher, emit EmitFunc) (int, error) {
	src, err := fetcher.Fetch(ctx, a.Request(query))
	if err != nil {
		return 0, err
	}
	defer src.Close()

	ex := a.NewExtractor()
	count := 0
	drain := func() error {
		for {
			r, ok := ex.Next()
			if !ok {
				return nil
			}
			if err := emit(r); err != nil {
				return errors.WithSecondaryError(ErrConsumerGone, err)
			}
			count++
		}
	}

	for {
		chunk, err := src.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return count, errors.Wrapf(err, "reading %s page", a.spec.Engine)
		}
		ex.Feed(chunk)
		if err := drain(); err != nil {
			return count, err
		}
		if err := ctx.Err(); err != nil {
			return count, err
		}
	}

	ex.Finish()
	return count, drain()
}
