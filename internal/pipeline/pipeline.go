// Package pipeline sequences one question through schema grounding, model
// generation, and SQL validation into a single synchronous conversion with a
// tagged failure taxonomy. Files by concern:
//
//	pipeline.go - orchestrator and conversion state walk
//	failure.go  - terminal failure kinds and HTTP mapping
//	metrics.go  - Prometheus counters and engine event adapter
package pipeline

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"sqlgend/internal/compute"
	"sqlgend/internal/engine"
	"sqlgend/internal/schema"
	"sqlgend/internal/sqlcheck"
)

// maxAttempts caps generations per conversion: one primary, one retry with
// safer parameters.
const maxAttempts = 2

// Generator is the model side of the pipeline, satisfied by *engine.Engine.
type Generator interface {
	Generate(ctx context.Context, req engine.Request) (string, error)
	Decision(profileID string) (compute.Decision, bool)
}

// Config tunes one orchestrator.
type Config struct {
	// Timeout bounds a whole conversion. Zero disables the deadline.
	Timeout time.Duration
	// ContextLimit bounds the rendered schema context in bytes.
	ContextLimit int
	Logger       zerolog.Logger
}

// Orchestrator owns the question-to-SQL conversion flow.
type Orchestrator struct {
	gen          Generator
	source       schema.Source
	timeout      time.Duration
	contextLimit int
	log          zerolog.Logger
}

func New(gen Generator, source schema.Source, cfg Config) *Orchestrator {
	return &Orchestrator{
		gen:          gen,
		source:       source,
		timeout:      cfg.Timeout,
		contextLimit: cfg.ContextLimit,
		log:          cfg.Logger,
	}
}

// Result is a successful conversion.
type Result struct {
	SQL         string
	Corrections []string
	Profile     string
	Backend     string
	Precision   string
	Attempts    int
	RequestID   string
}

// Convert runs one question end to end. On failure the returned error is a
// *Failure; validation never lets a malformed statement through.
func (o *Orchestrator) Convert(ctx context.Context, question, profileID string) (*Result, error) {
	reqID := uuid.NewString()
	log := o.log.With().Str("request_id", reqID).Str("profile", profileID).Logger()
	if o.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.timeout)
		defer cancel()
	}

	start := time.Now()
	res, err := o.convert(ctx, log, question, profileID)
	conversionDuration.Observe(time.Since(start).Seconds())

	if err != nil {
		outcome := "error"
		if f, ok := AsFailure(err); ok {
			outcome = string(f.Kind)
		} else if engine.IsTooBusy(err) {
			outcome = "busy"
		}
		conversionsTotal.WithLabelValues(outcome).Inc()
		log.Warn().Err(err).Dur("dur", time.Since(start)).Msg("conversion failed")
		return nil, err
	}
	res.RequestID = reqID
	conversionsTotal.WithLabelValues("succeeded").Inc()
	log.Info().Int("attempts", res.Attempts).Strs("corrections", res.Corrections).
		Dur("dur", time.Since(start)).Msg("conversion succeeded")
	return res, nil
}

func (o *Orchestrator) convert(ctx context.Context, log zerolog.Logger, question, profileID string) (*Result, error) {
	schemaCtx, err := schema.Context(ctx, o.source, o.contextLimit)
	if err != nil {
		if terr := timeoutFailure(ctx); terr != nil {
			return nil, terr
		}
		return nil, failf(FailContextUnavailable, err, "schema context fetch failed")
	}

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		generationAttemptsTotal.Inc()
		raw, err := o.gen.Generate(ctx, engine.Request{
			ProfileID:     profileID,
			Question:      question,
			SchemaContext: schemaCtx,
			Attempt:       attempt,
		})
		if err != nil {
			if terr := timeoutFailure(ctx); terr != nil {
				return nil, terr
			}
			if errors.Is(err, context.Canceled) {
				return nil, err
			}
			if engine.IsTooBusy(err) {
				// Backpressure is not a pipeline failure: the error carries
				// its own 429 mapping and callers should retry later.
				return nil, err
			}
			if engine.IsNumericInstability(err) {
				if attempt < maxAttempts {
					log.Warn().Int("attempt", attempt).Msg("unstable generation, retrying with safe parameters")
					continue
				}
				return nil, failf(FailNumericInstability, err,
					"generation unstable after %d attempts", attempt)
			}
			return nil, failf(FailModelUnavailable, err, "model unavailable")
		}

		v := sqlcheck.Validate(raw)
		if !v.Valid {
			// Malformed output past the correction budget is not transient:
			// a second pass with the same prompt rarely changes shape, so it
			// fails now rather than burning the retry.
			return nil, failf(FailUnparseable, nil, "generated output is not valid SQL: %s", v.Reason)
		}
		for _, c := range v.Corrections {
			correctionsTotal.WithLabelValues(c).Inc()
		}
		res := &Result{
			SQL:         v.SQL,
			Corrections: v.Corrections,
			Profile:     profileID,
			Attempts:    attempt,
		}
		if dec, ok := o.gen.Decision(profileID); ok {
			res.Backend = string(dec.Backend)
			res.Precision = string(dec.Precision)
		}
		return res, nil
	}
	return nil, failf(FailNumericInstability, nil, "retry budget exhausted")
}

// timeoutFailure classifies a deadline hit; plain cancellation is returned
// to the caller untouched.
func timeoutFailure(ctx context.Context) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return failf(FailTimeout, ctx.Err(), "conversion deadline exceeded")
	}
	return nil
}
