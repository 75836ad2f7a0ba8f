package engine

import (
	"context"
	"errors"
	"math"
	"strings"
)

// errUnstableToken aborts an in-progress generation from the token watchdog.
var errUnstableToken = errors.New("unstable token")

// Generate runs one inference attempt for the request and returns the raw
// completion text. Callers own the retry budget; each call here is a single
// attempt with the parameter set the profile's policy assigns to
// req.Attempt. Degenerate output distributions abort the generation and
// surface as a numeric-instability error, never as garbage tokens.
func (e *Engine) Generate(ctx context.Context, req Request) (string, error) {
	prof, ok := e.profiles.Get(req.ProfileID)
	if !ok {
		return "", ErrProfileNotFound(req.ProfileID)
	}
	// The instance can be evicted or unloaded between lookup and slot
	// acquisition; a released handle means load again, bounded.
	var (
		inst    *Instance
		handle  ModelHandle
		release func()
	)
	for tries := 0; ; tries++ {
		var err error
		inst, err = e.EnsureInstance(ctx, req.ProfileID)
		if err != nil {
			return "", err
		}
		release, err = e.acquire(ctx, inst)
		if err != nil {
			return "", err
		}
		handle, err = e.retain(inst)
		if err == nil {
			break
		}
		release()
		if IsTooBusy(err) {
			return "", err
		}
		if tries == 2 {
			return "", ErrLoad(req.ProfileID, err)
		}
	}
	defer release()
	defer e.releaseHandle(inst)

	attempt := req.Attempt
	if attempt < 1 {
		attempt = 1
	}
	dec, mode := prof.DecodingFor(inst.Decision, attempt)
	params := GenParams{
		Temperature:   dec.Temperature,
		TopP:          dec.TopP,
		TopK:          dec.TopK,
		MaxTokens:     dec.MaxNewTokens,
		Seed:          dec.Seed,
		RepeatPenalty: dec.RepeatPenalty,
		Stop:          []string{";"},
		SafeNumerics:  mode != 0,
	}

	prompt := prof.Template.Render(req.SchemaContext, req.Question)

	var b strings.Builder
	unstable := false
	onToken := func(tok Token) error {
		if badLogprob(tok.Logprob) {
			unstable = true
			return errUnstableToken
		}
		b.WriteString(tok.Text)
		return nil
	}

	text, err := handle.Generate(ctx, prompt, params, onToken)
	if err != nil {
		if ctx.Err() != nil {
			// Cancellation: admission slots are released by the deferred
			// release; the instance stays reusable.
			return "", ctx.Err()
		}
		if unstable || errors.Is(err, errUnstableToken) {
			e.publisher.Publish(Event{Name: "numeric_instability", ProfileID: req.ProfileID, Fields: map[string]any{
				"attempt": attempt, "decision": inst.Decision.String(),
			}})
			return "", ErrNumericInstability(attempt)
		}
		return "", err
	}
	if text == "" {
		text = b.String()
	}
	return text, nil
}

// badLogprob flags non-finite log-probabilities and probabilities above 1.
// A valid token probability p in (0,1] has log(p) finite and <= 0.
func badLogprob(lp float64) bool {
	return math.IsNaN(lp) || math.IsInf(lp, 0) || lp > 0
}
