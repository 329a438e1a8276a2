package workflow

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"underwriting-service/internal/extract"
)

// generateStructured issues the prompt, runs the reply through the
// extractor and validates the required top-level fields, retrying the
// full round trip up to the configured attempt bound. ok=false after the
// last attempt tells the stage to substitute its default dataset; the
// workflow never blocks on the generation service.
func (e *Engine) generateStructured(ctx context.Context, gen Generator, prompt string, required ...string) (map[string]any, bool) {
	for attempt := 1; attempt <= e.cfg.MaxGenerateAttempts; attempt++ {
		if attempt > 1 {
			select {
			case <-time.After(e.cfg.RetryBackoff):
			case <-ctx.Done():
				return nil, false
			}
		}

		text, ok := e.generateOnce(ctx, gen, prompt, attempt)
		if !ok {
			continue
		}

		obj, ok := extract.ExtractObject(text)
		if !ok {
			slog.Warn("No structured value recovered from reply", "attempt", attempt)
			continue
		}
		if missing := missingFields(obj, required); len(missing) > 0 {
			slog.Warn("Structured reply missing required fields",
				"attempt", attempt, "missing", missing)
			continue
		}
		return obj, true
	}
	return nil, false
}

// generateFreeText is the round trip for stages whose artifact is prose
// (policy wording, quote text) rather than JSON.
func (e *Engine) generateFreeText(ctx context.Context, gen Generator, prompt string) (string, bool) {
	for attempt := 1; attempt <= e.cfg.MaxGenerateAttempts; attempt++ {
		if attempt > 1 {
			select {
			case <-time.After(e.cfg.RetryBackoff):
			case <-ctx.Done():
				return "", false
			}
		}
		if text, ok := e.generateOnce(ctx, gen, prompt, attempt); ok {
			return text, true
		}
	}
	return "", false
}

func (e *Engine) generateOnce(ctx context.Context, gen Generator, prompt string, attempt int) (string, bool) {
	callCtx, cancel := context.WithTimeout(ctx, e.cfg.CallTimeout)
	defer cancel()

	text, err := gen.Generate(callCtx, prompt)
	if err != nil {
		slog.Warn("Generation request failed", "attempt", attempt, "error", err)
		return "", false
	}
	return text, true
}

func missingFields(obj map[string]any, required []string) []string {
	missing := []string{}
	for _, field := range required {
		if _, ok := obj[field]; !ok {
			missing = append(missing, field)
		}
	}
	return missing
}

// decodeInto maps a loosely-typed extractor result onto a stage schema.
// Unknown fields are dropped, absent fields keep their zero value.
func decodeInto(obj map[string]any, out any) error {
	payload, err := json.Marshal(obj)
	if err != nil {
		return err
	}
	return json.Unmarshal(payload, out)
}

func mustJSON(v any) string {
	payload, err := json.Marshal(v)
	if err != nil {
		return "{}"
	}
	return string(payload)
}
