package validation

import "github.com/aurelienbran/docproc/internal/docmodel"

// ReprocessPlan is the next attempt's engine choice and DPI adjustment,
// decided by Reprocessor.Plan.
type ReprocessPlan struct {
	Engine        string
	DPIMultiplier float64
	AttemptIndex  int
}

// Reprocessor decides whether and how to retry a low-confidence attempt.
// SpecializedEngines names engines that, once used for a given content type,
// are preserved across retries instead of being swapped out (e.g. a
// formula-specialized engine keeps handling formula-heavy documents).
type Reprocessor struct {
	MaxAttempts        int // default 3, stop reprocessing beyond this
	EngineFallbackChain []string
	SpecializedEngines map[string]string // content type -> engine name to preserve
}

// Plan returns the next attempt's plan, or ok=false when max attempts have
// been exhausted.
func (r *Reprocessor) Plan(attempts []docmodel.Attempt, criticalContentTypes []string) (ReprocessPlan, bool) {
	maxAttempts := r.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	if len(attempts) >= maxAttempts {
		return ReprocessPlan{}, false
	}

	for _, contentType := range criticalContentTypes {
		if engine, ok := r.SpecializedEngines[contentType]; ok {
			return ReprocessPlan{
				Engine:        engine,
				DPIMultiplier: dpiMultiplier(len(attempts)),
				AttemptIndex:  len(attempts),
			}, true
		}
	}

	lastEngine := ""
	if len(attempts) > 0 {
		chain := attempts[len(attempts)-1].EngineChain
		if len(chain) > 0 {
			lastEngine = chain[len(chain)-1]
		}
	}

	return ReprocessPlan{
		Engine:        nextEngine(r.EngineFallbackChain, lastEngine),
		DPIMultiplier: dpiMultiplier(len(attempts)),
		AttemptIndex:  len(attempts),
	}, true
}

// nextEngine switches away from lastEngine to the next entry in chain,
// wrapping around; an empty chain keeps lastEngine, and a lastEngine not in
// chain yields chain's first engine.
func nextEngine(chain []string, lastEngine string) string {
	if len(chain) == 0 {
		return lastEngine
	}
	for i, engine := range chain {
		if engine == lastEngine {
			return chain[(i+1)%len(chain)]
		}
	}
	return chain[0]
}

// dpiMultiplier bumps source resolution by 50% per retry, capped at 3x.
func dpiMultiplier(attemptCount int) float64 {
	m := 1.0 + 0.5*float64(attemptCount)
	if m > 3.0 {
		m = 3.0
	}
	return m
}

// BestAttempt selects the attempt with the highest overall confidence,
// preferring the most recent on a tie.
func BestAttempt(attempts []docmodel.Attempt) (docmodel.Attempt, bool) {
	if len(attempts) == 0 {
		return docmodel.Attempt{}, false
	}
	best := attempts[0]
	for _, a := range attempts[1:] {
		if a.OverallConfidence() >= best.OverallConfidence() {
			best = a
		}
	}
	return best, true
}
