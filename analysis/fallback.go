package analysis

import "fmt"

// FallbackPolicy builds degraded but well-formed results. There is no job
// level: a job that cannot be resolved is an error, not a result.
type FallbackPolicy interface {
	Unit(u Unit, reason error) UnitResult
	Aggregate(results []UnitResult) AggregateResult
}

const FallbackConfidence = 0.5

// DefaultFallback is the stock policy.
type DefaultFallback struct{}

var _ FallbackPolicy = DefaultFallback{}

func (DefaultFallback) Unit(u Unit, _ error) UnitResult {
	return UnitResult{
		Content:    fmt.Sprintf("analysis unavailable for unit %d", u.Index),
		Elements:   []Element{},
		Concepts:   []string{},
		Confidence: FallbackConfidence,
		Fallback:   true,
	}
}

func (DefaultFallback) Aggregate(results []UnitResult) AggregateResult {
	concepts := dedupeConcepts(results)

	vocab := make([]Term, 0, 5)
	for _, c := range concepts {
		if len(vocab) == 5 {
			break
		}
		vocab = append(vocab, Term{Term: c, Definition: "Key idea identified in this lesson's pages."})
	}
	if len(vocab) == 0 {
		vocab = append(vocab, Term{Term: "key concept", Definition: "Review the lesson pages for the terms introduced."})
	}

	primary, supporting := concepts, []string{}
	if len(concepts) > 3 {
		primary, supporting = concepts[:3], concepts[3:]
	}
	if len(primary) == 0 {
		primary = []string{"lesson review"}
	}

	units := append([]UnitResult(nil), results...)
	r := AggregateResult{
		Overview:   fmt.Sprintf("An automated summary is not available right now. The lesson covers %d page(s); see the page analyses below.", len(results)),
		Vocabulary: vocab,
		Practice: []PracticeItem{
			{Prompt: "Explain the main idea of this lesson in your own words.", Answer: ""},
			{Prompt: "Work one example from the lesson and describe each step.", Answer: ""},
		},
		Concepts:      ConceptBreakdown{Primary: primary, Supporting: supporting},
		TeachingNotes: []string{"Summary generated without the aggregation provider; verify against the source pages."},
		Units:         units,
		Degraded:      true,
	}
	r.Normalize()
	return r
}
