// Package analysis turns a job's units into one AggregateResult: per-unit
// provider calls in throttled batches, one summarization call, and
// well-formed fallbacks wherever a provider answer is unusable.
package analysis

import (
	"fmt"
	"math"
	"strings"
)

// Unit is one independently analyzed piece of a job (a page).
type Unit struct {
	Index int    // position within the job, 0-based
	Page  int    // source page number, informational
	Asset string // image reference handed to the vision provider
	Found bool   // false when the locator could not find Asset
}

type Element struct {
	Kind        string `json:"kind"`
	Description string `json:"description"`
}

type UnitResult struct {
	Content    string    `json:"content"`
	Elements   []Element `json:"elements"`
	Concepts   []string  `json:"concepts"`
	Confidence float64   `json:"confidence"`
	Fallback   bool      `json:"fallback,omitempty"`
}

type Term struct {
	Term       string `json:"term"`
	Definition string `json:"definition"`
}

type PracticeItem struct {
	Prompt string `json:"prompt"`
	Answer string `json:"answer"`
}

type ConceptBreakdown struct {
	Primary    []string `json:"primary"`
	Supporting []string `json:"supporting"`
}

// AggregateResult is the cached artifact for one job. After Normalize no
// slice is nil, whichever path built it.
type AggregateResult struct {
	Overview      string           `json:"overview"`
	Vocabulary    []Term           `json:"vocabulary"`
	Practice      []PracticeItem   `json:"practice"`
	Concepts      ConceptBreakdown `json:"concepts"`
	TeachingNotes []string         `json:"teaching_notes"`
	Units         []UnitResult     `json:"units"`
	Degraded      bool             `json:"degraded,omitempty"`
}

// Normalize fills nil slices and clamps confidence to [0,1].
func (r *UnitResult) Normalize() {
	if r.Elements == nil {
		r.Elements = []Element{}
	}
	if r.Concepts == nil {
		r.Concepts = []string{}
	}
	switch {
	case math.IsNaN(r.Confidence) || r.Confidence < 0:
		r.Confidence = 0
	case r.Confidence > 1:
		r.Confidence = 1
	}
}

func (r UnitResult) Validate() error {
	if strings.TrimSpace(r.Content) == "" {
		return fmt.Errorf("%w: unit content is empty", ErrInvalidShape)
	}
	return nil
}

func (r *AggregateResult) Normalize() {
	if r.Vocabulary == nil {
		r.Vocabulary = []Term{}
	}
	if r.Practice == nil {
		r.Practice = []PracticeItem{}
	}
	if r.Concepts.Primary == nil {
		r.Concepts.Primary = []string{}
	}
	if r.Concepts.Supporting == nil {
		r.Concepts.Supporting = []string{}
	}
	if r.TeachingNotes == nil {
		r.TeachingNotes = []string{}
	}
	if r.Units == nil {
		r.Units = []UnitResult{}
	}
	for i := range r.Units {
		r.Units[i].Normalize()
	}
}

func (r AggregateResult) Validate() error {
	if strings.TrimSpace(r.Overview) == "" {
		return fmt.Errorf("%w: aggregate overview is empty", ErrInvalidShape)
	}
	return nil
}

// FallbackCount reports how many units were substituted.
func (r AggregateResult) FallbackCount() int {
	n := 0
	for _, u := range r.Units {
		if u.Fallback {
			n++
		}
	}
	return n
}
