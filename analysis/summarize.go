package analysis

import (
	"context"
	"errors"
	"fmt"
	"strings"

	ac "github.com/unkn0wn-root/analysiscache"
	"github.com/unkn0wn-root/analysiscache/llm"
)

// DefaultMaxInput caps, in characters, the content handed to the summarizer.
const DefaultMaxInput = 6000

const SummaryInstruction = `You are given the page-by-page analysis of one lesson. Respond with a single JSON object and nothing else:
{"overview": "<2-4 sentence summary of the lesson>",
 "vocabulary": [{"term": "...", "definition": "..."}],
 "practice": [{"prompt": "<practice problem>", "answer": "<expected answer>"}],
 "concepts": {"primary": ["..."], "supporting": ["..."]},
 "teaching_notes": ["<note for the teacher>"]}`

type SummaryOptions struct {
	Instruction string
	MaxInput    int // characters; default DefaultMaxInput
	Fallback    FallbackPolicy
	Logger      ac.Logger
	Events      Events
}

// Summarizer makes the single aggregation call for a job.
type Summarizer struct {
	provider    llm.TextProvider
	instruction string
	maxInput    int
	fallback    FallbackPolicy
	log         ac.Logger
	events      Events
}

func NewSummarizer(p llm.TextProvider, opts SummaryOptions) *Summarizer {
	s := &Summarizer{
		provider:    p,
		instruction: opts.Instruction,
		maxInput:    opts.MaxInput,
		fallback:    opts.Fallback,
		log:         opts.Logger,
		events:      opts.Events,
	}
	if s.instruction == "" {
		s.instruction = SummaryInstruction
	}
	if s.maxInput <= 0 {
		s.maxInput = DefaultMaxInput
	}
	if s.fallback == nil {
		s.fallback = DefaultFallback{}
	}
	if s.log == nil {
		s.log = ac.NopLogger{}
	}
	if s.events == nil {
		s.events = NopEvents{}
	}
	return s
}

// Summarize never fails. The returned Units are always results, in order;
// the provider does not get a say in them.
func (s *Summarizer) Summarize(ctx context.Context, results []UnitResult, content string) AggregateResult {
	input := BuildSummaryInput(results, content, s.maxInput)

	text, err := s.provider.Complete(ctx, s.instruction, input)
	if err != nil {
		s.log.Warn("summary provider call failed", ac.Fields{"err": err})
		return s.degrade(results, err)
	}

	r, err := Decode[AggregateResult](text)
	if err != nil {
		lvl := s.log.Warn
		if errors.Is(err, ErrRefusal) {
			lvl = s.log.Info
		}
		lvl("summary response unusable", ac.Fields{"err": err})
		return s.degrade(results, err)
	}

	r.Units = append([]UnitResult(nil), results...)
	r.Degraded = false
	r.Normalize()
	return r
}

func (s *Summarizer) degrade(results []UnitResult, reason error) AggregateResult {
	s.events.AggregateFallback(reason)
	r := s.fallback.Aggregate(results)
	r.Normalize()
	return r
}

// BuildSummaryInput caps content at limit characters and appends the
// deduplicated concept list.
func BuildSummaryInput(results []UnitResult, content string, limit int) string {
	var b strings.Builder
	b.WriteString("Lesson content:\n")
	b.WriteString(Truncate(content, limit))
	if concepts := dedupeConcepts(results); len(concepts) > 0 {
		b.WriteString("\n\nConcepts identified: ")
		b.WriteString(strings.Join(concepts, ", "))
	}
	return b.String()
}

// ConcatContent joins unit contents as "Page N: ..." blocks, N 1-based.
func ConcatContent(results []UnitResult) string {
	parts := make([]string, 0, len(results))
	for i, r := range results {
		parts = append(parts, fmt.Sprintf("Page %d: %s", i+1, r.Content))
	}
	return strings.Join(parts, "\n\n")
}

// Truncate returns at most limit runes of s.
func Truncate(s string, limit int) string {
	if limit <= 0 {
		return s
	}
	n := 0
	for i := range s {
		if n == limit {
			return s[:i]
		}
		n++
	}
	return s
}

// dedupeConcepts keeps first occurrences, comparing case-insensitively.
func dedupeConcepts(results []UnitResult) []string {
	seen := make(map[string]struct{})
	out := []string{}
	for _, r := range results {
		for _, c := range r.Concepts {
			c = strings.TrimSpace(c)
			k := strings.ToLower(c)
			if c == "" {
				continue
			}
			if _, ok := seen[k]; ok {
				continue
			}
			seen[k] = struct{}{}
			out = append(out, c)
		}
	}
	return out
}
