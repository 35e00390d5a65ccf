package analysis

import (
	"context"
	"errors"
	"fmt"

	ac "github.com/unkn0wn-root/analysiscache"
	"github.com/unkn0wn-root/analysiscache/llm"
)

// UnitInstruction is the fixed instruction sent with every page image.
const UnitInstruction = `Analyze this lesson page image. Respond with a single JSON object and nothing else:
{"content": "<the page's instructional content as plain text>",
 "elements": [{"kind": "<diagram|table|graph|equation|example|exercise>", "description": "<what it shows>"}],
 "concepts": ["<concept taught on the page>"],
 "confidence": <0.0-1.0, how legible and complete the page was>}`

// MissingInputError marks a unit whose asset could not be located.
type MissingInputError struct {
	Index int
	Asset string
}

func (e *MissingInputError) Error() string {
	return fmt.Sprintf("analysis: asset for unit %d not found (%q)", e.Index, e.Asset)
}

// Analyzer analyzes one unit and never fails; BatchAnalyzer drives it.
type Analyzer interface {
	Analyze(ctx context.Context, u Unit) UnitResult
}

type UnitOptions struct {
	Instruction string         // default UnitInstruction
	Fallback    FallbackPolicy // default DefaultFallback
	Logger      ac.Logger
	Events      Events
}

// UnitAnalyzer calls the vision provider for one unit. Every failure mode
// (missing asset, provider error, unusable answer) becomes Fallback.Unit.
type UnitAnalyzer struct {
	provider    llm.VisionProvider
	instruction string
	fallback    FallbackPolicy
	log         ac.Logger
	events      Events
}

var _ Analyzer = (*UnitAnalyzer)(nil)

func NewUnitAnalyzer(p llm.VisionProvider, opts UnitOptions) *UnitAnalyzer {
	a := &UnitAnalyzer{
		provider:    p,
		instruction: opts.Instruction,
		fallback:    opts.Fallback,
		log:         opts.Logger,
		events:      opts.Events,
	}
	if a.instruction == "" {
		a.instruction = UnitInstruction
	}
	if a.fallback == nil {
		a.fallback = DefaultFallback{}
	}
	if a.log == nil {
		a.log = ac.NopLogger{}
	}
	if a.events == nil {
		a.events = NopEvents{}
	}
	return a
}

func (a *UnitAnalyzer) Analyze(ctx context.Context, u Unit) UnitResult {
	if !u.Found || u.Asset == "" {
		err := &MissingInputError{Index: u.Index, Asset: u.Asset}
		a.log.Warn("unit asset missing", ac.Fields{"unit": u.Index, "page": u.Page, "asset": u.Asset})
		return a.degrade(u, err)
	}

	text, err := a.provider.Describe(ctx, a.instruction, u.Asset)
	if err != nil {
		a.log.Warn("unit provider call failed", ac.Fields{"unit": u.Index, "page": u.Page, "err": err})
		return a.degrade(u, err)
	}

	r, err := Decode[UnitResult](text)
	if err != nil {
		lvl := a.log.Warn
		if errors.Is(err, ErrRefusal) {
			lvl = a.log.Info
		}
		lvl("unit response unusable", ac.Fields{"unit": u.Index, "page": u.Page, "err": err})
		return a.degrade(u, err)
	}
	r.Fallback = false
	r.Normalize()
	return r
}

func (a *UnitAnalyzer) degrade(u Unit, reason error) UnitResult {
	a.events.UnitFallback(u.Index, reason)
	r := a.fallback.Unit(u, reason)
	r.Normalize()
	return r
}
