// Package lesson maps lesson jobs onto page units: it names jobs, resolves
// them against a document catalog and locates each page's image.
package lesson

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/unkn0wn-root/analysiscache/analysis"
	"github.com/unkn0wn-root/analysiscache/internal/util"
)

// TypeVision is the job type of a per-lesson vision analysis.
const TypeVision = "lesson_vision_analysis"

// ErrJobNotFound means the job cannot be resolved to any units. It is a hard
// error: nothing is generated and nothing is cached.
var ErrJobNotFound = errors.New("lesson: job not found")

// JobID identifies one analysis job.
type JobID struct {
	Type       string
	DocumentID string
	Number     int
}

// NewJobID returns a vision-analysis job for lesson n of document doc.
func NewJobID(doc string, n int) JobID {
	return JobID{Type: TypeVision, DocumentID: doc, Number: n}
}

// Key is the cache key: "<type>:<document>:<number>".
func (j JobID) Key() string {
	t := j.Type
	if t == "" {
		t = TypeVision
	}
	return util.Key(t, j.DocumentID, strconv.Itoa(j.Number))
}

func (j JobID) String() string { return j.DocumentID + ":" + strconv.Itoa(j.Number) }

// ParseJobID accepts "<document>:<number>" or a full vision cache key.
func ParseJobID(s string) (JobID, error) {
	parts := strings.Split(s, ":")
	switch len(parts) {
	case 2:
	case 3:
		if parts[0] != TypeVision {
			return JobID{}, fmt.Errorf("lesson: job id %q has unsupported type %q", s, parts[0])
		}
		parts = parts[1:]
	default:
		return JobID{}, fmt.Errorf("lesson: malformed job id %q", s)
	}
	if parts[0] == "" {
		return JobID{}, fmt.Errorf("lesson: job id %q has no document", s)
	}
	n, err := strconv.Atoi(parts[1])
	if err != nil || n <= 0 {
		return JobID{}, fmt.Errorf("lesson: job id %q has invalid lesson number", s)
	}
	return NewJobID(parts[0], n), nil
}

// JobError explains why a job could not be resolved. It matches ErrJobNotFound.
type JobError struct {
	ID     JobID
	Reason string
}

func (e *JobError) Error() string {
	return fmt.Sprintf("lesson: job %s: %s", e.ID, e.Reason)
}

func (e *JobError) Unwrap() error { return ErrJobNotFound }

// Job is a resolved job: its pages as ordered units.
type Job struct {
	ID       JobID
	Title    string
	Document string
	Units    []analysis.Unit
}

// Missing counts units whose asset was not found.
func (j Job) Missing() int {
	n := 0
	for _, u := range j.Units {
		if !u.Found {
			n++
		}
	}
	return n
}
