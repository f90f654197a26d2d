package app

import (
	"errors"
	"fmt"
)

var ErrEmptyInput = errors.New("input is empty")

// Kind classifies a failed run for callers deciding how to respond.
type Kind int

const (
	KindInvalidInput Kind = iota + 1
	KindScrape
	KindUpstreamTimeout
	KindUpstreamRejected
	KindNormalization
	KindValidation
	KindAssembly
	KindInternal
)

var kindNames = map[Kind]string{
	KindInvalidInput:     "invalid input",
	KindScrape:           "scrape",
	KindUpstreamTimeout:  "upstream timeout",
	KindUpstreamRejected: "upstream rejected",
	KindNormalization:    "normalization",
	KindValidation:       "validation",
	KindAssembly:         "assembly",
	KindInternal:         "internal",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Retryable reports whether repeating the same request may succeed.
func (k Kind) Retryable() bool {
	return k == KindUpstreamTimeout
}

type Stage string

const (
	StageInput              Stage = "input"
	StagePreparing          Stage = "preparing"
	StageScraping           Stage = "scraping"
	StageAwaitingModelReply Stage = "awaiting_model_reply"
	StageNormalizing        Stage = "normalizing"
	StageValidating         Stage = "validating"
	StageSynthesizing       Stage = "synthesizing"
	StageAssembling         Stage = "assembling"
	StageDone               Stage = "done"
)

// Error is the classified failure of a pipeline run.
type Error struct {
	Kind  Kind
	Stage Stage
	Err   error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s failed during %s: %v", e.Kind, e.Stage, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf returns the kind of a classified error and false for anything else.
func KindOf(err error) (Kind, bool) {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind, true
	}
	return 0, false
}
