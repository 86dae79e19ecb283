package domain

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ParseError reports a payload that could not be decoded in its declared
// format: a malformed archive, an unexpected column count, a truncated body.
type ParseError struct {
	Source SourceType
	// Line is the 1-based line of delimited input, 0 when not applicable.
	Line int
	Msg  string
	Err  error
}

func (e *ParseError) Error() string {
	s := fmt.Sprintf("parse %s", e.Source)
	if e.Line > 0 {
		s += fmt.Sprintf(" line %d", e.Line)
	}
	s += ": " + e.Msg
	if e.Err != nil {
		s += ": " + e.Err.Error()
	}
	return s
}

func (e *ParseError) Unwrap() error { return e.Err }

// SchemaError reports a record that is missing a required field, carries an
// undeclared field or holds a value of the wrong type.
type SchemaError struct {
	Source   SourceType
	EntityID string
	Field    string
	Msg      string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("schema %s entity=%q field=%q: %s", e.Source, e.EntityID, e.Field, e.Msg)
}

// RangeError reports a value outside the physically plausible band of its schema.
type RangeError struct {
	Source    SourceType
	EntityID  string
	Timestamp time.Time
	Value     float64
	Min, Max  float64
}

func (e *RangeError) Error() string {
	return fmt.Sprintf("range %s entity=%q at %s: value %g outside [%g, %g]",
		e.Source, e.EntityID, e.Timestamp.Format(time.RFC3339), e.Value, e.Min, e.Max)
}

// TimeOrderError reports a duplicate or non-increasing timestamp for one entity.
type TimeOrderError struct {
	EntityID  string
	Timestamp time.Time
	Previous  time.Time
}

func (e *TimeOrderError) Error() string {
	if e.Timestamp.Equal(e.Previous) {
		return fmt.Sprintf("time order entity=%q: duplicate timestamp %s",
			e.EntityID, e.Timestamp.Format(time.RFC3339))
	}
	return fmt.Sprintf("time order entity=%q: %s does not follow %s",
		e.EntityID, e.Timestamp.Format(time.RFC3339), e.Previous.Format(time.RFC3339))
}

// InsufficientDataError reports a training window with too few usable targets.
type InsufficientDataError struct {
	EntityID string
	Have     int
	Need     int
}

func (e *InsufficientDataError) Error() string {
	return fmt.Sprintf("insufficient data entity=%q: %d training points, need %d", e.EntityID, e.Have, e.Need)
}

// FitDivergenceError reports a hyperparameter search that did not converge
// within its iteration cap.
type FitDivergenceError struct {
	EntityID   string
	Iterations int
	GradNorm   float64
	Msg        string
}

func (e *FitDivergenceError) Error() string {
	s := fmt.Sprintf("fit diverged entity=%q after %d iterations (grad norm %.3g)", e.EntityID, e.Iterations, e.GradNorm)
	if e.Msg != "" {
		s += ": " + e.Msg
	}
	return s
}

// ErrorKind maps err to a stable label for metrics and run reports.
func ErrorKind(err error) string {
	var (
		parseErr   *ParseError
		schemaErr  *SchemaError
		rangeErr   *RangeError
		orderErr   *TimeOrderError
		insuffErr  *InsufficientDataError
		divergeErr *FitDivergenceError
	)
	switch {
	case err == nil:
		return ""
	case errors.As(err, &parseErr):
		return "parse"
	case errors.As(err, &schemaErr):
		return "schema"
	case errors.As(err, &rangeErr):
		return "range"
	case errors.As(err, &orderErr):
		return "time_order"
	case errors.As(err, &insuffErr):
		return "insufficient_data"
	case errors.As(err, &divergeErr):
		return "fit_divergence"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "canceled"
	default:
		return "other"
	}
}
