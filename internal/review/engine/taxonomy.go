package engine

import (
	"context"
	"fmt"

	"github.com/gigshield/reviewcore/internal/errors"
	"github.com/gigshield/reviewcore/internal/model"
)

// FailureKind names why a review attempt did not pass. It drives the retry
// decision and is stored on the verification result.
type FailureKind string

const (
	KindSystemError              FailureKind = "system_error"
	KindContentParseFailed       FailureKind = "content_parse_failed"
	KindKeywordCheckFailed       FailureKind = "keyword_check_failed"
	KindContentMismatch          FailureKind = "content_mismatch"
	KindCommentNotFound          FailureKind = "comment_not_found"
	KindCommentVerificationError FailureKind = "comment_verification_error"
)

var retryableKinds = map[FailureKind]bool{
	KindSystemError:              true,
	KindContentParseFailed:       true,
	KindCommentVerificationError: true,
}

// Retryable reports whether the kind may be retried at all.
func (k FailureKind) Retryable() bool {
	return retryableKinds[k]
}

// ShouldRetry reports whether a failed attempt of task gets another attempt.
func ShouldRetry(task *model.ReviewTask, kind FailureKind) bool {
	return task.AttemptCount < model.MaxAttempts && kind.Retryable()
}

// Severity grades an error class for logging and the circuit breaker.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// ErrorClass is the closed set of failure classes. The zero value is
// ClassUnknown.
type ErrorClass int

const (
	ClassUnknown ErrorClass = iota
	ClassNetwork
	ClassParse
	ClassDatabase
	ClassService
	// ClassKeyword covers keyword and other business-rule rejections.
	ClassKeyword
)

type classInfo struct {
	name      string
	retryable bool
	severity  Severity
}

var classTable = [...]classInfo{
	ClassUnknown:  {"unknown_error", true, SeverityMedium},
	ClassNetwork:  {"network_error", true, SeverityMedium},
	ClassParse:    {"parse_error", true, SeverityHigh},
	ClassDatabase: {"database_error", false, SeverityCritical},
	ClassService:  {"service_error", true, SeverityHigh},
	ClassKeyword:  {"keyword_error", false, SeverityLow},
}

func (c ErrorClass) info() classInfo {
	if c < 0 || int(c) >= len(classTable) {
		return classTable[ClassUnknown]
	}
	return classTable[c]
}

func (c ErrorClass) String() string     { return c.info().name }
func (c ErrorClass) Retryable() bool    { return c.info().retryable }
func (c ErrorClass) Severity() Severity { return c.info().severity }

// Critical reports whether the class counts toward the circuit breaker.
func (c ErrorClass) Critical() bool { return c.info().severity == SeverityCritical }

// Classify maps an error onto the taxonomy using its category.
func Classify(err error) ErrorClass {
	var f *Failure
	switch {
	case err == nil:
		return ClassUnknown
	case errors.As(err, &f):
		return f.Class
	case errors.Is(err, context.DeadlineExceeded):
		return ClassNetwork
	case errors.IsCategory(err, errors.CategoryDatabase),
		errors.IsCategory(err, errors.CategoryLedger):
		return ClassDatabase
	case errors.IsCategory(err, errors.CategoryNetwork),
		errors.IsCategory(err, errors.CategoryTimeout):
		return ClassNetwork
	case errors.IsCategory(err, errors.CategoryContentParse):
		return ClassParse
	case errors.IsCategory(err, errors.CategoryVerifier):
		return ClassService
	case errors.IsCategory(err, errors.CategoryKeyword),
		errors.IsCategory(err, errors.CategoryGate):
		return ClassKeyword
	default:
		return ClassUnknown
	}
}

// Failure is a classified, human-readable reason an attempt did not pass.
type Failure struct {
	Kind   FailureKind
	Class  ErrorClass
	Risk   model.RiskLevel
	Reason string
	Err    error
}

func (f *Failure) Error() string {
	if f.Err != nil {
		return fmt.Sprintf("%s: %s: %v", f.Kind, f.Reason, f.Err)
	}
	return fmt.Sprintf("%s: %s", f.Kind, f.Reason)
}

func (f *Failure) Unwrap() error { return f.Err }

// Retryable reports whether the failure kind may be retried.
func (f *Failure) Retryable() bool { return f.Kind.Retryable() }
