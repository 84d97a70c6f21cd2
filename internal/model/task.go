// Package model defines the records owned by the review subsystem.
package model

import "time"

// ContentType distinguishes post submissions from comment submissions.
type ContentType string

const (
	ContentPost    ContentType = "post"
	ContentComment ContentType = "comment"
)

// Valid reports whether c is a known content type.
func (c ContentType) Valid() bool {
	return c == ContentPost || c == ContentComment
}

// RiskLevel grades a verification outcome.
type RiskLevel string

const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

// CheckStatus is the state of a task's continuous check.
type CheckStatus string

const (
	CheckInactive CheckStatus = "inactive"
	CheckActive   CheckStatus = "active"
	CheckExpired  CheckStatus = "expired"
	CheckDeleted  CheckStatus = "deleted"
)

// CheckResult is the outcome recorded for one continuous check run.
type CheckResult string

const (
	CheckResultExists  CheckResult = "exists"
	CheckResultDeleted CheckResult = "deleted"
	CheckResultExpired CheckResult = "expired"
	CheckResultError   CheckResult = "error"
)

// MaxAttempts is the attempt cap for a review task.
const MaxAttempts = 2

// DeclaredMetadata is what the submitter claims about the content.
type DeclaredMetadata struct {
	Author        string `gorm:"size:128" json:"author,omitempty"`
	Title         string `gorm:"size:512" json:"title,omitempty"`
	CommentText   string `gorm:"size:2048" json:"commentText,omitempty"`
	CommentAuthor string `gorm:"size:128" json:"commentAuthor,omitempty"`
}

// CommentVerification is the presence check outcome for comment tasks.
type CommentVerification struct {
	Exists        bool   `json:"exists"`
	MatchedAuthor string `json:"matchedAuthor,omitempty"`
	Reason        string `json:"reason,omitempty"`
}

// VerificationResult is the engine verdict stored on the task.
type VerificationResult struct {
	Passed              bool                 `json:"passed"`
	Confidence          float64              `json:"confidence"`
	Reasons             []string             `json:"reasons"`
	RiskLevel           RiskLevel            `json:"riskLevel"`
	FailureKind         string               `json:"failureKind,omitempty"`
	ParsedAuthor        string               `json:"parsedAuthor,omitempty"`
	ParsedTitle         string               `json:"parsedTitle,omitempty"`
	KeywordScore        float64              `json:"keywordScore"`
	AuthorSimilarity    *float64             `json:"authorSimilarity,omitempty"`
	TitleSimilarity     *float64             `json:"titleSimilarity,omitempty"`
	CommentVerification *CommentVerification `json:"commentVerification,omitempty"`
	EvaluatedAt         time.Time            `json:"evaluatedAt"`
}

// ContinuousCheck tracks post-approval re-verification.
type ContinuousCheck struct {
	Enabled       bool        `gorm:"not null;default:false;index:idx_task_check_due,priority:2"`
	Status        CheckStatus `gorm:"size:16;not null;default:inactive;index:idx_task_check_due,priority:3"`
	NextCheckTime *time.Time  `gorm:"index:idx_task_check_due,priority:4"`
	LastCheckTime *time.Time
	// Runs counts completed check runs; updates are guarded on it.
	Runs int `gorm:"not null;default:0"`
}

// ReviewTask is one content submission.
type ReviewTask struct {
	ID           string           `gorm:"primaryKey;size:36"`
	SubmitterID  string           `gorm:"size:64;not null;index:idx_task_submitter_status,priority:1"`
	ContentType  ContentType      `gorm:"size:16;not null"`
	ExternalURL  string           `gorm:"size:2048;not null"`
	Declared     DeclaredMetadata `gorm:"embedded;embeddedPrefix:declared_"`
	SubmittedAt  time.Time        `gorm:"not null;index"`
	Status       Status           `gorm:"size:32;not null;index:idx_task_submitter_status,priority:2;index:idx_task_check_due,priority:1"`
	AttemptCount int              `gorm:"not null;default:1"`

	// ResolvedNickname is the author identity the gates evaluated: the
	// parsed author for posts, the matched commenter for comments.
	ResolvedNickname string              `gorm:"size:128;index"`
	Verification     *VerificationResult `gorm:"type:text"`
	RejectionReason  string              `gorm:"size:512"`

	Check        ContinuousCheck     `gorm:"embedded;embeddedPrefix:check_"`
	CheckHistory []CheckHistoryEntry `gorm:"foreignKey:TaskID;constraint:OnDelete:CASCADE"`
	AuditHistory []AuditEntry        `gorm:"foreignKey:TaskID;constraint:OnDelete:CASCADE"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

// AuditEntry is an append-only record of a decision on a task.
type AuditEntry struct {
	ID      uint   `gorm:"primaryKey"`
	TaskID  string `gorm:"size:36;not null;index"`
	Actor   string `gorm:"size:64;not null"`
	Action  string `gorm:"size:64;not null"`
	Comment string `gorm:"size:1024"`
	At      time.Time
}

// CheckHistoryEntry records one continuous check run.
type CheckHistoryEntry struct {
	ID     uint        `gorm:"primaryKey"`
	TaskID string      `gorm:"size:36;not null;index"`
	Result CheckResult `gorm:"size:16;not null"`
	Reward int64
	Detail string `gorm:"size:512"`
	At     time.Time
}
