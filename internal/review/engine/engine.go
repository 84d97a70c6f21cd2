// Package engine is the verification and decision engine: it runs one review
// attempt against the content verifier and turns the answers into a scored
// verdict with structured reasons.
package engine

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/gigshield/reviewcore/internal/conf"
	"github.com/gigshield/reviewcore/internal/logger"
	"github.com/gigshield/reviewcore/internal/model"
	"github.com/gigshield/reviewcore/internal/review/textnorm"
	"github.com/gigshield/reviewcore/internal/verifier"
)

// Confidence model for post and comment verdicts.
const (
	baseConfidence       = 0.4
	similarityConfidence = 0.4
	boostConfidence      = 0.2

	declaredAuthorConfidence = 0.9
	deviceAuthorConfidence   = 0.8
)

// Config holds the decision thresholds.
type Config struct {
	ConfidenceThreshold float64
	KeywordThreshold    float64
	MismatchThreshold   float64 // any present field below this fails
	BoostThreshold      float64 // both fields at or above this boost confidence
	AttemptDelays       []time.Duration
}

// DefaultConfig returns the production thresholds.
func DefaultConfig() Config {
	return Config{
		ConfidenceThreshold: 0.70,
		KeywordThreshold:    1.5,
		MismatchThreshold:   30,
		BoostThreshold:      80,
		AttemptDelays:       []time.Duration{time.Second, 2 * time.Second},
	}
}

// ConfigFromSettings maps engine settings onto Config.
func ConfigFromSettings(s *conf.EngineSettings) Config {
	return Config{
		ConfidenceThreshold: s.ConfidenceThreshold,
		KeywordThreshold:    s.KeywordThreshold,
		MismatchThreshold:   s.MismatchThreshold,
		BoostThreshold:      s.BoostThreshold,
		AttemptDelays:       []time.Duration{s.FirstAttemptDelay, s.SecondAttemptDelay},
	}
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock replaces time.Now.
func WithClock(c Clock) Option { return func(e *Engine) { e.now = c } }

// WithSleeper replaces the timing gate's sleep.
func WithSleeper(s Sleeper) Option { return func(e *Engine) { e.sleep = s } }

// Engine evaluates review attempts. Safe for concurrent use.
type Engine struct {
	verifier verifier.Verifier
	keywords *KeywordMatcher
	cfg      Config
	now      Clock
	sleep    Sleeper
	log      logger.Logger
}

// New creates an engine.
func New(v verifier.Verifier, keywords *KeywordMatcher, cfg Config, opts ...Option) *Engine {
	e := &Engine{
		verifier: v,
		keywords: keywords,
		cfg:      cfg,
		now:      time.Now,
		sleep:    SleepContext,
		log:      GetLogger(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Outcome is the verdict of one attempt.
type Outcome struct {
	Result model.VerificationResult
	// Failure is nil when the attempt passed.
	Failure *Failure
	// ResolvedNickname is the author identity the gates evaluate: the
	// published author of a post or the matched commenter of a comment.
	ResolvedNickname string
}

// Passed reports whether the attempt passed.
func (o Outcome) Passed() bool { return o.Failure == nil }

// Evaluate runs one attempt for task. candidates are the submitter's device
// nicknames, consulted for comment tasks.
func (e *Engine) Evaluate(ctx context.Context, task *model.ReviewTask, candidates []string) Outcome {
	log := e.log.With(
		logger.String("task_id", task.ID),
		logger.Int("attempt", task.AttemptCount),
		logger.String("content_type", string(task.ContentType)))

	var res model.VerificationResult

	if waited, err := e.waitForAttempt(ctx, task.SubmittedAt, task.AttemptCount); err != nil {
		return e.fail(res, &Failure{
			Kind:   KindSystemError,
			Class:  ClassNetwork,
			Risk:   model.RiskMedium,
			Reason: "review attempt cancelled during the publication delay",
			Err:    err,
		})
	} else if waited > 0 {
		log.Debug("timing gate held attempt", logger.Duration("waited", waited))
	}

	url := task.ExternalURL
	validation, err := e.verifier.ValidateURL(ctx, url)
	if err != nil {
		return e.fail(res, &Failure{
			Kind:   KindSystemError,
			Class:  serviceClass(err),
			Risk:   model.RiskMedium,
			Reason: fmt.Sprintf("url validation unavailable for %s", url),
			Err:    err,
		})
	}
	if !validation.Valid {
		return e.fail(res, &Failure{
			Kind:   KindSystemError,
			Class:  ClassService,
			Risk:   model.RiskMedium,
			Reason: fmt.Sprintf("url validation failed for %s: %s", url, orDefault(validation.Reason, "content is not publicly reachable")),
		})
	}

	parsed, err := e.verifier.ParseContent(ctx, url)
	if err != nil {
		kind, class := KindSystemError, serviceClass(err)
		if class == ClassParse {
			kind = KindContentParseFailed
		}
		return e.fail(res, &Failure{
			Kind:   kind,
			Class:  class,
			Risk:   model.RiskMedium,
			Reason: fmt.Sprintf("content parse failed for %s", url),
			Err:    err,
		})
	}
	res.ParsedAuthor = parsed.Author
	res.ParsedTitle = parsed.Title
	if task.ContentType == model.ContentPost && parsed.Empty() {
		return e.fail(res, &Failure{
			Kind:   KindContentParseFailed,
			Class:  ClassParse,
			Risk:   model.RiskMedium,
			Reason: fmt.Sprintf("content parse failed for %s: no author or title found", url),
		})
	}

	score, matches := e.keywords.Match(KeywordSources{
		Title:       parsed.Title,
		Description: parsed.Description,
		Body:        parsed.Body,
	})
	res.KeywordScore = round3(score)
	if score < e.cfg.KeywordThreshold {
		return e.fail(res, &Failure{
			Kind:   KindKeywordCheckFailed,
			Class:  ClassKeyword,
			Risk:   model.RiskMedium,
			Reason: fmt.Sprintf("keyword check failed for %s: score %.2f below %.2f", url, score, e.cfg.KeywordThreshold),
		})
	}
	res.Reasons = append(res.Reasons, fmt.Sprintf("keyword score %.2f (%s)", score, describeMatches(matches)))

	var out Outcome
	switch task.ContentType {
	case model.ContentPost:
		out = e.evaluatePost(task, parsed, res)
	case model.ContentComment:
		out = e.evaluateComment(ctx, task, candidates, res)
	default:
		return e.fail(res, &Failure{
			Kind:   KindSystemError,
			Class:  ClassUnknown,
			Risk:   model.RiskMedium,
			Reason: fmt.Sprintf("unsupported content type %q", task.ContentType),
		})
	}

	if out.Passed() {
		log.Info("review attempt passed",
			logger.Float64("confidence", out.Result.Confidence),
			logger.String("risk", string(out.Result.RiskLevel)))
	} else {
		log.Info("review attempt failed",
			logger.String("kind", string(out.Failure.Kind)),
			logger.String("class", out.Failure.Class.String()),
			logger.String("reason", out.Failure.Reason))
	}
	return out
}

func (e *Engine) evaluatePost(task *model.ReviewTask, parsed verifier.ParsedContent, res model.VerificationResult) Outcome {
	url := task.ExternalURL
	type field struct {
		name, declared, published string
		sim                       *float64
	}
	var fields []field
	if task.Declared.Author != "" {
		s := round3(Similarity(task.Declared.Author, parsed.Author))
		res.AuthorSimilarity = &s
		fields = append(fields, field{"author", task.Declared.Author, parsed.Author, &s})
	}
	if task.Declared.Title != "" {
		s := round3(Similarity(task.Declared.Title, parsed.Title))
		res.TitleSimilarity = &s
		fields = append(fields, field{"title", task.Declared.Title, parsed.Title, &s})
	}
	if len(fields) == 0 {
		return e.fail(res, &Failure{
			Kind:   KindContentMismatch,
			Class:  ClassKeyword,
			Risk:   model.RiskHigh,
			Reason: fmt.Sprintf("content mismatch for %s: no declared author or title", url),
		})
	}

	var sum float64
	boosted := len(fields) == 2
	for _, f := range fields {
		if *f.sim < e.cfg.MismatchThreshold {
			return e.fail(res, &Failure{
				Kind:  KindContentMismatch,
				Class: ClassKeyword,
				Risk:  model.RiskHigh,
				Reason: fmt.Sprintf("content mismatch for %s: declared %s %q does not match published %q (similarity %.0f)",
					url, f.name, f.declared, f.published, *f.sim),
			})
		}
		if *f.sim < e.cfg.BoostThreshold {
			boosted = false
		}
		sum += *f.sim
		res.Reasons = append(res.Reasons, fmt.Sprintf("%s similarity %.0f", f.name, *f.sim))
	}

	confidence := baseConfidence + similarityConfidence*(sum/float64(len(fields)))/100
	risk := model.RiskMedium
	if boosted {
		confidence += boostConfidence
		risk = model.RiskLow
		res.Reasons = append(res.Reasons, "author and title both closely match")
	}
	res.Confidence = round3(math.Min(confidence, 1))

	if res.Confidence < e.cfg.ConfidenceThreshold {
		return e.fail(res, &Failure{
			Kind:   KindContentMismatch,
			Class:  ClassKeyword,
			Risk:   model.RiskMedium,
			Reason: fmt.Sprintf("content mismatch for %s: confidence %.2f below %.2f", url, res.Confidence, e.cfg.ConfidenceThreshold),
		})
	}
	return e.pass(res, risk, parsed.Author)
}

func (e *Engine) evaluateComment(ctx context.Context, task *model.ReviewTask, candidates []string, res model.VerificationResult) Outcome {
	url := task.ExternalURL
	authors := candidateAuthors(task.Declared.CommentAuthor, candidates)

	presence, err := e.verifier.VerifyCommentPresence(ctx, url, task.Declared.CommentText, authors)
	if err != nil {
		return e.fail(res, &Failure{
			Kind:   KindCommentVerificationError,
			Class:  serviceClass(err),
			Risk:   model.RiskMedium,
			Reason: fmt.Sprintf("comment verification unavailable for %s", url),
			Err:    err,
		})
	}
	res.CommentVerification = &model.CommentVerification{
		Exists:        presence.Exists,
		MatchedAuthor: presence.MatchedAuthor,
		Reason:        presence.Reason,
	}
	if !presence.Exists {
		reason := fmt.Sprintf("comment not found on %s for %s", url, strings.Join(authors, ", "))
		if presence.Reason != "" {
			reason += ": " + presence.Reason
		}
		return e.fail(res, &Failure{
			Kind:   KindCommentNotFound,
			Class:  ClassKeyword,
			Risk:   model.RiskHigh,
			Reason: reason,
		})
	}

	matched := orDefault(presence.MatchedAuthor, task.Declared.CommentAuthor)
	res.Confidence = deviceAuthorConfidence
	if textnorm.Fold(matched) == textnorm.Fold(task.Declared.CommentAuthor) {
		res.Confidence = declaredAuthorConfidence
	}
	res.Reasons = append(res.Reasons, fmt.Sprintf("comment found by %s", matched))

	if res.Confidence < e.cfg.ConfidenceThreshold {
		return e.fail(res, &Failure{
			Kind:   KindContentMismatch,
			Class:  ClassKeyword,
			Risk:   model.RiskMedium,
			Reason: fmt.Sprintf("comment on %s by %s: confidence %.2f below %.2f", url, matched, res.Confidence, e.cfg.ConfidenceThreshold),
		})
	}
	return e.pass(res, model.RiskLow, matched)
}

func (e *Engine) pass(res model.VerificationResult, risk model.RiskLevel, nickname string) Outcome {
	res.Passed = true
	res.RiskLevel = risk
	res.EvaluatedAt = e.now().UTC()
	return Outcome{Result: res, ResolvedNickname: nickname}
}

func (e *Engine) fail(res model.VerificationResult, f *Failure) Outcome {
	res.Passed = false
	res.RiskLevel = f.Risk
	res.FailureKind = string(f.Kind)
	res.Reasons = append(res.Reasons, f.Reason)
	res.EvaluatedAt = e.now().UTC()
	return Outcome{Result: res, Failure: f}
}

// serviceClass classifies a verifier error; unclassified verifier errors
// count as service errors.
func serviceClass(err error) ErrorClass {
	if c := Classify(err); c != ClassUnknown {
		return c
	}
	return ClassService
}

// candidateAuthors puts the declared author first and drops duplicates.
func candidateAuthors(declared string, devices []string) []string {
	out := make([]string, 0, len(devices)+1)
	seen := make(map[string]bool, len(devices)+1)
	for _, name := range append([]string{declared}, devices...) {
		key := textnorm.Fold(name)
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, strings.TrimSpace(name))
	}
	return out
}

func describeMatches(matches []KeywordMatch) string {
	parts := make([]string, 0, len(matches))
	for _, m := range matches {
		kind := "fuzzy"
		if m.Exact {
			kind = "exact"
		}
		parts = append(parts, fmt.Sprintf("%s in %s, %s", m.Keyword, m.Source, kind))
	}
	return strings.Join(parts, "; ")
}

func orDefault(s, def string) string {
	if strings.TrimSpace(s) == "" {
		return def
	}
	return s
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}
