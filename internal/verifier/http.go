package verifier

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"

	"github.com/antonholmquist/jason"
	"github.com/k3a/html2text"

	"github.com/gigshield/reviewcore/internal/conf"
	"github.com/gigshield/reviewcore/internal/errors"
	"github.com/gigshield/reviewcore/internal/httpclient"
	"github.com/gigshield/reviewcore/internal/logger"
)

const componentName = "verifier"

// HTTPVerifier talks to the scraping service over its JSON API:
//
//	POST /v1/validate         {url}                    -> {valid, reason}
//	POST /v1/parse            {url}                    -> {author, title, description, body}
//	POST /v1/comments/verify  {url, text, candidates}  -> {exists, matchedAuthor, reason}
//	POST /v1/exists           {url}                    -> {exists}
//
// description and body are HTML and are flattened to text.
type HTTPVerifier struct {
	baseURL string
	client  *httpclient.Client
	log     logger.Logger
}

var _ Verifier = (*HTTPVerifier)(nil)

// NewHTTPVerifier builds a verifier from settings with its own HTTP client.
func NewHTTPVerifier(settings *conf.VerifierSettings) *HTTPVerifier {
	client := httpclient.New(&httpclient.Config{
		Timeout:   settings.Timeout,
		UserAgent: settings.UserAgent,
		APIKey:    settings.APIKey,
		RateLimit: settings.RateLimit,
		Burst:     settings.Burst,
	})
	return NewHTTPVerifierWithClient(settings.BaseURL, client)
}

// NewHTTPVerifierWithClient builds a verifier on an existing client.
func NewHTTPVerifierWithClient(baseURL string, client *httpclient.Client) *HTTPVerifier {
	return &HTTPVerifier{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  client,
		log:     GetLogger(),
	}
}

// Client returns the underlying HTTP client.
func (v *HTTPVerifier) Client() *httpclient.Client {
	return v.client
}

// ValidateURL checks the URL locally, then asks the service whether it
// resolves to live, public content.
func (v *HTTPVerifier) ValidateURL(ctx context.Context, rawURL string) (URLValidation, error) {
	if reason := checkURLSyntax(rawURL); reason != "" {
		return URLValidation{Valid: false, Reason: reason}, nil
	}

	obj, err := v.call(ctx, "validate", "/v1/validate", map[string]any{"url": rawURL})
	if err != nil {
		return URLValidation{}, err
	}
	valid, err := obj.GetBoolean("valid")
	if err != nil {
		return URLValidation{}, parseError(err, "validate", "valid")
	}
	reason, _ := obj.GetString("reason")
	return URLValidation{Valid: valid, Reason: reason}, nil
}

// ParseContent fetches author, title and text of a post.
func (v *HTTPVerifier) ParseContent(ctx context.Context, rawURL string) (ParsedContent, error) {
	obj, err := v.call(ctx, "parse", "/v1/parse", map[string]any{"url": rawURL})
	if err != nil {
		return ParsedContent{}, err
	}

	author, _ := obj.GetString("author")
	title, _ := obj.GetString("title")
	description, _ := obj.GetString("description")
	body, _ := obj.GetString("body")

	return ParsedContent{
		Author:      strings.TrimSpace(author),
		Title:       strings.TrimSpace(title),
		Description: flatten(description),
		Body:        flatten(body),
	}, nil
}

// VerifyCommentPresence asks whether text is present under the post,
// written by one of candidateAuthors when any are given.
func (v *HTTPVerifier) VerifyCommentPresence(ctx context.Context, rawURL, text string, candidateAuthors []string) (CommentPresence, error) {
	if candidateAuthors == nil {
		candidateAuthors = []string{}
	}
	obj, err := v.call(ctx, "verify_comment", "/v1/comments/verify", map[string]any{
		"url":        rawURL,
		"text":       text,
		"candidates": candidateAuthors,
	})
	if err != nil {
		return CommentPresence{}, err
	}

	exists, err := obj.GetBoolean("exists")
	if err != nil {
		return CommentPresence{}, parseError(err, "verify_comment", "exists")
	}
	matched, _ := obj.GetString("matchedAuthor")
	reason, _ := obj.GetString("reason")
	return CommentPresence{Exists: exists, MatchedAuthor: matched, Reason: reason}, nil
}

// CheckExists reports whether a previously approved post is still online.
func (v *HTTPVerifier) CheckExists(ctx context.Context, rawURL string) (bool, error) {
	obj, err := v.call(ctx, "exists", "/v1/exists", map[string]any{"url": rawURL})
	if err != nil {
		return false, err
	}
	exists, err := obj.GetBoolean("exists")
	if err != nil {
		return false, parseError(err, "exists", "exists")
	}
	return exists, nil
}

func (v *HTTPVerifier) call(ctx context.Context, op, path string, payload map[string]any) (*jason.Object, error) {
	start := time.Now()
	resp, err := v.client.PostJSON(ctx, v.baseURL+path, payload)
	if err != nil {
		category := errors.CategoryNetwork
		if errors.Is(err, context.DeadlineExceeded) {
			category = errors.CategoryTimeout
		}
		v.log.Warn("verifier request failed",
			logger.String("operation", op),
			logger.Duration("elapsed", time.Since(start)),
			logger.Error(err))
		return nil, errors.New(err).
			Component(componentName).
			Category(category).
			Context("operation", op).
			Timing(op, time.Since(start)).
			Build()
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			v.log.Debug("failed to close response body", logger.Error(cerr))
		}
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		v.log.Warn("verifier returned error status",
			logger.String("operation", op),
			logger.Int("status", resp.StatusCode))
		return nil, errors.Newf("verifier %s returned %d: %s", op, resp.StatusCode, strings.TrimSpace(string(snippet))).
			Component(componentName).
			Category(errors.CategoryVerifier).
			Context("operation", op).
			Context("status", resp.StatusCode).
			Build()
	}

	obj, err := jason.NewObjectFromReader(resp.Body)
	if err != nil {
		return nil, parseError(err, op, "body")
	}

	v.log.Debug("verifier call completed",
		logger.String("operation", op),
		logger.Duration("elapsed", time.Since(start)))
	return obj, nil
}

func parseError(err error, op, field string) error {
	return errors.New(fmt.Errorf("decode %s response: %w", op, err)).
		Component(componentName).
		Category(errors.CategoryContentParse).
		Context("operation", op).
		Context("field", field).
		Build()
}

// checkURLSyntax returns a reason when rawURL cannot possibly be valid.
func checkURLSyntax(rawURL string) string {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return "malformed url"
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "url must use http or https"
	}
	if u.Host == "" {
		return "url has no host"
	}
	return ""
}

// flatten turns an HTML fragment into whitespace-normalized text.
func flatten(fragment string) string {
	if fragment == "" {
		return ""
	}
	return strings.Join(strings.Fields(html2text.HTML2Text(fragment)), " ")
}
