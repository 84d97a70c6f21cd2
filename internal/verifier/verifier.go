// Package verifier defines the content verification collaborator and its
// HTTP implementation. The verifier fetches and parses third-party pages;
// the review core only sees the structured results.
package verifier

import "context"

// URLValidation reports whether a URL resolves to live, public content.
type URLValidation struct {
	Valid  bool
	Reason string
}

// ParsedContent is the verifier's reading of a post. Description and Body
// are plain text.
type ParsedContent struct {
	Author      string
	Title       string
	Description string
	Body        string
}

// Empty reports whether the verifier extracted neither author nor title.
func (p ParsedContent) Empty() bool {
	return p.Author == "" && p.Title == ""
}

// CommentPresence is the outcome of looking for a comment under a post.
type CommentPresence struct {
	Exists        bool
	MatchedAuthor string
	Reason        string
}

// Verifier is the content verification service. Every method returns an
// error only for transport or service failures; negative business results
// are reported in the returned value.
type Verifier interface {
	ValidateURL(ctx context.Context, url string) (URLValidation, error)
	ParseContent(ctx context.Context, url string) (ParsedContent, error)
	VerifyCommentPresence(ctx context.Context, url, text string, candidateAuthors []string) (CommentPresence, error)
	CheckExists(ctx context.Context, url string) (bool, error)
}
