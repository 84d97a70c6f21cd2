package gate

import (
	"encoding/hex"
	"net/url"
	"sort"
	"strings"

	"golang.org/x/crypto/blake2b"
	"golang.org/x/net/idna"

	"github.com/gigshield/reviewcore/internal/review/textnorm"
)

// trackingParams are query parameters that never identify content.
var trackingParams = map[string]bool{
	"fbclid": true,
	"gclid":  true,
	"share":  true,
	"spm":    true,
	"from":   true,
}

// NormalizeURL returns the key a URL is counted under: lower-case scheme
// and ASCII host without "www." or default port, no fragment, no tracking
// parameters, sorted query and no trailing slash. Unparseable input is
// folded and returned as is.
func NormalizeURL(raw string) string {
	raw = strings.TrimSpace(raw)
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return textnorm.Fold(raw)
	}

	host := strings.ToLower(u.Hostname())
	if ascii, err := idna.Lookup.ToASCII(host); err == nil {
		host = ascii
	}
	host = strings.TrimPrefix(host, "www.")
	scheme := strings.ToLower(u.Scheme)
	if port := u.Port(); port != "" && !defaultPort(scheme, port) {
		host += ":" + port
	}

	var b strings.Builder
	b.WriteString(scheme)
	b.WriteString("://")
	b.WriteString(host)
	b.WriteString(strings.TrimRight(u.EscapedPath(), "/"))

	if q := normalizeQuery(u.Query()); q != "" {
		b.WriteByte('?')
		b.WriteString(q)
	}
	return b.String()
}

func defaultPort(scheme, port string) bool {
	return (scheme == "http" && port == "80") || (scheme == "https" && port == "443")
}

func normalizeQuery(values url.Values) string {
	keys := make([]string, 0, len(values))
	for k := range values {
		lk := strings.ToLower(k)
		if trackingParams[lk] || strings.HasPrefix(lk, "utm_") {
			continue
		}
		keys = append(keys, k)
	}
	if len(keys) == 0 {
		return ""
	}
	sort.Strings(keys)

	kept := make(url.Values, len(keys))
	for _, k := range keys {
		vs := append([]string(nil), values[k]...)
		sort.Strings(vs)
		kept[k] = vs
	}
	// Encode sorts by key.
	return kept.Encode()
}

// NormalizeComment folds comment text and drops all whitespace, so two
// comments differing only in case or spacing compare equal.
func NormalizeComment(text string) string {
	return strings.Join(strings.Fields(textnorm.Fold(text)), "")
}

// Fingerprint is the hex BLAKE2b-256 digest of the normalized comment.
func Fingerprint(text string) string {
	sum := blake2b.Sum256([]byte(NormalizeComment(text)))
	return hex.EncodeToString(sum[:])
}
