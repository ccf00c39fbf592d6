package archive

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"strings"
)

// ErrNoMatchingRequest is reported when no recorded exchange satisfies the
// active match policy. The archive never falls back to a live network call.
var ErrNoMatchingRequest = errors.New("no matching recorded request")

// MatchPolicy governs how closely an incoming request must resemble a
// recorded one. Method and URL always have to match; each toggle enables one
// further category of checks. Strict switches the enabled categories between
// exact equality and a looser recorded-subset-present rule; it governs how a
// category is checked, not whether.
type MatchPolicy struct {
	// MatchHeaderOrder requires recorded and incoming header order to agree.
	// It only takes effect while MatchHeaders is enabled.
	MatchHeaderOrder bool
	// MatchHeaders requires the header sets to agree.
	MatchHeaders bool
	// MatchData requires the request bodies to agree, for methods that carry
	// a body.
	MatchData bool
	// Strict checks enabled categories by exact equality. When false, a
	// category passes if everything recorded is present in the incoming
	// request, extras allowed.
	Strict bool
	// DeleteAfterMatching consumes a matched exchange, so duplicated
	// requests in one transcript are served in recording order.
	DeleteAfterMatching bool
}

// DefaultMatchPolicy enables every toggle.
func DefaultMatchPolicy() MatchPolicy {
	return MatchPolicy{
		MatchHeaderOrder:    true,
		MatchHeaders:        true,
		MatchData:           true,
		Strict:              true,
		DeleteAfterMatching: true,
	}
}

// CandidateMismatch names the checks a same-method-and-URL candidate failed.
type CandidateMismatch struct {
	Index        int
	FailedChecks []string
}

// NoMatchError reports a failed archive lookup together with the reason each
// candidate was rejected, so a near-miss (say, header order) can be diagnosed
// from the error alone.
type NoMatchError struct {
	Method     string
	URL        string
	Candidates []CandidateMismatch
}

func (e *NoMatchError) Error() string {
	if len(e.Candidates) == 0 {
		return fmt.Sprintf("no matching recorded request for %s %s", e.Method, e.URL)
	}
	reasons := make([]string, 0, len(e.Candidates))
	for _, c := range e.Candidates {
		reasons = append(reasons, fmt.Sprintf("entry %d: %s mismatch", c.Index, strings.Join(c.FailedChecks, ", ")))
	}
	return fmt.Sprintf("no matching recorded request for %s %s (%s)", e.Method, e.URL, strings.Join(reasons, "; "))
}

func (e *NoMatchError) Unwrap() error {
	return ErrNoMatchingRequest
}

// Find scans the archive in recording order and returns the first exchange
// accepted under the policy, together with its index. Ties are broken by
// recording order alone. On failure it returns a *NoMatchError.
func (a *Archive) Find(req Request, policy MatchPolicy) (int, Exchange, error) {
	noMatch := &NoMatchError{Method: req.Method, URL: req.URL}
	for i, ex := range a.exchanges {
		if ex.Request.Method != req.Method || ex.Request.URL != req.URL {
			continue
		}
		failed := policy.check(req, ex.Request)
		if len(failed) == 0 {
			return i, ex, nil
		}
		noMatch.Candidates = append(noMatch.Candidates, CandidateMismatch{Index: i, FailedChecks: failed})
	}
	return 0, Exchange{}, noMatch
}

func (p MatchPolicy) check(req, recorded Request) []string {
	var failed []string
	if p.MatchHeaders {
		if !headersMatch(req.Headers, recorded.Headers, p.Strict) {
			failed = append(failed, "headers")
		}
		if p.MatchHeaderOrder && !headerOrderMatches(req.Headers, recorded.Headers, p.Strict) {
			failed = append(failed, "header order")
		}
	}
	if p.MatchData && methodHasBody(req.Method) {
		if !bodiesMatch(req.Body, recorded.Body, p.Strict) {
			failed = append(failed, "body")
		}
	}
	return failed
}

func methodHasBody(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions, http.MethodTrace:
		return false
	default:
		return true
	}
}

func bodiesMatch(req, recorded []byte, strict bool) bool {
	if !strict && len(recorded) == 0 {
		return true
	}
	return bytes.Equal(req, recorded)
}

// headersMatch compares the header sets. Cookie headers are compared as
// parsed name/value sets rather than as raw strings, since cookie order in
// the serialized header carries no meaning.
func headersMatch(req, recorded []Header, strict bool) bool {
	reqValues, reqCookies := splitCookies(req)
	recValues, recCookies := splitCookies(recorded)
	if strict {
		return equalMultiValues(reqValues, recValues) && equalStringMaps(reqCookies, recCookies)
	}
	return containsMultiValues(reqValues, recValues) && containsStringMap(reqCookies, recCookies)
}

// headerOrderMatches compares the sequence of distinct header names. Strict
// requires the same sequence; otherwise the recorded sequence has to appear
// within the incoming one as a subsequence.
func headerOrderMatches(req, recorded []Header, strict bool) bool {
	reqNames := headerNames(req)
	recNames := headerNames(recorded)
	if strict {
		return slices.Equal(reqNames, recNames)
	}
	i := 0
	for _, name := range reqNames {
		if i < len(recNames) && name == recNames[i] {
			i++
		}
	}
	return i == len(recNames)
}

// headerNames returns the canonical header names in first-occurrence order.
func headerNames(headers []Header) []string {
	var names []string
	seen := make(map[string]struct{}, len(headers))
	for _, h := range headers {
		name := http.CanonicalHeaderKey(h.Name)
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		names = append(names, name)
	}
	return names
}

// splitCookies groups header values by canonical name and extracts Cookie
// headers into a parsed name/value map.
func splitCookies(headers []Header) (map[string][]string, map[string]string) {
	values := make(map[string][]string)
	cookies := make(map[string]string)
	for _, h := range headers {
		name := http.CanonicalHeaderKey(h.Name)
		if name == "Cookie" {
			for _, pair := range strings.Split(h.Value, ";") {
				pair = strings.TrimSpace(pair)
				if pair == "" {
					continue
				}
				cookieName, cookieValue, _ := strings.Cut(pair, "=")
				cookies[cookieName] = cookieValue
			}
			continue
		}
		values[name] = append(values[name], h.Value)
	}
	return values, cookies
}

func equalMultiValues(a, b map[string][]string) bool {
	if len(a) != len(b) {
		return false
	}
	for name, values := range a {
		if !slices.Equal(values, b[name]) {
			return false
		}
	}
	return true
}

// containsMultiValues reports whether every recorded header value is present
// among the incoming values of the same name.
func containsMultiValues(req, recorded map[string][]string) bool {
	for name, values := range recorded {
		for _, v := range values {
			if !slices.Contains(req[name], v) {
				return false
			}
		}
	}
	return true
}

func equalStringMaps(a, b map[string]string) bool {
	if len(a) != len(b) {
		return false
	}
	for k, v := range a {
		if other, ok := b[k]; !ok || other != v {
			return false
		}
	}
	return true
}

func containsStringMap(req, recorded map[string]string) bool {
	for k, v := range recorded {
		if other, ok := req[k]; !ok || other != v {
			return false
		}
	}
	return true
}
