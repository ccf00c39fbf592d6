package spoofbot

import (
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/raember/spoofbot/archive"
)

// ReplayTransport implements http.RoundTripper over a recorded archive. It
// serves every request from the archive under the configured match policy
// and never falls back to a live network call; an unmatched request fails
// with an error wrapping archive.ErrNoMatchingRequest.
//
// It is deployed in place of a CacheTransport, not around one.
type ReplayTransport struct {
	archive *archive.Archive
	policy  archive.MatchPolicy
	logger  *slog.Logger

	headerOrder []string
	hit         bool
}

// NewReplay creates a replay transport over the archive. If policy is nil,
// DefaultMatchPolicy is used. If the logger is nil, a no-op logger writing
// to io.Discard is used.
func NewReplay(arc *archive.Archive, policy *archive.MatchPolicy, logger *slog.Logger) *ReplayTransport {
	p := archive.DefaultMatchPolicy()
	if policy != nil {
		p = *policy
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &ReplayTransport{
		archive: arc,
		policy:  p,
		logger:  logger,
	}
}

// RoundTrip matches the request against the archive in recording order and
// returns the recorded response of the first accepted candidate. Unless
// DeleteAfterMatching is disabled, the matched exchange is consumed, so a
// duplicated request is served by the next recording on the following call.
func (t *ReplayTransport) RoundTrip(r *http.Request) (*http.Response, error) {
	ctx := r.Context()

	desc, err := archive.Describe(r, t.headerOrder)
	if err != nil {
		return nil, err
	}

	idx, ex, err := t.archive.Find(desc, t.policy)
	if err != nil {
		t.hit = false
		var noMatch *archive.NoMatchError
		if errors.As(err, &noMatch) {
			t.logger.DebugContext(ctx, "no matching recorded request",
				"method", desc.Method,
				"url", desc.URL,
				"rejected", len(noMatch.Candidates))
		}
		return nil, err
	}
	t.hit = true
	t.logger.DebugContext(ctx, "request matched", "url", desc.URL, "index", idx)

	if t.policy.DeleteAfterMatching {
		t.archive.Remove(idx)
		t.logger.DebugContext(ctx, "deleted matched exchange", "index", idx)
	}
	return ex.Response.HTTPResponse(r), nil
}

// Hit reports whether the last processed request matched a recording.
func (t *ReplayTransport) Hit() bool {
	return t.hit
}

// Archive returns the archive backing this transport.
func (t *ReplayTransport) Archive() *archive.Archive {
	return t.archive
}

// Policy returns the active match policy.
func (t *ReplayTransport) Policy() archive.MatchPolicy {
	return t.policy
}

// SetPolicy replaces the match policy at runtime.
func (t *ReplayTransport) SetPolicy(p archive.MatchPolicy) {
	t.policy = p
}

// SetHeaderOrder sets the header order template of the emulated browser,
// used to reconstruct wire order when describing incoming requests. Without
// a template, header-order matching compares sorted names.
func (t *ReplayTransport) SetHeaderOrder(names []string) {
	t.headerOrder = names
}
