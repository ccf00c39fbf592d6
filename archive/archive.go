// Package archive loads recorded HTTP transcripts and matches live requests
// against them. Two recording formats are supported, a browser devtools HAR
// export and a proxy flow capture; both load into the same ordered list of
// request/response exchanges.
package archive

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Header is a single name/value pair. Headers are kept as an ordered slice
// because some match policies treat header order as significant.
type Header struct {
	Name  string
	Value string
}

// Request is the normalized, comparable view of a recorded or incoming HTTP
// request. Two Requests are only ever equal under a given MatchPolicy; there
// is no global equality.
type Request struct {
	Method  string
	URL     string
	Headers []Header
	Body    []byte
}

// Response is a recorded response.
type Response struct {
	Status  int
	Headers []Header
	Body    []byte
}

// Exchange pairs a recorded request with the response it produced.
type Exchange struct {
	Request  Request
	Response Response
}

// Archive is an ordered transcript of recorded exchanges. Order is the
// recording order; matching is first-match-wins, so duplicated requests are
// served in the order they were recorded.
type Archive struct {
	exchanges []Exchange
}

// New builds an archive over the given exchanges, kept in the given order.
func New(exchanges []Exchange) *Archive {
	return &Archive{exchanges: exchanges}
}

// Len returns the number of exchanges left in the archive.
func (a *Archive) Len() int {
	return len(a.exchanges)
}

// Exchanges returns the remaining exchanges in recording order.
func (a *Archive) Exchanges() []Exchange {
	return a.exchanges
}

// Remove deletes the exchange at index i, shifting later entries forward.
func (a *Archive) Remove(i int) {
	a.exchanges = append(a.exchanges[:i], a.exchanges[i+1:]...)
}

// Format identifies a recording format.
type Format int

const (
	// FormatHAR is the browser devtools HTTP Archive export.
	FormatHAR Format = iota
	// FormatFlows is a proxy flow capture, one JSON object per line.
	FormatFlows
)

func (f Format) String() string {
	switch f {
	case FormatHAR:
		return "har"
	case FormatFlows:
		return "flows"
	default:
		return fmt.Sprintf("format(%d)", int(f))
	}
}

// ParseError reports a malformed recording. Loading is all-or-nothing: a
// single malformed entry fails the whole load and no archive is returned.
type ParseError struct {
	Format Format
	// Entry is the index of the offending entry, or -1 if the document as a
	// whole could not be read.
	Entry int
	Err   error
}

func (e *ParseError) Error() string {
	if e.Entry < 0 {
		return fmt.Sprintf("parsing %s archive: %v", e.Format, e.Err)
	}
	return fmt.Sprintf("parsing %s archive: entry %d: %v", e.Format, e.Entry, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// Load reads an archive in the given format.
func Load(r io.Reader, format Format) (*Archive, error) {
	switch format {
	case FormatHAR:
		return decodeHAR(r)
	case FormatFlows:
		return decodeFlows(r)
	default:
		return nil, fmt.Errorf("unknown archive format %d", int(format))
	}
}

// LoadFile reads an archive, picking the format from the file extension:
// .har for devtools exports, .flows or .jsonl for proxy captures.
func LoadFile(path string) (*Archive, error) {
	var format Format
	switch strings.ToLower(filepath.Ext(path)) {
	case ".har":
		format = FormatHAR
	case ".flows", ".jsonl":
		format = FormatFlows
	default:
		return nil, fmt.Errorf("cannot infer archive format from %q", path)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return Load(f, format)
}
