package archive

import (
	"bytes"
	"io"
	"net/http"
	"slices"
	"strconv"
)

// Describe builds a normalized Request from a live *http.Request. The body,
// if any, is read and replaced so the request stays usable.
//
// Go's http.Header does not retain wire order, so ordered headers are
// reconstructed from the order template: names in the template come first, in
// template order, and any remaining names follow sorted. Recording and replay
// with the same emulated browser therefore produce the same order. A nil
// template yields sorted names only.
func Describe(r *http.Request, order []string) (Request, error) {
	var body []byte
	if r.Body != nil && r.Body != http.NoBody {
		var err error
		body, err = io.ReadAll(r.Body)
		if err != nil {
			return Request{}, err
		}
		r.Body.Close()
		r.Body = io.NopCloser(bytes.NewReader(body))
	}

	return Request{
		Method:  r.Method,
		URL:     r.URL.String(),
		Headers: orderedHeaders(r.Header, order),
		Body:    body,
	}, nil
}

func orderedHeaders(header http.Header, order []string) []Header {
	remaining := make([]string, 0, len(header))
	for name := range header {
		remaining = append(remaining, http.CanonicalHeaderKey(name))
	}
	slices.Sort(remaining)

	var names []string
	for _, name := range order {
		name = http.CanonicalHeaderKey(name)
		if idx := slices.Index(remaining, name); idx >= 0 {
			names = append(names, name)
			remaining = slices.Delete(remaining, idx, idx+1)
		}
	}
	names = append(names, remaining...)

	var headers []Header
	for _, name := range names {
		for _, value := range header[name] {
			headers = append(headers, Header{Name: name, Value: value})
		}
	}
	return headers
}

// HTTPResponse converts a recorded response into an *http.Response for the
// given request.
func (resp Response) HTTPResponse(r *http.Request) *http.Response {
	header := make(http.Header, len(resp.Headers))
	for _, h := range resp.Headers {
		header.Add(h.Name, h.Value)
	}
	status := strconv.Itoa(resp.Status)
	if text := http.StatusText(resp.Status); text != "" {
		status += " " + text
	}
	return &http.Response{
		Status:        status,
		StatusCode:    resp.Status,
		Proto:         "HTTP/1.1",
		ProtoMajor:    1,
		ProtoMinor:    1,
		Header:        header,
		Body:          io.NopCloser(bytes.NewReader(resp.Body)),
		ContentLength: int64(len(resp.Body)),
		Request:       r,
	}
}
