package archive

import (
	"bufio"
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Proxy flow capture: one JSON object per line, the shape proxies export
// flows in. Header pairs are two-element arrays and bodies are base64.
type flowRecord struct {
	Request  *flowRequest  `json:"request"`
	Response *flowResponse `json:"response"`
}

type flowRequest struct {
	Method  string      `json:"method"`
	Scheme  string      `json:"scheme"`
	Host    string      `json:"host"`
	Port    int         `json:"port"`
	Path    string      `json:"path"`
	Headers [][2]string `json:"headers"`
	Content string      `json:"content"`
}

type flowResponse struct {
	StatusCode int         `json:"status_code"`
	Headers    [][2]string `json:"headers"`
	Content    string      `json:"content"`
}

func decodeFlows(r io.Reader) (*Archive, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	var exchanges []Exchange
	entry := 0
	for sc.Scan() {
		line := bytes.TrimSpace(sc.Bytes())
		if len(line) == 0 {
			continue
		}
		var rec flowRecord
		if err := json.Unmarshal(line, &rec); err != nil {
			return nil, &ParseError{Format: FormatFlows, Entry: entry, Err: err}
		}
		ex, ok, err := rec.exchange()
		if err != nil {
			return nil, &ParseError{Format: FormatFlows, Entry: entry, Err: err}
		}
		entry++
		if !ok {
			// A flow without a response was cut off mid-exchange; there is
			// nothing to replay for it.
			continue
		}
		exchanges = append(exchanges, ex)
	}
	if err := sc.Err(); err != nil {
		return nil, &ParseError{Format: FormatFlows, Entry: entry, Err: err}
	}
	return New(exchanges), nil
}

func (rec flowRecord) exchange() (Exchange, bool, error) {
	if rec.Request == nil {
		return Exchange{}, false, errors.New("flow has no request")
	}
	if rec.Request.Method == "" || rec.Request.Host == "" {
		return Exchange{}, false, errors.New("request lacks method or host")
	}
	if rec.Response == nil {
		return Exchange{}, false, nil
	}

	body, err := decodeFlowContent(rec.Request.Content)
	if err != nil {
		return Exchange{}, false, err
	}
	respBody, err := decodeFlowContent(rec.Response.Content)
	if err != nil {
		return Exchange{}, false, err
	}

	return Exchange{
		Request: Request{
			Method:  strings.ToUpper(rec.Request.Method),
			URL:     rec.Request.url(),
			Headers: pairHeaders(rec.Request.Headers),
			Body:    body,
		},
		Response: Response{
			Status:  rec.Response.StatusCode,
			Headers: pairHeaders(rec.Response.Headers),
			Body:    respBody,
		},
	}, true, nil
}

func (r *flowRequest) url() string {
	scheme := r.Scheme
	if scheme == "" {
		scheme = "https"
	}
	host := r.Host
	if r.Port != 0 && !defaultPort(scheme, r.Port) {
		host += ":" + strconv.Itoa(r.Port)
	}
	path := r.Path
	if path == "" {
		path = "/"
	}
	return scheme + "://" + host + path
}

func defaultPort(scheme string, port int) bool {
	switch scheme {
	case "http":
		return port == 80
	case "https":
		return port == 443
	default:
		return false
	}
}

func decodeFlowContent(content string) ([]byte, error) {
	if content == "" {
		return nil, nil
	}
	body, err := base64.StdEncoding.DecodeString(content)
	if err != nil {
		return nil, fmt.Errorf("decoding base64 content: %w", err)
	}
	return body, nil
}

func pairHeaders(pairs [][2]string) []Header {
	headers := make([]Header, 0, len(pairs))
	for _, p := range pairs {
		headers = append(headers, Header{Name: p[0], Value: p[1]})
	}
	return headers
}
