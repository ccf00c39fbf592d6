package archive

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
)

type harFile struct {
	Log harLog `json:"log"`
}

type harLog struct {
	Entries []harEntry `json:"entries"`
}

type harEntry struct {
	Request  *harRequest  `json:"request"`
	Response *harResponse `json:"response"`
}

type harRequest struct {
	Method   string         `json:"method"`
	URL      string         `json:"url"`
	Headers  []harNameValue `json:"headers"`
	PostData *harPostData   `json:"postData"`
}

type harNameValue struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

type harPostData struct {
	MimeType string         `json:"mimeType"`
	Text     string         `json:"text"`
	Params   []harNameValue `json:"params"`
}

type harResponse struct {
	Status  int            `json:"status"`
	Headers []harNameValue `json:"headers"`
	Content harContent     `json:"content"`
}

type harContent struct {
	Text     string `json:"text"`
	Encoding string `json:"encoding"`
}

func decodeHAR(r io.Reader) (*Archive, error) {
	var doc harFile
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return nil, &ParseError{Format: FormatHAR, Entry: -1, Err: err}
	}

	exchanges := make([]Exchange, 0, len(doc.Log.Entries))
	for i, entry := range doc.Log.Entries {
		ex, err := entry.exchange()
		if err != nil {
			return nil, &ParseError{Format: FormatHAR, Entry: i, Err: err}
		}
		exchanges = append(exchanges, ex)
	}
	return New(exchanges), nil
}

func (e harEntry) exchange() (Exchange, error) {
	if e.Request == nil {
		return Exchange{}, errors.New("entry has no request")
	}
	if e.Response == nil {
		return Exchange{}, errors.New("entry has no response")
	}
	if e.Request.Method == "" || e.Request.URL == "" {
		return Exchange{}, errors.New("request lacks method or url")
	}

	body, err := e.Request.body()
	if err != nil {
		return Exchange{}, err
	}
	respBody, err := e.Response.body()
	if err != nil {
		return Exchange{}, err
	}

	return Exchange{
		Request: Request{
			Method:  strings.ToUpper(e.Request.Method),
			URL:     e.Request.URL,
			Headers: toHeaders(e.Request.Headers),
			Body:    body,
		},
		Response: Response{
			Status:  e.Response.Status,
			Headers: toHeaders(e.Response.Headers),
			Body:    respBody,
		},
	}, nil
}

func (r *harRequest) body() ([]byte, error) {
	if r.PostData == nil {
		return nil, nil
	}
	if r.PostData.Text != "" {
		return []byte(r.PostData.Text), nil
	}
	if len(r.PostData.Params) == 0 {
		return nil, nil
	}
	pairs := make([]string, 0, len(r.PostData.Params))
	for _, p := range r.PostData.Params {
		pairs = append(pairs, p.Name+"="+p.Value)
	}
	return []byte(strings.Join(pairs, "&")), nil
}

func (r *harResponse) body() ([]byte, error) {
	if r.Content.Text == "" {
		return nil, nil
	}
	if r.Content.Encoding == "" {
		return []byte(r.Content.Text), nil
	}
	if r.Content.Encoding != "base64" {
		return nil, fmt.Errorf("unsupported content encoding %q", r.Content.Encoding)
	}
	body, err := base64.StdEncoding.DecodeString(r.Content.Text)
	if err != nil {
		return nil, fmt.Errorf("decoding base64 content: %w", err)
	}
	return body, nil
}

func toHeaders(pairs []harNameValue) []Header {
	headers := make([]Header, 0, len(pairs))
	for _, p := range pairs {
		headers = append(headers, Header{Name: p.Name, Value: p.Value})
	}
	return headers
}
