package archive

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleHAR = `{
  "log": {
    "version": "1.2",
    "entries": [
      {
        "request": {
          "method": "get",
          "url": "https://example.com/item",
          "headers": [
            {"name": "Host", "value": "example.com"},
            {"name": "Accept", "value": "text/html"}
          ]
        },
        "response": {
          "status": 200,
          "headers": [{"name": "Content-Type", "value": "text/html"}],
          "content": {"text": "first"}
        }
      },
      {
        "request": {
          "method": "POST",
          "url": "https://example.com/submit",
          "headers": [{"name": "Content-Type", "value": "application/x-www-form-urlencoded"}],
          "postData": {
            "mimeType": "application/x-www-form-urlencoded",
            "params": [
              {"name": "user", "value": "alice"},
              {"name": "token", "value": "xyz"}
            ]
          }
        },
        "response": {
          "status": 200,
          "headers": [],
          "content": {"text": "aGVsbG8=", "encoding": "base64"}
        }
      }
    ]
  }
}`

func TestDecodeHAR(t *testing.T) {
	arc, err := Load(strings.NewReader(sampleHAR), FormatHAR)
	require.NoError(t, err)
	require.Equal(t, 2, arc.Len())

	first := arc.Exchanges()[0]
	assert.Equal(t, "GET", first.Request.Method)
	assert.Equal(t, "https://example.com/item", first.Request.URL)
	assert.Equal(t, []Header{
		{Name: "Host", Value: "example.com"},
		{Name: "Accept", Value: "text/html"},
	}, first.Request.Headers)
	assert.Nil(t, first.Request.Body)
	assert.Equal(t, 200, first.Response.Status)
	assert.Equal(t, []byte("first"), first.Response.Body)

	second := arc.Exchanges()[1]
	assert.Equal(t, "POST", second.Request.Method)
	assert.Equal(t, []byte("user=alice&token=xyz"), second.Request.Body)
	assert.Equal(t, []byte("hello"), second.Response.Body, "base64 content is decoded")
}

func TestDecodeHARPostDataText(t *testing.T) {
	har := `{"log": {"entries": [{
		"request": {
			"method": "POST",
			"url": "https://example.com/api",
			"headers": [],
			"postData": {"mimeType": "application/json", "text": "{\"a\":1}"}
		},
		"response": {"status": 201, "headers": [], "content": {}}
	}]}}`

	arc, err := Load(strings.NewReader(har), FormatHAR)
	require.NoError(t, err)
	assert.Equal(t, []byte(`{"a":1}`), arc.Exchanges()[0].Request.Body)
}

func TestDecodeHARMalformed(t *testing.T) {
	tests := []struct {
		name  string
		har   string
		entry int
	}{
		{
			name:  "invalid json",
			har:   `{"log": {`,
			entry: -1,
		},
		{
			name:  "entry without response",
			har:   `{"log": {"entries": [{"request": {"method": "GET", "url": "https://example.com"}}]}}`,
			entry: 0,
		},
		{
			name: "second entry lacks url",
			har: `{"log": {"entries": [
				{"request": {"method": "GET", "url": "https://example.com"}, "response": {"status": 200, "content": {}}},
				{"request": {"method": "GET", "url": ""}, "response": {"status": 200, "content": {}}}
			]}}`,
			entry: 1,
		},
		{
			name: "bad base64 content",
			har: `{"log": {"entries": [{
				"request": {"method": "GET", "url": "https://example.com"},
				"response": {"status": 200, "content": {"text": "%%%", "encoding": "base64"}}
			}]}}`,
			entry: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			arc, err := Load(strings.NewReader(tt.har), FormatHAR)
			assert.Nil(t, arc, "a malformed archive must not yield a partial archive")

			var parseErr *ParseError
			require.ErrorAs(t, err, &parseErr)
			assert.Equal(t, FormatHAR, parseErr.Format)
			assert.Equal(t, tt.entry, parseErr.Entry)
		})
	}
}
