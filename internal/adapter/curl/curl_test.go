package curl_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jobrelay/internal/adapter/curl"
	"jobrelay/internal/shared"
)

func TestParse_BrowserCopy(t *testing.T) {
	cmd := `curl 'https://portal.example.edu/api/register' \
  -H 'accept: application/json, text/plain, */*' \
  -H 'content-type: application/x-www-form-urlencoded' \
  -H 'x-empty: ' \
  -b 'ASP.NET_SessionId=abc; token=xyz' \
  --data-raw 'course=IT001&group=2' \
  --compressed`

	req, err := curl.Parse(cmd)
	require.NoError(t, err)
	assert.Equal(t, "https://portal.example.edu/api/register", req.URL)
	assert.Equal(t, map[string]string{
		"accept":       "application/json, text/plain, */*",
		"content-type": "application/x-www-form-urlencoded",
	}, req.Headers)
	assert.Equal(t, "ASP.NET_SessionId=abc; token=xyz", req.Cookies)
	assert.Equal(t, "course=IT001&group=2", req.Body)
}

func TestParse_Variants(t *testing.T) {
	cases := []struct {
		name                     string
		cmd                      string
		url, cookies, body, hdrV string
	}{
		{
			name: "double quotes and long flags",
			cmd:  `curl "http://a.test/x" --header "X-Token: a:b" --cookie "sid=1" --data "a=1"`,
			url:  "http://a.test/x", cookies: "sid=1", body: "a=1", hdrV: "a:b",
		},
		{
			name: "inline values and --url",
			cmd:  `curl -X POST --url=http://a.test/y --header='X-Token: t' --data-binary='{"a":1}'`,
			url:  "http://a.test/y", body: `{"a":1}`, hdrV: "t",
		},
		{
			name: "cookie header and ansi quoting",
			cmd:  `curl 'http://a.test/z' -H 'Cookie: k=v' -H 'X-Token: q' --data-raw $'line1\nit\'s'`,
			url:  "http://a.test/z", cookies: "k=v", body: "line1\nit's", hdrV: "q",
		},
		{
			name: "several data flags are joined",
			cmd:  `curl http://a.test/w -H 'X-Token: 1' -d a=1 -d b=2`,
			url:  "http://a.test/w", body: "a=1&b=2", hdrV: "1",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req, err := curl.Parse(tc.cmd)
			require.NoError(t, err)
			assert.Equal(t, tc.url, req.URL)
			assert.Equal(t, tc.cookies, req.Cookies)
			assert.Equal(t, tc.body, req.Body)
			assert.Equal(t, tc.hdrV, req.Headers["X-Token"])
			assert.NotContains(t, req.Headers, "Cookie")
		})
	}
}

func TestParse_Errors(t *testing.T) {
	cases := map[string]string{
		"empty":         "",
		"not curl":      "wget http://a.test",
		"no url":        "curl -H 'X-A: 1'",
		"unterminated":  "curl 'http://a.test",
		"missing value": "curl http://a.test -H",
	}
	for name, cmd := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := curl.Parse(cmd)
			var pe *curl.ParseError
			require.True(t, errors.As(err, &pe))
			assert.True(t, shared.IsValidation(err))
		})
	}
}
