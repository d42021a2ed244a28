// Package curl turns a copied "curl ..." command line into a job request.
package curl

import (
	"errors"
	"fmt"
	"strings"

	"jobrelay/internal/domain/job"
	"jobrelay/internal/shared"
)

// ParseError reports a command that cannot be turned into a request.
type ParseError struct {
	Reason string
}

func (e *ParseError) Error() string { return "curl: " + e.Reason }

// Is makes errors.Is(err, shared.ErrValidation) hold.
func (e *ParseError) Is(target error) bool { return target == shared.ErrValidation }

var errUnterminated = errors.New("unterminated quote")

// Parse extracts URL, headers, cookies and body from a curl command.
// Supported flags: -H/--header, -b/--cookie, -d/--data/--data-raw/--data-binary/--data-ascii,
// and --url. Flags that take no value (for example --compressed or -k) are skipped.
// Headers are split at the first colon; empty names or values are dropped.
func Parse(text string) (job.Request, error) {
	args, err := split(text)
	if err != nil {
		return job.Request{}, &ParseError{Reason: err.Error()}
	}
	if len(args) == 0 || args[0] != "curl" {
		return job.Request{}, &ParseError{Reason: "command must start with curl"}
	}

	req := job.Request{Headers: map[string]string{}}
	var body []string
	for i := 1; i < len(args); i++ {
		a := args[i]
		flag, inline, hasInline := cutFlag(a)
		next := func() (string, error) {
			if hasInline {
				return inline, nil
			}
			if i+1 >= len(args) {
				return "", fmt.Errorf("flag %s needs a value", flag)
			}
			i++
			return args[i], nil
		}

		switch flag {
		case "-H", "--header":
			v, err := next()
			if err != nil {
				return job.Request{}, &ParseError{Reason: err.Error()}
			}
			name, value, ok := strings.Cut(v, ":")
			name, value = strings.TrimSpace(name), strings.TrimSpace(value)
			if !ok || name == "" || value == "" {
				continue
			}
			if strings.EqualFold(name, "cookie") {
				req.Cookies = value
				continue
			}
			req.Headers[name] = value
		case "-b", "--cookie":
			v, err := next()
			if err != nil {
				return job.Request{}, &ParseError{Reason: err.Error()}
			}
			req.Cookies = v
		case "-d", "--data", "--data-raw", "--data-binary", "--data-ascii":
			v, err := next()
			if err != nil {
				return job.Request{}, &ParseError{Reason: err.Error()}
			}
			body = append(body, v)
		case "--url":
			v, err := next()
			if err != nil {
				return job.Request{}, &ParseError{Reason: err.Error()}
			}
			req.URL = v
		case "-X", "--request", "-A", "--user-agent", "-e", "--referer", "-o", "--output", "-m", "--max-time":
			if _, err := next(); err != nil {
				return job.Request{}, &ParseError{Reason: err.Error()}
			}
		default:
			if strings.HasPrefix(a, "-") {
				continue
			}
			if req.URL == "" {
				req.URL = a
			}
		}
	}
	if req.URL == "" {
		return job.Request{}, &ParseError{Reason: "no url found"}
	}
	req.Body = strings.Join(body, "&")
	return req, nil
}

// cutFlag splits "--flag=value" forms. Short flags never carry inline values here.
func cutFlag(a string) (flag, value string, ok bool) {
	if strings.HasPrefix(a, "--") {
		if f, v, found := strings.Cut(a, "="); found {
			return f, v, true
		}
	}
	return a, "", false
}

// split tokenizes a POSIX shell style command line: single quotes, double
// quotes with backslash escapes, $'...' strings as produced by browser
// "copy as cURL", and backslash-newline continuations.
func split(s string) ([]string, error) {
	var (
		args    []string
		cur     strings.Builder
		inWord  bool
		quote   rune
		escaped bool
	)
	flush := func() {
		if inWord {
			args = append(args, cur.String())
			cur.Reset()
			inWord = false
		}
	}
	rs := []rune(s)
	for i := 0; i < len(rs); i++ {
		r := rs[i]
		switch {
		case escaped:
			escaped = false
			if r == '\n' {
				continue
			}
			if r == '\r' && i+1 < len(rs) && rs[i+1] == '\n' {
				i++
				continue
			}
			cur.WriteRune(r)
			inWord = true
		case quote == '\'':
			if r == '\'' {
				quote = 0
				continue
			}
			cur.WriteRune(r)
		case quote == '$':
			switch {
			case r == '\'':
				quote = 0
			case r == '\\' && i+1 < len(rs):
				i++
				cur.WriteString(ansiEscape(rs[i]))
			default:
				cur.WriteRune(r)
			}
		case quote == '"':
			switch r {
			case '"':
				quote = 0
			case '\\':
				if i+1 < len(rs) && strings.ContainsRune("\"\\$`\n", rs[i+1]) {
					i++
					if rs[i] != '\n' {
						cur.WriteRune(rs[i])
					}
					continue
				}
				cur.WriteRune(r)
			default:
				cur.WriteRune(r)
			}
		case r == '\\':
			escaped = true
		case r == '\'' || r == '"':
			quote = r
			inWord = true
		case r == '$' && i+1 < len(rs) && rs[i+1] == '\'':
			quote = '$'
			inWord = true
			i++
		case r == ' ' || r == '\t' || r == '\n' || r == '\r':
			flush()
		default:
			cur.WriteRune(r)
			inWord = true
		}
	}
	if quote != 0 {
		return nil, errUnterminated
	}
	flush()
	return args, nil
}

func ansiEscape(r rune) string {
	switch r {
	case 'n':
		return "\n"
	case 't':
		return "\t"
	case 'r':
		return "\r"
	case '\'', '"', '\\':
		return string(r)
	default:
		return "\\" + string(r)
	}
}
