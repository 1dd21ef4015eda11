// Package cookie parses raw Set-Cookie response header text so a Cookie
// request header can be rebuilt for session replay against anti-bot
// storefronts.
package cookie

import (
	"net/url"
	"strconv"
	"strings"
	"time"
	"unicode"
)

// Cookie is one parsed Set-Cookie record. Recognized attributes are typed;
// anything else lands in Extensions verbatim.
type Cookie struct {
	Name        string
	Value       string
	Expires     time.Time
	MaxAge      *int
	Secure      bool
	HTTPOnly    bool
	SameSite    string
	Partitioned bool
	Extensions  map[string]string
}

// Parse parses one or more raw Set-Cookie header values. Each input string
// may itself be a legacy comma-joined multi-cookie value; those are split
// first.
func Parse(headers []string) []Cookie {
	var cookies []Cookie
	for _, h := range headers {
		for _, s := range SplitSetCookieHeader(h) {
			if strings.TrimSpace(s) == "" {
				continue
			}
			cookies = append(cookies, ParseString(s))
		}
	}
	return cookies
}

// ParseString parses a single Set-Cookie value. The first "=" in the first
// semicolon segment splits name from value; a segment with no "=" becomes a
// nameless cookie holding the full text as its value.
func ParseString(s string) Cookie {
	var parts []string
	for _, p := range strings.Split(normalizeAttributeCommas(s), ";") {
		if strings.TrimSpace(p) != "" {
			parts = append(parts, p)
		}
	}

	var c Cookie
	if len(parts) == 0 {
		return c
	}

	name, value, found := strings.Cut(parts[0], "=")
	if !found {
		c.Value = decodeValue(strings.TrimSpace(parts[0]))
	} else {
		c.Name = strings.TrimSpace(name)
		c.Value = decodeValue(value)
	}

	for _, part := range parts[1:] {
		key, attr, _ := strings.Cut(part, "=")
		key = strings.ToLower(strings.TrimLeftFunc(key, unicode.IsSpace))

		switch key {
		case "expires":
			if t, err := parseExpires(attr); err == nil {
				c.Expires = t
			}
		case "max-age":
			if n, err := strconv.Atoi(strings.TrimSpace(attr)); err == nil {
				// pointer keeps Max-Age=0 apart from the attribute being absent
				c.MaxAge = &n
			}
		case "secure":
			c.Secure = true
		case "httponly":
			c.HTTPOnly = true
		case "samesite":
			c.SameSite = attr
		case "partitioned":
			c.Partitioned = true
		case "":
		default:
			if c.Extensions == nil {
				c.Extensions = make(map[string]string)
			}
			c.Extensions[key] = attr
		}
	}

	return c
}

// Header serializes cookies into a single Cookie request header value.
func Header(cookies []Cookie) string {
	pairs := make([]string, 0, len(cookies))
	for _, c := range cookies {
		pairs = append(pairs, c.Name+"="+c.Value)
	}
	return strings.Join(pairs, "; ")
}

// decodeValue percent-decodes a cookie value, keeping the raw text when
// decoding fails. A failed decode must not fail the parse.
func decodeValue(v string) string {
	decoded, err := url.PathUnescape(v)
	if err != nil {
		return v
	}
	return decoded
}

func parseExpires(v string) (time.Time, error) {
	v = strings.TrimSpace(v)
	if t, err := time.Parse(time.RFC1123, v); err == nil {
		return t, nil
	}
	// RFC 6265 also allows dashes in the date
	return time.Parse("Mon, 02-Jan-2006 15:04:05 MST", v)
}

// SplitSetCookieHeader splits a comma-joined multi-cookie string into
// individual Set-Cookie values. A comma separates cookies only when the text
// after it looks like a new name=value pair, i.e. an "=" is found before the
// next ";" or "," and the name is not a cookie attribute. Commas inside an
// Expires date and before a comma-joined "Expires=" attribute therefore do
// not split.
//
// Based on the splitting algorithm in google/j2objc's cookie handling.
func SplitSetCookieHeader(s string) []string {
	var out []string
	pos := 0

	skipWhitespace := func() bool {
		for pos < len(s) && (s[pos] == ' ' || s[pos] == '\t' || s[pos] == '\n' || s[pos] == '\r') {
			pos++
		}
		return pos < len(s)
	}

	for pos < len(s) {
		start := pos
		separatorFound := false

		for skipWhitespace() {
			if s[pos] != ',' {
				pos++
				continue
			}

			lastComma := pos
			pos++
			skipWhitespace()
			nextStart := pos

			for pos < len(s) && s[pos] != '=' && s[pos] != ';' && s[pos] != ',' {
				pos++
			}

			if pos < len(s) && s[pos] == '=' && !isAttributeName(s[nextStart:pos]) {
				// new name=value pair follows: the comma was a separator
				separatorFound = true
				pos = nextStart
				out = append(out, s[start:lastComma])
				start = pos
			} else {
				// comma belonged to an attribute value, keep scanning
				pos = lastComma + 1
			}
		}

		if !separatorFound || pos >= len(s) {
			out = append(out, s[start:])
		}
	}

	return out
}

// isAttributeName reports whether tok is a registered cookie attribute name.
// Such a token after a comma marks a sloppily comma-joined attribute, not the
// start of the next cookie.
func isAttributeName(tok string) bool {
	switch strings.ToLower(strings.TrimSpace(tok)) {
	case "expires", "max-age", "domain", "path", "secure", "httponly", "samesite", "partitioned":
		return true
	}
	return false
}

// normalizeAttributeCommas rewrites commas that precede a known attribute
// name into semicolons so attribute splitting sees one delimiter. Commas
// inside attribute values, like an Expires date, are left alone.
func normalizeAttributeCommas(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		if s[i] != ',' {
			b.WriteByte(s[i])
			continue
		}
		j := i + 1
		for j < len(s) && (s[j] == ' ' || s[j] == '\t') {
			j++
		}
		k := j
		for k < len(s) && s[k] != '=' && s[k] != ';' && s[k] != ',' {
			k++
		}
		if isAttributeName(s[j:k]) {
			b.WriteByte(';')
			continue
		}
		b.WriteByte(',')
	}
	return b.String()
}
