package cookie

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitSetCookieHeader(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{
			name:  "two cookies split on comma",
			input: "a=1, b=2",
			want:  []string{"a=1", "b=2"},
		},
		{
			name:  "comma inside expires date does not split",
			input: "a=1; Expires=Wed, 09 Jun 2025 10:18:14 GMT",
			want:  []string{"a=1; Expires=Wed, 09 Jun 2025 10:18:14 GMT"},
		},
		{
			name:  "mixed dates and plain cookies",
			input: "a=1; Expires=Wed, 09 Jun 2025 10:18:14 GMT, b=2; Path=/",
			want: []string{
				"a=1; Expires=Wed, 09 Jun 2025 10:18:14 GMT",
				"b=2; Path=/",
			},
		},
		{
			name:  "single cookie passes through",
			input: "session=abc123; HttpOnly",
			want:  []string{"session=abc123; HttpOnly"},
		},
		{
			name:  "comma-joined expires attribute does not split",
			input: "a=1, Expires=Wed, 09 Jun 2025 10:18:14 GMT",
			want:  []string{"a=1, Expires=Wed, 09 Jun 2025 10:18:14 GMT"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SplitSetCookieHeader(tt.input))
		})
	}
}

func TestParseCommaJoinedExpires(t *testing.T) {
	// The comma inside the date must not split this into two cookies.
	cookies := Parse([]string{"a=1; Expires=Wed, 09 Jun 2025 10:18:14 GMT"})
	require.Len(t, cookies, 1)

	c := cookies[0]
	assert.Equal(t, "a", c.Name)
	assert.Equal(t, "1", c.Value)
	assert.Equal(t, time.Date(2025, time.June, 9, 10, 18, 14, 0, time.UTC), c.Expires.UTC())
}

func TestParseCommaJoinedExpiresAttribute(t *testing.T) {
	// Attributes joined to the pair with a comma instead of a semicolon
	// still belong to the same cookie.
	cookies := Parse([]string{"a=1, Expires=Wed, 09 Jun 2025 10:18:14 GMT"})
	require.Len(t, cookies, 1)

	c := cookies[0]
	assert.Equal(t, "a", c.Name)
	assert.Equal(t, "1", c.Value)
	assert.Equal(t, time.Date(2025, time.June, 9, 10, 18, 14, 0, time.UTC), c.Expires.UTC())
}

func TestParseMultipleCookies(t *testing.T) {
	cookies := Parse([]string{"a=1, b=2"})
	require.Len(t, cookies, 2)
	assert.Equal(t, "a", cookies[0].Name)
	assert.Equal(t, "1", cookies[0].Value)
	assert.Equal(t, "b", cookies[1].Name)
	assert.Equal(t, "2", cookies[1].Value)
}

func TestParseString(t *testing.T) {
	tests := []struct {
		name  string
		input string
		check func(t *testing.T, c Cookie)
	}{
		{
			name:  "typed attributes",
			input: "sid=xyz; Max-Age=3600; Secure; HttpOnly; SameSite=Lax; Partitioned",
			check: func(t *testing.T, c Cookie) {
				assert.Equal(t, "sid", c.Name)
				assert.Equal(t, "xyz", c.Value)
				require.NotNil(t, c.MaxAge)
				assert.Equal(t, 3600, *c.MaxAge)
				assert.True(t, c.Secure)
				assert.True(t, c.HTTPOnly)
				assert.Equal(t, "Lax", c.SameSite)
				assert.True(t, c.Partitioned)
			},
		},
		{
			name:  "attribute keys are case-insensitive",
			input: "sid=xyz; MAX-AGE=60; SECURE",
			check: func(t *testing.T, c Cookie) {
				require.NotNil(t, c.MaxAge)
				assert.Equal(t, 60, *c.MaxAge)
				assert.True(t, c.Secure)
			},
		},
		{
			name:  "max-age zero is distinct from absent",
			input: "sid=xyz; Max-Age=0",
			check: func(t *testing.T, c Cookie) {
				require.NotNil(t, c.MaxAge)
				assert.Equal(t, 0, *c.MaxAge)
			},
		},
		{
			name:  "missing max-age stays nil",
			input: "sid=xyz; Secure",
			check: func(t *testing.T, c Cookie) {
				assert.Nil(t, c.MaxAge)
			},
		},
		{
			name:  "unrecognized attributes preserved as extensions",
			input: "sid=xyz; Path=/; Domain=example.com",
			check: func(t *testing.T, c Cookie) {
				assert.Equal(t, "/", c.Extensions["path"])
				assert.Equal(t, "example.com", c.Extensions["domain"])
			},
		},
		{
			name:  "percent-encoded value is decoded",
			input: "pref=a%20b%2Fc",
			check: func(t *testing.T, c Cookie) {
				assert.Equal(t, "a b/c", c.Value)
			},
		},
		{
			name:  "invalid percent encoding keeps raw value",
			input: "pref=100%zz",
			check: func(t *testing.T, c Cookie) {
				assert.Equal(t, "100%zz", c.Value)
			},
		},
		{
			name:  "value containing equals keeps everything after first",
			input: "token=a=b=c",
			check: func(t *testing.T, c Cookie) {
				assert.Equal(t, "token", c.Name)
				assert.Equal(t, "a=b=c", c.Value)
			},
		},
		{
			name:  "segment without equals becomes valueless cookie",
			input: "justatoken",
			check: func(t *testing.T, c Cookie) {
				assert.Equal(t, "", c.Name)
				assert.Equal(t, "justatoken", c.Value)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.check(t, ParseString(tt.input))
		})
	}
}

func TestHeader(t *testing.T) {
	cookies := Parse([]string{"a=1, b=2", "fcid=abc; Path=/"})
	assert.Equal(t, "a=1; b=2; fcid=abc", Header(cookies))
}
