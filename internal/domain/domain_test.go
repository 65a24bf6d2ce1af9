package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		in     string
		want   string
		wantOK bool
	}{
		{"https://www.example.com/path", "example.com", true},
		{"sub.domain.com", "sub.domain.com", true},
		{"http://WWW.Example.COM:8080/x?y=1", "example.com", true},
		{"https://www.www.example.com", "www.example.com", true},
		{"  github.com/golang/go  ", "github.com", true},
		{"localhost:3000", "localhost", true},
		{"not a url", "", false},
		{"", "", false},
		{"   ", "", false},
		{"https://", "", false},
	}

	for _, tc := range tests {
		got, ok := Normalize(tc.in)
		assert.Equal(t, tc.wantOK, ok, "ok for %q", tc.in)
		assert.Equal(t, tc.want, got, "domain for %q", tc.in)
	}
}

func TestNormalize_SameHostModuloWWW(t *testing.T) {
	a, ok := Normalize("https://example.com")
	assert.True(t, ok)
	b, ok := Normalize("http://www.example.com/home")
	assert.True(t, ok)
	assert.Equal(t, a, b)
}

func TestRegistrable(t *testing.T) {
	assert.Equal(t, "google.com", Registrable("docs.google.com"))
	assert.Equal(t, "example.co.uk", Registrable("a.b.example.co.uk"))
	assert.Equal(t, "example.com", Registrable("example.com"))
	assert.Equal(t, "localhost", Registrable("localhost"))
	assert.Equal(t, "127.0.0.1", Registrable("127.0.0.1"))
	assert.Equal(t, "", Registrable(""))
}

func TestMatcher(t *testing.T) {
	m := NewMatcher([]string{"chase.com", "https://www.Secret.org/login", "", "not a url"})

	assert.True(t, m.Match("chase.com"))
	assert.True(t, m.Match("secure.chase.com"))
	assert.True(t, m.Match("secret.org"))
	assert.False(t, m.Match("notchase.com"))
	assert.False(t, m.Match("example.com"))
	assert.False(t, m.Match(""))

	var none *Matcher
	assert.False(t, none.Match("chase.com"))
}
