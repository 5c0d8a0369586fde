package cache

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMatch(t *testing.T) {
	tests := []struct {
		pattern string
		key     string
		want    bool
	}{
		{"perm:user:1", "perm:user:1", true},
		{"perm:user:1", "perm:user:12", false},
		{"perm:resource:1:*", "perm:resource:1:project:read", true},
		{"perm:resource:1:*", "perm:resource:1:project/a:read", true},
		{"perm:resource:1:*", "perm:resource:12:project:read", false},
		{"perm:*", "perm:", true},
		{"*", "", true},
		{"perm:user:?", "perm:user:7", true},
		{"perm:user:?", "perm:user:", false},
		{"perm:user:[0-3]", "perm:user:2", true},
		{"perm:user:[0-3]", "perm:user:5", false},
		{"perm:user:[^0-3]", "perm:user:5", true},
		{"perm:user:[abc]", "perm:user:b", true},
		{`perm:\*`, "perm:*", true},
		{`perm:\*`, "perm:x", false},
		{"a**b", "axxb", true},
		{"a*b*c", "abxbc", true},
		{"a*b*c", "abxb", false},
	}

	for _, tt := range tests {
		t.Run(tt.pattern+"|"+tt.key, func(t *testing.T) {
			assert.Equal(t, tt.want, Match(tt.pattern, tt.key))
		})
	}
}

func TestEscapeGlob(t *testing.T) {
	for _, key := range []string{"perm:user:1", "odd*key", "with[brackets]", `back\slash`, "q?"} {
		assert.True(t, Match(escapeGlob(key), key), key)
	}

	assert.False(t, Match(escapeGlob("odd*key"), "odd-anything-key"))
}
