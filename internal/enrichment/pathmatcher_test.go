package enrichment

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPathMatcher_DefaultPatternsExcludeBlog(t *testing.T) {
	m := newPathMatcher(nil)
	assert.True(t, m.excluded("https://acme.com/blog/launch-week"))
	assert.False(t, m.excluded("https://acme.com/about"))
}

func TestPathMatcher_CustomPatterns(t *testing.T) {
	m := newPathMatcher([]string{"/pricing"})
	assert.True(t, m.excluded("https://acme.com/pricing"))
	assert.False(t, m.excluded("https://acme.com/about"))
}

func TestPathMatcher_MalformedURLExcluded(t *testing.T) {
	m := newPathMatcher(nil)
	assert.True(t, m.excluded("https://acme.com/%zz"))
}
