package enrichment

import (
	"net/url"
	"path"
	"strings"
)

// defaultExcludePatterns keeps deep crawl off content pages unlikely to
// carry the company-profile signals enrichment looks for.
var defaultExcludePatterns = []string{
	"/blog/*",
	"/news/*",
	"/press/*",
	"/careers/*",
}

// pathMatcher filters crawl-candidate URLs by glob-style path pattern.
type pathMatcher struct {
	patterns []string
}

func newPathMatcher(patterns []string) *pathMatcher {
	if len(patterns) == 0 {
		patterns = defaultExcludePatterns
	}
	return &pathMatcher{patterns: patterns}
}

// excluded reports whether rawURL's path matches any exclude pattern. A
// malformed URL is treated as excluded rather than risking an unbounded fetch.
func (m *pathMatcher) excluded(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return true
	}
	return m.pathExcluded(u.Path)
}

func (m *pathMatcher) pathExcluded(urlPath string) bool {
	urlPath = strings.ToLower(urlPath)
	for _, pattern := range m.patterns {
		if matchSegmented(strings.ToLower(pattern), urlPath) {
			return true
		}
	}
	return false
}

// matchSegmented lets a pattern like "/blog/*" match both "/blog/post" and
// "/blog/deep/nested/path", which path.Match alone does not.
func matchSegmented(pattern, urlPath string) bool {
	if ok, _ := path.Match(pattern, urlPath); ok {
		return true
	}
	if strings.HasSuffix(pattern, "/*") {
		prefix := strings.TrimSuffix(pattern, "/*")
		if urlPath == prefix || strings.HasPrefix(urlPath, prefix+"/") {
			return true
		}
	}
	return false
}
