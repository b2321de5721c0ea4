package document

import (
	"fmt"
	"regexp"
	"strings"
)

var whitespaceRun = regexp.MustCompile(`\s+`)

// Cleaner normalizes page text before chunking. Beyond whitespace
// collapsing it strips a configurable denylist of markup artifacts left
// behind by upstream document conversion.
type Cleaner struct {
	denylist []*regexp.Regexp
}

// NewCleaner compiles the denylist patterns. An invalid pattern is a
// construction error rather than a silent no-op at clean time.
func NewCleaner(patterns []string) (*Cleaner, error) {
	denylist := make([]*regexp.Regexp, 0, len(patterns))
	for _, pattern := range patterns {
		re, err := regexp.Compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("invalid clean pattern %q: %w", pattern, err)
		}
		denylist = append(denylist, re)
	}
	return &Cleaner{denylist: denylist}, nil
}

// Clean collapses every whitespace run to a single space, trims the
// result, and removes all denylist matches. The result may be empty;
// callers must drop empty pages.
func (c *Cleaner) Clean(text string) string {
	text = whitespaceRun.ReplaceAllString(text, " ")
	text = strings.TrimSpace(text)
	for _, re := range c.denylist {
		text = re.ReplaceAllString(text, "")
	}
	return strings.TrimSpace(text)
}
