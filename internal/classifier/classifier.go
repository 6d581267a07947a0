// Package classifier decides whether a grant page reads as open or closed.
package classifier

import (
	"regexp"
	"strings"
	"time"

	"github.com/cloudflare/ahocorasick"

	"grantwatch/internal/models"
)

// Classifier matches page text against one source's open keywords.
// It is immutable after New and safe for concurrent use.
type Classifier struct {
	keywords []string
	matcher  *ahocorasick.Matcher
}

// New compiles a keyword set. Keywords are matched case-insensitively;
// blank entries are dropped.
func New(keywords []string) *Classifier {
	c := &Classifier{}
	for _, kw := range keywords {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if kw != "" {
			c.keywords = append(c.keywords, kw)
		}
	}
	if len(c.keywords) > 0 {
		c.matcher = ahocorasick.NewStringMatcher(c.keywords)
	}
	return c
}

// Classify is a one-shot form of New(keywords).Classify(text, now).
func Classify(text string, keywords []string, now time.Time) models.Status {
	return New(keywords).Classify(text, now)
}

// Keywords returns the normalized keyword set.
func (c *Classifier) Keywords() []string {
	return append([]string(nil), c.keywords...)
}

// Classify returns StatusOpen when the text contains an open keyword and
// its first date, if any, is not before now. Otherwise StatusClosed.
func (c *Classifier) Classify(text string, now time.Time) models.Status {
	text = strings.ToLower(text)
	if !c.matches(text) {
		return models.StatusClosed
	}
	if d, ok := FirstDate(text); ok && d.Before(now) {
		return models.StatusClosed
	}
	return models.StatusOpen
}

func (c *Classifier) matches(text string) bool {
	if c.matcher == nil || text == "" {
		return false
	}
	return len(c.matcher.MatchThreadSafe([]byte(text))) > 0
}

// day, month word, 4-digit year; the word class mirrors a Unicode \w.
var dateRe = regexp.MustCompile(`\d{1,2} [\p{L}\p{N}_]+ \d{4}`)

const dateLayout = "2 January 2006"

// FirstDate parses the leftmost "day Month year" token in text as midnight
// UTC. Only that first token is considered; if it is not a real calendar
// date the text is treated as having no date.
func FirstDate(text string) (time.Time, bool) {
	tok := dateRe.FindString(text)
	if tok == "" {
		return time.Time{}, false
	}
	d, err := time.Parse(dateLayout, tok)
	if err != nil {
		return time.Time{}, false
	}
	return d, true
}
