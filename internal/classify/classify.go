// Package classify implements the ordered payment-link content
// classifier. Rules are declared in configuration, compiled once at
// load and applied first-match-wins.
package classify

import (
	"regexp"
	"strings"
)

// Link types a payment rule can assign.
const (
	TypeInternal    = "INTERNAL"
	TypeExternal    = "EXTERNAL"
	TypeInformative = "INFORMATIVE"
	TypeUnknown     = "UNKNOWN"
)

// Rule is one compiled classification rule. Pattern is matched
// case-insensitively; Exclude lists substrings that veto the match,
// which replaces lookahead constructs the regexp engine does not
// support.
type Rule struct {
	Pattern   *regexp.Regexp
	Exclude   []string
	Type      string
	Processor string
	Domain    string
}

// Classification is the outcome of classifying one message content.
type Classification struct {
	Type      string `bson:"type"`
	Processor string `bson:"processor"`
	Domain    string `bson:"domain"`
}

// Unknown is the fallback classification for content no rule matches.
func Unknown() Classification {
	return Classification{Type: TypeUnknown, Processor: "Unknown", Domain: "unknown"}
}

// Cascade is an ordered rule list. Declaration order is significant:
// the first matching rule wins, so specific rules must be declared
// before generic ones.
type Cascade struct {
	rules []Rule
}

// NewCascade builds a cascade over already-compiled rules.
func NewCascade(rules []Rule) *Cascade {
	return &Cascade{rules: rules}
}

// Len returns the number of rules in the cascade.
func (c *Cascade) Len() int {
	return len(c.rules)
}

// Classify runs the cascade over one message content.
func (c *Cascade) Classify(content string) Classification {
	lowered := strings.ToLower(content)
	for _, rule := range c.rules {
		if !rule.Pattern.MatchString(content) {
			continue
		}
		if excluded(lowered, rule.Exclude) {
			continue
		}
		return Classification{Type: rule.Type, Processor: rule.Processor, Domain: rule.Domain}
	}
	return Unknown()
}

// Patterns returns the raw rule patterns for building a store-side
// prefilter. The prefilter only narrows the candidate set; the
// cascade's exclude lists still apply during classification.
func (c *Cascade) Patterns() []string {
	out := make([]string, 0, len(c.rules))
	for _, rule := range c.rules {
		out = append(out, rule.Pattern.String())
	}
	return out
}

func excluded(loweredContent string, exclude []string) bool {
	for _, sub := range exclude {
		if strings.Contains(loweredContent, strings.ToLower(sub)) {
			return true
		}
	}
	return false
}
