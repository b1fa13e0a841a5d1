package routing

import (
	"regexp"
	"strings"
)

// EscalationDetector is the fallback signal applied to responder output when
// the explicit escalation flag is absent. It augments the flag and never
// overrides a true flag.
type EscalationDetector interface {
	Detect(text string) bool
}

// RegexDetector scans reply text for handover-intent phrases.
type RegexDetector struct {
	patterns []*regexp.Regexp
}

var defaultPatterns = []string{
	`connect(ing)? you (to|with) (a |an |our )?(human|agent|manager|specialist)`,
	`transfer(ring)? (you|this) to`,
	`(speak|talk) (to|with) (a |an |our )?(human|real person|agent|manager)`,
	`human (agent|operator|support)`,
	`escalat(e|ing|ed)`,
	`a (colleague|team member) will (take over|assist|help)`,
}

func NewRegexDetector() *RegexDetector {
	d := &RegexDetector{}
	for _, p := range defaultPatterns {
		d.patterns = append(d.patterns, regexp.MustCompile(p))
	}
	return d
}

func (d *RegexDetector) Detect(text string) bool {
	lower := strings.ToLower(text)
	for _, p := range d.patterns {
		if p.MatchString(lower) {
			return true
		}
	}
	return false
}
