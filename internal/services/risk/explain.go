package risk

// ruleExplanations translates opaque marketplace penalty rules into plain advice.
var ruleExplanations = map[string]string{
	"high_cancellation": "The marketplace lowers your visibility automatically once cancellations exceed 5%. Every cancellation counts, including the ones started by the buyer.",
	"claim_penalty":     "Claims hurt your reputation cumulatively. Some claims can be excluded when you meet certain conditions such as tracked shipping or a fast answer.",
	"pause_penalty":     "Pausing listings lowers your search ranking permanently. Keep the listing active with stock set to 0 instead.",
	"response_time":     "The marketplace measures your average response time. Over 4 hours can reduce visibility and over 24 hours can lead to penalties.",
	"reputation_levels": "Green is excellent, yellow is good, orange is fair and red is critical. Each level changes your search position and commission costs.",
	"shadowban":         "The marketplace can reduce your visibility without notice (shadowban). Watch for a sudden drop in visits with no change to your listings.",
}

const unknownRuleExplanation = "Undocumented marketplace rule."

// ExplainRule returns the explanation for a rule, or a fallback for unknown ones.
func ExplainRule(ruleType string) string {
	if s, ok := ruleExplanations[ruleType]; ok {
		return s
	}
	return unknownRuleExplanation
}

// IsKnownRule reports whether ruleType has a documented explanation.
func IsKnownRule(ruleType string) bool {
	_, ok := ruleExplanations[ruleType]
	return ok
}
