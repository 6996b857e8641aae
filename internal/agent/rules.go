package agent

import (
	"strings"

	"device-research/internal/fda"
)

const defaultDeviceQuery = "medical device"

var regulatoryTriggers = []string{
	"fda", "recall", "510k", "clearance", "approval", "pma",
	"medical device", "adverse event", "regulatory", "maude",
}

// First match wins.
var deviceKeywords = []string{"everion", "biofourmis", "insulin pump", "pacemaker", "stent", "catheter"}

type subResourceRule struct {
	keywords    []string
	subResource fda.SubResource
}

// Evaluated in order; the first rule with a matching keyword decides.
var subResourceRules = []subResourceRule{
	{keywords: []string{"recall"}, subResource: fda.Recall},
	{keywords: []string{"510k", "clearance"}, subResource: fda.Clearance},
	{keywords: []string{"pma", "approval"}, subResource: fda.Approval},
	{keywords: []string{"adverse", "event"}, subResource: fda.AdverseEvent},
}

var recencyTriggers = []string{"web search", "latest", "recent", "current"}

func containsAny(haystack string, keywords []string) bool {
	for _, k := range keywords {
		if strings.Contains(haystack, k) {
			return true
		}
	}
	return false
}

// needsRegulatory expects a lower-cased haystack.
func needsRegulatory(haystack string) bool {
	return containsAny(haystack, regulatoryTriggers)
}

// regulatoryParams expects a lower-cased haystack.
func regulatoryParams(haystack string) (string, fda.SubResource) {
	query := defaultDeviceQuery
	for _, device := range deviceKeywords {
		if strings.Contains(haystack, device) {
			query = device
			break
		}
	}

	sr := fda.All
	for _, rule := range subResourceRules {
		if containsAny(haystack, rule.keywords) {
			sr = rule.subResource
			break
		}
	}
	return query, sr
}

func wantsWeb(utterance string) bool {
	return containsAny(strings.ToLower(utterance), recencyTriggers)
}
