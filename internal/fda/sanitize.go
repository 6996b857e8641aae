package fda

import "strings"

const fallbackTerm = "device"

// fieldQualifiers prefix multi-word queries for the endpoints where a
// field-scoped search matches better than a free-text one.
var fieldQualifiers = map[SubResource]string{
	Clearance:    "device_name:",
	Recall:       "product_description:",
	AdverseEvent: "device.brand_name:",
}

// Sanitize turns free text into an openFDA search expression for sr.
func Sanitize(query string, sr SubResource) string {
	q := strings.TrimSpace(query)
	if q == "" {
		return fallbackTerm
	}
	if len(strings.Fields(q)) == 1 {
		return q
	}
	if prefix, ok := fieldQualifiers[sr]; ok {
		return prefix + q
	}
	return q
}
