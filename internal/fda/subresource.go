package fda

import (
	"fmt"
	"strings"
)

// SubResource names one openFDA device endpoint. Values are the URL path
// segments under the device base address.
type SubResource string

const (
	Clearance    SubResource = "510k"
	Approval     SubResource = "pma"
	Recall       SubResource = "recall"
	AdverseEvent SubResource = "event"
	Registration SubResource = "registrationlisting"

	// All fans out over allOrder and is never sent to the backend.
	All SubResource = "all"
)

// allOrder is the query and report order for All.
var allOrder = []SubResource{Recall, AdverseEvent, Clearance, Approval}

var aliases = map[string]SubResource{
	"510k":                Clearance,
	"clearance":           Clearance,
	"pma":                 Approval,
	"approval":            Approval,
	"recall":              Recall,
	"event":               AdverseEvent,
	"adverse-event":       AdverseEvent,
	"adverse_event":       AdverseEvent,
	"registrationlisting": Registration,
	"registration":        Registration,
	"all":                 All,
	"":                    All,
}

// ParseSubResource accepts endpoint names and their descriptive aliases.
func ParseSubResource(s string) (SubResource, error) {
	if sr, ok := aliases[strings.ToLower(strings.TrimSpace(s))]; ok {
		return sr, nil
	}
	return "", fmt.Errorf("unknown FDA database %q", s)
}

func (s SubResource) String() string {
	return string(s)
}

// Title is the upper-cased name used in report headings.
func (s SubResource) Title() string {
	return strings.ToUpper(string(s))
}
