package fda

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Record is one raw openFDA result. Its shape depends on the sub-resource.
type Record map[string]interface{}

const (
	unknownDevice       = "Unknown Device"
	unknownDate         = "Unknown Date"
	unknownManufacturer = "Unknown Manufacturer"
	unknown             = "Unknown"

	summaryLimit     = 300
	briefReasonLimit = 100
	briefCap         = 2

	ruleSeparator = "---\n\n"
)

// manufacturerFields are probed in order; endpoints disagree on the name.
var manufacturerFields = []string{"applicant", "owner_operator", "manufacturer"}

type recordFormatter struct {
	detail func(Record) string
	brief  func(Record) string
}

var formatters = map[SubResource]recordFormatter{
	Clearance:    {detail: clearanceDetail, brief: clearanceBrief},
	Approval:     {detail: approvalDetail, brief: approvalBrief},
	Recall:       {detail: recallDetail, brief: recallBrief},
	AdverseEvent: {detail: eventDetail, brief: eventBrief},
	Registration: {detail: registrationDetail, brief: registrationBrief},
}

// briefOrder is the section order of a combined report.
var briefOrder = append(append([]SubResource{}, allOrder...), Registration)

// Format renders every record of a single sub-resource.
func Format(sr SubResource, records []Record) string {
	f, ok := formatters[sr]
	if !ok || len(records) == 0 {
		return fmt.Sprintf("No results found in the FDA %s database for this query.", sr)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "## FDA %s Database Results\n\n", sr.Title())
	for _, r := range records {
		b.WriteString(f.detail(r))
	}
	fmt.Fprintf(&b, "\n\nSource: FDA %s Database via api.fda.gov", sr.Title())
	return b.String()
}

// FormatAll renders a combined report, at most two records per sub-resource.
// Sub-resources without records are left out.
func FormatAll(responses map[SubResource]*Response) string {
	var b strings.Builder
	for _, sr := range briefOrder {
		resp, ok := responses[sr]
		if !ok || resp == nil || len(resp.Results) == 0 {
			continue
		}
		records := resp.Results
		if len(records) > briefCap {
			records = records[:briefCap]
		}
		fmt.Fprintf(&b, "## %s Database\n", sr.Title())
		for _, r := range records {
			b.WriteString(formatters[sr].brief(r))
		}
	}

	if b.Len() == 0 {
		return "No results found in FDA databases for this query."
	}
	return "# FDA Medical Device Database Results\n\n" + b.String() + "\nSource: FDA Databases via api.fda.gov"
}

func clearanceDetail(r Record) string {
	var b strings.Builder
	fmt.Fprintf(&b, "### %s (K%s)\n", r.str("device_name", unknownDevice), r.str("k_number", unknown))
	fmt.Fprintf(&b, "- **Manufacturer:** %s\n", r.first(unknownManufacturer, manufacturerFields...))
	fmt.Fprintf(&b, "- **Clearance Date:** %s\n", r.str("decision_date", unknownDate))
	fmt.Fprintf(&b, "- **Product Code:** %s\n", r.str("product_code", unknown))
	fmt.Fprintf(&b, "- **Device Class:** %s\n", r.str("device_class", unknown))
	fmt.Fprintf(&b, "- **Predicate Device:** %s\n\n", predicate(r))
	if summary, ok := r.lookup("summary"); ok {
		fmt.Fprintf(&b, "**Summary:** %s\n\n", truncate(summary, summaryLimit))
	}
	b.WriteString(ruleSeparator)
	return b.String()
}

func clearanceBrief(r Record) string {
	return fmt.Sprintf("- **%s** (K%s)\n  - Manufacturer: %s\n  - Clearance Date: %s\n\n",
		r.str("device_name", unknownDevice),
		r.str("k_number", unknown),
		r.first(unknownManufacturer, manufacturerFields...),
		r.str("decision_date", unknownDate),
	)
}

func predicate(r Record) string {
	k, kok := r.lookup("predicates.0.k_number")
	name, nok := r.lookup("predicates.0.device_name")
	if kok && nok {
		return fmt.Sprintf("K%s - %s", k, name)
	}
	return "Not specified"
}

func approvalDetail(r Record) string {
	var b strings.Builder
	fmt.Fprintf(&b, "### %s (%s)\n", r.str("openfda.device_name.0", unknownDevice), r.str("pma_number", unknown))
	fmt.Fprintf(&b, "- **Manufacturer:** %s\n", r.str("applicant", unknownManufacturer))
	fmt.Fprintf(&b, "- **Approval Date:** %s\n", r.str("approval_date", unknownDate))
	fmt.Fprintf(&b, "- **Product Code:** %s\n", r.str("product_code", unknown))
	if flag, ok := r["expedited_review_flag"]; ok {
		fmt.Fprintf(&b, "- **Expedited Review:** %s\n", yesNo(flag))
	}
	b.WriteString("\n" + ruleSeparator)
	return b.String()
}

func approvalBrief(r Record) string {
	return fmt.Sprintf("- **%s** (%s)\n  - Manufacturer: %s\n  - Approval Date: %s\n\n",
		r.str("openfda.device_name.0", unknownDevice),
		r.str("pma_number", unknown),
		r.str("applicant", unknownManufacturer),
		r.str("approval_date", unknownDate),
	)
}

func recallDetail(r Record) string {
	var b strings.Builder
	fmt.Fprintf(&b, "### %s\n", r.str("product_description", "Unknown Product"))
	fmt.Fprintf(&b, "- **Manufacturer:** %s\n", r.str("recalling_firm", unknownManufacturer))
	fmt.Fprintf(&b, "- **Date Initiated:** %s\n", r.str("recall_initiation_date", unknownDate))
	fmt.Fprintf(&b, "- **Classification:** %s\n", r.str("classification", unknown))
	fmt.Fprintf(&b, "- **Reason for Recall:** %s\n", r.str("reason_for_recall", "Unknown Reason"))
	if v, ok := r.lookup("voluntary_mandated"); ok {
		fmt.Fprintf(&b, "- **Type:** %s\n", v)
	}
	if v, ok := r.lookup("status"); ok {
		fmt.Fprintf(&b, "- **Status:** %s\n", v)
	}
	b.WriteString("\n" + ruleSeparator)
	return b.String()
}

func recallBrief(r Record) string {
	return fmt.Sprintf("- **%s**\n  - Recall Reason: %s\n  - Date Initiated: %s\n\n",
		r.str("product_description", "Unknown Product"),
		truncate(r.str("reason_for_recall", "Unknown Reason"), briefReasonLimit),
		r.str("recall_initiation_date", unknownDate),
	)
}

func eventDetail(r Record) string {
	var b strings.Builder
	fmt.Fprintf(&b, "### %s Adverse Event\n", r.str("device.0.brand_name", unknownDevice))
	fmt.Fprintf(&b, "- **Manufacturer:** %s\n", r.str("device.0.manufacturer_d_name", unknownManufacturer))
	fmt.Fprintf(&b, "- **Event Type:** %s\n", r.str("event_type", "Unknown Event Type"))
	fmt.Fprintf(&b, "- **Report Date:** %s\n", r.str("date_received", unknownDate))
	if v, ok := r.lookup("source_type"); ok {
		fmt.Fprintf(&b, "- **Report Source:** %s\n", v)
	}
	if v, ok := r.lookup("device_problem"); ok {
		fmt.Fprintf(&b, "- **Device Problems:** %s\n", v)
	}
	if v, ok := r.lookup("patient.0.sequence_number_outcome"); ok {
		fmt.Fprintf(&b, "- **Patient Outcomes:** %s\n", v)
	}
	for _, entry := range r.list("mdr_text") {
		text, ok := entry.(map[string]interface{})
		if !ok || text["text_type_code"] != "D" {
			continue
		}
		desc := Record(text).str("text", "No description available")
		fmt.Fprintf(&b, "\n**Event Description:** %s\n", truncate(desc, summaryLimit))
	}
	b.WriteString("\n" + ruleSeparator)
	return b.String()
}

func eventBrief(r Record) string {
	return fmt.Sprintf("- **%s**\n  - Manufacturer: %s\n  - Event Type: %s\n  - Report Date: %s\n\n",
		r.str("device.0.brand_name", unknownDevice),
		r.str("device.0.manufacturer_d_name", unknownManufacturer),
		r.str("event_type", "Unknown Event Type"),
		r.str("date_received", unknownDate),
	)
}

func registrationDetail(r Record) string {
	var b strings.Builder
	fmt.Fprintf(&b, "### %s (Reg# %s)\n", r.str("name", "Unknown Company"), r.str("registration_number", unknown))
	fmt.Fprintf(&b, "- **Address:** %s, %s, %s, %s\n",
		r.str("address_line_1", ""), r.str("city", ""), r.str("state", ""), r.str("country_code", ""))
	if v, ok := r.lookup("establishment_type"); ok {
		fmt.Fprintf(&b, "- **Establishment Type:** %s\n", v)
	}
	if codes := productCodes(r); len(codes) > 0 {
		fmt.Fprintf(&b, "- **Product Codes:** %s\n", strings.Join(codes, ", "))
	}
	b.WriteString("\n" + ruleSeparator)
	return b.String()
}

func registrationBrief(r Record) string {
	return fmt.Sprintf("- **%s** (Reg# %s)\n  - Country: %s\n\n",
		r.str("name", "Unknown Company"),
		r.str("registration_number", unknown),
		r.str("country_code", unknown),
	)
}

// productCodes returns the distinct non-empty product codes, sorted.
func productCodes(r Record) []string {
	seen := make(map[string]bool)
	var codes []string
	for _, p := range r.list("products") {
		product, ok := p.(map[string]interface{})
		if !ok {
			continue
		}
		code, ok := Record(product).lookup("product_code")
		if !ok || seen[code] {
			continue
		}
		seen[code] = true
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}

// str resolves a dotted path, falling back to placeholder when the value
// is missing or empty.
func (r Record) str(path, placeholder string) string {
	if v, ok := r.lookup(path); ok {
		return v
	}
	return placeholder
}

// first returns the first candidate path holding a non-empty value.
func (r Record) first(placeholder string, paths ...string) string {
	for _, p := range paths {
		if v, ok := r.lookup(p); ok {
			return v
		}
	}
	return placeholder
}

// lookup walks a dotted path; numeric segments index into lists.
// Lists of scalars render comma-joined.
func (r Record) lookup(path string) (string, bool) {
	var cur interface{} = map[string]interface{}(r)
	for _, seg := range strings.Split(path, ".") {
		switch node := cur.(type) {
		case map[string]interface{}:
			cur = node[seg]
		case Record:
			cur = node[seg]
		case []interface{}:
			i, err := strconv.Atoi(seg)
			if err != nil || i < 0 || i >= len(node) {
				return "", false
			}
			cur = node[i]
		default:
			return "", false
		}
	}
	s := render(cur)
	return s, s != ""
}

func (r Record) list(key string) []interface{} {
	items, _ := r[key].([]interface{})
	return items
}

func render(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(val)
	case []interface{}:
		parts := make([]string, 0, len(val))
		for _, item := range val {
			if s := render(item); s != "" {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, ", ")
	case map[string]interface{}:
		return ""
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	default:
		return fmt.Sprint(val)
	}
}

func yesNo(v interface{}) string {
	switch val := v.(type) {
	case bool:
		if val {
			return "Yes"
		}
	case string:
		switch strings.ToLower(strings.TrimSpace(val)) {
		case "y", "yes", "true", "1":
			return "Yes"
		}
	case float64:
		if val != 0 {
			return "Yes"
		}
	}
	return "No"
}

// truncate cuts s to limit runes and appends an ellipsis when it was longer.
func truncate(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit]) + "..."
}
