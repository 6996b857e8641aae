package fda

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func records(t *testing.T, raw string) []Record {
	t.Helper()
	var out []Record
	require.NoError(t, json.Unmarshal([]byte(raw), &out))
	return out
}

func TestFormat_Clearance(t *testing.T) {
	long := strings.Repeat("a", 350)
	recs := records(t, `[{
		"device_name": "Everion Monitor",
		"k_number": "193002",
		"owner_operator": "",
		"manufacturer": "Biofourmis",
		"decision_date": "2020-01-15",
		"product_code": "DQA",
		"device_class": "2",
		"predicates": [{"k_number": "180001", "device_name": "Old Monitor"}],
		"summary": "`+long+`"
	}]`)

	out := Format(Clearance, recs)

	assert.True(t, strings.HasPrefix(out, "## FDA 510K Database Results\n\n"))
	assert.Contains(t, out, "### Everion Monitor (K193002)\n")
	assert.Contains(t, out, "- **Manufacturer:** Biofourmis\n")
	assert.Contains(t, out, "- **Clearance Date:** 2020-01-15\n")
	assert.Contains(t, out, "- **Product Code:** DQA\n")
	assert.Contains(t, out, "- **Device Class:** 2\n")
	assert.Contains(t, out, "- **Predicate Device:** K180001 - Old Monitor\n")
	assert.Contains(t, out, "**Summary:** "+strings.Repeat("a", 300)+"...\n")
	assert.NotContains(t, out, strings.Repeat("a", 301))
	assert.Contains(t, out, "---\n\n")
	assert.True(t, strings.HasSuffix(out, "Source: FDA 510K Database via api.fda.gov"))
}

func TestFormat_ManufacturerProbeOrder(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"applicant wins", `[{"applicant":"A","owner_operator":"B","manufacturer":"C"}]`, "A"},
		{"owner operator second", `[{"owner_operator":"B","manufacturer":"C"}]`, "B"},
		{"manufacturer last", `[{"applicant":"","manufacturer":"C"}]`, "C"},
		{"placeholder", `[{}]`, "Unknown Manufacturer"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := Format(Clearance, records(t, tt.raw))
			assert.Contains(t, out, "- **Manufacturer:** "+tt.want+"\n")
		})
	}
}

func TestFormat_MissingFieldsUsePlaceholders(t *testing.T) {
	tests := []struct {
		sr   SubResource
		want []string
	}{
		{Clearance, []string{"### Unknown Device (KUnknown)", "**Clearance Date:** Unknown Date", "**Predicate Device:** Not specified"}},
		{Approval, []string{"### Unknown Device (Unknown)", "**Manufacturer:** Unknown Manufacturer", "**Approval Date:** Unknown Date"}},
		{Recall, []string{"### Unknown Product", "**Reason for Recall:** Unknown Reason", "**Date Initiated:** Unknown Date"}},
		{AdverseEvent, []string{"### Unknown Device Adverse Event", "**Manufacturer:** Unknown Manufacturer", "**Event Type:** Unknown Event Type"}},
		{Registration, []string{"### Unknown Company (Reg# Unknown)", "**Address:** , , , "}},
	}

	for _, tt := range tests {
		t.Run(string(tt.sr), func(t *testing.T) {
			var out string
			require.NotPanics(t, func() {
				out = Format(tt.sr, []Record{{}})
			})
			for _, w := range tt.want {
				assert.Contains(t, out, w)
			}
		})
	}
}

func TestFormat_MalformedNestedFields(t *testing.T) {
	recs := records(t, `[{"device": "not-a-list", "patient": [], "mdr_text": [1, "x"], "predicates": [{}]}]`)
	require.NotPanics(t, func() {
		out := Format(AdverseEvent, recs)
		assert.Contains(t, out, "### Unknown Device Adverse Event")
		assert.NotContains(t, out, "Patient Outcomes")
	})
	require.NotPanics(t, func() {
		out := Format(Clearance, recs)
		assert.Contains(t, out, "Not specified")
	})
}

func TestFormat_Approval(t *testing.T) {
	recs := records(t, `[
		{"openfda": {"device_name": ["Heart Valve"]}, "pma_number": "P100001", "applicant": "Valve Co", "approval_date": "2019-05-01", "product_code": "LWR", "expedited_review_flag": "Y"},
		{"openfda": {"device_name": []}, "pma_number": "P100002", "expedited_review_flag": "N"},
		{"pma_number": "P100003"}
	]`)

	out := Format(Approval, recs)

	assert.Contains(t, out, "### Heart Valve (P100001)\n- **Manufacturer:** Valve Co\n- **Approval Date:** 2019-05-01\n- **Product Code:** LWR\n- **Expedited Review:** Yes\n")
	assert.Contains(t, out, "### Unknown Device (P100002)")
	assert.Contains(t, out, "- **Expedited Review:** No\n")
	assert.Equal(t, 2, strings.Count(out, "Expedited Review"))
	assert.Equal(t, 3, strings.Count(out, "---"))
}

func TestFormat_RecallFullReason(t *testing.T) {
	reason := strings.Repeat("r", 150)
	recs := records(t, `[{"product_description": "Insulin Pump X", "recalling_firm": "PumpCo", "recall_initiation_date": "2024-02-01", "classification": "Class II", "reason_for_recall": "`+reason+`", "voluntary_mandated": "Voluntary: Firm initiated", "status": "Ongoing"}]`)

	out := Format(Recall, recs)

	assert.Contains(t, out, "- **Reason for Recall:** "+reason+"\n")
	assert.Contains(t, out, "- **Type:** Voluntary: Firm initiated\n")
	assert.Contains(t, out, "- **Status:** Ongoing\n")
	assert.Contains(t, out, "- **Classification:** Class II\n")
}

func TestFormat_AdverseEvent(t *testing.T) {
	narrative := strings.Repeat("n", 320)
	recs := records(t, `[{
		"device": [{"brand_name": "Pacer 1", "manufacturer_d_name": "CardioCo"}],
		"event_type": "Malfunction",
		"date_received": "20230101",
		"source_type": ["Manufacturer report"],
		"device_problem": ["Battery", "Lead fracture"],
		"patient": [{"sequence_number_outcome": ["Hospitalization", "Required Intervention"]}],
		"mdr_text": [
			{"text_type_code": "N", "text": "manufacturer narrative"},
			{"text_type_code": "D", "text": "`+narrative+`"}
		]
	}]`)

	out := Format(AdverseEvent, recs)

	assert.Contains(t, out, "### Pacer 1 Adverse Event\n")
	assert.Contains(t, out, "- **Manufacturer:** CardioCo\n")
	assert.Contains(t, out, "- **Report Source:** Manufacturer report\n")
	assert.Contains(t, out, "- **Device Problems:** Battery, Lead fracture\n")
	assert.Contains(t, out, "- **Patient Outcomes:** Hospitalization, Required Intervention\n")
	assert.Contains(t, out, "\n**Event Description:** "+strings.Repeat("n", 300)+"...\n")
	assert.NotContains(t, out, "manufacturer narrative")
}

func TestFormat_RegistrationDedupesProductCodes(t *testing.T) {
	recs := records(t, `[{
		"name": "Device Maker Inc",
		"registration_number": "3001234",
		"address_line_1": "1 Main St",
		"city": "Boston",
		"state": "MA",
		"country_code": "US",
		"establishment_type": ["Manufacture Medical Device"],
		"products": [{"product_code": "DQA"}, {"product_code": ""}, {"product_code": "DQA"}, {"product_code": "LWR"}]
	}]`)

	out := Format(Registration, recs)

	assert.Contains(t, out, "### Device Maker Inc (Reg# 3001234)\n")
	assert.Contains(t, out, "- **Address:** 1 Main St, Boston, MA, US\n")
	assert.Contains(t, out, "- **Establishment Type:** Manufacture Medical Device\n")
	assert.Contains(t, out, "- **Product Codes:** DQA, LWR\n")
}

func TestFormat_NoRecords(t *testing.T) {
	assert.Equal(t, "No results found in the FDA recall database for this query.", Format(Recall, nil))
}

func TestFormatAll_CapsAndOmits(t *testing.T) {
	clearances := records(t, `[
		{"device_name": "One", "k_number": "1"},
		{"device_name": "Two", "k_number": "2"},
		{"device_name": "Three", "k_number": "3"}
	]`)
	recalls := records(t, `[{"product_description": "Pump", "reason_for_recall": "`+strings.Repeat("x", 120)+`"}]`)

	out := FormatAll(map[SubResource]*Response{
		Clearance:    {Results: clearances},
		Recall:       {Results: recalls},
		AdverseEvent: {Results: nil},
		Approval:     nil,
	})

	assert.True(t, strings.HasPrefix(out, "# FDA Medical Device Database Results\n\n"))
	assert.Contains(t, out, "## 510K Database\n")
	assert.Contains(t, out, "- **One** (K1)")
	assert.Contains(t, out, "- **Two** (K2)")
	assert.NotContains(t, out, "Three")
	assert.NotContains(t, out, "## EVENT Database")
	assert.NotContains(t, out, "## PMA Database")
	assert.Contains(t, out, "  - Recall Reason: "+strings.Repeat("x", 100)+"...\n")
	assert.Less(t, strings.Index(out, "## RECALL Database"), strings.Index(out, "## 510K Database"))
	assert.True(t, strings.HasSuffix(out, "\nSource: FDA Databases via api.fda.gov"))
}

func TestFormatAll_Empty(t *testing.T) {
	assert.Equal(t, "No results found in FDA databases for this query.", FormatAll(nil))
	assert.Equal(t, "No results found in FDA databases for this query.", FormatAll(map[SubResource]*Response{Recall: {}}))
}

func TestTruncate_RuneSafe(t *testing.T) {
	s := strings.Repeat("é", 5)
	assert.Equal(t, "ééé...", truncate(s, 3))
	assert.Equal(t, s, truncate(s, 5))
}
