package agent

import (
	"testing"

	"device-research/internal/fda"

	"github.com/stretchr/testify/assert"
)

func TestNeedsRegulatory(t *testing.T) {
	tests := []struct {
		haystack string
		want     bool
	}{
		{"is this fda cleared", true},
		{"any maude reports", true},
		{"medical device classes", true},
		{"adverse event for x", true},
		{"my device broke", false},
		{"", false},
	}
	for _, tt := range tests {
		t.Run(tt.haystack, func(t *testing.T) {
			assert.Equal(t, tt.want, needsRegulatory(tt.haystack))
		})
	}
}

func TestRegulatoryParams(t *testing.T) {
	tests := []struct {
		name      string
		haystack  string
		wantQuery string
		wantSR    fda.SubResource
	}{
		{"recall beats clearance", "510k clearance and recall of stent", "stent", fda.Recall},
		{"clearance beats approval", "pma approval or 510k for catheter", "catheter", fda.Clearance},
		{"approval beats event", "approval after adverse event", defaultDeviceQuery, fda.Approval},
		{"adverse alone", "adverse outcomes with pacemaker", "pacemaker", fda.AdverseEvent},
		{"event alone", "any event reports", defaultDeviceQuery, fda.AdverseEvent},
		{"fallback all", "fda info on biofourmis", "biofourmis", fda.All},
		{"device order wins", "stent and everion", "everion", fda.All},
		{"insulin pump plural", "latest recall on insulin pumps", "insulin pump", fda.Recall},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			query, sr := regulatoryParams(tt.haystack)
			assert.Equal(t, tt.wantQuery, query)
			assert.Equal(t, tt.wantSR, sr)
		})
	}
}

func TestWantsWeb(t *testing.T) {
	assert.True(t, wantsWeb("Do a WEB SEARCH for this"))
	assert.True(t, wantsWeb("most Recent guidance"))
	assert.True(t, wantsWeb("current status"))
	assert.False(t, wantsWeb("510k for stents"))
}

func TestEvidence_AppendDoesNotAlias(t *testing.T) {
	base := Evidence{}.Append(EvidenceBlock{Label: LabelDocuments, Text: "a"})
	first := base.Append(EvidenceBlock{Label: LabelRegulatory, Text: "b"})
	second := base.Append(EvidenceBlock{Label: LabelWeb, Text: "c"})

	assert.Len(t, base, 1)
	assert.Equal(t, LabelRegulatory, first[1].Label)
	assert.Equal(t, LabelWeb, second[1].Label)
}

func TestEvidence_Haystack(t *testing.T) {
	e := Evidence{
		{Label: LabelDocuments, Text: "Mentions PMA"},
		{Label: LabelWeb, Text: "**Web Search Error:** x", Failed: true},
	}
	assert.Equal(t, "hello ## internal documents\nmentions pma **web search error:** x", e.Haystack("Hello"))
}

func TestBuildPrompt_WithEvidence(t *testing.T) {
	e := Evidence{{Label: LabelDocuments, Text: "doc text"}}
	assert.Equal(t, "User Question: q\n\nInformation Found:\n## Internal Documents\ndoc text\n\n"+
		"Please provide a comprehensive, well-structured answer based on the information above. "+
		"Use clear headings and highlight any important safety or regulatory information.", BuildPrompt("q", e))
}
