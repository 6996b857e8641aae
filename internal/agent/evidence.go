package agent

import "strings"

const (
	LabelDocuments  = "Internal Documents"
	LabelRegulatory = "FDA Database Results"
	LabelWeb        = "Web Search Results"
)

// EvidenceBlock is one source's contribution to a turn. Failed blocks carry
// the error text instead of the source output.
type EvidenceBlock struct {
	Label  string
	Text   string
	Failed bool
}

func (b EvidenceBlock) String() string {
	if b.Failed {
		return b.Text
	}
	return "## " + b.Label + "\n" + b.Text
}

// Evidence is the per-turn accumulator. Append never mutates the receiver's
// backing array, so a value handed to one step is unaffected by later steps.
type Evidence []EvidenceBlock

func (e Evidence) Append(b EvidenceBlock) Evidence {
	out := make(Evidence, len(e), len(e)+1)
	copy(out, e)
	return append(out, b)
}

// Render joins the blocks in gathered order.
func (e Evidence) Render() string {
	parts := make([]string, len(e))
	for i, b := range e {
		parts[i] = b.String()
	}
	return strings.Join(parts, "\n\n")
}

// Haystack is the lower-cased utterance plus all evidence, used by the rules.
func (e Evidence) Haystack(utterance string) string {
	parts := make([]string, 0, len(e)+1)
	parts = append(parts, utterance)
	for _, b := range e {
		parts = append(parts, b.String())
	}
	return strings.ToLower(strings.Join(parts, " "))
}

// Sources lists the labels of blocks that succeeded.
func (e Evidence) Sources() []string {
	var out []string
	for _, b := range e {
		if !b.Failed {
			out = append(out, b.Label)
		}
	}
	return out
}
