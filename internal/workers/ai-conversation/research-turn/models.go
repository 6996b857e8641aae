// internal/workers/ai-conversation/research-turn/models.go
package researchturn

type Input struct {
	Question  string `json:"question"`
	SessionID string `json:"sessionId,omitempty"`
}

type Output struct {
	TurnID        string   `json:"turnId"`
	Answer        string   `json:"answer"`
	Sources       []string `json:"sources"`
	EvidenceCount int      `json:"evidenceCount"`
}

const inputSchema = `{
  "type": "object",
  "required": ["question"],
  "properties": {
    "question":  {"type": "string", "minLength": 1},
    "sessionId": {"type": "string"}
  }
}`
