// internal/workers/data-access/fda-lookup/models.go
package fdalookup

type Input struct {
	Query    string `json:"query"`
	Database string `json:"database,omitempty"`
	Limit    int    `json:"limit,omitempty"`
}

type Output struct {
	Report   string `json:"report"`
	Database string `json:"database"`
}

const inputSchema = `{
  "type": "object",
  "required": ["query"],
  "properties": {
    "query":    {"type": "string"},
    "database": {"type": "string"},
    "limit":    {"type": "integer", "minimum": 0, "maximum": 100}
  }
}`
