package agent

import "fmt"

// BuildPrompt frames the question with the gathered evidence, or asks for a
// best-effort answer when nothing was found.
func BuildPrompt(question string, evidence Evidence) string {
	if len(evidence) == 0 {
		return fmt.Sprintf("User Question: %s\n\n"+
			"No additional information was found from the search tools. "+
			"Please provide the best answer you can and suggest what specific information the user might want to search for.",
			question)
	}
	return fmt.Sprintf("User Question: %s\n\n"+
		"Information Found:\n%s\n\n"+
		"Please provide a comprehensive, well-structured answer based on the information above. "+
		"Use clear headings and highlight any important safety or regulatory information.",
		question, evidence.Render())
}
