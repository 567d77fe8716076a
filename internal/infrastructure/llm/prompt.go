package llm

import "strings"

// systemInstruction frames the persona for every evaluation request,
// independent of the user-configurable prompt template.
const systemInstruction = "You are a technology analyst specializing in cloud computing and enterprise technology."

// Prompt is a template with {title}, {summary} and {link} placeholders.
type Prompt struct {
	Template string
}

// Render substitutes the article fields into the template.
func (p Prompt) Render(title, summary, link string) string {
	return strings.NewReplacer(
		"{title}", title,
		"{summary}", summary,
		"{link}", link,
	).Replace(p.Template)
}
