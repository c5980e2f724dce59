package prompts

import (
	"fmt"
	"strings"
	"text/template"
)

const (
	Triage   = "triage"
	Standard = "standard"
	Answer   = "answer"
)

// Data is everything a template may reference.
type Data struct {
	Subject  string
	Question string
	Context  []string
}

var defaults = map[string]string{
	Triage: `You route questions for an assistant that answers questions about {{.Subject}}.
Reply with exactly one label and nothing else:
search_document - the question asks about {{.Subject}} or needs its text to be answered.
greet_or_decline - a greeting, small talk, thanks, or anything unrelated to {{.Subject}}.`,

	Standard: `You are a polite assistant that only answers questions about {{.Subject}}.
If the user greets you or thanks you, reply briefly and offer help with {{.Subject}}.
Otherwise explain in one or two sentences that you can only assist with questions about {{.Subject}}.
Do not answer the question itself.`,

	Answer: `You answer questions about {{.Subject}} using only the passages below.
Do not use any other knowledge. If the passages are empty or do not contain the answer,
reply exactly: "I cannot answer based on the provided information."
{{range $i, $c := .Context}}
[{{inc $i}}] {{$c}}
{{end}}`,
}

var funcs = template.FuncMap{
	"inc": func(i int) int { return i + 1 },
}

// Renderer holds the parsed templates. It is safe for concurrent use.
type Renderer struct {
	templates map[string]*template.Template
}

// NewRenderer parses the built-in templates, replacing any listed in overrides.
func NewRenderer(overrides map[string]string) (*Renderer, error) {
	r := &Renderer{templates: make(map[string]*template.Template, len(defaults))}
	for id, text := range defaults {
		if o, ok := overrides[id]; ok && strings.TrimSpace(o) != "" {
			text = o
		}
		tmpl, err := template.New(id).Funcs(funcs).Option("missingkey=error").Parse(text)
		if err != nil {
			return nil, fmt.Errorf("parse prompt %q: %w", id, err)
		}
		r.templates[id] = tmpl
	}
	for id := range overrides {
		if _, ok := defaults[id]; !ok {
			return nil, fmt.Errorf("unknown prompt %q", id)
		}
	}
	return r, nil
}

func (r *Renderer) RenderPrompt(templateID string, data Data) (string, error) {
	tmpl, ok := r.templates[templateID]
	if !ok {
		return "", fmt.Errorf("unknown prompt %q", templateID)
	}
	var b strings.Builder
	if err := tmpl.Execute(&b, data); err != nil {
		return "", fmt.Errorf("render prompt %q: %w", templateID, err)
	}
	return strings.TrimSpace(b.String()), nil
}
