package prompts

import "embed"

// TemplateFS exposes the prompt templates used by the question-answering chains.
//
//go:embed templates/*.tmpl
var TemplateFS embed.FS
