package chains

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"

	"github.com/compozy/arag/engine/llm/chains/prompts"
)

const (
	tplRouterSystem       = "router_system.tmpl"
	tplRelevanceSystem    = "retrieval_grader_system.tmpl"
	tplRelevanceHuman     = "retrieval_grader_human.tmpl"
	tplHallucinationSys   = "hallucination_grader_system.tmpl"
	tplHallucinationHuman = "hallucination_grader_human.tmpl"
	tplGeneration         = "generation.tmpl"
)

var promptTemplates = template.Must(template.New("chains").ParseFS(prompts.TemplateFS, "templates/*.tmpl"))

func renderPrompt(name string, data any) (string, error) {
	tpl := promptTemplates.Lookup(name)
	if tpl == nil {
		return "", fmt.Errorf("prompt template %s not found", name)
	}
	var buf bytes.Buffer
	if err := tpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render prompt %s: %w", name, err)
	}
	return strings.TrimSpace(buf.String()), nil
}
