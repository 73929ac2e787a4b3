package pipeline

import (
	"fmt"

	"github.com/looplab/fsm"
)

// GraphFormat selects the diagram flavour rendered by Graph.
type GraphFormat string

const (
	GraphMermaid     GraphFormat = "mermaid"
	GraphMermaidFlow GraphFormat = "mermaid-flow"
	GraphGraphviz    GraphFormat = "graphviz"
)

// Graph renders the pipeline transition table.
func Graph(format GraphFormat) (string, error) {
	machine := fsm.NewFSM(StateRoute, pipelineEvents(), fsm.Callbacks{})
	switch format {
	case "", GraphMermaid:
		return fsm.VisualizeWithType(machine, fsm.MermaidStateDiagram)
	case GraphMermaidFlow:
		return fsm.VisualizeWithType(machine, fsm.MermaidFlowChart)
	case GraphGraphviz:
		return fsm.VisualizeWithType(machine, fsm.GRAPHVIZ)
	default:
		return "", fmt.Errorf("unsupported graph format %q", format)
	}
}
