package export

import (
	"fmt"
	"strings"

	"github.com/dusk-indust/cofounder/internal/orchestrator"
)

// PipelineMermaid renders the run state machine as a Mermaid flowchart.
// Each record key is an edge from the step before it to the step it
// completes; every step before Compiled can fall through to Failed. When
// current is non-empty that step is highlighted.
func PipelineMermaid(current orchestrator.Step) string {
	var sb strings.Builder
	sb.WriteString("flowchart LR\n")

	prev := orchestrator.StepNotStarted
	steps := []orchestrator.Step{prev}
	fmt.Fprintf(&sb, "  %s([%s])\n", prev, prev)
	for _, k := range orchestrator.Keys() {
		next := orchestrator.DoneStep(k)
		label := string(k)
		if k == orchestrator.KeyFinal {
			label = "compile"
		}
		fmt.Fprintf(&sb, "  %s -->|%s| %s\n", prev, label, next)
		steps = append(steps, next)
		prev = next
	}

	for _, s := range steps[:len(steps)-1] {
		fmt.Fprintf(&sb, "  %s -.->|error| %s\n", s, orchestrator.StepFailed)
	}
	fmt.Fprintf(&sb, "  %s([%s])\n", orchestrator.StepCompiled, orchestrator.StepCompiled)
	fmt.Fprintf(&sb, "  %s{{%s}}\n", orchestrator.StepFailed, orchestrator.StepFailed)

	if current != "" {
		sb.WriteString("  classDef current fill:#ffd966,stroke:#b8860b,stroke-width:2px\n")
		fmt.Fprintf(&sb, "  class %s current\n", current)
	}
	return sb.String()
}
