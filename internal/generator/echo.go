package generator

import (
	"context"
	"fmt"
	"strings"
)

// Echo is an offline generator for dry runs. Its output depends only on the
// request, so repeated runs are byte-identical.
type Echo struct{}

// Generate summarises the request without calling any model.
func (Echo) Generate(ctx context.Context, req Request) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", &Error{Provider: "echo", Err: err}
	}
	var b strings.Builder
	fmt.Fprintf(&b, "_Dry run: %s_\n\n", firstLine(req.Role))
	fmt.Fprintf(&b, "Instruction received (%d characters, temperature %.1f):\n\n", len(req.Instruction), req.Temperature)
	fmt.Fprintf(&b, "> %s\n", firstLine(req.Instruction))
	return b.String(), nil
}

func firstLine(s string) string {
	for _, line := range strings.Split(s, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			return line
		}
	}
	return "(empty)"
}
