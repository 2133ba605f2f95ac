package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"gopkg.in/yaml.v3"

	"prologns/pkg/isolated"
)

// Output formats.
const (
	formatText = "text"
	formatJSON = "json"
	formatYAML = "yaml"
)

var (
	varStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#2196F3"))
	trueStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#8BC34A"))
	falseStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#e53935"))
	headerStyle = lipgloss.NewStyle().Bold(true).Underline(true)
)

// nativeSolutions projects solutions onto plain Go values for encoding.
func nativeSolutions(sols []isolated.Solution) []any {
	out := make([]any, 0, len(sols))
	for _, sol := range sols {
		out = append(out, isolated.NativeTerm(sol))
	}
	return out
}

func writeSolutions(w io.Writer, format string, sols []isolated.Solution) error {
	switch format {
	case formatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(nativeSolutions(sols))
	case formatYAML:
		enc := yaml.NewEncoder(w)
		defer enc.Close()
		return enc.Encode(nativeSolutions(sols))
	case formatText, "":
		_, err := io.WriteString(w, renderText(sols))
		return err
	default:
		return fmt.Errorf("unknown output format: %s (valid: text, json, yaml)", format)
	}
}

// renderText prints solutions the way a Prolog top level does: one line of
// bindings per solution, "true." for an empty one and "false." for none.
func renderText(sols []isolated.Solution) string {
	if len(sols) == 0 {
		return falseStyle.Render("false.") + "\n"
	}
	var b strings.Builder
	for _, sol := range sols {
		if len(sol) == 0 {
			b.WriteString(trueStyle.Render("true."))
			b.WriteByte('\n')
			continue
		}
		parts := make([]string, 0, len(sol))
		for _, k := range sol.Keys() {
			parts = append(parts, varStyle.Render(k)+" = "+isolated.FormatTerm(sol[k]))
		}
		b.WriteString(strings.Join(parts, ", "))
		b.WriteByte('\n')
	}
	return b.String()
}

// writeSection prints a titled block for commands that report several
// knowledge bases at once.
func writeSection(w io.Writer, format, title string, sols []isolated.Solution, err error) error {
	switch format {
	case formatJSON, formatYAML:
		entry := map[string]any{"source": title, "solutions": nativeSolutions(sols)}
		if err != nil {
			entry["error"] = err.Error()
		}
		if format == formatJSON {
			return json.NewEncoder(w).Encode(entry)
		}
		enc := yaml.NewEncoder(w)
		defer enc.Close()
		return enc.Encode(entry)
	default:
		fmt.Fprintln(w, headerStyle.Render(title))
		if err != nil {
			_, werr := fmt.Fprintln(w, falseStyle.Render("error: "+err.Error()))
			return werr
		}
		_, werr := io.WriteString(w, renderText(sols))
		return werr
	}
}
