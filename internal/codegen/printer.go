package codegen

import "strings"

// ---------------------------------------------------------------------------
// Printer
// ---------------------------------------------------------------------------

// Print renders instrs as an assembly file for t. Labels and section
// directives start in column 0; everything else is tab indented. Sections
// are set off by blank lines.
func Print(t *Target, instrs []Instr) string {
	var b strings.Builder
	for _, in := range instrs {
		switch in := in.(type) {
		case Directive:
			switch in.Name {
			case "text":
				if b.Len() > 0 {
					b.WriteString("\n")
				}
				b.WriteString(in.Render(t) + "\n\n")
			case "data":
				b.WriteString(in.Render(t) + "\n\n")
			case "ltorg":
				b.WriteString("\t" + in.Render(t) + "\n")
			default:
				b.WriteString(in.Render(t) + "\n")
			}
		case Label, Message:
			b.WriteString(in.Render(t) + "\n")
		default:
			b.WriteString("\t" + in.Render(t) + "\n")
		}
	}
	return b.String()
}
