package iloc

import (
	"io"
	"strings"
)

// Print writes instructions to w, one per line, in the format Parse accepts.
func Print(w io.Writer, instructions []Instruction) error {
	for _, inst := range instructions {
		if _, err := io.WriteString(w, inst.String()); err != nil {
			return err
		}
		if _, err := io.WriteString(w, "\n"); err != nil {
			return err
		}
	}
	return nil
}

// Sprint renders instructions to a single string, for tests and round-trip
// checks (Parse(Sprint(x)) == x).
func Sprint(instructions []Instruction) string {
	var b strings.Builder
	for _, inst := range instructions {
		b.WriteString(inst.String())
		b.WriteByte('\n')
	}
	return b.String()
}
