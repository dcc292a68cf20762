package iloc

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// Parse reads an ILOC text stream and returns the parsed instructions.
// "//" introduces an end-of-line comment; tokens are maximal runs of word
// characters (a "-" directly before a digit starts a token as its sign),
// with "=>" and "," discarded as delimiters. A line with zero
// tokens is skipped. A line with more than four tokens (opcode plus up to
// three operands) is a fatal *MalformedInstructionError.
func Parse(r io.Reader) ([]Instruction, error) {
	scanner := bufio.NewScanner(r)
	var out []Instruction
	lineNo := 0

	for scanner.Scan() {
		lineNo++
		raw := scanner.Text()

		line := raw
		if idx := strings.Index(line, "//"); idx >= 0 {
			line = line[:idx]
		}

		tokens := tokenize(line)
		if len(tokens) == 0 {
			continue
		}
		if len(tokens) > 4 {
			return nil, &MalformedInstructionError{Line: lineNo, Text: raw}
		}

		inst, err := buildInstruction(tokens)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNo, err)
		}
		out = append(out, inst)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// ParseString is a convenience wrapper around Parse for in-memory text.
func ParseString(s string) ([]Instruction, error) {
	return Parse(strings.NewReader(s))
}

// tokenize splits a line into maximal runs of word characters, discarding
// "=>" and "," (and any other punctuation) as delimiters. A "-" immediately
// followed by a digit is kept as the sign of a negative integer literal
// (spill offsets are always negative) rather than discarded as punctuation;
// see DESIGN.md's Open Questions for why this departs from the reference
// tokenizer's plain \w+ behavior.
func tokenize(line string) []string {
	runes := []rune(line)
	var tokens []string
	var cur strings.Builder
	flush := func() {
		if cur.Len() > 0 {
			tokens = append(tokens, cur.String())
			cur.Reset()
		}
	}
	for i := 0; i < len(runes); i++ {
		r := runes[i]
		switch {
		case isWordChar(r):
			cur.WriteRune(r)
		case r == '-' && cur.Len() == 0 && i+1 < len(runes) && runes[i+1] >= '0' && runes[i+1] <= '9':
			cur.WriteRune(r)
		default:
			flush()
		}
	}
	flush()
	return tokens
}

func isWordChar(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
		return true
	default:
		return false
	}
}

// buildInstruction assigns the 1-4 tokens of a line to opcode/operand
// positions: 1 operand -> op1 only; 2 operands with opcode "store"
// -> (op1, op2), no dst; 2 operands otherwise -> (op1, dst); 3 operands ->
// (op1, op2, dst).
func buildInstruction(tokens []string) (Instruction, error) {
	op := Opcode(tokens[0])
	operands := tokens[1:]

	switch len(operands) {
	case 0:
		return NewInstruction(op, "", "", ""), nil
	case 1:
		return NewInstruction(op, operands[0], "", ""), nil
	case 2:
		if op == OpStore {
			return NewInstruction(op, operands[0], operands[1], ""), nil
		}
		return NewInstruction(op, operands[0], "", operands[1]), nil
	case 3:
		return NewInstruction(op, operands[0], operands[1], operands[2]), nil
	default:
		return Instruction{}, fmt.Errorf("unexpected operand count %d", len(operands))
	}
}
