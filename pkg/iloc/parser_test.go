package iloc

import "testing"

func TestParseBasicForms(t *testing.T) {
	src := `
loadI 1024 => r1    // comment
loadI 1 => r2
add r1, r2 => r3
store r3 => r1
storeAI r3 => r0, -4
output r3
outputAI r0, 8

`
	insts, err := ParseString(src)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	want := []string{
		"loadI\t1024\t=> r1",
		"loadI\t1\t=> r2",
		"add\tr1, r2\t=> r3",
		"store\tr3\t=> r1",
		"storeAI\tr3\t=> r0, -4",
		"output\tr3",
		"outputAI r0, 8",
	}
	if len(insts) != len(want) {
		t.Fatalf("got %d instructions, want %d", len(insts), len(want))
	}
	for i, inst := range insts {
		if inst.String() != want[i] {
			t.Errorf("instruction %d = %q, want %q", i, inst.String(), want[i])
		}
	}
}

func TestParseSkipsBlankAndCommentOnlyLines(t *testing.T) {
	insts, err := ParseString("\n// just a comment\n\noutput r1\n")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(insts) != 1 {
		t.Fatalf("got %d instructions, want 1", len(insts))
	}
}

func TestParseMalformedInstructionIsFatal(t *testing.T) {
	_, err := ParseString("add r1, r2, r3 => r4\n")
	if err == nil {
		t.Fatal("expected an error for a 5-token line")
	}
	var malformed *MalformedInstructionError
	if !asMalformed(err, &malformed) {
		t.Fatalf("expected *MalformedInstructionError, got %T: %v", err, err)
	}
	if malformed.Line != 1 {
		t.Errorf("Line = %d, want 1", malformed.Line)
	}
}

func asMalformed(err error, target **MalformedInstructionError) bool {
	if e, ok := err.(*MalformedInstructionError); ok {
		*target = e
		return true
	}
	return false
}

func TestRoundTrip(t *testing.T) {
	src := `loadI 2 => r1
loadI 3 => r2
mult r1, r2 => r3
storeAI r3 => r0, -4
loadAI r0, -4 => r4
output r4
`
	first, err := ParseString(src)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	printed := Sprint(first)
	second, err := ParseString(printed)
	if err != nil {
		t.Fatalf("re-parse: %v", err)
	}
	if len(first) != len(second) {
		t.Fatalf("round trip changed instruction count: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i].String() != second[i].String() {
			t.Errorf("instruction %d changed under round trip: %q vs %q", i, first[i], second[i])
		}
	}
}
