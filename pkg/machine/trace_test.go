package machine

import (
	"strings"
	"testing"
)

// noDisasm is a disasm callback that always reports it can't decode, useful
// for trace tests that only care about the repeat-compaction structure.
func noDisasm(addr uint64) (string, bool) { return "", false }

func TestTraceEntrypointLine(t *testing.T) {
	s := Empty()
	s.AddSymbol(0x401000, "_start")
	s.AppendTrace(0, 0x401000, TraceCall)

	got := s.Trace(noDisasm)
	want := "<emulator_start>: entrypoint => _start@0x401000\n"
	if got != want {
		t.Errorf("Trace() = %q, want %q", got, want)
	}
}

func TestTraceNestingLevels(t *testing.T) {
	s := Empty()
	s.AddSymbol(0x401000, "_start")
	s.AddSymbol(0x401015, "callee")
	s.AppendTrace(0, 0x401000, TraceCall)            // level 0
	s.AppendTrace(0x401005, 0x401015, TraceCall)      // level 1
	s.AppendTrace(0x401020, 0x40100a, TraceReturn)    // level 2, next drops to 1

	lines := strings.Split(strings.TrimRight(s.Trace(noDisasm), "\n"), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected 3 trace lines, got %d: %q", len(lines), lines)
	}
	if strings.HasPrefix(lines[0], " ") {
		t.Errorf("entrypoint line should have no indent, got %q", lines[0])
	}
	if !strings.HasPrefix(lines[1], "  ") {
		t.Errorf("second call should be indented one level, got %q", lines[1])
	}
	if !strings.HasPrefix(lines[2], "    ") {
		t.Errorf("return after the nested call should be indented two levels, got %q", lines[2])
	}
}

func TestTraceRepeatCompaction(t *testing.T) {
	s := Empty()
	s.AppendTrace(0, 0x401000, TraceCall)
	for i := 0; i < 10; i++ {
		s.AppendTrace(0x401042, 0x401036, TraceJump)
	}
	s.AppendTrace(0x401049, 0x401000, TraceCall)

	got := s.Trace(noDisasm)
	if !strings.Contains(got, "(repeated 9 more times)") {
		t.Errorf("Trace() = %q, want a line with \"(repeated 9 more times)\"", got)
	}
	// Ten identical jumps plus the entrypoint and the trailing call collapse
	// to exactly three lines.
	lines := strings.Split(strings.TrimRight(got, "\n"), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected repeated jumps to collapse to one line (3 total), got %d: %q", len(lines), lines)
	}
}

func TestCallStackPushPop(t *testing.T) {
	s := Empty()
	s.PushCall(0x1000)
	s.PushCall(0x2000)

	if entries := s.CallStackEntries(); len(entries) != 2 {
		t.Fatalf("expected 2 call stack entries, got %d", len(entries))
	}

	top, ok := s.PopCall()
	if !ok || top != 0x2000 {
		t.Errorf("PopCall() = (%#x, %v), want (0x2000, true)", top, ok)
	}
	if entries := s.CallStackEntries(); len(entries) != 1 {
		t.Fatalf("expected 1 call stack entry after pop, got %d", len(entries))
	}

	s.PopCall()
	if _, ok := s.PopCall(); ok {
		t.Error("PopCall() on an empty call stack should report ok=false")
	}
}
