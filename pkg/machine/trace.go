package machine

import (
	"fmt"
	"strings"
)

// TraceVariant classifies one control-transfer event (spec.md §3/§4.5).
type TraceVariant int

const (
	TraceCall TraceVariant = iota
	TraceReturn
	TraceJump
)

// TraceEntry is a single recorded control-transfer event.
type TraceEntry struct {
	InstrIP uint64
	Target  uint64
	Variant TraceVariant
	Level   int
}

func (e TraceEntry) equalEvent(o TraceEntry) bool {
	return e.InstrIP == o.InstrIP && e.Target == o.Target && e.Variant == o.Variant && e.Level == o.Level
}

// AppendTrace derives the nesting level from the previous entry (Call:+1,
// Return:-1, Jump:0) and appends a new entry, per spec.md §3.
func (s *State) AppendTrace(instrIP, target uint64, variant TraceVariant) {
	level := 0
	if n := len(s.trace); n > 0 {
		last := s.trace[n-1]
		level = last.Level
		switch last.Variant {
		case TraceCall:
			level++
		case TraceReturn:
			level--
		case TraceJump:
			// unchanged
		}
	}
	s.trace = append(s.trace, TraceEntry{InstrIP: instrIP, Target: target, Variant: variant, Level: level})
}

// TraceEntries exposes the raw trace for inspection/tests.
func (s *State) TraceEntries() []TraceEntry { return s.trace }

func (s *State) symbolOrAddr(addr uint64) string {
	if name, ok := s.symbolTable[addr]; ok {
		return fmt.Sprintf("%s@%#x", name, addr)
	}
	return fmt.Sprintf("%#x", addr)
}

// Trace renders the recorded control-flow events into the indented,
// compacted textual form from spec.md §4.5: consecutive identical Jump
// entries collapse into one line with a "(repeated N more times)" suffix.
// disasm formats a decoded instruction at the given address for display;
// the engine supplies this since the decoder lives in a higher-level package
// that would otherwise create an import cycle with machine.
func (s *State) Trace(disasm func(addr uint64) (string, bool)) string {
	var b strings.Builder

	i := 0
	for i < len(s.trace) {
		entry := s.trace[i]

		var instrText, instrSym string
		if entry.InstrIP == 0 {
			instrText = "entrypoint"
			instrSym = "<emulator_start>"
		} else {
			if text, ok := disasm(entry.InstrIP); ok {
				instrText = text
			} else {
				instrText = "<decoding error>"
			}
			instrSym = s.symbolOrAddr(entry.InstrIP)
		}
		targetSym := s.symbolOrAddr(entry.Target)

		repeats := 0
		if entry.Variant == TraceJump {
			for j := i + 1; j < len(s.trace) && s.trace[j].equalEvent(entry); j++ {
				repeats++
			}
		}

		indent := strings.Repeat("  ", entry.Level)
		if repeats > 0 {
			fmt.Fprintf(&b, "%s%s: %s => %s (repeated %d more times)\n", indent, instrSym, instrText, targetSym, repeats)
			i += repeats + 1
			continue
		}
		fmt.Fprintf(&b, "%s%s: %s => %s\n", indent, instrSym, instrText, targetSym)
		i++
	}

	return b.String()
}

// PushCall records target on the software call stack (used only for
// human-readable tracing, independent of the guest's runtime stack in
// memory per spec.md §3).
func (s *State) PushCall(target uint64) {
	s.callStack = append(s.callStack, target)
}

// PopCall removes and returns the top of the call stack, if any.
func (s *State) PopCall() (uint64, bool) {
	n := len(s.callStack)
	if n == 0 {
		return 0, false
	}
	top := s.callStack[n-1]
	s.callStack = s.callStack[:n-1]
	return top, true
}

// CallStackEntries exposes the raw call stack for inspection/tests.
func (s *State) CallStackEntries() []uint64 { return s.callStack }

// CallStackString renders the call stack the way the original's call_stack()
// does: an arrow-indented tree with the current frame marked, plus the
// current RIP/instruction if disasm can resolve it.
func (s *State) CallStackString(disasm func(addr uint64) (string, bool)) string {
	var b strings.Builder

	for i, addr := range s.callStack {
		formatted := s.symbolOrAddr(addr)
		indent := strings.Repeat("  ", i)
		if i == len(s.callStack)-1 {
			fmt.Fprintf(&b, "%s=> %s            <------------ in this function\n", indent, formatted)
		} else {
			fmt.Fprintf(&b, "%s-> %s\n", indent, formatted)
		}
	}

	indent := strings.Repeat("  ", len(s.callStack))
	if text, ok := disasm(s.rip); ok {
		fmt.Fprintf(&b, "%s  rip@%#x            <------------ at or before this instruction pointer\n", indent, s.rip)
		fmt.Fprintf(&b, "%s  %s            <------------ at this or the previous instruction\n", indent, text)
	}

	return b.String()
}
