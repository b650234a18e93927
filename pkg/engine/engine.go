// Package engine drives the decode -> dispatch -> semantic-effect ->
// control-flow-update -> hook-arbitration loop over a machine.State
// (spec.md §3/§5). Each closed-set mnemonic gets one handler registered in
// the dispatch table declared in this file, by the init functions of the
// per-family semantics files in this package.
package engine

import (
	"context"
	"fmt"

	"github.com/oisee/ax/pkg/decode"
	"github.com/oisee/ax/pkg/isa"
	"github.com/oisee/ax/pkg/machine"
)

// handler implements the semantic effect and any control-flow update for one
// mnemonic. It must not run hooks itself; the engine's Step loop owns hook
// arbitration around every handler invocation (spec.md §4.7).
type handler func(e *Engine, inst decode.Instruction) error

var dispatch [isa.Count]handler

func register(m isa.Mnemonic, h handler) {
	if dispatch[m] != nil {
		panic(fmt.Sprintf("engine: duplicate handler registered for %s", m))
	}
	// Handlers often return a *machine.Error straight through as error; a
	// nil pointer in that position is a non-nil interface, so it is mapped
	// back to a plain nil here.
	dispatch[m] = func(e *Engine, inst decode.Instruction) error {
		err := h(e, inst)
		if me, ok := err.(*machine.Error); ok && me == nil {
			return nil
		}
		return err
	}
}

// Engine owns the machine state and steps it forward one instruction at a
// time. It is the only thing in this package that mutates State's control
// flow (RIP, call stack, trace); semantics handlers go through it rather
// than touching State directly for anything control-flow related.
type Engine struct {
	State *machine.State
}

// New wraps an already-built State (code loaded, stack initialized) in an
// Engine ready to Step/Execute.
func New(s *machine.State) *Engine {
	return &Engine{State: s}
}

// disasm adapts this engine's decode window into the callback shape
// machine.State.Trace/CallStackString expect.
func (e *Engine) disasm(ip uint64) (string, bool) {
	code, base := e.State.Code()
	if ip < base || ip >= base+uint64(len(code)) {
		return "", false
	}
	return decode.Disassemble(code[ip-base:], ip)
}

// Disasm exposes the same lookup for callers outside this package (the CLI's
// trace/disasm subcommands).
func (e *Engine) Disasm(ip uint64) (string, bool) { return e.disasm(ip) }

// decodeNext decodes the instruction at the current RIP.
func (e *Engine) decodeNext() (decode.Instruction, *machine.Error) {
	code, base := e.State.Code()
	rip := e.State.RIP()
	if rip < base || rip >= base+uint64(len(code)) {
		return decode.Instruction{}, machine.Newf(machine.KindDecodeOutOfBounds, "rip %#x outside code region [%#x, %#x)", rip, base, base+uint64(len(code)))
	}
	inst, err := decode.DecodeAt(code[rip-base:], rip)
	if err != nil {
		return decode.Instruction{}, machine.Wrap(machine.KindInvalidInstruction, fmt.Sprintf("decode at %#x: ", rip), err)
	}
	return inst, nil
}

// Step decodes and executes exactly one instruction: hooks-before, the
// mnemonic's semantic effect (which also updates RIP for anything that isn't
// a simple fall-through), the executed-instruction counter and end-of-code
// check, then hooks-after (spec.md §5's single-step suspension point).
func (e *Engine) Step(ctx context.Context) error {
	if e.State.Finished() {
		return machine.Newf(machine.KindEngineAlreadyFinished, "engine has already finished")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	inst, derr := e.decodeNext()
	if derr != nil {
		return derr
	}

	h := dispatch[inst.Mnemonic]
	if h == nil {
		return machine.Newf(machine.KindUnsupportedOpcode, "no handler registered for %s at %#x", inst.Mnemonic, inst.IP)
	}

	// Default fall-through, set before hooks run so a before-hook observes
	// next_ip the way spec's ordering guarantee requires; control-flow
	// handlers (call/ret/jmp/jcc) overwrite RIP themselves afterward.
	e.State.SetRIP(inst.NextIP)

	if err := e.State.RunBefore(inst.Mnemonic); err != nil {
		return e.annotate(err, inst)
	}
	if e.State.Finished() {
		return nil
	}

	if err := h(e, inst); err != nil {
		return e.annotate(err, inst)
	}

	e.State.IncrementExecuted()

	code, base := e.State.Code()
	if e.State.RIP() >= base+uint64(len(code)) {
		e.State.SetFinished(true)
	}

	if err := e.State.RunAfter(inst.Mnemonic); err != nil {
		return e.annotate(err, inst)
	}

	return nil
}

// Execute steps until the engine finishes (Stop() called by a hook, or RIP
// walks off the end of the code region) or ctx is canceled.
func (e *Engine) Execute(ctx context.Context) error {
	for !e.State.Finished() {
		code, base := e.State.Code()
		if e.State.RIP() >= base+uint64(len(code)) {
			e.State.SetFinished(true)
			return nil
		}
		if err := e.Step(ctx); err != nil {
			return err
		}
	}
	return nil
}

// annotate adds instruction text, encoding address, and executed-count
// context to an outgoing error, per spec.md §7's error-enrichment policy.
func (e *Engine) annotate(err error, inst decode.Instruction) error {
	me, ok := err.(*machine.Error)
	if !ok {
		return err
	}
	return me.WithContext(fmt.Sprintf("at %#x (%s), after %d instructions: ", inst.IP, inst.Text, e.State.ExecutedInstructions()))
}
