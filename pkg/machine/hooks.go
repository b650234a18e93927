package machine

import "github.com/oisee/ax/pkg/isa"

// HookResult is returned by a Callback to tell the arbiter whether it
// considers the mnemonic handled (spec.md §4.7).
type HookResult int

const (
	Unhandled HookResult = iota
	Handled
)

// Callback is a host-supplied hook. It receives the engine's exclusive
// owner (via the *State it's given, mediated by the engine) and the
// mnemonic that triggered it, and returns whether it handled the event, or
// an error that aborts the step. A callback may call (*State).Stop to end
// execution after the current instruction boundary — see spec.md §4.7 and
// §5 on suspension points; Go's goroutines give every Callback the "may be
// asynchronous" latitude spec.md §5 describes for free; the engine simply
// calls it and waits for it to return, so no separate async/sync callback
// shape is needed the way a language without goroutines would require a
// continuation-passing shim (spec.md §9).
type Callback func(s *State, m isa.Mnemonic) (HookResult, error)

// Hook is the before/after callback list for one mnemonic.
type Hook struct {
	Before []Callback
	After  []Callback
}

// HookRegistry maps a supported mnemonic to its before/after callback lists.
// Registration is forbidden while any hook is executing (the "running" gate,
// spec.md §4.7); the registry is otherwise immutable during stepping.
type HookRegistry struct {
	hooks   [isa.Count]*Hook
	running bool
}

// NewHookRegistry returns an empty registry.
func NewHookRegistry() *HookRegistry {
	return &HookRegistry{}
}

func (r *HookRegistry) entry(m isa.Mnemonic) *Hook {
	h := r.hooks[m]
	if h == nil {
		h = &Hook{}
		r.hooks[m] = h
	}
	return h
}

// Before registers a before-hook for m, in order. Fails with
// KindHookRegistryBusy if a hook is currently running.
func (r *HookRegistry) Before(m isa.Mnemonic, cb Callback) *Error {
	if r.running {
		return Newf(KindHookRegistryBusy, "cannot add hooks while another hook is running")
	}
	e := r.entry(m)
	e.Before = append(e.Before, cb)
	return nil
}

// After registers an after-hook for m, in order.
func (r *HookRegistry) After(m isa.Mnemonic, cb Callback) *Error {
	if r.running {
		return Newf(KindHookRegistryBusy, "cannot add hooks while another hook is running")
	}
	e := r.entry(m)
	e.After = append(e.After, cb)
	return nil
}

// Get returns the hook record for m, or nil if none registered.
func (r *HookRegistry) Get(m isa.Mnemonic) *Hook {
	return r.hooks[m]
}

// Running reports whether a hook is currently executing (registry mutation
// is forbidden in this state).
func (r *HookRegistry) Running() bool { return r.running }

// RunBefore runs the before-hooks for mnemonic m in registration order. A
// Handled result short-circuits the remaining before-hooks (spec.md §4.7);
// the instruction still executes afterward unless a hook also called Stop.
func (s *State) RunBefore(m isa.Mnemonic) error {
	h := s.hooks.Get(m)
	if h == nil {
		return nil
	}
	return s.runHookList(m, h.Before)
}

// RunAfter runs the after-hooks for mnemonic m, with the same short-circuit
// semantics as RunBefore.
func (s *State) RunAfter(m isa.Mnemonic) error {
	h := s.hooks.Get(m)
	if h == nil {
		return nil
	}
	return s.runHookList(m, h.After)
}

func (s *State) runHookList(m isa.Mnemonic, list []Callback) error {
	s.hooks.running = true
	defer func() { s.hooks.running = false }()

	for _, cb := range list {
		result, err := cb(s, m)
		if err != nil {
			return Wrap(KindHookCallbackFailed, "running hook: ", err)
		}
		if result == Handled {
			break
		}
	}
	return nil
}

// HookBefore registers a before-hook for mnemonic m on this state's engine.
func (s *State) HookBefore(m isa.Mnemonic, cb Callback) *Error {
	return s.hooks.Before(m, cb)
}

// HookAfter registers an after-hook for mnemonic m on this state's engine.
func (s *State) HookAfter(m isa.Mnemonic, cb Callback) *Error {
	return s.hooks.After(m, cb)
}

// Stop requests that execution cease after the current instruction
// boundary. Safe to call from within a hook; in-flight hooks in the same
// list still run to completion before the outer step loop exits
// (spec.md §4.7 "Cancellation").
func (s *State) Stop() {
	s.finished = true
}
