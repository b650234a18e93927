package machine

// State is the complete architectural machine state for one emulator
// instance: registers, flags, memory, call stack/trace, symbol table, and
// the hook registry (spec.md §3). It is exclusive to a single engine —
// callers must not alias it across goroutines.
type State struct {
	registers [RegCount]uint64
	rip       uint64
	rflags    uint64
	fsBase    uint64
	gsBase    uint64

	xmm [16][2]uint64 // low/high 64-bit lanes of XMM0-XMM15, for MOVUPS/XORPS (spec.md §4.3)

	memory *MemoryMap

	callStack   []uint64
	trace       []TraceEntry
	symbolTable map[uint64]string

	executedInstructions uint64
	finished              bool

	// code is the immutable byte buffer instructions are decoded from. It is
	// deliberately separate from memory: the decoder never fetches from the
	// memory map. Known limitation (spec.md §9): self-modifying code is
	// never observed, because writes through Memory() do not alias Code().
	code      []byte
	codeStart uint64

	hooks *HookRegistry
}

// Empty returns a State with no code, no memory regions, and zeroed
// registers/flags — the base case for direct builders (spec.md §3).
func Empty() *State {
	return &State{
		memory:      NewMemoryMap(),
		symbolTable: make(map[uint64]string),
		hooks:       NewHookRegistry(),
	}
}

// New returns a State whose code buffer is code, based at codeStart, with
// RIP initialized to initialRIP (must lie within [codeStart, codeStart+len)).
func New(code []byte, codeStart, initialRIP uint64) *State {
	s := Empty()
	s.code = code
	s.codeStart = codeStart
	s.rip = initialRIP
	return s
}

// Code returns the immutable code buffer and its base address.
func (s *State) Code() ([]byte, uint64) { return s.code, s.codeStart }

// SetCode installs the decodable instruction buffer and its base address.
// The loader calls this with the ELF file's .text section bytes; direct
// State construction via New does the same at construction time.
func (s *State) SetCode(code []byte, codeStart uint64) {
	s.code = code
	s.codeStart = codeStart
}

// Memory returns the machine's memory map.
func (s *State) Memory() *MemoryMap { return s.memory }

// Hooks returns the machine's hook registry.
func (s *State) Hooks() *HookRegistry { return s.hooks }

// RIP returns the current instruction pointer.
func (s *State) RIP() uint64 { return s.rip }

// SetRIP overwrites the instruction pointer (used by branch/call/ret
// semantics and by the engine's pre-execution advance).
func (s *State) SetRIP(v uint64) { s.rip = v }

// FSBase/GSBase return the segment bases used for fs:/gs: effective address
// computation (spec.md §4.4). Only FS/GS carry a base; other segments are
// zero.
func (s *State) FSBase() uint64 { return s.fsBase }
func (s *State) GSBase() uint64 { return s.gsBase }

// SetFSBase/SetGSBase overwrite the segment bases. The ELF loader calls
// SetFSBase for TLS setup (spec.md §4.8).
func (s *State) SetFSBase(v uint64) { s.fsBase = v }
func (s *State) SetGSBase(v uint64) { s.gsBase = v }

// ExecutedInstructions returns the monotonic per-instruction counter.
func (s *State) ExecutedInstructions() uint64 { return s.executedInstructions }

// IncrementExecuted advances the executed-instruction counter.
func (s *State) IncrementExecuted() { s.executedInstructions++ }

// Finished reports whether the terminal flag has been set.
func (s *State) Finished() bool { return s.finished }

// SetFinished sets or clears the terminal flag directly (the engine's own
// natural-finish detection uses this; hooks use the Stop() alias instead).
func (s *State) SetFinished(v bool) { s.finished = v }

// SymbolTable returns the address-to-name map populated by the loader.
func (s *State) SymbolTable() map[uint64]string { return s.symbolTable }

// AddSymbol registers a human-readable name for addr.
func (s *State) AddSymbol(addr uint64, name string) {
	s.symbolTable[addr] = name
}

// XMM returns the low/high 64-bit lanes of XMM register n (0-15).
func (s *State) XMM(n uint8) (lo, hi uint64) { return s.xmm[n][0], s.xmm[n][1] }

// SetXMM overwrites the low/high 64-bit lanes of XMM register n (0-15).
func (s *State) SetXMM(n uint8, lo, hi uint64) { s.xmm[n][0], s.xmm[n][1] = lo, hi }

// InitStack sets RSP to top. This is the minimal stack setup used by
// raw-code tests and binaries that don't need argv/envp (spec.md §6).
func (s *State) InitStack(top uint64) {
	s.SetReg64(RSP, top)
}

// InitStackProgramStart builds the System V AMD64 initial stack image a
// freshly exec'd process sees: from high to low addresses, the argv/envp
// string bytes, then (16-byte aligned) an auxiliary vector holding only the
// AT_NULL entry, the envp pointer vector (NULL-terminated), the argv pointer
// vector (NULL-terminated), and argc, with RSP left pointing at argc
// (spec.md §6's "argv/envp/auxv stack layout"). The retrieved slice of the
// original this emulator is modeled on calls this before running any binary
// that reads its own command line, but doesn't retain the layout routine
// itself; the byte layout below is the standard ABI one assumed by every ELF
// loader and by the original's own test fixtures (e.g. args.bin) that print
// argv back out.
func (s *State) InitStackProgramStart(top uint64, argv, envp []string) *Error {
	const stackRegionName = "stack"
	const auxNull = 0 // AT_NULL

	if err := s.memory.InitZeroNamed(top-0x10000, 0x10000, stackRegionName); err != nil {
		return err
	}

	write := func(addr uint64, data []byte) uint64 {
		addr -= uint64(len(data))
		s.memory.WriteBytes(addr, data)
		return addr
	}

	sp := top

	argvPtrs := make([]uint64, 0, len(argv))
	for _, a := range argv {
		sp = write(sp, append([]byte(a), 0))
		argvPtrs = append(argvPtrs, sp)
	}
	envpPtrs := make([]uint64, 0, len(envp))
	for _, e := range envp {
		sp = write(sp, append([]byte(e), 0))
		envpPtrs = append(envpPtrs, sp)
	}

	// Align so that, after pushing the pointer vectors + argc, RSP is
	// 16-byte aligned at process entry per the ABI.
	sp &^= 0xF
	// auxv pair + envp vector and NULL + argv vector and NULL + argc
	if (2+len(envpPtrs)+1+len(argvPtrs)+1+1)%2 != 0 {
		sp -= 8
	}

	var u64 [8]byte
	pushU64 := func(v uint64) {
		sp -= 8
		putUint64LE(u64[:], v)
		s.memory.WriteBytes(sp, u64[:])
	}

	pushU64(auxNull)
	pushU64(auxNull) // AT_NULL auxv entry is a (type, value) pair

	pushU64(0) // envp NULL terminator
	for i := len(envpPtrs) - 1; i >= 0; i-- {
		pushU64(envpPtrs[i])
	}

	pushU64(0) // argv NULL terminator
	for i := len(argvPtrs) - 1; i >= 0; i-- {
		pushU64(argvPtrs[i])
	}

	pushU64(uint64(len(argv)))

	s.SetReg64(RSP, sp)
	return nil
}

func putUint64LE(b []byte, v uint64) {
	for i := 0; i < 8; i++ {
		b[i] = byte(v >> (8 * i))
	}
}
