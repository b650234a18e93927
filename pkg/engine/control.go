package engine

import (
	"github.com/oisee/ax/pkg/decode"
	"github.com/oisee/ax/pkg/isa"
	"github.com/oisee/ax/pkg/machine"
)

func init() {
	register(isa.Call, callHandler)
	register(isa.Ret, retHandler)
	register(isa.Jmp, jmpHandler)
	register(isa.Push, pushHandler)
	register(isa.Pop, popHandler)

	for _, m := range []isa.Mnemonic{
		isa.Ja, isa.Jae, isa.Jb, isa.Jbe, isa.Je, isa.Jecxz, isa.Jg, isa.Jge,
		isa.Jl, isa.Jle, isa.Jne, isa.Jno, isa.Jnp, isa.Jns, isa.Jo, isa.Jp,
		isa.Jrcxz, isa.Js,
	} {
		register(m, jccHandler)
	}
}

func branchTarget(e *Engine, arg decode.Arg) (uint64, *machine.Error) {
	if arg.Kind == decode.KindRel {
		return uint64(arg.Rel), nil
	}
	return e.readOperand(arg, 64)
}

func callHandler(e *Engine, inst decode.Instruction) error {
	target, err := branchTarget(e, inst.Args[0])
	if err != nil {
		return err
	}

	sp := e.State.Reg64(machine.RSP) - 8
	if werr := e.State.Memory().Write64(sp, inst.NextIP); werr != nil {
		return werr
	}
	e.State.SetReg64(machine.RSP, sp)

	e.State.SetRIP(target)
	e.State.AppendTrace(inst.IP, target, machine.TraceCall)
	e.State.PushCall(target)
	return nil
}

func retHandler(e *Engine, inst decode.Instruction) error {
	sp := e.State.Reg64(machine.RSP)
	target, err := e.State.Memory().Read64(sp)
	if err != nil {
		return err
	}
	e.State.SetReg64(machine.RSP, sp+8)

	e.State.SetRIP(target)
	e.State.AppendTrace(inst.IP, target, machine.TraceReturn)
	e.State.PopCall()

	// A RET landing outside the code region is natural termination, not an
	// error (spec.md §4.5: "If the popped target is outside the code region,
	// the engine signals natural finish").
	code, base := e.State.Code()
	if target < base || target >= base+uint64(len(code)) {
		e.State.SetFinished(true)
	}
	return nil
}

func jmpHandler(e *Engine, inst decode.Instruction) error {
	target, err := branchTarget(e, inst.Args[0])
	if err != nil {
		return err
	}
	e.State.SetRIP(target)
	e.State.AppendTrace(inst.IP, target, machine.TraceJump)
	return nil
}

func jccHandler(e *Engine, inst decode.Instruction) error {
	flags := e.conditionFlags()

	if inst.Mnemonic == isa.Jecxz {
		flags.CounterZero = e.State.Reg32(machine.RCX) == 0
	} else if inst.Mnemonic == isa.Jrcxz {
		flags.CounterZero = e.State.Reg64(machine.RCX) == 0
	}

	taken, _ := isa.PredicateWithPF(inst.Mnemonic, flags, e.State.PF())
	if !taken {
		return nil
	}

	target, err := branchTarget(e, inst.Args[0])
	if err != nil {
		return err
	}
	e.State.SetRIP(target)
	e.State.AppendTrace(inst.IP, target, machine.TraceJump)
	return nil
}

func pushHandler(e *Engine, inst decode.Instruction) error {
	v, err := e.readOperand(inst.Args[0], 64)
	if err != nil {
		return err
	}
	sp := e.State.Reg64(machine.RSP) - 8
	if werr := e.State.Memory().Write64(sp, v); werr != nil {
		return werr
	}
	e.State.SetReg64(machine.RSP, sp)
	return nil
}

func popHandler(e *Engine, inst decode.Instruction) error {
	sp := e.State.Reg64(machine.RSP)
	v, err := e.State.Memory().Read64(sp)
	if err != nil {
		return err
	}
	e.State.SetReg64(machine.RSP, sp+8)
	return e.writeOperand(inst.Args[0], 64, v)
}
