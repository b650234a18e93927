// Package syscalls provides a minimal Linux x86-64 syscall ABI handler,
// registered as a before-hook on isa.Syscall the same way the emulator this
// was modeled on wires its own handle_syscalls: the guest's "syscall"
// instruction itself has no builtin effect (see pkg/engine), so something
// has to read RAX/RDI/RSI/RDX and write a result back; without a handler a
// syscall does nothing and execution simply continues past it.
package syscalls

import (
	"io"
	"os"

	"github.com/oisee/ax/pkg/isa"
	"github.com/oisee/ax/pkg/machine"
)

// Syscall is one of the Linux x86-64 syscall numbers this package knows how
// to emulate at the ABI level (spec.md §7's supplemented syscall surface).
type Syscall int

const (
	Read Syscall = iota
	Write
	Brk
	Pipe
	ArchPrctl
	Exit
	ExitGroup
	Getuid
	Getgid
	Geteuid
	Getegid
)

// linuxNumber is the x86-64 Linux syscall calling-convention number for s.
func linuxNumber(s Syscall) uint64 {
	switch s {
	case Read:
		return 0
	case Write:
		return 1
	case Brk:
		return 12
	case Pipe:
		return 22
	case ArchPrctl:
		return 158
	case Exit:
		return 60
	case ExitGroup:
		return 231
	case Getuid:
		return 102
	case Getgid:
		return 104
	case Geteuid:
		return 107
	case Getegid:
		return 108
	default:
		return ^uint64(0)
	}
}

// brkState tracks the emulated program break, since BRK has no real kernel
// behind it here: the first call with arg 0 returns the current break, and
// any later call simply accepts the requested address.
type brkState struct {
	current uint64
}

// Register installs a before-hook on isa.Syscall that handles exactly the
// syscalls in enabled, writing results directly to the machine's registers
// and returning machine.Handled. A syscall number outside enabled produces
// an error from the callback, aborting the step (mirrors the original's
// "Unsupported syscall: N" behavior). fd 1/2 write()s go to os.Stdout/Stderr;
// use RegisterWithSink to redirect them (spec.md §8's end-to-end scenarios
// capture stdout into a test buffer rather than the process's real stdout).
func Register(s *machine.State, enabled []Syscall) *machine.Error {
	return RegisterWithSink(s, enabled, os.Stdout, os.Stderr)
}

// RegisterWithSink is Register, but fd 1 (stdout) and fd 2 (stderr) writes
// are copied to stdout/stderr respectively instead of the process's real
// file descriptors — the "host's stdio sink" spec.md §6/§8 describes a
// caller-supplied write(fd,buf,len) handler delivering to.
func RegisterWithSink(s *machine.State, enabled []Syscall, stdout, stderr io.Writer) *machine.Error {
	allowed := make(map[uint64]Syscall, len(enabled))
	for _, sc := range enabled {
		allowed[linuxNumber(sc)] = sc
	}
	brk := &brkState{}

	return s.HookBefore(isa.Syscall, func(state *machine.State, _ isa.Mnemonic) (machine.HookResult, error) {
		num := state.Reg64(machine.RAX)
		sc, ok := allowed[num]
		if !ok {
			return machine.Unhandled, machine.Newf(machine.KindUnsupportedDynamic, "unsupported syscall: %d", num)
		}

		switch sc {
		case Write:
			fd := state.Reg64(machine.RDI)
			buf := state.Reg64(machine.RSI)
			count := state.Reg64(machine.RDX)
			if fd > 2 {
				return machine.Unhandled, machine.Newf(machine.KindUnsupportedDynamic, "write: invalid file descriptor %d", fd)
			}
			data, err := state.Memory().ReadBytes(buf, count)
			if err != nil {
				return machine.Unhandled, err
			}
			out := stdout
			if fd == 2 {
				out = stderr
			}
			n, werr := out.Write(data)
			if werr != nil {
				return machine.Unhandled, machine.Wrap(machine.KindUnsupportedDynamic, "write: ", werr)
			}
			state.SetReg64(machine.RAX, uint64(n))

		case Read:
			state.SetReg64(machine.RAX, 0)

		case Brk:
			requested := state.Reg64(machine.RDI)
			if requested != 0 {
				brk.current = requested
			}
			state.SetReg64(machine.RAX, brk.current)

		case Pipe:
			state.SetReg64(machine.RAX, 0)

		case ArchPrctl:
			state.SetReg64(machine.RAX, 0)

		case Exit, ExitGroup:
			state.Stop()

		case Getuid, Getgid, Geteuid, Getegid:
			state.SetReg64(machine.RAX, 0)
		}

		return machine.Handled, nil
	})
}
