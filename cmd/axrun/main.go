package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/oisee/ax/pkg/decode"
	"github.com/oisee/ax/pkg/engine"
	"github.com/oisee/ax/pkg/loader"
	"github.com/oisee/ax/pkg/machine"
	"github.com/oisee/ax/pkg/syscalls"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "axrun",
		Short: "x86-64 user-mode instruction emulator",
	}

	var argv []string
	var envp []string
	var verbose bool

	runCmd := &cobra.Command{
		Use:   "run [binary]",
		Short: "Load and execute an ELF64 x86-64 binary to completion",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}

			s, lerr := loader.Load(data)
			if lerr != nil {
				return lerr
			}

			progArgv := append([]string{args[0]}, argv...)
			if err := s.InitStackProgramStart(0x7FFFFFFFE000, progArgv, envp); err != nil {
				return err
			}

			if err := syscalls.Register(s, []syscalls.Syscall{
				syscalls.Read, syscalls.Write, syscalls.Brk, syscalls.Pipe,
				syscalls.ArchPrctl, syscalls.Exit, syscalls.ExitGroup,
				syscalls.Getuid, syscalls.Getgid, syscalls.Geteuid, syscalls.Getegid,
			}); err != nil {
				return err
			}

			e := engine.New(s)
			if err := e.Execute(context.Background()); err != nil {
				return fmt.Errorf("execution failed: %w", err)
			}

			if verbose {
				fmt.Fprintf(os.Stderr, "executed %d instructions, exit code %d\n",
					s.ExecutedInstructions(), s.Reg64(machine.RDI))
			}
			return nil
		},
	}
	runCmd.Flags().StringArrayVar(&argv, "arg", nil, "extra argv entries after argv[0]")
	runCmd.Flags().StringArrayVar(&envp, "env", nil, "envp entries, as KEY=VALUE")
	runCmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "print execution summary to stderr")

	traceCmd := &cobra.Command{
		Use:   "trace [binary]",
		Short: "Run a binary and print its control-flow trace",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			s, lerr := loader.Load(data)
			if lerr != nil {
				return lerr
			}
			s.InitStack(0x7FFFFFFFE000)

			if err := syscalls.Register(s, []syscalls.Syscall{
				syscalls.Write, syscalls.Brk, syscalls.Exit, syscalls.ExitGroup,
			}); err != nil {
				return err
			}

			e := engine.New(s)
			runErr := e.Execute(context.Background())

			fmt.Print(s.Trace(e.Disasm))
			if runErr != nil {
				return fmt.Errorf("execution failed: %w", runErr)
			}
			return nil
		},
	}

	disasmCmd := &cobra.Command{
		Use:   "disasm [binary]",
		Short: "Disassemble a binary's .text section instruction by instruction",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			s, lerr := loader.Load(data)
			if lerr != nil {
				return lerr
			}

			code, base := s.Code()
			offset := uint64(0)
			for offset < uint64(len(code)) {
				ip := base + offset
				inst, derr := decode.DecodeAt(code[offset:], ip)
				if derr != nil {
					fmt.Printf("%#x: <decoding error: %v>\n", ip, derr)
					offset++
					continue
				}
				fmt.Printf("%#x: %s\n", ip, inst.Text)
				offset += uint64(inst.Length)
			}
			return nil
		},
	}

	rootCmd.AddCommand(runCmd, traceCmd, disasmCmd)
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
