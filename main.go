package main

import (
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/urfave/cli/v2"

	gvm "github.com/Pseudo-Kernel/simple-vm-sub000/vm"
)

func main() {
	app := &cli.App{
		Name:  "gvm",
		Usage: "stack-based guest bytecode virtual machine",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "log-level", Value: "info", Usage: "trace|debug|info|warn|error"},
			&cli.BoolFlag{Name: "log-json", Usage: "emit structured JSON logs instead of console format"},
		},
		Before: func(c *cli.Context) error {
			level, err := zerolog.ParseLevel(c.String("log-level"))
			if err != nil {
				return err
			}
			gvm.ConfigureLogging(os.Stderr, level, c.Bool("log-json"))
			return nil
		},
		Commands: []*cli.Command{
			runCommand(),
			disassembleCommand(),
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runCommand() *cli.Command {
	return &cli.Command{
		Name:      "run",
		Usage:     "execute a bytecode image",
		ArgsUsage: "<file>",
		Flags: []cli.Flag{
			&cli.Uint64Flag{Name: "memory", Value: 1 << 20, Usage: "guest address space size in bytes"},
			&cli.UintFlag{Name: "stack-size", Value: 4096, Usage: "value stack size in bytes"},
			&cli.UintFlag{Name: "max-steps", Value: 0, Usage: "instruction budget, 0 for unbounded"},
		},
		Action: func(c *cli.Context) error {
			if c.Args().Len() != 1 {
				return cli.Exit("expected exactly one bytecode file", 1)
			}
			code, err := os.ReadFile(c.Args().First())
			if err != nil {
				return gvm.WrapHostError(err, "read bytecode file")
			}

			runID := uuid.New()
			stackSize := uint32(c.Uint("stack-size"))
			vm, err := gvm.NewVM(code, c.Uint64("memory"), stackSize, stackSize, stackSize, stackSize)
			if err != nil {
				return gvm.WrapHostError(err, "initialize vm")
			}

			gvm.Log.Info().Str("run_id", runID.String()).Int("code_bytes", len(code)).Msg("starting run")
			exc := vm.Run(c.Uint64("max-steps"))
			gvm.Log.Info().Str("run_id", runID.String()).Stringer("exception", exc).Uint64("ip", vm.Context.IP).Msg("run finished")

			if exc != gvm.ExceptionNone {
				return cli.Exit(fmt.Sprintf("halted: %s at ip=0x%x", exc, vm.Context.IP), 2)
			}
			return nil
		},
	}
}

func disassembleCommand() *cli.Command {
	return &cli.Command{
		Name:      "disassemble",
		Aliases:   []string{"disasm"},
		Usage:     "render a bytecode image as mnemonic text",
		ArgsUsage: "<file>",
		Flags: []cli.Flag{
			&cli.Uint64Flag{Name: "checksum-k0", Usage: "SipHash key half 0, enables a checksum line"},
			&cli.Uint64Flag{Name: "checksum-k1", Usage: "SipHash key half 1, enables a checksum line"},
		},
		Action: func(c *cli.Context) error {
			if c.Args().Len() != 1 {
				return cli.Exit("expected exactly one bytecode file", 1)
			}
			code, err := os.ReadFile(c.Args().First())
			if err != nil {
				return gvm.WrapHostError(err, "read bytecode file")
			}

			if c.IsSet("checksum-k0") || c.IsSet("checksum-k1") {
				sum := gvm.ChecksumOf(code, c.Uint64("checksum-k0"), c.Uint64("checksum-k1"))
				fmt.Printf("; siphash-2-4: %016x\n", sum)
			}

			offset := uint64(0)
			for offset < uint64(len(code)) {
				inst, n := gvm.Decode(code[offset:])
				if n == 0 {
					fmt.Printf("%08x: <invalid>\n", offset)
					break
				}
				fmt.Printf("%08x: %s\n", offset, inst.ToMnemonic())
				offset += uint64(n)
			}
			return nil
		},
	}
}
