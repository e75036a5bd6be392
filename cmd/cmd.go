package cmd

import (
	"fmt"
	"os"

	"github.com/chzyer/readline"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	easy "github.com/t-tomalak/logrus-easy-formatter"

	"github.com/rami3l/golua/debug"
	"github.com/rami3l/golua/vm"
)

// App builds the `golua` CLI: a thin cobra wrapper around the compiler and
// demonstration VM (SPEC_FULL §A), mirroring golox's single top-level
// command but splitting it into subcommands now that "compile" and "run"
// are meaningfully different operations (spec §6's driver vs. the VM, which
// spec §1 explicitly places out of this module's scope).
func App() *cobra.Command {
	app := &cobra.Command{
		Use:   "golua",
		Short: "Tokenize, compile, and run Lua-like scripts",
	}
	app.PersistentFlags().SortFlags = true

	defaultVerbosity := "INFO"
	verbosity := app.PersistentFlags().StringP("verbosity", "v", defaultVerbosity, "logging verbosity")

	limits := vm.DefaultLimits()
	app.PersistentFlags().IntVar(&limits.MaxLocals, "max-locals", limits.MaxLocals, "local-variable cap per function")
	app.PersistentFlags().IntVar(&limits.MaxUpvalues, "max-upvalues", limits.MaxUpvalues, "upvalue cap per function")
	app.PersistentFlags().IntVar(&limits.MaxParams, "max-params", limits.MaxParams, "parameter cap per function")
	app.PersistentFlags().IntVar(&limits.MaxConstants, "max-constants", limits.MaxConstants, "constant-pool cap per function")

	app.PersistentPreRun = func(_ *cobra.Command, _ []string) {
		lvl, err := logrus.ParseLevel(*verbosity)
		if err != nil {
			lvl, _ = logrus.ParseLevel(defaultVerbosity)
		}
		logrus.SetLevel(lvl)
		logrus.SetFormatter(&easy.Formatter{LogFormat: "//DBG// %msg%\n"})
		if lvl >= logrus.DebugLevel {
			debug.DEBUG = true
		}
	}

	app.AddCommand(
		tokenizeCmd(),
		compileCmd(&limits),
		runCmd(&limits),
		replCmd(&limits),
	)
	return app
}

func tokenizeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tokenize <file>",
		Short: "Print the token stream for a source file",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			src, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			s := vm.NewScanner(string(src))
			for {
				t := s.ScanToken()
				fmt.Printf("%4d %-16s %q\n", t.Line, t.Type, t.String())
				if t.Type == vm.TEOF {
					break
				}
			}
			return s.Errors()
		},
	}
}

func compileCmd(limits *vm.Limits) *cobra.Command {
	return &cobra.Command{
		Use:   "compile <file>",
		Short: "Compile a source file and print its disassembly",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			src, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			proto, err := vm.Compile(string(src), args[0], *limits)
			if err != nil {
				return err
			}
			fmt.Println(proto.Disassemble(args[0]))
			return nil
		},
	}
}

func runCmd(limits *vm.Limits) *cobra.Command {
	return &cobra.Command{
		Use:   "run <file>",
		Short: "Compile and execute a source file",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			src, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			proto, err := vm.Compile(string(src), args[0], *limits)
			if err != nil {
				return err
			}
			return vm.NewVM().Run(proto)
		},
	}
}

// replCmd backs an interactive loop on github.com/chzyer/readline, replacing
// the bare bufio.Reader loop golox used — present in golox's go.mod but
// unwired there (SPEC_FULL §A).
func replCmd(limits *vm.Limits) *cobra.Command {
	return &cobra.Command{
		Use:   "repl",
		Short: "Start an interactive read-eval-print loop",
		RunE: func(_ *cobra.Command, _ []string) error {
			rl, err := readline.New(">> ")
			if err != nil {
				return err
			}
			defer rl.Close()

			machine := vm.NewVM()
			for {
				line, err := rl.Readline()
				if err != nil { // io.EOF or readline.ErrInterrupt
					return nil
				}
				if line == "" {
					continue
				}
				if err := machine.Interpret(line, "=stdin"); err != nil {
					fmt.Fprintln(os.Stderr, err)
				}
			}
		},
	}
}
