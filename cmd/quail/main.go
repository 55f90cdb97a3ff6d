package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/peterh/liner"

	quail "github.com/xirelogy/go-quail"
)

const (
	appName     = "quail"
	historyFile = ".quail_history"
	promptMain  = "(quail) "
)

const debugHelp = `Debugger commands:
  step [n]   Perform n transitions (default 1)
  run        Run until the machine halts
  state      Show the instruction and stacks
  heap       Show every heap closure
  show name  Show the current value of a definition
  help       Show this help
  quit       Exit the debugger
`

func main() {
	if len(os.Args) < 2 {
		usage(os.Stderr)
		os.Exit(2)
	}

	cmd := os.Args[1]
	switch cmd {
	case "run":
		os.Exit(cmdRun(os.Args[2:], os.Stdout, os.Stderr))
	case "dump":
		os.Exit(cmdDump(os.Args[2:], os.Stdout, os.Stderr))
	case "debug":
		os.Exit(cmdDebug(os.Args[2:]))
	case "-h", "--help", "help":
		usage(os.Stdout)
		os.Exit(0)
	default:
		fmt.Fprintf(os.Stderr, "%s: unknown command %q\n", appName, cmd)
		usage(os.Stderr)
		os.Exit(2)
	}
}

func usage(w io.Writer) {
	fmt.Fprintf(w, `Usage:
  %s run [-entry name] [-shallow] [-limit n] [-trace] <file.yaml>   Evaluate a definition and print it.
  %s dump <file.yaml>                                               Print the lowered STG program.
  %s debug [-entry name] <file.yaml>                                Step through an evaluation.

`, appName, appName, appName)
}

// -----------------------------------------------------------------------------
// run
// -----------------------------------------------------------------------------

func cmdRun(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	fs.SetOutput(stderr)
	entry := fs.String("entry", "main", "definition to evaluate")
	shallow := fs.Bool("shallow", false, "stop at weak head normal form")
	limit := fs.Int("limit", 0, "maximum transitions per evaluation (0 for no limit)")
	trace := fs.Bool("trace", false, "log every transition to stderr")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() != 1 {
		fmt.Fprintf(stderr, "usage: %s run [flags] <file.yaml>\n", appName)
		return 2
	}

	sess, err := openSession(fs.Arg(0))
	if err != nil {
		fmt.Fprintln(stderr, err.Error())
		return 1
	}
	if err := sess.SetStepLimit(*limit); err != nil {
		fmt.Fprintln(stderr, err.Error())
		return 1
	}
	if *trace {
		logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
		err := sess.SetTraceHook(func(info quail.TraceInfo) {
			logger.Debug("step",
				slog.Int("n", info.Step),
				slog.String("instr", info.Instr),
				slog.Int("args", info.ArgDepth),
				slog.Int("returns", info.RetDepth),
				slog.Int("updates", info.UpdDepth),
				slog.Int("heap", info.HeapSize))
		})
		if err != nil {
			fmt.Fprintln(stderr, err.Error())
			return 1
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	var val quail.Value
	if *shallow {
		val, err = sess.Force(ctx, *entry)
	} else {
		val, err = sess.Eval(ctx, *entry)
	}
	if err != nil {
		fmt.Fprintln(stderr, err.Error())
		if errors.Is(err, context.Canceled) {
			return 130
		}
		return 1
	}
	fmt.Fprintln(stdout, val.String())
	return 0
}

func openSession(path string) (*quail.Session, error) {
	prog, err := quail.LoadFile(path)
	if err != nil {
		return nil, err
	}
	return quail.NewSession(prog)
}

// -----------------------------------------------------------------------------
// dump
// -----------------------------------------------------------------------------

func cmdDump(args []string, stdout, stderr io.Writer) int {
	if len(args) != 1 {
		fmt.Fprintf(stderr, "usage: %s dump <file.yaml>\n", appName)
		return 2
	}
	prog, err := quail.LoadFile(args[0])
	if err != nil {
		fmt.Fprintln(stderr, err.Error())
		return 1
	}
	if err := prog.Dump(stdout); err != nil {
		fmt.Fprintln(stderr, err.Error())
		return 1
	}
	return 0
}

// -----------------------------------------------------------------------------
// debug
// -----------------------------------------------------------------------------

func cmdDebug(args []string) int {
	fs := flag.NewFlagSet("debug", flag.ContinueOnError)
	entry := fs.String("entry", "main", "definition to evaluate")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() != 1 {
		fmt.Fprintf(os.Stderr, "usage: %s debug [-entry name] <file.yaml>\n", appName)
		return 2
	}
	sess, err := openSession(fs.Arg(0))
	if err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		return 1
	}
	if err := sess.Start(*entry); err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		return 1
	}

	home, _ := os.UserHomeDir()
	histPath := filepath.Join(home, historyFile)

	ln := liner.NewLiner()
	defer ln.Close()
	ln.SetCtrlCAborts(true)
	if f, err := os.Open(histPath); err == nil {
		_, _ = ln.ReadHistory(f)
		_ = f.Close()
	}
	defer func() {
		if f, err := os.Create(histPath); err == nil {
			_, _ = ln.WriteHistory(f)
			_ = f.Close()
		}
	}()

	fmt.Print(debugHelp)
	d := &debugger{sess: sess, entry: *entry, out: os.Stdout}
	for {
		line, err := ln.Prompt(promptMain)
		if errors.Is(err, io.EOF) || errors.Is(err, liner.ErrPromptAborted) {
			fmt.Println()
			return 0
		}
		if err != nil {
			fmt.Fprintln(os.Stderr, err.Error())
			return 1
		}
		if strings.TrimSpace(line) == "" {
			continue
		}
		ln.AppendHistory(line)
		if d.exec(line) {
			return 0
		}
	}
}

type debugger struct {
	sess   *quail.Session
	entry  string
	out    io.Writer
	halted bool
}

// exec runs one debugger command and reports whether the session should end.
func (d *debugger) exec(line string) bool {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return false
	}
	switch fields[0] {
	case "quit", "q":
		return true
	case "help", "h":
		fmt.Fprint(d.out, debugHelp)
	case "step", "s":
		n := 1
		if len(fields) > 1 {
			v, err := strconv.Atoi(fields[1])
			if err != nil || v < 1 {
				fmt.Fprintf(d.out, "invalid step count %q\n", fields[1])
				return false
			}
			n = v
		}
		d.step(n)
	case "run", "r":
		d.step(-1)
	case "state":
		d.report(d.sess.DumpState(d.out))
	case "heap":
		d.report(d.sess.DumpHeap(d.out))
	case "show":
		name := d.entry
		if len(fields) > 1 {
			name = fields[1]
		}
		val, err := d.sess.Lookup(name)
		if err != nil {
			d.report(err)
			return false
		}
		fmt.Fprintf(d.out, "%s = %s\n", name, val)
	default:
		fmt.Fprintf(d.out, "unknown command %q, type help for a list\n", fields[0])
	}
	return false
}

// step performs n transitions, or runs to completion when n is negative.
func (d *debugger) step(n int) {
	if d.halted {
		fmt.Fprintln(d.out, "machine has halted")
		return
	}
	for i := 0; n < 0 || i < n; i++ {
		halted, err := d.sess.Step()
		if err != nil {
			d.halted = true
			d.report(err)
			return
		}
		if halted {
			d.halted = true
			val, err := d.sess.Lookup(d.entry)
			if err != nil {
				d.report(err)
				return
			}
			fmt.Fprintf(d.out, "halted after %d steps: %s\n", d.sess.Stats().Steps, val)
			return
		}
	}
	d.report(d.sess.DumpState(d.out))
}

func (d *debugger) report(err error) {
	if err != nil {
		fmt.Fprintf(d.out, "error: %v\n", err)
	}
}
