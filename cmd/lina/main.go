package main

import (
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/oMatheuss/lina/driver"
	"github.com/oMatheuss/lina/internal/config"
)

func usage() {
	out := flag.CommandLine.Output()
	fmt.Fprintf(out, `usage: lina [flags] <command> [args]

commands:
  run <file>          interactive terminal
  plain [-echo] <file> run on stdin/stdout ("-" reads the program from stdin)
  disasm <file>       print the bytecode listing
  fmt [-w] <file>     print the program in canonical form
  serve               HTTP + WebSocket terminal server
  config              print the effective configuration

flags:
`)
	flag.PrintDefaults()
}

func main() {
	configPath := flag.String("config", "", "YAML config file; LINA_* environment variables override it")
	budget := flag.Int("budget", 0, "instructions per quantum (overrides driver.step_budget)")
	maxSteps := flag.Int64("max-steps", 0, "fault a run after this many instructions in total, 0 for no limit")
	flag.Usage = usage
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "lina: %v\n", err)
		os.Exit(2)
	}
	if *budget > 0 {
		cfg.Driver.StepBudget = *budget
	}
	app := appConfig{cfg: cfg, maxSteps: *maxSteps}

	args := flag.Args()
	if len(args) == 0 {
		usage()
		os.Exit(2)
	}
	switch args[0] {
	case "run":
		err = runTUI(app, args[1:])
	case "plain":
		err = runPlain(app, args[1:])
	case "disasm":
		err = runDisasm(args[1:])
	case "fmt":
		err = runFmt(args[1:])
	case "serve":
		err = runServe(app)
	case "config":
		err = printConfig(app)
	default:
		fmt.Fprintf(os.Stderr, "lina: unknown command %q\n", args[0])
		usage()
		os.Exit(2)
	}

	var fault driver.Fault
	switch {
	case err == nil:
	case errors.As(err, &fault):
		// the diagnostic is already in the transcript
		os.Exit(1)
	default:
		fmt.Fprintf(os.Stderr, "lina: %v\n", err)
		os.Exit(1)
	}
}

func printConfig(app appConfig) error {
	b, err := app.cfg.Marshal()
	if err != nil {
		return err
	}
	_, err = os.Stdout.Write(b)
	return err
}
