package main

import (
	"bytes"
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/oMatheuss/lina"
	"github.com/oMatheuss/lina/ast"
	"github.com/oMatheuss/lina/internal/server"
)

func runDisasm(args []string) error {
	_, source, err := sourceArg(args)
	if err != nil {
		return err
	}
	code, err := lina.Compile(source)
	if err != nil {
		return err
	}
	return code.Disassemble(os.Stdout)
}

func runFmt(args []string) error {
	fs := flag.NewFlagSet("fmt", flag.ContinueOnError)
	write := fs.Bool("w", false, "write the result back to the file")
	if err := fs.Parse(args); err != nil {
		return err
	}
	path, source, err := sourceArg(fs.Args())
	if err != nil {
		return err
	}
	prog, err := lina.Parse(source)
	if err != nil {
		return err
	}
	var b bytes.Buffer
	if err := ast.Format(&b, prog); err != nil {
		return err
	}
	if *write && path != "-" {
		return os.WriteFile(path, b.Bytes(), 0o644)
	}
	_, err = os.Stdout.Write(b.Bytes())
	return err
}

func runServe(app appConfig) error {
	log, err := hostLogger(app.cfg, false)
	if err != nil {
		return err
	}
	defer log.Sync()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	srv := server.New(app.cfg, reg,
		server.WithLogger(log),
		server.WithMachineOptions(app.machineOptions()...),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return srv.Run(ctx)
}
