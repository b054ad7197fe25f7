package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	cli "github.com/jawher/mow.cli"
	"go.uber.org/zap"

	"github.com/frievoe97/stackup/server"
	"github.com/frievoe97/stackup/server/runtime"
)

func main() {
	app := cli.App("stackup", "Bring a stack of services up in dependency order.")

	file := app.String(cli.StringOpt{
		Name:   "f file",
		Value:  "stack.json",
		Desc:   "stack spec file",
		EnvVar: "STACKUP_FILE",
	})

	app.Command("up", "start all services, gated on health checks", func(cmd *cli.Cmd) {
		quiet := cmd.Bool(cli.BoolOpt{
			Name: "q quiet",
			Desc: "suppress per-event progress output",
		})
		cmd.Action = func() { runUp(*file, *quiet) }
	})

	app.Command("down", "stop all services in reverse dependency order", func(cmd *cli.Cmd) {
		cmd.Action = func() { runDown(*file) }
	})

	app.Command("status", "show the runtime state of each service", func(cmd *cli.Cmd) {
		cmd.Action = func() { runStatus(*file) }
	})

	app.Command("serve", "run the stackup HTTP API", func(cmd *cli.Cmd) {
		addr := cmd.String(cli.StringOpt{
			Name:   "addr",
			Value:  "127.0.0.1:7667",
			Desc:   "listen address",
			EnvVar: "STACKUP_ADDR",
		})
		cmd.Action = func() { runServe(*addr) }
	})

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "stackup: %v\n", err)
		cli.Exit(1)
	}
}

// loadGraph reads and validates the stack spec file.
func loadGraph(file string) *server.Graph {
	data, err := os.ReadFile(file)
	if err != nil {
		fmt.Fprintf(os.Stderr, "stackup: %v\n", err)
		cli.Exit(1)
	}
	g, err := server.DecodeAndBuild(data, nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "stackup: %s: %v\n", file, err)
		cli.Exit(1)
	}
	return g
}

// newRegistry wires up the runtime adapters the CLI supports.
func newRegistry() *runtime.Registry {
	reg := runtime.NewRegistry()
	reg.Register("container", runtime.Docker{})
	reg.Register("process", runtime.Process{StateDir: runtime.DefaultDir()})
	return reg
}

func runUp(file string, quiet bool) {
	g := loadGraph(file)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log := server.NewEventLog()
	orch := &server.Orchestrator{
		Runtimes: newRegistry(),
		Log:      log,
	}

	if !quiet {
		go printEvents(ctx, log)
	}

	res := orch.Up(ctx, g)
	renderResult(res)
	if !res.OK {
		cli.Exit(1)
	}
}

func runDown(file string) {
	g := loadGraph(file)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	orch := &server.Orchestrator{
		Runtimes: newRegistry(),
		Log:      server.NewEventLog(),
	}

	res := orch.Down(ctx, g)
	renderResult(res)
	if !res.OK {
		cli.Exit(1)
	}
}

func runStatus(file string) {
	g := loadGraph(file)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	orch := &server.Orchestrator{
		Runtimes: newRegistry(),
		Log:      server.NewEventLog(),
	}

	statuses, err := orch.Status(ctx, g)
	if err != nil {
		fmt.Fprintf(os.Stderr, "stackup: %v\n", err)
		cli.Exit(1)
	}
	renderStatus(g, statuses)
}

func runServe(addr string) {
	logger, err := zap.NewProduction()
	if err != nil {
		fmt.Fprintf(os.Stderr, "stackup: init logger: %v\n", err)
		cli.Exit(1)
	}
	defer logger.Sync()

	srv := &http.Server{
		Addr:    addr,
		Handler: server.NewServer(newRegistry(), logger),
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info("listening", zap.String("addr", addr))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("serve", zap.Error(err))
		cli.Exit(1)
	}
}
