package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/aussiebroadwan/minivisionary/internal/cli"
)

func main() {
	os.Exit(run())
}

func run() int {
	cfg, args, err := cli.LoadConfig(os.Args[1:], os.Stderr)
	if errors.Is(err, flag.ErrHelp) {
		return 0
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "visionctl: %v\n", err)
		return 2
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := cli.NewApp(cfg, os.Stdin, os.Stdout)
	if err != nil {
		fmt.Fprintf(os.Stderr, "visionctl: %v\n", err)
		return 1
	}

	if len(args) == 0 {
		err = app.RunREPL(ctx)
	} else {
		err = app.Run(ctx, args)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "visionctl: %s\n", cli.Describe(err))
		return 1
	}
	return 0
}
