package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/ganjinghwan/erecipehub/core/config"
	"github.com/ganjinghwan/erecipehub/core/logging"
	"github.com/ganjinghwan/erecipehub/feature/cli"
)

func main() {
	config.LoadDotenvIfPresent(".env", logrus.StandardLogger())

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "erecipehub: %v\n", err)
		os.Exit(1)
	}
	log, err := logging.New(cfg.Log, os.Stderr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "erecipehub: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := cli.New(cfg, log, os.Stdout).Run(ctx, os.Args[1:]); err != nil {
		cli.PrintError(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}
