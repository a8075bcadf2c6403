package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/ayusman/mudra/internal/config"
	"github.com/ayusman/mudra/internal/logger"
)

// command runs one CLI mode with the arguments after its name.
type command func(ctx context.Context, cfg *config.Config, log *logrus.Logger, args []string) error

var commands = map[string]command{
	"serve":   runServe,
	"analyze": runAnalyze,
	"window":  runWindow,
}

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	global := flag.NewFlagSet("mudra", flag.ContinueOnError)
	envFile := global.String("env", ".env", "environment file to load")
	global.Usage = func() {
		fmt.Fprintf(global.Output(), "usage: mudra [-env file] [%s] [flags]\n", strings.Join(commandNames(), "|"))
		global.PrintDefaults()
	}
	if err := global.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}

	name := "serve"
	rest := global.Args()
	if len(rest) > 0 {
		name, rest = rest[0], rest[1:]
	}
	cmd, ok := commands[name]
	if !ok {
		fmt.Fprintf(os.Stderr, "unknown command %q\n", name)
		global.Usage()
		return 2
	}

	cfg, err := config.Load(*envFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		return 1
	}

	log, err := logger.New(logger.Options{Level: cfg.LogLevel, File: cfg.LogFile})
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		return 1
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Hook up a signal handler to cancel the context
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)
	go func() {
		select {
		case sig := <-sigChan:
			log.WithField("signal", sig.String()).Info("received kill signal")
			cancel()
		case <-ctx.Done():
		}
	}()

	if err := cmd(ctx, cfg, log, rest); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		log.WithError(err).WithField("command", name).Error("command failed")
		return 1
	}
	return 0
}

func commandNames() []string {
	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
