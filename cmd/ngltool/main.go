package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"ngltool/internal/app"
	"ngltool/internal/config"
	"ngltool/internal/ngl"
	logx "ngltool/pkg/logx"
)

const (
	exitOK      = 0
	exitFailure = 1
	exitUsage   = 2
)

func main() {
	var cfgPath string
	flag.StringVar(&cfgPath, "config", "", "path to config json/yaml (optional)")
	flag.Usage = usage
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, cfgPath, flag.Args())
	cancel()
	os.Exit(code)
}

func usage() {
	out := flag.CommandLine.Output()
	fmt.Fprintf(out, "usage: ngltool [-config path] <command> [flags]\n\n")
	fmt.Fprintf(out, "commands:\n")
	fmt.Fprintf(out, "  send -user NAME -message TEXT [-count N]   post TEXT to an NGL inbox N times (1-%d)\n", ngl.MaxCount)
	fmt.Fprintf(out, "  ip [-addr IP]                               geolocate IP, or your public address\n\n")
	flag.PrintDefaults()
}

func run(ctx context.Context, cfgPath string, args []string) int {
	if len(args) == 0 {
		usage()
		return exitUsage
	}

	boot := logx.NewConsole("INFO")
	cfg, err := config.Load(cfgPath)
	if err != nil {
		boot.Error("config load failed", logx.String("path", cfgPath), logx.Err(err))
		return exitFailure
	}

	a, err := app.New(cfg, logx.Stdout())
	if err != nil {
		boot.Error("startup failed", logx.Err(err))
		return exitFailure
	}
	defer func() {
		cctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = a.Close(cctx)
	}()

	switch args[0] {
	case "send":
		return runSend(ctx, a, args[1:])
	case "ip":
		return runLookup(ctx, a, args[1:])
	default:
		fmt.Fprintf(logx.Stderr(), "unknown command %q\n\n", args[0])
		usage()
		return exitUsage
	}
}

func runSend(ctx context.Context, a *app.App, args []string) int {
	fs := flag.NewFlagSet("send", flag.ContinueOnError)
	user := fs.String("user", "", "NGL username")
	message := fs.String("message", "", "message text")
	count := fs.Int("count", 1, fmt.Sprintf("number of messages (%d-%d)", ngl.MinCount, ngl.MaxCount))
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}

	r, err := a.Send.Handle(ctx, app.SendRequest{Username: *user, Message: *message, Count: *count})
	if err != nil {
		return exitCode(err)
	}
	if r.Outcome() == ngl.OutcomeNone {
		return exitFailure
	}
	return exitOK
}

func runLookup(ctx context.Context, a *app.App, args []string) int {
	fs := flag.NewFlagSet("ip", flag.ContinueOnError)
	addr := fs.String("addr", "", "address to look up (default: your public address)")
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}

	req := app.LookupRequest{Mode: app.ModeSelf}
	if isFlagSet(fs, "addr") {
		req = app.LookupRequest{Mode: app.ModeOther, Address: *addr}
	}
	if _, err := a.Lookup.Handle(ctx, req); err != nil {
		return exitCode(err)
	}
	return exitOK
}

func isFlagSet(fs *flag.FlagSet, name string) bool {
	set := false
	fs.Visit(func(f *flag.Flag) {
		if f.Name == name {
			set = true
		}
	})
	return set
}

func exitCode(err error) int {
	var ve *app.ValidationError
	if errors.As(err, &ve) {
		return exitUsage
	}
	return exitFailure
}
