// Command framecollector records the screencast frames of one page load.
//
//	framecollector [flags] <identifier> <url> [network] [device]
//
// An identifier of "-" is replaced by a generated uuid.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"framecast/internal/config"
	"framecast/internal/logger"
	"framecast/pkg/api"
	"framecast/pkg/model"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "framecollector:", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	fs := pflag.NewFlagSet("framecollector", pflag.ContinueOnError)
	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, "usage: framecollector [flags] <identifier> <url> [network] [device]")
		fs.PrintDefaults()
	}
	cfgPath := config.RegisterFlags(fs)
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}

	rest := fs.Args()
	if len(rest) < 2 {
		fs.Usage()
		return fmt.Errorf("identifier and url are required")
	}
	req := model.RecordingRequest{Identifier: rest[0], URL: rest[1]}
	if len(rest) > 2 {
		req.Network = rest[2]
	}
	if len(rest) > 3 {
		req.Device = rest[3]
	}

	cfg, err := config.Load(*cfgPath, fs)
	if err != nil {
		return err
	}
	log := logger.New(cfg.LoggerOptions())

	svc, err := api.NewService(cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := svc.Close(); err != nil {
			log.Warn("关闭服务失败", "error", err)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	res, err := svc.Record(ctx, req)
	if err != nil {
		return err
	}
	fmt.Printf("%s: %d frames written to %s\n", res.Identifier, res.Frames, cfg.General.ImagePath)
	return nil
}
