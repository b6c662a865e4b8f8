// Command videocreator turns the frames recorded for an identifier into a
// video whose frame timing follows the original capture.
//
//	videocreator [flags] <identifier>
//	videocreator --list [identifier]
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/pflag"

	"framecast/internal/config"
	"framecast/internal/logger"
	"framecast/pkg/api"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "videocreator:", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	fs := pflag.NewFlagSet("videocreator", pflag.ContinueOnError)
	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, "usage: videocreator [flags] <identifier>")
		fs.PrintDefaults()
	}
	cfgPath := config.RegisterFlags(fs)
	list := fs.BoolP("list", "l", false, "列出录制目录")
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}

	var identifier string
	if fs.NArg() > 0 {
		identifier = fs.Arg(0)
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

	if *list {
		recs, err := svc.Recordings(ctx, identifier)
		if err != nil {
			return err
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "IDENTIFIER\tSTATE\tFRAMES\tVIDEO\tCREATED")
		for _, r := range recs {
			fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\n", r.Identifier, r.State, r.Frames, r.VideoPath, r.CreatedAt.Format(time.DateTime))
		}
		return w.Flush()
	}

	art, err := svc.Assemble(ctx, identifier)
	if err != nil {
		return err
	}
	fmt.Printf("%s: %d frames, %s, video at %s\n", art.Identifier, art.Frames, art.Duration, art.Path)
	return nil
}
