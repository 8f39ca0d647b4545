// Package main rewrites the host prefix of diary media references, e.g. when
// uploads move from a local dev server to a CDN.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/onnwee/travelog/internal/config"
	"github.com/onnwee/travelog/internal/diary"
	"github.com/onnwee/travelog/internal/middleware"
	"github.com/onnwee/travelog/internal/storage"
)

func main() {
	help := flag.Bool("help", false, "display help message")
	configPath := flag.String("config", "", "optional YAML config file (environment variables take precedence)")
	from := flag.String("from", "", "media prefix to replace, e.g. http://localhost:3000")
	to := flag.String("to", "", "replacement prefix, e.g. https://cdn.example.com")
	flag.Parse()

	if *help || *from == "" || *to == "" {
		fmt.Println("Travelog media prefix rewrite")
		fmt.Println()
		fmt.Println("Usage: rewrite-media -from <prefix> -to <prefix> [options]")
		fmt.Println()
		fmt.Println("Options:")
		flag.PrintDefaults()
		if *help {
			os.Exit(0)
		}
		os.Exit(2)
	}

	cfg, errs := config.Load(*configPath)
	var fatal []error
	for _, err := range errs {
		// The tool never validates tokens.
		if !errors.Is(err, config.ErrMissingJWTSecret) {
			fatal = append(fatal, err)
		}
	}
	if len(fatal) > 0 {
		for _, err := range fatal {
			fmt.Fprintln(os.Stderr, "config:", err)
		}
		os.Exit(1)
	}

	logger := middleware.NewLogger(cfg.Env, cfg.LogLevel).With("component", "rewrite-media")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := storage.Open(ctx, cfg, logger, nil)
	if err != nil {
		logger.Error("failed to open storage", "error", err)
		os.Exit(1)
	}
	defer store.Close()

	n, err := diary.NewRepository(store.DB).RewriteMediaPrefix(ctx, *from, *to)
	if err != nil {
		logger.Error("media rewrite failed", "error", err)
		store.Close()
		os.Exit(1)
	}
	logger.Info("media rewrite complete", "from", *from, "to", *to, "entries_updated", n)
}
