package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/Squarts/web/internal/config"
	"github.com/Squarts/web/internal/result"
	"github.com/Squarts/web/internal/server"
	"github.com/Squarts/web/internal/store"
	"github.com/Squarts/web/internal/task"
)

func main() {
	mode := flag.String("mode", "server", "server|list|export|help")
	cfgPath := flag.String("config", os.Getenv("TASKS_CONFIG"), "optional YAML config file")
	driver := flag.String("driver", "", "mysql|sqlite (overrides config)")
	dsn := flag.String("dsn", "", "database DSN (overrides config)")
	httpAddr := flag.String("http-addr", "", "http listen address (server mode)")
	format := flag.String("format", "json", "export format: json|csv|pdf")
	out := flag.String("out", "tasks.json", "export output path")
	flag.Parse()

	if *mode == "help" {
		usage()
		return
	}

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fatal("config", err)
	}
	if *driver != "" {
		cfg.Store.Driver = *driver
	}
	if *dsn != "" {
		cfg.Store.DSN = *dsn
	}
	if *httpAddr != "" {
		cfg.HTTPAddr = *httpAddr
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := store.Open(ctx, cfg.Store.Driver, cfg.Store.DSN)
	if err != nil {
		fatal("store", err)
	}
	defer st.Close()
	logger.Debug("store ready", "driver", st.Driver())

	switch *mode {
	case "list":
		tasks, err := task.NewManager(st).List(ctx)
		if err != nil {
			fatal("list", err)
		}
		for i, t := range tasks {
			fmt.Printf("%d\t[%d]\t%s\t%s\t%s\t%t\n", i+1, t.ID, t.Title, t.Description, t.Deadline, t.Complete)
		}

	case "export":
		b, err := result.NewExporter(st).Export(ctx, *format)
		if err != nil {
			fatal("export", err)
		}
		if err := os.WriteFile(*out, b, 0o644); err != nil {
			fatal("write", err)
		}
		fmt.Printf("Exported -> %s\n", *out)

	case "server":
		srv := server.New(st, logger)
		if err := srv.ListenAndServe(ctx, cfg.HTTPAddr, cfg.ShutdownTimeout); err != nil {
			fatal("server", err)
		}
		logger.Info("shut down gracefully")

	default:
		usage()
		os.Exit(2)
	}
}

func fatal(step string, err error) {
	slog.Error(step+" failed", "error", err)
	os.Exit(1)
}

func usage() {
	fmt.Println("Usage examples:")
	fmt.Println("  go run ./cmd --mode server --http-addr :8080")
	fmt.Println("  go run ./cmd --mode list --driver sqlite --dsn ./tasks.db")
	fmt.Println("  go run ./cmd --mode export --format pdf --out ./tasks.pdf")
}
