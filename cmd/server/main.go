package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"grantwatch/internal/browser"
	"grantwatch/internal/config"
	"grantwatch/internal/crawler"
	"grantwatch/internal/ioformats"
	"grantwatch/internal/store"
	"grantwatch/internal/tracker"
	"grantwatch/pkg/logger"
)

func main() {
	configPath := flag.String("config", "", "path to config file (default: embedded)")
	once := flag.Bool("once", false, "run a single tracking pass, print NDJSON reports and exit")
	flag.Parse()

	if err := run(*configPath, *once); err != nil {
		fmt.Fprintln(os.Stderr, "grantwatch:", err)
		os.Exit(1)
	}
}

func run(configPath string, once bool) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	l, err := logger.New(cfg.Logging)
	if err != nil {
		return err
	}
	defer l.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := store.Open(ctx, cfg.Database.Path, l)
	if err != nil {
		return err
	}
	defer st.Close()

	agents := crawler.NewUserAgents(cfg.HTTP.UserAgents)
	fetchers := map[string]tracker.Fetcher{
		config.FetchHTTP: crawler.NewHTTPClient(cfg.HTTP.Timeout, cfg.HTTP.DialTimeout, cfg.HTTP.MaxBodyBytes, agents),
	}
	if cfg.NeedsBrowser() {
		if !cfg.Browser.Enabled {
			return errors.New("sources use fetch mode browser but browser.enabled is false")
		}
		b := browser.New(browser.Options{
			ChromePath: cfg.Browser.ChromePath,
			Timeout:    cfg.Browser.Timeout,
			UserAgent:  agents.Next,
		}, l)
		defer b.Close()
		fetchers[config.FetchBrowser] = b
	}

	tr, err := tracker.New(cfg.Sources, fetchers, st, l, tracker.WithConcurrency(cfg.Schedule.Concurrency))
	if err != nil {
		return err
	}

	if once {
		return ioformats.WriteNDJSON(os.Stdout, tr.RunOnce(ctx))
	}

	sched, err := tracker.NewScheduler(tr, cfg.Schedule.Cron, l)
	if err != nil {
		return err
	}
	go tr.RunOnce(ctx)
	sched.Start()
	defer sched.Stop()

	srv := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      newRouter(st, l),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		l.Info("server listening", logger.String("addr", cfg.Server.Addr))
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
	}()

	// graceful shutdown
	select {
	case <-ctx.Done():
	case err := <-errc:
		return fmt.Errorf("server error: %w", err)
	}
	l.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		l.Warn("server shutdown", logger.Error(err))
	}
	return nil
}
