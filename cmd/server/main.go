package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/KhubaibAhamed/SentinelAI/internal/api"
	"github.com/KhubaibAhamed/SentinelAI/internal/config"
	"github.com/KhubaibAhamed/SentinelAI/internal/scoring"
)

func main() {
	cfg := config.Load()
	configureLogging(cfg.LogLevel, cfg.LogFormat)

	server, err := api.NewServer(api.Config{
		DBPath:         cfg.DBPath,
		SilentDB:       cfg.SilentDB,
		AllowedOrigins: cfg.AllowedOrigins,
		AIConfig:       cfg.AI,
		DisableAI:      cfg.DisableAI,
		LexiconPath:    cfg.LexiconPath,
		DebounceWindow: cfg.DebounceWindow,
		MinInputLength: cfg.MinInputLength,
		MaxInputLength: cfg.MaxInputLength,
	})
	if err != nil {
		logrus.Fatalf("create server: %v", err)
	}
	defer func() {
		if cerr := server.Close(); cerr != nil {
			logrus.WithError(cerr).Warn("close database")
		}
	}()

	router, err := server.Router()
	if err != nil {
		logrus.Fatalf("configure router: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	httpServer := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, groupCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logrus.Infof("starting SentinelAI backend on :%s", cfg.Port)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-groupCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})
	if lexicon := server.Lexicon(); lexicon != nil && cfg.LexiconWatch && cfg.LexiconPath != "" {
		g.Go(func() error {
			return scoring.WatchLexicon(groupCtx, cfg.LexiconPath, lexicon, 500*time.Millisecond)
		})
	}

	if err := g.Wait(); err != nil {
		logrus.Fatalf("server exited: %v", err)
	}
	logrus.Info("server stopped")
}

func configureLogging(level, format string) {
	if parsed, err := logrus.ParseLevel(level); err == nil {
		logrus.SetLevel(parsed)
	} else {
		logrus.WithField("level", level).Warn("unknown log level, using info")
	}
	if format == "json" {
		logrus.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
}
