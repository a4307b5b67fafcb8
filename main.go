package main

import (
	"Pictor/ai"
	"Pictor/core"
	"Pictor/lib/sl"
	"Pictor/server"
	"Pictor/storage"
	"context"
	"errors"
	"flag"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const (
	envLocal = "local"
	envDev   = "dev"
	envProd  = "prod"
)

func main() {

	configPath := flag.String("conf", "config.yml", "path to config file")
	flag.Parse()

	// .env is optional, real environment variables win
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		slog.Warn("loading .env", sl.Err(err))
	}

	conf := core.MustLoad(*configPath)
	log := setupLogger(conf.Env)
	log.With(
		slog.String("config", *configPath),
		slog.String("env", conf.Env),
		slog.String("model", conf.Model),
		slog.String("storage", conf.StorageBackend),
		sl.Secret(conf.DalleApiKey),
	).Info("starting pictor")

	var store storage.ArtifactStore
	if conf.StorageBackend == core.StorageMemory {
		store = storage.NewMemoryStore()
		log.Warn("using in-memory storage, images are lost on restart")
	} else {
		fileStore, err := storage.NewFileStore(conf.ImagesDir, log)
		if err != nil {
			log.With(slog.String("dir", conf.ImagesDir)).Error("creating file storage", sl.Err(err))
			os.Exit(1)
		}
		store = fileStore
		log.With(slog.String("dir", fileStore.Dir())).Info("using file storage")
	}

	generator := ai.NewImageGenerator(conf, log, store)

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	httpServer := server.NewServer(conf, log, generator, registry)

	// Setup signal handling for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- httpServer.Start()
	}()

	select {
	case sig := <-sigChan:
		log.Info("received signal, shutting down", slog.String("signal", sig.String()))
	case err := <-serverErr:
		if err != nil {
			log.Error("http server stopped with error", sl.Err(err))
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), conf.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Stop(ctx); err != nil {
		log.Error("stopping http server", sl.Err(err))
	}

	if err := generator.Close(); err != nil {
		log.Error("error closing storage", sl.Err(err))
	}

	log.Info("shutdown complete")
}

func setupLogger(env string) *slog.Logger {
	var log *slog.Logger

	switch env {
	case envLocal, envDev:
		log = slog.New(
			slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}),
		)
	case envProd:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}),
		)
	default:
		log = slog.New(
			slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}),
		)
	}

	return log
}
