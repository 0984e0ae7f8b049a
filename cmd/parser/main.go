package main

import (
	"context"
	"flag"
	"io"
	"net/url"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"lyrics_spider/internal/app"
	"lyrics_spider/internal/config"
	"lyrics_spider/internal/db"
	"lyrics_spider/internal/extract"
	"lyrics_spider/internal/logging"
	"lyrics_spider/internal/storage"
)

type songIndex interface {
	app.ParseRecorder
	io.Closer
}

var openIndex = func(ctx context.Context, cfg config.DBConfig, log logrus.FieldLogger) (songIndex, error) {
	mongoDB, err := db.NewMongoDB(ctx, cfg, log)
	if err != nil {
		return nil, err
	}
	return mongoDB, nil
}

func main() {
	configPath := flag.String("config", "config.yaml", "path to the YAML config file")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		logging.New("info").Fatalf("Load config: %v", err)
	}
	log := logging.New(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err = run(ctx, cfg, log, progressWriter(cfg))
	stop()
	if err != nil {
		log.Errorf("Parse aborted: %v", err)
		os.Exit(1)
	}
}

func progressWriter(cfg *config.SpiderConfig) io.Writer {
	if cfg.Parse.Progress {
		return os.Stderr
	}
	return nil
}

// run executes one parse pass; deferred cleanup completes before it returns.
func run(ctx context.Context, cfg *config.SpiderConfig, log logrus.FieldLogger, progress io.Writer) error {
	var pageURL *url.URL
	if u, err := url.Parse(cfg.APIBaseURL); err == nil && u.Host != "" {
		pageURL = &url.URL{Scheme: u.Scheme, Host: u.Host, Path: "/"}
	}
	extractor := extract.New(extract.Options{
		Selector:            cfg.Parse.ContainerSelector,
		ContainerSeparator:  cfg.Parse.ContainerSeparator,
		ReadabilityFallback: cfg.Parse.ReadabilityFallback,
		PageURL:             pageURL,
	})

	var index app.ParseRecorder
	if cfg.DB.Enabled() {
		idx, err := openIndex(ctx, cfg.DB, log)
		if err != nil {
			log.Warnf("Song index disabled: %v", err)
		} else {
			defer func() {
				if err := idx.Close(); err != nil {
					log.Warnf("Close song index: %v", err)
				}
			}()
			index = idx
		}
	}

	parser := app.NewParser(storage.New(cfg.RawRoot), storage.New(cfg.ParsedRoot), extractor, index, log)
	parser.Progress = progress

	stats, err := parser.Run(ctx)
	log.Infof("Parse finished: files=%d empty=%d", stats.Files, stats.Empty)
	return err
}
