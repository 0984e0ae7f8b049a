package main

import (
	"context"
	"flag"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"lyrics_spider/internal/app"
	"lyrics_spider/internal/config"
	"lyrics_spider/internal/db"
	"lyrics_spider/internal/fetch"
	"lyrics_spider/internal/logging"
	"lyrics_spider/internal/storage"
)

type songIndex interface {
	app.FetchRecorder
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
	err = run(ctx, cfg, log)
	stop()
	if err != nil {
		log.Errorf("Crawl aborted: %v", err)
		os.Exit(1)
	}
}

// run executes one crawl; deferred cleanup completes before it returns.
func run(ctx context.Context, cfg *config.SpiderConfig, log logrus.FieldLogger) error {
	httpClient := fetch.NewHTTPClient(cfg.RequestTimeout)
	api := fetch.New(httpClient, cfg.UserAgent)

	var pages app.PageGetter = api
	if cfg.PageClient == config.PageClientColly {
		var robots *fetch.RobotsGate
		if cfg.RespectRobotsTxt {
			robots = fetch.NewRobotsGate(api, cfg.UserAgent, log)
		}
		pages = fetch.NewPageFetcher(cfg.UserAgent, cfg.RequestTimeout, robots)
	} else if cfg.RespectRobotsTxt {
		log.Warn("respect_robots_txt is only applied with page_client: colly")
	}

	var index app.FetchRecorder
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

	crawler := app.NewCrawler(cfg, api, pages, storage.New(cfg.RawRoot), index, log)
	stats, err := crawler.Run(ctx)
	log.Infof("Crawl finished: artists=%d listed=%d fetched=%d skipped=%d failed=%d",
		stats.Artists, stats.Listed, stats.Fetched, stats.Skipped, stats.Failed)
	return err
}
