package app

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"lyrics_spider/internal/catalog"
	"lyrics_spider/internal/config"
	"lyrics_spider/internal/models"
	"lyrics_spider/internal/storage"
	urlqueue "lyrics_spider/internal/url_queue"
)

// PageGetter fetches a lyrics page body.
type PageGetter interface {
	Fetch(ctx context.Context, url string) (string, error)
}

// FetchRecorder receives a record for every page written to raw storage.
type FetchRecorder interface {
	RecordFetched(ctx context.Context, rec models.SongRecord) error
}

type CrawlStats struct {
	Artists int64
	Listed  int64
	Skipped int64
	Fetched int64
	Failed  int64
}

// Crawler is the fetch stage: listing pages in, raw lyrics pages out.
type Crawler struct {
	cfg     *config.SpiderConfig
	api     catalog.JSONGetter
	pages   PageGetter
	raw     *storage.Store
	index   FetchRecorder
	log     logrus.FieldLogger
	claimed *urlqueue.SongQueue

	artists atomic.Int64
	listed  atomic.Int64
	skipped atomic.Int64
	fetched atomic.Int64
	failed  atomic.Int64
}

// NewCrawler wires the fetch stage. index may be nil.
func NewCrawler(cfg *config.SpiderConfig, api catalog.JSONGetter, pages PageGetter, raw *storage.Store, index FetchRecorder, log logrus.FieldLogger) *Crawler {
	return &Crawler{
		cfg:     cfg,
		api:     api,
		pages:   pages,
		raw:     raw,
		index:   index,
		log:     log,
		claimed: urlqueue.NewSongQueue(),
	}
}

// Run crawls every configured artist in order. Songs that cannot be fetched
// are logged and left for the next run; filesystem errors abort the run.
func (c *Crawler) Run(ctx context.Context) (CrawlStats, error) {
	c.log.WithField("workers", c.cfg.Workers).Infof("Crawling %d artist(s) into %s", len(c.cfg.ArtistIDs), c.raw.Root())

	for _, artistID := range c.cfg.ArtistIDs {
		if err := c.crawlArtist(ctx, artistID); err != nil {
			return c.Stats(), err
		}
		c.artists.Add(1)
	}
	return c.Stats(), nil
}

func (c *Crawler) Stats() CrawlStats {
	return CrawlStats{
		Artists: c.artists.Load(),
		Listed:  c.listed.Load(),
		Skipped: c.skipped.Load(),
		Fetched: c.fetched.Load(),
		Failed:  c.failed.Load(),
	}
}

func (c *Crawler) crawlArtist(ctx context.Context, artistID string) error {
	log := c.log.WithField("artist", artistID)
	log.Debug("Crawling for artist")

	it := catalog.NewSongIterator(c.api, c.cfg.APIBaseURL, artistID, catalog.Options{
		StartPage: c.cfg.StartPage,
		PerPage:   c.cfg.PerPage,
	})

	var err error
	if c.cfg.Workers > 1 {
		err = c.crawlPooled(ctx, artistID, it)
	} else {
		err = c.crawlSequential(ctx, artistID, it)
	}
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := it.Err(); err != nil {
		log.WithField("url", it.PageURL()).Warnf("Listing ended early: %v", err)
	}
	log.Debugf("Listing exhausted after %d page(s)", it.Pages())
	return nil
}

// crawlSequential finishes each song before the next listing page is requested,
// so at most one request is in flight.
func (c *Crawler) crawlSequential(ctx context.Context, artistID string, it *catalog.SongIterator) error {
	for it.Next(ctx) {
		c.listed.Add(1)
		if err := c.crawlSong(ctx, artistID, it.Song()); err != nil {
			return err
		}
	}
	return nil
}

func (c *Crawler) crawlPooled(ctx context.Context, artistID string, it *catalog.SongIterator) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.cfg.Workers)

	for it.Next(gctx) {
		song := it.Song()
		c.listed.Add(1)
		g.Go(func() error {
			return c.crawlSong(gctx, artistID, song)
		})
	}
	return g.Wait()
}

func (c *Crawler) crawlSong(ctx context.Context, artistID string, song models.Song) error {
	songID := song.ID.String()
	log := c.log.WithFields(logrus.Fields{"artist": artistID, "song": songID})
	log.Debug("Crawling for song")

	if songID == "" {
		log.Warn("Listing entry without id, skipping")
		c.failed.Add(1)
		return nil
	}
	if !c.claimed.Claim(artistID, songID) {
		log.Debug("Already handled in this run, skipping")
		c.skipped.Add(1)
		return nil
	}

	saved, err := c.raw.Exists(artistID, songID)
	if err != nil {
		return err
	}
	if saved {
		log.Debug("Already saved, skipping")
		c.skipped.Add(1)
		return nil
	}

	body, err := c.pages.Fetch(ctx, song.URL)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		log.WithField("url", song.URL).Warnf("Request error: %v", err)
		c.failed.Add(1)
		return nil
	}

	if err := c.raw.Save(artistID, songID, body); err != nil {
		return err
	}
	c.fetched.Add(1)

	c.record(ctx, log, models.SongRecord{
		ArtistID:      artistID,
		SongID:        songID,
		URL:           song.URL,
		NormalizedURL: urlqueue.NormalizeURL(song.URL),
		FullTitle:     song.FullTitle,
		RawPath:       c.raw.Path(artistID, songID),
		ContentHash:   urlqueue.ComputeContentHash(body),
		ContentLength: len(body),
		FetchedAt:     time.Now().Unix(),
	})
	return nil
}

func (c *Crawler) record(ctx context.Context, log logrus.FieldLogger, rec models.SongRecord) {
	if c.index == nil {
		return
	}
	if err := c.index.RecordFetched(ctx, rec); err != nil && !errors.Is(err, context.Canceled) {
		log.Warnf("Index update failed: %v", err)
	}
}
