package app

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/sirupsen/logrus"

	"lyrics_spider/internal/extract"
	"lyrics_spider/internal/models"
	"lyrics_spider/internal/storage"
	urlqueue "lyrics_spider/internal/url_queue"
)

// ParseRecorder receives a record for every parsed file written.
type ParseRecorder interface {
	RecordParsed(ctx context.Context, rec models.SongRecord) error
}

type ParseStats struct {
	Files int
	Empty int
}

// Parser is the transform stage: raw pages in, lyric text out. Every raw file
// is reprocessed on every run.
type Parser struct {
	raw       *storage.Store
	parsed    *storage.Store
	extractor *extract.Extractor
	index     ParseRecorder
	log       logrus.FieldLogger

	// Progress, when set, receives a progress bar over the file count.
	Progress io.Writer
}

// NewParser wires the transform stage. index may be nil.
func NewParser(raw, parsed *storage.Store, extractor *extract.Extractor, index ParseRecorder, log logrus.FieldLogger) *Parser {
	return &Parser{
		raw:       raw,
		parsed:    parsed,
		extractor: extractor,
		index:     index,
		log:       log,
	}
}

func (p *Parser) Run(ctx context.Context) (ParseStats, error) {
	var stats ParseStats

	entries, err := p.raw.Walk()
	if err != nil {
		return stats, err
	}
	p.log.Infof("Parsing %d file(s) from %s into %s", len(entries), p.raw.Root(), p.parsed.Root())

	var bar *progressbar.ProgressBar
	if p.Progress != nil {
		bar = progressbar.NewOptions(len(entries),
			progressbar.OptionSetWriter(p.Progress),
			progressbar.OptionSetDescription("parsing"),
			progressbar.OptionShowCount(),
			progressbar.OptionOnCompletion(func() { fmt.Fprintln(p.Progress) }),
		)
	}

	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return stats, err
		}

		text, err := p.parseEntry(ctx, e)
		if err != nil {
			return stats, err
		}
		stats.Files++
		if text == "" {
			stats.Empty++
		}
		if bar != nil {
			_ = bar.Add(1)
		}
	}
	if bar != nil {
		_ = bar.Finish()
	}
	return stats, nil
}

func (p *Parser) parseEntry(ctx context.Context, e storage.Entry) (string, error) {
	log := p.log.WithFields(logrus.Fields{"artist": e.ArtistID, "song": e.SongID})
	log.Debug("Reading file")

	content, err := p.raw.ReadEntry(e)
	if err != nil {
		return "", err
	}

	text, err := p.extractor.Extract(content)
	if err != nil {
		return "", fmt.Errorf("extract %s: %w", e.Path, err)
	}

	if err := p.parsed.Save(e.ArtistID, e.SongID, text); err != nil {
		return "", err
	}

	if p.index != nil {
		rec := models.SongRecord{
			ArtistID:   e.ArtistID,
			SongID:     e.SongID,
			ParsedPath: p.parsed.Path(e.ArtistID, e.SongID),
			ParsedHash: urlqueue.ComputeContentHash(text),
			ParsedAt:   time.Now().Unix(),
		}
		if err := p.index.RecordParsed(ctx, rec); err != nil {
			log.Warnf("Index update failed: %v", err)
		}
	}
	return text, nil
}
