package db

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"lyrics_spider/internal/config"
	"lyrics_spider/internal/models"
)

// MongoDB mirrors per-song crawl and parse metadata. The filesystem stays the
// source of truth; the index is written after the file and never read back
// for caching decisions.
type MongoDB struct {
	client *mongo.Client
	songs  *mongo.Collection
	log    logrus.FieldLogger
}

func NewMongoDB(ctx context.Context, cfg config.DBConfig, log logrus.FieldLogger) (*MongoDB, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.Connection))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("can't ping MongoDB: %w", err)
	}

	d := &MongoDB{
		client: client,
		songs:  client.Database(cfg.Database).Collection(cfg.Collections.Songs),
		log:    log,
	}
	d.createIndexes(ctx)
	return d, nil
}

func (d *MongoDB) createIndexes(ctx context.Context) {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "artist_id", Value: 1}, {Key: "song_id", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{Keys: bson.D{{Key: "fetched_at", Value: 1}}},
	}
	if _, err := d.songs.Indexes().CreateMany(ctx, indexes); err != nil {
		d.log.Warnf("Failed to create song indexes: %v", err)
	}
}

// RecordFetched upserts the crawl half of a song record.
func (d *MongoDB) RecordFetched(ctx context.Context, rec models.SongRecord) error {
	return d.upsert(ctx, rec.ArtistID, rec.SongID, bson.M{
		"url":            rec.URL,
		"normalized_url": rec.NormalizedURL,
		"full_title":     rec.FullTitle,
		"raw_path":       rec.RawPath,
		"content_hash":   rec.ContentHash,
		"content_length": rec.ContentLength,
		"fetched_at":     rec.FetchedAt,
	}, bson.M{"fetch_count": 1})
}

// RecordParsed upserts the parse half of a song record.
func (d *MongoDB) RecordParsed(ctx context.Context, rec models.SongRecord) error {
	return d.upsert(ctx, rec.ArtistID, rec.SongID, bson.M{
		"parsed_path": rec.ParsedPath,
		"parsed_hash": rec.ParsedHash,
		"parsed_at":   rec.ParsedAt,
	}, nil)
}

func (d *MongoDB) upsert(ctx context.Context, artistID, songID string, set, inc bson.M) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	filter := bson.M{"artist_id": artistID, "song_id": songID}
	update := bson.M{"$set": set}
	if len(inc) > 0 {
		update["$inc"] = inc
	}

	_, err := d.songs.UpdateOne(ctx, filter, update, options.Update().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("upsert song %s/%s: %w", artistID, songID, err)
	}
	return nil
}

func (d *MongoDB) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return d.client.Disconnect(ctx)
}
