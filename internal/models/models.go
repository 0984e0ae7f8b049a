package models

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// SongID accepts both JSON numbers and strings; the listing API uses numbers.
type SongID string

func (id *SongID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = SongID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("song id: %w", err)
	}
	*id = SongID(n.String())
	return nil
}

func (id SongID) String() string { return string(id) }

type Song struct {
	ID        SongID `json:"id"`
	URL       string `json:"url"`
	FullTitle string `json:"full_title"`
}

// SongsPage is one listing page. Songs is nil when the key is absent and
// points to an empty slice for "songs": [].
type SongsPage struct {
	Songs    *[]Song         `json:"songs"`
	NextPage json.RawMessage `json:"next_page"`
}

type SongsResponse struct {
	Response *SongsPage `json:"response"`
}

// SongRecord is the optional index entry mirroring a song's crawl and parse state.
type SongRecord struct {
	ArtistID      string `bson:"artist_id"`
	SongID        string `bson:"song_id"`
	URL           string `bson:"url,omitempty"`
	NormalizedURL string `bson:"normalized_url,omitempty"`
	FullTitle     string `bson:"full_title,omitempty"`
	RawPath       string `bson:"raw_path,omitempty"`
	ContentHash   string `bson:"content_hash,omitempty"`
	ContentLength int    `bson:"content_length,omitempty"`
	FetchedAt     int64  `bson:"fetched_at,omitempty"`
	ParsedPath    string `bson:"parsed_path,omitempty"`
	ParsedHash    string `bson:"parsed_hash,omitempty"`
	ParsedAt      int64  `bson:"parsed_at,omitempty"`
}
