package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"

	"lyrics_spider/internal/models"
)

// JSONGetter is the part of fetch.Client the iterator needs.
type JSONGetter interface {
	GetJSON(ctx context.Context, url string, v any) error
}

type Options struct {
	// StartPage seeds the first cursor; zero requests the unpaged listing.
	StartPage int
	// PerPage is sent as per_page when positive.
	PerPage int
}

// SongIterator walks an artist's song listing one page at a time, following
// next_page until it is null. Pages are requested only as Next advances past
// the buffered one.
//
//	it := catalog.NewSongIterator(client, base, "45", catalog.Options{})
//	for it.Next(ctx) {
//		song := it.Song()
//	}
//	if err := it.Err(); err != nil { ... }
type SongIterator struct {
	client   JSONGetter
	baseURL  string
	artistID string
	perPage  int

	cursor string
	buf    []models.Song
	cur    models.Song
	done   bool
	pages  int
	err    error
}

func NewSongIterator(client JSONGetter, baseURL, artistID string, opts Options) *SongIterator {
	it := &SongIterator{
		client:   client,
		baseURL:  baseURL,
		artistID: artistID,
		perPage:  opts.PerPage,
	}
	if opts.StartPage > 0 {
		it.cursor = strconv.Itoa(opts.StartPage)
	}
	return it
}

// Next advances to the next song. It returns false when the listing is
// exhausted, a page could not be fetched or decoded, or ctx is done.
func (it *SongIterator) Next(ctx context.Context) bool {
	for len(it.buf) == 0 {
		if it.done {
			return false
		}
		if err := ctx.Err(); err != nil {
			it.err = err
			it.done = true
			return false
		}
		it.fetchPage(ctx)
	}

	it.cur, it.buf = it.buf[0], it.buf[1:]
	return true
}

func (it *SongIterator) Song() models.Song {
	return it.cur
}

// Err returns the error that ended iteration early, if any. A page without
// a songs key is a normal end and leaves Err nil.
func (it *SongIterator) Err() error {
	return it.err
}

// Pages reports how many listing pages were requested.
func (it *SongIterator) Pages() int {
	return it.pages
}

func (it *SongIterator) fetchPage(ctx context.Context) {
	pageURL := it.PageURL()
	it.pages++

	var resp models.SongsResponse
	if err := it.client.GetJSON(ctx, pageURL, &resp); err != nil {
		it.err = err
		it.done = true
		return
	}
	if resp.Response == nil || resp.Response.Songs == nil {
		it.done = true
		return
	}

	// An empty page still carries a cursor to the next one.
	it.buf = *resp.Response.Songs
	next, err := cursorFrom(resp.Response.NextPage)
	if err != nil {
		it.err = fmt.Errorf("listing %s: %w", pageURL, err)
	}
	if next == "" {
		it.done = true
	}
	it.cursor = next
}

// PageURL is the listing URL for the current cursor.
func (it *SongIterator) PageURL() string {
	u := fmt.Sprintf("%s/artists/%s/songs", it.baseURL, url.PathEscape(it.artistID))

	q := url.Values{}
	if it.cursor != "" {
		q.Set("page", it.cursor)
	}
	if it.perPage > 0 {
		q.Set("per_page", strconv.Itoa(it.perPage))
	}
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	return u
}

// cursorFrom turns a next_page value into a cursor; null, absent, false and
// zero all mean there is no further page.
func cursorFrom(raw json.RawMessage) (string, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) || bytes.Equal(raw, []byte("false")) {
		return "", nil
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return "", fmt.Errorf("next_page: %w", err)
		}
		return s, nil
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		return "", fmt.Errorf("next_page: unsupported value %s", raw)
	}
	if n.String() == "0" {
		return "", nil
	}
	return n.String(), nil
}
