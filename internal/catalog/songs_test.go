package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"lyrics_spider/internal/fetch"
)

// pagesGetter serves canned JSON bodies keyed by URL and records requests.
type pagesGetter struct {
	bodies   map[string]string
	errs     map[string]error
	requests []string
}

func (g *pagesGetter) GetJSON(_ context.Context, url string, v any) error {
	g.requests = append(g.requests, url)
	if err, ok := g.errs[url]; ok {
		return err
	}
	body, ok := g.bodies[url]
	if !ok {
		return fmt.Errorf("unexpected url %s", url)
	}
	return json.Unmarshal([]byte(body), v)
}

func collect(t *testing.T, it *SongIterator) []string {
	t.Helper()
	var ids []string
	for it.Next(context.Background()) {
		ids = append(ids, it.Song().ID.String())
	}
	return ids
}

func equal(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

const base = "https://genius.test/api"

func TestIteratorFollowsNextPageInOrder(t *testing.T) {
	g := &pagesGetter{bodies: map[string]string{
		base + "/artists/45/songs":        `{"response":{"songs":[{"id":1},{"id":2}],"next_page":2}}`,
		base + "/artists/45/songs?page=2": `{"response":{"songs":[{"id":3},{"id":2}],"next_page":"3"}}`,
		base + "/artists/45/songs?page=3": `{"response":{"songs":[{"id":4}],"next_page":null}}`,
	}}

	it := NewSongIterator(g, base, "45", Options{})
	got := collect(t, it)

	if want := []string{"1", "2", "3", "2", "4"}; !equal(got, want) {
		t.Fatalf("got %v want %v", got, want)
	}
	if it.Err() != nil {
		t.Fatalf("unexpected error: %v", it.Err())
	}
	if it.Pages() != 3 {
		t.Fatalf("expected 3 page requests, got %d", it.Pages())
	}
}

func TestIteratorIsLazy(t *testing.T) {
	g := &pagesGetter{bodies: map[string]string{
		base + "/artists/45/songs":        `{"response":{"songs":[{"id":1},{"id":2}],"next_page":2}}`,
		base + "/artists/45/songs?page=2": `{"response":{"songs":[{"id":3}],"next_page":null}}`,
	}}

	it := NewSongIterator(g, base, "45", Options{})
	if len(g.requests) != 0 {
		t.Fatalf("constructor should not fetch, got %v", g.requests)
	}
	it.Next(context.Background())
	it.Next(context.Background())
	if len(g.requests) != 1 {
		t.Fatalf("second page requested too early: %v", g.requests)
	}
	it.Next(context.Background())
	if len(g.requests) != 2 {
		t.Fatalf("expected second page after advancing, got %v", g.requests)
	}
}

func TestIteratorTerminatesOnMissingSongs(t *testing.T) {
	cases := map[string]string{
		"no response": `{}`,
		"null":        `null`,
		"no songs":    `{"response":{"next_page":2}}`,
		"null songs":  `{"response":{"songs":null,"next_page":2}}`,
		"empty last":  `{"response":{"songs":[],"next_page":null}}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			g := &pagesGetter{bodies: map[string]string{base + "/artists/45/songs": body}}
			it := NewSongIterator(g, base, "45", Options{})
			if got := collect(t, it); len(got) != 0 {
				t.Fatalf("expected no songs, got %v", got)
			}
			if it.Err() != nil {
				t.Fatalf("missing songs should end cleanly, got %v", it.Err())
			}
			if len(g.requests) != 1 {
				t.Fatalf("expected a single request, got %v", g.requests)
			}
		})
	}
}

func TestIteratorFollowsCursorPastEmptyPage(t *testing.T) {
	g := &pagesGetter{bodies: map[string]string{
		base + "/artists/45/songs":        `{"response":{"songs":[],"next_page":2}}`,
		base + "/artists/45/songs?page=2": `{"response":{"songs":[{"id":5}],"next_page":null}}`,
	}}

	it := NewSongIterator(g, base, "45", Options{})
	if got := collect(t, it); !equal(got, []string{"5"}) {
		t.Fatalf("unexpected songs: %v (requests %v)", got, g.requests)
	}
	if it.Err() != nil {
		t.Fatalf("unexpected error: %v", it.Err())
	}
	if it.Pages() != 2 {
		t.Fatalf("expected 2 page requests, got %d", it.Pages())
	}
}

func TestIteratorStopsOnFetchError(t *testing.T) {
	boom := errors.New("boom")
	g := &pagesGetter{
		bodies: map[string]string{
			base + "/artists/45/songs": `{"response":{"songs":[{"id":1}],"next_page":2}}`,
		},
		errs: map[string]error{base + "/artists/45/songs?page=2": boom},
	}

	it := NewSongIterator(g, base, "45", Options{})
	if got := collect(t, it); !equal(got, []string{"1"}) {
		t.Fatalf("unexpected songs: %v", got)
	}
	if !errors.Is(it.Err(), boom) {
		t.Fatalf("expected boom, got %v", it.Err())
	}
}

func TestIteratorStartPageAndPerPage(t *testing.T) {
	g := &pagesGetter{bodies: map[string]string{
		base + "/artists/45/songs?page=60&per_page=50": `{"response":{"songs":[{"id":9}],"next_page":null}}`,
	}}

	it := NewSongIterator(g, base, "45", Options{StartPage: 60, PerPage: 50})
	if got := collect(t, it); !equal(got, []string{"9"}) {
		t.Fatalf("unexpected songs: %v (requests %v)", got, g.requests)
	}
}

func TestIteratorCanceledContext(t *testing.T) {
	g := &pagesGetter{}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	it := NewSongIterator(g, base, "45", Options{})
	if it.Next(ctx) {
		t.Fatalf("expected no songs on canceled context")
	}
	if !errors.Is(it.Err(), context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", it.Err())
	}
	if len(g.requests) != 0 {
		t.Fatalf("no request expected, got %v", g.requests)
	}
}

func TestCursorFrom(t *testing.T) {
	cases := map[string]string{
		``:      "",
		`null`:  "",
		`false`: "",
		`0`:     "",
		`7`:     "7",
		`"abc"`: "abc",
		` 12 `:  "12",
	}
	for raw, want := range cases {
		got, err := cursorFrom(json.RawMessage(raw))
		if err != nil || got != want {
			t.Fatalf("cursorFrom(%q) = %q, %v; want %q", raw, got, err, want)
		}
	}
	if _, err := cursorFrom(json.RawMessage(`{"x":1}`)); err == nil {
		t.Fatalf("expected error for object cursor")
	}
}

func TestIteratorAgainstHTTPServer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/artists/45/songs" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Query().Get("page") {
		case "":
			io.WriteString(w, `{"response":{"songs":[{"id":10,"url":"https://genius.test/a","full_title":"A"}],"next_page":2}}`)
		case "2":
			io.WriteString(w, `{"response":{"songs":[{"id":11,"url":"https://genius.test/b","full_title":"B"}],"next_page":null}}`)
		default:
			http.Error(w, "bad page", http.StatusBadRequest)
		}
	}))
	defer srv.Close()

	client := fetch.New(fetch.NewHTTPClient(5*time.Second), "test")
	it := NewSongIterator(client, srv.URL+"/api", "45", Options{})

	var titles []string
	for it.Next(context.Background()) {
		titles = append(titles, it.Song().FullTitle)
	}
	if it.Err() != nil {
		t.Fatalf("unexpected error: %v", it.Err())
	}
	if !equal(titles, []string{"A", "B"}) {
		t.Fatalf("unexpected titles: %v", titles)
	}
}
