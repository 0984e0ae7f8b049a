package urlqueue

import (
	"crypto/md5"
	"fmt"
	"net/url"
	"strings"
	"sync"
)

// SongQueue remembers which (artist, song) keys a run has already claimed so
// concurrent workers never fetch the same song twice.
type SongQueue struct {
	seen map[string]bool
	mu   sync.Mutex
}

func NewSongQueue() *SongQueue {
	return &SongQueue{seen: make(map[string]bool)}
}

// Claim reports whether the caller is the first to claim the key.
func (q *SongQueue) Claim(artistID, songID string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	key := artistID + "\x00" + songID
	if q.seen[key] {
		return false
	}
	q.seen[key] = true
	return true
}

func (q *SongQueue) Size() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.seen)
}

func NormalizeURL(urlStr string) string {
	parsed, err := url.Parse(urlStr)
	if err != nil {
		return urlStr
	}

	parsed.Fragment = ""

	parsed.Host = strings.TrimPrefix(parsed.Host, "www.")

	if parsed.Scheme == "" {
		parsed.Scheme = "https"
	}

	return parsed.String()
}

func ComputeContentHash(content string) string {
	hash := md5.Sum([]byte(content))
	return fmt.Sprintf("%x", hash)
}
