package audiocache

import (
	"crypto/sha256"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

const (
	cacheDir = "smart-banana-audio"

	// DefaultTTL bounds how long a resolved audio URL is reused
	DefaultTTL = 24 * time.Hour
)

// Cache remembers audio URLs already resolved for a language and text.
// Entries live as small files in the OS temp directory.
type Cache struct {
	dir string
	ttl time.Duration
	now func() time.Time
}

// New creates a cache with the given TTL. A non-positive TTL uses DefaultTTL.
func New(ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Cache{
		dir: filepath.Join(os.TempDir(), cacheDir),
		ttl: ttl,
		now: time.Now,
	}
}

// Lookup returns the cached URL for the text, if present and fresh.
func (c *Cache) Lookup(language, text string) (string, bool) {
	path := c.entryPath(language, text)
	info, err := os.Stat(path)
	if err != nil {
		return "", false
	}
	if c.expired(info.ModTime()) {
		return "", false
	}

	stored, err := os.ReadFile(path)
	if err != nil {
		return "", false
	}
	audioURL := strings.TrimSpace(string(stored))
	if audioURL == "" {
		return "", false
	}
	return audioURL, true
}

// Store records the audio URL for the text.
func (c *Cache) Store(language, text, audioURL string) {
	if err := os.MkdirAll(c.dir, 0700); err != nil {
		log.Debug().Err(err).Msg("Failed to create audio cache directory")
		return
	}
	if err := os.WriteFile(c.entryPath(language, text), []byte(audioURL), 0600); err != nil {
		log.Debug().Err(err).Msg("Failed to write audio cache entry")
	}
}

// Cleanup removes entries older than the TTL and reports how many were removed.
func (c *Cache) Cleanup() int {
	entries, err := os.ReadDir(c.dir)
	if err != nil {
		return 0
	}

	removed := 0
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".url" {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if c.expired(info.ModTime()) {
			if err := os.Remove(filepath.Join(c.dir, entry.Name())); err == nil {
				removed++
			}
		}
	}
	return removed
}

func (c *Cache) expired(modTime time.Time) bool {
	return modTime.Before(c.now().Add(-c.ttl))
}

func (c *Cache) entryPath(language, text string) string {
	return filepath.Join(c.dir, hashKey(language, text)+".url")
}

func hashKey(language, text string) string {
	h := sha256.Sum256([]byte(language + "\x00" + text))
	return fmt.Sprintf("%x", h)
}
