package ingestion

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/granhackaria/eventharvest/internal/models"
)

// Deduplicator suppresses records already seen during the current run.
type Deduplicator interface {
	// Claim reports whether the record is new and marks it as seen.
	Claim(rec models.RawRecord) bool
}

// MemoryDeduplicator implements in-memory deduplication using fingerprints.
// It is safe for concurrent use by several source pipelines.
type MemoryDeduplicator struct {
	mu           sync.Mutex
	fingerprints map[string]struct{}
}

// NewMemoryDeduplicator creates an empty deduplicator. One is created per run.
func NewMemoryDeduplicator() *MemoryDeduplicator {
	return &MemoryDeduplicator{fingerprints: make(map[string]struct{})}
}

// Claim implements Deduplicator.
func (d *MemoryDeduplicator) Claim(rec models.RawRecord) bool {
	fp := Fingerprint(rec)

	d.mu.Lock()
	defer d.mu.Unlock()

	if _, seen := d.fingerprints[fp]; seen {
		return false
	}
	d.fingerprints[fp] = struct{}{}
	return true
}

// Size returns the number of fingerprints recorded.
func (d *MemoryDeduplicator) Size() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.fingerprints)
}

// Fingerprint identifies a record. Records with a URL are keyed by the
// normalized URL so the same listing from two platforms collapses; others by
// a hash of their source, author and normalized text.
func Fingerprint(rec models.RawRecord) string {
	if key := NormalizeURL(rec.DedupKey()); key != "" {
		return "url:" + key
	}

	data := fmt.Sprintf("%s|%s|%s", rec.Source, rec.Author, NormalizeContent(rec.Text))
	hash := sha256.Sum256([]byte(data))
	return "text:" + hex.EncodeToString(hash[:])
}

// NormalizeURL lowercases scheme and host and drops a trailing slash.
func NormalizeURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	raw = strings.TrimSuffix(raw, "/")
	if i := strings.Index(raw, "://"); i >= 0 {
		rest := raw[i+3:]
		host, path, _ := strings.Cut(rest, "/")
		if path != "" {
			path = "/" + path
		}
		return strings.ToLower(raw[:i]) + "://" + strings.ToLower(host) + path
	}
	return raw
}

var (
	whitespacePattern  = regexp.MustCompile(`\s+`)
	urlPattern         = regexp.MustCompile(`https?://[^\s]+`)
	mentionPattern     = regexp.MustCompile(`@\w+`)
	hashtagPattern     = regexp.MustCompile(`#\w+`)
	punctuationPattern = regexp.MustCompile(`[.,!?;:"'“”‘’]+`)
)

// NormalizeContent standardizes text for comparison.
func NormalizeContent(content string) string {
	normalized := strings.ToLower(content)
	normalized = whitespacePattern.ReplaceAllString(normalized, " ")
	normalized = strings.TrimSpace(normalized)

	// Reposts often differ only in links, tags and mentions.
	normalized = urlPattern.ReplaceAllString(normalized, "[URL]")
	normalized = mentionPattern.ReplaceAllString(normalized, "[MENTION]")
	normalized = hashtagPattern.ReplaceAllString(normalized, "[TAG]")
	normalized = punctuationPattern.ReplaceAllString(normalized, "")

	return normalized
}
