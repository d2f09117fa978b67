package extraction

import (
	"context"
	"fmt"
	"html"
	"io"
	"mime"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/granhackaria/eventharvest/internal/llm"
)

const (
	maxImageBytes = 10 << 20
	maxPageBytes  = 2 << 20
	userAgent     = "Mozilla/5.0 (compatible; GranHackariaBot/1.0; +https://granhackaria.com)"
)

// HTTPImageFetcher downloads images over HTTP.
type HTTPImageFetcher struct {
	client *http.Client
}

// NewHTTPImageFetcher creates a fetcher with the given per-download timeout.
func NewHTTPImageFetcher(timeout time.Duration) *HTTPImageFetcher {
	return &HTTPImageFetcher{client: &http.Client{Timeout: timeout}}
}

// Fetch implements ImageFetcher. The media type comes from Content-Type and
// defaults to image/jpeg.
func (f *HTTPImageFetcher) Fetch(ctx context.Context, imageURL string) (*llm.Image, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build image request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("fetch image: status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxImageBytes))
	if err != nil {
		return nil, fmt.Errorf("read image: %w", err)
	}

	mediaType := "image/jpeg"
	if ct := resp.Header.Get("Content-Type"); ct != "" {
		if mt, _, err := mime.ParseMediaType(ct); err == nil && strings.HasPrefix(mt, "image/") {
			mediaType = mt
		}
	}

	return llm.NewImage(mediaType, data), nil
}

var metaImagePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)<meta[^>]+property=["']og:image["'][^>]+content=["']([^"']+)["']`),
	regexp.MustCompile(`(?i)<meta[^>]+content=["']([^"']+)["'][^>]+property=["']og:image["']`),
	regexp.MustCompile(`(?i)<meta[^>]+name=["']twitter:image["'][^>]+content=["']([^"']+)["']`),
	regexp.MustCompile(`(?i)<meta[^>]+content=["']([^"']+)["'][^>]+name=["']twitter:image["']`),
}

// HTTPPageImageFinder reads og:image and twitter:image meta tags.
type HTTPPageImageFinder struct {
	client *http.Client
}

// NewHTTPPageImageFinder creates a finder with the given per-page timeout.
func NewHTTPPageImageFinder(timeout time.Duration) *HTTPPageImageFinder {
	return &HTTPPageImageFinder{client: &http.Client{Timeout: timeout}}
}

// FindImage implements PageImageFinder. Relative image URLs are resolved
// against the page URL. An empty string means no image was found.
func (f *HTTPPageImageFinder) FindImage(ctx context.Context, pageURL string) (string, error) {
	base, err := url.Parse(pageURL)
	if err != nil {
		return "", fmt.Errorf("parse page url: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return "", fmt.Errorf("build page request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "text/html")

	resp, err := f.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch page: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("fetch page: status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPageBytes))
	if err != nil {
		return "", fmt.Errorf("read page: %w", err)
	}

	for _, re := range metaImagePatterns {
		m := re.FindSubmatch(body)
		if m == nil {
			continue
		}
		ref, err := url.Parse(strings.TrimSpace(html.UnescapeString(string(m[1]))))
		if err != nil {
			continue
		}
		return base.ResolveReference(ref).String(), nil
	}

	return "", nil
}
