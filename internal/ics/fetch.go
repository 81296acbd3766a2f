package ics

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	appLog "calgrid/internal/log"
)

// Source formats.
const (
	FormatICS  = "ics"
	FormatYAML = "yaml"
)

// maxBodyBytes caps one source payload.
const maxBodyBytes = 16 << 20

// Source is one configured event feed.
type Source struct {
	ID string
	// URL is fetched over HTTP. Ignored when Path is set.
	URL string
	// Path is a local file, read on every load.
	Path string
	// Format is FormatICS (the default) or FormatYAML.
	Format string
}

func (s Source) format() string {
	if s.Format == "" {
		return FormatICS
	}
	return strings.ToLower(s.Format)
}

// Origin says where a payload came from.
type Origin string

const (
	OriginFile    Origin = "file"
	OriginNetwork Origin = "network"
	// OriginCache is a revalidated (304) or offline fallback body.
	OriginCache Origin = "cache"
)

// Payload is the raw body of one source.
type Payload struct {
	Source Source
	Body   []byte
	Origin Origin
}

// Fetcher reads sources. URL sources are revalidated with ETag and
// Last-Modified against a per-source cache, which also serves as the
// fallback while the feed is unreachable.
type Fetcher struct {
	client *http.Client
	cache  sourceCache
}

// NewFetcher returns a Fetcher caching under cacheDir.
func NewFetcher(cacheDir string) *Fetcher {
	return NewFetcherWithClient(cacheDir, &http.Client{Timeout: 15 * time.Second})
}

// NewFetcherWithClient is NewFetcher with a caller supplied HTTP client.
func NewFetcherWithClient(cacheDir string, client *http.Client) *Fetcher {
	if cacheDir == "" {
		cacheDir = "./var/source-cache"
	}
	return &Fetcher{client: client, cache: sourceCache{dir: cacheDir}}
}

// Fetch returns the current body of src.
func (f *Fetcher) Fetch(ctx context.Context, src Source) (Payload, error) {
	switch {
	case src.Path != "":
		body, err := os.ReadFile(src.Path)
		if err != nil {
			return Payload{}, fmt.Errorf("source %s: %w", src.ID, err)
		}
		return Payload{Source: src, Body: body, Origin: OriginFile}, nil
	case src.URL == "":
		return Payload{}, fmt.Errorf("source %s: neither URL nor path set", src.ID)
	}

	meta, cached, hasCache := f.cache.load(src)
	fallback := func(reason error) (Payload, error) {
		if !hasCache {
			return Payload{}, fmt.Errorf("source %s: %w", src.ID, reason)
		}
		appLog.Error("source unavailable; serving cached copy", reason,
			"id", src.ID, "url", redactURL(src.URL), "cached_at", meta.FetchedAt)
		return Payload{Source: src, Body: cached, Origin: OriginCache}, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src.URL, nil)
	if err != nil {
		return Payload{}, fmt.Errorf("source %s: %w", src.ID, err)
	}
	if hasCache {
		if meta.ETag != "" {
			req.Header.Set("If-None-Match", meta.ETag)
		}
		if meta.LastModified != "" {
			req.Header.Set("If-Modified-Since", meta.LastModified)
		}
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return fallback(err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
		if err != nil {
			return fallback(err)
		}
		if len(body) == 0 {
			return fallback(errors.New("empty body"))
		}
		meta = cacheMeta{
			Source:       src.ID,
			Format:       src.format(),
			URLHash:      hashString(src.URL),
			ETag:         resp.Header.Get("ETag"),
			LastModified: resp.Header.Get("Last-Modified"),
			FetchedAt:    time.Now().UTC(),
			Size:         len(body),
		}
		if err := f.cache.store(src, meta, body); err != nil {
			appLog.Error("source cache write failed", err, "id", src.ID)
		}
		appLog.Debug("source fetched", "id", src.ID, "url", redactURL(src.URL), "bytes", len(body))
		return Payload{Source: src, Body: body, Origin: OriginNetwork}, nil
	case http.StatusNotModified:
		if !hasCache {
			return Payload{}, fmt.Errorf("source %s: not modified but nothing cached", src.ID)
		}
		appLog.Debug("source not modified", "id", src.ID, "cached_at", meta.FetchedAt)
		return Payload{Source: src, Body: cached, Origin: OriginCache}, nil
	default:
		return fallback(errors.New(resp.Status))
	}
}

// cacheMeta is stored next to each cached body.
type cacheMeta struct {
	Source string `yaml:"source"`
	Format string `yaml:"format"`
	// URLHash invalidates the entry when the source is pointed elsewhere.
	URLHash      string    `yaml:"url_hash"`
	ETag         string    `yaml:"etag,omitempty"`
	LastModified string    `yaml:"last_modified,omitempty"`
	FetchedAt    time.Time `yaml:"fetched_at"`
	Size         int       `yaml:"size"`
}

// sourceCache keeps one body and one meta file per source id and format:
// <dir>/<id>.<format> and <dir>/<id>.<format>.meta.yaml.
type sourceCache struct {
	dir string
}

func (c sourceCache) paths(src Source) (body, meta string) {
	body = filepath.Join(c.dir, fileSafe(src.ID)+"."+src.format())
	return body, body + ".meta.yaml"
}

// load returns the cached entry for src. ok is false when nothing usable is
// cached, including entries written for another URL or format.
func (c sourceCache) load(src Source) (cacheMeta, []byte, bool) {
	bodyPath, metaPath := c.paths(src)

	var meta cacheMeta
	raw, err := os.ReadFile(metaPath)
	if err != nil {
		return meta, nil, false
	}
	if err := yaml.Unmarshal(raw, &meta); err != nil {
		appLog.Debug("source cache meta unreadable", "id", src.ID, "err", err)
		return cacheMeta{}, nil, false
	}
	if meta.URLHash != hashString(src.URL) || meta.Format != src.format() {
		return cacheMeta{}, nil, false
	}

	body, err := os.ReadFile(bodyPath)
	if err != nil || len(body) != meta.Size {
		return cacheMeta{}, nil, false
	}
	return meta, body, true
}

// store writes body first so a meta file never describes a missing body.
func (c sourceCache) store(src Source, meta cacheMeta, body []byte) error {
	if err := os.MkdirAll(c.dir, 0o700); err != nil {
		return err
	}
	bodyPath, metaPath := c.paths(src)
	if err := writeFileAtomic(bodyPath, body); err != nil {
		return err
	}
	raw, err := yaml.Marshal(&meta)
	if err != nil {
		return err
	}
	return writeFileAtomic(metaPath, raw)
}

func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".calgrid-cache-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Chmod(0o600); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}

// fileSafe maps a source id onto a file name. A short hash keeps ids that
// only differ in replaced characters apart.
func fileSafe(id string) string {
	clean := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		}
		return '_'
	}, id)
	return clean + "-" + hashString(id)[:8]
}

func hashString(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

// redactURL keeps only scheme and host of a feed URL; private calendar URLs
// carry their secret in the path or query.
func redactURL(raw string) string {
	if raw == "" {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return "...(redacted)"
	}
	return u.Scheme + "://" + u.Host + "/...(redacted)"
}
