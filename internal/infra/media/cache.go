package media

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/disintegration/imaging"
	"github.com/google/uuid"

	"nft_market/internal/infra"
)

// RoutePrefix is where cached thumbnails are served.
const RoutePrefix = "/media/"

var ErrNotRemote = errors.New("media ref is not an http(s) URL")

// namespace for deterministic thumbnail names
var thumbNamespace = uuid.MustParse("5b8f4d1e-7c2a-4e0b-9a36-1d2f3c4b5a69")

// Cache downloads remote listing media and stores square thumbnails on disk.
// Local refs (e.g. "/nft1.jpeg") are passed through untouched.
type Cache struct {
	dir    string
	size   int
	client *http.Client

	mu       sync.Mutex
	inflight map[string]bool
	failed   map[string]time.Time
}

// NewCache creates the cache directory. An empty dir resolves to the application data directory.
func NewCache(dir string, size int) (*Cache, error) {
	if dir == "" {
		base, err := infra.DataDir()
		if err != nil {
			return nil, fmt.Errorf("failed to resolve media path: %w", err)
		}
		dir = filepath.Join(base, "assets", "thumbs")
	}
	if err := infra.EnsureDir(dir); err != nil {
		return nil, fmt.Errorf("failed to create media directory: %w", err)
	}
	if size <= 0 {
		size = 320
	}

	// Optimize HTTP Transport to prevent connection leaks
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.MaxIdleConns = 100
	transport.MaxConnsPerHost = 10
	transport.IdleConnTimeout = 30 * time.Second

	return &Cache{
		dir:  dir,
		size: size,
		client: &http.Client{
			Timeout:   10 * time.Second,
			Transport: transport,
		},
		inflight: make(map[string]bool),
		failed:   make(map[string]time.Time),
	}, nil
}

// Dir returns the directory thumbnails are stored in.
func (c *Cache) Dir() string { return c.dir }

// FileName is the deterministic thumbnail name for a remote ref.
func FileName(ref string) string {
	return uuid.NewSHA1(thumbNamespace, []byte(ref)).String() + ".png"
}

// IsRemote reports whether ref can be downloaded.
func IsRemote(ref string) bool {
	return strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://")
}

// Resolve returns the URL a client should load for ref: the cached thumbnail when present,
// otherwise ref itself.
func (c *Cache) Resolve(ref string) string {
	if !IsRemote(ref) {
		return ref
	}
	name := FileName(ref)
	if _, err := os.Stat(filepath.Join(c.dir, name)); err == nil {
		return RoutePrefix + name
	}
	return ref
}

// Thumbnail downloads ref if it isn't cached yet and returns the local file path.
func (c *Cache) Thumbnail(ctx context.Context, ref string) (string, error) {
	if !IsRemote(ref) {
		return "", ErrNotRemote
	}

	filePath := filepath.Join(c.dir, FileName(ref))
	if _, err := os.Stat(filePath); err == nil {
		return filePath, nil // Cache Hit
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ref, nil)
	if err != nil {
		return "", err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("bad status: %s", resp.Status)
	}

	srcImg, err := imaging.Decode(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to decode image: %w", err)
	}

	// Square crop keeps card grids aligned
	thumb := imaging.Fill(srcImg, c.size, c.size, imaging.Center, imaging.Lanczos)

	// Write under a temp name so Resolve never sees a half-written file
	tmp := strings.TrimSuffix(filePath, ".png") + ".part.png"
	if err := imaging.Save(thumb, tmp); err != nil {
		return "", fmt.Errorf("failed to save thumbnail: %w", err)
	}
	if err := os.Rename(tmp, filePath); err != nil {
		os.Remove(tmp)
		return "", err
	}

	return filePath, nil
}

// Prefetch downloads every remote ref in the background. Refs already in flight, or that
// failed in the last minute, are skipped.
func (c *Cache) Prefetch(ctx context.Context, refs []string) {
	for _, ref := range refs {
		if !IsRemote(ref) || !c.claim(ref) {
			continue
		}
		go func(ref string) {
			_, err := c.Thumbnail(ctx, ref)
			c.release(ref, err)
			if err != nil {
				slog.Debug("Thumbnail download failed", slog.String("ref", ref), slog.Any("error", err))
			}
		}(ref)
	}
}

func (c *Cache) claim(ref string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.inflight[ref] {
		return false
	}
	if at, ok := c.failed[ref]; ok && time.Since(at) < time.Minute {
		return false
	}
	c.inflight[ref] = true
	return true
}

func (c *Cache) release(ref string, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.inflight, ref)
	if err != nil {
		c.failed[ref] = time.Now()
	} else {
		delete(c.failed, ref)
	}
}
