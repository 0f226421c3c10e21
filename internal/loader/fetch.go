package loader

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/alnah/go-msgenhance/internal/assets"
)

// DefaultMaxResourceSize bounds a single fetched resource (mermaid.min.js is ~3MB).
const DefaultMaxResourceSize = 16 << 20

// defaultFetchTimeout applies when the HTTP client is created by NewHTTPFetcher.
const defaultFetchTimeout = 30 * time.Second

// Fetcher retrieves the raw bytes behind a resource URL.
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// HTTPFetcher fetches http:// and https:// URLs.
type HTTPFetcher struct {
	client  *http.Client
	maxSize int64
}

// NewHTTPFetcher creates an HTTPFetcher. A nil client gets a default one
// with a 30s timeout.
func NewHTTPFetcher(client *http.Client) *HTTPFetcher {
	if client == nil {
		client = &http.Client{Timeout: defaultFetchTimeout}
	}
	return &HTTPFetcher{client: client, maxSize: DefaultMaxResourceSize}
}

// Fetch performs a GET and returns the body of a 200 response.
func (f *HTTPFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: %d", ErrFetchStatus, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxSize+1))
	if err != nil {
		return nil, fmt.Errorf("reading body: %w", err)
	}
	if int64(len(body)) > f.maxSize {
		return nil, fmt.Errorf("%w: more than %d bytes", ErrResourceTooLarge, f.maxSize)
	}
	return body, nil
}

// AssetFetcher serves URLs under a fixed base path from an asset loader.
// "<base>/grammars/dotenv.xml" loads asset "grammars/dotenv.xml".
type AssetFetcher struct {
	base   string
	loader assets.Loader
}

// NewAssetFetcher creates an AssetFetcher for base. Trailing slashes on base are ignored.
func NewAssetFetcher(base string, loader assets.Loader) *AssetFetcher {
	return &AssetFetcher{base: strings.TrimRight(base, "/"), loader: loader}
}

// Fetch loads the asset named by the part of url after the base.
func (f *AssetFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	name, ok := strings.CutPrefix(url, f.base+"/")
	if !ok {
		return nil, fmt.Errorf("%w: %q is outside %q", ErrUnsupportedURL, url, f.base)
	}
	return f.loader.Load(name)
}

// RoutingFetcher sends http(s) URLs to remote and everything else to local.
type RoutingFetcher struct {
	remote Fetcher
	local  Fetcher
}

// NewRoutingFetcher creates a RoutingFetcher. Either side may be nil, in
// which case URLs routed to it fail with ErrUnsupportedURL.
func NewRoutingFetcher(remote, local Fetcher) *RoutingFetcher {
	return &RoutingFetcher{remote: remote, local: local}
}

// Fetch dispatches on the URL scheme.
func (f *RoutingFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	target := f.local
	if strings.HasPrefix(url, "http://") || strings.HasPrefix(url, "https://") {
		target = f.remote
	}
	if target == nil {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedURL, url)
	}
	return target.Fetch(ctx, url)
}

// Compile-time interface checks.
var (
	_ Fetcher = (*HTTPFetcher)(nil)
	_ Fetcher = (*AssetFetcher)(nil)
	_ Fetcher = (*RoutingFetcher)(nil)
)
