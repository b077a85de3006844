package assets

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"io"
	"net/http"
	"strings"
	"time"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/webp"

	"github.com/GoodnightSam/JGL-Assistant/internal/config"
	"github.com/GoodnightSam/JGL-Assistant/internal/fileutil"
	"github.com/GoodnightSam/JGL-Assistant/internal/services"
)

// userAgent identifies download requests; several image hosts refuse the
// Go default agent outright.
const userAgent = "Mozilla/5.0 (X11; Linux x86_64) JGL-Assistant/1.0"

// fetched describes a validated download.
type fetched struct {
	hash   string
	ext    string
	width  int
	height int
}

// downloader performs HEAD-then-GET image downloads with size, type, and
// dimension validation. The global slot channel caps concurrent downloads
// across all shot workers.
type downloader struct {
	client      *http.Client
	globalSlots chan struct{}
	maxBytes    int64
	minWidth    int
	minHeight   int
	headTimeout time.Duration
	getTimeout  time.Duration
}

func newDownloader(cfg config.Assets) *downloader {
	slots := cfg.GlobalDownloadCap
	if slots < 1 {
		slots = 1
	}
	maxBytes := int64(cfg.MaxImageMB) * 1024 * 1024
	if maxBytes <= 0 {
		maxBytes = 20 * 1024 * 1024
	}
	headTimeout := time.Duration(cfg.HeadTimeoutSeconds) * time.Second
	if headTimeout <= 0 {
		headTimeout = 5 * time.Second
	}
	getTimeout := time.Duration(cfg.DownloadTimeoutSeconds) * time.Second
	if getTimeout <= 0 {
		getTimeout = 15 * time.Second
	}
	return &downloader{
		client:      &http.Client{},
		globalSlots: make(chan struct{}, slots),
		maxBytes:    maxBytes,
		minWidth:    cfg.MinWidth,
		minHeight:   cfg.MinHeight,
		headTimeout: headTimeout,
		getTimeout:  getTimeout,
	}
}

// newTestDownloader builds a downloader for tests with an injected client.
func newTestDownloader(cfg config.Assets, client *http.Client) *downloader {
	d := newDownloader(cfg)
	d.client = client
	return d
}

// fetch downloads and validates one candidate. A nil error means the bytes
// decode as a real image within the configured limits.
func (d *downloader) fetch(ctx context.Context, result SearchResult) (fetched, []byte, error) {
	select {
	case d.globalSlots <- struct{}{}:
		defer func() { <-d.globalSlots }()
	case <-ctx.Done():
		return fetched{}, nil, services.Wrap(services.ErrTransient, "assets", "download", "wait for download slot", ctx.Err())
	}

	if err := d.precheck(ctx, result.URL); err != nil {
		return fetched{}, nil, err
	}

	data, err := d.get(ctx, result.URL)
	if err != nil {
		return fetched{}, nil, err
	}

	info, err := d.validate(data)
	if err != nil {
		return fetched{}, nil, err
	}
	return info, data, nil
}

// precheck issues a HEAD request and rejects obviously oversized or
// non-image targets before spending download bandwidth. Hosts that refuse
// HEAD are tolerated; the GET enforces the same limits.
func (d *downloader) precheck(ctx context.Context, rawURL string) error {
	headCtx, cancel := context.WithTimeout(ctx, d.headTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(headCtx, http.MethodHead, rawURL, nil)
	if err != nil {
		return services.Wrap(services.ErrValidation, "assets", "download", "build head request", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := d.client.Do(req)
	if err != nil {
		return nil
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 400 && resp.StatusCode != http.StatusMethodNotAllowed {
		return services.Wrap(services.ErrExternal, "assets", "download",
			fmt.Sprintf("head %s returned %d", rawURL, resp.StatusCode), nil)
	}
	if resp.ContentLength > d.maxBytes {
		return services.Wrap(services.ErrValidation, "assets", "download",
			fmt.Sprintf("content length %d exceeds limit %d", resp.ContentLength, d.maxBytes), nil)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "" && !isImageContentType(ct) {
		return services.Wrap(services.ErrValidation, "assets", "download",
			fmt.Sprintf("unexpected content type %q", ct), nil)
	}
	return nil
}

func (d *downloader) get(ctx context.Context, rawURL string) ([]byte, error) {
	getCtx, cancel := context.WithTimeout(ctx, d.getTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(getCtx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, services.Wrap(services.ErrValidation, "assets", "download", "build get request", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, services.Wrap(services.ErrExternal, "assets", "download",
			fmt.Sprintf("get %s", rawURL), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, services.Wrap(services.ErrExternal, "assets", "download",
			fmt.Sprintf("get %s returned %d", rawURL, resp.StatusCode), nil)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "" && !isImageContentType(ct) {
		return nil, services.Wrap(services.ErrValidation, "assets", "download",
			fmt.Sprintf("unexpected content type %q", ct), nil)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, d.maxBytes+1))
	if err != nil {
		return nil, services.Wrap(services.ErrExternal, "assets", "download",
			fmt.Sprintf("read body of %s", rawURL), err)
	}
	if int64(len(data)) > d.maxBytes {
		return nil, services.Wrap(services.ErrValidation, "assets", "download",
			fmt.Sprintf("image exceeds size limit %d", d.maxBytes), nil)
	}
	return data, nil
}

// validate decodes the image header and enforces the minimum dimensions.
func (d *downloader) validate(data []byte) (fetched, error) {
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return fetched{}, services.Wrap(services.ErrValidation, "assets", "download", "decode image header", err)
	}
	if cfg.Width < d.minWidth || cfg.Height < d.minHeight {
		return fetched{}, services.Wrap(services.ErrValidation, "assets", "download",
			fmt.Sprintf("image %dx%d below minimum %dx%d", cfg.Width, cfg.Height, d.minWidth, d.minHeight), nil)
	}
	ext, ok := extensionForFormat(format)
	if !ok {
		return fetched{}, services.Wrap(services.ErrValidation, "assets", "download",
			fmt.Sprintf("unsupported image format %q", format), nil)
	}
	return fetched{
		hash:   fileutil.HashBytes(data),
		ext:    ext,
		width:  cfg.Width,
		height: cfg.Height,
	}, nil
}

func isImageContentType(contentType string) bool {
	mediaType := contentType
	if idx := strings.IndexByte(mediaType, ';'); idx >= 0 {
		mediaType = mediaType[:idx]
	}
	mediaType = strings.TrimSpace(strings.ToLower(mediaType))
	return strings.HasPrefix(mediaType, "image/") || mediaType == "application/octet-stream"
}

func extensionForFormat(format string) (string, bool) {
	switch format {
	case "jpeg":
		return ".jpg", true
	case "png":
		return ".png", true
	case "gif":
		return ".gif", true
	case "webp":
		return ".webp", true
	default:
		return "", false
	}
}
