package docs

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"os"
	"os/exec"
	"path"
	"path/filepath"
	"strings"

	"golang.org/x/net/html/charset"
)

const maxDocumentSize = 64 << 20

var ErrDocumentTooLarge = errors.New("response body too large")

// Renderer returns the rendered markup of a listing page.
type Renderer interface {
	Render(ctx context.Context, pageURL string) ([]byte, error)
}

type HTTPRenderer struct {
	httpClient *http.Client
	userAgent  string
}

func NewHTTPRenderer(httpClient *http.Client, userAgent string) *HTTPRenderer {
	return &HTTPRenderer{httpClient: httpClient, userAgent: userAgent}
}

func (r *HTTPRenderer) Render(ctx context.Context, pageURL string) ([]byte, error) {
	resp, err := get(ctx, r.httpClient, pageURL, r.userAgent)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	utf8Reader, err := charset.NewReader(resp.Body, resp.Header.Get("Content-Type"))
	if err != nil {
		utf8Reader = resp.Body
	}

	data, err := readLimited(utf8Reader, maxDocumentSize)
	if err != nil {
		return nil, err
	}

	return data, nil
}

// CommandRenderer runs an external headless browser, e.g.
// "chromium --headless --dump-dom", with the page URL as the last argument
// and returns its standard output.
type CommandRenderer struct {
	command []string
}

func NewCommandRenderer(command string) (*CommandRenderer, error) {
	fields := strings.Fields(command)
	if len(fields) == 0 {
		return nil, fmt.Errorf("render command is empty")
	}
	return &CommandRenderer{command: fields}, nil
}

func (r *CommandRenderer) Render(ctx context.Context, pageURL string) ([]byte, error) {
	args := append(r.command[1:len(r.command):len(r.command)], pageURL)
	cmd := exec.CommandContext(ctx, r.command[0], args...)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	out, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("render command failed: %w: %s", err, strings.TrimSpace(stderr.String()))
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("render command produced no output")
	}

	return out, nil
}

// Download is a fetched document.
type Download struct {
	URL         string
	FileName    string
	ContentType string
	Data        []byte
	Path        string // where the copy was stored, empty when not kept
}

func (d *Download) IsPDF() bool {
	return d.ContentType == "application/pdf" ||
		strings.EqualFold(path.Ext(d.FileName), ".pdf") ||
		bytes.HasPrefix(d.Data, []byte("%PDF-"))
}

func (d *Download) IsHTML() bool {
	return d.ContentType == "text/html" || d.ContentType == "application/xhtml+xml"
}

type Downloader struct {
	httpClient *http.Client
	userAgent  string
	dir        string
}

// NewDownloader keeps a copy of each document under dir; an empty dir disables that.
func NewDownloader(httpClient *http.Client, userAgent, dir string) *Downloader {
	return &Downloader{httpClient: httpClient, userAgent: userAgent, dir: dir}
}

func (d *Downloader) Fetch(ctx context.Context, docURL string) (*Download, error) {
	resp, err := get(ctx, d.httpClient, docURL, d.userAgent)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := readLimited(resp.Body, maxDocumentSize)
	if err != nil {
		return nil, err
	}

	contentType, _, _ := mime.ParseMediaType(resp.Header.Get("Content-Type"))

	download := &Download{
		URL:         docURL,
		FileName:    FileNameFromURL(docURL),
		ContentType: contentType,
		Data:        data,
	}

	if d.dir != "" {
		if err := d.store(download); err != nil {
			return nil, err
		}
	}

	return download, nil
}

func (d *Downloader) store(download *Download) error {
	if err := os.MkdirAll(d.dir, 0o755); err != nil {
		return fmt.Errorf("failed to create download directory: %w", err)
	}

	target := filepath.Join(d.dir, download.FileName)
	if err := os.WriteFile(target, download.Data, 0o644); err != nil {
		return fmt.Errorf("failed to store document: %w", err)
	}

	download.Path = target
	return nil
}

// FileNameFromURL returns the last path segment of a URL, or "document" when there is none.
func FileNameFromURL(docURL string) string {
	u, err := url.Parse(docURL)
	if err != nil {
		return "document"
	}

	name := path.Base(u.Path)
	if name == "." || name == "/" || name == "" {
		return "document"
	}
	if unescaped, err := url.PathUnescape(name); err == nil {
		name = unescaped
	}
	return filepath.Base(filepath.Clean("/" + name))
}

func get(ctx context.Context, httpClient *http.Client, target, userAgent string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	if userAgent != "" {
		req.Header.Set("User-Agent", userAgent)
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch URL: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("HTTP error: %d %s", resp.StatusCode, resp.Status)
	}

	return resp, nil
}

// readLimited fails instead of truncating when r holds more than limit bytes.
func readLimited(r io.Reader, limit int64) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	if int64(len(data)) > limit {
		return nil, fmt.Errorf("%w: more than %d bytes", ErrDocumentTooLarge, limit)
	}
	return data, nil
}
