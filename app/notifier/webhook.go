package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/lysyi3m/docs-notifier/app/docs"
)

// DefaultMaxAttachments is the number of files a webhook message may carry.
const DefaultMaxAttachments = 10

var (
	ErrMissingWebhook     = errors.New("webhook URL is not configured")
	ErrNotificationFailed = errors.New("notification failed")
)

// Result reports the outcome of one notification, which may span several requests.
type Result struct {
	Delivered bool
	Status    int
	Err       error
}

func failed(status int, err error) Result {
	return Result{Status: status, Err: fmt.Errorf("%w: %w", ErrNotificationFailed, err)}
}

type Webhook struct {
	url            string
	successStatus  int
	httpClient     *http.Client
	limiter        *rate.Limiter
	maxAttachments int
	userAgent      string
}

type WebhookOptions struct {
	HTTPClient     *http.Client
	Limiter        *rate.Limiter // nil disables rate limiting
	MaxAttachments int
	UserAgent      string
}

// NewDefaultLimiter allows a burst of five messages and one more every 400ms,
// which stays below the per-webhook limit of the chat service.
func NewDefaultLimiter() *rate.Limiter {
	return rate.NewLimiter(rate.Every(400*time.Millisecond), 5)
}

// Limiters hands out one limiter per webhook URL so sources sharing a channel share its budget.
type Limiters struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

func (l *Limiters) For(webhookURL string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.limiters == nil {
		l.limiters = make(map[string]*rate.Limiter)
	}
	limiter, ok := l.limiters[webhookURL]
	if !ok {
		limiter = NewDefaultLimiter()
		l.limiters[webhookURL] = limiter
	}
	return limiter
}

func NewWebhook(webhookURL string, opts WebhookOptions) (*Webhook, error) {
	if webhookURL == "" {
		return nil, ErrMissingWebhook
	}

	u, err := url.Parse(webhookURL)
	if err != nil || !u.IsAbs() {
		return nil, fmt.Errorf("invalid webhook URL %q", webhookURL)
	}

	// The service answers 204 unless asked to wait for the created message.
	successStatus := http.StatusNoContent
	if u.Query().Get("wait") == "true" {
		successStatus = http.StatusOK
	}

	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: 60 * time.Second}
	}
	if opts.MaxAttachments <= 0 {
		opts.MaxAttachments = DefaultMaxAttachments
	}

	return &Webhook{
		url:            webhookURL,
		successStatus:  successStatus,
		httpClient:     opts.HTTPClient,
		limiter:        opts.Limiter,
		maxAttachments: opts.MaxAttachments,
		userAgent:      opts.UserAgent,
	}, nil
}

// NotifyRecord announces a listing record as a single embed.
func (w *Webhook) NotifyRecord(ctx context.Context, record docs.Record) Result {
	return w.postJSON(ctx, recordPayload(record))
}

// NotifyDocument posts the formatted metadata with the rendered pages attached.
// Pages beyond the attachment limit are sent in follow-up messages without text.
// The document counts as delivered only when every batch is accepted.
func (w *Webhook) NotifyDocument(ctx context.Context, metadata docs.Metadata, link string, pages []docs.Page) Result {
	content := FormatDocument(metadata)

	if len(pages) == 0 {
		if link != "" {
			content = truncate(content+"\n"+link, maxContentLength)
		}
		return w.postJSON(ctx, payload{Content: content})
	}

	var result Result
	for start := 0; start < len(pages); start += w.maxAttachments {
		end := min(start+w.maxAttachments, len(pages))

		batchContent := ""
		if start == 0 {
			batchContent = content
		}

		result = w.postFiles(ctx, batchContent, pages[start:end])
		if !result.Delivered {
			slog.Error("Webhook batch rejected",
				"doc", metadata.DocNumber,
				"batch_start", start,
				"pages", len(pages),
				"status", result.Status,
				"error", result.Err)
			return result
		}
	}

	return result
}

// Send posts plain text.
func (w *Webhook) Send(ctx context.Context, content string) Result {
	return w.postJSON(ctx, payload{Content: truncate(content, maxContentLength)})
}

func (w *Webhook) postJSON(ctx context.Context, body payload) Result {
	data, err := json.Marshal(body)
	if err != nil {
		return failed(0, fmt.Errorf("failed to encode payload: %w", err))
	}

	return w.post(ctx, "application/json", data)
}

func (w *Webhook) postFiles(ctx context.Context, content string, pages []docs.Page) Result {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	payloadJSON, err := json.Marshal(payload{Content: content})
	if err != nil {
		return failed(0, fmt.Errorf("failed to encode payload: %w", err))
	}
	if err := writer.WriteField("payload_json", string(payloadJSON)); err != nil {
		return failed(0, fmt.Errorf("failed to write payload: %w", err))
	}

	for i, page := range pages {
		header := make(textproto.MIMEHeader)
		header.Set("Content-Disposition",
			fmt.Sprintf(`form-data; name="files[%d]"; filename="%s"`, i, escapeQuotes(page.Name)))
		header.Set("Content-Type", "image/jpeg")

		part, err := writer.CreatePart(header)
		if err != nil {
			return failed(0, fmt.Errorf("failed to create attachment part: %w", err))
		}
		if _, err := part.Write(page.Data); err != nil {
			return failed(0, fmt.Errorf("failed to write attachment: %w", err))
		}
	}

	if err := writer.Close(); err != nil {
		return failed(0, fmt.Errorf("failed to finalize multipart body: %w", err))
	}

	return w.post(ctx, writer.FormDataContentType(), buf.Bytes())
}

func (w *Webhook) post(ctx context.Context, contentType string, body []byte) Result {
	if w.limiter != nil {
		if err := w.limiter.Wait(ctx); err != nil {
			return failed(0, fmt.Errorf("rate limiter: %w", err))
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return failed(0, fmt.Errorf("failed to create request: %w", err))
	}
	req.Header.Set("Content-Type", contentType)
	if w.userAgent != "" {
		req.Header.Set("User-Agent", w.userAgent)
	}

	resp, err := w.httpClient.Do(req)
	if err != nil {
		return failed(0, fmt.Errorf("failed to send request: %w", err))
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))

	if resp.StatusCode != w.successStatus {
		return failed(resp.StatusCode, fmt.Errorf("HTTP error: %d %s", resp.StatusCode, bytes.TrimSpace(respBody)))
	}

	return Result{Delivered: true, Status: resp.StatusCode}
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func escapeQuotes(s string) string {
	return quoteEscaper.Replace(s)
}
