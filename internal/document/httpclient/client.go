package httpclient

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/SplayLobster/MemoApp2/internal/document"
)

// DefaultMaxDocumentSize ограничение размера читаемого документа по умолчанию
const DefaultMaxDocumentSize = 16 << 20

// ErrDocumentTooLarge ответ хранилища больше ограничения клиента
var ErrDocumentTooLarge = errors.New("document too large")

var _ document.Client = (*Client)(nil)

// StatusError неожиданный HTTP статус ответа хранилища
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("unexpected status %d", e.Code)
	}
	return fmt.Sprintf("unexpected status %d: %s", e.Code, e.Body)
}

// Options настройки HTTP клиента
type Options struct {
	BaseURL string
	Token   string
	Timeout time.Duration
	// RPS ограничивает частоту запросов клиента, 0 без ограничения
	RPS   int
	Burst int
	// MaxDocumentSize 0 означает DefaultMaxDocumentSize
	MaxDocumentSize int64
	// HTTPClient позволяет подменить транспорт (например, в тестах)
	HTTPClient *http.Client
}

// Client клиент REST поверхности хранилища документов
type Client struct {
	baseURL *url.URL
	token   string
	http    *http.Client
	limiter *rate.Limiter
	maxSize int64
	log     *zap.SugaredLogger
}

// New создает HTTP клиент хранилища
func New(opts Options, log *zap.SugaredLogger) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(opts.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid base url: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("invalid base url %q: scheme must be http or https", opts.BaseURL)
	}

	hc := opts.HTTPClient
	if hc == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		hc = &http.Client{Timeout: timeout}
	}

	maxSize := opts.MaxDocumentSize
	if maxSize <= 0 {
		maxSize = DefaultMaxDocumentSize
	}

	c := &Client{baseURL: base, token: opts.Token, http: hc, maxSize: maxSize, log: log}
	if opts.RPS > 0 {
		burst := opts.Burst
		if burst <= 0 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(opts.RPS), burst)
	}
	return c, nil
}

func (c *Client) documentURL(key document.Key) string {
	u := *c.baseURL
	u.Path = u.Path + "/documents/" + url.PathEscape(key.AppCode) + "/" + url.PathEscape(key.DataName)
	return u.String()
}

// Fetch выполняет GET документа
func (c *Client) Fetch(ctx context.Context, key document.Key) ([]byte, error) {
	if err := key.Validate(); err != nil {
		return nil, err
	}

	resp, err := c.do(ctx, http.MethodGet, key, nil)
	if err != nil {
		return nil, document.Wrap("fetch", key, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		data, err := io.ReadAll(io.LimitReader(resp.Body, c.maxSize+1))
		if err != nil {
			return nil, document.Wrap("fetch", key, fmt.Errorf("read body: %w", err))
		}
		if int64(len(data)) > c.maxSize {
			c.log.Errorw("document exceeds size limit", "key", key.String(), "limit", c.maxSize)
			return nil, document.Wrap("fetch", key, fmt.Errorf("%w: more than %d bytes", ErrDocumentTooLarge, c.maxSize))
		}
		return data, nil
	case http.StatusNotFound:
		return nil, document.ErrNotFound
	default:
		return nil, document.Wrap("fetch", key, statusError(resp))
	}
}

// Store выполняет PUT документа
func (c *Client) Store(ctx context.Context, key document.Key, data []byte) error {
	if err := key.Validate(); err != nil {
		return err
	}

	resp, err := c.do(ctx, http.MethodPut, key, data)
	if err != nil {
		return document.Wrap("store", key, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK, http.StatusCreated, http.StatusNoContent:
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	default:
		return document.Wrap("store", key, statusError(resp))
	}
}

func (c *Client) do(ctx context.Context, method string, key document.Key, body []byte) (*http.Response, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.documentURL(key), reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.log.Warnw("document request failed", "method", method, "key", key.String(), "error", err)
		return nil, err
	}
	c.log.Debugw("document request", "method", method, "key", key.String(), "status", resp.StatusCode, "duration", time.Since(start))
	return resp, nil
}

func statusError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	return &StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(body))}
}
