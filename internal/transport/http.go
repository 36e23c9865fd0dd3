package transport

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"

	"tempguard-device/internal/reading"
)

// StatusTransportError is the code reported when no HTTP response arrived.
const StatusTransportError = -1

type HTTPOptions struct {
	URL string
	// InsecureSkipVerify turns off server certificate validation.
	InsecureSkipVerify bool
	Timeout            time.Duration
	Resolver           *net.Resolver
}

// HTTPClient POSTs each reading over a brand-new TLS connection and closes it
// afterwards.
type HTTPClient struct {
	opts   HTTPOptions
	logger *slog.Logger
}

func NewHTTPClient(opts HTTPOptions, logger *slog.Logger) *HTTPClient {
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.Resolver == nil {
		opts.Resolver = net.DefaultResolver
	}
	if opts.InsecureSkipVerify {
		logger.Warn("tls certificate validation disabled", "url", opts.URL)
	}
	return &HTTPClient{opts: opts, logger: logger}
}

func (c *HTTPClient) Name() string { return "http" }

func (c *HTTPClient) Send(ctx context.Context, r reading.Reading) error {
	payload, err := r.Payload()
	if err != nil {
		return fmt.Errorf("encode reading: %w", err)
	}
	c.logger.Info("payload", "body", string(payload))

	code, err := c.post(ctx, payload)
	if code > 0 {
		c.logger.Info("data sent", "status", code)
		return nil
	}
	c.logger.Error("send failed", "code", code, "error", err)
	return fmt.Errorf("post %s: code %d: %w", c.opts.URL, code, err)
}

func (c *HTTPClient) post(ctx context.Context, payload []byte) (int, error) {
	tr := c.newTransport()
	defer tr.CloseIdleConnections()

	client := resty.New().
		SetTransport(tr).
		SetTimeout(c.opts.Timeout).
		SetCloseConnection(true)

	resp, err := client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(payload).
		Post(c.opts.URL)
	if err != nil {
		return StatusTransportError, err
	}
	return resp.StatusCode(), nil
}

func (c *HTTPClient) newTransport() *http.Transport {
	dialer := &net.Dialer{
		Timeout:  c.opts.Timeout,
		Resolver: c.opts.Resolver,
	}
	return &http.Transport{
		DialContext:         dialer.DialContext,
		TLSClientConfig:     &tls.Config{InsecureSkipVerify: c.opts.InsecureSkipVerify},
		TLSHandshakeTimeout: c.opts.Timeout,
		DisableKeepAlives:   true,
		ForceAttemptHTTP2:   false,
	}
}
