// Package fetch retrieves raw upstream payloads over HTTP. It does not
// interpret the bytes; parsing happens downstream by source tag.
package fetch

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/marweda/water-level-forecast/internal/config"
	"github.com/marweda/water-level-forecast/internal/domain"
)

const maxBodyBytes = 64 << 20

// Client implements pipeline.Fetcher over HTTP.
type Client struct {
	httpClient *http.Client
	userAgent  string
	logger     *slog.Logger
}

// NewClient creates a fetch client. timeout bounds each request including
// reading the body.
func NewClient(timeout time.Duration, logger *slog.Logger) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: timeout,
		},
		userAgent: "water-level-forecast/1.0",
		logger:    logger,
	}
}

// Fetch downloads the payload for src and tags it with the source type and
// retrieval time.
func (c *Client) Fetch(ctx context.Context, src config.Source) (domain.RawPayload, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src.URL, nil)
	if err != nil {
		return domain.RawPayload{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.RawPayload{}, fmt.Errorf("fetch %s: %w", src.Name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return domain.RawPayload{}, fmt.Errorf("fetch %s: status %d: %s", src.Name, resp.StatusCode, body)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes+1))
	if err != nil {
		return domain.RawPayload{}, fmt.Errorf("read %s: %w", src.Name, err)
	}
	if len(body) > maxBodyBytes {
		return domain.RawPayload{}, fmt.Errorf("fetch %s: body exceeds %d bytes", src.Name, maxBodyBytes)
	}

	c.logger.Debug("payload fetched",
		"source", src.Name,
		"type", src.Type,
		"bytes", len(body),
		"duration", time.Since(start),
	)

	return domain.RawPayload{
		Source:      src.Type,
		EntityID:    src.EntityID,
		Element:     src.Element,
		Waters:      src.Waters,
		Body:        body,
		RetrievedAt: domain.Now(),
	}, nil
}
