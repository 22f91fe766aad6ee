// Package pexels implements the provider search client for the Pexels
// photo API.
package pexels

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/Harryguci/Car-Resource-Crawler/internal/crawler"
)

// Config holds provider connection settings. SecretKey is required.
type Config struct {
	BaseURL   string
	SecretKey string
	UserAgent string
	Timeout   time.Duration
}

// Client calls the Pexels search API. It implements crawler.SearchClient.
type Client struct {
	http   *http.Client
	cfg    Config
	logger *zap.Logger
}

// New constructs a Client. The caller is expected to have validated the
// configuration; a missing secret key is still rejected here.
func New(cfg Config, logger *zap.Logger) (*Client, error) {
	if strings.TrimSpace(cfg.SecretKey) == "" {
		return nil, fmt.Errorf("pexels secret key is required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://www.pexels.com/en-us/api/v3"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		http:   &http.Client{Timeout: cfg.Timeout},
		cfg:    cfg,
		logger: logger,
	}, nil
}

type searchResponse struct {
	Photos       []photo `json:"photos"`
	Page         int     `json:"page"`
	PerPage      int     `json:"per_page"`
	TotalResults int     `json:"total_results"`
	NextPage     string  `json:"next_page"`
}

type photo struct {
	ID              int64  `json:"id"`
	Width           int    `json:"width"`
	Height          int    `json:"height"`
	Photographer    string `json:"photographer"`
	PhotographerURL string `json:"photographer_url"`
	Alt             string `json:"alt"`
	Src             struct {
		Original string `json:"original"`
		Large2x  string `json:"large2x"`
		Large    string `json:"large"`
		Medium   string `json:"medium"`
	} `json:"src"`
}

// Search fetches one page of results. Auth failures and quota exhaustion
// map to the crawler's fatal sentinel errors.
func (c *Client) Search(ctx context.Context, query string, page, perPage int) (crawler.SearchPage, error) {
	endpoint := strings.TrimRight(c.cfg.BaseURL, "/") + "/search/photos"
	params := url.Values{}
	params.Set("query", query)
	params.Set("page", strconv.Itoa(page))
	params.Set("per_page", strconv.Itoa(perPage))
	params.Set("orientation", "all")
	params.Set("size", "all")
	params.Set("color", "all")
	params.Set("sort", "popular")
	params.Set("seo_tags", "true")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return crawler.SearchPage{}, fmt.Errorf("build search request: %w", err)
	}
	req.Header.Set("Accept", "*/*")
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("secret-key", c.cfg.SecretKey)
	req.Header.Set("x-client-type", "react")
	if c.cfg.UserAgent != "" {
		req.Header.Set("User-Agent", c.cfg.UserAgent)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return crawler.SearchPage{}, fmt.Errorf("search request: %w", err)
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			c.logger.Debug("close search response body", zap.Error(cerr))
		}
	}()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusUnauthorized, http.StatusForbidden:
		return crawler.SearchPage{}, fmt.Errorf("search status %d: %w", resp.StatusCode, crawler.ErrAuthFailed)
	case http.StatusTooManyRequests:
		return crawler.SearchPage{}, fmt.Errorf("search status %d: %w", resp.StatusCode, crawler.ErrQuotaExceeded)
	default:
		return crawler.SearchPage{}, fmt.Errorf("search request failed with status %d", resp.StatusCode)
	}

	var body searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return crawler.SearchPage{}, fmt.Errorf("decode search response: %w", err)
	}

	items := make([]crawler.SearchItem, 0, len(body.Photos))
	for _, p := range body.Photos {
		imageURL := firstNonEmpty(p.Src.Large2x, p.Src.Large, p.Src.Medium, p.Src.Original)
		if imageURL == "" {
			c.logger.Warn("photo without usable source url", zap.Int64("photo_id", p.ID))
			continue
		}
		items = append(items, crawler.SearchItem{
			ID:              strconv.FormatInt(p.ID, 10),
			URL:             imageURL,
			Width:           p.Width,
			Height:          p.Height,
			Photographer:    p.Photographer,
			PhotographerURL: p.PhotographerURL,
			Description:     p.Alt,
		})
	}

	return crawler.SearchPage{
		Items:       items,
		Page:        page,
		HasNextPage: body.NextPage != "",
	}, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
