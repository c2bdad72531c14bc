// Package catalogsource adapts the remote product catalog API to
// catalog.OptionSource.
package catalogsource

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sazar-neudorff/productmanager/internal/domain/catalog"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const maxResponseSize = 2 << 20

// Config holds the catalog API settings
type Config struct {
	BaseURL  string
	APIToken string
	Timeout  time.Duration
}

// HTTPSource queries the catalog API
//
// Endpoints:
//
//	GET {base}/products?limit=               -> {"items": [...]}
//	GET {base}/products/search?q=&cursor=&limit=
//	    -> {"items": [...], "pageInfo": {"hasNextPage": true, "endCursor": "..."|null}}
//
// Items carry id, title, sku, ean, imageUrl, price and description.
type HTTPSource struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// NewHTTPSource creates a source for the API rooted at cfg.BaseURL
func NewHTTPSource(cfg Config) (*HTTPSource, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		return nil, fmt.Errorf("catalogsource: base URL is required")
	}
	if _, err := url.Parse(base); err != nil {
		return nil, fmt.Errorf("catalogsource: invalid base URL: %w", err)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPSource{
		baseURL: base,
		token:   cfg.APIToken,
		httpClient: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}, nil
}

type wireItem struct {
	ID          string          `json:"id"`
	Title       string          `json:"title"`
	SKU         string          `json:"sku"`
	EAN         string          `json:"ean"`
	ImageURL    string          `json:"imageUrl"`
	Price       decimal.Decimal `json:"price"`
	Description string          `json:"description"`
}

type wirePage struct {
	Items    []wireItem `json:"items"`
	PageInfo struct {
		HasNextPage bool    `json:"hasNextPage"`
		EndCursor   *string `json:"endCursor"`
	} `json:"pageInfo"`
}

// ListDefault implements catalog.OptionSource
func (s *HTTPSource) ListDefault(ctx context.Context, limit int) ([]catalog.Option, error) {
	q := url.Values{}
	q.Set("limit", strconv.Itoa(limit))

	page, err := s.get(ctx, "list default", "/products", q)
	if err != nil {
		return nil, err
	}
	return page.Options, nil
}

// Search implements catalog.OptionSource
func (s *HTTPSource) Search(ctx context.Context, query, cursor string, limit int) (catalog.Page, error) {
	q := url.Values{}
	q.Set("q", query)
	q.Set("limit", strconv.Itoa(limit))
	if cursor != "" {
		q.Set("cursor", cursor)
	}
	return s.get(ctx, "search", "/products/search", q)
}

func (s *HTTPSource) get(ctx context.Context, op, path string, query url.Values) (catalog.Page, error) {
	endpoint := s.baseURL + path + "?" + query.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return catalog.Page{}, catalog.Unavailable(op, err)
	}
	req.Header.Set("Accept", "application/json")
	if s.token != "" {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return catalog.Page{}, catalog.Unavailable(op, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return catalog.Page{}, catalog.Unavailable(op, err)
	}
	if resp.StatusCode >= 400 {
		return catalog.Page{}, catalog.Unavailable(op, fmt.Errorf("HTTP %d", resp.StatusCode))
	}

	var wire wirePage
	if err := json.Unmarshal(body, &wire); err != nil {
		return catalog.Page{}, catalog.Unavailable(op, fmt.Errorf("decode response: %w", err))
	}
	return toPage(op, wire)
}

func toPage(op string, wire wirePage) (catalog.Page, error) {
	options := make([]catalog.Option, 0, len(wire.Items))
	for _, item := range wire.Items {
		opt := catalog.Option{
			ID:          strings.TrimSpace(item.ID),
			Title:       strings.TrimSpace(item.Title),
			SKU:         strings.TrimSpace(item.SKU),
			EAN:         strings.TrimSpace(item.EAN),
			ImageRef:    item.ImageURL,
			UnitPrice:   item.Price,
			Description: item.Description,
		}
		if err := opt.Validate(); err != nil {
			return catalog.Page{}, catalog.Unavailable(op, err)
		}
		options = append(options, opt)
	}
	page := catalog.Page{Options: options}
	// hasNextPage without a cursor cannot be followed, so it ends the listing
	if wire.PageInfo.HasNextPage && wire.PageInfo.EndCursor != nil && *wire.PageInfo.EndCursor != "" {
		page.NextCursor = *wire.PageInfo.EndCursor
		page.HasMore = true
	}
	return page, nil
}
