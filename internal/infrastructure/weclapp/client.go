// Package weclapp reads sales orders from the weclapp REST API.
package weclapp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sazar-neudorff/productmanager/internal/domain/salesexport"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const (
	defaultTimeout  = 30 * time.Second
	defaultPageSize = 100
	maxResponseSize = 16 << 20
)

// ErrUnexpectedResponse is returned when a payload has no recognizable shape
var ErrUnexpectedResponse = errors.New("weclapp: unexpected response payload")

// Config holds the weclapp API settings
type Config struct {
	BaseURL  string
	APIToken string
	Timeout  time.Duration
	PageSize int
}

// Client pages through weclapp entity listings. Requests carry the
// AuthenticationToken header and page with page/pageSize until totalPages
// is reached.
type Client struct {
	baseURL    string
	token      string
	pageSize   int
	httpClient *http.Client
}

// NewClient creates a client for the API rooted at cfg.BaseURL
func NewClient(cfg Config) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		return nil, fmt.Errorf("weclapp: base URL is required")
	}
	if _, err := url.Parse(base); err != nil {
		return nil, fmt.Errorf("weclapp: invalid base URL: %w", err)
	}
	if cfg.APIToken == "" {
		return nil, fmt.Errorf("weclapp: API token is required")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	pageSize := cfg.PageSize
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	return &Client{
		baseURL:  base,
		token:    cfg.APIToken,
		pageSize: pageSize,
		httpClient: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}, nil
}

// FetchOrders implements salesexport.OrderSource
func (c *Client) FetchOrders(ctx context.Context, w salesexport.Window, channels []string) ([]salesexport.Order, error) {
	entities, err := c.list(ctx, "salesOrder", windowFilters(w, channels))
	if err != nil {
		return nil, err
	}
	orders := make([]salesexport.Order, 0, len(entities))
	for _, e := range entities {
		orders = append(orders, toOrder(e))
	}
	return orders, nil
}

// FetchPositions implements salesexport.OrderSource
func (c *Client) FetchPositions(ctx context.Context, w salesexport.Window, channels []string, status string) ([]salesexport.Position, error) {
	filters := windowFilters(w, channels)
	if status != "" {
		filters = append(filters, Filter{Field: "status", Op: "eq", Values: []string{status}})
	}
	entities, err := c.list(ctx, "salesOrderPosition", filters)
	if err != nil {
		return nil, err
	}
	positions := make([]salesexport.Position, 0, len(entities))
	for _, e := range entities {
		positions = append(positions, toPosition(e))
	}
	return positions, nil
}

func windowFilters(w salesexport.Window, channels []string) []Filter {
	return []Filter{
		{Field: "docDate", Op: "ge", Values: []string{w.Start.Format(time.DateOnly)}},
		{Field: "docDate", Op: "le", Values: []string{w.End.Format(time.DateOnly)}},
		{Field: "distributionChannelName", Op: "in", Values: channels},
	}
}

// list collects every page of resource
func (c *Client) list(ctx context.Context, resource string, filters []Filter) ([]entity, error) {
	params := EncodeFilters(filters)
	params.Set("pageSize", strconv.Itoa(c.pageSize))

	var all []entity
	for page := 1; ; page++ {
		params.Set("page", strconv.Itoa(page))
		payload, err := c.get(ctx, resource, params)
		if err != nil {
			return nil, err
		}
		entities, err := payload.entities()
		if err != nil {
			return nil, fmt.Errorf("%w for %s", err, resource)
		}
		all = append(all, entities...)
		if page >= payload.totalPages() {
			return all, nil
		}
	}
}

func (c *Client) get(ctx context.Context, resource string, params url.Values) (response, error) {
	endpoint := c.baseURL + "/" + strings.TrimLeft(resource, "/")
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("weclapp: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("AuthenticationToken", c.token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("weclapp: GET %s: %w", resource, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("weclapp: read %s: %w", resource, err)
	}
	if resp.StatusCode >= 400 {
		snippet := body
		if len(snippet) > 200 {
			snippet = snippet[:200]
		}
		return nil, fmt.Errorf("weclapp: HTTP %d error for %s: %s", resp.StatusCode, endpoint, snippet)
	}

	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	var payload response
	if err := dec.Decode(&payload); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnexpectedResponse, err)
	}
	return payload, nil
}

type response map[string]any

// entities finds the entity list under one of the keys weclapp uses. A
// payload without a list is a single entity.
func (r response) entities() ([]entity, error) {
	for _, key := range []string{"result", "entities", "rows"} {
		raw, ok := r[key].([]any)
		if !ok {
			continue
		}
		out := make([]entity, 0, len(raw))
		for _, item := range raw {
			m, ok := item.(map[string]any)
			if !ok {
				return nil, ErrUnexpectedResponse
			}
			out = append(out, entity(m))
		}
		return out, nil
	}
	if r == nil {
		return nil, ErrUnexpectedResponse
	}
	return []entity{entity(r)}, nil
}

func (r response) totalPages() int {
	for _, key := range []string{"totalPages", "totalpages"} {
		if n, ok := toInt(r[key]); ok {
			return n
		}
	}
	if meta, ok := r["meta"].(map[string]any); ok {
		if n, ok := toInt(meta["totalPages"]); ok {
			return n
		}
	}
	return 1
}

func toInt(v any) (int, bool) {
	switch n := v.(type) {
	case json.Number:
		i, err := n.Int64()
		return int(i), err == nil
	case string:
		i, err := strconv.Atoi(n)
		return i, err == nil
	}
	return 0, false
}
