package marketplace

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"SellerGuard/internal/domain/models"
	domrepo "SellerGuard/internal/domain/repository"
	pkghttp "SellerGuard/pkg/http"
	applogger "SellerGuard/pkg/logger"

	"golang.org/x/sync/errgroup"
)

const (
	// itemsBatch is the marketplace limit for the multi-get items endpoint.
	itemsBatch = 20
	// listingsLimit caps how many listings are inspected per sync.
	listingsLimit = 100
)

// Client pulls seller data from the marketplace REST API.
type Client struct {
	http        *pkghttp.Client
	baseURL     string
	token       string
	ordersLimit int
	now         func() time.Time
	l           *applogger.Logger
}

type Option func(*Client)

func WithOrdersLimit(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.ordersLimit = n
		}
	}
}

func WithLogger(l *applogger.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.l = l
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(c *Client) {
		c.now = now
	}
}

// New creates a marketplace client. The access token has no default and must come from config.
func New(httpClient *pkghttp.Client, baseURL, token string, opts ...Option) (*Client, error) {
	if httpClient == nil {
		return nil, fmt.Errorf("marketplace: http client is required")
	}
	if baseURL == "" {
		return nil, fmt.Errorf("marketplace: base url is required")
	}
	if token == "" {
		return nil, fmt.Errorf("marketplace: access token is required")
	}
	c := &Client{
		http:        httpClient,
		baseURL:     strings.TrimRight(baseURL, "/"),
		token:       token,
		ordersLimit: 100,
		now:         time.Now,
		l:           applogger.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

var _ domrepo.MarketplaceSource = (*Client)(nil)

type reputationResponse struct {
	SellerReputation struct {
		LevelID string `json:"level_id"`
	} `json:"seller_reputation"`
}

type paging struct {
	Total int `json:"total"`
}

type ordersResponse struct {
	Paging  paging `json:"paging"`
	Results []struct {
		ID     int64  `json:"id"`
		Status string `json:"status"`
	} `json:"results"`
}

type claimsResponse struct {
	Paging paging `json:"paging"`
}

type itemIDsResponse struct {
	Results []string `json:"results"`
}

type itemEnvelope struct {
	Code int            `json:"code"`
	Body models.Listing `json:"body"`
}

type questionsResponse struct {
	Questions []struct {
		DateCreated time.Time `json:"date_created"`
		Answer      *struct {
			DateCreated time.Time `json:"date_created"`
		} `json:"answer"`
	} `json:"questions"`
}

// FetchStats gathers reputation, orders, claims, listings and answered questions for an account.
// The calls run concurrently; any failure fails the whole fetch.
func (c *Client) FetchStats(ctx context.Context, accountID string) (models.MarketplaceStats, error) {
	if accountID == "" {
		return models.MarketplaceStats{}, models.ErrAccountRequired
	}
	stats := models.MarketplaceStats{AccountID: accountID}

	var (
		rep       reputationResponse
		orders    ordersResponse
		claims    claimsResponse
		listings  []models.Listing
		responses []float64
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return c.get(gctx, "/users/"+accountID, nil, &rep)
	})
	g.Go(func() error {
		return c.get(gctx, "/orders/search", map[string][]string{
			"seller": {accountID},
			"sort":   {"date_desc"},
			"limit":  {strconv.Itoa(c.ordersLimit)},
		}, &orders)
	})
	g.Go(func() error {
		return c.get(gctx, "/claims/search", map[string][]string{"seller_id": {accountID}}, &claims)
	})
	g.Go(func() error {
		var err error
		listings, err = c.fetchListings(gctx, accountID)
		return err
	})
	g.Go(func() error {
		var err error
		responses, err = c.fetchResponseMinutes(gctx, accountID)
		return err
	})
	if err := g.Wait(); err != nil {
		return models.MarketplaceStats{}, err
	}

	stats.ReputationLevel = rep.SellerReputation.LevelID
	stats.TotalOrders = orders.Paging.Total
	for _, o := range orders.Results {
		if o.Status == "cancelled" {
			stats.CancelledOrders++
		}
	}
	stats.Claims = claims.Paging.Total
	stats.Listings = listings
	stats.ResponseMinutes = responses
	stats.FetchedAt = c.now().UTC()

	c.l.Debug("marketplace stats fetched",
		applogger.String("account", accountID),
		applogger.Int("orders", stats.TotalOrders),
		applogger.Int("listings", len(stats.Listings)))
	return stats, nil
}

func (c *Client) fetchListings(ctx context.Context, accountID string) ([]models.Listing, error) {
	var ids itemIDsResponse
	err := c.get(ctx, "/users/"+accountID+"/items/search", map[string][]string{
		"limit": {strconv.Itoa(listingsLimit)},
	}, &ids)
	if err != nil {
		return nil, err
	}

	out := make([]models.Listing, 0, len(ids.Results))
	for start := 0; start < len(ids.Results); start += itemsBatch {
		end := start + itemsBatch
		if end > len(ids.Results) {
			end = len(ids.Results)
		}
		var items []itemEnvelope
		err := c.get(ctx, "/items", map[string][]string{
			"ids":        {strings.Join(ids.Results[start:end], ",")},
			"attributes": {"id,status,available_quantity"},
		}, &items)
		if err != nil {
			return nil, err
		}
		for _, it := range items {
			if it.Code == 200 {
				out = append(out, it.Body)
			}
		}
	}
	return out, nil
}

func (c *Client) fetchResponseMinutes(ctx context.Context, accountID string) ([]float64, error) {
	var qs questionsResponse
	err := c.get(ctx, "/questions/search", map[string][]string{
		"seller_id": {accountID},
		"status":    {"ANSWERED"},
	}, &qs)
	if err != nil {
		return nil, err
	}
	var out []float64
	for _, q := range qs.Questions {
		if q.Answer == nil || q.Answer.DateCreated.Before(q.DateCreated) {
			continue
		}
		out = append(out, q.Answer.DateCreated.Sub(q.DateCreated).Minutes())
	}
	return out, nil
}

func (c *Client) get(ctx context.Context, path string, query url.Values, dest interface{}) error {
	err := c.http.Do(ctx, &pkghttp.Request{
		URL:    c.baseURL + path,
		Query:  query,
		Header: http.Header{"Authorization": {"Bearer " + c.token}},
	}, dest)
	if pkghttp.StatusCode(err) == http.StatusUnauthorized {
		return fmt.Errorf("marketplace %s: token rejected: %w", path, err)
	}
	if err != nil {
		return fmt.Errorf("marketplace %s: %w", path, err)
	}
	return nil
}
