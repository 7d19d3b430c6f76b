package ebay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

const (
	// Sandbox URLs
	SandboxTokenURL   = "https://api.sandbox.ebay.com/identity/v1/oauth2/token"
	SandboxAPIBaseURL = "https://api.sandbox.ebay.com"

	// Production URLs
	ProductionTokenURL   = "https://api.ebay.com/identity/v1/oauth2/token"
	ProductionAPIBaseURL = "https://api.ebay.com"

	// SearchPath is the sold-item search endpoint.
	SearchPath = "/buy/marketplace_insights/v1_beta/item_sales/search"

	defaultScope = "https://api.ebay.com/oauth/api_scope"
)

// ErrAuthConfiguration is returned when API credentials are missing.
var ErrAuthConfiguration = errors.New("ebay credentials not configured")

// APIError is a non-2xx response from the eBay API.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API error %d: %s", e.StatusCode, e.Body)
}

// Config holds eBay API configuration
type Config struct {
	ClientID      string
	ClientSecret  string
	Sandbox       bool
	MarketplaceID string
	Scopes        []string

	// Overrides, used against test servers.
	TokenURL   string
	APIBaseURL string
}

// Client is the eBay API client
type Client struct {
	config Config
	creds  *clientcredentials.Config
	http   *resty.Client
}

// NewClient creates a new eBay API client
func NewClient(cfg Config) *Client {
	tokenURL, baseURL := ProductionTokenURL, ProductionAPIBaseURL
	if cfg.Sandbox {
		tokenURL, baseURL = SandboxTokenURL, SandboxAPIBaseURL
	}
	if cfg.TokenURL != "" {
		tokenURL = cfg.TokenURL
	}
	if cfg.APIBaseURL != "" {
		baseURL = cfg.APIBaseURL
	}
	if len(cfg.Scopes) == 0 {
		cfg.Scopes = []string{defaultScope}
	}
	if cfg.MarketplaceID == "" {
		cfg.MarketplaceID = "EBAY_US"
	}

	creds := &clientcredentials.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		TokenURL:     tokenURL,
		Scopes:       cfg.Scopes,
		AuthStyle:    oauth2.AuthStyleInHeader,
	}

	httpClient := resty.New().
		SetTimeout(30*time.Second).
		SetBaseURL(baseURL).
		SetHeader("Accept", "application/json").
		SetHeader("X-EBAY-C-MARKETPLACE-ID", cfg.MarketplaceID)

	return &Client{
		config: cfg,
		creds:  creds,
		http:   httpClient,
	}
}

// IsConfigured returns true if eBay API credentials are set
func (c *Client) IsConfigured() bool {
	return c.config.ClientID != "" && c.config.ClientSecret != ""
}

// FetchToken exchanges the application credentials for a bearer token.
func (c *Client) FetchToken(ctx context.Context) (*oauth2.Token, error) {
	if !c.IsConfigured() {
		return nil, ErrAuthConfiguration
	}
	token, err := c.creds.Token(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch token: %w", err)
	}
	return token, nil
}

// SearchRequest describes a sold-listing search.
type SearchRequest struct {
	Query string
	From  time.Time
	To    time.Time
	Limit int
}

// SoldListing is one sold item. Shipping is 0 when the listing had none.
type SoldListing struct {
	ItemID   string
	Title    string
	Price    float64
	Shipping float64
	EndDate  time.Time
}

// Amount holds monetary values
type Amount struct {
	Value    string `json:"value,omitempty"`
	Currency string `json:"currency,omitempty"`
}

type shippingOption struct {
	ShippingCost *Amount `json:"shippingCost,omitempty"`
}

type itemSale struct {
	ItemID          string           `json:"itemId"`
	Title           string           `json:"title"`
	LastSoldPrice   *Amount          `json:"lastSoldPrice,omitempty"`
	Price           *Amount          `json:"price,omitempty"`
	ShippingOptions []shippingOption `json:"shippingOptions,omitempty"`
	LastSoldDate    string           `json:"lastSoldDate,omitempty"`
	ItemEndDate     string           `json:"itemEndDate,omitempty"`
}

type searchResponse struct {
	Total         int        `json:"total"`
	ItemSales     []itemSale `json:"itemSales,omitempty"`
	ItemSummaries []itemSale `json:"itemSummaries,omitempty"`
}

// SearchSold returns sold listings for a free-text query, most recently
// ended first.
func (c *Client) SearchSold(ctx context.Context, token string, req SearchRequest) ([]SoldListing, error) {
	limit := req.Limit
	if limit <= 0 {
		limit = 50
	}
	filter := fmt.Sprintf("lastSoldDate:[%s..%s]",
		req.From.UTC().Format(time.RFC3339), req.To.UTC().Format(time.RFC3339))

	resp, err := c.http.R().
		SetContext(ctx).
		SetAuthToken(token).
		SetQueryParams(map[string]string{
			"q":      req.Query,
			"filter": filter,
			"sort":   "-lastSoldDate",
			"limit":  strconv.Itoa(limit),
		}).
		Get(SearchPath)
	if err != nil {
		return nil, fmt.Errorf("search request failed: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, &APIError{StatusCode: resp.StatusCode(), Body: string(resp.Body())}
	}

	var result searchResponse
	if err := json.Unmarshal(resp.Body(), &result); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	sales := result.ItemSales
	if len(sales) == 0 {
		sales = result.ItemSummaries
	}
	listings := make([]SoldListing, 0, len(sales))
	for _, s := range sales {
		listings = append(listings, s.toListing())
	}
	return listings, nil
}

func (s itemSale) toListing() SoldListing {
	l := SoldListing{ItemID: s.ItemID, Title: s.Title}
	switch {
	case s.LastSoldPrice != nil:
		l.Price = parseAmount(s.LastSoldPrice)
	case s.Price != nil:
		l.Price = parseAmount(s.Price)
	}
	if len(s.ShippingOptions) > 0 {
		l.Shipping = parseAmount(s.ShippingOptions[0].ShippingCost)
	}
	end := s.LastSoldDate
	if end == "" {
		end = s.ItemEndDate
	}
	if t, err := time.Parse(time.RFC3339, strings.TrimSpace(end)); err == nil {
		l.EndDate = t
	}
	return l
}

func parseAmount(a *Amount) float64 {
	if a == nil {
		return 0
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(a.Value), 64)
	if err != nil {
		return 0
	}
	return v
}
