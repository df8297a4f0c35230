// Package marketplace provides the signed HTTP client for the remote
// affiliate marketplace gateway: request signing, envelope decoding, retry
// with backoff, circuit breaking, and a closed error taxonomy.
package marketplace

import (
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

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker"

	"github.com/affiliatekit/smartsearch/pkg/ratelimit"
	"github.com/affiliatekit/smartsearch/pkg/signing"
)

// DefaultBaseURL is the AliExpress affiliate gateway endpoint.
const DefaultBaseURL = "https://api-sg.aliexpress.com/sync"

// maxResponseBytes caps how much of a gateway response is read.
const maxResponseBytes = 4 << 20

// Config holds the client configuration.
type Config struct {
	// BaseURL is the gateway endpoint all methods are POSTed to.
	BaseURL string

	// Credentials issued by the marketplace.
	AppKey    string
	AppSecret string

	// TrackingID identifies the affiliate account on link generation.
	TrackingID string

	// Language and Currency localize product calls when set.
	Language string
	Currency string

	// SignAlgorithm selects the signing digest. Empty means MD5.
	SignAlgorithm signing.Algorithm

	// Methods are the remote method names per operation. Zero fields fall
	// back to the AliExpress defaults.
	Methods Methods

	// HTTP behaviour.
	Timeout        time.Duration
	MaxRetries     int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration

	// Guard gates outbound calls during rate-limit cooldowns. Optional.
	Guard *ratelimit.Guard

	// HTTPClient overrides the default client (for testing).
	HTTPClient *http.Client

	// DisableBreaker turns off the circuit breaker around remote exchanges.
	DisableBreaker bool
}

// DefaultConfig returns a safe default configuration.
func DefaultConfig(appKey, appSecret, trackingID string) Config {
	return Config{
		BaseURL:        DefaultBaseURL,
		AppKey:         appKey,
		AppSecret:      appSecret,
		TrackingID:     trackingID,
		Language:       "en",
		Currency:       "USD",
		SignAlgorithm:  signing.AlgorithmMD5,
		Methods:        DefaultMethods(),
		Timeout:        15 * time.Second,
		MaxRetries:     3,
		InitialBackoff: 1 * time.Second,
		MaxBackoff:     10 * time.Second,
	}
}

// Client performs signed calls against the marketplace gateway. It holds no
// cache; result caching is the orchestrator's responsibility so the client
// stays a pure remote-access layer.
type Client struct {
	cfg        Config
	httpClient *http.Client
	signer     *signing.Signer
	guard      *ratelimit.Guard
	breaker    *gobreaker.CircuitBreaker
	retry      RetryConfig
	logger     zerolog.Logger
}

// New creates a new marketplace client.
func New(cfg Config) (*Client, error) {
	if cfg.AppKey == "" {
		return nil, fmt.Errorf("app key is required")
	}
	if cfg.AppSecret == "" {
		return nil, fmt.Errorf("app secret is required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	if cfg.MaxRetries < 1 {
		cfg.MaxRetries = 3
	}
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = 1 * time.Second
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = 10 * time.Second
	}
	cfg.Methods = cfg.Methods.withDefaults()

	signer, err := signing.New(cfg.SignAlgorithm)
	if err != nil {
		return nil, fmt.Errorf("create signer: %w", err)
	}

	logger := log.With().Str("component", "marketplace-client").Logger()

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}

	c := &Client{
		cfg:        cfg,
		httpClient: httpClient,
		signer:     signer,
		guard:      cfg.Guard,
		retry: RetryConfig{
			MaxAttempts:       cfg.MaxRetries,
			InitialBackoff:    cfg.InitialBackoff,
			MaxBackoff:        cfg.MaxBackoff,
			BackoffMultiplier: 2.0,
		},
		logger: logger,
	}

	if !cfg.DisableBreaker {
		c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        "marketplace",
			MaxRequests: 3,
			Interval:    60 * time.Second,
			Timeout:     30 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.Requests >= 5 && counts.TotalFailures*2 >= counts.Requests
			},
			// Only availability failures open the breaker. Envelope errors
			// are remote decisions, not outages.
			IsSuccessful: func(err error) bool {
				return err == nil || KindOf(err) != KindRemoteUnavailable
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				marketplaceBreakerTransitionsTotal.WithLabelValues(to.String()).Inc()
				logger.Warn().
					Str("from", from.String()).
					Str("to", to.String()).
					Msg("Marketplace circuit breaker state changed")
			},
		})
	}

	return c, nil
}

// Search performs a signed product search and maps the response envelope
// into a SearchResult. The request is normalized and validated first;
// validation failures surface as invalid_parameter before any network call.
func (c *Client) Search(ctx context.Context, req SearchRequest) (SearchResult, error) {
	req = req.Normalize()
	if err := req.Validate(); err != nil {
		return SearchResult{}, err
	}

	params := signing.NewParameterSet()
	params.SetString("keywords", req.Keywords)
	params.SetInt("page_no", int64(req.PageNo))
	params.SetInt("page_size", int64(req.PageSize))
	if req.Sort != "" {
		params.SetString("sort", req.Sort)
	}
	if req.MinSalePrice != nil {
		if err := params.SetFloat("min_sale_price", *req.MinSalePrice); err != nil {
			return SearchResult{}, &Error{Kind: KindInvalidParameter, Message: "min_sale_price is not a signable number", Err: err}
		}
	}
	if req.MaxSalePrice != nil {
		if err := params.SetFloat("max_sale_price", *req.MaxSalePrice); err != nil {
			return SearchResult{}, &Error{Kind: KindInvalidParameter, Message: "max_sale_price is not a signable number", Err: err}
		}
	}
	c.addLocalization(params)

	raw, err := c.call(ctx, c.cfg.Methods.ProductQuery, params)
	if err != nil {
		return SearchResult{}, err
	}

	var wire wireSearchResult
	if err := json.Unmarshal(raw, &wire); err != nil {
		return SearchResult{}, &Error{Kind: KindRemoteProtocol, Message: "malformed search result", Err: err}
	}

	result := wire.toSearchResult()
	c.logger.Debug().
		Str("keywords", req.Keywords).
		Int("page_no", req.PageNo).
		Int("products", len(result.Products)).
		Int("total", result.TotalRecordCount).
		Msg("Search completed")
	return result, nil
}

// GenerateLinks converts destination URLs into affiliate tracking links in
// one batched call. URLs the remote rejects are simply absent from the
// returned map; a partial batch never fails as a whole.
func (c *Client) GenerateLinks(ctx context.Context, urls []string) (map[string]AffiliateLink, error) {
	if len(urls) == 0 {
		return map[string]AffiliateLink{}, nil
	}
	if c.cfg.TrackingID == "" {
		return nil, &Error{Kind: KindInvalidParameter, Message: "tracking id is required for link generation"}
	}

	// The batch is comma-joined on the wire, so URLs containing commas
	// cannot be batched and are reported as unresolved instead.
	batch := make([]string, 0, len(urls))
	for _, u := range urls {
		u = strings.TrimSpace(u)
		if u == "" || strings.Contains(u, ",") {
			c.logger.Warn().Str("url", u).Msg("Skipping URL unsuitable for batched link generation")
			continue
		}
		batch = append(batch, u)
	}
	if len(batch) == 0 {
		return map[string]AffiliateLink{}, nil
	}

	params := signing.NewParameterSet()
	params.SetString("promotion_link_type", "0")
	params.SetString("source_values", strings.Join(batch, ","))
	params.SetString("tracking_id", c.cfg.TrackingID)

	raw, err := c.call(ctx, c.cfg.Methods.LinkGenerate, params)
	if err != nil {
		return nil, err
	}

	var wire wireLinkResult
	if err := json.Unmarshal(raw, &wire); err != nil {
		return nil, &Error{Kind: KindRemoteProtocol, Message: "malformed link result", Err: err}
	}

	trackingID := wire.TrackingID
	if trackingID == "" {
		trackingID = c.cfg.TrackingID
	}

	links := make(map[string]AffiliateLink, len(wire.PromotionLinks.PromotionLink))
	for _, wl := range wire.PromotionLinks.PromotionLink {
		if wl.SourceValue == "" || wl.PromotionLink == "" {
			continue
		}
		links[wl.SourceValue] = AffiliateLink{
			OriginalURL:    wl.SourceValue,
			AffiliateURL:   wl.PromotionLink,
			TrackingID:     trackingID,
			CommissionRate: parsePercent(wl.CommissionRate),
		}
	}

	c.logger.Debug().
		Int("requested", len(batch)).
		Int("resolved", len(links)).
		Msg("Link generation completed")
	return links, nil
}

// GetCategories lists marketplace categories. With an empty parentID it
// returns the root categories; otherwise the children of that category.
// The remote method returns the whole tree, so filtering happens here.
func (c *Client) GetCategories(ctx context.Context, parentID string) ([]Category, error) {
	var parent int64
	filterChildren := false
	if parentID != "" {
		var err error
		parent, err = strconv.ParseInt(parentID, 10, 64)
		if err != nil {
			return nil, &Error{Kind: KindInvalidParameter, Message: "parent category id must be numeric", Err: err}
		}
		filterChildren = true
	}

	raw, err := c.call(ctx, c.cfg.Methods.CategoryGet, signing.NewParameterSet())
	if err != nil {
		return nil, err
	}

	var wire wireCategoryResult
	if err := json.Unmarshal(raw, &wire); err != nil {
		return nil, &Error{Kind: KindRemoteProtocol, Message: "malformed category result", Err: err}
	}

	categories := make([]Category, 0, len(wire.Categories.Category))
	for _, wc := range wire.Categories.Category {
		if filterChildren {
			if wc.ParentCategoryID != parent {
				continue
			}
		} else if wc.ParentCategoryID != 0 {
			continue
		}
		categories = append(categories, Category{
			ID:       wc.CategoryID,
			Name:     wc.CategoryName,
			ParentID: wc.ParentCategoryID,
		})
	}
	return categories, nil
}

// GetProductDetails fetches full records for specific product IDs in one
// batched call.
func (c *Client) GetProductDetails(ctx context.Context, productIDs []string) ([]Product, error) {
	if len(productIDs) == 0 {
		return []Product{}, nil
	}

	ids := make([]string, 0, len(productIDs))
	for _, id := range productIDs {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, err := strconv.ParseInt(id, 10, 64); err != nil {
			return nil, &Error{Kind: KindInvalidParameter, Message: fmt.Sprintf("product id %q must be numeric", id), Err: err}
		}
		ids = append(ids, id)
	}
	if len(ids) == 0 {
		return []Product{}, nil
	}

	params := signing.NewParameterSet()
	params.SetString("product_ids", strings.Join(ids, ","))
	c.addLocalization(params)

	raw, err := c.call(ctx, c.cfg.Methods.ProductDetail, params)
	if err != nil {
		return nil, err
	}

	var wire wireDetailResult
	if err := json.Unmarshal(raw, &wire); err != nil {
		return nil, &Error{Kind: KindRemoteProtocol, Message: "malformed product detail result", Err: err}
	}

	products := make([]Product, 0, len(wire.Products.Product))
	for _, wp := range wire.Products.Product {
		products = append(products, wp.toProduct())
	}
	return products, nil
}

// addLocalization attaches the configured language/currency and tracking id
// to product-level calls.
func (c *Client) addLocalization(params signing.ParameterSet) {
	if c.cfg.Language != "" {
		params.SetString("target_language", c.cfg.Language)
	}
	if c.cfg.Currency != "" {
		params.SetString("target_currency", c.cfg.Currency)
	}
	if c.cfg.TrackingID != "" {
		params.SetString("tracking_id", c.cfg.TrackingID)
	}
}

// call performs one signed gateway call: rate-limit gate, protocol fields,
// signature, then the retry-wrapped exchange. This is the core request
// method all operations go through.
func (c *Client) call(ctx context.Context, method string, business signing.ParameterSet) (json.RawMessage, error) {
	startTime := time.Now()
	defer func() {
		marketplaceRequestDuration.WithLabelValues(method).Observe(time.Since(startTime).Seconds())
	}()

	// Step 1: check the rate-limit cooldown before doing any I/O.
	if c.guard != nil {
		allowed, retryAfter := c.guard.Allow(ctx)
		if !allowed {
			marketplaceRequestsTotal.WithLabelValues(method, "blocked").Inc()
			marketplaceErrorsTotal.WithLabelValues(string(KindRateLimited)).Inc()
			c.logger.Warn().
				Str("method", method).
				Dur("retry_after", retryAfter).
				Msg("Marketplace call blocked by rate limit cooldown")
			return nil, &Error{
				Kind:    KindRateLimited,
				Message: fmt.Sprintf("rate limit cooldown active, retry after %s", retryAfter),
			}
		}
	}

	// Step 2: assemble and sign the full parameter set.
	params, err := c.signedParams(method, business)
	if err != nil {
		return nil, err
	}

	// Step 3: execute with retry for transient failures.
	var result json.RawMessage
	retryErr := retryWithBackoff(ctx, c.logger, c.retry, method, func() error {
		raw, exchErr := c.exchange(ctx, method, params)
		if exchErr != nil {
			return exchErr
		}
		result = raw
		return nil
	})
	if retryErr != nil {
		if kind := KindOf(retryErr); kind != "" {
			marketplaceErrorsTotal.WithLabelValues(string(kind)).Inc()
		}
		return nil, retryErr
	}

	if c.guard != nil {
		c.guard.Reset(ctx)
	}
	return result, nil
}

// signedParams merges the protocol fields with the business parameters and
// attaches the signature.
func (c *Client) signedParams(method string, business signing.ParameterSet) (signing.ParameterSet, error) {
	params := business.Clone()
	params.SetString("method", method)
	params.SetString("app_key", c.cfg.AppKey)
	params.SetString("timestamp", strconv.FormatInt(time.Now().UnixMilli(), 10))
	params.SetString("format", "json")
	params.SetString("v", "2.0")
	params.SetString("sign_method", c.signer.Method())

	sign, err := c.signer.Sign(params, c.cfg.AppSecret)
	if err != nil {
		return nil, &Error{Kind: KindInvalidParameter, Message: "sign request", Err: err}
	}
	params.SetString("sign", sign)
	return params, nil
}

// exchange performs one HTTP round trip through the circuit breaker and
// unwraps the response envelope.
func (c *Client) exchange(ctx context.Context, method string, params signing.ParameterSet) (json.RawMessage, error) {
	if c.breaker == nil {
		return c.doExchange(ctx, method, params)
	}

	v, err := c.breaker.Execute(func() (interface{}, error) {
		raw, exchErr := c.doExchange(ctx, method, params)
		return raw, exchErr
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			marketplaceRequestsTotal.WithLabelValues(method, "breaker_open").Inc()
			return nil, &Error{Kind: KindRemoteUnavailable, Message: "marketplace circuit breaker open", Err: err}
		}
		return nil, err
	}
	raw, _ := v.(json.RawMessage)
	return raw, nil
}

func (c *Client) doExchange(ctx context.Context, method string, params signing.ParameterSet) (json.RawMessage, error) {
	form := url.Values{}
	for k, v := range params {
		form.Set(k, v)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, &Error{Kind: KindInvalidParameter, Message: "build request", Err: err}
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded;charset=utf-8")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		marketplaceRequestsTotal.WithLabelValues(method, "network_error").Inc()
		c.logger.Error().Err(err).Str("method", method).Msg("Marketplace request failed")
		return nil, &Error{Kind: KindRemoteUnavailable, Message: "marketplace request failed", Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		marketplaceRequestsTotal.WithLabelValues(method, "network_error").Inc()
		return nil, &Error{Kind: KindRemoteUnavailable, StatusCode: resp.StatusCode, Message: "read response body", Err: err}
	}
	marketplaceRequestsTotal.WithLabelValues(method, strconv.Itoa(resp.StatusCode)).Inc()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		c.trip(ctx)
		c.logger.Warn().Str("method", method).Msg("Marketplace rate limit hit")
		return nil, &Error{Kind: KindRateLimited, StatusCode: resp.StatusCode, Message: "marketplace rate limit"}
	case resp.StatusCode == http.StatusForbidden:
		return nil, &Error{Kind: KindPermissionDenied, StatusCode: resp.StatusCode, Message: "marketplace denied the request"}
	case resp.StatusCode >= 500:
		return nil, &Error{Kind: KindRemoteUnavailable, StatusCode: resp.StatusCode, Message: resp.Status}
	case resp.StatusCode >= 400:
		return nil, &Error{Kind: KindRemoteProtocol, StatusCode: resp.StatusCode, Message: resp.Status}
	}

	raw, envErr := decodeEnvelope(method, body)
	if envErr != nil {
		var me *Error
		if errors.As(envErr, &me) {
			me.StatusCode = resp.StatusCode
			if me.Kind == KindRateLimited {
				c.trip(ctx)
				c.logger.Warn().
					Str("method", method).
					Int("remote_code", me.RemoteCode).
					Msg("Marketplace rate limit envelope")
			}
		}
		return nil, envErr
	}
	return raw, nil
}

func (c *Client) trip(ctx context.Context) {
	if c.guard != nil {
		cooldown := c.guard.Trip(ctx)
		c.logger.Warn().Dur("cooldown", cooldown).Msg("Rate limit cooldown started")
	}
}
