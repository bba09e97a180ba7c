package purchasekit

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/purchasekit/purchasekit/pkg/catalog"
	"github.com/purchasekit/purchasekit/pkg/config"
	"github.com/purchasekit/purchasekit/pkg/credentials"
	"github.com/purchasekit/purchasekit/pkg/kv"
	"github.com/purchasekit/purchasekit/pkg/refresh"
)

// DefaultBaseURL is the hosted validation service endpoint.
const DefaultBaseURL = "https://validator.purchasekit.dev"

// Config holds the static application identity for the validation service.
// AppName and APIKey form the Basic Authorization header sent with every
// request; per-resource access keys travel separately as request parameters.
type Config struct {
	BaseURL string `env:"PURCHASEKIT_BASE_URL" envDefault:"https://validator.purchasekit.dev"`
	AppName string `env:"PURCHASEKIT_APP_NAME,required"`
	APIKey  string `env:"PURCHASEKIT_API_KEY,required"`
}

// Redirector performs the navigation to a hosted checkout or billing portal
// URL. In a browser SDK this is a full-page redirect; a Go client decides
// what "navigate" means (open a browser, print the URL, hand it to a TUI).
// A nil redirector leaves navigation entirely to the caller.
type Redirector func(url string) error

// Client is the validation-service client. It resolves identifiers and
// access keys through the credential store, serves the product catalog
// through a time-boxed cache, and feeds purchase snapshots into the refresh
// scheduler.
type Client struct {
	cfg      Config
	http     *http.Client
	logger   *slog.Logger
	redirect Redirector

	creds     *credentials.Store
	catalog   *catalog.Cache
	scheduler *refresh.Scheduler

	catalogOpts []catalog.CacheOption
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) {
		if httpClient != nil {
			c.http = httpClient
		}
	}
}

// WithLogger sets the logger shared by the client and its components.
func WithLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithRedirector sets the navigation hook invoked after a successful
// checkout or portal call.
func WithRedirector(redirect Redirector) ClientOption {
	return func(c *Client) {
		c.redirect = redirect
	}
}

// WithCatalogWindow overrides the catalog cache freshness window.
func WithCatalogWindow(window time.Duration) ClientOption {
	return func(c *Client) {
		c.catalogOpts = append(c.catalogOpts, catalog.WithFreshnessWindow(window))
	}
}

// New creates a validation-service client persisting its local state in
// store. Configuration problems are fatal and reported at construction.
func New(cfg Config, store kv.Store, opts ...ClientOption) (*Client, error) {
	if cfg.AppName == "" {
		return nil, ErrMissingAppName
	}
	if cfg.APIKey == "" {
		return nil, ErrMissingAPIKey
	}
	if store == nil {
		return nil, ErrMissingStore
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	cfg.BaseURL = strings.TrimSuffix(cfg.BaseURL, "/")
	if u, err := url.Parse(cfg.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("%w: %q", ErrInvalidBaseURL, cfg.BaseURL)
	}

	c := &Client{
		cfg:    cfg,
		http:   &http.Client{Timeout: 30 * time.Second},
		logger: slog.Default(),
	}

	for _, opt := range opts {
		opt(c)
	}

	state := kv.NewJSONStore(store, c.logger)
	c.creds = credentials.New(state)
	c.catalog = catalog.NewCache(c.fetchProducts, state,
		append([]catalog.CacheOption{catalog.WithLogger(c.logger)}, c.catalogOpts...)...)
	c.scheduler = refresh.NewScheduler(c.refreshSubscription, refresh.WithLogger(c.logger))

	return c, nil
}

// NewFromEnv builds the Config from environment variables (and an optional
// .env file) before constructing the client.
func NewFromEnv(store kv.Store, opts ...ClientOption) (*Client, error) {
	var cfg Config
	if err := config.Load(&cfg); err != nil {
		return nil, err
	}
	return New(cfg, store, opts...)
}

// Start runs the background refresh loop until ctx is cancelled. Scheduled
// re-validations only execute while the loop is running.
func (c *Client) Start(ctx context.Context) error {
	return c.scheduler.Start(ctx)
}

// Scheduler exposes the refresh scheduler for diagnostics: pending and
// completed tasks are retained for the client's lifetime.
func (c *Client) Scheduler() *refresh.Scheduler {
	return c.scheduler
}

// GetProducts returns the product catalog, served from the local cache
// within its freshness window.
func (c *Client) GetProducts(ctx context.Context) ([]catalog.Product, error) {
	return c.catalog.Get(ctx)
}

// RefreshProducts re-reads the catalog. The freshness window still applies:
// even explicit refreshes are rate-limited to protect the service from
// refresh storms.
func (c *Client) RefreshProducts(ctx context.Context) ([]catalog.Product, error) {
	return c.catalog.Refresh(ctx)
}

// Checkout creates a hosted checkout session, stores the returned session
// credential, and invokes the redirector (when set) with the checkout URL.
// Nothing is stored and no navigation happens on failure.
func (c *Client) Checkout(ctx context.Context, req CheckoutRequest) (*CheckoutSession, error) {
	if req.OfferID == "" {
		return nil, ErrMissingOfferID
	}

	var resp checkoutResponse
	if err := c.call(ctx, "checkout", http.MethodPost, "/v3/stripe/checkout", req, &resp); err != nil {
		return nil, err
	}
	if resp.SessionID == "" || resp.URL == "" {
		return nil, fmt.Errorf("%w: checkout response missing session or url", ErrInvalidResponse)
	}

	c.creds.SetSessionID(ctx, resp.SessionID)
	c.creds.StoreKey(ctx, resp.SessionID, resp.AccessKey)

	c.logger.InfoContext(ctx, "checkout session created",
		slog.String("session_id", resp.SessionID))

	session := &CheckoutSession{
		SessionID: resp.SessionID,
		URL:       resp.URL,
		AccessKey: resp.AccessKey,
	}

	if c.redirect != nil {
		if err := c.redirect(resp.URL); err != nil {
			return nil, fmt.Errorf("checkout redirect failed: %w", err)
		}
	}

	return session, nil
}

// GetPurchases looks up the purchase snapshots for req.ID, defaulting to the
// current subscription then session pointer. No resolvable identifier at all
// means "no purchase history yet" and returns an empty list without a
// network call. A resolvable identifier without a credential fails with
// ErrMissingAccessKey.
//
// On success, rotated access keys are stored and every returned purchase is
// registered with the refresh scheduler.
func (c *Client) GetPurchases(ctx context.Context, req PurchasesRequest) ([]Purchase, error) {
	id := req.ID
	if id == "" {
		id = c.creds.DefaultID(ctx)
	}
	if id == "" {
		return []Purchase{}, nil
	}

	accessKey := req.AccessKey
	if accessKey == "" {
		accessKey = c.creds.Lookup(ctx, id)
	}
	if accessKey == "" {
		return nil, fmt.Errorf("%w: %s", ErrMissingAccessKey, id)
	}

	path := "/v3/stripe/purchases/" + url.PathEscape(id) + "?access_key=" + url.QueryEscape(accessKey)

	var resp purchasesResponse
	if err := c.call(ctx, "purchases lookup", http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}

	c.applyAccessKeys(ctx, resp.NewAccessKeys)
	for _, purchase := range resp.Purchases {
		c.trackPurchase(ctx, purchase)
	}

	if resp.Purchases == nil {
		return []Purchase{}, nil
	}
	return resp.Purchases, nil
}

// RedirectToCustomerPortal opens the processor's billing portal for the
// resolved subscription and returns its URL, invoking the redirector when
// set. Unlike GetPurchases, both an identifier and a credential must be
// resolvable.
func (c *Client) RedirectToCustomerPortal(ctx context.Context, req PortalRequest) (string, error) {
	id, accessKey, err := c.resolve(ctx, req.ID, req.AccessKey)
	if err != nil {
		return "", err
	}

	body := map[string]string{
		"returnUrl":  req.ReturnURL,
		"id":         id,
		"access_key": accessKey,
	}

	var resp portalResponse
	if err := c.call(ctx, "portal session", http.MethodPost, "/v3/stripe/portal", body, &resp); err != nil {
		return "", err
	}
	if resp.URL == "" {
		return "", fmt.Errorf("%w: portal response missing url", ErrInvalidResponse)
	}

	if c.redirect != nil {
		if err := c.redirect(resp.URL); err != nil {
			return "", fmt.Errorf("portal redirect failed: %w", err)
		}
	}

	return resp.URL, nil
}

// ChangePlan switches the resolved subscription to another offer. On
// success, rotated access keys are stored, the updated purchase is
// registered with the scheduler, and an extra short-delay verification task
// catches delayed server-side settlement.
func (c *Client) ChangePlan(ctx context.Context, req ChangePlanRequest) (*Purchase, error) {
	if req.OfferID == "" {
		return nil, ErrMissingOfferID
	}

	id, accessKey, err := c.resolve(ctx, req.ID, req.AccessKey)
	if err != nil {
		return nil, err
	}

	body := map[string]string{
		"id":         id,
		"offerId":    req.OfferID,
		"access_key": accessKey,
	}

	var resp changePlanResponse
	if err := c.call(ctx, "plan change", http.MethodPost, "/v3/stripe/change-plan", body, &resp); err != nil {
		return nil, err
	}
	if resp.Purchase == nil {
		return nil, fmt.Errorf("%w: plan change response missing purchase", ErrInvalidResponse)
	}

	c.applyAccessKeys(ctx, resp.NewAccessKeys)
	c.trackPurchase(ctx, *resp.Purchase)

	subscriptionID := id
	if credentials.IsSubscriptionID(resp.Purchase.PurchaseID) {
		subscriptionID = resp.Purchase.PurchaseID
	}
	c.scheduler.ScheduleVerification(subscriptionID)

	c.logger.InfoContext(ctx, "plan changed",
		slog.String("subscription_id", subscriptionID),
		slog.String("offer_id", req.OfferID))

	return resp.Purchase, nil
}

// Reset clears all local state: credentials, identity pointers, the cached
// catalog and every scheduled refresh task.
func (c *Client) Reset(ctx context.Context) {
	c.creds.Reset(ctx)
	c.catalog.Invalidate(ctx)
	c.scheduler.Reset()
}

// resolve applies the identifier/credential defaulting rules for operations
// that require both.
func (c *Client) resolve(ctx context.Context, id, accessKey string) (string, string, error) {
	if id == "" {
		id = c.creds.DefaultID(ctx)
	}
	if id == "" {
		return "", "", ErrMissingIdentifier
	}

	if accessKey == "" {
		accessKey = c.creds.Lookup(ctx, id)
	}
	if accessKey == "" {
		return "", "", fmt.Errorf("%w: %s", ErrMissingAccessKey, id)
	}

	return id, accessKey, nil
}

// fetchProducts is the catalog cache's fetch function.
func (c *Client) fetchProducts(ctx context.Context) ([]catalog.Product, error) {
	var resp productsResponse
	if err := c.call(ctx, "product catalog", http.MethodGet, "/v3/stripe/prices", nil, &resp); err != nil {
		return nil, err
	}
	if resp.Products == nil {
		return nil, fmt.Errorf("%w: catalog response missing products", ErrInvalidResponse)
	}
	return resp.Products, nil
}

// refreshSubscription is the scheduler's executor: one ordinary purchase
// lookup scoped to the subscription.
func (c *Client) refreshSubscription(ctx context.Context, subscriptionID string) error {
	_, err := c.GetPurchases(ctx, PurchasesRequest{ID: subscriptionID})
	return err
}

// applyAccessKeys merges rotated credentials returned by the service.
func (c *Client) applyAccessKeys(ctx context.Context, keys map[string]string) {
	for id, key := range keys {
		c.creds.StoreKey(ctx, id, key)
	}
}

// trackPurchase records the purchase's subscription identity and registers
// its expiry-adjacent refresh tasks.
func (c *Client) trackPurchase(ctx context.Context, purchase Purchase) {
	if !credentials.IsSubscriptionID(purchase.PurchaseID) {
		return
	}

	c.creds.Observe(ctx, purchase.PurchaseID)
	c.scheduler.ScheduleAroundExpiration(purchase.PurchaseID, purchase.ExpirationDate)
}

// responseEnvelope is satisfied by every wire response via the embedded
// envelope.
type responseEnvelope interface {
	isOK() bool
	errorMessage() string
	errorCode() int
}

func (e envelope) isOK() bool           { return e.OK }
func (e envelope) errorMessage() string { return e.Message }
func (e envelope) errorCode() int       { return e.Code }

// call performs one request against the validation service and decodes the
// response envelope into out. The static application identity goes into the
// Authorization header on every call.
func (c *Client) call(ctx context.Context, op, method, path string, body any, out responseEnvelope) error {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode %s request: %w", op, err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.cfg.BaseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("failed to build %s request: %w", op, err)
	}
	req.SetBasicAuth(c.cfg.AppName, c.cfg.APIKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return errors.Join(ErrTransportFailure, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.Join(ErrTransportFailure, err)
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		// Surface the remote message when the error body is an envelope.
		var env envelope
		_ = json.Unmarshal(data, &env)
		return &ServiceError{
			Operation:  op,
			StatusCode: resp.StatusCode,
			Code:       env.Code,
			Message:    env.Message,
		}
	}

	if err := json.Unmarshal(data, out); err != nil {
		return errors.Join(ErrInvalidResponse, err)
	}
	if !out.isOK() {
		return &ServiceError{
			Operation:  op,
			StatusCode: resp.StatusCode,
			Code:       out.errorCode(),
			Message:    out.errorMessage(),
		}
	}

	return nil
}
