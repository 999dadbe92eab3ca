// Package shopify talks to Shopify-style storefront product APIs. Every
// response carries a "used/max" call-limit header that callers feed back
// into the store's gateway bucket.
package shopify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/tbrandongarner/VendorSync-Pro-Replit-sub001/internal/gateway"
	"github.com/tbrandongarner/VendorSync-Pro-Replit-sub001/internal/models"
	"github.com/tbrandongarner/VendorSync-Pro-Replit-sub001/internal/resilience"
)

const (
	apiVersion      = "2024-01"
	callLimitHeader = "X-Shopify-Shop-Api-Call-Limit"
	pageSize        = 250
)

// Client is an HTTP client for storefront product APIs. One client
// serves all stores; the store passed to each call supplies the base
// URL and access token.
type Client struct {
	httpClient *http.Client
	log        zerolog.Logger
}

func NewClient(log zerolog.Logger) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		log:        log,
	}
}

// page carries the per-response metadata read alongside the body.
type page struct {
	usage *gateway.Usage
	next  string
}

// ListProducts fetches the store's products, following pagination links
// until the last page. A zero updatedSince fetches everything.
func (c *Client) ListProducts(ctx context.Context, store *models.Store, updatedSince time.Time) ([]*models.Product, *gateway.Usage, error) {
	params := url.Values{}
	params.Set("limit", strconv.Itoa(pageSize))
	if !updatedSince.IsZero() {
		params.Set("updated_at_min", updatedSince.UTC().Format(time.RFC3339))
	}

	pageURL := c.endpoint(store, "products.json") + "?" + params.Encode()
	var products []*models.Product
	var usage *gateway.Usage
	for pageURL != "" {
		var envelope productsEnvelope
		meta, err := c.get(ctx, store, pageURL, &envelope)
		if meta != nil && meta.usage != nil {
			usage = meta.usage
		}
		if err != nil {
			return nil, usage, err
		}
		for i := range envelope.Products {
			products = append(products, fromWire(store, &envelope.Products[i]))
		}
		pageURL = meta.next
	}

	c.log.Info().
		Int64("store_id", store.ID).
		Int("products", len(products)).
		Msg("Listed store products")
	return products, usage, nil
}

// PushProduct upserts the product by SKU. A known remote id goes
// straight to an update; otherwise the store is searched and the
// product is created when absent.
func (c *Client) PushProduct(ctx context.Context, store *models.Store, product *models.Product) (string, *gateway.Usage, error) {
	var usage *gateway.Usage

	remoteID := product.RemoteID
	if remoteID == "" {
		found, u, err := c.findBySKU(ctx, store, product.SKU)
		if u != nil {
			usage = u
		}
		if err != nil {
			return "", usage, err
		}
		remoteID = found
	}

	var envelope productEnvelope
	var meta *page
	var err error
	if remoteID == "" {
		body := &productEnvelope{Product: toWire(product)}
		meta, err = c.send(ctx, store, http.MethodPost, c.endpoint(store, "products.json"), body, &envelope)
	} else {
		wire := toWire(product)
		if n, perr := strconv.ParseInt(remoteID, 10, 64); perr == nil {
			wire.ID = n
		}
		body := &productEnvelope{Product: wire}
		meta, err = c.send(ctx, store, http.MethodPut, c.endpoint(store, "products/"+remoteID+".json"), body, &envelope)
	}
	if meta != nil && meta.usage != nil {
		usage = meta.usage
	}
	if err != nil {
		return "", usage, err
	}

	id := strconv.FormatInt(envelope.Product.ID, 10)
	c.log.Debug().
		Int64("store_id", store.ID).
		Str("sku", product.SKU).
		Str("remote_id", id).
		Msg("Pushed product")
	return id, usage, nil
}

// findBySKU returns the remote id of the product carrying the SKU, or
// empty when the store has none.
func (c *Client) findBySKU(ctx context.Context, store *models.Store, sku string) (string, *gateway.Usage, error) {
	params := url.Values{}
	params.Set("sku", sku)
	params.Set("limit", "1")

	var envelope productsEnvelope
	meta, err := c.get(ctx, store, c.endpoint(store, "products.json")+"?"+params.Encode(), &envelope)
	var usage *gateway.Usage
	if meta != nil {
		usage = meta.usage
	}
	if err != nil {
		return "", usage, err
	}
	if len(envelope.Products) == 0 {
		return "", usage, nil
	}
	return strconv.FormatInt(envelope.Products[0].ID, 10), usage, nil
}

func (c *Client) endpoint(store *models.Store, path string) string {
	return fmt.Sprintf("%s/admin/api/%s/%s", strings.TrimSuffix(store.BaseURL, "/"), apiVersion, path)
}

func (c *Client) get(ctx context.Context, store *models.Store, endpoint string, out any) (*page, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	c.addHeaders(req, store)
	return c.do(req, out)
}

func (c *Client) send(ctx context.Context, store *models.Store, method, endpoint string, body, out any) (*page, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	c.addHeaders(req, store)
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) (*page, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	meta := &page{next: nextPageURL(resp.Header.Get("Link"))}
	if usage, ok := gateway.ParseUsage(resp.Header.Get(callLimitHeader)); ok {
		meta.usage = usage
	}

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return meta, &resilience.HTTPError{
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			Body:       strings.TrimSpace(string(body)),
		}
	}
	if out == nil {
		return meta, nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return meta, fmt.Errorf("failed to decode response: %w", err)
	}
	return meta, nil
}

func (c *Client) addHeaders(req *http.Request, store *models.Store) {
	if store.AccessToken != "" {
		req.Header.Set("X-Shopify-Access-Token", store.AccessToken)
	}
	req.Header.Set("Accept", "application/json")
}

// nextPageURL extracts the rel="next" target from a Link header.
func nextPageURL(header string) string {
	for _, part := range strings.Split(header, ",") {
		sections := strings.Split(part, ";")
		if len(sections) < 2 {
			continue
		}
		if !strings.Contains(sections[1], `rel="next"`) {
			continue
		}
		target := strings.TrimSpace(sections[0])
		target = strings.TrimPrefix(target, "<")
		target = strings.TrimSuffix(target, ">")
		return target
	}
	return ""
}
