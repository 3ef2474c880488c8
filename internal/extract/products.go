package extract

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/shopspring/decimal"

	"github.com/commercelake/reportfeed/internal/config"
	"github.com/commercelake/reportfeed/internal/logging"
	"github.com/commercelake/reportfeed/internal/metrics"
	"github.com/commercelake/reportfeed/internal/model"
)

// ProductFetcher pulls the product catalog over HTTP with retry and
// exponential backoff. Transient failures (network errors, 5xx,
// timeouts) are retried up to the configured attempt count; 4xx
// responses and malformed bodies fail immediately.
type ProductFetcher struct {
	cfg    config.APIConfig
	client *http.Client
	log    *slog.Logger
}

func NewProductFetcher(cfg config.APIConfig) *ProductFetcher {
	return &ProductFetcher{
		cfg: cfg,
		client: &http.Client{
			Timeout: cfg.Timeout.Std(),
		},
		log: logging.Component("extract.products"),
	}
}

// apiProduct mirrors the catalog JSON shape. Pointer fields let the
// parser detect records with missing required fields.
type apiProduct struct {
	ID       *int         `json:"id"`
	Title    *string      `json:"title"`
	Price    *json.Number `json:"price"`
	Category *string      `json:"category"`
}

// Fetch issues the catalog GET, retrying transient failures. Each
// attempt is logged with its number, outcome and latency.
func (f *ProductFetcher) Fetch(ctx context.Context) ([]model.Product, error) {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = f.cfg.RetryBaseDelay.Std()
	bo.Multiplier = 2
	bo.MaxElapsedTime = 0

	policy := backoff.WithContext(
		backoff.WithMaxRetries(bo, uint64(f.cfg.RetryCount-1)), ctx)

	var products []model.Product
	attempt := 0

	op := func() error {
		attempt++
		start := time.Now()
		recs, err := f.fetchOnce(ctx)
		latency := time.Since(start)

		if err != nil {
			f.log.Warn("catalog fetch attempt failed",
				"attempt", attempt,
				"latency", latency.String(),
				"error", err,
			)
			if attempt > 1 {
				if m := metrics.Get(); m != nil {
					m.IncRetryAttempts("catalog_fetch")
				}
			}
			return err
		}

		f.log.Info("catalog fetch attempt succeeded",
			"attempt", attempt,
			"latency", latency.String(),
			"records", len(recs),
		)
		products = recs
		return nil
	}

	if err := backoff.Retry(op, policy); err != nil {
		return nil, fmt.Errorf("catalog fetch exhausted %d attempts: %w", attempt, err)
	}
	return products, nil
}

// fetchOnce performs a single GET and parses the response body.
// Non-retryable failures are wrapped in backoff.Permanent.
func (f *ProductFetcher) fetchOnce(ctx context.Context) ([]model.Product, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.cfg.URL, nil)
	if err != nil {
		return nil, backoff.Permanent(fmt.Errorf("build request: %w", err))
	}
	req.Header.Set("User-Agent", f.cfg.UserAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request %s: %w", f.cfg.URL, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 500:
		io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("server status %d", resp.StatusCode)
	case resp.StatusCode >= 400:
		io.Copy(io.Discard, resp.Body)
		return nil, backoff.Permanent(fmt.Errorf("client status %d", resp.StatusCode))
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	var raw []json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, backoff.Permanent(fmt.Errorf("decode catalog body: %w", err))
	}

	return f.parse(raw), nil
}

// parse converts raw catalog entries to products. Records that fail to
// decode or are missing required fields are dropped with a warning,
// not a hard failure; the batch-level shape was already verified.
func (f *ProductFetcher) parse(raw []json.RawMessage) []model.Product {
	products := make([]model.Product, 0, len(raw))
	dropped := 0

	for i, entry := range raw {
		var p apiProduct
		if err := json.Unmarshal(entry, &p); err != nil {
			f.log.Warn("dropping undecodable catalog record", "index", i, "error", err)
			dropped++
			continue
		}
		if p.ID == nil || p.Title == nil || p.Price == nil || p.Category == nil {
			f.log.Warn("dropping catalog record with missing fields", "index", i)
			dropped++
			continue
		}
		price, err := decimal.NewFromString(p.Price.String())
		if err != nil {
			f.log.Warn("dropping catalog record with bad price",
				"index", i, "product_id", *p.ID, "price", p.Price.String())
			dropped++
			continue
		}
		products = append(products, model.Product{
			ProductID: *p.ID,
			Name:      *p.Title,
			UnitPrice: price,
			Category:  *p.Category,
		})
	}

	if dropped > 0 {
		f.log.Warn("catalog records dropped", "dropped", dropped, "kept", len(products))
	}
	return products
}
