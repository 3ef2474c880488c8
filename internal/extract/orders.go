package extract

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/shopspring/decimal"

	"github.com/commercelake/reportfeed/internal/clock"
	"github.com/commercelake/reportfeed/internal/config"
	"github.com/commercelake/reportfeed/internal/logging"
	"github.com/commercelake/reportfeed/internal/model"
)

// orderIDBase is the first order ID assigned by the generator.
const orderIDBase = 101

// catalogSpan is the product ID range the generator draws from. IDs
// falling outside the fetched catalog are dropped by the inner join.
const catalogSpan = 20

// NewOrderSource creates an order source based on configuration.
func NewOrderSource(cfg config.OrdersConfig, clk clock.Clock) (OrderSource, error) {
	switch cfg.Mode {
	case "synthetic":
		return NewSyntheticSource(cfg, clk), nil
	case "csv":
		if cfg.Path == "" {
			return nil, fmt.Errorf("orders.path required for csv mode")
		}
		return NewCSVSource(cfg.Path), nil
	default:
		return nil, fmt.Errorf("unknown orders mode: %s", cfg.Mode)
	}
}

// SyntheticSource generates a fixed-size order table. With a non-zero
// seed the table is deterministic across runs. The generated table is
// also persisted as CSV so the run's input can be inspected later.
type SyntheticSource struct {
	cfg config.OrdersConfig
	clk clock.Clock
	log *slog.Logger
}

func NewSyntheticSource(cfg config.OrdersConfig, clk clock.Clock) *SyntheticSource {
	return &SyntheticSource{
		cfg: cfg,
		clk: clk,
		log: logging.Component("extract.orders"),
	}
}

// Fetch generates the order table. Fails fast on any write error since
// the destination is locally controlled.
func (s *SyntheticSource) Fetch(ctx context.Context) ([]model.Order, error) {
	start := time.Now()
	faker := gofakeit.New(s.cfg.Seed)

	now := s.clk.Now()
	yearAgo := now.AddDate(-1, 0, 0)

	orders := make([]model.Order, 0, s.cfg.Count)
	for i := 0; i < s.cfg.Count; i++ {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		amount := decimal.NewFromFloat(faker.Float64Range(50, 500)).Round(2)
		date := faker.DateRange(yearAgo, now).Truncate(24 * time.Hour)

		orders = append(orders, model.Order{
			OrderID:      orderIDBase + i,
			CustomerName: faker.Name(),
			ProductID:    faker.Number(1, catalogSpan),
			OrderAmount:  amount,
			OrderDate:    date,
		})
	}

	if s.cfg.Path != "" {
		if err := writeOrdersCSV(s.cfg.Path, orders); err != nil {
			return nil, fmt.Errorf("persist generated orders: %w", err)
		}
	}

	s.log.Info("order generation complete",
		"records", len(orders),
		"seed", s.cfg.Seed,
		"duration", time.Since(start).String(),
	)
	return orders, nil
}

// CSVSource reads orders from a local CSV file. The source is locally
// controlled, so malformed data fails fast with no retry.
type CSVSource struct {
	path string
	log  *slog.Logger
}

func NewCSVSource(path string) *CSVSource {
	return &CSVSource{path: path, log: logging.Component("extract.orders")}
}

// requiredOrderColumns are the columns the tabular source must carry.
// product_id is accepted when present; absent values join to nothing
// and fall out at the transform stage.
var requiredOrderColumns = []string{"order_id", "customer_name", "order_amount", "order_date"}

func (s *CSVSource) Fetch(ctx context.Context) ([]model.Order, error) {
	start := time.Now()

	f, err := os.Open(s.path)
	if err != nil {
		return nil, fmt.Errorf("open orders file: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("read orders header: %w", err)
	}

	cols := make(map[string]int, len(header))
	for i, name := range header {
		cols[name] = i
	}
	for _, name := range requiredOrderColumns {
		if _, ok := cols[name]; !ok {
			return nil, fmt.Errorf("orders file missing column %q", name)
		}
	}

	var orders []model.Order
	line := 1
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		row, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read orders file: %w", err)
		}
		line++

		order, err := parseOrderRow(row, cols)
		if err != nil {
			return nil, fmt.Errorf("orders file line %d: %w", line, err)
		}
		orders = append(orders, order)
	}

	s.log.Info("order extraction complete",
		"path", s.path,
		"records", len(orders),
		"duration", time.Since(start).String(),
	)
	return orders, nil
}

func parseOrderRow(row []string, cols map[string]int) (model.Order, error) {
	field := func(name string) string {
		idx := cols[name]
		if idx >= len(row) {
			return ""
		}
		return row[idx]
	}

	orderID, err := strconv.Atoi(field("order_id"))
	if err != nil {
		return model.Order{}, fmt.Errorf("order_id: %w", err)
	}
	amount, err := decimal.NewFromString(field("order_amount"))
	if err != nil {
		return model.Order{}, fmt.Errorf("order_amount: %w", err)
	}
	date, err := time.Parse(config.DateFormat, field("order_date"))
	if err != nil {
		return model.Order{}, fmt.Errorf("order_date: %w", err)
	}

	productID := 0
	if idx, ok := cols["product_id"]; ok && idx < len(row) && row[idx] != "" {
		productID, err = strconv.Atoi(row[idx])
		if err != nil {
			return model.Order{}, fmt.Errorf("product_id: %w", err)
		}
	}

	return model.Order{
		OrderID:      orderID,
		CustomerName: field("customer_name"),
		ProductID:    productID,
		OrderAmount:  amount,
		OrderDate:    date,
	}, nil
}

// writeOrdersCSV persists generated orders for later inspection.
func writeOrdersCSV(path string, orders []model.Order) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write([]string{"order_id", "customer_name", "product_id", "order_amount", "order_date"}); err != nil {
		return err
	}
	for _, o := range orders {
		rec := []string{
			strconv.Itoa(o.OrderID),
			o.CustomerName,
			strconv.Itoa(o.ProductID),
			o.OrderAmount.StringFixed(2),
			o.OrderDate.Format(config.DateFormat),
		}
		if err := w.Write(rec); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}
