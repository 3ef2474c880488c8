// Package model defines the record types that flow between pipeline
// stages and the fixed report schema.
package model

import (
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

// Product is a catalog record fetched from the remote API.
// Immutable once fetched.
type Product struct {
	ProductID int
	Name      string
	UnitPrice decimal.Decimal
	Category  string
}

// Order is a customer order read from the tabular source.
type Order struct {
	OrderID      int
	CustomerName string
	ProductID    int
	OrderAmount  decimal.Decimal
	OrderDate    time.Time
}

// EnrichedRecord is one order joined to its product plus derived
// fields. This is the unit the validator and loader operate on.
type EnrichedRecord struct {
	OrderID         int
	CustomerName    string
	OrderAmount     decimal.Decimal
	OrderDate       time.Time
	OrderYear       int
	ProductID       int
	ProductName     string
	UnitPrice       decimal.Decimal
	ProductCategory string
	PriceWithTax    decimal.Decimal
	TotalOrderValue decimal.Decimal
	Source          string
	LoadTimestamp   time.Time
}

// ReportColumns is the exact header of the output snapshot, in order.
var ReportColumns = []string{
	"order_id",
	"customer_name",
	"order_amount",
	"order_date",
	"order_year",
	"product_id",
	"product_name",
	"unit_price",
	"product_category",
	"price_with_tax",
	"total_order_value",
	"source",
	"load_timestamp",
}

// ReportRow is the flat row shape used by the parquet writer. Money
// fields are serialized as fixed 2-dp strings to match the CSV output.
type ReportRow struct {
	OrderID         int64  `parquet:"order_id"`
	CustomerName    string `parquet:"customer_name"`
	OrderAmount     string `parquet:"order_amount"`
	OrderDate       string `parquet:"order_date"`
	OrderYear       int32  `parquet:"order_year"`
	ProductID       int64  `parquet:"product_id"`
	ProductName     string `parquet:"product_name"`
	UnitPrice       string `parquet:"unit_price"`
	ProductCategory string `parquet:"product_category"`
	PriceWithTax    string `parquet:"price_with_tax"`
	TotalOrderValue string `parquet:"total_order_value"`
	Source          string `parquet:"source"`
	LoadTimestamp   string `parquet:"load_timestamp"`
}

// DateFormat is the layout for order_date values in the report.
const DateFormat = "2006-01-02"

// TimestampFormat is the layout for load_timestamp values.
const TimestampFormat = time.RFC3339

// Fields returns the record flattened into report column order.
func (r EnrichedRecord) Fields() []string {
	return []string{
		strconv.Itoa(r.OrderID),
		r.CustomerName,
		r.OrderAmount.StringFixed(2),
		r.OrderDate.Format(DateFormat),
		strconv.Itoa(r.OrderYear),
		strconv.Itoa(r.ProductID),
		r.ProductName,
		r.UnitPrice.StringFixed(2),
		r.ProductCategory,
		r.PriceWithTax.StringFixed(2),
		r.TotalOrderValue.StringFixed(2),
		r.Source,
		r.LoadTimestamp.Format(TimestampFormat),
	}
}

// Row returns the record as a typed report row.
func (r EnrichedRecord) Row() ReportRow {
	return ReportRow{
		OrderID:         int64(r.OrderID),
		CustomerName:    r.CustomerName,
		OrderAmount:     r.OrderAmount.StringFixed(2),
		OrderDate:       r.OrderDate.Format(DateFormat),
		OrderYear:       int32(r.OrderYear),
		ProductID:       int64(r.ProductID),
		ProductName:     r.ProductName,
		UnitPrice:       r.UnitPrice.StringFixed(2),
		ProductCategory: r.ProductCategory,
		PriceWithTax:    r.PriceWithTax.StringFixed(2),
		TotalOrderValue: r.TotalOrderValue.StringFixed(2),
		Source:          r.Source,
		LoadTimestamp:   r.LoadTimestamp.Format(TimestampFormat),
	}
}
