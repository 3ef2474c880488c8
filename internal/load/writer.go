package load

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"log/slog"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/parquet-go/parquet-go"

	"github.com/commercelake/reportfeed/internal/config"
	"github.com/commercelake/reportfeed/internal/logging"
	"github.com/commercelake/reportfeed/internal/metrics"
	"github.com/commercelake/reportfeed/internal/model"
)

// Error is a fatal load failure: the destination is unwritable or the
// snapshot could not be encoded.
type Error struct {
	Path string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("load %s: %v", e.Path, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// WriteResult describes a published snapshot.
type WriteResult struct {
	RowCount int
	Path     string
	Checksum string
	ByteSize int64
}

// Loader encodes validated records and publishes the snapshot.
type Loader struct {
	cfg   config.OutputConfig
	store Store
	log   *slog.Logger
}

func New(cfg config.OutputConfig, store Store) *Loader {
	return &Loader{
		cfg:   cfg,
		store: store,
		log:   logging.Component("load"),
	}
}

// Load writes the records as a complete snapshot at the configured
// path, overwriting any previous run's output. Encoding happens fully
// in memory before anything touches the destination.
func (l *Loader) Load(ctx context.Context, records []model.EnrichedRecord) (WriteResult, error) {
	start := time.Now()

	payload, key, err := l.encode(records)
	if err != nil {
		return WriteResult{}, &Error{Path: l.cfg.Path, Err: err}
	}

	if err := l.store.Write(ctx, key, payload); err != nil {
		return WriteResult{}, &Error{Path: key, Err: err}
	}

	result := WriteResult{
		RowCount: len(records),
		Path:     l.store.URI(key),
		Checksum: ComputeChecksum(payload),
		ByteSize: int64(len(payload)),
	}

	l.log.Info("snapshot published",
		"path", result.Path,
		"rows", result.RowCount,
		"bytes", result.ByteSize,
		"checksum", result.Checksum,
		"format", l.cfg.Format,
		"duration", time.Since(start).String(),
	)
	if m := metrics.Get(); m != nil {
		m.AddRowsLoaded(float64(result.RowCount))
		m.SetSnapshotBytes(float64(result.ByteSize))
		m.ObserveStageDuration("load", time.Since(start).Seconds())
	}

	return result, nil
}

// encode renders the records in the configured format and returns the
// payload plus the output key (path with any compression extension).
func (l *Loader) encode(records []model.EnrichedRecord) ([]byte, string, error) {
	switch l.cfg.Format {
	case "parquet":
		data, err := encodeParquet(records)
		return data, l.cfg.Path, err
	default:
		data, err := encodeCSV(records)
		if err != nil {
			return nil, "", err
		}
		return compress(data, l.cfg.Compression, l.cfg.Path)
	}
}

// encodeCSV renders the fixed 13-column report with a header row,
// UTF-8 encoded.
func encodeCSV(records []model.EnrichedRecord) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	if err := w.Write(model.ReportColumns); err != nil {
		return nil, fmt.Errorf("write header: %w", err)
	}
	for _, rec := range records {
		if err := w.Write(rec.Fields()); err != nil {
			return nil, fmt.Errorf("write row order_id=%d: %w", rec.OrderID, err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("flush csv: %w", err)
	}
	return buf.Bytes(), nil
}

// encodeParquet renders the same schema as a parquet file with snappy
// compression.
func encodeParquet(records []model.EnrichedRecord) ([]byte, error) {
	rows := make([]model.ReportRow, len(records))
	for i, rec := range records {
		rows[i] = rec.Row()
	}

	var buf bytes.Buffer
	w := parquet.NewGenericWriter[model.ReportRow](&buf, parquet.Compression(&parquet.Snappy))
	if _, err := w.Write(rows); err != nil {
		return nil, fmt.Errorf("write parquet rows: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("close parquet writer: %w", err)
	}
	return buf.Bytes(), nil
}

// compress applies the configured compression to the payload and
// adjusts the output key's extension to match.
func compress(data []byte, codec, key string) ([]byte, string, error) {
	switch codec {
	case "", "none":
		return data, key, nil
	case "gzip":
		var buf bytes.Buffer
		gw := gzip.NewWriter(&buf)
		if _, err := gw.Write(data); err != nil {
			return nil, "", fmt.Errorf("gzip: %w", err)
		}
		if err := gw.Close(); err != nil {
			return nil, "", fmt.Errorf("gzip close: %w", err)
		}
		return buf.Bytes(), key + ".gz", nil
	case "zstd":
		var buf bytes.Buffer
		zw, err := zstd.NewWriter(&buf)
		if err != nil {
			return nil, "", fmt.Errorf("zstd writer: %w", err)
		}
		if _, err := zw.Write(data); err != nil {
			zw.Close()
			return nil, "", fmt.Errorf("zstd: %w", err)
		}
		if err := zw.Close(); err != nil {
			return nil, "", fmt.Errorf("zstd close: %w", err)
		}
		return buf.Bytes(), key + ".zst", nil
	default:
		return nil, "", fmt.Errorf("unknown compression %q", codec)
	}
}
