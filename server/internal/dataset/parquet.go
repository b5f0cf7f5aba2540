package dataset

import (
	"errors"
	"fmt"
	"io"

	"github.com/parquet-go/parquet-go"
)

// parquetBatch is the number of rows decoded per read.
const parquetBatch = 1024

// parquetRow is the canonical columnar schema.
type parquetRow struct {
	Region    string  `parquet:"region"`
	LatencyMs float64 `parquet:"latency_ms,optional"`
	UptimePct float64 `parquet:"uptime_pct,optional"`
}

// decodeParquet reads every row of a Parquet file.
func decodeParquet(r io.ReaderAt, size int64) ([]Record, error) {
	file, err := parquet.OpenFile(r, size)
	if err != nil {
		return nil, fmt.Errorf("dataset: open parquet: %w", err)
	}

	reader := parquet.NewGenericReader[parquetRow](file)
	defer reader.Close()

	out := make([]Record, 0, reader.NumRows())
	rows := make([]parquetRow, parquetBatch)
	for int64(len(out)) < reader.NumRows() {
		n, err := reader.Read(rows)
		for _, row := range rows[:n] {
			out = append(out, Record{Region: row.Region, LatencyMs: row.LatencyMs, UptimePct: row.UptimePct})
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("dataset: read parquet: %w", err)
		}
		if n == 0 {
			break
		}
	}
	return out, nil
}
