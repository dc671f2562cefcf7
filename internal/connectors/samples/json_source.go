package samples

import (
	"context"
	"fmt"
	"os"
	"time"

	"go-sample-plates-report/internal/platedata"
)

// JSONSource reads a dataset file in the {"plates": [...], "wells": {...}}
// shape. The file is re-read on every load.
type JSONSource struct {
	path   string
	schema platedata.Schema
}

func NewJSONSource(path string, schema platedata.Schema) *JSONSource {
	return &JSONSource{path: path, schema: schema}
}

func (j *JSONSource) Kind() string { return "json" }

func (j *JSONSource) LoadDataset(_ context.Context) (*platedata.Dataset, error) {
	f, err := os.Open(j.path)
	if err != nil {
		return nil, fmt.Errorf("open dataset: %w", err)
	}
	defer f.Close()
	return platedata.DecodeJSON(f, j.schema)
}

func (j *JSONSource) ServiceStats(ctx context.Context) (*ServiceStats, error) {
	start := time.Now()
	ds, err := j.LoadDataset(ctx)
	if err != nil {
		return nil, err
	}
	return &ServiceStats{
		Kind:     "json",
		Location: j.path,
		PingMS:   time.Since(start).Milliseconds(),
		Plates:   int64(len(ds.Plates)),
		Wells:    int64(ds.WellCount()),
		Taxa:     int64(len(ds.Taxa)),
	}, nil
}

func (j *JSONSource) Close() error { return nil }
