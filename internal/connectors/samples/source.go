package samples

import (
	"context"

	"go-sample-plates-report/internal/config"
	"go-sample-plates-report/internal/platedata"
)

// Source is anything a report dataset can be loaded from.
type Source interface {
	Kind() string
	LoadDataset(ctx context.Context) (*platedata.Dataset, error)
	ServiceStats(ctx context.Context) (*ServiceStats, error)
	Close() error
}

// OpenSource returns the JSON file source or a SQL store, as configured.
// The schema maps field names of a JSON file; SQL columns are fixed.
func OpenSource(cfg config.Config, schema platedata.Schema) (Source, error) {
	if cfg.DataSource == config.SourceJSON {
		return NewJSONSource(cfg.JSONPath, schema), nil
	}
	return Open(cfg)
}
