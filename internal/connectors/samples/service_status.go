package samples

import (
	"context"
	"fmt"
	"time"
)

// ServiceStats contains lightweight source health and volume counters.
type ServiceStats struct {
	Kind     string `json:"kind"`
	Location string `json:"location,omitempty"`
	PingMS   int64  `json:"ping_ms"`
	Plates   int64  `json:"plates"`
	Wells    int64  `json:"wells"`
	Taxa     int64  `json:"taxa"`
}

// ServiceStats returns database health and row counts.
func (s *Store) ServiceStats(ctx context.Context) (*ServiceStats, error) {
	ctx, cancel := context.WithTimeout(ctx, s.queryTimeout)
	defer cancel()

	start := time.Now()
	if err := s.db.PingContext(ctx); err != nil {
		return nil, err
	}

	out := &ServiceStats{
		Kind:     s.dialect.name,
		Location: s.location,
		PingMS:   time.Since(start).Milliseconds(),
	}
	counts := []struct {
		table string
		dst   *int64
	}{
		{"sample_plates", &out.Plates},
		{"sample_wells", &out.Wells},
		{"taxonomy", &out.Taxa},
	}
	for _, c := range counts {
		if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM `+c.table).Scan(c.dst); err != nil {
			return nil, fmt.Errorf("count %s: %w", c.table, err)
		}
	}
	return out, nil
}
