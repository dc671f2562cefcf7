package publish

import (
	"context"
	"fmt"
	"time"

	"go-sample-plates-report/internal/config"
)

// ReportBaseName prefixes every published report.
const ReportBaseName = "sample_plates_report"

// Content types of the published artifacts.
const (
	ContentTypeHTML = "text/html; charset=utf-8"
	ContentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// ReportName returns the dated file name for a report, e.g.
// sample_plates_report_2026-10-19.xlsx.
func ReportName(now time.Time, ext string) string {
	return fmt.Sprintf("%s_%s.%s", ReportBaseName, now.Format("2006-01-02"), ext)
}

// Artifact is one rendered report file.
type Artifact struct {
	Name        string
	ContentType string
	Data        []byte
}

// Publisher stores an artifact somewhere and reports where it went.
type Publisher interface {
	Publish(ctx context.Context, a Artifact) (string, error)
}

// FromConfig returns the local output directory publisher, followed by the
// S3 publisher when it is enabled.
func FromConfig(ctx context.Context, cfg config.Config) ([]Publisher, error) {
	out := []Publisher{NewLocalDir(cfg.OutputDir)}
	if !cfg.S3Enabled {
		return out, nil
	}
	s3p, err := NewS3(ctx, S3Config{
		Bucket:          cfg.S3Bucket,
		Prefix:          cfg.S3Prefix,
		Region:          cfg.S3Region,
		Endpoint:        cfg.S3Endpoint,
		PathStyle:       cfg.S3PathStyle,
		AccessKeyID:     cfg.S3AccessKey,
		SecretAccessKey: cfg.S3SecretKey,
	})
	if err != nil {
		return nil, err
	}
	return append(out, s3p), nil
}

// All publishes an artifact with every publisher and returns the locations
// in the same order. It stops at the first failure.
func All(ctx context.Context, pubs []Publisher, a Artifact) ([]string, error) {
	locations := make([]string, 0, len(pubs))
	for _, p := range pubs {
		loc, err := p.Publish(ctx, a)
		if err != nil {
			return locations, fmt.Errorf("publish %s: %w", a.Name, err)
		}
		locations = append(locations, loc)
	}
	return locations, nil
}
