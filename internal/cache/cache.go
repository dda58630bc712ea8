package cache

import (
	"context"
	"time"

	"github.com/onecoderchamps/kasir-app/internal/report"
)

type ReportCache interface {
	Get(ctx context.Context, key string) (*report.Table, bool, error)
	Set(ctx context.Context, key string, value *report.Table, ttl time.Duration) error
}

type NoopReportCache struct{}

func (NoopReportCache) Get(_ context.Context, _ string) (*report.Table, bool, error) {
	return nil, false, nil
}

func (NoopReportCache) Set(_ context.Context, _ string, _ *report.Table, _ time.Duration) error {
	return nil
}
