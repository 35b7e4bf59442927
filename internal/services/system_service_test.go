package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/kumarpun/fit-theory-sub000/internal/domain"
)

type stubHealthRepository struct {
	report domain.SystemHealthReport
	err    error
}

func (s stubHealthRepository) Collect(context.Context) (domain.SystemHealthReport, error) {
	return s.report, s.err
}

func TestSystemServiceHealthReport(t *testing.T) {
	now := time.Date(2025, 5, 1, 0, 0, 0, 0, time.FixedZone("NPT", 5*3600+45*60))
	cases := []struct {
		name   string
		checks map[string]domain.SystemHealthCheck
		want   domain.HealthStatus
	}{
		{name: "no checks", want: domain.HealthStatusOK},
		{name: "all ok", checks: map[string]domain.SystemHealthCheck{"database": {Status: domain.HealthStatusOK}}, want: domain.HealthStatusOK},
		{name: "degraded", checks: map[string]domain.SystemHealthCheck{
			"database": {Status: domain.HealthStatusOK},
			"redis":    {Status: domain.HealthStatusDegraded},
		}, want: domain.HealthStatusDegraded},
		{name: "error wins", checks: map[string]domain.SystemHealthCheck{
			"database": {Status: domain.HealthStatusError},
			"redis":    {Status: domain.HealthStatusDegraded},
		}, want: domain.HealthStatusError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc, err := NewSystemService(SystemServiceDeps{
				HealthRepository: stubHealthRepository{report: domain.SystemHealthReport{Checks: tc.checks}},
				Clock:            func() time.Time { return now },
			})
			if err != nil {
				t.Fatalf("new system service: %v", err)
			}
			report, err := svc.HealthReport(context.Background())
			if err != nil {
				t.Fatalf("health report: %v", err)
			}
			if report.Status != tc.want {
				t.Fatalf("expected %s, got %s", tc.want, report.Status)
			}
			if report.Checks == nil {
				t.Fatalf("expected non-nil checks")
			}
			if !report.GeneratedAt.Equal(now) || report.GeneratedAt.Location() != time.UTC {
				t.Fatalf("expected UTC timestamp, got %s", report.GeneratedAt)
			}
		})
	}
}

func TestSystemServicePropagatesCollectError(t *testing.T) {
	boom := errors.New("boom")
	svc, err := NewSystemService(SystemServiceDeps{HealthRepository: stubHealthRepository{err: boom}})
	if err != nil {
		t.Fatalf("new system service: %v", err)
	}
	if _, err := svc.HealthReport(context.Background()); !errors.Is(err, boom) {
		t.Fatalf("expected collect error, got %v", err)
	}
	if _, err := NewSystemService(SystemServiceDeps{}); err == nil {
		t.Fatalf("expected missing repository to fail")
	}
}
