package main

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/bft-labs/trackship/internal/domain"
)

func TestExitCode(t *testing.T) {
	tests := []struct {
		outcome domain.Outcome
		want    int
	}{
		{domain.OutcomeSuccess, 0},
		{domain.OutcomeRetry, 75},
		{domain.OutcomeFailure, 1},
	}
	for _, tt := range tests {
		if got := exitCode(tt.outcome); got != tt.want {
			t.Errorf("exitCode(%v) = %d, want %d", tt.outcome, got, tt.want)
		}
	}
}

func TestPrintSamples(t *testing.T) {
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	samples := []domain.Sample{
		{ID: 2, Latitude: 51.5074, Longitude: -0.1278, CapturedAt: now.Add(-2 * time.Minute).UnixMilli()},
		{ID: 1, Latitude: 51.5, Longitude: -0.12, CapturedAt: now.Add(-3 * time.Hour).UnixMilli(), Synced: true},
	}

	var buf bytes.Buffer
	if err := printSamples(&buf, samples, now); err != nil {
		t.Fatal(err)
	}
	out := buf.String()

	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 3 {
		t.Fatalf("got %d lines:\n%s", len(lines), out)
	}
	if !strings.Contains(lines[1], "2 minutes ago") || !strings.HasSuffix(strings.TrimSpace(lines[1]), "-") {
		t.Errorf("first row = %q", lines[1])
	}
	if !strings.Contains(lines[2], "3 hours ago") || !strings.HasSuffix(strings.TrimSpace(lines[2]), "yes") {
		t.Errorf("second row = %q", lines[2])
	}
	if !strings.Contains(lines[1], "-0.127800") {
		t.Errorf("longitude not printed with sign: %q", lines[1])
	}
}

func TestPrintSamples_Empty(t *testing.T) {
	var buf bytes.Buffer
	if err := printSamples(&buf, nil, time.Now()); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "no samples") {
		t.Errorf("output = %q", buf.String())
	}
}

func TestPrintStatus(t *testing.T) {
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	last := &domain.CycleReport{
		StartedAt:  now.Add(-time.Minute - 2*time.Second),
		FinishedAt: now.Add(-time.Minute),
		Outcome:    domain.OutcomeRetry,
		Stage:      domain.StageUploading,
		Uploaded:   4,
		Err:        "collector returned 503",
	}

	var buf bytes.Buffer
	printStatus(&buf, "dev-1", 1200, 3, last, now)
	out := buf.String()

	for _, want := range []string{"dev-1", "1,200 total", "3 waiting", "retry", "1 minute ago", "4 uploaded", "collector returned 503"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}
