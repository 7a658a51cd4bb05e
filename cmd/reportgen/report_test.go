package main

import (
	"context"
	"testing"
	"time"

	"github.com/dukex/reportgen/pkg/models"
	"github.com/dukex/reportgen/pkg/persistence/file"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseArgs(t *testing.T) {
	args, err := parseArgs(`{"name": "Ava", "year": 2024, "ratio": 0.5}`, []string{"name=Bo", "note=a=b"})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"name": "Bo", "year": int64(2024), "ratio": 0.5, "note": "a=b"}, args)

	_, err = parseArgs("", []string{"novalue"})
	require.Error(t, err)

	_, err = parseArgs("[1]", nil)
	require.Error(t, err)

	args, err = parseArgs("", nil)
	require.NoError(t, err)
	assert.Empty(t, args)
}

func TestWaitForReport(t *testing.T) {
	ctx := context.Background()
	reports := file.NewReportRepository(t.TempDir())

	report := models.NewReport("hello_simple", nil)
	require.NoError(t, reports.Create(ctx, report))

	_, err := waitForReport(ctx, reports, report.ID, 50*time.Millisecond)
	require.ErrorIs(t, err, context.DeadlineExceeded)

	report.Status = models.ReportStatusGenerated
	require.NoError(t, reports.Save(ctx, report))

	settled, err := waitForReport(ctx, reports, report.ID, time.Second)
	require.NoError(t, err)
	assert.Equal(t, models.ReportStatusGenerated, settled.Status)
}
