package file

import (
	"context"
	"testing"

	"github.com/dukex/reportgen/pkg/models"
	"github.com/dukex/reportgen/pkg/persistence"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReportRepository_Lifecycle(t *testing.T) {
	tempDir := t.TempDir()
	p := NewPersistence("file://" + tempDir)
	ctx := context.Background()

	require.NoError(t, p.HealthCheck(ctx))

	repo := p.Reports()
	report := models.NewReport("hello_simple", map[string]any{"name": "Ava"})

	require.NoError(t, repo.Create(ctx, report))

	found, err := repo.ByID(ctx, report.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ReportStatusPending, found.Status)
	assert.Equal(t, "Ava", found.InputArgs["name"])

	byHash, err := repo.ByHashID(ctx, report.HashID)
	require.NoError(t, err)
	assert.Equal(t, report.ID, byHash.ID)

	found.Status = models.ReportStatusFailed
	found.OutputContent = `{"message":"x"}`
	require.NoError(t, repo.Save(ctx, found))

	updated, err := repo.ByID(ctx, report.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ReportStatusFailed, updated.Status)
	assert.Equal(t, `{"message":"x"}`, updated.OutputContent)
}

func TestReportRepository_Errors(t *testing.T) {
	repo := NewReportRepository(t.TempDir())
	ctx := context.Background()

	_, err := repo.ByID(ctx, "missing")
	assert.True(t, persistence.IsReportNotFound(err))

	_, err = repo.ByHashID(ctx, "missing")
	assert.True(t, persistence.IsReportNotFound(err))

	err = repo.Save(ctx, models.NewReport("hello_simple", nil))
	assert.True(t, persistence.IsReportNotFound(err))

	report := models.NewReport("hello_simple", nil)
	require.NoError(t, repo.Create(ctx, report))
	assert.ErrorIs(t, repo.Create(ctx, report), persistence.ErrReportAlreadyExists)
}

func TestReportRepository_PathTraversal(t *testing.T) {
	repo := NewReportRepository(t.TempDir())
	ctx := context.Background()

	for _, id := range []string{"../escape", "a/b", `a\b`, ""} {
		err := repo.Create(ctx, &models.Report{ID: id})
		assert.ErrorIs(t, err, persistence.ErrInvalidReportID, id)

		_, err = repo.ByID(ctx, id)
		assert.True(t, persistence.IsReportNotFound(err), id)
	}
}
