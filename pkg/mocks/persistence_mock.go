package mocks

import (
	"context"

	"github.com/dukex/reportgen/pkg/models"
	"github.com/dukex/reportgen/pkg/persistence"
	"github.com/stretchr/testify/mock"
)

// MockReportRepository is a mock implementation of persistence.ReportRepository interface.
type MockReportRepository struct {
	mock.Mock
}

var _ persistence.ReportRepository = (*MockReportRepository)(nil)

func (m *MockReportRepository) Create(ctx context.Context, report *models.Report) error {
	args := m.Called(ctx, report)

	return args.Error(0)
}

func (m *MockReportRepository) ByID(ctx context.Context, id string) (*models.Report, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*models.Report), args.Error(1)
}

func (m *MockReportRepository) ByHashID(ctx context.Context, hashID string) (*models.Report, error) {
	args := m.Called(ctx, hashID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*models.Report), args.Error(1)
}

func (m *MockReportRepository) Save(ctx context.Context, report *models.Report) error {
	args := m.Called(ctx, report)

	return args.Error(0)
}
