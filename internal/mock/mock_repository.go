// Package mock provides testify-based mocks for the repository and
// storage interfaces.
package mock

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/global-done/pkg/model"
)

// MockRunRepository is a mock implementation of the RunRepository interface.
type MockRunRepository struct {
	mock.Mock
}

// SaveRun mocks the SaveRun method.
func (m *MockRunRepository) SaveRun(ctx context.Context, rec *model.RunRecord) error {
	args := m.Called(ctx, rec)
	return args.Error(0)
}

// RunsByUUID mocks the RunsByUUID method.
func (m *MockRunRepository) RunsByUUID(ctx context.Context, runUUID string) ([]*model.RunRecord, error) {
	args := m.Called(ctx, runUUID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.RunRecord), args.Error(1)
}

// RecentRuns mocks the RecentRuns method.
func (m *MockRunRepository) RecentRuns(ctx context.Context, limit int) ([]*model.RunRecord, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.RunRecord), args.Error(1)
}

// ExpectSaveRun sets up an expectation for SaveRun with any record.
func (m *MockRunRepository) ExpectSaveRun(err error) *mock.Call {
	return m.On("SaveRun", mock.Anything, mock.Anything).Return(err)
}

// ExpectRunsByUUID sets up an expectation for RunsByUUID.
func (m *MockRunRepository) ExpectRunsByUUID(runUUID string, recs []*model.RunRecord, err error) *mock.Call {
	return m.On("RunsByUUID", mock.Anything, runUUID).Return(recs, err)
}
