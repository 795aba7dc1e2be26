/*
Copyright 2025 Listmirror Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/
package mocks

import (
	"context"

	"github.com/listmirror/listmirror/model"
	"github.com/stretchr/testify/mock"
)

// MockDataSource is a mock implementation of the IDataSource interface
type MockDataSource struct {
	mock.Mock
}

// Journal methods

func (m *MockDataSource) RecordSyncAttempt(ctx context.Context, attempt *model.SyncAttempt) (*model.SyncAttempt, error) {
	args := m.Called(ctx, attempt)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.SyncAttempt), args.Error(1)
}

func (m *MockDataSource) CurrentWatermark(ctx context.Context, siteID, listID string) (string, error) {
	args := m.Called(ctx, siteID, listID)
	return args.String(0), args.Error(1)
}

func (m *MockDataSource) GetSyncAttempts(ctx context.Context, siteID, listID string, limit, offset int) ([]model.SyncAttempt, error) {
	args := m.Called(ctx, siteID, listID, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.SyncAttempt), args.Error(1)
}

// Artifact methods

func (m *MockDataSource) GetArtifactByHashAndSize(ctx context.Context, hash string, size int64) (*model.ArtifactRecord, error) {
	args := m.Called(ctx, hash, size)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.ArtifactRecord), args.Error(1)
}

func (m *MockDataSource) IngestArtifact(ctx context.Context, record *model.ArtifactRecord, tables []model.Table) (*model.ArtifactRecord, error) {
	args := m.Called(ctx, record, tables)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.ArtifactRecord), args.Error(1)
}
