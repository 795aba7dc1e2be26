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

package database

import (
	"context"

	"github.com/listmirror/listmirror/model"
)

// IDataSource defines the interface for data source operations, grouping related functionalities.
type IDataSource interface {
	journal  // Interface for checkpoint journal operations
	artifact // Interface for artifact dedup and ingestion operations
}

// journal defines methods for the append-only checkpoint journal.
type journal interface {
	RecordSyncAttempt(ctx context.Context, attempt *model.SyncAttempt) (*model.SyncAttempt, error) // Inserts a finished attempt row
	CurrentWatermark(ctx context.Context, siteID, listID string) (string, error)                   // Resolves the effective delta cursor for a (site, list) pair
	GetSyncAttempts(ctx context.Context, siteID, listID string, limit, offset int) ([]model.SyncAttempt, error)
}

// artifact defines methods for the dedup store and the transactional load path.
type artifact interface {
	GetArtifactByHashAndSize(ctx context.Context, hash string, size int64) (*model.ArtifactRecord, error) // Dedup lookup; nil when unknown
	IngestArtifact(ctx context.Context, record *model.ArtifactRecord, tables []model.Table) (*model.ArtifactRecord, error)
}
