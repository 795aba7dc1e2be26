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

package model

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Sync attempt statuses. An attempt row is written once, at the end of
// the step that produced it, and never mutated afterwards.
const (
	StatusPending    = "PENDING"
	StatusProcessing = "PROCESSING"
	StatusCompleted  = "COMPLETED"
	StatusFailed     = "FAILED"
	StatusSkipped    = "SKIPPED"
)

// WatermarkLatest is the bootstrap sentinel for a (site, list) pair
// that has no journaled cursor yet. A pull seeded with it asks the
// remote service for a fresh cursor without enumerating the list.
const WatermarkLatest = "latest"

// SyncAttempt is one row of the append-only checkpoint journal. The
// effective watermark for a (site, list) pair is never stored on any
// single row; it is resolved from the most recent row carrying a
// non-nil DeltaLink.
type SyncAttempt struct {
	AttemptID       string    `json:"attempt_id"`
	SiteID          string    `json:"site_id"`
	ListID          string    `json:"list_id"`
	DeltaLink       *string   `json:"delta_link"`
	Status          string    `json:"status"`
	LastError       *string   `json:"last_error"`
	SubscriptionID  string    `json:"subscription_id"`
	SuccessfulItems int       `json:"successful_items"`
	FailedItems     int       `json:"failed_items"`
	CreatedAt       time.Time `json:"created_at"`
	LastProcessedAt time.Time `json:"last_processed_at"`
}

// Artifact processing statuses.
const (
	ArtifactPending   = "PENDING"
	ArtifactProcessed = "PROCESSED"
	ArtifactFailed    = "FAILED"
)

// ArtifactRecord identifies one downloaded unit of tabular content by
// its content hash and size. The pair (ContentHash, ContentSize) is
// the dedup key; every derived business row carries a foreign key back
// to the record that produced it.
type ArtifactRecord struct {
	ArtifactID      string    `json:"artifact_id"`
	ContentHash     string    `json:"content_hash"`
	ContentSize     int64     `json:"content_size"`
	SourceItemID    string    `json:"source_item_id"`
	Status          string    `json:"status"`
	ProcessingError *string   `json:"processing_error"`
	RowCount        int       `json:"row_count"`
	AttemptID       string    `json:"attempt_id"`
	CreatedAt       time.Time `json:"created_at"`
}

// Table is one tabular section extracted from an artifact. Cells are
// raw text; the loader coerces them against the target column types.
type Table struct {
	SourceName string     `json:"source_name"`
	Columns    []string   `json:"columns"`
	Rows       [][]string `json:"rows"`
}

// GenerateUUIDWithSuffix generates a UUID and prefixes it with the
// given module tag, e.g. "atm_8f14...".
func GenerateUUIDWithSuffix(module string) string {
	id := uuid.New()
	return fmt.Sprintf("%s_%s", module, id.String())
}
