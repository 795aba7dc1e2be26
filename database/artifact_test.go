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
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/listmirror/listmirror/mapping"
	"github.com/listmirror/listmirror/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRegistry(t *testing.T) *mapping.Registry {
	t.Helper()
	registry, err := mapping.NewRegistry([]mapping.TargetConfig{{
		SourceName: "orders.csv",
		Schema:     "reporting",
		Table:      "orders",
		Columns: []mapping.ColumnSpec{
			{Source: "Order Number", Target: "order_number", Type: mapping.TypeText},
			{Source: "Amount", Target: "amount", Type: mapping.TypeDecimal},
		},
	}})
	require.NoError(t, err)
	return registry
}

func TestGetArtifactByHashAndSize(t *testing.T) {
	ds, mock := newTestDatasource(t)

	now := time.Now()
	mock.ExpectQuery("SELECT artifact_id, content_hash").
		WithArgs("abc123", int64(2048)).
		WillReturnRows(sqlmock.NewRows([]string{
			"artifact_id", "content_hash", "content_size", "source_item_id", "status",
			"processing_error", "row_count", "attempt_id", "created_at",
		}).AddRow("art_1", "abc123", int64(2048), "item-1", model.ArtifactProcessed, nil, 12, "atm_1", now))

	record, err := ds.GetArtifactByHashAndSize(context.Background(), "abc123", 2048)
	require.NoError(t, err)
	require.NotNil(t, record)
	assert.Equal(t, "art_1", record.ArtifactID)
	assert.Equal(t, model.ArtifactProcessed, record.Status)
	assert.Equal(t, "atm_1", record.AttemptID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetArtifactByHashAndSize_UnknownContent(t *testing.T) {
	ds, mock := newTestDatasource(t)

	mock.ExpectQuery("SELECT artifact_id, content_hash").
		WithArgs("unknown", int64(1)).
		WillReturnRows(sqlmock.NewRows([]string{
			"artifact_id", "content_hash", "content_size", "source_item_id", "status",
			"processing_error", "row_count", "attempt_id", "created_at",
		}))

	record, err := ds.GetArtifactByHashAndSize(context.Background(), "unknown", 1)
	assert.NoError(t, err)
	assert.Nil(t, record)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestIngestArtifact_LoadsTablesInOneTransaction(t *testing.T) {
	ds, mock := newTestDatasource(t)
	ds.Registry = testRegistry(t)

	record := &model.ArtifactRecord{
		ArtifactID:   "art_1",
		ContentHash:  "abc123",
		ContentSize:  64,
		SourceItemID: "item-1",
		AttemptID:    "atm_1",
	}
	tables := []model.Table{{
		SourceName: "orders.csv",
		Columns:    []string{"Order Number", "Amount"},
		Rows:       [][]string{{"ord-1", "19.99"}, {"ord-2", "5.00"}},
	}}

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM listmirror.artifacts").
		WithArgs("abc123", int64(64)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("INSERT INTO listmirror.artifacts").
		WillReturnResult(sqlmock.NewResult(1, 1))
	stmt := mock.ExpectPrepare(`COPY "reporting"\."orders"`)
	stmt.ExpectExec().WithArgs("ord-1", "19.99", "art_1").WillReturnResult(sqlmock.NewResult(0, 1))
	stmt.ExpectExec().WithArgs("ord-2", "5.00", "art_1").WillReturnResult(sqlmock.NewResult(0, 1))
	stmt.ExpectExec().WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("UPDATE listmirror.artifacts").
		WithArgs(model.ArtifactProcessed, 2, "art_1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	ingested, err := ds.IngestArtifact(context.Background(), record, tables)
	require.NoError(t, err)
	assert.Equal(t, model.ArtifactProcessed, ingested.Status)
	assert.Equal(t, 2, ingested.RowCount)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestIngestArtifact_UnroutableTableRollsBack(t *testing.T) {
	ds, mock := newTestDatasource(t)
	ds.Registry = testRegistry(t)

	record := &model.ArtifactRecord{ArtifactID: "art_1", ContentHash: "abc123", ContentSize: 64}
	tables := []model.Table{{
		SourceName: "mystery.csv",
		Columns:    []string{"Unknown Header"},
		Rows:       [][]string{{"x"}},
	}}

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM listmirror.artifacts").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("INSERT INTO listmirror.artifacts").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectRollback()

	_, err := ds.IngestArtifact(context.Background(), record, tables)
	require.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestIngestArtifact_EmptyTablesStillRecords(t *testing.T) {
	ds, mock := newTestDatasource(t)
	ds.Registry = testRegistry(t)

	record := &model.ArtifactRecord{ArtifactID: "art_1", ContentHash: "abc123", ContentSize: 10}

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM listmirror.artifacts").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("INSERT INTO listmirror.artifacts").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("UPDATE listmirror.artifacts").
		WithArgs(model.ArtifactProcessed, 0, "art_1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	ingested, err := ds.IngestArtifact(context.Background(), record, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, ingested.RowCount)
	assert.NoError(t, mock.ExpectationsWereMet())
}
