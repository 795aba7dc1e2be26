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
	"testing"
	"time"

	"github.com/listmirror/listmirror/mapping"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitQualifiedTarget(t *testing.T) {
	schema, table, err := SplitQualifiedTarget("reporting.orders")
	require.NoError(t, err)
	assert.Equal(t, "reporting", schema)
	assert.Equal(t, "orders", table)

	schema, table, err = SplitQualifiedTarget("orders")
	require.NoError(t, err)
	assert.Empty(t, schema)
	assert.Equal(t, "orders", table)
}

func TestSplitQualifiedTarget_RejectsMalformedIdentifiers(t *testing.T) {
	for _, target := range []string{"a.b.c", ".orders", "reporting.", ".", " .orders"} {
		_, _, err := SplitQualifiedTarget(target)
		assert.Error(t, err, "target %q should be rejected", target)
	}
}

func TestTranslateColumns_DropsSystemColumnsKeepsPositions(t *testing.T) {
	target := &mapping.TargetConfig{
		SourceName: "orders.csv",
		Table:      "orders",
		Columns: []mapping.ColumnSpec{
			{Source: "Order Number", Target: "order_number", Type: mapping.TypeText},
			{Source: "Amount", Target: "amount", Type: mapping.TypeDecimal},
		},
	}

	specs, positions, err := translateColumns(target, []string{"ID", "Order Number", "Modified", "Amount"})
	require.NoError(t, err)
	require.Len(t, specs, 2)
	assert.Equal(t, "order_number", specs[0].Target)
	assert.Equal(t, "amount", specs[1].Target)
	assert.Equal(t, []int{1, 3}, positions)
}

func TestTranslateColumns_UnmappedHeaderIsHardError(t *testing.T) {
	target := &mapping.TargetConfig{
		SourceName: "orders.csv",
		Table:      "orders",
		Columns: []mapping.ColumnSpec{
			{Source: "Order Number", Target: "order_number", Type: mapping.TypeText},
		},
	}

	_, _, err := translateColumns(target, []string{"Order Number", "Surprise"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Surprise")
}

func TestCoerceCell(t *testing.T) {
	intSpec := mapping.ColumnSpec{Target: "qty", Type: mapping.TypeInteger}
	decSpec := mapping.ColumnSpec{Target: "amount", Type: mapping.TypeDecimal}
	boolSpec := mapping.ColumnSpec{Target: "active", Type: mapping.TypeBoolean}
	dateSpec := mapping.ColumnSpec{Target: "placed_on", Type: mapping.TypeDate}
	tsSpec := mapping.ColumnSpec{Target: "updated_at", Type: mapping.TypeTimestamp}

	v, err := coerceCell(intSpec, " 42 ")
	require.NoError(t, err)
	assert.Equal(t, int64(42), v)

	v, err = coerceCell(decSpec, "19.99")
	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString("19.99").Equal(v.(decimal.Decimal)))

	v, err = coerceCell(boolSpec, "TRUE")
	require.NoError(t, err)
	assert.Equal(t, true, v)

	v, err = coerceCell(boolSpec, "0")
	require.NoError(t, err)
	assert.Equal(t, false, v)

	v, err = coerceCell(dateSpec, "2025-08-30")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 8, 30, 0, 0, 0, 0, time.UTC), v)

	v, err = coerceCell(tsSpec, "2025-08-30T12:30:00Z")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 8, 30, 12, 30, 0, 0, time.UTC), v)

	v, err = coerceCell(tsSpec, "2025-08-30 12:30:00")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 8, 30, 12, 30, 0, 0, time.UTC), v)
}

func TestCoerceCell_Failures(t *testing.T) {
	cases := []struct {
		spec mapping.ColumnSpec
		raw  string
	}{
		{mapping.ColumnSpec{Target: "qty", Type: mapping.TypeInteger}, "12.5"},
		{mapping.ColumnSpec{Target: "qty", Type: mapping.TypeInteger}, "abc"},
		{mapping.ColumnSpec{Target: "amount", Type: mapping.TypeDecimal}, "1,99"},
		{mapping.ColumnSpec{Target: "active", Type: mapping.TypeBoolean}, "yes"},
		{mapping.ColumnSpec{Target: "placed_on", Type: mapping.TypeDate}, "30/08/2025"},
		{mapping.ColumnSpec{Target: "updated_at", Type: mapping.TypeTimestamp}, "yesterday"},
	}
	for _, c := range cases {
		_, err := coerceCell(c.spec, c.raw)
		assert.Error(t, err, "value %q should not coerce to %s", c.raw, c.spec.Type)
	}
}

func TestCoerceCell_EmptyBecomesNullOnlyWhenNullable(t *testing.T) {
	nullable := mapping.ColumnSpec{Target: "placed_on", Type: mapping.TypeDate, Nullable: true}
	required := mapping.ColumnSpec{Target: "order_number", Type: mapping.TypeText}

	v, err := coerceCell(nullable, "   ")
	require.NoError(t, err)
	assert.Nil(t, v)

	_, err = coerceCell(required, "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "non-nullable")
}
