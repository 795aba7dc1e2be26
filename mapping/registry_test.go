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

package mapping

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ordersTarget() TargetConfig {
	return TargetConfig{
		SourceName: "orders.csv",
		Schema:     "reporting",
		Table:      "orders",
		Columns: []ColumnSpec{
			{Source: "Order Number", Target: "order_number", Type: TypeText},
			{Source: "Amount", Target: "amount", Type: TypeDecimal},
			{Source: "Placed On", Target: "placed_on", Type: TypeDate, Nullable: true},
		},
	}
}

func shipmentsTarget() TargetConfig {
	return TargetConfig{
		SourceName: "shipments.csv",
		Table:      "shipments",
		Columns: []ColumnSpec{
			{Source: "Tracking Code", Target: "tracking_code", Type: TypeText},
			{Source: "Delivered", Target: "delivered", Type: TypeBoolean},
		},
	}
}

func TestNewRegistry_RejectsDuplicateHeaderSets(t *testing.T) {
	duplicate := ordersTarget()
	duplicate.Table = "orders_copy"
	// Same headers in different order and casing still collide.
	duplicate.Columns = []ColumnSpec{
		{Source: "placed on", Target: "placed_on", Type: TypeDate},
		{Source: "AMOUNT", Target: "amount", Type: TypeDecimal},
		{Source: "order number", Target: "order_number", Type: TypeText},
	}

	_, err := NewRegistry([]TargetConfig{ordersTarget(), duplicate})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "same header set")
}

func TestNewRegistry_RejectsInvalidColumnType(t *testing.T) {
	target := ordersTarget()
	target.Columns[0].Type = "varchar"

	_, err := NewRegistry([]TargetConfig{target})
	assert.Error(t, err)
}

func TestResolve_ExactMatch(t *testing.T) {
	registry, err := NewRegistry([]TargetConfig{ordersTarget(), shipmentsTarget()})
	require.NoError(t, err)

	target, err := registry.Resolve("orders.csv", []string{"Order Number", "Amount", "Placed On"})
	require.NoError(t, err)
	assert.Equal(t, "reporting.orders", target.QualifiedName())
}

func TestResolve_IgnoresCaseWhitespaceAndOrder(t *testing.T) {
	registry, err := NewRegistry([]TargetConfig{ordersTarget()})
	require.NoError(t, err)

	target, err := registry.Resolve("orders.csv", []string{"  placed on ", "AMOUNT", "order number"})
	require.NoError(t, err)
	assert.Equal(t, "reporting.orders", target.QualifiedName())
}

func TestResolve_DropsSystemColumnsBeforeMatching(t *testing.T) {
	registry, err := NewRegistry([]TargetConfig{ordersTarget()})
	require.NoError(t, err)

	target, err := registry.Resolve("orders.csv",
		[]string{"ID", "Order Number", "Amount", "Placed On", "Created By", "Modified", "Item Type", "Path"})
	require.NoError(t, err)
	assert.Equal(t, "reporting.orders", target.QualifiedName())
}

func TestResolve_SupersetIsNotAMatch(t *testing.T) {
	registry, err := NewRegistry([]TargetConfig{ordersTarget()})
	require.NoError(t, err)

	_, err = registry.Resolve("orders.csv", []string{"Order Number", "Amount", "Placed On", "Discount"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "discount")
}

func TestResolve_SubsetIsNotAMatch(t *testing.T) {
	registry, err := NewRegistry([]TargetConfig{ordersTarget()})
	require.NoError(t, err)

	_, err = registry.Resolve("orders.csv", []string{"Order Number", "Amount"})
	assert.Error(t, err)
}

func TestIsSystemColumn(t *testing.T) {
	assert.True(t, IsSystemColumn("ID"))
	assert.True(t, IsSystemColumn("  Modified By "))
	assert.False(t, IsSystemColumn("Order Number"))
}

func TestColumnLookupIsCaseInsensitive(t *testing.T) {
	target := ordersTarget()

	spec, ok := target.Column("ORDER NUMBER")
	require.True(t, ok)
	assert.Equal(t, "order_number", spec.Target)

	_, ok = target.Column("unknown")
	assert.False(t, ok)
}
