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

// Package mapping routes incoming tables to their reporting targets.
// The registry is plain data, built once at startup from configuration
// and injected wherever tables are loaded.
package mapping

import (
	"fmt"
	"sort"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/pkg/errors"
)

// ColumnType enumerates the store-level types a target column can
// declare. Coercion from raw cell text happens in the loader.
type ColumnType string

const (
	TypeText      ColumnType = "text"
	TypeInteger   ColumnType = "integer"
	TypeDecimal   ColumnType = "decimal"
	TypeBoolean   ColumnType = "boolean"
	TypeDate      ColumnType = "date"
	TypeTimestamp ColumnType = "timestamp"
)

// systemColumns are source-side columns the export tool generates on
// its own. They are removed before header matching and never loaded.
var systemColumns = map[string]struct{}{
	"id":          {},
	"created":     {},
	"created by":  {},
	"modified":    {},
	"modified by": {},
	"item type":   {},
	"path":        {},
}

// IsSystemColumn reports whether a header names a source-side
// system-generated column that is never loaded.
func IsSystemColumn(header string) bool {
	_, ok := systemColumns[normalizeHeader(header)]
	return ok
}

// ColumnSpec maps one source header to a target column.
type ColumnSpec struct {
	Source   string     `json:"source"`
	Target   string     `json:"target"`
	Type     ColumnType `json:"type"`
	Nullable bool       `json:"nullable"`
}

func (c ColumnSpec) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Source, validation.Required),
		validation.Field(&c.Target, validation.Required),
		validation.Field(&c.Type, validation.Required, validation.In(
			TypeText, TypeInteger, TypeDecimal, TypeBoolean, TypeDate, TypeTimestamp)),
	)
}

// TargetConfig declares one reporting table: the source-side name it
// arrives under, its qualified destination, and its column map.
type TargetConfig struct {
	SourceName string       `json:"source_name"`
	Schema     string       `json:"schema"`
	Table      string       `json:"table"`
	Columns    []ColumnSpec `json:"columns"`
}

func (t TargetConfig) Validate() error {
	return validation.ValidateStruct(&t,
		validation.Field(&t.SourceName, validation.Required),
		validation.Field(&t.Table, validation.Required),
		validation.Field(&t.Columns, validation.Required),
	)
}

// QualifiedName returns "schema.table", or "table" when no schema is
// configured. The loader re-validates and escapes this before use.
func (t TargetConfig) QualifiedName() string {
	if t.Schema == "" {
		return t.Table
	}
	return fmt.Sprintf("%s.%s", t.Schema, t.Table)
}

// Column returns the column definition for a source header, after normalization.
func (t TargetConfig) Column(source string) (ColumnSpec, bool) {
	normalized := normalizeHeader(source)
	for _, c := range t.Columns {
		if normalizeHeader(c.Source) == normalized {
			return c, true
		}
	}
	return ColumnSpec{}, false
}

// Registry holds every known target configuration, keyed by the
// canonical form of its expected header set.
type Registry struct {
	targets []TargetConfig
	byKey   map[string]*TargetConfig
}

// NewRegistry validates the given configurations and indexes them by
// header set. Two configurations declaring the same header set are a
// configuration error, not a runtime tie-break.
func NewRegistry(targets []TargetConfig) (*Registry, error) {
	r := &Registry{
		targets: targets,
		byKey:   make(map[string]*TargetConfig, len(targets)),
	}
	for i := range targets {
		t := &r.targets[i]
		if err := t.Validate(); err != nil {
			return nil, errors.Wrapf(err, "invalid target configuration %q", t.QualifiedName())
		}
		for _, c := range t.Columns {
			if err := c.Validate(); err != nil {
				return nil, errors.Wrapf(err, "invalid column in target %q", t.QualifiedName())
			}
		}
		key := headerSetKey(expectedHeaders(t))
		if existing, ok := r.byKey[key]; ok {
			return nil, errors.Errorf("targets %q and %q declare the same header set",
				existing.QualifiedName(), t.QualifiedName())
		}
		r.byKey[key] = t
	}
	return r, nil
}

// Resolve matches an incoming table's header set to exactly one known
// target. Headers are trimmed, compared case-insensitively, and
// stripped of system-generated columns before comparison; the match
// must be exact, neither a superset nor a subset of the expectation.
func (r *Registry) Resolve(sourceName string, headers []string) (*TargetConfig, error) {
	incoming := normalizeHeaders(headers)
	if t, ok := r.byKey[headerSetKey(incoming)]; ok {
		return t, nil
	}
	return nil, errors.Errorf("no target configuration matches table %q with headers [%s]",
		sourceName, strings.Join(incoming, ", "))
}

// Targets returns the registered configurations.
func (r *Registry) Targets() []TargetConfig {
	return r.targets
}

func expectedHeaders(t *TargetConfig) []string {
	headers := make([]string, 0, len(t.Columns))
	for _, c := range t.Columns {
		headers = append(headers, c.Source)
	}
	return normalizeHeaders(headers)
}

func normalizeHeader(header string) string {
	return strings.ToLower(strings.TrimSpace(header))
}

// normalizeHeaders trims, lowercases, and drops system columns. The
// result is sorted so it can serve as a set key.
func normalizeHeaders(headers []string) []string {
	normalized := make([]string, 0, len(headers))
	for _, h := range headers {
		n := normalizeHeader(h)
		if n == "" {
			continue
		}
		if _, ignored := systemColumns[n]; ignored {
			continue
		}
		normalized = append(normalized, n)
	}
	sort.Strings(normalized)
	return normalized
}

func headerSetKey(normalized []string) string {
	return strings.Join(normalized, "\x1f")
}
