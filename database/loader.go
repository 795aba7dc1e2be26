package database

import (
	"database/sql"
	"strconv"
	"strings"
	"time"

	"github.com/lib/pq"
	"github.com/listmirror/listmirror/internal/apierror"
	"github.com/listmirror/listmirror/mapping"
	"github.com/listmirror/listmirror/model"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// loadTables routes every non-empty table to its target configuration
// and streams its rows through the Postgres COPY path. All tables
// share the caller's transaction, so a failure on any table rolls the
// whole step back. Returns the number of rows written.
func loadTables(tx *sql.Tx, registry *mapping.Registry, artifactID string, tables []model.Table) (int, error) {
	total := 0
	for _, table := range tables {
		if len(table.Rows) == 0 {
			continue
		}
		n, err := loadTable(tx, registry, artifactID, table)
		if err != nil {
			return 0, err
		}
		total += n
	}
	return total, nil
}

func loadTable(tx *sql.Tx, registry *mapping.Registry, artifactID string, table model.Table) (int, error) {
	target, err := registry.Resolve(table.SourceName, table.Columns)
	if err != nil {
		return 0, apierror.NewAPIError(apierror.ErrInvalidInput, "No target schema matches table", err)
	}

	specs, positions, err := translateColumns(target, table.Columns)
	if err != nil {
		return 0, apierror.NewAPIError(apierror.ErrInvalidInput, "Column translation failed", err)
	}

	schema, name, err := SplitQualifiedTarget(target.QualifiedName())
	if err != nil {
		return 0, apierror.NewAPIError(apierror.ErrInvalidInput, "Invalid bulk-load target identifier", err)
	}

	targetColumns := make([]string, 0, len(specs)+1)
	for _, spec := range specs {
		targetColumns = append(targetColumns, spec.Target)
	}
	targetColumns = append(targetColumns, "artifact_id")

	var copyStmt string
	if schema == "" {
		copyStmt = pq.CopyIn(name, targetColumns...)
	} else {
		copyStmt = pq.CopyInSchema(schema, name, targetColumns...)
	}

	stmt, err := tx.Prepare(copyStmt)
	if err != nil {
		return 0, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to prepare bulk copy", err)
	}
	defer func() {
		if err := stmt.Close(); err != nil {
			logrus.Error(err)
		}
	}()

	for i, row := range table.Rows {
		if len(row) != len(table.Columns) {
			return 0, apierror.NewAPIError(apierror.ErrInvalidInput, "Row width does not match header",
				errors.Errorf("table %q row %d has %d cells, expected %d", table.SourceName, i, len(row), len(table.Columns)))
		}
		args := make([]interface{}, 0, len(specs)+1)
		for j, spec := range specs {
			value, err := coerceCell(spec, row[positions[j]])
			if err != nil {
				return 0, apierror.NewAPIError(apierror.ErrInvalidInput, "Cell coercion failed",
					errors.Wrapf(err, "table %q row %d", table.SourceName, i))
			}
			args = append(args, value)
		}
		args = append(args, artifactID)
		if _, err := stmt.Exec(args...); err != nil {
			return 0, apierror.NewAPIError(apierror.ErrInternalServer, "Bulk copy write failed", err)
		}
	}

	// Flush the COPY buffer.
	if _, err := stmt.Exec(); err != nil {
		return 0, apierror.NewAPIError(apierror.ErrInternalServer, "Bulk copy flush failed", err)
	}

	return len(table.Rows), nil
}

// translateColumns maps each loadable source header to its target
// spec, keeping the header's position so cells can be picked out of
// rows. System-generated columns are dropped; any other unmapped
// header is a hard error, never silently skipped.
func translateColumns(target *mapping.TargetConfig, headers []string) ([]mapping.ColumnSpec, []int, error) {
	specs := make([]mapping.ColumnSpec, 0, len(headers))
	positions := make([]int, 0, len(headers))
	for i, header := range headers {
		if mapping.IsSystemColumn(header) {
			continue
		}
		spec, ok := target.Column(header)
		if !ok {
			return nil, nil, errors.Errorf("column %q has no mapping in target %q", header, target.QualifiedName())
		}
		specs = append(specs, spec)
		positions = append(positions, i)
	}
	return specs, positions, nil
}

// SplitQualifiedTarget re-validates a bulk-load target identifier at
// the last moment before it reaches a COPY command: one optional
// schema separator, no empty segments. Escaping itself is done by the
// pq CopyIn helpers.
func SplitQualifiedTarget(target string) (schema, table string, err error) {
	segments := strings.Split(target, ".")
	switch len(segments) {
	case 1:
		table = segments[0]
	case 2:
		schema, table = segments[0], segments[1]
	default:
		return "", "", errors.Errorf("target %q has more than one separator", target)
	}
	for _, segment := range segments {
		if strings.TrimSpace(segment) == "" {
			return "", "", errors.Errorf("target %q has an empty segment", target)
		}
	}
	return schema, table, nil
}

// coerceCell converts raw cell text to the store-level value declared
// by the target column. Parsing is locale-invariant throughout. An
// empty cell becomes NULL only when the column allows it.
func coerceCell(spec mapping.ColumnSpec, raw string) (interface{}, error) {
	value := strings.TrimSpace(raw)
	if value == "" {
		if spec.Nullable {
			return nil, nil
		}
		return nil, errors.Errorf("empty value for non-nullable column %q", spec.Target)
	}

	switch spec.Type {
	case mapping.TypeText:
		return value, nil
	case mapping.TypeInteger:
		n, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return nil, errors.Wrapf(err, "column %q expects an integer", spec.Target)
		}
		return n, nil
	case mapping.TypeDecimal:
		dec, err := decimal.NewFromString(value)
		if err != nil {
			return nil, errors.Wrapf(err, "column %q expects a decimal", spec.Target)
		}
		return dec, nil
	case mapping.TypeBoolean:
		switch strings.ToLower(value) {
		case "true", "1":
			return true, nil
		case "false", "0":
			return false, nil
		}
		return nil, errors.Errorf("column %q expects a boolean, got %q", spec.Target, raw)
	case mapping.TypeDate:
		t, err := time.Parse("2006-01-02", value)
		if err != nil {
			return nil, errors.Wrapf(err, "column %q expects a date", spec.Target)
		}
		return t, nil
	case mapping.TypeTimestamp:
		for _, layout := range []string{time.RFC3339, "2006-01-02 15:04:05"} {
			if t, err := time.Parse(layout, value); err == nil {
				return t, nil
			}
		}
		return nil, errors.Errorf("column %q expects a timestamp, got %q", spec.Target, raw)
	}
	return nil, errors.Errorf("column %q has unknown type %q", spec.Target, spec.Type)
}
