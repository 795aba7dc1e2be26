package extract

import (
	"bytes"
	"encoding/csv"

	"github.com/listmirror/listmirror/model"
	"github.com/pkg/errors"
)

// CSV turns a CSV artifact into a single table. The heavier
// spreadsheet formats are decoded by an external parser; this
// extractor exists so the binary can ingest plain exports end to end.
type CSV struct {
	// SourceName labels extracted tables for schema routing. Empty
	// means the list itself names the table upstream.
	SourceName string
}

func (c CSV) Extract(content []byte) ([]model.Table, error) {
	reader := csv.NewReader(bytes.NewReader(content))
	records, err := reader.ReadAll()
	if err != nil {
		return nil, errors.Wrap(err, "invalid csv content")
	}
	if len(records) == 0 {
		return nil, nil
	}

	table := model.Table{
		SourceName: c.SourceName,
		Columns:    records[0],
		Rows:       records[1:],
	}
	return []model.Table{table}, nil
}
