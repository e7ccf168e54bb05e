package leadsource

import (
	"encoding/csv"
	"fmt"
	"io"

	"github.com/jfyne/csvd"

	"github.com/123Soldcash/crm-123drive-v2/reconcile"
)

// CSVSource streams ExternalRecords from a CSV export. csvd detects the
// delimiter and strips any UTF-8 BOM, which the hand-consolidated exports
// routinely carry.
type CSVSource struct {
	reader *csv.Reader
	mapper *mapper
	rowNum int
}

// NewCSV reads the header row and prepares a row source over r.
func NewCSV(r io.Reader) (*CSVSource, error) {
	reader := csvd.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("read csv header: %w", err)
	}

	return &CSVSource{
		reader: reader,
		mapper: newMapper(header),
	}, nil
}

// Next implements reconcile.RowSource. Returns io.EOF when the file ends.
func (s *CSVSource) Next() (*reconcile.ExternalRecord, error) {
	row, err := s.reader.Read()
	if err != nil {
		return nil, err
	}
	s.rowNum++
	return s.mapper.record(row, s.rowNum), nil
}
