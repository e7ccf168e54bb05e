package leadsource

import (
	"fmt"
	"io"

	"github.com/tealeg/xlsx"

	"github.com/123Soldcash/crm-123drive-v2/reconcile"
)

// XLSXSource yields ExternalRecords from a DealMachine Excel export.
// The whole sheet is decoded up front; exports run to a few thousand rows
// at most, which is fine in memory.
type XLSXSource struct {
	rows   [][]string
	mapper *mapper
	pos    int
	rowNum int
}

// NewXLSX opens path and reads the named sheet (first sheet when name is
// empty). The first row is the header.
func NewXLSX(path, sheetName string) (*XLSXSource, error) {
	file, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open xlsx: %w", err)
	}

	sheets, err := file.ToSlice()
	if err != nil {
		return nil, fmt.Errorf("decode xlsx: %w", err)
	}
	if len(sheets) == 0 {
		return nil, fmt.Errorf("xlsx has no sheets")
	}

	rows := sheets[0]
	if sheetName != "" {
		found := false
		for i, sheet := range file.Sheets {
			if sheet.Name == sheetName && i < len(sheets) {
				rows = sheets[i]
				found = true
				break
			}
		}
		if !found {
			return nil, fmt.Errorf("xlsx sheet %q not found", sheetName)
		}
	}

	if len(rows) == 0 {
		return nil, fmt.Errorf("xlsx sheet is empty")
	}

	return &XLSXSource{
		rows:   rows[1:],
		mapper: newMapper(rows[0]),
	}, nil
}

// Next implements reconcile.RowSource. Returns io.EOF when exhausted.
func (s *XLSXSource) Next() (*reconcile.ExternalRecord, error) {
	if s.pos >= len(s.rows) {
		return nil, io.EOF
	}
	row := s.rows[s.pos]
	s.pos++
	s.rowNum++
	return s.mapper.record(row, s.rowNum), nil
}
