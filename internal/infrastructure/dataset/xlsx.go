package dataset

import (
	"fmt"

	"github.com/xuri/excelize/v2"

	"github.com/uitchat/admissions-rag/internal/core/domain"
)

// XLSXReader loads QA records from the first sheet of an Excel workbook with
// a header row.
type XLSXReader struct{}

func NewXLSXReader() *XLSXReader { return &XLSXReader{} }

func (r *XLSXReader) Read(path string) ([]domain.QARecord, error) {
	file, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer file.Close()

	sheets := file.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("workbook has no sheets")
	}

	rows, err := file.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheets[0], err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("sheet %q has no header row", sheets[0])
	}
	cols := mapColumns(rows[0])

	records := make([]domain.QARecord, 0, len(rows)-1)
	for rowNum, row := range rows[1:] {
		records = append(records, recordFromRow(cols, row, rowNum))
	}
	return records, nil
}
