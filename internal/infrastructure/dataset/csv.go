package dataset

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"

	"github.com/uitchat/admissions-rag/internal/core/domain"
)

// CSVReader loads QA records from a comma-separated export with a header
// row.
type CSVReader struct{}

func NewCSVReader() *CSVReader { return &CSVReader{} }

func (r *CSVReader) Read(path string) ([]domain.QARecord, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open dataset: %w", err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	cols := mapColumns(header)

	var records []domain.QARecord
	for rowNum := 0; ; rowNum++ {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row %d: %w", rowNum+2, err)
		}
		records = append(records, recordFromRow(cols, row, rowNum))
	}
	return records, nil
}
