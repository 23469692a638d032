package dataset

import (
	"strconv"
	"strings"

	"github.com/uitchat/admissions-rag/internal/core/domain"
)

// Column names as they appear in the QA dataset exports. Header matching is
// case-insensitive and tolerant of surrounding whitespace.
const (
	colIndex             = "index"
	colQuestion          = "question"
	colContext           = "context"
	colArticle           = "article"
	colDocument          = "document"
	colExtractiveAnswer  = "extractive answer"
	colAbstractiveAnswer = "abstractive answer"
	colYesNo             = "yes/no"
)

type columnMap map[string]int

func mapColumns(header []string) columnMap {
	cols := make(columnMap, len(header))
	for i, name := range header {
		cols[strings.ToLower(strings.TrimSpace(name))] = i
	}
	return cols
}

func (c columnMap) value(row []string, name string) string {
	idx, ok := c[name]
	if !ok || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}

// recordFromRow builds one QA record. rowNum seeds the index when the file
// carries no index column.
func recordFromRow(cols columnMap, row []string, rowNum int) domain.QARecord {
	index := rowNum
	if raw := cols.value(row, colIndex); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil {
			index = parsed
		}
	}
	return domain.QARecord{
		Index:             index,
		Question:          cols.value(row, colQuestion),
		Context:           cols.value(row, colContext),
		Article:           cols.value(row, colArticle),
		Document:          cols.value(row, colDocument),
		ExtractiveAnswer:  cols.value(row, colExtractiveAnswer),
		AbstractiveAnswer: cols.value(row, colAbstractiveAnswer),
		YesNo:             cols.value(row, colYesNo),
	}
}
