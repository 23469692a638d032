package domain

// QARecord is one reference QA pair read from a dataset file before indexing.
type QARecord struct {
	Index             int
	Question          string
	Context           string
	Article           string
	Document          string
	ExtractiveAnswer  string
	AbstractiveAnswer string
	YesNo             string
}

// IngestJob asks the worker to (re)index one dataset file.
type IngestJob struct {
	Path     string `json:"path"`
	Recreate bool   `json:"recreate"`
}

// IngestReport summarizes one ingestion run.
type IngestReport struct {
	Total   int `json:"total"`
	Indexed int `json:"indexed"`
	Skipped int `json:"skipped"`
	Failed  int `json:"failed"`
}
