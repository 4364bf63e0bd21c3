package models

// ErrorKind classifies a failed fetch
type ErrorKind string

const (
	ErrorKindNotFound           ErrorKind = "not_found"
	ErrorKindDisabled           ErrorKind = "disabled"
	ErrorKindUnsupportedType    ErrorKind = "unsupported_type"
	ErrorKindExtractionFailure  ErrorKind = "extraction_failure"
	ErrorKindPersistenceFailure ErrorKind = "persistence_failure"
)

// FetchResult is the structured outcome of fetching one source
type FetchResult struct {
	Success    bool      `json:"success"`
	Message    string    `json:"message,omitempty"`
	Error      string    `json:"error,omitempty"`
	Kind       ErrorKind `json:"kind,omitempty"`
	SavedCount int       `json:"saved_count"`
	TotalFound int       `json:"total_found"`
	Title      string    `json:"title,omitempty"`
	URL        string    `json:"url,omitempty"`
}

// Failure builds an unsuccessful result
func Failure(kind ErrorKind, msg string) FetchResult {
	return FetchResult{Success: false, Error: msg, Kind: kind}
}

// SourceResult pairs a source with its fetch outcome
type SourceResult struct {
	SourceID   int64       `json:"source_id"`
	SourceName string      `json:"source_name"`
	Result     FetchResult `json:"result"`
}

// BatchResult is the aggregate outcome of fetching every active source
type BatchResult struct {
	Success   bool           `json:"success"`
	Message   string         `json:"message"`
	Error     string         `json:"error,omitempty"`
	RunID     string         `json:"run_id,omitempty"`
	Succeeded int            `json:"succeeded"`
	Failed    int            `json:"failed"`
	Results   []SourceResult `json:"result"`
}
