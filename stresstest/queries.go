package stresstest

// QueryKind classifies a statement by the effect it has on the database.
type QueryKind string

const (
	KindRead    QueryKind = "read"
	KindWrite   QueryKind = "write"
	KindUnknown QueryKind = "unknown"
)

// QueryRecord is a single replayable SQL statement with its classification.
// Records are created when the corpus is loaded and never modified afterwards.
type QueryRecord struct {
	Text string    `json:"text"`
	Kind QueryKind `json:"kind"`
}

// QuerySource is an ordered, immutable collection of statements shared
// read-only by every worker in a run.
type QuerySource struct {
	records []QueryRecord
}

// NewQuerySource builds a source from the given records. The slice is
// copied, so the caller may reuse it.
func NewQuerySource(records []QueryRecord) *QuerySource {
	copied := make([]QueryRecord, len(records))
	copy(copied, records)
	return &QuerySource{records: copied}
}

// FromStatements builds a source of unclassified records from raw statement
// text. Useful when the corpus does not come from a query log.
func FromStatements(statements ...string) *QuerySource {
	records := make([]QueryRecord, len(statements))
	for i, text := range statements {
		records[i] = QueryRecord{Text: text, Kind: KindUnknown}
	}
	return &QuerySource{records: records}
}

// Len returns the number of statements in the source.
func (s *QuerySource) Len() int {
	if s == nil {
		return 0
	}
	return len(s.records)
}

// At returns the statement at index i.
func (s *QuerySource) At(i int) QueryRecord {
	return s.records[i]
}
