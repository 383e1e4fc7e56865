package domain

// ContentType categorizes indexed records and drives metadata filtering.
type ContentType string

// Content type values stored in record metadata under FieldType.
const (
	// ContentAll is the pseudo-type meaning "no filter".
	ContentAll ContentType = "all"
	// ContentImage marks image records.
	ContentImage ContentType = "image"
	// ContentDocument marks document records.
	ContentDocument ContentType = "document"
	// ContentText marks plain text records.
	ContentText ContentType = "text"
)

// IsFilter reports whether the content type restricts a query.
func (c ContentType) IsFilter() bool {
	return c != "" && c != ContentAll
}

// Metadata field names shared between the ingestion and query paths.
// The query-side normalizers read exactly these keys, so both pipelines
// must agree on them.
const (
	FieldType                = "type"
	FieldFilename            = "filename"
	FieldGroup               = "group"
	FieldTitle               = "title"
	FieldText                = "text"
	FieldDate                = "date"
	FieldPageCount           = "page_count"
	FieldWordCount           = "word_count"
	FieldImageURL            = "image_url"
	FieldImageType           = "image_type"
	FieldImageClassification = "image_classification"
	FieldOriginalPDF         = "original_pdf"
	FieldPageNumber          = "page_number"
)

// Record is one indexed item: an embedding plus its metadata.
// The ID is derived from the filename, so re-ingesting the same file
// overwrites the previous record.
type Record struct {
	ID       string
	Vector   []float32
	Metadata map[string]any
}

// Match is a single hit returned by the vector store, ordered by
// descending similarity score.
type Match struct {
	ID       string
	Score    float64
	Metadata map[string]any
}

// Stats describes the state of the backing index.
type Stats struct {
	TotalVectorCount int
	Dimension        int
}

// MetaString reads a string metadata field, returning def when absent
// or of the wrong type.
func MetaString(m map[string]any, key, def string) string {
	if v, ok := m[key].(string); ok {
		return v
	}
	return def
}

// MetaInt reads a numeric metadata field as int, returning def when
// absent. Numbers round-trip through JSON as float64.
func MetaInt(m map[string]any, key string, def int) int {
	switch v := m[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	default:
		return def
	}
}
