package query

import (
	"strings"

	"github.com/kailas-cloud/clipdex/internal/domain"
)

// fallbackImageContent is returned when an image record carries no text.
const fallbackImageContent = "No description available"

// GenericResult is the raw match shape: metadata passed through as-is.
type GenericResult struct {
	ID       string         `json:"id"`
	Score    float64        `json:"score"`
	Metadata map[string]any `json:"metadata"`
}

// DocumentMetadata is the fixed document metadata shape. Absent fields
// come back as zero values, never as an error.
type DocumentMetadata struct {
	Title     string `json:"title"`
	Text      string `json:"text"`
	Date      string `json:"date"`
	Filename  string `json:"filename"`
	Type      string `json:"type"`
	PageCount int    `json:"page_count"`
	WordCount int    `json:"word_count"`
}

// DocumentResult is one document hit. Title and Content duplicate
// metadata fields for callers predating the metadata envelope.
type DocumentResult struct {
	ID       string           `json:"id"`
	Score    float64          `json:"score"`
	Metadata DocumentMetadata `json:"metadata"`
	Title    string           `json:"title"`
	Content  string           `json:"content"`
}

// ImageMetadata is the fixed image metadata shape.
type ImageMetadata struct {
	ImageURL            string `json:"image_url"`
	Filename            string `json:"filename"`
	ImageType           string `json:"image_type"`
	ImageClassification string `json:"image_classification"`
	OriginalPDF         string `json:"original_pdf"`
	PageNumber          int    `json:"page_number"`
	Text                string `json:"text"`
	Type                string `json:"type"`
}

// ImageResult is one image hit. ImageUrl, Title, Content and Type are
// flattened copies kept for the existing frontend.
type ImageResult struct {
	ID       string        `json:"id"`
	Score    float64       `json:"score"`
	Metadata ImageMetadata `json:"metadata"`
	ImageURL string        `json:"imageUrl"`
	Title    string        `json:"title"`
	Content  string        `json:"content"`
	Type     string        `json:"type"`
}

func normalizeGeneric(m domain.Match) GenericResult {
	md := m.Metadata
	if md == nil {
		md = map[string]any{}
	}
	return GenericResult{ID: m.ID, Score: m.Score, Metadata: md}
}

func normalizeDocument(m domain.Match) DocumentResult {
	md := DocumentMetadata{
		Title:     domain.MetaString(m.Metadata, domain.FieldTitle, ""),
		Text:      domain.MetaString(m.Metadata, domain.FieldText, ""),
		Date:      domain.MetaString(m.Metadata, domain.FieldDate, ""),
		Filename:  domain.MetaString(m.Metadata, domain.FieldFilename, ""),
		Type:      domain.MetaString(m.Metadata, domain.FieldType, string(domain.ContentDocument)),
		PageCount: domain.MetaInt(m.Metadata, domain.FieldPageCount, 0),
		WordCount: domain.MetaInt(m.Metadata, domain.FieldWordCount, 0),
	}
	return DocumentResult{
		ID:       m.ID,
		Score:    m.Score,
		Metadata: md,
		Title:    md.Title,
		Content:  md.Text,
	}
}

func normalizeImage(m domain.Match) ImageResult {
	md := ImageMetadata{
		ImageURL:            domain.MetaString(m.Metadata, domain.FieldImageURL, ""),
		Filename:            domain.MetaString(m.Metadata, domain.FieldFilename, ""),
		ImageType:           domain.MetaString(m.Metadata, domain.FieldImageType, ""),
		ImageClassification: domain.MetaString(m.Metadata, domain.FieldImageClassification, "image"),
		OriginalPDF:         domain.MetaString(m.Metadata, domain.FieldOriginalPDF, ""),
		PageNumber:          domain.MetaInt(m.Metadata, domain.FieldPageNumber, 0),
		Text:                domain.MetaString(m.Metadata, domain.FieldText, ""),
		Type:                domain.MetaString(m.Metadata, domain.FieldType, string(domain.ContentImage)),
	}
	return ImageResult{
		ID:       m.ID,
		Score:    m.Score,
		Metadata: md,
		ImageURL: md.ImageURL,
		Title:    imageTitle(md.Filename),
		Content:  domain.MetaString(m.Metadata, domain.FieldText, fallbackImageContent),
		Type:     string(domain.ContentImage),
	}
}

// imageTitle derives a display title: strip the final extension when the
// filename contains a dot, fall back to "Image" for empty filenames.
func imageTitle(filename string) string {
	title := filename
	if i := strings.LastIndex(filename, "."); i >= 0 {
		title = filename[:i]
	}
	if title == "" {
		return "Image"
	}
	return title
}
