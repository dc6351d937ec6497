package domain

// LibraryFilter narrows the document list. Zero values mean "all"; Query
// matches title or simplified summary case-insensitively.
type LibraryFilter struct {
	Query    string
	Category Category
	Status   ProcessingStatus
}

type LibraryStats struct {
	TotalDocuments int              `json:"total_documents"`
	Completed      int              `json:"completed"`
	ByCategory     map[Category]int `json:"by_category"`
	Recent         []Document       `json:"recent"`
}

const (
	ExtractionStatusSuccess = "success"
	ExtractionStatusFailure = "failure"
)

// ExtractionResult is the gateway's structured-extraction outcome. A
// failure status is recoverable: the pipeline proceeds with empty text.
type ExtractionResult struct {
	Status string         `json:"status"`
	Output map[string]any `json:"output,omitempty"`
}

func (r ExtractionResult) Succeeded() bool {
	return r.Status == ExtractionStatusSuccess
}

// TextContent pulls the extracted text field out of the output object.
func (r ExtractionResult) TextContent() string {
	if r.Output == nil {
		return ""
	}
	text, _ := r.Output["text_content"].(string)
	return text
}

// SpeechAudio is synthesized speech returned by the speech capability.
type SpeechAudio struct {
	Data     []byte `json:"-"`
	MimeType string `json:"mime_type"`
}
