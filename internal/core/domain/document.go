package domain

import "time"

type ProcessingStatus string

const (
	StatusPending    ProcessingStatus = "pending"
	StatusProcessing ProcessingStatus = "processing"
	StatusCompleted  ProcessingStatus = "completed"
	StatusFailed     ProcessingStatus = "failed"
)

type Category string

const (
	CategoryLegal      Category = "legal"
	CategoryMedical    Category = "medical"
	CategoryGovernment Category = "government"
	CategoryFinancial  Category = "financial"
	CategoryEmployment Category = "employment"
	CategoryAcademic   Category = "academic"
)

// Categories lists every accepted document category, in the order the
// upload form presents them.
func Categories() []Category {
	return []Category{
		CategoryLegal,
		CategoryMedical,
		CategoryGovernment,
		CategoryFinancial,
		CategoryEmployment,
		CategoryAcademic,
	}
}

func (c Category) Valid() bool {
	switch c {
	case CategoryLegal, CategoryMedical, CategoryGovernment,
		CategoryFinancial, CategoryEmployment, CategoryAcademic:
		return true
	default:
		return false
	}
}

type Language string

const (
	LanguageEnglish   Language = "english"
	LanguageHindi     Language = "hindi"
	LanguageTamil     Language = "tamil"
	LanguageBengali   Language = "bengali"
	LanguageMalayalam Language = "malayalam"
)

func (l Language) Valid() bool {
	switch l {
	case LanguageEnglish, LanguageHindi, LanguageTamil, LanguageBengali, LanguageMalayalam:
		return true
	default:
		return false
	}
}

// DisplayName is the English name of the language as embedded in prompts.
func (l Language) DisplayName() string {
	switch l {
	case LanguageHindi:
		return "Hindi"
	case LanguageTamil:
		return "Tamil"
	case LanguageBengali:
		return "Bengali"
	case LanguageMalayalam:
		return "Malayalam"
	default:
		return "English"
	}
}

// SpeechCode is the BCP-47 tag used for speech transcription and synthesis.
func (l Language) SpeechCode() string {
	switch l {
	case LanguageHindi:
		return "hi-IN"
	case LanguageTamil:
		return "ta-IN"
	case LanguageBengali:
		return "bn-IN"
	case LanguageMalayalam:
		return "ml-IN"
	default:
		return "en-US"
	}
}

type Document struct {
	ID                 string           `json:"id"`
	Title              string           `json:"title"`
	Category           Category         `json:"category"`
	FileURL            string           `json:"file_url,omitempty"`
	FileType           string           `json:"file_type,omitempty"`
	OriginalText       string           `json:"original_text,omitempty"`
	Language           Language         `json:"language"`
	Status             ProcessingStatus `json:"processing_status"`
	SimplifiedSummary  string           `json:"simplified_summary,omitempty"`
	KeyPoints          []string         `json:"key_points,omitempty"`
	MedicalSeverity    string           `json:"medical_severity,omitempty"`
	LegalRightsSummary string           `json:"legal_rights_summary,omitempty"`
	SuggestedNextSteps string           `json:"suggested_next_steps,omitempty"`
	Error              string           `json:"error,omitempty"`
	StorageKey         string           `json:"-"`
	CreatedAt          time.Time        `json:"created_date"`
	UpdatedAt          time.Time        `json:"updated_at"`
}

// Analysis is the structured model output for one pipeline run. Which
// optional fields it carries is decided by the category's response schema:
// MedicalSeverity only for medical documents, LegalRightsSummary only for
// legal ones.
type Analysis struct {
	SimplifiedSummary  string   `json:"simplified_summary"`
	KeyPoints          []string `json:"key_points"`
	MedicalSeverity    string   `json:"medical_severity,omitempty"`
	LegalRightsSummary string   `json:"legal_rights_summary,omitempty"`
	SuggestedNextSteps string   `json:"suggested_next_steps,omitempty"`
}

// Sanitize drops fields the schema for this category never requested, so
// the exclusivity invariant holds even against a misbehaving model.
func (a *Analysis) Sanitize(category Category) {
	if category != CategoryMedical {
		a.MedicalSeverity = ""
	}
	if category != CategoryLegal {
		a.LegalRightsSummary = ""
	}
	if a.KeyPoints == nil {
		a.KeyPoints = []string{}
	}
}

// FileUpload is an in-memory uploaded file handed to the analysis pipeline.
type FileUpload struct {
	Filename string
	MimeType string
	Size     int64
	Content  []byte
}

const MaxUploadSize = 10 << 20 // 10 MiB

func AcceptedMimeType(mimeType string) bool {
	switch mimeType {
	case "application/pdf", "image/jpeg", "image/jpg", "image/png":
		return true
	default:
		return false
	}
}
