package database

import (
	"time"

	"gorm.io/datatypes"
)

// MaterialRecord is the GORM row for one Material (spec §3). Nested
// structures (OCR result, LLM result, entity edits, regions) are
// stored as JSONB columns, following the Scan/Value convention
// models_extended.go uses for ProcessingSteps/ProcessingResults.
type MaterialRecord struct {
	ID       string `json:"id" gorm:"primaryKey;type:uuid"`
	ClientID string `json:"client_id" gorm:"type:uuid;not null;index"`

	Kind             string `json:"kind" gorm:"type:varchar(20);not null"`
	FilePath         string `json:"file_path" gorm:"type:text"`
	URL              string `json:"url" gorm:"type:text"`
	OriginalFilename string `json:"original_filename" gorm:"type:varchar(255)"`

	Status         string `json:"status" gorm:"type:varchar(50);not null"`
	ProcessingStep string `json:"processing_step" gorm:"type:varchar(50);not null;index"`

	TranslationTextInfo  datatypes.JSON `json:"translation_text_info" gorm:"type:jsonb"`
	LLMTranslationResult datatypes.JSON `json:"llm_translation_result" gorm:"type:jsonb"`
	TranslationError     string         `json:"translation_error" gorm:"type:text"`

	EntityRecognitionEnabled   bool           `json:"entity_recognition_enabled"`
	EntityRecognitionMode      string         `json:"entity_recognition_mode" gorm:"type:varchar(20)"`
	EntityRecognitionResult    datatypes.JSON `json:"entity_recognition_result" gorm:"type:jsonb"`
	EntityRecognitionConfirmed bool           `json:"entity_recognition_confirmed"`
	EntityRecognitionTriggered bool           `json:"entity_recognition_triggered"`
	EntityUserEdits            datatypes.JSON `json:"entity_user_edits" gorm:"type:jsonb"`
	EntityRecognitionError     string         `json:"entity_recognition_error" gorm:"type:text"`

	EditedRegions    datatypes.JSON `json:"edited_regions" gorm:"type:jsonb"`
	FinalImagePath   string         `json:"final_image_path" gorm:"type:text"`
	HasEditedVersion bool           `json:"has_edited_version"`
	SelectedResult   string         `json:"selected_result" gorm:"type:varchar(20)"`

	OriginalPDFPath     string `json:"original_pdf_path" gorm:"type:text"`
	TranslatedImagePath string `json:"translated_image_path" gorm:"type:text"`

	PDFSessionID    string `json:"pdf_session_id" gorm:"type:uuid;index"`
	PDFPageNumber   int    `json:"pdf_page_number"`
	PDFTotalPages   int    `json:"pdf_total_pages"`
	PDFOriginalFile string `json:"pdf_original_file" gorm:"type:text"`

	Progress int `json:"progress" gorm:"not null;default:0"`
	Version  int `json:"version" gorm:"not null;default:0"`

	CreatedAt time.Time `json:"created_at" gorm:"not null;default:now()"`
	UpdatedAt time.Time `json:"updated_at" gorm:"not null;default:now()"`
}

func (MaterialRecord) TableName() string {
	return "moonshot.materials"
}

// ClientRecord is the GORM row for one Client (case/folder, spec §3).
type ClientRecord struct {
	ID        string    `json:"id" gorm:"primaryKey;type:uuid"`
	Name      string    `json:"name" gorm:"type:varchar(255);not null"`
	OwnerID   string    `json:"owner_id" gorm:"type:uuid;index"`
	Archived  bool      `json:"archived" gorm:"not null;default:false"`
	CreatedAt time.Time `json:"created_at" gorm:"not null;default:now()"`
	UpdatedAt time.Time `json:"updated_at" gorm:"not null;default:now()"`
}

func (ClientRecord) TableName() string {
	return "moonshot.clients"
}

// MaterialSiblingLink records PDF-session sibling relationships,
// adapting models_extended.go's TaskRelation (parent/child with a
// free-form Relationship label) to the "same pdf_session_id" case.
type MaterialSiblingLink struct {
	ID             uint      `gorm:"primarykey;autoIncrement"`
	PDFSessionID   string    `gorm:"type:uuid;not null;index"`
	MaterialID     string    `gorm:"type:uuid;not null;index"`
	PDFPageNumber  int       `gorm:"not null"`
	CreatedAt      time.Time `gorm:"autoCreateTime"`
}

func (MaterialSiblingLink) TableName() string {
	return "moonshot.material_sibling_links"
}
