package model

import "time"

// MaterialKind is the kind of artifact a Material wraps.
type MaterialKind string

const (
	MaterialKindImage   MaterialKind = "image"
	MaterialKindPDF     MaterialKind = "pdf"
	MaterialKindWebpage MaterialKind = "webpage"
)

// ProcessingStep is the canonical state machine value. Mirrors
// ProcessingStep in the original Python state machine.
type ProcessingStep string

const (
	StepUploaded         ProcessingStep = "uploaded"
	StepSplitting        ProcessingStep = "splitting"
	StepSplitCompleted   ProcessingStep = "split_completed"
	StepTranslating      ProcessingStep = "translating"
	StepTranslated       ProcessingStep = "translated"
	StepEntityRecognizing ProcessingStep = "entity_recognizing"
	StepEntityPendingConfirm ProcessingStep = "entity_pending_confirm"
	StepEntityConfirmed  ProcessingStep = "entity_confirmed"
	StepLLMTranslating   ProcessingStep = "llm_translating"
	StepLLMTranslated    ProcessingStep = "llm_translated"
	StepConfirmed        ProcessingStep = "confirmed"
	StepFailed           ProcessingStep = "failed"
)

// EntityMode selects the depth of entity recognition (spec §4.4.3).
type EntityMode string

const (
	EntityModeStandard EntityMode = "standard"
	EntityModeDeep     EntityMode = "deep"
)

// SelectedResult names which review artifact the user has chosen as
// authoritative.
type SelectedResult string

const (
	SelectedResultAPI   SelectedResult = "api"
	SelectedResultLatex SelectedResult = "latex"
)

// Region is one OCR-identified text box (see GLOSSARY).
type Region struct {
	ID        string    `json:"id"`
	Src       string    `json:"src"`
	Dst       string    `json:"dst"`
	Points    []float64 `json:"points"`
	LineCount int       `json:"lineCount"`
}

// TranslationTextInfo is the OCR result shape from spec §3.
type TranslationTextInfo struct {
	Regions    []Region `json:"regions"`
	SourceLang string   `json:"sourceLang"`
	TargetLang string   `json:"targetLang"`
	Statistics map[string]interface{} `json:"statistics,omitempty"`
}

// LLMTranslationItem is one entry of the LLM refinement result.
type LLMTranslationItem struct {
	ID          string `json:"id"`
	Translation string `json:"translation"`
	Original    string `json:"original"`
}

// TranslationGuidance parameterizes the LLM prompt with confirmed
// entity mappings (spec §3, §4.4.4).
type TranslationGuidance struct {
	Persons       map[string]string `json:"persons"`
	Locations     map[string]string `json:"locations"`
	Organizations map[string]string `json:"organizations"`
	Terms         map[string]string `json:"terms"`
}

// EntityUserEdits is the user-confirmed entity edit set.
type EntityUserEdits struct {
	TranslationGuidance TranslationGuidance      `json:"translationGuidance"`
	Entities            []map[string]interface{} `json:"entities,omitempty"`
}

// EditedRegion is a user-edited region overlay (spec §4.5).
type EditedRegion struct {
	ID       string    `json:"id"`
	Text     string    `json:"text"`
	Points   []float64 `json:"points"`
	FontSize float64   `json:"fontSize,omitempty"`
	Color    string    `json:"color,omitempty"`
}

// Material is one translatable artifact (spec §3).
type Material struct {
	ID       string `json:"id"`
	ClientID string `json:"client_id"`

	Kind             MaterialKind `json:"kind"`
	FilePath         string       `json:"file_path,omitempty"`
	URL              string       `json:"url,omitempty"`
	OriginalFilename string       `json:"original_filename,omitempty"`

	Status         string         `json:"status"`
	ProcessingStep ProcessingStep `json:"processing_step"`

	TranslationTextInfo  *TranslationTextInfo  `json:"translation_text_info,omitempty"`
	LLMTranslationResult []LLMTranslationItem  `json:"llm_translation_result,omitempty"`
	TranslationError     string                `json:"translation_error,omitempty"`

	EntityRecognitionEnabled   bool             `json:"entity_recognition_enabled"`
	EntityRecognitionMode      EntityMode       `json:"entity_recognition_mode,omitempty"`
	EntityRecognitionResult    map[string]interface{} `json:"entity_recognition_result,omitempty"`
	EntityRecognitionConfirmed bool             `json:"entity_recognition_confirmed"`
	EntityRecognitionTriggered bool             `json:"entity_recognition_triggered"`
	EntityUserEdits            *EntityUserEdits `json:"entity_user_edits,omitempty"`
	EntityRecognitionError     string           `json:"entity_recognition_error,omitempty"`

	EditedRegions    []EditedRegion `json:"edited_regions,omitempty"`
	FinalImagePath   string         `json:"final_image_path,omitempty"`
	HasEditedVersion bool           `json:"has_edited_version"`
	SelectedResult   SelectedResult `json:"selected_result,omitempty"`

	OriginalPDFPath    string `json:"original_pdf_path,omitempty"`
	TranslatedImagePath string `json:"translated_image_path,omitempty"`

	PDFSessionID   string `json:"pdf_session_id,omitempty"`
	PDFPageNumber  int    `json:"pdf_page_number,omitempty"`
	PDFTotalPages  int    `json:"pdf_total_pages,omitempty"`
	PDFOriginalFile string `json:"pdf_original_file,omitempty"`

	Progress int `json:"progress"`
	Version  int `json:"version"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// stepDisplayStatus is the canonical processing_step -> status
// mapping (spec §3 invariant: status is always the canonical display
// mapping of processing_step).
var stepDisplayStatus = map[ProcessingStep]string{
	StepUploaded:             "uploaded",
	StepSplitting:            "splitting",
	StepSplitCompleted:       "split_completed",
	StepTranslating:          "translating",
	StepTranslated:           "translated",
	StepEntityRecognizing:    "entity_recognizing",
	StepEntityPendingConfirm: "entity_pending_confirm",
	StepEntityConfirmed:      "entity_confirmed",
	StepLLMTranslating:       "llm_translating",
	StepLLMTranslated:        "llm_translated",
	StepConfirmed:            "confirmed",
	StepFailed:               "failed",
}

// DisplayStatus returns the canonical status string for step.
func DisplayStatus(step ProcessingStep) string {
	if s, ok := stepDisplayStatus[step]; ok {
		return s
	}
	return string(step)
}

// SetStep sets both ProcessingStep and its denormalized Status view,
// keeping the spec §3 invariant in one place.
func (m *Material) SetStep(step ProcessingStep) {
	m.ProcessingStep = step
	m.Status = DisplayStatus(step)
}

// ClearIntermediateResults clears all derived pipeline output,
// used by Retranslate and Rotate (spec §4.4, "clears_intermediate").
func (m *Material) ClearIntermediateResults() {
	m.TranslationTextInfo = nil
	m.LLMTranslationResult = nil
	m.TranslationError = ""
	m.EntityRecognitionResult = nil
	m.EntityRecognitionConfirmed = false
	m.EntityRecognitionTriggered = false
	m.EntityUserEdits = nil
	m.EntityRecognitionError = ""
	m.EditedRegions = nil
	m.FinalImagePath = ""
	m.HasEditedVersion = false
	m.SelectedResult = ""
	m.Progress = 0
}

// Client is the case/folder owning a set of materials (spec §3).
type Client struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	OwnerID   string    `json:"owner_id"`
	Archived  bool      `json:"archived"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
