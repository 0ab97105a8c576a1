package database

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/freedkr/moonshot-translate/internal/model"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// MaterialStore is the Store component (B): persists materials and
// clients and enforces optimistic-lock updates; list-cache
// invalidation is left to the caller. All operations are synchronous
// to the caller (spec §4.1).
type MaterialStore interface {
	GetMaterial(ctx context.Context, id string) (*model.Material, error)
	ListMaterials(ctx context.Context, clientID string) ([]*model.Material, error)
	InsertMaterial(ctx context.Context, m *model.Material) error
	InsertMaterials(ctx context.Context, ms []*model.Material) error
	UpdateMaterial(ctx context.Context, id string, expectedVersion int, mutate func(*model.Material)) (*model.Material, error)
	DeleteMaterial(ctx context.Context, id string) error

	PDFSiblings(ctx context.Context, pdfSessionID string) ([]*model.Material, error)
	// UpdateSiblings applies mutate to id and to every sibling sharing
	// its pdf_session_id still in fromStep, inside one transaction
	// (spec §3 invariant, §4.5 propagation).
	UpdateSiblings(ctx context.Context, id string, fromSteps []model.ProcessingStep, mutate func(*model.Material)) ([]*model.Material, error)

	GetClient(ctx context.Context, id string) (*model.Client, error)
	ListClients(ctx context.Context, ownerID string) ([]*model.Client, error)
	InsertClient(ctx context.Context, c *model.Client) error
	UpdateClient(ctx context.Context, c *model.Client) error
	DeleteClient(ctx context.Context, id string) error
}

// PostgresMaterialStore implements MaterialStore over GORM/Postgres,
// grounded on postgres.go's connection-pool setup and gorm.DB
// transaction style.
type PostgresMaterialStore struct {
	db *gorm.DB
}

// NewPostgresMaterialStore wraps an already-connected *gorm.DB.
func NewPostgresMaterialStore(db *gorm.DB) *PostgresMaterialStore {
	return &PostgresMaterialStore{db: db}
}

// AutoMigrate creates/updates the material and client tables.
func (s *PostgresMaterialStore) AutoMigrate(ctx context.Context) error {
	return s.db.WithContext(ctx).AutoMigrate(&MaterialRecord{}, &ClientRecord{}, &MaterialSiblingLink{})
}

func (s *PostgresMaterialStore) GetMaterial(ctx context.Context, id string) (*model.Material, error) {
	var row MaterialRecord
	if err := s.db.WithContext(ctx).First(&row, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, model.NewNotFound("material", id)
		}
		return nil, fmt.Errorf("get material: %w", err)
	}
	return recordToMaterial(&row)
}

func (s *PostgresMaterialStore) ListMaterials(ctx context.Context, clientID string) ([]*model.Material, error) {
	var rows []MaterialRecord
	if err := s.db.WithContext(ctx).Where("client_id = ?", clientID).Order("created_at ASC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list materials: %w", err)
	}
	out := make([]*model.Material, 0, len(rows))
	for i := range rows {
		m, err := recordToMaterial(&rows[i])
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, nil
}

func (s *PostgresMaterialStore) InsertMaterial(ctx context.Context, m *model.Material) error {
	row, err := materialToRecord(m)
	if err != nil {
		return err
	}
	row.CreatedAt = time.Now()
	row.UpdatedAt = row.CreatedAt
	if err := s.db.WithContext(ctx).Create(row).Error; err != nil {
		return fmt.Errorf("insert material: %w", err)
	}
	*m = *mustMaterial(row)
	return nil
}

func (s *PostgresMaterialStore) InsertMaterials(ctx context.Context, ms []*model.Material) error {
	if len(ms) == 0 {
		return nil
	}
	rows := make([]*MaterialRecord, 0, len(ms))
	now := time.Now()
	for _, m := range ms {
		row, err := materialToRecord(m)
		if err != nil {
			return err
		}
		row.CreatedAt, row.UpdatedAt = now, now
		rows = append(rows, row)
	}
	if err := s.db.WithContext(ctx).CreateInBatches(rows, 100).Error; err != nil {
		return fmt.Errorf("insert materials: %w", err)
	}
	for i, row := range rows {
		*ms[i] = *mustMaterial(row)
	}
	return nil
}

// UpdateMaterial implements the optimistic-lock compare-and-swap
// described in spec §4.1: the row's version must equal
// expectedVersion or the update is rejected with VersionConflict.
// mutate is applied to an in-memory copy of the current row before
// persisting, so callers only ever see Material values, never GORM
// rows.
func (s *PostgresMaterialStore) UpdateMaterial(ctx context.Context, id string, expectedVersion int, mutate func(*model.Material)) (*model.Material, error) {
	var result *model.Material
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var row MaterialRecord
		if err := tx.First(&row, "id = ?", id).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return model.NewNotFound("material", id)
			}
			return fmt.Errorf("read material: %w", err)
		}
		if row.Version != expectedVersion {
			return model.NewVersionConflict(id, expectedVersion)
		}

		m, err := recordToMaterial(&row)
		if err != nil {
			return err
		}
		mutate(m)
		m.Version = expectedVersion + 1
		m.UpdatedAt = time.Now()

		newRow, err := materialToRecord(m)
		if err != nil {
			return err
		}
		newRow.CreatedAt = row.CreatedAt

		update := tx.Model(&MaterialRecord{}).
			Where("id = ? AND version = ?", id, expectedVersion).
			Select("*").
			Updates(newRow)
		if update.Error != nil {
			return fmt.Errorf("update material: %w", update.Error)
		}
		if update.RowsAffected == 0 {
			return model.NewVersionConflict(id, expectedVersion)
		}

		result = m
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *PostgresMaterialStore) DeleteMaterial(ctx context.Context, id string) error {
	if err := s.db.WithContext(ctx).Delete(&MaterialRecord{}, "id = ?", id).Error; err != nil {
		return fmt.Errorf("delete material: %w", err)
	}
	return nil
}

func (s *PostgresMaterialStore) PDFSiblings(ctx context.Context, pdfSessionID string) ([]*model.Material, error) {
	if pdfSessionID == "" {
		return nil, nil
	}
	var rows []MaterialRecord
	if err := s.db.WithContext(ctx).Where("pdf_session_id = ?", pdfSessionID).Order("pdf_page_number ASC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list pdf siblings: %w", err)
	}
	out := make([]*model.Material, 0, len(rows))
	for i := range rows {
		m, err := recordToMaterial(&rows[i])
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, nil
}

// UpdateSiblings propagates an edit across every PDF sibling that is
// still sitting at one of fromSteps (spec §3: "entity_user_edits
// confirmed on one sibling is propagated to all others still in
// entity_pending_confirm"; spec §4.5: confirm/unconfirm propagate to
// all siblings regardless of step).
func (s *PostgresMaterialStore) UpdateSiblings(ctx context.Context, id string, fromSteps []model.ProcessingStep, mutate func(*model.Material)) ([]*model.Material, error) {
	var updated []*model.Material
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var origin MaterialRecord
		if err := tx.First(&origin, "id = ?", id).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return model.NewNotFound("material", id)
			}
			return fmt.Errorf("read material: %w", err)
		}

		var siblingRows []MaterialRecord
		query := tx
		if origin.PDFSessionID != "" {
			query = query.Where("pdf_session_id = ?", origin.PDFSessionID)
		} else {
			query = query.Where("id = ?", id)
		}
		if err := query.Find(&siblingRows).Error; err != nil {
			return fmt.Errorf("read siblings: %w", err)
		}

		allowed := make(map[model.ProcessingStep]bool, len(fromSteps))
		for _, s := range fromSteps {
			allowed[s] = true
		}

		for i := range siblingRows {
			row := siblingRows[i]
			if row.ID != id && len(fromSteps) > 0 && !allowed[model.ProcessingStep(row.ProcessingStep)] {
				continue
			}
			m, err := recordToMaterial(&row)
			if err != nil {
				return err
			}
			mutate(m)
			m.Version = row.Version + 1
			m.UpdatedAt = time.Now()

			newRow, err := materialToRecord(m)
			if err != nil {
				return err
			}
			newRow.CreatedAt = row.CreatedAt

			res := tx.Model(&MaterialRecord{}).
				Where("id = ? AND version = ?", row.ID, row.Version).
				Select("*").
				Updates(newRow)
			if res.Error != nil {
				return fmt.Errorf("update sibling %s: %w", row.ID, res.Error)
			}
			if res.RowsAffected == 0 {
				return model.NewVersionConflict(row.ID, row.Version)
			}
			updated = append(updated, m)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (s *PostgresMaterialStore) GetClient(ctx context.Context, id string) (*model.Client, error) {
	var row ClientRecord
	if err := s.db.WithContext(ctx).First(&row, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, model.NewNotFound("client", id)
		}
		return nil, fmt.Errorf("get client: %w", err)
	}
	return recordToClient(&row), nil
}

func (s *PostgresMaterialStore) ListClients(ctx context.Context, ownerID string) ([]*model.Client, error) {
	var rows []ClientRecord
	q := s.db.WithContext(ctx).Order("created_at DESC")
	if ownerID != "" {
		q = q.Where("owner_id = ?", ownerID)
	}
	if err := q.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list clients: %w", err)
	}
	out := make([]*model.Client, 0, len(rows))
	for i := range rows {
		out = append(out, recordToClient(&rows[i]))
	}
	return out, nil
}

func (s *PostgresMaterialStore) InsertClient(ctx context.Context, c *model.Client) error {
	row := clientToRecord(c)
	row.CreatedAt = time.Now()
	row.UpdatedAt = row.CreatedAt
	if err := s.db.WithContext(ctx).Create(row).Error; err != nil {
		return fmt.Errorf("insert client: %w", err)
	}
	*c = *recordToClient(row)
	return nil
}

func (s *PostgresMaterialStore) UpdateClient(ctx context.Context, c *model.Client) error {
	row := clientToRecord(c)
	row.UpdatedAt = time.Now()
	if err := s.db.WithContext(ctx).Model(&ClientRecord{}).Where("id = ?", c.ID).Updates(row).Error; err != nil {
		return fmt.Errorf("update client: %w", err)
	}
	return nil
}

func (s *PostgresMaterialStore) DeleteClient(ctx context.Context, id string) error {
	if err := s.db.WithContext(ctx).Delete(&ClientRecord{}, "id = ?", id).Error; err != nil {
		return fmt.Errorf("delete client: %w", err)
	}
	return nil
}

// --- conversions ---

func materialToRecord(m *model.Material) (*MaterialRecord, error) {
	textInfo, err := marshalJSON(m.TranslationTextInfo)
	if err != nil {
		return nil, err
	}
	llmResult, err := marshalJSON(m.LLMTranslationResult)
	if err != nil {
		return nil, err
	}
	entityResult, err := marshalJSON(m.EntityRecognitionResult)
	if err != nil {
		return nil, err
	}
	entityEdits, err := marshalJSON(m.EntityUserEdits)
	if err != nil {
		return nil, err
	}
	regions, err := marshalJSON(m.EditedRegions)
	if err != nil {
		return nil, err
	}

	return &MaterialRecord{
		ID:                         m.ID,
		ClientID:                   m.ClientID,
		Kind:                       string(m.Kind),
		FilePath:                   m.FilePath,
		URL:                        m.URL,
		OriginalFilename:           m.OriginalFilename,
		Status:                     m.Status,
		ProcessingStep:             string(m.ProcessingStep),
		TranslationTextInfo:        textInfo,
		LLMTranslationResult:       llmResult,
		TranslationError:           m.TranslationError,
		EntityRecognitionEnabled:   m.EntityRecognitionEnabled,
		EntityRecognitionMode:      string(m.EntityRecognitionMode),
		EntityRecognitionResult:    entityResult,
		EntityRecognitionConfirmed: m.EntityRecognitionConfirmed,
		EntityRecognitionTriggered: m.EntityRecognitionTriggered,
		EntityUserEdits:            entityEdits,
		EntityRecognitionError:     m.EntityRecognitionError,
		EditedRegions:              regions,
		FinalImagePath:             m.FinalImagePath,
		HasEditedVersion:           m.HasEditedVersion,
		SelectedResult:             string(m.SelectedResult),
		OriginalPDFPath:            m.OriginalPDFPath,
		TranslatedImagePath:        m.TranslatedImagePath,
		PDFSessionID:               m.PDFSessionID,
		PDFPageNumber:              m.PDFPageNumber,
		PDFTotalPages:              m.PDFTotalPages,
		PDFOriginalFile:            m.PDFOriginalFile,
		Progress:                   m.Progress,
		Version:                    m.Version,
		CreatedAt:                  m.CreatedAt,
		UpdatedAt:                  m.UpdatedAt,
	}, nil
}

func recordToMaterial(row *MaterialRecord) (*model.Material, error) {
	m := &model.Material{
		ID:                         row.ID,
		ClientID:                   row.ClientID,
		Kind:                       model.MaterialKind(row.Kind),
		FilePath:                   row.FilePath,
		URL:                        row.URL,
		OriginalFilename:           row.OriginalFilename,
		Status:                     row.Status,
		ProcessingStep:             model.ProcessingStep(row.ProcessingStep),
		TranslationError:           row.TranslationError,
		EntityRecognitionEnabled:   row.EntityRecognitionEnabled,
		EntityRecognitionMode:      model.EntityMode(row.EntityRecognitionMode),
		EntityRecognitionConfirmed: row.EntityRecognitionConfirmed,
		EntityRecognitionTriggered: row.EntityRecognitionTriggered,
		EntityRecognitionError:     row.EntityRecognitionError,
		FinalImagePath:             row.FinalImagePath,
		HasEditedVersion:           row.HasEditedVersion,
		SelectedResult:             model.SelectedResult(row.SelectedResult),
		OriginalPDFPath:            row.OriginalPDFPath,
		TranslatedImagePath:        row.TranslatedImagePath,
		PDFSessionID:               row.PDFSessionID,
		PDFPageNumber:              row.PDFPageNumber,
		PDFTotalPages:              row.PDFTotalPages,
		PDFOriginalFile:            row.PDFOriginalFile,
		Progress:                   row.Progress,
		Version:                    row.Version,
		CreatedAt:                  row.CreatedAt,
		UpdatedAt:                  row.UpdatedAt,
	}
	if err := unmarshalJSON(row.TranslationTextInfo, &m.TranslationTextInfo); err != nil {
		return nil, err
	}
	if err := unmarshalJSON(row.LLMTranslationResult, &m.LLMTranslationResult); err != nil {
		return nil, err
	}
	if err := unmarshalJSON(row.EntityRecognitionResult, &m.EntityRecognitionResult); err != nil {
		return nil, err
	}
	if err := unmarshalJSON(row.EntityUserEdits, &m.EntityUserEdits); err != nil {
		return nil, err
	}
	if err := unmarshalJSON(row.EditedRegions, &m.EditedRegions); err != nil {
		return nil, err
	}
	return m, nil
}

func mustMaterial(row *MaterialRecord) *model.Material {
	m, err := recordToMaterial(row)
	if err != nil {
		// marshaled by us moments earlier; a round-trip failure here
		// means a programmer error, not a data error.
		panic(err)
	}
	return m
}

func clientToRecord(c *model.Client) *ClientRecord {
	return &ClientRecord{
		ID:        c.ID,
		Name:      c.Name,
		OwnerID:   c.OwnerID,
		Archived:  c.Archived,
		CreatedAt: c.CreatedAt,
		UpdatedAt: c.UpdatedAt,
	}
}

func recordToClient(row *ClientRecord) *model.Client {
	return &model.Client{
		ID:        row.ID,
		Name:      row.Name,
		OwnerID:   row.OwnerID,
		Archived:  row.Archived,
		CreatedAt: row.CreatedAt,
		UpdatedAt: row.UpdatedAt,
	}
}

func marshalJSON(v interface{}) (datatypes.JSON, error) {
	if v == nil {
		return datatypes.JSON("null"), nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal json column: %w", err)
	}
	return datatypes.JSON(b), nil
}

func unmarshalJSON(raw datatypes.JSON, target interface{}) error {
	if len(raw) == 0 {
		return nil
	}
	if string(raw) == "null" {
		return nil
	}
	if err := json.Unmarshal(raw, target); err != nil {
		return fmt.Errorf("unmarshal json column: %w", err)
	}
	return nil
}
