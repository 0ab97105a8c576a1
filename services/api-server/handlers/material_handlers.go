package handlers

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/freedkr/moonshot-translate/internal/database"
	"github.com/freedkr/moonshot-translate/internal/export"
	"github.com/freedkr/moonshot-translate/internal/imaging"
	"github.com/freedkr/moonshot-translate/internal/model"
	"github.com/freedkr/moonshot-translate/internal/pipeline"
	"github.com/freedkr/moonshot-translate/internal/storage"
	"github.com/freedkr/moonshot-translate/services/api-server/middleware"
)

// MaterialHandlers exposes the Material Processing Pipeline's HTTP
// surface.
type MaterialHandlers struct {
	orc      *pipeline.Orchestrator
	store    database.MaterialStore
	storage  storage.StorageInterface
	packager *export.Packager
	ingress  imaging.Bounds
}

// NewMaterialHandlers builds a MaterialHandlers.
func NewMaterialHandlers(orc *pipeline.Orchestrator, store database.MaterialStore, storageClient storage.StorageInterface, packager *export.Packager, ingress imaging.Bounds) *MaterialHandlers {
	return &MaterialHandlers{
		orc:      orc,
		store:    store,
		storage:  storageClient,
		packager: packager,
		ingress:  ingress,
	}
}

// UploadMaterial handles POST /clients/:client_id/materials/upload. A
// PDF fans out into one Material per page (spec §4.4.6); any other
// file is normalized and stored as a single image Material.
func (h *MaterialHandlers) UploadMaterial(c *gin.Context) {
	ctx := c.Request.Context()
	clientID := c.Param("client_id")

	file, header, err := c.Request.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing file: " + err.Error()})
		return
	}
	defer file.Close()

	raw, err := io.ReadAll(file)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "read upload: " + err.Error()})
		return
	}

	if strings.EqualFold(filepath.Ext(header.Filename), ".pdf") {
		h.uploadPDF(c, ctx, clientID, raw, header.Filename)
		return
	}
	h.uploadImage(c, ctx, clientID, raw, header.Filename)
}

func (h *MaterialHandlers) uploadImage(c *gin.Context, ctx context.Context, clientID string, raw []byte, filename string) {
	normalized, contentType, err := imaging.Normalize(raw, h.ingress)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "normalize image: " + err.Error()})
		return
	}

	m := &model.Material{
		ID:               uuid.NewString(),
		ClientID:         clientID,
		Kind:             model.MaterialKindImage,
		OriginalFilename: filename,
	}
	objectName := fmt.Sprintf("materials/%s.jpg", m.ID)
	if err := h.storage.UploadFile(ctx, objectName, bytes.NewReader(normalized), int64(len(normalized)), contentType); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "store image: " + err.Error()})
		return
	}
	m.FilePath = objectName
	m.SetStep(model.StepUploaded)

	if err := h.store.InsertMaterial(ctx, m); err != nil {
		h.storage.DeleteFile(ctx, objectName)
		middleware.RespondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, m)
}

func (h *MaterialHandlers) uploadPDF(c *gin.Context, ctx context.Context, clientID string, raw []byte, filename string) {
	tmp, err := os.CreateTemp("", "upload-*.pdf")
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "buffer pdf: " + err.Error()})
		return
	}
	defer tmp.Close()
	if _, err := tmp.Write(raw); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "buffer pdf: " + err.Error()})
		return
	}

	materials, err := h.orc.IngestPDF(ctx, clientID, tmp.Name(), filename)
	if err != nil {
		middleware.RespondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"materials": materials})
}

// UploadURLs handles POST /clients/:client_id/materials/urls: each
// url is captured by the orchestrator's headless-browser stage (spec
// §4.6).
func (h *MaterialHandlers) UploadURLs(c *gin.Context) {
	var req struct {
		URLs []string `json:"urls" binding:"required,min=1,dive,required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	clientID := c.Param("client_id")

	materials := make([]*model.Material, 0, len(req.URLs))
	for _, url := range req.URLs {
		m, err := h.orc.WebCapture(c.Request.Context(), clientID, url)
		if err != nil {
			middleware.RespondError(c, err)
			return
		}
		materials = append(materials, m)
	}
	c.JSON(http.StatusAccepted, gin.H{"materials": materials})
}

// ListMaterials handles GET /clients/:client_id/materials.
func (h *MaterialHandlers) ListMaterials(c *gin.Context) {
	clientID := c.Param("client_id")
	materials, err := h.store.ListMaterials(c.Request.Context(), clientID)
	if err != nil {
		middleware.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"materials": materials})
}

// GetMaterial handles GET /materials/:id.
func (h *MaterialHandlers) GetMaterial(c *gin.Context) {
	m, err := h.store.GetMaterial(c.Request.Context(), c.Param("id"))
	if err != nil {
		middleware.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, m)
}

// DeleteMaterial handles DELETE /materials/:id. It removes the
// material's stored artifacts first; if any removal fails it responds
// with an error and the record is kept.
func (h *MaterialHandlers) DeleteMaterial(c *gin.Context) {
	ctx := c.Request.Context()
	id := c.Param("id")

	m, err := h.store.GetMaterial(ctx, id)
	if err != nil {
		middleware.RespondError(c, err)
		return
	}
	for _, path := range []string{m.FilePath, m.FinalImagePath, m.OriginalPDFPath, m.TranslatedImagePath} {
		if path == "" {
			continue
		}
		if err := h.storage.DeleteFile(ctx, path); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "delete artifact: " + err.Error()})
			return
		}
	}
	if err := h.store.DeleteMaterial(ctx, id); err != nil {
		middleware.RespondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// TranslateMaterials handles POST /clients/:client_id/materials/translate.
// With no material_ids, every material belonging to the client is
// queued; ones that cannot legally start translation are skipped.
func (h *MaterialHandlers) TranslateMaterials(c *gin.Context) {
	ctx := c.Request.Context()
	clientID := c.Param("client_id")

	var req struct {
		MaterialIDs []string `json:"material_ids"`
	}
	_ = c.ShouldBindJSON(&req)

	ids := req.MaterialIDs
	if len(ids) == 0 {
		materials, err := h.store.ListMaterials(ctx, clientID)
		if err != nil {
			middleware.RespondError(c, err)
			return
		}
		for _, m := range materials {
			ids = append(ids, m.ID)
		}
	}

	started := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, err := h.orc.StartTranslation(ctx, id); err != nil {
			continue
		}
		started = append(started, id)
	}
	c.JSON(http.StatusAccepted, gin.H{"started": started})
}

// RecognizeEntitiesFast handles POST /materials/:id/entity-recognition/fast.
func (h *MaterialHandlers) RecognizeEntitiesFast(c *gin.Context) {
	h.recognizeEntities(c, model.EntityModeStandard)
}

// RecognizeEntitiesDeep handles POST /materials/:id/entity-recognition/deep.
func (h *MaterialHandlers) RecognizeEntitiesDeep(c *gin.Context) {
	h.recognizeEntities(c, model.EntityModeDeep)
}

func (h *MaterialHandlers) recognizeEntities(c *gin.Context, mode model.EntityMode) {
	m, err := h.orc.RecognizeEntities(c.Request.Context(), c.Param("id"), mode)
	if err != nil {
		middleware.RespondError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, m)
}

// ConfirmEntities handles POST /materials/:id/confirm-entities.
func (h *MaterialHandlers) ConfirmEntities(c *gin.Context) {
	var req struct {
		TranslationGuidance model.TranslationGuidance `json:"translationGuidance"`
		Entities            []map[string]interface{} `json:"entities"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	m, err := h.orc.ConfirmEntities(c.Request.Context(), c.Param("id"), model.EntityUserEdits{
		TranslationGuidance: req.TranslationGuidance,
		Entities:            req.Entities,
	})
	if err != nil {
		middleware.RespondError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, m)
}

// LLMTranslate handles POST /materials/:id/llm-translate.
func (h *MaterialHandlers) LLMTranslate(c *gin.Context) {
	m, err := h.orc.LLMTranslate(c.Request.Context(), c.Param("id"))
	if err != nil {
		middleware.RespondError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, m)
}

// Retranslate handles POST /materials/:id/retranslate.
func (h *MaterialHandlers) Retranslate(c *gin.Context) {
	m, err := h.orc.Retranslate(c.Request.Context(), c.Param("id"))
	if err != nil {
		middleware.RespondError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, m)
}

// Rotate handles POST /materials/:id/rotate.
func (h *MaterialHandlers) Rotate(c *gin.Context) {
	m, err := h.orc.Rotate(c.Request.Context(), c.Param("id"))
	if err != nil {
		middleware.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, m)
}

// Confirm handles POST /materials/:id/confirm.
func (h *MaterialHandlers) Confirm(c *gin.Context) {
	var req struct {
		TranslationType model.SelectedResult `json:"translation_type" binding:"required,oneof=api latex"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	m, err := h.orc.Confirm(c.Request.Context(), c.Param("id"), req.TranslationType)
	if err != nil {
		middleware.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, m)
}

// Unconfirm handles POST /materials/:id/unconfirm.
func (h *MaterialHandlers) Unconfirm(c *gin.Context) {
	m, err := h.orc.Unconfirm(c.Request.Context(), c.Param("id"))
	if err != nil {
		middleware.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, m)
}

// SaveRegions handles POST /materials/:id/save-regions.
func (h *MaterialHandlers) SaveRegions(c *gin.Context) {
	var req struct {
		Version int                  `json:"version" binding:"required"`
		Regions []model.EditedRegion `json:"regions" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	m, err := h.orc.SaveRegions(c.Request.Context(), c.Param("id"), req.Version, req.Regions)
	if err != nil {
		middleware.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, m)
}

// SaveFinalImage handles POST /materials/:id/save-final-image.
func (h *MaterialHandlers) SaveFinalImage(c *gin.Context) {
	ctx := c.Request.Context()
	id := c.Param("id")

	version := 0
	if v := c.PostForm("version"); v != "" {
		fmt.Sscanf(v, "%d", &version)
	}

	file, header, err := c.Request.FormFile("final_image")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing final_image: " + err.Error()})
		return
	}
	defer file.Close()

	raw, err := io.ReadAll(file)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "read final_image: " + err.Error()})
		return
	}

	contentType := header.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "image/jpeg"
	}

	m, err := h.orc.SaveFinalImage(ctx, id, version, raw, contentType)
	if err != nil {
		middleware.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, m)
}

// ExportClient handles GET /clients/:client_id/export.
func (h *MaterialHandlers) ExportClient(c *gin.Context) {
	ctx := c.Request.Context()
	clientID := c.Param("client_id")

	client, err := h.store.GetClient(ctx, clientID)
	if err != nil {
		middleware.RespondError(c, err)
		return
	}

	archive, filename, err := h.packager.ExportClient(ctx, client)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "export failed: " + err.Error()})
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, "application/zip", archive)
}
