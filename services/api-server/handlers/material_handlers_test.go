package handlers

import (
	"bytes"
	"context"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/freedkr/moonshot-translate/internal/config"
	"github.com/freedkr/moonshot-translate/internal/events"
	"github.com/freedkr/moonshot-translate/internal/imaging"
	"github.com/freedkr/moonshot-translate/internal/model"
	"github.com/freedkr/moonshot-translate/internal/pipeline"
	"github.com/freedkr/moonshot-translate/internal/storage"
)

type handlerFakeStore struct {
	materials map[string]*model.Material
	clients   map[string]*model.Client
}

func newHandlerFakeStore(materials ...*model.Material) *handlerFakeStore {
	s := &handlerFakeStore{materials: map[string]*model.Material{}, clients: map[string]*model.Client{}}
	for _, m := range materials {
		s.materials[m.ID] = m
	}
	return s
}

func (s *handlerFakeStore) GetMaterial(ctx context.Context, id string) (*model.Material, error) {
	m, ok := s.materials[id]
	if !ok {
		return nil, model.NewNotFound("material", id)
	}
	cp := *m
	return &cp, nil
}
func (s *handlerFakeStore) ListMaterials(ctx context.Context, clientID string) ([]*model.Material, error) {
	var out []*model.Material
	for _, m := range s.materials {
		if m.ClientID == clientID {
			out = append(out, m)
		}
	}
	return out, nil
}
func (s *handlerFakeStore) InsertMaterial(ctx context.Context, m *model.Material) error {
	s.materials[m.ID] = m
	return nil
}
func (s *handlerFakeStore) InsertMaterials(ctx context.Context, ms []*model.Material) error {
	for _, m := range ms {
		s.materials[m.ID] = m
	}
	return nil
}
func (s *handlerFakeStore) UpdateMaterial(ctx context.Context, id string, expectedVersion int, mutate func(*model.Material)) (*model.Material, error) {
	m, ok := s.materials[id]
	if !ok {
		return nil, model.NewNotFound("material", id)
	}
	if m.Version != expectedVersion {
		return nil, model.NewVersionConflict(id, expectedVersion)
	}
	mutate(m)
	m.Version++
	cp := *m
	return &cp, nil
}
func (s *handlerFakeStore) DeleteMaterial(ctx context.Context, id string) error {
	delete(s.materials, id)
	return nil
}
func (s *handlerFakeStore) PDFSiblings(ctx context.Context, pdfSessionID string) ([]*model.Material, error) {
	return nil, nil
}
func (s *handlerFakeStore) UpdateSiblings(ctx context.Context, id string, fromSteps []model.ProcessingStep, mutate func(*model.Material)) ([]*model.Material, error) {
	m, ok := s.materials[id]
	if !ok {
		return nil, model.NewNotFound("material", id)
	}
	mutate(m)
	m.Version++
	cp := *m
	return []*model.Material{&cp}, nil
}
func (s *handlerFakeStore) GetClient(ctx context.Context, id string) (*model.Client, error) {
	c, ok := s.clients[id]
	if !ok {
		return nil, model.NewNotFound("client", id)
	}
	return c, nil
}
func (s *handlerFakeStore) ListClients(ctx context.Context, ownerID string) ([]*model.Client, error) {
	return nil, nil
}
func (s *handlerFakeStore) InsertClient(ctx context.Context, c *model.Client) error {
	s.clients[c.ID] = c
	return nil
}
func (s *handlerFakeStore) UpdateClient(ctx context.Context, c *model.Client) error {
	s.clients[c.ID] = c
	return nil
}
func (s *handlerFakeStore) DeleteClient(ctx context.Context, id string) error {
	delete(s.clients, id)
	return nil
}

type handlerFakeStorage struct {
	files   map[string][]byte
	deleted []string
}

func newHandlerFakeStorage() *handlerFakeStorage {
	return &handlerFakeStorage{files: map[string][]byte{}}
}

func (f *handlerFakeStorage) EnsureBucket(ctx context.Context) error { return nil }
func (f *handlerFakeStorage) UploadFile(ctx context.Context, objectName string, reader io.Reader, size int64, contentType string) error {
	data, err := io.ReadAll(reader)
	if err != nil {
		return err
	}
	f.files[objectName] = data
	return nil
}
func (f *handlerFakeStorage) DownloadFile(ctx context.Context, objectName string) (io.ReadCloser, error) {
	data, ok := f.files[objectName]
	if !ok {
		return nil, errors.New("not found")
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}
func (f *handlerFakeStorage) DeleteFile(ctx context.Context, objectName string) error {
	f.deleted = append(f.deleted, objectName)
	delete(f.files, objectName)
	return nil
}
func (f *handlerFakeStorage) GetFileInfo(ctx context.Context, objectName string) (*storage.FileInfo, error) {
	return nil, errors.New("not implemented")
}
func (f *handlerFakeStorage) GeneratePresignedURL(ctx context.Context, objectName string, expires time.Duration) (string, error) {
	return "", errors.New("not implemented")
}
func (f *handlerFakeStorage) ListFiles(ctx context.Context, prefix string) ([]*storage.FileInfo, error) {
	return nil, nil
}

func newTestMaterialHandlers(store *handlerFakeStore, storageClient *handlerFakeStorage) *MaterialHandlers {
	orc := pipeline.NewOrchestrator(pipeline.Deps{
		Store:   store,
		Hub:     events.NewHub(),
		Pool:    pipeline.NewPool(context.Background(), 1, 1),
		Config:  config.PipelineConfig{OCRTimeout: time.Second, EntityTimeout: time.Second, LLMBatchTimeout: time.Second},
		Storage: storageClient,
	})
	return NewMaterialHandlers(orc, store, storageClient, nil, imaging.Bounds{MaxDimension: 2800, MaxBytes: 2097152})
}

func init() { gin.SetMode(gin.TestMode) }

func TestDeleteMaterial_RemovesStoredArtifactsThenRecord(t *testing.T) {
	m := &model.Material{ID: "m1", ClientID: "c1", FilePath: "materials/m1.jpg", FinalImagePath: "materials/m1_final.jpg"}
	store := newHandlerFakeStore(m)
	storageClient := newHandlerFakeStorage()
	storageClient.files["materials/m1.jpg"] = []byte("x")
	storageClient.files["materials/m1_final.jpg"] = []byte("y")
	h := newTestMaterialHandlers(store, storageClient)

	router := gin.New()
	router.DELETE("/materials/:id", h.DeleteMaterial)

	req := httptest.NewRequest(http.MethodDelete, "/materials/m1", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want %d, body=%s", rec.Code, http.StatusNoContent, rec.Body.String())
	}
	if _, ok := store.materials["m1"]; ok {
		t.Error("material record still present after delete")
	}
	if len(storageClient.deleted) != 2 {
		t.Errorf("deleted %d artifacts, want 2: %v", len(storageClient.deleted), storageClient.deleted)
	}
}

func TestConfirm_RejectsInvalidTranslationType(t *testing.T) {
	store := newHandlerFakeStore()
	h := newTestMaterialHandlers(store, newHandlerFakeStorage())

	router := gin.New()
	router.POST("/materials/:id/confirm", h.Confirm)

	req := httptest.NewRequest(http.MethodPost, "/materials/m1/confirm", bytes.NewBufferString(`{"translation_type":"bogus"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestSaveFinalImage_UploadsMultipartFile(t *testing.T) {
	m := &model.Material{ID: "m1", ClientID: "c1", Version: 0}
	store := newHandlerFakeStore(m)
	storageClient := newHandlerFakeStorage()
	h := newTestMaterialHandlers(store, storageClient)

	router := gin.New()
	router.POST("/materials/:id/save-final-image", h.SaveFinalImage)

	body := &bytes.Buffer{}
	w := multipart.NewWriter(body)
	w.WriteField("version", "0")
	part, _ := w.CreateFormFile("final_image", "final.jpg")
	part.Write([]byte("composited-bytes"))
	w.Close()

	req := httptest.NewRequest(http.MethodPost, "/materials/m1/save-final-image", body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d, body=%s", rec.Code, http.StatusOK, rec.Body.String())
	}
	if len(storageClient.files) != 1 {
		t.Errorf("expected exactly one stored artifact, got %d", len(storageClient.files))
	}
}

func TestListMaterials_ScopesToClientID(t *testing.T) {
	m1 := &model.Material{ID: "m1", ClientID: "c1"}
	m2 := &model.Material{ID: "m2", ClientID: "c2"}
	store := newHandlerFakeStore(m1, m2)
	h := newTestMaterialHandlers(store, newHandlerFakeStorage())

	router := gin.New()
	router.GET("/clients/:client_id/materials", h.ListMaterials)

	req := httptest.NewRequest(http.MethodGet, "/clients/c1/materials", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if bytes.Contains(rec.Body.Bytes(), []byte("m2")) {
		t.Errorf("response leaked material from another client: %s", rec.Body.String())
	}
}
