package export

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/freedkr/moonshot-translate/internal/model"
	"github.com/freedkr/moonshot-translate/internal/storage"
)

type fakeMaterialStore struct {
	materials []*model.Material
}

func (f *fakeMaterialStore) GetMaterial(ctx context.Context, id string) (*model.Material, error) {
	return nil, errors.New("not implemented")
}
func (f *fakeMaterialStore) ListMaterials(ctx context.Context, clientID string) ([]*model.Material, error) {
	return f.materials, nil
}
func (f *fakeMaterialStore) InsertMaterial(ctx context.Context, m *model.Material) error { return nil }
func (f *fakeMaterialStore) InsertMaterials(ctx context.Context, ms []*model.Material) error {
	return nil
}
func (f *fakeMaterialStore) UpdateMaterial(ctx context.Context, id string, expectedVersion int, mutate func(*model.Material)) (*model.Material, error) {
	return nil, errors.New("not implemented")
}
func (f *fakeMaterialStore) DeleteMaterial(ctx context.Context, id string) error { return nil }
func (f *fakeMaterialStore) PDFSiblings(ctx context.Context, pdfSessionID string) ([]*model.Material, error) {
	return nil, nil
}
func (f *fakeMaterialStore) UpdateSiblings(ctx context.Context, id string, fromSteps []model.ProcessingStep, mutate func(*model.Material)) ([]*model.Material, error) {
	return nil, nil
}
func (f *fakeMaterialStore) GetClient(ctx context.Context, id string) (*model.Client, error) {
	return nil, errors.New("not implemented")
}
func (f *fakeMaterialStore) ListClients(ctx context.Context, ownerID string) ([]*model.Client, error) {
	return nil, nil
}
func (f *fakeMaterialStore) InsertClient(ctx context.Context, c *model.Client) error { return nil }
func (f *fakeMaterialStore) UpdateClient(ctx context.Context, c *model.Client) error { return nil }
func (f *fakeMaterialStore) DeleteClient(ctx context.Context, id string) error       { return nil }

type fakeStorage struct {
	files map[string][]byte
}

func (f *fakeStorage) EnsureBucket(ctx context.Context) error { return nil }
func (f *fakeStorage) UploadFile(ctx context.Context, objectName string, reader io.Reader, size int64, contentType string) error {
	data, err := io.ReadAll(reader)
	if err != nil {
		return err
	}
	f.files[objectName] = data
	return nil
}
func (f *fakeStorage) DownloadFile(ctx context.Context, objectName string) (io.ReadCloser, error) {
	data, ok := f.files[objectName]
	if !ok {
		return nil, errors.New("not found: " + objectName)
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}
func (f *fakeStorage) DeleteFile(ctx context.Context, objectName string) error {
	delete(f.files, objectName)
	return nil
}
func (f *fakeStorage) GetFileInfo(ctx context.Context, objectName string) (*storage.FileInfo, error) {
	return nil, errors.New("not implemented")
}
func (f *fakeStorage) GeneratePresignedURL(ctx context.Context, objectName string, expires time.Duration) (string, error) {
	return "", errors.New("not implemented")
}
func (f *fakeStorage) ListFiles(ctx context.Context, prefix string) ([]*storage.FileInfo, error) {
	return nil, nil
}

func TestExportClient_SkipsUnconfirmedAndPackagesConfirmed(t *testing.T) {
	store := &fakeMaterialStore{
		materials: []*model.Material{
			{ID: "m1", ClientID: "c1", Kind: model.MaterialKindImage, OriginalFilename: "page.jpg", FilePath: "orig/m1.jpg", FinalImagePath: "final/m1.jpg", ProcessingStep: model.StepConfirmed},
			{ID: "m2", ClientID: "c1", Kind: model.MaterialKindImage, OriginalFilename: "draft.jpg", FilePath: "orig/m2.jpg", ProcessingStep: model.StepTranslated},
		},
	}
	storageFake := &fakeStorage{files: map[string][]byte{
		"orig/m1.jpg":  []byte("original-bytes"),
		"final/m1.jpg": []byte("final-bytes"),
	}}

	p := NewPackager(store, storageFake, nil)
	archive, filename, err := p.ExportClient(context.Background(), &model.Client{ID: "c1", Name: "Acme Corp"})
	require.NoError(t, err)
	assert.Contains(t, filename, "Acme_Corp_")
	assert.True(t, strings.HasSuffix(filename, ".zip"))

	zr, err := zip.NewReader(bytes.NewReader(archive), int64(len(archive)))
	require.NoError(t, err)

	names := map[string]bool{}
	for _, f := range zr.File {
		names[f.Name] = true
	}
	assert.True(t, names["page_原文.jpg"])
	assert.True(t, names["page_translated.jpg"])
	assert.True(t, names["list.txt"])
	assert.True(t, names["manifest.xlsx"])
	assert.False(t, names["draft_原文.jpg"], "unconfirmed material must not be exported")
}

func TestStripExtAndSanitize(t *testing.T) {
	assert.Equal(t, "page", stripExt("page.jpg"))
	assert.Equal(t, "Acme_Corp", sanitize("Acme Corp"))
}

func TestIdentityTranslator_ReturnsNameUnchanged(t *testing.T) {
	name, err := IdentityTranslator{}.Translate(context.Background(), "source.jpg")
	require.NoError(t, err)
	assert.Equal(t, "source.jpg", name)
}
