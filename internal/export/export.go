// Package export implements the Export Packager (G): given a client,
// it walks its confirmed materials and emits one zip archive
// containing original/translated file pairs and a manifest (spec
// §4.7).
package export

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/freedkr/moonshot-translate/internal/database"
	"github.com/freedkr/moonshot-translate/internal/model"
	"github.com/freedkr/moonshot-translate/internal/storage"
)

// Packager builds client export archives.
type Packager struct {
	store      database.MaterialStore
	storage    storage.StorageInterface
	translator NameTranslator
}

// NewPackager builds a Packager. A nil translator falls back to
// IdentityTranslator.
func NewPackager(store database.MaterialStore, storage storage.StorageInterface, translator NameTranslator) *Packager {
	if translator == nil {
		translator = IdentityTranslator{}
	}
	return &Packager{store: store, storage: storage, translator: translator}
}

type manifestEntry struct {
	Original   string
	Translated string
}

// ExportClient walks client's confirmed materials and returns the zip
// archive bytes plus its suggested filename
// ({client_name}_{YYYYMMDD_HHMM}.zip).
func (p *Packager) ExportClient(ctx context.Context, client *model.Client) ([]byte, string, error) {
	materials, err := p.store.ListMaterials(ctx, client.ID)
	if err != nil {
		return nil, "", fmt.Errorf("list materials: %w", err)
	}

	sessions := map[string][]*model.Material{}
	var standalone []*model.Material
	for _, m := range materials {
		if m.ProcessingStep != model.StepConfirmed {
			continue
		}
		if m.PDFSessionID != "" {
			sessions[m.PDFSessionID] = append(sessions[m.PDFSessionID], m)
		} else {
			standalone = append(standalone, m)
		}
	}

	buf := &bytes.Buffer{}
	zw := zip.NewWriter(buf)
	var manifest []manifestEntry

	for _, m := range standalone {
		entry, err := p.addStandalone(ctx, zw, m)
		if err != nil {
			log.Printf("export: skipping material %s: %v", m.ID, err)
			continue
		}
		manifest = append(manifest, entry)
	}

	sessionIDs := make([]string, 0, len(sessions))
	for id := range sessions {
		sessionIDs = append(sessionIDs, id)
	}
	sort.Strings(sessionIDs)
	for _, id := range sessionIDs {
		entry, err := p.addPDFSession(ctx, zw, sessions[id])
		if err != nil {
			log.Printf("export: skipping pdf session %s: %v", id, err)
			continue
		}
		manifest = append(manifest, entry)
	}

	if err := p.writeListManifest(zw, manifest); err != nil {
		return nil, "", err
	}
	if err := p.writeXLSXManifest(zw, manifest); err != nil {
		return nil, "", err
	}
	if err := zw.Close(); err != nil {
		return nil, "", fmt.Errorf("close archive: %w", err)
	}

	filename := fmt.Sprintf("%s_%s.zip", sanitize(client.Name), time.Now().Format("20060102_1504"))
	return buf.Bytes(), filename, nil
}

// addStandalone copies one non-PDF material's original and translated
// artifact into zw, named per spec §4.7's {name}_原文.* /
// {name}_translated.* convention.
func (p *Packager) addStandalone(ctx context.Context, zw *zip.Writer, m *model.Material) (manifestEntry, error) {
	originalPath := m.FilePath
	translatedPath := m.FinalImagePath
	if m.Kind == model.MaterialKindWebpage {
		originalPath = m.OriginalPDFPath
		translatedPath = m.TranslatedImagePath
	}
	if originalPath == "" {
		return manifestEntry{}, fmt.Errorf("material %s has no original file", m.ID)
	}

	sourceName := m.OriginalFilename
	if sourceName == "" {
		sourceName = filepath.Base(originalPath)
	}
	translatedBaseName := translatedName(ctx, p.translator, sourceName)

	if err := p.copyToZip(ctx, zw, originalPath, fmt.Sprintf("%s_原文%s", stripExt(sourceName), filepath.Ext(originalPath))); err != nil {
		return manifestEntry{}, err
	}

	entry := manifestEntry{Original: sourceName, Translated: translatedBaseName}
	if translatedPath == "" {
		log.Printf("export: material %s has no translated artifact yet", m.ID)
		return entry, nil
	}
	if err := p.copyToZip(ctx, zw, translatedPath, fmt.Sprintf("%s_translated%s", stripExt(translatedBaseName), filepath.Ext(translatedPath))); err != nil {
		return manifestEntry{}, err
	}
	return entry, nil
}

// addPDFSession writes the session's original PDF plus one PDF merged
// from each page's final composite image, in page order (spec §4.7;
// empty pages are skipped with a log warning rather than failing the
// whole session).
func (p *Packager) addPDFSession(ctx context.Context, zw *zip.Writer, pages []*model.Material) (manifestEntry, error) {
	sort.Slice(pages, func(i, j int) bool { return pages[i].PDFPageNumber < pages[j].PDFPageNumber })
	first := pages[0]

	sourceName := first.OriginalFilename
	if sourceName == "" {
		sourceName = filepath.Base(first.PDFOriginalFile)
	}
	translatedBaseName := translatedName(ctx, p.translator, sourceName)

	if first.PDFOriginalFile != "" {
		if err := p.copyToZip(ctx, zw, first.PDFOriginalFile, fmt.Sprintf("%s_原文.pdf", stripExt(sourceName))); err != nil {
			return manifestEntry{}, err
		}
	}

	tmpDir, err := os.MkdirTemp("", "export-pdf-*")
	if err != nil {
		return manifestEntry{}, fmt.Errorf("create temp dir: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	var imagePaths []string
	for _, page := range pages {
		if page.FinalImagePath == "" {
			log.Printf("export: pdf session %s page %d has no final image, skipping", first.PDFSessionID, page.PDFPageNumber)
			continue
		}
		localPath, err := p.downloadToTemp(ctx, tmpDir, page.FinalImagePath, page.PDFPageNumber)
		if err != nil {
			log.Printf("export: pdf session %s page %d: %v", first.PDFSessionID, page.PDFPageNumber, err)
			continue
		}
		imagePaths = append(imagePaths, localPath)
	}

	entry := manifestEntry{Original: sourceName, Translated: translatedBaseName}
	if len(imagePaths) == 0 {
		log.Printf("export: pdf session %s has no pages with final images", first.PDFSessionID)
		return entry, nil
	}

	mergedPath := filepath.Join(tmpDir, "merged.pdf")
	if err := mergeImagesToPDF(imagePaths, mergedPath); err != nil {
		return manifestEntry{}, err
	}
	merged, err := os.ReadFile(mergedPath)
	if err != nil {
		return manifestEntry{}, fmt.Errorf("read merged pdf: %w", err)
	}
	w, err := zw.Create(fmt.Sprintf("%s_translated.pdf", stripExt(translatedBaseName)))
	if err != nil {
		return manifestEntry{}, fmt.Errorf("create zip entry for merged pdf: %w", err)
	}
	if _, err := w.Write(merged); err != nil {
		return manifestEntry{}, fmt.Errorf("write merged pdf: %w", err)
	}
	return entry, nil
}

func (p *Packager) downloadToTemp(ctx context.Context, dir, objectName string, page int) (string, error) {
	r, err := p.storage.DownloadFile(ctx, objectName)
	if err != nil {
		return "", fmt.Errorf("download %s: %w", objectName, err)
	}
	defer r.Close()

	localPath := filepath.Join(dir, fmt.Sprintf("page-%04d%s", page, filepath.Ext(objectName)))
	f, err := os.Create(localPath)
	if err != nil {
		return "", fmt.Errorf("buffer %s: %w", objectName, err)
	}
	defer f.Close()
	if _, err := io.Copy(f, r); err != nil {
		return "", fmt.Errorf("buffer %s: %w", objectName, err)
	}
	return localPath, nil
}

func (p *Packager) copyToZip(ctx context.Context, zw *zip.Writer, objectName, entryName string) error {
	r, err := p.storage.DownloadFile(ctx, objectName)
	if err != nil {
		return fmt.Errorf("download %s: %w", objectName, err)
	}
	defer r.Close()

	w, err := zw.Create(entryName)
	if err != nil {
		return fmt.Errorf("create zip entry %s: %w", entryName, err)
	}
	if _, err := io.Copy(w, r); err != nil {
		return fmt.Errorf("write zip entry %s: %w", entryName, err)
	}
	return nil
}

// writeListManifest emits list.txt: original/translated name pairs
// separated by blank lines (spec §4.7).
func (p *Packager) writeListManifest(zw *zip.Writer, entries []manifestEntry) error {
	w, err := zw.Create("list.txt")
	if err != nil {
		return fmt.Errorf("create list.txt: %w", err)
	}
	for i, e := range entries {
		if i > 0 {
			fmt.Fprintln(w)
		}
		fmt.Fprintln(w, e.Original)
		fmt.Fprintln(w, e.Translated)
	}
	return nil
}

// writeXLSXManifest adds a spreadsheet counterpart to list.txt, giving
// the archive both a script-friendly and a human-friendly manifest.
func (p *Packager) writeXLSXManifest(zw *zip.Writer, entries []manifestEntry) error {
	f := excelize.NewFile()
	defer f.Close()

	const sheet = "Manifest"
	f.SetSheetName("Sheet1", sheet)
	f.SetCellValue(sheet, "A1", "Original")
	f.SetCellValue(sheet, "B1", "Translated")
	for i, e := range entries {
		row := i + 2
		f.SetCellValue(sheet, fmt.Sprintf("A%d", row), e.Original)
		f.SetCellValue(sheet, fmt.Sprintf("B%d", row), e.Translated)
	}

	out, err := f.WriteToBuffer()
	if err != nil {
		return fmt.Errorf("render manifest.xlsx: %w", err)
	}
	w, err := zw.Create("manifest.xlsx")
	if err != nil {
		return fmt.Errorf("create manifest.xlsx entry: %w", err)
	}
	if _, err := w.Write(out.Bytes()); err != nil {
		return fmt.Errorf("write manifest.xlsx: %w", err)
	}
	return nil
}

func stripExt(name string) string {
	return strings.TrimSuffix(name, filepath.Ext(name))
}

func sanitize(name string) string {
	replacer := strings.NewReplacer("/", "_", "\\", "_", " ", "_")
	return replacer.Replace(name)
}
