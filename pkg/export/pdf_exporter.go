package export

import (
	"bytes"
	"fmt"

	"github.com/jung-kurt/gofpdf"
)

const (
	pdfTableWidth   = 190.0
	pdfHeaderHeight = 8
	pdfRowHeight    = 7
)

// PDFExporter renders a dataset as a single-table portrait A4 document,
// the printable counterpart of the CSV export.
type PDFExporter struct{}

// NewPDFExporter constructs a PDF exporter.
func NewPDFExporter() *PDFExporter {
	return &PDFExporter{}
}

// Render draws the title, a bold header row and one bordered row per entry.
// Long rosters flow onto extra pages automatically.
func (e *PDFExporter) Render(data Dataset, title string) ([]byte, error) {
	if len(data.Headers) == 0 {
		return nil, fmt.Errorf("pdf requires at least one header")
	}

	doc := gofpdf.New("P", "mm", "A4", "")
	doc.SetMargins(10, 15, 10)
	doc.SetAutoPageBreak(true, 15)
	doc.AddPage()

	if title != "" {
		doc.SetFont("Arial", "B", 14)
		doc.CellFormat(0, 10, title, "", 1, "C", false, 0, "")
		doc.Ln(4)
	}

	colWidth := pdfTableWidth / float64(len(data.Headers))

	doc.SetFont("Arial", "B", 10)
	for _, header := range data.Headers {
		doc.CellFormat(colWidth, pdfHeaderHeight, header, "1", 0, "C", false, 0, "")
	}
	doc.Ln(-1)

	doc.SetFont("Arial", "", 9)
	for _, row := range data.Rows {
		for _, cell := range data.recordFor(row) {
			doc.CellFormat(colWidth, pdfRowHeight, cell, "1", 0, "", false, 0, "")
		}
		doc.Ln(-1)
	}

	doc.Ln(4)
	doc.SetFont("Arial", "I", 8)
	doc.CellFormat(0, 6, fmt.Sprintf("%d enrolled", len(data.Rows)), "", 1, "R", false, 0, "")

	var buf bytes.Buffer
	if err := doc.Output(&buf); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return buf.Bytes(), nil
}
