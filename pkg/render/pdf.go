package render

import (
	"fmt"
	"io"

	"github.com/go-pdf/fpdf"
)

// Page geometry in millimetres.
const (
	pageMargin   = 18.0
	lineHeight   = 5.5
	indentStep   = 6.0
	headingSize  = 13.0
	subheadSize  = 11.0
	bodySize     = 10.0
	footerOffset = -12.0
)

// RenderPDF writes the report as an A4 PDF.
func RenderPDF(w io.Writer, r *Report) error {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(pageMargin, pageMargin, pageMargin)
	pdf.SetAutoPageBreak(true, pageMargin)
	pdf.SetTitle(r.Title, true)
	pdf.SetCreator("vaforge", true)

	// Core fonts are cp1252; model output is UTF-8.
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	pdf.SetFooterFunc(func() {
		pdf.SetY(footerOffset)
		pdf.SetFont("Helvetica", "I", 8)
		pdf.SetTextColor(120, 120, 120)
		pdf.CellFormat(0, 8, fmt.Sprintf("%s  |  page %d", r.GeneratedAt.Format("2006-01-02"), pdf.PageNo()), "", 0, "C", false, 0, "")
	})
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 18)
	pdf.SetTextColor(20, 40, 80)
	pdf.MultiCell(0, 9, tr(r.Title), "", "L", false)
	pdf.Ln(2)

	for _, s := range r.Sections {
		writeSection(pdf, tr, s, 0)
	}

	if err := pdf.Error(); err != nil {
		return fmt.Errorf("failed to lay out report: %w", err)
	}
	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	return nil
}

func writeSection(pdf *fpdf.Fpdf, tr func(string) string, s Section, depth int) {
	indent := float64(depth) * indentStep
	left := pageMargin + indent

	pdf.Ln(2)
	pdf.SetX(left)
	size := headingSize
	if depth > 0 {
		size = subheadSize
	}
	pdf.SetFont("Helvetica", "B", size)
	pdf.SetTextColor(20, 40, 80)
	pdf.MultiCell(0, lineHeight+1, tr(s.Heading), "", "L", false)

	pdf.SetFont("Helvetica", "", bodySize)
	pdf.SetTextColor(30, 30, 30)
	for _, p := range s.Paragraphs {
		pdf.SetX(left)
		pdf.MultiCell(0, lineHeight, tr(p), "", "L", false)
		pdf.Ln(1)
	}
	for _, f := range s.Fields {
		pdf.SetX(left)
		pdf.SetFont("Helvetica", "B", bodySize)
		label := tr(f.Label + ": ")
		pdf.CellFormat(pdf.GetStringWidth(label), lineHeight, label, "", 0, "L", false, 0, "")
		pdf.SetFont("Helvetica", "", bodySize)
		pdf.MultiCell(0, lineHeight, tr(f.Value), "", "L", false)
	}
	for _, b := range s.Bullets {
		pdf.SetX(left + 2)
		pdf.CellFormat(4, lineHeight, tr("•"), "", 0, "L", false, 0, "")
		pdf.MultiCell(0, lineHeight, tr(b), "", "L", false)
	}
	for _, sub := range s.Subsections {
		writeSection(pdf, tr, sub, depth+1)
	}
}
