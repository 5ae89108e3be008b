package report

import (
	"bytes"
	"strconv"
	"strings"
	"time"

	"github.com/jung-kurt/gofpdf"
)

// SavePDF renders the validation report into a printable PDF document with
// the manifest fingerprint embedded as a QR code.
func SavePDF(rep Report, lang Language, out string) error {
	t := NewTranslator(lang)
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetTitle(t.T("title"), true)
	pdf.SetAuthor("relctl", false)
	pdf.SetCreator("relctl", false)
	pdf.SetMargins(15, 20, 15)
	pdf.SetAutoPageBreak(true, 20)
	pdf.AddPage()

	addPDFTitle(pdf, t)
	addSummarySection(pdf, t, rep)
	addFingerprintSection(pdf, t, rep)
	addFindingsSection(pdf, t, rep.Findings)

	if pdf.Err() {
		return pdf.Error()
	}
	return pdf.OutputFileAndClose(out)
}

func addPDFTitle(pdf *gofpdf.Fpdf, t Translator) {
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.SetFont("Helvetica", "B", 18)
	pdf.Cell(0, 10, tr(t.T("title")))
	pdf.Ln(8)
	pdf.SetFont("Helvetica", "", 9)
	pdf.Cell(0, 6, tr(t.Format("generated", time.Now().UTC().Format(time.RFC3339))))
	pdf.Ln(10)
}

func addSummarySection(pdf *gofpdf.Fpdf, t Translator, rep Report) {
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.SetFont("Helvetica", "B", 12)
	pdf.Cell(0, 8, tr(t.T("summary")))
	pdf.Ln(8)

	signature := t.T("signature.valid")
	if !rep.SignatureValid {
		signature = t.T("signature.invalid")
	}
	strict := t.T("strict.off")
	if rep.Summary.Strict {
		strict = t.T("strict.on")
	}
	overall := t.T("fail")
	if rep.Summary.Pass {
		overall = t.T("pass")
	}

	pdf.SetFont("Helvetica", "", 11)
	items := []struct {
		label string
		value string
	}{
		{label: t.T("version"), value: emptyFallback(rep.Version, "-")},
		{label: t.T("signature"), value: signature},
		{label: t.T("missing"), value: strconv.Itoa(rep.Summary.Missing)},
		{label: t.T("mismatched"), value: strconv.Itoa(rep.Summary.Mismatched)},
		{label: t.T("extra"), value: strconv.Itoa(rep.Summary.Extra)},
		{label: t.T("strict"), value: strict},
		{label: t.T("overall"), value: overall},
	}
	for _, item := range items {
		pdf.CellFormat(60, 6, tr(item.label), "", 0, "L", false, 0, "")
		pdf.CellFormat(0, 6, tr(item.value), "", 1, "L", false, 0, "")
	}
	if rep.Error != "" {
		pdf.SetFont("Helvetica", "B", 10)
		pdf.CellFormat(60, 6, tr(t.T("error")), "", 0, "L", false, 0, "")
		pdf.SetFont("Helvetica", "", 10)
		pdf.MultiCell(0, 6, tr(rep.Error), "", "L", false)
	}
	pdf.Ln(4)
}

func addFingerprintSection(pdf *gofpdf.Fpdf, t Translator, rep Report) {
	if strings.TrimSpace(rep.Fingerprint) == "" {
		return
	}
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.SetFont("Helvetica", "B", 12)
	pdf.Cell(0, 8, tr(t.T("fingerprint")))
	pdf.Ln(8)
	pdf.SetFont("Courier", "", 9)
	pdf.MultiCell(0, 5, rep.Fingerprint, "", "L", false)
	pdf.Ln(2)

	png, err := FingerprintQR(rep.Fingerprint, 256)
	if err == nil {
		opts := gofpdf.ImageOptions{ImageType: "PNG"}
		pdf.RegisterImageOptionsReader("fingerprint-qr", opts, bytes.NewReader(png))
		x := pdf.GetX()
		y := pdf.GetY()
		pdf.ImageOptions("fingerprint-qr", x, y, 35, 35, false, opts, 0, "")
		pdf.SetY(y + 37)
		pdf.SetFont("Helvetica", "", 8)
		pdf.Cell(0, 5, tr(t.T("qr.caption")))
		pdf.Ln(8)
	}
}

func addFindingsSection(pdf *gofpdf.Fpdf, t Translator, findings []Finding) {
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.SetFont("Helvetica", "B", 12)
	pdf.Cell(0, 8, tr(t.T("findings")))
	pdf.Ln(9)

	if len(findings) == 0 {
		pdf.SetFont("Helvetica", "", 11)
		pdf.MultiCell(0, 6, tr(t.T("findings.none")), "", "L", false)
		return
	}

	headers := []string{t.T("col.severity"), t.T("col.path"), t.T("col.detail")}
	widths := []float64{30, 95, 55}

	pdf.SetFillColor(240, 240, 240)
	pdf.SetFont("Helvetica", "B", 10)
	for i, h := range headers {
		pdf.CellFormat(widths[i], 7, tr(h), "1", 0, "L", true, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Helvetica", "", 9)
	lineHeight := 5.0
	for _, f := range findings {
		values := []string{
			tr(severityLabel(t, f.Severity)),
			f.Path,
			tr(t.T("finding." + f.Kind)),
		}
		renderTableRow(pdf, widths, values, lineHeight)
	}
	pdf.Ln(4)
}

func renderTableRow(pdf *gofpdf.Fpdf, widths []float64, values []string, lineHeight float64) {
	xStart := pdf.GetX()
	yStart := pdf.GetY()
	maxLines := 1
	splitCols := make([][]string, len(values))
	for i, val := range values {
		text := strings.TrimSpace(val)
		if text == "" {
			text = "-"
		}
		lines := pdf.SplitText(text, widths[i]-2)
		if len(lines) == 0 {
			lines = []string{""}
		}
		splitCols[i] = lines
		if len(lines) > maxLines {
			maxLines = len(lines)
		}
	}
	rowHeight := float64(maxLines) * lineHeight
	x := xStart
	for i, lines := range splitCols {
		pdf.SetXY(x, yStart)
		cellText := strings.Join(lines, "\n")
		pdf.MultiCell(widths[i], lineHeight, cellText, "1", "L", false)
		x += widths[i]
	}
	pdf.SetXY(xStart, yStart+rowHeight)
}

func severityLabel(t Translator, severity string) string {
	switch severity {
	case "error":
		return t.T("severity.error")
	case "warning":
		return t.T("severity.warning")
	default:
		return severity
	}
}

func emptyFallback(val, fallback string) string {
	if strings.TrimSpace(val) == "" {
		return fallback
	}
	return val
}
