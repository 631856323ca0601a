package result

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/Squarts/web/internal/store"

	"github.com/jung-kurt/gofpdf"
)

var ErrUnknownFormat = errors.New("unknown format")

type Lister interface {
	All(ctx context.Context) ([]store.Task, error)
}

type Exporter struct{ st Lister }

func NewExporter(st Lister) *Exporter { return &Exporter{st: st} }

type row struct {
	No          int    `json:"no"`
	ID          int64  `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Deadline    string `json:"deadline"`
	Complete    bool   `json:"complete"`
}

// ContentType maps an export format to its MIME type.
func ContentType(format string) string {
	switch strings.ToLower(format) {
	case "csv":
		return "text/csv"
	case "pdf":
		return "application/pdf"
	}
	return "application/json"
}

func (e *Exporter) Export(ctx context.Context, format string) ([]byte, error) {
	all, err := e.st.All(ctx)
	if err != nil {
		return nil, err
	}
	rows := make([]row, len(all))
	for i, t := range all {
		rows[i] = row{No: i + 1, ID: t.ID, Title: t.Title, Description: t.Description, Deadline: t.Deadline.String(), Complete: t.Complete}
	}
	switch strings.ToLower(format) {
	case "json":
		return json.MarshalIndent(rows, "", "  ")
	case "csv":
		var b strings.Builder
		w := csv.NewWriter(&b)
		_ = w.Write([]string{"no", "id", "title", "description", "deadline", "complete"})
		for _, r := range rows {
			_ = w.Write([]string{fmt.Sprint(r.No), fmt.Sprint(r.ID), r.Title, r.Description, r.Deadline, flag(r.Complete)})
		}
		w.Flush()
		if err := w.Error(); err != nil {
			return nil, err
		}
		return []byte(b.String()), nil
	case "pdf":
		return renderPDF(rows)
	default:
		return nil, fmt.Errorf("%w %s", ErrUnknownFormat, format)
	}
}

func renderPDF(rows []row) ([]byte, error) {
	pdf := gofpdf.New("L", "mm", "A4", "")
	pdf.AddPage()
	pdf.SetFont("Arial", "B", 14)
	pdf.Cell(40, 10, "Tasks")
	pdf.Ln(12)

	widths := []float64{12, 50, 110, 45, 25}
	pdf.SetFont("Arial", "B", 10)
	for i, h := range []string{"ID", "Title", "Description", "Deadline", "Complete"} {
		pdf.CellFormat(widths[i], 7, h, "1", 0, "C", false, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Arial", "", 10)
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	for _, r := range rows {
		cells := []string{fmt.Sprint(r.No), tr(r.Title), tr(r.Description), r.Deadline, flag(r.Complete)}
		for i, c := range cells {
			pdf.CellFormat(widths[i], 6, truncate(pdf, c, widths[i]), "1", 0, "L", false, 0, "")
		}
		pdf.Ln(-1)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// truncate shortens s until it fits in a cell of width w.
func truncate(pdf *gofpdf.Fpdf, s string, w float64) string {
	const pad = 2
	if pdf.GetStringWidth(s) <= w-pad {
		return s
	}
	for len(s) > 0 && pdf.GetStringWidth(s+"...") > w-pad {
		s = s[:len(s)-1]
	}
	return s + "..."
}

func flag(b bool) string {
	if b {
		return "1"
	}
	return "0"
}
