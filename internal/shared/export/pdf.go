package export

import (
	"fmt"
	"io"
	"time"

	"github.com/go-pdf/fpdf"

	"cadre-portal/internal/shared/model"
)

const (
	pdfRowHeight  = 7.0
	pdfFontFamily = "Helvetica"
)

// PDFOptions PDF 页眉信息
type PDFOptions struct {
	Title       string
	GeneratedAt time.Time
}

// WritePDF 以横向 A4 表格写出员工列表（只包含 width > 0 的列）
func WritePDF(w io.Writer, employees []*model.Employee, cadres CadreNames, opts PDFOptions) error {
	if opts.Title == "" {
		opts.Title = "Employee Records"
	}
	if opts.GeneratedAt.IsZero() {
		opts.GeneratedAt = time.Now()
	}

	var cols []column
	for _, c := range columns {
		if c.width > 0 {
			cols = append(cols, c)
		}
	}

	pdf := fpdf.New("L", "mm", "A4", "")
	pdf.SetTitle(opts.Title, true)
	pdf.SetCreationDate(opts.GeneratedAt)
	pdf.SetAutoPageBreak(true, 15)
	pdf.AliasNbPages("")
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	header := func() {
		pdf.SetFont(pdfFontFamily, "B", 9)
		pdf.SetFillColor(230, 230, 230)
		for _, c := range cols {
			pdf.CellFormat(c.width, pdfRowHeight, c.header, "1", 0, "L", true, 0, "")
		}
		pdf.Ln(-1)
		pdf.SetFont(pdfFontFamily, "", 8)
	}

	pdf.SetHeaderFunc(func() {
		pdf.SetFont(pdfFontFamily, "B", 14)
		pdf.CellFormat(0, 10, tr(opts.Title), "", 1, "L", false, 0, "")
		pdf.SetFont(pdfFontFamily, "", 8)
		pdf.CellFormat(0, 5, fmt.Sprintf("Generated %s  |  %d records",
			opts.GeneratedAt.UTC().Format("2006-01-02 15:04 MST"), len(employees)), "", 1, "L", false, 0, "")
		pdf.Ln(2)
		header()
	})
	pdf.SetFooterFunc(func() {
		pdf.SetY(-12)
		pdf.SetFont(pdfFontFamily, "I", 8)
		pdf.CellFormat(0, 8, fmt.Sprintf("Page %d/{nb}", pdf.PageNo()), "", 0, "C", false, 0, "")
	})

	pdf.AddPage()
	for _, e := range employees {
		cadre := cadres.of(e)
		for _, c := range cols {
			text := fitText(pdf, tr(c.value(e, cadre)), c.width-2)
			pdf.CellFormat(c.width, pdfRowHeight, text, "1", 0, "L", false, 0, "")
		}
		pdf.Ln(-1)
	}
	if len(employees) == 0 {
		pdf.CellFormat(0, pdfRowHeight, "No records", "1", 1, "C", false, 0, "")
	}

	return pdf.Output(w)
}

// fitText 截断超出列宽的文本（s 已转换为单字节编码，按字节截断）
func fitText(pdf *fpdf.Fpdf, s string, width float64) string {
	if pdf.GetStringWidth(s) <= width {
		return s
	}
	const ellipsis = "..."
	for len(s) > 0 && pdf.GetStringWidth(s+ellipsis) > width {
		s = s[:len(s)-1]
	}
	return s + ellipsis
}
