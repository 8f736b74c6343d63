// Package export 员工列表导出（CSV / PDF）
package export

import (
	"encoding/csv"
	"io"
	"time"

	"cadre-portal/internal/shared/model"
)

// 导出格式
const (
	FormatCSV = "csv"
	FormatPDF = "pdf"
)

// ContentType 返回格式对应的 MIME 类型
func ContentType(format string) string {
	switch format {
	case FormatCSV:
		return "text/csv; charset=utf-8"
	case FormatPDF:
		return "application/pdf"
	default:
		return "application/octet-stream"
	}
}

// column 一列：表头、取值函数、PDF 列宽（mm，0 表示不出现在 PDF 中）
type column struct {
	header string
	value  func(e *model.Employee, cadre string) string
	width  float64
}

// CadreNames cadre_id → 名称
type CadreNames map[string]string

func (n CadreNames) of(e *model.Employee) string {
	if e.CadreID == nil {
		return ""
	}
	return n[*e.CadreID]
}

func date(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format("2006-01-02")
}

var columns = []column{
	{"Employee ID", func(e *model.Employee, _ string) string { return e.EmployeeID }, 28},
	{"Name", func(e *model.Employee, _ string) string { return e.FullName() }, 45},
	{"Father Name", func(e *model.Employee, _ string) string { return e.FatherName }, 0},
	{"Gender", func(e *model.Employee, _ string) string { return e.Gender }, 0},
	{"Date of Birth", func(e *model.Employee, _ string) string { return date(e.DateOfBirth) }, 0},
	{"Date of Joining", func(e *model.Employee, _ string) string { return date(e.DateOfJoining) }, 24},
	{"Date of Retirement", func(e *model.Employee, _ string) string { return date(e.DateOfRetirement) }, 0},
	{"Designation", func(e *model.Employee, _ string) string { return e.Designation }, 40},
	{"Department", func(e *model.Employee, _ string) string { return e.Department }, 40},
	{"Cadre", func(_ *model.Employee, cadre string) string { return cadre }, 30},
	{"Pay Level", func(e *model.Employee, _ string) string { return e.PayLevel }, 0},
	{"Current Posting", func(e *model.Employee, _ string) string { return e.CurrentPosting }, 40},
	{"Place of Posting", func(e *model.Employee, _ string) string { return e.PlaceOfPosting }, 0},
	{"District", func(e *model.Employee, _ string) string { return e.District }, 0},
	{"State", func(e *model.Employee, _ string) string { return e.State }, 0},
	{"Mobile", func(e *model.Employee, _ string) string { return e.MobileNumber }, 30},
	{"Email", func(e *model.Employee, _ string) string { return e.Email }, 0},
	{"Category", func(e *model.Employee, _ string) string { return e.Category }, 0},
	{"Qualification", func(e *model.Employee, _ string) string { return e.Qualification }, 0},
	{"Home District", func(e *model.Employee, _ string) string { return e.HomeDistrict }, 0},
}

// WriteCSV 写出全部列（首行为表头）
func WriteCSV(w io.Writer, employees []*model.Employee, cadres CadreNames) error {
	cw := csv.NewWriter(w)

	header := make([]string, len(columns))
	for i, c := range columns {
		header[i] = c.header
	}
	if err := cw.Write(header); err != nil {
		return err
	}

	row := make([]string, len(columns))
	for _, e := range employees {
		cadre := cadres.of(e)
		for i, c := range columns {
			row[i] = c.value(e, cadre)
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
