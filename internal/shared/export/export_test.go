package export

import (
	"bytes"
	"encoding/csv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cadre-portal/internal/shared/model"
)

func sampleEmployees() ([]*model.Employee, CadreNames) {
	cadreID := "c-1"
	joined := time.Date(2024, 6, 3, 0, 0, 0, 0, time.UTC)
	return []*model.Employee{
			{
				EmployeeID:    "2024/IAS/1",
				CadreID:       &cadreID,
				FirstName:     "Asha",
				MiddleName:    "K",
				LastName:      "Rao",
				DateOfJoining: &joined,
				Designation:   "Deputy Secretary, \"Revenue\"",
				Department:    "Revenue",
				Email:         "asha@example.com",
			},
			{EmployeeID: "2024/IAS/2", FirstName: "Vikram", Department: "Finance"},
		}, CadreNames{
			"c-1": "Indian Administrative Service",
		}
}

func TestWriteCSV(t *testing.T) {
	employees, cadres := sampleEmployees()

	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, employees, cadres))

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)

	assert.Equal(t, "Employee ID", records[0][0])
	assert.Len(t, records[0], len(columns))

	idx := func(h string) int {
		for i, v := range records[0] {
			if v == h {
				return i
			}
		}
		t.Fatalf("missing column %s", h)
		return -1
	}
	assert.Equal(t, "Asha K Rao", records[1][idx("Name")])
	assert.Equal(t, "2024-06-03", records[1][idx("Date of Joining")])
	assert.Equal(t, "Deputy Secretary, \"Revenue\"", records[1][idx("Designation")])
	assert.Equal(t, "Indian Administrative Service", records[1][idx("Cadre")])
	assert.Equal(t, "", records[2][idx("Cadre")])
	assert.Equal(t, "", records[2][idx("Date of Joining")])
}

func TestWriteCSV_Empty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, nil, nil))
	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	assert.Len(t, records, 1)
}

func TestWritePDF(t *testing.T) {
	employees, cadres := sampleEmployees()
	for i := 0; i < 60; i++ {
		employees = append(employees, &model.Employee{EmployeeID: "2024/IPS/9", FirstName: "Long name that will certainly be truncated in the table"})
	}

	var buf bytes.Buffer
	require.NoError(t, WritePDF(&buf, employees, cadres, PDFOptions{Title: "Cadre IAS"}))
	assert.True(t, bytes.HasPrefix(buf.Bytes(), []byte("%PDF-")))
	assert.Greater(t, buf.Len(), 1000)

	var empty bytes.Buffer
	require.NoError(t, WritePDF(&empty, nil, nil, PDFOptions{}))
	assert.True(t, bytes.HasPrefix(empty.Bytes(), []byte("%PDF-")))
}

func TestContentType(t *testing.T) {
	assert.Equal(t, "application/pdf", ContentType(FormatPDF))
	assert.Contains(t, ContentType(FormatCSV), "text/csv")
	assert.Equal(t, "application/octet-stream", ContentType("xlsx"))
}
