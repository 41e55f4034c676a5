package services

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/fenilmodi00/ipo-admin/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestRenderWorkbookLayout(t *testing.T) {
	rows := []models.IPOTableRow{{
		CompanyName:      "TechCorp",
		IPOType:          models.IPOTypeMainboard,
		Status:           models.StatusOpen,
		OpenDate:         time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC),
		LotSize:          100,
		LotPrice:         15000,
		GMP:              50,
		EstimatedProfit:  5000,
		GainPercentLabel: "33.33%",
		RegistrarName:    "Link Intime",
	}}

	content, err := RenderWorkbook("MAINBOARD IPOs", rows, fixedNow)
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(content))
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{exportSheet}, f.GetSheetList())
	title, _ := f.GetCellValue(exportSheet, "A1")
	assert.Equal(t, "MAINBOARD IPOs", title)
	generated, _ := f.GetCellValue(exportSheet, "A2")
	assert.Equal(t, "Generated: 2024-03-15 09:30:00", generated)

	header, _ := f.GetRows(exportSheet)
	require.Len(t, header, exportHeaderRow+1)
	assert.Equal(t, "Company", header[exportHeaderRow-1][0])
	assert.Len(t, header[exportHeaderRow-1], len(exportColumns))

	data := header[exportHeaderRow]
	assert.Equal(t, "TechCorp", data[0])
	assert.Equal(t, "2024-01-05", data[3])
	assert.Equal(t, "", data[4], "zero dates are left blank")
	assert.Equal(t, "5000", data[10])
	assert.Equal(t, "Link Intime", data[14])
}

func TestExportCategoryIgnoresPaging(t *testing.T) {
	fb := newFakeBackend(t)
	fb.reply("GET", "/api/v1/sme-ipos", 200, `[{"_id":"1","companyName":"One Ltd"},{"_id":"2","companyName":"Two Ltd"},{"_id":"3","companyName":"Three Ltd"}]`)
	exporter := NewExportService(NewCachedIPOService(newTestIPOService(fb), NewCacheService()))
	exporter.now = func() time.Time { return fixedNow }

	export, err := exporter.ExportCategory(context.Background(), ResourceSME, TableQuery{Page: 2, Limit: 1, Sort: "companyName"})
	require.NoError(t, err)
	assert.Equal(t, 3, export.Rows)
	assert.Equal(t, "sme-ipos-20240315-093000.xlsx", export.Filename)
	assert.True(t, strings.HasPrefix(string(export.Content), "PK"), "xlsx is a zip archive")
}
