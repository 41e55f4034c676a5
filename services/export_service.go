package services

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/fenilmodi00/ipo-admin/models"
	"github.com/fenilmodi00/ipo-admin/shared"
	"github.com/sirupsen/logrus"
	"github.com/xuri/excelize/v2"
)

// XLSXContentType is the media type of exported workbooks
const XLSXContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

const (
	exportSheet     = "IPOs"
	exportHeaderRow = 4
	exportDate      = "2006-01-02"
)

type exportColumn struct {
	Label string
	Width float64
	Value func(models.IPOTableRow) interface{}
}

var exportColumns = []exportColumn{
	{"Company", 32, func(r models.IPOTableRow) interface{} { return r.CompanyName }},
	{"Type", 12, func(r models.IPOTableRow) interface{} { return string(r.IPOType) }},
	{"Status", 12, func(r models.IPOTableRow) interface{} { return string(r.Status) }},
	{"Open Date", 14, func(r models.IPOTableRow) interface{} { return formatExportDate(r.OpenDate) }},
	{"Close Date", 14, func(r models.IPOTableRow) interface{} { return formatExportDate(r.CloseDate) }},
	{"Allotment Date", 14, func(r models.IPOTableRow) interface{} { return formatExportDate(r.AllotmentDate) }},
	{"Listing Date", 14, func(r models.IPOTableRow) interface{} { return formatExportDate(r.ListingDate) }},
	{"Lot Size", 10, func(r models.IPOTableRow) interface{} { return r.LotSize }},
	{"Lot Price", 12, func(r models.IPOTableRow) interface{} { return r.LotPrice }},
	{"GMP", 10, func(r models.IPOTableRow) interface{} { return r.GMP }},
	{"Est. Profit", 14, func(r models.IPOTableRow) interface{} { return r.EstimatedProfit }},
	{"Gain %", 10, func(r models.IPOTableRow) interface{} { return r.GainPercentLabel }},
	{"Subscription (x)", 16, func(r models.IPOTableRow) interface{} { return r.SubscriptionTotal }},
	{"Issue Size", 16, func(r models.IPOTableRow) interface{} { return r.IssueSize }},
	{"Registrar", 24, func(r models.IPOTableRow) interface{} { return r.RegistrarName }},
}

// Export is a rendered workbook
type Export struct {
	Filename string
	Content  []byte
	Rows     int
}

// ExportService writes IPO tables to xlsx workbooks
type ExportService struct {
	ipos   *CachedIPOService
	now    func() time.Time
	logger *logrus.Entry
}

// NewExportService creates an export service
func NewExportService(ipos *CachedIPOService) *ExportService {
	return &ExportService{
		ipos:   ipos,
		now:    time.Now,
		logger: logrus.WithField("component", "ExportService"),
	}
}

// ExportCategory renders every row of a category matching query. Paging of the
// query is ignored so the workbook holds the whole filtered table.
func (s *ExportService) ExportCategory(ctx context.Context, category Resource, query TableQuery) (Export, error) {
	query.Page = 0
	query.Limit = 0
	page, err := s.ipos.ListTable(ctx, category, query)
	if err != nil {
		return Export{}, err
	}

	now := s.now()
	content, err := RenderWorkbook(fmt.Sprintf("%s IPOs", strings.ToUpper(string(category))), page.Rows, now)
	if err != nil {
		return Export{}, shared.WrapError(err, shared.ErrorCategoryProcessing, "EXPORT_FAILED", "ExportService", "ExportCategory", false)
	}

	s.logger.WithFields(logrus.Fields{"category": category, "rows": len(page.Rows)}).Info("IPO table exported")
	return Export{
		Filename: fmt.Sprintf("%s-ipos-%s.xlsx", category, now.Format("20060102-150405")),
		Content:  content,
		Rows:     len(page.Rows),
	}, nil
}

// RenderWorkbook writes rows under a title and a styled header row
func RenderWorkbook(title string, rows []models.IPOTableRow, generatedAt time.Time) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", exportSheet); err != nil {
		return nil, err
	}

	titleStyle, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 16},
		Alignment: &excelize.Alignment{Horizontal: "left", Vertical: "center"},
	})
	if err != nil {
		return nil, err
	}
	f.SetCellValue(exportSheet, "A1", title)
	f.SetCellStyle(exportSheet, "A1", "A1", titleStyle)
	f.SetRowHeight(exportSheet, 1, 30)
	f.SetCellValue(exportSheet, "A2", fmt.Sprintf("Generated: %s", generatedAt.Format("2006-01-02 15:04:05")))

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Color: "FFFFFF"},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#4472C4"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
		Border:    cellBorder("000000"),
	})
	if err != nil {
		return nil, err
	}
	dataStyle, err := f.NewStyle(&excelize.Style{Border: cellBorder("CCCCCC")})
	if err != nil {
		return nil, err
	}

	for colIdx, column := range exportColumns {
		cell, _ := excelize.CoordinatesToCellName(colIdx+1, exportHeaderRow)
		f.SetCellValue(exportSheet, cell, column.Label)
		f.SetCellStyle(exportSheet, cell, cell, headerStyle)
		colName, _ := excelize.ColumnNumberToName(colIdx + 1)
		f.SetColWidth(exportSheet, colName, colName, column.Width)
	}

	for rowIdx, row := range rows {
		for colIdx, column := range exportColumns {
			cell, _ := excelize.CoordinatesToCellName(colIdx+1, exportHeaderRow+1+rowIdx)
			f.SetCellValue(exportSheet, cell, column.Value(row))
			f.SetCellStyle(exportSheet, cell, cell, dataStyle)
		}
	}

	if len(rows) > 0 {
		lastCell, _ := excelize.CoordinatesToCellName(len(exportColumns), exportHeaderRow+len(rows))
		if err := f.AutoFilter(exportSheet, "A"+fmt.Sprint(exportHeaderRow)+":"+lastCell, nil); err != nil {
			return nil, err
		}
	}

	var buffer bytes.Buffer
	if _, err := f.WriteTo(&buffer); err != nil {
		return nil, err
	}
	return buffer.Bytes(), nil
}

func cellBorder(color string) []excelize.Border {
	return []excelize.Border{
		{Type: "left", Color: color, Style: 1},
		{Type: "right", Color: color, Style: 1},
		{Type: "top", Color: color, Style: 1},
		{Type: "bottom", Color: color, Style: 1},
	}
}

func formatExportDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(exportDate)
}
