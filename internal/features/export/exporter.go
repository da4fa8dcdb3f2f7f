// Package export renders a fetched report body to csv or xlsx. The
// upstream backend owns export normally; this is the local fallback.
package export

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"time"

	common_models "go-helpdesk/internal/common/models"
	"go-helpdesk/internal/features/presenter"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

const (
	csvContentType  = "text/csv"
	xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

type Exporter struct {
	log *zap.Logger
}

func NewExporter(log *zap.Logger) *Exporter {
	return &Exporter{log: log}
}

// Render produces the export blob and its content type. Reports with
// no row-shaped section fall back to a two-column key/value layout of
// the summary.
func (e *Exporter) Render(r *common_models.Report, format string) ([]byte, string, error) {
	e.log.Debug("rendering report locally", zap.String("id", r.ID), zap.String("format", format))
	columns, rows := tabular(r)
	switch format {
	case "csv":
		data, err := renderCSV(columns, rows)
		return data, csvContentType, err
	case "excel":
		data, err := renderExcel(columns, rows)
		return data, xlsxContentType, err
	default:
		return nil, "", fmt.Errorf("unsupported format: %s", format)
	}
}

func tabular(r *common_models.Report) ([]string, []map[string]any) {
	columns, rows := presenter.TabularRows(r)
	if len(rows) > 0 {
		return columns, rows
	}
	// No detail rows: export the summary section instead
	summary := presenter.BuildDetail(r).Summary
	if len(summary) == 0 {
		return nil, nil
	}
	kvRows := make([]map[string]any, 0, len(summary))
	for _, kv := range summary {
		kvRows = append(kvRows, map[string]any{"metric": kv.Label, "value": kv.Value})
	}
	return []string{"metric", "value"}, kvRows
}

func cellString(val any) string {
	switch v := val.(type) {
	case nil:
		return ""
	case time.Time:
		return v.Format("2006-01-02 15:04:05")
	case map[string]any:
		if name, ok := v["name"]; ok {
			return fmt.Sprintf("%v", name)
		}
		return fmt.Sprintf("%v", v)
	default:
		return fmt.Sprintf("%v", v)
	}
}

func renderCSV(columns []string, rows []map[string]any) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	if err := writer.Write(columns); err != nil {
		return nil, err
	}
	for _, rec := range rows {
		row := make([]string, 0, len(columns))
		for _, col := range columns {
			row = append(row, cellString(rec[col]))
		}
		if err := writer.Write(row); err != nil {
			return nil, err
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func renderExcel(columns []string, rows []map[string]any) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	sheetName := "Report"
	index, err := f.NewSheet(sheetName)
	if err != nil {
		return nil, err
	}
	f.SetActiveSheet(index)

	headerStyle, _ := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#E0E0E0"}, Pattern: 1},
	})

	for i, col := range columns {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(sheetName, cell, col)
		f.SetCellStyle(sheetName, cell, cell, headerStyle)
	}

	for rowIdx, record := range rows {
		for colIdx, col := range columns {
			cell, _ := excelize.CoordinatesToCellName(colIdx+1, rowIdx+2)
			switch v := record[col].(type) {
			case time.Time:
				f.SetCellValue(sheetName, cell, v.Format("2006-01-02 15:04:05"))
			case map[string]any:
				f.SetCellValue(sheetName, cell, cellString(v))
			default:
				f.SetCellValue(sheetName, cell, v)
			}
		}
	}

	for i := range columns {
		col, _ := excelize.ColumnNumberToName(i + 1)
		f.SetColWidth(sheetName, col, col, 15)
	}

	buffer, err := f.WriteToBuffer()
	if err != nil {
		return nil, err
	}
	return buffer.Bytes(), nil
}
