package cmt

import (
	"bytes"
	"fmt"
	"time"

	"github.com/jung-kurt/gofpdf"
	"github.com/xuri/excelize/v2"
)

const (
	FormatExcel = "xlsx"
	FormatPDF   = "pdf"
)

// TrackerExporter renders the client-master-tracker listing for download.
type TrackerExporter interface {
	Export(format string, rows []TrackerRow) ([]byte, string, string, error)
}

type trackerExporter struct{}

func NewTrackerExporter() TrackerExporter {
	return &trackerExporter{}
}

func (e *trackerExporter) Export(format string, rows []TrackerRow) ([]byte, string, string, error) {
	timestamp := time.Now().Format("20060102_150405")

	switch format {
	case FormatExcel:
		data, err := e.exportExcel(rows)
		if err != nil {
			return nil, "", "", err
		}
		filename := fmt.Sprintf("client_master_tracker_%s.xlsx", timestamp)
		return data, filename, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", nil

	case FormatPDF:
		data, err := e.exportPDF(rows)
		if err != nil {
			return nil, "", "", err
		}
		filename := fmt.Sprintf("client_master_tracker_%s.pdf", timestamp)
		return data, filename, "application/pdf", nil

	default:
		return nil, "", "", fmt.Errorf("unsupported export format: %s", format)
	}
}

func (e *trackerExporter) exportExcel(rows []TrackerRow) ([]byte, error) {
	f := excelize.NewFile()
	sheetName := "Client Master Tracker"
	f.SetSheetName("Sheet1", sheetName)

	headers := []string{"Customer ID", "Customer Name", "Client Code", "Branches", "Applications", "Completed", "Pending"}
	for i, header := range headers {
		cell := fmt.Sprintf("%c1", 'A'+i)
		f.SetCellValue(sheetName, cell, header)
	}

	for i, r := range rows {
		row := i + 2
		f.SetCellValue(sheetName, fmt.Sprintf("A%d", row), r.CustomerID)
		f.SetCellValue(sheetName, fmt.Sprintf("B%d", row), r.CustomerName)
		f.SetCellValue(sheetName, fmt.Sprintf("C%d", row), r.ClientUniqueID)
		f.SetCellValue(sheetName, fmt.Sprintf("D%d", row), r.BranchCount)
		f.SetCellValue(sheetName, fmt.Sprintf("E%d", row), r.ApplicationCount)
		f.SetCellValue(sheetName, fmt.Sprintf("F%d", row), r.CompletedCount)
		f.SetCellValue(sheetName, fmt.Sprintf("G%d", row), r.PendingCount)
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (e *trackerExporter) exportPDF(rows []TrackerRow) ([]byte, error) {
	pdf := gofpdf.New("L", "mm", "A4", "")
	pdf.AddPage()
	pdf.SetFont("Arial", "B", 16)
	pdf.Cell(0, 10, "Client Master Tracker")
	pdf.Ln(20)

	pdf.SetFont("Arial", "B", 10)
	widths := []float64{25, 70, 35, 30, 35, 30, 30}
	headers := []string{"Customer ID", "Customer Name", "Client Code", "Branches", "Applications", "Completed", "Pending"}

	for i, h := range headers {
		pdf.CellFormat(widths[i], 7, h, "1", 0, "C", false, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Arial", "", 9)
	for _, r := range rows {
		name := r.CustomerName
		if len(name) > 40 {
			name = name[:37] + "..."
		}

		pdf.CellFormat(widths[0], 6, fmt.Sprint(r.CustomerID), "1", 0, "C", false, 0, "")
		pdf.CellFormat(widths[1], 6, name, "1", 0, "L", false, 0, "")
		pdf.CellFormat(widths[2], 6, r.ClientUniqueID, "1", 0, "C", false, 0, "")
		pdf.CellFormat(widths[3], 6, fmt.Sprint(r.BranchCount), "1", 0, "C", false, 0, "")
		pdf.CellFormat(widths[4], 6, fmt.Sprint(r.ApplicationCount), "1", 0, "C", false, 0, "")
		pdf.CellFormat(widths[5], 6, fmt.Sprint(r.CompletedCount), "1", 0, "C", false, 0, "")
		pdf.CellFormat(widths[6], 6, fmt.Sprint(r.PendingCount), "1", 0, "C", false, 0, "")
		pdf.Ln(-1)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
