package export

import (
	"bytes"
	"fmt"
	"strconv"

	"github.com/xuri/excelize/v2"

	"facebook-video-server/pkg/models"
)

const sheetName = "Extractions"

// HistoryWorkbook renders extraction history as an xlsx workbook.
func HistoryWorkbook(records []models.ExtractionRecord) (*bytes.Buffer, error) {
	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(sheetName)
	if err != nil {
		return nil, fmt.Errorf("error creating sheet: %w", err)
	}
	f.SetActiveSheet(index)
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return nil, fmt.Errorf("error removing default sheet: %w", err)
	}

	headers := []string{"ID", "URL", "Title", "Strategy", "Best Quality", "Formats", "Auth", "Duration (ms)", "Extracted At"}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(sheetName, cell, h); err != nil {
			return nil, fmt.Errorf("error writing header: %w", err)
		}
	}

	for row, rec := range records {
		values := []interface{}{
			rec.ID,
			rec.URL,
			rec.Title,
			rec.Strategy,
			rec.BestQuality,
			rec.FormatCount,
			strconv.FormatBool(rec.AuthMode),
			rec.DurationMS,
			rec.CreatedAt.Format("2006-01-02 15:04:05"),
		}
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row+2)
			if err := f.SetCellValue(sheetName, cell, v); err != nil {
				return nil, fmt.Errorf("error writing row %d: %w", row+1, err)
			}
		}
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, fmt.Errorf("error encoding workbook: %w", err)
	}
	return &buf, nil
}
