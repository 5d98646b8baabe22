package export

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"parserator/internal/domain"
)

const usageSheet = "Usage"

// WriteXLSX renders records as a single-sheet workbook.
func WriteXLSX(w io.Writer, records []domain.UsageRecord) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", usageSheet); err != nil {
		return fmt.Errorf("export.WriteXLSX: %w", err)
	}

	header := make([]interface{}, len(Columns))
	for i, c := range Columns {
		header[i] = c
	}
	if err := f.SetSheetRow(usageSheet, "A1", &header); err != nil {
		return fmt.Errorf("export.WriteXLSX: %w", err)
	}

	for i := range records {
		r := &records[i]
		keyID := ""
		if r.APIKeyID != nil {
			keyID = r.APIKeyID.String()
		}
		row := []interface{}{
			r.RequestID,
			keyID,
			r.StatusCode,
			r.TokensUsed,
			r.ProcessingTimeMs,
			r.Confidence,
			r.CreatedAt.UTC().Format("2006-01-02 15:04:05"),
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return fmt.Errorf("export.WriteXLSX: %w", err)
		}
		if err := f.SetSheetRow(usageSheet, cell, &row); err != nil {
			return fmt.Errorf("export.WriteXLSX: %w", err)
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("export.WriteXLSX: %w", err)
	}
	return nil
}
