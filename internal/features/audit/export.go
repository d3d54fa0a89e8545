package audit

import (
	"context"
	"fmt"
	"time"

	"github.com/xuri/excelize/v2"
)

const exportBatchSize = 500

// ExportToExcel renders the audit trail of an entity (or of a whole entity
// type when entityID is empty) into an xlsx workbook and returns its bytes
// plus a suggested filename.
func (s *AuditServiceImpl) ExportToExcel(ctx context.Context, entityType, entityID string) ([]byte, string, error) {
	f := excelize.NewFile()
	defer f.Close()

	sheetName := "Audit Trail"
	index, err := f.NewSheet(sheetName)
	if err != nil {
		return nil, "", err
	}
	f.SetActiveSheet(index)
	f.DeleteSheet("Sheet1")

	headerStyle, _ := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#E0E0E0"}, Pattern: 1},
	})

	columns := []string{"Time", "Action", "Entity Type", "Entity ID", "Changed By", "Before", "After"}
	for i, col := range columns {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(sheetName, cell, col)
		f.SetCellStyle(sheetName, cell, cell, headerStyle)
	}

	row := 2
	for offset := int64(0); ; offset += exportBatchSize {
		entries, err := s.Repo.List(ctx, entityType, entityID, exportBatchSize, offset)
		if err != nil {
			return nil, "", err
		}
		if len(entries) == 0 {
			break
		}

		for _, entry := range entries {
			values := []interface{}{
				entry.ChangeTime.Format("2006-01-02 15:04:05"),
				string(entry.Action),
				entry.EntityType,
				entry.EntityID,
				entry.ChangedBy,
				entry.Before,
				entry.After,
			}
			for colIdx, val := range values {
				cell, _ := excelize.CoordinatesToCellName(colIdx+1, row)
				f.SetCellValue(sheetName, cell, val)
			}
			row++
		}

		if len(entries) < exportBatchSize {
			break
		}
	}

	for i := range columns {
		col, _ := excelize.ColumnNumberToName(i + 1)
		f.SetColWidth(sheetName, col, col, 18)
	}

	buffer, err := f.WriteToBuffer()
	if err != nil {
		return nil, "", err
	}

	filename := fmt.Sprintf("audit_%s_%s.xlsx", entityType, time.Now().Format("20060102_150405"))
	return buffer.Bytes(), filename, nil
}
