package handlers

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/xuri/excelize/v2"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// ExportKeysExcel downloads the current key board as a spreadsheet.
func (a *API) ExportKeysExcel(c *gin.Context) {
	views, err := a.Engine.ListKeyViews(c.Request.Context())
	if err != nil {
		a.respondError(c, err)
		return
	}

	f := excelize.NewFile()
	sheet := "Keys"
	f.SetSheetName("Sheet1", sheet)

	headers := []string{"StockNumber", "Vin", "Make", "Model", "Year", "Status", "AlertTier", "ElapsedMinutes", "Attention", "PdiStatus", "HeldBy"}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(sheet, cell, h)
	}

	for i, view := range views {
		row := i + 2
		heldBy := ""
		if view.OpenSession != nil {
			heldBy = view.OpenSession.UserName
		}
		values := []interface{}{
			view.Key.StockNumber,
			view.Key.Vin,
			view.Key.Make,
			view.Key.Model,
			view.Key.Year,
			string(view.Status),
			string(view.AlertTier),
			view.ElapsedMinutes,
			string(view.Key.AttentionStatus),
			string(view.Key.PdiStatus),
			heldBy,
		}
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row)
			f.SetCellValue(sheet, cell, v)
		}
	}

	filename := fmt.Sprintf("keys_%s.xlsx", time.Now().Format("2006-01-02"))
	c.Header("Content-Type", xlsxContentType)
	c.Header("Content-Disposition", "attachment; filename="+filename)
	if err := f.Write(c.Writer); err != nil {
		c.String(http.StatusInternalServerError, "failed to write file")
	}
}

// ExportHistoryExcel downloads the audit trail, optionally for one key.
func (a *API) ExportHistoryExcel(c *gin.Context) {
	history, err := a.Engine.KeyHistory(c.Request.Context(), c.Query("key_id"), 0)
	if err != nil {
		a.respondError(c, err)
		return
	}

	f := excelize.NewFile()
	sheet := "History"
	f.SetSheetName("Sheet1", sheet)

	headers := []string{"Time", "KeyId", "Action", "User", "Reason", "Bay", "DurationMinutes", "Notes"}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(sheet, cell, h)
	}

	for i, entry := range history {
		row := i + 2
		duration := ""
		if entry.DurationMinutes != nil {
			duration = fmt.Sprint(*entry.DurationMinutes)
		}
		values := []interface{}{
			entry.CreatedAt.Format(time.RFC3339),
			entry.KeyId,
			string(entry.Action),
			entry.UserName,
			entry.Reason,
			entry.Bay,
			duration,
			entry.Notes,
		}
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row)
			f.SetCellValue(sheet, cell, v)
		}
	}

	filename := fmt.Sprintf("key_history_%s.xlsx", time.Now().Format("2006-01-02"))
	c.Header("Content-Type", xlsxContentType)
	c.Header("Content-Disposition", "attachment; filename="+filename)
	if err := f.Write(c.Writer); err != nil {
		c.String(http.StatusInternalServerError, "failed to write file")
	}
}
