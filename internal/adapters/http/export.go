package httpadapter

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/saralhq/saral/internal/core/domain"
)

// exportDocuments streams the document library as an XLSX workbook.
func (rt *Router) exportDocuments(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	filter := domain.LibraryFilter{
		Query:    r.URL.Query().Get("query"),
		Category: domain.Category(r.URL.Query().Get("category")),
		Status:   domain.ProcessingStatus(r.URL.Query().Get("status")),
	}
	docs, err := rt.library.ListDocuments(r.Context(), filter)
	if err != nil {
		writeError(w, err)
		return
	}

	workbook, err := buildExportWorkbook(docs)
	if err != nil {
		writeError(w, err)
		return
	}
	defer workbook.Close()

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="documents.xlsx"`)
	if err := workbook.Write(w); err != nil {
		slog.Error("export_write_failed", "error", err)
	}
}

func buildExportWorkbook(docs []domain.Document) (*excelize.File, error) {
	f := excelize.NewFile()
	const sheet = "Documents"

	index, err := f.NewSheet(sheet)
	if err != nil {
		return nil, fmt.Errorf("create sheet: %w", err)
	}
	f.SetActiveSheet(index)
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return nil, fmt.Errorf("drop default sheet: %w", err)
	}

	headers := []string{"ID", "Title", "Category", "Status", "Language", "Summary", "Key Points", "Created"}
	for col, header := range headers {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return nil, fmt.Errorf("header cell: %w", err)
		}
		if err := f.SetCellValue(sheet, cell, header); err != nil {
			return nil, fmt.Errorf("set header: %w", err)
		}
	}

	for row, doc := range docs {
		values := []any{
			doc.ID,
			doc.Title,
			string(doc.Category),
			string(doc.Status),
			doc.Language.DisplayName(),
			doc.SimplifiedSummary,
			strings.Join(doc.KeyPoints, "; "),
			doc.CreatedAt.Format("2006-01-02 15:04"),
		}
		for col, value := range values {
			cell, err := excelize.CoordinatesToCellName(col+1, row+2)
			if err != nil {
				return nil, fmt.Errorf("data cell: %w", err)
			}
			if err := f.SetCellValue(sheet, cell, value); err != nil {
				return nil, fmt.Errorf("set cell: %w", err)
			}
		}
	}
	return f, nil
}
