package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/alejo7774/crypto-tax-calculator-2025/src/logger"
	"github.com/alejo7774/crypto-tax-calculator-2025/src/models"
	"github.com/alejo7774/crypto-tax-calculator-2025/src/services"
	"github.com/alejo7774/crypto-tax-calculator-2025/src/utils"
)

type ReportHandler struct {
	reportService services.ReportService
}

func NewReportHandler(service services.ReportService) *ReportHandler {
	return &ReportHandler{
		reportService: service,
	}
}

// HandleGetReport serves the full tax report as JSON with ETag support so
// the frontend can poll cheaply.
func (h *ReportHandler) HandleGetReport(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		utils.SendJSONError(w, "authentication required or user ID not found in context", http.StatusUnauthorized)
		return
	}

	report, err := h.reportService.GetReport(userID)
	if err != nil {
		logger.L.Error("Error computing tax report", "userID", userID, "error", err)
		utils.SendJSONError(w, fmt.Sprintf("Error computing tax report for userID %d: %v", userID, err), http.StatusInternalServerError)
		return
	}

	// Normalize nils so the JSON shows empty collections, not null.
	if report.Disposals == nil {
		report.Disposals = []models.DisposalRecord{}
	}
	if report.Income == nil {
		report.Income = []models.IncomeRecord{}
	}
	if report.Holdings == nil {
		report.Holdings = make(map[string][]models.Lot)
	}

	currentETag, etagErr := utils.GenerateETag(report)
	if etagErr != nil {
		logger.L.Error("Failed to generate ETag for tax report", "userID", userID, "error", etagErr)
	}

	w.Header().Set("Cache-Control", "no-cache, private")

	if etagErr == nil && currentETag != "" {
		quotedETag := fmt.Sprintf("%q", currentETag)
		w.Header().Set("ETag", quotedETag)
		for _, clientETag := range strings.Split(r.Header.Get("If-None-Match"), ",") {
			if strings.TrimSpace(clientETag) == quotedETag {
				w.WriteHeader(http.StatusNotModified)
				return
			}
		}
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(report); err != nil {
		logger.L.Error("Error generating JSON response for tax report", "userID", userID, "error", err)
	}
}

// HandleDownloadReport streams the XLSX workbook.
func (h *ReportHandler) HandleDownloadReport(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		utils.SendJSONError(w, "authentication required or user ID not found in context", http.StatusUnauthorized)
		return
	}

	workbook, err := h.reportService.RenderSpreadsheet(userID)
	if err != nil {
		logger.L.Error("Error rendering spreadsheet", "userID", userID, "error", err)
		utils.SendJSONError(w, "Error generating spreadsheet report", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="crypto_tax_report.xlsx"`)
	w.Header().Set("Content-Length", fmt.Sprintf("%d", len(workbook)))
	if _, err := w.Write(workbook); err != nil {
		logger.L.Error("Error writing spreadsheet response", "userID", userID, "error", err)
	}
}
