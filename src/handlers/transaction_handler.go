package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/alejo7774/crypto-tax-calculator-2025/src/logger"
	"github.com/alejo7774/crypto-tax-calculator-2025/src/models"
	"github.com/alejo7774/crypto-tax-calculator-2025/src/services"
	"github.com/alejo7774/crypto-tax-calculator-2025/src/utils"
)

type TransactionHandler struct {
	reportService services.ReportService
}

func NewTransactionHandler(service services.ReportService) *TransactionHandler {
	return &TransactionHandler{
		reportService: service,
	}
}

func (h *TransactionHandler) HandleGetTransactions(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		utils.SendJSONError(w, "authentication required or user ID not found in context", http.StatusUnauthorized)
		return
	}

	transactions, err := h.reportService.GetTransactions(userID)
	if err != nil {
		utils.SendJSONError(w, fmt.Sprintf("Error querying transactions for userID %d: %v", userID, err), http.StatusInternalServerError)
		return
	}
	if transactions == nil {
		transactions = []models.Transaction{}
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(transactions); err != nil {
		logger.L.Error("Error generating JSON response for transactions", "userID", userID, "error", err)
	}
}

func (h *TransactionHandler) HandleDeleteAllTransactions(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		utils.SendJSONError(w, "authentication required or user ID not found in context", http.StatusUnauthorized)
		return
	}

	if err := h.reportService.DeleteAllTransactions(userID); err != nil {
		logger.L.Error("Error deleting transactions", "userID", userID, "error", err)
		utils.SendJSONError(w, "Error deleting transactions", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
