package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Nachoram/plataforma-inmobiliaria-sub007/backend/middleware"
	"github.com/Nachoram/plataforma-inmobiliaria-sub007/backend/model"
	"github.com/Nachoram/plataforma-inmobiliaria-sub007/backend/pkg/logger"
	"github.com/Nachoram/plataforma-inmobiliaria-sub007/backend/service"
)

type ContractHandler struct {
	contracts *service.ContractService
	archive   *service.ArchiveService // optional
}

func NewContractHandler(contracts *service.ContractService, archive *service.ArchiveService) *ContractHandler {
	return &ContractHandler{
		contracts: contracts,
		archive:   archive,
	}
}

// respondError maps service errors to HTTP responses. Backend
// failures are logged and hidden behind a generic message.
func respondError(c *gin.Context, err error) {
	var (
		ite *service.InvalidTransitionError
		ve  *service.ValidationError
	)
	switch {
	case errors.Is(err, service.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Contract not found"})
	case errors.Is(err, service.ErrClauseNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Clause not found"})
	case errors.Is(err, service.ErrVersionConflict):
		c.JSON(http.StatusConflict, gin.H{"error": "Contract was modified by someone else. Reload and try again."})
	case errors.As(err, &ite):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": ite.Error()})
	case errors.As(err, &ve):
		c.JSON(http.StatusBadRequest, gin.H{"error": ve.Error()})
	default:
		logger.Error(c.Request.Context(), "contract request failed",
			"error", err,
			"path", c.Request.URL.Path,
		)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Error loading contract"})
	}
}

// loadScoped fetches a contract and enforces agency ownership. A
// contract from another agency is reported as not found.
func (h *ContractHandler) loadScoped(c *gin.Context) (*model.RentalContract, bool) {
	contract, err := h.contracts.Load(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return nil, false
	}
	if contract.Agency != middleware.GetAgency(c) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Contract not found"})
		return nil, false
	}
	return contract, true
}

// GetByApplication returns the application's contract, creating it
// from the default template on first access.
func (h *ContractHandler) GetByApplication(c *gin.Context) {
	agency := middleware.GetAgency(c)
	applicationID := c.Param("id")

	contract, err := h.contracts.LoadOrCreateByApplication(c.Request.Context(), applicationID, agency)
	if err != nil {
		respondError(c, err)
		return
	}
	if contract.Agency != agency {
		c.JSON(http.StatusNotFound, gin.H{"error": "Contract not found"})
		return
	}

	c.JSON(http.StatusOK, contract)
}

// Get returns a single contract
func (h *ContractHandler) Get(c *gin.Context) {
	contract, ok := h.loadScoped(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, contract)
}

type SaveContentRequest struct {
	Content model.ContractContent `json:"contract_content" binding:"required"`
	Notes   string                `json:"notes"`
	Version int                   `json:"version" binding:"required"`
}

// SaveContent replaces the contract content. The request must carry
// the version it was edited from; a stale version yields 409.
func (h *ContractHandler) SaveContent(c *gin.Context) {
	contract, ok := h.loadScoped(c)
	if !ok {
		return
	}

	var req SaveContentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: contract_content and version are required"})
		return
	}

	updated, err := h.contracts.SaveContent(c.Request.Context(), contract.ID, req.Content, req.Notes, req.Version)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, updated)
}

type UpdateStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

// UpdateStatus moves the contract along its lifecycle
func (h *ContractHandler) UpdateStatus(c *gin.Context) {
	contract, ok := h.loadScoped(c)
	if !ok {
		return
	}

	var req UpdateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: status is required"})
		return
	}

	updated, err := h.contracts.UpdateStatus(c.Request.Context(), contract.ID, req.Status, middleware.GetUsername(c))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, updated)
}

type ImportRequest struct {
	Text string `json:"text" binding:"required"`
}

// Import parses raw legal text and replaces the contract's clauses
// and content with the result.
func (h *ContractHandler) Import(c *gin.Context) {
	contract, ok := h.loadScoped(c)
	if !ok {
		return
	}

	var req ImportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: text is required"})
		return
	}

	updated, err := h.contracts.ImportFromN8n(c.Request.Context(), contract.ID, req.Text)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, updated)
}

// Sync regenerates the contract content from its clause set
func (h *ContractHandler) Sync(c *gin.Context) {
	contract, ok := h.loadScoped(c)
	if !ok {
		return
	}

	updated, err := h.contracts.SyncCanvasContent(c.Request.Context(), contract.ID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, updated)
}

type DetailsRequest struct {
	BrokerName string `json:"broker_name"`
	PaymentDay int    `json:"payment_day"`
}

// SetDetails stores the broker metadata for a contract
func (h *ContractHandler) SetDetails(c *gin.Context) {
	contract, ok := h.loadScoped(c)
	if !ok {
		return
	}

	var req DetailsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	details := model.ContractDetails{BrokerName: req.BrokerName, PaymentDay: req.PaymentDay}
	if err := h.contracts.SetDetails(c.Request.Context(), contract.ID, details); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Details saved"})
}

// ListClauses returns the contract's clauses in sort order
func (h *ContractHandler) ListClauses(c *gin.Context) {
	contract, ok := h.loadScoped(c)
	if !ok {
		return
	}

	clauses, err := h.contracts.Clauses(c.Request.Context(), contract.ID)
	if err != nil {
		respondError(c, err)
		return
	}
	if clauses == nil {
		clauses = []model.ContractClause{}
	}

	c.JSON(http.StatusOK, gin.H{"clauses": clauses})
}

type CreateClauseRequest struct {
	ClauseNumber  string `json:"clause_number"`
	ClauseTitle   string `json:"clause_title"`
	ClauseContent string `json:"clause_content"`
	CanvasSection string `json:"canvas_section"`
	SortOrder     int    `json:"sort_order"`
}

// CreateClause adds a manually entered clause to the contract
func (h *ContractHandler) CreateClause(c *gin.Context) {
	contract, ok := h.loadScoped(c)
	if !ok {
		return
	}

	var req CreateClauseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	clause, err := h.contracts.AddClause(c.Request.Context(), model.ContractClause{
		ContractID:    contract.ID,
		ClauseNumber:  req.ClauseNumber,
		ClauseTitle:   req.ClauseTitle,
		ClauseContent: req.ClauseContent,
		CanvasSection: req.CanvasSection,
		SortOrder:     req.SortOrder,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, clause)
}

// DeleteClause removes one clause from the contract
func (h *ContractHandler) DeleteClause(c *gin.Context) {
	contract, ok := h.loadScoped(c)
	if !ok {
		return
	}

	if err := h.contracts.RemoveClause(c.Request.Context(), contract.ID, c.Param("clauseId")); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Clause deleted"})
}

// Archive uploads a snapshot of the contract's current version to
// object storage and returns a presigned download URL.
func (h *ContractHandler) Archive(c *gin.Context) {
	if h.archive == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Contract archive is not configured"})
		return
	}

	contract, ok := h.loadScoped(c)
	if !ok {
		return
	}

	objectName, err := h.archive.ArchiveContract(c.Request.Context(), contract)
	if err != nil {
		respondError(c, err)
		return
	}

	url, err := h.archive.DownloadURL(c.Request.Context(), objectName)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"object":  objectName,
		"url":     url,
		"version": contract.Version,
	})
}
