package server

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/ArcInvoice/ArcInvoiceServer/internal/models"
	"github.com/ArcInvoice/ArcInvoiceServer/internal/store"
)

type createInvoiceRequest struct {
	Creator   string     `json:"creator" binding:"required"`
	Recipient string     `json:"recipient" binding:"required"`
	Title     string     `json:"title"`
	Amount    string     `json:"amount" binding:"required"`
	Token     string     `json:"token" binding:"required"`
	DueAt     *time.Time `json:"dueAt"`
}

func (s *Server) handleCreateInvoice(c *gin.Context) {
	var req createInvoiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	inv := &models.Invoice{
		ID:        uuid.NewString(),
		Creator:   req.Creator,
		Recipient: req.Recipient,
		Title:     req.Title,
		Amount:    req.Amount,
		Token:     req.Token,
		Status:    models.InvoiceStatusPending,
		CreatedAt: time.Now().UTC(),
		DueAt:     req.DueAt,
	}
	if err := s.invoices.Create(c.Request.Context(), inv); err != nil {
		s.logger.Printf("create invoice failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Could not create invoice"})
		return
	}
	c.JSON(http.StatusCreated, inv)
}

func (s *Server) handleGetInvoice(c *gin.Context) {
	inv, err := s.invoices.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.logger.Printf("get invoice failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Could not load invoice"})
		return
	}
	if inv == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Invoice not found"})
		return
	}
	c.JSON(http.StatusOK, inv)
}

func (s *Server) handleListInvoices(c *gin.Context) {
	creator := c.Query("creator")
	if creator == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "creator is required"})
		return
	}
	invoices, err := s.invoices.ListByCreator(c.Request.Context(), creator)
	if err != nil {
		s.logger.Printf("list invoices failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Could not load invoices"})
		return
	}
	c.JSON(http.StatusOK, invoices)
}

type payInvoiceRequest struct {
	TxHash string `json:"txHash" binding:"required"`
}

func (s *Server) handlePayInvoice(c *gin.Context) {
	var req payInvoiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "txHash is required"})
		return
	}

	id := c.Param("id")
	err := s.invoices.MarkPaid(c.Request.Context(), id, req.TxHash)
	if errors.Is(err, store.ErrInvoiceNotFound) {
		c.JSON(http.StatusConflict, gin.H{"error": "Invoice not found or already settled"})
		return
	}
	if err != nil {
		s.logger.Printf("pay invoice failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Could not update invoice"})
		return
	}

	s.hub.InvoicePaid(id, req.TxHash)
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (s *Server) handleExpireInvoice(c *gin.Context) {
	id := c.Param("id")
	err := s.invoices.MarkExpired(c.Request.Context(), id)
	if errors.Is(err, store.ErrInvoiceNotFound) {
		c.JSON(http.StatusConflict, gin.H{"error": "Invoice not found or already settled"})
		return
	}
	if err != nil {
		s.logger.Printf("expire invoice failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Could not update invoice"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}
