package server

import (
	"errors"
	"fmt"
	"math"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/ArcInvoice/ArcInvoiceServer/internal/faucet"
)

type claimRequest struct {
	Address string `json:"address"`
}

func (s *Server) handleFaucetClaim(c *gin.Context) {
	var req claimRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Address == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "address is required"})
		return
	}

	result, err := s.arbiter.SubmitClaim(c.Request.Context(), req.Address, c.ClientIP())
	if err != nil {
		s.writeClaimError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"txHash":  result.TxHash,
		"message": fmt.Sprintf("Sent %s test tokens to your wallet", result.Amount),
	})
}

func (s *Server) writeClaimError(c *gin.Context, err error) {
	var cooldown *faucet.CooldownError
	var transfer *faucet.TransferError

	switch {
	case errors.Is(err, faucet.ErrInvalidAddress):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid wallet address"})
	case errors.As(err, &cooldown):
		hours := int(math.Ceil(cooldown.RetryAfter.Hours()))
		c.JSON(http.StatusTooManyRequests, gin.H{
			"error":      fmt.Sprintf("You already claimed recently. Try again in about %d hour(s).", hours),
			"waitTimeMs": cooldown.RetryAfter.Milliseconds(),
		})
	case errors.Is(err, faucet.ErrServiceUnavailable), errors.Is(err, faucet.ErrInsufficientFunds):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Faucet is temporarily unavailable. Please try again later."})
	case errors.As(err, &transfer):
		s.logger.Printf("faucet transfer failed: %v", transfer.Cause)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Something went wrong sending tokens. Please try again."})
	default:
		s.logger.Printf("unexpected faucet error: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Something went wrong. Please try again."})
	}
}

func (s *Server) handleFaucetCheck(c *gin.Context) {
	address := c.Query("address")
	if address == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "address is required"})
		return
	}

	decision, err := s.arbiter.Check(c.Request.Context(), address)
	if err != nil {
		if errors.Is(err, faucet.ErrInvalidAddress) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid wallet address"})
			return
		}
		s.logger.Printf("eligibility check failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Something went wrong"})
		return
	}

	waitMs := int64(0)
	if !decision.Eligible {
		waitMs = decision.RetryAfter.Round(time.Millisecond).Milliseconds()
	}
	c.JSON(http.StatusOK, gin.H{
		"canClaim":   decision.Eligible,
		"waitTimeMs": waitMs,
	})
}

// handleFaucetStats never errors: on any store failure it reports zeros so
// the SPA's stats widget keeps rendering.
func (s *Server) handleFaucetStats(c *gin.Context) {
	stats, err := s.claims.Stats(c.Request.Context())
	if err != nil {
		s.logger.Printf("stats query failed: %v", err)
	}
	c.JSON(http.StatusOK, stats)
}

func (s *Server) handleFaucetHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"enabled":           s.arbiter.Enabled(),
		"faucetAddress":     s.arbiter.FaucetAddress(),
		"reconciliationGap": s.arbiter.ReconciliationGap(),
	})
}
