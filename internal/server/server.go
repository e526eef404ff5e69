package server

import (
	"context"
	"log"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/ArcInvoice/ArcInvoiceServer/internal/faucet"
	"github.com/ArcInvoice/ArcInvoiceServer/internal/store"
)

// ClaimArbiter is the faucet surface the HTTP layer depends on.
type ClaimArbiter interface {
	SubmitClaim(ctx context.Context, address, clientIP string) (faucet.ClaimResult, error)
	Check(ctx context.Context, address string) (faucet.Decision, error)
	Enabled() bool
	FaucetAddress() string
	ReconciliationGap() int64
}

// Server holds every dependency the handlers need. Dependencies are built
// once in main and injected here; handlers never reach into ambient state.
type Server struct {
	logger   *log.Logger
	arbiter  ClaimArbiter
	claims   store.ClaimStore
	invoices store.InvoiceStore
	hub      *Hub
}

func New(logger *log.Logger, arbiter ClaimArbiter, claims store.ClaimStore, invoices store.InvoiceStore, hub *Hub) *Server {
	return &Server{
		logger:   logger,
		arbiter:  arbiter,
		claims:   claims,
		invoices: invoices,
		hub:      hub,
	}
}

// Router builds the gin engine with CORS for the SPA origins. An empty
// origin list allows all origins (local development).
func (s *Server) Router(allowedOrigins []string) *gin.Engine {
	router := gin.Default()

	corsCfg := cors.DefaultConfig()
	if len(allowedOrigins) == 0 {
		corsCfg.AllowAllOrigins = true
	} else {
		corsCfg.AllowOrigins = allowedOrigins
	}
	corsCfg.AllowMethods = []string{"GET", "POST", "PATCH", "OPTIONS"}
	router.Use(cors.New(corsCfg))

	api := router.Group("/api")
	{
		api.POST("/faucet", s.handleFaucetClaim)
		api.GET("/faucet/check", s.handleFaucetCheck)
		api.GET("/faucet/stats", s.handleFaucetStats)
		api.GET("/faucet/health", s.handleFaucetHealth)

		api.POST("/invoices", s.handleCreateInvoice)
		api.GET("/invoices", s.handleListInvoices)
		api.GET("/invoices/:id", s.handleGetInvoice)
		api.POST("/invoices/:id/pay", s.handlePayInvoice)
		api.POST("/invoices/:id/expire", s.handleExpireInvoice)

		api.GET("/events", s.handleEvents)
	}

	return router
}

func (s *Server) handleEvents(c *gin.Context) {
	if err := s.hub.Subscribe(c.Writer, c.Request); err != nil {
		s.logger.Printf("websocket upgrade failed: %v", err)
	}
}
