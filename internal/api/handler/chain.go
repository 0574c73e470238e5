package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/jmerrifield20/trustchain/internal/audit"
	"github.com/jmerrifield20/trustchain/internal/chain"
	"github.com/jmerrifield20/trustchain/internal/identity"
	"go.uber.org/zap"
)

// ChainHandler exposes the vendor ledger over HTTP.
type ChainHandler struct {
	writer   *chain.Writer
	verifier *chain.Verifier
	store    chain.Store
	reports  audit.ReportCache
	logger   *zap.Logger
}

// NewChainHandler creates a ChainHandler. reports may be nil to disable the
// cached audit endpoint.
func NewChainHandler(writer *chain.Writer, verifier *chain.Verifier, store chain.Store, reports audit.ReportCache, logger *zap.Logger) *ChainHandler {
	return &ChainHandler{
		writer:   writer,
		verifier: verifier,
		store:    store,
		reports:  reports,
		logger:   logger,
	}
}

// Register mounts the chain routes on the given router group. Routes under
// /chain/me run behind vendorAuth, which must authenticate the caller.
func (h *ChainHandler) Register(rg *gin.RouterGroup, vendorAuth ...gin.HandlerFunc) {
	c := rg.Group("/chain")
	{
		c.GET("/verify", h.VerifyAll)
		c.GET("/verify/:vendor_id", h.Verify)
		c.GET("/vendors/:vendor_id/blocks", h.ListBlocks)
		c.GET("/audit/latest", h.LatestAudit)
	}
	me := c.Group("/me", vendorAuth...)
	{
		me.GET("/verify", h.VerifyMe)
		me.POST("/blocks", h.Append)
	}
}

type appendRequest struct {
	Action  string          `json:"action"  binding:"required"`
	Payload json.RawMessage `json:"payload"`
}

// Append handles POST /chain/me/blocks. It records an action for the
// authenticated vendor.
func (h *ChainHandler) Append(c *gin.Context) {
	vendorID, ok := identity.VendorIDFromCtx(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Not authenticated"})
		return
	}

	var req appendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var payload any
	if len(req.Payload) > 0 {
		payload = req.Payload
	}

	b, err := h.writer.Append(c.Request.Context(), vendorID, req.Action, payload)
	if err != nil {
		switch {
		case errors.Is(err, chain.ErrEmptyAction),
			errors.Is(err, chain.ErrInvalidPayload),
			errors.Is(err, chain.ErrInvalidVendor):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "ledger append failed"})
		}
		return
	}

	c.JSON(http.StatusCreated, b)
}

// VerifyAll handles GET /chain/verify and audits every vendor chain.
func (h *ChainHandler) VerifyAll(c *gin.Context) {
	fleet, err := h.verifierFor(c).VerifyAll(c.Request.Context())
	if err != nil {
		h.logger.Error("chain VerifyAll", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to verify chains"})
		return
	}
	c.JSON(http.StatusOK, fleet)
}

// Verify handles GET /chain/verify/:vendor_id.
func (h *ChainHandler) Verify(c *gin.Context) {
	vendorID, ok := vendorParam(c)
	if !ok {
		return
	}
	h.respondVerify(c, h.verifierFor(c), vendorID)
}

// VerifyMe handles GET /chain/me/verify. It audits the caller's own chain,
// recomputing every hash.
func (h *ChainHandler) VerifyMe(c *gin.Context) {
	vendorID, ok := identity.VendorIDFromCtx(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Not authenticated"})
		return
	}
	h.respondVerify(c, h.verifier.Strict(), vendorID)
}

// ListBlocks handles GET /chain/vendors/:vendor_id/blocks.
func (h *ChainHandler) ListBlocks(c *gin.Context) {
	vendorID, ok := vendorParam(c)
	if !ok {
		return
	}

	blocks, err := h.store.ListByVendor(c.Request.Context(), vendorID)
	if err != nil {
		h.logger.Error("chain ListByVendor", zap.Int64("vendor_id", vendorID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to query chain"})
		return
	}
	if blocks == nil {
		blocks = []*chain.Block{}
	}
	c.JSON(http.StatusOK, gin.H{
		"vendor_id": vendorID,
		"blocks":    blocks,
	})
}

// LatestAudit handles GET /chain/audit/latest, the last background sweep.
func (h *ChainHandler) LatestAudit(c *gin.Context) {
	if h.reports == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "audit reports disabled"})
		return
	}
	fleet, err := h.reports.Latest(c.Request.Context())
	if errors.Is(err, audit.ErrNoReport) {
		c.JSON(http.StatusNotFound, gin.H{"error": "no audit has completed yet"})
		return
	}
	if err != nil {
		h.logger.Error("audit report", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load audit report"})
		return
	}
	c.JSON(http.StatusOK, fleet)
}

func (h *ChainHandler) respondVerify(c *gin.Context, v *chain.Verifier, vendorID int64) {
	res, err := v.Verify(c.Request.Context(), vendorID)
	if err != nil {
		h.logger.Error("chain Verify", zap.Int64("vendor_id", vendorID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to verify chain"})
		return
	}
	c.JSON(http.StatusOK, res)
}

// verifierFor honours ?strict=true.
func (h *ChainHandler) verifierFor(c *gin.Context) *chain.Verifier {
	if strict, _ := strconv.ParseBool(c.Query("strict")); strict {
		return h.verifier.Strict()
	}
	return h.verifier
}

func vendorParam(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("vendor_id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "vendor_id must be a positive integer"})
		return 0, false
	}
	return id, true
}
