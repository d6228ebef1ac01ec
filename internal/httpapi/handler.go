// Package httpapi is the JSON transport over the session-key services. It
// parses requests, resolves the caller from the bearer token, and maps
// service errors to statuses; all behavior lives in the services it wraps.
package httpapi

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	auditrepo "github.com/agio-digital/session-keys-backend/internal/audit/repository"
	"github.com/agio-digital/session-keys-backend/internal/chain"
	"github.com/agio-digital/session-keys-backend/internal/delegate"
	"github.com/agio-digital/session-keys-backend/internal/identity"
	"github.com/agio-digital/session-keys-backend/internal/session/domain"
	sessionservice "github.com/agio-digital/session-keys-backend/internal/session/service"
	walletservice "github.com/agio-digital/session-keys-backend/internal/wallet/service"
)

// Handler exposes the session-key operations over HTTP.
type Handler struct {
	sessions   *sessionservice.Lifecycle
	wallets    *walletservice.Directory
	delegator  *delegate.TransactionDelegator
	account    chain.AccountClient
	auditTrail auditrepo.Repository
	verifier   *identity.Verifier
	logger     *zap.Logger
}

// NewHandler returns a Handler. account may be nil when no bundler endpoint
// is configured; provisioning and sends then answer 503. auditTrail may be
// nil; the audit listing then answers 503.
func NewHandler(
	sessions *sessionservice.Lifecycle,
	wallets *walletservice.Directory,
	delegator *delegate.TransactionDelegator,
	account chain.AccountClient,
	auditTrail auditrepo.Repository,
	verifier *identity.Verifier,
	logger *zap.Logger,
) *Handler {
	return &Handler{
		sessions:   sessions,
		wallets:    wallets,
		delegator:  delegator,
		account:    account,
		auditTrail: auditTrail,
		verifier:   verifier,
		logger:     logger,
	}
}

// RegisterRoutes mounts all routes on the engine.
func (h *Handler) RegisterRoutes(r *gin.Engine) {
	r.GET("/healthz", h.health)

	v1 := r.Group("/v1", AuthRequired(h.verifier))
	v1.POST("/wallets", h.saveWallet)
	v1.GET("/wallets", h.listWallets)
	v1.GET("/wallets/:index", h.getWallet)
	v1.POST("/wallets/provision", h.provisionWallet)
	v1.POST("/sessions", h.createSession)
	v1.GET("/sessions", h.listSessions)
	v1.GET("/sessions/:index", h.getSession)
	v1.DELETE("/sessions/:index", h.revokeSession)
	v1.POST("/transactions", h.sendTransaction)
	v1.GET("/audit", h.listAuditLogs)
}

func (h *Handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

type saveWalletRequest struct {
	Address     string `json:"address" binding:"required"`
	WalletIndex *int   `json:"walletIndex"`
}

func (h *Handler) saveWallet(c *gin.Context) {
	var req saveWalletRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "address is required"})
		return
	}
	userID := currentUser(c)

	index := 0
	if req.WalletIndex != nil {
		index = *req.WalletIndex
	} else {
		next, err := h.wallets.NextIndex(c.Request.Context(), userID)
		if err != nil {
			h.writeError(c, err)
			return
		}
		index = next
	}

	wallet, err := h.wallets.SaveWallet(c.Request.Context(), userID, req.Address, index)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, wallet)
}

func (h *Handler) listWallets(c *gin.Context) {
	wallets, err := h.wallets.ListWallets(c.Request.Context(), currentUser(c))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"wallets": wallets})
}

func (h *Handler) getWallet(c *gin.Context) {
	index, ok := indexParam(c)
	if !ok {
		return
	}
	wallet, err := h.wallets.GetWallet(c.Request.Context(), currentUser(c), index)
	if err != nil {
		h.writeError(c, err)
		return
	}
	if wallet == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "wallet not found"})
		return
	}
	c.JSON(http.StatusOK, wallet)
}

type provisionWalletRequest struct {
	CreationHint string `json:"creationHint"`
}

func (h *Handler) provisionWallet(c *gin.Context) {
	if h.account == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "no account infrastructure configured"})
		return
	}
	var req provisionWalletRequest
	_ = c.ShouldBindJSON(&req) // body is optional
	userID := currentUser(c)

	address, err := h.account.ProvisionAccount(c.Request.Context(), req.CreationHint)
	if err != nil {
		h.writeError(c, &delegate.PreparationError{Cause: err})
		return
	}
	index, err := h.wallets.NextIndex(c.Request.Context(), userID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	wallet, err := h.wallets.SaveWallet(c.Request.Context(), userID, address.Hex(), index)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, wallet)
}

type createSessionRequest struct {
	WalletIndex            int                 `json:"walletIndex"`
	SessionID              string              `json:"sessionId"`
	SessionKey             string              `json:"sessionKey" binding:"required"`
	SessionKeyAddress      string              `json:"sessionKeyAddress"`
	AccountAddress         string              `json:"accountAddress" binding:"required"`
	AuthorizationSignature string              `json:"authorizationSignature"`
	PermissionsContext     string              `json:"permissionsContext"`
	Permissions            []domain.Permission `json:"permissions"`
	ExpiresAt              *time.Time          `json:"expiresAt"`
	ExpiryHours            *int                `json:"expiryHours"`
}

func (h *Handler) createSession(c *gin.Context) {
	var req createSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "sessionKey and accountAddress are required"})
		return
	}

	draft := sessionservice.Draft{
		ID:                     req.SessionID,
		SessionKey:             req.SessionKey,
		SessionKeyAddress:      req.SessionKeyAddress,
		AccountAddress:         req.AccountAddress,
		AuthorizationSignature: req.AuthorizationSignature,
		PermissionsContext:     req.PermissionsContext,
		Permissions:            req.Permissions,
		ExpiryHours:            req.ExpiryHours,
	}
	if req.ExpiresAt != nil {
		draft.ExpiresAt = *req.ExpiresAt
	}

	session, err := h.sessions.CreateSession(c.Request.Context(), currentUser(c), draft, req.WalletIndex)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, session)
}

func (h *Handler) listSessions(c *gin.Context) {
	sessions, err := h.sessions.ListSessions(c.Request.Context(), currentUser(c))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"sessions": sessions})
}

func (h *Handler) getSession(c *gin.Context) {
	index, ok := indexParam(c)
	if !ok {
		return
	}
	session, err := h.sessions.GetSession(c.Request.Context(), currentUser(c), index)
	if err != nil {
		h.writeError(c, err)
		return
	}
	if session == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
		return
	}
	result := h.sessions.Validate(session)
	body := gin.H{
		"session":   session,
		"valid":     result.Valid,
		"expiresIn": domain.FormatExpiry(session.ExpiresAt, time.Now().UTC()),
	}
	if !result.Valid {
		body["reason"] = result.Reason
	}
	c.JSON(http.StatusOK, body)
}

func (h *Handler) revokeSession(c *gin.Context) {
	index, ok := indexParam(c)
	if !ok {
		return
	}
	if err := h.sessions.Revoke(c.Request.Context(), currentUser(c), index); err != nil {
		h.writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type sendTransactionRequest struct {
	WalletIndex int    `json:"walletIndex"`
	To          string `json:"to" binding:"required"`
	Value       string `json:"value"`
	Data        string `json:"data"`
}

func (h *Handler) sendTransaction(c *gin.Context) {
	if h.delegator == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "no account infrastructure configured"})
		return
	}
	var req sendTransactionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "to is required"})
		return
	}

	result, err := h.delegator.SendTransaction(c.Request.Context(), currentUser(c), delegate.Call{
		To:    req.To,
		Value: req.Value,
		Data:  req.Data,
	}, req.WalletIndex)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

const (
	defaultAuditPageSize = 50
	maxAuditPageSize     = 200
)

func (h *Handler) listAuditLogs(c *gin.Context) {
	if h.auditTrail == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "no audit store configured"})
		return
	}
	limit := pageParam(c, "limit", defaultAuditPageSize)
	if limit > maxAuditPageSize {
		limit = maxAuditPageSize
	}
	offset := pageParam(c, "offset", 0)

	entries, err := h.auditTrail.ListByUser(c.Request.Context(), currentUser(c), limit, offset)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"entries": entries})
}

func pageParam(c *gin.Context, name string, fallback int32) int32 {
	raw := c.Query(name)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return fallback
	}
	return int32(n)
}

func indexParam(c *gin.Context) (int, bool) {
	index, err := strconv.Atoi(c.Param("index"))
	if err != nil || index < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "index must be a non-negative integer"})
		return 0, false
	}
	return index, true
}

// writeError maps service errors to HTTP statuses. Infrastructure failures
// past validation surface as 502 so callers can tell them apart from their
// own mistakes.
func (h *Handler) writeError(c *gin.Context, err error) {
	var invalid *delegate.SessionInvalidError
	var denied *delegate.ScopeDeniedError
	var prep *delegate.PreparationError
	var sign *delegate.SigningError
	var submit *delegate.SubmissionError

	switch {
	case errors.As(err, &invalid):
		status := http.StatusForbidden
		if invalid.Reason == domain.ReasonNotFound {
			status = http.StatusNotFound
		}
		c.JSON(status, gin.H{"error": invalid.Error(), "reason": invalid.Reason})
	case errors.As(err, &denied):
		c.JSON(http.StatusForbidden, gin.H{"error": denied.Error()})
	case errors.Is(err, sessionservice.ErrAddressMismatch),
		errors.Is(err, sessionservice.ErrContextMismatch),
		errors.Is(err, sessionservice.ErrExpiryInPast),
		errors.Is(err, walletservice.ErrInvalidAddress),
		errors.Is(err, delegate.ErrInvalidCall),
		errors.Is(err, delegate.ErrMissingAuthorizationContext):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.As(err, &prep), errors.As(err, &sign), errors.As(err, &submit):
		if h.logger != nil {
			h.logger.Error("delegated send failed", zap.Error(err))
		}
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
	default:
		if h.logger != nil {
			h.logger.Error("internal error", zap.Error(err))
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
