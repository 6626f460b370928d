package server

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	accountdomain "github.com/creditrail/creditgate/internal/account/domain"
	auditdomain "github.com/creditrail/creditgate/internal/audit/domain"
	creditdomain "github.com/creditrail/creditgate/internal/credit/domain"
	ledgerdomain "github.com/creditrail/creditgate/internal/ledger/domain"
	"github.com/gin-gonic/gin"
)

type identityRequest struct {
	OAuthProvider string `json:"oauth_provider" form:"oauth_provider" binding:"required"`
	ExternalID    string `json:"external_id" form:"external_id" binding:"required"`
	WaID          string `json:"wa_id" form:"wa_id"`
	TenantID      string `json:"tenant_id" form:"tenant_id"`
}

func (r identityRequest) identity() accountdomain.AccountIdentity {
	return accountdomain.AccountIdentity{
		OAuthProvider: r.OAuthProvider,
		ExternalID:    r.ExternalID,
		WaID:          r.WaID,
		TenantID:      r.TenantID,
	}
}

type checkCreditRequest struct {
	identityRequest
	Metadata map[string]any `json:"metadata"`
}

func (s *Server) CheckCredit(c *gin.Context) {
	var req checkCreditRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	if s.limiter.Enabled() && !s.limiter.Allow(c.Request.Context(), req.OAuthProvider, req.ExternalID) {
		AbortWithError(c, ErrRateLimited)
		return
	}

	result, err := s.creditSvc.CheckCredit(c.Request.Context(), req.identity(), req.Metadata)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	s.identities.SetAccountID(req.identity(), result.Account.ID)

	c.JSON(http.StatusOK, result)
}

type createChargeRequest struct {
	identityRequest
	AmountMinor    int64          `json:"amount_minor" binding:"required"`
	Currency       string         `json:"currency" binding:"required"`
	Description    string         `json:"description"`
	Metadata       map[string]any `json:"metadata"`
	IdempotencyKey string         `json:"idempotency_key"`
}

func (s *Server) CreateCharge(c *gin.Context) {
	var req createChargeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	result, err := s.creditSvc.CreateCharge(c.Request.Context(), creditdomain.ChargeIntent{
		Identity:       req.identity(),
		AmountMinor:    req.AmountMinor,
		Currency:       req.Currency,
		Description:    req.Description,
		Metadata:       req.Metadata,
		IdempotencyKey: req.IdempotencyKey,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, result)
}

type addCreditsRequest struct {
	identityRequest
	AmountMinor           int64  `json:"amount_minor" binding:"required"`
	Currency              string `json:"currency" binding:"required"`
	Description           string `json:"description"`
	TransactionType       string `json:"transaction_type"`
	ExternalTransactionID string `json:"external_transaction_id"`
	IdempotencyKey        string `json:"idempotency_key"`
}

func (s *Server) AddCredits(c *gin.Context) {
	var req addCreditsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	result, err := s.creditSvc.AddCredits(c.Request.Context(), creditdomain.CreditIntent{
		Identity:              req.identity(),
		AmountMinor:           req.AmountMinor,
		Currency:              req.Currency,
		Description:           req.Description,
		TransactionType:       ledgerdomain.CreditTransactionType(strings.TrimSpace(req.TransactionType)),
		ExternalTransactionID: req.ExternalTransactionID,
		IdempotencyKey:        req.IdempotencyKey,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, result)
}

func (s *Server) GetOrCreateAccount(c *gin.Context) {
	var req identityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	acct, err := s.creditSvc.GetOrCreateAccount(c.Request.Context(), req.identity())
	if err != nil {
		AbortWithError(c, err)
		return
	}
	s.identities.SetAccountID(req.identity(), acct.ID)

	c.JSON(http.StatusOK, acct)
}

func (s *Server) GetAccount(c *gin.Context) {
	var req identityRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	acct, err := s.creditSvc.GetAccount(c.Request.Context(), req.identity())
	if err != nil {
		AbortWithError(c, err)
		return
	}
	if acct == nil {
		AbortWithError(c, ErrNotFound)
		return
	}
	s.identities.SetAccountID(req.identity(), acct.ID)

	c.JSON(http.StatusOK, acct)
}

func (s *Server) History(c *gin.Context) {
	var req identityRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}
	limit, _ := strconv.Atoi(c.Query("limit"))

	result, err := s.creditSvc.History(c.Request.Context(), req.identity(), limit)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

type setStatusRequest struct {
	identityRequest
	Status string `json:"status" binding:"required"`
	Reason string `json:"reason"`
}

func (s *Server) SetStatus(c *gin.Context) {
	var req setStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	acct, err := s.creditSvc.SetStatus(
		c.Request.Context(),
		req.identity(),
		accountdomain.AccountStatus(strings.ToLower(strings.TrimSpace(req.Status))),
		req.Reason,
	)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, acct)
}

func (s *Server) ListCreditChecks(c *gin.Context) {
	req := auditdomain.ListRequest{
		Outcome: c.Query("outcome"),
	}
	if limit, err := strconv.Atoi(c.Query("limit")); err == nil {
		req.Limit = limit
	}
	if from := c.Query("from"); from != "" {
		t, err := time.Parse(time.RFC3339, from)
		if err != nil {
			AbortWithError(c, ErrInvalidRequest)
			return
		}
		req.StartAt = &t
	}
	if to := c.Query("to"); to != "" {
		t, err := time.Parse(time.RFC3339, to)
		if err != nil {
			AbortWithError(c, ErrInvalidRequest)
			return
		}
		req.EndAt = &t
	}

	// Optional identity filter, resolved through the identity cache.
	if provider := c.Query("oauth_provider"); provider != "" {
		identity := accountdomain.AccountIdentity{
			OAuthProvider: provider,
			ExternalID:    c.Query("external_id"),
		}
		if !identity.Normalize().Valid() {
			AbortWithError(c, ErrInvalidRequest)
			return
		}
		id, ok := s.identities.GetAccountID(identity)
		if !ok {
			acct, err := s.creditSvc.GetAccount(c.Request.Context(), identity)
			if err != nil {
				AbortWithError(c, err)
				return
			}
			if acct == nil {
				AbortWithError(c, ErrNotFound)
				return
			}
			id = acct.ID
			s.identities.SetAccountID(identity, id)
		}
		req.AccountID = &id
	}

	resp, err := s.auditSvc.List(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}
