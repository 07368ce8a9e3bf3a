package http

import (
	"encoding/json"
	"time"

	"github.com/rs/zerolog"
	"github.com/valyala/fasthttp"

	"github.com/Theoretician9/content-factory-sub003/internal/domain"
	"github.com/Theoretician9/content-factory-sub003/internal/domain/account/entities"
	"github.com/Theoretician9/content-factory-sub003/internal/domain/allocator/dto"
	"github.com/Theoretician9/content-factory-sub003/internal/domain/allocator/usecase/business"
	pkgerrors "github.com/Theoretician9/content-factory-sub003/pkg/errors"
	"github.com/Theoretician9/content-factory-sub003/pkg/httputil"
)

// Handler handles account pool HTTP requests
type Handler struct {
	useCase *business.UseCase
	mapper  *pkgerrors.Mapper
	logger  zerolog.Logger
}

// NewHandler creates a new account pool handler
func NewHandler(useCase *business.UseCase, mapper *pkgerrors.Mapper, logger zerolog.Logger) *Handler {
	return &Handler{
		useCase: useCase,
		mapper:  mapper,
		logger:  logger.With().Str("handler", "allocator").Logger(),
	}
}

// Allocate handles POST /api/v1/allocate
func (h *Handler) Allocate(ctx *fasthttp.RequestCtx) {
	var req dto.AllocateRequest
	if err := json.Unmarshal(ctx.PostBody(), &req); err != nil {
		httputil.WriteErrorResponse(ctx, "invalid request body", fasthttp.StatusBadRequest)
		return
	}
	if req.UserID <= 0 {
		httputil.WriteErrorResponse(ctx, "user_id is required", fasthttp.StatusBadRequest)
		return
	}
	if req.ServiceName == "" {
		httputil.WriteErrorResponse(ctx, "service_name is required", fasthttp.StatusBadRequest)
		return
	}

	leaseTTL := time.Duration(req.LeaseTTLSeconds) * time.Second
	lease, err := h.useCase.Allocate(ctx, req.UserID, req.Purpose, req.ServiceName, req.PreferredAccountID, leaseTTL)
	if err != nil {
		h.handleError(ctx, err)
		return
	}

	httputil.WriteResponse(ctx, dto.AllocateResponse{
		AccountID:   lease.AccountID,
		LockToken:   lease.LockToken,
		AcquiredAt:  lease.AcquiredAt,
		ExpiresAt:   lease.ExpiresAt,
		ServiceName: lease.ServiceName,
		Purpose:     lease.Purpose,
	})
}

// Release handles POST /api/v1/accounts/{account_id}/release
func (h *Handler) Release(ctx *fasthttp.RequestCtx) {
	accountID, ok := accountIDParam(ctx)
	if !ok {
		return
	}

	var req dto.ReleaseRequest
	if err := json.Unmarshal(ctx.PostBody(), &req); err != nil {
		httputil.WriteErrorResponse(ctx, "invalid request body", fasthttp.StatusBadRequest)
		return
	}
	if req.LockToken == "" {
		httputil.WriteErrorResponse(ctx, "lock_token is required", fasthttp.StatusBadRequest)
		return
	}
	if req.ErrorKind != "" && !validErrorKind(req.ErrorKind) {
		httputil.WriteErrorResponse(ctx, "unknown error_kind", fasthttp.StatusBadRequest)
		return
	}

	stats := domain.UsageStats{
		InvitesSent:   req.InvitesSent,
		MessagesSent:  req.MessagesSent,
		ContactsAdded: req.ContactsAdded,
		ChannelsUsed:  req.ChannelsUsed,
		Success:       req.Success,
		ErrorKind:     req.ErrorKind,
		ErrorMessage:  req.ErrorMessage,
	}
	if err := h.useCase.Release(ctx, accountID, req.LockToken, stats); err != nil {
		h.handleError(ctx, err)
		return
	}

	httputil.WriteResponse(ctx, map[string]string{"account_id": accountID})
}

// ReportError handles POST /api/v1/accounts/{account_id}/report-error
func (h *Handler) ReportError(ctx *fasthttp.RequestCtx) {
	accountID, ok := accountIDParam(ctx)
	if !ok {
		return
	}

	var req dto.ReportErrorRequest
	if err := json.Unmarshal(ctx.PostBody(), &req); err != nil {
		httputil.WriteErrorResponse(ctx, "invalid request body", fasthttp.StatusBadRequest)
		return
	}
	if !validErrorKind(req.Kind) {
		httputil.WriteErrorResponse(ctx, "unknown error kind", fasthttp.StatusBadRequest)
		return
	}

	status, err := h.useCase.ReportError(ctx, accountID, req.Kind, req.Message)
	if err != nil {
		h.handleError(ctx, err)
		return
	}

	httputil.WriteResponse(ctx, dto.ReportErrorResponse{
		AccountID: accountID,
		Status:    string(status),
	})
}

// CheckRateLimit handles GET /api/v1/accounts/{account_id}/ratelimit
func (h *Handler) CheckRateLimit(ctx *fasthttp.RequestCtx) {
	accountID, ok := accountIDParam(ctx)
	if !ok {
		return
	}

	action := domain.ActionType(ctx.QueryArgs().Peek("action"))
	if !validAction(action) {
		httputil.WriteErrorResponse(ctx, "action must be one of: invite, message, add_contact", fasthttp.StatusBadRequest)
		return
	}
	targetChannel := string(ctx.QueryArgs().Peek("target_channel"))

	decision, err := h.useCase.CheckRateLimit(ctx, accountID, action, targetChannel)
	if err != nil {
		h.handleError(ctx, err)
		return
	}

	resp := dto.RateLimitResponse{
		AccountID:     accountID,
		Action:        string(action),
		TargetChannel: targetChannel,
		Allowed:       decision.Allowed,
		Reason:        decision.Reason,
	}
	if !decision.NextAvailableAt.IsZero() {
		at := decision.NextAvailableAt
		resp.NextAvailableAt = &at
	}
	httputil.WriteResponse(ctx, resp)
}

// GetHealth handles GET /api/v1/accounts/{account_id}/health
func (h *Handler) GetHealth(ctx *fasthttp.RequestCtx) {
	accountID, ok := accountIDParam(ctx)
	if !ok {
		return
	}

	health, err := h.useCase.GetHealth(ctx, accountID)
	if err != nil {
		h.handleError(ctx, err)
		return
	}

	httputil.WriteResponse(ctx, health)
}

// GetRecoveryStats handles GET /api/v1/recovery/stats
func (h *Handler) GetRecoveryStats(ctx *fasthttp.RequestCtx) {
	stats, err := h.useCase.GetRecoveryStats(ctx)
	if err != nil {
		h.handleError(ctx, err)
		return
	}

	httputil.WriteResponse(ctx, stats)
}

// RegisterAccount handles POST /api/v1/accounts
func (h *Handler) RegisterAccount(ctx *fasthttp.RequestCtx) {
	var req dto.RegisterAccountRequest
	if err := json.Unmarshal(ctx.PostBody(), &req); err != nil {
		httputil.WriteErrorResponse(ctx, "invalid request body", fasthttp.StatusBadRequest)
		return
	}
	if req.UserID <= 0 {
		httputil.WriteErrorResponse(ctx, "user_id is required", fasthttp.StatusBadRequest)
		return
	}
	if req.Phone == "" {
		httputil.WriteErrorResponse(ctx, "phone is required", fasthttp.StatusBadRequest)
		return
	}

	acc, err := h.useCase.RegisterAccount(ctx, req.UserID, req.Phone)
	if err != nil {
		h.handleError(ctx, err)
		return
	}

	httputil.WriteResponseWithStatus(ctx, toAccountResponse(acc), fasthttp.StatusCreated)
}

// ListAccounts handles GET /api/v1/accounts?user_id=
func (h *Handler) ListAccounts(ctx *fasthttp.RequestCtx) {
	userID, err := ctx.QueryArgs().GetUint("user_id")
	if err != nil || userID <= 0 {
		httputil.WriteErrorResponse(ctx, "user_id query parameter is required", fasthttp.StatusBadRequest)
		return
	}

	accounts, err := h.useCase.ListAccounts(ctx, int64(userID))
	if err != nil {
		h.handleError(ctx, err)
		return
	}

	resp := make([]dto.AccountResponse, 0, len(accounts))
	for _, acc := range accounts {
		resp = append(resp, toAccountResponse(acc))
	}
	httputil.WriteResponse(ctx, resp)
}

func (h *Handler) handleError(ctx *fasthttp.RequestCtx, err error) {
	status, message := h.mapper.MapErrorToHTTP(err)
	httputil.WriteErrorResponse(ctx, message, status)
}

func accountIDParam(ctx *fasthttp.RequestCtx) (string, bool) {
	accountID, ok := ctx.UserValue("account_id").(string)
	if !ok || accountID == "" {
		httputil.WriteErrorResponse(ctx, "account_id is required", fasthttp.StatusBadRequest)
		return "", false
	}
	return accountID, true
}

func toAccountResponse(acc *entities.Account) dto.AccountResponse {
	return dto.AccountResponse{
		AccountID:  acc.ID,
		UserID:     acc.UserID,
		Phone:      acc.Phone,
		Status:     string(acc.Status),
		LastUsedAt: acc.LastUsedAt,
		CreatedAt:  acc.CreatedAt,
	}
}

func validAction(a domain.ActionType) bool {
	switch a {
	case domain.ActionInvite, domain.ActionMessage, domain.ActionAddContact:
		return true
	}
	return false
}

func validErrorKind(k domain.ErrorKind) bool {
	switch k {
	case domain.ErrorKindFloodWait, domain.ErrorKindPeerFlood, domain.ErrorKindBanned,
		domain.ErrorKindAuthInvalid, domain.ErrorKindUnknown:
		return true
	}
	return false
}
