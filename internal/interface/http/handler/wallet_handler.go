package handler

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/ignatzorin/escrow-market/internal/domain/entity"
	"github.com/ignatzorin/escrow-market/internal/domain/valueobject"
	"github.com/ignatzorin/escrow-market/internal/interface/http/dto"
	"github.com/ignatzorin/escrow-market/internal/interface/http/response"
	"github.com/ignatzorin/escrow-market/internal/service"
	"github.com/ignatzorin/escrow-market/internal/usecase/wallet"
)

// ProfileReader читает репутацию пользователя.
type ProfileReader interface {
	Profile(ctx context.Context, userID uuid.UUID) (*entity.Profile, error)
}

type WalletHandler struct {
	deposit  *wallet.DepositUseCase
	balance  *wallet.BalanceUseCase
	profiles ProfileReader
	cache    ReadCache
}

func NewWalletHandler(deposit *wallet.DepositUseCase, balance *wallet.BalanceUseCase, profiles ProfileReader, cache ReadCache) *WalletHandler {
	return &WalletHandler{deposit: deposit, balance: balance, profiles: profiles, cache: cache}
}

func (h *WalletHandler) Deposit(c *gin.Context) {
	userID, _, ok := caller(c)
	if !ok {
		return
	}
	var req dto.DepositRequest
	if !bindJSON(c, &req) {
		return
	}

	balance, err := h.deposit.Execute(c.Request.Context(), userID, valueobject.Amount(req.Amount))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, dto.BalanceResponse{AccountID: userID, Balance: uint64(balance)})
}

func (h *WalletHandler) Balance(c *gin.Context) {
	userID, _, ok := caller(c)
	if !ok {
		return
	}
	balance, err := h.balance.Execute(c.Request.Context(), userID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, dto.BalanceResponse{AccountID: userID, Balance: uint64(balance)})
}

// UserProfile публичная репутация пользователя.
func (h *WalletHandler) UserProfile(c *gin.Context) {
	userID, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	resp, err := h.cache.GetOrSet(c.Request.Context(), service.ProfileCacheKey(userID), profileCacheTTL,
		func(ctx context.Context) (interface{}, error) {
			p, err := h.profiles.Profile(ctx, userID)
			if err != nil {
				return nil, err
			}
			return dto.ToProfileResponse(p), nil
		})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, resp)
}
