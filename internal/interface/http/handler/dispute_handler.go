package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/ignatzorin/escrow-market/internal/interface/http/dto"
	"github.com/ignatzorin/escrow-market/internal/interface/http/response"
	"github.com/ignatzorin/escrow-market/internal/usecase/dispute"
)

type DisputeUseCases struct {
	Open    *dispute.OpenDisputeUseCase
	Assign  *dispute.AssignArbiterUseCase
	Resolve *dispute.ResolveDisputeUseCase
	Dismiss *dispute.DismissDisputeUseCase
	Get     *dispute.GetDisputeUseCase
}

type DisputeHandler struct {
	uc DisputeUseCases
}

func NewDisputeHandler(uc DisputeUseCases) *DisputeHandler {
	return &DisputeHandler{uc: uc}
}

func (h *DisputeHandler) OpenDispute(c *gin.Context) {
	userID, _, ok := caller(c)
	if !ok {
		return
	}
	orderID, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	var req dto.OpenDisputeRequest
	if !bindJSON(c, &req) {
		return
	}

	out, err := h.uc.Open.Execute(c.Request.Context(), dispute.OpenDisputeInput{
		OrderID:     orderID,
		InitiatorID: userID,
		Reason:      req.Reason,
		Description: req.Description,
		Evidence:    req.Evidence,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, dto.DisputeOutcomeResponse{
		Order:   dto.ToOrderResponse(out.Order),
		Escrow:  dto.ToEscrowResponse(out.Escrow),
		Dispute: dto.ToDisputeResponse(out.Dispute),
	})
}

func (h *DisputeHandler) GetDispute(c *gin.Context) {
	userID, role, ok := caller(c)
	if !ok {
		return
	}
	orderID, ok := pathUUID(c, "id")
	if !ok {
		return
	}

	d, err := h.uc.Get.Execute(c.Request.Context(), orderID, userID, role)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, dto.ToDisputeResponse(d))
}

func (h *DisputeHandler) AssignArbiter(c *gin.Context) {
	userID, role, ok := caller(c)
	if !ok {
		return
	}
	orderID, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	var req dto.AssignArbiterRequest
	if c.Request.ContentLength > 0 && !bindJSON(c, &req) {
		return
	}

	input := dispute.AssignArbiterInput{OrderID: orderID, CallerID: userID, Role: role}
	if req.ArbiterID != "" {
		arbiterID, err := uuid.Parse(req.ArbiterID)
		if err != nil {
			response.BadRequest(c, "некорректный arbiter_id")
			return
		}
		input.ArbiterID = arbiterID
	}

	d, err := h.uc.Assign.Execute(c.Request.Context(), input)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, dto.ToDisputeResponse(d))
}

func (h *DisputeHandler) ResolveDispute(c *gin.Context) {
	userID, role, ok := caller(c)
	if !ok {
		return
	}
	orderID, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	var req dto.ResolveDisputeRequest
	if !bindJSON(c, &req) {
		return
	}

	out, err := h.uc.Resolve.Execute(c.Request.Context(), dispute.ResolveDisputeInput{
		OrderID:          orderID,
		CallerID:         userID,
		Role:             role,
		RefundPercentage: *req.RefundPercentage,
		Resolution:       req.Resolution,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, dto.DisputeOutcomeResponse{
		Order:     dto.ToOrderResponse(out.Order),
		Escrow:    dto.ToEscrowResponse(out.Escrow),
		Dispute:   dto.ToDisputeResponse(out.Dispute),
		Forfeited: uint64(out.Forfeited),
	})
}

func (h *DisputeHandler) DismissDispute(c *gin.Context) {
	userID, role, ok := caller(c)
	if !ok {
		return
	}
	orderID, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	var req dto.DismissDisputeRequest
	if !bindJSON(c, &req) {
		return
	}

	d, err := h.uc.Dismiss.Execute(c.Request.Context(), dispute.DismissDisputeInput{
		OrderID:    orderID,
		CallerID:   userID,
		Role:       role,
		Resolution: req.Resolution,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, dto.ToDisputeResponse(d))
}
