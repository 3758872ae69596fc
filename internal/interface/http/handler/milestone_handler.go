package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/ignatzorin/escrow-market/internal/interface/http/dto"
	"github.com/ignatzorin/escrow-market/internal/interface/http/response"
	"github.com/ignatzorin/escrow-market/internal/usecase/milestone"
)

type MilestoneUseCases struct {
	Start   *milestone.StartMilestoneUseCase
	Submit  *milestone.SubmitMilestoneUseCase
	Approve *milestone.ApproveMilestoneUseCase
	Reject  *milestone.RejectMilestoneUseCase
	List    *milestone.ListMilestonesUseCase
}

type MilestoneHandler struct {
	uc MilestoneUseCases
}

func NewMilestoneHandler(uc MilestoneUseCases) *MilestoneHandler {
	return &MilestoneHandler{uc: uc}
}

func (h *MilestoneHandler) ListMilestones(c *gin.Context) {
	userID, role, ok := caller(c)
	if !ok {
		return
	}
	orderID, ok := pathUUID(c, "id")
	if !ok {
		return
	}

	ms, err := h.uc.List.Execute(c.Request.Context(), orderID, userID, role)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, dto.ToMilestoneResponses(ms))
}

func (h *MilestoneHandler) StartMilestone(c *gin.Context) {
	userID, _, ok := caller(c)
	if !ok {
		return
	}
	milestoneID, ok := pathUUID(c, "id")
	if !ok {
		return
	}

	m, err := h.uc.Start.Execute(c.Request.Context(), milestoneID, userID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, dto.ToMilestoneResponse(m))
}

func (h *MilestoneHandler) SubmitMilestone(c *gin.Context) {
	userID, _, ok := caller(c)
	if !ok {
		return
	}
	milestoneID, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	var req dto.SubmitMilestoneRequest
	if !bindJSON(c, &req) {
		return
	}

	m, err := h.uc.Submit.Execute(c.Request.Context(), milestoneID, userID, req.Deliverable)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, dto.ToMilestoneResponse(m))
}

func (h *MilestoneHandler) ApproveMilestone(c *gin.Context) {
	userID, _, ok := caller(c)
	if !ok {
		return
	}
	milestoneID, ok := pathUUID(c, "id")
	if !ok {
		return
	}

	out, err := h.uc.Approve.Execute(c.Request.Context(), milestoneID, userID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, dto.ApproveMilestoneResponse{
		Milestone: dto.ToMilestoneResponse(out.Milestone),
		Escrow:    dto.ToEscrowResponse(out.Escrow),
		Payout:    dto.ToPayoutResponse(out.Payout),
	})
}

func (h *MilestoneHandler) RejectMilestone(c *gin.Context) {
	userID, _, ok := caller(c)
	if !ok {
		return
	}
	milestoneID, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	var req dto.RejectMilestoneRequest
	if !bindJSON(c, &req) {
		return
	}

	m, err := h.uc.Reject.Execute(c.Request.Context(), milestoneID, userID, req.Reason)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, dto.ToMilestoneResponse(m))
}
