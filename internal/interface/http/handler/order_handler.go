package handler

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/ignatzorin/escrow-market/internal/domain/entity"
	"github.com/ignatzorin/escrow-market/internal/interface/http/dto"
	"github.com/ignatzorin/escrow-market/internal/interface/http/response"
	"github.com/ignatzorin/escrow-market/internal/service"
	"github.com/ignatzorin/escrow-market/internal/usecase/order"
)

// OrderUseCases набор use case'ов заказа для OrderHandler.
type OrderUseCases struct {
	Create          *order.CreateOrderUseCase
	Accept          *order.AcceptOrderUseCase
	Start           *order.StartOrderUseCase
	Deliver         *order.DeliverOrderUseCase
	RequestRevision *order.RequestRevisionUseCase
	Complete        *order.CompleteOrderUseCase
	Cancel          *order.CancelOrderUseCase
	AutoRelease     *order.AutoReleaseUseCase
	LeaveReview     *order.LeaveReviewUseCase
	Get             *order.GetOrderUseCase
	ListMy          *order.ListMyOrdersUseCase
}

type OrderHandler struct {
	uc    OrderUseCases
	cache ReadCache
}

func NewOrderHandler(uc OrderUseCases, cache ReadCache) *OrderHandler {
	return &OrderHandler{uc: uc, cache: cache}
}

func (h *OrderHandler) CreateOrder(c *gin.Context) {
	userID, _, ok := caller(c)
	if !ok {
		return
	}

	var req dto.CreateOrderRequest
	if !bindJSON(c, &req) {
		return
	}
	listingID, err := uuid.Parse(req.ListingID)
	if err != nil {
		response.BadRequest(c, "некорректный listing_id")
		return
	}

	plans := make([]entity.MilestonePlan, 0, len(req.Milestones))
	for _, m := range req.Milestones {
		plans = append(plans, m.ToPlan())
	}

	out, err := h.uc.Create.Execute(c.Request.Context(), order.CreateOrderInput{
		BuyerID:      userID,
		ListingID:    listingID,
		Requirements: req.Requirements,
		Milestones:   plans,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, dto.OrderWithEscrowResponse{
		Order:      dto.ToOrderResponse(out.Order),
		Escrow:     dto.ToEscrowResponse(out.Escrow),
		Milestones: dto.ToMilestoneResponses(out.Milestones),
	})
}

func (h *OrderHandler) GetOrder(c *gin.Context) {
	userID, role, ok := caller(c)
	if !ok {
		return
	}
	orderID, ok := pathUUID(c, "id")
	if !ok {
		return
	}

	details, err := h.uc.Get.Execute(c.Request.Context(), orderID, userID, role)
	if err != nil {
		response.Error(c, err)
		return
	}

	reviews := make([]dto.ReviewResponse, 0, len(details.Reviews))
	for _, r := range details.Reviews {
		reviews = append(reviews, dto.ToReviewResponse(r))
	}
	response.Success(c, dto.OrderDetailsResponse{
		Order:      dto.ToOrderResponse(details.Order),
		Escrow:     dto.ToEscrowResponse(details.Escrow),
		Dispute:    dto.ToDisputeResponse(details.Dispute),
		Milestones: dto.ToMilestoneResponses(details.Milestones),
		Reviews:    reviews,
	})
}

func (h *OrderHandler) ListMyOrders(c *gin.Context) {
	userID, _, ok := caller(c)
	if !ok {
		return
	}
	page := pageFromQuery(c)

	orders, err := h.uc.ListMy.Execute(c.Request.Context(), userID, page)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Paginated(c, dto.ToOrderResponses(orders), len(orders), page.Limit, page.Offset)
}

func (h *OrderHandler) AcceptOrder(c *gin.Context) {
	h.partyTransition(c, h.uc.Accept.Execute)
}

func (h *OrderHandler) StartOrder(c *gin.Context) {
	h.partyTransition(c, h.uc.Start.Execute)
}

func (h *OrderHandler) RequestRevision(c *gin.Context) {
	h.partyTransition(c, h.uc.RequestRevision.Execute)
}

// partyTransition переход без тела запроса, права проверяет use case.
func (h *OrderHandler) partyTransition(c *gin.Context, exec func(ctx context.Context, orderID, userID uuid.UUID) (*entity.Order, error)) {
	userID, _, ok := caller(c)
	if !ok {
		return
	}
	orderID, ok := pathUUID(c, "id")
	if !ok {
		return
	}

	o, err := exec(c.Request.Context(), orderID, userID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, dto.ToOrderResponse(o))
}

func (h *OrderHandler) DeliverOrder(c *gin.Context) {
	userID, _, ok := caller(c)
	if !ok {
		return
	}
	orderID, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	var req dto.DeliverOrderRequest
	if !bindJSON(c, &req) {
		return
	}

	o, err := h.uc.Deliver.Execute(c.Request.Context(), order.DeliverOrderInput{
		OrderID:  orderID,
		SellerID: userID,
		Notes:    req.Notes,
		Files:    req.Files,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, dto.ToOrderResponse(o))
}

func (h *OrderHandler) CompleteOrder(c *gin.Context) {
	userID, _, ok := caller(c)
	if !ok {
		return
	}
	orderID, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	var req dto.CompleteOrderRequest
	if !bindJSON(c, &req) {
		return
	}

	out, err := h.uc.Complete.Execute(c.Request.Context(), order.CompleteOrderInput{
		OrderID: orderID,
		BuyerID: userID,
		Rating:  req.Rating,
		Review:  req.Review,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	// отзыв покупателя меняет репутацию продавца
	h.cache.Delete(service.ProfileCacheKey(out.Order.Seller))

	payout := dto.ToPayoutResponse(out.Payout)
	response.Success(c, dto.OrderWithEscrowResponse{
		Order:  dto.ToOrderResponse(out.Order),
		Escrow: dto.ToEscrowResponse(out.Escrow),
		Payout: &payout,
	})
}

func (h *OrderHandler) CancelOrder(c *gin.Context) {
	userID, _, ok := caller(c)
	if !ok {
		return
	}
	orderID, ok := pathUUID(c, "id")
	if !ok {
		return
	}

	o, e, err := h.uc.Cancel.Execute(c.Request.Context(), orderID, userID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, dto.OrderWithEscrowResponse{
		Order:  dto.ToOrderResponse(o),
		Escrow: dto.ToEscrowResponse(e),
	})
}

// AutoRelease может вызвать любой авторизованный пользователь.
func (h *OrderHandler) AutoRelease(c *gin.Context) {
	if _, _, ok := caller(c); !ok {
		return
	}
	orderID, ok := pathUUID(c, "id")
	if !ok {
		return
	}

	out, err := h.uc.AutoRelease.Execute(c.Request.Context(), orderID)
	if err != nil {
		response.Error(c, err)
		return
	}

	resp := dto.AutoReleaseResponse{
		Released: out.Released,
		Order:    dto.ToOrderResponse(out.Order),
		Escrow:   dto.ToEscrowResponse(out.Escrow),
	}
	if out.Released {
		payout := dto.ToPayoutResponse(out.Payout)
		resp.Payout = &payout
	}
	response.Success(c, resp)
}

func (h *OrderHandler) LeaveReview(c *gin.Context) {
	userID, _, ok := caller(c)
	if !ok {
		return
	}
	orderID, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	var req dto.LeaveReviewRequest
	if !bindJSON(c, &req) {
		return
	}

	review, err := h.uc.LeaveReview.Execute(c.Request.Context(), order.LeaveReviewInput{
		OrderID:    orderID,
		ReviewerID: userID,
		Rating:     req.Rating,
		Comment:    req.Comment,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	h.cache.Delete(service.ProfileCacheKey(review.Reviewee))
	response.Created(c, dto.ToReviewResponse(review))
}
