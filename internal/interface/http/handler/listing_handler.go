package handler

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/ignatzorin/escrow-market/internal/interface/http/dto"
	"github.com/ignatzorin/escrow-market/internal/interface/http/response"
	"github.com/ignatzorin/escrow-market/internal/service"
	"github.com/ignatzorin/escrow-market/internal/usecase/listing"
)

type ListingUseCases struct {
	Create     *listing.CreateListingUseCase
	Update     *listing.UpdateListingUseCase
	Deactivate *listing.DeactivateListingUseCase
	Get        *listing.GetListingUseCase
	ListByUser *listing.ListByOwnerUseCase
}

type ListingHandler struct {
	uc    ListingUseCases
	cache ReadCache
}

func NewListingHandler(uc ListingUseCases, cache ReadCache) *ListingHandler {
	return &ListingHandler{uc: uc, cache: cache}
}

func (h *ListingHandler) CreateListing(c *gin.Context) {
	userID, _, ok := caller(c)
	if !ok {
		return
	}
	var req dto.ListingRequest
	if !bindJSON(c, &req) {
		return
	}

	l, err := h.uc.Create.Execute(c.Request.Context(), userID, req.ToTerms())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, dto.ToListingResponse(l))
}

func (h *ListingHandler) UpdateListing(c *gin.Context) {
	userID, _, ok := caller(c)
	if !ok {
		return
	}
	listingID, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	var req dto.ListingRequest
	if !bindJSON(c, &req) {
		return
	}

	l, err := h.uc.Update.Execute(c.Request.Context(), listingID, userID, req.ToTerms())
	if err != nil {
		response.Error(c, err)
		return
	}
	h.cache.Delete(service.ListingCacheKey(listingID))
	response.Success(c, dto.ToListingResponse(l))
}

func (h *ListingHandler) DeactivateListing(c *gin.Context) {
	userID, _, ok := caller(c)
	if !ok {
		return
	}
	listingID, ok := pathUUID(c, "id")
	if !ok {
		return
	}

	l, err := h.uc.Deactivate.Execute(c.Request.Context(), listingID, userID)
	if err != nil {
		response.Error(c, err)
		return
	}
	h.cache.Delete(service.ListingCacheKey(listingID))
	response.Success(c, dto.ToListingResponse(l))
}

func (h *ListingHandler) GetListing(c *gin.Context) {
	listingID, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	resp, err := h.cache.GetOrSet(c.Request.Context(), service.ListingCacheKey(listingID), listingCacheTTL,
		func(ctx context.Context) (interface{}, error) {
			l, err := h.uc.Get.Execute(ctx, listingID)
			if err != nil {
				return nil, err
			}
			return dto.ToListingResponse(l), nil
		})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, resp)
}

// ListUserListings объявления пользователя из пути.
func (h *ListingHandler) ListUserListings(c *gin.Context) {
	ownerID, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	page := pageFromQuery(c)

	listings, err := h.uc.ListByUser.Execute(c.Request.Context(), ownerID, page)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Paginated(c, dto.ToListingResponses(listings), len(listings), page.Limit, page.Offset)
}
