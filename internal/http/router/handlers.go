package router

import (
	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/escrow-market/internal/interface/http/handler"
	"github.com/ignatzorin/escrow-market/internal/service"
	"github.com/ignatzorin/escrow-market/internal/storage"
	"github.com/ignatzorin/escrow-market/internal/usecase"
	"github.com/ignatzorin/escrow-market/internal/usecase/dispute"
	"github.com/ignatzorin/escrow-market/internal/usecase/listing"
	"github.com/ignatzorin/escrow-market/internal/usecase/milestone"
	"github.com/ignatzorin/escrow-market/internal/usecase/order"
	"github.com/ignatzorin/escrow-market/internal/usecase/wallet"
	"github.com/ignatzorin/escrow-market/internal/ws"
)

// NewHandlers собирает use case'ы и обработчики поверх общих зависимостей.
func NewHandlers(deps usecase.Deps, profiles handler.ProfileReader, cache *service.CacheService, files *storage.FileStore, hub *ws.Hub, allowedOrigins []string, log *logrus.Logger) Handlers {
	return Handlers{
		Listing: handler.NewListingHandler(handler.ListingUseCases{
			Create:     listing.NewCreateListingUseCase(deps),
			Update:     listing.NewUpdateListingUseCase(deps),
			Deactivate: listing.NewDeactivateListingUseCase(deps),
			Get:        listing.NewGetListingUseCase(deps),
			ListByUser: listing.NewListByOwnerUseCase(deps),
		}, cache),
		Order: handler.NewOrderHandler(handler.OrderUseCases{
			Create:          order.NewCreateOrderUseCase(deps),
			Accept:          order.NewAcceptOrderUseCase(deps),
			Start:           order.NewStartOrderUseCase(deps),
			Deliver:         order.NewDeliverOrderUseCase(deps),
			RequestRevision: order.NewRequestRevisionUseCase(deps),
			Complete:        order.NewCompleteOrderUseCase(deps),
			Cancel:          order.NewCancelOrderUseCase(deps),
			AutoRelease:     order.NewAutoReleaseUseCase(deps),
			LeaveReview:     order.NewLeaveReviewUseCase(deps),
			Get:             order.NewGetOrderUseCase(deps),
			ListMy:          order.NewListMyOrdersUseCase(deps),
		}, cache),
		Dispute: handler.NewDisputeHandler(handler.DisputeUseCases{
			Open:    dispute.NewOpenDisputeUseCase(deps),
			Assign:  dispute.NewAssignArbiterUseCase(deps),
			Resolve: dispute.NewResolveDisputeUseCase(deps),
			Dismiss: dispute.NewDismissDisputeUseCase(deps),
			Get:     dispute.NewGetDisputeUseCase(deps),
		}),
		Milestone: handler.NewMilestoneHandler(handler.MilestoneUseCases{
			Start:   milestone.NewStartMilestoneUseCase(deps),
			Submit:  milestone.NewSubmitMilestoneUseCase(deps),
			Approve: milestone.NewApproveMilestoneUseCase(deps),
			Reject:  milestone.NewRejectMilestoneUseCase(deps),
			List:    milestone.NewListMilestonesUseCase(deps),
		}),
		Wallet: handler.NewWalletHandler(wallet.NewDepositUseCase(deps), wallet.NewBalanceUseCase(deps), profiles, cache),
		File:   handler.NewFileHandler(files),
		WS:     handler.NewWSHandler(hub, allowedOrigins, log),
	}
}
