package router

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/escrow-market/internal/config"
	"github.com/ignatzorin/escrow-market/internal/domain/valueobject"
	"github.com/ignatzorin/escrow-market/internal/http/middleware"
	"github.com/ignatzorin/escrow-market/internal/interface/http/handler"
	"github.com/ignatzorin/escrow-market/internal/interface/http/response"
)

// Handlers все обработчики API.
type Handlers struct {
	Listing   *handler.ListingHandler
	Order     *handler.OrderHandler
	Dispute   *handler.DisputeHandler
	Milestone *handler.MilestoneHandler
	Wallet    *handler.WalletHandler
	File      *handler.FileHandler
	WS        *handler.WSHandler
}

func SetupRouter(cfg *config.Config, h Handlers, tokens middleware.AccessParser, log *logrus.Logger) *gin.Engine {
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Logger())
	r.Use(middleware.ErrorHandler(log))
	r.Use(middleware.CORSMiddleware(cfg.AllowedOrigins))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "time": time.Now().UTC()})
	})

	r.NoRoute(func(c *gin.Context) {
		response.NotFound(c, "маршрут не найден")
	})

	api := r.Group("/api")

	// Публичные маршруты
	api.GET("/listings/:id", middleware.UUIDValidator("id"), h.Listing.GetListing)
	api.GET("/users/:id/listings", middleware.UUIDValidator("id"), h.Listing.ListUserListings)
	api.GET("/users/:id/profile", middleware.UUIDValidator("id"), h.Wallet.UserProfile)

	// Защищённые маршруты
	protected := api.Group("/")
	protected.Use(middleware.AuthMiddleware(tokens))
	protected.Use(middleware.RateLimitMiddleware(cfg.RateLimitLimit, cfg.RateLimitPeriod))
	{
		protected.GET("/ws", h.WS.Handle)

		protected.POST("/listings", h.Listing.CreateListing)
		protected.PUT("/listings/:id", middleware.UUIDValidator("id"), h.Listing.UpdateListing)
		protected.POST("/listings/:id/deactivate", middleware.UUIDValidator("id"), h.Listing.DeactivateListing)

		protected.POST("/wallet/deposit", h.Wallet.Deposit)
		protected.GET("/wallet/balance", h.Wallet.Balance)

		protected.POST("/files", h.File.Upload)
		protected.GET("/files/:name", h.File.Download)

		protected.POST("/orders", h.Order.CreateOrder)
		protected.GET("/orders/my", h.Order.ListMyOrders)

		orders := protected.Group("/orders/:id")
		orders.Use(middleware.UUIDValidator("id"))
		{
			orders.GET("", h.Order.GetOrder)
			orders.POST("/accept", h.Order.AcceptOrder)
			orders.POST("/start", h.Order.StartOrder)
			orders.POST("/deliver", h.Order.DeliverOrder)
			orders.POST("/revision", h.Order.RequestRevision)
			orders.POST("/complete", h.Order.CompleteOrder)
			orders.POST("/cancel", h.Order.CancelOrder)
			orders.POST("/auto-release", h.Order.AutoRelease)
			orders.POST("/reviews", h.Order.LeaveReview)

			orders.GET("/milestones", h.Milestone.ListMilestones)

			orders.POST("/dispute", h.Dispute.OpenDispute)
			orders.GET("/dispute", h.Dispute.GetDispute)

			// Разбор споров только для арбитров и администраторов
			arbitration := orders.Group("/dispute")
			arbitration.Use(middleware.RequireRole(valueobject.RoleArbiter, valueobject.RoleAdmin))
			{
				arbitration.POST("/assign", h.Dispute.AssignArbiter)
				arbitration.POST("/resolve", h.Dispute.ResolveDispute)
				arbitration.POST("/dismiss", h.Dispute.DismissDispute)
			}
		}

		milestones := protected.Group("/milestones/:id")
		milestones.Use(middleware.UUIDValidator("id"))
		{
			milestones.POST("/start", h.Milestone.StartMilestone)
			milestones.POST("/submit", h.Milestone.SubmitMilestone)
			milestones.POST("/approve", h.Milestone.ApproveMilestone)
			milestones.POST("/reject", h.Milestone.RejectMilestone)
		}
	}

	return r
}
