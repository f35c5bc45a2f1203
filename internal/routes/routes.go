package routes

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"github.com/Doogleyarae/Doogleonline-sub000/internal/config"
	"github.com/Doogleyarae/Doogleonline-sub000/internal/handlers"
	"github.com/Doogleyarae/Doogleonline-sub000/internal/middleware"
	"github.com/Doogleyarae/Doogleonline-sub000/internal/monitoring"
	"github.com/Doogleyarae/Doogleonline-sub000/internal/repository"
)

type Dependencies struct {
	Config   *config.Config
	DB       *repository.Database
	Redis    *redis.Client
	Sessions repository.SessionStore

	OrderHandler   *handlers.OrderHandler
	RateHandler    *handlers.RateHandler
	ContactHandler *handlers.ContactHandler
	AdminHandler   *handlers.AdminHandler
	WSHandler      *handlers.WSHandler
}

func SetupRouter(deps *Dependencies) *gin.Engine {
	if !deps.Config.Server.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(middleware.Recovery())
	router.Use(middleware.RequestLogger())
	router.Use(monitoring.MetricsMiddleware())

	if deps.Config.Server.CORSEnabled {
		corsConfig := cors.DefaultConfig()
		corsConfig.AllowOrigins = deps.Config.Server.AllowedOrigins
		corsConfig.AllowHeaders = append(corsConfig.AllowHeaders, "Authorization")
		if len(corsConfig.AllowOrigins) == 1 && corsConfig.AllowOrigins[0] == "*" {
			corsConfig.AllowAllOrigins = true
			corsConfig.AllowOrigins = nil
		}
		router.Use(cors.New(corsConfig))
	}

	router.GET("/health", monitoring.HealthHandler(deps.DB, deps.Redis))
	router.GET("/metrics", monitoring.MetricsHandler())
	router.GET("/ws", deps.WSHandler.Serve)

	api := router.Group("/api")
	{
		api.POST("/orders", deps.OrderHandler.CreateOrder)
		api.GET("/orders/:orderId", deps.OrderHandler.GetOrder)
		api.PATCH("/orders/:orderId/status", deps.OrderHandler.UpdateStatus)

		api.GET("/exchange-rate", deps.RateHandler.GetExchangeRate)
		api.GET("/currency-limits/:currency", deps.RateHandler.GetCurrencyLimits)

		api.POST("/contact", deps.ContactHandler.Submit)

		api.POST("/admin/login", deps.AdminHandler.Login)
	}

	admin := api.Group("/admin")
	admin.Use(middleware.RequireAdmin(deps.Sessions))
	{
		admin.POST("/logout", deps.AdminHandler.Logout)

		admin.GET("/orders", deps.AdminHandler.ListOrders)
		admin.PATCH("/orders/:orderId/status", deps.AdminHandler.UpdateOrderStatus)

		admin.GET("/exchange-rates", deps.AdminHandler.ListRates)
		admin.POST("/exchange-rates", deps.AdminHandler.UpdateRate)
		admin.GET("/exchange-rates/history", deps.AdminHandler.RateHistory)

		admin.GET("/currency-limits", deps.AdminHandler.ListLimits)
		admin.PUT("/currency-limits/:currency", deps.AdminHandler.UpdateLimit)
		admin.DELETE("/currency-limits/:currency", deps.AdminHandler.DeleteLimit)
		admin.PUT("/currency-limits", deps.AdminHandler.SetUniversalLimits)

		admin.GET("/wallet-addresses", deps.AdminHandler.ListWallets)
		admin.PUT("/wallet-addresses/:method", deps.AdminHandler.UpsertWallet)

		admin.GET("/balances", deps.AdminHandler.ListBalances)
		admin.POST("/balances/:currency/credit", deps.AdminHandler.CreditBalance)
		admin.POST("/balances/:currency/debit", deps.AdminHandler.DebitBalance)
		admin.PUT("/balances/:currency", deps.AdminHandler.SetBalance)

		admin.GET("/system-status", deps.AdminHandler.GetSystemStatus)
		admin.PUT("/system-status", deps.AdminHandler.SetSystemStatus)

		admin.GET("/messages", deps.AdminHandler.ListMessages)
		admin.GET("/messages/:id", deps.AdminHandler.GetMessage)
		admin.POST("/messages/:id/reply", deps.AdminHandler.ReplyMessage)
	}

	return router
}
