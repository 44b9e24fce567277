package routes

import (
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/example/stockroute/internal/config"
	"github.com/example/stockroute/internal/handlers"
	"github.com/example/stockroute/internal/logger"
	"github.com/example/stockroute/internal/middleware"
	"github.com/example/stockroute/internal/services"
)

// Deps are the constructed collaborators routes are wired with.
type Deps struct {
	DB        *gorm.DB
	Config    *config.Config
	Log       *logger.Logger
	Accounts  *services.AccountService
	Partners  *services.PartnerService
	Inventory *services.InventoryService
	Images    services.ImageStore
	// Limiter is optional; OTP requests are unthrottled without it.
	Limiter middleware.WindowLimiter
}

// Register wires up all HTTP routes.
func Register(app *fiber.App, d Deps) {
	cfg := d.Config

	authHandler := handlers.NewAuthHandler(d.Accounts)
	managerHandler := handlers.NewManagerHandler(d.Accounts)
	deliveryHandler := handlers.NewDeliveryHandler(d.DB, d.Partners)
	customerHandler := handlers.NewCustomerHandler(d.DB)
	productHandler := handlers.NewProductHandler(d.DB, d.Inventory)
	orderHandler := handlers.NewOrderHandler(d.DB)
	stickyNoteHandler := handlers.NewStickyNoteHandler(d.DB)
	profileHandler := handlers.NewProfileHandler(d.DB)
	uploadHandler := handlers.NewUploadHandler(d.Images)
	dashboardHandler := handlers.NewDashboardHandler(d.DB)
	healthHandler := handlers.NewHealthHandler(d.DB)

	shopAuth := middleware.ShopAuth(cfg.JWT.Secret)
	optionalShopAuth := middleware.OptionalShopAuth(cfg.JWT.Secret)
	deliveryAuth := middleware.DeliveryAuth(d.Partners)
	throttle := middleware.OTPThrottle(d.Limiter, cfg.OTP.ThrottleLimit, cfg.OTP.ThrottleWindow, d.Log)

	api := app.Group("/api")
	api.Get("/health", healthHandler.Health)

	// Auth routes
	auth := api.Group("/auth")
	auth.Post("/signup", throttle, authHandler.Signup)
	auth.Post("/verify-otp", authHandler.VerifyOTP)
	auth.Post("/login", authHandler.Login)
	auth.Post("/password/otp", throttle, authHandler.RequestPasswordOTP)
	auth.Post("/password/reset", authHandler.ResetPassword)

	// Delivery partner lifecycle and login
	delivery := api.Group("/delivery")
	delivery.Post("/register", optionalShopAuth, deliveryHandler.Register)
	delivery.Post("/login", throttle, deliveryHandler.Login)
	delivery.Post("/login/verify", deliveryHandler.VerifyLogin)

	delivery.Get("/partners", shopAuth, deliveryHandler.ListPartners)
	delivery.Patch("/partners/:id/approve", shopAuth, deliveryHandler.ApprovePartner)
	delivery.Patch("/partners/:id/reject", shopAuth, deliveryHandler.RejectPartner)
	delivery.Delete("/partners/:id", optionalShopAuth, middleware.Superuser(cfg.Admin.BypassID), deliveryHandler.DeletePartner)

	// Delivery partner session routes
	self := delivery.Group("", deliveryAuth)
	self.Get("/me", deliveryHandler.Me)
	self.Put("/me/location", deliveryHandler.UpdateLocation)
	self.Post("/logout", deliveryHandler.Logout)
	self.Get("/orders", deliveryHandler.ListOrders)
	self.Patch("/orders/:id/status", deliveryHandler.UpdateOrderStatus)
	self.Get("/customers/search", deliveryHandler.SearchCustomers)
	self.Get("/customers/:id", deliveryHandler.GetCustomer)
	self.Get("/search-history", deliveryHandler.SearchHistory)
	self.Get("/sticky-notes", deliveryHandler.ListStickyNotes)
	self.Post("/sticky-notes", deliveryHandler.CreateStickyNote)

	// Shop routes
	protected := api.Group("", shopAuth)

	protected.Get("/profile", profileHandler.GetProfile)
	protected.Put("/profile", profileHandler.UpdateProfile)
	protected.Get("/seller-details", profileHandler.GetSellerDetails)
	protected.Put("/seller-details", profileHandler.UpsertSellerDetails)
	protected.Get("/bank-details", profileHandler.GetBankDetails)
	protected.Put("/bank-details", profileHandler.UpsertBankDetails)
	protected.Get("/dashboard", dashboardHandler.Stats)

	protected.Get("/managers", managerHandler.ListManagers)
	protected.Post("/managers", managerHandler.CreateManager)
	protected.Delete("/managers/:id", managerHandler.DeleteManager)

	customerHandler.RegisterCustomerRoutes(protected.Group("/customers"))
	productHandler.RegisterProductRoutes(protected.Group("/products"))
	protected.Get("/restock-history", productHandler.ListRestockHistory)

	protected.Get("/orders", orderHandler.ListOrders)
	protected.Post("/orders", orderHandler.CreateOrder)
	protected.Get("/orders/:id", orderHandler.GetOrder)
	protected.Patch("/orders/:id/assign", orderHandler.AssignOrder)
	protected.Patch("/orders/:id/status", orderHandler.UpdateOrderStatus)

	protected.Get("/sticky-notes", stickyNoteHandler.ListStickyNotes)
	protected.Post("/sticky-notes", stickyNoteHandler.CreateStickyNote)
	protected.Put("/sticky-notes/:id", stickyNoteHandler.UpdateStickyNote)
	protected.Delete("/sticky-notes/:id", stickyNoteHandler.DeleteStickyNote)

	protected.Post("/uploads/image", uploadHandler.UploadImage)
}
