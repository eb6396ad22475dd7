package handler

import (
	"github.com/gofiber/fiber/v2"

	"github.com/Tlotliso-Khosi/AQUAGUARDPROJECT-sub001/internal/domain"
	"github.com/Tlotliso-Khosi/AQUAGUARDPROJECT-sub001/internal/handler/middleware"
)

func SetupRoutes(
	app *fiber.App,
	healthHandler *HealthHandler,
	authHandler *AuthHandler,
	farmHandler *FarmHandler,
	marketHandler *MarketHandler,
	authMiddleware fiber.Handler,
) {
	api := app.Group("/api")

	// Health checks (public)
	api.Get("/health", healthHandler.Health)
	api.Get("/ready", healthHandler.Ready)

	// Auth routes (public)
	api.Post("/register", authHandler.Register)
	api.Post("/signup", authHandler.Register)
	api.Post("/login", authHandler.Login)
	api.Post("/user/login", authHandler.Login)

	// Session routes (protected)
	api.Post("/logout", authMiddleware, authHandler.Logout)
	api.Get("/me", authMiddleware, authHandler.Me)

	// Farm routes (require farmer role)
	requireFarmer := middleware.RequireRole(domain.RoleFarmer)

	fields := api.Group("/fields", authMiddleware, requireFarmer)
	fields.Get("/", farmHandler.ListFields)
	fields.Post("/", farmHandler.CreateField)
	fields.Get("/:id", farmHandler.GetField)
	fields.Put("/:id", farmHandler.UpdateField)
	fields.Delete("/:id", farmHandler.DeleteField)

	devices := api.Group("/devices", authMiddleware, requireFarmer)
	devices.Get("/", farmHandler.ListDevices)
	devices.Post("/", farmHandler.CreateDevice)
	devices.Get("/:id", farmHandler.GetDevice)
	devices.Put("/:id", farmHandler.UpdateDevice)
	devices.Delete("/:id", farmHandler.DeleteDevice)

	fieldData := api.Group("/field-data", authMiddleware, requireFarmer)
	fieldData.Get("/", farmHandler.ListReadings)
	fieldData.Post("/", farmHandler.RecordReading)

	api.Get("/statistics", authMiddleware, requireFarmer, farmHandler.Statistics)

	// Marketplace: anyone signed in browses, farmers sell
	products := api.Group("/products", authMiddleware)
	products.Get("/", marketHandler.ListProducts)
	products.Get("/:id", marketHandler.GetProduct)
	products.Post("/", requireFarmer, marketHandler.CreateProduct)
	products.Patch("/:id/inventory", requireFarmer, marketHandler.AdjustInventory)
}
