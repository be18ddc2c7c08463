package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/brocantia/collector/internal/admin"
	"github.com/brocantia/collector/internal/config"
	"github.com/brocantia/collector/internal/db"
	"github.com/brocantia/collector/internal/identity"
	"github.com/brocantia/collector/internal/listing"
	appmw "github.com/brocantia/collector/internal/middleware"
	"github.com/brocantia/collector/internal/moderation"
	"github.com/brocantia/collector/internal/publicapi"
	"github.com/brocantia/collector/internal/seller"
	"github.com/brocantia/collector/internal/user"
	"github.com/brocantia/collector/pkg/logger"
)

type requestValidator struct {
	validate *validator.Validate
}

func (v *requestValidator) Validate(i interface{}) error {
	return v.validate.Struct(i)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.Error("invalid configuration: %v", err)
		os.Exit(1)
	}

	db.Init(cfg.DatabaseURL())
	defer db.Conn.Close()

	authn, err := appmw.NewAuthenticator(cfg.Auth0Domain, cfg.Auth0Audience)
	if err != nil {
		logger.Error("could not initialize authenticator: %v", err)
		os.Exit(1)
	}

	idp := identity.NewClient(cfg.Auth0Domain, cfg.Auth0MgmtClientID, cfg.Auth0MgmtClientSecret, cfg.Auth0MgmtAudience)
	checker := moderation.NewGateway(cfg.ContentCheckURL)
	svc := listing.NewService(listing.NewPGStore(db.Conn), checker)

	e := echo.New()
	e.HideBanner = true
	e.Validator = &requestValidator{validate: validator.New()}
	e.Use(echomw.Logger())
	e.Use(echomw.Recover())
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.AllowedOrigins(),
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete},
	}))

	registerRoutes(e, authn, idp, svc)

	go func() {
		logger.Info("API server listening on :%s", cfg.Port)
		startServer(e, cfg.Port)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(ctx); err != nil {
		logger.Error("shutdown error: %v", err)
	}
}

func registerRoutes(e *echo.Echo, authn *appmw.Authenticator, idp *identity.Client, svc *listing.Service) {
	e.GET("/health", func(c echo.Context) error { return c.String(http.StatusOK, "ok") })

	// Public catalog, no token required.
	e.GET("/public/items", publicapi.Feed)
	e.GET("/public/items/:id", publicapi.ItemDetail)
	e.GET("/public/search", publicapi.Search)
	e.GET("/public/shops/:id", publicapi.ShopProfile)
	e.GET("/public/sellers/:id", publicapi.SellerProfile)
	e.GET("/public/categories", publicapi.Categories)

	// Account routes: any valid token.
	me := e.Group("/me")
	me.Use(authn.Require)
	me.GET("", user.Me)
	me.POST("/sync", user.Sync)
	me.PUT("/display-name", user.SetDisplayName)

	// Seller routes.
	sellerHandler := seller.NewHandler(svc)
	sg := e.Group("/seller")
	sg.Use(authn.Require)
	sg.Use(appmw.RequireRole("SELLER"))
	sg.GET("/shops", sellerHandler.ListShops)
	sg.POST("/shops", sellerHandler.CreateShop)
	sg.GET("/items", sellerHandler.ListItems)
	sg.POST("/items", sellerHandler.CreateItem)
	sg.GET("/items/:id", sellerHandler.GetItem)
	sg.PUT("/items/:id", sellerHandler.UpdateItem)
	sg.PATCH("/items/:id", sellerHandler.UpdateItem)
	sg.PUT("/items/:id/images", sellerHandler.ReplaceImages)
	sg.POST("/items/:id/submit", sellerHandler.SubmitItem)
	sg.POST("/items/:id/mark-sold", sellerHandler.MarkItemSold)
	sg.DELETE("/items/:id", sellerHandler.DeleteItem)

	// Admin routes.
	adminHandler := admin.NewHandler(idp, svc)
	ag := e.Group("/admin")
	ag.Use(authn.Require)
	ag.Use(appmw.RequireRole("ADMIN"))
	ag.GET("/users", adminHandler.ListUsers)
	ag.PUT("/users/:id/active", adminHandler.SetActive)
	ag.PUT("/users/:id/role", adminHandler.SetRole)
	ag.PUT("/users/:id/display-name", adminHandler.SetDisplayName)
	ag.PUT("/users/:id/email", adminHandler.SetEmail)
	ag.PUT("/users/:id/password", adminHandler.SetPassword)
	ag.DELETE("/users/:id", adminHandler.DeleteUser)
	ag.GET("/categories", adminHandler.ListCategories)
	ag.POST("/categories", adminHandler.CreateCategory)
	ag.PUT("/categories/:id", adminHandler.UpdateCategory)
	ag.DELETE("/categories/:id", adminHandler.DeleteCategory)
	ag.GET("/collector/items", adminHandler.ReviewQueue)
	ag.GET("/collector/items/:id/reviews", adminHandler.ReviewHistory)
	ag.POST("/collector/items/:id/review", adminHandler.Review)
}

func startServer(e *echo.Echo, port string) {
	if err := e.Start(":" + port); err != nil && err != http.ErrServerClosed {
		logger.Error("server error: %v", err)
		os.Exit(1)
	}
}
