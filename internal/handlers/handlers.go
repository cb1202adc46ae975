package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"usergate/api/internal/config"
	"usergate/api/internal/middleware"
	"usergate/api/internal/repository"
	"usergate/api/internal/service"
)

type HandlerSet struct {
	log         zerolog.Logger
	cfg         *config.AppConfig
	store       repository.Store
	authService *service.AuthService
	userService *service.UserService
	db          *pgxpool.Pool
	cache       *redis.Client
}

func NewHandlerSet(log zerolog.Logger, db *pgxpool.Pool, cache *redis.Client, cfg *config.AppConfig) HandlerSet {
	return newHandlerSet(log, repository.NewPostgres(db), db, cache, cfg)
}

func newHandlerSet(log zerolog.Logger, store repository.Store, db *pgxpool.Pool, cache *redis.Client, cfg *config.AppConfig) HandlerSet {
	return HandlerSet{
		log:         log,
		cfg:         cfg,
		store:       store,
		authService: service.NewAuthService(store, cfg, log),
		userService: service.NewUserService(store, log),
		db:          db,
		cache:       cache,
	}
}

func (h HandlerSet) Register(router *gin.RouterGroup) {
	router.GET("/healthz", h.Health)

	auth := router.Group("/auth")
	auth.POST("/register", h.RegisterUser)
	auth.POST("/login", h.Login)

	authed := router.Group("/auth")
	authed.Use(middleware.Auth(h.store, h.log))
	authed.GET("/profile", h.Profile)
	authed.POST("/logout", h.Logout)
	authed.GET("/logs", h.LoginAudit)

	users := router.Group("/users")
	users.Use(middleware.Auth(h.store, h.log))
	users.GET("", middleware.RequirePermission(h.store, "users", "read", h.log), h.ListUsers)
	users.PUT("/:id", middleware.RequirePermission(h.store, "users", "write", h.log), h.UpdateUser)
	users.DELETE("/:id", middleware.RequirePermission(h.store, "users", "delete", h.log), h.DeleteUser)
	users.GET("/:id/permissions", h.UserPermissions)
}
