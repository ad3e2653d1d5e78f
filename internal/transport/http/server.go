package http

import (
	stdhttp "net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/gridspace/gridspace-server/internal/auth"
	"github.com/gridspace/gridspace-server/internal/config"
	"github.com/gridspace/gridspace-server/internal/core"
	"github.com/gridspace/gridspace-server/internal/store"
)

// NewServer builds the HTTP server: REST API for accounts and spaces plus
// the WebSocket endpoint for the realtime protocol.
func NewServer(hub *core.Hub, authService *auth.Service, st store.Store, cfg config.Config, logger *zerolog.Logger) *stdhttp.Server {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(gin.Recovery(), LoggerMiddleware(logger))

	api := NewAPIHandlers(authService, logger)
	spaces := NewSpaceHandlers(st, logger)
	users := NewUserHandlers(st, logger)

	router.GET("/health", func(c *gin.Context) {
		c.String(stdhttp.StatusOK, "ok")
	})

	apiGroup := router.Group("/api")
	apiGroup.POST("/register", api.Register)
	apiGroup.POST("/login", api.Login)
	apiGroup.POST("/guest", api.GuestLogin)

	authed := apiGroup.Group("", AuthMiddleware(authService, logger))
	authed.POST("/spaces", spaces.CreateSpace)
	authed.GET("/spaces", spaces.ListSpaces)
	authed.GET("/spaces/:id", spaces.GetSpace)
	authed.DELETE("/spaces/:id", spaces.DeleteSpace)
	authed.PUT("/users/avatar", users.UpdateAvatar)

	router.GET("/ws", gin.WrapH(NewWSHandler(hub, authService, st, logger)))

	return &stdhttp.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
	}
}
