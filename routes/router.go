package routes

import (
	"log/slog"
	"net/http"
	"time"

	"civicsync/controllers"
	"civicsync/middlewares"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// RouterOptions carries the handlers and middleware the router is built from.
// Auth may be nil, in which case the /api/auth routes are not mounted.
type RouterOptions struct {
	Issues      *controllers.IssueController
	Auth        *controllers.AuthController
	RequireAuth gin.HandlerFunc
	CreateLimit gin.HandlerFunc
	CORSOrigins []string
	Logger      *slog.Logger
}

// NewRouter builds the gin engine with the shared middleware stack.
func NewRouter(opts RouterOptions) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middlewares.RequestID())
	r.Use(middlewares.RequestLogger(opts.Logger))
	r.Use(cors.New(cors.Config{
		AllowOrigins:     opts.CORSOrigins,
		AllowMethods:     []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", middlewares.RequestIDHeader},
		ExposeHeaders:    []string{middlewares.RequestIDHeader},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	if opts.Auth != nil {
		AuthRoutes(r, opts.Auth, opts.RequireAuth)
	}
	createLimit := opts.CreateLimit
	if createLimit == nil {
		createLimit = func(c *gin.Context) { c.Next() }
	}
	IssueRoutes(r, opts.Issues, opts.RequireAuth, createLimit)

	r.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})
	return r
}
