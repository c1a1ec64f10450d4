// Package rest serves the HTTP API: read models of the player and browse
// screen, command endpoints, cover uploads, and the mounts for Socket.IO,
// local blobs and metrics.
package rest

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/edumarques81/stellar-online/internal/domain/browse"
	"github.com/edumarques81/stellar-online/internal/domain/control"
	"github.com/edumarques81/stellar-online/internal/domain/player"
	"github.com/edumarques81/stellar-online/internal/infra/catalogdb"
	"github.com/edumarques81/stellar-online/internal/infra/identity"
	"github.com/edumarques81/stellar-online/internal/infra/storage"
)

// CatalogStatus reports catalog health and counts.
type CatalogStatus interface {
	Ping(ctx context.Context) error
	Stats(ctx context.Context) (*catalogdb.Stats, error)
}

// Identity exposes the instance identity.
type Identity interface {
	Info() identity.Info
	SetName(name string) error
}

// Deps are the collaborators behind the routes. Nil handlers leave their
// mount out.
type Deps struct {
	Controller *control.Controller
	Engine     *player.Engine
	Navigator  *browse.Navigator
	Catalog    CatalogStatus
	Identity   Identity

	// Checks are extra named health probes, such as the MPD connection.
	Checks map[string]func(context.Context) error

	Socket  http.Handler
	Blobs   http.Handler
	Metrics http.Handler
}

// Options tunes the router.
type Options struct {
	Debug          bool
	CommandTimeout time.Duration
	// MaxUploadBytes caps multipart cover uploads.
	MaxUploadBytes int64
}

// DefaultOptions returns the options used by the serve command.
func DefaultOptions() Options {
	return Options{
		CommandTimeout: 15 * time.Second,
		MaxUploadBytes: 10 << 20,
	}
}

// Server owns the gin router.
type Server struct {
	deps   Deps
	opts   Options
	router *gin.Engine
}

// New builds the router.
func New(deps Deps, opts Options) *Server {
	if !opts.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	s := &Server{
		deps:   deps,
		opts:   opts,
		router: gin.New(),
	}

	s.setupMiddleware()
	s.setupRoutes()

	return s
}

func (s *Server) setupMiddleware() {
	s.router.Use(gin.Recovery(), requestLogger())

	// CORS headers go on every response, errors included, so browsers
	// serving the frontend from another port can read them.
	corsConfig := cors.DefaultConfig()
	corsConfig.AllowAllOrigins = true
	corsConfig.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type"}
	s.router.Use(cors.New(corsConfig))

	s.router.MaxMultipartMemory = s.opts.MaxUploadBytes
}

func (s *Server) setupRoutes() {
	s.router.GET("/health", s.health)

	v1 := s.router.Group("/api/v1")
	{
		v1.GET("/version", s.getVersion)
		v1.GET("/stats", s.getStats)
		v1.GET("/identity", s.getIdentity)
		v1.POST("/identity", s.renameIdentity)

		v1.GET("/state", s.getState)
		v1.GET("/browse", s.getBrowse)

		v1.GET("/commands", s.listCommands)
		v1.POST("/commands/:name", s.command)
		v1.POST("/covers", s.uploadCover)
	}

	if s.deps.Socket != nil {
		s.router.Any("/socket.io/*any", gin.WrapH(s.deps.Socket))
	}
	if s.deps.Blobs != nil {
		blobs := gin.WrapH(http.StripPrefix(storage.BlobPrefix, s.deps.Blobs))
		s.router.GET(storage.BlobPrefix+"*path", blobs)
		s.router.HEAD(storage.BlobPrefix+"*path", blobs)
	}
	if s.deps.Metrics != nil {
		s.router.GET("/metrics", gin.WrapH(s.deps.Metrics))
	}
}

// Handler returns the router as an http.Handler.
func (s *Server) Handler() http.Handler {
	return s.router
}
