package rest

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/edumarques81/stellar-online/internal/domain/browse"
	"github.com/edumarques81/stellar-online/internal/domain/catalog"
	"github.com/edumarques81/stellar-online/internal/domain/control"
	"github.com/edumarques81/stellar-online/internal/domain/player"
	"github.com/edumarques81/stellar-online/internal/infra/identity"
	"github.com/edumarques81/stellar-online/internal/version"
)

// health reports "ok" when every probe passes and 503 otherwise.
func (s *Server) health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	checks := gin.H{}
	healthy := true
	probe := func(name string, fn func(context.Context) error) {
		if err := fn(ctx); err != nil {
			log.Warn().Err(err).Str("check", name).Msg("Health check failed")
			checks[name] = err.Error()
			healthy = false
			return
		}
		checks[name] = "ok"
	}

	if s.deps.Catalog != nil {
		probe("catalog", s.deps.Catalog.Ping)
	}
	for name, fn := range s.deps.Checks {
		probe(name, fn)
	}

	if !healthy {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "error", "checks": checks})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "checks": checks})
}

func (s *Server) getVersion(c *gin.Context) {
	c.JSON(http.StatusOK, version.GetInfo())
}

func (s *Server) getIdentity(c *gin.Context) {
	if s.deps.Identity == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "identity unavailable"})
		return
	}
	c.JSON(http.StatusOK, s.deps.Identity.Info())
}

// renameIdentity takes {"name": "..."}.
func (s *Server) renameIdentity(c *gin.Context) {
	if s.deps.Identity == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "identity unavailable"})
		return
	}
	var req struct {
		Name string `json:"name"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON body: " + err.Error()})
		return
	}
	if err := s.deps.Identity.SetName(req.Name); err != nil {
		s.fail(c, err)
		return
	}
	log.Info().Str("name", req.Name).Msg("Instance renamed")
	c.JSON(http.StatusOK, s.deps.Identity.Info())
}

func (s *Server) getStats(c *gin.Context) {
	if s.deps.Catalog == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "catalog stats unavailable"})
		return
	}
	stats, err := s.deps.Catalog.Stats(c.Request.Context())
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (s *Server) getState(c *gin.Context) {
	c.JSON(http.StatusOK, s.deps.Engine.Snapshot().ToJSON())
}

func (s *Server) getBrowse(c *gin.Context) {
	c.JSON(http.StatusOK, s.deps.Navigator.View())
}

func (s *Server) listCommands(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"commands": s.deps.Controller.Names()})
}

// command dispatches POST /api/v1/commands/:name. The optional JSON body
// is the argument object, or a bare value passed as "value".
func (s *Server) command(c *gin.Context) {
	name := c.Param("name")

	var payload any
	if err := c.ShouldBindJSON(&payload); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON body: " + err.Error()})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), s.opts.CommandTimeout)
	defer cancel()

	res, err := s.deps.Controller.Dispatch(ctx, name, control.ArgsFrom(payload))
	if err != nil {
		log.Error().Err(err).Str("cmd", name).Msg("Command failed")
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"cmd": name, "result": res})
}

// uploadCover stores the multipart "file" as the cover of the playlist or
// facet item named by the "playlistId" or "itemId" form field.
func (s *Server) uploadCover(c *gin.Context) {
	fh, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing file: " + err.Error()})
		return
	}
	if s.opts.MaxUploadBytes > 0 && fh.Size > s.opts.MaxUploadBytes {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "file too large"})
		return
	}

	args := control.Args{}
	for _, key := range []string{"playlistId", "itemId"} {
		if v := c.PostForm(key); v != "" {
			args[key] = v
		}
	}
	target, err := s.deps.Controller.CoverTarget(args)
	if err != nil {
		s.fail(c, err)
		return
	}

	f, err := fh.Open()
	if err != nil {
		s.fail(c, err)
		return
	}
	defer f.Close()

	path, err := s.deps.Controller.UploadCover(c.Request.Context(), target, f)
	if err != nil {
		log.Error().Err(err).Str("file", fh.Filename).Msg("Cover upload failed")
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"path": path})
}

func (s *Server) fail(c *gin.Context, err error) {
	c.JSON(statusFor(err), gin.H{"error": err.Error()})
}

// statusFor maps domain errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, control.ErrUnknownCommand),
		errors.Is(err, control.ErrNotVisible),
		errors.Is(err, catalog.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, control.ErrBadArgument),
		errors.Is(err, browse.ErrEmptyName),
		errors.Is(err, identity.ErrEmptyName):
		return http.StatusBadRequest
	case errors.Is(err, player.ErrEmptyQueue),
		errors.Is(err, player.ErrIndexOutOfRange),
		errors.Is(err, player.ErrNoTrack),
		errors.Is(err, browse.ErrNoBlobStore):
		return http.StatusConflict
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	}
	return http.StatusInternalServerError
}
