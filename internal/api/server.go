package api

import (
	"crypto/rand"
	"encoding/base64"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/bverbist/tenderwatch/internal/config"
	"github.com/bverbist/tenderwatch/internal/db"
	"github.com/bverbist/tenderwatch/internal/ingest"
	"github.com/bverbist/tenderwatch/internal/match"
	"github.com/bverbist/tenderwatch/internal/models"
)

// Server exposes the notice store and the batch engines over HTTP. The
// engines themselves never start on their own here; every trigger route
// runs one bounded pass and returns its counters.
type Server struct {
	Echo     *echo.Echo
	Store    *db.Store
	Importer *ingest.Importer
	Backfill *ingest.Backfiller
	Cleaner  *ingest.Cleaner
	Matcher  *match.Engine
	Log      *zap.Logger

	adminSecret string
}

func NewServer(cfg *config.Config, store *db.Store, importer *ingest.Importer, backfill *ingest.Backfiller, cleaner *ingest.Cleaner, matcher *match.Engine, log *zap.Logger) *Server {
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())

	secret := strings.TrimSpace(cfg.Server.AdminSecret)
	if secret == "" {
		buf := make([]byte, 48)
		if _, err := rand.Read(buf); err == nil {
			secret = base64.RawURLEncoding.EncodeToString(buf)
			log.Warn("server.adminSecret is not set; using ephemeral in-memory fallback secret")
		}
	}

	s := &Server{
		Echo:        e,
		Store:       store,
		Importer:    importer,
		Backfill:    backfill,
		Cleaner:     cleaner,
		Matcher:     matcher,
		Log:         log,
		adminSecret: secret,
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.Echo.GET("/health", s.handleHealth)
	api := s.Echo.Group("/api/v1")
	api.GET("/notices", s.handleListNotices)
	api.GET("/notices/:id", s.handleGetNotice)
	api.GET("/stats", s.handleGetStats)

	api.GET("/watchlists", s.handleListWatchlists)
	api.POST("/watchlists", s.handleCreateWatchlist)
	api.GET("/watchlists/:id", s.handleGetWatchlist)
	api.PATCH("/watchlists/:id", s.handleUpdateWatchlist)
	api.DELETE("/watchlists/:id", s.handleDeleteWatchlist)
	api.GET("/watchlists/:id/matches", s.handleListMatches)

	admin := api.Group("/admin")
	admin.Use(s.adminMiddleware)
	admin.POST("/import", s.handleTriggerImport)
	admin.POST("/backfill", s.handleTriggerBackfill)
	admin.POST("/merge-orphans", s.handleTriggerMergeOrphans)
	admin.POST("/cleanup-duplicates", s.handleTriggerCleanup)
	admin.POST("/match", s.handleTriggerMatch)
	admin.POST("/rescore", s.handleTriggerRescore)
	admin.GET("/import-runs", s.handleListImportRuns)
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.String(http.StatusOK, "OK")
}

func (s *Server) handleListNotices(c echo.Context) error {
	params := db.ListParams{
		Query:  c.QueryParam("q"),
		Source: c.QueryParam("source"),
		Type:   c.QueryParam("type"),
		Limit:  20,
	}
	if l, err := strconv.Atoi(c.QueryParam("limit")); err == nil && l > 0 && l <= 100 {
		params.Limit = l
	}
	if o, err := strconv.Atoi(c.QueryParam("offset")); err == nil && o >= 0 {
		params.Offset = o
	}

	result, err := s.Store.ListNotices(c.Request().Context(), params)
	if err != nil {
		s.Log.Error("notice list failed", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Internal Server Error"})
	}
	return c.JSON(http.StatusOK, result)
}

func (s *Server) handleGetNotice(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid notice ID"})
	}
	n, err := s.Store.GetNotice(c.Request().Context(), id)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	if n == nil {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "Not found"})
	}
	return c.JSON(http.StatusOK, n)
}

func (s *Server) handleGetStats(c echo.Context) error {
	stats, err := s.Store.GetStats(c.Request().Context())
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	return c.JSON(http.StatusOK, stats)
}

// Watchlist CRUD

type watchlistRequest struct {
	Name           string   `json:"name"`
	Keywords       []string `json:"keywords"`
	CPVPrefixes    []string `json:"cpv_prefixes"`
	RegionPrefixes []string `json:"region_prefixes"`
	Sources        []string `json:"sources"`
	Enabled        *bool    `json:"enabled"`
	NotifyEmail    string   `json:"notify_email"`
}

func (r *watchlistRequest) validate() string {
	if strings.TrimSpace(r.Name) == "" {
		return "name is required"
	}
	for _, src := range r.Sources {
		if !models.ValidSource(models.Source(src)) {
			return "unknown source: " + src
		}
	}
	return ""
}

func (s *Server) handleListWatchlists(c echo.Context) error {
	enabledOnly := c.QueryParam("enabled") == "true"
	lists, err := s.Store.ListWatchlists(c.Request().Context(), enabledOnly)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	if lists == nil {
		lists = []models.Watchlist{}
	}
	return c.JSON(http.StatusOK, lists)
}

func (s *Server) handleCreateWatchlist(c echo.Context) error {
	var req watchlistRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request"})
	}
	if msg := req.validate(); msg != "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": msg})
	}

	w := &models.Watchlist{
		Name:           strings.TrimSpace(req.Name),
		Keywords:       req.Keywords,
		CPVPrefixes:    req.CPVPrefixes,
		RegionPrefixes: req.RegionPrefixes,
		Sources:        req.Sources,
		Enabled:        true,
		NotifyEmail:    strings.TrimSpace(req.NotifyEmail),
	}
	if req.Enabled != nil {
		w.Enabled = *req.Enabled
	}
	if err := s.Store.CreateWatchlist(c.Request().Context(), w); err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	return c.JSON(http.StatusCreated, w)
}

func (s *Server) handleGetWatchlist(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid watchlist ID"})
	}
	w, err := s.Store.GetWatchlist(c.Request().Context(), id)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	if w == nil {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "Not found"})
	}
	return c.JSON(http.StatusOK, w)
}

func (s *Server) handleUpdateWatchlist(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid watchlist ID"})
	}
	ctx := c.Request().Context()

	w, err := s.Store.GetWatchlist(ctx, id)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	if w == nil {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "Not found"})
	}

	var req watchlistRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request"})
	}
	if req.Name != "" {
		w.Name = strings.TrimSpace(req.Name)
	}
	if req.Keywords != nil {
		w.Keywords = req.Keywords
	}
	if req.CPVPrefixes != nil {
		w.CPVPrefixes = req.CPVPrefixes
	}
	if req.RegionPrefixes != nil {
		w.RegionPrefixes = req.RegionPrefixes
	}
	if req.Sources != nil {
		for _, src := range req.Sources {
			if !models.ValidSource(models.Source(src)) {
				return c.JSON(http.StatusBadRequest, map[string]string{"error": "unknown source: " + src})
			}
		}
		w.Sources = req.Sources
	}
	if req.Enabled != nil {
		w.Enabled = *req.Enabled
	}
	if req.NotifyEmail != "" {
		w.NotifyEmail = strings.TrimSpace(req.NotifyEmail)
	}

	if err := s.Store.UpdateWatchlist(ctx, w); err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	return c.JSON(http.StatusOK, w)
}

func (s *Server) handleDeleteWatchlist(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid watchlist ID"})
	}
	if err := s.Store.DeleteWatchlist(c.Request().Context(), id); err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) handleListMatches(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid watchlist ID"})
	}
	limit := 50
	if l, err := strconv.Atoi(c.QueryParam("limit")); err == nil && l > 0 && l <= 500 {
		limit = l
	}
	matches, err := s.Store.ListMatches(c.Request().Context(), id, limit)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	if matches == nil {
		matches = []models.WatchlistMatch{}
	}
	return c.JSON(http.StatusOK, matches)
}

// Admin triggers. Each runs synchronously; callers are operators or the
// scheduler, both of which want the counters in the response.

func (s *Server) handleTriggerImport(c echo.Context) error {
	term := c.QueryParam("term")

	// A source parameter narrows the run to one upstream.
	if src := c.QueryParam("source"); src != "" {
		source := models.Source(src)
		if !models.ValidSource(source) {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "source must be national or eu"})
		}
		report := s.Importer.ImportSource(c.Request().Context(), source, term)
		return c.JSON(http.StatusOK, map[string]interface{}{
			"message": "import complete",
			"reports": map[models.Source]ingest.SourceReport{source: report},
		})
	}

	reports := s.Importer.ImportAll(c.Request().Context(), term)
	return c.JSON(http.StatusOK, map[string]interface{}{
		"message": "import complete",
		"reports": reports,
	})
}

func (s *Server) handleTriggerBackfill(c echo.Context) error {
	source := models.Source(c.QueryParam("source"))
	if !models.ValidSource(source) {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "source must be national or eu"})
	}
	limit := 500
	if l, err := strconv.Atoi(c.QueryParam("limit")); err == nil && l > 0 && l <= 5000 {
		limit = l
	}
	result, err := s.Backfill.Backfill(c.Request().Context(), ingest.BackfillParams{Source: source, Limit: limit})
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	return c.JSON(http.StatusOK, result)
}

func (s *Server) handleTriggerMergeOrphans(c echo.Context) error {
	limit := 0
	if l, err := strconv.Atoi(c.QueryParam("limit")); err == nil && l > 0 {
		limit = l
	}
	result, err := s.Cleaner.MergeOrphans(c.Request().Context(), limit)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	return c.JSON(http.StatusOK, result)
}

func (s *Server) handleTriggerCleanup(c echo.Context) error {
	source := models.Source(c.QueryParam("source"))
	if !models.ValidSource(source) {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "source must be national or eu"})
	}
	dryRun := c.QueryParam("dry_run") != "false"
	result, err := s.Cleaner.CleanupDuplicates(c.Request().Context(), source, dryRun)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	return c.JSON(http.StatusOK, result)
}

func (s *Server) handleTriggerMatch(c echo.Context) error {
	result, err := s.Matcher.Run(c.Request().Context())
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	return c.JSON(http.StatusOK, result)
}

func (s *Server) handleTriggerRescore(c echo.Context) error {
	result, err := s.Matcher.Rescore(c.Request().Context())
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	return c.JSON(http.StatusOK, result)
}

func (s *Server) handleListImportRuns(c echo.Context) error {
	limit := 50
	if l, err := strconv.Atoi(c.QueryParam("limit")); err == nil && l > 0 && l <= 500 {
		limit = l
	}
	runs, err := s.Store.ListImportRuns(c.Request().Context(), limit)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	if runs == nil {
		runs = []models.ImportRun{}
	}
	return c.JSON(http.StatusOK, runs)
}

func (s *Server) Start(addr string) error {
	return s.Echo.Start(addr)
}

func (s *Server) adminMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if s.adminSecret == "" {
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Server admin configuration error"})
		}

		authHeader := c.Request().Header.Get("Authorization")
		adminHeader := c.Request().Header.Get("X-Admin-Secret")

		if adminHeader == s.adminSecret {
			return next(c)
		}
		if len(authHeader) > 7 && strings.EqualFold(authHeader[:7], "Bearer ") {
			if authHeader[7:] == s.adminSecret {
				return next(c)
			}
		}
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Unauthorized admin access"})
	}
}
