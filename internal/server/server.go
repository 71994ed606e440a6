package server

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"facebook-video-server/internal/cache"
	"facebook-video-server/internal/export"
	"facebook-video-server/internal/extractor"
	"facebook-video-server/internal/monitor"
	"facebook-video-server/internal/ratelimit"
	"facebook-video-server/internal/session"
	"facebook-video-server/internal/utils"
	"facebook-video-server/pkg/models"
)

// loginService is the part of the scraper the auth endpoints use.
type loginService interface {
	Login(ctx context.Context, email, password string) error
	ManualLogin(ctx context.Context) error
}

// Server is the REST API over the extraction pipeline.
type Server struct {
	config       *models.Config
	engine       *gin.Engine
	httpServer   *http.Server
	orchestrator *extractor.Orchestrator
	scraper      loginService
	session      *session.Manager
	cache        *cache.Cache
	history      models.History
	monitor      *monitor.Monitor
	downloader   *http.Client
	logger       zerolog.Logger
}

// NewServer wires the API together. history may be nil.
func NewServer(cfg *models.Config, orch *extractor.Orchestrator, scr loginService, sess *session.Manager, c *cache.Cache, history models.History, mon *monitor.Monitor) (*Server, error) {
	downloader, err := utils.NewHTTPClient(utils.HTTPClientOptions{
		Timeout:   time.Duration(cfg.Download.Timeout) * time.Second,
		UserAgent: cfg.Resolver.UserAgent,
		ProxyURL:  proxyURL(cfg),
	})
	if err != nil {
		return nil, fmt.Errorf("error creating download client: %w", err)
	}

	s := &Server{
		config:       cfg,
		orchestrator: orch,
		scraper:      scr,
		session:      sess,
		cache:        c,
		history:      history,
		monitor:      mon,
		downloader:   downloader,
		logger:       zerolog.New(os.Stdout).With().Timestamp().Str("component", "server").Logger(),
	}

	gin.SetMode(gin.ReleaseMode)
	s.engine = gin.New()
	s.engine.Use(gin.Recovery())
	s.setupRoutes()

	return s, nil
}

func proxyURL(cfg *models.Config) string {
	if cfg.Proxy.Enabled {
		return cfg.Proxy.URL
	}
	return ""
}

func (s *Server) corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

func (s *Server) setupRoutes() {
	s.engine.Use(s.corsMiddleware())

	if s.config.RateLimit.Enabled {
		limiter := ratelimit.NewRateLimiter(s.config.RateLimit.WhitelistedIPs)
		s.engine.Use(limiter.Middleware(s.config.RateLimit.RequestsPerSecond, s.config.RateLimit.Burst))

		throttler := ratelimit.NewThrottler(s.config.RateLimit.MaxConcurrent)
		s.engine.Use(throttler.Middleware())
	}

	s.engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := s.engine.Group("/api")
	{
		api.GET("/extract", s.handleExtract)
		api.GET("/download", s.handleDownload)
		api.GET("/health", s.handleHealth)

		api.POST("/cache/clear", s.handleCacheClear)

		auth := api.Group("/auth")
		{
			auth.GET("/status", s.handleAuthStatus)
			auth.POST("/login", s.handleLogin)
			auth.POST("/manual", s.handleManualLogin)
			auth.POST("/logout", s.handleLogout)
		}

		api.GET("/history", s.handleHistory)
		api.GET("/history/export", s.handleHistoryExport)
	}
}

// Start runs the server until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) Start(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.Port)
	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.engine,
		ReadTimeout:  time.Duration(s.config.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(s.config.Server.WriteTimeout) * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", addr).Msg("Server listening")
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	s.logger.Info().Msg("Shutting down")
	return s.httpServer.Shutdown(shutdownCtx)
}

func (s *Server) handleExtract(c *gin.Context) {
	url := c.Query("url")
	if url == "" {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "url parameter is required"})
		return
	}
	if err := extractor.ValidateFacebookURL(url); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
		return
	}

	// Auth mode only takes effect when a logged-in session exists.
	useAuth := c.Query("auth") == "true" && s.session.Authenticated()

	result, err := s.orchestrator.Extract(c.Request.Context(), url, useAuth)
	if err != nil {
		suggestion := "Try adding ?auth=true to enable authentication for private videos."
		if useAuth {
			suggestion = "The video may be deleted or you may not have access to this private content."
		}
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":      "Failed to extract video",
			"message":    err.Error(),
			"suggestion": suggestion,
		})
		return
	}
	c.JSON(http.StatusOK, result)
}

func (s *Server) handleDownload(c *gin.Context) {
	rawURL := c.Query("url")
	if rawURL == "" {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "url parameter is required"})
		return
	}

	// Media URLs arrive with the escaping they carried in page source.
	mediaURL := utils.DecodeEscapedURL(rawURL)

	req, err := http.NewRequestWithContext(c.Request.Context(), http.MethodGet, mediaURL, nil)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "invalid media URL"})
		return
	}

	resp, err := s.downloader.Do(req)
	if err != nil {
		s.logger.Warn().Err(err).Msg("Download fetch failed")
		c.JSON(http.StatusBadGateway, gin.H{"success": false, "error": "failed to fetch media"})
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusPartialContent {
		c.JSON(http.StatusBadGateway, gin.H{"success": false, "error": fmt.Sprintf("media host returned %d", resp.StatusCode)})
		return
	}

	filename := c.Query("filename")
	if filename == "" {
		filename = "video.mp4"
	} else {
		filename = utils.SanitizeFilename(filename)
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "video/mp4"
	}
	c.Header("Content-Type", contentType)
	if cl := resp.Header.Get("Content-Length"); cl != "" {
		c.Header("Content-Length", cl)
	}

	c.Status(http.StatusOK)
	if _, err := io.Copy(c.Writer, resp.Body); err != nil {
		s.logger.Debug().Err(err).Msg("Download stream interrupted")
	}
}

func (s *Server) handleHealth(c *gin.Context) {
	payload := gin.H{
		"status":        "ok",
		"timestamp":     time.Now().UTC().Format(time.RFC3339),
		"authenticated": s.session.Authenticated(),
	}
	if s.monitor != nil {
		payload["system"] = s.monitor.HealthCheck()
	}
	c.JSON(http.StatusOK, payload)
}

func (s *Server) handleCacheClear(c *gin.Context) {
	n := s.cache.Clear()
	c.JSON(http.StatusOK, gin.H{"success": true, "cleared": n})
}

func (s *Server) handleAuthStatus(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"authenticated":   s.session.Authenticated(),
		"hasSavedCookies": s.session.HasSavedCookies(),
	})
}

func (s *Server) handleLogin(c *gin.Context) {
	var req struct {
		Email    string `json:"email" binding:"required"`
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "email and password are required"})
		return
	}

	// Login outlives the HTTP write timeout on 2FA, so it gets its own
	// deadline rather than the request's.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	if err := s.scraper.Login(ctx, req.Email, req.Password); err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"success": false, "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "authenticated": s.session.Authenticated()})
}

func (s *Server) handleManualLogin(c *gin.Context) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	if err := s.scraper.ManualLogin(ctx); err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"success": false, "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "authenticated": s.session.Authenticated()})
}

func (s *Server) handleLogout(c *gin.Context) {
	if err := s.session.Clear(); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (s *Server) handleHistory(c *gin.Context) {
	if s.history == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"success": false, "error": "history storage is disabled"})
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	records, err := s.history.RecentExtractions(limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "records": records})
}

func (s *Server) handleHistoryExport(c *gin.Context) {
	if s.history == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"success": false, "error": "history storage is disabled"})
		return
	}

	records, err := s.history.RecentExtractions(1000)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": err.Error()})
		return
	}

	buf, err := export.HistoryWorkbook(records)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": err.Error()})
		return
	}

	c.Header("Content-Disposition", `attachment; filename="extractions.xlsx"`)
	c.Data(http.StatusOK, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", buf.Bytes())
}

// Engine exposes the router for tests.
func (s *Server) Engine() *gin.Engine {
	return s.engine
}
