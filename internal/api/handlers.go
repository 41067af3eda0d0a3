package api

import (
	"embed"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"regexp"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	customerrors "github.com/axellelanca/acortador/internal/errors"
	"github.com/axellelanca/acortador/internal/logger"
	"github.com/axellelanca/acortador/internal/services"
	"github.com/axellelanca/acortador/internal/validator"
)

//go:embed templates/*.html
var templatesFS embed.FS

// shortCodePattern is the shape of a path segment that may be a short code.
var shortCodePattern = regexp.MustCompile(`^[a-zA-Z0-9]+$`)

// reservedSegments are top-level paths that are never resolved as short codes.
var reservedSegments = map[string]struct{}{
	"api":        {},
	"privacidad": {},
	"terminos":   {},
	"error":      {},
}

// NewRouter builds the gin engine with logging, recovery, templates and every route.
// Forwarding headers (X-Forwarded-For, X-Real-IP) are honoured only when the direct peer is
// in trustedProxies; an empty list trusts no proxy and the client IP is the socket peer.
func NewRouter(urlService *services.URLService, limiter *services.RateLimitService, trustedProxies []string) (*gin.Engine, error) {
	router := gin.New()
	if err := router.SetTrustedProxies(trustedProxies); err != nil {
		return nil, fmt.Errorf("invalid trusted proxies: %w", err)
	}
	router.Use(logger.RequestLogger(), gin.Recovery())
	router.SetHTMLTemplate(template.Must(template.ParseFS(templatesFS, "templates/*.html")))

	SetupRoutes(router, urlService, limiter)
	return router, nil
}

// SetupRoutes configures all Gin routes and injects necessary dependencies.
func SetupRoutes(router *gin.Engine, urlService *services.URLService, limiter *services.RateLimitService) {
	router.GET("/health", HealthCheckHandler)

	router.GET("/", func(c *gin.Context) {
		c.HTML(http.StatusOK, "index.html", indexPage("", "", ""))
	})
	router.GET("/privacidad", staticPage("privacidad.html"))
	router.GET("/terminos", staticPage("terminos.html"))

	router.POST("/api/url/shorten", ShortenFormHandler(urlService, limiter))

	v1 := router.Group("/api/v1")
	{
		v1.POST("/links", CreateShortLinkHandler(urlService, limiter))
		v1.GET("/links/:shortCode", GetLinkHandler(urlService))
		v1.GET("/quota", QuotaHandler(limiter))
	}

	router.GET("/:shortCode", RedirectHandler(urlService))

	router.NoRoute(NotFoundPageHandler)
}

// HealthCheckHandler handles the /health route to verify service status
func HealthCheckHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// NotFoundPageHandler sends unknown routes back to the form with a message.
func NotFoundPageHandler(c *gin.Context) {
	c.HTML(http.StatusNotFound, "index.html", indexPage("", "", notFoundMessage))
}

func staticPage(name string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.HTML(http.StatusOK, name, nil)
	}
}

func indexPage(longURL, shortURL, errMsg string) gin.H {
	return gin.H{"longUrl": longURL, "shortUrl": shortURL, "error": errMsg}
}

// RateLimitMessage is shown when a client has used its whole quota.
func RateLimitMessage(limit int) string {
	return fmt.Sprintf("Límite diario alcanzado (%d URLs).", limit)
}

const (
	genericErrorMessage = "Se produjo un error inesperado. Inténtalo de nuevo más tarde."
	notFoundMessage     = "La página solicitada no existe."
)

// ShortenFormHandler handles the HTML form. The URL is validated before any storage
// access; a request over quota consumes nothing, and a failed creation gives its slot back.
func ShortenFormHandler(urlService *services.URLService, limiter *services.RateLimitService) gin.HandlerFunc {
	return func(c *gin.Context) {
		longURL := c.PostForm("longUrl")
		clientIP := c.ClientIP()

		if err := validator.ValidateURL(longURL); err != nil {
			c.HTML(http.StatusBadRequest, "index.html", indexPage(longURL, "", validationMessage(err)))
			return
		}

		allowed, err := limiter.Acquire(c.Request.Context(), clientIP)
		if err != nil {
			logger.Log.Error("rate limit check failed", zap.Error(err))
			c.HTML(http.StatusInternalServerError, "index.html", indexPage(longURL, "", genericErrorMessage))
			return
		}
		if !allowed {
			c.HTML(http.StatusTooManyRequests, "index.html", indexPage(longURL, "", RateLimitMessage(limiter.Limit())))
			return
		}

		mapping, err := urlService.Shorten(c.Request.Context(), longURL)
		if err != nil {
			logger.Log.Error("failed to shorten url", zap.String("long_url", longURL), zap.Error(err))
			releaseSlot(c, limiter, clientIP)
			c.HTML(shortenErrorStatus(err), "index.html", indexPage(longURL, "", genericErrorMessage))
			return
		}

		c.HTML(http.StatusOK, "index.html", indexPage(longURL, mapping.ShortURL, ""))
	}
}

// CreateLinkRequest represents the JSON request body for creating a link.
type CreateLinkRequest struct {
	LongURL string `json:"long_url" binding:"required"`
}

// CreateLinkResponse represents a mapping in JSON responses.
type CreateLinkResponse struct {
	ShortCode string    `json:"short_code"`
	LongURL   string    `json:"long_url"`
	ShortURL  string    `json:"short_url"`
	CreatedAt time.Time `json:"created_at"`
}

// CreateShortLinkHandler is the JSON twin of ShortenFormHandler.
func CreateShortLinkHandler(urlService *services.URLService, limiter *services.RateLimitService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req CreateLinkRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
			return
		}

		if err := validator.ValidateURL(req.LongURL); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": validationMessage(err)})
			return
		}

		clientIP := c.ClientIP()
		allowed, err := limiter.Acquire(c.Request.Context(), clientIP)
		if err != nil {
			logger.Log.Error("rate limit check failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
			return
		}
		if !allowed {
			c.JSON(http.StatusTooManyRequests, gin.H{"error": RateLimitMessage(limiter.Limit()), "limit": limiter.Limit()})
			return
		}

		mapping, err := urlService.Shorten(c.Request.Context(), req.LongURL)
		if err != nil {
			logger.Log.Error("failed to shorten url", zap.String("long_url", req.LongURL), zap.Error(err))
			releaseSlot(c, limiter, clientIP)
			c.JSON(shortenErrorStatus(err), gin.H{"error": "Failed to create short link"})
			return
		}

		c.JSON(http.StatusCreated, CreateLinkResponse{
			ShortCode: mapping.ShortCode,
			LongURL:   mapping.LongURL,
			ShortURL:  mapping.ShortURL,
			CreatedAt: mapping.CreatedAt,
		})
	}
}

// GetLinkHandler returns the mapping of a short code.
func GetLinkHandler(urlService *services.URLService) gin.HandlerFunc {
	return func(c *gin.Context) {
		mapping, err := urlService.GetMapping(c.Request.Context(), c.Param("shortCode"))
		if err != nil {
			if errors.Is(err, customerrors.ErrShortCodeNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "Short URL not found"})
				return
			}
			logger.Log.Error("failed to get mapping", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
			return
		}

		c.JSON(http.StatusOK, CreateLinkResponse{
			ShortCode: mapping.ShortCode,
			LongURL:   mapping.LongURL,
			ShortURL:  mapping.ShortURL,
			CreatedAt: mapping.CreatedAt,
		})
	}
}

// QuotaHandler reports the caller's remaining creations.
func QuotaHandler(limiter *services.RateLimitService) gin.HandlerFunc {
	return func(c *gin.Context) {
		ip := c.ClientIP()
		remaining, err := limiter.Remaining(c.Request.Context(), ip)
		if err != nil {
			logger.Log.Error("failed to compute quota", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
			return
		}

		c.JSON(http.StatusOK, gin.H{"ip": ip, "limit": limiter.Limit(), "remaining": remaining})
	}
}

// RedirectHandler answers 302 to the long URL, or 404 with an empty body.
func RedirectHandler(urlService *services.URLService) gin.HandlerFunc {
	return func(c *gin.Context) {
		shortCode := c.Param("shortCode")

		if _, reserved := reservedSegments[shortCode]; reserved || !shortCodePattern.MatchString(shortCode) {
			c.Status(http.StatusNotFound)
			return
		}

		longURL, ok, err := urlService.Resolve(c.Request.Context(), shortCode)
		if err != nil {
			logger.Log.Error("failed to resolve short code", zap.String("code", shortCode), zap.Error(err))
			c.Status(http.StatusInternalServerError)
			return
		}
		if !ok || longURL == "" {
			c.Status(http.StatusNotFound)
			return
		}

		c.Redirect(http.StatusFound, longURL)
	}
}

// releaseSlot returns the quota slot of a creation that did not happen.
func releaseSlot(c *gin.Context, limiter *services.RateLimitService, clientIP string) {
	if err := limiter.Release(c.Request.Context(), clientIP); err != nil {
		logger.Log.Error("failed to release rate limit slot", zap.String("ip", clientIP), zap.Error(err))
	}
}

func validationMessage(err error) string {
	var verr *customerrors.ValidationError
	if errors.As(err, &verr) {
		return verr.Message
	}
	return err.Error()
}

func shortenErrorStatus(err error) int {
	if errors.Is(err, customerrors.ErrShortCodeGenerationFailed) {
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}
