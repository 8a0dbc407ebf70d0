// Package httpapi wires the HTTP transport (Gin) to application services,
// middleware, and route handlers. It centralizes cross-cutting concerns such
// as tracing, correlation IDs, logging/redaction, panic recovery, metrics,
// CORS, security headers, idempotency, and rate limiting.
//
// Route groups:
//   - owner:   {base}/letters/...         bearer JWT, token bucket, Idempotency-Key
//   - public:  {base}/public/letters/...  and /letter/:link, shared per-IP window, no-store
//   - webhook: {base}/webhooks/...        signature-checked, no auth
//   - ops:     /health, /metrics, /swagger
package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"gorm.io/gorm"

	"github.com/tbourn/cartas-cosmicas/internal/config"
	_ "github.com/tbourn/cartas-cosmicas/internal/docs"
	"github.com/tbourn/cartas-cosmicas/internal/events"
	"github.com/tbourn/cartas-cosmicas/internal/http/handlers"
	"github.com/tbourn/cartas-cosmicas/internal/http/middleware"
	"github.com/tbourn/cartas-cosmicas/internal/payment"
	"github.com/tbourn/cartas-cosmicas/internal/repo"
	"github.com/tbourn/cartas-cosmicas/internal/services"
	"github.com/tbourn/cartas-cosmicas/internal/session"
)

// maxBodyBytes caps every request body; letters are at most a few KiB.
const maxBodyBytes = 256 << 10

// RegisterRoutes attaches all middleware and HTTP endpoints to the given Gin
// engine. Services are built here from db and pub so the router stays the
// single composition point for the HTTP side.
//
// Middleware order matters:
//  1. OpenTelemetry: trace everything
//  2. RequestID: generate/propagate correlation id
//  3. RedactingLogger: structured logs with secret and PII scrubbing
//  4. Recovery: capture panics after logger
//  5. Body size limiter
//  6. gzip
//  7. Metrics
//  8. CORS and Security headers
//  9. Per group: owner auth, idempotency and token bucket; or the shared
//     per-IP window for public reads
func RegisterRoutes(r *gin.Engine, db *gorm.DB, pub events.Publisher, cfg config.Config) error {
	r.HandleMethodNotAllowed = true

	// 1) Trace all HTTP requests
	r.Use(otelgin.Middleware(cfg.OTEL.ServiceName))

	// 2) Correlate requests and logs
	r.Use(middleware.RequestID())

	// 3) Structured logging with redaction
	r.Use(middleware.RedactingLogger(middleware.RedactOptions{
		MaskHeaders: []string{handlers.HeaderLetterPassword},
	}))

	// 4) Panic recovery to JSON 500 (with request id)
	r.Use(middleware.Recovery())

	// 5) Global body size limit
	r.Use(limitBody(maxBodyBytes))

	// 6) Compression (not for the Prometheus scrape, which negotiates its own)
	r.Use(gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPaths([]string{"/metrics"})))

	// 7) Prometheus metrics and /metrics endpoint
	r.Use(middleware.Metrics())
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// 8) CORS posture and security headers
	r.Use(corsMiddleware(cfg.CORS.AllowedOrigins)...)
	r.Use(middleware.SecurityHeaders(middleware.SecurityOptions{
		EnableHSTS:   cfg.Security.EnableHSTS,
		HSTSMaxAge:   cfg.Security.HSTSMaxAge,
		EnablePolicy: true,
	}))

	// Fallbacks
	r.NoRoute(func(c *gin.Context) {
		handlers.Fail(c, http.StatusNotFound, handlers.ErrCodeNotFound, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		handlers.Fail(c, http.StatusMethodNotAllowed, handlers.ErrCodeMethodNotAllowed, "method not allowed")
	})

	// Liveness/health
	r.GET("/health", health(db))

	if cfg.SwaggerEnabled {
		r.GET("/swagger/*any", swaggerCSP(), ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	// Dependency injection: services <- repo/db/events
	if pub == nil {
		pub = events.Noop{}
	}
	sessions, err := session.NewCodec([]byte(cfg.Session.Secret), cfg.Session.TTL)
	if err != nil {
		return fmt.Errorf("session codec: %w", err)
	}
	genericDecoder, err := payment.NewGenericDecoder()
	if err != nil {
		return err
	}

	letterSvc := services.NewLetterService(db)
	letterSvc.ReleaseHorizon = cfg.Letters.ReleaseHorizon
	letterSvc.BcryptCost = cfg.Letters.BcryptCost
	letterSvc.IdempotencyTTL = cfg.IdempotencyTTL
	letterSvc.PriceCents = cfg.Payments.PriceCents
	letterSvc.Currency = cfg.Payments.Currency

	h := handlers.New(
		letterSvc,
		services.NewAccessService(db, sessions, pub),
		services.NewPaymentService(db, pub),
		handlers.Options{
			PublicBaseURL:       cfg.Letters.PublicBaseURL,
			SessionCookieSecure: cfg.Session.CookieSecure,
			SessionTTL:          cfg.Session.TTL,
		},
	)

	auth := middleware.NewOwnerAuth([]byte(cfg.Auth.JWTSecret), cfg.Auth.Issuer)
	rl := middleware.NewRateLimiter(cfg.RateRPS, cfg.RateBurst, middleware.KeyByOwnerOrIP())
	idem := middleware.IdempotencyValidator(
		middleware.IdempotencyOptions{Scope: services.ScopeCreateLetter, MaxLen: 200},
		idempotencyLookup(db),
	)
	window := middleware.NewWindowLimiter(db, "public_read", cfg.AccessRateLimit, cfg.AccessRateWindow)

	// Share links point here; the same handler serves the API path.
	r.GET("/letter/:link", window.Handler(), middleware.NoStore(), h.OpenLetter)

	api := groupWithPrefix(r, cfg.APIBasePath)
	{
		owner := api.Group("/letters", auth.Handler(), idem, rl.Handler())
		owner.POST("", h.CreateLetter)
		owner.GET("", h.ListLetters)
		owner.GET("/stats", h.LetterStats)
		owner.GET("/:id", h.GetLetter)
		owner.GET("/:id/preview", h.PreviewLetter)
		owner.PATCH("/:id", h.UpdateLetter)
		owner.DELETE("/:id", h.DeleteLetter)
		owner.POST("/:id/favorite", h.ToggleFavorite)
		owner.POST("/:id/archive", h.ArchiveLetter)
		owner.POST("/:id/unarchive", h.UnarchiveLetter)
		owner.POST("/:id/checkout", h.CheckoutLetter)
		owner.GET("/:id/access-log", h.LetterAccessLog)

		public := api.Group("/public/letters", window.Handler(), middleware.NoStore())
		public.GET("/:link", h.OpenLetter)
		public.POST("/:link/unlock", h.UnlockLetter)

		hooks := api.Group("/webhooks", middleware.NoStore())
		hooks.POST("/payment", h.PaymentWebhook(handlers.WebhookProvider{
			Decoder:   genericDecoder,
			Signer:    payment.NewSHA256Signer(cfg.Payments.WebhookSecret),
			Signature: handlers.SignatureFromHeader("X-Signature"),
		}))
		hooks.POST("/kiwify", h.KiwifyWebhook(handlers.WebhookProvider{
			Decoder:   payment.KiwifyDecoder{},
			Signer:    payment.NewSHA1Signer(cfg.Payments.KiwifySecret),
			Signature: handlers.SignatureFromQuery("signature"),
		}))
	}
	return nil
}

// corsMiddleware allows every origin without credentials when none are
// configured; with an allowlist it echoes the origin and allows the session
// cookie.
func corsMiddleware(origins []string) []gin.HandlerFunc {
	base := cors.Config{
		AllowMethods: []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders: []string{
			"Origin", "Content-Type", "Accept", "Authorization",
			middleware.HeaderIdempotencyKey, handlers.HeaderLetterPassword,
		},
		ExposeHeaders: []string{
			"X-Request-ID", "Content-Length", "ETag", "Retry-After",
			middleware.HeaderIdempotentReplay,
		},
		MaxAge: 12 * time.Hour,
	}

	if len(origins) == 0 {
		base.AllowAllOrigins = true
		base.AllowCredentials = false // must remain false with AllowAllOrigins
		return []gin.HandlerFunc{
			// Force ACAO: * even for requests without an Origin header (helps tests and simple health checks).
			func(c *gin.Context) {
				c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
				c.Next()
			},
			cors.New(base),
		}
	}

	base.AllowOrigins = origins
	base.AllowCredentials = true
	return []gin.HandlerFunc{cors.New(base)}
}

// swaggerCSP relaxes the global CSP so the bundled UI can load its own
// scripts and styles.
func swaggerCSP() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Content-Security-Policy",
			"default-src 'self'; script-src 'self' 'unsafe-inline'; style-src 'self' 'unsafe-inline'; img-src 'self' data:")
		c.Next()
	}
}

// idempotencyLookup reports whether a live key exists. Only a missing key
// means "no replay"; storage errors are returned to the middleware.
func idempotencyLookup(db *gorm.DB) middleware.IdempotencyLookup {
	return func(ctx context.Context, ownerID, scope, key string, now time.Time) (bool, error) {
		_, err := repo.GetIdempotency(ctx, db, ownerID, scope, key, now)
		switch {
		case errors.Is(err, repo.ErrNotFound):
			return false, nil
		case err != nil:
			return false, err
		}
		return true, nil
	}
}

// health reports liveness plus a database ping.
func health(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		sqlDB, err := db.DB()
		if err == nil {
			ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
			err = sqlDB.PingContext(ctx)
			cancel()
		}
		if err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "database": "unreachable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
}

// limitBody returns a Gin middleware that caps the request body size for all
// endpoints to maxBytes using http.MaxBytesReader. Requests exceeding the cap
// will cause downstream body reads to error.
func limitBody(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}

// groupWithPrefix mounts a group at prefix, treating "/" (or empty) as root.
func groupWithPrefix(r *gin.Engine, prefix string) *gin.RouterGroup {
	if prefix == "" || prefix == "/" {
		return r.Group("")
	}
	return r.Group(prefix)
}
