// Package server exposes the sensor telemetry API over HTTP.
//
// All telemetry routes sit behind a bearer-password check, a global rate
// limit, request logging with correlation IDs, prometheus metrics and an LRU
// response cache for immutable historical ranges. Anything that does not
// match a route falls through to static file serving.
package server

import (
	"crypto/subtle"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/keyauth"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	middleware "github.com/mkarlsen/roomsense/internal/server/middlewares"
)

// Options configures the HTTP server.
type Options struct {
	Client         TelemetryClient
	Logger         *logrus.Logger
	Password       string
	StaticDir      string
	CacheSize      int
	RateLimit      float64 // requests per second
	RateLimitBurst int
}

// DefaultOptions returns sensible middleware defaults; Client, Logger and
// Password must still be provided.
func DefaultOptions() Options {
	return Options{
		StaticDir:      "./static",
		CacheSize:      1000,
		RateLimit:      5.0,
		RateLimitBurst: 10,
	}
}

// Setup builds the fiber app with the full middleware chain and all routes.
func Setup(opts Options) (*fiber.App, error) {
	s := &Server{client: opts.Client, log: opts.Logger}

	app := fiber.New(fiber.Config{
		AppName:               "roomsense",
		DisableStartupMessage: true,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			return c.Status(code).JSON(fiber.Map{
				"error":   true,
				"message": err.Error(),
			})
		},
	})

	cache, err := middleware.NewResponseCache(opts.CacheSize)
	if err != nil {
		return nil, err
	}

	// Chain order follows request-id first, rate limit early, then
	// logging, metrics and compression. The response cache is attached per
	// route group behind the auth check so cached bodies are never served
	// to unauthenticated callers.
	app.Use(middleware.RequestID())
	app.Use(middleware.RateLimiter(opts.RateLimit, opts.RateLimitBurst))
	app.Use(middleware.RequestLogger(opts.Logger))
	app.Use(middleware.Metrics())
	app.Use(compress.New(compress.Config{Level: compress.LevelBestSpeed}))

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok", "service": "roomsense"})
	})
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	s.registerRoutes(app, bearerAuth(opts.Password), cache.Handler())

	// Everything else is served from disk.
	app.Static("/", opts.StaticDir)

	return app, nil
}

// bearerAuth checks the Authorization bearer token against the configured
// password.
func bearerAuth(password string) fiber.Handler {
	return keyauth.New(keyauth.Config{
		AuthScheme: "Bearer",
		Validator: func(c *fiber.Ctx, token string) (bool, error) {
			if subtle.ConstantTimeCompare([]byte(token), []byte(password)) == 1 {
				return true, nil
			}
			return false, keyauth.ErrMissingOrMalformedAPIKey
		},
		ErrorHandler: func(c *fiber.Ctx, _ error) error {
			return fiber.NewError(fiber.StatusUnauthorized, "invalid password")
		},
	})
}
