package middleware

import (
	"strings"

	"github.com/labstack/echo/v4"
)

// SecurityHeadersConfig controls the hardening headers.
type SecurityHeadersConfig struct {
	// HSTS adds Strict-Transport-Security. Leave it off where the API is
	// served over plain HTTP.
	HSTS bool
	// CachePaths are path prefixes whose responses the client may keep for
	// CacheMaxAge. Every other response is no-store: drafts and patient rows
	// carry clinical data.
	CachePaths  []string
	CacheMaxAge string
}

// DefaultSecurityHeadersConfig lets clients cache the form schema for five
// minutes.
func DefaultSecurityHeadersConfig() SecurityHeadersConfig {
	return SecurityHeadersConfig{
		HSTS:        true,
		CachePaths:  []string{"/api/v1/form/schema"},
		CacheMaxAge: "300",
	}
}

func SecurityHeaders(cfg SecurityHeadersConfig) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			h := c.Response().Header()
			h.Set("X-Content-Type-Options", "nosniff")
			h.Set("X-Frame-Options", "DENY")
			h.Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")
			h.Set("Cross-Origin-Resource-Policy", "same-site")
			h.Set("Referrer-Policy", "no-referrer")
			if cfg.HSTS {
				h.Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
			}
			if cfg.cacheable(c.Request().URL.Path) {
				h.Set("Cache-Control", "private, max-age="+cfg.CacheMaxAge)
			} else {
				h.Set("Cache-Control", "no-store")
			}
			return next(c)
		}
	}
}

func (cfg SecurityHeadersConfig) cacheable(path string) bool {
	if cfg.CacheMaxAge == "" {
		return false
	}
	for _, p := range cfg.CachePaths {
		if strings.HasPrefix(path, p) {
			return true
		}
	}
	return false
}
