package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
)

func securedEcho(cfg SecurityHeadersConfig) *echo.Echo {
	e := echo.New()
	e.Use(SecurityHeaders(cfg))
	e.POST("/api/v1/drafts", func(c echo.Context) error {
		return c.JSON(http.StatusCreated, map[string]string{"id": "d1"})
	})
	e.GET("/api/v1/form/schema", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"id": "diabetes_admission"})
	})
	e.GET("/api/v1/patients/:id", func(c echo.Context) error {
		return echo.NewHTTPError(http.StatusNotFound, "patient not found")
	})
	return e
}

func TestSecurityHeaders_DraftResponse(t *testing.T) {
	e := securedEcho(DefaultSecurityHeadersConfig())
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/drafts", nil))

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rec.Code)
	}
	expected := map[string]string{
		"X-Content-Type-Options":       "nosniff",
		"X-Frame-Options":              "DENY",
		"Content-Security-Policy":      "default-src 'none'; frame-ancestors 'none'",
		"Cross-Origin-Resource-Policy": "same-site",
		"Referrer-Policy":              "no-referrer",
		"Strict-Transport-Security":    "max-age=31536000; includeSubDomains",
		"Cache-Control":                "no-store",
	}
	for header, want := range expected {
		if got := rec.Header().Get(header); got != want {
			t.Errorf("header %s: got %q, want %q", header, got, want)
		}
	}
}

func TestSecurityHeaders_SchemaIsCacheable(t *testing.T) {
	e := securedEcho(DefaultSecurityHeadersConfig())
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/form/schema", nil))

	if got := rec.Header().Get("Cache-Control"); got != "private, max-age=300" {
		t.Errorf("Cache-Control = %q", got)
	}
}

func TestSecurityHeaders_WithoutHSTS(t *testing.T) {
	cfg := DefaultSecurityHeadersConfig()
	cfg.HSTS = false
	cfg.CacheMaxAge = ""
	e := securedEcho(cfg)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/form/schema", nil))

	if got := rec.Header().Get("Strict-Transport-Security"); got != "" {
		t.Errorf("expected no HSTS header, got %q", got)
	}
	if got := rec.Header().Get("Cache-Control"); got != "no-store" {
		t.Errorf("without a max age nothing is cacheable, got %q", got)
	}
}

func TestSecurityHeaders_ErrorResponse(t *testing.T) {
	e := securedEcho(DefaultSecurityHeadersConfig())
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/patients/42", nil))

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
	if rec.Header().Get("X-Content-Type-Options") != "nosniff" || rec.Header().Get("Cache-Control") != "no-store" {
		t.Errorf("expected headers on error responses, got %v", rec.Header())
	}
}
