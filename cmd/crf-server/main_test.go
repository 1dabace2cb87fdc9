package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/diabcrf/crf/internal/config"
	"github.com/diabcrf/crf/internal/domain/admin"
	"github.com/diabcrf/crf/internal/domain/casereport"
	"github.com/diabcrf/crf/internal/domain/patient"
)

func TestRootCmd_Subcommands(t *testing.T) {
	got := map[string]bool{}
	for _, c := range rootCmd().Commands() {
		got[c.Name()] = true
	}
	for _, name := range []string{"serve", "migrate", "schema", "export"} {
		if !got[name] {
			t.Errorf("missing %q command", name)
		}
	}
}

func execute(t *testing.T, args ...string) string {
	t.Helper()
	var out bytes.Buffer
	cmd := rootCmd()
	cmd.SetOut(&out)
	cmd.SetArgs(args)
	if err := cmd.Execute(); err != nil {
		t.Fatalf("%v: %v", args, err)
	}
	return out.String()
}

func TestSchemaLint(t *testing.T) {
	out := execute(t, "schema", "lint")
	if !strings.HasPrefix(out, "schema diabetes_admission ok: 5 sections") {
		t.Errorf("unexpected output %q", out)
	}
}

func TestSchemaDump(t *testing.T) {
	out := execute(t, "schema", "dump")
	if !strings.HasPrefix(out, "id: diabetes_admission") {
		t.Errorf("unexpected output %q", out)
	}
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(&config.Config{Env: "production", LogLevel: "warn"}, &buf)
	logger.Info().Msg("hidden")
	logger.Warn().Msg("shown")

	var entry map[string]interface{}
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry); err != nil {
		t.Fatalf("expected one JSON line, got %q", buf.String())
	}
	if entry["message"] != "shown" || entry["level"] != "warn" {
		t.Errorf("unexpected entry %v", entry)
	}
}

func newTestServer(t *testing.T) http.Handler {
	t.Helper()
	cfg := &config.Config{
		Env:            "production",
		AuthJWTSecret:  "test-secret",
		CORSOrigins:    []string{"http://localhost:5173"},
		RateLimitRPS:   100,
		RateLimitBurst: 100,
		PublicURL:      "http://localhost:5173",
	}
	logger := zerolog.Nop()
	reg := prometheus.NewRegistry()

	schema, err := casereport.LoadSchema()
	if err != nil {
		t.Fatal(err)
	}
	adminSvc := admin.NewService(admin.NewProfileRepo(nil), admin.NewCenterRepo(nil), admin.NewInvitationRepo(nil), nil,
		admin.Options{PublicURL: cfg.PublicURL, InvitationTTL: time.Hour}, logger)
	patientSvc := patient.NewService(patient.NewRepo(nil))
	crfSvc, err := casereport.NewService(schema, casereport.NewDraftStore(8, time.Hour), patientSvc, logger, reg)
	if err != nil {
		t.Fatal(err)
	}
	e, err := newServer(cfg, logger, reg, nil, adminSvc, patientSvc, crfSvc)
	if err != nil {
		t.Fatal(err)
	}
	return e
}

func TestServer_PublicEndpoints(t *testing.T) {
	srv := newTestServer(t)

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("health: expected 200, got %d", rec.Code)
	}
	if rec.Header().Get("X-Request-ID") == "" || rec.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Errorf("expected request id and security headers, got %v", rec.Header())
	}

	rec = httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("metrics: expected 200, got %d", rec.Code)
	}
	for _, name := range []string{"crf_drafts_open", "crf_http_requests_total"} {
		if !strings.Contains(rec.Body.String(), name) {
			t.Errorf("metrics output is missing %s", name)
		}
	}
}

func TestServer_APIRequiresToken(t *testing.T) {
	srv := newTestServer(t)
	for _, path := range []string{"/api/v1/me", "/api/v1/patients", "/api/v1/form/schema"} {
		rec := httptest.NewRecorder()
		srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("%s: expected 401, got %d", path, rec.Code)
		}
	}
}
