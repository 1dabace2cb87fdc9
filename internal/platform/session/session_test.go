package session

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/diabcrf/crf/internal/platform/auth"
)

type stubLoader struct {
	profiles map[uuid.UUID]*Profile
	err      error
	calls    int
}

func (s *stubLoader) LoadProfile(_ context.Context, id uuid.UUID) (*Profile, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	p, ok := s.profiles[id]
	if !ok {
		return nil, ErrNoProfile
	}
	return p, nil
}

func authedContext(userID string) (echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/me", nil)
	ctx := context.WithValue(req.Context(), auth.UserIDKey, userID)
	ctx = context.WithValue(ctx, auth.UserEmailKey, "ana@example.org")
	rec := httptest.NewRecorder()
	return e.NewContext(req.WithContext(ctx), rec), rec
}

func intPtr(i int) *int { return &i }

func TestLoader_WithProfile(t *testing.T) {
	id := uuid.New()
	loader := &stubLoader{profiles: map[uuid.UUID]*Profile{
		id: {ID: id, Email: "ana@example.org", Role: auth.RoleInvestigator, CenterID: intPtr(3)},
	}}
	c, _ := authedContext(id.String())

	err := Loader(loader, zerolog.Nop(), nil)(func(c echo.Context) error {
		s, ok := FromContext(c.Request().Context())
		if !ok {
			t.Fatal("expected session in context")
		}
		if s.UserID != id || s.Email != "ana@example.org" {
			t.Errorf("unexpected session %+v", s)
		}
		if s.Role() != auth.RoleInvestigator {
			t.Errorf("expected investigator, got %q", s.Role())
		}
		if center, ok := s.CenterID(); !ok || center != 3 {
			t.Errorf("expected center 3, got %d %v", center, ok)
		}
		roles := auth.RolesFromContext(c.Request().Context())
		if len(roles) != 1 || roles[0] != auth.RoleInvestigator {
			t.Errorf("expected roles to follow the profile, got %v", roles)
		}
		return nil
	})(c)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestLoader_WithoutProfile(t *testing.T) {
	c, _ := authedContext(uuid.NewString())
	err := Loader(&stubLoader{}, zerolog.Nop(), nil)(func(c echo.Context) error {
		s, ok := FromContext(c.Request().Context())
		if !ok {
			t.Fatal("expected session in context")
		}
		if s.Profile != nil || s.Role() != "" || s.IsAdmin() {
			t.Errorf("expected session without profile, got %+v", s)
		}
		if roles := auth.RolesFromContext(c.Request().Context()); len(roles) != 0 {
			t.Errorf("expected no roles, got %v", roles)
		}
		return nil
	})(c)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestLoader_BackendFailure(t *testing.T) {
	c, _ := authedContext(uuid.NewString())
	err := Loader(&stubLoader{err: errors.New("connection refused")}, zerolog.Nop(), nil)(func(c echo.Context) error {
		t.Error("handler must not run")
		return nil
	})(c)
	httpErr, ok := err.(*echo.HTTPError)
	if !ok || httpErr.Code != http.StatusBadGateway {
		t.Errorf("expected 502, got %v", err)
	}
}

func TestLoader_InvalidSubject(t *testing.T) {
	c, _ := authedContext("not-a-uuid")
	err := Loader(&stubLoader{}, zerolog.Nop(), nil)(func(c echo.Context) error { return nil })(c)
	httpErr, ok := err.(*echo.HTTPError)
	if !ok || httpErr.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %v", err)
	}
}

func TestLoader_Skipper(t *testing.T) {
	loader := &stubLoader{}
	c, _ := authedContext("")
	err := Loader(loader, zerolog.Nop(), func(echo.Context) bool { return true })(func(c echo.Context) error { return nil })(c)
	if err != nil || loader.calls != 0 {
		t.Errorf("skipped request should not load a profile: err=%v calls=%d", err, loader.calls)
	}
}

func TestLoader_DerivedPerRequest(t *testing.T) {
	first, second := uuid.New(), uuid.New()
	loader := &stubLoader{profiles: map[uuid.UUID]*Profile{
		first:  {ID: first, Role: auth.RoleResearcher},
		second: {ID: second, Role: auth.RoleAdmin},
	}}
	mw := Loader(loader, zerolog.Nop(), nil)

	var roles []string
	for _, id := range []uuid.UUID{first, second} {
		c, _ := authedContext(id.String())
		mw(func(c echo.Context) error {
			s, _ := FromContext(c.Request().Context())
			roles = append(roles, s.Role())
			return nil
		})(c)
	}
	if len(roles) != 2 || roles[0] != auth.RoleResearcher || roles[1] != auth.RoleAdmin {
		t.Errorf("expected each token to yield its own session, got %v", roles)
	}
}

func TestRequireProfile(t *testing.T) {
	e := echo.New()
	h := RequireProfile()(func(c echo.Context) error { return c.NoContent(http.StatusOK) })

	tests := []struct {
		name string
		s    *Session
		want int
	}{
		{"no session", nil, http.StatusUnauthorized},
		{"no profile", &Session{UserID: uuid.New()}, http.StatusForbidden},
		{"profile", &Session{UserID: uuid.New(), Profile: &Profile{Role: auth.RoleResearcher}}, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.s != nil {
				req = req.WithContext(NewContext(req.Context(), tt.s))
			}
			rec := httptest.NewRecorder()
			err := h(e.NewContext(req, rec))
			code := rec.Code
			if httpErr, ok := err.(*echo.HTTPError); ok {
				code = httpErr.Code
			}
			if code != tt.want {
				t.Errorf("expected %d, got %d", tt.want, code)
			}
		})
	}
}

func TestHandler(t *testing.T) {
	e := echo.New()
	id := uuid.New()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/me", nil)
	req = req.WithContext(NewContext(req.Context(), &Session{UserID: id, Email: "ana@example.org"}))
	rec := httptest.NewRecorder()

	if err := Handler(e.NewContext(req, rec)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var got map[string]interface{}
	json.Unmarshal(rec.Body.Bytes(), &got)
	if got["user_id"] != id.String() || got["profile"] != nil {
		t.Errorf("unexpected body: %s", rec.Body.String())
	}
}
