// Package pages decides which application page a role may open.
package pages

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/diabcrf/crf/internal/platform/auth"
	"github.com/diabcrf/crf/internal/platform/session"
)

const (
	Dashboard = "dashboard"
	Patients  = "patients"
	Form      = "form"
	Users     = "users"
	Centers   = "centers"
)

// order is the navigation order.
var order = []string{Dashboard, Patients, Form, Users, Centers}

var access = map[string][]string{
	Dashboard: {auth.RoleAdmin, auth.RoleInvestigator, auth.RoleResearcher},
	Patients:  {auth.RoleAdmin, auth.RoleInvestigator, auth.RoleResearcher},
	Form:      {auth.RoleAdmin, auth.RoleInvestigator},
	Users:     {auth.RoleAdmin},
	Centers:   {auth.RoleAdmin},
}

// Allowed reports whether role may open page.
func Allowed(page, role string) bool {
	for _, r := range access[page] {
		if r == role {
			return true
		}
	}
	return false
}

// Resolve maps a requested page to the one role actually gets. Unknown and
// forbidden pages fall back to the dashboard without an error.
func Resolve(requested, role string) (page string, redirected bool) {
	requested = strings.ToLower(strings.TrimSpace(requested))
	if requested == Dashboard || Allowed(requested, role) {
		return requested, false
	}
	return Dashboard, true
}

// Navigation lists the pages role may open, in menu order.
func Navigation(role string) []string {
	out := []string{Dashboard}
	for _, p := range order[1:] {
		if Allowed(p, role) {
			out = append(out, p)
		}
	}
	return out
}

// Result is the router's answer for one navigation request.
type Result struct {
	Requested  string   `json:"requested"`
	Page       string   `json:"page"`
	Redirected bool     `json:"redirected"`
	Navigation []string `json:"navigation"`
}

// Handler serves GET /pages/:page for the current session.
func Handler(c echo.Context) error {
	s, ok := session.FromContext(c.Request().Context())
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "not signed in")
	}
	role := s.Role()
	requested := c.Param("page")
	page, redirected := Resolve(requested, role)
	return c.JSON(http.StatusOK, Result{
		Requested:  requested,
		Page:       page,
		Redirected: redirected,
		Navigation: Navigation(role),
	})
}
