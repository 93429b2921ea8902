package auth

import (
	"strings"

	"github.com/chatlog-dashboard/internal/models"
)

// Guard decides where a visitor of a route should end up
type Guard struct {
	cfg models.AppConfig
}

// NewGuard creates a guard over the configured routes
func NewGuard(cfg models.AppConfig) *Guard {
	return &Guard{cfg: cfg}
}

// Check returns the route to redirect to and whether the visitor may stay on path.
// Protected routes need a session, and signed-in users skip the login and register pages.
func (g *Guard) Check(path string, signedIn bool) (string, bool) {
	path = normalizePath(path)

	if !signedIn && g.cfg.IsProtectedRoute(path) {
		return g.cfg.Routes.Login, false
	}
	if signedIn && g.cfg.IsAuthRoute(path) {
		return g.cfg.Routes.Dashboard, false
	}
	return "", true
}

func normalizePath(path string) string {
	if i := strings.IndexAny(path, "?#"); i >= 0 {
		path = path[:i]
	}
	if path == "" {
		return "/"
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	if len(path) > 1 {
		path = strings.TrimSuffix(path, "/")
	}
	return path
}
