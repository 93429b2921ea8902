package models

// Routes holds the front-end pages used by the auth flows
type Routes struct {
	Home           string
	Login          string
	Register       string
	Dashboard      string
	ResetPassword  string
	UpdatePassword string
	Confirm        string
}

// SupabaseProject holds connection settings for one Supabase project
type SupabaseProject struct {
	URL string
	Key string
}

// AppConfig represents application configuration.
// It is built once by config.Load and passed by value to the components.
type AppConfig struct {
	// App settings
	AppName     string
	AppURL      string
	Timezone    string
	LogLevel    string
	Environment string

	// Routing
	Routes          Routes
	ProtectedRoutes []string
	AuthRoutes      []string

	// Supabase settings
	Auth            SupabaseProject
	Chat            SupabaseProject
	ChatTable       string
	SupabaseTimeout int
	SessionFile     string

	// Telegram settings
	TelegramToken  string
	AllowedChatIDs []int64
	ReportCron     string
	ReportUserID   string

	// Gemini settings
	GeminiAPIKey     string
	GeminiModel      string
	GeminiTimeout    int
	DigestDailyLimit int
}

// IsAllowedChat checks if the given chat ID is in the allowed list
func (c AppConfig) IsAllowedChat(chatID int64) bool {
	for _, allowedID := range c.AllowedChatIDs {
		if allowedID == chatID {
			return true
		}
	}
	return false
}

// IsProtectedRoute reports whether the path requires a signed-in user
func (c AppConfig) IsProtectedRoute(path string) bool {
	return containsPath(c.ProtectedRoutes, path)
}

// IsAuthRoute reports whether the path is a sign-in/sign-up page
func (c AppConfig) IsAuthRoute(path string) bool {
	return containsPath(c.AuthRoutes, path)
}

// RedirectURL joins the app origin with a route
func (c AppConfig) RedirectURL(route string) string {
	return c.AppURL + route
}

// DigestEnabled reports whether conversation digests can be generated
func (c AppConfig) DigestEnabled() bool {
	return c.GeminiAPIKey != ""
}

func containsPath(paths []string, path string) bool {
	for _, p := range paths {
		if p == path {
			return true
		}
	}
	return false
}
