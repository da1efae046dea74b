package schemas

// AuthType enumerates the authentication mechanisms an account can declare.
// Only form login is driven by the browser layer; any other value makes the
// crawl and execution run anonymously.
type AuthType string

const (
	AuthForm AuthType = "form"
	AuthNone AuthType = "none"
)

// SelectorOverrides lets a caller pin the login form controls when the
// heuristic fallback chains would misfire on an unusual page.
type SelectorOverrides struct {
	EmailSelector    string `json:"email_selector,omitempty"`
	PasswordSelector string `json:"password_selector,omitempty"`
	SubmitSelector   string `json:"submit_selector,omitempty"`
}

// CrawlCredentials carries everything needed for one form-login attempt.
// SuccessIndicator is either a URL path prefix (starts with "/") or a CSS
// selector expected to become visible after login.
type CrawlCredentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	LoginURL string `json:"login_url"`
	SelectorOverrides
	SuccessIndicator string `json:"success_indicator,omitempty"`
}

// TestAccount is the persistent identity used by the executor. It mirrors
// CrawlCredentials plus the auth type declaration.
type TestAccount struct {
	Email    string   `json:"email"`
	Password string   `json:"password"`
	LoginURL string   `json:"login_url"`
	AuthType AuthType `json:"auth_type"`
	SelectorOverrides
	SuccessIndicator string `json:"success_indicator,omitempty"`
}

// Credentials converts a test account into crawl credentials. Returns false
// when the account cannot be driven through a login form.
func (a *TestAccount) Credentials() (CrawlCredentials, bool) {
	if a == nil || a.AuthType != AuthForm || a.Email == "" || a.Password == "" {
		return CrawlCredentials{}, false
	}
	return CrawlCredentials{
		Email:             a.Email,
		Password:          a.Password,
		LoginURL:          a.LoginURL,
		SelectorOverrides: a.SelectorOverrides,
		SuccessIndicator:  a.SuccessIndicator,
	}, true
}

// AuthResult is the terminal outcome of one authentication attempt. It is
// never retried within a run; a failure degrades the run to anonymous.
type AuthResult struct {
	Success      bool   `json:"success"`
	PostLoginURL string `json:"post_login_url,omitempty"`
	Error        string `json:"error,omitempty"`
}
