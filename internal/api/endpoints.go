package api

// Authentication endpoints
const (
	AuthGroup = "/api/auth"

	AuthRegister       = "/register"
	AuthLogin          = "/login"
	AuthForgotPassword = "/forgot-password"
	AuthResetPassword  = "/reset-password"
	AuthVerify         = "/verify"
	AuthMe             = "/me"
)

// Operational endpoints
const (
	Health  = "/healthz"
	Metrics = "/metrics"
)

// Limiter names, matching ratelimit.GeneralLimiter and ratelimit.LoginLimiter
const (
	LimiterGeneral = "general"
	LimiterLogin   = "login"
)

// RateLimitedEndpoints assigns each throttled auth route to its limiter.
// Routes not listed are not rate limited.
var RateLimitedEndpoints = map[string]string{
	AuthRegister:       LimiterGeneral,
	AuthLogin:          LimiterLogin,
	AuthForgotPassword: LimiterGeneral,
	AuthResetPassword:  LimiterGeneral,
}
