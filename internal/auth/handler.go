package auth

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type Handler struct {
	service *Service
	log     *zap.Logger
}

func NewHandler(service *Service, log *zap.Logger) *Handler {
	return &Handler{
		service: service,
		log:     log,
	}
}

type registerRequest struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Role      string `json:"role"`
	ProfileFields
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type forgotPasswordRequest struct {
	Email string `json:"email"`
}

type resetPasswordRequest struct {
	Token    string `json:"token"`
	Password string `json:"password"`
}

type updateMeRequest struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
}

func (h *Handler) Register(c *gin.Context) {
	var req registerRequest
	if !h.bind(c, &req) {
		return
	}

	result, err := h.service.Register(c.Request.Context(), RegisterInput{
		Email:     req.Email,
		Password:  req.Password,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Role:      Role(req.Role),
		Profile:   req.ProfileFields,
	})
	if err != nil {
		h.respondError(c, "register", err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"message": "User registered successfully",
		"token":   result.Token,
		"user":    result.User,
	})
}

func (h *Handler) Login(c *gin.Context) {
	var req loginRequest
	if !h.bind(c, &req) {
		return
	}

	result, err := h.service.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		h.respondError(c, "login", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Login successful",
		"token":   result.Token,
		"user":    result.User,
	})
}

func (h *Handler) ForgotPassword(c *gin.Context) {
	var req forgotPasswordRequest
	if !h.bind(c, &req) {
		return
	}

	result, err := h.service.ForgotPassword(c.Request.Context(), req.Email)
	if err != nil {
		h.respondError(c, "forgot_password", err)
		return
	}

	body := gin.H{
		"success": true,
		"message": result.Message,
	}
	if result.ResetLink != "" {
		body["resetLink"] = result.ResetLink
	}
	c.JSON(http.StatusOK, body)
}

func (h *Handler) ResetPassword(c *gin.Context) {
	var req resetPasswordRequest
	if !h.bind(c, &req) {
		return
	}

	if err := h.service.ResetPassword(c.Request.Context(), req.Token, req.Password); err != nil {
		h.respondError(c, "reset_password", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": MsgPasswordReset,
	})
}

func (h *Handler) Verify(c *gin.Context) {
	user, err := h.service.Verify(c.Request.Context(), BearerToken(c.GetHeader("Authorization")))
	if err != nil {
		h.respondError(c, "verify", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"user":    user,
	})
}

// GetMe must run behind AuthMiddleware.RequireAuth.
func (h *Handler) GetMe(c *gin.Context) {
	current, err := GetUserFromContext(c.Request.Context())
	if err != nil {
		h.respondError(c, "get_me", authenticationError(MsgTokenRequired))
		return
	}

	user, profile, err := h.service.Me(c.Request.Context(), current.ID)
	if err != nil {
		h.respondError(c, "get_me", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"user":    user,
		"profile": profile,
	})
}

// UpdateMe must run behind AuthMiddleware.RequireAuth.
func (h *Handler) UpdateMe(c *gin.Context) {
	current, err := GetUserFromContext(c.Request.Context())
	if err != nil {
		h.respondError(c, "update_me", authenticationError(MsgTokenRequired))
		return
	}

	var req updateMeRequest
	if !h.bind(c, &req) {
		return
	}

	user, err := h.service.UpdateNames(c.Request.Context(), current.ID, req.FirstName, req.LastName)
	if err != nil {
		h.respondError(c, "update_me", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"user":    user,
	})
}

func (h *Handler) bind(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		h.log.Warn("invalid request body",
			zap.String("path", c.FullPath()),
			zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"message": "Invalid request body",
		})
		return false
	}
	return true
}

func (h *Handler) respondError(c *gin.Context, operation string, err error) {
	code := ErrorCode(err)
	if code == CodeInternal {
		h.log.Error("request failed",
			zap.String("operation", operation),
			zap.Error(err))
	}
	c.AbortWithStatusJSON(StatusForCode(code), gin.H{
		"success": false,
		"message": PublicMessage(err),
	})
}

// StatusForCode maps an error code to its HTTP status. Conflicts are
// reported as 400 like other registration failures.
func StatusForCode(code string) int {
	switch code {
	case CodeValidation, CodeConflict:
		return http.StatusBadRequest
	case CodeAuthentication:
		return http.StatusUnauthorized
	case CodeRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}
