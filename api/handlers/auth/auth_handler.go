package auth

import (
	"errors"
	"net/http"
	"regexp"
	"sync"

	"communityos/internal/auth"
	"communityos/internal/common"
	"communityos/internal/metrics"
	"communityos/internal/user"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

var tenantCodePattern = regexp.MustCompile(`^[A-Za-z0-9]{1,8}$`)

var registerOnce sync.Once

// RegisterValidators installs the tenantcode rule on gin's validator.
func RegisterValidators() {
	registerOnce.Do(func() {
		if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
			_ = v.RegisterValidation("tenantcode", func(fl validator.FieldLevel) bool {
				return tenantCodePattern.MatchString(fl.Field().String())
			})
		}
	})
}

// AuthHandler serves registration, login and logout.
type AuthHandler struct {
	service *auth.Service
	logger  *zap.Logger
}

// NewAuthHandler creates an auth handler.
func NewAuthHandler(service *auth.Service, logger *zap.Logger) *AuthHandler {
	RegisterValidators()
	return &AuthHandler{service: service, logger: logger}
}

// RegisterRequest is a self-registration.
type RegisterRequest struct {
	Email      string  `json:"email" binding:"required"`
	Password   string  `json:"password" binding:"required"`
	FirstName  string  `json:"firstName"`
	LastName   string  `json:"lastName"`
	City       *string `json:"city"`
	TenantCode string  `json:"tenantCode" binding:"required,tenantcode"`
}

// LoginRequest signs in to one tenant.
type LoginRequest struct {
	Email      string `json:"email" binding:"required"`
	Password   string `json:"password" binding:"required"`
	TenantCode string `json:"tenantCode" binding:"required,tenantcode"`
}

// AuthResponse is a signed token and the member it belongs to.
type AuthResponse struct {
	auth.IssuedToken
	User user.Profile `json:"user"`
}

// Register creates a member account.
// @Summary Register
// @Description Creates a Member account in the tenant named by tenantCode and returns a token
// @Tags Auth
// @Accept json
// @Produce json
// @Param request body RegisterRequest true "registration"
// @Success 201 {object} AuthResponse
// @Failure 400 {object} common.ErrorBody "missing_fields, invalid_tenant"
// @Failure 409 {object} common.ErrorBody "email_already_exists"
// @Router /api/v1/auth/register [post]
func (h *AuthHandler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.AbortWithCode(c, http.StatusBadRequest, bindErrorCode(err))
		return
	}
	res, err := h.service.Register(c.Request.Context(), auth.RegisterInput{
		Email:      req.Email,
		Password:   req.Password,
		FirstName:  req.FirstName,
		LastName:   req.LastName,
		City:       req.City,
		TenantCode: req.TenantCode,
	})
	if err != nil {
		metrics.RecordAction("register", "rejected")
		common.ResponseError(c, err)
		return
	}
	metrics.RecordAction("register", "ok")
	h.logger.Info("member registered",
		zap.String("tenant_id", res.User.TenantID.String()),
		zap.String("user_id", res.User.ID.String()),
	)
	common.ResponseCreated(c, AuthResponse{IssuedToken: res.IssuedToken, User: res.User.Profile()})
}

// Login signs a member in.
// @Summary Login
// @Description Checks credentials inside the tenant named by tenantCode
// @Tags Auth
// @Accept json
// @Produce json
// @Param request body LoginRequest true "credentials"
// @Success 200 {object} AuthResponse
// @Failure 400 {object} common.ErrorBody "missing_fields, invalid_tenant"
// @Failure 401 {object} common.ErrorBody "invalid_credentials"
// @Failure 403 {object} common.ErrorBody "account_blocked"
// @Router /api/v1/auth/login [post]
func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.AbortWithCode(c, http.StatusBadRequest, bindErrorCode(err))
		return
	}
	res, err := h.service.Login(c.Request.Context(), req.Email, req.Password, req.TenantCode)
	if err != nil {
		metrics.RecordAction("login", "rejected")
		common.ResponseError(c, err)
		return
	}
	metrics.RecordAction("login", "ok")
	common.ResponseSuccess(c, AuthResponse{IssuedToken: res.IssuedToken, User: res.User.Profile()})
}

// Logout revokes the caller's token.
// @Summary Logout
// @Tags Auth
// @Security BearerAuth
// @Success 204
// @Failure 401 {object} common.ErrorBody
// @Router /api/v1/auth/logout [post]
func (h *AuthHandler) Logout(c *gin.Context) {
	claims, ok := auth.ClaimsFromGin(c)
	if !ok {
		common.AbortWithCode(c, http.StatusUnauthorized, "unauthorized")
		return
	}
	if err := h.service.Logout(c.Request.Context(), claims); err != nil {
		common.ResponseError(c, err)
		return
	}
	common.ResponseNoContent(c)
}

func bindErrorCode(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return "missing_fields"
	}
	for _, fe := range verrs {
		if fe.Tag() == "tenantcode" {
			return "invalid_tenant"
		}
	}
	return "missing_fields"
}
