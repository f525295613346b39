package http

import (
	"net/http"
	"strings"

	"github.com/bazasystems/madaris/internal/auth"
	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

// DeviceIDHeader carries the client-reported device identifier.
const DeviceIDHeader = "X-Device-Id"

// AuthHandler handles authentication endpoints.
type AuthHandler struct {
	svc *auth.Service
}

// NewAuthHandler constructs an AuthHandler.
func NewAuthHandler(svc *auth.Service) *AuthHandler {
	return &AuthHandler{svc: svc}
}

// respondAuthError maps auth failures to their structured JSON shape and
// anything else to a logged generic 500.
func respondAuthError(c *gin.Context, err error) {
	if authErr, ok := auth.AsError(err); ok {
		body := gin.H{"error": authErr.Message, "code": authErr.Code}
		if authErr.Code == auth.CodeInvalidCreds && authErr.Remaining > 0 {
			body["remaining"] = authErr.Remaining
		}
		c.JSON(authErr.Status, body)
		return
	}
	log.WithError(err).Error("auth request failed")
	c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
}

// loginRequest defines the request body for login.
type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Login runs the login state machine and returns a session token or a
// two-factor challenge.
func (h *AuthHandler) Login(c *gin.Context) {
	var body loginRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	result, errLogin := h.svc.Login(c.Request.Context(), auth.LoginInput{
		Username: body.Username,
		Password: body.Password,
		DeviceID: c.GetHeader(DeviceIDHeader),
	})
	if errLogin != nil {
		respondAuthError(c, errLogin)
		return
	}
	respondLoginResult(c, result)
}

// respondLoginResult writes the success shape shared by login and 2FA login.
func respondLoginResult(c *gin.Context, result *auth.LoginResult) {
	if result.Require2FA {
		c.JSON(http.StatusOK, gin.H{
			"require_2fa": true,
			"temp_token":  result.TempToken,
		})
		return
	}

	body := gin.H{
		"token":                result.Token,
		"role":                 result.Role,
		"username":             result.Username,
		"must_change_password": result.MustChangePassword,
	}
	if result.DeviceID != "" {
		body["device_id"] = result.DeviceID
	}
	c.JSON(http.StatusOK, body)
}

// loginTOTPRequest defines the request body for answering a 2FA challenge.
type loginTOTPRequest struct {
	TempToken string `json:"temp_token"`
	Code      string `json:"code"`
}

// LoginTOTP answers a pending two-factor challenge.
func (h *AuthHandler) LoginTOTP(c *gin.Context) {
	var body loginTOTPRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if strings.TrimSpace(body.TempToken) == "" || strings.TrimSpace(body.Code) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "temp_token and code are required"})
		return
	}

	result, errLogin := h.svc.LoginTOTP(c.Request.Context(), body.TempToken, body.Code)
	if errLogin != nil {
		respondAuthError(c, errLogin)
		return
	}
	respondLoginResult(c, result)
}

// verifyRequest defines the request body for session verification.
type verifyRequest struct {
	Token string `json:"token"`
}

// Verify reports whether a session token is current.
func (h *AuthHandler) Verify(c *gin.Context) {
	var body verifyRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	result, errVerify := h.svc.Verify(c.Request.Context(), body.Token)
	if errVerify != nil {
		respondAuthError(c, errVerify)
		return
	}
	if !result.Valid {
		c.JSON(http.StatusUnauthorized, gin.H{"valid": false})
		return
	}
	c.JSON(http.StatusOK, gin.H{"valid": true, "role": result.Role})
}

// Logout clears the caller's stored session token. It answers with a
// generic success and expires the legacy session cookie regardless of
// whether the token was valid.
func (h *AuthHandler) Logout(c *gin.Context) {
	token := TokenFromRequest(c)
	if token == "" {
		var body verifyRequest
		if errBind := c.ShouldBindJSON(&body); errBind == nil {
			token = body.Token
		}
	}

	if errLogout := h.svc.Logout(c.Request.Context(), token); errLogout != nil {
		log.WithError(errLogout).Warn("logout failed")
	}
	c.SetCookie("session_token", "", -1, "/", "", false, true)
	c.JSON(http.StatusOK, gin.H{"message": "logged out"})
}

// forgotPasswordRequest defines the request body for recovery requests.
type forgotPasswordRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
}

// ForgotPassword triggers recovery-code generation for the configured
// recovery email. The response never reveals whether anything happened.
func (h *AuthHandler) ForgotPassword(c *gin.Context) {
	var body forgotPasswordRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	identifier := strings.TrimSpace(body.Email)
	if identifier == "" {
		identifier = strings.TrimSpace(body.Username)
	}

	if errRequest := h.svc.RequestRecoveryCode(c.Request.Context(), identifier); errRequest != nil {
		log.WithError(errRequest).Error("recovery code request failed")
	}
	c.JSON(http.StatusOK, gin.H{"message": "if the address is registered, a recovery code has been sent"})
}

// SetupTOTP returns provisioning material for the authenticator app.
// Director self-service, behind the session middleware.
func (h *AuthHandler) SetupTOTP(c *gin.Context) {
	setup, errSetup := h.svc.SetupTOTP(c.Request.Context(), accountIDFromContext(c))
	if errSetup != nil {
		respondAuthError(c, errSetup)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"secret":      setup.Secret,
		"otpauth_url": setup.OtpauthURL,
		"qr_code":     setup.QRCode,
	})
}

// totpCodeRequest defines the request body carrying a 6-digit code.
type totpCodeRequest struct {
	Code string `json:"code"`
}

// ConfirmTOTP enables the two-factor gate after a valid code.
func (h *AuthHandler) ConfirmTOTP(c *gin.Context) {
	var body totpCodeRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if errConfirm := h.svc.ConfirmTOTP(c.Request.Context(), accountIDFromContext(c), body.Code); errConfirm != nil {
		respondAuthError(c, errConfirm)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// DisableTOTP turns the two-factor gate off.
func (h *AuthHandler) DisableTOTP(c *gin.Context) {
	if errDisable := h.svc.DisableTOTP(c.Request.Context(), accountIDFromContext(c)); errDisable != nil {
		respondAuthError(c, errDisable)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// changePasswordRequest defines the request body for password changes.
type changePasswordRequest struct {
	OldPassword string `json:"old_password"`
	NewPassword string `json:"new_password"`
}

// ChangePassword updates the caller's password and clears the must-change
// flag.
func (h *AuthHandler) ChangePassword(c *gin.Context) {
	var body changePasswordRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if strings.TrimSpace(body.NewPassword) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing new password"})
		return
	}
	if errChange := h.svc.ChangePassword(c.Request.Context(), accountIDFromContext(c), body.OldPassword, body.NewPassword); errChange != nil {
		respondAuthError(c, errChange)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}
