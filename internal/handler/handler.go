package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"account_service/internal/auth"
	"account_service/internal/models"
	"account_service/internal/service"

	"github.com/gin-gonic/gin"
)

const (
	userIDKey = "UserID"

	refreshCookieName = "refreshtoken"
	refreshCookiePath = "/api/refresh_token"
)

// Guard is the authorization gate as seen by the transport.
type Guard interface {
	Authenticate(ctx context.Context, authHeader string) (string, error)
	RequireAdmin(ctx context.Context, userID string) error
}

type Handler struct {
	serviceLayer service.Service
	guard        Guard
	log          *slog.Logger
	refreshTTL   time.Duration
	secureCookie bool
}

type msgResponse struct {
	Message string `json:"msg"`
}

type loginErrorResponse struct {
	Error string `json:"error"`
}

func newErrorResponse(c *gin.Context, statusCode int, errMessage string) {
	c.AbortWithStatusJSON(statusCode, msgResponse{Message: errMessage})
}

func NewHandler(srvc service.Service, guard Guard, lgr *slog.Logger, refreshTTL time.Duration, secureCookie bool) *Handler {
	return &Handler{
		serviceLayer: srvc,
		guard:        guard,
		log:          lgr,
		refreshTTL:   refreshTTL,
		secureCookie: secureCookie,
	}
}

func (h *Handler) InitRoutes() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(h.log))

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := router.Group("/api")
	{
		api.POST("/register", h.Register)
		api.POST("/register_admin", h.RegisterAdmin)
		api.GET("/activation/:activation_token", h.Activate)
		api.POST("/login", h.Login)
		api.POST("/refresh_token", h.RefreshToken)
		api.POST("/forgot", h.ForgotPassword)
		api.GET("/logout", h.Logout)

		authed := api.Group("")
		authed.Use(h.authenticate())
		{
			authed.POST("/reset", h.ResetPassword)
			authed.GET("/info", h.GetProfile)
			authed.PATCH("/update", h.UpdateProfile)

			admin := authed.Group("")
			admin.Use(h.requireAdmin())
			{
				admin.GET("/all_info", h.ListProfiles)
				admin.PATCH("/update_role/:id", h.UpdateRole)
				admin.DELETE("/delete/:id", h.SoftDelete)
			}
		}
	}

	return router
}

// authenticate is the first gate stage: it resolves the access token and
// stores the user id for the handlers behind it.
func (h *Handler) authenticate() gin.HandlerFunc {
	return func(c *gin.Context) {
		const op = "handler.authenticate"

		userID, err := h.guard.Authenticate(c.Request.Context(), c.GetHeader("Authorization"))
		if err != nil {
			if errors.Is(err, auth.ErrInvalidToken) {
				h.log.Debug("rejected access token", slog.String("op", op), slog.Any("error", err))

				newErrorResponse(c, http.StatusUnauthorized, service.MsgInvalidAuthHdr)

				return
			}

			h.log.Error("failed to authenticate", slog.String("op", op), slog.Any("error", err))

			newErrorResponse(c, http.StatusInternalServerError, err.Error())

			return
		}

		c.Set(userIDKey, userID)

		c.Next()
	}
}

// requireAdmin is the second gate stage and must run after authenticate.
func (h *Handler) requireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		const op = "handler.requireAdmin"

		log := h.log.With(slog.String("op", op))

		userID := c.GetString(userIDKey)

		err := h.guard.RequireAdmin(c.Request.Context(), userID)
		if err != nil {
			if errors.Is(err, auth.ErrForbidden) {
				log.Warn("admin access denied", slog.String("user_id", userID))

				newErrorResponse(c, http.StatusForbidden, service.MsgAccessDenied)

				return
			}

			log.Error("failed to check role", slog.String("user_id", userID), slog.Any("error", err))

			newErrorResponse(c, http.StatusInternalServerError, err.Error())

			return
		}

		c.Next()
	}
}

func requestLogger(log *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		log.Info("request",
			slog.String("method", c.Request.Method),
			slog.String("path", c.FullPath()),
			slog.Int("status", c.Writer.Status()),
			slog.Duration("latency", time.Since(start)),
		)
	}
}

// writeError maps a service error onto the HTTP status and body the
// clients expect.
func (h *Handler) writeError(c *gin.Context, log *slog.Logger, err error) {
	var svcErr *service.Error
	if !errors.As(err, &svcErr) {
		log.Error("unexpected error", slog.Any("error", err))

		newErrorResponse(c, http.StatusInternalServerError, err.Error())

		return
	}

	switch svcErr.Kind {
	case service.KindValidation, service.KindInvalidToken, service.KindNotFound:
		log.Info("request rejected", slog.String("kind", svcErr.Kind.String()), slog.Any("error", err))

		newErrorResponse(c, http.StatusBadRequest, svcErr.Message)
	case service.KindAuthentication:
		log.Info("authentication failed")

		c.AbortWithStatusJSON(http.StatusUnauthorized, loginErrorResponse{Error: svcErr.Message})
	default:
		log.Error("internal failure", slog.Any("error", err))

		newErrorResponse(c, http.StatusInternalServerError, svcErr.Message)
	}
}

type registerRequest struct {
	Names    string `json:"names"`
	Surname  string `json:"surname"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

func (r registerRequest) input() service.RegisterInput {
	return service.RegisterInput{
		Names:    r.Names,
		Surname:  r.Surname,
		Email:    r.Email,
		Password: r.Password,
		Role:     models.Role(r.Role),
	}
}

// POST /api/register
func (h *Handler) Register(c *gin.Context) {
	const op = "handler.Register"

	log := h.log.With(slog.String("op", op))

	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Error("failed to read request body", slog.Any("error", err))

		newErrorResponse(c, http.StatusBadRequest, service.MsgMissingFields)

		return
	}

	token, err := h.serviceLayer.Register(c.Request.Context(), req.input())
	if err != nil {
		h.writeError(c, log, err)

		return
	}

	c.JSON(http.StatusOK, gin.H{
		"msg":   "Registro exitoso. Verifica tu bandeja de correos electrónicos para activar la cuenta. ",
		"token": token,
	})
}

// POST /api/register_admin
func (h *Handler) RegisterAdmin(c *gin.Context) {
	const op = "handler.RegisterAdmin"

	log := h.log.With(slog.String("op", op))

	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Error("failed to read request body", slog.Any("error", err))

		newErrorResponse(c, http.StatusBadRequest, service.MsgMissingFields)

		return
	}

	user, err := h.serviceLayer.RegisterPrivileged(c.Request.Context(), req.input())
	if err != nil {
		h.writeError(c, log, err)

		return
	}

	log.Info("profile created", slog.String("user_id", user.ID), slog.String("role", string(user.Role)))

	c.JSON(http.StatusOK, msgResponse{Message: "Perfil creado exitosamente. "})
}

// GET /api/activation/:activation_token
func (h *Handler) Activate(c *gin.Context) {
	const op = "handler.Activate"

	log := h.log.With(slog.String("op", op))

	user, err := h.serviceLayer.Activate(c.Request.Context(), c.Param("activation_token"))
	if err != nil {
		h.writeError(c, log, err)

		return
	}

	log.Info("account activated", slog.String("user_id", user.ID))

	c.JSON(http.StatusOK, msgResponse{Message: "La cuenta fue activada exitosamente. "})
}

// POST /api/login
func (h *Handler) Login(c *gin.Context) {
	const op = "handler.Login"

	log := h.log.With(slog.String("op", op))

	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Error("failed to read request body", slog.Any("error", err))

		newErrorResponse(c, http.StatusBadRequest, service.MsgMissingFields)

		return
	}

	session, err := h.serviceLayer.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		h.writeError(c, log, err)

		return
	}

	h.setRefreshCookie(c, session.RefreshToken, int(h.refreshTTL.Seconds()))

	c.JSON(http.StatusOK, gin.H{
		"email":         session.Email,
		"refresh_token": session.RefreshToken,
		"access_token":  session.AccessToken,
		"msg":           "Login exitoso!",
	})
}

// POST /api/refresh_token
func (h *Handler) RefreshToken(c *gin.Context) {
	const op = "handler.RefreshToken"

	log := h.log.With(slog.String("op", op))

	var req struct {
		RefreshToken string `json:"refreshtoken"`
	}
	// the body is optional; the cookie set at login is the fallback
	_ = c.ShouldBindJSON(&req)

	token := req.RefreshToken
	if token == "" {
		token, _ = c.Cookie(refreshCookieName)
	}
	if token == "" {
		newErrorResponse(c, http.StatusBadRequest, service.MsgLoginAgain)

		return
	}

	access, err := h.serviceLayer.Refresh(c.Request.Context(), token)
	if err != nil {
		h.writeError(c, log, err)

		return
	}

	c.JSON(http.StatusOK, gin.H{"access_token": access})
}

// POST /api/forgot
func (h *Handler) ForgotPassword(c *gin.Context) {
	const op = "handler.ForgotPassword"

	log := h.log.With(slog.String("op", op))

	var req struct {
		Email string `json:"email"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Error("failed to read request body", slog.Any("error", err))

		newErrorResponse(c, http.StatusBadRequest, service.MsgMissingFields)

		return
	}

	if err := h.serviceLayer.ForgotPassword(c.Request.Context(), req.Email); err != nil {
		h.writeError(c, log, err)

		return
	}

	c.JSON(http.StatusOK, msgResponse{Message: "Contraseña reenviada, verifica tu correo electrónico. "})
}

// POST /api/reset
func (h *Handler) ResetPassword(c *gin.Context) {
	const op = "handler.ResetPassword"

	log := h.log.With(slog.String("op", op))

	var req struct {
		Password string `json:"password"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Error("failed to read request body", slog.Any("error", err))

		newErrorResponse(c, http.StatusBadRequest, service.MsgMissingFields)

		return
	}

	userID := c.GetString(userIDKey)

	if err := h.serviceLayer.ResetPassword(c.Request.Context(), userID, req.Password); err != nil {
		h.writeError(c, log, err)

		return
	}

	log.Info("password changed", slog.String("user_id", userID))

	c.JSON(http.StatusOK, msgResponse{Message: "Password successfully changed!"})
}

// GET /api/info
func (h *Handler) GetProfile(c *gin.Context) {
	const op = "handler.GetProfile"

	log := h.log.With(slog.String("op", op))

	user, err := h.serviceLayer.GetProfile(c.Request.Context(), c.GetString(userIDKey))
	if err != nil {
		h.writeError(c, log, err)

		return
	}

	c.JSON(http.StatusOK, user)
}

// GET /api/all_info
func (h *Handler) ListProfiles(c *gin.Context) {
	const op = "handler.ListProfiles"

	log := h.log.With(slog.String("op", op))

	users, err := h.serviceLayer.ListProfiles(c.Request.Context())
	if err != nil {
		h.writeError(c, log, err)

		return
	}

	c.JSON(http.StatusOK, users)
}

// GET /api/logout
func (h *Handler) Logout(c *gin.Context) {
	h.setRefreshCookie(c, "", -1)

	c.JSON(http.StatusOK, msgResponse{Message: "Logged out."})
}

// PATCH /api/update
func (h *Handler) UpdateProfile(c *gin.Context) {
	const op = "handler.UpdateProfile"

	log := h.log.With(slog.String("op", op))

	var req struct {
		Names   string `json:"names"`
		Surname string `json:"surname"`
		Avatar  string `json:"avatar"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Error("failed to read request body", slog.Any("error", err))

		newErrorResponse(c, http.StatusBadRequest, service.MsgMissingFields)

		return
	}

	upd := models.ProfileUpdate{Names: req.Names, Surname: req.Surname, Avatar: req.Avatar}

	if err := h.serviceLayer.UpdateProfile(c.Request.Context(), c.GetString(userIDKey), upd); err != nil {
		h.writeError(c, log, err)

		return
	}

	c.JSON(http.StatusOK, msgResponse{Message: "Update Success!"})
}

// PATCH /api/update_role/:id
func (h *Handler) UpdateRole(c *gin.Context) {
	const op = "handler.UpdateRole"

	log := h.log.With(slog.String("op", op))

	var req struct {
		Role string `json:"role"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Error("failed to read request body", slog.Any("error", err))

		newErrorResponse(c, http.StatusBadRequest, service.MsgMissingFields)

		return
	}

	targetID := c.Param("id")

	if err := h.serviceLayer.UpdateRole(c.Request.Context(), targetID, models.Role(req.Role)); err != nil {
		h.writeError(c, log, err)

		return
	}

	log.Info("role changed", slog.String("user_id", targetID), slog.String("role", req.Role), slog.String("by", c.GetString(userIDKey)))

	c.JSON(http.StatusOK, msgResponse{Message: "Update Success!"})
}

// DELETE /api/delete/:id
func (h *Handler) SoftDelete(c *gin.Context) {
	const op = "handler.SoftDelete"

	log := h.log.With(slog.String("op", op))

	targetID := c.Param("id")

	if err := h.serviceLayer.SoftDelete(c.Request.Context(), targetID); err != nil {
		h.writeError(c, log, err)

		return
	}

	log.Info("user deleted", slog.String("user_id", targetID), slog.String("by", c.GetString(userIDKey)))

	c.JSON(http.StatusOK, msgResponse{Message: "Deleted Success!"})
}

func (h *Handler) setRefreshCookie(c *gin.Context, value string, maxAge int) {
	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie(refreshCookieName, value, maxAge, refreshCookiePath, "", h.secureCookie, true)
}
