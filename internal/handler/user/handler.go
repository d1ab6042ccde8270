package user

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/referral-api/internal/middleware"
	"github.com/jwalitptl/referral-api/internal/model"
	authsvc "github.com/jwalitptl/referral-api/internal/service/auth"
	"github.com/jwalitptl/referral-api/internal/service/user"
	"github.com/jwalitptl/referral-api/pkg/errors"
	"github.com/jwalitptl/referral-api/pkg/httputil"
)

type Handler struct {
	users  *user.Service
	auth   *authsvc.Service
	authMW *middleware.AuthMiddleware
}

func NewHandler(users *user.Service, auth *authsvc.Service, authMW *middleware.AuthMiddleware) *Handler {
	return &Handler{users: users, auth: auth, authMW: authMW}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	users := r.Group("/user")
	{
		users.GET("/all", h.ListUsers)
		users.GET("/vhts", h.ListVHTs)
		users.POST("/register", h.Register)
		users.POST("/auth", h.Authenticate)
		users.POST("/refresh", h.Refresh)
		users.PUT("/edit/:id", h.UpdateUser)

		authed := users.Group("", h.authMW.Authenticate())
		authed.GET("/token", h.CurrentIdentity)
		authed.DELETE("/delete/:id", h.DeleteUser)
		authed.GET("/:id", h.GetUser)
	}
}

func (h *Handler) ListUsers(c *gin.Context) {
	users, err := h.users.List(c.Request.Context())
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	if len(users) == 0 {
		httputil.RespondWithError(c, errors.NotFound("users", nil))
		return
	}
	c.JSON(http.StatusOK, model.NewUserViews(users))
}

func (h *Handler) ListVHTs(c *gin.Context) {
	ids, err := h.users.ListVHTIDs(c.Request.Context())
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, ids)
}

func (h *Handler) Register(c *gin.Context) {
	var req model.RegisterRequest
	if err := httputil.BindJSON(c, &req); err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	if _, err := h.users.Register(c.Request.Context(), &req); err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{})
}

func (h *Handler) Authenticate(c *gin.Context) {
	var req model.LoginRequest
	if err := httputil.BindJSON(c, &req); err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	view, err := h.auth.Authenticate(c.Request.Context(), &req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (h *Handler) Refresh(c *gin.Context) {
	var req model.RefreshTokenRequest
	if err := httputil.BindJSON(c, &req); err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	view, err := h.auth.Refresh(c.Request.Context(), &req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// CurrentIdentity echoes the claims of the bearer token.
func (h *Handler) CurrentIdentity(c *gin.Context) {
	identity, _ := middleware.IdentityFrom(c)
	c.JSON(http.StatusOK, identity)
}

func (h *Handler) GetUser(c *gin.Context) {
	id, err := httputil.ParseID(c, "id")
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	u, err := h.users.Get(c.Request.Context(), id)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, model.NewUserView(u))
}

// UpdateUser and DeleteUser report every failure, including an unknown user or a
// missing permission, as 400.
func (h *Handler) UpdateUser(c *gin.Context) {
	id, err := httputil.ParseID(c, "id")
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	raw, err := httputil.BindPatch(c)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	u, err := h.users.Update(c.Request.Context(), id, raw)
	if err != nil {
		httputil.RespondWithError(c, err, errors.ErrNotFound)
		return
	}
	c.JSON(http.StatusOK, model.NewUserView(u))
}

func (h *Handler) DeleteUser(c *gin.Context) {
	id, err := httputil.ParseID(c, "id")
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	actor, _ := middleware.IdentityFrom(c)
	if err := h.users.Delete(c.Request.Context(), actor, id); err != nil {
		httputil.RespondWithError(c, err, errors.ErrNotFound, errors.ErrForbidden)
		return
	}
	c.JSON(http.StatusOK, gin.H{})
}
