package facility

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/referral-api/internal/middleware"
	"github.com/jwalitptl/referral-api/internal/model"
	"github.com/jwalitptl/referral-api/internal/service/facility"
	"github.com/jwalitptl/referral-api/pkg/httputil"
)

type Handler struct {
	service *facility.Service
	authMW  *middleware.AuthMiddleware
}

func NewHandler(service *facility.Service, authMW *middleware.AuthMiddleware) *Handler {
	return &Handler{service: service, authMW: authMW}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	adminOnly := middleware.RequireRole(model.RoleAdmin)

	facilities := r.Group("/facility", h.authMW.Authenticate())
	{
		facilities.POST("", adminOnly, h.CreateFacility)
		facilities.GET("", h.ListFacilities)
	}

	villages := r.Group("/village", h.authMW.Authenticate())
	{
		villages.POST("", adminOnly, h.CreateVillage)
		villages.GET("", h.ListVillages)
	}
}

func (h *Handler) CreateFacility(c *gin.Context) {
	var f model.HealthFacility
	if err := httputil.BindJSON(c, &f); err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	if err := h.service.CreateFacility(c.Request.Context(), &f); err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, f)
}

func (h *Handler) ListFacilities(c *gin.Context) {
	facilities, err := h.service.ListFacilities(c.Request.Context())
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, facilities)
}

func (h *Handler) CreateVillage(c *gin.Context) {
	var v model.Village
	if err := httputil.BindJSON(c, &v); err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	if err := h.service.CreateVillage(c.Request.Context(), &v); err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, v)
}

func (h *Handler) ListVillages(c *gin.Context) {
	villages, err := h.service.ListVillages(c.Request.Context())
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, villages)
}
