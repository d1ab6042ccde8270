package referral

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/referral-api/internal/middleware"
	"github.com/jwalitptl/referral-api/internal/model"
	"github.com/jwalitptl/referral-api/internal/service/followup"
	"github.com/jwalitptl/referral-api/internal/service/referral"
	"github.com/jwalitptl/referral-api/pkg/errors"
	"github.com/jwalitptl/referral-api/pkg/httputil"
)

// Handler serves referrals and the follow-ups recorded against them.
type Handler struct {
	referrals *referral.Service
	followUps *followup.Service
	authMW    *middleware.AuthMiddleware
}

func NewHandler(referrals *referral.Service, followUps *followup.Service, authMW *middleware.AuthMiddleware) *Handler {
	return &Handler{referrals: referrals, followUps: followUps, authMW: authMW}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	referrals := r.Group("/referral", h.authMW.Authenticate())
	{
		referrals.POST("", h.CreateReferral)
		referrals.GET("", h.ListReferrals)
		referrals.GET("/:id", h.GetReferral)
		referrals.POST("/:id/followup", h.CreateFollowUp)
	}

	followUps := r.Group("/followup", h.authMW.Authenticate())
	{
		followUps.GET("/:id", h.GetFollowUp)
		followUps.PUT("/:id", h.UpdateFollowUp)
	}
}

func (h *Handler) CreateReferral(c *gin.Context) {
	var req model.CreateReferralRequest
	if err := httputil.BindJSON(c, &req); err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	actor, _ := middleware.IdentityFrom(c)
	ref, err := h.referrals.Create(c.Request.Context(), actor, &req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, ref)
}

type listQuery struct {
	model.ReferralFilter
	Mapped bool `form:"mapped"`
}

// ListReferrals returns a list, or with mapped=true an object keyed by reading id.
func (h *Handler) ListReferrals(c *gin.Context) {
	var q listQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		httputil.RespondWithError(c, errors.Validation("invalid query: "+err.Error()))
		return
	}

	if q.Mapped {
		mapped, err := h.referrals.Mapped(c.Request.Context(), &q.ReferralFilter)
		if err != nil {
			httputil.RespondWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, mapped)
		return
	}

	referrals, err := h.referrals.List(c.Request.Context(), &q.ReferralFilter)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, referrals)
}

func (h *Handler) GetReferral(c *gin.Context) {
	id, err := httputil.ParseID(c, "id")
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	ref, err := h.referrals.Get(c.Request.Context(), id)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, ref)
}

func (h *Handler) CreateFollowUp(c *gin.Context) {
	id, err := httputil.ParseID(c, "id")
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	var req model.FollowUpRequest
	if err := httputil.BindJSON(c, &req); err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	actor, _ := middleware.IdentityFrom(c)
	fu, err := h.followUps.Create(c.Request.Context(), actor, id, &req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, fu)
}

func (h *Handler) GetFollowUp(c *gin.Context) {
	id, err := httputil.ParseID(c, "id")
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	fu, err := h.followUps.Get(c.Request.Context(), id)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, fu)
}

func (h *Handler) UpdateFollowUp(c *gin.Context) {
	id, err := httputil.ParseID(c, "id")
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	var req model.FollowUpRequest
	if err := httputil.BindJSON(c, &req); err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	actor, _ := middleware.IdentityFrom(c)
	fu, err := h.followUps.Update(c.Request.Context(), actor, id, &req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, fu)
}
