package patient

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/referral-api/internal/middleware"
	"github.com/jwalitptl/referral-api/internal/model"
	"github.com/jwalitptl/referral-api/internal/service/patient"
	"github.com/jwalitptl/referral-api/internal/service/reading"
	"github.com/jwalitptl/referral-api/pkg/httputil"
)

// Handler serves patients and their readings.
type Handler struct {
	patients *patient.Service
	readings *reading.Service
	authMW   *middleware.AuthMiddleware
}

func NewHandler(patients *patient.Service, readings *reading.Service, authMW *middleware.AuthMiddleware) *Handler {
	return &Handler{patients: patients, readings: readings, authMW: authMW}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	patients := r.Group("/patient", h.authMW.Authenticate())
	{
		patients.POST("", h.CreatePatient)
		patients.GET("", h.ListPatients)
		patients.POST("/reading", h.CreatePatientWithReading)
		patients.GET("/:id", h.GetPatient)
		patients.PUT("/:id", h.UpdatePatient)
		patients.GET("/:id/readings", h.ListReadings)
	}

	readings := r.Group("/reading", h.authMW.Authenticate())
	{
		readings.POST("", h.CreateReading)
		readings.GET("/:id", h.GetReading)
	}
}

func (h *Handler) CreatePatient(c *gin.Context) {
	var req model.CreatePatientRequest
	if err := httputil.BindJSON(c, &req); err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	actor, _ := middleware.IdentityFrom(c)
	p, err := h.patients.Create(c.Request.Context(), actor, &req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, p)
}

func (h *Handler) ListPatients(c *gin.Context) {
	patients, err := h.patients.List(c.Request.Context())
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, patients)
}

func (h *Handler) GetPatient(c *gin.Context) {
	detail, err := h.patients.GetWithReadings(c.Request.Context(), c.Param("id"))
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, detail)
}

func (h *Handler) UpdatePatient(c *gin.Context) {
	raw, err := httputil.BindPatch(c)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	actor, _ := middleware.IdentityFrom(c)
	p, err := h.patients.Update(c.Request.Context(), actor, c.Param("id"), raw)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

// CreatePatientWithReading is the mobile upload: a new patient, their first reading
// and optionally a referral.
func (h *Handler) CreatePatientWithReading(c *gin.Context) {
	var req model.PatientReadingRequest
	if err := httputil.BindJSON(c, &req); err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	actor, _ := middleware.IdentityFrom(c)
	result, err := h.readings.CreateWithPatient(c.Request.Context(), actor, &req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, result)
}

func (h *Handler) ListReadings(c *gin.Context) {
	readings, err := h.readings.ListByPatient(c.Request.Context(), c.Param("id"))
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, readings)
}

func (h *Handler) CreateReading(c *gin.Context) {
	var req model.CreateReadingRequest
	if err := httputil.BindJSON(c, &req); err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	actor, _ := middleware.IdentityFrom(c)
	rd, err := h.readings.Create(c.Request.Context(), actor, &req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, rd)
}

func (h *Handler) GetReading(c *gin.Context) {
	rd, err := h.readings.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, rd)
}
