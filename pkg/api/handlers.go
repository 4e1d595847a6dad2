package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/anthonyagughasi/haircut-website/pkg/repository/model"
	"github.com/anthonyagughasi/haircut-website/pkg/utils/errs"
)

type errorResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

type Handler struct {
	svc    *BookingService
	logger zerolog.Logger
}

func NewHandler(svc *BookingService, logger zerolog.Logger) *Handler {
	return &Handler{svc: svc, logger: logger.With().Str("component", "api_handler").Logger()}
}

func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *Handler) ListServices(c *gin.Context) {
	out, err := h.svc.Services(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (h *Handler) ListAssistants(c *gin.Context) {
	out, err := h.svc.Staff(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (h *Handler) Availability(c *gin.Context) {
	var q model.AvailabilityQuery
	if err := c.ShouldBindJSON(&q); err != nil {
		h.fail(c, errs.New("invalid request: "+err.Error()).Kind(errs.KindValidation))
		return
	}
	out, err := h.svc.Availability(c.Request.Context(), q)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (h *Handler) CreateBooking(c *gin.Context) {
	var p model.BookingPayload
	if err := c.ShouldBindJSON(&p); err != nil {
		h.fail(c, errs.New("invalid request: "+err.Error()).Kind(errs.KindValidation))
		return
	}
	out, err := h.svc.Book(c.Request.Context(), p)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, out)
}

// fail writes {success:false, message} with a status derived from the error kind.
// Only validation and conflict messages reach the client verbatim.
func (h *Handler) fail(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	msg := "Something went wrong. Please try again."

	switch errs.KindOf(err) {
	case errs.KindValidation:
		status = http.StatusBadRequest
		msg = clientMessage(err)
	case errs.KindConflict:
		status = http.StatusConflict
		msg = clientMessage(err)
	}
	if status >= http.StatusInternalServerError {
		h.logger.Error().Err(err).Str("path", c.FullPath()).Msg("request failed")
	} else {
		h.logger.Debug().Err(err).Str("path", c.FullPath()).Msg("request rejected")
	}
	c.AbortWithStatusJSON(status, errorResponse{Success: false, Message: msg})
}

func clientMessage(err error) string {
	var ce *errs.CustomError
	if errors.As(err, &ce) {
		return ce.Message()
	}
	return err.Error()
}
