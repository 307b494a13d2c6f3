package handlers

import (
	"errors"

	"github.com/gin-gonic/gin"

	"pulmocare-server/internal/services"
	"pulmocare-server/internal/utils"
)

// respondServiceError maps the consultation engine's error taxonomy onto the
// response envelope. Unclassified errors become a 500.
func respondServiceError(c *gin.Context, err error) {
	var verr *services.ValidationError

	switch {
	case errors.As(err, &verr):
		utils.BadRequest(c, verr.Error())
	case errors.Is(err, services.ErrDoctorUnavailable):
		utils.BadRequest(c, "Doctor not found, not a doctor, or not accepting consultations")
	case errors.Is(err, services.ErrSlotConflict):
		utils.BadRequest(c, "The requested time conflicts with an existing consultation. Please pick another slot.")
	case errors.Is(err, services.ErrInvalidStateTransition):
		utils.BadRequest(c, "The consultation's current status does not permit this action")
	case errors.Is(err, services.ErrAccessDenied):
		utils.Forbidden(c, "You are not authorized to perform this action on this consultation")
	case errors.Is(err, services.ErrNotFound):
		utils.NotFound(c, "Consultation not found")
	default:
		utils.InternalServerError(c, "Unexpected error: "+err.Error())
	}
}
