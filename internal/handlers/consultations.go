package handlers

import (
	"time"

	"github.com/gin-gonic/gin"

	"pulmocare-server/internal/middleware"
	"pulmocare-server/internal/models"
	"pulmocare-server/internal/services"
	"pulmocare-server/internal/utils"
	"pulmocare-server/internal/ws"
)

// ConsultationHandler handles consultation scheduling and lifecycle requests.
type ConsultationHandler struct {
	Svc *services.ConsultationService
	Hub *ws.Hub
}

// NewConsultationHandler creates a new ConsultationHandler.
func NewConsultationHandler(svc *services.ConsultationService, hub *ws.Hub) *ConsultationHandler {
	return &ConsultationHandler{Svc: svc, Hub: hub}
}

// actorFromContext builds the service-layer actor from the token claims the
// auth middleware stored on the context.
func actorFromContext(c *gin.Context) (services.Actor, bool) {
	userID, exists := middleware.GetUserIDFromContext(c)
	if !exists {
		return services.Actor{}, false
	}
	role, _ := middleware.GetUserRoleFromContext(c)
	return services.Actor{ID: userID, Role: role}, true
}

// GetAvailability handles listing the bookable slots of a doctor for a day.
func (h *ConsultationHandler) GetAvailability(c *gin.Context) {
	doctorID := c.Param("doctorId")

	date := time.Now()
	if dateStr := c.Query("date"); dateStr != "" {
		parsed, err := time.Parse("2006-01-02", dateStr)
		if err != nil {
			utils.BadRequest(c, "Invalid date format. Use YYYY-MM-DD.")
			return
		}
		date = parsed
	}

	result, err := h.Svc.Availability(c.Request.Context(), doctorID, date)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	utils.Success(c, "Availability fetched successfully", result)
}

// CreateConsultationRequest represents the request body for booking a consultation.
type CreateConsultationRequest struct {
	DoctorID          string    `json:"doctorId" binding:"required,uuid"`
	PatientID         string    `json:"patientId" binding:"omitempty,uuid"` // Only honored for doctors/admins booking on behalf of a patient
	ScheduledDateTime time.Time `json:"scheduledDateTime" binding:"required"`
	Duration          int       `json:"duration"`
	Timezone          string    `json:"timezone"`
	Type              string    `json:"type"`
	Specialization    string    `json:"specialization"`
	Reason            string    `json:"reason" binding:"required"`
	Symptoms          []string  `json:"symptoms"`
}

// CreateConsultation handles booking a new consultation.
// Typically initiated by a patient.
func (h *ConsultationHandler) CreateConsultation(c *gin.Context) {
	var req CreateConsultationRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}

	actor, ok := actorFromContext(c)
	if !ok {
		utils.Unauthorized(c, "User not authenticated")
		return
	}

	patientID := req.PatientID
	if actor.Role == models.RolePatient || patientID == "" {
		// Patients always book for themselves.
		patientID = actor.ID
	}

	consultation, err := h.Svc.Book(c.Request.Context(), actor, services.BookingInput{
		PatientID:         patientID,
		DoctorID:          req.DoctorID,
		ScheduledDateTime: req.ScheduledDateTime,
		Duration:          req.Duration,
		Timezone:          req.Timezone,
		Type:              models.ConsultationType(req.Type),
		Specialization:    models.Specialization(req.Specialization),
		Reason:            req.Reason,
		Symptoms:          req.Symptoms,
	})
	if err != nil {
		respondServiceError(c, err)
		return
	}

	h.Hub.NotifyUsers([]string{consultation.DoctorID, consultation.PatientID}, ws.Event{
		Type:       ws.EventConsultationBooked,
		ResourceID: consultation.ID,
	})

	utils.Created(c, "Consultation booked successfully", consultation)
}

// GetConsultationsForUser handles fetching consultations for the logged-in
// user (patient or doctor); admins see all.
func (h *ConsultationHandler) GetConsultationsForUser(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		utils.Unauthorized(c, "User not authenticated")
		return
	}

	consultations, err := h.Svc.ListForActor(c.Request.Context(), actor)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	utils.Success(c, "Consultations fetched successfully", consultations)
}

// GetConsultationByID handles fetching a single consultation.
// Accessible by the involved patient, doctor, or an admin.
func (h *ConsultationHandler) GetConsultationByID(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		utils.Unauthorized(c, "User not authenticated")
		return
	}

	consultation, err := h.Svc.Get(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		respondServiceError(c, err)
		return
	}

	utils.Success(c, "Consultation fetched successfully", consultation)
}

// UpdateConsultationStatusRequest represents the request body for a status transition.
type UpdateConsultationStatusRequest struct {
	Status       string `json:"status" binding:"required,oneof=confirmed completed cancelled no_show"`
	CancelReason string `json:"cancelReason"`
}

// UpdateConsultationStatus handles explicit status transitions.
// Patients may only cancel; doctors and admins may apply any permitted transition.
func (h *ConsultationHandler) UpdateConsultationStatus(c *gin.Context) {
	var req UpdateConsultationStatusRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}

	actor, ok := actorFromContext(c)
	if !ok {
		utils.Unauthorized(c, "User not authenticated")
		return
	}

	consultation, err := h.Svc.UpdateStatus(c.Request.Context(), actor, c.Param("id"),
		models.ConsultationStatus(req.Status), req.CancelReason)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	h.Hub.NotifyUsers([]string{consultation.DoctorID, consultation.PatientID}, ws.Event{
		Type:       ws.EventConsultationStatus,
		ResourceID: consultation.ID,
		Data:       map[string]string{"status": string(consultation.Status)},
	})

	utils.Success(c, "Consultation status updated successfully", consultation)
}

// StartVideoSession handles starting the video session of a confirmed
// consultation inside its grace window.
func (h *ConsultationHandler) StartVideoSession(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		utils.Unauthorized(c, "User not authenticated")
		return
	}

	consultation, session, err := h.Svc.StartVideo(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		respondServiceError(c, err)
		return
	}

	h.Hub.NotifyUsers(session.Participants, ws.Event{
		Type:       ws.EventVideoStarted,
		ResourceID: consultation.ID,
		Data:       map[string]string{"roomId": session.RoomID, "jitsiRoomName": session.JitsiRoomName},
	})

	utils.Success(c, "Video session started", session)
}

// EndVideoSession handles ending an in-progress video session.
func (h *ConsultationHandler) EndVideoSession(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		utils.Unauthorized(c, "User not authenticated")
		return
	}

	consultation, err := h.Svc.EndVideo(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		respondServiceError(c, err)
		return
	}

	h.Hub.NotifyUsers([]string{consultation.PatientID, consultation.DoctorID}, ws.Event{
		Type:       ws.EventVideoEnded,
		ResourceID: consultation.ID,
	})

	utils.Success(c, "Video session ended", consultation)
}

// UpdateConsultationNotesRequest represents the request body for doctor notes.
type UpdateConsultationNotesRequest struct {
	Diagnosis       string   `json:"diagnosis"`
	Prescriptions   []string `json:"prescriptions"`
	Recommendations string   `json:"recommendations"`
	FollowUp        bool     `json:"followUp"`
	FollowUpDate    *string  `json:"followUpDate"`
	Severity        string   `json:"severity" binding:"omitempty,oneof=low medium high critical"`
}

// UpdateConsultationNotes handles doctor-authored clinical notes.
// Only the doctor on the consultation may write them.
func (h *ConsultationHandler) UpdateConsultationNotes(c *gin.Context) {
	var req UpdateConsultationNotesRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}

	actor, ok := actorFromContext(c)
	if !ok {
		utils.Unauthorized(c, "User not authenticated")
		return
	}

	var followUpDate *time.Time
	if req.FollowUpDate != nil && *req.FollowUpDate != "" {
		parsed, err := time.Parse(time.RFC3339, *req.FollowUpDate)
		if err != nil {
			utils.BadRequest(c, "Invalid followUpDate format. Use RFC3339.")
			return
		}
		followUpDate = &parsed
	}

	consultation, err := h.Svc.UpdateNotes(c.Request.Context(), actor, c.Param("id"), services.NotesInput{
		Diagnosis:       req.Diagnosis,
		Prescriptions:   req.Prescriptions,
		Recommendations: req.Recommendations,
		FollowUp:        req.FollowUp,
		FollowUpDate:    followUpDate,
		Severity:        models.Severity(req.Severity),
	})
	if err != nil {
		respondServiceError(c, err)
		return
	}

	utils.Success(c, "Consultation notes updated successfully", consultation)
}
