package handlers

import (
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"pulmocare-server/internal/models"
	"pulmocare-server/internal/utils"
)

// Uploaded X-ray images are stored inline; cap the accepted size.
const maxAnalysisImageBytes = 10 << 20 // 10 MB

// AnalysisHandler handles chest X-ray analysis records.
type AnalysisHandler struct {
	DB *gorm.DB
}

// NewAnalysisHandler creates a new AnalysisHandler.
func NewAnalysisHandler(db *gorm.DB) *AnalysisHandler {
	return &AnalysisHandler{DB: db}
}

// CreateAnalysis handles a doctor uploading an analysis record for a patient,
// optionally attaching it to a consultation. Expects a multipart form with an
// "image" file plus the analysis fields.
func (h *AnalysisHandler) CreateAnalysis(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		utils.Unauthorized(c, "User not authenticated")
		return
	}
	if actor.Role != models.RoleDoctor && actor.Role != models.RoleAdmin {
		utils.Forbidden(c, "Only doctors can create analysis records")
		return
	}

	patientID := c.PostForm("patientId")
	if patientID == "" {
		utils.BadRequest(c, "patientId is required")
		return
	}
	var patient models.User
	if err := h.DB.First(&patient, "id = ? AND role = ?", patientID, models.RolePatient).Error; err != nil {
		utils.BadRequest(c, "Patient not found")
		return
	}

	finding := models.AnalysisFinding(c.PostForm("finding"))
	switch finding {
	case models.FindingNormal, models.FindingPneumonia, models.FindingIndeterminate:
	default:
		utils.BadRequest(c, "finding must be one of: normal, pneumonia, indeterminate")
		return
	}

	confidence, err := strconv.ParseFloat(c.PostForm("confidence"), 64)
	if err != nil || confidence < 0 || confidence > 1 {
		utils.BadRequest(c, "confidence must be a number between 0 and 1")
		return
	}

	record := models.AnalysisRecord{
		PatientID:  patientID,
		DoctorID:   actor.ID,
		AnalyzedAt: time.Now(),
		Finding:    finding,
		Confidence: confidence,
		Summary:    c.PostForm("summary"),
		Details:    c.PostForm("details"),
	}

	if consultationID := c.PostForm("consultationId"); consultationID != "" {
		var consultation models.Consultation
		if err := h.DB.First(&consultation, "id = ?", consultationID).Error; err != nil {
			utils.BadRequest(c, "Consultation not found")
			return
		}
		if consultation.PatientID != patientID {
			utils.BadRequest(c, "Consultation does not belong to this patient")
			return
		}
		record.ConsultationID = &consultationID
	}

	fileHeader, err := c.FormFile("image")
	if err == nil {
		if fileHeader.Size > maxAnalysisImageBytes {
			utils.BadRequest(c, "Image exceeds the 10MB size limit")
			return
		}
		file, err := fileHeader.Open()
		if err != nil {
			utils.InternalServerError(c, "Failed to read uploaded image: "+err.Error())
			return
		}
		defer file.Close()

		data, err := io.ReadAll(file)
		if err != nil {
			utils.InternalServerError(c, "Failed to read uploaded image: "+err.Error())
			return
		}
		record.ImageName = fileHeader.Filename
		record.ImageType = fileHeader.Header.Get("Content-Type")
		record.ImageData = data
	}

	if err := h.DB.Create(&record).Error; err != nil {
		utils.InternalServerError(c, "Failed to create analysis record: "+err.Error())
		return
	}

	utils.Created(c, "Analysis record created successfully", record)
}

// GetAnalyses handles listing analysis records visible to the requester.
// Patients see their own records, doctors the ones they authored, admins all.
func (h *AnalysisHandler) GetAnalyses(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		utils.Unauthorized(c, "User not authenticated")
		return
	}

	query := h.DB.Order("analyzed_at DESC")
	switch actor.Role {
	case models.RoleAdmin:
	case models.RoleDoctor:
		query = query.Where("doctor_id = ?", actor.ID)
	default:
		query = query.Where("patient_id = ?", actor.ID)
	}

	if patientID := c.Query("patientId"); patientID != "" && actor.Role != models.RolePatient {
		query = query.Where("patient_id = ?", patientID)
	}

	var records []models.AnalysisRecord
	if err := query.Find(&records).Error; err != nil {
		utils.InternalServerError(c, "Failed to fetch analysis records: "+err.Error())
		return
	}

	utils.Success(c, "Analysis records fetched successfully", records)
}

// loadAnalysisForViewer fetches a record and verifies access.
func (h *AnalysisHandler) loadAnalysisForViewer(c *gin.Context, recordID, userID string, role models.Role) (*models.AnalysisRecord, bool) {
	var record models.AnalysisRecord
	if err := h.DB.First(&record, "id = ?", recordID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			utils.NotFound(c, "Analysis record not found")
		} else {
			utils.InternalServerError(c, "Database error: "+err.Error())
		}
		return nil, false
	}

	if role != models.RoleAdmin && record.PatientID != userID && record.DoctorID != userID {
		utils.Forbidden(c, "You are not authorized to view this analysis record")
		return nil, false
	}
	return &record, true
}

// GetAnalysisByID handles fetching a single analysis record.
func (h *AnalysisHandler) GetAnalysisByID(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		utils.Unauthorized(c, "User not authenticated")
		return
	}

	record, ok := h.loadAnalysisForViewer(c, c.Param("id"), actor.ID, actor.Role)
	if !ok {
		return
	}

	utils.Success(c, "Analysis record fetched successfully", record)
}

// GetAnalysisImage streams the stored X-ray image of a record.
func (h *AnalysisHandler) GetAnalysisImage(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		utils.Unauthorized(c, "User not authenticated")
		return
	}

	record, ok := h.loadAnalysisForViewer(c, c.Param("id"), actor.ID, actor.Role)
	if !ok {
		return
	}
	if len(record.ImageData) == 0 {
		utils.NotFound(c, "This analysis record has no image attached")
		return
	}

	contentType := record.ImageType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	c.Header("Content-Disposition", "inline; filename=\""+record.ImageName+"\"")
	c.Data(http.StatusOK, contentType, record.ImageData)
}
