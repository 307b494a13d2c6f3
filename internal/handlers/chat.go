package handlers

import (
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"pulmocare-server/internal/models"
	"pulmocare-server/internal/utils"
	"pulmocare-server/internal/ws"
)

// ChatHandler handles messaging threads between patients and doctors.
type ChatHandler struct {
	DB  *gorm.DB
	Hub *ws.Hub
}

// NewChatHandler creates a new ChatHandler.
func NewChatHandler(db *gorm.DB, hub *ws.Hub) *ChatHandler {
	return &ChatHandler{DB: db, Hub: hub}
}

// loadThreadForParticipant fetches a thread and verifies the requester is one
// of its participants. Returns false after writing the error response.
func (h *ChatHandler) loadThreadForParticipant(c *gin.Context, threadID, userID string, role models.Role) (*models.ChatThread, bool) {
	var thread models.ChatThread
	if err := h.DB.First(&thread, "id = ?", threadID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			utils.NotFound(c, "Chat thread not found")
		} else {
			utils.InternalServerError(c, "Database error: "+err.Error())
		}
		return nil, false
	}

	if role != models.RoleAdmin && !thread.Involves(userID) {
		utils.Forbidden(c, "You are not a participant of this thread")
		return nil, false
	}
	return &thread, true
}

// CreateThreadRequest represents the request body for starting a direct thread.
type CreateThreadRequest struct {
	DoctorID  string `json:"doctorId" binding:"omitempty,uuid"`
	PatientID string `json:"patientId" binding:"omitempty,uuid"`
	Subject   string `json:"subject" binding:"required,max=255"`
}

// CreateThread handles starting a direct (non-consultation) thread.
// Patients open threads with a doctor; doctors with a patient.
func (h *ChatHandler) CreateThread(c *gin.Context) {
	var req CreateThreadRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}

	actor, ok := actorFromContext(c)
	if !ok {
		utils.Unauthorized(c, "User not authenticated")
		return
	}

	thread := models.ChatThread{
		Kind:    models.ThreadKindDirect,
		Subject: req.Subject,
	}
	switch actor.Role {
	case models.RolePatient:
		if req.DoctorID == "" {
			utils.BadRequest(c, "doctorId is required")
			return
		}
		thread.PatientID = actor.ID
		thread.DoctorID = req.DoctorID
	case models.RoleDoctor:
		if req.PatientID == "" {
			utils.BadRequest(c, "patientId is required")
			return
		}
		thread.DoctorID = actor.ID
		thread.PatientID = req.PatientID
	default:
		utils.Forbidden(c, "Only patients and doctors can open chat threads")
		return
	}

	// The counterparty must exist and hold the expected role.
	var counterparty models.User
	counterpartyID, wantRole := thread.DoctorID, models.RoleDoctor
	if actor.Role == models.RoleDoctor {
		counterpartyID, wantRole = thread.PatientID, models.RolePatient
	}
	if err := h.DB.First(&counterparty, "id = ? AND role = ?", counterpartyID, wantRole).Error; err != nil {
		utils.BadRequest(c, "Counterparty not found")
		return
	}

	if err := h.DB.Create(&thread).Error; err != nil {
		utils.InternalServerError(c, "Failed to create chat thread: "+err.Error())
		return
	}

	utils.Created(c, "Chat thread created successfully", thread)
}

// GetThreads handles listing the threads of the logged-in user.
func (h *ChatHandler) GetThreads(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		utils.Unauthorized(c, "User not authenticated")
		return
	}

	query := h.DB.Order("updated_at DESC")
	switch actor.Role {
	case models.RoleAdmin:
		// Admins see every thread.
	case models.RoleDoctor:
		query = query.Where("doctor_id = ?", actor.ID)
	default:
		query = query.Where("patient_id = ?", actor.ID)
	}

	var threads []models.ChatThread
	if err := query.Find(&threads).Error; err != nil {
		utils.InternalServerError(c, "Failed to fetch chat threads: "+err.Error())
		return
	}

	utils.Success(c, "Chat threads fetched successfully", threads)
}

// GetThreadMessages handles fetching the messages of a thread, oldest first.
func (h *ChatHandler) GetThreadMessages(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		utils.Unauthorized(c, "User not authenticated")
		return
	}

	thread, ok := h.loadThreadForParticipant(c, c.Param("id"), actor.ID, actor.Role)
	if !ok {
		return
	}

	var messages []models.ChatMessage
	if err := h.DB.Where("thread_id = ?", thread.ID).
		Order("created_at ASC").
		Find(&messages).Error; err != nil {
		utils.InternalServerError(c, "Failed to fetch messages: "+err.Error())
		return
	}

	utils.Success(c, "Messages fetched successfully", messages)
}

// SendMessageRequest represents the request body for posting a chat message.
type SendMessageRequest struct {
	Content string `json:"content" binding:"required,max=5000"`
}

// SendMessage handles posting a message into a thread the sender participates in.
func (h *ChatHandler) SendMessage(c *gin.Context) {
	var req SendMessageRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}

	actor, ok := actorFromContext(c)
	if !ok {
		utils.Unauthorized(c, "User not authenticated")
		return
	}

	thread, ok := h.loadThreadForParticipant(c, c.Param("id"), actor.ID, actor.Role)
	if !ok {
		return
	}
	if !thread.Involves(actor.ID) {
		utils.Forbidden(c, "Only thread participants can send messages")
		return
	}

	message := models.ChatMessage{
		ThreadID: thread.ID,
		SenderID: actor.ID,
		Content:  req.Content,
		Status:   models.MessageStatusSent,
	}
	if err := h.DB.Create(&message).Error; err != nil {
		utils.InternalServerError(c, "Failed to send message: "+err.Error())
		return
	}

	// Bump the thread so listings sort by recent activity.
	h.DB.Model(thread).Update("updated_at", time.Now())

	recipient := thread.PatientID
	if actor.ID == thread.PatientID {
		recipient = thread.DoctorID
	}
	h.Hub.NotifyUsers([]string{recipient}, ws.Event{
		Type:       ws.EventChatMessage,
		ResourceID: thread.ID,
		Data:       map[string]string{"messageId": message.ID, "senderId": actor.ID},
	})

	utils.Created(c, "Message sent successfully", message)
}

// MarkThreadRead handles marking every unread message addressed to the
// requester in a thread as read.
func (h *ChatHandler) MarkThreadRead(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		utils.Unauthorized(c, "User not authenticated")
		return
	}

	thread, ok := h.loadThreadForParticipant(c, c.Param("id"), actor.ID, actor.Role)
	if !ok {
		return
	}

	now := time.Now()
	result := h.DB.Model(&models.ChatMessage{}).
		Where("thread_id = ? AND sender_id != ? AND status = ?", thread.ID, actor.ID, models.MessageStatusSent).
		Updates(map[string]interface{}{"status": models.MessageStatusRead, "read_at": now})
	if result.Error != nil {
		utils.InternalServerError(c, "Failed to mark messages read: "+result.Error.Error())
		return
	}

	utils.Success(c, "Messages marked as read", gin.H{"updated": result.RowsAffected})
}
