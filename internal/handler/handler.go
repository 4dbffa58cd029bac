package handler

import (
	"errors"
	"io"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"classtrack/internal/apperr"
	"classtrack/internal/attendance"
	"classtrack/internal/auth"
	"classtrack/internal/cloudinary"
	"classtrack/internal/faceclient"
	"classtrack/internal/metrics"
	"classtrack/internal/queue"
	"classtrack/internal/roster"
)

// Handler wires the HTTP surface to the services.
type Handler struct {
	roster *roster.Repository
	att    *attendance.Service
	auth   *auth.Service
	cloud  *cloudinary.Client // nil if Cloudinary not configured
	face   *faceclient.Client
	q      queue.Queue
}

// New creates a handler.
func New(r *roster.Repository, att *attendance.Service, authSvc *auth.Service, cloud *cloudinary.Client, face *faceclient.Client, q queue.Queue) *Handler {
	return &Handler{roster: r, att: att, auth: authSvc, cloud: cloud, face: face, q: q}
}

// writeErr maps the domain error taxonomy onto status codes.
func writeErr(c *gin.Context, err error) {
	switch {
	case errors.Is(err, apperr.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, apperr.ErrConflict):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, apperr.ErrSessionExpired):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "session expired", "code": "session_expired"})
	case errors.Is(err, apperr.ErrUnauthorized):
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
	case errors.Is(err, apperr.ErrRecognition):
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
	default:
		log.Printf("internal error: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

func pathID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + name})
		return 0, false
	}
	return id, true
}

// requireClassroom enforces the classroom scope: admins see everything,
// teachers only their own classroom.
func (h *Handler) requireClassroom(c *gin.Context, classroomID int64) bool {
	if !auth.CanAccessClassroom(auth.CurrentAccount(c), classroomID) {
		c.JSON(http.StatusForbidden, gin.H{"error": "classroom out of scope"})
		return false
	}
	return true
}

// ---------- Auth ----------

// Login authenticates a teacher or admin and returns the session token.
func (h *Handler) Login(c *gin.Context) {
	var req struct {
		Username string `json:"username" binding:"required"`
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	res, err := h.auth.Login(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		writeErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"access_token": res.Token,
		"expires_at":   res.ExpiresAt.Unix(),
		"role":         res.Account.Role,
		"classroom_id": res.Account.ClassroomID,
	})
}

// ---------- Event ingest ----------

// CheckIn records a (student, classroom, observed-at) triple through the
// debounced ingest path.
func (h *Handler) CheckIn(c *gin.Context) {
	var req struct {
		StudentCode string     `json:"student_code" binding:"required"`
		ClassroomID int64      `json:"classroom_id" binding:"required"`
		ObservedAt  *time.Time `json:"observed_at"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if !h.requireClassroom(c, req.ClassroomID) {
		return
	}
	observedAt := time.Now().UTC()
	if req.ObservedAt != nil {
		observedAt = req.ObservedAt.UTC()
	}

	res, err := h.att.RecordCheckIn(c.Request.Context(), req.ClassroomID, req.StudentCode, observedAt)
	if err != nil {
		writeErr(c, err)
		return
	}
	switch res.Outcome {
	case attendance.OutcomeRecorded:
		metrics.CheckInsRecorded.Inc()
	case attendance.OutcomeSkipped:
		metrics.CheckInsSkipped.Inc()
	}
	c.JSON(http.StatusOK, gin.H{
		"status":    res.Outcome,
		"timestamp": res.Timestamp.UTC().Format(time.RFC3339),
	})
}

// Recognize accepts a probe frame, stores it and queues it for the
// recognition worker. The recognition call itself happens off-request.
func (h *Handler) Recognize(c *gin.Context) {
	if h.cloud == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "image storage not configured"})
		return
	}

	var (
		classroomID int64
		result      *cloudinary.UploadResult
		err         error
	)
	if c.ContentType() == "multipart/form-data" {
		id, perr := strconv.ParseInt(c.PostForm("classroom_id"), 10, 64)
		if perr != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "classroom_id required"})
			return
		}
		classroomID = id
		if !h.requireClassroom(c, classroomID) {
			return
		}
		file, header, ferr := c.Request.FormFile("photo")
		if ferr != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "photo file required"})
			return
		}
		data, ferr := io.ReadAll(file)
		file.Close()
		if ferr != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "read photo failed"})
			return
		}
		result, err = h.cloud.Upload(data, header.Filename, "probes")
	} else {
		var body struct {
			ClassroomID int64  `json:"classroom_id" binding:"required"`
			Data        string `json:"data" binding:"required"`
		}
		if berr := c.ShouldBindJSON(&body); berr != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "provide classroom_id and a base64 data URL"})
			return
		}
		classroomID = body.ClassroomID
		if !h.requireClassroom(c, classroomID) {
			return
		}
		result, err = h.cloud.UploadBase64(body.Data, "probes")
	}
	if err != nil {
		log.Printf("probe upload failed: %v", err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "image upload failed"})
		return
	}
	msg, err := queue.NewRecognitionMessage(queue.RecognitionJob{
		ClassroomID: classroomID,
		ImageURL:    result.SecureURL,
		ObservedAt:  time.Now().UTC(),
	})
	if err != nil {
		writeErr(c, err)
		return
	}
	if err := h.q.Publish(c.Request.Context(), msg); err != nil {
		log.Printf("queue publish failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "queue unavailable"})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"image_url": result.SecureURL})
}

// ---------- Read-side projections ----------

// DailyStatuses returns one status per scheduled date for a student.
func (h *Handler) DailyStatuses(c *gin.Context) {
	studentID, ok := pathID(c, "id")
	if !ok {
		return
	}
	st, err := h.roster.StudentByID(c.Request.Context(), studentID)
	if err != nil {
		writeErr(c, err)
		return
	}
	if !h.requireClassroom(c, st.ClassroomID) {
		return
	}
	statuses, err := h.att.DailyStatuses(c.Request.Context(), studentID)
	if err != nil {
		writeErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"student_id": studentID, "daily": statuses})
}

// Summary returns per-student aggregate counts and rates for a classroom.
func (h *Handler) Summary(c *gin.Context) {
	classroomID, ok := pathID(c, "id")
	if !ok {
		return
	}
	if !h.requireClassroom(c, classroomID) {
		return
	}
	sums, err := h.att.Summarize(c.Request.Context(), classroomID)
	if err != nil {
		writeErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"classroom_id": classroomID, "summaries": sums})
}

// Grid returns the dense students x scheduled-dates matrix.
func (h *Handler) Grid(c *gin.Context) {
	classroomID, ok := pathID(c, "id")
	if !ok {
		return
	}
	if !h.requireClassroom(c, classroomID) {
		return
	}
	grid, err := h.att.BuildGrid(c.Request.Context(), classroomID)
	if err != nil {
		writeErr(c, err)
		return
	}
	c.JSON(http.StatusOK, grid)
}

// AttachNote attaches a note to a student's log on a date, creating a
// placeholder log when the student has none.
func (h *Handler) AttachNote(c *gin.Context) {
	var req struct {
		StudentID int64  `json:"student_id" binding:"required"`
		ClassDate string `json:"class_date" binding:"required"`
		Note      string `json:"note" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	st, err := h.roster.StudentByID(c.Request.Context(), req.StudentID)
	if err != nil {
		writeErr(c, err)
		return
	}
	if !h.requireClassroom(c, st.ClassroomID) {
		return
	}
	if err := h.att.AttachNote(c.Request.Context(), req.StudentID, req.ClassDate, req.Note); err != nil {
		writeErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
