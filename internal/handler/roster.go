package handler

import (
	"io"
	"log"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"classtrack/internal/auth"
	"classtrack/internal/cloudinary"
	"classtrack/internal/roster"
)

// ---------- Classrooms ----------

func (h *Handler) CreateClassroom(c *gin.Context) {
	var req struct {
		Name string `json:"name" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	cl, err := h.roster.CreateClassroom(c.Request.Context(), req.Name)
	if err != nil {
		writeErr(c, err)
		return
	}
	c.JSON(http.StatusCreated, cl)
}

func (h *Handler) ListClassrooms(c *gin.Context) {
	classrooms, err := h.roster.ListClassrooms(c.Request.Context())
	if err != nil {
		writeErr(c, err)
		return
	}
	if classrooms == nil {
		classrooms = []roster.Classroom{}
	}
	c.JSON(http.StatusOK, classrooms)
}

func (h *Handler) DeleteClassroom(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	if err := h.roster.DeleteClassroom(c.Request.Context(), id); err != nil {
		writeErr(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// ---------- Students ----------

// EnrollStudent creates a student with a stored reference image and registers
// the face with the recognition service. Expects multipart form fields:
// student_code, name, photo (file).
func (h *Handler) EnrollStudent(c *gin.Context) {
	classroomID, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req struct {
		StudentCode string `form:"student_code" binding:"required"`
		Name        string `form:"name" binding:"required"`
	}
	if err := c.ShouldBind(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	file, header, err := c.Request.FormFile("photo")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "photo file is required"})
		return
	}
	photoBytes, err := io.ReadAll(file)
	file.Close()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read photo"})
		return
	}

	var photoURL string
	if h.cloud != nil {
		result, err := h.cloud.Upload(photoBytes, header.Filename, "students")
		if err != nil {
			log.Printf("cloudinary upload error: %v", err)
			c.JSON(http.StatusBadGateway, gin.H{"error": "failed to store reference image"})
			return
		}
		photoURL = result.SecureURL
	}

	st, err := h.roster.CreateStudent(c.Request.Context(), roster.Student{
		StudentCode:       req.StudentCode,
		Name:              req.Name,
		ClassroomID:       classroomID,
		ReferenceImageURL: photoURL,
	})
	if err != nil {
		// No partial state: the image is orphaned storage, the row was
		// rejected before insert.
		if h.cloud != nil && photoURL != "" {
			if derr := h.cloud.Destroy(cloudinary.PublicIDFromURL(photoURL)); derr != nil {
				log.Printf("cloudinary cleanup error: %v", derr)
			}
		}
		writeErr(c, err)
		return
	}

	if h.face != nil {
		gallery := strconv.FormatInt(classroomID, 10)
		if _, err := h.face.Enroll(c.Request.Context(), st.StudentCode, photoURL, gallery, st.Name); err != nil {
			// Face can be re-enrolled later; enrollment itself stands.
			log.Printf("face enroll error for %s: %v", st.StudentCode, err)
		}
	}

	c.JSON(http.StatusCreated, st)
}

func (h *Handler) ListStudents(c *gin.Context) {
	classroomID, ok := pathID(c, "id")
	if !ok {
		return
	}
	if !h.requireClassroom(c, classroomID) {
		return
	}
	students, err := h.roster.StudentsByClassroom(c.Request.Context(), classroomID)
	if err != nil {
		writeErr(c, err)
		return
	}
	if students == nil {
		students = []roster.Student{}
	}
	c.JSON(http.StatusOK, students)
}

// UpdateStudent edits the student's code and/or name. Omitted fields are left
// untouched; the reference image and classroom binding are not editable here.
func (h *Handler) UpdateStudent(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req struct {
		StudentCode *string `json:"student_code"`
		Name        *string `json:"name"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.StudentCode == nil && req.Name == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "nothing to update"})
		return
	}
	if req.StudentCode != nil && *req.StudentCode == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "student_code must not be empty"})
		return
	}
	if req.Name != nil && *req.Name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "name must not be empty"})
		return
	}
	st, err := h.roster.UpdateStudent(c.Request.Context(), id, req.StudentCode, req.Name)
	if err != nil {
		writeErr(c, err)
		return
	}
	c.JSON(http.StatusOK, st)
}

// DeleteStudent removes the student, their logs (cascade), the gallery entry
// and the stored reference image.
func (h *Handler) DeleteStudent(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	st, err := h.roster.StudentByID(c.Request.Context(), id)
	if err != nil {
		writeErr(c, err)
		return
	}
	imageURL, err := h.roster.DeleteStudent(c.Request.Context(), id)
	if err != nil {
		writeErr(c, err)
		return
	}
	if h.face != nil {
		gallery := strconv.FormatInt(st.ClassroomID, 10)
		if err := h.face.Remove(c.Request.Context(), st.StudentCode, gallery); err != nil {
			log.Printf("face remove error for %s: %v", st.StudentCode, err)
		}
	}
	if h.cloud != nil && imageURL != "" {
		if err := h.cloud.Destroy(cloudinary.PublicIDFromURL(imageURL)); err != nil {
			log.Printf("cloudinary destroy error: %v", err)
		}
	}
	c.Status(http.StatusNoContent)
}

// ---------- Schedule registry ----------

func (h *Handler) AddScheduleEntry(c *gin.Context) {
	classroomID, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req struct {
		ClassDate string `json:"class_date" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	se, err := h.roster.AddScheduleEntry(c.Request.Context(), classroomID, req.ClassDate)
	if err != nil {
		writeErr(c, err)
		return
	}
	c.JSON(http.StatusCreated, se)
}

func (h *Handler) ListSchedule(c *gin.Context) {
	classroomID, ok := pathID(c, "id")
	if !ok {
		return
	}
	if !h.requireClassroom(c, classroomID) {
		return
	}
	entries, err := h.roster.ListSchedule(c.Request.Context(), classroomID)
	if err != nil {
		writeErr(c, err)
		return
	}
	if entries == nil {
		entries = []roster.ScheduleEntry{}
	}
	c.JSON(http.StatusOK, entries)
}

func (h *Handler) RemoveScheduleEntry(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	if err := h.roster.RemoveScheduleEntry(c.Request.Context(), id); err != nil {
		writeErr(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// ---------- Teacher accounts ----------

// CreateTeacher creates the teacher account bound to a classroom. A classroom
// owns at most one teacher (unique classroom binding on accounts).
func (h *Handler) CreateTeacher(c *gin.Context) {
	classroomID, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req struct {
		Username string `json:"username" binding:"required"`
		Password string `json:"password" binding:"required,min=8"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		writeErr(c, err)
		return
	}
	acc, err := h.roster.CreateAccount(c.Request.Context(), roster.Account{
		Username:     req.Username,
		PasswordHash: hash,
		Role:         roster.RoleTeacher,
		ClassroomID:  &classroomID,
	})
	if err != nil {
		writeErr(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"id": acc.ID, "username": acc.Username, "classroom_id": classroomID})
}

func (h *Handler) ListTeachers(c *gin.Context) {
	teachers, err := h.roster.ListTeachers(c.Request.Context())
	if err != nil {
		writeErr(c, err)
		return
	}
	if teachers == nil {
		teachers = []roster.Teacher{}
	}
	c.JSON(http.StatusOK, teachers)
}
