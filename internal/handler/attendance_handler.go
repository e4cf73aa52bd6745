package handler

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-attendance-api/internal/models"
	"github.com/noah-isme/sma-attendance-api/internal/service"
	appErrors "github.com/noah-isme/sma-attendance-api/pkg/errors"
	"github.com/noah-isme/sma-attendance-api/pkg/response"
)

type attendanceService interface {
	Submit(ctx context.Context, actor service.Actor, req service.SubmitAttendanceRequest) (*service.SubmissionResult, error)
	List(ctx context.Context, req service.AttendanceListRequest) ([]models.AttendanceRecordDetail, *models.Pagination, error)
	StudentHistory(ctx context.Context, studentID, dateFrom, dateTo string) ([]models.AttendanceHistoryRow, error)
}

type proofService interface {
	Upload(ctx context.Context, actor service.Actor, req service.UploadProofRequest) (*models.AttendanceProof, error)
	SignedURL(ctx context.Context, id string) (*service.SignedProofURL, error)
	Open(ctx context.Context, token string) (*service.ProofDownload, error)
}

// AttendanceHandler exposes attendance submission, listing and proof endpoints.
type AttendanceHandler struct {
	attendance attendanceService
	proofs     proofService
	apiPrefix  string
}

// NewAttendanceHandler constructs AttendanceHandler. apiPrefix is used to build
// proof download links.
func NewAttendanceHandler(attendance attendanceService, proofs proofService, apiPrefix string) *AttendanceHandler {
	return &AttendanceHandler{attendance: attendance, proofs: proofs, apiPrefix: strings.TrimRight(apiPrefix, "/")}
}

// List godoc
// @Summary List attendance records
// @Tags Attendance
// @Produce json
// @Param section_id query string false "Section ID"
// @Param student_id query string false "Student ID"
// @Param status query string false "present or absent"
// @Param date_from query string false "Start date (YYYY-MM-DD)"
// @Param date_to query string false "End date (YYYY-MM-DD)"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /attendance [get]
func (h *AttendanceHandler) List(c *gin.Context) {
	req := service.AttendanceListRequest{
		SectionID: c.Query("section_id"),
		StudentID: c.Query("student_id"),
		DateFrom:  c.Query("date_from"),
		DateTo:    c.Query("date_to"),
		Page:      queryInt(c, "page", 1),
		PageSize:  queryInt(c, "limit", 0),
		SortBy:    c.Query("sort"),
		SortOrder: c.Query("order"),
	}
	if status := strings.TrimSpace(c.Query("status")); status != "" {
		req.Status = &status
	}
	records, pagination, err := h.attendance.List(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, records, pagination)
}

// Submit godoc
// @Summary Submit daily attendance
// @Description Replaces the attendance of a section for one day.
// @Tags Attendance
// @Accept json
// @Produce json
// @Param payload body service.SubmitAttendanceRequest true "Submission"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /attendance/submissions [post]
func (h *AttendanceHandler) Submit(c *gin.Context) {
	actor, err := actorFromContext(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	var req service.SubmitAttendanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	result, err := h.attendance.Submit(c.Request.Context(), actor, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// History godoc
// @Summary Student attendance history
// @Tags Attendance
// @Produce json
// @Param id path string true "Student ID"
// @Param date_from query string false "Start date (YYYY-MM-DD)"
// @Param date_to query string false "End date (YYYY-MM-DD)"
// @Success 200 {object} response.Envelope
// @Router /attendance/students/{id}/history [get]
func (h *AttendanceHandler) History(c *gin.Context) {
	rows, err := h.attendance.StudentHistory(c.Request.Context(), c.Param("id"), c.Query("date_from"), c.Query("date_to"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, rows, nil)
}

// UploadProof godoc
// @Summary Upload attendance proof
// @Tags Attendance
// @Accept multipart/form-data
// @Produce json
// @Param section_id formData string true "Section ID"
// @Param date formData string true "Date (YYYY-MM-DD)"
// @Param file formData file true "Image or PDF"
// @Success 201 {object} response.Envelope
// @Failure 413 {object} response.Envelope
// @Failure 415 {object} response.Envelope
// @Router /attendance/proofs [post]
func (h *AttendanceHandler) UploadProof(c *gin.Context) {
	actor, err := actorFromContext(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	header, err := c.FormFile("file")
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "proof file is required"))
		return
	}
	file, err := header.Open()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "unable to read proof file"))
		return
	}
	defer file.Close()

	proof, err := h.proofs.Upload(c.Request.Context(), actor, service.UploadProofRequest{
		SectionID: c.PostForm("section_id"),
		Date:      c.PostForm("date"),
		FileName:  header.Filename,
		Body:      file,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, proof)
}

// ProofURL godoc
// @Summary Signed proof download link
// @Tags Attendance
// @Produce json
// @Param id path string true "Proof ID"
// @Success 200 {object} response.Envelope
// @Router /attendance/proofs/{id}/url [get]
func (h *AttendanceHandler) ProofURL(c *gin.Context) {
	signed, err := h.proofs.SignedURL(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{
		"proof_id":   signed.ProofID,
		"url":        fmt.Sprintf("%s/attendance/proofs/download?token=%s", h.apiPrefix, signed.Token),
		"expires_at": signed.ExpiresAt,
	}, nil)
}

// DownloadProof godoc
// @Summary Download attendance proof
// @Tags Attendance
// @Produce octet-stream
// @Param token query string true "Signed token"
// @Success 200 {file} file
// @Failure 403 {object} response.Envelope
// @Router /attendance/proofs/download [get]
func (h *AttendanceHandler) DownloadProof(c *gin.Context) {
	token := strings.TrimSpace(c.Query("token"))
	if token == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "token is required"))
		return
	}
	download, err := h.proofs.Open(c.Request.Context(), token)
	if err != nil {
		response.Error(c, err)
		return
	}
	defer download.Body.Close()

	c.Header("Cache-Control", "no-store")
	c.Header("Content-Disposition", fmt.Sprintf("inline; filename=%q", download.Proof.FileName))
	c.Header("Content-Type", download.Proof.MimeType)
	c.Status(http.StatusOK)
	if _, err := io.Copy(c.Writer, download.Body); err != nil {
		_ = c.Error(err)
	}
}
