package service

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-attendance-api/internal/models"
	appErrors "github.com/noah-isme/sma-attendance-api/pkg/errors"
	"github.com/noah-isme/sma-attendance-api/pkg/storage"
)

type proofRepository interface {
	Create(ctx context.Context, proof *models.AttendanceProof) error
	FindByID(ctx context.Context, id string) (*models.AttendanceProof, error)
}

type fileStore interface {
	Save(name string, r io.Reader, maxBytes int64) (int64, error)
	Open(name string) (io.ReadCloser, error)
	Delete(name string) error
}

type tokenSigner interface {
	Generate(resourceID, relPath string) (string, time.Time, error)
	Parse(token string) (storage.SignedToken, error)
}

// ProofOptions limits uploaded proof files.
type ProofOptions struct {
	MaxFileSizeBytes int64
	AllowedMIMEs     []string
}

// UploadProofRequest describes an uploaded proof file.
type UploadProofRequest struct {
	SectionID string
	Date      string
	FileName  string
	Body      io.Reader
}

// SignedProofURL is a time limited download token for a proof.
type SignedProofURL struct {
	ProofID   string    `json:"proof_id"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// ProofDownload is an open proof file ready to stream.
type ProofDownload struct {
	Proof *models.AttendanceProof
	Body  io.ReadCloser
}

var proofExtensions = map[string]string{
	"image/jpeg":      ".jpg",
	"image/png":       ".png",
	"image/webp":      ".webp",
	"application/pdf": ".pdf",
}

// ProofService stores attendance proof files and issues signed download links.
type ProofService struct {
	repo     proofRepository
	sections sectionFinder
	store    fileStore
	signer   tokenSigner
	audit    auditRecorder
	logger   *zap.Logger
	opts     ProofOptions
	allowed  map[string]struct{}
}

// NewProofService constructs the proof service.
func NewProofService(repo proofRepository, sections sectionFinder, store fileStore, signer tokenSigner, audit auditRecorder, logger *zap.Logger, opts ProofOptions) *ProofService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.MaxFileSizeBytes <= 0 {
		opts.MaxFileSizeBytes = 5 << 20
	}
	if len(opts.AllowedMIMEs) == 0 {
		opts.AllowedMIMEs = []string{"image/jpeg", "image/png", "application/pdf"}
	}
	allowed := make(map[string]struct{}, len(opts.AllowedMIMEs))
	for _, mime := range opts.AllowedMIMEs {
		allowed[strings.ToLower(strings.TrimSpace(mime))] = struct{}{}
	}
	return &ProofService{
		repo:     repo,
		sections: sections,
		store:    store,
		signer:   signer,
		audit:    audit,
		logger:   logger,
		opts:     opts,
		allowed:  allowed,
	}
}

// Upload validates and stores a proof file for a section and day.
func (s *ProofService) Upload(ctx context.Context, actor Actor, req UploadProofRequest) (*models.AttendanceProof, error) {
	if strings.TrimSpace(req.SectionID) == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "section_id is required")
	}
	date, err := parseDay(req.Date)
	if err != nil {
		return nil, err
	}
	if _, err := s.sections.FindByID(ctx, req.SectionID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "section not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load section")
	}

	head := make([]byte, 512)
	n, err := io.ReadFull(req.Body, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "failed to read proof file")
	}
	if n == 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "proof file is empty")
	}
	head = head[:n]
	mime := strings.ToLower(strings.TrimSpace(strings.Split(http.DetectContentType(head), ";")[0]))
	if _, ok := s.allowed[mime]; !ok {
		return nil, appErrors.Clone(appErrors.ErrUnsupportedMedia, fmt.Sprintf("file type %s is not allowed", mime))
	}

	id := uuid.NewString()
	relPath := path.Join(req.SectionID, date.Format(models.DateLayout), id+proofExtension(mime, req.FileName))
	size, err := s.store.Save(relPath, io.MultiReader(bytes.NewReader(head), req.Body), s.opts.MaxFileSizeBytes)
	if err != nil {
		if errors.Is(err, storage.ErrTooLarge) {
			return nil, appErrors.Clone(appErrors.ErrPayloadTooLarge, fmt.Sprintf("proof file exceeds %d bytes", s.opts.MaxFileSizeBytes))
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store proof file")
	}

	proof := &models.AttendanceProof{
		ID:         id,
		SectionID:  req.SectionID,
		Date:       date,
		FilePath:   relPath,
		FileName:   path.Base(strings.ReplaceAll(req.FileName, "\\", "/")),
		MimeType:   mime,
		SizeBytes:  size,
		UploadedBy: actor.UserID,
	}
	if err := s.repo.Create(ctx, proof); err != nil {
		if delErr := s.store.Delete(relPath); delErr != nil {
			s.logger.Warn("failed to remove orphaned proof file", zap.String("path", relPath), zap.Error(delErr))
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record proof")
	}

	if s.audit != nil {
		entry := actor.auditLog(models.AuditActionProofUpload, "attendance_proof", proof.ID, map[string]interface{}{
			"section_id": proof.SectionID,
			"date":       date.Format(models.DateLayout),
			"mime_type":  mime,
			"size_bytes": size,
		})
		if err := s.audit.CreateAuditLog(ctx, entry); err != nil {
			s.logger.Warn("failed to record proof audit log", zap.Error(err))
		}
	}
	return proof, nil
}

// SignedURL issues a download token for a stored proof.
func (s *ProofService) SignedURL(ctx context.Context, id string) (*SignedProofURL, error) {
	proof, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	token, expiresAt, err := s.signer.Generate(proof.ID, proof.FilePath)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign proof url")
	}
	return &SignedProofURL{ProofID: proof.ID, Token: token, ExpiresAt: expiresAt}, nil
}

// Open resolves a download token to the stored file. Callers close the body.
func (s *ProofService) Open(ctx context.Context, token string) (*ProofDownload, error) {
	signed, err := s.signer.Parse(token)
	if err != nil {
		if errors.Is(err, storage.ErrTokenExpired) {
			return nil, appErrors.Clone(appErrors.ErrForbidden, "download link has expired")
		}
		return nil, appErrors.Clone(appErrors.ErrForbidden, "invalid download link")
	}
	proof, err := s.find(ctx, signed.ResourceID)
	if err != nil {
		return nil, err
	}
	if proof.FilePath != signed.Path {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "invalid download link")
	}
	body, err := s.store.Open(proof.FilePath)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrNotFound.Code, appErrors.ErrNotFound.Status, "proof file is missing")
	}
	return &ProofDownload{Proof: proof, Body: body}, nil
}

func (s *ProofService) find(ctx context.Context, id string) (*models.AttendanceProof, error) {
	proof, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "proof not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load proof")
	}
	return proof, nil
}

func proofExtension(mime, fileName string) string {
	if ext, ok := proofExtensions[mime]; ok {
		return ext
	}
	return strings.ToLower(path.Ext(fileName))
}

// FileStore adapts LocalStorage to the proof service.
type FileStore struct {
	*storage.LocalStorage
}

// Open implements fileStore.
func (f FileStore) Open(name string) (io.ReadCloser, error) {
	file, err := f.LocalStorage.Open(name)
	if err != nil {
		return nil, err
	}
	return file, nil
}
