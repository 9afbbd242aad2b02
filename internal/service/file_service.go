package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/dentalink/dentalink-api/internal/dto"
	"github.com/dentalink/dentalink-api/internal/models"
	appErrors "github.com/dentalink/dentalink-api/pkg/errors"
)

type fileStore interface {
	Create(ctx context.Context, f *models.File) error
	GetByID(ctx context.Context, id string) (*models.File, error)
	ListByCase(ctx context.Context, caseID string) ([]models.File, error)
}

type blobStorage interface {
	SaveStream(filename string, r io.Reader) (int64, error)
	Open(filename string) (*os.File, error)
	Delete(filename string) error
}

// FileConfig bounds what uploads are accepted.
type FileConfig struct {
	MaxFileSizeBytes int64
	AllowedMIMEs     []string
	AllowedExts      []string
}

// FileService handles case attachment upload and download. Attachments are
// gated by the same visibility rule as their parent case.
type FileService struct {
	files   fileStore
	access  caseAccessGate
	storage blobStorage
	config  FileConfig
	logger  *zap.Logger
}

// NewFileService constructs a FileService instance.
func NewFileService(files fileStore, access caseAccessGate, storage blobStorage, config FileConfig, logger *zap.Logger) *FileService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FileService{files: files, access: access, storage: storage, config: config, logger: logger}
}

// Upload stores an attachment for a case. Only the owning clinic uploads;
// the stored name is opaque and the original filename is kept as metadata
// only, so a hostile filename never touches the filesystem.
func (s *FileService) Upload(ctx context.Context, claims *models.JWTClaims, caseID string, header *multipart.FileHeader) (*dto.FileSummary, error) {
	if claims.Role != models.RoleClinic {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only the owning clinic can upload case files")
	}
	if _, err := s.access.AuthorizeCaseAccess(ctx, claims, caseID); err != nil {
		return nil, err
	}

	if header.Size > s.config.MaxFileSizeBytes {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("file exceeds the %d byte limit", s.config.MaxFileSizeBytes))
	}

	ext := strings.ToLower(filepath.Ext(header.Filename))
	if !s.extAllowed(ext) {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("file type %q is not allowed", ext))
	}
	contentType := header.Header.Get("Content-Type")
	if contentType != "" && !s.mimeAllowed(contentType) {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("content type %q is not allowed", contentType))
	}

	src, err := header.Open()
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "failed to read upload")
	}
	defer src.Close() //nolint:errcheck

	storedName := uuid.NewString() + ext
	written, err := s.storage.SaveStream(storedName, io.LimitReader(src, s.config.MaxFileSizeBytes+1))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store upload")
	}
	if written > s.config.MaxFileSizeBytes {
		if err := s.storage.Delete(storedName); err != nil {
			s.logger.Warn("failed to remove oversized upload", zap.String("file", storedName), zap.Error(err))
		}
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("file exceeds the %d byte limit", s.config.MaxFileSizeBytes))
	}

	f := &models.File{
		CaseID:       caseID,
		Filename:     storedName,
		OriginalName: header.Filename,
		FilePath:     storedName,
		FileType:     contentType,
		FileSize:     written,
	}
	if err := s.files.Create(ctx, f); err != nil {
		if delErr := s.storage.Delete(storedName); delErr != nil {
			s.logger.Warn("failed to remove orphaned upload", zap.String("file", storedName), zap.Error(delErr))
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record upload")
	}

	return &dto.FileSummary{
		ID:           f.ID,
		OriginalName: f.OriginalName,
		FileType:     f.FileType,
		FileSize:     f.FileSize,
		UploadedAt:   f.UploadedAt,
	}, nil
}

// List returns the attachments of a case.
func (s *FileService) List(ctx context.Context, claims *models.JWTClaims, caseID string) ([]dto.FileSummary, error) {
	if _, err := s.access.AuthorizeCaseAccess(ctx, claims, caseID); err != nil {
		return nil, err
	}
	files, err := s.files.ListByCase(ctx, caseID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list attachments")
	}
	out := make([]dto.FileSummary, 0, len(files))
	for _, f := range files {
		out = append(out, dto.FileSummary{
			ID:           f.ID,
			OriginalName: f.OriginalName,
			FileType:     f.FileType,
			FileSize:     f.FileSize,
			UploadedAt:   f.UploadedAt,
		})
	}
	return out, nil
}

// Download opens an attachment for streaming. The caller owns the returned
// handle and must close it.
func (s *FileService) Download(ctx context.Context, claims *models.JWTClaims, fileID string) (*models.File, *os.File, error) {
	f, err := s.files.GetByID(ctx, fileID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, appErrors.Clone(appErrors.ErrNotFound, "file not found")
		}
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load file")
	}

	if _, err := s.access.AuthorizeCaseAccess(ctx, claims, f.CaseID); err != nil {
		return nil, nil, err
	}

	handle, err := s.storage.Open(f.Filename)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrNotFound.Code, appErrors.ErrNotFound.Status, "stored file is missing")
	}
	return f, handle, nil
}

func (s *FileService) extAllowed(ext string) bool {
	for _, allowed := range s.config.AllowedExts {
		if strings.EqualFold(allowed, ext) {
			return true
		}
	}
	return false
}

func (s *FileService) mimeAllowed(contentType string) bool {
	for _, allowed := range s.config.AllowedMIMEs {
		if strings.EqualFold(allowed, contentType) {
			return true
		}
	}
	return false
}
