package services

import (
	"fmt"
	"io"
	"mime/multipart"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/chorushq/chorus/config"
	"github.com/chorushq/chorus/models"
	"github.com/chorushq/chorus/pkg"
)

// avatarMimeTypes are the image types accepted for avatars.
var avatarMimeTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/gif":  true,
	"image/webp": true,
}

// UploadService writes multipart uploads under the upload directory with
// uuid names and returns the metadata the caller persists. Files are served
// back at /uploads/.
type UploadService struct {
	cfg config.UploadConfig
}

func NewUploadService(cfg config.UploadConfig) *UploadService {
	return &UploadService{cfg: cfg}
}

// store writes one file and returns its public URL.
func (s *UploadService) store(file multipart.File, header *multipart.FileHeader) (string, error) {
	if header.Size > s.cfg.MaxSize {
		return "", fmt.Errorf("%w: file exceeds the %d byte limit", pkg.ErrInvalidInput, s.cfg.MaxSize)
	}
	if err := os.MkdirAll(s.cfg.Dir, 0o755); err != nil {
		return "", fmt.Errorf("create upload dir: %w", err)
	}

	ext := strings.ToLower(filepath.Ext(header.Filename))
	name := uuid.NewString() + ext
	path := filepath.Join(s.cfg.Dir, name)

	dst, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create upload file: %w", err)
	}
	defer dst.Close()

	// LimitReader backstops a lying Content-Length.
	if _, err := io.Copy(dst, io.LimitReader(file, s.cfg.MaxSize+1)); err != nil {
		os.Remove(path)
		return "", fmt.Errorf("write upload: %w", err)
	}
	if info, err := dst.Stat(); err == nil && info.Size() > s.cfg.MaxSize {
		os.Remove(path)
		return "", fmt.Errorf("%w: file exceeds the %d byte limit", pkg.ErrInvalidInput, s.cfg.MaxSize)
	}
	return "/uploads/" + name, nil
}

// SaveAttachment stores one message attachment.
func (s *UploadService) SaveAttachment(file multipart.File, header *multipart.FileHeader) (*models.Attachment, error) {
	url, err := s.store(file, header)
	if err != nil {
		return nil, err
	}
	att := &models.Attachment{
		Filename: header.Filename,
		FileURL:  url,
	}
	if header.Size > 0 {
		size := header.Size
		att.FileSize = &size
	}
	if ct := header.Header.Get("Content-Type"); ct != "" {
		att.MimeType = &ct
	}
	return att, nil
}

// SaveAvatar stores a profile or server icon image. Images only.
func (s *UploadService) SaveAvatar(file multipart.File, header *multipart.FileHeader) (string, error) {
	ct := header.Header.Get("Content-Type")
	if !avatarMimeTypes[ct] {
		return "", fmt.Errorf("%w: avatars must be jpeg, png, gif or webp", pkg.ErrInvalidInput)
	}
	return s.store(file, header)
}
