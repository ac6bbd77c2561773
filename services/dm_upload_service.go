package services

import (
	"mime/multipart"

	"github.com/chorushq/chorus/models"
)

// DMUploadService stores DM attachments. Same storage rules as channel
// attachments, different row type.
type DMUploadService struct {
	uploads *UploadService
}

func NewDMUploadService(uploads *UploadService) *DMUploadService {
	return &DMUploadService{uploads: uploads}
}

// SaveAttachment stores one DM attachment.
func (s *DMUploadService) SaveAttachment(file multipart.File, header *multipart.FileHeader) (*models.DMAttachment, error) {
	url, err := s.uploads.store(file, header)
	if err != nil {
		return nil, err
	}
	att := &models.DMAttachment{
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
