package services

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

var (
	ErrFileTooLarge   = errors.New("File exceeds the maximum allowed size.")
	ErrFileTypeDenied = errors.New("File type is not allowed.")
)

// ChatFileExtensions is the allow-list for chat attachments.
var ChatFileExtensions = []string{".pdf", ".doc", ".docx", ".png", ".jpg", ".jpeg", ".gif"}

// ImageExtensions covers avatars and room cover images.
var ImageExtensions = []string{".png", ".jpg", ".jpeg", ".gif"}

// FileStore persists uploaded files and returns the stored relative path.
type FileStore interface {
	Save(file *multipart.FileHeader, subdir string, allowedExts []string, maxBytes int64) (string, error)
}

// DiskStore writes uploads beneath a base directory with randomized names,
// so user-supplied filenames never touch the filesystem.
type DiskStore struct {
	BaseDir string
}

func NewDiskStore(baseDir string) *DiskStore {
	return &DiskStore{BaseDir: baseDir}
}

func (s *DiskStore) Save(file *multipart.FileHeader, subdir string, allowedExts []string, maxBytes int64) (string, error) {
	if maxBytes > 0 && file.Size > maxBytes {
		return "", ErrFileTooLarge
	}

	ext := strings.ToLower(filepath.Ext(file.Filename))
	if !extAllowed(ext, allowedExts) {
		return "", ErrFileTypeDenied
	}

	dir := filepath.Join(s.BaseDir, subdir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create upload dir: %w", err)
	}

	name := strings.ReplaceAll(uuid.NewString(), "-", "") + ext
	dst := filepath.Join(dir, name)

	src, err := file.Open()
	if err != nil {
		return "", fmt.Errorf("open upload: %w", err)
	}
	defer src.Close()

	out, err := os.Create(dst)
	if err != nil {
		return "", fmt.Errorf("create file: %w", err)
	}
	defer out.Close()

	if _, err := io.Copy(out, src); err != nil {
		return "", fmt.Errorf("write file: %w", err)
	}

	return filepath.ToSlash(filepath.Join(subdir, name)), nil
}

func extAllowed(ext string, allowed []string) bool {
	for _, a := range allowed {
		if ext == a {
			return true
		}
	}
	return false
}
