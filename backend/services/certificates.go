package services

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/quantumdemo/sna/backend/models"
)

// CertificateGenerator produces the certificate artifact for an approved
// request and returns its stored relative path.
type CertificateGenerator interface {
	Generate(cert models.Certificate, user models.User, course models.Course) (string, error)
}

// LocalCertificateGenerator writes a placeholder document under the upload
// directory. Rendering a real PDF is handled by a separate worker; the
// platform only needs a stable, unique path per certificate.
type LocalCertificateGenerator struct {
	BaseDir string
}

func NewLocalCertificateGenerator(baseDir string) *LocalCertificateGenerator {
	return &LocalCertificateGenerator{BaseDir: baseDir}
}

func (g *LocalCertificateGenerator) Generate(cert models.Certificate, user models.User, course models.Course) (string, error) {
	dir := filepath.Join(g.BaseDir, "certificates")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create certificates dir: %w", err)
	}

	name := cert.CertificateUID + ".pdf"
	content := fmt.Sprintf("Certificate %s\n%s\n%s\n", cert.CertificateUID, user.Name, course.Title)
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
		return "", fmt.Errorf("write certificate: %w", err)
	}

	return filepath.ToSlash(filepath.Join("certificates", name)), nil
}
