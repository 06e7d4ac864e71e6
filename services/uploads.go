package services

import (
	"bytes"
	"fmt"
	"io"
	"mime"
	"path/filepath"
	"strings"
	"sync"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// DefaultMaxUploadBytes is the per-file limit when none is configured.
const DefaultMaxUploadBytes int64 = 10 << 20

var documentExtensions = map[string]bool{
	".pdf":  true,
	".doc":  true,
	".docx": true,
	".xls":  true,
	".xlsx": true,
	".png":  true,
	".jpg":  true,
	".jpeg": true,
}

var imageExtensions = map[string]bool{
	".png":  true,
	".jpg":  true,
	".jpeg": true,
}

// FileUpload is one incoming file.
type FileUpload struct {
	Name        string
	Size        int64
	ContentType string
	Content     io.ReadSeeker
}

func (f FileUpload) ext() string {
	return strings.ToLower(filepath.Ext(f.Name))
}

func (f FileUpload) contentType() string {
	if f.ContentType != "" && f.ContentType != "application/octet-stream" {
		return f.ContentType
	}
	if t := mime.TypeByExtension(f.ext()); t != "" {
		return t
	}
	return "application/octet-stream"
}

func checkUpload(f FileUpload, maxBytes int64, allowed map[string]bool) error {
	if strings.TrimSpace(f.Name) == "" {
		return invalid("file", "file name is required")
	}
	if f.Size > maxBytes {
		return invalid("file", "%s exceeds the %d MB limit", f.Name, maxBytes>>20)
	}
	if !allowed[f.ext()] {
		return invalid("file", "%s has an unsupported file type", f.Name)
	}
	return nil
}

var pdfConfigOnce sync.Once

// pdfPageCount validates a PDF and returns its page count.
func pdfPageCount(rs io.ReadSeeker) (int, error) {
	pdfConfigOnce.Do(api.DisableConfigDir)
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	n, err := api.PageCount(rs, conf)
	if _, serr := rs.Seek(0, io.SeekStart); serr != nil && err == nil {
		err = serr
	}
	if err != nil {
		return 0, fmt.Errorf("read pdf: %w", err)
	}
	return n, nil
}

func readAllFrom(rs io.ReadSeeker) ([]byte, error) {
	if _, err := rs.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, rs); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
