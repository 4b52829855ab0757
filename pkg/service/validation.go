package service

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	clierrors "github.com/taxonline/admin/cli/pkg/errors"
	"github.com/taxonline/admin/cli/pkg/logger"
)

const (
	DefaultMaxFileSizeMB = 100
	DefaultMaxFiles      = 10
)

var pdfMagic = []byte("%PDF-")

// DocumentValidator checks files before they are uploaded.
type DocumentValidator struct {
	MaxFileSizeMB int
	MaxFiles      int
}

// PDFFile is a file that passed validation.
type PDFFile struct {
	Path string
	Name string
	Size int64
}

// SizeMB returns the size in megabytes.
func (f PDFFile) SizeMB() float64 {
	return float64(f.Size) / (1024 * 1024)
}

// NewDocumentValidator creates a validator with the backend's limits.
func NewDocumentValidator() *DocumentValidator {
	return &DocumentValidator{
		MaxFileSizeMB: DefaultMaxFileSizeMB,
		MaxFiles:      DefaultMaxFiles,
	}
}

// ValidateFiles checks every path and fails on the first rejected one.
func (dv *DocumentValidator) ValidateFiles(paths []string) ([]PDFFile, error) {
	if len(paths) == 0 {
		return nil, clierrors.ValidationError("files", "at least one PDF is required")
	}
	if dv.MaxFiles > 0 && len(paths) > dv.MaxFiles {
		return nil, clierrors.ValidationError("files", fmt.Sprintf("at most %d files per upload", dv.MaxFiles)).
			WithSuggestion("Split the upload into several batches.")
	}

	files := make([]PDFFile, 0, len(paths))
	for _, p := range paths {
		f, err := dv.ValidateFile(p)
		if err != nil {
			return nil, err
		}
		files = append(files, f)
	}
	return files, nil
}

// ValidateFile checks that path is a readable PDF under the size limit.
func (dv *DocumentValidator) ValidateFile(path string) (PDFFile, error) {
	logger.Debug("Validating document", "path", path)

	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return PDFFile{}, clierrors.FileNotFoundError(path)
	}

	name := filepath.Base(path)
	if !strings.EqualFold(filepath.Ext(name), ".pdf") {
		return PDFFile{}, clierrors.FileTypeError(name)
	}

	f := PDFFile{Path: path, Name: name, Size: info.Size()}
	if dv.MaxFileSizeMB > 0 && f.Size > int64(dv.MaxFileSizeMB)*1024*1024 {
		return PDFFile{}, clierrors.FileSizeError(name, f.SizeMB(), dv.MaxFileSizeMB)
	}

	ok, err := hasPDFHeader(path)
	if err != nil {
		return PDFFile{}, clierrors.FileNotFoundError(path)
	}
	if !ok {
		return PDFFile{}, clierrors.FileTypeError(name)
	}

	logger.Debug("Document validated", "name", name, "size_mb", f.SizeMB())
	return f, nil
}

func hasPDFHeader(path string) (bool, error) {
	fh, err := os.Open(path)
	if err != nil {
		return false, err
	}
	defer fh.Close()

	head := make([]byte, len(pdfMagic))
	if _, err := io.ReadFull(fh, head); err != nil {
		return false, nil
	}
	return bytes.Equal(head, pdfMagic), nil
}
