// Package extract turns uploaded documents into plain text.
package extract

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
)

// DefaultOCRCommand is the OCR binary looked up on PATH.
const DefaultOCRCommand = "tesseract"

var (
	textExtensions  = []string{".txt", ".md"}
	imageExtensions = []string{".png", ".jpg", ".jpeg"}
)

// OCR recognizes text in an image file.
type OCR interface {
	Recognize(ctx context.Context, imagePath string) (string, error)
}

// Extractor reads text documents directly and runs OCR on images when an OCR
// engine was found at construction time. Unsupported files yield empty text.
type Extractor struct {
	ocr    OCR
	logger *zap.Logger
}

// New resolves the OCR capability once. An empty or missing command leaves
// OCR disabled; image uploads then extract to empty text.
func New(ocrCommand string, logger *zap.Logger) *Extractor {
	if logger == nil {
		logger = zap.NewNop()
	}
	e := &Extractor{logger: logger}
	if ocrCommand == "" {
		logger.Info("ocr disabled")
		return e
	}
	path, err := exec.LookPath(ocrCommand)
	if err != nil {
		logger.Warn("ocr engine not found, images will extract to empty text",
			zap.String("command", ocrCommand), zap.Error(err))
		return e
	}
	logger.Info("ocr enabled", zap.String("command", path))
	e.ocr = commandOCR{path: path}
	return e
}

// NewWithOCR builds an Extractor around a specific OCR engine; nil disables OCR.
func NewWithOCR(ocr OCR, logger *zap.Logger) *Extractor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Extractor{ocr: ocr, logger: logger}
}

// OCRAvailable reports whether image documents can be read.
func (e *Extractor) OCRAvailable() bool {
	return e.ocr != nil
}

// Extract returns the text content of body. filename selects the format by
// extension.
func (e *Extractor) Extract(ctx context.Context, body []byte, filename string) (string, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	switch {
	case hasExt(textExtensions, ext):
		return strings.ToValidUTF8(string(body), ""), nil
	case hasExt(imageExtensions, ext):
		if e.ocr == nil {
			return "", nil
		}
		return e.recognize(ctx, body, ext)
	default:
		e.logger.Debug("unsupported document type", zap.String("filename", filename))
		return "", nil
	}
}

func (e *Extractor) recognize(ctx context.Context, body []byte, ext string) (string, error) {
	tmp, err := os.CreateTemp("", "smartinvoice-*"+ext)
	if err != nil {
		return "", fmt.Errorf("create ocr input: %w", err)
	}
	defer func() {
		_ = os.Remove(tmp.Name())
	}()
	if _, err := tmp.Write(body); err != nil {
		_ = tmp.Close()
		return "", fmt.Errorf("write ocr input: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("close ocr input: %w", err)
	}

	text, err := e.ocr.Recognize(ctx, tmp.Name())
	if err != nil {
		return "", fmt.Errorf("ocr: %w", err)
	}
	return text, nil
}

func hasExt(exts []string, ext string) bool {
	for _, candidate := range exts {
		if candidate == ext {
			return true
		}
	}
	return false
}

// commandOCR shells out to a tesseract-compatible binary that accepts
// "<image> stdout".
type commandOCR struct {
	path string
}

func (c commandOCR) Recognize(ctx context.Context, imagePath string) (string, error) {
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, c.path, imagePath, "stdout")
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("%s: %w: %s", filepath.Base(c.path), err, strings.TrimSpace(stderr.String()))
	}
	return stdout.String(), nil
}
