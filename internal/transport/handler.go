// Package transport exposes the verification pipeline and ledger over HTTP and
// serves gRPC health.
package transport

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"

	"github.com/goodnatureofminers/smartinvoice/internal/ledger"
	"github.com/goodnatureofminers/smartinvoice/internal/model"
	"github.com/goodnatureofminers/smartinvoice/internal/service"
	"go.uber.org/zap"
)

const (
	// DefaultMaxUploadBytes caps the multipart body accepted by /upload.
	DefaultMaxUploadBytes int64 = 10 << 20

	uploadField     = "file"
	defaultFilename = "upload"
)

// Overview is the static part of the index page.
type Overview struct {
	SourceWalletID     string
	DestinationAddress string
	PaymentAmount      string
	OCRAvailable       bool
}

// HandlerConfig configures NewHandler.
type HandlerConfig struct {
	Overview Overview
	// UploadDir receives a copy of every uploaded file; empty disables saving.
	UploadDir      string
	MaxUploadBytes int64
}

// Handler serves the document upload and ledger lookup endpoints.
type Handler struct {
	cfg       HandlerConfig
	processor Processor
	history   History
	logger    *zap.Logger
}

// NewHandler returns a Handler instance.
func NewHandler(cfg HandlerConfig, processor Processor, history History, logger *zap.Logger) *Handler {
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = DefaultMaxUploadBytes
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		cfg:       cfg,
		processor: processor,
		history:   history,
		logger:    logger.Named("http"),
	}
}

// Register mounts the handler routes on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /{$}", h.index)
	mux.HandleFunc("POST /upload", h.upload)
	mux.HandleFunc("GET /history", h.listHistory)
	mux.HandleFunc("GET /transaction/{invoice}", h.transaction)
}

type overviewResponse struct {
	SourceMask    string                     `json:"source_mask"`
	DestMask      string                     `json:"dest_mask"`
	PaymentAmount string                     `json:"payment_amount"`
	OCRAvailable  bool                       `json:"ocr_available"`
	History       []model.VerificationRecord `json:"history"`
}

type uploadResponse struct {
	Record            model.VerificationRecord `json:"record"`
	Error             string                   `json:"error,omitempty"`
	CredentialProblem bool                     `json:"credential_problem,omitempty"`
	Persisted         bool                     `json:"persisted"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (h *Handler) index(w http.ResponseWriter, _ *http.Request) {
	h.writeJSON(w, http.StatusOK, overviewResponse{
		SourceMask:    MaskWallet(h.cfg.Overview.SourceWalletID),
		DestMask:      MaskWallet(h.cfg.Overview.DestinationAddress),
		PaymentAmount: h.cfg.Overview.PaymentAmount,
		OCRAvailable:  h.cfg.Overview.OCRAvailable,
		History:       nonNil(h.history.All()),
	})
}

func (h *Handler) upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.cfg.MaxUploadBytes)

	file, header, err := r.FormFile(uploadField)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.writeJSON(w, http.StatusRequestEntityTooLarge, errorResponse{Error: "Upload too large"})
			return
		}
		h.writeJSON(w, http.StatusBadRequest, errorResponse{Error: fmt.Sprintf("missing %q form file", uploadField)})
		return
	}
	defer func() {
		_ = file.Close()
	}()

	body, err := io.ReadAll(file)
	if err != nil {
		h.logger.Warn("read upload", zap.Error(err))
		h.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "Server error: " + err.Error()})
		return
	}

	name := uploadName(header.Filename)
	h.saveUpload(name, body)

	out := h.processor.Process(r.Context(), service.Document{Name: name, Body: body})
	h.writeJSON(w, http.StatusOK, uploadResponse{
		Record:            out.Record,
		Error:             out.Message,
		CredentialProblem: out.CredentialProblem(),
		Persisted:         out.PersistErr == nil,
	})
}

func (h *Handler) listHistory(w http.ResponseWriter, _ *http.Request) {
	h.writeJSON(w, http.StatusOK, nonNil(h.history.All()))
}

func (h *Handler) transaction(w http.ResponseWriter, r *http.Request) {
	invoice, err := strconv.Atoi(r.PathValue("invoice"))
	if err != nil {
		h.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "Invalid invoice id"})
		return
	}
	rec, err := h.history.ByInvoice(invoice)
	if errors.Is(err, ledger.ErrNotFound) {
		h.writeJSON(w, http.StatusNotFound, errorResponse{Error: "Transaction not found"})
		return
	}
	if err != nil {
		h.logger.Error("lookup transaction", zap.Int("invoice", invoice), zap.Error(err))
		h.writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "Server error: " + err.Error()})
		return
	}
	h.writeJSON(w, http.StatusOK, rec)
}

func (h *Handler) saveUpload(name string, body []byte) {
	if h.cfg.UploadDir == "" {
		return
	}
	if err := os.MkdirAll(h.cfg.UploadDir, 0o755); err != nil {
		h.logger.Warn("create upload dir", zap.String("dir", h.cfg.UploadDir), zap.Error(err))
		return
	}
	path := filepath.Join(h.cfg.UploadDir, name)
	if err := os.WriteFile(path, body, 0o644); err != nil {
		h.logger.Warn("save upload", zap.String("path", path), zap.Error(err))
	}
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Warn("write response", zap.Error(err))
	}
}

// uploadName strips any directory components from a client supplied name.
func uploadName(name string) string {
	base := filepath.Base(filepath.Clean("/" + filepath.ToSlash(name)))
	if base == "/" || base == "." || base == "" {
		return defaultFilename
	}
	return base
}

// MaskWallet keeps the first six and last four characters of id.
func MaskWallet(id string) string {
	r := []rune(id)
	head, tail := r, r
	if len(r) > 6 {
		head = r[:6]
	}
	if len(r) > 4 {
		tail = r[len(r)-4:]
	}
	return string(head) + "..." + string(tail)
}

func nonNil(records []model.VerificationRecord) []model.VerificationRecord {
	if records == nil {
		return []model.VerificationRecord{}
	}
	return records
}
