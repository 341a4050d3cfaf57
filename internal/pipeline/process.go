package pipeline

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jhillyerd/enmime"

	"axmed/internal"
	"axmed/internal/config"
	"axmed/internal/logger"
	"axmed/internal/reader"
	"axmed/internal/storage"
)

// ProcessingService turns fetched e-mails carrying order spreadsheets into
// uploads and drafts for the sender.
type ProcessingService struct {
	db      *storage.DB
	cfg     config.Config
	imports *ImportService
}

func NewProcessingService(db *storage.DB, cfg config.Config) *ProcessingService {
	return &ProcessingService{db: db, cfg: cfg, imports: NewImportService(db, cfg)}
}

type ProcessResult struct {
	EmailID  int
	UploadID string
	Rows     int
	Status   string
}

func (s *ProcessingService) ProcessByProviderMessageID(ctx context.Context, provider, messageID string) (ProcessResult, error) {
	email, err := s.db.MustEmailByProviderMessageID(provider, messageID)
	if err != nil {
		return ProcessResult{}, err
	}
	return s.ProcessEmail(ctx, email)
}

// ProcessPending handles up to limit fetched e-mails and returns the list of
// results in processing order.
func (s *ProcessingService) ProcessPending(ctx context.Context, limit int, provider string) ([]ProcessResult, error) {
	pending, err := s.db.ListEmailsByStatus("fetched", provider, limit)
	if err != nil {
		return nil, err
	}
	var out []ProcessResult
	for _, email := range pending {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		res, err := s.ProcessEmail(ctx, email)
		if err != nil {
			return out, err
		}
		out = append(out, res)
	}
	return out, nil
}

func (s *ProcessingService) ProcessEmail(ctx context.Context, email internal.EmailRow) (ProcessResult, error) {
	start := time.Now()
	raw, err := os.ReadFile(email.RawRef)
	if err != nil {
		return ProcessResult{}, err
	}

	env, err := enmime.ReadEnvelope(bytes.NewReader(raw))
	if err != nil {
		return s.finish(email, "", "failed", start, map[string]int{"rows": 0})
	}

	var attachmentNames []string
	for _, att := range append(append([]*enmime.Part{}, env.Attachments...), env.Inlines...) {
		if name := strings.TrimSpace(att.FileName); name != "" {
			attachmentNames = append(attachmentNames, name)
		}
	}
	detect := DetectBulkUpload(firstNonEmpty(env.GetHeader("Subject"), email.Subject), env.Text, env.HTML, attachmentNames)
	if !detect.IsBulkUpload {
		logger.Debugf("email %d skipped: %s (score %.2f)", email.ID, detect.Reason, detect.Score)
		return s.finish(email, "", "skipped", start, map[string]int{"rows": 0})
	}

	name := filepath.Base(email.RawRef)
	if !strings.EqualFold(filepath.Ext(name), ".eml") {
		name += ".eml"
	}
	insp, err := s.imports.InspectBlob(ctx, OrderSchema, name, raw)
	if err != nil {
		if errors.Is(err, ErrNoData) || errors.Is(err, reader.ErrParse) {
			logger.Warnf("email %d has no readable order sheet: %v", email.ID, err)
			return s.finish(email, "", "failed", start, map[string]int{"rows": 0})
		}
		return ProcessResult{}, err
	}

	owner := senderAddress(env, email.Sender)
	if owner == "" {
		owner = s.cfg.DefaultOwner
	}
	res, err := s.imports.ApplyInspection(ctx, owner, "email", insp, nil, true)
	if err != nil {
		return ProcessResult{}, err
	}
	if err := s.db.LinkEmailUpload(email.ID, res.Upload.ID); err != nil {
		return ProcessResult{}, err
	}
	out, err := s.finish(email, res.Upload.ID, "processed", start, res.Counts)
	out.Rows = len(res.Rows)
	return out, err
}

func (s *ProcessingService) finish(email internal.EmailRow, uploadID, status string, start time.Time, counts map[string]int) (ProcessResult, error) {
	if err := s.db.UpdateEmailStatus(email.ID, status); err != nil {
		return ProcessResult{}, err
	}
	if uploadID == "" {
		_ = s.db.InsertRun(traceID(), "", email.ID, map[string]float64{"totalMs": float64(time.Since(start).Milliseconds())}, counts)
	}
	return ProcessResult{EmailID: email.ID, UploadID: uploadID, Status: status}, nil
}

func senderAddress(env *enmime.Envelope, fallback string) string {
	if list, err := env.AddressList("From"); err == nil && len(list) > 0 {
		return strings.ToLower(list[0].Address)
	}
	fallback = strings.TrimSpace(fallback)
	if i := strings.LastIndex(fallback, "<"); i >= 0 {
		fallback = strings.TrimSuffix(fallback[i+1:], ">")
	}
	return strings.ToLower(strings.TrimSpace(fallback))
}
