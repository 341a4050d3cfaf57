package listener

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"axmed/internal/config"
	"axmed/internal/connectors"
	gmailconnector "axmed/internal/connectors/gmail"
	imapconnector "axmed/internal/connectors/imap"
	"axmed/internal/logger"
	"axmed/internal/pipeline"
	"axmed/internal/storage"
)

// Service polls the order inbox, turns new mail into uploads and drafts and
// optionally exports the matched rows.
type Service struct {
	db        *storage.DB
	cfg       config.Config
	connector connectors.MailConnector
	processor *pipeline.ProcessingService
}

func NewService(db *storage.DB, cfg config.Config) *Service {
	return &Service{db: db, cfg: cfg, processor: pipeline.NewProcessingService(db, cfg)}
}

// WithConnector replaces the provider connector built from config.
func (s *Service) WithConnector(c connectors.MailConnector) *Service {
	s.connector = c
	return s
}

type CycleResult struct {
	Fetch     connectors.FetchResult
	Processed []pipeline.ProcessResult
	Exported  []string
}

func (s *Service) Run(ctx context.Context) error {
	interval := time.Duration(s.cfg.MailListenerIntervalSec) * time.Second
	if interval <= 0 {
		interval = time.Minute
	}
	logger.Infof("listener started provider=%s label=%s interval=%s", s.provider(), s.cfg.MailListenerLabel, interval)
	for {
		if _, err := s.RunCycle(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			logger.Errorf("listener cycle error: %v", err)
		}

		select {
		case <-ctx.Done():
			logger.Infof("listener stopped")
			return nil
		case <-time.After(interval):
		}
	}
}

func (s *Service) RunCycle(ctx context.Context) (CycleResult, error) {
	conn, err := s.mailConnector(ctx)
	if err != nil {
		return CycleResult{}, err
	}

	var res CycleResult
	fetch := connectors.NewFetchService(s.db, s.cfg.RawMailDir, conn)
	res.Fetch, err = fetch.FetchAndStore(ctx, s.cfg.MailListenerLabel, s.cfg.MailListenerFetchMax)
	if err != nil {
		return res, err
	}

	res.Processed, err = s.processor.ProcessPending(ctx, s.cfg.MailListenerProcessBatch, conn.Provider())
	if err != nil {
		return res, err
	}

	if s.cfg.MailListenerAutoExport {
		res.Exported, err = s.exportProcessed(conn.Provider())
		if err != nil {
			return res, err
		}
	}

	logger.Infof("listener cycle done provider=%s fetched=%d stored=%d processed=%d exported=%d",
		conn.Provider(), res.Fetch.Fetched, res.Fetch.Stored, len(res.Processed), len(res.Exported))
	return res, nil
}

// exportProcessed writes one workbook per processed e-mail upload and marks
// the e-mail exported.
func (s *Service) exportProcessed(provider string) ([]string, error) {
	emails, err := s.db.ListEmailsByStatus("processed", provider, 200)
	if err != nil {
		return nil, err
	}

	var paths []string
	for _, email := range emails {
		if email.UploadID == "" {
			continue
		}
		rows, err := s.db.GetExportRows(email.UploadID)
		if err != nil {
			return paths, err
		}
		if len(rows) == 0 {
			continue
		}
		filename := fmt.Sprintf("%d_%s.xlsx", email.ID, sanitizeMessageID(email.MessageID))
		outputPath := filepath.Join(s.cfg.OutputDir, "listener", filename)
		if err := pipeline.ExportRowsToXLSX(pipeline.OrderSchema, rows, outputPath); err != nil {
			return paths, err
		}
		if err := s.db.UpdateEmailStatus(email.ID, "exported"); err != nil {
			return paths, err
		}
		paths = append(paths, outputPath)
	}
	return paths, nil
}

func (s *Service) provider() string {
	if s.connector != nil {
		return s.connector.Provider()
	}
	return strings.ToLower(strings.TrimSpace(s.cfg.MailListenerProvider))
}

func (s *Service) mailConnector(ctx context.Context) (connectors.MailConnector, error) {
	if s.connector != nil {
		return s.connector, nil
	}
	return MakeConnector(ctx, s.cfg, s.cfg.MailListenerProvider)
}

// MakeConnector builds the connector for a provider name.
func MakeConnector(ctx context.Context, cfg config.Config, provider string) (connectors.MailConnector, error) {
	switch strings.ToLower(strings.TrimSpace(provider)) {
	case "gmail":
		return gmailconnector.NewConnector(ctx, cfg)
	case "imap":
		return imapconnector.NewConnector(cfg)
	default:
		return nil, fmt.Errorf("unsupported mail provider: %q", provider)
	}
}

func sanitizeMessageID(input string) string {
	repl := strings.NewReplacer("<", "_", ">", "_", ":", "_", "/", "_", "\\", "_", "|", "_", "?", "_", "*", "_", " ", "_", "@", "_")
	out := strings.Trim(repl.Replace(input), "_")
	if len(out) > 120 {
		out = out[:120]
	}
	return out
}
