package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"axmed/internal"
	"axmed/internal/config"
	"axmed/internal/logger"
	"axmed/internal/reader"
	"axmed/internal/storage"
	"axmed/internal/util"
)

var (
	ErrNoData        = errors.New("no data found in file")
	ErrNoValidRows   = errors.New("no valid rows to save")
	ErrPendingUpload = errors.New("a bulk upload is already pending review")
)

// ImportService runs the bulk-upload flow: read, map, apply, match and keep
// the result as an upload record and, on request, as the owner's draft.
type ImportService struct {
	db     *storage.DB
	cfg    config.Config
	reader *reader.Reader
	now    func() time.Time
}

func NewImportService(db *storage.DB, cfg config.Config) *ImportService {
	return &ImportService{db: db, cfg: cfg, reader: reader.New(cfg.ReaderMaxRows), now: time.Now}
}

type Inspection struct {
	Schema   Schema
	Table    reader.Table
	Mapping  *ColumnMapping
	Unmapped []string
}

type ApplyRequest struct {
	Owner     string
	Schema    Schema
	Path      string
	Overrides []string
	SaveDraft bool
}

type ApplyResult struct {
	Upload   internal.UploadRecord
	Rows     []internal.UploadRow
	Warnings []reader.Warning
	Counts   map[string]int
	Draft    *internal.BulkDraft
}

type RowIssue struct {
	Line    int
	Message string
}

type OrderSubmission struct {
	Items   []internal.OrderItem
	Pending internal.PendingUpload
}

type PortfolioSubmission struct {
	Items  []internal.PortfolioItem
	Issues []RowIssue
}

// Inspect reads a file and proposes a mapping without storing anything.
func (s *ImportService) Inspect(ctx context.Context, schema Schema, path string) (Inspection, error) {
	table, err := s.reader.ReadFile(ctx, path)
	if err != nil {
		return Inspection{}, err
	}
	return inspectTable(schema, table)
}

func (s *ImportService) InspectBlob(ctx context.Context, schema Schema, name string, blob []byte) (Inspection, error) {
	table, err := s.reader.Read(ctx, name, blob)
	if err != nil {
		return Inspection{}, err
	}
	return inspectTable(schema, table)
}

func inspectTable(schema Schema, table reader.Table) (Inspection, error) {
	if table.Empty() {
		return Inspection{}, fmt.Errorf("%s: %w", table.Name, ErrNoData)
	}
	mapping := AutoMatch(schema, table.Headers)
	return Inspection{Schema: schema, Table: table, Mapping: mapping, Unmapped: mapping.Unmapped(table.Headers)}, nil
}

func (s *ImportService) Apply(ctx context.Context, req ApplyRequest) (ApplyResult, error) {
	insp, err := s.Inspect(ctx, req.Schema, req.Path)
	if err != nil {
		return ApplyResult{}, err
	}
	return s.ApplyInspection(ctx, req.Owner, "file", insp, req.Overrides, req.SaveDraft)
}

// ApplyInspection applies the proposed mapping plus overrides, matches the
// rows against the catalogue and stores the upload.
func (s *ImportService) ApplyInspection(ctx context.Context, owner, source string, insp Inspection, overrides []string, saveDraft bool) (ApplyResult, error) {
	start := s.now()
	if err := insp.Mapping.ApplyOverrides(overrides); err != nil {
		return ApplyResult{}, err
	}
	if err := ctx.Err(); err != nil {
		return ApplyResult{}, err
	}

	schema := insp.Schema
	normalized := ApplyMapping(schema, insp.Table.Rows, insp.Mapping)

	medicines, err := s.db.ListMedicines()
	if err != nil {
		return ApplyResult{}, err
	}
	matcher := NewMatcher(s.cfg, medicines)
	checkQty := schema.Name == OrderSchema.Name

	counts := map[string]int{"rows": len(normalized), "valid": 0, "ok": 0, "review": 0, "notFound": 0}
	rows := make([]internal.UploadRow, 0, len(normalized))
	for i, row := range normalized {
		match := matcher.Match(row, checkQty)
		rows = append(rows, internal.UploadRow{LineNo: i + 1, Row: row, Match: match})
		if IsValidRow(schema, row) {
			counts["valid"]++
		}
		switch match.Status {
		case internal.MatchOK:
			counts["ok"]++
		case internal.MatchReview:
			counts["review"]++
		case internal.MatchNotFound:
			counts["notFound"]++
		}
	}

	fileName := insp.Table.Name
	if insp.Table.Attachment != "" {
		fileName = insp.Table.Attachment
	}
	upload := internal.UploadRecord{
		ID:         uuid.NewString(),
		Owner:      owner,
		Schema:     schema.Name,
		Source:     source,
		FileName:   fileName,
		Headers:    insp.Table.Headers,
		Mapping:    insp.Mapping.Map(),
		RowCount:   len(rows),
		ValidCount: counts["valid"],
		Status:     "applied",
		CreatedAt:  s.now().UTC().Format(time.RFC3339Nano),
	}
	if err := s.db.InsertUpload(upload, rows); err != nil {
		return ApplyResult{}, err
	}

	result := ApplyResult{Upload: upload, Rows: rows, Warnings: insp.Table.Warnings, Counts: counts}
	if saveDraft {
		draft, err := s.SaveDraft(owner, schema, normalized)
		if err != nil && !errors.Is(err, ErrNoValidRows) {
			return ApplyResult{}, err
		}
		if err == nil {
			result.Draft = &draft
			if err := s.db.UpdateUploadStatus(upload.ID, "drafted"); err != nil {
				logger.Warnf("upload %s: draft saved but status not updated: %v", upload.ID, err)
			} else {
				result.Upload.Status = "drafted"
			}
		}
	}

	_ = s.db.InsertRun(traceID(), upload.ID, 0, map[string]float64{"totalMs": float64(s.now().Sub(start).Milliseconds())}, counts)
	logger.WithFields(logrus.Fields{
		"upload": upload.ID,
		"owner":  owner,
		"schema": schema.Name,
		"source": source,
		"rows":   counts["rows"],
		"valid":  counts["valid"],
	}).Info("upload applied")
	return result, nil
}

// SaveDraft keeps the valid rows as the owner's draft for the schema,
// replacing any previous one.
func (s *ImportService) SaveDraft(owner string, schema Schema, rows []internal.NormalizedRow) (internal.BulkDraft, error) {
	valid := ValidRows(schema, rows)
	if len(valid) == 0 {
		return internal.BulkDraft{}, ErrNoValidRows
	}
	draft := internal.BulkDraft{Owner: owner, Schema: schema.Name, Rows: valid, SavedAt: s.now().UTC().Format(time.RFC3339)}
	if err := s.db.SaveDraft(draft); err != nil {
		return internal.BulkDraft{}, err
	}
	return draft, nil
}

func (s *ImportService) Draft(owner string, schema Schema) (*internal.BulkDraft, error) {
	return s.db.GetDraft(owner, schema.Name)
}

func (s *ImportService) Pending(owner string) (*internal.PendingUpload, error) {
	return s.db.GetPendingUpload(owner)
}

// SubmitOrderDraft turns the owner's order draft into draft-order items and
// marks a bulk upload as pending. Only one pending upload may exist.
func (s *ImportService) SubmitOrderDraft(owner string) (OrderSubmission, error) {
	pending, err := s.db.GetPendingUpload(owner)
	if err != nil {
		return OrderSubmission{}, err
	}
	if pending != nil {
		return OrderSubmission{}, fmt.Errorf("%w (submitted %s)", ErrPendingUpload, pending.SubmittedAt)
	}

	draft, err := s.db.GetDraft(owner, OrderSchema.Name)
	if err != nil {
		return OrderSubmission{}, err
	}
	var rows []internal.NormalizedRow
	if draft != nil {
		rows = ValidRows(OrderSchema, draft.Rows)
	}
	if len(rows) == 0 {
		return OrderSubmission{}, ErrNoValidRows
	}

	now := s.now().UTC().Format(time.RFC3339)
	items := make([]internal.OrderItem, 0, len(rows))
	for _, r := range rows {
		items = append(items, toOrderItem(owner, r, now))
	}
	sub := OrderSubmission{Items: items, Pending: internal.PendingUpload{Owner: owner, ItemCount: len(items), SubmittedAt: now}}
	if err := s.db.SubmitOrder(sub.Pending, items); err != nil {
		if errors.Is(err, storage.ErrPendingExists) {
			return OrderSubmission{}, ErrPendingUpload
		}
		return OrderSubmission{}, err
	}
	logger.Infof("order draft submitted for %s: %d items", owner, len(items))
	return sub, nil
}

func toOrderItem(owner string, r internal.NormalizedRow, createdAt string) internal.OrderItem {
	item := internal.OrderItem{
		ID:           uuid.NewString(),
		Owner:        owner,
		MedicineName: strings.TrimSpace(r.MedicineName),
		Presentation: firstNonEmpty(r.Presentation, internal.DefaultPresentation),
		Dosage:       strings.TrimSpace(r.Dosage),
		SIP:          internal.SIPDoesNotApply,
		Quantity:     util.QtyInt(r.Quantity),
		Units:        strings.TrimSpace(r.Units),
		CreatedAt:    createdAt,
	}
	if sip, ok := util.ParseSIP(r.SIP); ok {
		item.SIP = sip
	}
	if item.Units == "" {
		// "300 vials" in the quantity column carries the unit too
		if unit := util.ParseQty(r.Quantity).Unit; unit != nil {
			item.Units = *unit
		} else {
			item.Units = internal.DefaultUnits
		}
	}
	if notes := strings.TrimSpace(r.PackagingNotes); notes != "" {
		item.PackagingNotes = &notes
	}
	return item
}

// SubmitPortfolioDraft publishes the owner's portfolio draft. Country names
// outside the supported list are dropped and reported as issues.
func (s *ImportService) SubmitPortfolioDraft(owner string) (PortfolioSubmission, error) {
	draft, err := s.db.GetDraft(owner, PortfolioSchema.Name)
	if err != nil {
		return PortfolioSubmission{}, err
	}
	var rows []internal.NormalizedRow
	if draft != nil {
		rows = ValidRows(PortfolioSchema, draft.Rows)
	}
	if len(rows) == 0 {
		return PortfolioSubmission{}, ErrNoValidRows
	}

	now := s.now().UTC().Format(time.RFC3339)
	var sub PortfolioSubmission
	for i, r := range rows {
		known, unknown := util.CanonicalCountries(r.Countries)
		for _, c := range unknown {
			sub.Issues = append(sub.Issues, RowIssue{Line: i + 1, Message: fmt.Sprintf("unknown country %q", c)})
		}
		sub.Items = append(sub.Items, internal.PortfolioItem{
			ID:           uuid.NewString(),
			Owner:        owner,
			MedicineName: strings.TrimSpace(r.MedicineName),
			Presentation: strings.TrimSpace(r.Presentation),
			Dosage:       strings.TrimSpace(r.Dosage),
			Countries:    known,
			CreatedAt:    now,
		})
	}
	if err := s.db.SubmitPortfolio(owner, sub.Items); err != nil {
		return PortfolioSubmission{}, err
	}
	logger.Infof("portfolio draft submitted for %s: %d items, %d issues", owner, len(sub.Items), len(sub.Issues))
	return sub, nil
}

// CompletePending clears the owner's pending bulk upload. It reports whether
// one existed.
func (s *ImportService) CompletePending(owner string) (bool, error) {
	return s.db.DeletePendingUpload(owner)
}

func traceID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:16]
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}
