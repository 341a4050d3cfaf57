package catalog

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"axmed/internal"
	"axmed/internal/config"
	"axmed/internal/logger"
	"axmed/internal/reader"
	"axmed/internal/storage"
	"axmed/internal/util"
)

const lastLoadKey = "catalog.last_load"

type LoadService struct {
	db     *storage.DB
	reader *reader.Reader
}

func NewLoadService(db *storage.DB, cfg config.Config) *LoadService {
	return &LoadService{db: db, reader: reader.New(cfg.ReaderMaxRows)}
}

type LoadResult struct {
	Loaded   int
	Skipped  int
	Warnings []reader.Warning
}

// LoadFile reads a medicine list (CSV, XLSX, ...) and upserts it.
func (s *LoadService) LoadFile(ctx context.Context, path string) (LoadResult, error) {
	table, err := s.reader.ReadFile(ctx, path)
	if err != nil {
		return LoadResult{}, err
	}
	medicines, skipped, err := ParseMedicines(table)
	if err != nil {
		return LoadResult{}, err
	}
	if err := s.db.UpsertMedicines(medicines); err != nil {
		return LoadResult{}, err
	}
	_ = s.db.SetMetadata(lastLoadKey, time.Now().UTC().Format(time.RFC3339))
	logger.Infof("catalog loaded from %s: %d medicines, %d rows skipped", path, len(medicines), skipped)
	return LoadResult{Loaded: len(medicines), Skipped: skipped, Warnings: table.Warnings}, nil
}

// LastLoad returns when the catalogue was last loaded, or nil.
func (s *LoadService) LastLoad() (*time.Time, error) {
	v, err := s.db.GetMetadata(lastLoadKey)
	if err != nil || v == nil {
		return nil, err
	}
	t, err := time.Parse(time.RFC3339, *v)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// ParseMedicines turns a catalogue table into records. Rows without a name
// are skipped; rows without a usable id are numbered after the largest
// explicit id in the file.
func ParseMedicines(table reader.Table) ([]internal.MedicineRecord, int, error) {
	headers := make([]string, 0, len(table.Headers))
	for _, h := range table.Headers {
		headers = append(headers, strings.ToLower(h))
	}
	col := func(probes ...string) string {
		for i, h := range headers {
			for _, p := range probes {
				if strings.Contains(h, p) {
					return table.Headers[i]
				}
			}
		}
		return ""
	}

	idCol := ""
	for i, h := range headers {
		if h == "id" || h == "code" || strings.HasSuffix(h, " id") || strings.HasSuffix(h, " code") {
			idCol = table.Headers[i]
			break
		}
	}
	nameCol := col("name", "medicine", "product")
	if nameCol == "" {
		return nil, 0, fmt.Errorf("catalogue %s has no name column (headers %q)", table.Name, table.Headers)
	}
	categoryCol := col("category", "class", "group")
	presentationCol := col("presentation", "form")
	dosageCol := col("dosage", "strength")
	sipCol := col("sip", "permit")

	ids := make([]int, len(table.Rows))
	maxID := 0
	for i, row := range table.Rows {
		if idCol == "" {
			break
		}
		if id, err := strconv.Atoi(strings.TrimSpace(row[idCol])); err == nil && id > 0 {
			ids[i] = id
			maxID = max(maxID, id)
		}
	}

	out := make([]internal.MedicineRecord, 0, len(table.Rows))
	seen := map[int]bool{}
	skipped := 0
	for i, row := range table.Rows {
		name := strings.TrimSpace(row[nameCol])
		if name == "" {
			skipped++
			continue
		}
		id := ids[i]
		if id == 0 {
			maxID++
			id = maxID
		}
		if seen[id] {
			skipped++
			continue
		}
		seen[id] = true
		out = append(out, internal.MedicineRecord{
			ID:            id,
			Name:          name,
			Category:      row[categoryCol],
			Presentations: util.SplitList(row[presentationCol]),
			Dosages:       util.SplitList(row[dosageCol]),
			SIPRequired:   isYes(row[sipCol]),
		})
	}
	return out, skipped, nil
}

func isYes(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "yes", "y", "true", "1", "required":
		return true
	}
	return false
}
