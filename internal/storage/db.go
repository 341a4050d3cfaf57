package storage

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"axmed/internal"
	"axmed/internal/util"
)

var ErrPendingExists = errors.New("pending bulk upload already recorded")

type DB struct {
	conn *sql.DB
}

func Open(path string) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	if _, err := conn.Exec(`PRAGMA journal_mode = WAL;`); err != nil {
		_ = conn.Close()
		return nil, err
	}
	if _, err := conn.Exec(`PRAGMA foreign_keys = ON;`); err != nil {
		_ = conn.Close()
		return nil, err
	}

	db := &DB{conn: conn}
	if err := db.init(); err != nil {
		_ = conn.Close()
		return nil, err
	}

	return db, nil
}

func (d *DB) Close() error {
	return d.conn.Close()
}

func (d *DB) init() error {
	schema := `
CREATE TABLE IF NOT EXISTS medicines (
  id INTEGER PRIMARY KEY,
  name TEXT NOT NULL,
  category TEXT NOT NULL DEFAULT '',
  presentationsJson TEXT NOT NULL DEFAULT '[]',
  dosagesJson TEXT NOT NULL DEFAULT '[]',
  sipRequired INTEGER NOT NULL DEFAULT 0,
  lastSeenAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_medicines_name ON medicines(name);

CREATE TABLE IF NOT EXISTS uploads (
  id TEXT PRIMARY KEY,
  owner TEXT NOT NULL,
  schema TEXT NOT NULL,
  source TEXT NOT NULL,
  fileName TEXT NOT NULL,
  headersJson TEXT NOT NULL,
  mappingJson TEXT NOT NULL,
  rowCount INTEGER NOT NULL,
  validCount INTEGER NOT NULL,
  status TEXT NOT NULL,
  createdAt TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_uploads_owner ON uploads(owner, createdAt);

CREATE TABLE IF NOT EXISTS upload_rows (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  uploadId TEXT NOT NULL,
  lineNo INTEGER NOT NULL,
  rowJson TEXT NOT NULL,
  status TEXT NOT NULL,
  confidence REAL NOT NULL,
  reason TEXT NOT NULL,
  medicineId INTEGER,
  candidatesJson TEXT NOT NULL,
  UNIQUE(uploadId, lineNo),
  FOREIGN KEY(uploadId) REFERENCES uploads(id)
);

CREATE TABLE IF NOT EXISTS bulk_drafts (
  owner TEXT NOT NULL,
  schema TEXT NOT NULL,
  rowsJson TEXT NOT NULL,
  savedAt TEXT NOT NULL,
  PRIMARY KEY(owner, schema)
);

CREATE TABLE IF NOT EXISTS order_items (
  id TEXT PRIMARY KEY,
  owner TEXT NOT NULL,
  medicineName TEXT NOT NULL,
  presentation TEXT NOT NULL,
  dosage TEXT NOT NULL,
  sip TEXT NOT NULL,
  quantity INTEGER NOT NULL,
  units TEXT NOT NULL,
  packagingNotes TEXT,
  createdAt TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_order_items_owner ON order_items(owner);

CREATE TABLE IF NOT EXISTS portfolio_items (
  id TEXT PRIMARY KEY,
  owner TEXT NOT NULL,
  medicineName TEXT NOT NULL,
  presentation TEXT NOT NULL,
  dosage TEXT NOT NULL,
  countriesJson TEXT NOT NULL,
  createdAt TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_portfolio_items_owner ON portfolio_items(owner);

CREATE TABLE IF NOT EXISTS pending_uploads (
  owner TEXT PRIMARY KEY,
  itemCount INTEGER NOT NULL,
  submittedAt TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS emails (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  provider TEXT NOT NULL,
  messageId TEXT NOT NULL,
  subject TEXT,
  sender TEXT,
  receivedAt TEXT,
  hash TEXT NOT NULL,
  status TEXT NOT NULL DEFAULT 'fetched',
  rawRef TEXT NOT NULL,
  uploadId TEXT,
  createdAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP,
  updatedAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP,
  UNIQUE(provider, messageId)
);

CREATE TABLE IF NOT EXISTS runs (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  traceId TEXT NOT NULL,
  uploadId TEXT,
  emailId INTEGER,
  timingsJson TEXT NOT NULL,
  countsJson TEXT NOT NULL,
  createdAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS metadata (
  key TEXT PRIMARY KEY,
  value TEXT NOT NULL,
  updatedAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`

	_, err := d.conn.Exec(schema)
	return err
}

func (d *DB) UpsertMedicines(medicines []internal.MedicineRecord) error {
	tx, err := d.conn.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.Prepare(`
INSERT INTO medicines (id, name, category, presentationsJson, dosagesJson, sipRequired, lastSeenAt)
VALUES (?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
ON CONFLICT(id) DO UPDATE SET
  name=excluded.name,
  category=excluded.category,
  presentationsJson=excluded.presentationsJson,
  dosagesJson=excluded.dosagesJson,
  sipRequired=excluded.sipRequired,
  lastSeenAt=CURRENT_TIMESTAMP
`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, m := range medicines {
		presentations, _ := json.Marshal(nonNil(m.Presentations))
		dosages, _ := json.Marshal(nonNil(m.Dosages))
		if _, err := stmt.Exec(m.ID, m.Name, m.Category, string(presentations), string(dosages), m.SIPRequired); err != nil {
			return err
		}
	}

	return tx.Commit()
}

func (d *DB) ListMedicines() ([]internal.MedicineRecord, error) {
	rows, err := d.conn.Query(`SELECT id, name, category, presentationsJson, dosagesJson, sipRequired FROM medicines ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []internal.MedicineRecord
	for rows.Next() {
		var m internal.MedicineRecord
		var presentations, dosages string
		if err := rows.Scan(&m.ID, &m.Name, &m.Category, &presentations, &dosages, &m.SIPRequired); err != nil {
			return nil, err
		}
		_ = json.Unmarshal([]byte(presentations), &m.Presentations)
		_ = json.Unmarshal([]byte(dosages), &m.Dosages)
		out = append(out, m)
	}
	return out, rows.Err()
}

// InsertUpload stores an upload and its matched rows in one transaction.
func (d *DB) InsertUpload(upload internal.UploadRecord, rows []internal.UploadRow) error {
	tx, err := d.conn.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	headersJSON, _ := json.Marshal(nonNil(upload.Headers))
	mappingJSON, _ := json.Marshal(upload.Mapping)
	if _, err := tx.Exec(`
INSERT INTO uploads (id, owner, schema, source, fileName, headersJson, mappingJson, rowCount, validCount, status, createdAt)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`, upload.ID, upload.Owner, upload.Schema, upload.Source, upload.FileName, string(headersJSON), string(mappingJSON),
		upload.RowCount, upload.ValidCount, upload.Status, upload.CreatedAt); err != nil {
		return err
	}

	stmt, err := tx.Prepare(`
INSERT INTO upload_rows (uploadId, lineNo, rowJson, status, confidence, reason, medicineId, candidatesJson)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, r := range rows {
		rowJSON, _ := json.Marshal(r.Row)
		candidatesJSON, _ := json.Marshal(nonNilCandidates(r.Match.Candidates))
		var medicineID *int
		if r.Match.Medicine != nil {
			medicineID = util.IntPtr(r.Match.Medicine.ID)
		}
		status := r.Match.Status
		if status == "" {
			status = internal.MatchNotFound
		}
		reason := r.Match.Reason
		if reason == "" {
			reason = internal.ReasonNone
		}
		if _, err := stmt.Exec(upload.ID, r.LineNo, string(rowJSON), string(status), r.Match.Confidence, string(reason), medicineID, string(candidatesJSON)); err != nil {
			return err
		}
	}

	return tx.Commit()
}

const uploadColumns = `id, owner, schema, source, fileName, headersJson, mappingJson, rowCount, validCount, status, createdAt`

func scanUpload(scan func(dest ...any) error) (internal.UploadRecord, error) {
	var u internal.UploadRecord
	var headersJSON, mappingJSON string
	if err := scan(&u.ID, &u.Owner, &u.Schema, &u.Source, &u.FileName, &headersJSON, &mappingJSON, &u.RowCount, &u.ValidCount, &u.Status, &u.CreatedAt); err != nil {
		return internal.UploadRecord{}, err
	}
	_ = json.Unmarshal([]byte(headersJSON), &u.Headers)
	_ = json.Unmarshal([]byte(mappingJSON), &u.Mapping)
	return u, nil
}

func (d *DB) GetUpload(id string) (*internal.UploadRecord, error) {
	u, err := scanUpload(d.conn.QueryRow(`SELECT `+uploadColumns+` FROM uploads WHERE id = ?`, id).Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// LatestUpload returns the owner's most recent upload, or nil.
func (d *DB) LatestUpload(owner string) (*internal.UploadRecord, error) {
	u, err := scanUpload(d.conn.QueryRow(`SELECT `+uploadColumns+` FROM uploads WHERE owner = ? ORDER BY createdAt DESC, rowid DESC LIMIT 1`, owner).Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (d *DB) ListUploadRows(uploadID string) ([]internal.UploadRow, error) {
	rows, err := d.conn.Query(`
SELECT r.lineNo, r.rowJson, r.status, r.confidence, r.reason, r.candidatesJson,
       m.id, m.name, m.category, m.sipRequired
FROM upload_rows r
LEFT JOIN medicines m ON m.id = r.medicineId
WHERE r.uploadId = ?
ORDER BY r.lineNo ASC
`, uploadID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []internal.UploadRow
	for rows.Next() {
		var (
			r              internal.UploadRow
			rowJSON        string
			candidatesJSON string
			status, reason string
			medID          *int
			medName        *string
			medCategory    *string
			medSIP         *bool
		)
		if err := rows.Scan(&r.LineNo, &rowJSON, &status, &r.Match.Confidence, &reason, &candidatesJSON, &medID, &medName, &medCategory, &medSIP); err != nil {
			return nil, err
		}
		_ = json.Unmarshal([]byte(rowJSON), &r.Row)
		_ = json.Unmarshal([]byte(candidatesJSON), &r.Match.Candidates)
		r.Match.Status = internal.MatchStatus(status)
		r.Match.Reason = internal.MatchReason(reason)
		if medID != nil {
			r.Match.Medicine = &internal.MatchMedicine{ID: *medID, Name: deref(medName), Category: deref(medCategory), SIPRequired: medSIP != nil && *medSIP}
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (d *DB) GetExportRows(uploadID string) ([]internal.ExportRow, error) {
	rows, err := d.conn.Query(`
SELECT
  r.lineNo,
  r.rowJson,
  r.status,
  r.confidence,
  r.reason,
  m.id,
  m.name,
  m.category,
  r.candidatesJson
FROM upload_rows r
LEFT JOIN medicines m ON m.id = r.medicineId
WHERE r.uploadId = ?
ORDER BY
  CASE r.status WHEN 'OK' THEN 1 WHEN 'REVIEW' THEN 2 ELSE 3 END,
  r.lineNo ASC
`, uploadID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []internal.ExportRow
	for rows.Next() {
		var row internal.ExportRow
		var rowJSON, candidatesJSON string
		if err := rows.Scan(
			&row.LineNo,
			&rowJSON,
			&row.MatchStatus,
			&row.Confidence,
			&row.MatchReason,
			&row.MedicineID,
			&row.MedicineName,
			&row.Category,
			&candidatesJSON,
		); err != nil {
			return nil, err
		}
		_ = json.Unmarshal([]byte(rowJSON), &row.Row)

		var candidates []internal.MatchCandidate
		_ = json.Unmarshal([]byte(candidatesJSON), &candidates)
		if len(candidates) > 1 {
			row.Candidate2Name = util.StringPtr(candidates[1].Name)
			row.Candidate2Score = util.FloatPtr(candidates[1].Score)
		}
		out = append(out, row)
	}

	return out, rows.Err()
}

func (d *DB) UpdateUploadStatus(uploadID, status string) error {
	_, err := d.conn.Exec(`UPDATE uploads SET status = ? WHERE id = ?`, status, uploadID)
	return err
}

// SaveDraft replaces the owner's draft for the draft's schema.
func (d *DB) SaveDraft(draft internal.BulkDraft) error {
	rowsJSON, err := json.Marshal(draft.Rows)
	if err != nil {
		return err
	}
	_, err = d.conn.Exec(`
INSERT INTO bulk_drafts (owner, schema, rowsJson, savedAt) VALUES (?, ?, ?, ?)
ON CONFLICT(owner, schema) DO UPDATE SET rowsJson = excluded.rowsJson, savedAt = excluded.savedAt
`, draft.Owner, draft.Schema, string(rowsJSON), draft.SavedAt)
	return err
}

func (d *DB) GetDraft(owner, schema string) (*internal.BulkDraft, error) {
	draft := internal.BulkDraft{Owner: owner, Schema: schema}
	var rowsJSON string
	err := d.conn.QueryRow(`SELECT rowsJson, savedAt FROM bulk_drafts WHERE owner = ? AND schema = ?`, owner, schema).Scan(&rowsJSON, &draft.SavedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(rowsJSON), &draft.Rows); err != nil {
		return nil, fmt.Errorf("decode draft %s/%s: %w", owner, schema, err)
	}
	return &draft, nil
}

func (d *DB) DeleteDraft(owner, schema string) error {
	_, err := d.conn.Exec(`DELETE FROM bulk_drafts WHERE owner = ? AND schema = ?`, owner, schema)
	return err
}

// SubmitOrder inserts the draft-order items, records the pending bulk upload
// and drops the owner's order draft. It fails with ErrPendingExists when the
// owner already has a pending upload.
func (d *DB) SubmitOrder(pending internal.PendingUpload, items []internal.OrderItem) error {
	tx, err := d.conn.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	var exists int
	if err := tx.QueryRow(`SELECT COUNT(1) FROM pending_uploads WHERE owner = ?`, pending.Owner).Scan(&exists); err != nil {
		return err
	}
	if exists > 0 {
		return ErrPendingExists
	}

	stmt, err := tx.Prepare(`
INSERT INTO order_items (id, owner, medicineName, presentation, dosage, sip, quantity, units, packagingNotes, createdAt)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, it := range items {
		if _, err := stmt.Exec(it.ID, it.Owner, it.MedicineName, it.Presentation, it.Dosage, it.SIP, it.Quantity, it.Units, it.PackagingNotes, it.CreatedAt); err != nil {
			return err
		}
	}

	if _, err := tx.Exec(`INSERT INTO pending_uploads (owner, itemCount, submittedAt) VALUES (?, ?, ?)`, pending.Owner, pending.ItemCount, pending.SubmittedAt); err != nil {
		return err
	}
	if _, err := tx.Exec(`DELETE FROM bulk_drafts WHERE owner = ? AND schema = 'order'`, pending.Owner); err != nil {
		return err
	}

	return tx.Commit()
}

func (d *DB) ListOrderItems(owner string) ([]internal.OrderItem, error) {
	rows, err := d.conn.Query(`
SELECT id, owner, medicineName, presentation, dosage, sip, quantity, units, packagingNotes, createdAt
FROM order_items WHERE owner = ? ORDER BY createdAt ASC, rowid ASC
`, owner)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []internal.OrderItem
	for rows.Next() {
		var it internal.OrderItem
		if err := rows.Scan(&it.ID, &it.Owner, &it.MedicineName, &it.Presentation, &it.Dosage, &it.SIP, &it.Quantity, &it.Units, &it.PackagingNotes, &it.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

// SubmitPortfolio inserts portfolio entries and drops the owner's portfolio
// draft.
func (d *DB) SubmitPortfolio(owner string, items []internal.PortfolioItem) error {
	tx, err := d.conn.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.Prepare(`
INSERT INTO portfolio_items (id, owner, medicineName, presentation, dosage, countriesJson, createdAt)
VALUES (?, ?, ?, ?, ?, ?, ?)
`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, it := range items {
		countries, _ := json.Marshal(nonNil(it.Countries))
		if _, err := stmt.Exec(it.ID, owner, it.MedicineName, it.Presentation, it.Dosage, string(countries), it.CreatedAt); err != nil {
			return err
		}
	}
	if _, err := tx.Exec(`DELETE FROM bulk_drafts WHERE owner = ? AND schema = 'portfolio'`, owner); err != nil {
		return err
	}

	return tx.Commit()
}

func (d *DB) ListPortfolioItems(owner string) ([]internal.PortfolioItem, error) {
	rows, err := d.conn.Query(`
SELECT id, owner, medicineName, presentation, dosage, countriesJson, createdAt
FROM portfolio_items WHERE owner = ? ORDER BY createdAt ASC, rowid ASC
`, owner)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []internal.PortfolioItem
	for rows.Next() {
		var it internal.PortfolioItem
		var countries string
		if err := rows.Scan(&it.ID, &it.Owner, &it.MedicineName, &it.Presentation, &it.Dosage, &countries, &it.CreatedAt); err != nil {
			return nil, err
		}
		_ = json.Unmarshal([]byte(countries), &it.Countries)
		out = append(out, it)
	}
	return out, rows.Err()
}

func (d *DB) GetPendingUpload(owner string) (*internal.PendingUpload, error) {
	p := internal.PendingUpload{Owner: owner}
	err := d.conn.QueryRow(`SELECT itemCount, submittedAt FROM pending_uploads WHERE owner = ?`, owner).Scan(&p.ItemCount, &p.SubmittedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// DeletePendingUpload reports whether a pending marker existed.
func (d *DB) DeletePendingUpload(owner string) (bool, error) {
	res, err := d.conn.Exec(`DELETE FROM pending_uploads WHERE owner = ?`, owner)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

func (d *DB) UpsertEmail(provider, messageID, subject, sender, receivedAt, hash, rawRef, status string) (internal.EmailRow, error) {
	_, err := d.conn.Exec(`
INSERT INTO emails (provider, messageId, subject, sender, receivedAt, hash, status, rawRef)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(provider, messageId) DO UPDATE SET
  subject=excluded.subject,
  sender=excluded.sender,
  receivedAt=excluded.receivedAt,
  hash=excluded.hash,
  rawRef=excluded.rawRef,
  updatedAt=CURRENT_TIMESTAMP
`, provider, messageID, subject, sender, receivedAt, hash, status, rawRef)
	if err != nil {
		return internal.EmailRow{}, err
	}

	row, err := d.GetEmailByProviderMessageID(provider, messageID)
	if err != nil {
		return internal.EmailRow{}, err
	}
	if row == nil {
		return internal.EmailRow{}, errors.New("failed to upsert email")
	}
	return *row, nil
}

const emailColumns = `id, provider, messageId, subject, sender, receivedAt, hash, status, rawRef, uploadId`

func scanEmail(scan func(dest ...any) error) (internal.EmailRow, error) {
	var row internal.EmailRow
	var subject, sender, receivedAt, uploadID *string
	err := scan(&row.ID, &row.Provider, &row.MessageID, &subject, &sender, &receivedAt, &row.Hash, &row.Status, &row.RawRef, &uploadID)
	row.Subject, row.Sender, row.ReceivedAt, row.UploadID = deref(subject), deref(sender), deref(receivedAt), deref(uploadID)
	return row, err
}

func (d *DB) GetEmailByProviderMessageID(provider, messageID string) (*internal.EmailRow, error) {
	row, err := scanEmail(d.conn.QueryRow(`SELECT `+emailColumns+` FROM emails WHERE provider = ? AND messageId = ?`, provider, messageID).Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

// ListEmailsByStatus returns the oldest e-mails with status, limited to one
// provider unless provider is empty.
func (d *DB) ListEmailsByStatus(status, provider string, limit int) ([]internal.EmailRow, error) {
	rows, err := d.conn.Query(`SELECT `+emailColumns+` FROM emails
WHERE status = ? AND (? = '' OR provider = ?)
ORDER BY receivedAt ASC, id ASC LIMIT ?`, status, provider, provider, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []internal.EmailRow
	for rows.Next() {
		row, err := scanEmail(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

func (d *DB) UpdateEmailStatus(emailID int, status string) error {
	_, err := d.conn.Exec(`UPDATE emails SET status = ?, updatedAt = CURRENT_TIMESTAMP WHERE id = ?`, status, emailID)
	return err
}

func (d *DB) LinkEmailUpload(emailID int, uploadID string) error {
	_, err := d.conn.Exec(`UPDATE emails SET uploadId = ?, updatedAt = CURRENT_TIMESTAMP WHERE id = ?`, uploadID, emailID)
	return err
}

func (d *DB) MustEmailByProviderMessageID(provider, messageID string) (internal.EmailRow, error) {
	row, err := d.GetEmailByProviderMessageID(provider, messageID)
	if err != nil {
		return internal.EmailRow{}, err
	}
	if row == nil {
		return internal.EmailRow{}, fmt.Errorf("email not found: provider=%s messageId=%s", provider, messageID)
	}
	return *row, nil
}

// InsertRun records the timings and counts of one import. emailID is 0 for
// uploads that did not come from the inbox.
func (d *DB) InsertRun(traceID, uploadID string, emailID int, timings map[string]float64, counts map[string]int) error {
	timingsJSON, _ := json.Marshal(timings)
	countsJSON, _ := json.Marshal(counts)
	var email *int
	if emailID > 0 {
		email = &emailID
	}
	var upload *string
	if uploadID != "" {
		upload = &uploadID
	}
	_, err := d.conn.Exec(`INSERT INTO runs (traceId, uploadId, emailId, timingsJson, countsJson) VALUES (?, ?, ?, ?, ?)`, traceID, upload, email, string(timingsJSON), string(countsJSON))
	return err
}

func (d *DB) CountRuns() (int, error) {
	var n int
	err := d.conn.QueryRow(`SELECT COUNT(1) FROM runs`).Scan(&n)
	return n, err
}

func (d *DB) SetMetadata(key, value string) error {
	_, err := d.conn.Exec(`
INSERT INTO metadata (key, value) VALUES (?, ?)
ON CONFLICT(key) DO UPDATE SET value = excluded.value, updatedAt = CURRENT_TIMESTAMP
`, key, value)
	return err
}

func (d *DB) GetMetadata(key string) (*string, error) {
	var value string
	err := d.conn.QueryRow(`SELECT value FROM metadata WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &value, nil
}

func deref(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}

func nonNil(v []string) []string {
	if v == nil {
		return []string{}
	}
	return v
}

func nonNilCandidates(v []internal.MatchCandidate) []internal.MatchCandidate {
	if v == nil {
		return []internal.MatchCandidate{}
	}
	return v
}
