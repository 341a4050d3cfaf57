package connectors

import (
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"

	"axmed/internal"
	"axmed/internal/storage"
)

// MailStoreService keeps raw messages on disk, named by content hash, and
// records them for processing.
type MailStoreService struct {
	db         *storage.DB
	rawMailDir string
}

func NewMailStoreService(db *storage.DB, rawMailDir string) *MailStoreService {
	return &MailStoreService{db: db, rawMailDir: rawMailDir}
}

// Store saves msg and reports whether it was new. A message seen before keeps
// its processing status.
func (s *MailStoreService) Store(msg internal.FetchedMailMessage) (internal.EmailRow, bool, error) {
	existing, err := s.db.GetEmailByProviderMessageID(msg.Provider, msg.MessageID)
	if err != nil {
		return internal.EmailRow{}, false, err
	}

	sum := sha256.Sum256(msg.Raw)
	hash := hex.EncodeToString(sum[:])
	dir := filepath.Join(s.rawMailDir, msg.Provider)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return internal.EmailRow{}, false, err
	}

	rawPath := filepath.Join(dir, hash+".eml")
	if _, err := os.Stat(rawPath); os.IsNotExist(err) {
		if err := os.WriteFile(rawPath, msg.Raw, 0o644); err != nil {
			return internal.EmailRow{}, false, err
		}
	}

	row, err := s.db.UpsertEmail(msg.Provider, msg.MessageID, msg.Subject, msg.From, msg.ReceivedAt, hash, rawPath, "fetched")
	return row, existing == nil, err
}
