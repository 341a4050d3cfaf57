package connectors

import (
	"context"

	"axmed/internal/logger"
	"axmed/internal/storage"
)

type FetchService struct {
	connector MailConnector
	store     *MailStoreService
}

type FetchResult struct {
	Fetched int
	Stored  int
	Known   int
}

func NewFetchService(db *storage.DB, rawMailDir string, connector MailConnector) *FetchService {
	return &FetchService{
		connector: connector,
		store:     NewMailStoreService(db, rawMailDir),
	}
}

func (s *FetchService) FetchAndStore(ctx context.Context, label string, max int) (FetchResult, error) {
	messages, err := s.connector.FetchInbox(ctx, label, max)
	if err != nil {
		return FetchResult{}, err
	}

	res := FetchResult{Fetched: len(messages)}
	for _, msg := range messages {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		_, created, err := s.store.Store(msg)
		if err != nil {
			return res, err
		}
		if created {
			res.Stored++
		} else {
			res.Known++
		}
	}

	logger.Infof("mail fetch provider=%s label=%s fetched=%d stored=%d known=%d", s.connector.Provider(), label, res.Fetched, res.Stored, res.Known)
	return res, nil
}
