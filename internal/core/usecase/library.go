package usecase

import (
	"context"
	"fmt"
	"strings"

	"github.com/saralhq/saral/internal/core/domain"
	"github.com/saralhq/saral/internal/core/ports"
)

const recentStatsLimit = 5

// LibraryUseCase is the read model over stored documents: newest-first
// listing with in-memory filtering, single-document lookup, and the
// dashboard stats block.
type LibraryUseCase struct {
	store ports.DocumentStore
}

func NewLibraryUseCase(store ports.DocumentStore) *LibraryUseCase {
	return &LibraryUseCase{store: store}
}

func (uc *LibraryUseCase) ListDocuments(ctx context.Context, filter domain.LibraryFilter) ([]domain.Document, error) {
	docs, err := uc.store.List(ctx, 0)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	return filterDocuments(docs, filter), nil
}

func (uc *LibraryUseCase) GetDocument(ctx context.Context, id string) (*domain.Document, error) {
	doc, err := uc.store.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get document: %w", err)
	}
	return doc, nil
}

func (uc *LibraryUseCase) Stats(ctx context.Context) (*domain.LibraryStats, error) {
	docs, err := uc.store.List(ctx, 0)
	if err != nil {
		return nil, fmt.Errorf("list documents for stats: %w", err)
	}

	stats := &domain.LibraryStats{
		TotalDocuments: len(docs),
		ByCategory:     make(map[domain.Category]int),
		Recent:         []domain.Document{},
	}
	for _, doc := range docs {
		stats.ByCategory[doc.Category]++
		if doc.Status == domain.StatusCompleted {
			stats.Completed++
		}
	}
	if len(docs) > recentStatsLimit {
		stats.Recent = docs[:recentStatsLimit]
	} else {
		stats.Recent = docs
	}
	return stats, nil
}

func filterDocuments(docs []domain.Document, filter domain.LibraryFilter) []domain.Document {
	query := strings.ToLower(strings.TrimSpace(filter.Query))
	out := make([]domain.Document, 0, len(docs))
	for _, doc := range docs {
		if filter.Category != "" && doc.Category != filter.Category {
			continue
		}
		if filter.Status != "" && doc.Status != filter.Status {
			continue
		}
		if query != "" &&
			!strings.Contains(strings.ToLower(doc.Title), query) &&
			!strings.Contains(strings.ToLower(doc.SimplifiedSummary), query) {
			continue
		}
		out = append(out, doc)
	}
	return out
}
