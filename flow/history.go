package flow

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/goliatone/go-casework"
)

// HistoryEntry is one committed execution in a case's audit trail.
type HistoryEntry struct {
	ExecutionID   string         `json:"execution_id"`
	EventID       string         `json:"event_id"`
	CaseID        int64          `json:"case_id"`
	Actor         casework.Actor `json:"actor"`
	PreviousStage casework.Stage `json:"previous_stage"`
	Stage         casework.Stage `json:"stage"`
	Version       int            `json:"version"`
	At            time.Time      `json:"at"`
}

// HistoryStore persists audit entries.
type HistoryStore interface {
	Append(ctx context.Context, entry HistoryEntry) error
	List(ctx context.Context, caseID int64) ([]HistoryEntry, error)
}

// NewHistoryHook records committed lifecycle events in store.
func NewHistoryHook(store HistoryStore) LifecycleHook {
	return LifecycleHookFunc(func(ctx context.Context, evt LifecycleEvent) error {
		if evt.Phase != PhaseCommitted || store == nil {
			return nil
		}
		return store.Append(ctx, HistoryEntry{
			ExecutionID:   evt.ExecutionID,
			EventID:       evt.EventID,
			CaseID:        evt.CaseID,
			Actor:         evt.Actor,
			PreviousStage: evt.PreviousStage,
			Stage:         evt.Stage,
			Version:       evt.Version,
			At:            evt.OccurredAt,
		})
	})
}

// MemoryHistory is a thread-safe in-memory HistoryStore.
type MemoryHistory struct {
	mu      sync.RWMutex
	entries map[int64][]HistoryEntry
}

// NewMemoryHistory constructs an empty history store.
func NewMemoryHistory() *MemoryHistory {
	return &MemoryHistory{entries: make(map[int64][]HistoryEntry)}
}

func (h *MemoryHistory) Append(_ context.Context, entry HistoryEntry) error {
	if h == nil {
		return errors.New("history store not configured")
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.entries[entry.CaseID] = append(h.entries[entry.CaseID], entry)
	return nil
}

func (h *MemoryHistory) List(_ context.Context, caseID int64) ([]HistoryEntry, error) {
	if h == nil {
		return nil, errors.New("history store not configured")
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := append([]HistoryEntry(nil), h.entries[caseID]...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Version < out[j].Version })
	return out, nil
}
