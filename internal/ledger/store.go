package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ppiankov/realign/internal/model"
)

// Store owns the persisted ledger. Mutations are applied atomically: no two
// Mutate calls interleave and Read never observes a half-applied mutation.
type Store interface {
	// Read returns a snapshot of the ledger. A missing or corrupt record is
	// replaced by the default ledger instead of returning an error.
	Read(ctx context.Context) (model.Ledger, error)

	// Mutate applies fn to the current ledger and persists the result. If fn
	// returns an error nothing is written.
	Mutate(ctx context.Context, fn func(*model.Ledger) error) (model.Ledger, error)

	// Close releases the backing medium
	Close() error
}

// Clock returns the current time; injectable for tests
type Clock func() time.Time

func systemClock() time.Time {
	return time.Now().UTC()
}

// decode parses a persisted ledger. Unknown fields are ignored.
func decode(data []byte) (model.Ledger, error) {
	var l model.Ledger
	if err := json.Unmarshal(data, &l); err != nil {
		return model.Ledger{}, fmt.Errorf("decode ledger: %w", err)
	}
	if l.History == nil {
		l.History = []model.Event{}
	}
	if l.ManualOverrides == nil {
		l.ManualOverrides = []model.Event{}
	}
	if l.DailyUsage.Date == "" {
		return model.Ledger{}, fmt.Errorf("decode ledger: missing daily usage date")
	}
	return l, nil
}

func encode(l model.Ledger) ([]byte, error) {
	data, err := json.MarshalIndent(l, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode ledger: %w", err)
	}
	return data, nil
}
