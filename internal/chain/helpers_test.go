package chain_test

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jmerrifield20/trustchain/internal/chain"
)

var ctx = context.Background()

func rawJSON(s string) json.RawMessage { return json.RawMessage(s) }

// stepClock returns a clock that advances by one second (plus a sub-microsecond
// remainder that must be truncated away) on every call.
func stepClock() func() time.Time {
	t := time.Date(2025, 3, 14, 9, 26, 53, 589793000, time.UTC)
	return func() time.Time {
		t = t.Add(time.Second + 238*time.Nanosecond)
		return t
	}
}

// failingStore refuses every append.
type failingStore struct {
	chain.Store
	err error
}

func (f *failingStore) Append(context.Context, int64, chain.BuildFunc) (*chain.Block, error) {
	return nil, f.err
}

var errDiskFull = errors.New("disk full")
