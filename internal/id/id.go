// Package id generates time-sortable identifiers for ledger records.
package id

import (
	cryptoRand "crypto/rand"
	"encoding/binary"
	"errors"
	"io"
	"math/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// Generator issues ULIDs that sort in the order they were generated.
type Generator struct {
	mu      sync.Mutex
	entropy io.Reader
	// floor is the lowest millisecond timestamp the next ID may carry.
	floor uint64
}

// NewGenerator creates a Generator with monotonic entropy seeded from
// crypto/rand.
func NewGenerator() *Generator {
	var seed int64
	_ = binary.Read(cryptoRand.Reader, binary.LittleEndian, &seed)
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	// Monotonic entropy keeps IDs from the same millisecond strictly increasing.
	return &Generator{entropy: ulid.Monotonic(rand.New(rand.NewSource(seed)), 0)}
}

// New returns a ULID string stamped with t. When t falls behind the last
// stamp, as after a wall clock step, the last stamp is reused.
func (g *Generator) New(t time.Time) string {
	g.mu.Lock()
	defer g.mu.Unlock()

	ms := ulid.Timestamp(t.UTC())
	if ms < g.floor {
		ms = g.floor
	}
	for {
		v, err := ulid.New(ms, g.entropy)
		if errors.Is(err, ulid.ErrMonotonicOverflow) {
			ms++
			continue
		}
		if err != nil {
			panic(err)
		}
		g.floor = ms
		return v.String()
	}
}

// Observe raises the floor past an existing ID so that later IDs sort
// after it. IDs that are not ULIDs are ignored.
func (g *Generator) Observe(existing string) {
	v, err := ulid.ParseStrict(existing)
	if err != nil {
		return
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if next := v.Time() + 1; next > g.floor {
		g.floor = next
	}
}

var std = NewGenerator()

// New returns an ID from the process-wide generator.
func New(t time.Time) string { return std.New(t) }

// Observe raises the process-wide generator's floor past existing.
func Observe(existing string) { std.Observe(existing) }
