// Package room issues and resolves the short human-typable codes that map to
// live session ids.
package room

import (
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Alphabet is the code character set. Visually ambiguous characters (0/O,
// 1/I) are excluded so codes survive being read aloud or scribbled down.
const Alphabet = "23456789ABCDEFGHJKLMNPQRSTUVWXYZ"

// CodeLength is the fixed room code length.
const CodeLength = 4

var (
	ErrNotFound    = errors.New("room not found")
	ErrInvalidCode = errors.New("invalid room code")
)

// Directory is the concurrency-safe roomCode -> sessionId mapping. Each
// entry is written once at session creation and removed at disposal; lookups
// never mutate.
type Directory struct {
	mu    sync.RWMutex
	codes map[string]uuid.UUID
	rng   *rand.Rand
}

// NewDirectory returns an empty directory.
func NewDirectory() *Directory {
	return newDirectory(rand.New(rand.NewSource(time.Now().UnixNano())))
}

func newDirectory(rng *rand.Rand) *Directory {
	return &Directory{
		codes: make(map[string]uuid.UUID),
		rng:   rng,
	}
}

const maxReserveAttempts = 100

// Reserve draws a fresh code and binds it to sessionID, retrying with a new
// draw on collision.
func (d *Directory) Reserve(sessionID uuid.UUID) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	for attempt := 0; attempt < maxReserveAttempts; attempt++ {
		code := d.draw()
		if _, taken := d.codes[code]; taken {
			continue
		}
		d.codes[code] = sessionID
		return code, nil
	}
	return "", fmt.Errorf("reserve room code: space exhausted after %d attempts", maxReserveAttempts)
}

// Lookup resolves a code to its session id. The code is normalized first, so
// hand-typed lowercase input resolves.
func (d *Directory) Lookup(code string) (uuid.UUID, error) {
	code = Normalize(code)
	if err := Validate(code); err != nil {
		return uuid.Nil, err
	}

	d.mu.RLock()
	defer d.mu.RUnlock()
	id, ok := d.codes[code]
	if !ok {
		return uuid.Nil, ErrNotFound
	}
	return id, nil
}

// Release frees a code at session disposal. Releasing an unknown code is a
// no-op.
func (d *Directory) Release(code string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.codes, Normalize(code))
}

// Len reports the number of active codes.
func (d *Directory) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.codes)
}

// Normalize trims and uppercases hand-typed input.
func Normalize(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Validate checks length and charset. It does not consult the directory.
func Validate(code string) error {
	if len(code) != CodeLength {
		return fmt.Errorf("%w: length %d", ErrInvalidCode, len(code))
	}
	for _, r := range code {
		if !strings.ContainsRune(Alphabet, r) {
			return fmt.Errorf("%w: character %q", ErrInvalidCode, r)
		}
	}
	return nil
}

// draw produces one candidate code. Caller holds the write lock.
func (d *Directory) draw() string {
	var b strings.Builder
	b.Grow(CodeLength)
	for i := 0; i < CodeLength; i++ {
		b.WriteByte(Alphabet[d.rng.Intn(len(Alphabet))])
	}
	return b.String()
}
