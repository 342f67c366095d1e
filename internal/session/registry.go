package session

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/vaultrun/netcode/internal/room"
)

// Registry owns every live session and the room-code directory. It only
// guards the session map; all per-session state belongs to the session loop.
type Registry struct {
	cfg   Config
	clock Clock
	dir   *room.Directory

	mu       sync.RWMutex
	sessions map[uuid.UUID]*Session
	closed   bool
}

// NewRegistry builds an empty registry around the given directory.
func NewRegistry(cfg Config, clock Clock, dir *room.Directory) *Registry {
	return &Registry{
		cfg:      cfg,
		clock:    clock,
		dir:      dir,
		sessions: make(map[uuid.UUID]*Session),
	}
}

// Create reserves a code, starts a session loop and joins the creator to it.
func (r *Registry) Create(ctx context.Context, conn Conn, req JoinRequest) (*Session, JoinInfo, error) {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil, JoinInfo{}, ErrSessionClosed
	}
	id := uuid.New()
	code, err := r.dir.Reserve(id)
	if err != nil {
		r.mu.Unlock()
		return nil, JoinInfo{}, fmt.Errorf("create session: %w", err)
	}
	s := newSession(id, code, r.cfg, r.clock, r.remove)
	r.sessions[id] = s
	r.mu.Unlock()

	go s.run()

	info, err := s.Join(ctx, conn, req)
	if err != nil {
		s.Close("create aborted")
		return nil, JoinInfo{}, err
	}

	log.Info().
		Str("session_id", id.String()).
		Str("room_code", code).
		Msg("session created")
	return s, info, nil
}

// ResolveCode maps a join code to its live session.
func (r *Registry) ResolveCode(code string) (*Session, error) {
	id, err := r.dir.Lookup(code)
	if err != nil {
		return nil, err
	}
	s := r.Get(id)
	if s == nil {
		return nil, room.ErrNotFound
	}
	return s, nil
}

// ResolveID maps a raw session id to its live session. Unparseable ids read
// as unknown rooms; the caller cannot tell them apart anyway.
func (r *Registry) ResolveID(raw string) (*Session, error) {
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil, room.ErrNotFound
	}
	s := r.Get(id)
	if s == nil {
		return nil, room.ErrNotFound
	}
	return s, nil
}

// Get returns the session with the given id, or nil.
func (r *Registry) Get(id uuid.UUID) *Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sessions[id]
}

// Count returns the number of live sessions.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Totals reports live session and player counts for the stats surface.
// Sessions that fail to answer a view are disposing and drop out.
func (r *Registry) Totals(ctx context.Context) (sessions, players int) {
	r.mu.RLock()
	list := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		list = append(list, s)
	}
	r.mu.RUnlock()

	for _, s := range list {
		v, err := s.View(ctx)
		if err != nil {
			continue
		}
		sessions++
		players += v.Occupancy
	}
	return sessions, players
}

// remove runs inside the disposing session's loop, as part of the event that
// emptied the room. The code is free for reuse the moment this returns.
func (r *Registry) remove(s *Session) {
	r.mu.Lock()
	delete(r.sessions, s.id)
	r.mu.Unlock()
	r.dir.Release(s.code)
}

// Shutdown closes every live session and waits for their loops to drain.
func (r *Registry) Shutdown(ctx context.Context) error {
	r.mu.Lock()
	r.closed = true
	list := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		list = append(list, s)
	}
	r.mu.Unlock()

	for _, s := range list {
		s.Close("server shutting down")
	}
	for _, s := range list {
		select {
		case <-s.Done():
		case <-ctx.Done():
			return fmt.Errorf("registry shutdown: %w", ctx.Err())
		}
	}
	return nil
}
