package session

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/vaultrun/netcode/delta"
	"github.com/vaultrun/netcode/wire"
)

// Clock is the interface we use for time operations.
// In production, use clockwork.NewRealClock(). In tests, a fake.
type Clock interface {
	Now() time.Time
	NewTimer(d time.Duration) clockwork.Timer
	NewTicker(d time.Duration) clockwork.Ticker
}

// Session is one room. A single goroutine consumes the command channel, the
// countdown timer and the patch ticker in one select loop; that goroutine is
// the only writer of the fields below the marker.
type Session struct {
	id    uuid.UUID
	code  string
	cfg   Config
	clock Clock

	cmds chan command
	done chan struct{}

	onDispose   func(*Session)
	encodeFrame func(wire.StateFrame) ([]byte, error)

	// Owned by the run loop.
	state          wire.GameState
	countdown      int
	players        map[uuid.UUID]*Player
	conns          map[uuid.UUID]Conn
	spawnCursor    int
	startedAt      time.Time
	tick           uint64
	lastBroadcast  wire.SessionSnapshot
	countdownTimer clockwork.Timer
	closing        bool
}

func newSession(id uuid.UUID, code string, cfg Config, clock Clock, onDispose func(*Session)) *Session {
	return &Session{
		id:          id,
		code:        code,
		cfg:         cfg,
		clock:       clock,
		cmds:        make(chan command, cfg.CommandBuffer),
		done:        make(chan struct{}),
		onDispose:   onDispose,
		encodeFrame: wire.EncodeStateFrame,
		state:       wire.GameWaiting,
		players:     make(map[uuid.UUID]*Player),
		conns:       make(map[uuid.UUID]Conn),
		lastBroadcast: wire.SessionSnapshot{
			Players: map[string]wire.PlayerSnapshot{},
		},
	}
}

// ID returns the session id.
func (s *Session) ID() uuid.UUID { return s.id }

// RoomCode returns the session's directory code.
func (s *Session) RoomCode() string { return s.code }

// Done closes once the session has fully disposed.
func (s *Session) Done() <-chan struct{} { return s.done }

// Join enqueues a join and waits for the loop's reply. Cancellation covers
// the enqueue only: an enqueued join always runs, so the reply is awaited
// even after cancel and the caller holds the clientID it must later Leave.
func (s *Session) Join(ctx context.Context, conn Conn, req JoinRequest) (JoinInfo, error) {
	cmd := joinCmd{conn: conn, req: req, reply: make(chan joinReply, 1)}
	select {
	case s.cmds <- cmd:
	case <-s.done:
		return JoinInfo{}, ErrSessionClosed
	case <-ctx.Done():
		return JoinInfo{}, ctx.Err()
	}
	select {
	case r := <-cmd.reply:
		return r.info, r.err
	case <-s.done:
		// The loop may have replied right before disposing.
		select {
		case r := <-cmd.reply:
			return r.info, r.err
		default:
		}
		return JoinInfo{}, ErrSessionClosed
	}
}

// Leave enqueues a departure. Dropped silently if the session already closed;
// disposal removes every player anyway.
func (s *Session) Leave(clientID uuid.UUID) {
	select {
	case s.cmds <- leaveCmd{clientID: clientID}:
	case <-s.done:
	}
}

// SetReady enqueues a lobby ready toggle.
func (s *Session) SetReady(clientID uuid.UUID, ready bool) {
	select {
	case s.cmds <- readyCmd{clientID: clientID, ready: ready}:
	case <-s.done:
	}
}

// UpdateTransform enqueues a client-authoritative transform update.
func (s *Session) UpdateTransform(clientID uuid.UUID, payload wire.UpdateTransformPayload) {
	select {
	case s.cmds <- transformCmd{clientID: clientID, payload: payload}:
	case <-s.done:
	}
}

// View reads session state through the command loop, so the read observes
// the same ordering as every write.
func (s *Session) View(ctx context.Context) (View, error) {
	cmd := viewCmd{reply: make(chan View, 1)}
	select {
	case s.cmds <- cmd:
	case <-s.done:
		return View{}, ErrSessionClosed
	case <-ctx.Done():
		return View{}, ctx.Err()
	}
	select {
	case v := <-cmd.reply:
		return v, nil
	case <-s.done:
		select {
		case v := <-cmd.reply:
			return v, nil
		default:
		}
		return View{}, ErrSessionClosed
	case <-ctx.Done():
		return View{}, ctx.Err()
	}
}

// Close asks the loop to notify clients and dispose.
func (s *Session) Close(reason string) {
	select {
	case s.cmds <- closeCmd{reason: reason}:
	case <-s.done:
	}
}

func (s *Session) run() {
	patchTicker := s.clock.NewTicker(s.cfg.PatchInterval)
	defer patchTicker.Stop()
	defer close(s.done)

	log.Info().
		Str("session_id", s.id.String()).
		Str("room_code", s.code).
		Msg("session started")

	for !s.closing {
		var countdownCh <-chan time.Time
		if s.countdownTimer != nil {
			countdownCh = s.countdownTimer.Chan()
		}

		select {
		case cmd := <-s.cmds:
			s.handle(cmd)
		case <-countdownCh:
			s.handleCountdownTick()
		case <-patchTicker.Chan():
			s.broadcastPatch()
		}

		if s.closing {
			return
		}
		if err := s.checkInvariants(); err != nil {
			log.Error().
				Err(err).
				Str("session_id", s.id.String()).
				Msg("session state corrupted")
			s.shutdown("internal error")
		}
	}
}

func (s *Session) handle(cmd command) {
	switch c := cmd.(type) {
	case joinCmd:
		s.handleJoin(c)
	case leaveCmd:
		s.handleLeave(c.clientID)
	case readyCmd:
		s.handleReady(c.clientID, c.ready)
	case transformCmd:
		s.handleTransform(c.clientID, c.payload)
	case viewCmd:
		c.reply <- s.view()
	case closeCmd:
		s.shutdown(c.reason)
	}
}

func (s *Session) handleJoin(c joinCmd) {
	if len(s.players) >= s.cfg.MaxOccupancy {
		c.reply <- joinReply{err: ErrRoomFull}
		return
	}

	id := uuid.New()
	var spawn wire.Vec3
	if len(s.cfg.SpawnPoints) > 0 {
		spawn = s.cfg.SpawnPoints[s.spawnCursor%len(s.cfg.SpawnPoints)]
		s.spawnCursor++
	}
	p := &Player{
		ID:       id,
		Name:     c.req.Name,
		SkinID:   s.cfg.normalizeSkin(c.req.Skin),
		Pos:      spawn,
		State:    wire.StateIdle,
		Grounded: true,
	}
	s.players[id] = p
	if c.conn != nil {
		s.conns[id] = c.conn
	}

	snap := s.snapshot()
	if c.conn != nil && c.req.Ack != "" {
		s.welcome(c.conn, c.req.Ack, id, spawn, snap)
	}
	s.sendOthers(id, wire.MustEncode(wire.MsgPlayerAdded, wire.PlayerAddedPayload{Player: p.snapshot()}))
	c.reply <- joinReply{info: JoinInfo{
		SessionID: s.id,
		RoomCode:  s.code,
		ClientID:  id,
		Spawn:     spawn,
		Snapshot:  snap,
		Tick:      s.tick,
	}}

	log.Info().
		Str("session_id", s.id.String()).
		Str("client_id", id.String()).
		Str("name", c.req.Name).
		Int("occupancy", len(s.players)).
		Msg("player joined")

	s.recomputeLobby()
}

// welcome sends the ack and the initial full snapshot down the joining
// connection. Running inside the loop guarantees both precede any broadcast
// to that connection.
func (s *Session) welcome(conn Conn, ack wire.MessageType, id uuid.UUID, spawn wire.Vec3, snap wire.SessionSnapshot) {
	switch ack {
	case wire.MsgCreateAck:
		conn.SendControl(wire.MustEncode(wire.MsgCreateAck, wire.CreateAckPayload{
			SessionID: s.id.String(),
			RoomCode:  s.code,
			ClientID:  id.String(),
			Spawn:     spawn,
		}))
	default:
		conn.SendControl(wire.MustEncode(wire.MsgJoinAck, wire.JoinAckPayload{
			SessionID: s.id.String(),
			RoomCode:  s.code,
			ClientID:  id.String(),
			Spawn:     spawn,
		}))
	}

	frame, err := s.encodeFrame(wire.StateFrame{Kind: wire.FrameSnapshot, Tick: s.tick, Snapshot: &snap})
	if err != nil {
		log.Error().Err(err).Str("session_id", s.id.String()).Msg("encode welcome snapshot failed")
		return
	}
	conn.SendState(frame)
}

func (s *Session) handleLeave(clientID uuid.UUID) {
	p, ok := s.players[clientID]
	if !ok {
		return
	}
	delete(s.players, clientID)
	conn := s.conns[clientID]
	delete(s.conns, clientID)
	if conn != nil {
		conn.Close()
	}

	s.broadcastControl(wire.MustEncode(wire.MsgPlayerRemoved, wire.PlayerRemovedPayload{ID: clientID.String()}))

	log.Info().
		Str("session_id", s.id.String()).
		Str("client_id", clientID.String()).
		Str("name", p.Name).
		Int("occupancy", len(s.players)).
		Msg("player left")

	if len(s.players) == 0 {
		s.dispose("empty")
		return
	}
	s.recomputeLobby()
}

func (s *Session) handleReady(clientID uuid.UUID, ready bool) {
	p, ok := s.players[clientID]
	if !ok {
		return
	}
	if s.state == wire.GamePlaying {
		log.Debug().
			Err(ErrInvalidStateTransition).
			Str("session_id", s.id.String()).
			Str("client_id", clientID.String()).
			Msg("ready toggle after match start ignored")
		return
	}
	if p.Ready == ready {
		return
	}
	p.Ready = ready
	s.recomputeLobby()
}

func (s *Session) handleTransform(clientID uuid.UUID, payload wire.UpdateTransformPayload) {
	p, ok := s.players[clientID]
	if !ok {
		return
	}
	p.Pos = wire.Vec3{X: payload.X, Y: payload.Y, Z: payload.Z}
	p.RotY = payload.RotY
	p.State = payload.State
	p.Grounded = payload.Grounded
}

// recomputeLobby applies the lobby transition table after any event that can
// change the ready quorum.
func (s *Session) recomputeLobby() {
	switch s.state {
	case wire.GameWaiting:
		if len(s.players) >= 2 && s.allReady() {
			s.startCountdown()
		}
	case wire.GameCountdown:
		if len(s.players) < 2 || !s.allReady() {
			s.cancelCountdown()
		}
	case wire.GamePlaying:
		// terminal
	}
}

func (s *Session) allReady() bool {
	for _, p := range s.players {
		if !p.Ready {
			return false
		}
	}
	return true
}

func (s *Session) startCountdown() {
	s.state = wire.GameCountdown
	s.countdown = s.cfg.CountdownTicks
	s.countdownTimer = s.clock.NewTimer(s.cfg.CountdownInterval)

	s.broadcastControl(wire.MustEncode(wire.MsgGameStateChanged, wire.GameStateChangedPayload{State: s.state}))
	s.broadcastControl(wire.MustEncode(wire.MsgCountdownTick, wire.CountdownTickPayload{Value: s.countdown}))

	log.Info().
		Str("session_id", s.id.String()).
		Int("ticks", s.countdown).
		Msg("countdown started")
}

func (s *Session) cancelCountdown() {
	s.stopCountdownTimer()
	s.state = wire.GameWaiting
	s.countdown = 0

	s.broadcastControl(wire.MustEncode(wire.MsgGameStateChanged, wire.GameStateChangedPayload{State: s.state}))

	log.Info().
		Str("session_id", s.id.String()).
		Msg("countdown cancelled")
}

func (s *Session) handleCountdownTick() {
	if s.state != wire.GameCountdown {
		// A fire that raced its own cancellation.
		return
	}
	next := s.countdown - 1
	if next <= 0 {
		s.stopCountdownTimer()
		s.state = wire.GamePlaying
		s.countdown = 0
		s.startedAt = s.clock.Now()

		s.broadcastControl(wire.MustEncode(wire.MsgGameStateChanged, wire.GameStateChangedPayload{State: s.state}))

		log.Info().
			Str("session_id", s.id.String()).
			Int("occupancy", len(s.players)).
			Msg("match started")
		return
	}
	s.countdown = next
	s.countdownTimer.Reset(s.cfg.CountdownInterval)
	s.broadcastControl(wire.MustEncode(wire.MsgCountdownTick, wire.CountdownTickPayload{Value: next}))
}

func (s *Session) stopCountdownTimer() {
	if s.countdownTimer != nil {
		s.countdownTimer.Stop()
		s.countdownTimer = nil
	}
}

// broadcastPatch runs on every patch tick: diff against the last broadcast,
// send the delta to healthy connections and a fresh full snapshot to any
// connection whose queue overflowed since the last tick.
func (s *Session) broadcastPatch() {
	current := s.snapshot()
	d := delta.Diff(s.lastBroadcast, current)

	needSnap := false
	for _, c := range s.conns {
		if c.NeedsResync() {
			needSnap = true
			break
		}
	}
	if d.Empty() && !needSnap {
		s.lastBroadcast = current
		return
	}

	// Tick and lastBroadcast commit only after every frame encodes; a failed
	// encode leaves the delta pending for the next tick.
	tick := s.tick + 1
	var deltaFrame, snapFrame []byte
	if !d.Empty() {
		data, err := s.encodeFrame(wire.StateFrame{Kind: wire.FrameDelta, Tick: tick, Delta: &d})
		if err != nil {
			log.Error().Err(err).Str("session_id", s.id.String()).Msg("encode delta frame failed")
			return
		}
		deltaFrame = data
	}
	if needSnap {
		data, err := s.encodeFrame(wire.StateFrame{Kind: wire.FrameSnapshot, Tick: tick, Snapshot: &current})
		if err != nil {
			log.Error().Err(err).Str("session_id", s.id.String()).Msg("encode snapshot frame failed")
			return
		}
		snapFrame = data
	}
	s.tick = tick
	s.lastBroadcast = current

	for _, c := range s.conns {
		switch {
		case snapFrame != nil && c.TakeResync():
			c.SendState(snapFrame)
		case c.NeedsResync():
			// Overflow raced the scan above; the snapshot goes out next tick.
		case deltaFrame != nil:
			c.SendState(deltaFrame)
		}
	}
}

// dispose tears the session down from inside the loop. Ticker stop, registry
// removal and code release all happen within the event that emptied the
// room, so no tick can interleave.
func (s *Session) dispose(reason string) {
	s.stopCountdownTimer()
	s.closing = true
	if s.onDispose != nil {
		s.onDispose(s)
	}

	log.Info().
		Str("session_id", s.id.String()).
		Str("room_code", s.code).
		Str("reason", reason).
		Msg("session disposed")
}

// shutdown notifies every bound client with a terminal signal, then disposes.
func (s *Session) shutdown(reason string) {
	msg := wire.MustEncode(wire.MsgSessionClosed, wire.SessionClosedPayload{Reason: reason})
	for _, c := range s.conns {
		c.SendControl(msg)
		c.Close()
	}
	s.dispose(reason)
}

func (s *Session) checkInvariants() error {
	if len(s.players) > s.cfg.MaxOccupancy {
		return fmt.Errorf("occupancy %d exceeds max %d", len(s.players), s.cfg.MaxOccupancy)
	}
	if s.countdown > 0 && s.state != wire.GameCountdown {
		return fmt.Errorf("countdown %d outside Countdown state %s", s.countdown, s.state)
	}
	if s.state == wire.GameCountdown && s.countdownTimer == nil {
		return fmt.Errorf("countdown state without a ticker")
	}
	return nil
}

func (s *Session) snapshot() wire.SessionSnapshot {
	players := make(map[string]wire.PlayerSnapshot, len(s.players))
	for _, p := range s.players {
		players[p.ID.String()] = p.snapshot()
	}
	return wire.SessionSnapshot{
		GameState: s.state,
		Countdown: s.countdown,
		Players:   players,
	}
}

func (s *Session) view() View {
	return View{
		SessionID: s.id,
		RoomCode:  s.code,
		GameState: s.state,
		Countdown: s.countdown,
		Occupancy: len(s.players),
		Capacity:  s.cfg.MaxOccupancy,
		StartedAt: s.startedAt,
		Snapshot:  s.snapshot(),
	}
}

func (s *Session) broadcastControl(data []byte) {
	for _, c := range s.conns {
		c.SendControl(data)
	}
}

func (s *Session) sendOthers(except uuid.UUID, data []byte) {
	for id, c := range s.conns {
		if id == except {
			continue
		}
		c.SendControl(data)
	}
}
