package gateway

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/vaultrun/netcode/internal/room"
	"github.com/vaultrun/netcode/internal/session"
	"github.com/vaultrun/netcode/wire"
)

const maxDisplayName = 24

// binding ties an upgraded connection to its session membership.
type binding struct {
	conn     *Connection
	sess     *session.Session
	clientID uuid.UUID
}

func (g *Service) handleWS(w http.ResponseWriter, r *http.Request) {
	sock, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Msg("websocket upgrade failed")
		return
	}

	conn := newConnection(sock, g.cfg)
	go conn.writePump()

	g.open.Add(1)
	defer g.open.Add(-1)

	log.Info().
		Str("connection_id", conn.id.String()).
		Str("remote", r.RemoteAddr).
		Msg("websocket connected")

	g.serve(r.Context(), conn)
}

// serve is the connection's read loop. The first accepted message must
// create or join a session; everything after routes into that session.
func (g *Service) serve(ctx context.Context, conn *Connection) {
	defer conn.Close()

	conn.sock.SetReadLimit(g.cfg.MaxMessageSize)
	conn.sock.SetReadDeadline(time.Now().Add(g.cfg.ReadTimeout))
	conn.sock.SetPongHandler(func(string) error {
		conn.sock.SetReadDeadline(time.Now().Add(g.cfg.ReadTimeout))
		return nil
	})

	b, err := g.bind(ctx, conn)
	if err != nil {
		return
	}
	// Disconnect means leave. A second leave after an explicit one is a
	// no-op in the session.
	defer b.sess.Leave(b.clientID)

	for {
		_, data, err := conn.sock.ReadMessage()
		if err != nil {
			log.Debug().
				Err(fmt.Errorf("%w: %v", ErrConnectionLost, err)).
				Str("connection_id", conn.id.String()).
				Msg("websocket read closed")
			return
		}
		conn.sock.SetReadDeadline(time.Now().Add(g.cfg.ReadTimeout))
		g.dispatch(b, data)
	}
}

// bind waits for a valid CreateSession or JoinSession. Failures answer the
// offending client in-band and keep listening, so a client can retry a bad
// room code without reconnecting.
func (g *Service) bind(ctx context.Context, conn *Connection) (*binding, error) {
	for {
		_, data, err := conn.sock.ReadMessage()
		if err != nil {
			return nil, err
		}
		conn.sock.SetReadDeadline(time.Now().Add(g.cfg.ReadTimeout))

		payload, err := parseControl(data)
		if err != nil {
			g.sendError(conn, wire.CodeMalformedMessage, "unreadable message")
			continue
		}

		switch p := payload.(type) {
		case wire.CreateSessionPayload:
			sess, info, err := g.registry.Create(ctx, conn, session.JoinRequest{
				Name: displayName(p.DisplayName),
				Skin: p.SkinID,
				Ack:  wire.MsgCreateAck,
			})
			if err != nil {
				g.sendError(conn, errorCode(err), "could not create session")
				continue
			}
			return &binding{conn: conn, sess: sess, clientID: info.ClientID}, nil

		case wire.JoinSessionPayload:
			sess, err := g.resolveTarget(p)
			if err != nil {
				g.sendError(conn, errorCode(err), "could not resolve room")
				continue
			}
			info, err := sess.Join(ctx, conn, session.JoinRequest{
				Name: displayName(p.DisplayName),
				Skin: p.SkinID,
				Ack:  wire.MsgJoinAck,
			})
			if err != nil {
				g.sendError(conn, errorCode(err), "could not join room")
				continue
			}
			return &binding{conn: conn, sess: sess, clientID: info.ClientID}, nil

		default:
			g.sendError(conn, wire.CodeMalformedMessage, "expected CreateSession or JoinSession")
		}
	}
}

func (g *Service) dispatch(b *binding, data []byte) {
	payload, err := parseControl(data)
	if err != nil {
		g.sendError(b.conn, wire.CodeMalformedMessage, "unreadable message")
		return
	}

	switch p := payload.(type) {
	case wire.SetReadyPayload:
		b.sess.SetReady(b.clientID, p.Ready)
	case wire.UpdateTransformPayload:
		b.sess.UpdateTransform(b.clientID, p)
	case nil: // LeaveSession carries no payload
		b.sess.Leave(b.clientID)
	default:
		g.sendError(b.conn, wire.CodeMalformedMessage, "already bound to a session")
	}
}

func parseControl(data []byte) (any, error) {
	env, err := wire.Decode(data)
	if err != nil {
		return nil, err
	}
	return wire.ParsePayload(env)
}

func (g *Service) resolveTarget(p wire.JoinSessionPayload) (*session.Session, error) {
	if p.Code != "" {
		return g.registry.ResolveCode(p.Code)
	}
	if p.SessionID != "" {
		return g.registry.ResolveID(p.SessionID)
	}
	return nil, room.ErrInvalidCode
}

func (g *Service) sendError(conn *Connection, code wire.ErrorCode, msg string) {
	conn.SendControl(wire.MustEncode(wire.MsgError, wire.ErrorPayload{Code: code, Message: msg}))
}

// errorCode maps internal failures onto the wire taxonomy.
func errorCode(err error) wire.ErrorCode {
	switch {
	case errors.Is(err, session.ErrRoomFull):
		return wire.CodeRoomFull
	case errors.Is(err, room.ErrInvalidCode):
		return wire.CodeInvalidRoomCode
	case errors.Is(err, room.ErrNotFound), errors.Is(err, session.ErrSessionClosed):
		return wire.CodeRoomNotFound
	default:
		return wire.CodeMalformedMessage
	}
}

func displayName(raw string) string {
	name := strings.TrimSpace(raw)
	if name == "" {
		return "player"
	}
	if len(name) > maxDisplayName {
		name = name[:maxDisplayName]
	}
	return name
}
