package session

import (
	"github.com/google/uuid"

	"github.com/vaultrun/netcode/wire"
)

// command is one serialized unit of work for the session loop. Timer and
// ticker fires enter the same loop through their own channels, so every
// state mutation happens on the loop goroutine in arrival order.
type command interface{}

type joinCmd struct {
	conn  Conn
	req   JoinRequest
	reply chan joinReply
}

type joinReply struct {
	info JoinInfo
	err  error
}

type leaveCmd struct {
	clientID uuid.UUID
}

type readyCmd struct {
	clientID uuid.UUID
	ready    bool
}

type transformCmd struct {
	clientID uuid.UUID
	payload  wire.UpdateTransformPayload
}

type viewCmd struct {
	reply chan View
}

type closeCmd struct {
	reason string
}
