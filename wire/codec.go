package wire

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
)

// ErrMalformedMessage is returned for any inbound frame that cannot be
// decoded into a known message.
var ErrMalformedMessage = errors.New("malformed message")

// Encode marshals a payload into a framed control message.
func Encode(t MessageType, payload any) ([]byte, error) {
	env := Envelope{Type: t}
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("marshal %s payload: %w", t, err)
		}
		env.Payload = data
	}
	data, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("marshal %s envelope: %w", t, err)
	}
	return data, nil
}

// MustEncode is Encode for payloads that cannot fail to marshal; it panics
// otherwise and is only used with wire-defined payload structs.
func MustEncode(t MessageType, payload any) []byte {
	data, err := Encode(t, payload)
	if err != nil {
		panic(err)
	}
	return data
}

// Decode parses a framed control message without touching its payload.
func Decode(data []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Envelope{}, fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}
	if env.Type == "" {
		return Envelope{}, fmt.Errorf("%w: missing type", ErrMalformedMessage)
	}
	return env, nil
}

// ParsePayload decodes the payload of a client-to-server envelope into its
// typed form.
func ParsePayload(env Envelope) (any, error) {
	switch env.Type {
	case MsgCreateSession:
		var payload CreateSessionPayload
		if err := json.Unmarshal(env.Payload, &payload); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedMessage, err)
		}
		return payload, nil

	case MsgJoinSession:
		var payload JoinSessionPayload
		if err := json.Unmarshal(env.Payload, &payload); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedMessage, err)
		}
		return payload, nil

	case MsgLeaveSession:
		return nil, nil

	case MsgSetReady:
		var payload SetReadyPayload
		if err := json.Unmarshal(env.Payload, &payload); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedMessage, err)
		}
		return payload, nil

	case MsgUpdateTransform:
		var payload UpdateTransformPayload
		if err := json.Unmarshal(env.Payload, &payload); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedMessage, err)
		}
		if !payload.State.Valid() {
			return nil, fmt.Errorf("%w: movement state %d", ErrMalformedMessage, payload.State)
		}
		return payload, nil

	default:
		return nil, fmt.Errorf("%w: unknown type %q", ErrMalformedMessage, env.Type)
	}
}

// ParseServerPayload decodes the payload of a server-to-client envelope into
// its typed form. Clients use this; servers use ParsePayload.
func ParseServerPayload(env Envelope) (any, error) {
	switch env.Type {
	case MsgCreateAck:
		var payload CreateAckPayload
		if err := json.Unmarshal(env.Payload, &payload); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedMessage, err)
		}
		return payload, nil

	case MsgJoinAck:
		var payload JoinAckPayload
		if err := json.Unmarshal(env.Payload, &payload); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedMessage, err)
		}
		return payload, nil

	case MsgPlayerAdded:
		var payload PlayerAddedPayload
		if err := json.Unmarshal(env.Payload, &payload); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedMessage, err)
		}
		return payload, nil

	case MsgPlayerRemoved:
		var payload PlayerRemovedPayload
		if err := json.Unmarshal(env.Payload, &payload); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedMessage, err)
		}
		return payload, nil

	case MsgGameStateChanged:
		var payload GameStateChangedPayload
		if err := json.Unmarshal(env.Payload, &payload); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedMessage, err)
		}
		return payload, nil

	case MsgCountdownTick:
		var payload CountdownTickPayload
		if err := json.Unmarshal(env.Payload, &payload); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedMessage, err)
		}
		return payload, nil

	case MsgError:
		var payload ErrorPayload
		if err := json.Unmarshal(env.Payload, &payload); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedMessage, err)
		}
		return payload, nil

	case MsgSessionClosed:
		var payload SessionClosedPayload
		if err := json.Unmarshal(env.Payload, &payload); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedMessage, err)
		}
		return payload, nil

	default:
		return nil, fmt.Errorf("%w: unknown type %q", ErrMalformedMessage, env.Type)
	}
}

// EncodeStateFrame marshals a binary state frame.
func EncodeStateFrame(f StateFrame) ([]byte, error) {
	data, err := msgpack.Marshal(f)
	if err != nil {
		return nil, fmt.Errorf("marshal state frame: %w", err)
	}
	return data, nil
}

// DecodeStateFrame unmarshals a binary state frame. Patch payloads come back
// as generic maps; delta.Apply accepts both forms.
func DecodeStateFrame(data []byte) (StateFrame, error) {
	var f StateFrame
	if err := msgpack.Unmarshal(data, &f); err != nil {
		return StateFrame{}, fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}
	if f.Kind != FrameSnapshot && f.Kind != FrameDelta {
		return StateFrame{}, fmt.Errorf("%w: frame kind %d", ErrMalformedMessage, f.Kind)
	}
	return f, nil
}
