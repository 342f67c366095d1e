package wire

import (
	"errors"
	"reflect"
	"testing"
)

func TestDecodeRejectsBadFrames(t *testing.T) {
	cases := []struct {
		name string
		data string
	}{
		{"not json", "movement update"},
		{"missing type", `{"payload":{"ready":true}}`},
		{"empty type", `{"type":"","payload":{}}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := Decode([]byte(tc.data)); !errors.Is(err, ErrMalformedMessage) {
				t.Fatalf("Decode(%q) error = %v, want ErrMalformedMessage", tc.data, err)
			}
		})
	}
}

func TestParsePayloadRoundTrip(t *testing.T) {
	sent := JoinSessionPayload{Code: "7GHX", DisplayName: "ember", SkinID: 3}
	data, err := Encode(MsgJoinSession, sent)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	env, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if env.Type != MsgJoinSession {
		t.Fatalf("Type = %s, want %s", env.Type, MsgJoinSession)
	}
	payload, err := ParsePayload(env)
	if err != nil {
		t.Fatalf("ParsePayload: %v", err)
	}
	if got := payload.(JoinSessionPayload); got != sent {
		t.Fatalf("payload = %+v, want %+v", got, sent)
	}
}

func TestParsePayloadTransformFromRawJSON(t *testing.T) {
	raw := `{"type":"UpdateTransform","payload":{"x":1.5,"y":0,"z":-2,"rot_y":90,"state":2,"grounded":true}}`
	env, err := Decode([]byte(raw))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	payload, err := ParsePayload(env)
	if err != nil {
		t.Fatalf("ParsePayload: %v", err)
	}
	want := UpdateTransformPayload{X: 1.5, Z: -2, RotY: 90, State: StateRun, Grounded: true}
	if got := payload.(UpdateTransformPayload); got != want {
		t.Fatalf("payload = %+v, want %+v", got, want)
	}
}

func TestParsePayloadRejectsUnknownMovementState(t *testing.T) {
	raw := `{"type":"UpdateTransform","payload":{"x":0,"y":0,"z":0,"rot_y":0,"state":9,"grounded":true}}`
	env, err := Decode([]byte(raw))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if _, err := ParsePayload(env); !errors.Is(err, ErrMalformedMessage) {
		t.Fatalf("ParsePayload error = %v, want ErrMalformedMessage", err)
	}
}

func TestParsePayloadLeaveCarriesNothing(t *testing.T) {
	env, err := Decode([]byte(`{"type":"LeaveSession"}`))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	payload, err := ParsePayload(env)
	if err != nil {
		t.Fatalf("ParsePayload: %v", err)
	}
	if payload != nil {
		t.Fatalf("payload = %v, want nil", payload)
	}
}

func TestParsePayloadRejectsServerTypes(t *testing.T) {
	env := Envelope{Type: MsgJoinAck, Payload: []byte(`{}`)}
	if _, err := ParsePayload(env); !errors.Is(err, ErrMalformedMessage) {
		t.Fatalf("ParsePayload error = %v, want ErrMalformedMessage", err)
	}
}

func TestParseServerPayloadTypes(t *testing.T) {
	cases := []struct {
		typ     MessageType
		payload any
	}{
		{MsgCountdownTick, CountdownTickPayload{Value: 3}},
		{MsgError, ErrorPayload{Code: CodeRoomFull, Message: "room is full"}},
		{MsgPlayerAdded, PlayerAddedPayload{Player: PlayerSnapshot{ID: "p1", Name: "ember", SkinID: 2, X: -3, Grounded: true}}},
		{MsgGameStateChanged, GameStateChangedPayload{State: GameCountdown}},
		{MsgSessionClosed, SessionClosedPayload{Reason: "empty"}},
	}
	for _, tc := range cases {
		t.Run(string(tc.typ), func(t *testing.T) {
			env, err := Decode(MustEncode(tc.typ, tc.payload))
			if err != nil {
				t.Fatalf("Decode: %v", err)
			}
			got, err := ParseServerPayload(env)
			if err != nil {
				t.Fatalf("ParseServerPayload: %v", err)
			}
			if !reflect.DeepEqual(got, tc.payload) {
				t.Fatalf("payload = %+v, want %+v", got, tc.payload)
			}
		})
	}
}

func TestParseServerPayloadRejectsClientTypes(t *testing.T) {
	env := Envelope{Type: MsgSetReady, Payload: []byte(`{"ready":true}`)}
	if _, err := ParseServerPayload(env); !errors.Is(err, ErrMalformedMessage) {
		t.Fatalf("ParseServerPayload error = %v, want ErrMalformedMessage", err)
	}
}

func TestSnapshotFrameRoundTrip(t *testing.T) {
	frame := StateFrame{
		Kind: FrameSnapshot,
		Tick: 42,
		Snapshot: &SessionSnapshot{
			GameState: GameCountdown,
			Countdown: 2,
			Players: map[string]PlayerSnapshot{
				"p1": {ID: "p1", Name: "ember", SkinID: 1, X: -3, State: StateRun, Grounded: true, Ready: true},
				"p2": {ID: "p2", Name: "dash", X: 1.25, RotY: 180, State: StateSlide},
			},
		},
	}
	data, err := EncodeStateFrame(frame)
	if err != nil {
		t.Fatalf("EncodeStateFrame: %v", err)
	}
	got, err := DecodeStateFrame(data)
	if err != nil {
		t.Fatalf("DecodeStateFrame: %v", err)
	}
	if !reflect.DeepEqual(got, frame) {
		t.Fatalf("frame = %+v, want %+v", got, frame)
	}
}

func TestDeltaFramePatchesSurviveTransport(t *testing.T) {
	frame := StateFrame{
		Kind: FrameDelta,
		Tick: 7,
		Delta: &Delta{
			Removed: []string{"p2"},
			Patches: []Patch{
				{Kind: PatchPos, PlayerID: "p1", Payload: PosPayload{X: 4, Y: 1, Z: -2}},
				{Kind: PatchPhase, Payload: PhasePayload{GameState: GamePlaying}},
			},
		},
	}
	data, err := EncodeStateFrame(frame)
	if err != nil {
		t.Fatalf("EncodeStateFrame: %v", err)
	}
	got, err := DecodeStateFrame(data)
	if err != nil {
		t.Fatalf("DecodeStateFrame: %v", err)
	}
	if got.Kind != FrameDelta || got.Tick != 7 || got.Delta == nil {
		t.Fatalf("frame = %+v, want delta at tick 7", got)
	}
	if len(got.Delta.Removed) != 1 || got.Delta.Removed[0] != "p2" {
		t.Fatalf("Removed = %v, want [p2]", got.Delta.Removed)
	}
	if len(got.Delta.Patches) != 2 {
		t.Fatalf("len(Patches) = %d, want 2", len(got.Delta.Patches))
	}

	// Typed payloads come back as generic maps; field names must hold.
	pos := got.Delta.Patches[0]
	if pos.Kind != PatchPos || pos.PlayerID != "p1" {
		t.Fatalf("patch[0] = %+v, want pos patch for p1", pos)
	}
	fields, ok := pos.Payload.(map[string]any)
	if !ok {
		t.Fatalf("pos payload decoded as %T, want map", pos.Payload)
	}
	if _, ok := fields["x"]; !ok {
		t.Fatalf("pos payload %v is missing field x", fields)
	}
}

func TestDecodeStateFrameRejectsBadInput(t *testing.T) {
	if _, err := DecodeStateFrame([]byte("not msgpack")); !errors.Is(err, ErrMalformedMessage) {
		t.Fatalf("garbage error = %v, want ErrMalformedMessage", err)
	}

	data, err := EncodeStateFrame(StateFrame{Kind: 9})
	if err != nil {
		t.Fatalf("EncodeStateFrame: %v", err)
	}
	if _, err := DecodeStateFrame(data); !errors.Is(err, ErrMalformedMessage) {
		t.Fatalf("bad kind error = %v, want ErrMalformedMessage", err)
	}
}
