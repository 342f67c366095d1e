// Command simbot connects a scripted player to a sync server. It creates or
// joins a room, readies up, and once the match starts it runs a parkour loop
// of sprints, jumps and slides at the client simulation rate. Useful for
// smoke-testing a server and for populating rooms during development.
package main

import (
	"context"
	"flag"
	"math"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/vaultrun/netcode/client"
	"github.com/vaultrun/netcode/client/movement"
	"github.com/vaultrun/netcode/wire"
)

// stepInterval is the client simulation step, 20 Hz.
const stepInterval = 50 * time.Millisecond

func main() {
	var (
		server   = flag.String("server", "ws://localhost:8080/ws", "websocket endpoint")
		roomCode = flag.String("room", "", "room code to join; empty creates a new room")
		name     = flag.String("name", "simbot", "display name")
		skin     = flag.Int("skin", 0, "skin index")
		duration = flag.Duration("duration", 60*time.Second, "how long to stay connected")
	)
	flag.Parse()

	if err := godotenv.Load(); err != nil {
		log.Debug().Msg("could not load .env file")
	}

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if level, err := zerolog.ParseLevel(os.Getenv("LOG_LEVEL")); err == nil && level != zerolog.NoLevel {
		zerolog.SetGlobalLevel(level)
	}

	dialCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	c, err := client.Dial(dialCtx, *server)
	cancel()
	if err != nil {
		log.Fatal().Err(err).Str("server", *server).Msg("could not reach server")
	}
	defer c.Close()

	if *roomCode == "" {
		err = c.CreateRoom(*name, *skin)
	} else {
		err = c.JoinRoom(*roomCode, *name, *skin)
	}
	if err != nil {
		log.Fatal().Err(err).Msg("could not enter a room")
	}
	log.Info().
		Str("room_code", c.RoomCode()).
		Str("client_id", c.ClientID()).
		Msg("in room; share the code to add players")

	if err := c.SetReady(true); err != nil {
		log.Fatal().Err(err).Msg("could not ready up")
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	b := newBot(c.Spawn())
	ticker := time.NewTicker(stepInterval)
	defer ticker.Stop()
	stop := time.After(*duration)
	events := c.Events()

	for {
		select {
		case sig := <-sigChan:
			log.Info().Str("signal", sig.String()).Msg("leaving room")
			leave(c)
			return
		case <-stop:
			log.Info().Msg("duration elapsed, leaving room")
			leave(c)
			return
		case <-c.Done():
			log.Info().Msg("connection closed")
			return
		case ev, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			logEvent(ev)
		case <-ticker.C:
			if state, _ := c.GameState(); state != wire.GamePlaying {
				continue
			}
			b.step(stepInterval.Seconds())
			if err := c.SendTransform(b.transform()); err != nil {
				log.Error().Err(err).Msg("transform send failed")
				return
			}
			smoothRemotes(c, stepInterval.Seconds(), b.steps()%20 == 0)
		}
	}
}

// smoothRemotes advances every remote player's interpolator one step, the
// same call a renderer makes per frame, and logs one pose a second.
func smoothRemotes(c *client.Client, dt float64, logPose bool) {
	snap := c.Snapshot()
	for id := range snap.Players {
		if id == c.ClientID() {
			continue
		}
		pos, yaw, ok := c.RemotePose(id, dt)
		if ok && logPose {
			log.Info().
				Str("player_id", id).
				Float64("x", pos.X).
				Float64("y", pos.Y).
				Float64("z", pos.Z).
				Float64("yaw", yaw).
				Msg("remote pose")
		}
	}
}

func leave(c *client.Client) {
	if err := c.Leave(); err != nil {
		return
	}
	select {
	case <-c.Done():
	case <-time.After(2 * time.Second):
	}
}

func logEvent(ev client.Event) {
	switch p := ev.Payload.(type) {
	case wire.PlayerAddedPayload:
		log.Info().Str("player", p.Player.Name).Msg("player joined")
	case wire.PlayerRemovedPayload:
		log.Info().Str("player_id", p.ID).Msg("player left")
	case wire.GameStateChangedPayload:
		log.Info().Str("state", p.State.String()).Msg("game state changed")
	case wire.CountdownTickPayload:
		log.Info().Int("value", p.Value).Msg("countdown")
	case wire.SessionClosedPayload:
		log.Info().Str("reason", p.Reason).Msg("session closed")
	}
}

// bot integrates the locomotion machine over a flat test course. Heading
// drifts slowly so bots spread out instead of stacking on one line.
type bot struct {
	machine   *movement.Machine
	pos       wire.Vec3
	yaw       float64
	grounded  bool
	elapsed   float64
	stepCount int
}

func newBot(spawn wire.Vec3) *bot {
	return &bot{
		machine:  movement.NewMachine(movement.DefaultParams()),
		pos:      spawn,
		grounded: true,
	}
}

func (b *bot) step(dt float64) {
	in := b.script()
	b.machine.Step(in, dt)

	heading := b.yaw * math.Pi / 180
	speed := b.machine.HorizontalSpeed()
	b.pos.X += math.Sin(heading) * speed * dt
	b.pos.Z += math.Cos(heading) * speed * dt

	b.pos.Y += b.machine.VerticalVelocity() * dt
	if b.pos.Y <= 0 {
		b.pos.Y = 0
		b.grounded = true
	} else {
		b.grounded = false
	}

	b.yaw = math.Mod(b.yaw+12*dt, 360)
	b.elapsed += dt
	b.stepCount++
}

func (b *bot) steps() int { return b.stepCount }

// script is a six second loop: sprint, jump, sprint, slide, walk, pause.
// Jump and Slide are edges, so their windows span exactly one step.
func (b *bot) script() movement.Input {
	phase := math.Mod(b.elapsed, 6)
	in := movement.Input{MoveZ: 1, Run: true, Grounded: b.grounded}
	switch {
	case phase < 2:
	case phase < 2.05:
		in.Jump = true
	case phase < 3.95:
	case phase < 4:
		// Shift down one step early; a slide chains off walk, not run.
		in.Run = false
	case phase < 4.05:
		in.Run = false
		in.Slide = true
	case phase < 5:
		in.Run = false
	default:
		in.MoveZ = 0
		in.Run = false
	}
	return in
}

func (b *bot) transform() wire.UpdateTransformPayload {
	return wire.UpdateTransformPayload{
		X:        b.pos.X,
		Y:        b.pos.Y,
		Z:        b.pos.Z,
		RotY:     b.yaw,
		State:    b.machine.State(),
		Grounded: b.grounded,
	}
}
