package server

import (
	"context"
	"errors"
	"time"

	"github.com/MeKo-Tech/keystone/internal/editor"
	"github.com/MeKo-Tech/keystone/internal/effect"
	"github.com/MeKo-Tech/keystone/internal/geom"
)

// ErrQueueFull is returned when a session produces commands faster than the
// tick loop applies them.
var ErrQueueFull = errors.New("command queue full")

// command is one queued editing operation. Exactly one field is set.
type command struct {
	pointer   *editor.PointerEvent
	selectIdx []int
	nudge     geom.Point
	reset     bool
	edit      *bool
}

func (s *Server) enqueue(cmd command) error {
	select {
	case s.commands <- cmd:
		commandQueueDepth.Set(float64(len(s.commands)))
		return nil
	default:
		websocketMessagesTotal.WithLabelValues("dropped").Inc()
		return ErrQueueFull
	}
}

// frameBuilder folds queued commands into controller frames while keeping
// their arrival order: a command that the controller would otherwise apply
// earlier than one already collected starts a new frame.
type frameBuilder struct {
	frame effect.Frame
	used  bool
	late  bool // reset, select or nudge collected
}

func (b *frameBuilder) empty() bool { return !b.used }

func (b *frameBuilder) take() effect.Frame {
	f := b.frame
	*b = frameBuilder{}
	return f
}

// add reports false when cmd must go into the next frame.
func (b *frameBuilder) add(cmd command) bool {
	switch {
	case cmd.pointer != nil:
		if b.late {
			return false
		}
		b.frame.Pointers = append(b.frame.Pointers, *cmd.pointer)
	case cmd.reset:
		if b.frame.Select != nil || b.frame.Nudge != (geom.Point{}) {
			return false
		}
		b.frame.Reset = true
		b.late = true
	case cmd.selectIdx != nil:
		if b.frame.Nudge != (geom.Point{}) {
			return false
		}
		b.frame.Select = cmd.selectIdx
		b.late = true
	default:
		b.frame.Nudge = b.frame.Nudge.Add(cmd.nudge)
		b.late = true
	}
	b.used = true
	return true
}

// Step applies every queued command and broadcasts the result. It returns
// the number of commands applied.
func (s *Server) Step() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	wasEditing := s.ctrl.Editing()
	changed := false
	applied := 0
	var b frameBuilder

	flush := func() {
		if b.empty() {
			return
		}
		_, c, err := s.ctrl.Tick(b.take())
		if err != nil {
			s.logger.Warn("Editing commands rejected", "error", err)
		}
		changed = changed || c
	}

	for draining := true; draining; {
		select {
		case cmd := <-s.commands:
			applied++
			if cmd.edit != nil {
				flush()
				if err := s.ctrl.SetEditing(*cmd.edit); err != nil {
					s.logger.Error("Failed to change edit mode", "error", err)
				}
				continue
			}
			if !b.add(cmd) {
				flush()
				b.add(cmd)
			}
		default:
			draining = false
		}
	}
	flush()
	commandQueueDepth.Set(float64(len(s.commands)))

	switch {
	case changed:
		s.broadcastLocked()
	case wasEditing != s.ctrl.Editing():
		s.broadcastKindLocked(MsgState)
	}
	return applied
}

// Run applies queued commands every tick until ctx is done.
func (s *Server) Run(ctx context.Context) {
	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()

	s.logger.Info("Editing loop started", "tick", s.tick)
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Editing loop stopped")
			return
		case <-ticker.C:
			s.Step()
		}
	}
}
