package models

import (
	"errors"
	"fmt"
)

// Mode is the scheduling mode of a render scheduler. It also tags every
// queued FrameJob with the quality of service it was submitted under.
type Mode string

const (
	ModeInteractive Mode = "interactive" // Latest state only, stale work dropped
	ModeRecording   Mode = "recording"   // Interactive preview plus a durable copy of every state
	ModeRendering   Mode = "rendering"   // Exhaustive in-order drain at full quality
	ModeStopped     Mode = "stopped"     // Producer ignored; as a job tag, the worker sentinel
)

// ErrInvalidModeTransition is wrapped by every rejected transition.
var ErrInvalidModeTransition = errors.New("invalid mode transition")

// validModeTransitions maps from-mode to allowed to-modes
var validModeTransitions = map[Mode]map[Mode]bool{
	ModeStopped: {
		ModeInteractive: true, // Stopped → Interactive (start, resume, reset)
	},
	ModeInteractive: {
		ModeInteractive: true, // Interactive → Interactive (reset)
		ModeRecording:   true, // Interactive → Recording (startRecording)
		ModeStopped:     true, // Interactive → Stopped (stop, close)
	},
	ModeRecording: {
		ModeRendering:   true, // Recording → Rendering (endRecording with pending frames)
		ModeInteractive: true, // Recording → Interactive (endRecording with nothing pending, reset)
		ModeStopped:     true, // Recording → Stopped (stop, close)
	},
	ModeRendering: {
		ModeInteractive: true, // Rendering → Interactive (drain complete, reset)
		ModeStopped:     true, // Rendering → Stopped (stop, close)
	},
}

// ValidateModeTransition checks if a mode transition is valid
func ValidateModeTransition(from, to Mode) error {
	allowed, exists := validModeTransitions[from]
	if !exists {
		return fmt.Errorf("%w: unknown source mode %q", ErrInvalidModeTransition, from)
	}

	if !allowed[to] {
		return fmt.Errorf("%w: %s to %s", ErrInvalidModeTransition, from, to)
	}

	return nil
}

// IsValid reports whether m is one of the four known modes
func (m Mode) IsValid() bool {
	_, ok := validModeTransitions[m]
	return ok
}

func (m Mode) String() string {
	return string(m)
}

// IsInteractiveLike reports whether new submissions in this mode supersede
// in-flight work and should interrupt the current render.
func (m Mode) IsInteractiveLike() bool {
	return m == ModeInteractive || m == ModeRecording
}

// SubmissionTag returns the tag a freshly submitted job receives while the
// scheduler is in mode m. Only Recording keeps its own tag; Interactive and
// Rendering traffic is tagged Interactive. Rendering tags are created by the
// worker alone.
func (m Mode) SubmissionTag() Mode {
	if m == ModeRecording {
		return ModeRecording
	}
	return ModeInteractive
}
