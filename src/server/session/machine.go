package session

import (
	"errors"
	"fmt"
	"time"
)

// State is the screen the client should be showing.
type State string

const (
	StateLoading State = "loading"
	StateFound   State = "found"
	StateList    State = "list"
	StateMap     State = "map"
)

// Event is an input to the machine, from the client or from a timer.
type Event string

const (
	EventDataReady      Event = "data_ready"
	EventRevealElapsed  Event = "reveal_elapsed"
	EventConfirm        Event = "confirm"
	EventShowMap        Event = "show_map"
	EventBack           Event = "back"
	EventMarkerSelected Event = "marker_selected"
	EventRefreshTick    Event = "refresh_tick"
)

// EffectKind names the side effect an Effect asks for.
type EffectKind string

const (
	EffectScheduleReveal EffectKind = "schedule_reveal"
	EffectScheduleAd     EffectKind = "schedule_ad"
	EffectShowAd         EffectKind = "show_ad"
	EffectRefresh        EffectKind = "refresh"
)

// Effect is work the machine asks its owner to perform.
type Effect struct {
	Kind  EffectKind
	Delay time.Duration
}

const (
	DefaultRevealDelay = 2 * time.Second
	DefaultListAdDelay = 1 * time.Second

	// MarkerAdEvery shows an ad on every n-th marker selection.
	MarkerAdEvery = 4
)

var ErrInvalidTransition = errors.New("invalid transition")

// Machine is the view-state orchestrator. It is a plain value: Apply returns
// the next machine and leaves the receiver untouched.
type Machine struct {
	State            State
	ListAdShown      bool
	MarkerSelections int

	RevealDelay time.Duration
	ListAdDelay time.Duration
}

// NewMachine returns a machine in StateLoading. Non-positive delays take the
// defaults.
func NewMachine(revealDelay, listAdDelay time.Duration) Machine {
	if revealDelay <= 0 {
		revealDelay = DefaultRevealDelay
	}
	if listAdDelay <= 0 {
		listAdDelay = DefaultListAdDelay
	}
	return Machine{
		State:       StateLoading,
		RevealDelay: revealDelay,
		ListAdDelay: listAdDelay,
	}
}

// Apply returns the machine after ev together with the effects to run.
// Events that do not apply in the current state yield ErrInvalidTransition
// and an unchanged machine. A refresh tick is accepted in every state.
func (m Machine) Apply(ev Event) (Machine, []Effect, error) {
	if ev == EventRefreshTick {
		return m, []Effect{{Kind: EffectRefresh}}, nil
	}

	next := m
	switch {
	case m.State == StateLoading && ev == EventDataReady:
		return next, []Effect{{Kind: EffectScheduleReveal, Delay: m.RevealDelay}}, nil

	case m.State == StateLoading && ev == EventRevealElapsed:
		next.State = StateFound
		return next, nil, nil

	case m.State == StateFound && ev == EventConfirm:
		next.State = StateList
		if m.ListAdShown {
			return next, nil, nil
		}
		next.ListAdShown = true
		return next, []Effect{{Kind: EffectScheduleAd, Delay: m.ListAdDelay}}, nil

	case m.State == StateList && ev == EventConfirm:
		return next, nil, nil

	case m.State == StateList && ev == EventShowMap:
		next.State = StateMap
		return next, nil, nil

	case m.State == StateMap && ev == EventBack:
		next.State = StateList
		return next, nil, nil

	case m.State == StateMap && ev == EventMarkerSelected:
		next.MarkerSelections++
		if next.MarkerSelections%MarkerAdEvery == 0 {
			return next, []Effect{{Kind: EffectShowAd}}, nil
		}
		return next, nil, nil
	}

	return m, nil, fmt.Errorf("%w: %s in state %s", ErrInvalidTransition, ev, m.State)
}
