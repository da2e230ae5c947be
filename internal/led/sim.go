package led

import (
	"sync"

	"github.com/rs/zerolog/log"
)

// EventKind names a recorded hardware call.
type EventKind string

const (
	EvReset   EventKind = "reset"
	EvEnable  EventKind = "enable"
	EvWrite   EventKind = "write"
	EvSelect  EventKind = "select"
	EvRelease EventKind = "release"
)

// Event is one call made against the simulator.
type Event struct {
	Kind  EventKind
	Chip  int
	Layer int
	Group [4]byte
}

// Sim is a Sink and RowSelect that records calls instead of driving
// hardware. With Log set, it prints a one-line summary every Every sweeps.
type Sim struct {
	mu     sync.Mutex
	events []Event
	keep   bool

	Log   bool
	Every int

	sweeps int
	lit    int
}

// NewSim returns a simulator. With record set every call is kept for
// inspection; otherwise only counters are maintained.
func NewSim(record bool) *Sim {
	return &Sim{keep: record, Every: 1000}
}

func (s *Sim) add(e Event) {
	if s.keep {
		s.events = append(s.events, e)
	}
}

func (s *Sim) ResetAll() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.add(Event{Kind: EvReset})
	return nil
}

func (s *Sim) EnableOutputs() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.add(Event{Kind: EvEnable})
	return nil
}

func (s *Sim) WriteChannelGroup(chip int, group [4]byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.add(Event{Kind: EvWrite, Chip: chip, Group: group})
	for _, b := range group {
		for off := 0; off < 8; off += 2 {
			s.lit += int(b>>off) & 1
		}
	}
	return nil
}

func (s *Sim) Select(layer int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.add(Event{Kind: EvSelect, Layer: layer})
	if layer == 0 {
		s.sweeps++
		if s.Log && s.Every > 0 && s.sweeps%s.Every == 0 {
			log.Debug().Int("sweep", s.sweeps).Int("lit", s.lit).Msg("sim frame")
		}
		s.lit = 0
	}
	return nil
}

func (s *Sim) Release() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.add(Event{Kind: EvRelease})
	return nil
}

func (s *Sim) Close() error { return nil }

// Events returns a copy of the recorded calls.
func (s *Sim) Events() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Event(nil), s.events...)
}

// Sweeps counts how many times layer 0 was selected.
func (s *Sim) Sweeps() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sweeps
}

// Forget drops recorded events and counters.
func (s *Sim) Forget() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = nil
	s.sweeps = 0
	s.lit = 0
}
