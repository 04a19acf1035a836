package player

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"time"

	"gitlab.com/gomidi/midi/v2/smf"
)

// ErrTimeFormat is returned for files timed in SMPTE frames.
var ErrTimeFormat = errors.New("player: only metric time formats are supported")

const defaultBPM = 120.0

// Event is a playable message at an absolute song time.
type Event struct {
	At      time.Duration
	Track   int
	Message []byte
}

// Song is a standard MIDI file flattened to one time ordered event list.
// Tempo changes are folded into the event times.
type Song struct {
	TicksPerQuarter uint16
	Events          []Event
}

// LoadFile reads a standard MIDI file from disk.
func LoadFile(path string) (*Song, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("player: %w", err)
	}
	defer f.Close()
	return Load(f)
}

// Load reads a standard MIDI file and merges its tracks.
func Load(r io.Reader) (*Song, error) {
	s, err := smf.ReadFrom(r)
	if err != nil {
		return nil, fmt.Errorf("player: read smf: %w", err)
	}
	mt, ok := s.TimeFormat.(smf.MetricTicks)
	if !ok {
		return nil, ErrTimeFormat
	}

	type tickEvent struct {
		tick  uint64
		track int
		msg   smf.Message
	}
	var merged []tickEvent
	for ti, track := range s.Tracks {
		var tick uint64
		for _, ev := range track {
			tick += uint64(ev.Delta)
			merged = append(merged, tickEvent{tick: tick, track: ti, msg: ev.Message})
		}
	}
	// stable keeps file order for events on the same tick
	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].tick < merged[j].tick
	})

	song := &Song{TicksPerQuarter: uint16(mt)}
	var (
		at       time.Duration
		lastTick uint64
		bpm      = defaultBPM
	)
	for _, ev := range merged {
		at += ticksToDuration(ev.tick-lastTick, song.TicksPerQuarter, bpm)
		lastTick = ev.tick

		var tempo float64
		if ev.msg.GetMetaTempo(&tempo) {
			if tempo > 0 {
				bpm = tempo
			}
			continue
		}
		if ev.msg.IsMeta() || len(ev.msg) == 0 {
			continue
		}
		song.Events = append(song.Events, Event{
			At:      at,
			Track:   ev.track,
			Message: append([]byte(nil), ev.msg...),
		})
	}
	return song, nil
}

func ticksToDuration(ticks uint64, tpq uint16, bpm float64) time.Duration {
	if ticks == 0 || tpq == 0 {
		return 0
	}
	quarter := float64(time.Minute) / bpm
	return time.Duration(float64(ticks) * quarter / float64(tpq))
}

// Duration is the time of the last event.
func (s *Song) Duration() time.Duration {
	if len(s.Events) == 0 {
		return 0
	}
	return s.Events[len(s.Events)-1].At
}
