package chip

import (
	"fmt"
	"log/slog"
)

// LogSink traces every hardware call at debug level before forwarding it.
// Handy for following the register stream of a song.
type LogSink struct {
	next   Interface
	logger *slog.Logger
}

type LogSinkOption func(*LogSink)

func WithLogger(logger *slog.Logger) LogSinkOption {
	return func(s *LogSink) { s.logger = logger }
}

// NewLogSink wraps next. A nil next only logs.
func NewLogSink(next Interface, opts ...LogSinkOption) *LogSink {
	s := &LogSink{
		next:   next,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *LogSink) Init() error {
	if s.next == nil {
		return nil
	}
	if err := s.next.Init(); err != nil {
		s.logger.Error("fm: init failed", "error", err)
		return err
	}
	return nil
}

func (s *LogSink) Callback(op Opcode, args ...int) {
	if w, ok := ParseWrite(args); ok && op == OpWriteRegister {
		s.logger.Debug("fm: write",
			"part", w.Part,
			"reg", fmt.Sprintf("0x%02X", w.Address),
			"val", fmt.Sprintf("0x%02X", w.Value))
	} else {
		s.logger.Debug("fm: callback", "op", op, "args", args)
	}
	if s.next != nil {
		s.next.Callback(op, args...)
	}
}

func (s *LogSink) SetSoundEffectChanMask(mask int) {
	s.logger.Debug("fm: sound effect mask", "mask", fmt.Sprintf("0x%X", mask))
	if s.next != nil {
		s.next.SetSoundEffectChanMask(mask)
	}
}

var _ Interface = (*LogSink)(nil)
