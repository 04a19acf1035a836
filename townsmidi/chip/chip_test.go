package chip

import (
	"bytes"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/valerio/go-townsmidi/townsmidi/reg"
)

func TestRegisterFile_Writes(t *testing.T) {
	r := NewRegisterFile(WithHistory())
	require.NoError(t, r.Init())
	assert.True(t, r.Initialized())

	r.Callback(OpWriteRegister, 1, 0x41, 0x2A)
	r.Callback(OpWriteRegister, 0, 0xA4, 0x25)
	r.Callback(OpWriteRegister, 0, 0xA0, 0x5B)

	assert.Equal(t, uint8(0x2A), r.Read(1, 0x41))
	assert.Equal(t, uint8(0x2A), r.VoiceRegister(4, reg.TotalLevel))
	assert.Equal(t, uint16(0x255B), r.Frequency(0))
	assert.Equal(t, []Write{
		{Part: 1, Address: 0x41, Value: 0x2A},
		{Part: 0, Address: 0xA4, Value: 0x25},
		{Part: 0, Address: 0xA0, Value: 0x5B},
	}, r.Writes())

	r.ClearWrites()
	assert.Empty(t, r.Writes())
}

func TestRegisterFile_IgnoresMalformedWrites(t *testing.T) {
	r := NewRegisterFile(WithHistory())

	r.Callback(OpWriteRegister, 2, 0x30, 0x01) // only parts 0 and 1 exist
	r.Callback(OpWriteRegister, -1, 0x30, 0x01)
	r.Callback(OpWriteRegister, 0, 0x30)

	assert.Empty(t, r.Writes())
	assert.Equal(t, uint8(0), r.Read(5, 0x30))
}

func TestRegisterFile_KeyOnTracking(t *testing.T) {
	r := NewRegisterFile()

	for v := range reg.NumVoices {
		r.Callback(OpWriteRegister, 0, int(reg.KeyOnOff), int(reg.KeyValue(v, reg.KeyOnAllOp)))
		assert.True(t, r.KeyOn(v), "voice %d should be keyed on", v)
	}

	r.Callback(OpWriteRegister, 0, int(reg.KeyOnOff), int(reg.KeyValue(4, reg.KeyOff)))
	assert.False(t, r.KeyOn(4))
	assert.True(t, r.KeyOn(3))
}

func TestRegisterFile_ResetAndConfig(t *testing.T) {
	r := NewRegisterFile()
	r.Callback(OpWriteRegister, 0, 0x30, 0x07)
	r.Callback(OpWriteRegister, 0, int(reg.KeyOnOff), 0xF0)

	r.Callback(OpReset)
	r.Callback(OpSetBoundary, 255, 1)
	r.Callback(OpSetExtension, 8)
	r.SetSoundEffectChanMask(^0x3f)

	assert.Equal(t, 1, r.Resets())
	assert.Equal(t, uint8(0), r.Read(0, 0x30))
	assert.False(t, r.KeyOn(0))
	assert.Equal(t, []ConfigCall{
		{Op: OpSetBoundary, Args: []int{255, 1}},
		{Op: OpSetExtension, Args: []int{8}},
	}, r.ConfigCalls())
	assert.Equal(t, ^0x3f, r.EffectMask())
}

func TestRegisterFile_InitError(t *testing.T) {
	boom := errors.New("no device")
	r := NewRegisterFile(WithInitError(boom))

	assert.ErrorIs(t, r.Init(), boom)
	assert.False(t, r.Initialized())
}

func TestLogSink_ForwardsAndLogs(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	r := NewRegisterFile()
	s := NewLogSink(r, WithLogger(logger))

	require.NoError(t, s.Init())
	s.Callback(OpWriteRegister, 1, 0xB4, 0xC0)
	s.Callback(OpSetExtension, 8)
	s.SetSoundEffectChanMask(0x3f)

	assert.Equal(t, uint8(0xC0), r.Read(1, 0xB4))
	assert.Equal(t, 0x3f, r.EffectMask())
	assert.Contains(t, buf.String(), "reg=0xB4")
	assert.Contains(t, buf.String(), "val=0xC0")
	assert.Contains(t, buf.String(), "op=extension")
}

func TestLogSink_InitFailure(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	boom := errors.New("unplugged")
	s := NewLogSink(NewRegisterFile(WithInitError(boom)), WithLogger(logger))

	assert.ErrorIs(t, s.Init(), boom)
	assert.Contains(t, buf.String(), "unplugged")
}

func TestTee(t *testing.T) {
	a := NewRegisterFile()
	b := NewRegisterFile()
	dev := Tee(a, b)

	require.NoError(t, dev.Init())
	dev.Callback(OpWriteRegister, 0, 0x40, 0x11)
	dev.SetSoundEffectChanMask(7)

	for _, r := range []*RegisterFile{a, b} {
		assert.True(t, r.Initialized())
		assert.Equal(t, uint8(0x11), r.Read(0, 0x40))
		assert.Equal(t, 7, r.EffectMask())
	}
}

func TestTee_InitStopsAtFirstFailure(t *testing.T) {
	boom := errors.New("busy")
	later := NewRegisterFile()
	dev := Tee(NewRegisterFile(WithInitError(boom)), later)

	assert.ErrorIs(t, dev.Init(), boom)
	assert.False(t, later.Initialized())
}
