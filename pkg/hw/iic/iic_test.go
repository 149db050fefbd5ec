package iic

import (
	"encoding/binary"
	"errors"
	"log/slog"
	"sync"
	"testing"

	"github.com/Nakildias/sc0710/pkg/hw/regs"
	"github.com/Nakildias/sc0710/pkg/hw/simcard"
)

func newTestTransport() (*Transport, *simcard.Card) {
	card := simcard.New()
	return New(card, &sync.Mutex{}, slog.Default()), card
}

func TestWriteReadStatusBlock(t *testing.T) {
	tr, card := newTestTransport()
	card.SetLocked(simcard.SignalParams{
		TimingH: 2200, TimingV: 1125,
		Width: 1920, Height: 1080,
		Colorimetry: 1,
		RateX100:    6000,
	})

	b, err := tr.WriteRead(regs.MCUAddr, 0x00, 0x1a)
	if err != nil {
		t.Fatalf("WriteRead: %v", err)
	}
	if len(b) != 0x1a {
		t.Fatalf("len = %d, want %d", len(b), 0x1a)
	}
	if got := binary.LittleEndian.Uint16(b[0x06:]); got != 2200 {
		t.Errorf("timing_h = %d, want 2200", got)
	}
	if got := binary.LittleEndian.Uint16(b[0x04:]); got != 1125 {
		t.Errorf("timing_v = %d, want 1125", got)
	}
	if got := binary.LittleEndian.Uint16(b[0x0a:]); got != 1920 {
		t.Errorf("width = %d, want 1920", got)
	}
	if got := binary.LittleEndian.Uint16(b[0x10:]); got != 6000 {
		t.Errorf("rate = %d, want 6000", got)
	}
}

func TestWriteReadSubaddress(t *testing.T) {
	tr, card := newTestTransport()
	card.SetProcamp(0x80, 0x84, 0x80, -3)

	b, err := tr.WriteRead(regs.MCUAddr, 0x12, 5)
	if err != nil {
		t.Fatalf("WriteRead: %v", err)
	}
	hue := int8(-3)
	want := []byte{0, 0x80, 0x84, 0x80, byte(hue)}
	for i := range want {
		if b[i] != want[i] {
			t.Errorf("b[%d] = 0x%02x, want 0x%02x", i, b[i], want[i])
		}
	}
}

func TestWriteReadNoAck(t *testing.T) {
	tr, card := newTestTransport()
	card.NoAck = true

	_, err := tr.WriteRead(regs.MCUAddr, 0x00, 0x1a)
	if !errors.Is(err, ErrAckTimeout) {
		t.Errorf("err = %v, want ErrAckTimeout", err)
	}
}

func TestWriteReadBadStatus(t *testing.T) {
	tr, card := newTestTransport()
	card.BadStatus = true

	_, err := tr.WriteRead(regs.MCUAddr, 0x00, 0x1a)
	if !errors.Is(err, ErrBadStatus) {
		t.Errorf("err = %v, want ErrBadStatus", err)
	}
}

func TestWriteReadShortAnswer(t *testing.T) {
	tr, card := newTestTransport()
	card.SetBlock(0x30, []byte{0xaa, 0xbb})

	// Asking for more bytes than the MCU answers with must time out, not
	// hang or fabricate data.
	_, err := tr.WriteRead(regs.MCUAddr, 0x30, 8)
	if !errors.Is(err, ErrReadTimeout) {
		t.Errorf("err = %v, want ErrReadTimeout", err)
	}
}
