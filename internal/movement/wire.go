package movement

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

// Wire format: an 8 byte little-endian header followed by the body.
//
//	version u16 | kind u8 | flags u8 | body length u32
//
// Every body starts with the entity id (u32). Coordinates are float32.
const (
	WireVersion uint16 = 1
	HeaderSize         = 8
	MaxFrameSize       = 256
)

const (
	flagPath     byte = 1 << 0
	flagVelocity byte = 1 << 1
)

var (
	ErrShortFrame  = errors.New("movement: short frame")
	ErrVersion     = errors.New("movement: unsupported wire version")
	ErrUnknownKind = errors.New("movement: unknown message kind")
)

// Header frames one wire message.
type Header struct {
	Version uint16
	Kind    Kind
	Flags   byte
	Length  uint32
}

// Encode appends the wire form of m to dst. Delta bodies carry either the
// path payload or the velocity payload, never both, and a stationary delta
// carries neither.
func Encode(dst []byte, m Message) []byte {
	var flags byte
	body := make([]byte, 0, 32)
	body = binary.LittleEndian.AppendUint32(body, m.Entity)

	switch m.Kind {
	case KindDelta:
		d := m.Delta
		body = appendVec(body, d.Position)
		body = appendFloat(body, d.Speed)
		switch {
		case d.HasPath:
			flags |= flagPath
			body = appendVec(body, d.Destination)
			body = appendFloat(body, d.StoppingDistance)
		case !d.Velocity.IsZero():
			flags |= flagVelocity
			body = appendVec(body, d.Velocity)
		}
	default:
		body = appendVec(body, m.Position)
	}

	var hdr [HeaderSize]byte
	binary.LittleEndian.PutUint16(hdr[0:2], WireVersion)
	hdr[2] = byte(m.Kind)
	hdr[3] = flags
	binary.LittleEndian.PutUint32(hdr[4:8], uint32(len(body)))
	dst = append(dst, hdr[:]...)
	return append(dst, body...)
}

// Decode parses one frame. The audience is not on the wire and decodes as
// ToObservers.
func Decode(b []byte) (Message, error) {
	var m Message
	if len(b) < HeaderSize {
		return m, ErrShortFrame
	}
	h := Header{
		Version: binary.LittleEndian.Uint16(b[0:2]),
		Kind:    Kind(b[2]),
		Flags:   b[3],
		Length:  binary.LittleEndian.Uint32(b[4:8]),
	}
	if h.Version != WireVersion {
		return m, fmt.Errorf("%w: %d", ErrVersion, h.Version)
	}
	if h.Length > MaxFrameSize {
		return m, fmt.Errorf("frame too large: %d > %d", h.Length, MaxFrameSize)
	}
	body := b[HeaderSize:]
	if uint32(len(body)) < h.Length {
		return m, ErrShortFrame
	}
	r := reader{buf: body[:h.Length]}

	m.Kind = h.Kind
	m.Entity = r.uint32()
	switch h.Kind {
	case KindDelta:
		m.Delta.Position = r.vec()
		m.Delta.Speed = r.float()
		if h.Flags&flagPath != 0 {
			m.Delta.HasPath = true
			m.Delta.Destination = r.vec()
			m.Delta.StoppingDistance = r.float()
		} else if h.Flags&flagVelocity != 0 {
			m.Delta.Velocity = r.vec()
		}
	case KindWarp, KindReset, KindCorrection, KindPosition:
		m.Position = r.vec()
	default:
		return m, fmt.Errorf("%w: 0x%02x", ErrUnknownKind, byte(h.Kind))
	}
	if r.short {
		return Message{}, ErrShortFrame
	}
	return m, nil
}

func appendFloat(b []byte, f float64) []byte {
	return binary.LittleEndian.AppendUint32(b, math.Float32bits(float32(f)))
}

func appendVec(b []byte, v Vec2) []byte {
	return appendFloat(appendFloat(b, v.X), v.Y)
}

type reader struct {
	buf   []byte
	short bool
}

func (r *reader) uint32() uint32 {
	if len(r.buf) < 4 {
		r.short = true
		return 0
	}
	v := binary.LittleEndian.Uint32(r.buf)
	r.buf = r.buf[4:]
	return v
}

func (r *reader) float() float64 {
	return float64(math.Float32frombits(r.uint32()))
}

func (r *reader) vec() Vec2 {
	x := r.float()
	return Vec2{X: x, Y: r.float()}
}
