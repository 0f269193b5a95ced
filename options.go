// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package tframe

import "github.com/sirupsen/logrus"

// Width is the on-wire size, in bytes, of the id, type, or length field.
type Width uint8

const (
	Width1 Width = 1
	Width2 Width = 2
	Width4 Width = 4
)

func (w Width) valid() bool {
	return w == Width1 || w == Width2 || w == Width4
}

// max returns the largest value representable in w bytes.
func (w Width) max() uint32 {
	switch w {
	case Width1:
		return 1<<8 - 1
	case Width2:
		return 1<<16 - 1
	default:
		return 1<<32 - 1
	}
}

// Role is the peer role bit baked into the high bit of every id this engine
// allocates, so two peers generating ids concurrently cannot collide.
type Role uint8

const (
	RoleSlave  Role = 0
	RoleMaster Role = 1
)

// TxLocker guards the transmit path against re-entrant composition. TryLock
// must return false immediately if already held; it never blocks.
//
// This is the host-provided claim/release transmit mutex. The default
// implementation wraps sync.Mutex.TryLock, which is literally the stdlib
// primitive the interface is modeled after.
type TxLocker interface {
	TryLock() bool
	Unlock()
}

// Options configures an Engine. NewEngine starts from defaultOptions and
// applies each Option over it; a field set explicitly to its zero value
// stays zero (see NewEngine).
type Options struct {
	// IDWidth, TypeWidth, LenWidth are the on-wire widths of the respective
	// header fields. Must match the peer's configuration exactly.
	IDWidth   Width
	TypeWidth Width
	LenWidth  Width

	// Role fixes the high bit of every id this engine allocates.
	Role Role

	// Checksum is applied to both the header region and the payload region,
	// independently instantiated per region via Checksum.Reset semantics.
	// NewNoneChecksum() disables checksums entirely (no bytes on the wire).
	Checksum func() Checksum

	// SOF enables a literal start-of-frame byte preceding the header.
	SOFEnabled bool
	SOF        byte

	// RxBufferCap bounds the payload this engine can buffer on receive.
	// Frames whose declared length exceeds it are parsed and discarded
	// (PayloadOversize) so the parser resynchronizes on the next SOF.
	RxBufferCap int

	// TxBufferCap is the size of the internal composition buffer; payloads
	// larger than this are flushed to the write sink in multiple calls.
	TxBufferCap int

	// IDTableCap, TypeTableCap, GenTableCap size the three listener tables.
	IDTableCap   int
	TypeTableCap int
	GenTableCap  int

	// ParserTimeoutTicks is the number of Tick() calls a partial frame may
	// sit unfinished before the parser silently resets. Zero disables the
	// watchdog.
	ParserTimeoutTicks uint32

	// TxLock guards the composer; defaults to a sync.Mutex-backed locker.
	TxLock TxLocker

	// Logger receives debug-level notices for checksum mismatches, parser
	// timeouts, and oversize frames. Nil (the default) disables logging
	// entirely with zero overhead on the hot path.
	Logger *logrus.Logger

	// Write is the host-supplied byte sink. It is called synchronously and
	// is presumed either to succeed or to block; the engine never retries
	// or buffers beyond TxBufferCap on its behalf.
	Write func(p []byte) (int, error)
}

var defaultOptions = Options{
	IDWidth:            Width1,
	TypeWidth:          Width1,
	LenWidth:           Width2,
	Role:               RoleSlave,
	Checksum:           NewCRC16Checksum,
	SOFEnabled:         true,
	SOF:                0x01,
	RxBufferCap:        1024,
	TxBufferCap:        128,
	IDTableCap:         16,
	TypeTableCap:       16,
	GenTableCap:        4,
	ParserTimeoutTicks: 100,
}

// Option mutates an Options value; see the With* constructors below.
type Option func(*Options)

func WithIDWidth(w Width) Option   { return func(o *Options) { o.IDWidth = w } }
func WithTypeWidth(w Width) Option { return func(o *Options) { o.TypeWidth = w } }
func WithLenWidth(w Width) Option  { return func(o *Options) { o.LenWidth = w } }

// WithWidths sets all three header field widths at once.
func WithWidths(id, typ, length Width) Option {
	return func(o *Options) {
		o.IDWidth = id
		o.TypeWidth = typ
		o.LenWidth = length
	}
}

func WithRole(r Role) Option { return func(o *Options) { o.Role = r } }

// WithChecksum selects the checksum applied to both header and payload
// regions. Pass one of the New*Checksum constructors, e.g. WithChecksum(NewCRC32Checksum).
func WithChecksum(factory func() Checksum) Option {
	return func(o *Options) { o.Checksum = factory }
}

func WithSOF(b byte) Option        { return func(o *Options) { o.SOFEnabled = true; o.SOF = b } }
func WithoutSOF() Option           { return func(o *Options) { o.SOFEnabled = false } }
func WithRxBufferCap(n int) Option { return func(o *Options) { o.RxBufferCap = n } }
func WithTxBufferCap(n int) Option { return func(o *Options) { o.TxBufferCap = n } }

// WithListenerCaps sizes the id, type, and generic listener tables.
func WithListenerCaps(id, typ, generic int) Option {
	return func(o *Options) {
		o.IDTableCap = id
		o.TypeTableCap = typ
		o.GenTableCap = generic
	}
}

func WithParserTimeoutTicks(ticks uint32) Option {
	return func(o *Options) { o.ParserTimeoutTicks = ticks }
}

func WithTxLocker(l TxLocker) Option { return func(o *Options) { o.TxLock = l } }

// WithLogger attaches a structured logger for debug-level protocol notices
// (checksum mismatches, parser timeouts, oversize frames). These never
// affect control flow; they exist purely for host-side diagnostics.
func WithLogger(l *logrus.Logger) Option { return func(o *Options) { o.Logger = l } }

// WithWriter sets the host write-bytes sink consumed by the composer.
func WithWriter(w func(p []byte) (int, error)) Option {
	return func(o *Options) { o.Write = w }
}

// WithSerialDefaults bundles presets suited to a point-to-point serial link:
// SOF framing enabled (serial lines have no inherent packet boundary and
// benefit from explicit resync), a generous parser timeout to tolerate
// UART latency, and small listener tables typical of an embedded peer.
func WithSerialDefaults() Option {
	return func(o *Options) {
		o.SOFEnabled = true
		o.SOF = 0x01
		o.ParserTimeoutTicks = 100
		o.IDTableCap = 8
		o.TypeTableCap = 8
		o.GenTableCap = 2
	}
}

// WithSocketDefaults bundles presets suited to a socket or pipe transport:
// no parser watchdog (sockets don't suffer the silent mid-byte stalls a UART
// can), and larger tables and buffers typical of a host-side peer juggling
// many correlated requests at once. SOF framing is left to the caller.
func WithSocketDefaults() Option {
	return func(o *Options) {
		o.ParserTimeoutTicks = 0
		o.RxBufferCap = 16384
		o.TxBufferCap = 4096
		o.IDTableCap = 64
		o.TypeTableCap = 32
		o.GenTableCap = 8
	}
}
