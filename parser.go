// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package tframe

// parserState enumerates the byte-driven state machine states, from
// awaiting the start-of-frame byte through the trailing data checksum
// (TFState_SOF..TFState_DATA_CKSUM in TinyFrame.h).
type parserState uint8

const (
	stateAwaitSOF parserState = iota
	stateReadingID
	stateReadingLen
	stateReadingType
	stateReadingHeaderCksum
	stateReadingData
	stateReadingDataCksum
)

// parser is the incremental byte-stream state machine. One parser is owned
// exclusively by its Engine; Accept/AcceptByte drive it, Tick ages out
// stalled partial frames, and reset never touches listener tables.
type parser struct {
	opts *Options

	state parserState
	acc   fieldAccumulator

	id, typ, length uint32

	headerCksum Checksum
	dataCksum   Checksum
	refCksum    fieldAccumulator // reads the on-wire reference checksum bytes

	buf     []byte
	rxi     uint32
	discard bool

	// idle is true when no bytes of a new frame have been accumulated yet
	// (equivalent to stateAwaitSOF when SOF is enabled; with SOF disabled,
	// true only before the first id byte of a frame arrives). The timeout
	// watchdog never fires while idle.
	idle bool

	timeoutRemaining uint32
}

func newParser(opts *Options) *parser {
	p := &parser{
		opts: opts,
		buf:  make([]byte, opts.RxBufferCap),
	}
	if opts.Checksum != nil {
		p.headerCksum = opts.Checksum()
		p.dataCksum = opts.Checksum()
	} else {
		p.headerCksum = NewNoneChecksum()
		p.dataCksum = NewNoneChecksum()
	}
	p.resetState()
	return p
}

// resetState returns the parser to stateAwaitSOF (or stateReadingID if SOF
// is disabled) without touching listener tables.
func (p *parser) resetState() {
	p.idle = true
	if p.opts.SOFEnabled {
		p.state = stateAwaitSOF
	} else {
		p.state = stateReadingID
		p.acc.reset(p.opts.IDWidth)
	}
	p.timeoutRemaining = p.opts.ParserTimeoutTicks
}

// tick ages the partial-frame watchdog. If it reaches zero while a frame
// is in progress, the parser silently resets — no error is surfaced, the
// next valid byte begins a fresh frame.
func (p *parser) tick(e *Engine) {
	if p.opts.ParserTimeoutTicks == 0 || p.idle {
		return
	}
	if p.timeoutRemaining == 0 {
		return
	}
	p.timeoutRemaining--
	if p.timeoutRemaining != 0 {
		return
	}
	e.logDebug("parser timeout, resetting partial frame")
	p.resetState()
}

// accept feeds every byte of buffer into the state machine, dispatching
// any frames that complete along the way.
func (e *Engine) accept(buffer []byte) {
	for _, b := range buffer {
		e.acceptByte(b)
	}
}

// acceptByte feeds a single byte into the parser. Any byte arrival resets
// the parser timeout watchdog to its configured maximum.
func (e *Engine) acceptByte(b byte) {
	p := &e.parser
	if !p.idle {
		p.timeoutRemaining = p.opts.ParserTimeoutTicks
	}

	switch p.state {
	case stateAwaitSOF:
		if p.opts.SOFEnabled && b != p.opts.SOF {
			return
		}
		p.idle = false
		p.timeoutRemaining = p.opts.ParserTimeoutTicks
		p.headerCksum.Reset()
		if p.opts.SOFEnabled {
			p.headerCksum.Update(b)
		}
		p.acc.reset(p.opts.IDWidth)
		p.state = stateReadingID

	case stateReadingID:
		if p.idle {
			// SOF is disabled: this is the first byte of a new frame.
			p.idle = false
			p.timeoutRemaining = p.opts.ParserTimeoutTicks
			p.headerCksum.Reset()
		}
		p.headerCksum.Update(b)
		if p.acc.feed(b) {
			p.id = p.acc.value()
			p.acc.reset(p.opts.LenWidth)
			p.state = stateReadingLen
		}

	case stateReadingLen:
		p.headerCksum.Update(b)
		if p.acc.feed(b) {
			p.length = p.acc.value()
			p.acc.reset(p.opts.TypeWidth)
			p.state = stateReadingType
		}

	case stateReadingType:
		p.headerCksum.Update(b)
		if p.acc.feed(b) {
			p.typ = p.acc.value()
			e.afterHeaderFields()
		}

	case stateReadingHeaderCksum:
		if p.refCksum.feed(b) {
			want := maskToWidth(p.refCksum.value(), p.headerCksum.Width())
			got := maskToWidth(p.headerCksum.Value(), p.headerCksum.Width())
			if want != got {
				e.logDebug("header checksum mismatch", errHeaderChecksum)
				p.resetState()
				return
			}
			e.afterHeaderChecksumOK()
		}

	case stateReadingData:
		if !p.discard {
			p.buf[p.rxi] = b
		}
		p.dataCksum.Update(b)
		p.rxi++
		if p.rxi == p.length {
			e.afterData()
		}

	case stateReadingDataCksum:
		if p.refCksum.feed(b) {
			want := maskToWidth(p.refCksum.value(), p.dataCksum.Width())
			got := maskToWidth(p.dataCksum.Value(), p.dataCksum.Width())
			if want != got {
				e.logDebug("data checksum mismatch", errDataChecksum)
				p.resetState()
				return
			}
			e.completeFrame()
		}
	}
}

// afterHeaderFields runs once id/len/type have all been decoded: it starts
// the header checksum verification phase if one is configured, or proceeds
// straight to the post-header state otherwise.
func (e *Engine) afterHeaderFields() {
	p := &e.parser
	if p.headerCksum.Width() > 0 {
		p.refCksum.reset(widthFromBytes(p.headerCksum.Width()))
		p.state = stateReadingHeaderCksum
		return
	}
	e.afterHeaderChecksumOK()
}

// afterHeaderChecksumOK runs once the header region is fully validated (or
// header checksums are disabled): it starts the data phase, or completes
// a zero-length frame immediately.
func (e *Engine) afterHeaderChecksumOK() {
	p := &e.parser
	if p.length == 0 {
		e.completeFrame()
		return
	}
	p.discard = int(p.length) > len(p.buf)
	if p.discard {
		e.logDebug("payload oversize, discarding frame")
	}
	p.dataCksum.Reset()
	p.rxi = 0
	p.state = stateReadingData
}

// afterData runs once the full payload has arrived.
func (e *Engine) afterData() {
	p := &e.parser
	if p.dataCksum.Width() > 0 {
		p.refCksum.reset(widthFromBytes(p.dataCksum.Width()))
		p.state = stateReadingDataCksum
		return
	}
	e.completeFrame()
}

// completeFrame hands the decoded frame to the dispatcher, then resets the
// parser to await the next frame. Payload is empty if discard was set.
func (e *Engine) completeFrame() {
	p := &e.parser
	var payload []byte
	if !p.discard && p.length > 0 {
		payload = make([]byte, p.length)
		copy(payload, p.buf[:p.length])
	}
	msg := Msg{ID: p.id, Type: p.typ, Data: payload}
	e.dispatch(&msg)
	p.resetState()
}

func widthFromBytes(n int) Width {
	switch n {
	case 1:
		return Width1
	case 2:
		return Width2
	default:
		return Width4
	}
}

// ResetParser resets the byte-stream state machine. It does not affect
// registered listeners.
func (e *Engine) ResetParser() {
	e.parser.resetState()
}
