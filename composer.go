// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package tframe

import "sync"

// defaultTxLocker wraps sync.Mutex.TryLock, the stdlib primitive the
// claim/release transmit-lock interface is modeled after.
type defaultTxLocker struct{ mu sync.Mutex }

func (l *defaultTxLocker) TryLock() bool { return l.mu.TryLock() }
func (l *defaultTxLocker) Unlock()       { l.mu.Unlock() }

// alwaysLock is a plain-boolean TxLocker for single-threaded hosts that
// have no mutex to offer: it still refuses a nested TryLock while held, it
// just costs a field flip instead of a real mutex.
type alwaysLock struct{ held bool }

func (l *alwaysLock) TryLock() bool {
	if l.held {
		return false
	}
	l.held = true
	return true
}

func (l *alwaysLock) Unlock() { l.held = false }

// NewNoOpTxLocker returns a TxLocker backed by a plain boolean instead of a
// mutex, for hosts with no real lock to offer (e.g. a single-threaded
// embedded peer). Select it with WithTxLocker(NewNoOpTxLocker()); it still
// guards against re-entrant composition on the same goroutine, but gives
// no protection if multiple goroutines do call in concurrently.
func NewNoOpTxLocker() TxLocker { return &alwaysLock{} }

// composer holds the transmit-side state shared by the send-all and
// multipart composition paths.
type composer struct {
	opts *Options

	lock TxLocker

	buf   []byte
	pos   int
	total int64

	cksum Checksum

	// transmitting is true from a multipart begin call through its matching
	// MultipartClose, forbidding a second multipart send from starting
	// while one is already in flight.
	transmitting bool
}

func newComposer(opts *Options) *composer {
	c := &composer{
		opts: opts,
		lock: opts.TxLock,
		buf:  make([]byte, opts.TxBufferCap),
	}
	if c.lock == nil {
		c.lock = &defaultTxLocker{}
	}
	if opts.Checksum != nil {
		c.cksum = opts.Checksum()
	} else {
		c.cksum = NewNoneChecksum()
	}
	return c
}

// nextID allocates an id with the engine's role bit fixed in the high bit,
// advancing the counter with wraparound that preserves the role bit so two
// peers generating ids concurrently cannot collide.
func (e *Engine) nextID() uint32 {
	width := e.opts.IDWidth
	maxVal := width.max()
	roleBit := maxVal>>1 + 1 // highest bit for this width
	body := maxVal >> 1      // mask for the remaining bits

	id := e.nextIDCounter
	e.nextIDCounter = (e.nextIDCounter + 1) & body
	v := id & body
	if e.opts.Role == RoleMaster {
		v |= roleBit
	}
	return v
}

// flush writes buf[:pos] to the host sink and resets pos to 0.
func (c *composer) flush() (bool, error) {
	if c.pos == 0 {
		return true, nil
	}
	n, err := c.opts.Write(c.buf[:c.pos])
	if err != nil {
		return false, err
	}
	if n != c.pos {
		return false, ErrInvalidArgument
	}
	c.pos = 0
	return true, nil
}

// appendByte stages one byte into the composition buffer, flushing first
// if full.
func (c *composer) appendByte(b byte) (bool, error) {
	if c.pos == len(c.buf) {
		if ok, err := c.flush(); !ok {
			return false, err
		}
	}
	c.buf[c.pos] = b
	c.pos++
	return true, nil
}

// appendBytes stages p into the composition buffer, flushing as needed so
// a payload larger than TxBufferCap is emitted in multiple write-sink
// calls.
func (c *composer) appendBytes(p []byte) (bool, error) {
	for len(p) > 0 {
		n := copy(c.buf[c.pos:], p)
		c.pos += n
		p = p[n:]
		if c.pos == len(c.buf) {
			if ok, err := c.flush(); !ok {
				return false, err
			}
		}
	}
	return true, nil
}

// writeHeader emits SOF (if enabled), id, len, type into the composition
// buffer, feeding each byte into the header checksum, then appends the
// finalized header checksum if enabled.
func (c *composer) writeHeader(id, length, typ uint32) (bool, error) {
	c.cksum.Reset()
	var scratch [4]byte

	if c.opts.SOFEnabled {
		if ok, err := c.appendByte(c.opts.SOF); !ok {
			return false, err
		}
		c.cksum.Update(c.opts.SOF)
	}

	n := putField(scratch[:], c.opts.IDWidth, id)
	for _, b := range scratch[:n] {
		if ok, err := c.appendByte(b); !ok {
			return false, err
		}
		c.cksum.Update(b)
	}

	n = putField(scratch[:], c.opts.LenWidth, length)
	for _, b := range scratch[:n] {
		if ok, err := c.appendByte(b); !ok {
			return false, err
		}
		c.cksum.Update(b)
	}

	n = putField(scratch[:], c.opts.TypeWidth, typ)
	for _, b := range scratch[:n] {
		if ok, err := c.appendByte(b); !ok {
			return false, err
		}
		c.cksum.Update(b)
	}

	if w := c.cksum.Width(); w > 0 {
		n = putField(scratch[:], widthFromBytes(w), maskToWidth(c.cksum.Value(), w))
		if ok, err := c.appendBytes(scratch[:n]); !ok {
			return false, err
		}
	}
	return true, nil
}

// beginTx claims the transmit lock and writes the header, leaving the
// composer ready to stream the payload. Shared by the send-all and
// multipart composition paths.
func (e *Engine) beginTx(id, length, typ uint32) (bool, error) {
	c := &e.composer
	if !c.lock.TryLock() {
		return false, ErrTxBusy
	}
	ok, err := c.writeHeader(id, length, typ)
	if !ok {
		c.lock.Unlock()
		return false, err
	}
	c.cksum.Reset()
	c.total = int64(length)
	return true, nil
}

// finishTx appends the finalized data checksum (if enabled), flushes
// trailing bytes, and releases the transmit lock.
func (c *composer) finishTx() (bool, error) {
	if w := c.cksum.Width(); w > 0 {
		var scratch [4]byte
		n := putField(scratch[:], widthFromBytes(w), maskToWidth(c.cksum.Value(), w))
		if ok, err := c.appendBytes(scratch[:n]); !ok {
			c.lock.Unlock()
			return false, err
		}
	}
	ok, err := c.flush()
	c.lock.Unlock()
	return ok, err
}

// sendPayload streams payload through the composer, updating the running
// data checksum as it goes.
func (c *composer) sendPayload(payload []byte) (bool, error) {
	for _, b := range payload {
		c.cksum.Update(b)
	}
	return c.appendBytes(payload)
}

// idWithinWidth reports whether v fits in w's width, used to reject
// caller-supplied types and payload lengths that exceed the configured
// field width.
func idWithinWidth(v uint32, w Width) bool { return v <= w.max() }

// --- public send-all API ---

// Send composes and transmits msg as a new request: an id is allocated
// (msg.ID is overwritten), unless msg.IsResponse is set in which case the
// caller's msg.ID is used as-is (see Respond).
func (e *Engine) Send(msg *Msg) bool {
	ok, _ := e.sendOrRespond(msg, nil, nil, 0)
	return ok
}

// SendSimple is Send without a pre-built Msg.
func (e *Engine) SendSimple(typ uint32, data []byte) bool {
	return e.Send(&Msg{Type: typ, Data: data})
}

// Query composes and transmits msg as a new request and, if listener is
// non-nil, registers an id listener for the assigned id before releasing
// the transmit lock, so a reply racing the return of Query cannot be
// missed. The id-listener slot is reserved before the frame is put on the
// wire so a registration failure never leaves an orphaned send.
func (e *Engine) Query(msg *Msg, listener Listener, timeout TimeoutListener, ticks uint32) bool {
	ok, _ := e.sendOrRespond(msg, listener, timeout, ticks)
	return ok
}

// QuerySimple is Query without a pre-built Msg.
func (e *Engine) QuerySimple(typ uint32, data []byte, listener Listener, timeout TimeoutListener, ticks uint32) bool {
	return e.Query(&Msg{Type: typ, Data: data}, listener, timeout, ticks)
}

// Respond composes and transmits msg reusing msg.ID from an incoming
// frame, typically called from inside a Listener callback.
func (e *Engine) Respond(msg *Msg) bool {
	msg.IsResponse = true
	ok, _ := e.sendOrRespond(msg, nil, nil, 0)
	return ok
}

func (e *Engine) sendOrRespond(msg *Msg, listener Listener, timeout TimeoutListener, ticks uint32) (bool, error) {
	if !idWithinWidth(msg.Type, e.opts.TypeWidth) || !idWithinWidth(uint32(len(msg.Data)), e.opts.LenWidth) {
		return false, ErrTooLong
	}

	var id uint32
	if msg.IsResponse {
		id = msg.ID
	} else {
		id = e.nextID()
	}

	// Reserve the id-listener slot before composing, so a registration
	// failure aborts the send cleanly without ever reaching the wire.
	reserved := false
	if listener != nil {
		if !e.listeners.addID(id, listener, timeout, ticks, msg.UserData, msg.UserData2) {
			return false, ErrRegistrationFull
		}
		reserved = true
	}

	ok, err := e.beginTx(id, uint32(len(msg.Data)), msg.Type)
	if !ok {
		if reserved {
			e.listeners.removeID(id)
		}
		return false, err
	}

	if _, err := e.composer.sendPayload(msg.Data); err != nil {
		e.composer.lock.Unlock()
		if reserved {
			e.listeners.removeID(id)
		}
		return false, err
	}

	ok, err = e.composer.finishTx()
	if !ok {
		if reserved {
			e.listeners.removeID(id)
		}
		return false, err
	}

	msg.ID = id
	return true, nil
}

// --- multipart API ---

// SendMultipart begins a multipart send-all frame; msg.Data is ignored.
// It must be followed by MultipartPayload calls summing to length and a
// single MultipartClose.
func (e *Engine) SendMultipart(msg *Msg, length uint32) bool {
	ok, _ := e.beginMultipart(msg, length, nil, nil, 0)
	return ok
}

// SendSimpleMultipart is SendMultipart without a pre-built Msg.
func (e *Engine) SendSimpleMultipart(typ uint32, length uint32) bool {
	return e.SendMultipart(&Msg{Type: typ}, length)
}

// QueryMultipart is Query with a multipart payload.
func (e *Engine) QueryMultipart(msg *Msg, length uint32, listener Listener, timeout TimeoutListener, ticks uint32) bool {
	ok, _ := e.beginMultipart(msg, length, listener, timeout, ticks)
	return ok
}

// QuerySimpleMultipart is QueryMultipart without a pre-built Msg.
func (e *Engine) QuerySimpleMultipart(typ uint32, length uint32, listener Listener, timeout TimeoutListener, ticks uint32) bool {
	return e.QueryMultipart(&Msg{Type: typ}, length, listener, timeout, ticks)
}

// RespondMultipart is Respond with a multipart payload.
func (e *Engine) RespondMultipart(msg *Msg, length uint32) bool {
	msg.IsResponse = true
	ok, _ := e.beginMultipart(msg, length, nil, nil, 0)
	return ok
}

func (e *Engine) beginMultipart(msg *Msg, length uint32, listener Listener, timeout TimeoutListener, ticks uint32) (bool, error) {
	if e.composer.transmitting {
		return false, ErrTxBusy
	}
	if !idWithinWidth(msg.Type, e.opts.TypeWidth) || !idWithinWidth(length, e.opts.LenWidth) {
		return false, ErrTooLong
	}

	var id uint32
	if msg.IsResponse {
		id = msg.ID
	} else {
		id = e.nextID()
	}

	reserved := false
	if listener != nil {
		if !e.listeners.addID(id, listener, timeout, ticks, msg.UserData, msg.UserData2) {
			return false, ErrRegistrationFull
		}
		reserved = true
	}

	ok, err := e.beginTx(id, length, msg.Type)
	if !ok {
		if reserved {
			e.listeners.removeID(id)
		}
		return false, err
	}
	e.composer.transmitting = true
	msg.ID = id
	return true, nil
}

// MultipartPayload appends the next chunk of a multipart frame's payload.
// It is the caller's responsibility that the cumulative bytes across all
// calls equal the length declared at *_multipart begin time.
func (e *Engine) MultipartPayload(data []byte) bool {
	if !e.composer.transmitting {
		e.logDebug("multipart payload with no frame in progress", ErrNotTransmitting)
		return false
	}
	ok, err := e.composer.sendPayload(data)
	if err != nil {
		ok = false
	}
	e.composer.total -= int64(len(data))
	return ok
}

// MultipartClose finalizes the data checksum, flushes trailing bytes, and
// releases the transmit lock. An under-delivered multipart frame (fewer
// payload bytes supplied than declared at the begin call) is closed with
// whatever was accumulated rather than rejected (see DESIGN.md).
func (e *Engine) MultipartClose() bool {
	if !e.composer.transmitting {
		e.logDebug("multipart close with no frame in progress", ErrNotTransmitting)
		return false
	}
	e.composer.transmitting = false
	ok, _ := e.composer.finishTx()
	return ok
}
