// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package tframe implements a point-to-point framing protocol for binary
// messages over an unreliable byte-oriented transport (serial lines,
// sockets, pipes).
//
// Two peers exchange length-prefixed, optionally checksummed frames, each
// carrying an id for reply correlation and a type byte for dispatch. An
// Engine is the framing core on one peer: an incremental byte-stream
// parser driven by Accept/AcceptByte, a frame composer that can emit a
// frame all at once or stream a multi-part payload without buffering it
// whole, a three-table dispatcher (id/type/generic listeners) with fixed
// precedence, and Tick-driven expiry for both partial frames and per-id
// listeners.
//
// Wire format (big-endian fields):
//
//	[ SOF? | ID | LEN | TYPE | HDR_CKSUM? | PAYLOAD[LEN] | DATA_CKSUM? ]
//	 1B     W_id W_len W_type  W_ck          LEN bytes      W_ck
//
// Field widths and the checksum variant are fixed at construction time and
// MUST match across both peers.
//
// The engine never spawns goroutines and never blocks except inside the
// host-supplied write sink; Accept*, Tick, and the send/query/respond
// family must not be called concurrently on the same Engine — the host
// is responsible for serializing them.
package tframe

// Engine owns the parser, composer, and listener tables for one peer of
// the framing protocol.
type Engine struct {
	opts Options

	// UserData identifies this engine instance to host callbacks (write
	// sink, logger) when a host manages multiple engines. The engine never
	// dereferences it. Mirrors TinyFrame's userdata/usertag fields.
	UserData any

	nextIDCounter uint32

	parser    parser
	composer  composer
	listeners listenerTables
}

// NewEngine constructs an Engine. opts are applied over defaultOptions, so
// any field no option sets keeps its default. A Write sink must be set; a
// value an option sets explicitly is kept as given, and invalid values
// (an unsupported width, a zero buffer or table capacity) are rejected
// with ErrInvalidArgument.
func NewEngine(role Role, opts ...Option) (*Engine, error) {
	o := defaultOptions
	o.Role = role
	for _, fn := range opts {
		fn(&o)
	}
	if err := validateOptions(&o); err != nil {
		return nil, err
	}

	e := &Engine{opts: o}
	e.parser = *newParser(&e.opts)
	e.composer = *newComposer(&e.opts)
	e.listeners = newListenerTables(o.IDTableCap, o.TypeTableCap, o.GenTableCap)
	return e, nil
}

func validateOptions(o *Options) error {
	if o.Write == nil {
		return ErrInvalidArgument
	}
	if !o.IDWidth.valid() || !o.TypeWidth.valid() || !o.LenWidth.valid() {
		return ErrInvalidArgument
	}
	if o.RxBufferCap <= 0 || o.TxBufferCap <= 0 {
		return ErrInvalidArgument
	}
	if o.IDTableCap <= 0 || o.TypeTableCap <= 0 || o.GenTableCap <= 0 {
		return ErrInvalidArgument
	}
	return nil
}

// Accept feeds received bytes into the parser, dispatching any frames that
// complete along the way. Listener callbacks, including a Respond composed
// from inside one, run synchronously before Accept returns.
func (e *Engine) Accept(buffer []byte) { e.accept(buffer) }

// AcceptByte feeds a single received byte into the parser.
func (e *Engine) AcceptByte(b byte) { e.acceptByte(b) }

// Tick advances the parser's partial-frame watchdog and every armed id
// listener's expiry counter by one tick. Call this periodically from a
// host-driven timer.
func (e *Engine) Tick() {
	e.parser.tick(e)
	e.listeners.tickListeners(e)
}

// AddIDListener registers cb (and optional fnTimeout) to receive the next
// frame whose id matches msg.ID. initialTicks == 0 means it never expires.
// Fails if the id table is full or the id is already registered.
func (e *Engine) AddIDListener(msg *Msg, cb Listener, fnTimeout TimeoutListener, initialTicks uint32) bool {
	return e.listeners.addID(msg.ID, cb, fnTimeout, initialTicks, msg.UserData, msg.UserData2)
}

// RemoveIDListener removes a listener by the id it was registered for.
// This is a clean teardown: fnTimeout is NOT invoked.
func (e *Engine) RemoveIDListener(id uint32) bool { return e.listeners.removeID(id) }

// RenewIDListener resets a registered id listener's remaining-ticks
// counter to its original value. Fails if id is not registered.
func (e *Engine) RenewIDListener(id uint32) bool { return e.listeners.renewID(id) }

// AddTypeListener registers cb for every frame whose type matches typ.
func (e *Engine) AddTypeListener(typ uint32, cb Listener) bool {
	return e.listeners.addType(typ, cb)
}

// RemoveTypeListener removes a listener by the type it was registered for.
func (e *Engine) RemoveTypeListener(typ uint32) bool { return e.listeners.removeType(typ) }

// AddGenericListener registers cb as a fallback invoked when neither an id
// nor a type listener handled the frame.
func (e *Engine) AddGenericListener(cb Listener) bool { return e.listeners.addGeneric(cb) }

// RemoveGenericListener removes a generic listener by callback identity.
func (e *Engine) RemoveGenericListener(cb Listener) bool { return e.listeners.removeGeneric(cb) }
