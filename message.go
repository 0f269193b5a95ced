// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package tframe

// Result is returned by a Listener to tell the dispatcher what to do next.
// It mirrors TF_Result (TF_NEXT/TF_STAY/TF_RENEW/TF_CLOSE) from
// original_source/TinyFrame.h.
type Result uint8

const (
	// Next means this listener did not handle the frame; the dispatcher
	// continues to the next table in precedence order.
	Next Result = iota
	// Stay means the frame was handled; an id listener's slot is kept as-is.
	Stay
	// Renew means the frame was handled and, for an id listener, its
	// remaining-ticks counter is reset to its initial value.
	Renew
	// Close means the frame was handled and the listener's slot is freed.
	// For an id listener this is a clean teardown: its timeout callback is
	// NOT invoked (only expiry invokes it).
	Close
)

// Msg is the user-level view of a frame, used both for received callbacks
// and for composing outbound frames.
type Msg struct {
	ID         uint32
	IsResponse bool
	Type       uint32
	Data       []byte

	// UserData and UserData2 are opaque slots the engine stores verbatim
	// in an id-listener registration and hands back on every matching
	// callback invocation (including the timeout callback). The engine
	// never dereferences them.
	UserData  any
	UserData2 any
}

// Listener handles a dispatched frame.
type Listener func(e *Engine, msg *Msg) Result

// TimeoutListener is invoked exactly once when an id listener expires via
// Tick, with msg.Data == nil.
type TimeoutListener func(e *Engine, msg *Msg)
