// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package tframe

import "reflect"

// genericKey returns a comparable identity for a Listener closure, used by
// removeGeneric since Go func values are not comparable to one another.
func genericKey(fn Listener) uintptr {
	if fn == nil {
		return 0
	}
	return reflect.ValueOf(fn).Pointer()
}

// idListenerEntry occupies its slot while active is true. initialTicks == 0
// means it never expires via Tick.
type idListenerEntry struct {
	id             uint32
	active         bool
	fn             Listener
	fnTimeout      TimeoutListener
	remainingTicks uint32
	initialTicks   uint32
	userData       any
	userData2      any
}

type typeListenerEntry struct {
	typ    uint32
	active bool
	fn     Listener
}

type genericListenerEntry struct {
	active bool
	fn     Listener
}

// listenerTables groups the three flat tables the dispatcher scans in
// fixed precedence. Each table tracks a "high water" count — one past the
// highest occupied slot — purely to shorten subsequent scans; it is
// recomputed after every registration and removal.
type listenerTables struct {
	id        []idListenerEntry
	typ       []typeListenerEntry
	generic   []genericListenerEntry
	idHigh    int
	typHigh   int
	genHigh   int
}

func newListenerTables(idCap, typeCap, genCap int) listenerTables {
	return listenerTables{
		id:      make([]idListenerEntry, idCap),
		typ:     make([]typeListenerEntry, typeCap),
		generic: make([]genericListenerEntry, genCap),
	}
}

// addID registers an id listener. Fails (false) if id is already active
// (invariant: no two active id entries share the same id) or the table
// has no free slot.
func (t *listenerTables) addID(id uint32, fn Listener, fnTimeout TimeoutListener, initialTicks uint32, ud, ud2 any) bool {
	free := -1
	for i := range t.id {
		if t.id[i].active {
			if t.id[i].id == id {
				return false
			}
			continue
		}
		if free < 0 {
			free = i
		}
	}
	if free < 0 {
		return false
	}
	t.id[free] = idListenerEntry{
		id:             id,
		active:         true,
		fn:             fn,
		fnTimeout:      fnTimeout,
		remainingTicks: initialTicks,
		initialTicks:   initialTicks,
		userData:       ud,
		userData2:      ud2,
	}
	t.recomputeIDHigh()
	return true
}

func (t *listenerTables) removeID(id uint32) bool {
	for i := range t.id {
		if t.id[i].active && t.id[i].id == id {
			t.id[i] = idListenerEntry{}
			t.recomputeIDHigh()
			return true
		}
	}
	return false
}

func (t *listenerTables) renewID(id uint32) bool {
	for i := 0; i < t.idHigh; i++ {
		if t.id[i].active && t.id[i].id == id {
			t.id[i].remainingTicks = t.id[i].initialTicks
			return true
		}
	}
	return false
}

func (t *listenerTables) addType(typ uint32, fn Listener) bool {
	free := -1
	for i := range t.typ {
		if !t.typ[i].active && free < 0 {
			free = i
		}
	}
	if free < 0 {
		return false
	}
	t.typ[free] = typeListenerEntry{typ: typ, active: true, fn: fn}
	t.recomputeTypeHigh()
	return true
}

func (t *listenerTables) removeType(typ uint32) bool {
	for i := range t.typ {
		if t.typ[i].active && t.typ[i].typ == typ {
			t.typ[i] = typeListenerEntry{}
			t.recomputeTypeHigh()
			return true
		}
	}
	return false
}

func (t *listenerTables) addGeneric(fn Listener) bool {
	free := -1
	for i := range t.generic {
		if !t.generic[i].active && free < 0 {
			free = i
		}
	}
	if free < 0 {
		return false
	}
	t.generic[free] = genericListenerEntry{active: true, fn: fn}
	t.recomputeGenHigh()
	return true
}

// removeGeneric removes the first active entry whose callback pointer
// matches fn. Go has no portable function-pointer equality for arbitrary
// closures, so callers needing removal should keep the same fn value they
// registered (not a re-created closure).
func (t *listenerTables) removeGeneric(fn Listener) bool {
	target := genericKey(fn)
	for i := range t.generic {
		if t.generic[i].active && genericKey(t.generic[i].fn) == target {
			t.generic[i] = genericListenerEntry{}
			t.recomputeGenHigh()
			return true
		}
	}
	return false
}

func (t *listenerTables) recomputeIDHigh() {
	t.idHigh = 0
	for i := len(t.id) - 1; i >= 0; i-- {
		if t.id[i].active {
			t.idHigh = i + 1
			break
		}
	}
}

func (t *listenerTables) recomputeTypeHigh() {
	t.typHigh = 0
	for i := len(t.typ) - 1; i >= 0; i-- {
		if t.typ[i].active {
			t.typHigh = i + 1
			break
		}
	}
}

func (t *listenerTables) recomputeGenHigh() {
	t.genHigh = 0
	for i := len(t.generic) - 1; i >= 0; i-- {
		if t.generic[i].active {
			t.genHigh = i + 1
			break
		}
	}
}

// dispatch routes a fully decoded frame through the three tables in fixed
// precedence: id listeners first, then type listeners, then generic
// listeners as a fallback.
func (e *Engine) dispatch(msg *Msg) {
	t := &e.listeners

	for i := 0; i < t.idHigh; i++ {
		entry := &t.id[i]
		if !entry.active || entry.id != msg.ID {
			continue
		}
		msg.UserData = entry.userData
		msg.UserData2 = entry.userData2
		res := entry.fn(e, msg)
		switch res {
		case Close:
			*entry = idListenerEntry{}
			t.recomputeIDHigh()
			return
		case Renew:
			entry.remainingTicks = entry.initialTicks
			return
		case Stay:
			return
		case Next:
			// fall through to type dispatch below
		}
		break
	}

	for i := 0; i < t.typHigh; i++ {
		entry := &t.typ[i]
		if !entry.active || entry.typ != msg.Type {
			continue
		}
		res := entry.fn(e, msg)
		if res == Close {
			*entry = typeListenerEntry{}
			t.recomputeTypeHigh()
		}
		if res != Next {
			return
		}
		break
	}

	for i := 0; i < t.genHigh; i++ {
		entry := &t.generic[i]
		if !entry.active {
			continue
		}
		res := entry.fn(e, msg)
		if res == Close {
			*entry = genericListenerEntry{}
			t.recomputeGenHigh()
		}
		if res != Next {
			return
		}
	}
}

// tickListeners decrements every armed id listener's remaining-ticks
// counter and expires those that reach zero, in scan order. Expiry invokes
// the timeout callback with a null-payload message and frees the slot.
func (t *listenerTables) tickListeners(e *Engine) {
	for i := 0; i < t.idHigh; i++ {
		entry := &t.id[i]
		if !entry.active || entry.initialTicks == 0 {
			continue
		}
		entry.remainingTicks--
		if entry.remainingTicks != 0 {
			continue
		}
		fnTimeout := entry.fnTimeout
		ud, ud2, id := entry.userData, entry.userData2, entry.id
		*entry = idListenerEntry{}
		if fnTimeout != nil {
			fnTimeout(e, &Msg{ID: id, Data: nil, UserData: ud, UserData2: ud2})
		}
	}
	t.recomputeIDHigh()
}
