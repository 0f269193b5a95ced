// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package tframe

import "testing"

func newTestEngine(t *testing.T, opts ...Option) *Engine {
	t.Helper()
	base := append([]Option{WithWriter(func(p []byte) (int, error) { return len(p), nil })}, opts...)
	e, err := NewEngine(RoleSlave, base...)
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	return e
}

func TestListenerTablesAddRemoveID(t *testing.T) {
	tb := newListenerTables(2, 2, 2)
	if !tb.addID(1, func(*Engine, *Msg) Result { return Stay }, nil, 0, nil, nil) {
		t.Fatal("addID(1) failed")
	}
	if tb.addID(1, func(*Engine, *Msg) Result { return Stay }, nil, 0, nil, nil) {
		t.Fatal("addID(1) duplicate should fail")
	}
	if !tb.addID(2, func(*Engine, *Msg) Result { return Stay }, nil, 0, nil, nil) {
		t.Fatal("addID(2) failed")
	}
	if tb.addID(3, func(*Engine, *Msg) Result { return Stay }, nil, 0, nil, nil) {
		t.Fatal("addID(3) should fail: table full")
	}
	if !tb.removeID(1) {
		t.Fatal("removeID(1) failed")
	}
	if tb.removeID(1) {
		t.Fatal("removeID(1) second call should fail")
	}
	if !tb.addID(3, func(*Engine, *Msg) Result { return Stay }, nil, 0, nil, nil) {
		t.Fatal("addID(3) should succeed after freeing a slot")
	}
}

func TestListenerTablesRenewID(t *testing.T) {
	tb := newListenerTables(1, 1, 1)
	tb.addID(5, func(*Engine, *Msg) Result { return Stay }, nil, 10, nil, nil)
	tb.id[0].remainingTicks = 1
	if !tb.renewID(5) {
		t.Fatal("renewID(5) failed")
	}
	if tb.id[0].remainingTicks != 10 {
		t.Errorf("remainingTicks = %d, want 10", tb.id[0].remainingTicks)
	}
	if tb.renewID(99) {
		t.Fatal("renewID(99) should fail: not registered")
	}
}

func TestListenerTablesGenericRemoveByIdentity(t *testing.T) {
	tb := newListenerTables(1, 1, 2)
	fn := func(*Engine, *Msg) Result { return Next }
	if !tb.addGeneric(fn) {
		t.Fatal("addGeneric failed")
	}
	other := func(*Engine, *Msg) Result { return Next }
	if tb.removeGeneric(other) {
		t.Fatal("removeGeneric should not match a distinct closure")
	}
	if !tb.removeGeneric(fn) {
		t.Fatal("removeGeneric should match the same func value")
	}
}

func TestDispatchPrecedenceIDBeatsTypeBeatsGeneric(t *testing.T) {
	e := newTestEngine(t)
	var got []string

	e.AddGenericListener(func(*Engine, *Msg) Result {
		got = append(got, "generic")
		return Stay
	})
	e.AddTypeListener(7, func(*Engine, *Msg) Result {
		got = append(got, "type")
		return Stay
	})
	e.AddIDListener(&Msg{ID: 42}, func(*Engine, *Msg) Result {
		got = append(got, "id")
		return Stay
	}, nil, 0)

	e.dispatch(&Msg{ID: 42, Type: 7})
	if len(got) != 1 || got[0] != "id" {
		t.Fatalf("dispatch order = %v, want [id]", got)
	}
}

func TestDispatchFallsThroughOnNext(t *testing.T) {
	e := newTestEngine(t)
	var got []string

	e.AddIDListener(&Msg{ID: 1}, func(*Engine, *Msg) Result {
		got = append(got, "id")
		return Next
	}, nil, 0)
	e.AddTypeListener(9, func(*Engine, *Msg) Result {
		got = append(got, "type")
		return Next
	})
	e.AddGenericListener(func(*Engine, *Msg) Result {
		got = append(got, "generic")
		return Stay
	})

	e.dispatch(&Msg{ID: 1, Type: 9})
	want := []string{"id", "type", "generic"}
	if len(got) != len(want) {
		t.Fatalf("dispatch order = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("dispatch order = %v, want %v", got, want)
		}
	}
}

func TestDispatchCloseFreesIDSlot(t *testing.T) {
	e := newTestEngine(t)
	e.AddIDListener(&Msg{ID: 1}, func(*Engine, *Msg) Result { return Close }, nil, 0)
	e.dispatch(&Msg{ID: 1, Type: 0})
	if e.listeners.idHigh != 0 {
		t.Fatalf("idHigh = %d, want 0 after Close", e.listeners.idHigh)
	}
	if e.RemoveIDListener(1) {
		t.Fatal("id 1 should already be removed by Close")
	}
}

func TestTickListenersExpiresAndInvokesTimeout(t *testing.T) {
	e := newTestEngine(t)
	var fired bool
	var gotUserData any
	e.AddIDListener(&Msg{ID: 1, UserData: "ctx"}, func(*Engine, *Msg) Result { return Stay },
		func(_ *Engine, msg *Msg) {
			fired = true
			gotUserData = msg.UserData
		}, 2)

	e.Tick()
	if fired {
		t.Fatal("timeout fired too early")
	}
	e.Tick()
	if !fired {
		t.Fatal("timeout listener never fired")
	}
	if gotUserData != "ctx" {
		t.Errorf("timeout UserData = %v, want ctx", gotUserData)
	}
	if e.RenewIDListener(1) {
		t.Fatal("expired id listener should no longer be registered")
	}
}

func TestTickListenersCloseDoesNotFireTimeout(t *testing.T) {
	e := newTestEngine(t)
	var fired bool
	e.AddIDListener(&Msg{ID: 1}, func(*Engine, *Msg) Result { return Close },
		func(*Engine, *Msg) { fired = true }, 5)
	e.dispatch(&Msg{ID: 1})
	e.Tick()
	e.Tick()
	e.Tick()
	if fired {
		t.Fatal("Close teardown must not invoke the timeout callback")
	}
}
