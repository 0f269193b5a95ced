// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package tframe

import (
	"bytes"
	"testing"
)

// pipedEngines wires two engines' write sinks directly into each other's
// Accept, as a host would over a socket or serial link.
func pipedEngines(t *testing.T, opts ...Option) (a, b *Engine) {
	t.Helper()
	a, err := NewEngine(RoleMaster, append([]Option{
		WithWriter(func(p []byte) (int, error) { b.Accept(p); return len(p), nil }),
	}, opts...)...)
	if err != nil {
		t.Fatalf("NewEngine(a): %v", err)
	}
	b, err = NewEngine(RoleSlave, append([]Option{
		WithWriter(func(p []byte) (int, error) { a.Accept(p); return len(p), nil }),
	}, opts...)...)
	if err != nil {
		t.Fatalf("NewEngine(b): %v", err)
	}
	return a, b
}

func TestRoundTripSendSimpleDefaultOptions(t *testing.T) {
	a, b := pipedEngines(t)

	var got *Msg
	b.AddTypeListener(5, func(_ *Engine, msg *Msg) Result {
		m := *msg
		got = &m
		return Stay
	})

	if !a.SendSimple(5, []byte("hello tframe")) {
		t.Fatal("SendSimple failed")
	}
	if got == nil {
		t.Fatal("peer never received the frame")
	}
	if !bytes.Equal(got.Data, []byte("hello tframe")) {
		t.Errorf("payload = %q, want %q", got.Data, "hello tframe")
	}
	if got.Type != 5 {
		t.Errorf("type = %d, want 5", got.Type)
	}
}

func TestRoundTripQueryRespond(t *testing.T) {
	a, b := pipedEngines(t)

	b.AddTypeListener(1, func(e *Engine, msg *Msg) Result {
		e.Respond(&Msg{ID: msg.ID, Type: 2, Data: []byte("pong")})
		return Stay
	})

	var reply []byte
	ok := a.Query(&Msg{Type: 1, Data: []byte("ping")}, func(_ *Engine, msg *Msg) Result {
		reply = msg.Data
		return Close
	}, nil, 0)
	if !ok {
		t.Fatal("Query failed")
	}
	if !bytes.Equal(reply, []byte("pong")) {
		t.Errorf("reply = %q, want %q", reply, "pong")
	}
}

func TestRoundTripMultipartPayload(t *testing.T) {
	a, b := pipedEngines(t)

	var got []byte
	b.AddTypeListener(3, func(_ *Engine, msg *Msg) Result {
		got = append([]byte(nil), msg.Data...)
		return Stay
	})

	if !a.SendSimpleMultipart(3, 9) {
		t.Fatal("SendSimpleMultipart failed")
	}
	if !a.MultipartPayload([]byte("foo")) {
		t.Fatal("MultipartPayload chunk 1 failed")
	}
	if !a.MultipartPayload([]byte("bar")) {
		t.Fatal("MultipartPayload chunk 2 failed")
	}
	if !a.MultipartPayload([]byte("baz")) {
		t.Fatal("MultipartPayload chunk 3 failed")
	}
	if !a.MultipartClose() {
		t.Fatal("MultipartClose failed")
	}
	if !bytes.Equal(got, []byte("foobarbaz")) {
		t.Errorf("reassembled payload = %q, want %q", got, "foobarbaz")
	}
}

func TestRoundTripWithoutSOFAndXOR8Checksum(t *testing.T) {
	a, b := pipedEngines(t, WithoutSOF(), WithChecksum(NewXOR8Checksum))

	var got *Msg
	b.AddGenericListener(func(_ *Engine, msg *Msg) Result {
		m := *msg
		got = &m
		return Stay
	})

	if !a.SendSimple(9, []byte{0x01, 0x02, 0x03}) {
		t.Fatal("SendSimple failed")
	}
	if got == nil {
		t.Fatal("peer never received the frame")
	}
	if !bytes.Equal(got.Data, []byte{0x01, 0x02, 0x03}) {
		t.Errorf("payload = %v, want [1 2 3]", got.Data)
	}
}

func TestRoundTripMasterAndSlaveIDsNeverCollide(t *testing.T) {
	a, b := pipedEngines(t, WithIDWidth(Width1))

	seenA := map[uint32]bool{}
	seenB := map[uint32]bool{}
	b.AddGenericListener(func(_ *Engine, msg *Msg) Result { seenA[msg.ID] = true; return Stay })
	a.AddGenericListener(func(_ *Engine, msg *Msg) Result { seenB[msg.ID] = true; return Stay })

	for i := 0; i < 4; i++ {
		a.SendSimple(1, nil)
	}
	for i := 0; i < 4; i++ {
		b.SendSimple(1, nil)
	}

	for id := range seenA {
		if id&0x80 == 0 {
			t.Errorf("master-originated id %#x missing its role bit", id)
		}
	}
	for id := range seenB {
		if id&0x80 != 0 {
			t.Errorf("slave-originated id %#x should not carry the role bit", id)
		}
	}
}
