// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package tframe

// putField writes v into buf[:w] big-endian and returns w. buf must have
// at least w bytes available.
func putField(buf []byte, w Width, v uint32) int {
	switch w {
	case Width1:
		buf[0] = byte(v)
		return 1
	case Width2:
		buf[0] = byte(v >> 8)
		buf[1] = byte(v)
		return 2
	default:
		buf[0] = byte(v >> 24)
		buf[1] = byte(v >> 16)
		buf[2] = byte(v >> 8)
		buf[3] = byte(v)
		return 4
	}
}

// fieldAccumulator decodes a big-endian field one byte at a time, as the
// parser receives it off the wire: acc = (acc<<8) | byte.
type fieldAccumulator struct {
	width Width
	got   int
	acc   uint32
}

func (f *fieldAccumulator) reset(w Width) {
	f.width = w
	f.got = 0
	f.acc = 0
}

// feed folds in the next byte and reports whether the field is complete.
func (f *fieldAccumulator) feed(b byte) (done bool) {
	f.acc = (f.acc << 8) | uint32(b)
	f.got++
	return f.got >= int(f.width)
}

func (f *fieldAccumulator) value() uint32 { return f.acc }
