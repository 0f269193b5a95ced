// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package tframe

import "errors"

var (
	// ErrInvalidArgument reports a nil write sink or an invalid configuration value
	// (unsupported width, zero-capacity table, etc).
	ErrInvalidArgument = errors.New("tframe: invalid argument")

	// ErrTooLong reports a payload that exceeds the widest length field configured
	// for the engine (2^(8*LenWidth) - 1 bytes).
	ErrTooLong = errors.New("tframe: payload too long for configured length width")

	// ErrRegistrationFull reports that a listener table has no free slot.
	ErrRegistrationFull = errors.New("tframe: listener table full")

	// ErrTxBusy reports that the transmit lock is held by another composition.
	ErrTxBusy = errors.New("tframe: transmit path busy")

	// ErrNotTransmitting reports a multipart payload/close call with no
	// multipart frame in progress.
	ErrNotTransmitting = errors.New("tframe: no multipart frame in progress")

	// errHeaderChecksum and errDataChecksum are internal to the parser: they
	// never escape Accept/AcceptByte, they only reach the debug log hook.
	errHeaderChecksum = errors.New("tframe: header checksum mismatch")
	errDataChecksum   = errors.New("tframe: data checksum mismatch")
)
