// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package tframe

// logDebug reports a protocol-level notice (checksum mismatch, parser
// timeout, oversize payload) to the configured logger, if any. These
// notices never affect control flow; a nil Logger makes this a no-op with
// no formatting cost on the hot path.
func (e *Engine) logDebug(msg string, fields ...any) {
	if e.opts.Logger == nil {
		return
	}
	entry := e.opts.Logger.WithField("component", "tframe")
	if e.UserData != nil {
		entry = entry.WithField("engine", e.UserData)
	}
	if len(fields) == 0 {
		entry.Debug(msg)
		return
	}
	entry.WithField("detail", fields[0]).Debug(msg)
}
