// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Coilworks

package winder

import (
	"bytes"
	"strings"
)

// Framer turns a serial byte stream into discrete telemetry lines. One
// instance serves one connection and is not safe for concurrent use; the
// transport's read loop is its only caller.
type Framer struct {
	buf bytes.Buffer
}

// Push feeds a chunk of bytes and returns every line completed by it, in
// arrival order. A terminator split across reads is handled by buffering;
// multiple terminators in one chunk yield one line each. The trailing "\n"
// (and a preceding "\r", if any) are stripped. Bytes that are not valid
// UTF-8 are replaced rather than treated as fatal.
func (f *Framer) Push(data []byte) []string {
	f.buf.Write(data)

	var lines []string
	for {
		raw := f.buf.Bytes()
		i := bytes.IndexByte(raw, '\n')
		if i < 0 {
			break
		}

		line := string(raw[:i])
		f.buf.Next(i + 1)

		line = strings.TrimSuffix(line, "\r")
		lines = append(lines, strings.ToValidUTF8(line, "�"))
	}
	return lines
}

// Pending returns the number of buffered bytes awaiting a terminator.
func (f *Framer) Pending() int {
	return f.buf.Len()
}
