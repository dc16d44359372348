// Package marshaller turns hub frames into transport wire formats. The
// hub serializes each event exactly once; the per-transport helpers here
// only add framing around those bytes.
package marshaller

import "bytes"

// SSEFrame wraps a serialized event into a Server-Sent Events data frame:
// a single `data: <json>` line terminated by a blank line.
func SSEFrame(payload []byte) []byte {
	frame := make([]byte, 0, len(payload)+8)
	frame = append(frame, "data: "...)
	frame = append(frame, payload...)
	frame = append(frame, "\n\n"...)
	return frame
}

// SSEComment builds a comment frame, used for the initial handshake and
// keep-alives. Clients ignore it.
func SSEComment(text string) []byte {
	return []byte(": " + text + "\n\n")
}

// LongPollBatch joins pre-serialized events into one JSON array.
func LongPollBatch(frames [][]byte) []byte {
	var buf bytes.Buffer
	buf.WriteByte('[')
	for i, f := range frames {
		if i > 0 {
			buf.WriteByte(',')
		}
		buf.Write(f)
	}
	buf.WriteByte(']')
	return buf.Bytes()
}
