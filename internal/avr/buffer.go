package avr

import "bytes"

// responseBuffer accumulates raw serial bytes until complete
// newline-terminated frames can be sliced off. Partial reads and
// frames split across drains are retained for the next feed.
type responseBuffer struct {
	backlog []byte
}

func (b *responseBuffer) feed(p []byte) {
	b.backlog = append(b.backlog, p...)
}

// nextFrame returns the next complete frame without its terminator.
// One feed may carry several frames, so callers loop until ok is
// false.
func (b *responseBuffer) nextFrame() (frame []byte, ok bool) {
	i := bytes.IndexByte(b.backlog, '\n')
	if i < 0 {
		return nil, false
	}
	frame = append([]byte(nil), b.backlog[:i]...)
	b.backlog = append(b.backlog[:0], b.backlog[i+1:]...)
	return frame, true
}
