package videostream

import (
	"encoding/binary"
	"io"
)

// headerSize is the fixed length of the framing header that precedes every
// chunk on the wire: an 8-byte big-endian PTS followed by a 4-byte
// big-endian payload length.
const headerSize = 12

// unsetPTS is the wire sentinel for "this chunk carries no presentation
// timestamp" (the all-ones 64-bit pattern): the first chunk of a session,
// which carries codec extradata rather than frame payload.
const unsetPTS uint64 = 1<<64 - 1

// readHeader reads exactly headerSize bytes from r and decodes them into a
// PTS (in microseconds, or packet.NoPTS if unset) and a payload length. A
// clean EOF at the start of a header is returned unwrapped so the caller can
// distinguish "no more chunks" from a mid-header short read.
func readHeader(r io.Reader, scratch []byte) (pts int64, length uint32, err error) {
	if len(scratch) < headerSize {
		scratch = make([]byte, headerSize)
	}
	hdr := scratch[:headerSize]
	if _, err := io.ReadFull(r, hdr); err != nil {
		return 0, 0, err
	}
	rawPTS := binary.BigEndian.Uint64(hdr[0:8])
	length = binary.BigEndian.Uint32(hdr[8:12])
	if rawPTS == unsetPTS {
		return -1, length, nil
	}
	return int64(rawPTS), length, nil
}
