package videostream

import "github.com/bluenviron/mediacommon/v2/pkg/codecs/h264"

// containsIDR parses payload as an Annex-B access unit and reports whether
// it contains a coded slice of an IDR picture. A payload that fails to
// parse is reported back to the caller rather than silently treated as a
// non-keyframe, so the read loop can decide whether to still forward it:
// the wire protocol guarantees complete access units per chunk, so a parse
// failure here means malformed input, not a framing bug.
func containsIDR(payload []byte) (bool, error) {
	au, err := h264.AnnexBUnmarshal(payload)
	if err != nil {
		return false, err
	}
	for _, nalu := range au {
		if len(nalu) == 0 {
			continue
		}
		if h264.NALUType(nalu[0]&0x1F) == h264.NALUTypeIDR {
			return true, nil
		}
	}
	return false, nil
}
