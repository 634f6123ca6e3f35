package remote

// Frame delimiters wrapped around every remote-mode reply.
const (
	FrameStart byte = 0x00
	FrameEnd   byte = 0x0C
)

// Unframe checks the leading 0x00 and trailing 0x0C of a reply and returns
// the bytes between them.
func Unframe(resp []byte) ([]byte, bool) {
	if len(resp) < 2 || resp[0] != FrameStart || resp[len(resp)-1] != FrameEnd {
		return nil, false
	}
	return resp[1 : len(resp)-1], true
}

// Frame wraps body in reply delimiters.
func Frame(body []byte) []byte {
	out := make([]byte, 0, len(body)+2)
	out = append(out, FrameStart)
	out = append(out, body...)
	return append(out, FrameEnd)
}
