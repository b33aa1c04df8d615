package entry

import "strings"

// Error codes used by the binary-delta codec to avoid repeating common error
// strings verbatim. Values and names come from the node-probe error taxonomy;
// gaps in the numbering are intentional (reserved by the original protocol).
const (
	ErrConnRefused  uint8 = 3
	ErrHostUnreach  uint8 = 4
	ErrNetUnreach   uint8 = 5
	ErrConnReset    uint8 = 6
	ErrConnTimeout  uint8 = 101
	ErrHangup       uint8 = 102
	ErrStalling     uint8 = 103
	ErrTotalTimeout uint8 = 104
	ErrInvalidMagic uint8 = 200
)

// substringRule pairs a code with the substring used to recognize it in a raw
// error message. Order matters: the first match wins.
type substringRule struct {
	code      uint8
	substring string
}

var canonicalRules = []substringRule{
	{ErrConnRefused, "ECONNREFUSED"},
	{ErrHostUnreach, "EHOSTUNREACH"},
	{ErrNetUnreach, "ENETUNREACH"},
	{ErrConnReset, "ECONNRESET"},
	{ErrConnTimeout, "Connection timed out."},
	{ErrHangup, "Socket hangup"},
	{ErrStalling, "Peer is stalling"},
	{ErrTotalTimeout, "Timeout"},
	{ErrInvalidMagic, "Invalid magic value"},
}

// Canonicalize maps a raw error message to one of the known codes by
// substring match, matching the writer's canonicalization behavior.
func Canonicalize(msg string) (code uint8, ok bool) {
	for _, r := range canonicalRules {
		if strings.Contains(msg, r.substring) {
			return r.code, true
		}
	}
	return 0, false
}

// CodeString maps a known code back to its canonical message, used when
// decoding a coded error back into a human-readable string.
func CodeString(code uint8) (string, bool) {
	for _, r := range canonicalRules {
		if r.code == code {
			return r.substring, true
		}
	}
	return "", false
}
