package protocol

import (
	"errors"
	"strconv"
	"strings"
)

// DoorReport is the payload of a DOOR= line: DOOR=<locked><closed><mode><result>.
type DoorReport struct {
	Locked bool
	Closed bool
	// Mode is the controller mode for status reports, or 1 (lock) / 2
	// (unlock) for the result of an operation.
	Mode uint8
	// Result is 0 for failure, 1 for success and 2 for a plain status report.
	Result uint8
}

// Door report result codes
const (
	ResultFailed  = 0
	ResultSuccess = 1
	ResultStatus  = 2
)

// Door report modes of operation results
const (
	ReportLock   = 1
	ReportUnlock = 2
)

// IsStatus reports whether r is a state report rather than an operation result.
func (r DoorReport) IsStatus() bool {
	return r.Result == ResultStatus
}

func (r DoorReport) String() string {
	s := "unlocked"
	if r.Locked {
		s = "locked"
	}
	if r.Closed {
		s += ", closed"
	} else {
		s += ", open"
	}
	switch {
	case r.IsStatus():
		s += ", mode " + strconv.Itoa(int(r.Mode))
	case r.Mode == ReportLock && r.Result == ResultSuccess:
		s += ", lock succeeded"
	case r.Mode == ReportLock:
		s += ", lock failed"
	case r.Mode == ReportUnlock && r.Result == ResultSuccess:
		s += ", unlock succeeded"
	case r.Mode == ReportUnlock:
		s += ", unlock failed"
	}
	return s
}

// Kind classifies a line sent by the lock.
type Kind uint8

const (
	KindUnknown Kind = iota
	KindOK
	KindVersion
	KindEchoOff
	KindError
	KindDoor
	KindMotorFail
	KindSense
	KindTime
	KindAwake
	KindPin
	KindChannel
	KindPinpadDebug
	KindDebug
)

var kindNames = [...]string{
	KindUnknown:     "unknown",
	KindOK:          "ok",
	KindVersion:     "version",
	KindEchoOff:     "echo-off",
	KindError:       "error",
	KindDoor:        "door",
	KindMotorFail:   "motor-fail",
	KindSense:       "sense",
	KindTime:        "time",
	KindAwake:       "awake",
	KindPin:         "pin",
	KindChannel:     "channel",
	KindPinpadDebug: "pinpad-debug",
	KindDebug:       "debug",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "unknown"
}

// Message is one parsed line from the lock.
type Message struct {
	Kind    Kind
	Raw     string
	Door    DoorReport // KindDoor
	Value   uint32     // reason, reading, time, awake flag, version, channel value
	Channel uint8      // KindChannel
	Text    string     // PIN digits, error text, debug text
}

var ErrMalformed = errors.New("malformed message")

// ParseMessage classifies and decodes one line from the lock. Lines it does
// not recognize are returned as KindUnknown without error; lines with a
// known key but a bad payload return ErrMalformed.
func ParseMessage(line string) (Message, error) {
	line = strings.TrimRight(line, "\r\n")
	msg := Message{Raw: line}

	switch {
	case line == ReplyOK:
		msg.Kind = KindOK
		return msg, nil
	case line == ReplyEchoOff:
		msg.Kind = KindEchoOff
		return msg, nil
	case strings.HasPrefix(line, ReplyVersion+" "):
		v, err := strconv.ParseUint(strings.TrimPrefix(line, ReplyVersion+" "), 10, 32)
		if err != nil {
			return msg, ErrMalformed
		}
		msg.Kind = KindVersion
		msg.Value = uint32(v)
		return msg, nil
	case strings.HasPrefix(line, ReplyError+" "):
		msg.Kind = KindError
		msg.Text = strings.TrimPrefix(line, ReplyError+" ")
		return msg, nil
	case strings.HasPrefix(line, "!"+string(rune(CmdChannel))):
		return parseChannel(msg)
	case strings.HasPrefix(line, "["):
		// [TIMING] ring dumps and [XX] debug prints
		msg.Kind = KindDebug
		msg.Text = line
		return msg, nil
	case len(line) == 5 && line[0] == 'P' && !strings.Contains(line, "="):
		v, err := strconv.Atoi(strings.TrimSpace(line[1:]))
		if err != nil {
			return msg, ErrMalformed
		}
		msg.Kind = KindPinpadDebug
		msg.Value = uint32(v)
		return msg, nil
	}

	key, value, ok := strings.Cut(line, "=")
	if !ok {
		return msg, nil
	}
	switch key {
	case KeyDoor:
		if len(value) != 4 {
			return msg, ErrMalformed
		}
		mode, result := value[2], value[3]
		if mode < '0' || mode > '9' || result < '0' || result > '2' {
			return msg, ErrMalformed
		}
		msg.Kind = KindDoor
		msg.Door = DoorReport{
			Locked: value[0] == '1',
			Closed: value[1] == '1',
			Mode:   mode - '0',
			Result: result - '0',
		}
	case KeyMotorFail:
		if len(value) != 1 || value[0] < '1' || value[0] > '3' {
			return msg, ErrMalformed
		}
		msg.Kind = KindMotorFail
		msg.Value = uint32(value[0] - '0')
	case KeySense:
		v, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil {
			return msg, ErrMalformed
		}
		msg.Kind = KindSense
		msg.Value = uint32(v)
	case KeyTime:
		if len(value) != 8 || !isHex(value) {
			return msg, ErrMalformed
		}
		msg.Kind = KindTime
		msg.Value = ParseHex(value)
	case KeyAwake:
		if value != "0" && value != "1" {
			return msg, ErrMalformed
		}
		msg.Kind = KindAwake
		msg.Value = uint32(value[0] - '0')
	case KeyPin:
		msg.Kind = KindPin
		msg.Text = value
	}
	return msg, nil
}

// parseChannel decodes the echo reply of the channel query: "!G7 000000384".
func parseChannel(msg Message) (Message, error) {
	cmd, value, ok := strings.Cut(msg.Raw, " ")
	if !ok || len(value) != 9 || !isHex(value) {
		return msg, ErrMalformed
	}
	msg.Kind = KindChannel
	msg.Channel = uint8(ParseHex(cmd[2:]) % 8)
	msg.Value = ParseHex(value)
	return msg, nil
}

func isHex(s string) bool {
	for i := 0; i < len(s); i++ {
		c := s[i]
		if !(c >= '0' && c <= '9' || c >= 'a' && c <= 'f' || c >= 'A' && c <= 'F') {
			return false
		}
	}
	return len(s) > 0
}

// FormatCommand builds a command line for the lock. The parameter, if
// given, is sent in hex.
func FormatCommand(cmd byte, param ...uint32) []byte {
	line := []byte{CommandMark, cmd}
	if len(param) > 0 {
		line = strconv.AppendUint(line, uint64(param[0]), 16)
	}
	return append(line, '\n')
}

// writeLine stages parts plus a newline, or nothing if they do not fit.
func writeLine(out OutputBuffer, parts ...string) bool {
	n := 1
	for _, p := range parts {
		n += len(p)
	}
	if n > out.Free() {
		return false
	}
	for _, p := range parts {
		out.OutputString(p)
	}
	out.OutputString("\n")
	return true
}

func boolDigit(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

// EncodeDoor writes a DOOR= report.
func EncodeDoor(out OutputBuffer, r DoorReport) bool {
	return writeLine(out, KeyDoor, "=", boolDigit(r.Locked), boolDigit(r.Closed),
		string(rune('0'+r.Mode)), string(rune('0'+r.Result)))
}

// EncodeMotorFail writes an MFAIL= report.
func EncodeMotorFail(out OutputBuffer, reason uint8) bool {
	return writeLine(out, KeyMotorFail, "=", string(rune('0'+reason)))
}

// EncodeSense writes a SENSE= report.
func EncodeSense(out OutputBuffer, value int16) bool {
	if len(KeySense)+decimalLen(value)+2 > out.Free() {
		return false
	}
	out.OutputString(KeySense)
	out.OutputString("=")
	writeDecimal(out, value, 0)
	out.OutputString("\n")
	return true
}

// EncodeTime writes the TIME= reply.
func EncodeTime(out OutputBuffer, ticks uint32) bool {
	return writeLine(out, KeyTime, "=", FormatHex(ticks, 8))
}

// EncodeAwake writes an AWAKE= report.
func EncodeAwake(out OutputBuffer, awake bool) bool {
	return writeLine(out, KeyAwake, "=", boolDigit(awake))
}

// EncodePin writes a PIN= report. digits is copied into out, so the caller
// may reuse it afterwards.
func EncodePin(out OutputBuffer, digits []byte) bool {
	if len(KeyPin)+len(digits)+2 > out.Free() {
		return false
	}
	out.OutputString(KeyPin)
	out.OutputString("=")
	out.Output(digits)
	out.OutputString("\n")
	return true
}

// EncodeOK writes the OK. reply.
func EncodeOK(out OutputBuffer) bool {
	return writeLine(out, ReplyOK)
}

// EncodeVersion writes the VERSION reply.
func EncodeVersion(out OutputBuffer) bool {
	return writeLine(out, ReplyVersion, " ", strconv.Itoa(Version))
}

// EncodeEchoOff asks the peer to stop echoing non-command text back.
func EncodeEchoOff(out OutputBuffer) bool {
	return writeLine(out, ReplyEchoOff)
}

// EncodeError writes an ERR reply.
func EncodeError(out OutputBuffer, text string) bool {
	return writeLine(out, ReplyError, " ", text)
}

// EncodeChannel echoes the query line followed by the channel value.
func EncodeChannel(out OutputBuffer, query string, value uint32) bool {
	return writeLine(out, query, " ", FormatHex(value, 9))
}

// EncodePinpadDebug writes a raw pinpad reading as "P" plus four columns.
func EncodePinpadDebug(out OutputBuffer, value int16) bool {
	if 2+max(decimalLen(value), 4) > out.Free() {
		return false
	}
	out.OutputString("P")
	writeDecimal(out, value, 4)
	out.OutputString("\n")
	return true
}

const decimalDigits = "0123456789"

func decimalLen(v int16) int {
	n := 1
	x := int32(v)
	if x < 0 {
		n++
		x = -x
	}
	for ; x >= 10; x /= 10 {
		n++
	}
	return n
}

// writeDecimal stages v right-aligned in width columns. Digits come from
// a constant string so nothing is allocated in interrupt context.
func writeDecimal(out OutputBuffer, v int16, width int) {
	for pad := width - decimalLen(v); pad > 0; pad-- {
		out.OutputString(" ")
	}
	x := int32(v)
	if x < 0 {
		out.OutputString("-")
		x = -x
	}
	div := int32(1)
	for x/div >= 10 {
		div *= 10
	}
	for ; div > 0; div /= 10 {
		d := x / div % 10
		out.OutputString(decimalDigits[d : d+1])
	}
}

// EncodeDebug writes a free-form diagnostic line.
func EncodeDebug(out OutputBuffer, text string) bool {
	return writeLine(out, text)
}
