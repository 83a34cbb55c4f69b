// Package protocol implements the lock's line-oriented serial protocol.
//
// Commands travel host to lock as "!" + command letter + optional hex
// parameter, one per line. The lock answers and reports with KEY=VALUE
// lines.
package protocol

// Version is the protocol version reported by the "!0" command.
const Version = 3

// Protocol constants
const (
	LineMax     = 80  // Longest accepted input line, excluding the terminator
	OutputMax   = 256 // Firmware output staging size
	CommandMark = '!' // First byte of every command line
)

// Command letters
const (
	CmdVersion     = '0'
	CmdDoor        = 'D'
	CmdDoorState   = 'd'
	CmdChannel     = 'G'
	CmdTime        = 'T'
	CmdBeep        = 't'
	CmdFeedback    = 'm'
	CmdBlink       = 'f'
	CmdBlinkStop   = 'F'
	CmdPinpadDebug = 'P'
	CmdDumpTiming  = 'x'
	CmdBaud        = 'b'
)

// Reply and report keys
const (
	KeyDoor      = "DOOR"
	KeyMotorFail = "MFAIL"
	KeySense     = "SENSE"
	KeyTime      = "TIME"
	KeyAwake     = "AWAKE"
	KeyPin       = "PIN"
	ReplyOK      = "OK."
	ReplyVersion = "VERSION"
	ReplyEchoOff = "!ECHO OFF"
	ReplyError   = "ERR"
)
