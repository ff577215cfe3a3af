package tzbaker

import (
	"fmt"

	"github.com/skythen/apdu"
)

// Command is one decoded request.
type Command struct {
	Class byte
	Ins   byte
	P1    byte
	P2    byte
	Data  []byte

	// Permissioned is set by the transport when the host is trusted to
	// receive keys without a prompt.
	Permissioned bool
}

// Curve is the curve selector carried in P2.
func (c Command) Curve() Curve {
	return ParseCurve(c.P2)
}

// Result is the outcome of a command. Pending means the reply is deferred
// until the user answers the prompt now on screen.
type Result struct {
	Data    []byte
	Pending bool
}

// apduUnwrap decodes a raw C-APDU into a Command.
func apduUnwrap(raw []byte, permissioned bool) (Command, error) {
	capdu, err := apdu.ParseCapdu(raw)
	if err != nil {
		return Command{}, fmt.Errorf("%w: %v", ErrWrongLength, err)
	}

	return Command{
		Class:        capdu.Cla,
		Ins:          capdu.Ins,
		P1:           capdu.P1,
		P2:           capdu.P2,
		Data:         capdu.Data,
		Permissioned: permissioned,
	}, nil
}

// apduWrap encodes a command as a C-APDU.
func apduWrap(cmd Command) ([]byte, error) {
	capdu := apdu.Capdu{Cla: cmd.Class, Ins: cmd.Ins, P1: cmd.P1, P2: cmd.P2, Data: cmd.Data}

	return capdu.Bytes()
}

// Respond encodes a reply: the data followed by the status word of err.
// Failed commands carry no data.
func Respond(data []byte, err error) []byte {
	sw := StatusFor(err)
	if err != nil {
		data = nil
	}

	rapdu := apdu.Rapdu{Data: data, SW1: byte(sw >> 8), SW2: byte(sw)}

	out, encErr := rapdu.Bytes()
	if encErr != nil {
		return []byte{byte(SwInternal >> 8), byte(SwInternal & 0xFF)}
	}
	return out
}

// parseReply splits a raw R-APDU into its data and the error its status
// word stands for.
func parseReply(raw []byte) ([]byte, error) {
	rapdu, err := apdu.ParseRapdu(raw)
	if err != nil {
		return nil, err
	}

	sw := StatusWord(uint16(rapdu.SW1)<<8 | uint16(rapdu.SW2))
	if err := ErrorForStatus(sw); err != nil {
		return nil, err
	}

	return rapdu.Data, nil
}
