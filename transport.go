package tzbaker

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"log/slog"
	"net"
	"time"
)

// MaxFrameSize is the largest payload a frame can carry.
const MaxFrameSize = 0xFFFF

// WriteFrame writes payload prefixed with its length as two big-endian bytes.
func WriteFrame(w io.Writer, payload []byte) error {
	if len(payload) > MaxFrameSize {
		return fmt.Errorf("frame of %d bytes exceeds %d", len(payload), MaxFrameSize)
	}

	frame := make([]byte, 2, 2+len(payload))
	binary.BigEndian.PutUint16(frame, uint16(len(payload)))
	frame = append(frame, payload...)

	_, err := w.Write(frame)
	return err
}

// ReadFrame reads one frame written by WriteFrame.
func ReadFrame(r io.Reader) ([]byte, error) {
	var header [2]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return nil, err
	}

	payload := make([]byte, binary.BigEndian.Uint16(header[:]))
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, fmt.Errorf("read frame: %w", err)
	}

	return payload, nil
}

// Transport is a host connection to the device emulator.
type Transport struct {
	connection net.Conn
}

// Connect dials the emulator socket.
func Connect(ctx context.Context, socket string) (*Transport, error) {
	var dialer net.Dialer

	connection, err := dialer.DialContext(ctx, "unix", socket)
	if err != nil {
		return nil, fmt.Errorf("connect to %s: %w", socket, err)
	}

	return &Transport{connection: connection}, nil
}

// Exchange sends one command and waits for its reply. Commands that prompt
// the user block until the prompt is answered or ctx is done.
func (transport *Transport) Exchange(ctx context.Context, command []byte) ([]byte, error) {

	deadline, _ := ctx.Deadline()
	if err := transport.connection.SetDeadline(deadline); err != nil {
		return nil, err
	}

	stop := context.AfterFunc(ctx, func() {
		_ = transport.connection.SetDeadline(time.Now())
	})
	defer stop()

	slog.Debug("Send command", "Command", fmt.Sprintf("%x", command))

	if err := WriteFrame(transport.connection, command); err != nil {
		return nil, fmt.Errorf("write command: %w", err)
	}

	reply, err := ReadFrame(transport.connection)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("read reply: %w", err)
	}

	slog.Debug("Received reply", "Reply", fmt.Sprintf("%x", reply))

	return reply, nil
}

func (transport *Transport) Close() error {
	return transport.connection.Close()
}
