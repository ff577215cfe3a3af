package tzbaker

import (
	"bytes"
	"context"
	"io"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFrame_RoundTrip(t *testing.T) {
	var buf bytes.Buffer

	require.NoError(t, WriteFrame(&buf, []byte{0x80, 0x00, 0x00, 0x00}))
	require.NoError(t, WriteFrame(&buf, nil))

	assert.Equal(t, []byte{0x00, 0x04, 0x80, 0x00, 0x00, 0x00, 0x00, 0x00}, buf.Bytes())

	first, err := ReadFrame(&buf)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x80, 0x00, 0x00, 0x00}, first)

	second, err := ReadFrame(&buf)
	require.NoError(t, err)
	assert.Empty(t, second)

	_, err = ReadFrame(&buf)
	assert.ErrorIs(t, err, io.EOF)
}

func TestFrame_Limits(t *testing.T) {
	var buf bytes.Buffer
	assert.Error(t, WriteFrame(&buf, make([]byte, MaxFrameSize+1)))
	assert.Zero(t, buf.Len())

	_, err := ReadFrame(bytes.NewReader([]byte{0x00, 0x05, 1, 2}))
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
}

// serveDevice answers framed commands on connection until it is closed.
func serveDevice(device *Device, connection net.Conn) {
	defer connection.Close()

	for {
		command, err := ReadFrame(connection)
		if err != nil {
			return
		}

		reply, pending := device.HandleAPDU(command, true)
		if pending {
			reply = Respond(device.Accept())
		}

		if err := WriteFrame(connection, reply); err != nil {
			return
		}
	}
}

func TestTransport_Exchange(t *testing.T) {
	device, err := NewDevice(testDeriver(t), &MemoryStore{})
	require.NoError(t, err)

	host, emulator := net.Pipe()
	go serveDevice(device, emulator)

	transport := &Transport{connection: host}
	defer transport.Close()

	client := NewClient(transport)

	version, err := client.Version(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "2.4.7", version.String())

	public, err := client.AuthorizeBaking(context.Background(), bakingKey)
	require.NoError(t, err)
	assert.Len(t, public, 33)
}

func TestTransport_ExchangeHonoursContext(t *testing.T) {
	host, emulator := net.Pipe()
	defer emulator.Close()

	// the emulator reads the command but never replies
	go func() { _, _ = ReadFrame(emulator) }()

	transport := &Transport{connection: host}
	defer transport.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	time.AfterFunc(50*time.Millisecond, cancel)

	_, err := transport.Exchange(ctx, []byte{Class, InsVersion, 0, 0})
	assert.ErrorIs(t, err, context.Canceled)
}
