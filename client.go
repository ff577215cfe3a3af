package tzbaker

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
)

// MaxPacketData is the message bytes carried per SIGN packet.
const MaxPacketData = 230

// Exchanger carries raw commands to a device and returns raw replies.
type Exchanger interface {
	Exchange(ctx context.Context, command []byte) ([]byte, error)
}

// Client drives a device from the host side. Status words are turned back
// into the package's sentinel errors.
type Client struct {
	exchanger Exchanger
}

func NewClient(exchanger Exchanger) *Client {
	return &Client{exchanger: exchanger}
}

// AppVersion is the reply to VERSION.
type AppVersion struct {
	Kind  byte
	Major byte
	Minor byte
	Patch byte
}

func (v AppVersion) String() string {
	return fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patch)
}

func (client *Client) call(ctx context.Context, cmd Command) ([]byte, error) {
	cmd.Class = Class

	request, err := apduWrap(cmd)
	if err != nil {
		return nil, err
	}

	reply, err := client.exchanger.Exchange(ctx, request)
	if err != nil {
		return nil, err
	}

	return parseReply(reply)
}

// wireCurve is the P2 selector for c. Unset goes out as a code the device
// does not know.
func wireCurve(c Curve) byte {
	code, err := c.Code()
	if err != nil {
		return 0xff
	}
	return code
}

func (client *Client) Version(ctx context.Context) (AppVersion, error) {
	data, err := client.call(ctx, Command{Ins: InsVersion})
	if err != nil {
		return AppVersion{}, err
	}
	if len(data) != 4 {
		return AppVersion{}, fmt.Errorf("version reply of %d bytes", len(data))
	}
	return AppVersion{Kind: data[0], Major: data[1], Minor: data[2], Patch: data[3]}, nil
}

// GitCommit returns the commit the application was built from.
func (client *Client) GitCommit(ctx context.Context) (string, error) {
	data, err := client.call(ctx, Command{Ins: InsGit})
	if err != nil {
		return "", err
	}
	return string(trimNUL(data)), nil
}

func trimNUL(b []byte) []byte {
	for i, c := range b {
		if c == 0 {
			return b[:i]
		}
	}
	return b
}

// ParsePublicKeyResponse unpacks the length prefixed public key reply.
func ParsePublicKeyResponse(data []byte) ([]byte, error) {
	if len(data) < 1 || int(data[0]) != len(data)-1 {
		return nil, fmt.Errorf("%w: malformed public key reply", ErrParse)
	}
	return data[1:], nil
}

func (client *Client) publicKey(ctx context.Context, ins byte, key PathWithCurve) ([]byte, error) {
	var payload []byte
	if len(key.Path) > 0 {
		payload = key.Path.Bytes()
	}

	data, err := client.call(ctx, Command{Ins: ins, P2: wireCurve(key.Curve), Data: payload})
	if err != nil {
		return nil, err
	}
	return ParsePublicKeyResponse(data)
}

// PublicKey fetches a public key without a prompt. The device only allows
// this over a permissioned channel.
func (client *Client) PublicKey(ctx context.Context, key PathWithCurve) ([]byte, error) {
	return client.publicKey(ctx, InsGetPublicKey, key)
}

// PromptPublicKey fetches a public key after the user confirmed it.
func (client *Client) PromptPublicKey(ctx context.Context, key PathWithCurve) ([]byte, error) {
	return client.publicKey(ctx, InsPromptPublicKey, key)
}

// AuthorizeBaking makes key the baking key once the user accepts. A key
// with an empty path re-confirms the key already authorized.
func (client *Client) AuthorizeBaking(ctx context.Context, key PathWithCurve) ([]byte, error) {
	return client.publicKey(ctx, InsAuthorizeBaking, key)
}

// Reset moves both high watermarks to level once the user accepts.
func (client *Client) Reset(ctx context.Context, level uint32) error {
	_, err := client.call(ctx, Command{Ins: InsReset, Data: binary.BigEndian.AppendUint32(nil, level)})
	return err
}

// Setup sets the main chain, both watermark levels and the baking key in
// one prompt and returns the public key.
func (client *Client) Setup(ctx context.Context, chain ChainID, mainLevel, testLevel uint32, key PathWithCurve) ([]byte, error) {
	payload := binary.BigEndian.AppendUint32(nil, uint32(chain))
	payload = binary.BigEndian.AppendUint32(payload, mainLevel)
	payload = binary.BigEndian.AppendUint32(payload, testLevel)
	payload = append(payload, key.Path.Bytes()...)

	data, err := client.call(ctx, Command{Ins: InsSetup, P2: wireCurve(key.Curve), Data: payload})
	if err != nil {
		return nil, err
	}
	return ParsePublicKeyResponse(data)
}

func (client *Client) Deauthorize(ctx context.Context) error {
	_, err := client.call(ctx, Command{Ins: InsDeauthorize})
	return err
}

// QueryAuthKey returns the baking key, or a zero PathWithCurve when none
// is authorized.
func (client *Client) QueryAuthKey(ctx context.Context) (PathWithCurve, error) {
	data, err := client.call(ctx, Command{Ins: InsQueryAuthKeyWithCurve})
	if errors.Is(err, ErrUnknownCurve) {
		// the device has no curve code to report without a key
		return PathWithCurve{}, nil
	}
	if err != nil {
		return PathWithCurve{}, err
	}
	if len(data) < 2 {
		return PathWithCurve{}, fmt.Errorf("%w: auth key reply of %d bytes", ErrParse, len(data))
	}

	path, err := ParseExactPath(data[1:])
	if err != nil {
		return PathWithCurve{}, err
	}
	return PathWithCurve{Curve: ParseCurve(data[0]), Path: path}, nil
}

func (client *Client) QueryMainHWM(ctx context.Context) (HighWatermark, error) {
	data, err := client.call(ctx, Command{Ins: InsQueryMainHWM})
	if err != nil {
		return HighWatermark{}, err
	}
	if len(data) != 8 {
		return HighWatermark{}, fmt.Errorf("%w: watermark reply of %d bytes", ErrParse, len(data))
	}
	return HighWatermark{
		HighestLevel: binary.BigEndian.Uint32(data),
		HighestRound: binary.BigEndian.Uint32(data[4:]),
	}, nil
}

// QueryAllHWM returns both watermarks and the main chain id. The attestation
// flags are not reported.
func (client *Client) QueryAllHWM(ctx context.Context) (Watermarks, ChainID, error) {
	data, err := client.call(ctx, Command{Ins: InsQueryAllHWM})
	if err != nil {
		return Watermarks{}, 0, err
	}
	if len(data) != 20 {
		return Watermarks{}, 0, fmt.Errorf("%w: watermark reply of %d bytes", ErrParse, len(data))
	}

	word := func(i int) uint32 { return binary.BigEndian.Uint32(data[4*i:]) }

	return Watermarks{
		Main: HighWatermark{HighestLevel: word(0), HighestRound: word(1)},
		Test: HighWatermark{HighestLevel: word(2), HighestRound: word(3)},
	}, ChainID(word(4)), nil
}

// SignRequests splits a SIGN exchange into its packets.
func SignRequests(ins byte, key PathWithCurve, message []byte) []Command {
	p2 := wireCurve(key.Curve)

	commands := []Command{{Class: Class, Ins: ins, P1: P1First, P2: p2, Data: key.Path.Bytes()}}

	for off := 0; off < len(message); off += MaxPacketData {
		end := min(off+MaxPacketData, len(message))

		p1 := P1Next
		if end == len(message) {
			p1 |= P1Last
		}
		commands = append(commands, Command{Class: Class, Ins: ins, P1: p1, P2: p2, Data: message[off:end]})
	}

	return commands
}

func (client *Client) sign(ctx context.Context, ins byte, key PathWithCurve, message []byte) ([]byte, error) {
	if len(message) == 0 {
		return nil, fmt.Errorf("%w: empty message", ErrParse)
	}

	var data []byte
	for _, cmd := range SignRequests(ins, key, message) {
		var err error
		if data, err = client.call(ctx, cmd); err != nil {
			return nil, err
		}
	}
	return data, nil
}

// Sign signs a consensus operation with the baking key.
func (client *Client) Sign(ctx context.Context, key PathWithCurve, message []byte) ([]byte, error) {
	return client.sign(ctx, InsSign, key, message)
}

// SignWithHash is Sign that also returns the blake2b-256 hash the device
// signed.
func (client *Client) SignWithHash(ctx context.Context, key PathWithCurve, message []byte) ([32]byte, []byte, error) {
	var hash [32]byte

	data, err := client.sign(ctx, InsSignWithHash, key, message)
	if err != nil {
		return hash, nil, err
	}
	if len(data) <= len(hash) {
		return hash, nil, fmt.Errorf("%w: sign reply of %d bytes", ErrParse, len(data))
	}

	copy(hash[:], data)
	return hash, data[len(hash):], nil
}
