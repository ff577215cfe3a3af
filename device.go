package tzbaker

import (
	"fmt"
	"log/slog"
	"os"
)

// Device is the baking application. It is not safe for concurrent use:
// commands and button presses must be delivered from one goroutine.
type Device struct {

	// Private fields

	// deriver turns a curve and a path into key material.
	deriver KeyDeriver
	// guard owns the baking key and the high watermarks.
	guard *Guard
	// flow is the display and its pending confirmation.
	flow *Flow
	// sign accumulates the packets of a SIGN exchange.
	sign signState
	// quit is called when the user selects Quit on the idle screens.
	quit func()
}

// NewDevice loads the persisted state from store and shows the idle screens.
func NewDevice(deriver KeyDeriver, store Store) (*Device, error) {
	guard, err := NewGuard(store)
	if err != nil {
		return nil, err
	}

	device := &Device{deriver: deriver, guard: guard}
	device.flow = NewFlow(device.render, device.idleScreens)
	device.flow.OnQuit = func() {
		if device.quit != nil {
			device.quit()
		}
	}

	return device, nil
}

// OnQuit registers the function run when the user quits the application.
func (device *Device) OnQuit(fn func()) {
	device.quit = fn
}

func (device *Device) render(v Value) (string, error) {
	return renderValue(device.deriver, v)
}

// idleScreens pushes the idle entries. They read the guard when shown, so
// they follow every change to the key and the watermarks.
func (device *Device) idleScreens(stack *ScreenStack) error {
	guard := device.guard

	screens := []Entry{
		{"Tezos Baking", StringValue(versionString())},
		{"Chain", liveValue(func() Value { return ChainValue(guard.MainChainID()) })},
		{"Public Key Hash", liveValue(func() Value { return KeyValue(guard.BakingKey()) })},
		{"High Watermark", liveValue(func() Value { return WatermarkValue(guard.Watermark(ChainMain)) })},
	}

	for _, s := range screens {
		if err := stack.Push(s.Title, s.Value); err != nil {
			return err
		}
	}
	return nil
}

func versionString() string {
	return fmt.Sprintf("%d.%d.%d", VersionMajor, VersionMinor, VersionPatch)
}

// State returns a copy of the persisted security state.
func (device *Device) State() Nvram {
	return device.guard.State()
}

// Flow exposes the display state.
func (device *Device) Flow() *Flow {
	return device.flow
}

// Handle runs one command. When the command needs the user's approval the
// result is Pending and the reply comes from Accept, Reject or Press.
func (device *Device) Handle(cmd Command) (Result, error) {

	slog.Debug("Handle command",
		"Ins", instructionName(cmd.Ins),
		"P1", fmt.Sprintf("%02x", cmd.P1),
		"P2", fmt.Sprintf("%02x", cmd.P2),
		"Length", len(cmd.Data))

	if cmd.Class != Class {
		return Result{}, ErrUnknownClass
	}

	if device.flow.Pending() {
		return Result{}, ErrBusy
	}

	if cmd.Ins != InsSign && cmd.Ins != InsSignWithHash {
		device.sign.clear()
	}

	switch cmd.Ins {

	case InsVersion:
		return Result{Data: []byte{AppKind, VersionMajor, VersionMinor, VersionPatch}}, nil
	case InsGit:
		return Result{Data: append([]byte(Commit), 0)}, nil
	case InsAuthorizeBaking, InsGetPublicKey, InsPromptPublicKey:
		return device.handlePublicKey(cmd)
	case InsSign, InsSignWithHash:
		return device.handleSign(cmd)
	case InsReset:
		return device.handleReset(cmd)
	case InsSetup:
		return device.handleSetup(cmd)
	case InsDeauthorize:
		return device.handleDeauthorize(cmd)
	case InsQueryAuthKey:
		return device.queryAuthKey()
	case InsQueryAuthKeyWithCurve:
		return device.queryAuthKeyWithCurve()
	case InsQueryMainHWM:
		return device.queryMainHWM()
	case InsQueryAllHWM:
		return device.queryAllHWM()

	default:
		return Result{}, ErrUnknownIns

	}
}

// HandleAPDU decodes a raw command, runs it and encodes the reply. When the
// reply is deferred to a prompt it returns nil and true.
func (device *Device) HandleAPDU(raw []byte, permissioned bool) ([]byte, bool) {

	cmd, err := apduUnwrap(raw, permissioned)
	if err != nil {
		slog.Debug("Decode command", "Error", err)
		return Respond(nil, err), false
	}

	result, err := device.Handle(cmd)
	if err != nil {
		slog.Debug("Command failed", "Ins", instructionName(cmd.Ins), "Error", err)
		return Respond(nil, err), false
	}

	if result.Pending {
		return nil, true
	}

	return Respond(result.Data, nil), false
}

// prompt shows entries and defers the reply to the user. Rejecting replies
// with ErrRejected.
func (device *Device) prompt(entries []Entry, accept Continuation) (Result, error) {
	reject := func() ([]byte, error) {
		return nil, ErrRejected
	}

	if err := device.flow.Prompt(entries, accept, reject); err != nil {
		return Result{}, err
	}

	return Result{Pending: true}, nil
}

// Accept answers the pending prompt as the user accepting it.
func (device *Device) Accept() ([]byte, error) {
	return device.flow.Accept()
}

// Reject answers the pending prompt as the user rejecting it.
func (device *Device) Reject() ([]byte, error) {
	return device.flow.Reject()
}

// Button is a physical button event.
type Button int

const (
	ButtonLeft Button = iota
	ButtonRight
	ButtonBoth
)

// Press delivers a button event. When it resolves a prompt the encoded reply
// of the deferred command is returned with true.
func (device *Device) Press(button Button) ([]byte, bool) {
	switch button {
	case ButtonLeft:
		device.flow.PressLeft()
	case ButtonRight:
		device.flow.PressRight()
	case ButtonBoth:
		if resolution := device.flow.Select(); resolution != nil {
			return Respond(resolution.Data, resolution.Err), true
		}
	}
	return nil, false
}

// Screen returns the two lines currently displayed.
func (device *Device) Screen() (string, string) {
	return device.flow.Screen()
}

// EnableDebugLogging is a function that enables debug logging in the application.
// It creates a new text handler that writes to the standard error output and sets the log level to debug.
// It then sets this handler as the default handler for the slog package.
func EnableDebugLogging() {

	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug})
	slog.SetDefault(slog.New(handler))
}
