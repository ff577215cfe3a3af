package main

import (
	"bufio"
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/schjonhaug/tzbaker"
	"github.com/urfave/cli/v3"
)

type request struct {
	command []byte
	reply   chan []byte
}

type input int

const (
	inputLeft input = iota
	inputRight
	inputBoth
	inputAccept
	inputReject
)

// Emulator owns the device. Every command and button press is handled by
// the run loop, one at a time.
type Emulator struct {
	device       *tzbaker.Device
	permissioned bool

	requests chan request
	inputs   chan input

	// waiting receives the reply of the command parked behind a prompt.
	waiting chan []byte
}

func (emulator *Emulator) run(ctx context.Context) {
	emulator.printScreen()

	for {
		select {
		case <-ctx.Done():
			return

		case req := <-emulator.requests:
			reply, pending := emulator.device.HandleAPDU(req.command, emulator.permissioned)
			if pending {
				emulator.waiting = req.reply
			} else {
				req.reply <- reply
			}

		case in := <-emulator.inputs:
			emulator.press(in)
		}

		emulator.printScreen()
	}
}

func (emulator *Emulator) press(in input) {
	var (
		reply    []byte
		resolved bool
	)

	switch in {
	case inputLeft:
		reply, resolved = emulator.device.Press(tzbaker.ButtonLeft)
	case inputRight:
		reply, resolved = emulator.device.Press(tzbaker.ButtonRight)
	case inputBoth:
		reply, resolved = emulator.device.Press(tzbaker.ButtonBoth)
	case inputAccept, inputReject:
		if !emulator.device.Flow().Pending() {
			return
		}
		var (
			data []byte
			err  error
		)
		if in == inputAccept {
			data, err = emulator.device.Accept()
		} else {
			data, err = emulator.device.Reject()
		}
		reply, resolved = tzbaker.Respond(data, err), true
	}

	if resolved && emulator.waiting != nil {
		emulator.waiting <- reply
		emulator.waiting = nil
	}
}

func (emulator *Emulator) printScreen() {
	title, value := emulator.device.Screen()
	fmt.Printf("[ %-32s ]\n[ %-32s ]\n", title, value)
}

// serve reads framed commands from one host connection.
func (emulator *Emulator) serve(ctx context.Context, connection net.Conn) {
	defer connection.Close()

	for {
		command, err := tzbaker.ReadFrame(connection)
		if err != nil {
			if !errors.Is(err, io.EOF) {
				slog.Debug("Read command", "Error", err)
			}
			return
		}

		req := request{command: command, reply: make(chan []byte, 1)}

		select {
		case emulator.requests <- req:
		case <-ctx.Done():
			return
		}

		select {
		case reply := <-req.reply:
			if err := tzbaker.WriteFrame(connection, reply); err != nil {
				slog.Debug("Write reply", "Error", err)
				return
			}
		case <-ctx.Done():
			return
		}
	}
}

// readButtons maps stdin lines to button presses.
func (emulator *Emulator) readButtons(ctx context.Context, r io.Reader) {
	scanner := bufio.NewScanner(r)

	for scanner.Scan() {
		var in input

		switch strings.TrimSpace(scanner.Text()) {
		case "l":
			in = inputLeft
		case "r":
			in = inputRight
		case "b":
			in = inputBoth
		case "a":
			in = inputAccept
		case "x":
			in = inputReject
		default:
			fmt.Println("buttons: l (left), r (right), b (both), a (accept), x (reject)")
			continue
		}

		select {
		case emulator.inputs <- in:
		case <-ctx.Done():
			return
		}
	}
}

func defaultStatePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "nvram.cbor"
	}
	return filepath.Join(home, ".tzbaker", "nvram.cbor")
}

func runEmulator(ctx context.Context, cmd *cli.Command) error {

	if cmd.Bool("debug") {
		tzbaker.EnableDebugLogging()
	}

	seed, err := hex.DecodeString(cmd.String("seed"))
	if err != nil {
		return fmt.Errorf("decode seed: %w", err)
	}

	deriver, err := tzbaker.NewSeedDeriver(seed)
	if err != nil {
		return err
	}
	defer deriver.Wipe()

	store, err := tzbaker.NewFileStore(cmd.String("state"))
	if err != nil {
		return err
	}

	device, err := tzbaker.NewDevice(deriver, store)
	if err != nil {
		return fmt.Errorf("load state: %w", err)
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	device.OnQuit(stop)

	socket := cmd.String("socket")
	_ = os.Remove(socket)

	var config net.ListenConfig
	listener, err := config.Listen(ctx, "unix", socket)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", socket, err)
	}
	defer os.Remove(socket)

	context.AfterFunc(ctx, func() { _ = listener.Close() })

	emulator := &Emulator{
		device:       device,
		permissioned: cmd.Bool("permissioned"),
		requests:     make(chan request),
		inputs:       make(chan input),
	}

	go emulator.run(ctx)
	go emulator.readButtons(ctx, os.Stdin)

	slog.Info("Emulator listening", "Socket", socket, "State", cmd.String("state"))

	for {
		connection, err := listener.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		go emulator.serve(ctx, connection)
	}
}

func main() {
	app := &cli.Command{
		Name:  "tzbaker-emulator",
		Usage: "Tezos baking device emulator",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "socket",
				Value:   "/tmp/tzbaker.sock",
				Usage:   "Unix socket to serve commands on",
				Sources: cli.EnvVars("TZBAKER_SOCKET"),
			},
			&cli.StringFlag{
				Name:    "state",
				Value:   defaultStatePath(),
				Usage:   "File holding the baking key and high watermarks",
				Sources: cli.EnvVars("TZBAKER_STATE"),
			},
			&cli.StringFlag{
				Name:     "seed",
				Usage:    "Hex encoded seed the keys are derived from",
				Required: true,
				Sources:  cli.EnvVars("TZBAKER_SEED"),
			},
			&cli.BoolFlag{
				Name:  "permissioned",
				Value: true,
				Usage: "Treat host connections as permissioned",
			},
			&cli.BoolFlag{
				Name:    "debug",
				Usage:   "Enable debug logging",
				Sources: cli.EnvVars("TZBAKER_DEBUG"),
			},
		},
		Action: runEmulator,
	}

	if err := app.Run(context.Background(), os.Args); err != nil {
		log.Fatal(err)
	}
}
