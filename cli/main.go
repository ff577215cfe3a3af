package main

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"log"
	"os"

	"github.com/schjonhaug/tzbaker"
	"github.com/urfave/cli/v3"
)

var errNoBakingKey = errors.New("no baking key is authorized")

var curveFlag = &cli.StringFlag{
	Name:  "curve",
	Value: "ed25519",
	Usage: "ed25519, secp256k1, secp256r1 or bip32-ed25519",
}

var pathFlag = &cli.StringFlag{
	Name:  "path",
	Value: "m/44'/1729'/0'/0'",
	Usage: "Derivation path",
}

func keyFromFlags(cmd *cli.Command) (tzbaker.PathWithCurve, error) {
	curve, err := tzbaker.ParseCurveName(cmd.String("curve"))
	if err != nil {
		return tzbaker.PathWithCurve{}, err
	}

	path, err := tzbaker.ParsePathString(cmd.String("path"))
	if err != nil {
		return tzbaker.PathWithCurve{}, err
	}

	return tzbaker.PathWithCurve{Curve: curve, Path: path}, nil
}

// withClient connects to the emulator and runs fn against it.
func withClient(fn func(ctx context.Context, cmd *cli.Command, client *tzbaker.Client) error) cli.ActionFunc {
	return func(ctx context.Context, cmd *cli.Command) error {
		if cmd.Bool("debug") {
			tzbaker.EnableDebugLogging()
		}

		transport, err := tzbaker.Connect(ctx, cmd.String("socket"))
		if err != nil {
			return err
		}
		defer transport.Close()

		return fn(ctx, cmd, tzbaker.NewClient(transport))
	}
}

func printPublicKey(key tzbaker.PathWithCurve, public []byte) error {
	hash, _, err := tzbaker.PublicKeyHash(key.Curve, public)
	if err != nil {
		return err
	}

	address, err := tzbaker.Address(key.Curve, hash)
	if err != nil {
		return err
	}

	fmt.Println("Public key:", hex.EncodeToString(public))
	fmt.Println("Address:   ", address)
	return nil
}

func versionCommand() *cli.Command {
	return &cli.Command{
		Name:  "version",
		Usage: "Show the application version and commit",
		Action: withClient(func(ctx context.Context, cmd *cli.Command, client *tzbaker.Client) error {
			version, err := client.Version(ctx)
			if err != nil {
				return err
			}
			commit, err := client.GitCommit(ctx)
			if err != nil {
				return err
			}
			fmt.Printf("Version %s (%s)\n", version, commit)
			return nil
		}),
	}
}

func pubkeyCommand(name, usage string, prompt bool) *cli.Command {
	return &cli.Command{
		Name:  name,
		Usage: usage,
		Flags: []cli.Flag{curveFlag, pathFlag},
		Action: withClient(func(ctx context.Context, cmd *cli.Command, client *tzbaker.Client) error {
			key, err := keyFromFlags(cmd)
			if err != nil {
				return err
			}

			var public []byte
			if prompt {
				public, err = client.PromptPublicKey(ctx, key)
			} else {
				public, err = client.PublicKey(ctx, key)
			}
			if err != nil {
				return err
			}
			return printPublicKey(key, public)
		}),
	}
}

func authorizeCommand() *cli.Command {
	return &cli.Command{
		Name:  "authorize",
		Usage: "Authorize a key for baking",
		Flags: []cli.Flag{
			curveFlag,
			pathFlag,
			&cli.BoolFlag{Name: "current", Usage: "Re-confirm the key already authorized"},
		},
		Action: withClient(func(ctx context.Context, cmd *cli.Command, client *tzbaker.Client) error {
			var key tzbaker.PathWithCurve
			if cmd.Bool("current") {
				current, err := client.QueryAuthKey(ctx)
				if err != nil {
					return err
				}
				if !current.IsSet() {
					return errNoBakingKey
				}
				key.Curve = current.Curve
			} else {
				var err error
				if key, err = keyFromFlags(cmd); err != nil {
					return err
				}
			}

			public, err := client.AuthorizeBaking(ctx, key)
			if err != nil {
				return err
			}
			if !cmd.Bool("current") {
				return printPublicKey(key, public)
			}
			fmt.Println("Public key:", hex.EncodeToString(public))
			return nil
		}),
	}
}

func deauthorizeCommand() *cli.Command {
	return &cli.Command{
		Name:  "deauthorize",
		Usage: "Forget the baking key",
		Action: withClient(func(ctx context.Context, cmd *cli.Command, client *tzbaker.Client) error {
			return client.Deauthorize(ctx)
		}),
	}
}

func resetCommand() *cli.Command {
	return &cli.Command{
		Name:  "reset",
		Usage: "Reset both high watermarks to a level",
		Flags: []cli.Flag{
			&cli.Uint32Flag{Name: "level", Required: true, Usage: "New high watermark level"},
		},
		Action: withClient(func(ctx context.Context, cmd *cli.Command, client *tzbaker.Client) error {
			return client.Reset(ctx, cmd.Uint32("level"))
		}),
	}
}

func setupCommand() *cli.Command {
	return &cli.Command{
		Name:  "setup",
		Usage: "Set chain, high watermarks and baking key in one prompt",
		Flags: []cli.Flag{
			curveFlag,
			pathFlag,
			&cli.StringFlag{Name: "chain", Value: "NetXdQprcVkpaWU", Usage: "Main chain id"},
			&cli.Uint32Flag{Name: "main-level", Usage: "Main chain high watermark"},
			&cli.Uint32Flag{Name: "test-level", Usage: "Test chain high watermark"},
		},
		Action: withClient(func(ctx context.Context, cmd *cli.Command, client *tzbaker.Client) error {
			key, err := keyFromFlags(cmd)
			if err != nil {
				return err
			}

			chain, err := tzbaker.ParseChainID(cmd.String("chain"))
			if err != nil {
				return err
			}

			public, err := client.Setup(ctx, chain, cmd.Uint32("main-level"), cmd.Uint32("test-level"), key)
			if err != nil {
				return err
			}
			return printPublicKey(key, public)
		}),
	}
}

func hwmCommand() *cli.Command {
	return &cli.Command{
		Name:  "hwm",
		Usage: "Show the baking key and high watermarks",
		Action: withClient(func(ctx context.Context, cmd *cli.Command, client *tzbaker.Client) error {
			watermarks, chain, err := client.QueryAllHWM(ctx)
			if err != nil {
				return err
			}
			key, err := client.QueryAuthKey(ctx)
			if err != nil {
				return err
			}

			fmt.Println("Chain:      ", chain)
			if key.IsSet() {
				fmt.Println("Baking key: ", key)
			} else {
				fmt.Println("Baking key:  none")
			}
			fmt.Printf("Main:        %d (%d)\n", watermarks.Main.HighestLevel, watermarks.Main.HighestRound)
			fmt.Printf("Test:        %d (%d)\n", watermarks.Test.HighestLevel, watermarks.Test.HighestRound)
			return nil
		}),
	}
}

func signCommand() *cli.Command {
	return &cli.Command{
		Name:      "sign",
		Usage:     "Sign a hex encoded consensus operation with the baking key",
		ArgsUsage: "<hex>",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "with-hash", Usage: "Also print the signed hash"},
		},
		Action: withClient(func(ctx context.Context, cmd *cli.Command, client *tzbaker.Client) error {
			message, err := hex.DecodeString(cmd.Args().First())
			if err != nil {
				return fmt.Errorf("decode operation: %w", err)
			}

			key, err := client.QueryAuthKey(ctx)
			if err != nil {
				return err
			}
			if !key.IsSet() {
				return errNoBakingKey
			}

			if cmd.Bool("with-hash") {
				hash, signature, err := client.SignWithHash(ctx, key, message)
				if err != nil {
					return err
				}
				fmt.Println("Hash:     ", hex.EncodeToString(hash[:]))
				fmt.Println("Signature:", hex.EncodeToString(signature))
				return nil
			}

			signature, err := client.Sign(ctx, key, message)
			if err != nil {
				return err
			}
			fmt.Println("Signature:", hex.EncodeToString(signature))
			return nil
		}),
	}
}

func newApp() *cli.Command {
	return &cli.Command{
		Name:  "tzbaker",
		Usage: "Talk to a Tezos baking device",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "socket",
				Value:   "/tmp/tzbaker.sock",
				Usage:   "Emulator socket",
				Sources: cli.EnvVars("TZBAKER_SOCKET"),
			},
			&cli.BoolFlag{
				Name:    "debug",
				Usage:   "Enable debug logging",
				Sources: cli.EnvVars("TZBAKER_DEBUG"),
			},
		},
		Commands: []*cli.Command{
			versionCommand(),
			pubkeyCommand("pubkey", "Fetch a public key without a prompt", false),
			pubkeyCommand("prompt-pubkey", "Fetch a public key after confirming it on the device", true),
			authorizeCommand(),
			deauthorizeCommand(),
			resetCommand(),
			setupCommand(),
			hwmCommand(),
			signCommand(),
		},
	}
}

func main() {
	if err := newApp().Run(context.Background(), os.Args); err != nil {
		log.Fatal(err)
	}
}
