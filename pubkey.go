package tzbaker

import "log/slog"

// providePublicKey is the public key reply: length byte, then the key.
func providePublicKey(public []byte) []byte {
	reply := make([]byte, 0, 1+len(public))
	reply = append(reply, byte(len(public)))
	return append(reply, public...)
}

// handlePublicKey serves AUTHORIZE_BAKING, GET_PUBLIC_KEY and
// PROMPT_PUBLIC_KEY.
func (device *Device) handlePublicKey(cmd Command) (Result, error) {

	if cmd.P1 != 0 {
		return Result{}, ErrWrongParam
	}

	// keys leave without a prompt only over a permissioned channel
	if cmd.Ins == InsGetPublicKey && !cmd.Permissioned {
		return Result{}, ErrSecurityViolation
	}

	key := PathWithCurve{Curve: cmd.Curve()}

	if len(cmd.Data) == 0 && cmd.Ins == InsAuthorizeBaking {
		key = device.guard.BakingKey()
	} else {
		path, err := ParseExactPath(cmd.Data)
		if err != nil {
			return Result{}, err
		}
		key.Path = path
	}

	public, err := DerivePublicKey(device.deriver, key)
	if err != nil {
		return Result{}, err
	}

	reply := providePublicKey(public)

	slog.Debug("Public key", "Key", key.String(), "Ins", instructionName(cmd.Ins))

	if cmd.Ins == InsGetPublicKey {
		return Result{Data: reply}, nil
	}

	hash, _, err := PublicKeyHash(key.Curve, public)
	if err != nil {
		return Result{}, err
	}
	address := AddressValue{Curve: key.Curve, Hash: hash}

	if cmd.Ins == InsAuthorizeBaking {
		return device.prompt([]Entry{
			{"Authorize Baking", StringValue("With Public Key?")},
			{"Public Key Hash", address},
		}, func() ([]byte, error) {
			if err := device.guard.Authorize(key); err != nil {
				return nil, err
			}
			return reply, nil
		})
	}

	return device.prompt([]Entry{
		{"Provide", StringValue("Public Key")},
		{"Public Key Hash", address},
	}, func() ([]byte, error) {
		return reply, nil
	})
}
