package tzbaker

import (
	"encoding/binary"
	"fmt"
)

// queryAuthKey replies with the wire form of the baking key path, a single
// zero byte when none is authorized.
func (device *Device) queryAuthKey() (Result, error) {
	key := device.guard.BakingKey()
	return Result{Data: key.Path.Bytes()}, nil
}

// queryAuthKeyWithCurve replies with the curve code followed by the path.
func (device *Device) queryAuthKeyWithCurve() (Result, error) {
	key := device.guard.BakingKey()

	code, err := key.Curve.Code()
	if err != nil {
		return Result{}, err
	}

	return Result{Data: append([]byte{code}, key.Path.Bytes()...)}, nil
}

func (device *Device) queryMainHWM() (Result, error) {
	main := device.guard.Watermark(ChainMain)

	data := binary.BigEndian.AppendUint32(nil, main.HighestLevel)
	data = binary.BigEndian.AppendUint32(data, main.HighestRound)

	return Result{Data: data}, nil
}

// queryAllHWM replies with main level and round, test level and round, and
// the main chain id.
func (device *Device) queryAllHWM() (Result, error) {
	state := device.guard.State()

	var data []byte
	for _, v := range []uint32{
		state.HWM.Main.HighestLevel,
		state.HWM.Main.HighestRound,
		state.HWM.Test.HighestLevel,
		state.HWM.Test.HighestRound,
		uint32(state.MainChainID),
	} {
		data = binary.BigEndian.AppendUint32(data, v)
	}

	return Result{Data: data}, nil
}

// handleDeauthorize forgets the baking key. It only removes authority, so
// it does not prompt.
func (device *Device) handleDeauthorize(cmd Command) (Result, error) {

	if cmd.P1 != 0 {
		return Result{}, ErrWrongParam
	}
	if len(cmd.Data) != 0 {
		return Result{}, fmt.Errorf("%w: deauthorize takes no payload", ErrParse)
	}

	if err := device.guard.Deauthorize(); err != nil {
		return Result{}, err
	}

	return Result{}, nil
}
