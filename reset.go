package tzbaker

import (
	"encoding/binary"
	"fmt"
)

// handleReset asks the user to move both high watermarks to a new level.
// The payload is the level, big endian.
func (device *Device) handleReset(cmd Command) (Result, error) {

	if len(cmd.Data) != 4 {
		return Result{}, fmt.Errorf("%w: reset payload of %d bytes", ErrWrongLength, len(cmd.Data))
	}

	level := binary.BigEndian.Uint32(cmd.Data)
	if !IsValidLevel(level) {
		return Result{}, fmt.Errorf("%w: invalid level %d", ErrParse, level)
	}

	return device.prompt([]Entry{
		{"Reset HWM", LevelValue(level)},
	}, func() ([]byte, error) {
		if err := device.guard.Reset(level); err != nil {
			return nil, err
		}
		return nil, nil
	})
}
