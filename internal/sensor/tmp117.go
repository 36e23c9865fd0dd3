package sensor

import (
	"encoding/binary"
	"fmt"

	"periph.io/x/conn/v3/i2c"
)

// TMP117 register map (subset).
const (
	tmp117RegTemperature = 0x00
	tmp117RegDeviceID    = 0x0F

	tmp117DeviceID     = 0x0117
	tmp117DeviceIDMask = 0x0FFF

	// One LSB of the temperature register is 7.8125 m°C.
	tmp117Resolution = 0.0078125
)

// TMP117 reads a TI TMP117 over I2C. Every call goes to the device; nothing
// is cached.
type TMP117 struct {
	dev *i2c.Dev
}

// NewTMP117 checks the device-ID register and returns a driver bound to addr.
func NewTMP117(bus i2c.Bus, addr uint16) (*TMP117, error) {
	t := &TMP117{dev: &i2c.Dev{Bus: bus, Addr: addr}}

	id, err := t.readRegister(tmp117RegDeviceID)
	if err != nil {
		return nil, fmt.Errorf("tmp117 at 0x%02X: read device id: %w", addr, err)
	}
	if id&tmp117DeviceIDMask != tmp117DeviceID {
		return nil, fmt.Errorf("tmp117 at 0x%02X: unexpected device id 0x%04X", addr, id)
	}
	return t, nil
}

func (t *TMP117) ReadTemperature() (float64, error) {
	raw, err := t.readRegister(tmp117RegTemperature)
	if err != nil {
		return 0, fmt.Errorf("tmp117: read temperature: %w", err)
	}
	return float64(int16(raw)) * tmp117Resolution, nil
}

func (t *TMP117) Halt() error { return nil }

func (t *TMP117) String() string {
	return fmt.Sprintf("TMP117{0x%02X}", t.dev.Addr)
}

func (t *TMP117) readRegister(reg byte) (uint16, error) {
	var buf [2]byte
	if err := t.dev.Tx([]byte{reg}, buf[:]); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint16(buf[:]), nil
}
