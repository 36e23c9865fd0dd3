package reading

// BatteryGauge reports the battery level in percent.
type BatteryGauge interface {
	Level() int
}

// FixedBattery reports a constant integer level.
type FixedBattery int

func (b FixedBattery) Level() int { return int(b) }

// TruncatedBattery reports a float level truncated toward zero, the way an
// integer assignment from a float literal behaves on the device.
type TruncatedBattery float64

func (b TruncatedBattery) Level() int { return int(float64(b)) }

// Mock battery levels. No battery hardware is wired yet; each transport keeps
// the exact literal it shipped with.
var (
	MQTTBatteryMock BatteryGauge = FixedBattery(78)
	HTTPBatteryMock BatteryGauge = TruncatedBattery(78.5)
)
