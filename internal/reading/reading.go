// Package reading holds the single telemetry message the device produces.
package reading

import (
	"encoding/json"
	"strconv"
)

const topicPrefix = "tempguard/"

// Reading is one temperature sample ready for delivery. It is built fresh
// every send cycle and dropped once serialized.
type Reading struct {
	DeviceID    string
	Temperature float64 // °C
	Battery     int     // percent
}

type wireReading struct {
	DeviceID    string      `json:"deviceId"`
	Temperature json.Number `json:"temperature"`
	Battery     int         `json:"battery"`
}

// MarshalJSON encodes the reading with the temperature fixed to two decimals.
func (r Reading) MarshalJSON() ([]byte, error) {
	return json.Marshal(wireReading{
		DeviceID:    r.DeviceID,
		Temperature: json.Number(FormatTemperature(r.Temperature)),
		Battery:     r.Battery,
	})
}

// Payload is the request/publish body for r.
func (r Reading) Payload() ([]byte, error) {
	return json.Marshal(r)
}

// FormatTemperature renders t with exactly two decimal digits.
func FormatTemperature(t float64) string {
	return strconv.FormatFloat(t, 'f', 2, 64)
}

// Topic is the MQTT topic readings from deviceID are published to.
func Topic(deviceID string) string {
	return topicPrefix + deviceID + "/data"
}
