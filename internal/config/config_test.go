package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"
)

var envKeys = []string{
	"APP_ENV", "LOG_LEVEL", "TRANSPORT", "DEVICE_ID",
	"WIFI_INTERFACE", "WIFI_SSID", "WIFI_PASSWORD", "WIFI_CONNECT_TIMEOUT", "DNS_SERVER",
	"BACKEND_URL", "INSECURE_SKIP_VERIFY", "HTTP_TIMEOUT",
	"MQTT_BROKER", "MQTT_PORT", "MQTT_TLS", "MQTT_CLIENT_ID", "MQTT_USERNAME", "MQTT_PASSWORD", "MQTT_RETRY_DELAY",
	"SENSOR_MODEL", "I2C_BUS", "SENSOR_ADDRESS", "SENSOR_INIT_ATTEMPTS", "SENSOR_INIT_DELAY", "SENSOR_FAILURE_POLICY",
	"SEND_INTERVAL", "LOOP_PERIOD",
}

// clearEnv blanks every variable LoadFromEnv reads and points ENV_FILE at a
// file that does not exist.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range envKeys {
		t.Setenv(k, "")
	}
	t.Setenv("ENV_FILE", filepath.Join(t.TempDir(), "missing.env"))
}

func TestLoadFromEnv_Defaults(t *testing.T) {
	clearEnv(t)

	got, err := LoadFromEnv()
	if err != nil {
		t.Fatalf("LoadFromEnv() error = %v, want nil", err)
	}

	if got.AppEnv != "dev" {
		t.Errorf("AppEnv = %q, want %q", got.AppEnv, "dev")
	}
	if got.LogLevel != slog.LevelInfo {
		t.Errorf("LogLevel = %v, want %v", got.LogLevel, slog.LevelInfo)
	}
	if got.Transport != TransportHTTP {
		t.Errorf("Transport = %q, want %q", got.Transport, TransportHTTP)
	}
	if got.DeviceID != "TempGuard-01" {
		t.Errorf("DeviceID = %q, want %q", got.DeviceID, "TempGuard-01")
	}
	if got.WiFiConnectTimeout != 20*time.Second {
		t.Errorf("WiFiConnectTimeout = %v, want 20s", got.WiFiConnectTimeout)
	}
	if got.DNSServer != "8.8.8.8:53" {
		t.Errorf("DNSServer = %q, want 8.8.8.8:53", got.DNSServer)
	}
	if got.BackendURL != DefaultBackendURL {
		t.Errorf("BackendURL = %q, want %q", got.BackendURL, DefaultBackendURL)
	}
	if !got.InsecureSkipVerify {
		t.Errorf("InsecureSkipVerify = false, want true")
	}
	if got.MQTTPort != 8883 || !got.MQTTTLS {
		t.Errorf("MQTT port/tls = %d/%v, want 8883/true", got.MQTTPort, got.MQTTTLS)
	}
	if got.MQTTRetryDelay != 3*time.Second {
		t.Errorf("MQTTRetryDelay = %v, want 3s", got.MQTTRetryDelay)
	}
	if got.SensorModel != SensorTMP117 {
		t.Errorf("SensorModel = %q, want %q", got.SensorModel, SensorTMP117)
	}
	if got.SensorAddress != 0x48 {
		t.Errorf("SensorAddress = %#x, want 0x48", got.SensorAddress)
	}
	if got.SensorInitAttempts != 3 {
		t.Errorf("SensorInitAttempts = %d, want 3", got.SensorInitAttempts)
	}
	if got.SensorFailurePolicy != PolicyHalt {
		t.Errorf("SensorFailurePolicy = %q, want %q", got.SensorFailurePolicy, PolicyHalt)
	}
	if got.SendInterval != 5*time.Second {
		t.Errorf("SendInterval = %v, want 5s", got.SendInterval)
	}
	if got.LoopPeriod != 100*time.Millisecond {
		t.Errorf("LoopPeriod = %v, want 100ms", got.LoopPeriod)
	}
}

func TestLoadFromEnv_FailurePolicyFollowsTransport(t *testing.T) {
	tests := []struct {
		name      string
		transport string
		policy    string
		want      string
	}{
		{name: "http defaults to halt", transport: "http", want: PolicyHalt},
		{name: "mqtt defaults to restart", transport: "mqtt", want: PolicyRestart},
		{name: "mqtt uppercase", transport: "MQTT", want: PolicyRestart},
		{name: "explicit override", transport: "mqtt", policy: "halt", want: PolicyHalt},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			t.Setenv("TRANSPORT", tt.transport)
			t.Setenv("SENSOR_FAILURE_POLICY", tt.policy)

			got, err := LoadFromEnv()
			if err != nil {
				t.Fatalf("LoadFromEnv() error = %v, want nil", err)
			}
			if got.SensorFailurePolicy != tt.want {
				t.Errorf("SensorFailurePolicy = %q, want %q", got.SensorFailurePolicy, tt.want)
			}
		})
	}
}

func TestLoadFromEnv_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{name: "app env", key: "APP_ENV", value: "staging"},
		{name: "uppercase app env", key: "APP_ENV", value: "DEV"},
		{name: "log level", key: "LOG_LEVEL", value: "loud"},
		{name: "transport", key: "TRANSPORT", value: "coap"},
		{name: "mqtt port not a number", key: "MQTT_PORT", value: "abc"},
		{name: "mqtt port out of range", key: "MQTT_PORT", value: "70000"},
		{name: "mqtt tls", key: "MQTT_TLS", value: "maybe"},
		{name: "insecure flag", key: "INSECURE_SKIP_VERIFY", value: "sometimes"},
		{name: "sensor model", key: "SENSOR_MODEL", value: "ds18b20"},
		{name: "sensor address", key: "SENSOR_ADDRESS", value: "zz"},
		{name: "sensor address beyond 7 bits", key: "SENSOR_ADDRESS", value: "0x80"},
		{name: "zero init attempts", key: "SENSOR_INIT_ATTEMPTS", value: "0"},
		{name: "failure policy", key: "SENSOR_FAILURE_POLICY", value: "ignore"},
		{name: "wifi timeout", key: "WIFI_CONNECT_TIMEOUT", value: "soon"},
		{name: "negative retry delay", key: "MQTT_RETRY_DELAY", value: "-1s"},
		{name: "zero send interval", key: "SEND_INTERVAL", value: "0s"},
		{name: "zero loop period", key: "LOOP_PERIOD", value: "0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(tt.key, tt.value)

			if _, err := LoadFromEnv(); err == nil {
				t.Fatalf("LoadFromEnv() with %s=%q error = nil, want non-nil", tt.key, tt.value)
			}
		})
	}
}

func TestLoadFromEnv_SensorAddress(t *testing.T) {
	tests := []struct {
		in   string
		want uint16
	}{
		{in: "0x48", want: 0x48},
		{in: "0x49", want: 0x49},
		{in: "72", want: 72},
		{in: "  0x4A ", want: 0x4A},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			clearEnv(t)
			t.Setenv("SENSOR_ADDRESS", tt.in)

			got, err := LoadFromEnv()
			if err != nil {
				t.Fatalf("LoadFromEnv() error = %v, want nil", err)
			}
			if got.SensorAddress != tt.want {
				t.Errorf("SensorAddress = %#x, want %#x", got.SensorAddress, tt.want)
			}
		})
	}
}

func TestLoadFromEnv_EnvFile(t *testing.T) {
	clearEnv(t)

	path := filepath.Join(t.TempDir(), "device.env")
	content := "DEVICE_ID=TempGuard-07\nTRANSPORT=mqtt\nMQTT_BROKER=broker.example.com\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write env file: %v", err)
	}
	t.Setenv("ENV_FILE", path)

	// Blank values set via t.Setenv count as "set" for godotenv, so unset the
	// keys the file provides.
	for _, k := range []string{"DEVICE_ID", "TRANSPORT", "MQTT_BROKER"} {
		os.Unsetenv(k)
	}
	t.Cleanup(func() {
		for _, k := range []string{"DEVICE_ID", "TRANSPORT", "MQTT_BROKER"} {
			os.Unsetenv(k)
		}
	})

	got, err := LoadFromEnv()
	if err != nil {
		t.Fatalf("LoadFromEnv() error = %v, want nil", err)
	}
	if got.DeviceID != "TempGuard-07" {
		t.Errorf("DeviceID = %q, want %q", got.DeviceID, "TempGuard-07")
	}
	if got.Transport != TransportMQTT {
		t.Errorf("Transport = %q, want %q", got.Transport, TransportMQTT)
	}
	if got.MQTTBroker != "broker.example.com" {
		t.Errorf("MQTTBroker = %q, want %q", got.MQTTBroker, "broker.example.com")
	}
	if got.SensorFailurePolicy != PolicyRestart {
		t.Errorf("SensorFailurePolicy = %q, want %q", got.SensorFailurePolicy, PolicyRestart)
	}
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    slog.Level
		wantErr bool
	}{
		{in: "debug", want: slog.LevelDebug},
		{in: "INFO", want: slog.LevelInfo},
		{in: " warning ", want: slog.LevelWarn},
		{in: "error", want: slog.LevelError},
		{in: "nope", want: slog.LevelInfo, wantErr: true},
		{in: "", want: slog.LevelInfo, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := parseLogLevel(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseLogLevel(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("parseLogLevel(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}
