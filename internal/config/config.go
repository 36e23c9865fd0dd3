package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	TransportHTTP = "http"
	TransportMQTT = "mqtt"

	SensorTMP117 = "tmp117"
	SensorBME280 = "bme280"

	PolicyHalt    = "halt"
	PolicyRestart = "restart"
)

// Firmware constants. Every one of them can be overridden from the environment.
const (
	DefaultDeviceID   = "TempGuard-01"
	DefaultBackendURL = "https://temp-backend-production-4599.up.railway.app/api/sensor/data"
)

type Config struct {
	AppEnv    string
	LogLevel  slog.Level
	Transport string
	DeviceID  string

	WiFiInterface      string
	WiFiSSID           string
	WiFiPassword       string
	WiFiConnectTimeout time.Duration
	DNSServer          string

	BackendURL string
	// InsecureSkipVerify disables TLS certificate validation for both
	// transports. The firmware shipped with validation off.
	InsecureSkipVerify bool
	HTTPTimeout        time.Duration

	MQTTBroker     string
	MQTTPort       int
	MQTTTLS        bool
	MQTTClientID   string
	MQTTUsername   string
	MQTTPassword   string
	MQTTRetryDelay time.Duration

	SensorModel         string
	I2CBus              string
	SensorAddress       uint16
	SensorInitAttempts  int
	SensorInitDelay     time.Duration
	SensorFailurePolicy string

	SendInterval time.Duration
	LoopPeriod   time.Duration
}

// LoadFromEnv reads ENV_FILE (default .env) if present, then the process
// environment. Variables already set in the environment win over the file.
func LoadFromEnv() (Config, error) {
	envFile := strings.TrimSpace(os.Getenv("ENV_FILE"))
	if envFile == "" {
		envFile = ".env"
	}
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load %s: %w", envFile, err)
	}

	appEnv := strings.TrimSpace(os.Getenv("APP_ENV"))
	if appEnv == "" {
		appEnv = "dev"
	}
	switch appEnv {
	case "dev", "prod":
	default:
		return Config{}, fmt.Errorf("invalid APP_ENV %q (allowed: dev, prod)", appEnv)
	}

	level, err := parseLogLevel(stringEnv("LOG_LEVEL", "info"))
	if err != nil {
		return Config{}, err
	}

	transport := strings.ToLower(stringEnv("TRANSPORT", TransportHTTP))
	switch transport {
	case TransportHTTP, TransportMQTT:
	default:
		return Config{}, fmt.Errorf("invalid TRANSPORT %q (allowed: http, mqtt)", transport)
	}

	wifiTimeout, err := durationEnv("WIFI_CONNECT_TIMEOUT", "20s")
	if err != nil {
		return Config{}, err
	}

	insecure, err := boolEnv("INSECURE_SKIP_VERIFY", "true")
	if err != nil {
		return Config{}, err
	}

	httpTimeout, err := durationEnv("HTTP_TIMEOUT", "10s")
	if err != nil {
		return Config{}, err
	}

	mqttPortStr := stringEnv("MQTT_PORT", "8883")
	mqttPort, err := strconv.Atoi(mqttPortStr)
	if err != nil {
		return Config{}, fmt.Errorf("invalid MQTT_PORT %q: %w", mqttPortStr, err)
	}
	if mqttPort <= 0 || mqttPort > 65535 {
		return Config{}, fmt.Errorf("MQTT_PORT out of range: %d", mqttPort)
	}

	mqttTLS, err := boolEnv("MQTT_TLS", "true")
	if err != nil {
		return Config{}, err
	}

	mqttRetryDelay, err := durationEnv("MQTT_RETRY_DELAY", "3s")
	if err != nil {
		return Config{}, err
	}

	sensorModel := strings.ToLower(stringEnv("SENSOR_MODEL", SensorTMP117))
	switch sensorModel {
	case SensorTMP117, SensorBME280:
	default:
		return Config{}, fmt.Errorf("invalid SENSOR_MODEL %q (allowed: tmp117, bme280)", sensorModel)
	}

	sensorAddressStr := stringEnv("SENSOR_ADDRESS", "0x48")
	sensorAddress, err := strconv.ParseUint(sensorAddressStr, 0, 16)
	if err != nil {
		return Config{}, fmt.Errorf("invalid SENSOR_ADDRESS %q: %w", sensorAddressStr, err)
	}
	if sensorAddress > 0x7F {
		return Config{}, fmt.Errorf("SENSOR_ADDRESS %q is not a 7-bit address", sensorAddressStr)
	}

	attemptsStr := stringEnv("SENSOR_INIT_ATTEMPTS", "3")
	attempts, err := strconv.Atoi(attemptsStr)
	if err != nil {
		return Config{}, fmt.Errorf("invalid SENSOR_INIT_ATTEMPTS %q: %w", attemptsStr, err)
	}
	if attempts < 1 {
		return Config{}, fmt.Errorf("SENSOR_INIT_ATTEMPTS must be at least 1, got %d", attempts)
	}

	sensorInitDelay, err := durationEnv("SENSOR_INIT_DELAY", "100ms")
	if err != nil {
		return Config{}, err
	}

	defaultPolicy := PolicyHalt
	if transport == TransportMQTT {
		defaultPolicy = PolicyRestart
	}
	policy := strings.ToLower(stringEnv("SENSOR_FAILURE_POLICY", defaultPolicy))
	switch policy {
	case PolicyHalt, PolicyRestart:
	default:
		return Config{}, fmt.Errorf("invalid SENSOR_FAILURE_POLICY %q (allowed: halt, restart)", policy)
	}

	sendInterval, err := positiveDurationEnv("SEND_INTERVAL", "5s")
	if err != nil {
		return Config{}, err
	}
	loopPeriod, err := positiveDurationEnv("LOOP_PERIOD", "100ms")
	if err != nil {
		return Config{}, err
	}

	return Config{
		AppEnv:              appEnv,
		LogLevel:            level,
		Transport:           transport,
		DeviceID:            stringEnv("DEVICE_ID", DefaultDeviceID),
		WiFiInterface:       stringEnv("WIFI_INTERFACE", "wlan0"),
		WiFiSSID:            stringEnv("WIFI_SSID", ""),
		WiFiPassword:        os.Getenv("WIFI_PASSWORD"),
		WiFiConnectTimeout:  wifiTimeout,
		DNSServer:           stringEnv("DNS_SERVER", "8.8.8.8:53"),
		BackendURL:          stringEnv("BACKEND_URL", DefaultBackendURL),
		InsecureSkipVerify:  insecure,
		HTTPTimeout:         httpTimeout,
		MQTTBroker:          stringEnv("MQTT_BROKER", "localhost"),
		MQTTPort:            mqttPort,
		MQTTTLS:             mqttTLS,
		MQTTClientID:        stringEnv("MQTT_CLIENT_ID", "tempguard-01"),
		MQTTUsername:        stringEnv("MQTT_USERNAME", ""),
		MQTTPassword:        os.Getenv("MQTT_PASSWORD"),
		MQTTRetryDelay:      mqttRetryDelay,
		SensorModel:         sensorModel,
		I2CBus:              stringEnv("I2C_BUS", ""),
		SensorAddress:       uint16(sensorAddress),
		SensorInitAttempts:  attempts,
		SensorInitDelay:     sensorInitDelay,
		SensorFailurePolicy: policy,
		SendInterval:        sendInterval,
		LoopPeriod:          loopPeriod,
	}, nil
}

func stringEnv(key, def string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	return v
}

func durationEnv(key, def string) (time.Duration, error) {
	s := stringEnv(key, def)
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, s, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("%s must not be negative, got %v", key, d)
	}
	return d, nil
}

func positiveDurationEnv(key, def string) (time.Duration, error) {
	d, err := durationEnv(key, def)
	if err != nil {
		return 0, err
	}
	if d <= 0 {
		return 0, fmt.Errorf("%s must be positive, got %v", key, d)
	}
	return d, nil
}

func boolEnv(key, def string) (bool, error) {
	s := stringEnv(key, def)
	b, err := strconv.ParseBool(s)
	if err != nil {
		return false, fmt.Errorf("invalid %s %q: %w", key, s, err)
	}
	return b, nil
}

func parseLogLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("invalid LOG_LEVEL %q (allowed: debug, info, warn, error)", s)
	}
}
