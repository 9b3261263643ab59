package main

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/sensorkit/sensorkit-go/pkg/sensor"
)

// Config holds the bridge configuration. Environment variables provide the
// defaults; flags override them.
type Config struct {
	// Transport is "mqtt" or "redis".
	Transport string

	MQTTBroker   string
	MQTTClientID string
	MQTTUsername string
	MQTTPassword string

	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisTTL      time.Duration

	Prefix   string
	Sensors  string
	Interval time.Duration
	Profile  string
	Grants   string

	HTTPPort  int
	Advertise bool
	Instance  string
	Interface string

	EventLog string
	LogLevel string
}

// LoadConfig reads the environment, then parses args as flags over it.
func LoadConfig(args []string) (Config, error) {
	host, _ := os.Hostname()
	cfg := Config{
		Transport:     getEnv("BRIDGE_TRANSPORT", "mqtt"),
		MQTTBroker:    getEnv("MQTT_BROKER", "tcp://localhost:1883"),
		MQTTClientID:  getEnv("MQTT_CLIENT_ID", "sensor-bridge"),
		MQTTUsername:  getEnv("MQTT_USERNAME", ""),
		MQTTPassword:  getEnv("MQTT_PASSWORD", ""),
		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		Prefix:        getEnv("BRIDGE_PREFIX", "sensors"),
		Sensors:       getEnv("BRIDGE_SENSORS", ""),
		Profile:       getEnv("BRIDGE_PROFILE", ""),
		Grants:        getEnv("BRIDGE_GRANTS", ""),
		Instance:      getEnv("BRIDGE_INSTANCE", host),
		Interface:     getEnv("BRIDGE_INTERFACE", ""),
		EventLog:      getEnv("BRIDGE_EVENT_LOG", ""),
		LogLevel:      getEnv("LOG_LEVEL", "info"),
	}

	var err error
	if cfg.RedisDB, err = strconv.Atoi(getEnv("REDIS_DB", "0")); err != nil {
		return cfg, fmt.Errorf("REDIS_DB: %w", err)
	}
	if cfg.RedisTTL, err = time.ParseDuration(getEnv("REDIS_TTL", "24h")); err != nil {
		return cfg, fmt.Errorf("REDIS_TTL: %w", err)
	}
	if cfg.Interval, err = time.ParseDuration(getEnv("BRIDGE_INTERVAL", "0s")); err != nil {
		return cfg, fmt.Errorf("BRIDGE_INTERVAL: %w", err)
	}
	if cfg.HTTPPort, err = strconv.Atoi(getEnv("HTTP_PORT", "8080")); err != nil {
		return cfg, fmt.Errorf("HTTP_PORT: %w", err)
	}
	if cfg.Advertise, err = strconv.ParseBool(getEnv("BRIDGE_ADVERTISE", "false")); err != nil {
		return cfg, fmt.Errorf("BRIDGE_ADVERTISE: %w", err)
	}

	fs := flag.NewFlagSet("sensor-bridge", flag.ContinueOnError)
	fs.StringVar(&cfg.Transport, "transport", cfg.Transport, "Broker transport: mqtt or redis")
	fs.StringVar(&cfg.MQTTBroker, "mqtt-broker", cfg.MQTTBroker, "MQTT broker URL")
	fs.StringVar(&cfg.MQTTClientID, "mqtt-client-id", cfg.MQTTClientID, "MQTT client ID")
	fs.StringVar(&cfg.RedisAddr, "redis-addr", cfg.RedisAddr, "Redis address")
	fs.IntVar(&cfg.RedisDB, "redis-db", cfg.RedisDB, "Redis database")
	fs.DurationVar(&cfg.RedisTTL, "redis-ttl", cfg.RedisTTL, "TTL of latest-value keys (negative disables)")
	fs.StringVar(&cfg.Prefix, "prefix", cfg.Prefix, "Topic prefix")
	fs.StringVar(&cfg.Sensors, "sensors", cfg.Sensors, "Comma-separated sensors to export (default: all without permission)")
	fs.DurationVar(&cfg.Interval, "interval", cfg.Interval, "Sampling interval (0 uses the default)")
	fs.StringVar(&cfg.Profile, "profile", cfg.Profile, "Device profile YAML")
	fs.StringVar(&cfg.Grants, "grant", cfg.Grants, "Comma-separated permissions to grant")
	fs.IntVar(&cfg.HTTPPort, "http-port", cfg.HTTPPort, "Health endpoint port")
	fs.BoolVar(&cfg.Advertise, "advertise", cfg.Advertise, "Advertise the bridge over mDNS")
	fs.StringVar(&cfg.Instance, "instance", cfg.Instance, "mDNS instance name")
	fs.StringVar(&cfg.Interface, "interface", cfg.Interface, "Network interface for mDNS (default: all)")
	fs.StringVar(&cfg.EventLog, "event-log", cfg.EventLog, "File path for captured API events (CBOR format)")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "Log level (debug, info, warn, error)")
	if err := fs.Parse(args); err != nil {
		return cfg, err
	}

	switch cfg.Transport {
	case "mqtt", "redis":
	default:
		return cfg, fmt.Errorf("unknown transport %q (use mqtt or redis)", cfg.Transport)
	}
	return cfg, nil
}

// SensorIDs parses the sensor list. An empty list yields nil.
func (c Config) SensorIDs() ([]sensor.ID, error) {
	var ids []sensor.ID
	for _, s := range splitList(c.Sensors) {
		id, err := sensor.ParseID(s)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// BrokerURL is the address consumers should subscribe to.
func (c Config) BrokerURL() string {
	if c.Transport == "redis" {
		return "redis://" + c.RedisAddr
	}
	return c.MQTTBroker
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// getEnv returns the environment variable key, or fallback when unset.
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}
