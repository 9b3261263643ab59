// Command sensor-bridge exports sensor readings to MQTT or Redis.
//
// The bridge streams every configured sensor of a simulated device and
// publishes each reading as JSON on <prefix>/<sensor-name>. It serves
// GET /health with the bridge counters and can announce itself over mDNS
// as _sensorbridge._tcp.
//
// Configuration comes from environment variables (MQTT_BROKER, REDIS_ADDR,
// BRIDGE_SENSORS, ...) and can be overridden with flags; run with -h for the
// list.
//
// Examples:
//
//	# Barometer and humidity to a local MQTT broker, announced on the LAN
//	sensor-bridge -sensors barometer,humidity -advertise
//
//	# Everything to Redis
//	BRIDGE_TRANSPORT=redis REDIS_ADDR=redis:6379 sensor-bridge
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/sensorkit/sensorkit-go/pkg/bridge"
	"github.com/sensorkit/sensorkit-go/pkg/bridge/mqtt"
	"github.com/sensorkit/sensorkit-go/pkg/bridge/redis"
	"github.com/sensorkit/sensorkit-go/pkg/client"
	"github.com/sensorkit/sensorkit-go/pkg/discovery"
	"github.com/sensorkit/sensorkit-go/pkg/driver/sim"
	sensorlog "github.com/sensorkit/sensorkit-go/pkg/log"
	"github.com/sensorkit/sensorkit-go/pkg/permission"
	"github.com/sensorkit/sensorkit-go/pkg/sensor"
)

// version is set at build time.
var version = "dev"

func main() {
	cfg, err := LoadConfig(os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(2)
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		level = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("bridge failed", "error", err)
		os.Exit(1)
	}
	logger.Info("bridge stopped")
}

func run(ctx context.Context, cfg Config, logger *slog.Logger) error {
	catalog := sensor.DefaultCatalog()
	if cfg.Profile != "" {
		p, err := sim.LoadProfile(cfg.Profile)
		if err != nil {
			return err
		}
		if catalog, err = p.Catalog(); err != nil {
			return err
		}
	}
	ids, err := cfg.SensorIDs()
	if err != nil {
		return err
	}

	pub, err := connect(ctx, cfg)
	if err != nil {
		return err
	}
	defer pub.Close()
	logger.Info("connected", "transport", cfg.Transport, "broker", cfg.BrokerURL())

	drv := sim.New(sim.Config{Catalog: catalog, Logger: logger})
	defer drv.Close()

	clientCfg := client.Config{
		Driver:      drv,
		Catalog:     catalog,
		Permissions: permission.NewGrants(splitList(cfg.Grants)...),
		Logger:      logger,
	}
	if cfg.EventLog != "" {
		fl, err := sensorlog.NewFileLogger(cfg.EventLog)
		if err != nil {
			return fmt.Errorf("failed to create event log: %w", err)
		}
		defer fl.Close()
		clientCfg.EventLog = fl
	}
	c, err := client.New(clientCfg)
	if err != nil {
		return err
	}
	defer c.Close()

	bridgeCfg := bridge.Config{
		Client:    c,
		Publisher: pub,
		Sensors:   ids,
		Prefix:    cfg.Prefix,
		Logger:    logger,
	}
	if cfg.Interval > 0 {
		iv := cfg.Interval.Nanoseconds()
		bridgeCfg.Interval = &iv
	}
	b, err := bridge.New(bridgeCfg)
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return b.Run(gctx)
	})
	g.Go(func() error {
		return serveHealth(gctx, cfg.HTTPPort, b, logger)
	})
	if cfg.Advertise {
		g.Go(func() error {
			return advertise(gctx, cfg, b, logger)
		})
	}
	return g.Wait()
}

func connect(ctx context.Context, cfg Config) (bridge.Publisher, error) {
	if cfg.Transport == "redis" {
		return redis.Connect(ctx, redis.Config{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
			TTL:      cfg.RedisTTL,
		})
	}
	return mqtt.Connect(ctx, mqtt.Config{
		Broker:   cfg.MQTTBroker,
		ClientID: cfg.MQTTClientID,
		Username: cfg.MQTTUsername,
		Password: cfg.MQTTPassword,
	})
}

// healthResponse is the body of GET /health.
type healthResponse struct {
	Status    string   `json:"status"`
	Version   string   `json:"version"`
	Prefix    string   `json:"prefix"`
	Sensors   []string `json:"sensors"`
	Published uint64   `json:"published"`
	Failed    uint64   `json:"failed"`
	Errors    uint64   `json:"errors"`
}

func healthHandler(b *bridge.Bridge) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		st := b.Stats()
		resp := healthResponse{
			Status:    "ok",
			Version:   version,
			Prefix:    b.Prefix(),
			Published: st.Published,
			Failed:    st.Failed,
			Errors:    st.Errors,
		}
		for _, d := range b.Sensors() {
			resp.Sensors = append(resp.Sensors, d.Name)
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	})
	return mux
}

func serveHealth(ctx context.Context, port int, b *bridge.Bridge, logger *slog.Logger) error {
	srv := &http.Server{
		Addr:              net.JoinHostPort("", strconv.Itoa(port)),
		Handler:           healthHandler(b),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	logger.Info("health endpoint listening", "port", port)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("health endpoint: %w", err)
	}
	return nil
}

// bridgeInfo is what the bridge announces over mDNS.
func bridgeInfo(cfg Config, b *bridge.Bridge) *discovery.BridgeInfo {
	info := &discovery.BridgeInfo{
		Instance: cfg.Instance,
		Port:     uint16(cfg.HTTPPort),
		Prefix:   b.Prefix(),
		Broker:   cfg.BrokerURL(),
		Version:  version,
	}
	for _, d := range b.Sensors() {
		info.Sensors = append(info.Sensors, d.Name)
	}
	return info
}

func advertise(ctx context.Context, cfg Config, b *bridge.Bridge, logger *slog.Logger) error {
	adv := discovery.NewMDNSAdvertiser(discovery.AdvertiserConfig{Interface: cfg.Interface})
	if err := adv.Advertise(ctx, bridgeInfo(cfg, b)); err != nil {
		return fmt.Errorf("advertise: %w", err)
	}
	logger.Info("advertising", "service", discovery.ServiceType, "instance", cfg.Instance)

	<-ctx.Done()
	return adv.Stop()
}
