// Command collector receives raw telemetry batches over MQTT, merges them into
// the canonical dataset and backfills batch files from INGEST_DIR on start.
package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"fleettemp/config"
	"fleettemp/ingest"
	"fleettemp/logging"
	"fleettemp/metrics"
	"fleettemp/services"
	"fleettemp/store"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.LoadConfig()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}
	log := logging.New(cfg.Log.Verbose)

	if err := run(ctx, cfg, log); err != nil {
		log.Error("collector failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, log *slog.Logger) error {
	w, err := store.Open(ctx, log, cfg)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer w.Close()

	cache, err := services.NewCacheService(ctx, log, cfg.Redis)
	if err != nil {
		log.Warn("redis unavailable, live events disabled", "error", err)
	}
	defer cache.Close()

	ing, err := newIngester(cfg, log, w, cache)
	if err != nil {
		return err
	}

	go func() {
		if err := metrics.Serve(ctx, log, cfg.Metrics.Addr); err != nil {
			log.Error("metrics server failed", "error", err)
		}
	}()

	if cfg.Ingest.Dir != "" {
		results, err := ing.IngestDir(ctx, cfg.Ingest.Dir)
		log.Info("backfill finished", "dir", cfg.Ingest.Dir, "batches", len(results))
		if err != nil {
			log.Warn("backfill had failures", "error", err)
		}
	}

	if cfg.MQTT.URL == "" {
		log.Info("no MQTT broker configured, exiting after backfill")
		return nil
	}

	client := mqtt.NewClient(newMQTTOptions(ctx, cfg.MQTT, log, ing))
	token := client.Connect()
	token.Wait()
	if err := token.Error(); err != nil {
		return fmt.Errorf("mqtt connection failed: %w", err)
	}
	log.Info("collector running", "mqtt", cfg.MQTT.URL, "store", cfg.Store.Driver, "metrics", cfg.Metrics.Addr)

	<-ctx.Done()
	log.Info("collector shutting down")
	client.Disconnect(250)
	return nil
}

func newIngester(cfg *config.Config, log *slog.Logger, w store.Writer, cache *services.CacheService) (*ingest.Ingester, error) {
	icfg := ingest.Config{
		Logger: log,
		Store:  w,
		Limit:  cfg.Pipeline.LimitInterval,
		Step:   cfg.Pipeline.DefaultInterval,
	}
	if cache.Available() {
		icfg.Publisher = cache
		icfg.Cache = cache
	}
	return ingest.New(icfg)
}

func newMQTTOptions(ctx context.Context, cfg config.MQTTConfig, log *slog.Logger, ing *ingest.Ingester) *mqtt.ClientOptions {
	clientID := cfg.ClientID
	if clientID == "" {
		clientID = "collector-" + time.Now().Format("20060102150405")
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.URL)
	opts.SetClientID(clientID)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(2 * time.Second)
	opts.SetDefaultPublishHandler(func(_ mqtt.Client, msg mqtt.Message) {
		if _, err := handleBatch(ctx, ing, msg.Payload()); err != nil {
			log.Error("batch rejected", "topic", msg.Topic(), "error", err)
		}
	})
	opts.OnConnect = func(client mqtt.Client) {
		token := client.Subscribe(cfg.Topic, 1, nil)
		token.Wait()
		if err := token.Error(); err != nil {
			log.Error("mqtt subscribe failed", "topic", cfg.Topic, "error", err)
			return
		}
		log.Info("collector subscribed", "topic", cfg.Topic)
	}
	opts.OnConnectionLost = func(_ mqtt.Client, err error) {
		log.Warn("mqtt connection lost", "error", err)
	}
	return opts
}

// handleBatch decodes one message payload and ingests it.
func handleBatch(ctx context.Context, ing *ingest.Ingester, payload []byte) (ingest.Result, error) {
	raw, err := ingest.DecodeBatch(bytes.NewReader(payload))
	if err != nil {
		metrics.BatchesReceived.Inc()
		metrics.BatchesFailed.Inc()
		return ingest.Result{}, fmt.Errorf("decode payload: %w", err)
	}
	if len(raw) == 0 {
		return ingest.Result{}, errors.New("empty batch")
	}
	return ing.Ingest(ctx, raw)
}
