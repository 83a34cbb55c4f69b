// Command fablock-bridge connects a door lock on a serial port to an MQTT
// broker and serves a live status page.
package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"fablock/host/bridge"
	"fablock/host/config"
	"fablock/host/lock"
	"fablock/host/web"
)

var (
	cfgPath = flag.String("cfg", "fablock.yaml", "Path to YAML config file")
	device  = flag.String("device", "", "Serial device path (overrides the config)")
)

func main() {
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatalf("Error: %v", err)
	}
	if *device != "" {
		cfg.Serial.Device = *device
	}

	client, err := lock.Connect(cfg.SerialPort())
	if err != nil {
		log.Fatalf("Error: %v", err)
	}
	defer client.Close()
	client.SetTimeout(cfg.ReplyTimeout)

	v, err := client.Version()
	if err != nil {
		log.Fatalf("Error: lock on %s did not answer: %v", cfg.Serial.Device, err)
	}
	log.Printf("lock on %s speaks protocol version %d", cfg.Serial.Device, v)

	var pub bridge.Publisher = bridge.NopPublisher{}
	if broker := cfg.Broker(); broker != "" {
		rp, err := bridge.NewRealPublisher(bridge.BrokerConfig{
			Broker:   broker,
			ClientID: cfg.MQTT.ClientID,
			Username: cfg.MQTT.Username,
			Password: cfg.MQTT.Password,
		})
		if err != nil {
			log.Fatalf("Error: mqtt: %v", err)
		}
		pub = rp
		log.Printf("publishing to %s under %s/", broker, cfg.MQTT.TopicPrefix)
	} else {
		log.Println("MQTT disabled (no host configured)")
	}
	defer pub.Close()

	b := bridge.New(client, pub, cfg.MQTT.TopicPrefix)
	if err := b.Start(); err != nil {
		log.Fatalf("Error: %v", err)
	}

	var srv *web.Server
	if cfg.HTTP.Listen != "" {
		srv = web.New(cfg.HTTP.Listen)
		b.OnState(srv.Broadcast)
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Printf("web: %v", err)
			}
		}()
		log.Printf("status page on %s", cfg.HTTP.Listen)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	msgs, cancel := client.Subscribe()
	defer cancel()
	if err := b.Run(ctx, msgs, cfg.PollInterval); err != nil && !errors.Is(err, context.Canceled) {
		log.Printf("bridge: %v", err)
	}

	if srv != nil {
		shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
		defer done()
		srv.Shutdown(shutdownCtx)
	}
	log.Println("shutting down")
}
