package main

import (
	"MigraScope/internal/config"
	"MigraScope/internal/logging"
	"MigraScope/internal/model"
	"MigraScope/internal/probe"
	"MigraScope/internal/probe/persistent"
	"MigraScope/internal/report"
	"MigraScope/internal/session"
	"MigraScope/pkg/pcap"
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"
)

func main() {
	// --- Command-Line Flag Parsing ---
	mode := flag.String("mode", "collect", "Operating mode: 'pub' to capture and publish, 'collect' to subscribe and analyze.")
	configPath := flag.String("config", "", "Path to the configuration file (defaults are used when empty).")
	iface := flag.String("iface", "", "Interface to capture packets from (pub mode, overrides capture.interface).")
	duration := flag.Duration("duration", 0, "How long to capture or collect (overrides capture.duration).")
	name := flag.String("name", "probe", "Run name used for the report (collect mode).")
	record := flag.String("record", "", "Also persist every collected record to this directory (collect mode).")
	flag.Parse()

	cfg := config.Default()
	if *configPath != "" {
		var err error
		if cfg, err = config.LoadConfig(*configPath); err != nil {
			log.Fatalf("Failed to load configuration: %v", err)
		}
	}
	logger, err := logging.New(cfg.Log)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}

	d, err := cfg.Capture.CaptureDuration()
	if err != nil {
		logger.Fatal(err)
	}
	if *duration > 0 {
		d = *duration
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// --- Mode Dispatch ---
	switch *mode {
	case "pub":
		if *iface != "" {
			cfg.Capture.Interface = *iface
		}
		err = runProbe(ctx, cfg, d, logger)
	case "collect":
		err = runCollector(ctx, cfg, d, *name, *record, logger)
	default:
		fmt.Fprintf(os.Stderr, "Invalid mode: %s\n", *mode)
		flag.Usage()
		os.Exit(1)
	}
	if err != nil {
		logger.Fatal(err)
	}
}

// runProbe captures packets on the configured interface and publishes them to NATS.
func runProbe(ctx context.Context, cfg *config.Config, d time.Duration, logger *log.Logger) error {
	logger.Infof("Starting ms-probe in PROBE mode on interface: %s", cfg.Capture.Interface)

	pub, err := probe.NewPublisher(cfg.Probe, logger)
	if err != nil {
		return fmt.Errorf("failed to connect to NATS: %w", err)
	}
	defer pub.Close()

	live := pcap.LiveSource{
		Interface:   cfg.Capture.Interface,
		Duration:    d,
		SnapshotLen: cfg.Capture.SnapshotLen,
		Promiscuous: cfg.Capture.Promiscuous,
	}

	packetsPublished := 0
	err = live.Stream(ctx, func(rec model.PacketRecord) error {
		if err := pub.Publish(rec); err != nil {
			logger.Warnf("Failed to publish packet: %v", err)
			return nil
		}
		packetsPublished++
		if packetsPublished%1000 == 0 {
			logger.Infof("%d packets published...", packetsPublished)
		}
		return nil
	})
	logger.Infof("Capture finished, %d packets published.", packetsPublished)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// runCollector subscribes to NATS for the given duration and analyzes what arrived.
func runCollector(ctx context.Context, cfg *config.Config, d time.Duration, name, recordDir string, logger *log.Logger) error {
	logger.Info("Starting ms-probe in COLLECT mode...")

	sub, err := probe.NewSubscriber(cfg.Probe, logger)
	if err != nil {
		return fmt.Errorf("failed to create subscriber: %w", err)
	}
	defer sub.Close()
	sub.Duration = d

	if recordDir != "" {
		worker, err := persistent.NewWorker(persistent.Config{Path: recordDir, Encoding: persistent.EncodingCSV}, logger)
		if err != nil {
			return err
		}
		defer func() {
			if err := worker.Stop(); err != nil {
				logger.Errorf("Failed to persist records: %v", err)
			}
		}()
		sub.OnRecord = worker.Persist
	}

	ssn, err := session.New(cfg, logger)
	if err != nil {
		return err
	}
	defer ssn.Close()

	run, err := ssn.Run(ctx, name, sub)
	if run == nil {
		return err
	}
	if werr := report.Write(os.Stdout, run.Result); werr != nil {
		logger.Errorf("Failed to print report: %v", werr)
	}
	return err
}
