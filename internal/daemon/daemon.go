// Package daemon ties the components together and manages the process
// lifecycle.
package daemon

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"geomesh.io/hyperbr/internal/command"
	"geomesh.io/hyperbr/internal/config"
	"geomesh.io/hyperbr/internal/dashboard"
	"geomesh.io/hyperbr/internal/eventbus"
	"geomesh.io/hyperbr/internal/firmware"
	"geomesh.io/hyperbr/internal/log"
	"geomesh.io/hyperbr/internal/pipeline"
	"geomesh.io/hyperbr/internal/registry"
	"geomesh.io/hyperbr/internal/sink"
	"geomesh.io/hyperbr/internal/source"
)

const (
	busPartitions = 4
	busQueueSize  = 256
)

// Daemon manages the border router daemon process.
type Daemon struct {
	config     *config.GlobalConfig
	configPath string

	bus       eventbus.EventBus
	reg       *registry.Registry
	fw        *firmware.Manager
	pipe      *pipeline.Pipeline
	snk       sink.Sink
	dash      *dashboard.Server
	udsServer *command.UDSServer

	ctx          context.Context
	cancel       context.CancelFunc
	shutdownChan chan struct{}
	sigChan      chan os.Signal
}

// New loads the configuration and creates a stopped daemon.
func New(configPath string) (*Daemon, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	d := &Daemon{
		config:       cfg,
		configPath:   configPath,
		shutdownChan: make(chan struct{}),
	}
	d.ctx, d.cancel = context.WithCancel(context.Background())
	return d, nil
}

// Start initializes and starts every component.
func (d *Daemon) Start() error {
	if err := log.Init(&d.config.Log); err != nil {
		return fmt.Errorf("init logging: %w", err)
	}
	logger := log.GetLogger()
	logger.WithFields(map[string]interface{}{
		"hostname": d.config.Node.Hostname,
		"config":   d.configPath,
	}).Info("starting hyperbr daemon")

	if err := d.writePIDFile(); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}

	d.bus = eventbus.New(busPartitions, busQueueSize)

	var store *registry.FileStore
	if d.config.Registry.Persist {
		var err error
		store, err = registry.NewFileStore(d.config.Registry.DataDir)
		if err != nil {
			logger.WithError(err).Warn("device persistence disabled")
			store = nil
		}
	}
	d.reg = registry.New(d.bus, store)
	if store != nil {
		d.reg.Restore()
	}

	if maxAge := d.config.RegistryStaleAfter(); maxAge > 0 {
		go func() {
			ticker := time.NewTicker(maxAge / 4)
			defer ticker.Stop()
			for {
				select {
				case <-ticker.C:
					d.reg.PruneStale(maxAge)
				case <-d.ctx.Done():
					return
				}
			}
		}()
	}

	d.fw = firmware.NewManager(
		newUDPChunkTransport(d.config.Firmware.Port),
		d.bus,
		firmware.Defaults{
			ChunkSize: d.config.Firmware.ChunkSize,
			Interval:  d.config.FirmwareInterval(),
		},
	)

	src, err := source.New(d.config.Ingest.Source)
	if err != nil {
		return fmt.Errorf("create source: %w", err)
	}
	d.snk, err = sink.New(d.config.Forward.Sink)
	if err != nil {
		return fmt.Errorf("create sink: %w", err)
	}

	d.pipe = pipeline.New(d.config, src, d.snk, d.reg)
	if err := d.pipe.Start(); err != nil {
		return fmt.Errorf("start pipeline: %w", err)
	}

	if d.config.Dashboard.Enabled {
		d.dash, err = dashboard.NewServer(d.config.Dashboard.Listen, d.reg, d.fw, d.pipe.Stats, d.bus)
		if err != nil {
			return fmt.Errorf("create dashboard: %w", err)
		}
		if err := d.dash.Start(); err != nil {
			return fmt.Errorf("start dashboard: %w", err)
		}
	}

	handler := command.NewHandler(d.reg, d.fw, d.pipe.Stats)
	handler.SetShutdownFunc(func() {
		logger.Info("shutdown requested via control socket")
		close(d.shutdownChan)
	})
	d.udsServer = command.NewUDSServer(d.config.Control.Socket, handler)
	go func() {
		if err := d.udsServer.Start(d.ctx); err != nil && err != context.Canceled {
			logger.WithError(err).Error("control socket server failed")
		}
	}()

	logger.Info("daemon started")
	return nil
}

// Stop shuts everything down in reverse dependency order.
func (d *Daemon) Stop() {
	logger := log.GetLogger()
	logger.Info("stopping daemon")

	if d.udsServer != nil {
		d.udsServer.Stop()
	}
	if d.pipe != nil {
		d.pipe.Stop()
	}
	if d.fw != nil {
		d.fw.Close()
	}
	if d.dash != nil {
		if err := d.dash.Stop(context.Background()); err != nil {
			logger.WithError(err).Error("dashboard stop failed")
		}
	}
	if d.bus != nil {
		if err := d.bus.Close(); err != nil {
			logger.WithError(err).Error("event bus close failed")
		}
	}
	if d.snk != nil {
		d.snk.Close()
	}

	d.cancel()
	if d.sigChan != nil {
		signal.Stop(d.sigChan)
	}
	d.removePIDFile()
	logger.Info("daemon stopped")
}

// Run blocks until a shutdown signal or a daemon_shutdown command.
func (d *Daemon) Run() error {
	d.sigChan = make(chan os.Signal, 1)
	signal.Notify(d.sigChan, syscall.SIGTERM, syscall.SIGINT)

	select {
	case sig := <-d.sigChan:
		log.GetLogger().WithField("signal", sig.String()).Info("received shutdown signal")
	case <-d.shutdownChan:
	case <-d.ctx.Done():
	}
	d.Stop()
	return nil
}

func (d *Daemon) writePIDFile() error {
	path := d.config.Control.PIDFile
	if path == "" {
		return nil
	}
	return os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())), 0o644)
}

func (d *Daemon) removePIDFile() {
	if path := d.config.Control.PIDFile; path != "" {
		os.Remove(path)
	}
}
