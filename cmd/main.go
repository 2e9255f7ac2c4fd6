package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"still_controller/internal/actuator"
	"still_controller/internal/config"
	"still_controller/internal/discovery"
	"still_controller/internal/handlers"
	"still_controller/internal/journal"
	"still_controller/internal/logger"
	"still_controller/internal/phase"
	"still_controller/internal/repository"
	"still_controller/internal/repository/db"
	"still_controller/internal/safety"
	"still_controller/internal/sensor"
	"still_controller/internal/serialbus"
	"still_controller/internal/server"
	"still_controller/internal/service"
	"still_controller/internal/simulator"
	"still_controller/internal/supervisor"
	"still_controller/internal/telemetry"
	"still_controller/internal/transport"
)

const (
	defaultConfigPath = "configs/config.yml"
	shutdownTimeout   = 10 * time.Second
)

// @title                       Still Controller API
// @version                     1.0
// @description                 Phase control, safety interlocks and telemetry for a distillation still.
// @BasePath                    /
// @securityDefinitions.apikey  BearerAuth
// @in                          header
// @name                        Authorization
func main() {
	path := defaultConfigPath
	if p := os.Getenv("STILL_CONFIG"); p != "" {
		path = p
	}

	cfg, err := config.Load(path)
	if err == nil {
		err = cfg.Validate()
	}
	if err != nil {
		// no logger yet; the config decides where it writes
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(cfg.Log)
	defer func() { _ = log.Sync() }()

	if err := run(cfg, log); err != nil {
		log.Errorw("controller_exited", "err", err)
		_ = log.Sync()
		os.Exit(1)
	}
}

func run(cfg config.Config, log *logger.Logger) error {
	sqlDB, err := openDB(cfg.DB.Path, log)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := sqlDB.Close(); cerr != nil {
			log.Errorw("sqlite_close_failed", "err", cerr)
		}
	}()
	repos := repository.NewRepository(sqlDB)

	bus, heater, closer, err := openBackends(cfg, log)
	if err != nil {
		return err
	}
	defer func() { _ = closer.Close() }()

	codec, err := telemetry.CodecByName(cfg.Telemetry.Codec)
	if err != nil {
		return err
	}
	hub := transport.NewHub(cfg.Telemetry.InboundQueue, cfg.Telemetry.SubscriberBuffer)
	rec := journal.NewRecorder(repos.EventRepo, repos.StateRepo, log, cfg.Supervisor.JournalQueue)

	sup := supervisor.New(supervisor.Deps{
		Reader:    sensor.NewReader(bus, cfg.Safety.SensorTimeout, sensor.WithTrendWindow(cfg.Sensor.TrendWindow)),
		Monitor:   safety.NewMonitor(cfg.Safety),
		Phase:     phase.NewController(cfg.Phase, time.Now()),
		Actuator:  actuator.New(heater),
		Telemetry: telemetry.NewPublisher(hub, codec, log),
		Journal:   rec,
		Log:       log,
	}, supervisor.Options{Period: cfg.Supervisor.Period})

	services := service.NewService(repos, service.Deps{
		Snapshots: sup,
		Commands:  hub,
		Codec:     codec,
		Auth:      service.AuthConfig{SigningKey: cfg.Auth.SigningKey, TokenTTL: cfg.Auth.TokenTTL},
	})
	apiHandler := handlers.NewHandler(services, log,
		handlers.WithStream(hub, codec.Name() == telemetry.CodecMsgPack))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	// the journal outlives the loop so the final snapshot and SHUTDOWN event are kept
	journalCtx, journalCancel := context.WithCancel(context.Background())
	defer journalCancel()

	journalDone := make(chan struct{})
	go func() {
		defer close(journalDone)
		rec.Run(journalCtx, sup, cfg.Supervisor.PersistEvery)
	}()

	supDone := make(chan error, 1)
	go func() { supDone <- sup.Run(ctx) }()

	srv := server.New(cfg.Port, apiHandler.InitRoutes())
	srvDone := make(chan error, 1)
	go func() { srvDone <- srv.Run() }()

	log.Infow("controller_started",
		"addr", srv.Addr(),
		"period", cfg.Supervisor.Period,
		"sensor_backend", cfg.Sensor.Backend,
		"actuator_backend", cfg.Actuator.Backend,
		"codec", codec.Name(),
	)

	mdns := advertise(cfg.Discovery, srv.Addr(), log)

	runErr := waitForShutdown(supDone, srvDone, log)

	// stop the loop first so the heater is off before anything else goes away
	cancel()
	if err := <-supDone; err != nil && !errors.Is(err, context.Canceled) && runErr == nil {
		runErr = err
	}
	hub.Close()
	mdns.Close()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Errorw("server_forced_shutdown", "err", err)
	}
	journalCancel()
	<-journalDone

	log.Infow("controller_stopped", "events_written", rec.Written(), "events_dropped", rec.Dropped())
	return runErr
}

// waitForShutdown blocks until a termination signal, a SHUTDOWN command ending the
// control loop, or an HTTP server failure. A finished supervisor result is pushed back
// so the caller can collect it once.
func waitForShutdown(supDone chan error, srvDone <-chan error, log *logger.Logger) error {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case sig := <-quit:
		log.Infow("shutdown_signal", "signal", sig.String())
		return nil
	case err := <-supDone:
		log.Infow("control_loop_ended", "err", err)
		supDone <- err
		return nil
	case err := <-srvDone:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	}
}

// advertise publishes the HTTP API over mDNS. Discovery is a convenience, so a failure
// is logged and the controller keeps running.
func advertise(cfg discovery.Config, addr string, log *logger.Logger) *discovery.Advertiser {
	_, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		log.Warnw("mdns_skipped", "addr", addr, "err", err)
		return nil
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		log.Warnw("mdns_skipped", "addr", addr, "err", err)
		return nil
	}
	a, err := discovery.Advertise(cfg, port, log)
	if err != nil {
		log.Warnw("mdns_advertise_failed", "err", err)
		return nil
	}
	return a
}

// openDB initializes the SQLite database using configuration.
func openDB(path string, log *logger.Logger) (*sql.DB, error) {
	if path == "" {
		log.Infow("db.path not set in config; using default file", "default", "still.db")
		path = "still.db"
	}
	return db.InitDB(path)
}

type closers []io.Closer

func (cs closers) Close() error {
	var errs []error
	for _, c := range cs {
		errs = append(errs, c.Close())
	}
	return errors.Join(errs...)
}

// openBackends builds the sensor bus and heater driver. Two sim backends share one plant
// so the heater warms what the sensor reads; serial backends on the same port share one
// link.
func openBackends(cfg config.Config, log *logger.Logger) (sensor.Bus, actuator.Hardware, io.Closer, error) {
	var (
		plant *simulator.Plant
		links = map[string]*serialbus.Link{}
		cs    closers
	)
	simPlant := func() *simulator.Plant {
		if plant == nil {
			plant = simulator.New(cfg.Simulator)
		}
		return plant
	}
	link := func(s config.Serial) (*serialbus.Link, error) {
		if l, ok := links[s.Port]; ok {
			return l, nil
		}
		l, err := serialbus.Open(s.Port, s.Baud, s.ReadTimeout)
		if err != nil {
			return nil, err
		}
		links[s.Port] = l
		cs = append(cs, l)
		return l, nil
	}

	var bus sensor.Bus
	switch cfg.Sensor.Backend {
	case config.BackendSerial:
		l, err := link(cfg.Sensor.Serial)
		if err != nil {
			return nil, nil, nil, err
		}
		bus = serialbus.NewSensor(l)
	default:
		bus = simPlant()
	}

	var hw actuator.Hardware
	switch cfg.Actuator.Backend {
	case config.BackendSerial:
		l, err := link(cfg.Actuator)
		if err != nil {
			_ = cs.Close()
			return nil, nil, nil, err
		}
		hw = serialbus.NewHeater(l)
	default:
		hw = simPlant()
	}

	if plant != nil {
		log.Infow("simulator_attached", "ambient_c", cfg.Simulator.AmbientC, "time_scale", cfg.Simulator.TimeScale)
	}
	return bus, hw, cs, nil
}
