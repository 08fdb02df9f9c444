package agent

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"time"

	config "github.com/mwantia/audiopool/internal/config/server"
	"github.com/mwantia/audiopool/internal/session"
	"github.com/mwantia/audiopool/pkg/log"
	"github.com/mwantia/audiopool/pkg/pool"
	"github.com/mwantia/audiopool/pkg/waveform"
	"github.com/mwantia/fabric/pkg/container"
)

// AudioPoolAgent keeps a pool session open, invalidates cached waveforms of
// files changed on disk and saves the entry list periodically and on shutdown.
type AudioPoolAgent struct {
	mutex sync.RWMutex
	wait  sync.WaitGroup

	cfg     *config.BaseServerConfig
	sc      *container.ServiceContainer
	log     log.LoggerService
	session *session.Session
	watcher *Watcher
}

func NewAgent(cfg *config.BaseServerConfig) *AudioPoolAgent {
	return &AudioPoolAgent{
		cfg: cfg,
		sc:  container.NewServiceContainer(),
		log: log.NewLoggerService("agent", cfg.Log),
	}
}

func (a *AudioPoolAgent) setupServices(ctx context.Context) error {
	errs := container.Errors{}

	a.log.Debug("Registering 'LoggerService'...")
	errs.Add(container.Register[log.LoggerServiceImpl](a.sc,
		container.With[log.LoggerService](),
		container.WithInstance(a.log)))

	s, err := session.Open(ctx, a.cfg, a.log)
	if err != nil {
		return fmt.Errorf("failed to open session: %w", err)
	}
	a.session = s

	a.log.Debug("Registering 'Pool'...")
	errs.Add(container.Register[pool.Pool](a.sc,
		container.WithInstance(s.Pool)))

	a.log.Debug("Registering 'Loader'...")
	errs.Add(container.Register[waveform.Loader](a.sc,
		container.WithInstance(s.Loader)))

	if a.cfg.Agent.Watch {
		w, err := NewWatcher(s.Pool, s.Loader, a.log.Named("watcher"))
		if err != nil {
			errs.Add(fmt.Errorf("failed to create watcher: %w", err))
		} else {
			a.watcher = w
		}
	}

	return errs.Errors()
}

func (a *AudioPoolAgent) Serve(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt)
	defer cancel()

	a.mutex.Lock()

	if err := a.setupServices(ctx); err != nil {
		a.mutex.Unlock()
		a.closeSession()
		return err
	}

	if a.watcher != nil {
		a.wait.Add(1)
		go func() {
			defer a.wait.Done()
			a.watcher.Run(ctx)
		}()
	}

	a.wait.Add(1)
	go func() {
		defer a.wait.Done()
		a.saveLoop(ctx)
	}()

	a.mutex.Unlock()
	a.log.Info("Serving pool '%s' with %d entries", a.session.Pool.ProjectDir(), a.session.Pool.Len())
	<-ctx.Done()

	timeout, err := time.ParseDuration(a.cfg.ShutdownTimeout)
	if err != nil {
		// Set default of 60 seconds if error
		timeout = 60 * time.Second
	}

	shutdown, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	a.wait.Wait()

	errs := container.Errors{}
	if err := a.session.Save(shutdown); err != nil {
		errs.Add(fmt.Errorf("failed to save pool on shutdown: %w", err))
	}
	if err := a.sc.Cleanup(shutdown); err != nil {
		errs.Add(fmt.Errorf("failed to complete service container cleanup: %w", err))
	}
	a.closeSession()

	return errs.Errors()
}

// Session returns the open session once Serve has set it up.
func (a *AudioPoolAgent) Session() *session.Session {
	a.mutex.RLock()
	defer a.mutex.RUnlock()
	return a.session
}

func (a *AudioPoolAgent) saveLoop(ctx context.Context) {
	interval, err := time.ParseDuration(a.cfg.Agent.SaveInterval)
	if err != nil || interval <= 0 {
		a.log.Debug("Periodic saving disabled (save_interval '%s')", a.cfg.Agent.SaveInterval)
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			saved, err := a.session.SaveIfDirty(ctx)
			if err != nil {
				a.log.Error("Periodic save failed: %v", err)
				continue
			}
			if saved {
				a.log.Debug("Saved pool")
			}
		}
	}
}

func (a *AudioPoolAgent) closeSession() {
	if a.watcher != nil {
		if err := a.watcher.Close(); err != nil {
			a.log.Warn("Failed to close watcher: %v", err)
		}
	}
	if a.session != nil {
		if err := a.session.Close(); err != nil {
			a.log.Warn("Failed to close session: %v", err)
		}
	}
}
