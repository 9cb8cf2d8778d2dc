package simulator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog/log"
	"github.com/sourcegraph/conc"
	"github.com/travigo/transitlive/pkg/catalog"
	"github.com/travigo/transitlive/pkg/ctdf"
)

// Publisher receives every outbound update. broadcast.Hub implements it.
type Publisher interface {
	PublishArrivals(timestamp time.Time, predictions []*ctdf.Prediction)
	PublishServiceAlert(timestamp time.Time, action ctdf.ServiceAlertAction, serviceAlert *ctdf.ServiceAlert)
}

// AlertLoader supplies previously persisted alerts on first initialisation
type AlertLoader interface {
	LoadServiceAlerts(ctx context.Context) ([]*ctdf.ServiceAlert, error)
}

type cadence int

const (
	cadenceTick cadence = iota
	cadenceGenerate
	cadenceExpire
)

func (c cadence) String() string {
	switch c {
	case cadenceTick:
		return "tick"
	case cadenceGenerate:
		return "generate"
	default:
		return "expire"
	}
}

type command struct {
	fn   func(s *state, now time.Time)
	done chan struct{}
}

// Engine owns every vehicle, prediction & alert. All reads and writes run on a single
// coordinator goroutine, fed by the schedulers and by callers through commands.
type Engine struct {
	config      Config
	reader      catalog.Reader
	publisher   Publisher
	alertLoader AlertLoader
	clock       func() time.Time

	state *state

	cadences chan cadence
	commands chan command

	cancel     context.CancelFunc
	stop       chan struct{}
	done       chan struct{}
	schedulers conc.WaitGroup

	started   atomic.Bool
	startOnce sync.Once
	stopOnce  sync.Once

	alertsSeeded bool
	seedMutex    sync.Mutex
}

type Option func(*Engine)

func WithRandom(random Random) Option {
	return func(e *Engine) {
		e.state.random = random
	}
}

func WithClock(clock func() time.Time) Option {
	return func(e *Engine) {
		e.clock = clock
	}
}

func WithAlertLoader(loader AlertLoader) Option {
	return func(e *Engine) {
		e.alertLoader = loader
	}
}

func NewEngine(config Config, reader catalog.Reader, publisher Publisher, options ...Option) (*Engine, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	e := &Engine{
		config:    config,
		reader:    reader,
		publisher: publisher,
		clock:     time.Now,
		state:     newState(config, NewRandom(config.Seed)),
		cadences:  make(chan cadence),
		commands:  make(chan command),
		stop:      make(chan struct{}),
		done:      make(chan struct{}),
	}

	for _, option := range options {
		option(e)
	}

	return e, nil
}

// Start launches the coordinator and schedulers, and initialises from the catalog
// in the background, retrying until it succeeds or the engine is stopped
func (e *Engine) Start(ctx context.Context) {
	e.startOnce.Do(func() {
		ctx, e.cancel = context.WithCancel(ctx)

		e.started.Store(true)
		go e.run()

		e.schedule(e.config.TickInterval, cadenceTick)
		e.schedule(e.config.GenerationInterval, cadenceGenerate)
		e.schedule(e.config.ExpiryInterval, cadenceExpire)

		e.schedulers.Go(func() {
			e.initialiseWithRetry(ctx)
		})

		log.Info().
			Dur("tick", e.config.TickInterval).
			Dur("generation", e.config.GenerationInterval).
			Dur("expiry", e.config.ExpiryInterval).
			Msg("Simulator started")
	})
}

// Stop halts the schedulers and then the coordinator. Safe to call more than once.
func (e *Engine) Stop() {
	e.stopOnce.Do(func() {
		if e.cancel != nil {
			e.cancel()
		}
		close(e.stop)
		e.schedulers.Wait()

		e.startOnce.Do(func() {
			close(e.done)
		})
		<-e.done

		log.Info().Msg("Simulator stopped")
	})
}

func (e *Engine) schedule(interval time.Duration, c cadence) {
	e.schedulers.Go(func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-e.stop:
				return
			case <-ticker.C:
				select {
				case e.cadences <- c:
				case <-e.stop:
					return
				}
			}
		}
	})
}

func (e *Engine) run() {
	defer close(e.done)

	for {
		select {
		case <-e.stop:
			return
		case c := <-e.cadences:
			e.handleCadence(c, e.clock())
		case cmd := <-e.commands:
			cmd.fn(e.state, e.clock())
			close(cmd.done)
		}
	}
}

func (e *Engine) handleCadence(c cadence, now time.Time) {
	if !e.state.initialised {
		return
	}

	switch c {
	case cadenceTick:
		batch := e.state.tick(now)
		e.publisher.PublishArrivals(now, clonePredictions(batch))

		log.Debug().Int("predictions", len(batch)).Msg("Simulator tick")
	case cadenceGenerate:
		if change := e.state.maybeGenerateAlert(now); change != nil {
			e.publishAlert(now, change)
		}
	case cadenceExpire:
		for _, change := range e.state.expireAlerts(now) {
			e.publishAlert(now, change)
		}
	}
}

func (e *Engine) publishAlert(now time.Time, change *alertChange) {
	if change == nil || change.Action == "" {
		return
	}
	e.publisher.PublishServiceAlert(now, change.Action, cloneAlert(change.Alert))
}

// do runs fn on the coordinator and waits for it to finish
func (e *Engine) do(ctx context.Context, fn func(s *state, now time.Time)) error {
	if !e.started.Load() {
		return ErrEngineStopped
	}

	cmd := command{fn: fn, done: make(chan struct{})}

	select {
	case e.commands <- cmd:
	case <-e.done:
		return ErrEngineStopped
	case <-e.stop:
		return ErrEngineStopped
	case <-ctx.Done():
		return ctx.Err()
	}

	<-cmd.done
	return nil
}

func (e *Engine) initialiseWithRetry(ctx context.Context) {
	retry := backoff.NewExponentialBackOff()
	retry.MaxElapsedTime = 0

	err := backoff.RetryNotify(func() error {
		err := e.Reinitialize(ctx)
		if errors.Is(err, ErrEngineStopped) {
			return backoff.Permanent(err)
		}
		return err
	}, backoff.WithContext(retry, ctx), func(err error, next time.Duration) {
		log.Error().Err(err).Dur("retry", next).Msg("Failed to initialise simulator")
	})

	if err != nil && ctx.Err() == nil {
		log.Error().Err(err).Msg("Simulator initialisation abandoned")
	}
}

// Reinitialize reads the catalog and replaces every vehicle & prediction in one step.
// Alerts are kept. On error the current state is left untouched.
func (e *Engine) Reinitialize(ctx context.Context) error {
	cat, err := e.reader.ListActiveRoutesWithStops(ctx)
	if err != nil {
		return fmt.Errorf("reading catalog: %w", err)
	}

	seed := e.loadAlerts(ctx)

	var predictions int
	err = e.do(ctx, func(s *state, now time.Time) {
		s.initialise(cat, now)
		predictions = len(s.predictions)

		for _, change := range s.seedAlerts(seed, now) {
			e.publishAlert(now, change)
		}
	})
	if err != nil {
		return err
	}

	log.Info().
		Int("routes", len(cat.Routes)).
		Int("predictions", predictions).
		Int("alerts", len(seed)).
		Msg("Simulator initialised")

	return nil
}

// loadAlerts fetches persisted alerts the first time it succeeds, and nothing after
func (e *Engine) loadAlerts(ctx context.Context) []*ctdf.ServiceAlert {
	if e.alertLoader == nil {
		return nil
	}

	e.seedMutex.Lock()
	defer e.seedMutex.Unlock()

	if e.alertsSeeded {
		return nil
	}

	alerts, err := e.alertLoader.LoadServiceAlerts(ctx)
	if err != nil {
		log.Error().Err(err).Msg("Failed to load stored service alerts")
		return nil
	}
	e.alertsSeeded = true

	return alerts
}
