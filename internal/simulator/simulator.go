package simulator

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

var (
	ErrAlreadyRunning = errors.New("simulation already running")
	ErrNotRunning     = errors.New("simulation not running")
	ErrInvalidRate    = errors.New("rate must be positive")
)

// Status is the state reported by the control API
type Status struct {
	Running     bool       `json:"running"`
	CallsPerMin float64    `json:"callsPerMin"`
	LinesSent   int64      `json:"linesSent"`
	SendErrors  int64      `json:"sendErrors"`
	StartedAt   *time.Time `json:"startedAt,omitempty"`
}

// Simulator emits generated lines at a configurable rate
type Simulator struct {
	mu          sync.Mutex
	generator   *Generator
	sender      Sender
	location    *time.Location
	callsPerMin float64
	cancel      context.CancelFunc
	done        chan struct{}
	startedAt   *time.Time
	logger      zerolog.Logger

	linesSent  atomic.Int64
	sendErrors atomic.Int64
}

// New creates a stopped simulator
func New(generator *Generator, sender Sender, callsPerMin float64, loc *time.Location, logger zerolog.Logger) *Simulator {
	if loc == nil {
		loc = time.Local
	}
	return &Simulator{
		generator:   generator,
		sender:      sender,
		location:    loc,
		callsPerMin: callsPerMin,
		logger:      logger.With().Str("component", "simulator").Logger(),
	}
}

// Start launches the emit loop. A positive rate replaces the current one.
func (s *Simulator) Start(ctx context.Context, callsPerMin float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancel != nil {
		return ErrAlreadyRunning
	}
	if callsPerMin > 0 {
		s.callsPerMin = callsPerMin
	}
	if s.callsPerMin <= 0 {
		return ErrInvalidRate
	}

	runCtx, cancel := context.WithCancel(ctx)
	now := time.Now()
	s.cancel = cancel
	s.done = make(chan struct{})
	s.startedAt = &now

	go s.run(runCtx, s.done)

	s.logger.Info().Float64("calls_per_min", s.callsPerMin).Msg("simulation started")
	return nil
}

// Stop halts the emit loop and waits for it to exit
func (s *Simulator) Stop() error {
	s.mu.Lock()
	if s.cancel == nil {
		s.mu.Unlock()
		return ErrNotRunning
	}
	cancel, done := s.cancel, s.done
	s.cancel = nil
	s.done = nil
	s.startedAt = nil
	s.mu.Unlock()

	cancel()
	<-done

	s.logger.Info().Int64("lines_sent", s.linesSent.Load()).Msg("simulation stopped")
	return nil
}

// SetRate changes the emit rate, also while running
func (s *Simulator) SetRate(callsPerMin float64) error {
	if callsPerMin <= 0 {
		return ErrInvalidRate
	}
	s.mu.Lock()
	s.callsPerMin = callsPerMin
	s.mu.Unlock()
	return nil
}

// Status returns a snapshot of the simulator state
func (s *Simulator) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Status{
		Running:     s.cancel != nil,
		CallsPerMin: s.callsPerMin,
		LinesSent:   s.linesSent.Load(),
		SendErrors:  s.sendErrors.Load(),
		StartedAt:   s.startedAt,
	}
}

func (s *Simulator) rate() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.callsPerMin
}

func (s *Simulator) run(ctx context.Context, done chan struct{}) {
	defer close(done)
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))

	for {
		// Poisson-ish sleep: base interval with jitter.
		base := time.Duration(float64(time.Minute) / s.rate())
		jitter := time.Duration(float64(base) * (rng.Float64()*0.5 - 0.25)) // +/-25%
		sleep := base + jitter
		if sleep < time.Millisecond {
			sleep = time.Millisecond
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(sleep):
		}

		s.emit(ctx)
	}
}

func (s *Simulator) emit(ctx context.Context) {
	line := s.generator.Line(time.Now().In(s.location))
	if err := s.sender.Send(ctx, []string{line}); err != nil {
		if ctx.Err() != nil {
			return
		}
		s.sendErrors.Add(1)
		s.logger.Error().Err(err).Msg("failed to send line")
		return
	}
	s.linesSent.Add(1)
	s.logger.Debug().Str("line", line).Msg("line sent")
}
