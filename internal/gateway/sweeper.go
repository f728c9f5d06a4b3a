package gateway

import (
	"log/slog"
	"sync"
	"time"

	"github.com/eleven-am/handoff-backend/internal/coordinator"
	"github.com/eleven-am/handoff-backend/internal/session"
)

const (
	defaultSweepInterval    = 2 * time.Minute
	defaultMaxQueueWait     = 10 * time.Minute
	defaultSessionRetention = 24 * time.Hour
)

// Sweeper periodically expires queue entries that waited too long and drops
// ended sessions past their retention window.
type Sweeper struct {
	coord    *coordinator.Coordinator
	sessions *session.Registry
	log      *slog.Logger

	interval  time.Duration
	maxWait   time.Duration
	retention time.Duration

	stop chan struct{}
	wg   sync.WaitGroup
	once sync.Once
}

type SweeperConfig struct {
	Interval         time.Duration
	MaxQueueWait     time.Duration
	SessionRetention time.Duration
}

func NewSweeper(coord *coordinator.Coordinator, sessions *session.Registry,
	cfg SweeperConfig, logger *slog.Logger) *Sweeper {
	if cfg.Interval <= 0 {
		cfg.Interval = defaultSweepInterval
	}
	if cfg.MaxQueueWait <= 0 {
		cfg.MaxQueueWait = defaultMaxQueueWait
	}
	if cfg.SessionRetention <= 0 {
		cfg.SessionRetention = defaultSessionRetention
	}
	return &Sweeper{
		coord:     coord,
		sessions:  sessions,
		log:       logger.With("component", "sweeper"),
		interval:  cfg.Interval,
		maxWait:   cfg.MaxQueueWait,
		retention: cfg.SessionRetention,
		stop:      make(chan struct{}),
	}
}

func (s *Sweeper) Start() {
	s.wg.Add(1)
	go s.loop()
	s.log.Info("sweeper started", "interval", s.interval, "max_queue_wait", s.maxWait)
}

func (s *Sweeper) Stop() {
	s.once.Do(func() {
		close(s.stop)
	})
	s.wg.Wait()
}

func (s *Sweeper) loop() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			s.sweep()
		}
	}
}

func (s *Sweeper) sweep() {
	if expired := s.coord.SweepQueue(s.maxWait); len(expired) > 0 {
		s.log.Info("expired queued sessions", "count", len(expired))
	}
	s.sessions.CleanupEnded(s.retention)
}
