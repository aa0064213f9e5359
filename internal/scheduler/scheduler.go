// Package scheduler runs the periodic store health probe.
package scheduler

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

var storeUp = promauto.NewGauge(prometheus.GaugeOpts{
	Name: "influx_up",
	Help: "Whether the last InfluxDB ping succeeded.",
})

// Pinger is the slice of the InfluxDB client the probe needs.
type Pinger interface {
	Ping(ctx context.Context) (bool, error)
}

// Scheduler pings the store once a minute, exports the result as a gauge and
// logs reachability transitions.
type Scheduler struct {
	ctx    context.Context
	pinger Pinger
	logger *logrus.Logger
	cron   *cron.Cron

	lastUp bool
}

func NewScheduler(ctx context.Context, pinger Pinger, logger *logrus.Logger) *Scheduler {
	return &Scheduler{
		ctx:    ctx,
		pinger: pinger,
		logger: logger,
		cron:   cron.New(),
		lastUp: true,
	}
}

// Start the scheduler.
func (s *Scheduler) Start() error {
	_, err := s.cron.AddFunc("* * * * *", s.checkStore)
	if err != nil {
		return err
	}
	s.cron.Start()
	return nil
}

func (s *Scheduler) checkStore() {
	ctx, cancel := context.WithTimeout(s.ctx, 10*time.Second)
	defer cancel()

	ok, err := s.pinger.Ping(ctx)
	up := err == nil && ok

	if up {
		storeUp.Set(1)
	} else {
		storeUp.Set(0)
	}

	if up != s.lastUp {
		if up {
			s.logger.Info("InfluxDB reachable again")
		} else {
			s.logger.WithError(err).Warn("InfluxDB unreachable")
		}
	}
	s.lastUp = up
}

// Stop the scheduler.
func (s *Scheduler) Stop() {
	s.cron.Stop()
}
