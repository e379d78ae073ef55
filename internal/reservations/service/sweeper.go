package service

import (
	"context"
	"sync"
	"time"

	"orbook/pkg/config"
)

// Sweeper is the background worker that expires pending reservations past
// the confirmation window and purges old terminal reservations.
type Sweeper struct {
	service  ReservationService
	cfg      *config.Config
	stopChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

func NewSweeper(service ReservationService, cfg *config.Config) *Sweeper {
	return &Sweeper{
		service:  service,
		cfg:      cfg,
		stopChan: make(chan struct{}),
	}
}

func (s *Sweeper) Start() {
	s.wg.Add(2)
	go s.expirationLoop()
	go s.purgeLoop()
	s.cfg.Log.Info("Reservation sweeper started",
		"sweep_interval", s.cfg.SweepInterval,
		"purge_interval", s.cfg.PurgeInterval,
		"unconfirmed_timeout", s.cfg.UnconfirmedTimeout,
	)
}

func (s *Sweeper) expirationLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.cfg.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopChan:
			return
		case <-ticker.C:
			s.sweepOnce()
		}
	}
}

func (s *Sweeper) sweepOnce() {
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.SweepInterval)
	defer cancel()

	expired, err := s.service.ExpireOverdue(ctx)
	if err != nil {
		s.cfg.Log.Error("Expiration sweep failed", "error", err)
		return
	}
	if expired > 0 {
		s.cfg.Log.Info("Expired overdue reservations", "count", expired)
	}
}

func (s *Sweeper) purgeLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.cfg.PurgeInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopChan:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), s.cfg.WriteTimeout)
			deleted, err := s.service.PurgeOld(ctx)
			cancel()
			if err != nil {
				s.cfg.Log.Error("Reservation purge failed", "error", err)
				continue
			}
			if deleted > 0 {
				s.cfg.Log.Info("Purged old terminal reservations", "count", deleted)
			}
		}
	}
}

// Stop halts both loops and waits for in-flight work to finish.
func (s *Sweeper) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopChan)
	})
	s.wg.Wait()
	s.cfg.Log.Info("Reservation sweeper stopped")
}
