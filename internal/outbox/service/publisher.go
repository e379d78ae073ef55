package service

import (
	"context"
	"sync"
	"time"

	"orbook/pkg/config"
)

// Publisher is the background worker that drains the outbox. It polls for
// due events and periodically runs maintenance.
type Publisher struct {
	service  OutboxService
	cfg      *config.Config
	stopChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

func NewPublisher(service OutboxService, cfg *config.Config) *Publisher {
	return &Publisher{
		service:  service,
		cfg:      cfg,
		stopChan: make(chan struct{}),
	}
}

// Start launches the poll and maintenance loops.
func (p *Publisher) Start() {
	p.wg.Add(2)
	go p.pollLoop()
	go p.maintenanceLoop()
	p.cfg.Log.Info("Outbox publisher started",
		"poll_interval", p.cfg.OutboxPollInterval,
		"cleanup_interval", p.cfg.OutboxCleanupInterval,
	)
}

func (p *Publisher) pollLoop() {
	defer p.wg.Done()

	ticker := time.NewTicker(p.cfg.OutboxPollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-p.stopChan:
			return
		case <-ticker.C:
			p.runOnce()
		}
	}
}

func (p *Publisher) runOnce() {
	ctx, cancel := context.WithTimeout(context.Background(), p.cfg.OutboxPollInterval)
	defer cancel()

	published, err := p.service.ProcessPending(ctx)
	if err != nil {
		p.cfg.Log.Error("Outbox poll cycle failed", "error", err)
		return
	}
	if published > 0 {
		p.cfg.Log.Info("Outbox events published", "count", published)
	}
}

func (p *Publisher) maintenanceLoop() {
	defer p.wg.Done()

	ticker := time.NewTicker(p.cfg.OutboxCleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-p.stopChan:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), p.cfg.WriteTimeout)
			if err := p.service.Maintain(ctx); err != nil {
				p.cfg.Log.Error("Outbox maintenance failed", "error", err)
			}
			cancel()
		}
	}
}

// Stop halts both loops and waits for in-flight work to finish.
func (p *Publisher) Stop() {
	p.stopOnce.Do(func() {
		close(p.stopChan)
	})
	p.wg.Wait()
	p.cfg.Log.Info("Outbox publisher stopped")
}
