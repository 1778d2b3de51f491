package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"auction_monitor/config"
	"auction_monitor/models"
	"auction_monitor/services"
	"auction_monitor/storage"
)

// Runner is one site's monitor.
type Runner interface {
	Run(ctx context.Context) (models.RunSummary, error)
	Pause()
	Resume()
	IsPaused() bool
}

// CommandQueue is where operators leave commands for the daemon.
type CommandQueue interface {
	GetPendingCommands() ([]models.Command, error)
	MarkCommandProcessed(id int64) error
}

type Scheduler struct {
	cfg      config.SchedulerConfig
	runners  map[string]Runner
	commands CommandQueue
	cron     *cron.Cron
	ticker   *time.Ticker
	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup

	pollInterval time.Duration
}

func New(cfg config.SchedulerConfig, commands CommandQueue) *Scheduler {
	return &Scheduler{
		cfg:          cfg,
		runners:      make(map[string]Runner),
		commands:     commands,
		cron:         cron.New(),
		stopCh:       make(chan struct{}),
		pollInterval: 2 * time.Second,
	}
}

func (s *Scheduler) Register(siteID string, r Runner) {
	s.runners[siteID] = r
}

func (s *Scheduler) Start(ctx context.Context) error {
	if s.commands != nil {
		s.wg.Add(1)
		go s.pollCommands(ctx)
	}

	if s.cfg.Cron != "" {
		log.Printf("Starting scheduler with cron: %s", s.cfg.Cron)
		_, err := s.cron.AddFunc(s.cfg.Cron, func() {
			s.RunAll(ctx)
		})
		if err != nil {
			return fmt.Errorf("invalid cron expression: %w", err)
		}
		s.cron.Start()
	} else if s.cfg.Interval > 0 {
		log.Printf("Starting scheduler with interval: %s", s.cfg.Interval)
		s.ticker = time.NewTicker(s.cfg.Interval)
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			for {
				select {
				case <-s.ticker.C:
					s.RunAll(ctx)
				case <-s.stopCh:
					return
				case <-ctx.Done():
					return
				}
			}
		}()
	} else {
		log.Println("No schedule configured, daemon will only respond to commands")
	}

	return nil
}

// Stop halts scheduling and waits for in-flight cron jobs and pollers.
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() {
		<-s.cron.Stop().Done()
		if s.ticker != nil {
			s.ticker.Stop()
		}
		close(s.stopCh)
	})
	s.wg.Wait()
}

// RunAll runs every registered site in id order. A site whose previous run
// is still going is skipped.
func (s *Scheduler) RunAll(ctx context.Context) {
	for _, id := range s.siteIDs() {
		if err := s.RunSite(ctx, id); err != nil {
			log.Printf("Scheduled run error for %s: %v", id, err)
		}
	}
}

func (s *Scheduler) RunSite(ctx context.Context, siteID string) error {
	r, ok := s.runners[siteID]
	if !ok {
		return fmt.Errorf("unknown site: %s", siteID)
	}
	_, err := r.Run(ctx)
	if errors.Is(err, services.ErrRunInProgress) {
		log.Printf("Run for %s already in progress, skipping", siteID)
		return nil
	}
	return err
}

func (s *Scheduler) pollCommands(ctx context.Context) {
	defer s.wg.Done()
	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.processCommands(ctx)
		case <-s.stopCh:
			return
		case <-ctx.Done():
			return
		}
	}
}

func (s *Scheduler) processCommands(ctx context.Context) {
	cmds, err := s.commands.GetPendingCommands()
	if err != nil {
		log.Printf("Error getting commands: %v", err)
		return
	}

	for _, cmd := range cmds {
		log.Printf("Processing command: %s", cmd.Command)
		if err := s.handleCommand(ctx, &cmd); err != nil {
			log.Printf("Command error: %v", err)
		}
		if err := s.commands.MarkCommandProcessed(cmd.ID); err != nil {
			log.Printf("Error marking command processed: %v", err)
		}
	}
}

func (s *Scheduler) handleCommand(ctx context.Context, cmd *models.Command) error {
	params, err := storage.ParseCommandParams(cmd)
	if err != nil {
		return fmt.Errorf("parse params: %w", err)
	}

	targets := s.siteIDs()
	if params.Site != "" {
		if _, ok := s.runners[params.Site]; !ok {
			return fmt.Errorf("unknown site: %s", params.Site)
		}
		targets = []string{params.Site}
	}

	switch cmd.Command {
	case models.CmdScrapeNow:
		for _, id := range targets {
			if err := s.RunSite(ctx, id); err != nil {
				return err
			}
		}
	case models.CmdPause:
		for _, id := range targets {
			s.runners[id].Pause()
			log.Printf("Paused %s", id)
		}
	case models.CmdResume:
		for _, id := range targets {
			s.runners[id].Resume()
			log.Printf("Resumed %s", id)
		}
	default:
		return fmt.Errorf("unknown command: %s", cmd.Command)
	}
	return nil
}

func (s *Scheduler) siteIDs() []string {
	ids := make([]string, 0, len(s.runners))
	for id := range s.runners {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
