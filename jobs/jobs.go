package jobs

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"petshop/config"
)

var cronParser = cron.NewParser(
	cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// TokenPurger drops login tokens that expired before now.
type TokenPurger interface {
	PurgeExpiredTokens(ctx context.Context, now time.Time) (int64, error)
}

// CacheRebuilder reloads the product cache from the database.
type CacheRebuilder interface {
	Rebuild(ctx context.Context) error
}

// Scheduler runs the housekeeping jobs of the service.
type Scheduler struct {
	cron   *cron.Cron
	tokens TokenPurger
	cache  CacheRebuilder
}

func NewScheduler(cfg config.JobsConfig, tokens TokenPurger, cache CacheRebuilder) (*Scheduler, error) {
	loc := time.Local
	if cfg.Location != "" {
		var err error
		if loc, err = time.LoadLocation(cfg.Location); err != nil {
			return nil, errors.Wrapf(err, "load location %q", cfg.Location)
		}
	}

	s := &Scheduler{
		cron:   cron.New(cron.WithLocation(loc), cron.WithParser(cronParser)),
		tokens: tokens,
		cache:  cache,
	}
	if cfg.TokenPurge != "" {
		if _, err := s.cron.AddFunc(cfg.TokenPurge, s.PurgeTokens); err != nil {
			return nil, errors.Wrapf(err, "schedule token purge %q", cfg.TokenPurge)
		}
	}
	if cfg.CacheRefresh != "" {
		if _, err := s.cron.AddFunc(cfg.CacheRefresh, s.RefreshCache); err != nil {
			return nil, errors.Wrapf(err, "schedule cache refresh %q", cfg.CacheRefresh)
		}
	}
	return s, nil
}

func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop waits for running jobs to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}

func (s *Scheduler) Entries() int {
	return len(s.cron.Entries())
}

func (s *Scheduler) PurgeTokens() {
	defer func() {
		if err := recover(); err != nil {
			zap.S().Error(err)
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	purged, err := s.tokens.PurgeExpiredTokens(ctx, time.Now())
	if err != nil {
		zap.S().Errorw("purge expired login tokens", "error", err)
		return
	}
	if purged > 0 {
		zap.S().Infow("purged expired login tokens", "count", purged)
	}
}

func (s *Scheduler) RefreshCache() {
	defer func() {
		if err := recover(); err != nil {
			zap.S().Error(err)
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	if err := s.cache.Rebuild(ctx); err != nil {
		zap.S().Warnw("refresh product cache", "error", err)
	}
}
