package eligibility

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sirupsen/logrus"

	"github.com/holdr-fi/quest-n-script/pkg/config"
	"github.com/holdr-fi/quest-n-script/pkg/models"
)

// PagerOptions controls how pool events are paged and retried
type PagerOptions struct {
	PageSize      int
	MaxRetries    int
	RetryDelay    time.Duration
	MaxRetryDelay time.Duration
	FailurePolicy string // config.PageFailureSkip or config.PageFailureFail
}

// PageReport describes how a pagination run went
type PageReport struct {
	Pages      int  // pages fetched successfully
	Retries    int  // retried page requests
	Partial    bool // a page failed and was treated as empty
	FailedSkip int  // offset of the failed page when Partial
}

// EventPager walks every join/exit page of a pool
type EventPager struct {
	source   PoolEventSource
	opts     PagerOptions
	logger   *logrus.Entry
	observer Observer
}

// NewEventPager creates a pager over source
func NewEventPager(source PoolEventSource, opts PagerOptions, logger *logrus.Logger) *EventPager {
	if opts.PageSize <= 0 {
		opts.PageSize = 1000
	}
	if opts.FailurePolicy == "" {
		opts.FailurePolicy = config.PageFailureSkip
	}

	return &EventPager{
		source:   source,
		opts:     opts,
		logger:   logger.WithField("component", "event-pager"),
		observer: nopObserver{},
	}
}

// All fetches pages of PageSize records until a page comes back short.
// A page that still fails after retries ends the walk: under the skip policy
// it counts as empty and the report is marked partial, under the fail policy
// the error is returned.
func (p *EventPager) All(ctx context.Context, poolID string) ([]models.PoolEvent, PageReport, error) {
	var (
		events []models.PoolEvent
		report PageReport
	)

	for skip := 0; ; skip += p.opts.PageSize {
		page, retries, err := p.fetchPage(ctx, poolID, skip)
		report.Retries += retries

		if err != nil {
			if p.opts.FailurePolicy == config.PageFailureFail || ctx.Err() != nil {
				return nil, report, err
			}

			p.logger.WithError(err).WithFields(logrus.Fields{
				"pool":    poolID,
				"skip":    skip,
				"fetched": len(events),
			}).Warn("Pool events page failed, continuing with partial data")

			report.Partial = true
			report.FailedSkip = skip
			return events, report, nil
		}

		report.Pages++
		events = append(events, page...)

		if len(page) < p.opts.PageSize {
			return events, report, nil
		}
	}
}

func (p *EventPager) fetchPage(ctx context.Context, poolID string, skip int) ([]models.PoolEvent, int, error) {
	var (
		page     []models.PoolEvent
		attempts int
	)

	operation := func() error {
		attempts++
		var err error
		page, err = p.source.JoinExits(ctx, poolID, p.opts.PageSize, skip)
		if err != nil && ctx.Err() != nil {
			return backoff.Permanent(err)
		}
		return err
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = p.opts.RetryDelay
	policy.MaxInterval = p.opts.MaxRetryDelay
	policy.MaxElapsedTime = 0

	notify := func(err error, wait time.Duration) {
		p.observer.PageRetried()
		p.logger.WithError(err).WithFields(logrus.Fields{
			"skip": skip,
			"wait": wait.String(),
		}).Debug("Retrying pool events page")
	}

	retries := uint64(0)
	if p.opts.MaxRetries > 0 {
		retries = uint64(p.opts.MaxRetries)
	}

	err := backoff.RetryNotify(operation,
		backoff.WithContext(backoff.WithMaxRetries(policy, retries), ctx),
		notify,
	)

	return page, attempts - 1, err
}
