package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/holdr-fi/quest-n-script/internal/api"
	"github.com/holdr-fi/quest-n-script/internal/chain"
	"github.com/holdr-fi/quest-n-script/internal/eligibility"
	"github.com/holdr-fi/quest-n-script/internal/external"
	"github.com/holdr-fi/quest-n-script/internal/messaging"
	"github.com/holdr-fi/quest-n-script/internal/metrics"
	"github.com/holdr-fi/quest-n-script/pkg/config"
	"github.com/holdr-fi/quest-n-script/pkg/logger"
	"github.com/holdr-fi/quest-n-script/pkg/models"
)

// App represents the main application
type App struct {
	cfg    *config.Config
	logger *logrus.Logger
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	// Collaborators
	coingecko *external.CoinGeckoClient
	subgraph  *external.SubgraphClient
	gauge     *chain.GaugeClient
	publisher messaging.Publisher
	metrics   *metrics.Metrics

	// Services
	evaluator *eligibility.Evaluator
	apiServer *api.Server
	serverErr chan error
}

// New creates a new application instance
func New(cfg *config.Config, logger *logrus.Logger) *App {
	ctx, cancel := context.WithCancel(context.Background())

	return &App{
		cfg:       cfg,
		logger:    logger,
		ctx:       ctx,
		cancel:    cancel,
		serverErr: make(chan error, 1),
	}
}

// Initialize builds the evaluator and its collaborators. The API server is
// only built by InitializeServer.
func (a *App) Initialize() error {
	if err := a.initializeCollaborators(); err != nil {
		return fmt.Errorf("failed to initialize collaborators: %w", err)
	}

	if err := a.initializeEvaluator(); err != nil {
		return fmt.Errorf("failed to initialize evaluator: %w", err)
	}

	return nil
}

// InitializeMessaging connects the result publisher
func (a *App) InitializeMessaging() error {
	if a.publisher != nil {
		return nil
	}
	if err := a.initializeMessaging(); err != nil {
		return fmt.Errorf("failed to initialize messaging: %w", err)
	}
	return nil
}

// InitializeServer builds the result publisher and the API server
func (a *App) InitializeServer() error {
	if err := a.InitializeMessaging(); err != nil {
		return err
	}

	a.apiServer = api.NewServer(a.cfg, a.logger, a.evaluator, a.publisher, a.metrics)
	return nil
}

// Start starts the API server in the background
func (a *App) Start() error {
	if a.apiServer == nil {
		return errors.New("API server not initialized")
	}

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		if err := a.apiServer.Start(); err != nil {
			a.logger.WithError(err).Error("API server error")
			a.serverErr <- err
		}
	}()

	return nil
}

// Errors reports a fatal API server error
func (a *App) Errors() <-chan error {
	return a.serverErr
}

// Evaluate runs one eligibility check outside the API server and publishes
// the result when a publisher is initialized
func (a *App) Evaluate(ctx context.Context, address string) (*models.Evaluation, error) {
	if a.evaluator == nil {
		return nil, errors.New("evaluator not initialized")
	}

	start := time.Now()
	eval, err := a.evaluator.Evaluate(ctx, address)
	a.metrics.RecordEvaluation(err == nil && eval.Eligible(), err, time.Since(start))

	// Best effort, a publish failure never changes the verdict
	if a.publisher != nil {
		event := messaging.NewEligibilityEvent(address, eval, err, time.Now())
		if pubErr := a.publisher.PublishEligibility(context.WithoutCancel(ctx), event); pubErr != nil {
			a.metrics.PublishFailed()
			a.logger.WithError(pubErr).WithField("address", event.Address).Warn("Failed to publish eligibility event")
		}
	}

	return eval, err
}

// Stop gracefully stops the application
func (a *App) Stop() error {
	a.logger.Info("Stopping application...")

	// Cancel context to signal shutdown
	a.cancel()

	// Stop API server with timeout
	if a.apiServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := a.apiServer.Stop(ctx); err != nil {
			a.logger.WithError(err).Error("Error stopping API server")
		}
		cancel()
	}

	// Wait for the server goroutine
	done := make(chan struct{})
	go func() {
		a.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(3 * time.Second):
		a.logger.Warn("Timeout waiting for goroutines to finish")
	}

	if err := a.closeConnections(); err != nil {
		a.logger.WithError(err).Error("Error closing connections")
		return err
	}

	a.logger.Info("Application stopped successfully")
	return nil
}

// GetContext returns the application context
func (a *App) GetContext() context.Context {
	return a.ctx
}

func (a *App) initializeCollaborators() error {
	// Price feed and pool events
	a.coingecko = external.NewCoinGeckoClient(&a.cfg.PriceFeed, a.logger)
	a.subgraph = external.NewSubgraphClient(&a.cfg.Subgraph, a.logger)

	// Chain node
	ctx := a.ctx
	if a.cfg.Chain.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(a.ctx, a.cfg.Chain.Timeout)
		defer cancel()
	}

	gauge, err := chain.Dial(ctx, &a.cfg.Chain, a.logger)
	if err != nil {
		return err
	}
	a.gauge = gauge

	return nil
}

func (a *App) initializeEvaluator() error {
	opts, err := eligibility.OptionsFromConfig(a.cfg)
	if err != nil {
		return err
	}

	// Metrics double as the evaluator observer
	a.metrics = metrics.New(a.cfg.Monitoring.MetricsNamespace)

	a.evaluator = eligibility.NewEvaluator(a.coingecko, a.subgraph, a.gauge, opts, a.logger)
	a.evaluator.SetObserver(a.metrics)

	logger.WithComponent(a.logger, "app").WithFields(logrus.Fields{
		"pool":        opts.PoolID,
		"gauge":       a.gauge.Gauge().Hex(),
		"start_block": opts.StartBlock,
		"threshold":   opts.Threshold.String(),
		"page_policy": opts.Pager.FailurePolicy,
	}).Info("Eligibility evaluator ready")

	return nil
}

func (a *App) initializeMessaging() error {
	publisher, err := messaging.NewPublisher(&a.cfg.NATS, a.logger)
	if err != nil {
		return err
	}
	a.publisher = publisher
	return nil
}

func (a *App) closeConnections() error {
	var errs []error

	// Close messaging connection
	if a.publisher != nil {
		if err := a.publisher.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close NATS: %w", err))
		}
	}

	// Close chain connection
	if a.gauge != nil {
		a.gauge.Close()
	}

	return errors.Join(errs...)
}
