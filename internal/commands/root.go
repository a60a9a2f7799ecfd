package commands

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/holdr-fi/quest-n-script/pkg/config"
	"github.com/holdr-fi/quest-n-script/pkg/logger"
)

var (
	verbose bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "quest-n-script",
	Short: "Holdr pool quest eligibility checker",
	Long: `Checks whether a wallet qualifies for the Holdr pool quest.

A wallet is eligible when the ETH-equivalent value of its pool deposits
reaches the configured threshold (0.05 ETH by default) and it has staked
pool tokens in the liquidity gauge, either now or since the start block.

Data sources:
• Pool join/exit records from the Balancer fork subgraph
• ETH/USD price history from CoinGecko
• Gauge deposits and balances from the Aurora RPC node`,
	Version:       "1.0.0",
	SilenceErrors: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}

// loadConfig loads the optional .env file and the environment configuration
func loadConfig() (*config.Config, error) {
	if _, err := config.LoadDotEnv(); err != nil {
		return nil, err
	}

	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return cfg, nil
}

func newLogger(cfg *config.Config) (*logrus.Logger, error) {
	if verbose {
		cfg.Logging.Level = "debug"
	}
	return logger.New(&cfg.Logging)
}
