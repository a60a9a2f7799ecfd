package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/holdr-fi/quest-n-script/internal/app"
	"github.com/holdr-fi/quest-n-script/pkg/models"
)

// checkCmd evaluates one address and prints the envelope
var checkCmd = &cobra.Command{
	Use:   "check <address>",
	Short: "Check one address and print the result envelope",
	Long: `Evaluate a single wallet and print the JSON envelope on stdout.

The command exits with status 1 when the check fails. With --verbose the
full evaluation is printed on stderr.

Examples:
  quest-n-script check 0xDE37F8a48C41F6C1A92Ac6792927F5151C7C4ba2
  quest-n-script check 0xde37f8a48c41f6c1a92ac6792927f5151c7c4ba2 --verbose`,
	Args:         cobra.ExactArgs(1),
	SilenceUsage: true,
	RunE:         runCheck,
}

func init() {
	rootCmd.AddCommand(checkCmd)
}

type evaluator interface {
	Evaluate(ctx context.Context, address string) (*models.Evaluation, error)
}

func runCheck(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	// Logs must not mix with the envelope on stdout
	if cfg.Logging.Output == "" || cfg.Logging.Output == "stdout" {
		cfg.Logging.Output = "stderr"
	}

	log, err := newLogger(cfg)
	if err != nil {
		return err
	}

	application := app.New(cfg, log)
	if err := application.Initialize(); err != nil {
		log.WithError(err).Error("Failed to initialize application")
		return err
	}
	defer application.Stop()

	// Results are published like the API server does
	if err := application.InitializeMessaging(); err != nil {
		log.WithError(err).Error("Failed to initialize messaging")
		return err
	}

	var detail io.Writer
	if verbose {
		detail = os.Stderr
	}

	return checkAddress(application.GetContext(), application, args[0], cmd.OutOrStdout(), detail)
}

// checkAddress writes the envelope for address to out, and the evaluation to
// detail when it is not nil. A failed check is returned as an error.
func checkAddress(ctx context.Context, e evaluator, address string, out, detail io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}

	eval, evalErr := e.Evaluate(ctx, address)

	env := models.FailureEnvelope(evalErr)
	if evalErr == nil {
		env = models.SuccessEnvelope(eval.Eligible())
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(env); err != nil {
		return fmt.Errorf("failed to write envelope: %w", err)
	}

	if detail != nil && eval != nil {
		denc := json.NewEncoder(detail)
		denc.SetIndent("", "  ")
		if err := denc.Encode(eval); err != nil {
			return fmt.Errorf("failed to write evaluation: %w", err)
		}
	}

	if evalErr != nil {
		return fmt.Errorf("check failed: %w", evalErr)
	}
	return nil
}
