package commands

import (
	"context"
	"errors"
	"os"

	"github.com/spf13/cobra"

	"github.com/cuongbtq/scrapequeue/internal/consumer"
	"github.com/cuongbtq/scrapequeue/internal/producer"
	"github.com/cuongbtq/scrapequeue/internal/queue"
)

// Store is the part of the job queue the commands use
type Store interface {
	Setup(ctx context.Context) (bool, error)
	Stats(ctx context.Context) (map[queue.Status]int64, error)
}

// Submitter creates remote jobs and queues them
type Submitter interface {
	Submit(ctx context.Context, urls []string) (producer.Result, error)
}

// CycleRunner runs one consumer cycle
type CycleRunner interface {
	RunCycle(ctx context.Context) (consumer.Outcome, error)
}

// Deps are the collaborators built from the configuration file
type Deps struct {
	Store    Store
	Producer Submitter
	Consumer CycleRunner
	Close    func()
}

// DepsFactory builds Deps from the config file path
type DepsFactory func(ctx context.Context, configPath string) (*Deps, error)

var errNoDeps = errors.New("dependencies not initialized")

type app struct {
	configPath string
	factory    DepsFactory
	deps       *Deps
}

func (a *app) load(cmd *cobra.Command) error {
	deps, err := a.factory(cmd.Context(), a.configPath)
	if err != nil {
		return err
	}
	a.deps = deps
	return nil
}

func (a *app) close() {
	if a.deps != nil && a.deps.Close != nil {
		a.deps.Close()
	}
}

// runE releases the dependencies once the command returns, error or not
func (a *app) runE(fn func(cmd *cobra.Command, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		defer a.close()

		if a.deps == nil {
			return errNoDeps
		}
		return fn(cmd, args)
	}
}

// NewRootCmd assembles the queuectl command tree
func NewRootCmd(ctx context.Context, factory DepsFactory) *cobra.Command {
	a := &app{factory: factory}

	defaultConfigPath := os.Getenv("QUEUECTL_CONFIG_PATH")
	if defaultConfigPath == "" {
		defaultConfigPath = "configs/queuectl/config.yaml"
	}

	rootCmd := &cobra.Command{
		Use:   "queuectl",
		Short: "Scraping job queue CLI",
		Long: "queuectl runs one-shot queue operations: creating the queue table, " +
			"submitting URL batches to the batch service and running a single consumer cycle. " +
			"It is meant to be invoked by an external scheduler.",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.load(cmd)
		},
	}

	rootCmd.SetContext(ctx)
	rootCmd.PersistentFlags().StringVar(&a.configPath, "config", defaultConfigPath, "Path to configuration file")

	rootCmd.AddCommand(
		newSetupCmd(a),
		newSubmitCmd(a),
		newPullCmd(a),
		newStatsCmd(a),
	)

	return rootCmd
}
