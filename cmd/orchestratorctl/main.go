package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

func main() {
	_ = godotenv.Load()

	env := &environment{}
	rootCmd := &cobra.Command{
		Use:           "orchestratorctl",
		Short:         "Operate the content orchestrator from the command line",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return env.load()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			env.close()
		},
	}

	defaultConfigPath := os.Getenv("ORCHESTRATORCTL_CONFIG_PATH")
	if defaultConfigPath == "" {
		defaultConfigPath = "configs/worker-service/config.yaml"
	}
	rootCmd.PersistentFlags().StringVar(&env.configPath, "config", defaultConfigPath, "Path to configuration file")

	rootCmd.AddCommand(MigrateCmd(env))
	rootCmd.AddCommand(StatusCmd(env))
	rootCmd.AddCommand(ListCmd(env))
	rootCmd.AddCommand(PeakHoursCmd(env))
	rootCmd.AddCommand(ExecutePostsCmd(env))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		env.close()
		stop()
		log.Fatal(err)
	}
}
