package main

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"

	"github.com/cuongbtq/content-orchestrator/internal/adapters/httpapi"
	"github.com/cuongbtq/content-orchestrator/internal/bootstrap"
	"github.com/cuongbtq/content-orchestrator/internal/config"
	"github.com/cuongbtq/content-orchestrator/internal/distribution"
	"github.com/cuongbtq/content-orchestrator/internal/domain"
	"github.com/cuongbtq/content-orchestrator/internal/events"
	"github.com/cuongbtq/content-orchestrator/internal/jobs"
	"github.com/cuongbtq/content-orchestrator/shared/clock"
	"github.com/cuongbtq/content-orchestrator/shared/logger"
	"github.com/cuongbtq/content-orchestrator/shared/postgresql"
	"github.com/cuongbtq/content-orchestrator/shared/rabbitmq"
)

// environment connects lazily so each command only opens what it uses
type environment struct {
	configPath string

	cfg    *config.Config
	logger *logger.Logger
	db     *postgresql.Client
	rabbit *rabbitmq.Client
}

func (e *environment) load() error {
	cfg, err := config.Load(e.configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	// Command output owns stdout
	logging := cfg.Logging
	if logging.Output == "" || logging.Output == "stdout" {
		logging.Output = "stderr"
	}
	appLogger, err := bootstrap.InitLogger(&logging, "orchestratorctl")
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	e.cfg = cfg
	e.logger = appLogger
	return nil
}

func (e *environment) database(cmd *cobra.Command) (*postgresql.Client, error) {
	if e.db != nil {
		return e.db, nil
	}
	db, err := bootstrap.InitPostgreSQL(cmd.Context(), &e.cfg.Database, e.logger.Logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	e.db = db
	return db, nil
}

func (e *environment) core(cmd *cobra.Command, publisher events.Publisher) (*bootstrap.Core, error) {
	db, err := e.database(cmd)
	if err != nil {
		return nil, err
	}
	return bootstrap.NewCore(e.cfg, db.GetDB(), publisher, e.logger.Logger), nil
}

// publisher sends events straight to the exchange without declaring a queue
func (e *environment) publisher() (events.Publisher, error) {
	if e.rabbit == nil {
		client, err := bootstrap.InitRabbitMQ(&e.cfg.RabbitMQ, config.QueueConfig{}, e.logger.Logger)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize RabbitMQ: %w", err)
		}
		e.rabbit = client
	}
	return events.NewAMQPRelay(e.rabbit), nil
}

func (e *environment) close() {
	if e.rabbit != nil {
		e.rabbit.Close()
		e.rabbit = nil
	}
	if e.db != nil {
		e.db.Close()
		e.db = nil
	}
	if e.logger != nil {
		e.logger.Close()
		e.logger = nil
	}
}

func MigrateCmd(env *environment) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			env.cfg.Database.Migrate = true
			if _, err := env.database(cmd); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Migrations applied")
			return nil
		},
	}
}

func StatusCmd(env *environment) *cobra.Command {
	return &cobra.Command{
		Use:   "status <job_id>",
		Short: "Show the current state of a job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			core, err := env.core(cmd, nil)
			if err != nil {
				return err
			}

			job, err := core.Jobs.GetStatus(cmd.Context(), args[0])
			if errors.Is(err, domain.ErrJobNotFound) {
				return fmt.Errorf("job %s not found", args[0])
			}
			if err != nil {
				return fmt.Errorf("failed to get job: %w", err)
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(job)
		},
	}
}

func ListCmd(env *environment) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List jobs, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, _ := cmd.Flags().GetString("user")
			kind, _ := cmd.Flags().GetString("kind")
			status, _ := cmd.Flags().GetString("status")
			pageSize, _ := cmd.Flags().GetInt("page-size")
			token, _ := cmd.Flags().GetString("cursor")

			cursor, err := jobs.DecodeCursor(token)
			if err != nil {
				return fmt.Errorf("invalid --cursor: %w", err)
			}

			core, err := env.core(cmd, nil)
			if err != nil {
				return err
			}

			page, err := core.Jobs.List(cmd.Context(), jobs.Filter{
				UserID:   userID,
				Kind:     domain.JobKind(kind),
				Status:   domain.JobStatus(status),
				PageSize: pageSize,
				Cursor:   cursor,
			})
			if err != nil {
				return fmt.Errorf("failed to list jobs: %w", err)
			}

			if len(page.Jobs) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No jobs found")
				return nil
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tKIND\tSTATUS\tATTEMPT\tPROGRESS\tCREATED")
			for _, job := range page.Jobs {
				fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%.2f\t%s\n",
					job.ID, job.Kind, job.Status, job.Attempt, job.Progress,
					job.CreatedAt.Format(time.RFC3339))
			}
			if err := w.Flush(); err != nil {
				return err
			}
			if page.NextCursor != "" {
				fmt.Fprintf(cmd.OutOrStdout(), "\nnext cursor: %s\n", page.NextCursor)
			}
			return nil
		},
	}
	cmd.Flags().String("user", "", "Filter by user id")
	cmd.Flags().String("kind", "", "Filter by kind (generation, localization, blockchain_registration)")
	cmd.Flags().String("status", "", "Filter by status (QUEUED, PROCESSING, COMPLETED, FAILED)")
	cmd.Flags().Int("page-size", 0, "Jobs per page")
	cmd.Flags().String("cursor", "", "Cursor returned by a previous page")
	return cmd
}

func PeakHoursCmd(env *environment) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "peak-hours <region> <platform>",
		Short: "Show ranked posting windows for a region and platform",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			refresh, _ := cmd.Flags().GetBool("refresh")

			core, err := env.core(cmd, nil)
			if err != nil {
				return err
			}

			analyze := core.Analyzer.Analyze
			if refresh {
				analyze = core.Analyzer.Refresh
			}
			slots, err := analyze(cmd.Context(), args[0], args[1])
			if err != nil {
				return fmt.Errorf("failed to analyze peak hours: %w", err)
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "START\tEND\tSCORE")
			for _, slot := range slots {
				fmt.Fprintf(w, "%s\t%s\t%.2f\n",
					slot.Start.Format(time.RFC3339), slot.End.Format(time.RFC3339), slot.Score)
			}
			return w.Flush()
		},
	}
	cmd.Flags().Bool("refresh", false, "Bypass the cache")
	return cmd
}

func ExecutePostsCmd(env *environment) *cobra.Command {
	return &cobra.Command{
		Use:   "execute-posts",
		Short: "Run one pass over due scheduled posts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !env.cfg.Collaborators.Posting.Enabled() {
				return fmt.Errorf("collaborators.posting.base_url is required")
			}

			publisher, err := env.publisher()
			if err != nil {
				return err
			}
			core, err := env.core(cmd, publisher)
			if err != nil {
				return err
			}

			posting := env.cfg.Worker.Posting
			driver := distribution.NewDriver(distribution.DriverConfig{
				Store:       core.Posts,
				Posting:     httpapi.NewPoster(bootstrap.NewCollaboratorClient(env.cfg.Collaborators.Posting, env.logger.Logger)),
				Publisher:   publisher,
				Clock:       clock.NewRealClock(),
				Logger:      env.logger.Logger,
				BatchSize:   posting.BatchSize,
				Concurrency: posting.Concurrency,
				PostTimeout: posting.PostTimeout,
				ClaimTTL:    posting.ClaimTTL,
			})

			summary, err := driver.ExecuteScheduledPosts(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to execute scheduled posts: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(),
				"claimed=%d posted=%d retried=%d failed=%d released=%d lost=%d\n",
				summary.Claimed, summary.Posted, summary.Retried, summary.Failed, summary.Released, summary.Lost)
			return nil
		},
	}
}
