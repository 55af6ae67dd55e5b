// adminctl is the operator tool for the territory game's document database.
//
// It talks to Cloud Firestore by default, or to an embedded local store under
// --local-dir.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"text/tabwriter"
	"time"

	"territory-admin/dblayer"
	"territory-admin/docstore"
	"territory-admin/docstore/badgerstore"
	"territory-admin/workflow"

	"cloud.google.com/go/firestore"
	cloudmetrics "github.com/GoogleCloudPlatform/opentelemetry-operations-go/exporter/metric"
	cloudtrace "github.com/GoogleCloudPlatform/opentelemetry-operations-go/exporter/trace"
	"github.com/spf13/cobra"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	googleopt "google.golang.org/api/option"
)

var cmdRoot = &cobra.Command{
	Use:           "adminctl",
	Short:         "Administer territory game data",
	SilenceUsage:  true,
	SilenceErrors: true,
}

var (
	dataProject string
	localDir    string
	logLevel    string
	timeout     time.Duration

	monitoring           bool
	monitoringProject    string
	monitoringTraceRatio float64
)

func init() {
	cmdRoot.PersistentFlags().StringVar(&dataProject, "data-project", "", "GCP project holding the Firestore database.")
	cmdRoot.PersistentFlags().StringVar(&localDir, "local-dir", "", "Use an embedded local store in this directory instead of Firestore.")
	cmdRoot.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Minimum log level (debug, info, warn, error).")
	cmdRoot.PersistentFlags().DurationVar(&timeout, "timeout", 5*time.Minute, "Overall deadline for a command.  Zero means none.  Ignored by serve and watch.")

	cmdRoot.PersistentFlags().BoolVar(&monitoring, "monitoring", false, "Enable monitoring?")
	cmdRoot.PersistentFlags().StringVar(&monitoringProject, "monitoring-project", "", "Override project used for monitoring integration.  If not specified, the project associated with Application Default Credentials is used.")
	cmdRoot.PersistentFlags().Float64Var(&monitoringTraceRatio, "monitoring-trace-ratio", 0.0001, "What ratio of traces should be exported?")

	cmdRoot.AddCommand(cmdUsers, cmdFeed, cmdActivities, cmdTerritories, cmdFollows, cmdRanking, cmdWipe, cmdServe)
}

// env is what every subcommand works against.
type env struct {
	db     *dblayer.DB
	runner *workflow.Runner
	out    io.Writer
}

func setupLogging() error {
	var level slog.Level
	if err := level.UnmarshalText([]byte(logLevel)); err != nil {
		return fmt.Errorf("while parsing --log-level: %w", err)
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
	return nil
}

func openStore(ctx context.Context) (docstore.Store, func(), error) {
	if localDir != "" {
		store, err := badgerstore.Open(localDir)
		if err != nil {
			return nil, nil, fmt.Errorf("while opening local store: %w", err)
		}
		return store, func() {
			if err := store.Close(); err != nil {
				slog.Error("Error while closing local store", slog.Any("err", err))
			}
		}, nil
	}

	if dataProject == "" {
		return nil, nil, fmt.Errorf("one of --data-project or --local-dir is required")
	}
	client, err := firestore.NewClient(ctx, dataProject, googleopt.WithGRPCConnectionPool(1))
	if err != nil {
		return nil, nil, fmt.Errorf("while creating Firestore client: %w", err)
	}
	return docstore.NewFirestore(client), func() { client.Close() }, nil
}

// run sets up the ambient stack and the store, then calls fn.  A standing
// command passes bounded=false so that --timeout doesn't cut it off.
func run(cmd *cobra.Command, bounded bool, fn func(ctx context.Context, e *env) error) error {
	if err := setupLogging(); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	if monitoring {
		metricsOpts := []cloudmetrics.Option{}
		traceOpts := []cloudtrace.Option{}
		if monitoringProject != "" {
			metricsOpts = append(metricsOpts, cloudmetrics.WithProjectID(monitoringProject))
			traceOpts = append(traceOpts, cloudtrace.WithProjectID(monitoringProject))
		}

		_, traceShutdown, err := cloudtrace.InstallNewPipeline(traceOpts, sdktrace.WithSampler(sdktrace.TraceIDRatioBased(monitoringTraceRatio)))
		if err != nil {
			return fmt.Errorf("while installing Cloud Trace pipeline: %w", err)
		}
		defer traceShutdown()

		pusher, err := cloudmetrics.InstallNewPipeline(metricsOpts)
		if err != nil {
			return fmt.Errorf("while installing Cloud Monitoring metric pipeline: %w", err)
		}
		defer pusher.Stop(ctx)
	}

	store, closeStore, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	if bounded && timeout > 0 {
		var cancelTimeout context.CancelFunc
		ctx, cancelTimeout = context.WithTimeout(ctx, timeout)
		defer cancelTimeout()
	}

	db := dblayer.New(store)
	out := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	defer out.Flush()

	return fn(ctx, &env{
		db:     db,
		runner: workflow.New(db),
		out:    out,
	})
}

func main() {
	if err := cmdRoot.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "adminctl: %v\n", err)
		os.Exit(1)
	}
}
