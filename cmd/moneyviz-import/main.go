package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"moneyviz/internal/amqp"
	"moneyviz/internal/cli"
	"moneyviz/internal/config"
	"moneyviz/internal/importer"
	applog "moneyviz/internal/log"
	"moneyviz/internal/metrics"
)

var (
	cfg    *config.Config
	logger *applog.Logger

	rulesFile       string
	suburbsFile     string
	dbPath          string
	metricsTextfile string
)

var rootCmd = &cobra.Command{
	Use:   "moneyviz-import [statement.csv...]",
	Short: "Load bank statement exports into the moneyviz transaction store.",
	Long: `moneyviz-import parses bank statement CSV exports, names and categorises
each row with the description rules and stores new rows in SQLite. Rows that
were imported before are skipped.`,
	Args: cobra.MinimumNArgs(1),
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		cli.LoadEnvFile()
		cfg, logger = cli.LoadAndValidateConfig()
		if !cmd.Flags().Changed("rules") {
			rulesFile = cfg.RulesFile
		}
		if !cmd.Flags().Changed("suburbs") {
			suburbsFile = cfg.SuburbsFile
		}
		if !cmd.Flags().Changed("db") {
			dbPath = cfg.SQLiteDBPath
		}
	},
	RunE: runImport,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "SQLite database path (default $SQLITE_DB_PATH)")
	rootCmd.Flags().StringVarP(&rulesFile, "rules", "r", "", "description rules file (default $RULES_FILE)")
	rootCmd.Flags().StringVar(&suburbsFile, "suburbs", "", "';' separated suburb gazetteer used to split off merchant locations (default $SUBURBS_FILE)")
	rootCmd.Flags().StringVar(&metricsTextfile, "metrics-textfile", "", "write import counters to this file in the Prometheus textfile format")
	rootCmd.AddCommand(summaryCmd)
}

func runImport(cmd *cobra.Command, args []string) error {
	ctx, cancel := cli.SignalContext(logger)
	defer cancel()

	rules, err := importer.LoadRules(rulesFile)
	if err != nil {
		return err
	}

	repo := cli.InitSQLite(logger, dbPath)
	defer repo.Close()

	m := metrics.New()
	opts := []importer.Option{importer.WithLogger(logger), importer.WithRecorder(m)}
	if suburbsFile != "" {
		locator, err := importer.LoadLocator(suburbsFile)
		if err != nil {
			return err
		}
		opts = append(opts, importer.WithLocator(locator))
	}
	if cfg.AMQPURL != "" {
		amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger)
		if err != nil {
			// the API cache still expires on its own
			logger.Warn("AMQP unavailable, import will not be announced", applog.FieldError, err)
		} else {
			defer amqpClient.Close()
			opts = append(opts, importer.WithPublisher(amqpClient))
		}
	}

	sum, err := importer.New(repo, rules, opts...).Import(ctx, args)
	fmt.Fprintf(cmd.OutOrStdout(), "files: %d  inserted: %d  skipped: %d\n", len(sum.Files), sum.Inserted, sum.Skipped)

	if metricsTextfile != "" {
		if werr := m.WriteTextfile(metricsTextfile); werr != nil {
			logger.Warn("Failed to write metrics textfile", applog.FieldFile, metricsTextfile, applog.FieldError, werr)
		}
	}
	return err
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
