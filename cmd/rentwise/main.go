package main

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"rentwise/internal/app"
	"rentwise/internal/config"
	"rentwise/internal/logging"
	"rentwise/internal/ports"
	"rentwise/internal/recommend"
	"rentwise/internal/usecase"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "rentwise",
		Short: "Government rental data sync and town recommendations",
	}

	rootCmd.AddCommand(
		serveCmd(),
		syncCmd(),
		recommendCmd(),
		scheduleCmd(),
		statsCmd(),
		searchCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func buildApp() (*app.Application, error) {
	cfg := config.Load()
	logger := logging.New(cfg.Logging.Level, cfg.Logging.Format)
	return app.New(cfg, logger)
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the scheduled sync until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			application, err := buildApp()
			if err != nil {
				return err
			}
			defer application.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return application.Run(ctx)
		},
	}
}

func syncCmd() *cobra.Command {
	var sample int

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Run a one-shot ingestion of the external dataset",
		RunE: func(cmd *cobra.Command, args []string) error {
			application, err := buildApp()
			if err != nil {
				return err
			}
			defer application.Close()

			affected, err := application.SyncNow(cmd.Context())
			if err != nil {
				return err
			}

			count, err := application.Count(cmd.Context())
			if err != nil {
				return err
			}

			fmt.Printf("upserted %d rows, store now holds %d records\n", affected, count)

			if sample > 0 {
				records, err := application.Sample(cmd.Context(), sample)
				if err != nil {
					return err
				}
				return printJSON(records)
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&sample, "sample", 0, "print the N most recently updated rows after the sync")
	return cmd
}

func recommendCmd() *cobra.Command {
	var alpha float64

	cmd := &cobra.Command{
		Use:   "recommend <location> [location] [location]",
		Short: "Rank towns around up to three locations",
		Long: "Locations may be free-text addresses, postal codes or \"lat,lng\" literals.\n" +
			"Alpha weighs proximity against price: 1 is distance only, 0 is price only.",
		Args: cobra.RangeArgs(1, 3),
		RunE: func(cmd *cobra.Command, args []string) error {
			application, err := buildApp()
			if err != nil {
				return err
			}
			defer application.Close()

			result, err := application.Recommend(cmd.Context(), args, alpha)
			if err != nil {
				return err
			}

			return printJSON(result)
		},
	}

	cmd.Flags().Float64Var(&alpha, "alpha", recommend.DefaultAlpha, "distance weight in [0,1]")
	return cmd
}

func scheduleCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Inspect or change the sync cadence",
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "get",
			Short: "Show the active sync schedule",
			RunE: func(cmd *cobra.Command, args []string) error {
				application, err := buildApp()
				if err != nil {
					return err
				}
				defer application.Close()

				expr, label, err := application.Schedule(cmd.Context())
				if err != nil {
					return err
				}

				fmt.Printf("%s (%s)\n", expr, label)
				return nil
			},
		},
		&cobra.Command{
			Use:   "set <label>",
			Short: "Switch to one of: " + strings.Join(usecase.Labels(), ", "),
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				application, err := buildApp()
				if err != nil {
					return err
				}
				defer application.Close()

				if err := application.SetSchedule(cmd.Context(), args[0]); err != nil {
					return err
				}

				fmt.Printf("sync schedule set to %q\n", args[0])
				return nil
			},
		},
	)

	return cmd
}

func statsCmd() *cobra.Command {
	var byFlatType bool

	cmd := &cobra.Command{
		Use:   "stats [town]",
		Short: "Show per-town rental statistics",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			application, err := buildApp()
			if err != nil {
				return err
			}
			defer application.Close()

			if len(args) == 1 {
				stat, err := application.TownStatistic(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if !stat.Available {
					fmt.Printf("no data for %s\n", strings.ToUpper(args[0]))
					return nil
				}
				fmt.Printf("%s: %d listings, avg $%d/month\n",
					strings.ToUpper(args[0]), stat.ListingCount, stat.AvgMonthlyRent)
				return nil
			}

			stats, err := application.AllTownStatistics(cmd.Context(), byFlatType)
			if err != nil {
				return err
			}
			return printJSON(stats)
		},
	}

	cmd.Flags().BoolVar(&byFlatType, "by-flat-type", false, "group statistics by flat type")
	return cmd
}

func searchCmd() *cobra.Command {
	var filters ports.SearchFilters

	cmd := &cobra.Command{
		Use:   "search",
		Short: "List stored transactions, cheapest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			application, err := buildApp()
			if err != nil {
				return err
			}
			defer application.Close()

			records, err := application.Search(cmd.Context(), filters)
			if err != nil {
				return err
			}
			return printJSON(records)
		},
	}

	cmd.Flags().StringVar(&filters.Town, "town", "", "filter by town")
	cmd.Flags().StringVar(&filters.FlatType, "flat-type", "", "filter by flat type")
	cmd.Flags().IntVar(&filters.MinPrice, "min-price", 0, "minimum monthly rent")
	cmd.Flags().IntVar(&filters.MaxPrice, "max-price", 0, "maximum monthly rent")
	cmd.Flags().IntVar(&filters.Limit, "limit", 20, "maximum rows to return")
	cmd.Flags().IntVar(&filters.Offset, "offset", 0, "rows to skip")
	return cmd
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
