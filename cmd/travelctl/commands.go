package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/dalfonso89/travel-assistant-api/internal/app"
	"github.com/dalfonso89/travel-assistant-api/internal/config"
	"github.com/dalfonso89/travel-assistant-api/internal/logger"
	"github.com/dalfonso89/travel-assistant-api/internal/models"
)

type loadConfig func() (*config.Config, error)

// cli carries state shared by every subcommand
type cli struct {
	load     loadConfig
	logLevel string
	app      *app.App
}

func newRootCommand(load loadConfig) *cobra.Command {
	state := &cli{load: load}

	root := &cobra.Command{
		Use:           "travelctl",
		Short:         "Query the travel assistant's providers with the same fallbacks as the API",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := state.load()
			if err != nil {
				return fmt.Errorf("loading configuration: %w", err)
			}
			// The CLI has no inbound traffic to limit
			cfg.RateLimitEnabled = false

			state.app, err = app.New(cfg, logger.NewWithOutput(state.logLevel, cmd.ErrOrStderr()), app.Options{})
			return err
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			if state.app != nil {
				state.app.Close()
			}
		},
	}
	root.PersistentFlags().StringVar(&state.logLevel, "log-level", "warn", "Log level written to stderr")

	root.AddCommand(state.rateCommand(), state.convertCommand(), state.geocodeCommand(), state.searchCommand())
	return root
}

func (state *cli) rateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "rate <from> <to>",
		Short: "Show the exchange rate for one unit of <from> in <to>",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			rate := state.app.Rates.GetRate(cmd.Context(), args[0], args[1])
			return writeJSON(cmd.OutOrStdout(), rate)
		},
	}
}

func (state *cli) convertCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "convert <from> <to> <amount>",
		Short: "Convert an amount between currencies",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			amount, err := decimal.NewFromString(args[2])
			if err != nil {
				return fmt.Errorf("amount %q is not a number", args[2])
			}
			conversion, err := state.app.Rates.Convert(cmd.Context(), args[0], args[1], amount)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), conversion)
		},
	}
}

func (state *cli) geocodeCommand() *cobra.Command {
	var country string

	command := &cobra.Command{
		Use:   "geocode <place>",
		Short: "Resolve a place name to coordinates",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			place := strings.Join(args, " ")
			coordinate := state.app.Listings.ResolveCoordinates(cmd.Context(), place, country)
			if coordinate == nil {
				return fmt.Errorf("could not resolve %q", place)
			}
			return writeJSON(cmd.OutOrStdout(), coordinate)
		},
	}
	command.Flags().StringVar(&country, "country", "", "ISO country code hint, e.g. KR")
	return command
}

func (state *cli) searchCommand() *cobra.Command {
	var (
		query                       models.SearchQuery
		checkIn, checkOut           string
		minPrice, maxPrice, minRate float64
	)

	search := &cobra.Command{
		Use:   "search",
		Short: "Run a listing waterfall",
	}

	kinds := []struct {
		use   string
		short string
		kind  models.ListingKind
	}{
		{"accommodations <location>", "Hotels and other lodging", models.KindAccommodation},
		{"foods <location>", "Restaurants, optionally by cuisine", models.KindFood},
		{"places <location>", "Attractions, optionally by category", models.KindPlace},
	}

	for _, entry := range kinds {
		command := &cobra.Command{
			Use:   entry.use,
			Short: entry.short,
			Args:  cobra.MinimumNArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				request := query
				request.Kind = entry.kind
				request.Location = strings.Join(args, " ")

				var err error
				if request.CheckIn, err = parseDay(checkIn); err != nil {
					return err
				}
				if request.CheckOut, err = parseDay(checkOut); err != nil {
					return err
				}

				var filters models.Filters
				flags := cmd.Flags()
				if flags.Changed("min-price") {
					filters.MinPrice = &minPrice
				}
				if flags.Changed("max-price") {
					filters.MaxPrice = &maxPrice
				}
				if flags.Changed("min-rating") {
					filters.MinRating = &minRate
				}

				listings := state.app.Listings
				var results []models.ListingRecord
				switch entry.kind {
				case models.KindAccommodation:
					results, err = listings.SearchAccommodations(cmd.Context(), request, filters)
				case models.KindFood:
					results, err = listings.SearchFoods(cmd.Context(), request, filters)
				default:
					results, err = listings.SearchPlaces(cmd.Context(), request, filters)
				}
				if err != nil {
					return err
				}

				return writeJSON(cmd.OutOrStdout(), models.ListingResponse{
					Kind:     entry.kind,
					Location: request.Location,
					Count:    len(results),
					Results:  results,
				})
			},
		}

		flags := command.Flags()
		flags.StringVar(&query.CountryHint, "country", "", "ISO country code hint")
		flags.Float64Var(&minPrice, "min-price", 0, "Minimum price")
		flags.Float64Var(&maxPrice, "max-price", 0, "Maximum price")
		flags.Float64Var(&minRate, "min-rating", 0, "Minimum rating")
		switch entry.kind {
		case models.KindAccommodation:
			flags.StringVar(&checkIn, "check-in", "", "Check-in date (YYYY-MM-DD)")
			flags.StringVar(&checkOut, "check-out", "", "Check-out date (YYYY-MM-DD)")
			flags.IntVar(&query.Guests, "guests", 1, "Number of adults")
		case models.KindFood:
			flags.StringVar(&query.Cuisine, "cuisine", "", "Cuisine, e.g. korean")
		case models.KindPlace:
			flags.StringVar(&query.Category, "category", "", "Category, e.g. museum")
		}

		search.AddCommand(command)
	}

	return search
}

func parseDay(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, nil
	}
	day, err := time.Parse("2006-01-02", value)
	if err != nil {
		return time.Time{}, fmt.Errorf("date %q must use YYYY-MM-DD", value)
	}
	return day, nil
}

func writeJSON(out io.Writer, value any) error {
	encoder := json.NewEncoder(out)
	encoder.SetIndent("", "  ")
	return encoder.Encode(value)
}
