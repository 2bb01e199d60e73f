package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/schollz/progressbar/v3"
	"go.uber.org/zap"

	"github.com/hydrodata/efashydro/internal/config"
	"github.com/hydrodata/efashydro/internal/db"
	"github.com/hydrodata/efashydro/internal/export"
	"github.com/hydrodata/efashydro/internal/plot"
	"github.com/hydrodata/efashydro/pkg/ehdcc"
)

const usageText = `usage: efashydro <command> [flags]

commands:
  stations     retrieve the station catalog (filters, CSV/GeoJSON/plot/db)
  timeseries   retrieve time series for one station (CSV/plot/db)
  duplicates   flag near-duplicate stations across providers

credentials come from -user/-password flags or EHDCC_USER/EHDCC_PASSWORD
(a .env file is honored). run "efashydro <command> -h" for command flags.
`

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "efashydro: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	if len(args) == 0 {
		fmt.Fprint(os.Stderr, usageText)
		return errors.New("missing command")
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	switch args[0] {
	case "stations":
		return runStations(cfg, args[1:])
	case "timeseries":
		return runTimeseries(cfg, args[1:])
	case "duplicates":
		return runDuplicates(cfg, args[1:])
	case "help", "-h", "--help":
		fmt.Fprint(os.Stderr, usageText)
		return nil
	default:
		fmt.Fprint(os.Stderr, usageText)
		return fmt.Errorf("unknown command %q", args[0])
	}
}

// common holds the flags every subcommand shares.
type common struct {
	user     string
	password string
	baseURL  string
	timeout  time.Duration
	verbose  bool
}

func addCommon(fs *flag.FlagSet, cfg config.Config) *common {
	c := &common{}
	fs.StringVar(&c.user, "user", cfg.User, "EHDCC user")
	fs.StringVar(&c.password, "password", cfg.Password, "EHDCC password")
	fs.StringVar(&c.baseURL, "base-url", cfg.BaseURL, "API base URL")
	fs.DurationVar(&c.timeout, "timeout", cfg.RequestTimeout, "per-request timeout")
	fs.BoolVar(&c.verbose, "v", false, "verbose logging")
	return c
}

func (c *common) client(logger *zap.Logger) (*ehdcc.Client, error) {
	if c.user == "" || c.password == "" {
		return nil, errors.New("credentials required: set -user/-password or EHDCC_USER/EHDCC_PASSWORD")
	}
	return ehdcc.NewClient(c.user, c.password,
		ehdcc.WithBaseURL(c.baseURL),
		ehdcc.WithHTTPClient(&http.Client{Timeout: c.timeout}),
		ehdcc.WithLogger(logger),
	), nil
}

func newLogger(verbose bool) *zap.Logger {
	cfg := zap.NewDevelopmentConfig()
	if !verbose {
		cfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	}
	logger, err := cfg.Build()
	if err != nil {
		return zap.NewNop()
	}
	return logger
}

func runStations(cfg config.Config, args []string) error {
	fs := flag.NewFlagSet("stations", flag.ContinueOnError)
	com := addCommon(fs, cfg)
	kind := fs.String("kind", "", "station kind: river or reservoir")
	country := fs.String("country", "", "comma-separated country codes, e.g. ES,PT")
	provider := fs.String("provider", "", "comma-separated provider IDs")
	station := fs.String("station", "", "comma-separated station IDs")
	extent := fs.String("extent", "", "bounding box xmin,ymin,xmax,ymax")
	csvPath := fs.String("csv", "", "write the catalog as CSV to this file")
	geojsonPath := fs.String("geojson", "", "write the catalog as GeoJSON to this file")
	plotPath := fs.String("plot", "", "save a station map (format follows the extension)")
	sizeByArea := fs.Bool("size-by-area", false, "scale map markers by catchment area")
	dbURL := fs.String("database-url", cfg.DatabaseURL, "optional Postgres sink")
	if err := fs.Parse(args); err != nil {
		return err
	}

	logger := newLogger(com.verbose)
	defer func() { _ = logger.Sync() }()
	client, err := com.client(logger)
	if err != nil {
		return err
	}

	providerIDs, err := parseInt64List(*provider)
	if err != nil {
		return fmt.Errorf("invalid -provider: %w", err)
	}
	stationIDs, err := parseInt64List(*station)
	if err != nil {
		return fmt.Errorf("invalid -station: %w", err)
	}
	extentVals, err := parseFloatList(*extent)
	if err != nil {
		return fmt.Errorf("invalid -extent: %w", err)
	}

	ctx := context.Background()
	catalog, err := client.GetStations(ctx, ehdcc.StationFilter{
		Kind:        *kind,
		CountryIDs:  splitList(*country),
		ProviderIDs: providerIDs,
		StationIDs:  stationIDs,
		Extent:      extentVals,
	})
	if err != nil {
		return err
	}

	if *csvPath != "" {
		if err := writeFile(*csvPath, func(w io.Writer) error {
			return export.WriteCatalogCSV(w, catalog)
		}); err != nil {
			return err
		}
		logger.Info("catalog written", zap.String("path", *csvPath))
	}
	if *geojsonPath != "" {
		if err := writeFile(*geojsonPath, func(w io.Writer) error {
			return export.WriteCatalogGeoJSON(w, catalog)
		}); err != nil {
			return err
		}
		logger.Info("catalog written", zap.String("path", *geojsonPath))
	}
	if *plotPath != "" {
		if err := plot.Stations(catalog, *plotPath, plot.StationsOptions{SizeByCatchment: *sizeByArea}); err != nil {
			return err
		}
		logger.Info("map saved", zap.String("path", *plotPath))
	}
	if *dbURL != "" {
		pool, err := pgxpool.New(ctx, *dbURL)
		if err != nil {
			return err
		}
		defer pool.Close()
		if err := db.UpsertStations(ctx, pool, catalog.Stations); err != nil {
			return err
		}
		logger.Info("stations upserted", zap.Int("count", catalog.Len()))
	}

	if *csvPath == "" && *geojsonPath == "" && *plotPath == "" && *dbURL == "" {
		fmt.Printf("%d stations\n", catalog.Len())
		for _, s := range catalog.Stations {
			fmt.Printf("%d\t%s\t%s\n", s.ID, s.Name, s.Country)
		}
	}
	return nil
}

func runTimeseries(cfg config.Config, args []string) error {
	fs := flag.NewFlagSet("timeseries", flag.ContinueOnError)
	com := addCommon(fs, cfg)
	station := fs.Int64("station", 0, "station EFAS ID (required)")
	service := fs.String("service", "", "service name, e.g. noperational24h (required)")
	variables := fs.String("variables", "", "comma-separated variable codes (default: all)")
	startStr := fs.String("start", "", "range start, 2006-01-02 or 2006-01-02T15:04:05 (default 1950-01-01)")
	endStr := fs.String("end", "", "range end (default now)")
	csvPath := fs.String("csv", "", "write the series as CSV to this file")
	plotPath := fs.String("plot", "", "save a line plot (format follows the extension)")
	noProgress := fs.Bool("no-progress", false, "disable the per-variable progress bar")
	dbURL := fs.String("database-url", cfg.DatabaseURL, "optional Postgres sink")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *station == 0 {
		return errors.New("-station is required")
	}
	if *service == "" {
		return errors.New("-service is required")
	}

	logger := newLogger(com.verbose)
	defer func() { _ = logger.Sync() }()
	client, err := com.client(logger)
	if err != nil {
		return err
	}

	start, err := parseTimeFlag(*startStr)
	if err != nil {
		return fmt.Errorf("invalid -start: %w", err)
	}
	end, err := parseTimeFlag(*endStr)
	if err != nil {
		return fmt.Errorf("invalid -end: %w", err)
	}

	var codes []ehdcc.VariableCode
	for _, v := range splitList(*variables) {
		codes = append(codes, ehdcc.VariableCode(strings.ToUpper(v)))
	}

	req := ehdcc.TimeseriesRequest{
		StationID: *station,
		Service:   *service,
		Variables: codes,
		Start:     start,
		End:       end,
	}
	if !*noProgress {
		req.Progress = progressBar()
	}

	ctx := context.Background()
	series, err := client.GetTimeseries(ctx, req)
	if errors.Is(err, ehdcc.ErrNoData) {
		fmt.Printf("no data for station %d\n", *station)
		return nil
	}
	if err != nil {
		return err
	}

	if *csvPath != "" {
		if err := writeFile(*csvPath, func(w io.Writer) error {
			return export.WriteTimeSeriesCSV(w, series)
		}); err != nil {
			return err
		}
		logger.Info("series written", zap.String("path", *csvPath), zap.Int("rows", series.Len()))
	}
	if *plotPath != "" {
		title := fmt.Sprintf("station %d (%s)", *station, *service)
		if err := plot.Series(series, *plotPath, plot.SeriesOptions{Title: title}); err != nil {
			return err
		}
		logger.Info("plot saved", zap.String("path", *plotPath))
	}
	if *dbURL != "" {
		pool, err := pgxpool.New(ctx, *dbURL)
		if err != nil {
			return err
		}
		defer pool.Close()
		rows := db.SamplesFromTimeSeries(*station, series)
		if err := db.InsertSamples(ctx, pool, rows); err != nil {
			return err
		}
		logger.Info("samples inserted", zap.Int("count", len(rows)))
	}

	if *csvPath == "" && *plotPath == "" && *dbURL == "" {
		if err := export.WriteTimeSeriesCSV(os.Stdout, series); err != nil {
			return err
		}
	}
	return nil
}

func runDuplicates(cfg config.Config, args []string) error {
	fs := flag.NewFlagSet("duplicates", flag.ContinueOnError)
	com := addCommon(fs, cfg)
	kind := fs.String("kind", "", "station kind: river or reservoir")
	country := fs.String("country", "", "comma-separated country codes")
	threshold := fs.Float64("threshold", ehdcc.DefaultDuplicateThreshold, "distance threshold in degrees")
	if err := fs.Parse(args); err != nil {
		return err
	}

	logger := newLogger(com.verbose)
	defer func() { _ = logger.Sync() }()
	client, err := com.client(logger)
	if err != nil {
		return err
	}

	catalog, err := client.GetStations(context.Background(), ehdcc.StationFilter{
		Kind:       *kind,
		CountryIDs: splitList(*country),
	})
	if err != nil {
		return err
	}

	groups := ehdcc.FindDuplicates(catalog, *threshold)
	if len(groups) == 0 {
		fmt.Println("no duplicates found")
		return nil
	}
	for _, group := range groups {
		ids := make([]string, 0, len(group))
		for _, id := range group {
			ids = append(ids, strconv.FormatInt(id, 10))
		}
		fmt.Printf("[%s]\n", strings.Join(ids, ", "))
	}
	return nil
}

// progressBar returns a hook that renders one bar per variable.
func progressBar() ehdcc.ProgressFunc {
	var bar *progressbar.ProgressBar
	var current ehdcc.VariableCode
	return func(code ehdcc.VariableCode, batch, total int) {
		if bar == nil || code != current {
			if bar != nil {
				_ = bar.Finish()
			}
			current = code
			bar = progressbar.NewOptions(total,
				progressbar.OptionSetDescription(fmt.Sprintf("variable %s", code)),
				progressbar.OptionSetWriter(os.Stderr),
				progressbar.OptionShowCount(),
				progressbar.OptionClearOnFinish(),
			)
		}
		_ = bar.Add(1)
	}
}

func writeFile(path string, fn func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := fn(f); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

func splitList(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

func parseInt64List(s string) ([]int64, error) {
	parts := splitList(s)
	if len(parts) == 0 {
		return nil, nil
	}
	out := make([]int64, 0, len(parts))
	for _, part := range parts {
		v, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func parseFloatList(s string) ([]float64, error) {
	parts := splitList(s)
	if len(parts) == 0 {
		return nil, nil
	}
	out := make([]float64, 0, len(parts))
	for _, part := range parts {
		v, err := strconv.ParseFloat(part, 64)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func parseTimeFlag(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	for _, layout := range []string{"2006-01-02T15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized time %q", s)
}
