package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/lawnchairsociety/tilefilter/internal/config"
	"github.com/lawnchairsociety/tilefilter/internal/constraint"
	"github.com/lawnchairsociety/tilefilter/internal/diag"
	"github.com/lawnchairsociety/tilefilter/internal/engine"
	"github.com/lawnchairsociety/tilefilter/internal/logger"
	"github.com/lawnchairsociety/tilefilter/internal/store"
	"github.com/lawnchairsociety/tilefilter/internal/world"
)

// reportFile is the YAML written by -report-out
type reportFile struct {
	Report      *engine.Report       `yaml:"report"`
	Constraints *constraint.Document `yaml:"constraints"`
	Messages    []diag.Message       `yaml:"messages"`
	RandomTile  *int                 `yaml:"random_tile,omitempty"`
}

func main() {
	configFile := flag.String("config", "data/tilefilterd.yaml", "Path to configuration file (filter options, database)")
	loggingConfig := flag.String("logging", "data/logging.yaml", "Path to logging configuration file")
	worldFile := flag.String("world", "", "World YAML file to filter")
	fingerprint := flag.String("fingerprint", "", "Stored world to filter (instead of -world)")
	constraintsFile := flag.String("constraints", "", "Constraint YAML file (empty keeps every constraint off)")
	random := flag.Bool("random", false, "Pick a random tile among the matches")
	reportOut := flag.String("report-out", "", "Write the report as YAML to this file")
	record := flag.Bool("record", false, "Record the run in the database")
	flag.Parse()

	logConfig, _ := logger.LoadConfig(*loggingConfig)
	logConfig.ConsoleStderr = true
	if err := logger.Initialize(logConfig); err != nil {
		fmt.Fprintf(os.Stderr, "Error: Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	cfg, err := config.LoadConfig(*configFile)
	if err != nil {
		logger.Warning("Failed to load config, using defaults", "path", *configFile, "error", err)
		cfg = config.DefaultConfig()
	}

	if *worldFile == "" && *fingerprint == "" {
		fmt.Fprintln(os.Stderr, "Error: one of -world or -fingerprint is required")
		flag.Usage()
		os.Exit(2)
	}

	ctx := context.Background()

	var st *store.Store
	if *fingerprint != "" || *record {
		st, err = store.Open(cfg.Database)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: Failed to open database: %v\n", err)
			os.Exit(1)
		}
		defer st.Close()
	}

	w, err := loadWorld(ctx, *worldFile, *fingerprint, st)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	eng := engine.New(engine.Deps{
		Options: config.NewOptions(cfg.Filter.FilterOptions),
		Seed:    cfg.Filter.RandomSeed,
	})
	defer eng.Close()

	// Without a queue the prefilter runs inside LoadWorld
	if _, err := eng.LoadWorld(w); err != nil {
		fmt.Fprintf(os.Stderr, "Error: Failed to load world: %v\n", err)
		os.Exit(1)
	}

	if *constraintsFile != "" {
		doc, err := constraint.LoadDocument(*constraintsFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		if doc.TemperatureUnit == "" {
			doc.TemperatureUnit = cfg.Filter.TemperatureUnit
		}
		if err := doc.Apply(eng.Constraints()); err != nil {
			fmt.Fprintf(os.Stderr, "Error: Invalid constraints: %v\n", err)
			os.Exit(1)
		}
	}

	report, filterErr := eng.FilterNow()

	fmt.Print(eng.Report().Text())
	if report != nil {
		fmt.Println(report.Summary())
	}

	var picked *int
	if *random && filterErr == nil {
		id, err := eng.RandomFilteredTile()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		} else {
			picked = &id
			printTile(w, id)
		}
	}

	doc := constraint.FromValues(eng.Constraints().Snapshot())

	if *reportOut != "" && report != nil {
		out := reportFile{
			Report:      report,
			Constraints: doc,
			Messages:    eng.Report().Messages(),
			RandomTile:  picked,
		}
		if err := writeYAML(*reportOut, out); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		logger.Info("Report written", "path", *reportOut)
	}

	if *record && report != nil {
		fp, err := st.SaveWorld(ctx, w)
		if err == nil {
			err = st.RecordRun(ctx, fp, report, doc)
		}
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: Failed to record run: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Run %s recorded for world %s\n", report.ID, fp)
	}

	if filterErr != nil {
		var empty *engine.EmptyResultError
		if errors.As(filterErr, &empty) {
			os.Exit(3)
		}
		os.Exit(1)
	}
}

func loadWorld(ctx context.Context, path, fingerprint string, st *store.Store) (*world.World, error) {
	if fingerprint != "" {
		w, err := st.LoadWorld(ctx, fingerprint)
		if err != nil {
			return nil, fmt.Errorf("failed to load world %s: %w", fingerprint, err)
		}
		return w, nil
	}
	return world.LoadFromYAML(path)
}

func printTile(w *world.World, id int) {
	t := w.Tile(id)
	fmt.Printf("Random tile: %d\n", id)
	fmt.Printf("  biome:       %s\n", t.Biome)
	fmt.Printf("  hilliness:   %s\n", t.Hilliness)
	fmt.Printf("  temperature: %.1f (min %.1f, max %.1f)\n", t.Temperature, t.MinTemperature, t.MaxTemperature)
	fmt.Printf("  rainfall:    %.0f\n", t.Rainfall)
	fmt.Printf("  time zone:   %+d\n", t.TimeZone())
}

func writeYAML(path string, v any) error {
	data, err := yaml.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal YAML: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}
