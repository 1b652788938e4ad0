package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/dustin/go-humanize"

	"github.com/lawnchairsociety/tilefilter/internal/config"
	"github.com/lawnchairsociety/tilefilter/internal/store"
	"github.com/lawnchairsociety/tilefilter/internal/world"
)

func main() {
	seed := flag.Int64("seed", 1, "Generation seed")
	tiles := flag.Int("tiles", 5000, "Number of tiles")
	coverage := flag.Float64("coverage", 0.3, "Fraction of the planet covered (0-1]")
	settlements := flag.Int("settlements", 20, "Number of pre-existing settlements")
	name := flag.String("name", "", "World name (default generated-<seed>)")
	output := flag.String("out", "", "Output world YAML file (empty skips writing)")
	importDB := flag.Bool("import", false, "Import the world into the database")
	configFile := flag.String("config", "data/tilefilterd.yaml", "Configuration file holding the database settings")
	flag.Parse()

	if *coverage <= 0 || *coverage > 1 {
		fmt.Fprintf(os.Stderr, "Error: coverage must be in (0, 1], got %g\n", *coverage)
		os.Exit(2)
	}
	if *output == "" && !*importDB {
		fmt.Fprintln(os.Stderr, "Error: nothing to do, pass -out and/or -import")
		flag.Usage()
		os.Exit(2)
	}

	gen := world.DefaultGeneratorConfig(*seed)
	gen.TileCount = *tiles
	gen.Coverage = *coverage
	gen.SettlementCount = *settlements
	if *name != "" {
		gen.Name = *name
	}

	w, err := world.Generate(gen)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error generating world: %v\n", err)
		os.Exit(1)
	}
	fingerprint := world.Fingerprint(w)
	fmt.Printf("Generated %q: %s tiles, %d settlements, fingerprint %s\n",
		gen.Name, humanize.Comma(int64(w.TileCount())), len(w.Occupied()), fingerprint)

	if *output != "" {
		if err := world.SaveToYAML(w, *output); err != nil {
			fmt.Fprintf(os.Stderr, "Error writing world: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("World written to %s\n", *output)
	}

	if *importDB {
		cfg, err := config.LoadConfig(*configFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
			os.Exit(1)
		}
		st, err := store.Open(cfg.Database)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error opening database: %v\n", err)
			os.Exit(1)
		}
		defer st.Close()

		if _, err := st.SaveWorld(context.Background(), w); err != nil {
			fmt.Fprintf(os.Stderr, "Error importing world: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("World imported into %s database\n", cfg.Database.Driver)
	}
}
