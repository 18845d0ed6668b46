// Command goesctl is a small operator CLI around the retrieval engine's
// read-only collaborators. Today it has a single "diagnose" subcommand
// that prints catalog validity and destination disk usage. It opens the
// query store (creating the database and table if missing) but reads and
// writes no records.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"

	"github.com/urfave/cli/v2"

	"goesretrieval/internal/config"
	"goesretrieval/internal/engine"
	"goesretrieval/internal/store"
)

func main() {
	config.LoadDotEnv(".env")

	app := &cli.App{
		Name:  "goesctl",
		Usage: "Operator tooling for the GOES historic-file retrieval service",
		Commands: []*cli.Command{
			{
				Name:   "diagnose",
				Usage:  "Print catalog validity and destination disk usage",
				Flags:  config.Flags(),
				Action: runDiagnose,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func runDiagnose(c *cli.Context) error {
	cfg, err := config.FromCLI(c)
	if err != nil {
		return fmt.Errorf("resolving configuration: %w", err)
	}

	ctx := context.Background()
	st, err := store.Open(ctx, cfg.DBPath)
	if err != nil {
		return fmt.Errorf("opening query store: %w", err)
	}
	defer st.Close()

	engineCfg := engine.DefaultConfig()
	engineCfg.SourcePath = cfg.SourcePath
	engineCfg.DownloadPath = cfg.DownloadPath
	engineCfg.LustreEnabled = cfg.LustreEnabled
	engineCfg.S3FallbackEnabled = cfg.S3FallbackEnabled
	engineCfg.S3OnlyProducts = cfg.S3OnlyProducts
	engineCfg.GOES19OperationalDate = cfg.GOES19OperationalDate

	eng := engine.New(engineCfg, st, nil)
	diagnostics := eng.Diagnose(ctx)

	out, err := json.MarshalIndent(diagnostics, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding diagnostics: %w", err)
	}
	fmt.Println(string(out))
	return nil
}
