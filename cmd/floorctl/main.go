// floorctl runs the floor map maintenance jobs against the configured
// record store and artifact storage. Run it in a maintenance window.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/georgemunganga/wayfinder-backend/internal/app"
	"github.com/georgemunganga/wayfinder-backend/internal/config"
	"github.com/georgemunganga/wayfinder-backend/internal/logger"
	"github.com/georgemunganga/wayfinder-backend/internal/modules/floormap"
	"github.com/georgemunganga/wayfinder-backend/internal/platform/apperr"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newApp().RunContext(ctx, os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "floorctl:", err)
		os.Exit(1)
	}
}

type runner struct {
	app *app.App
	log *zap.Logger
}

// withApp builds the shared components before an action and closes them
// afterwards.
func withApp(action func(c *cli.Context, r *runner) error) cli.ActionFunc {
	return func(c *cli.Context) error {
		cfg := config.Load()
		if lvl := c.String("log-level"); lvl != "" {
			cfg.LogLevel = lvl
		}
		log, err := logger.New(cfg.LogLevel, "console", "floorctl")
		if err != nil {
			return err
		}
		defer log.Sync()
		if cfg.DatabaseURL == "" {
			log.Warn("DATABASE_URL is empty, the run sees no venues")
		}

		a, err := app.Build(c.Context, cfg, log)
		if err != nil {
			return err
		}
		defer a.Close()
		return action(c, &runner{app: a, log: log})
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "floorctl",
		Usage: "maintain venue floor map artifacts",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "debug, info, warn or error",
				EnvVars: []string{"LOG_LEVEL"},
			},
		},
		Commands: []*cli.Command{
			{
				Name:  "rebuild",
				Usage: "merge base and journal into the final artifact of every floor",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "venue", Usage: "only rebuild this venue slug"},
				},
				Action: withApp(rebuild),
			},
			{
				Name:   "reconcile",
				Usage:  "re-apply unit records still flagged needs_sync",
				Action: withApp(reconcile),
			},
			{
				Name:  "migrate-slug",
				Usage: "move a venue's artifacts and media to a new slug",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "from", Required: true},
					&cli.StringFlag{Name: "to", Required: true},
				},
				Action: withApp(migrateSlug),
			},
			{
				Name:  "migrate-floors",
				Usage: "rename legacy L<n>/B<n> floor files to floor_<n>",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "venue", Required: true},
				},
				Action: withApp(migrateFloors),
			},
			{
				Name:   "normalize-assets",
				Usage:  "strip cache-busting query suffixes from stored media paths",
				Action: withApp(normalizeAssets),
			},
		},
	}
}

func rebuild(c *cli.Context, r *runner) error {
	var reports []*floormap.VenueReport
	if slug := c.String("venue"); slug != "" {
		report, err := r.app.MapService.RebuildVenue(c.Context, slug)
		if err != nil {
			return err
		}
		reports = append(reports, report)
	} else {
		var err error
		if reports, err = r.app.MapService.RebuildAll(c.Context); err != nil {
			return err
		}
	}
	if err := printJSON(reports); err != nil {
		return err
	}
	for _, report := range reports {
		if report.Failed() {
			return cli.Exit("one or more floors failed to rebuild", 2)
		}
	}
	return nil
}

func reconcile(c *cli.Context, r *runner) error {
	report, err := r.app.Coordinator.ReconcilePending(c.Context)
	if err != nil {
		return err
	}
	if err := printJSON(report); err != nil {
		return err
	}
	if report.Failed > 0 {
		return cli.Exit("some units could not be synced", 2)
	}
	return nil
}

func migrateSlug(c *cli.Context, r *runner) error {
	from, to := c.String("from"), c.String("to")
	if err := r.app.VenueService.CheckSlugRename(c.Context, from, to); err != nil {
		return err
	}
	report, err := r.app.Migrator.MigrateVenueSlug(c.Context, from, to)
	if report != nil {
		printJSON(report)
	}
	return migrationError(err)
}

func migrateFloors(c *cli.Context, r *runner) error {
	report, err := r.app.Migrator.MigrateFloorNaming(c.Context, c.String("venue"))
	if report != nil {
		printJSON(report)
	}
	return migrationError(err)
}

func normalizeAssets(c *cli.Context, r *runner) error {
	report, err := r.app.Normalizer.Run(c.Context)
	if err != nil {
		return err
	}
	if err := printJSON(report); err != nil {
		return err
	}
	if len(report.Errors) > 0 {
		return cli.Exit("normalization finished with errors", 2)
	}
	return nil
}

// migrationError gives an inconsistent venue its own exit code so scripts
// stop before touching anything else.
func migrationError(err error) error {
	var inc *apperr.InconsistencyError
	if errors.As(err, &inc) {
		return cli.Exit(fmt.Sprintf("MANUAL REPAIR NEEDED: %v\nmoved: %v", inc, inc.Moved), 3)
	}
	return err
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
