package cmd

import (
	"context"
	"database/sql"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/pgschema/pgreconcile/cmd/util"
	"github.com/pgschema/pgreconcile/internal/catalog"
	"github.com/pgschema/pgreconcile/internal/config"
	"github.com/pgschema/pgreconcile/internal/connector"
	"github.com/pgschema/pgreconcile/internal/dialect"
	"github.com/pgschema/pgreconcile/internal/ir"
	"github.com/pgschema/pgreconcile/internal/logger"
	"github.com/pgschema/pgreconcile/internal/plan"
	"github.com/pgschema/pgreconcile/internal/reconcile"
)

var (
	inspectConn     util.ConnectionFlags
	inspectSettings util.SettingsFlags
	inspectTables   []string
	inspectJobs     int
	inspectOutput   string
)

var InspectCmd = &cobra.Command{
	Use:          "inspect",
	Short:        "Describe live tables as YAML declarations",
	Long:         "Read tables from the target schema and print them as YAML declarations that plan and apply accept. Tables are described concurrently over a small connection pool.",
	RunE:         runInspect,
	SilenceUsage: true,
	PreRunE:      util.PreRunEWithEnvVars(&inspectConn),
}

func init() {
	util.AddConnectionFlags(InspectCmd, &inspectConn)
	util.AddSettingsFlags(InspectCmd, &inspectSettings)
	InspectCmd.Flags().StringSliceVar(&inspectTables, "table", nil, "Table to describe; repeatable (default: every table in the schema)")
	InspectCmd.Flags().IntVar(&inspectJobs, "jobs", 4, "Number of tables described concurrently")
	InspectCmd.Flags().StringVar(&inspectOutput, "output", "stdout", "Write the YAML to stdout or a file path")
}

func runInspect(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	cfg, err := inspectSettings.Config(cmd)
	if err != nil {
		return err
	}
	if inspectJobs < 1 {
		return fmt.Errorf("--jobs must be at least 1")
	}

	db, err := util.OpenDatabase(ctx, &inspectConn, &inspectSettings, cfg, false)
	if err != nil {
		return err
	}
	defer db.Close()

	cfg.Schema = db.Schema()
	tables := inspectTables
	if len(tables) == 0 {
		if tables, err = db.Catalog().Tables(ctx); err != nil {
			return err
		}
	}

	specs, warnings, err := describeTables(ctx, inspectConn.Config(), cfg, tables, inspectJobs)
	if err != nil {
		return err
	}
	for _, w := range warnings {
		logger.Get().Warn(w.Message, "table", w.Table)
	}

	out, err := (&ir.Document{Tables: specs}).Marshal()
	if err != nil {
		return err
	}
	if inspectOutput == "stdout" {
		_, err = cmd.OutOrStdout().Write(out)
		return err
	}
	if err := os.WriteFile(inspectOutput, out, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", inspectOutput, err)
	}
	return nil
}

// describeTables describes each table on its own pinned connection from a
// shared pool, at most jobs at a time. Results keep the order of tables.
func describeTables(ctx context.Context, connCfg connector.Config, cfg config.Config, tables []string, jobs int) ([]ir.TableSpec, []plan.Warning, error) {
	pool, err := sql.Open("pgx", connCfg.DSN())
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open connection pool: %w", err)
	}
	defer pool.Close()
	pool.SetMaxOpenConns(jobs)

	d, err := dialect.New(cfg)
	if err != nil {
		return nil, nil, err
	}

	specs := make([]ir.TableSpec, len(tables))
	warnings := make([][]plan.Warning, len(tables))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(jobs)
	for i, table := range tables {
		g.Go(func() error {
			conn, err := connector.FromDB(gctx, pool)
			if err != nil {
				return err
			}
			defer conn.Close()

			rec := reconcile.New(catalog.New(conn, cfg.Schema), nil, d, cfg)
			spec, w, err := rec.DescribeTable(gctx, table)
			if err != nil {
				return fmt.Errorf("failed to describe table %s: %w", table, err)
			}
			if spec == nil {
				return fmt.Errorf("table %s does not exist in schema %s", table, cfg.Schema)
			}
			specs[i] = *spec
			warnings[i] = w
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	var all []plan.Warning
	for _, w := range warnings {
		all = append(all, w...)
	}
	return specs, all, nil
}
