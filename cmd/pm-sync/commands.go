package main

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/nucleus/pm-sync/internal/logging"
	"github.com/nucleus/pm-sync/internal/reconcile"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply database migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := bootstrap(cmd.Context(), true)
		if err != nil {
			return err
		}
		defer a.Close(context.Background())
		logging.Info().Str("driver", a.cfg.Database.Driver).Msg("migrations applied")
		return nil
	},
}

var syncCmd = &cobra.Command{
	Use:   "sync <service-id> <project>",
	Short: "Connect a service and sync one project",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := bootstrap(ctx, false)
		if err != nil {
			return err
		}
		defer a.Close(context.Background())

		if _, err := a.manager.ConnectService(ctx, args[0]); err != nil {
			return err
		}
		status := a.engine.SyncProjectData(ctx, args[0], args[1])
		if err := printJSON(cmd, status); err != nil {
			return err
		}
		if status.Status != reconcile.StatusSuccess {
			return fmt.Errorf("sync of %s failed", args[1])
		}
		return nil
	},
}

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Connect enabled services and report their health",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := bootstrap(ctx, false)
		if err != nil {
			return err
		}
		defer a.Close(context.Background())

		if err := a.connectEnabled(ctx); err != nil {
			return err
		}
		checks, err := a.manager.HealthCheckAllServices(ctx)
		if err != nil {
			return err
		}
		return printJSON(cmd, checks)
	},
}

var servicesCmd = &cobra.Command{
	Use:   "services",
	Short: "Inspect configured services",
}

var servicesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored services",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := bootstrap(cmd.Context(), false)
		if err != nil {
			return err
		}
		defer a.Close(context.Background())

		services, err := a.db.ListServices(cmd.Context(), false)
		if err != nil {
			return err
		}
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tTYPE\tNAME\tENABLED\tSTATUS\tLAST ERROR")
		for _, s := range services {
			fmt.Fprintf(w, "%s\t%s\t%s\t%t\t%s\t%s\n", s.ID, s.ServiceType, s.Name, s.Enabled, s.ConnectionStatus, s.LastError)
		}
		return w.Flush()
	},
}

func init() {
	servicesCmd.AddCommand(servicesListCmd)
}

func printJSON(cmd *cobra.Command, v any) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), string(out))
	return err
}
