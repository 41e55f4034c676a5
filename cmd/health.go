package cmd

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/fenilmodi00/ipo-admin/config"
	"github.com/fenilmodi00/ipo-admin/database"
	"github.com/fenilmodi00/ipo-admin/services"
	"github.com/spf13/cobra"
)

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check that the IPO backend and the draft database answer",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(cmd.Context(), time.Minute)
		defer cancel()
		return runHealthCheck(ctx, cfg, cmd.OutOrStdout())
	},
}

type healthCheck struct {
	name string
	run  func(ctx context.Context) (string, error)
}

// runHealthCheck runs each check and fails when any of them does
func runHealthCheck(ctx context.Context, cfg *config.Config, out io.Writer) error {
	unified := cfg.Unified()
	client := services.NewBackendClient(unified.Service, nil)
	defer client.Close()
	ipos := services.NewIPOService(client, nil, nil)

	checks := []healthCheck{}
	for _, category := range services.IPOCategories {
		category := category
		checks = append(checks, healthCheck{
			name: "Backend " + string(category) + " list",
			run: func(ctx context.Context) (string, error) {
				page, err := ipos.FetchRecords(ctx, category, services.TableQuery{Limit: 1})
				if err != nil {
					return "", err
				}
				return fmt.Sprintf("%d records", len(page.Records)), nil
			},
		})
	}
	checks = append(checks, healthCheck{
		name: "Draft database",
		run: func(ctx context.Context) (string, error) {
			if !cfg.HasDatabase() {
				return "not configured, drafts kept in memory", nil
			}
			db, err := database.ConnectWithConfig(unified.Database)
			if err != nil {
				return "", err
			}
			defer database.Close(db)
			report, err := database.ValidateSchema(ctx, db)
			if err != nil {
				return "", err
			}
			if !report.Valid() {
				return "", fmt.Errorf("schema mismatch: table=%v missing=%v mismatched=%v",
					report.TableExists, report.MissingColumns, report.MismatchedTypes)
			}
			return "schema ok", nil
		},
	})

	fmt.Fprintf(out, "IPO Admin Health Check - %s\n", time.Now().Format("2006-01-02 15:04:05"))
	fmt.Fprintln(out, strings.Repeat("=", 50))

	passed := 0
	for _, check := range checks {
		detail, err := check.run(ctx)
		if err != nil {
			fmt.Fprintf(out, "%-28s FAILED (%v)\n", check.name+":", err)
			continue
		}
		passed++
		fmt.Fprintf(out, "%-28s OK (%s)\n", check.name+":", detail)
	}

	fmt.Fprintln(out, strings.Repeat("-", 50))
	percent := float64(passed) / float64(len(checks)) * 100
	switch {
	case passed == len(checks):
		fmt.Fprintf(out, "SYSTEM HEALTHY: %d/%d checks passed (%.0f%%)\n", passed, len(checks), percent)
		return nil
	case passed >= len(checks)/2:
		fmt.Fprintf(out, "SYSTEM DEGRADED: %d/%d checks passed (%.0f%%)\n", passed, len(checks), percent)
	default:
		fmt.Fprintf(out, "SYSTEM UNHEALTHY: %d/%d checks passed (%.0f%%)\n", passed, len(checks), percent)
	}
	return fmt.Errorf("%d of %d health checks failed", len(checks)-passed, len(checks))
}
