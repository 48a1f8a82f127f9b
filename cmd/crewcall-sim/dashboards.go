package main

import (
	"github.com/spf13/cobra"

	"crewcall-sim/internal/dashboard"
)

var flagDashboardsOut string

var dashboardsCmd = &cobra.Command{
	Use:   "dashboards",
	Short: "Render the Grafana dashboard JSON from its template",
	RunE: func(_ *cobra.Command, _ []string) error {
		return dashboard.Render(flagDashboardsOut)
	},
}

func init() {
	dashboardsCmd.Flags().StringVar(&flagDashboardsOut, "out", "dashboards", "Output directory for rendered dashboards")
}
