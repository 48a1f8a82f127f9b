package main

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"crewcall-sim/internal/scenario"
)

var flagScenarioFile string

var scenarioCmd = &cobra.Command{
	Use:   "scenario [name]",
	Short: "Run a scripted multi-phase scenario",
	Long: "scenario runs a named built-in scenario, or one loaded from a YAML file " +
		"with --file. Without arguments it lists the built-in scenarios.",
	Args: cobra.MaximumNArgs(1),
	RunE: runScenario,
}

func init() {
	scenarioCmd.Flags().StringVar(&flagScenarioFile, "file", "", "Path to a scenario YAML file")
}

func runScenario(cmd *cobra.Command, args []string) error {
	var sc *scenario.Scenario
	switch {
	case flagScenarioFile != "":
		loaded, err := scenario.Load(flagScenarioFile)
		if err != nil {
			return err
		}
		sc = loaded
	case len(args) == 1:
		builtIn := scenario.BuiltIn()
		s, ok := builtIn[args[0]]
		if !ok {
			return fmt.Errorf("unknown scenario %q, available: %s", args[0], strings.Join(builtInNames(), ", "))
		}
		sc = &s
	default:
		for _, name := range builtInNames() {
			fmt.Fprintf(cmd.OutOrStdout(), "%-20s %s\n", name, scenario.BuiltIn()[name].Description)
		}
		return nil
	}

	r, err := buildRuntime()
	if err != nil {
		return err
	}
	defer r.cleanup()

	ctx := cmd.Context()
	if r.collector != nil {
		go r.collector.Run(ctx)
	}

	r.log.Info("scenario starting", "name", sc.Name, "phases", len(sc.Phases))
	results, runErr := sc.Run(ctx, r.orchestrator, r.log)

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(results); err != nil {
		return err
	}
	return runErr
}

func builtInNames() []string {
	names := make([]string, 0)
	for name := range scenario.BuiltIn() {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
