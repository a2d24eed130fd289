package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sort"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/wattmap-nz/wattmap/internal/config"
	"github.com/wattmap-nz/wattmap/internal/etl"
	"github.com/wattmap-nz/wattmap/internal/etl/energyfuel"
	"github.com/wattmap-nz/wattmap/internal/etl/gas"
	"github.com/wattmap-nz/wattmap/internal/etl/generation"
	"github.com/wattmap-nz/wattmap/internal/etl/vehicles"
	"github.com/wattmap-nz/wattmap/internal/metrics"
	"github.com/wattmap-nz/wattmap/internal/region"
	"github.com/wattmap-nz/wattmap/internal/registry"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	if err := newRootCommand().Execute(); err != nil {
		slog.Error("Command failed", "error", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:          "wattmap-etl",
		Short:        "Build the processed and metrics layers from raw sources",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "wattmap.yaml", "Path to configuration file")

	root.AddCommand(newRunCommand(&configPath))
	root.AddCommand(newMetricsCommand(&configPath))
	root.AddCommand(newListCommand(&configPath))
	return root
}

// newRunCommand builds the full pipeline run: every source transform,
// then the metric stage. Naming pipelines restricts the source stage;
// the metric stage still runs afterwards so downstream datasets stay
// consistent with what was rebuilt.
func newRunCommand(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "run [pipeline...]",
		Short: "Run source pipelines and rebuild the metrics layer",
		Example: `  # Full rebuild
  wattmap-etl run

  # Rebuild one source and its dependent metrics
  wattmap-etl run vehicle_registrations`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, reg, err := load(*configPath)
			if err != nil {
				return err
			}

			pipelines, err := selectPipelines(cfg, reg, args)
			if err != nil {
				return err
			}
			stage, err := metricsStage(cfg, reg)
			if err != nil {
				return err
			}

			runner := etl.NewRunner(pipelines, stage)
			_, err = runner.Run(signalContext())
			return err
		},
	}
}

func newMetricsCommand(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "metrics",
		Short: "Rebuild the metrics layer from the existing processed layer",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, reg, err := load(*configPath)
			if err != nil {
				return err
			}
			stage, err := metricsStage(cfg, reg)
			if err != nil {
				return err
			}
			return stage.Run(signalContext())
		},
	}
}

func newListCommand(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List registered datasets and their availability",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, reg, err := load(*configPath)
			if err != nil {
				return err
			}

			for _, d := range reg.List("") {
				status := "available"
				if _, err := os.Stat(d.Path); err != nil {
					status = "missing"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%-28s %-10s %s\n", d.Name, d.Layer, status)
			}
			return nil
		},
	}
}

func load(configPath string) (*config.Config, *registry.Registry, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, err
	}
	reg, err := registry.New(registry.Default(cfg.Data.Dir))
	if err != nil {
		return nil, nil, err
	}
	return cfg, reg, nil
}

// allPipelines wires every source transform against the configured
// inputs and the registry's processed-layer paths.
func allPipelines(cfg *config.Config, reg *registry.Registry) (map[string]etl.Pipeline, error) {
	outputs := make(map[string]string)
	for _, d := range reg.List(registry.LayerProcessed) {
		outputs[d.Name] = d.Path
	}

	mapper := region.NewMapper()
	pipelines := map[string]etl.Pipeline{
		"vehicle_registrations": vehicles.New(vehicles.Config{
			InputPath:  cfg.Sources.VehicleRegistrations,
			OutputPath: outputs["vehicle_registrations"],
		}, mapper),
		"gas_connections": gas.New(gas.Config{
			InputPath:  cfg.Sources.GasConnections,
			OutputPath: outputs["gas_connections"],
		}),
		"energy_by_fuel": energyfuel.New(energyfuel.Config{
			InputPath:  cfg.Sources.EnergyByFuel,
			OutputPath: outputs["energy_by_fuel"],
		}),
		"generation": generation.New(generation.Config{
			InputPath:       cfg.Sources.Generation,
			ConcordancePath: cfg.Sources.GenerationPOC,
			OutputPath:      outputs["generation"],
		}),
	}
	return pipelines, nil
}

func selectPipelines(cfg *config.Config, reg *registry.Registry, names []string) ([]etl.Pipeline, error) {
	all, err := allPipelines(cfg, reg)
	if err != nil {
		return nil, err
	}

	if len(names) == 0 {
		names = make([]string, 0, len(all))
		for name := range all {
			names = append(names, name)
		}
		sort.Strings(names)
	}

	selected := make([]etl.Pipeline, 0, len(names))
	for _, name := range names {
		p, ok := all[name]
		if !ok {
			return nil, fmt.Errorf("unknown pipeline %q (have: vehicle_registrations, gas_connections, energy_by_fuel, generation)", name)
		}
		selected = append(selected, p)
	}
	return selected, nil
}

func metricsStage(cfg *config.Config, reg *registry.Registry) (*metrics.Builder, error) {
	rules, err := metrics.LoadRules(cfg.Metrics.RulesDir)
	if err != nil {
		return nil, err
	}
	return metrics.NewBuilder(reg, rules), nil
}

// signalContext cancels on SIGINT or SIGTERM so a long run can stop
// between pipelines.
func signalContext() context.Context {
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
		<-quit
		slog.Info("Signal received, stopping...")
		cancel()
	}()
	return ctx
}
