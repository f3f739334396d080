package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/plattproject/cluster-gateway/pkg/banner"
	"github.com/plattproject/cluster-gateway/pkg/gateway"
	"github.com/plattproject/cluster-gateway/pkg/log"
)

var (
	flagConfig         string
	flagPool           string
	flagUser           string
	flagBackendPort    int
	flagSimulationPort int
	flagMetricsPort    int
	flagLogLevel       string
	flagSettings       string
	flagSelfTest       bool
)

var rootCmd = &cobra.Command{
	Use:   "gateway",
	Short: "Gateway between a running simulation and an analytics backend",
	Long: `The gateway fronts an object-storage cluster for a running
simulation. It keeps an in-memory index of every object the simulation
announces or a periodic sweep discovers, and serves index snapshots,
change notifications and file downloads to analytics backends over a
framed JSON protocol.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PreRunE: func(cmd *cobra.Command, args []string) error {
		if !log.Valid(flagLogLevel) {
			return fmt.Errorf("unknown log level %q, accepted: %v", flagLogLevel, log.Levels)
		}
		if !flagSelfTest {
			if flagConfig == "" || flagPool == "" || flagUser == "" {
				return fmt.Errorf("--config, --pool and --user are required")
			}
		}
		return nil
	},
	RunE: run,
}

func init() {
	flags := rootCmd.Flags()
	flags.StringVarP(&flagConfig, "config", "c", "", "path to the cluster configuration and keyring file")
	flags.StringVarP(&flagPool, "pool", "p", "", "storage pool to front")
	flags.StringVarP(&flagUser, "user", "u", "", "cluster user")
	flags.IntVar(&flagBackendPort, "backend_port", 8009, "listen port for analytics backends")
	flags.IntVar(&flagSimulationPort, "simulation_port", 8010, "listen port for simulation announcements")
	flags.IntVar(&flagMetricsPort, "metrics_port", 0, "Prometheus metrics port (0 disables)")
	flags.StringVarP(&flagLogLevel, "log", "l", "info", "log level (debug, verbose, info, warning, error, critical, quiet)")
	flags.StringVar(&flagSettings, "settings", "", "path to an optional YAML settings file")
	flags.BoolVar(&flagSelfTest, "test", false, "run the built-in self-test against an in-memory cluster and exit")
}

func run(cmd *cobra.Command, args []string) error {
	log.Init(log.Config{Level: log.Level(flagLogLevel)})
	banner.Print(os.Stdout)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if flagSelfTest {
		if err := gateway.SelfTest(ctx); err != nil {
			return fmt.Errorf("self-test failed: %w", err)
		}
		log.Info("self-test passed")
		return nil
	}

	settings, err := gateway.LoadSettings(flagSettings)
	if err != nil {
		return err
	}

	gw, err := gateway.New(gateway.Config{
		ClusterConfig:  flagConfig,
		Pool:           flagPool,
		User:           flagUser,
		BackendAddr:    fmt.Sprintf(":%d", flagBackendPort),
		SimulationAddr: fmt.Sprintf(":%d", flagSimulationPort),
		MetricsAddr:    metricsAddr(),
		Settings:       settings,
	})
	if err != nil {
		return err
	}

	err = gw.Run(ctx)
	if ctx.Err() != nil {
		log.Info("shutting down")
		return nil
	}
	return err
}

func metricsAddr() string {
	if flagMetricsPort == 0 {
		return ""
	}
	return fmt.Sprintf(":%d", flagMetricsPort)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
