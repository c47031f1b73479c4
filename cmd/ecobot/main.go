package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"ecobot-service/internal/app"
	"ecobot-service/internal/config"
	"ecobot-service/internal/logger"
)

func main() {
	if err := rootCommand().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCommand() *cobra.Command {
	v := viper.New()
	var configFile string

	root := &cobra.Command{
		Use:           "ecobot",
		Short:         "EcoBot litter detection API",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&configFile, "config", "", "Path to a config file (default ./config.yaml if present)")

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the detection HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), v, configFile)
		},
	}
	serveCmd.Flags().String("host", "", "Listen host")
	serveCmd.Flags().Int("port", 0, "Listen port")
	serveCmd.Flags().String("model", "", "Path to the model weights")
	serveCmd.Flags().String("backend", "", "Model backend (auto, remote, tflite)")
	serveCmd.Flags().Bool("debug", false, "Enable debug mode")

	flagKeys := map[string]string{
		"host":    "http.host",
		"port":    "http.port",
		"model":   "model.path",
		"backend": "model.backend",
		"debug":   "debug",
	}
	for name, key := range flagKeys {
		if err := v.BindPFlag(key, serveCmd.Flags().Lookup(name)); err != nil {
			panic(fmt.Sprintf("bind flag %s: %v", name, err))
		}
	}

	root.AddCommand(serveCmd)
	root.RunE = serveCmd.RunE
	return root
}

func runServe(ctx context.Context, v *viper.Viper, configFile string) error {
	if err := config.LoadDotEnv(); err != nil {
		return err
	}
	if err := config.Bind(v, configFile); err != nil {
		return err
	}
	cfg, err := config.Load(v)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	log := logger.New(cfg.Debug, os.Stderr)

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(cfg, log)
	if err != nil {
		log.Error().Err(err).Msg("failed to build app")
		return err
	}
	return a.Run(ctx)
}
