package main

import (
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/weiawesome/duwdu-messenger/internal/config"
	"github.com/weiawesome/duwdu-messenger/pkg/log"
)

var rootCmd = &cobra.Command{
	Use:           "duwdu",
	Short:         "Duwdu messenger client",
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runServe,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return setup()
	},
}

var (
	flagConfig  string
	flagEnvFile string
	flagPretty  bool

	cfg *config.Config
)

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&flagConfig, "config", "c", "", "config file (default: ./duwdu.yaml or ./config/duwdu.yaml)")
	flags.StringVar(&flagEnvFile, "env-file", ".env", "dotenv file loaded before the environment is read")
	flags.BoolVar(&flagPretty, "pretty", false, "human readable logs")

	rootCmd.AddCommand(serveCmd, whoamiCmd, logoutCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		l := log.L()
		l.Error().Err(err).Msg("duwdu failed")
		os.Exit(1)
	}
}

func setup() error {
	if err := godotenv.Load(flagEnvFile); err != nil && !os.IsNotExist(err) {
		l := log.L()
		l.Warn().Err(err).Str("file", flagEnvFile).Msg("failed to load env file")
	}

	c, err := config.Load(flagConfig)
	if err != nil {
		return err
	}
	cfg = c

	log.Init(log.Config{
		Level:     cfg.Log.Level,
		Pretty:    cfg.Log.Pretty || flagPretty,
		Component: "duwdu",
	})
	return nil
}
