package main

import (
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"vela/internal/app/file"
	"vela/internal/app/server"
)

var (
	debug     bool
	cacheSize int
)

var rootCmd = &cobra.Command{
	Use:   "vela <env_dir>",
	Short: "A small relational database with a SQL shell",
	Long: `Vela persists relations on fixed-size disk blocks inside <env_dir>,
maintains B+Tree secondary indices, and evaluates a subset of SQL read
from standard input, one statement per line. The words quit and test
are handled by the shell itself.`,
	Args:          cobra.ExactArgs(1),
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		level := zerolog.WarnLevel
		if debug {
			level = zerolog.DebugLevel
		}
		log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
			Level(level).With().Timestamp().Logger()

		env, err := file.NewDbEnv(args[0], log)
		if err != nil {
			log.Error().Err(err).Msg("cannot initialize environment")
			return err
		}
		env.CacheSize = cacheSize

		shell, err := server.NewShell(env, os.Stdin, os.Stdout)
		if err != nil {
			log.Error().Err(err).Msg("cannot open database")
			return err
		}
		return shell.Run()
	},
}

func main() {
	rootCmd.Flags().BoolVar(&debug, "debug", false, "log at debug level")
	rootCmd.Flags().IntVar(&cacheSize, "cache", 128, "page-cache entries per file")

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
