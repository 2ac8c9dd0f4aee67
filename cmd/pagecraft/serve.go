package main

import (
	"github.com/spf13/cobra"

	"github.com/eringen/pagecraft"
)

var staticDir string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the web server",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := pagecraft.ConfigFromEnv()
		if err != nil {
			return err
		}
		app := pagecraft.New(cfg, pagecraft.WithStaticDir(staticDir))
		defer app.Close()
		return app.Run(cmd.Context())
	},
}

func init() {
	serveCmd.Flags().StringVar(&staticDir, "static", "public", "directory of static files and uploads")
	rootCmd.AddCommand(serveCmd)
}
