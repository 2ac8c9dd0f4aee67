// Command pagecraft runs and administers a pagecraft site.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

// version is set at build time via ldflags.
var version = "dev"

var rootCmd = &cobra.Command{
	Use:   "pagecraft",
	Short: "A blog CMS with section-based posts and pages",
	Long: `pagecraft serves a blog whose posts and pages are built from
reorderable sections, edited from the admin UI at /admin/.

Configuration is read from the environment (SITE_NAME, SITE_URL,
STORE_DRIVER, MONGO_URI, ADMIN_PASSWORD, ADMIN_SESSION_SECRET, ...).`,
	SilenceUsage: true,
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
