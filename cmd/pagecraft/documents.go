package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/eringen/pagecraft"
	"github.com/eringen/pagecraft/content"
	"github.com/eringen/pagecraft/store"
)

// openStore connects to the store configured in the environment. The admin
// credentials are not needed for offline commands.
func openStore(cmd *cobra.Command) (store.Store, error) {
	cfg, err := pagecraft.ConfigFromEnv()
	if err != nil {
		return nil, err
	}
	return pagecraft.OpenStore(cmd.Context(), cfg)
}

var seedCmd = &cobra.Command{
	Use:   "seed <file.yaml>",
	Short: "Load documents from a YAML fixture file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := os.Open(args[0])
		if err != nil {
			return err
		}
		defer f.Close()
		docs, err := pagecraft.ParseFixtures(f)
		if err != nil {
			return err
		}

		s, err := openStore(cmd)
		if err != nil {
			return err
		}
		defer s.Close()
		n, err := pagecraft.Seed(cmd.Context(), s, docs)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "seeded %d documents from %s\n", n, args[0])
		return nil
	},
}

var exportCmd = &cobra.Command{
	Use:   "export <post|page> <slug>",
	Short: "Print a document as JSON",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		t, err := content.ParseDocType(args[0])
		if err != nil {
			return err
		}
		s, err := openStore(cmd)
		if err != nil {
			return err
		}
		defer s.Close()
		doc, err := s.GetBySlug(cmd.Context(), t, args[1])
		if err != nil {
			return fmt.Errorf("%s %q: %w", t, args[1], err)
		}
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(doc)
	},
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored documents, drafts included",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openStore(cmd)
		if err != nil {
			return err
		}
		defer s.Close()
		docs, err := s.ListDocuments(cmd.Context(), store.Filter{})
		if err != nil {
			return err
		}

		t := table.NewWriter()
		t.SetOutputMirror(cmd.OutOrStdout())
		t.SetStyle(table.StyleLight)
		t.AppendHeader(table.Row{"Type", "Slug", "Title", "Date", "Published", "Sections"})
		for _, d := range docs {
			t.AppendRow(table.Row{d.Type, d.Slug, d.Title, d.Date, d.Published, len(d.Sections)})
		}
		t.Render()
		return nil
	},
}

var kindsCmd = &cobra.Command{
	Use:   "kinds",
	Short: "List the registered section kinds",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		t := table.NewWriter()
		t.SetOutputMirror(cmd.OutOrStdout())
		t.SetStyle(table.StyleLight)
		t.AppendHeader(table.Row{"Kind", "Label", "Description"})
		for _, spec := range content.Specs() {
			t.AppendRow(table.Row{spec.Kind, spec.Label, spec.Description})
		}
		t.Render()
		return nil
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the pagecraft version",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "pagecraft %s\n", version)
	},
}

func init() {
	rootCmd.AddCommand(seedCmd, exportCmd, listCmd, kindsCmd, versionCmd)
}
