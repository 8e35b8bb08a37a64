package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/bull/docchat/internal/vectorindex"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List ingested documents",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		_, a, err := open(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		docs := a.Service.Documents()
		if len(docs) == 0 {
			color.Yellow("No documents\n")
			return nil
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tFILENAME\tCREATED")
		for _, d := range docs {
			fmt.Fprintf(w, "%s\t%s\t%s\n", d.ID, d.OriginalName, d.CreatedAt.Local().Format("2006-01-02 15:04"))
		}
		return w.Flush()
	},
}

var deleteCmd = &cobra.Command{
	Use:   "delete <document-id>",
	Short: "Delete a document, its collection and its archived upload",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		_, a, err := open(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.Service.Delete(cmd.Context(), args[0]); err != nil {
			return err
		}
		color.Green("✓ Deleted %s\n", args[0])
		return nil
	},
}

var collectionsCmd = &cobra.Command{
	Use:   "collections",
	Short: "Show the vector collection and unit count of every document",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, a, err := open(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.Index.Health(cmd.Context()); err != nil {
			return fmt.Errorf("vector store health check failed: %w", err)
		}
		fmt.Printf("Vector store: %s\n\n", cfg.Qdrant.Store)

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "COLLECTION\tFILENAME\tUNITS")
		for _, d := range a.Service.Documents() {
			count, err := a.Index.Count(cmd.Context(), d.ID)
			if err != nil {
				return err
			}
			fmt.Fprintf(w, "%s\t%s\t%d\n", vectorindex.CollectionName(d.ID), d.OriginalName, count)
		}
		return w.Flush()
	},
}
