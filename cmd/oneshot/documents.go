package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/ShayCichocki/oneshot/internal/state"
)

var (
	documentsLimit        int
	documentsConversation string
)

var documentsCmd = &cobra.Command{
	Use:     "documents [document_id]",
	Aliases: []string{"docs"},
	Short:   "List generated documents or print one",
	Args:    cobra.MaximumNArgs(1),
	RunE:    runDocuments,
}

func init() {
	documentsCmd.Flags().IntVarP(&documentsLimit, "limit", "n", 20, "Maximum number of documents to list")
	documentsCmd.Flags().StringVar(&documentsConversation, "conversation", "", "Only documents from this conversation")
}

func runDocuments(cmd *cobra.Command, args []string) error {
	cfg, _, err := loadConfig()
	if err != nil {
		return err
	}
	db, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	if len(args) == 1 {
		doc, err := db.GetDocument(ctx, args[0])
		if err != nil {
			return err
		}
		if doc == nil {
			return fmt.Errorf("document %s not found", args[0])
		}
		fmt.Fprintf(out, "# %s\n\n%s\n", doc.Title, doc.Content)
		return nil
	}

	docs, err := db.ListDocuments(ctx, documentsConversation, documentsLimit)
	if err != nil {
		return err
	}
	if len(docs) == 0 {
		fmt.Fprintln(out, "No documents generated yet.")
		return nil
	}
	printDocuments(out, docs)
	return nil
}

// printDocuments writes documents as an aligned table.
func printDocuments(w io.Writer, docs []state.Document) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTYPE\tCREATED\tTITLE")
	for _, d := range docs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n",
			d.ID, d.DocType, d.CreatedAt.Local().Format("2006-01-02 15:04:05"), d.Title)
	}
	tw.Flush()
}
