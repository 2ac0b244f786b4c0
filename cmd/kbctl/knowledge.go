package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/utsbot/uts-chatbot-go/internal/config"
	"github.com/utsbot/uts-chatbot-go/internal/directory"
	"github.com/utsbot/uts-chatbot-go/internal/knowledge"
	"github.com/utsbot/uts-chatbot-go/internal/rag"
	"github.com/utsbot/uts-chatbot-go/internal/storage"
	"github.com/utsbot/uts-chatbot-go/internal/stringutil"
)

func newImportCmd(c *cli) *cobra.Command {
	var dryRun bool
	cmd := &cobra.Command{
		Use:   "import <file.yaml>",
		Short: "Upsert knowledge entries from a YAML file",
		Long: `Import validates every entry of the file before writing anything, then
upserts all entries in one transaction. Entries without an id get a UUID;
entries whose id already exists are replaced.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer func() { _ = f.Close() }()

			entries, err := knowledge.DecodeFile(f)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if dryRun {
				printLine(out, "%d entries are valid (dry run, nothing written)", len(entries))
				return nil
			}

			ctx := cmd.Context()
			db, err := c.openDB(ctx)
			if err != nil {
				return err
			}
			rows := make([]storage.KnowledgeEntry, len(entries))
			for i, e := range entries {
				rows[i] = knowledge.ToRow(e)
			}
			if err := db.SaveKnowledgeBatch(ctx, rows); err != nil {
				return err
			}
			total, err := db.CountKnowledge(ctx)
			if err != nil {
				return err
			}
			printLine(out, "imported %d entries (%d total)", len(entries), total)
			return nil
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "validate the file without writing")
	return cmd
}

func newExportCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "export [file.yaml]",
		Short: "Write the knowledge base as YAML (stdout when no file is given)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			db, err := c.openDB(ctx)
			if err != nil {
				return err
			}
			rows, err := db.ListKnowledge(ctx)
			if err != nil {
				return err
			}
			entries := make([]knowledge.Entry, len(rows))
			for i, row := range rows {
				entries[i] = knowledge.FromRow(row)
			}

			if len(args) == 0 {
				return knowledge.EncodeFile(cmd.OutOrStdout(), entries)
			}
			f, err := os.OpenFile(args[0], os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o640)
			if err != nil {
				return err
			}
			if err := knowledge.EncodeFile(f, entries); err != nil {
				_ = f.Close()
				return err
			}
			if err := f.Close(); err != nil {
				return err
			}
			printLine(cmd.ErrOrStderr(), "exported %d entries to %s", len(entries), args[0])
			return nil
		},
	}
}

func newSearchCmd(c *cli) *cobra.Command {
	var (
		userType string
		limit    int
	)
	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Run a retrieval query against the stored knowledge base",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ut, err := knowledge.ParseUserType(userType)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			res, err := c.search(ctx, rag.Query{Text: args[0], UserType: ut, K: limit})
			if err != nil {
				return err
			}
			writeResults(cmd.OutOrStdout(), args[0], res)
			return nil
		},
	}
	cmd.Flags().StringVarP(&userType, "tipo-usuario", "u", string(knowledge.Todos), "requester user type")
	cmd.Flags().IntVarP(&limit, "limit", "k", config.DefaultTopK, "maximum results")
	return cmd
}

func newShowCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Print one stored entry as YAML",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			db, err := c.openDB(ctx)
			if err != nil {
				return err
			}
			row, err := db.GetKnowledge(ctx, args[0])
			if err != nil {
				return err
			}
			return knowledge.EncodeFile(cmd.OutOrStdout(), []knowledge.Entry{knowledge.FromRow(*row)})
		},
	}
}

func newDeleteCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>...",
		Short: "Delete stored entries by id",
		Long: `Delete removes entries from the database. A running server keeps serving
them until its next knowledge reload.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			db, err := c.openDB(ctx)
			if err != nil {
				return err
			}
			for _, id := range args {
				if err := db.DeleteKnowledge(ctx, id); err != nil {
					return err
				}
				printLine(cmd.OutOrStdout(), "deleted %s", id)
			}
			return nil
		},
	}
}

func newFindCmd(c *cli) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "find <term>",
		Short: "List entries whose pregunta or keywords contain term literally",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			db, err := c.openDB(ctx)
			if err != nil {
				return err
			}
			rows, err := db.SearchKnowledge(ctx, args[0], limit)
			if err != nil {
				return err
			}
			if len(rows) == 0 {
				printLine(cmd.OutOrStdout(), "no entries")
				return nil
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			_, _ = fmt.Fprintln(tw, "ID\tTIPO\tPREGUNTA")
			for _, row := range rows {
				_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\n", row.ID, row.TipoUsuario, stringutil.Truncate(row.Pregunta, 60))
			}
			return tw.Flush()
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "k", config.MaxAdminSearchResults, "maximum results")
	return cmd
}

// search builds a throwaway index with the configured threshold and runs q.
func (c *cli) search(ctx context.Context, q rag.Query) (rag.Result, error) {
	db, err := c.openDB(ctx)
	if err != nil {
		return rag.Result{}, err
	}
	cfg := c.cfg
	domain := cfg.Chat.DirectoryEmailDomain
	if domain == "" {
		domain = config.DefaultDirectoryEmailDomain
	}
	threshold := cfg.Chat.FuzzyThreshold
	if threshold <= 0 {
		threshold = config.DefaultFuzzyThreshold
	}

	loader := knowledge.NewRepositoryLoader(db, knowledge.NewBuilder(directory.NewParser(domain)), c.log)
	retriever := rag.NewRetriever(loader, c.log, rag.WithThreshold(threshold))
	if _, err := retriever.Reload(ctx); err != nil {
		return rag.Result{}, err
	}
	return retriever.RetrieveTopK(ctx, q)
}

func writeResults(w io.Writer, query string, res rag.Result) {
	printLine(w, "query: %q (normalized %q), %d matches", query, res.Meta.NormalizedQuery, res.Meta.TotalMatches)
	if len(res.Meta.FechasDetectadas) > 0 {
		printLine(w, "dates: %v", res.Meta.FechasDetectadas)
	}
	if len(res.Chunks) == 0 {
		printLine(w, "no results")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "SCORE\tID\tKIND\tTIPO\tTITULO")
	for _, ch := range res.Chunks {
		_, _ = fmt.Fprintf(tw, "%.3f\t%s\t%s\t%s\t%s\n",
			ch.Score, ch.ID, ch.Kind, ch.TipoUsuario, stringutil.Truncate(ch.Titulo, 60))
	}
	_ = tw.Flush()
}
