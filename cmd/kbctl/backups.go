package main

import (
	"context"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/utsbot/uts-chatbot-go/internal/config"
)

func newBackupCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "backup",
		Short: "Snapshot the database and upload it to R2",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), config.BackupRun)
			defer cancel()

			mgr, err := c.backups(ctx)
			if err != nil {
				return err
			}
			res, err := mgr.Run(ctx)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			printLine(out, "uploaded %s (%d bytes) in %s", res.Key, res.Size, res.Duration.Round(time.Millisecond))
			for _, key := range res.Pruned {
				printLine(out, "pruned %s", key)
			}
			return nil
		},
	}
}

func newBackupsCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "backups",
		Short: "List stored backups, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			mgr, err := c.backups(ctx)
			if err != nil {
				return err
			}
			objects, err := mgr.List(ctx)
			if err != nil {
				return err
			}
			if len(objects) == 0 {
				printLine(cmd.OutOrStdout(), "no backups")
				return nil
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			_, _ = fmt.Fprintln(tw, "KEY\tSIZE\tLAST MODIFIED")
			for _, o := range objects {
				_, _ = fmt.Fprintf(tw, "%s\t%d\t%s\n", o.Key, o.Size, o.LastModified.UTC().Format(time.RFC3339))
			}
			return tw.Flush()
		},
	}
}

func newRestoreCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "restore <key|latest> <out.db>",
		Short: "Download a backup and decompress it to a new database file",
		Long: `Restore writes the backup to <out.db>, which must not exist. Stop the
server and move the file over UTS_DATA_DIR/knowledge.db to bring it live.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), config.BackupRun)
			defer cancel()

			mgr, err := c.backups(ctx)
			if err != nil {
				return err
			}
			key := args[0]
			if key == "latest" {
				key = ""
			}
			restored, err := mgr.Restore(ctx, key, args[1])
			if err != nil {
				return err
			}
			printLine(cmd.OutOrStdout(), "restored %s to %s", restored, args[1])
			return nil
		},
	}
}
