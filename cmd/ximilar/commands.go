package main

import (
	"fmt"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"google.golang.org/api/iterator"

	"github.com/Sternrassler/ximilar-client/pkg/batch"
	"github.com/Sternrassler/ximilar-client/pkg/record"
)

func newWorkspacesCmd(s *session) *cobra.Command {
	return &cobra.Command{
		Use:   "workspaces",
		Short: "List the workspaces available to the credentials",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := s.client(cmd.Context())
			if err != nil {
				return err
			}

			workspaces, err := app.Workspaces(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to list workspaces: %w", err)
			}

			names := make([]string, 0, len(workspaces))
			for name := range workspaces {
				names = append(names, name)
			}
			sort.Strings(names)

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tID")
			for _, name := range names {
				fmt.Fprintf(w, "%s\t%s\n", name, workspaces[name])
			}
			return w.Flush()
		},
	}
}

func newAccessCmd(s *session) *cobra.Command {
	return &cobra.Command{
		Use:   "access <resource>",
		Short: "Check whether the credentials may use a resource",
		Long: `Check whether the credentials may use a resource.

Example:
  ximilar access recognition
  ximilar access --workspace Fashion detection`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := s.client(cmd.Context())
			if err != nil {
				return err
			}

			ok, err := app.IsResourceAccessible(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("failed to authorize: %w", err)
			}

			state := "accessible"
			if !ok {
				state = "not accessible"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", args[0], state)
			return nil
		},
	}
}

func newLabelsCmd(s *session) *cobra.Command {
	return &cobra.Command{
		Use:   "labels",
		Short: "List the recognition labels of the workspace",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := s.client(cmd.Context())
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME\tTYPE\tIMAGES")

			it := app.Recognition().Labels(cmd.Context())
			for {
				label, err := it.Next()
				if err == iterator.Done {
					break
				}
				if err != nil {
					return fmt.Errorf("failed to list labels: %w", err)
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%d\n", label.ID, label.Name, label.Type, label.ImagesCount)
			}
			return w.Flush()
		},
	}
}

func newClassifyCmd(s *session) *cobra.Command {
	var (
		taskID    string
		workers   int
		batchSize int
		quiet     bool
	)

	cmd := &cobra.Command{
		Use:   "classify <file|url>...",
		Short: "Classify images with a recognition task",
		Long: `Classify local images or image URLs with a recognition task. One JSON
reply per batch is written to stdout, in input order.

Example:
  ximilar classify --task 0a8c8186 photo.jpg https://example.com/cat.png`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := s.client(cmd.Context())
			if err != nil {
				return err
			}

			cfg := batch.Config{
				MaxWorkers: s.cfg.BatchWorkers,
				BatchSize:  s.cfg.BatchSize,
				Output:     !quiet,
				Progress:   cmd.ErrOrStderr(),
			}
			if cmd.Flags().Changed("workers") {
				cfg.MaxWorkers = workers
			}
			if cmd.Flags().Changed("batch-size") {
				cfg.BatchSize = batchSize
			}

			replies, err := app.Recognition().Classify(cmd.Context(), taskID, recordsFromArgs(args), cfg)
			for _, reply := range replies {
				fmt.Fprintln(cmd.OutOrStdout(), strings.TrimSpace(string(reply)))
			}
			if err != nil {
				return fmt.Errorf("failed to classify: %w", err)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&taskID, "task", "", "Recognition task id")
	cmd.Flags().IntVar(&workers, "workers", 3, "Parallel requests (overrides BATCH_WORKERS)")
	cmd.Flags().IntVar(&batchSize, "batch-size", 1, "Records per request (overrides BATCH_SIZE)")
	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "Hide the progress bar")
	_ = cmd.MarkFlagRequired("task")

	return cmd
}

// recordsFromArgs treats http(s) arguments as URLs and everything else as files.
func recordsFromArgs(args []string) []record.Record {
	records := make([]record.Record, 0, len(args))
	for _, arg := range args {
		if strings.HasPrefix(arg, "http://") || strings.HasPrefix(arg, "https://") {
			records = append(records, record.Record{Source: record.URL{Location: arg}})
			continue
		}
		records = append(records, record.Record{Source: record.File{Path: arg}})
	}
	return records
}
