package cli

import (
	"encoding/json"
	"fmt"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/aponysus/smartretry/store"
)

func newFailuresCmd(root *rootFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "failures",
		Short: "Inspect and manage persisted failure records",
	}

	// withEnv wraps a subcommand body with config loading and store cleanup.
	withEnv := func(run func(cmd *cobra.Command, e *env, args []string) error) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, root)
			if err != nil {
				return err
			}
			e, err := openEnv(commandContext(cmd), cmd, cfg)
			if err != nil {
				return err
			}
			defer func() {
				_ = e.Close()
			}()
			return run(cmd, e, args)
		}
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "List failure records, oldest first",
			Args:  cobra.NoArgs,
			RunE:  withEnv(runFailuresList),
		},
		&cobra.Command{
			Use:   "show <id>",
			Short: "Print one failure record as JSON",
			Args:  cobra.ExactArgs(1),
			RunE:  withEnv(runFailuresShow),
		},
		&cobra.Command{
			Use:   "remove <id>",
			Short: "Delete one failure record",
			Args:  cobra.ExactArgs(1),
			RunE:  withEnv(runFailuresRemove),
		},
		&cobra.Command{
			Use:   "clear",
			Short: "Delete every failure record",
			Args:  cobra.NoArgs,
			RunE:  withEnv(runFailuresClear),
		},
		&cobra.Command{
			Use:   "count",
			Short: "Print the number of failure records",
			Args:  cobra.NoArgs,
			RunE:  withEnv(runFailuresCount),
		},
	)
	return cmd
}

func runFailuresList(cmd *cobra.Command, e *env, _ []string) error {
	recs, err := e.exec.FailedRequests(commandContext(cmd))
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 3, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tTIMESTAMP\tMETHOD\tURL\tSTATUS\tATTEMPTS\tERROR")
	for _, r := range recs {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%d\t%s\n",
			r.ID, r.Timestamp.UTC().Format(time.RFC3339), r.Method, r.URL, statusColumn(r), r.Attempts, r.Error)
	}
	return w.Flush()
}

func statusColumn(r store.FailureRecord) string {
	if r.StatusCode == nil {
		return "-"
	}
	return strconv.Itoa(*r.StatusCode)
}

func runFailuresShow(cmd *cobra.Command, e *env, args []string) error {
	rec, ok, err := e.exec.FailedRequest(commandContext(cmd), args[0])
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("no failure record with id %s", args[0])
	}

	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintln(cmd.OutOrStdout(), string(data))
	return nil
}

func runFailuresRemove(cmd *cobra.Command, e *env, args []string) error {
	removed, err := e.exec.RemoveFailedRequest(commandContext(cmd), args[0])
	if err != nil {
		return err
	}
	if !removed {
		return fmt.Errorf("no failure record with id %s", args[0])
	}
	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "removed %s\n", args[0])
	return nil
}

func runFailuresClear(cmd *cobra.Command, e *env, _ []string) error {
	if err := e.exec.ClearFailedRequests(commandContext(cmd)); err != nil {
		return err
	}
	if path := e.exec.LogFilePath(); path != "" {
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "cleared %s\n", path)
		return nil
	}
	_, _ = fmt.Fprintln(cmd.OutOrStdout(), "cleared")
	return nil
}

func runFailuresCount(cmd *cobra.Command, e *env, _ []string) error {
	n, err := e.exec.FailedRequestCount(commandContext(cmd))
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintln(cmd.OutOrStdout(), n)
	return nil
}
