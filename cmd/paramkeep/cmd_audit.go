package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/sethvargo/go-retry"
	"github.com/spf13/cobra"

	"github.com/paramkeep/paramkeep/client"
	"github.com/paramkeep/paramkeep/internal/models"
)

const noAuditEntries = "No audit log entries found"

var auditHeaders = []string{"Time", "Object Name", "Type", "Action", "User"}

func newAuditCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "audit-logs",
		Aliases: []string{"audit", "aud", "au", "log", "logs"},
		Short:   "Query the audit trail",
	}
	cmd.AddCommand(auditListCmd())
	cmd.AddCommand(auditSummaryCmd())
	cmd.AddCommand(auditGetCmd())
	cmd.AddCommand(auditTailCmd())
	cmd.AddCommand(auditPurgeCmd())
	cmd.AddCommand(auditRecordCmd())
	return cmd
}

// auditListFlags holds the ls filter flags as typed.
type auditListFlags struct {
	action, objectType, name string
	user, project, env, param string
	before, after             string
	max, pageSize             int
}

func (f auditListFlags) options() *client.AuditQueryOptions {
	maxEntries := f.max
	return &client.AuditQueryOptions{
		Type:        f.objectType,
		Action:      f.action,
		Name:        f.name,
		User:        f.user,
		Project:     f.project,
		Environment: f.env,
		Parameter:   f.param,
		Before:      f.before,
		After:       f.after,
		MaxEntries:  &maxEntries,
		PageSize:    f.pageSize,
	}
}

// constraints describes the type, name and action filters for the empty
// result message.
func (f auditListFlags) constraints() string {
	var parts []string
	if f.objectType != "" {
		parts = append(parts, "type=="+string(models.ResolveObjectType(f.objectType)))
	}
	if f.name != "" {
		parts = append(parts, fmt.Sprintf("name-contains '%s'", f.name))
	}
	if f.action != "" {
		parts = append(parts, "action=="+f.action)
	}
	return strings.Join(parts, ", ")
}

func auditListCmd() *cobra.Command {
	var f auditListFlags
	cmd := &cobra.Command{
		Use:     "ls",
		Aliases: []string{"list"},
		Short:   "List audit log entries, newest first",
		Args:    cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			if err := runAuditList(cmd.Context(), cmd.OutOrStdout(), cmd.ErrOrStderr(), apiClient, f); err != nil {
				fatal("audit query", err)
			}
		},
	}
	cmd.Flags().StringVarP(&f.action, "action", "a", "", "Only show entries with this action (create, update, delete)")
	cmd.Flags().StringVarP(&f.objectType, "type", "t", "", "Only show entries for this object type")
	cmd.Flags().StringVarP(&f.name, "name", "n", "", "Only show entries whose object name contains this text")
	cmd.Flags().IntVarP(&f.max, "max", "m", 50, "Maximum entries to show (0 for no limit)")
	cmd.Flags().StringVar(&f.before, "before", "", "Only show entries before this time")
	cmd.Flags().StringVar(&f.after, "after", "", "Only show entries after this time")
	cmd.Flags().StringVarP(&f.user, "user", "u", "", "Only show entries made by this user")
	cmd.Flags().StringVar(&f.project, "project", "", "Only show entries for this project")
	cmd.Flags().StringVar(&f.env, "env", "", "Only show entries for this environment")
	cmd.Flags().StringVar(&f.param, "parameter", "", "Only show entries for this parameter (requires --project)")
	cmd.Flags().IntVar(&f.pageSize, "page-size", 0, "Entries fetched per page on the server")
	return cmd
}

func runAuditList(ctx context.Context, out, errOut io.Writer, c *client.Client, f auditListFlags) error {
	if f.max < 0 {
		return fmt.Errorf("--max must not be negative")
	}
	res, err := c.Audit.List(ctx, f.options())
	if err != nil {
		return err
	}

	for _, w := range res.Warnings {
		fmt.Fprintln(errOut, w)
	}

	if len(res.Entries) == 0 {
		if cons := f.constraints(); cons != "" {
			fmt.Fprintf(out, "%s matching %s\n", noAuditEntries, cons)
		} else {
			fmt.Fprintln(out, noAuditEntries)
		}
		return nil
	}

	t := newTable("audit-logs", auditHeaders...)
	for _, e := range res.Entries {
		t.add(strconv.FormatInt(e.ID, 10), formatTime(e.Timestamp), e.ObjectName, e.ObjectType, e.Action, e.User)
	}
	return t.render(out, flagFmt)
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func auditSummaryCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "summary",
		Aliases: []string{"sum"},
		Short:   "Show the audit log size and retention policy",
		Args:    cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			if err := runAuditSummary(cmd.Context(), cmd.OutOrStdout(), apiClient); err != nil {
				fatal("audit summary", err)
			}
		},
	}
}

func runAuditSummary(ctx context.Context, out io.Writer, c *client.Client) error {
	sum, err := c.Audit.Summary(ctx)
	if err != nil {
		return err
	}

	switch flagFmt {
	case "json":
		return formatJSON(out, sum)
	case "yaml":
		return formatYAML(out, sum)
	}

	earliest := "none"
	if sum.Earliest != nil {
		earliest = formatTime(*sum.Earliest)
	}
	fmt.Fprintf(out, "Record count: %d\n", sum.TotalRecords)
	fmt.Fprintf(out, "Earliest record: %s\n", earliest)
	fmt.Fprintln(out, "Policy:")
	fmt.Fprintf(out, "  Maximum records: %d\n", sum.MaxRecords)
	fmt.Fprintf(out, "  Maximum days: %d\n", sum.MaxDays)
	return nil
}

func auditGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <id>",
		Short: "Show one audit log entry",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil || id <= 0 {
				fatal("parse id", fmt.Errorf("%q is not a valid entry id", args[0]))
			}
			e, err := apiClient.Audit.Get(cmd.Context(), id)
			if err != nil {
				fatal("get audit entry", err)
			}
			if err := output(cmd.OutOrStdout(), e, args[0]); err != nil {
				fatal("output", err)
			}
		},
	}
}

func auditTailCmd() *cobra.Command {
	var f client.StreamFilter
	var retries uint64
	cmd := &cobra.Command{
		Use:   "tail",
		Short: "Follow new audit log entries as they are committed",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			if err := runAuditTail(ctx, cmd.OutOrStdout(), cmd.ErrOrStderr(), apiClient, f, retries); err != nil {
				fatal("audit tail", err)
			}
		},
	}
	cmd.Flags().StringVarP(&f.Type, "type", "t", "", "Only show entries for this object type")
	cmd.Flags().StringVarP(&f.Action, "action", "a", "", "Only show entries with this action")
	cmd.Flags().StringVarP(&f.Name, "name", "n", "", "Only show entries whose object name contains this text")
	cmd.Flags().Uint64Var(&retries, "reconnect", 5, "Reconnect attempts after the server closes the stream")
	return cmd
}

// runAuditTail prints stream entries until ctx is cancelled. A closed stream
// or dropped connection is retried with exponential backoff; API errors such
// as a rejected key are not.
func runAuditTail(ctx context.Context, out, errOut io.Writer, c *client.Client, f client.StreamFilter, retries uint64) error {
	b := retry.WithMaxRetries(retries, retry.NewExponential(500*time.Millisecond))
	b = retry.WithCappedDuration(10*time.Second, b)

	return retry.Do(ctx, b, func(ctx context.Context) error {
		err := c.Audit.Tail(ctx, f, func(ev client.StreamEvent) error {
			return printStreamEvent(out, ev)
		})
		var apiErr *client.APIError
		switch {
		case err == nil:
			return nil
		case errors.As(err, &apiErr):
			return err
		default:
			fmt.Fprintf(errOut, "stream interrupted: %v; reconnecting\n", err)
			return retry.RetryableError(err)
		}
	})
}

func printStreamEvent(out io.Writer, ev client.StreamEvent) error {
	if ev.Type != "audit.entry" {
		return nil
	}
	var e client.StreamEntry
	if err := json.Unmarshal(ev.Data, &e); err != nil {
		return fmt.Errorf("decode stream entry: %w", err)
	}

	switch flagFmt {
	case "json":
		return json.NewEncoder(out).Encode(e)
	case "quiet":
		fmt.Fprintln(out, e.ID)
	default:
		fmt.Fprintf(out, "%s  %s  %s  %s  %s\n", formatTime(e.Timestamp), e.ObjectName, e.ObjectType, e.Action, e.User)
	}
	return nil
}

func auditPurgeCmd() *cobra.Command {
	var maxDays, maxRecords int
	cmd := &cobra.Command{
		Use:   "purge",
		Short: "Apply the retention policy now",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			opts := &client.PurgeOptions{}
			if cmd.Flags().Changed("max-days") {
				opts.MaxDays = &maxDays
			}
			if cmd.Flags().Changed("max-records") {
				opts.MaxRecords = &maxRecords
			}
			res, err := apiClient.Audit.Purge(cmd.Context(), opts)
			if err != nil {
				fatal("audit purge", err)
			}
			out := cmd.OutOrStdout()
			if flagFmt == "table" {
				fmt.Fprintf(out, "Removed %d expired and %d overflow entries (policy: %d records, %d days)\n",
					res.ExpiredDeleted, res.OverflowDeleted, res.MaxRecords, res.MaxDays)
				return
			}
			if err := output(out, res, strconv.Itoa(res.ExpiredDeleted+res.OverflowDeleted)); err != nil {
				fatal("output", err)
			}
		},
	}
	cmd.Flags().IntVar(&maxDays, "max-days", 0, "Delete entries older than N days (0 disables the age limit)")
	cmd.Flags().IntVar(&maxRecords, "max-records", 0, "Keep at most N entries (0 disables the count limit)")
	return cmd
}

func auditRecordCmd() *cobra.Command {
	var e client.NewAuditEntry
	var detailJSON string
	cmd := &cobra.Command{
		Use:   "record",
		Short: "Record an audit entry on behalf of an external subsystem",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			if detailJSON != "" {
				if err := json.Unmarshal([]byte(detailJSON), &e.Detail); err != nil {
					fatal("parse detail", err)
				}
			}
			ids, err := apiClient.Audit.Record(cmd.Context(), []client.NewAuditEntry{e})
			if err != nil {
				fatal("record audit entry", err)
			}
			for _, id := range ids {
				fmt.Fprintln(cmd.OutOrStdout(), id)
			}
		},
	}
	cmd.Flags().StringVarP(&e.ObjectType, "type", "t", "", "Object type (e.g. Push, Pull, Task)")
	cmd.Flags().StringVarP(&e.ObjectName, "name", "n", "", "Object name")
	cmd.Flags().StringVarP(&e.Action, "action", "a", "create", "Action")
	cmd.Flags().StringVar(&e.EventID, "event-id", "", "Idempotency key (UUID)")
	cmd.Flags().StringVar(&detailJSON, "detail", "", "Detail as JSON object")
	_ = cmd.MarkFlagRequired("type")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}
