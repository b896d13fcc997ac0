package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/frahmantamala/paygw-chargebee/internal/audit"
	"github.com/frahmantamala/paygw-chargebee/internal/core/events"
)

var (
	eventsCmd = &cobra.Command{
		Use:   "events",
		Short: "Inspect recorded payment lifecycle events",
	}
	eventsListCmd = &cobra.Command{
		Use:   "list",
		Short: "List the most recent events",
		RunE:  runEventsList,
	}
	eventsFilter audit.ListFilter
	eventsKind   string
)

func init() {
	f := eventsListCmd.Flags()
	f.Int64Var(&eventsFilter.UserID, "user-id", 0, "only events for this user")
	f.StringVar(&eventsFilter.SessionID, "session-id", "", "only events for this checkout session")
	f.StringVar(&eventsKind, "kind", "", "only events of this kind")
	f.IntVar(&eventsFilter.Limit, "limit", 50, "maximum number of events")

	eventsCmd.AddCommand(eventsListCmd)
	rootCmd.AddCommand(eventsCmd)
}

func runEventsList(cmd *cobra.Command, _ []string) error {
	deps, err := initializeDependencies()
	if err != nil {
		return fmt.Errorf("failed to initialize dependencies: %w", err)
	}
	defer deps.Close()

	eventsFilter.Kind = events.Kind(eventsKind)
	list, err := deps.Audit.List(cmd.Context(), eventsFilter)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "OCCURRED\tKIND\tUSER\tITEM\tSESSION\tINVOICE\tREASON")
	for _, e := range list {
		fmt.Fprintf(w, "%s\t%s\t%d\t%s/%s/%d\t%s\t%s\t%s\n",
			e.OccurredAt.Format(time.RFC3339), e.Kind, e.UserID,
			e.Component, e.PaymentArea, e.ItemID, e.SessionID, e.Invoice, e.Reason)
	}
	return w.Flush()
}
