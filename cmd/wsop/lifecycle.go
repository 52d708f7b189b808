package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/workshopops/workshop/internal/lifecycle"
	"github.com/workshopops/workshop/internal/store"
	"github.com/workshopops/workshop/internal/transition"
	"github.com/workshopops/workshop/internal/ui"
)

var projectCmd = &cobra.Command{
	Use:     "project <id> <event>",
	GroupID: "lifecycle",
	Short:   "Send a lifecycle event to a project",
	Long: `Send a lifecycle event to a project.

Events: START, PAUSE, RESUME, COMPLETE, REOPEN, ARCHIVE, RESTORE`,
	Args: cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		runTransition(cmd.Context(), args[0], func(svc *transition.Service, ctx context.Context, id int64) (transition.Change, error) {
			return svc.ApplyProject(ctx, id, lifecycle.ProjectEvent(eventName(args[1])))
		})
	},
}

var taskCmd = &cobra.Command{
	Use:     "task <id> <event>",
	GroupID: "lifecycle",
	Short:   "Send a lifecycle event to a project task",
	Long: `Send a lifecycle event to a project task.

Events: START, COMPLETE, BLOCK, UNBLOCK, RESET, REOPEN
BLOCK takes an optional --reason.`,
	Args: cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		reason, _ := cmd.Flags().GetString("reason")
		event := lifecycle.TaskEvent{Type: lifecycle.TaskEventType(eventName(args[1]))}
		if event.Type == lifecycle.TaskBlock {
			event = lifecycle.Block(reason)
		} else if reason != "" {
			fmt.Fprintf(os.Stderr, "%s --reason is only used with BLOCK\n", ui.RenderWarn("⚠"))
		}
		runTransition(cmd.Context(), args[0], func(svc *transition.Service, ctx context.Context, id int64) (transition.Change, error) {
			return svc.ApplyTask(ctx, id, event)
		})
	},
}

var purchaseCmd = &cobra.Command{
	Use:     "purchase <id> <event>",
	GroupID: "lifecycle",
	Short:   "Send a lifecycle event to a purchase item",
	Long: `Send a lifecycle event to a purchase item.

Events: CONSIDER, APPROVE, ORDER, RECEIVE, RETURN, REORDER, REMOVE, RESTORE`,
	Args: cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		runTransition(cmd.Context(), args[0], func(svc *transition.Service, ctx context.Context, id int64) (transition.Change, error) {
			return svc.ApplyPurchase(ctx, id, lifecycle.PurchaseEvent(eventName(args[1])))
		})
	},
}

func eventName(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

func runTransition(ctx context.Context, rawID string, apply func(*transition.Service, context.Context, int64) (transition.Change, error)) {
	id, err := parseID(rawID)
	if err != nil {
		fatalf("%v", err)
	}

	db := openDB(ctx)
	defer db.Close()

	svc := transition.New(db, nil, sink.Component("lifecycle"))
	change, err := apply(svc, ctx, id)
	switch {
	case store.IsNotFound(err), errors.Is(err, lifecycle.ErrInvalidTransition):
		fatalf("%v", err)
	case err != nil:
		fatalf("transition failed: %v", err)
	}

	from, to := statusLabels(change)
	fmt.Printf("%s %s %d: %s → %s\n", ui.RenderPass("✓"), change.Table.SimpleName(), change.ID, from, to)
}

// statusLabels renders the before and after states in their lifecycle colors.
func statusLabels(c transition.Change) (string, string) {
	render := func(s string) string { return s }
	switch c.Table {
	case store.Projects:
		render = func(s string) string {
			st, _ := lifecycle.ParseProjectStatus(s)
			return ui.RenderStatus(st.Label(), st.Color())
		}
	case store.ProjectTasks:
		render = func(s string) string {
			st, _ := lifecycle.ParseTaskStatus(s)
			return ui.RenderStatus(st.Label(), st.Color())
		}
	case store.PurchaseItems:
		render = func(s string) string {
			st, _ := lifecycle.ParsePurchaseStatus(s)
			return ui.RenderStatus(st.Label(), st.Color())
		}
	}
	return render(c.From), render(c.To)
}

func init() {
	taskCmd.Flags().String("reason", "", "Why the task is blocked (BLOCK only)")

	rootCmd.AddCommand(projectCmd, taskCmd, purchaseCmd)
}
