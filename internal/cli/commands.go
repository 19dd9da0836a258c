package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"shelf/api/internal/client"
	"shelf/api/internal/pushchan"
	"shelf/api/internal/wire"
)

// NewListCommand creates the list command.
func NewListCommand(opts *RootOptions) *cobra.Command {
	var category, query string

	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List bookmarks in display order",
		Example: `  shelfctl ls --category reading
  shelfctl ls --query golang --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := opts.output(cmd)
			filter := wire.Filter{Query: strings.TrimSpace(query), Category: opts.category(cmd, category)}
			session, err := opts.openSession(cmd.Context(), out, filter, false, nil)
			if err != nil {
				return err
			}
			defer session.Close()

			records := session.Records()
			return out.Success(records, func(w io.Writer) { printRecords(w, records) })
		},
	}

	cmd.Flags().StringVarP(&category, "category", "c", "", "only this category")
	cmd.Flags().StringVarP(&query, "query", "q", "", "full-text search instead of listing")
	return cmd
}

// NewWatchCommand creates the watch command.
func NewWatchCommand(opts *RootOptions) *cobra.Command {
	var category string

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Follow the collection as other viewers change it",
		Long: `Follow the collection as other viewers change it.

The list is reprinted after every applied change. If the live connection
drops, watch exits; it does not reconnect.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := opts.output(cmd)
			render := func(records []wire.Record) {
				if out.JSON() {
					_ = out.Success(records, nil)
					return
				}
				fmt.Fprintf(out.Writer, "--- %d bookmarks\n", len(records))
				printRecords(out.Writer, records)
			}

			filter := wire.Filter{Category: opts.category(cmd, category)}
			session, err := opts.openSession(cmd.Context(), out, filter, true, render)
			if err != nil {
				return err
			}
			defer session.Close()

			return watchUntilClosed(cmd.Context(), out, session.Push())
		},
	}

	cmd.Flags().StringVarP(&category, "category", "c", "", "only this category")
	return cmd
}

func watchUntilClosed(ctx context.Context, out *OutputFormatter, push *pushchan.Reconciler) error {
	for {
		changed := push.Changed()
		state := push.State()
		out.VerboseLog("push channel %s", state)
		if state == pushchan.Closed {
			applied, skipped := push.Counts()
			out.VerboseLog("applied %d events, skipped %d", applied, skipped)
			if ctx.Err() != nil {
				return nil
			}
			return NewExitError(ExitCommandError, "live connection closed")
		}
		select {
		case <-ctx.Done():
			return nil
		case <-changed:
		}
	}
}

// NewMoveCommand creates the move command.
func NewMoveCommand(opts *RootOptions) *cobra.Command {
	var category string

	cmd := &cobra.Command{
		Use:   "move <from> <to>",
		Short: "Move the bookmark at one list index to another",
		Long: `Move the bookmark at one list index to another.

Indexes are the zero-based positions printed by "shelfctl ls" for the same
category. If the server rejects the move, the list is refetched and shown.`,
		Example:       `  shelfctl move 2 0 --category reading`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := opts.output(cmd)
			from, err := parseIndex(args[0])
			if err != nil {
				return err
			}
			to, err := parseIndex(args[1])
			if err != nil {
				return err
			}

			filter := wire.Filter{Category: opts.category(cmd, category)}
			session, err := opts.openSession(cmd.Context(), out, filter, false, nil)
			if err != nil {
				return err
			}
			defer session.Close()

			pending, ok := session.Move(cmd.Context(), from, to)
			if !ok {
				return NewExitError(ExitCommandError, fmt.Sprintf("nothing to move from %d to %d in a list of %d", from, to, len(session.Records())))
			}
			out.VerboseLog("moving #%d to position %g", pending.Request.BookmarkID, pending.Request.NewPosition)
			if _, err := pending.Wait(cmd.Context()); err != nil {
				records := session.Records()
				if !out.JSON() {
					printRecords(out.errWriter(), records)
				}
				return out.Fail(err)
			}

			records := session.Records()
			return out.Success(records, func(w io.Writer) { printRecords(w, records) })
		},
	}

	cmd.Flags().StringVarP(&category, "category", "c", "", "list the indexes refer to")
	return cmd
}

// NewAddCommand creates the add command.
func NewAddCommand(opts *RootOptions) *cobra.Command {
	req := wire.CreateRequest{}

	cmd := &cobra.Command{
		Use:   "add <url>",
		Short: "Add a bookmark at the end of its category",
		Long: `Add a bookmark at the end of its category.

A missing title or category is suggested by the server from the page.`,
		Example:       `  shelfctl add https://go.dev/doc --tags go,docs`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := opts.output(cmd)
			req.URL = args[0]
			if !cmd.Flags().Changed("category") {
				req.Category = opts.profile.Category
			}

			session, err := opts.openSession(cmd.Context(), out, wire.Filter{Category: req.Category}, false, nil)
			if err != nil {
				return err
			}
			defer session.Close()

			record, err := session.Create(cmd.Context(), req)
			if err != nil {
				return out.Fail(err)
			}
			return out.Success(record, func(w io.Writer) {
				fmt.Fprintf(w, "added #%d %q at position %g\n", record.ID, record.Title, record.Position)
			})
		},
	}

	cmd.Flags().StringVarP(&req.Title, "title", "t", "", "title (suggested when empty)")
	cmd.Flags().StringVarP(&req.Description, "description", "d", "", "description")
	cmd.Flags().StringVarP(&req.Category, "category", "c", "", "category (suggested when empty)")
	cmd.Flags().StringSliceVar(&req.Tags, "tags", nil, "comma-separated tags")
	return cmd
}

// NewRemoveCommand creates the rm command.
func NewRemoveCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "rm <id>",
		Aliases:       []string{"delete"},
		Short:         "Delete a bookmark by id",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := opts.output(cmd)
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil || id <= 0 {
				return NewExitError(ExitCommandError, fmt.Sprintf("invalid bookmark id %q", args[0]))
			}

			session, err := opts.openSession(cmd.Context(), out, wire.Filter{}, false, nil)
			if err != nil {
				return err
			}
			defer session.Close()

			if err := session.Delete(cmd.Context(), id); err != nil {
				return out.Fail(err)
			}
			return out.Success(map[string]any{"deleted": id}, func(w io.Writer) {
				fmt.Fprintf(w, "deleted #%d\n", id)
			})
		},
	}
	return cmd
}

// NewSuggestCommand creates the suggest command.
func NewSuggestCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "suggest <url>",
		Short:         "Ask the server for a title, tags and category for a page",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := opts.output(cmd)
			api, err := opts.apiClient()
			if err != nil {
				return err
			}
			title, err := api.SuggestTitle(cmd.Context(), args[0])
			if err != nil {
				return out.Fail(err)
			}
			tags, err := api.SuggestTags(cmd.Context(), args[0])
			if err != nil {
				return out.Fail(err)
			}

			data := map[string]any{"title": title, "tags": tags}
			return out.Success(data, func(w io.Writer) {
				fmt.Fprintf(w, "title:    %s\n", orNone(title.SuggestedTitle))
				fmt.Fprintf(w, "category: %s\n", orNone(tags.SuggestedCategory))
				fmt.Fprintf(w, "tags:     %s\n", strings.Join(tags.SuggestedTags, ", "))
			})
		},
	}
	return cmd
}

// NewAnalyticsCommand creates the analytics command.
func NewAnalyticsCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "analytics",
		Short:         "Show category and tag counts and recent activity",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := opts.output(cmd)
			api, err := opts.apiClient()
			if err != nil {
				return err
			}
			analytics, err := api.Analytics(cmd.Context())
			if err != nil {
				return out.Fail(err)
			}
			return out.Success(analytics, func(w io.Writer) { printAnalytics(w, analytics) })
		},
	}
	return cmd
}

func (o *RootOptions) openSession(ctx context.Context, out *OutputFormatter, filter wire.Filter, live bool, onChange func([]wire.Record)) (*client.Session, error) {
	session, err := o.newSession(filter, live, onChange)
	if err != nil {
		return nil, err
	}
	out.VerboseLog("connecting to %s as %s", o.Server, session.ID())
	if err := session.Open(ctx); err != nil {
		if errors.Is(err, context.Canceled) {
			return nil, err
		}
		return nil, out.Fail(err)
	}
	return session, nil
}

func parseIndex(raw string) (int, error) {
	index, err := strconv.Atoi(raw)
	if err != nil || index < 0 {
		return 0, NewExitError(ExitCommandError, fmt.Sprintf("invalid index %q", raw))
	}
	return index, nil
}

func printAnalytics(w io.Writer, analytics wire.Analytics) {
	fmt.Fprintln(w, "categories:")
	printCounts(w, analytics.CategoryCounts)
	fmt.Fprintln(w, "tags:")
	printCounts(w, analytics.TagCounts)
	fmt.Fprintln(w, "recent:")
	for _, action := range analytics.RecentActions {
		fmt.Fprintf(w, "  %s  %-8s #%d %s\n", action.Timestamp, action.Action, action.BookmarkID, action.Title)
	}
}

// printCounts lists counts largest first, ties by name.
func printCounts(w io.Writer, counts map[string]int) {
	names := make([]string, 0, len(counts))
	for name := range counts {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		if counts[names[i]] != counts[names[j]] {
			return counts[names[i]] > counts[names[j]]
		}
		return names[i] < names[j]
	})
	for _, name := range names {
		fmt.Fprintf(w, "  %-20s %d\n", name, counts[name])
	}
}

func orNone(value *string) string {
	if value == nil || *value == "" {
		return "(none)"
	}
	return *value
}
