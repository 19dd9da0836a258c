// Package cli implements shelfctl, a terminal viewer and editor for the
// shared bookmark collection.
package cli

import (
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"shelf/api/internal/apiclient"
	"shelf/api/internal/client"
	"shelf/api/internal/wire"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose     bool
	Format      string // "json" | "text"
	ProfilePath string
	Server      string
	Timeout     time.Duration

	profile Profile
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for shelfctl.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "shelfctl",
		Short: "shelfctl - shared bookmark shelf client",
		Long:  "List, watch, reorder and edit a bookmark collection shared with every other viewer.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return opts.loadProfile(cmd)
		},
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.ProfilePath, "profile", "", "profile file (default "+defaultProfileHint+")")
	cmd.PersistentFlags().StringVarP(&opts.Server, "server", "s", "", "API base URL (overrides the profile)")
	cmd.PersistentFlags().DurationVar(&opts.Timeout, "timeout", 0, "request timeout (overrides the profile)")

	cmd.AddCommand(NewListCommand(opts))
	cmd.AddCommand(NewWatchCommand(opts))
	cmd.AddCommand(NewMoveCommand(opts))
	cmd.AddCommand(NewAddCommand(opts))
	cmd.AddCommand(NewRemoveCommand(opts))
	cmd.AddCommand(NewSuggestCommand(opts))
	cmd.AddCommand(NewAnalyticsCommand(opts))

	return cmd
}

// loadProfile reads the profile and fills every flag the user left unset.
func (o *RootOptions) loadProfile(cmd *cobra.Command) error {
	path, explicit := o.ProfilePath, o.ProfilePath != ""
	if !explicit {
		path = DefaultProfilePath()
	}
	profile, err := LoadProfile(path, explicit)
	if err != nil {
		return WrapExitError(ExitCommandError, "load profile", err)
	}
	o.profile = profile

	if !cmd.Flags().Changed("server") {
		o.Server = profile.Server
	}
	if o.Server == "" {
		o.Server = defaultServer
	}
	if !cmd.Flags().Changed("timeout") {
		o.Timeout = profile.Timeout.Duration
	}
	if o.Timeout <= 0 {
		o.Timeout = defaultTimeout
	}
	return nil
}

func (o *RootOptions) output(cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    o.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   o.Verbose,
	}
}

// category resolves --category against the profile default.
func (o *RootOptions) category(cmd *cobra.Command, flag string) string {
	if cmd.Flags().Changed("category") {
		return flag
	}
	return o.profile.Category
}

func (o *RootOptions) newSession(filter wire.Filter, live bool, onChange func([]wire.Record)) (*client.Session, error) {
	session, err := client.New(client.Options{
		BaseURL:    o.Server,
		HTTPClient: &http.Client{Timeout: o.Timeout},
		Filter:     filter,
		Live:       live,
		OnChange:   onChange,
	})
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "invalid server", err)
	}
	return session, nil
}

func (o *RootOptions) apiClient() (*apiclient.Client, error) {
	api, err := apiclient.New(o.Server, &http.Client{Timeout: o.Timeout})
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "invalid server", err)
	}
	return api, nil
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}

func printRecords(w io.Writer, records []wire.Record) {
	if len(records) == 0 {
		fmt.Fprintln(w, "(no bookmarks)")
		return
	}
	for i, record := range records {
		category := record.CategoryName()
		if category == "" {
			category = "-"
		}
		fmt.Fprintf(w, "%3d. #%-5d %-40s %-14s %g\n", i, record.ID, truncate(record.Title, 40), category, record.Position)
	}
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n-1]) + "…"
}
