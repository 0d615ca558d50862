package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/ssj-sketch/Statuswindow-sub001/internal/logging"
	"github.com/ssj-sketch/Statuswindow-sub001/internal/state"
)

// #region main

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

type options struct {
	dbPath  string
	jsonOut bool
	now     func() time.Time
}

func newRootCmd() *cobra.Command {
	opts := &options{now: time.Now}
	root := &cobra.Command{
		Use:          "inspect",
		Short:        "Inspect stored HUD snapshots",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&opts.dbPath, "db", envOr("HUD_SQLITE_PATH", "data/hud.db"), "path to the snapshot database")
	root.PersistentFlags().BoolVar(&opts.jsonOut, "json", false, "output as JSON instead of text")

	root.AddCommand(
		newProfilesCmd(opts),
		newListCmd(opts),
		newShowCmd(opts),
		newCyclesCmd(opts),
		newRollbackCmd(opts),
	)
	return root
}

func withStore(opts *options, fn func(*state.Store) error) error {
	if _, err := os.Stat(opts.dbPath); err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	store, err := state.NewStore(opts.dbPath)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer store.Close()
	return fn(store)
}

// #endregion main

// #region profiles

func newProfilesCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "profiles",
		Short: "List profiles with an active snapshot",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withStore(opts, func(store *state.Store) error {
				ids, err := store.ListProfiles()
				if err != nil {
					return err
				}
				if opts.jsonOut {
					return printJSON(cmd.OutOrStdout(), ids)
				}
				for _, id := range ids {
					fmt.Fprintln(cmd.OutOrStdout(), id)
				}
				return nil
			})
		},
	}
}

// #endregion profiles

// #region list

type listRow struct {
	VersionID string `json:"version_id"`
	Trigger   string `json:"trigger"`
	Decision  string `json:"decision"`
	Reason    string `json:"reason,omitempty"`
	Level     int    `json:"level"`
	Exp       int    `json:"exp"`
	CreatedAt string `json:"created_at"`
}

func newListCmd(opts *options) *cobra.Command {
	var last int
	cmd := &cobra.Command{
		Use:   "list <profile>",
		Short: "Show the most recent versions of a profile",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(opts, func(store *state.Store) error {
				versions, err := store.ListVersionsWithProvenance(args[0], last)
				if err != nil {
					return err
				}
				return printList(cmd.OutOrStdout(), versions, opts.jsonOut)
			})
		},
	}
	cmd.Flags().IntVar(&last, "last", 20, "show N most recent versions")
	return cmd
}

func printList(w io.Writer, versions []state.VersionWithProvenance, jsonOut bool) error {
	// Store returns newest first; print chronologically.
	rows := make([]listRow, len(versions))
	for i, vp := range versions {
		rows[len(versions)-1-i] = listRow{
			VersionID: vp.VersionID,
			Trigger:   vp.TriggerType,
			Decision:  vp.Decision,
			Reason:    vp.Reason,
			Level:     vp.Snapshot.Exp.Level,
			Exp:       vp.Snapshot.Exp.CurrentExp,
			CreatedAt: vp.CreatedAt.UTC().Format(time.RFC3339),
		}
	}
	if jsonOut {
		return printJSON(w, rows)
	}
	if len(rows) == 0 {
		fmt.Fprintln(w, "no versions found")
		return nil
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "VERSION\tTRIGGER\tDECISION\tLEVEL\tEXP\tTIME")
	for _, r := range rows {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%s\n",
			shortID(r.VersionID), orDash(r.Trigger), orDash(r.Decision), r.Level, r.Exp, r.CreatedAt)
	}
	return tw.Flush()
}

// #endregion list

// #region show

func newShowCmd(opts *options) *cobra.Command {
	var version string
	cmd := &cobra.Command{
		Use:   "show <profile>",
		Short: "Show the active snapshot, or one version with --version",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(opts, func(store *state.Store) error {
				var rec state.SnapshotRecord
				var err error
				if version != "" {
					rec, err = store.GetVersion(version)
					if err == nil && rec.ProfileID != args[0] {
						err = fmt.Errorf("version %s belongs to %s", version, rec.ProfileID)
					}
				} else {
					rec, err = store.GetCurrent(args[0])
				}
				if err != nil {
					return err
				}
				if opts.jsonOut {
					return printJSON(cmd.OutOrStdout(), rec.Snapshot)
				}
				printSnapshot(cmd.OutOrStdout(), rec, opts.now())
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&version, "version", "", "version ID to show instead of the active one")
	return cmd
}

func printSnapshot(w io.Writer, rec state.SnapshotRecord, now time.Time) {
	snap := rec.Snapshot
	fmt.Fprintf(w, "Profile:    %s\n", rec.ProfileID)
	fmt.Fprintf(w, "Version:    %s\n", rec.VersionID)
	fmt.Fprintf(w, "Parent:     %s\n", orDash(rec.ParentID))
	fmt.Fprintf(w, "Generated:  %s\n", snap.GeneratedAt.UTC().Format(time.RFC3339))
	fmt.Fprintf(w, "Level:      %d (%d/%d exp)\n", snap.Exp.Level, snap.Exp.CurrentExp, snap.Exp.ExpForNext)

	fmt.Fprintf(w, "\nStats:\n")
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	for _, k := range snap.Stats.Kinds() {
		st, _ := snap.Stats.Get(k)
		fmt.Fprintf(tw, "  %s\t%6.2f\t(base %.2f)\n", k.DisplayName(), st.EffectiveScore(now), st.BaseScore)
		for _, m := range st.ActiveModifiers(now) {
			fmt.Fprintf(tw, "    %s %s\t%+.1f x%.2f\t%s\n", m.Kind, m.Source.Label, m.Magnitude, m.Multiplier, remaining(m.Remaining(now)))
		}
	}
	_ = tw.Flush()

	if len(snap.ActiveQuests) > 0 {
		fmt.Fprintf(w, "\nQuests:\n")
		for _, q := range snap.ActiveQuests {
			fmt.Fprintf(w, "  [%s] %s (%s, %d exp) %s\n", q.Progress, q.Title, q.Cadence, q.RewardExp, shortID(q.ID))
		}
	}
	if len(snap.Suggestions) > 0 {
		fmt.Fprintf(w, "\nSuggestions:\n")
		for _, s := range snap.Suggestions {
			fmt.Fprintf(w, "  %s: %s\n", s.Title, strings.Join(s.Options, " / "))
		}
	}
	if len(snap.Timeline) > 0 {
		fmt.Fprintf(w, "\nTimeline:\n")
		for _, ev := range snap.Timeline {
			fmt.Fprintf(w, "  %s  %s\n", ev.Timestamp.UTC().Format("01-02 15:04"), ev.Message)
		}
	}
}

func remaining(d time.Duration, ok bool) string {
	if !ok {
		return "permanent"
	}
	return d.Truncate(time.Minute).String() + " left"
}

// #endregion show

// #region cycles

func newCyclesCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "cycles <profile>",
		Short: "Show the recorded update cycles of a profile, including rejected ones",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(opts, func(store *state.Store) error {
				recs, err := logging.Cycles(store.DB(), args[0])
				if err != nil {
					return err
				}
				if opts.jsonOut {
					return printJSON(cmd.OutOrStdout(), recs)
				}
				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
				fmt.Fprintln(tw, "CYCLE\tTIME\tSIGNALS\tGATE\tVETOES\tEXP\tATTEMPTS")
				for _, r := range recs {
					fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%d\t%d\n",
						shortID(r.CycleID), r.At.UTC().Format(time.RFC3339), orDash(strings.Join(r.SignalKinds, ",")),
						orDash(r.GateAction), len(r.Vetoes), r.Metrics.ExpAwarded, r.Attempts)
				}
				return tw.Flush()
			})
		},
	}
}

// #endregion cycles

// #region rollback

func newRollbackCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "rollback <profile> <version>",
		Short: "Point a profile back at one of its earlier versions",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(opts, func(store *state.Store) error {
				if err := store.Rollback(args[0], args[1]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s now at %s\n", args[0], args[1])
				return nil
			})
		},
	}
}

// #endregion rollback

// #region output

func printJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal json: %w", err)
	}
	fmt.Fprintln(w, string(data))
	return nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// #endregion output
