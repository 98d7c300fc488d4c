package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/okian/episodecam/internal/adapters/repository"
	"github.com/okian/episodecam/internal/domain/model"
)

const listTimeLayout = "2006-01-02 15:04:05"

func newEpisodesCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "episodes",
		Short: "Inspect recorded episodes",
	}

	var limit int
	var motionOnly bool
	list := &cobra.Command{
		Use:   "list",
		Short: "List recorded episodes, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd.Context(), ctx, func(store *repository.SQLite) error {
				eps, err := store.ListEpisodes(cmd.Context(), model.EpisodeFilter{Limit: limit, MotionOnly: motionOnly})
				if err != nil {
					return err
				}
				if len(eps) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No episodes recorded")
					return nil
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderEpisodes(eps))
				return nil
			})
		},
	}
	list.Flags().IntVarP(&limit, "limit", "n", repository.DefaultLimit, "Maximum number of episodes")
	list.Flags().BoolVar(&motionOnly, "motion-only", false, "Only episodes with motion")
	cmd.AddCommand(list)

	return cmd
}

func newEventsCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "events",
		Short: "Inspect the event log",
	}

	var limit int
	var eventType, severity string
	list := &cobra.Command{
		Use:   "list",
		Short: "List logged events, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			f := model.EventFilter{Limit: limit, Type: eventType}
			if severity != "" {
				sev, err := model.ParseSeverity(severity)
				if err != nil {
					return err
				}
				f.Severity = sev
			}
			return withStore(cmd.Context(), ctx, func(store *repository.SQLite) error {
				evs, err := store.ListEvents(cmd.Context(), f)
				if err != nil {
					return err
				}
				if len(evs) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No events logged")
					return nil
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderEvents(evs))
				return nil
			})
		},
	}
	list.Flags().IntVarP(&limit, "limit", "n", repository.DefaultLimit, "Maximum number of events")
	list.Flags().StringVarP(&eventType, "type", "t", "", "Only events of this type")
	list.Flags().StringVarP(&severity, "severity", "s", "", "Only events of this severity (info, warning, error, critical)")
	cmd.AddCommand(list)

	return cmd
}

func renderEpisodes(eps []model.EpisodeRecord) string {
	rows := make([][]string, 0, len(eps))
	for _, ep := range eps {
		duration := "open"
		if ep.DurationSeconds != nil {
			duration = strconv.FormatFloat(*ep.DurationSeconds, 'f', 1, 64) + "s"
		}
		rows = append(rows, []string{
			strconv.FormatInt(ep.ID, 10),
			ep.EpisodeID,
			formatLocal(ep.StartTime),
			duration,
			yesNo(ep.MotionDetected),
			ep.FilePath,
		})
	}
	return renderTable(
		[]string{"ID", "Episode", "Start", "Duration", "Motion", "Path"},
		rows,
		[]columnAlignment{alignRight, alignLeft, alignLeft, alignRight, alignLeft, alignLeft},
	)
}

func renderEvents(evs []model.EventRecord) string {
	rows := make([][]string, 0, len(evs))
	for _, ev := range evs {
		episode := ""
		if ev.EpisodeID != nil {
			episode = strconv.FormatInt(*ev.EpisodeID, 10)
		}
		rows = append(rows, []string{
			strconv.FormatInt(ev.ID, 10),
			formatLocal(ev.Timestamp),
			ev.Type,
			string(ev.Severity),
			episode,
			ev.Message,
		})
	}
	return renderTable(
		[]string{"ID", "Time", "Type", "Severity", "Episode", "Message"},
		rows,
		[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft, alignRight, alignLeft},
	)
}

func formatLocal(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Local().Format(listTimeLayout)
}

func yesNo(v bool) string {
	if v {
		return "yes"
	}
	return "no"
}
