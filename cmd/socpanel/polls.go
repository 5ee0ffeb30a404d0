package main

import (
	"fmt"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ahmethakanbesel/socpanel/internal/socapi"
)

func searchCmd() *cobra.Command {
	var q socapi.SearchQuery
	cmd := &cobra.Command{
		Use:   "search",
		Short: "Find polls by name or number",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newClient()
			if err != nil {
				return err
			}
			polls, err := client.Search(cmd.Context(), q)
			if err != nil {
				return err
			}
			if viper.GetBool("json") {
				return printJSON(polls)
			}
			tw := newTable()
			tw.AppendHeader(table.Row{"ID", "Name", "Created"})
			for _, p := range polls {
				tw.AppendRow(table.Row{p.ID, p.Name, p.CreatedAt})
			}
			tw.Render()
			return nil
		},
	}
	cmd.Flags().StringVar(&q.Name, "name", "", "poll name substring")
	cmd.Flags().IntVar(&q.Number, "num", 0, "poll number")
	cmd.Flags().BoolVar(&q.InTrack, "in-track", false, "only polls in tracking")
	cmd.Flags().IntVar(&q.ChunkSize, "page-size", 0, "polls per request (default 50)")
	cmd.MarkFlagsMutuallyExclusive("name", "num")
	cmd.MarkFlagsOneRequired("name", "num")
	return cmd
}

func metaCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "meta POLL_ID",
		Short: "Show poll metadata",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseIDs(args)
			if err != nil {
				return err
			}
			client, err := newClient()
			if err != nil {
				return err
			}
			meta, err := client.Metadata(cmd.Context(), ids[0])
			if err != nil {
				return err
			}
			if viper.GetBool("json") {
				return printJSON(meta)
			}
			tw := newTable()
			tw.AppendRows([]table.Row{
				{"ID", meta.ID},
				{"Name", meta.Name},
				{"Status", meta.StatusID},
			})
			for _, s := range meta.Sources {
				tw.AppendRow(table.Row{"Source", fmt.Sprintf("%s (#%d)", s.Name, s.ID)})
			}
			tw.Render()
			return nil
		},
	}
}

func quotaCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "quota POLL_ID",
		Short: "Show quota counters with their sources",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseIDs(args)
			if err != nil {
				return err
			}
			client, err := newClient()
			if err != nil {
				return err
			}
			lines, err := client.Quota(cmd.Context(), ids[0])
			if err != nil {
				return err
			}
			if viper.GetBool("json") {
				return printJSON(lines)
			}
			tw := newTable()
			tw.AppendHeader(table.Row{"ID", "Name", "Hits", "Quota", "Left", "Sources"})
			for _, l := range lines {
				tw.AppendRow(table.Row{l.ID, l.Name, l.Hits, l.Quota, l.Left, strings.Join(l.Sources, ", ")})
			}
			tw.Render()
			return nil
		},
	}
}

func completesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "completes POLL_ID...",
		Short: "Report whether polls have completed interviews",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseIDs(args)
			if err != nil {
				return err
			}
			client, err := newClient()
			if err != nil {
				return err
			}

			type row struct {
				PollID int  `json:"poll_id"`
				Ended  int  `json:"ended_count"`
				Has    bool `json:"has_completes"`
			}
			rows := make([]row, 0, len(ids))
			for _, id := range ids {
				stat, err := client.Stat(cmd.Context(), id)
				if err != nil {
					return err
				}
				rows = append(rows, row{PollID: id, Ended: stat.EndedCount, Has: stat.EndedCount > 0})
			}

			if viper.GetBool("json") {
				return printJSON(rows)
			}
			tw := newTable()
			tw.AppendHeader(table.Row{"Poll", "Completed", "Has completes"})
			for _, r := range rows {
				tw.AppendRow(table.Row{r.PollID, r.Ended, r.Has})
			}
			tw.Render()
			return nil
		},
	}
}
