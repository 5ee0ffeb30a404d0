package main

import (
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func columnsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "columns POLL_ID",
		Short: "List the data file columns of a poll, block by block",
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
			cols, err := client.MapColumns(cmd.Context(), ids[0])
			if err != nil {
				return err
			}
			if viper.GetBool("json") {
				return printJSON(cols)
			}
			tw := newTable()
			tw.AppendHeader(table.Row{"#", "Column", "Question", "Answer", "Kind"})
			for i, c := range cols {
				tw.AppendRow(table.Row{i + 1, c.Key(), blankZero(c.QuestionID), blankZero(c.AnswerID), c.Kind})
			}
			tw.Render()
			return nil
		},
	}
}

func targetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "target POLL_ID",
		Short: "Show quota fill and source conversion of a poll",
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
			target, err := client.Target(cmd.Context(), ids[0])
			if err != nil {
				return err
			}
			if viper.GetBool("json") {
				return printJSON(target)
			}

			fmt.Printf("%s (status %d)\n", target.Name, target.StatusID)
			quotas := newTable()
			quotas.SetTitle("Quotas")
			quotas.AppendHeader(table.Row{"ID", "Name", "Sources", "Hits", "Quota", "Left"})
			for _, q := range target.Quotas {
				quotas.AppendRow(table.Row{q.QuotaID, q.QuotaName, q.SourcesNames, q.Hits, q.Quota, q.Left})
			}
			quotas.Render()

			convs := newTable()
			convs.SetTitle("Conversion")
			convs.AppendHeader(table.Row{"Source", "Visits", "Completes", "In progress", "Disqualified", "Rate"})
			for _, c := range target.Conversions {
				convs.AppendRow(table.Row{c.SourceName, c.Visits, c.Completes, c.InProgress, c.Disqualified,
					fmt.Sprintf("%.1f%%", c.Rate*100)})
			}
			convs.Render()
			return nil
		},
	}
}

func linksCmd() *cobra.Command {
	var count int
	cmd := &cobra.Command{
		Use:   "links POLL_ID",
		Short: "Generate respondent links for a poll",
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
			links, err := client.CreateLinks(cmd.Context(), ids[0], count)
			if err != nil {
				return err
			}
			if viper.GetBool("json") {
				return printJSON(links)
			}
			tw := newTable()
			tw.AppendHeader(table.Row{"ID", "URL"})
			for _, l := range links {
				tw.AppendRow(table.Row{l.ID, l.URL})
			}
			tw.Render()
			return nil
		},
	}
	cmd.Flags().IntVar(&count, "count", 1, "number of links to generate")
	return cmd
}

func blankZero(n int) any {
	if n == 0 {
		return ""
	}
	return n
}
