package main

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ahmethakanbesel/socpanel/internal/apperror"
	"github.com/ahmethakanbesel/socpanel/internal/config"
	"github.com/ahmethakanbesel/socpanel/internal/export"
	"github.com/ahmethakanbesel/socpanel/internal/socapi"
)

// filterFlags are the respondent filter flags shared by export commands.
type filterFlags struct {
	complete     bool
	inProgress   bool
	disqualified bool
	from         string
	to           string
	tz           string
	domains      []int
	questions    []string
}

func (f *filterFlags) register(cmd *cobra.Command) {
	cmd.Flags().BoolVar(&f.complete, "complete", true, "include completed interviews")
	cmd.Flags().BoolVar(&f.inProgress, "in-progress", true, "include interviews in progress")
	cmd.Flags().BoolVar(&f.disqualified, "disqualified", false, "include disqualified interviews")
	cmd.Flags().StringVar(&f.from, "from", "", "interval start, "+export.FilterTimeLayout)
	cmd.Flags().StringVar(&f.to, "to", "", "interval end, "+export.FilterTimeLayout)
	cmd.Flags().StringVar(&f.tz, "tz", "Local", "time zone of --from and --to")
	cmd.Flags().IntSliceVar(&f.domains, "domain", nil, "domain ids (default 1)")
	cmd.Flags().StringArrayVar(&f.questions, "question", nil, "answer filter QUESTION=ANSWER[,ANSWER...], repeatable")
}

func (f *filterFlags) build() (export.Filter, error) {
	loc, err := time.LoadLocation(f.tz)
	if err != nil {
		return export.Filter{}, fmt.Errorf("invalid --tz: %w", err)
	}
	filter := export.Filter{
		Complete:     f.complete,
		InProgress:   f.inProgress,
		Disqualified: f.disqualified,
		DomainIDs:    f.domains,
	}
	if filter.From, err = export.ParseFilterTime(f.from, loc); err != nil {
		return export.Filter{}, err
	}
	if filter.To, err = export.ParseFilterTime(f.to, loc); err != nil {
		return export.Filter{}, err
	}
	for _, q := range f.questions {
		qf, err := parseQuestion(q)
		if err != nil {
			return export.Filter{}, err
		}
		filter.Questions = append(filter.Questions, qf)
	}
	return filter, filter.Validate()
}

// parseQuestion parses "12=3,4" into a question filter.
func parseQuestion(s string) (export.QuestionFilter, error) {
	qs, answers, ok := strings.Cut(s, "=")
	if !ok {
		return export.QuestionFilter{}, fmt.Errorf("invalid --question %q, expected QUESTION=ANSWER[,ANSWER...]", s)
	}
	qid, err := strconv.Atoi(strings.TrimSpace(qs))
	if err != nil || qid <= 0 {
		return export.QuestionFilter{}, fmt.Errorf("invalid question id in %q", s)
	}
	ids, err := parseIDs(strings.Split(answers, ","))
	if err != nil {
		return export.QuestionFilter{}, fmt.Errorf("invalid answers in %q: %w", s, err)
	}
	return export.QuestionFilter{QuestionID: qid, AnswerIDs: ids}, nil
}

// parseIDs parses positive integer ids.
func parseIDs(args []string) ([]int, error) {
	ids := make([]int, 0, len(args))
	for _, a := range args {
		id, err := strconv.Atoi(strings.TrimSpace(a))
		if err != nil || id <= 0 {
			return nil, fmt.Errorf("invalid id %q", a)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func newExportService(cfg config.Config) *export.Service {
	return export.NewService(export.NewClientPlatform(socapi.New(cfg)),
		export.WithWorkers(cfg.Workers),
		export.WithPollInterval(cfg.PollInterval),
		export.WithExportTimeout(cfg.ExportTimeout),
	)
}

// bindExportTuning adds the batch tuning flags. They are bound when the
// command runs since several commands share the viper keys.
func bindExportTuning(cmd *cobra.Command) {
	cmd.Flags().Int("workers", 0, "download workers (0 uses max_concurrent_requests)")
	cmd.Flags().Duration("export-timeout", 0, "give up on an export not ready after this long")
	cmd.PreRunE = func(cmd *cobra.Command, _ []string) error {
		if err := viper.BindPFlag("workers", cmd.Flags().Lookup("workers")); err != nil {
			return err
		}
		return viper.BindPFlag("export_timeout", cmd.Flags().Lookup("export-timeout"))
	}
}

func exportCmd() *cobra.Command {
	var (
		ff     filterFlags
		names  []string
		dir    string
		format string
	)
	cmd := &cobra.Command{
		Use:   "export POLL_ID...",
		Short: "Export several polls",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseIDs(args)
			if err != nil {
				return err
			}
			fmtOpt, err := export.ParseFormat(format)
			if err != nil {
				return err
			}
			filter, err := ff.build()
			if err != nil {
				return err
			}
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			svc := newExportService(cfg)

			sum, err := svc.Export(cmd.Context(), export.Request{
				PollIDs: ids,
				Names:   names,
				Dir:     dir,
				Format:  fmtOpt,
				Filter:  filter,
			})
			var failed *apperror.FailedPollsError
			if err != nil && !errors.As(err, &failed) {
				return err
			}
			if perr := printSummary(ids, sum); perr != nil {
				return perr
			}
			return err
		},
	}
	ff.register(cmd)
	cmd.Flags().StringSliceVar(&names, "names", nil, "file names, one per poll id in order")
	cmd.Flags().StringVarP(&dir, "dir", "d", ".", "output directory")
	cmd.Flags().StringVarP(&format, "format", "f", export.DefaultFormat.Name, "export format: xlsx or sav")
	bindExportTuning(cmd)
	return cmd
}

func exportOneCmd() *cobra.Command {
	var ff filterFlags
	cmd := &cobra.Command{
		Use:   "export-one POLL_ID DEST",
		Short: "Export one poll to a file; the format follows DEST's extension",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseIDs(args[:1])
			if err != nil {
				return err
			}
			filter, err := ff.build()
			if err != nil {
				return err
			}
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			svc := newExportService(cfg)
			path, err := svc.ExportOne(cmd.Context(), ids[0], args[1], filter)
			if err != nil {
				return err
			}
			if viper.GetBool("json") {
				return printJSON(map[string]any{"poll_id": ids[0], "path": path})
			}
			fmt.Fprintln(os.Stdout, path)
			return nil
		},
	}
	ff.register(cmd)
	bindExportTuning(cmd)
	return cmd
}

type summaryRow struct {
	PollID int    `json:"poll_id"`
	Path   string `json:"path,omitempty"`
	Error  string `json:"error,omitempty"`
}

func summaryRows(ids []int, sum *export.Summary) []summaryRow {
	rows := make([]summaryRow, 0, len(ids))
	if sum == nil {
		return rows
	}
	sorted := append([]int(nil), ids...)
	sort.Ints(sorted)
	for _, id := range sorted {
		row := summaryRow{PollID: id}
		if cause, ok := sum.Failed[id]; ok {
			row.Error = cause.Error()
		} else {
			row.Path = sum.Downloaded[id]
		}
		rows = append(rows, row)
	}
	return rows
}

func printSummary(ids []int, sum *export.Summary) error {
	rows := summaryRows(ids, sum)
	if viper.GetBool("json") {
		return printJSON(rows)
	}
	tw := newTable()
	tw.AppendHeader(table.Row{"Poll", "File", "Error"})
	for _, r := range rows {
		tw.AppendRow(table.Row{r.PollID, r.Path, r.Error})
	}
	tw.Render()
	return nil
}
