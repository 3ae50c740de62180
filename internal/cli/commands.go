// Package cli implements cdrctl, the offline companion of the dashboard
// server: it parses and aggregates recorded feeds and inspects the weekly store.
package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/dennisdiepolder/monti/frontdesk/internal/agentname"
	"github.com/dennisdiepolder/monti/frontdesk/internal/aggregator"
	"github.com/dennisdiepolder/monti/frontdesk/internal/alerts"
	"github.com/dennisdiepolder/monti/frontdesk/internal/cache"
	"github.com/dennisdiepolder/monti/frontdesk/internal/cdr"
	"github.com/dennisdiepolder/monti/frontdesk/internal/cdrtime"
	"github.com/dennisdiepolder/monti/frontdesk/internal/config"
	"github.com/dennisdiepolder/monti/frontdesk/internal/ingestion"
	"github.com/dennisdiepolder/monti/frontdesk/internal/storage"
	"github.com/dennisdiepolder/monti/frontdesk/internal/types"
	"github.com/dennisdiepolder/monti/frontdesk/internal/weekly"
)

// Options are the flags shared by every command
type Options struct {
	Agents     []string
	AgentsFile string
	Marker     string
	Timezone   string
	Verbose    bool

	// OpenStore returns the weekly store; replaced in tests
	OpenStore func(ctx context.Context, logger zerolog.Logger) (storage.KV, error)
}

// NewRootCommand builds the cdrctl command tree
func NewRootCommand() *cobra.Command {
	return newRootCommand(&Options{
		OpenStore: func(ctx context.Context, logger zerolog.Logger) (storage.KV, error) {
			return storage.NewStore(ctx, storage.LoadConfig(), logger)
		},
	})
}

func newRootCommand(opts *Options) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "cdrctl",
		Short: "Front office call feed tooling",
		Long: `Front office call feed tooling

Parse and aggregate recorded CDR feeds, and inspect the weekly counters
shared with the dashboard server.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringSliceVarP(&opts.Agents, "agents", "a", splitEnv("AUTHORIZED_AGENTS"), "Authorized agent names (comma-separated)")
	rootCmd.PersistentFlags().StringVar(&opts.AgentsFile, "agents-file", os.Getenv("AGENTS_FILE"), "YAML roster with agents and extra denylist entries")
	rootCmd.PersistentFlags().StringVar(&opts.Marker, "outbound-marker", cdr.DefaultOutboundMarker, "Caller prefix of outbound calls")
	rootCmd.PersistentFlags().StringVar(&opts.Timezone, "timezone", envOr("TIMEZONE", "Europe/Paris"), "Business timezone")
	rootCmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "Log every rejected line")

	rootCmd.AddCommand(newParseCommand(opts), newAggregateCommand(opts), newWeeklyCommand(opts))
	return rootCmd
}

func (o *Options) logger(cmd *cobra.Command) zerolog.Logger {
	level := zerolog.WarnLevel
	if o.Verbose {
		level = zerolog.DebugLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: cmd.ErrOrStderr(), NoColor: color.NoColor}).Level(level).With().Timestamp().Logger()
}

func (o *Options) location() (*time.Location, error) {
	loc, err := time.LoadLocation(o.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %q: %w", o.Timezone, err)
	}
	return loc, nil
}

func (o *Options) parser(cmd *cobra.Command, logger zerolog.Logger) (*cdr.Parser, error) {
	agents := append([]string{}, o.Agents...)
	denylist := append([]string{}, agentname.DefaultDenylist...)
	if o.AgentsFile != "" {
		roster, err := config.LoadRoster(o.AgentsFile)
		if err != nil {
			return nil, err
		}
		agents = append(agents, roster.Agents...)
		denylist = append(denylist, roster.Denylist...)
	}
	if len(agents) == 0 {
		color.New(color.FgYellow).Fprintln(cmd.ErrOrStderr(), "Warning: no authorized agents, front office calls will count as ABSYS")
	}
	return cdr.NewParser(agentname.NewResolver(agents, denylist), o.Marker, logger), nil
}

// openInput returns the named file, or stdin for "" and "-"
func openInput(cmd *cobra.Command, args []string) (io.ReadCloser, error) {
	if len(args) == 0 || args[0] == "-" {
		return io.NopCloser(cmd.InOrStdin()), nil
	}
	return os.Open(args[0])
}

func newParseCommand(opts *Options) *cobra.Command {
	var showRejected bool

	cmd := &cobra.Command{
		Use:   "parse [file]",
		Short: "Parse a feed and list the classified records",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			parser, err := opts.parser(cmd, opts.logger(cmd))
			if err != nil {
				return err
			}
			in, err := openInput(cmd, args)
			if err != nil {
				return err
			}
			defer in.Close()

			return runParse(cmd.OutOrStdout(), in, parser, showRejected)
		},
	}
	cmd.Flags().BoolVar(&showRejected, "rejected", false, "List rejected lines")
	return cmd
}

func runParse(out io.Writer, in io.Reader, parser *cdr.Parser, showRejected bool) error {
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	table := newTable(out, "ID", "Start", "Type", "Agent", "Queue", "Status", "Duration")
	reasons := map[string]int{}
	var rejectedLines []string
	accepted := 0

	for scanner.Scan() {
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}
		rec, err := parser.ParseLine(line)
		if err != nil {
			reasons[cdr.Reason(err)]++
			rejectedLines = append(rejectedLines, line)
			continue
		}
		accepted++
		table.Append([]string{
			rec.ID,
			cdrtime.FormatTimestamp(rec.StartTime),
			colorCallType(rec.CallType),
			rec.AgentName,
			string(rec.Queue),
			rec.Status,
			cdrtime.FormatHMS(rec.DurationSec),
		})
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read feed: %w", err)
	}

	if accepted > 0 {
		table.Render()
	}

	fmt.Fprintf(out, "\n%s accepted, %s rejected\n",
		color.GreenString(strconv.Itoa(accepted)),
		color.RedString(strconv.Itoa(len(rejectedLines))))
	for _, reason := range sortedKeys(reasons) {
		fmt.Fprintf(out, "  %-16s %d\n", reason, reasons[reason])
	}
	if showRejected {
		for _, line := range rejectedLines {
			fmt.Fprintf(out, "  %s %s\n", color.RedString("x"), line)
		}
	}
	return nil
}

func newAggregateCommand(opts *Options) *cobra.Command {
	var (
		nowFlag string
		days    int
	)

	cmd := &cobra.Command{
		Use:   "aggregate [file]",
		Short: "Aggregate a feed into the dashboard snapshot",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := opts.logger(cmd)
			loc, err := opts.location()
			if err != nil {
				return err
			}
			now := cdrtime.WallClock(time.Now(), loc)
			if nowFlag != "" {
				var ok bool
				if now, ok = cdrtime.ParseTimestamp(nowFlag); !ok {
					return fmt.Errorf("invalid --now %q, expected YYYY/MM/DD HH:MM:SS", nowFlag)
				}
			}
			parser, err := opts.parser(cmd, logger)
			if err != nil {
				return err
			}
			in, err := openInput(cmd, args)
			if err != nil {
				return err
			}
			defer in.Close()

			records := cache.NewRecordCache()
			processor := ingestion.NewDefaultProcessor(parser, records, nil, loc, logger)
			if err := ingestion.NewReaderSource(in, logger).Start(cmd.Context(), processor); err != nil {
				return err
			}

			dash := aggregator.AggregateSpan(records.All(), aggregator.DefaultSlots(), now, time.Duration(days)*24*time.Hour)
			dash.Alerts = alerts.Check(dash, alerts.DefaultThresholds())
			inbound, outbound := aggregator.DailyTotals(records.All(), now)

			printDashboard(cmd.OutOrStdout(), dash, processor.Stats())
			fmt.Fprintf(cmd.OutOrStdout(), "\nToday (%s): %d inbound, %d outbound\n", cdrtime.DayKey(now), inbound, outbound)
			return nil
		},
	}
	cmd.Flags().StringVar(&nowFlag, "now", "", "Reference time as YYYY/MM/DD HH:MM:SS (default: current wall clock)")
	cmd.Flags().IntVar(&days, "days", 7, "Window length in days")
	return cmd
}

func printDashboard(out io.Writer, dash types.Dashboard, stats ingestion.Stats) {
	bold := color.New(color.Bold)

	bold.Fprintf(out, "Snapshot %s (%s, %d records in window, %d parsed, %d duplicates)\n",
		cdrtime.FormatTimestamp(dash.GeneratedAt), dash.State, dash.RecordCount, stats.Accepted, stats.Duplicates)

	kpi := dash.KPI
	kpiTable := newTable(out, "KPI", "Value")
	kpiTable.AppendBulk([][]string{
		{"Agents", strconv.Itoa(kpi.TotalAgents)},
		{"Inbound", strconv.Itoa(kpi.InboundTotal)},
		{"Answered", strconv.Itoa(kpi.AnsweredInbound)},
		{"Missed", strconv.Itoa(kpi.MissedTotal)},
		{"Missed (ABSYS)", strconv.Itoa(kpi.MissedAbsys)},
		{"Outbound", strconv.Itoa(kpi.OutboundTotal)},
		{"Avg inbound AHT", kpi.AvgInboundClock},
		{"Avg outbound AHT", kpi.AvgOutboundClock},
		{"Global AHT", kpi.GlobalClock},
		{"Abandon rate", kpi.AbandonRate},
	})
	kpiTable.Render()

	if len(dash.Employees) > 0 {
		fmt.Fprintln(out)
		agentTable := newTable(out, "Agent", "Status", "Inbound", "Missed", "Outbound", "In AHT", "Out AHT")
		for _, a := range dash.Employees {
			agentTable.Append([]string{
				a.Name,
				a.Status,
				strconv.Itoa(a.Inbound),
				strconv.Itoa(a.Missed),
				strconv.Itoa(a.Outbound),
				cdrtime.FormatHMS(a.InboundHandlingTimeSec),
				cdrtime.FormatHMS(a.OutboundHandlingTimeSec),
			})
		}
		agentTable.Render()
	}

	fmt.Fprintln(out)
	slotTable := newTable(out, "Slot", string(types.CallTypeInbound), string(types.CallTypeOutbound), string(types.CallTypeAbsys))
	for _, b := range dash.CallVolumes {
		slotTable.Append([]string{b.Label, strconv.Itoa(b.Inbound), strconv.Itoa(b.Outbound), strconv.Itoa(b.Absys)})
	}
	slotTable.Render()

	for _, alert := range dash.Alerts {
		c := color.New(color.FgYellow)
		if alert.Severity == types.SeverityCritical {
			c = color.New(color.FgRed, color.Bold)
		}
		prefix := alert.Rule
		if alert.Agent != "" {
			prefix += " " + alert.Agent
		}
		c.Fprintf(out, "[%s] %s: %s\n", alert.Severity, prefix, alert.Message)
	}
}

func newWeeklyCommand(opts *Options) *cobra.Command {
	weeklyCmd := &cobra.Command{
		Use:   "weekly",
		Short: "Inspect and maintain the weekly counters",
	}

	var dateFlag string
	withStore := func(run func(cmd *cobra.Command, args []string, store *weekly.Store, now time.Time) error) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, args []string) error {
			logger := opts.logger(cmd)
			loc, err := opts.location()
			if err != nil {
				return err
			}
			now := cdrtime.WallClock(time.Now(), loc)
			if dateFlag != "" {
				parsed, err := time.Parse(cdrtime.DateLayout, dateFlag)
				if err != nil {
					return fmt.Errorf("invalid --date %q, expected YYYY-MM-DD", dateFlag)
				}
				now = parsed.Add(12 * time.Hour)
			}
			kv, err := opts.OpenStore(cmd.Context(), logger)
			if err != nil {
				return err
			}
			if closer, ok := kv.(interface{ Close() }); ok {
				defer closer.Close()
			}
			return run(cmd, args, weekly.NewStore(kv, 0, logger), now)
		}
	}

	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Show the weekly counter and the daily tallies",
		Args:  cobra.NoArgs,
		RunE: withStore(func(cmd *cobra.Command, _ []string, store *weekly.Store, now time.Time) error {
			printWeekly(cmd.Context(), cmd.OutOrStdout(), store, now)
			return nil
		}),
	}

	incrementCmd := &cobra.Command{
		Use:   "increment [n]",
		Short: "Add n (default 1) to the weekly counter",
		Args:  cobra.MaximumNArgs(1),
		RunE: withStore(func(cmd *cobra.Command, args []string, store *weekly.Store, now time.Time) error {
			n := 1
			if len(args) == 1 {
				v, err := strconv.Atoi(args[0])
				if err != nil || v <= 0 {
					return fmt.Errorf("invalid count %q", args[0])
				}
				n = v
			}
			if !cdrtime.IsBusinessDay(now) {
				color.New(color.FgYellow).Fprintf(cmd.OutOrStdout(), "%s is not a business day, counter unchanged\n", cdrtime.DayKey(now))
			}
			total := store.IncrementWeeklyCallCount(cmd.Context(), now, n)
			fmt.Fprintf(cmd.OutOrStdout(), "Weekly total: %s\n", color.GreenString(strconv.Itoa(total)))
			return nil
		}),
	}

	saveCmd := &cobra.Command{
		Use:   "save <inbound> <outbound>",
		Short: "Merge a daily tally into the current week",
		Args:  cobra.ExactArgs(2),
		RunE: withStore(func(cmd *cobra.Command, args []string, store *weekly.Store, now time.Time) error {
			inbound, err := strconv.Atoi(args[0])
			if err != nil || inbound < 0 {
				return fmt.Errorf("invalid inbound count %q", args[0])
			}
			outbound, err := strconv.Atoi(args[1])
			if err != nil || outbound < 0 {
				return fmt.Errorf("invalid outbound count %q", args[1])
			}
			store.SaveDailyData(cmd.Context(), inbound, outbound, now)
			printWeekly(cmd.Context(), cmd.OutOrStdout(), store, now)
			return nil
		}),
	}

	resetCmd := &cobra.Command{
		Use:   "reset",
		Short: "Delete the counter and every stored week",
		Args:  cobra.NoArgs,
		RunE: withStore(func(cmd *cobra.Command, _ []string, store *weekly.Store, _ time.Time) error {
			if err := store.Reset(cmd.Context()); err != nil {
				return err
			}
			color.Green("Weekly data wiped")
			return nil
		}),
	}

	weeklyCmd.PersistentFlags().StringVar(&dateFlag, "date", "", "Business date as YYYY-MM-DD (default: today)")
	weeklyCmd.AddCommand(showCmd, incrementCmd, saveCmd, resetCmd)
	return weeklyCmd
}

func printWeekly(ctx context.Context, out io.Writer, store *weekly.Store, now time.Time) {
	lastReset := "never"
	if counter := store.Counter(ctx); !counter.LastReset.IsZero() {
		lastReset = cdrtime.DayKey(counter.LastReset)
	}
	fmt.Fprintf(out, "Week %s, weekly total %s (last reset %s)\n",
		cdrtime.WeekKey(now),
		color.GreenString(strconv.Itoa(store.WeeklyCallCount(ctx, now))),
		lastReset)

	days := store.WeekData(ctx, now)
	table := newTable(out, "Day", "Inbound", "Outbound")
	for _, day := range sortedKeys(days) {
		table.Append([]string{day, strconv.Itoa(days[day].Inbound), strconv.Itoa(days[day].Outbound)})
	}
	inbound, outbound := store.WeekTotal(ctx, now)
	table.SetFooter([]string{"Total", strconv.Itoa(inbound), strconv.Itoa(outbound)})
	table.Render()

	if weeks := store.Weeks(ctx); len(weeks) > 0 {
		fmt.Fprintf(out, "Stored weeks: %s\n", strings.Join(weeks, ", "))
	}
}

func newTable(out io.Writer, header ...string) *tablewriter.Table {
	table := tablewriter.NewWriter(out)
	table.SetHeader(header)
	table.SetBorder(true)
	table.SetRowLine(false)
	table.SetAutoWrapText(false)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	return table
}

func colorCallType(t types.CallType) string {
	switch t {
	case types.CallTypeInbound:
		return color.GreenString(string(t))
	case types.CallTypeOutbound:
		return color.CyanString(string(t))
	case types.CallTypeAbsys:
		return color.RedString(string(t))
	default:
		return string(t)
	}
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func splitEnv(key string) []string {
	var values []string
	for _, v := range strings.Split(os.Getenv(key), ",") {
		if v = strings.TrimSpace(v); v != "" {
			values = append(values, v)
		}
	}
	return values
}
