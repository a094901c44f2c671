package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/cyp0633/caldavobj/davclient"
	davxml "github.com/cyp0633/caldavobj/internal/xml"
	"github.com/emersion/go-ical"
	"github.com/olebedev/when"
	"github.com/olebedev/when/rules/common"
	"github.com/olebedev/when/rules/en"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
)

// app holds the state shared by every subcommand.
type app struct {
	cfg *Config

	url      string
	username string
	password string
	debug    bool
	discover bool
	metrics  bool

	httpClient *http.Client
	registry   *prometheus.Registry
	logger     *slog.Logger
	when       *when.Parser
	now        func() time.Time
}

func newApp(cfg *Config) *app {
	w := when.New(nil)
	w.Add(en.All...)
	w.Add(common.All...)
	return &app{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		registry:   prometheus.NewRegistry(),
		when:       w,
		now:        time.Now,
	}
}

func newRootCmd(cfg *Config) *cobra.Command {
	return newApp(cfg).rootCmd()
}

func (a *app) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "caldavctl",
		Short: "Inspect and edit CalDAV calendars",
		Long: `caldavctl talks to a CalDAV server. The account is taken from CALDAV_URL,
CALDAV_USERNAME and CALDAV_PASSWORD (a .env file is read too) unless flags
say otherwise. Calendars are named by id under the calendar home, or by path.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			level := a.cfg.GetLevel()
			if a.debug {
				level = slog.LevelDebug
			}
			a.logger = setupLogger(level)
			if a.url == "" {
				return fmt.Errorf("no server URL: set CALDAV_URL or --url")
			}
			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if !a.metrics {
				return nil
			}
			return a.printMetrics(cmd.ErrOrStderr())
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&a.url, "url", a.cfg.GetURL(), "server or principal URL")
	flags.StringVarP(&a.username, "username", "u", a.cfg.GetUsername(), "user name")
	flags.StringVarP(&a.password, "password", "p", a.cfg.GetPassword(), "password")
	flags.BoolVar(&a.debug, "debug", false, "log every request")
	flags.BoolVar(&a.discover, "discover", false, "locate the service via DNS SRV and /.well-known/caldav")
	flags.BoolVar(&a.metrics, "metrics", false, "print request counters when done")

	root.AddCommand(
		a.principalCmd(),
		a.calendarsCmd(),
		a.mkcalendarCmd(),
		a.eventsCmd(),
		a.todosCmd(),
		a.searchCmd(),
		a.getCmd(),
		a.putCmd(),
		a.rmCmd(),
		a.propsCmd(),
	)
	return root
}

func (a *app) clientConfig() *davclient.Config {
	cfg := davclient.DefaultConfig()
	cfg.BaseURL = a.url
	cfg.Username = a.username
	cfg.Password = a.password
	cfg.HTTPClient = a.httpClient
	cfg.Logger = a.logger
	cfg.Registerer = a.registry
	return cfg
}

// principal connects and resolves the calendar home of the current user.
func (a *app) principal(ctx context.Context) (*davclient.Principal, error) {
	var p *davclient.Principal
	var err error
	if a.discover {
		p, err = davclient.Discover(ctx, a.url, a.clientConfig())
	} else {
		var c *davclient.Client
		if c, err = davclient.NewClient(a.clientConfig()); err == nil {
			p, err = c.Principal()
		}
	}
	if err != nil {
		return nil, fmt.Errorf("can't find principal: %w", err)
	}
	if _, err := p.ResolveCalendarHomeSet(); err != nil {
		return nil, fmt.Errorf("can't find calendar home: %w", err)
	}
	return p, nil
}

// calendar resolves ref as a path or URL when it contains a slash and as an
// id under the calendar home otherwise.
func (a *app) calendar(ctx context.Context, ref string) (*davclient.Calendar, error) {
	p, err := a.principal(ctx)
	if err != nil {
		return nil, err
	}
	if strings.Contains(ref, "/") {
		return p.Client().CalendarAt(ref)
	}
	return p.Calendar("", ref)
}

func (a *app) principalCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "principal",
		Short: "Show the current principal and its calendar home",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := a.principal(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "principal:     %s\n", p)
			fmt.Fprintf(out, "calendar home: %s\n", p.CalendarHomeSet().MustGet())
			return nil
		},
	}
}

func (a *app) calendarsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "calendars",
		Short: "List the calendars in the calendar home",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := a.principal(cmd.Context())
			if err != nil {
				return err
			}
			calendars, err := p.Calendars()
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tNAME\tCOMPONENTS\tURL")
			for _, cal := range calendars {
				if err := cal.Refresh(); err != nil {
					slog.Warn("can't read calendar properties", "url", cal.CanonicalURL(), "error", err)
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", cal.ID, cal.Name, strings.Join(cal.SupportedComponents, ","), cal.CanonicalURL())
			}
			return tw.Flush()
		},
	}
}

func (a *app) mkcalendarCmd() *cobra.Command {
	var id string
	var components []string
	cmd := &cobra.Command{
		Use:   "mkcalendar NAME",
		Short: "Create a calendar",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := a.principal(cmd.Context())
			if err != nil {
				return err
			}
			cal, err := p.MakeCalendar(args[0], id, components...)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), cal.CanonicalURL())
			return nil
		},
	}
	cmd.Flags().StringVar(&id, "id", "", "collection id (generated when empty)")
	cmd.Flags().StringSliceVar(&components, "component", nil, "supported component, e.g. VEVENT (repeatable)")
	return cmd
}

func (a *app) eventsCmd() *cobra.Command {
	var summary, location string
	var categories []string
	var limit int
	cmd := &cobra.Command{
		Use:   "events CALENDAR",
		Short: "List events, optionally filtered by property",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cal, err := a.calendar(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			filter := cal.Objects(davclient.ObjectEvent)
			if summary != "" {
				filter = filter.Summary(summary)
			}
			if location != "" {
				filter = filter.Location(location)
			}
			if len(categories) > 0 {
				filter = filter.Categories(categories...)
			}
			if limit > 0 {
				filter = filter.Limit(limit)
			}
			objects, err := filter.Do()
			if err != nil {
				return err
			}
			return printObjects(cmd.OutOrStdout(), objects)
		},
	}
	cmd.Flags().StringVar(&summary, "summary", "", "match SUMMARY")
	cmd.Flags().StringVar(&location, "location", "", "match LOCATION")
	cmd.Flags().StringSliceVar(&categories, "category", nil, "match CATEGORIES (repeatable)")
	cmd.Flags().IntVar(&limit, "limit", 0, "return at most this many events")
	return cmd
}

func (a *app) todosCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "todos CALENDAR",
		Short: "List pending to-dos",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cal, err := a.calendar(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			todos, err := cal.Todos()
			if err != nil {
				return err
			}
			return printObjects(cmd.OutOrStdout(), todos)
		},
	}
}

func (a *app) searchCmd() *cobra.Command {
	var from, to string
	cmd := &cobra.Command{
		Use:   "search CALENDAR",
		Short: "Find events in a date range",
		Long: `Find events overlapping a date range. --from and --to take RFC 3339 times,
plain dates, or phrases like "next monday". Without --to the range is open.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			start, err := a.parseTime(from)
			if err != nil {
				return fmt.Errorf("can't parse --from: %w", err)
			}
			var end time.Time
			if to != "" {
				if end, err = a.parseTime(to); err != nil {
					return fmt.Errorf("can't parse --to: %w", err)
				}
			}

			cal, err := a.calendar(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			slog.Debug("date search", "calendar", cal.CanonicalURL(), "start", start, "end", end)
			events, err := cal.DateSearch(start, end)
			if err != nil {
				return err
			}
			return printObjects(cmd.OutOrStdout(), events)
		},
	}
	cmd.Flags().StringVar(&from, "from", "today", "start of the range")
	cmd.Flags().StringVar(&to, "to", "", "end of the range")
	return cmd
}

// parseTime accepts RFC 3339, a bare date, or natural language relative to now.
func (a *app) parseTime(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	if t, err := time.ParseInLocation(time.DateOnly, s, time.Local); err == nil {
		return t, nil
	}
	now := a.now()
	if strings.EqualFold(strings.TrimSpace(s), "today") {
		return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location()), nil
	}
	r, err := a.when.Parse(s, now)
	if err != nil {
		return time.Time{}, err
	}
	if r == nil {
		return time.Time{}, fmt.Errorf("no date found in %q", s)
	}
	return r.Time, nil
}

func (a *app) getCmd() *cobra.Command {
	var byUID bool
	cmd := &cobra.Command{
		Use:   "get CALENDAR HREF",
		Short: "Print an object's iCalendar data",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cal, err := a.calendar(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			var obj *davclient.CalendarObject
			if byUID {
				obj, err = cal.EventByUID(args[1])
			} else {
				obj, err = cal.EventByURL(args[1])
			}
			if err != nil {
				return err
			}
			_, err = io.WriteString(cmd.OutOrStdout(), obj.Data())
			return err
		},
	}
	cmd.Flags().BoolVar(&byUID, "uid", false, "treat HREF as an event UID")
	return cmd
}

func (a *app) putCmd() *cobra.Command {
	var todo bool
	var id string
	cmd := &cobra.Command{
		Use:   "put CALENDAR FILE",
		Short: "Store an iCalendar file as an event or to-do (- reads stdin)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var raw []byte
			var err error
			if args[1] == "-" {
				raw, err = io.ReadAll(cmd.InOrStdin())
			} else {
				raw, err = os.ReadFile(args[1])
			}
			if err != nil {
				return err
			}

			cal, err := a.calendar(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			kind := davclient.ObjectEvent
			if todo {
				kind = davclient.ObjectTodo
			}
			obj, err := cal.NewObject(kind, string(raw))
			if err != nil {
				return err
			}
			obj.ID = id
			if err := obj.Save(); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), obj.CanonicalURL())
			return nil
		},
	}
	cmd.Flags().BoolVar(&todo, "todo", false, "store as a to-do")
	cmd.Flags().StringVar(&id, "id", "", "object id (defaults to the UID)")
	return cmd
}

func (a *app) rmCmd() *cobra.Command {
	var byUID bool
	cmd := &cobra.Command{
		Use:   "rm CALENDAR [HREF]",
		Short: "Delete an object, or the calendar itself when HREF is omitted",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cal, err := a.calendar(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if len(args) == 1 {
				return cal.Delete()
			}
			var obj *davclient.CalendarObject
			if byUID {
				obj, err = cal.EventByUID(args[1])
			} else {
				obj, err = cal.EventByURL(args[1])
			}
			if davclient.IsNotFound(err) {
				slog.Info("already gone", "ref", args[1])
				return nil
			}
			if err != nil {
				return err
			}
			return obj.Delete()
		},
	}
	cmd.Flags().BoolVar(&byUID, "uid", false, "treat HREF as an event UID")
	return cmd
}

func (a *app) propsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "props PATH PROPERTY...",
		Short: "Read properties of a collection",
		Long: `Read properties of the collection at PATH. Properties are given bare
(DAV namespace), prefixed (C:calendar-description) or in Clark notation.`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			names := make([]davxml.Name, 0, len(args)-1)
			for _, arg := range args[1:] {
				name, err := davxml.ParseName(arg)
				if err != nil {
					return err
				}
				names = append(names, name)
			}

			p, err := a.principal(cmd.Context())
			if err != nil {
				return err
			}
			target, err := p.Client().CalendarSetAt(args[0])
			if err != nil {
				return err
			}
			values, err := target.GetProperties(names...)
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			for _, name := range names {
				fmt.Fprintf(tw, "%s\t%s\n", name, values[name].OrElse("(not set)"))
			}
			return tw.Flush()
		},
	}
}

func printObjects(w io.Writer, objects []*davclient.CalendarObject) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "UID\tSTART\tSUMMARY\tURL")
	for _, obj := range objects {
		uid, start, summary := describe(obj)
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", uid, start, summary, obj.CanonicalURL())
	}
	return tw.Flush()
}

// describe pulls display fields out of the first event or to-do in obj.
func describe(obj *davclient.CalendarObject) (uid, start, summary string) {
	uid, _ = obj.Representation().UID()
	cal := obj.Instance()
	if cal == nil {
		return uid, "", ""
	}
	for _, comp := range cal.Children {
		if comp.Name != ical.CompEvent && comp.Name != ical.CompToDo {
			continue
		}
		if p := comp.Props.Get(ical.PropSummary); p != nil {
			summary = p.Value
		}
		if p := comp.Props.Get(ical.PropDateTimeStart); p != nil {
			if t, err := p.DateTime(time.Local); err == nil {
				start = t.Format(time.DateTime)
			} else {
				start = p.Value
			}
		}
		return uid, start, summary
	}
	return uid, "", ""
}

// printMetrics writes one line per method and status code seen.
func (a *app) printMetrics(w io.Writer) error {
	families, err := a.registry.Gather()
	if err != nil {
		return err
	}
	var lines []string
	for _, mf := range families {
		if mf.GetName() != "caldav_client_requests_total" {
			continue
		}
		for _, m := range mf.GetMetric() {
			var method, code string
			for _, lp := range m.GetLabel() {
				switch lp.GetName() {
				case "method":
					method = lp.GetValue()
				case "code":
					code = lp.GetValue()
				}
			}
			lines = append(lines, fmt.Sprintf("%-10s %s %.0f", method, code, m.GetCounter().GetValue()))
		}
	}
	sort.Strings(lines)
	for _, line := range lines {
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	return nil
}
