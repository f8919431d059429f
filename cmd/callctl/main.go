package main

// callctl submits recordings for analysis and browses call records:
//   go run ./cmd/callctl signin --email agent@example.com
//   go run ./cmd/callctl analyze ./recording.wav
//   go run ./cmd/callctl calls --status completed

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/mattn/go-isatty"
	"go.uber.org/zap"

	"callcenter-backend/internal/analysisclient"
	"callcenter-backend/internal/calls"
	"callcenter-backend/internal/cli"
	"callcenter-backend/internal/reconciler"
	"callcenter-backend/internal/shared/storage/db"
	"callcenter-backend/internal/shared/telemetry"
)

const usage = `usage: callctl [--config path] [--verbose] <command> [flags]

commands:
  analyze <file>   submit a recording and wait for its analysis
  calls            list call records
  stats            show dashboard counters
  signin           sign in and remember the session
  signout          revoke the saved session
  whoami           show the saved session
`

const (
	exitOK       = 0
	exitFailed   = 1
	exitUsage    = 2
	exitCanceled = 130
)

type app struct {
	stdin       io.Reader
	stdout      io.Writer
	stderr      io.Writer
	interactive bool
	configPath  string
	cfg         cli.Config
}

func main() {
	interactive := isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd())
	a := &app{stdin: os.Stdin, stdout: os.Stdout, stderr: os.Stderr, interactive: interactive}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := a.run(ctx, os.Args[1:])
	stop()
	telemetry.Sync()
	os.Exit(code)
}

func (a *app) run(ctx context.Context, args []string) int {
	root := flag.NewFlagSet("callctl", flag.ContinueOnError)
	root.SetOutput(a.stderr)
	root.Usage = func() { fmt.Fprint(a.stderr, usage) }
	configPath := root.String("config", "", "config file (default ~/.config/callctl/config.yaml)")
	verbose := root.Bool("verbose", false, "log to stderr")
	if err := root.Parse(args); err != nil {
		return exitUsage
	}
	if root.NArg() == 0 {
		root.Usage()
		return exitUsage
	}

	if *verbose {
		restore := telemetry.SetLogger(newStderrLogger())
		defer restore()
	} else {
		restore := telemetry.SetLogger(zap.NewNop())
		defer restore()
	}

	if err := a.loadConfig(*configPath); err != nil {
		fmt.Fprintln(a.stderr, err)
		return exitFailed
	}

	cmd, rest := root.Arg(0), root.Args()[1:]
	switch cmd {
	case "analyze":
		return a.analyze(ctx, rest)
	case "calls":
		return a.listCalls(ctx, rest)
	case "stats":
		return a.stats(ctx)
	case "signin":
		return a.signIn(ctx, rest)
	case "signout":
		return a.signOut(ctx)
	case "whoami":
		return a.whoami(ctx)
	default:
		fmt.Fprintf(a.stderr, "unknown command %q\n", cmd)
		root.Usage()
		return exitUsage
	}
}

func (a *app) loadConfig(path string) error {
	if path == "" {
		def, err := cli.DefaultConfigPath()
		if err != nil {
			return err
		}
		path = def
	}
	cfg, err := cli.LoadConfig(path)
	if err != nil {
		return err
	}
	cfg.ApplyEnv()
	a.configPath = path
	a.cfg = cfg
	return nil
}

func (a *app) api() *cli.APIClient {
	return cli.NewAPIClient(a.cfg.APIURL, a.cfg.Token)
}

func (a *app) analyze(ctx context.Context, args []string) int {
	fs := flag.NewFlagSet("analyze", flag.ContinueOnError)
	fs.SetOutput(a.stderr)
	name := fs.String("name", "", "call name")
	personnelID := fs.String("personnel", a.cfg.PersonnelID, "personnel id to file the call under")
	requestID := fs.String("request-id", "", "reuse a request id instead of generating one")
	endpoint := fs.String("endpoint", a.cfg.AnalysisEndpoint, "analysis endpoint URL")
	databaseURL := fs.String("database-url", "", "look results up in this database instead of the API")
	plain := fs.Bool("plain", false, "print line-by-line progress instead of the live view")
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(a.stderr, "usage: callctl analyze [flags] <file>")
		return exitUsage
	}
	path := fs.Arg(0)

	submitter, err := analysisclient.New(*endpoint)
	if err != nil {
		fmt.Fprintln(a.stderr, "analyze: set analysis_endpoint in the config or pass --endpoint")
		return exitUsage
	}

	finder, closeFinder, err := a.finder(ctx, *databaseURL)
	if err != nil {
		fmt.Fprintf(a.stderr, "analyze: %v\n", err)
		return exitFailed
	}
	defer closeFinder()

	f, err := os.Open(path)
	if err != nil {
		fmt.Fprintf(a.stderr, "analyze: %v\n", err)
		return exitFailed
	}
	defer f.Close()
	if info, err := f.Stat(); err == nil && info.IsDir() {
		fmt.Fprintf(a.stderr, "analyze: %s is a directory\n", path)
		return exitFailed
	}

	job := reconciler.Job{
		RequestID:   *requestID,
		FileName:    filepath.Base(path),
		Audio:       f,
		PersonnelID: *personnelID,
		CallName:    *name,
	}
	if job.RequestID == "" {
		job.RequestID = reconciler.NewRequestID()
	}

	opts := []reconciler.Option{
		reconciler.WithMaxAttempts(a.cfg.MaxAttempts),
		reconciler.WithInterval(a.cfg.Interval),
	}

	var out reconciler.Outcome
	if a.interactive && !*plain {
		view := cli.NewProgressView(job.FileName, a.stdout)
		rec := reconciler.New(submitter, finder, append(opts, reconciler.WithPresenter(view))...)
		out, err = view.Follow(ctx, func(ctx context.Context) (reconciler.Outcome, error) {
			return rec.Run(ctx, job)
		})
	} else {
		rec := reconciler.New(submitter, finder, append(opts, reconciler.WithPresenter(cli.PlainPresenter{W: a.stdout}))...)
		out, err = rec.Run(ctx, job)
	}

	switch {
	case out.State == reconciler.StateCanceled:
		return exitCanceled
	case err != nil:
		return exitFailed
	}
	return exitOK
}

// finder reads the call store directly when a database URL is given and
// goes through the API otherwise.
func (a *app) finder(ctx context.Context, databaseURL string) (reconciler.Finder, func(), error) {
	if databaseURL == "" {
		if a.cfg.Token == "" {
			fmt.Fprintln(a.stderr, "warning: not signed in; results can only be recovered from a direct response")
		}
		return a.api(), func() {}, nil
	}
	sqlDB, err := db.Connect(ctx, databaseURL, db.DefaultOptions(db.ProfileCLI).WithEnv())
	if err != nil {
		return nil, nil, fmt.Errorf("connect database: %w", err)
	}
	return reconciler.RepoFinder(&calls.PGRepo{DB: sqlDB}), func() { _ = sqlDB.Close() }, nil
}

func (a *app) listCalls(ctx context.Context, args []string) int {
	fs := flag.NewFlagSet("calls", flag.ContinueOnError)
	fs.SetOutput(a.stderr)
	status := fs.String("status", "", "completed, in_progress or cancelled")
	limit := fs.Int("limit", calls.DefaultListLimit, "page size")
	offset := fs.Int("offset", 0, "page offset")
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}
	if *status != "" && !calls.Status(*status).Valid() {
		fmt.Fprintf(a.stderr, "calls: unknown status %q\n", *status)
		return exitUsage
	}

	page, err := a.api().ListCalls(ctx, calls.Status(*status), *limit, *offset)
	if err != nil {
		return a.apiFailure("calls", err)
	}
	if len(page.Items) == 0 {
		fmt.Fprintln(a.stdout, "no calls")
		return exitOK
	}

	tw := tabwriter.NewWriter(a.stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "CALLED\tNAME\tSTATUS\tSCORE\tDURATION\tREQUEST")
	for _, c := range page.Items {
		score := "-"
		if c.Score != nil {
			score = fmt.Sprintf("%.1f", *c.Score)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			c.CalledAt.Local().Format("2006-01-02 15:04"),
			c.Name,
			c.Status,
			score,
			(time.Duration(c.DurationSeconds) * time.Second).String(),
			c.RequestID,
		)
	}
	_ = tw.Flush()
	return exitOK
}

func (a *app) stats(ctx context.Context) int {
	st, err := a.api().Stats(ctx)
	if err != nil {
		return a.apiFailure("stats", err)
	}
	fmt.Fprintf(a.stdout, "Total calls:     %d\n", st.TotalCalls)
	fmt.Fprintf(a.stdout, "Completed:       %d\n", st.CompletedCalls)
	fmt.Fprintf(a.stdout, "Today:           %d\n", st.TodayCalls)
	fmt.Fprintf(a.stdout, "Average score:   %.1f\n", st.AvgScore)
	if st.ActivePersonnel != nil {
		fmt.Fprintf(a.stdout, "Active staff:    %d\n", *st.ActivePersonnel)
	}
	return exitOK
}

func (a *app) signIn(ctx context.Context, args []string) int {
	fs := flag.NewFlagSet("signin", flag.ContinueOnError)
	fs.SetOutput(a.stderr)
	email := fs.String("email", "", "account email")
	password := fs.String("password", os.Getenv("CALLCTL_PASSWORD"), "password (or CALLCTL_PASSWORD, or read from stdin)")
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}
	if *email == "" {
		fmt.Fprintln(a.stderr, "signin: --email is required")
		return exitUsage
	}
	if *password == "" {
		line, err := bufio.NewReader(a.stdin).ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			fmt.Fprintf(a.stderr, "signin: read password: %v\n", err)
			return exitFailed
		}
		*password = strings.TrimRight(line, "\r\n")
	}

	res, err := cli.NewAPIClient(a.cfg.APIURL, "").SignIn(ctx, *email, *password)
	if err != nil {
		return a.apiFailure("signin", err)
	}
	a.cfg.Token = res.Token
	if res.Personnel != nil {
		a.cfg.PersonnelID = res.Personnel.ID
	}
	if err := cli.SaveConfig(a.configPath, a.cfg); err != nil {
		fmt.Fprintf(a.stderr, "signin: %v\n", err)
		return exitFailed
	}
	fmt.Fprintf(a.stdout, "signed in as %s\n", res.Account.Email)
	return exitOK
}

func (a *app) signOut(ctx context.Context) int {
	if a.cfg.Token == "" {
		fmt.Fprintln(a.stdout, "not signed in")
		return exitOK
	}
	if err := a.api().SignOut(ctx); err != nil && !cli.IsUnauthorized(err) {
		return a.apiFailure("signout", err)
	}
	a.cfg.Token = ""
	if err := cli.SaveConfig(a.configPath, a.cfg); err != nil {
		fmt.Fprintf(a.stderr, "signout: %v\n", err)
		return exitFailed
	}
	fmt.Fprintln(a.stdout, "signed out")
	return exitOK
}

func (a *app) whoami(ctx context.Context) int {
	info, err := a.api().Session(ctx)
	if err != nil {
		return a.apiFailure("whoami", err)
	}
	if !info.Authenticated {
		fmt.Fprintln(a.stdout, "not signed in")
		return exitOK
	}
	role := "agent"
	if info.Manager {
		role = "manager"
	}
	fmt.Fprintf(a.stdout, "%s (%s) personnel=%s\n", info.Email, role, info.PersonnelID)
	return exitOK
}

func (a *app) apiFailure(cmd string, err error) int {
	if cli.IsUnauthorized(err) {
		fmt.Fprintf(a.stderr, "%s: not signed in or session expired; run callctl signin\n", cmd)
		return exitFailed
	}
	fmt.Fprintf(a.stderr, "%s: %v\n", cmd, err)
	return exitFailed
}

func newStderrLogger() *zap.Logger {
	cfg := zap.NewDevelopmentConfig()
	cfg.OutputPaths = []string{"stderr"}
	cfg.DisableStacktrace = true
	l, err := cfg.Build()
	if err != nil {
		return zap.NewNop()
	}
	return l
}
