package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"time"

	"github.com/fatih/color"
	"github.com/kikoba/kikoba/infra/initializer"
	"github.com/kikoba/kikoba/infra/sheets"
	"github.com/kikoba/kikoba/pkg/app"
	"github.com/kikoba/kikoba/pkg/config"
	"github.com/kikoba/kikoba/pkg/domain/ledger"
	"github.com/kikoba/kikoba/pkg/service/bulk"
	"golang.org/x/term"
)

const usage = `Usage: cli <command> [arguments]
Commands:
  penalties run                         apply overdue Dharura penalties now
  bulk validate [sheet-range]           validate a spreadsheet import
  bulk commit [sheet-range] [actor]     validate and commit a spreadsheet import
  balances <member-code>                show a member's derived balances`

var errUsage = errors.New(usage)

var (
	ok   = color.New(color.FgGreen).SprintFunc()
	warn = color.New(color.FgYellow).SprintFunc()
	bad  = color.New(color.FgRed).SprintFunc()
	bold = color.New(color.Bold).SprintFunc()
)

func main() {
	color.NoColor = !term.IsTerminal(int(os.Stdout.Fd()))
	if err := run(context.Background(), os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, bad(err))
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return errUsage
	}
	cfg, err := config.Load(".env")
	if err != nil {
		return fmt.Errorf("failed to load application configuration: %w", err)
	}
	deps, cleanup, err := initializer.InitializeDependencies(cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize dependencies: %w", err)
	}
	defer cleanup()

	c := &cli{
		app: app.New(deps),
		out: os.Stdout,
		source: func(ctx context.Context, readRange string) (bulk.Source, error) {
			src, err := sheets.New(ctx, cfg.Sheets, deps.Logger)
			if err != nil {
				return nil, err
			}
			if readRange != "" {
				src = src.WithRange(readRange)
			}
			return src, nil
		},
	}
	return c.dispatch(ctx, args)
}

type cli struct {
	app    *app.App
	out    io.Writer
	source func(ctx context.Context, readRange string) (bulk.Source, error)
}

func (c *cli) dispatch(ctx context.Context, args []string) error {
	switch {
	case len(args) == 2 && args[0] == "penalties" && args[1] == "run":
		return c.penalties(ctx)
	case len(args) >= 2 && args[0] == "bulk" && (args[1] == "validate" || args[1] == "commit"):
		var readRange, actor string
		if len(args) > 2 {
			readRange = args[2]
		}
		actor = "cli"
		if len(args) > 3 {
			actor = args[3]
		}
		return c.bulk(ctx, readRange, actor, args[1] == "validate")
	case len(args) == 2 && args[0] == "balances":
		return c.balances(ctx, args[1])
	default:
		return errUsage
	}
}

func (c *cli) penalties(ctx context.Context) error {
	res, err := c.app.PenaltyService.Run(ctx, c.now())
	if err != nil {
		return fmt.Errorf("penalty run failed: %w", err)
	}
	fmt.Fprintf(c.out, "Penalty run %s\n", bold(res.RunID))
	fmt.Fprintf(c.out, "  candidates: %d\n  applied:    %s\n  skipped:    %s\n",
		res.Candidates, ok(res.Applied), warn(res.Skipped))
	for _, id := range res.PenalizedIDs {
		fmt.Fprintf(c.out, "  penalized %s\n", id)
	}
	return nil
}

func (c *cli) bulk(ctx context.Context, readRange, actor string, dryRun bool) error {
	src, err := c.source(ctx, readRange)
	if err != nil {
		return err
	}
	report, res, err := c.app.BulkService.ImportFrom(ctx, src, actor, dryRun)
	if report != nil {
		c.printReport(report)
	}
	if err != nil {
		return err
	}
	if res == nil {
		return nil
	}
	fmt.Fprintf(c.out, "Committed %s rows\n", ok(len(res.Committed)))
	for _, f := range res.Failures {
		fmt.Fprintf(c.out, "  %s line %d (%s): %s\n", bad("failed"), f.Line, f.MemberCode, f.Error)
	}
	return nil
}

func (c *cli) printReport(r *bulk.Report) {
	fmt.Fprintf(c.out, "%d rows: %s valid, %s invalid, %s duplicates\n",
		r.Total, ok(len(r.Valid)), bad(len(r.Invalid)), warn(len(r.Duplicates)))
	for _, e := range r.Invalid {
		for _, msg := range e.Errors {
			fmt.Fprintf(c.out, "  %s line %d %s: %s\n", bad("invalid"), e.Line, e.MemberCode, msg)
		}
	}
	for _, d := range r.Duplicates {
		fmt.Fprintf(c.out, "  %s line %d %s: %s\n", warn("duplicate"), d.Line, d.MemberCode, d.Warning)
	}
}

func (c *cli) balances(ctx context.Context, code string) error {
	m, err := c.app.MemberService.GetByCode(ctx, code)
	if err != nil {
		return err
	}
	b, err := c.app.LedgerService.Balances(ctx, m.ID)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.out, "%s %s\n", bold(m.Code), m.DisplayName)
	for _, cat := range []ledger.Category{ledger.CategoryStandard, ledger.CategoryDharura} {
		bal := b.Loans[cat]
		outstanding := ok(bal.Outstanding.String())
		if bal.Outstanding.IsPositive() {
			outstanding = warn(bal.Outstanding.String())
		} else if bal.Outstanding.IsNegative() {
			outstanding = bad(bal.Outstanding.String())
		}
		fmt.Fprintf(c.out, "  %-9s borrowed %s  repaid %s  outstanding %s\n", cat, bal.Borrowed, bal.Repaid, outstanding)
	}
	cats := make([]string, 0, len(b.Contributions))
	for cat := range b.Contributions {
		cats = append(cats, string(cat))
	}
	sort.Strings(cats)
	for _, cat := range cats {
		fmt.Fprintf(c.out, "  %-9s contributed %s\n", cat, b.Contributions[ledger.Category(cat)])
	}
	return nil
}

func (c *cli) now() time.Time { return time.Now().UTC() }
