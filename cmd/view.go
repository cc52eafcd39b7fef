package cmd

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/google/subcommands"

	"exposureflow/poller"
	"exposureflow/render"
)

// viewCmd runs a single aggregation pass and prints the exposure table and
// account summary.
type viewCmd struct {
	exposureOnly bool
}

func (*viewCmd) Name() string     { return "view" }
func (*viewCmd) Synopsis() string { return "run one exposure pass and print the tables" }
func (*viewCmd) Usage() string {
	return `exposureflow view [-exposure-only]

  Reads positions, quotes and account totals from the configured backend,
  runs one aggregation pass and prints the exposure and summary tables.
`
}

func (c *viewCmd) SetFlags(f *flag.FlagSet) {
	f.BoolVar(&c.exposureOnly, "exposure-only", false, "skip the account summary table")
}

func (c *viewCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	cfg, prov, err := loadApp()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}

	report, err := poller.NewPoller(cfg, prov, nil).RunOnce(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error running exposure pass: %v\n", err)
		return subcommands.ExitFailure
	}

	currency := reportCurrency(report)
	fmt.Print(render.ExposureMarkdown(report, currency))
	if !c.exposureOnly {
		fmt.Println()
		fmt.Print(render.SummaryMarkdown(report.Metrics, currency))
	}
	return subcommands.ExitSuccess
}
