package cmd

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/google/subcommands"

	"exposureflow/chain"
	"exposureflow/render"
)

// chainCmd prints the option chain around the spot price for one symbol and
// expiry. Without an expiry it lists the expirations available.
type chainCmd struct {
	symbol string
	expiry string
}

func (*chainCmd) Name() string     { return "chain" }
func (*chainCmd) Synopsis() string { return "display the option chain around the spot price" }
func (*chainCmd) Usage() string {
	return `exposureflow chain -symbol <ticker> [-expiry <yyyymmdd>]

  Fetches the option chain for the underlying and prints call and put rows
  for the strikes around the current price. Without -expiry the available
  expirations are listed.
`
}

func (c *chainCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.symbol, "symbol", "", "underlying ticker symbol")
	f.StringVar(&c.expiry, "expiry", "", "option expiry (yyyymmdd)")
}

func (c *chainCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	c.symbol = strings.ToUpper(strings.TrimSpace(c.symbol))
	if c.symbol == "" {
		fmt.Fprintln(os.Stderr, "Error: -symbol is required")
		return subcommands.ExitUsageError
	}

	cfg, prov, err := loadApp()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}

	browser, err := chain.NewBrowser(cfg, prov)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}

	if c.expiry == "" {
		params, err := browser.Expirations(ctx, c.symbol)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error fetching chain parameters: %v\n", err)
			return subcommands.ExitFailure
		}
		fmt.Printf("Expirations for %s:\n", c.symbol)
		for _, expiry := range params.Expirations {
			fmt.Printf("  %s\n", expiry)
		}
		return subcommands.ExitSuccess
	}

	view, err := browser.View(ctx, c.symbol, c.expiry)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error fetching chain: %v\n", err)
		return subcommands.ExitFailure
	}

	fmt.Print(render.ChainMarkdown(view, "USD"))
	return subcommands.ExitSuccess
}
