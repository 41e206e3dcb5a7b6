package commands

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/hireloop/gatekeeper/internal/routes"
)

type ClassifyCmd struct {
	RoutesFile string   `help:"YAML route table, built-in table when empty" default:"" env:"GATEKEEPER_ROUTES_FILE"`
	Paths      []string `arg:"" help:"request paths to classify"`

	out io.Writer `kong:"-"`
}

func (c *ClassifyCmd) Run(ctx context.Context, globals *Globals) error {
	table := routes.Default()
	if c.RoutesFile != "" {
		var err error
		table, err = routes.Load(c.RoutesFile)
		if err != nil {
			return fmt.Errorf("failed to load routes: %w", err)
		}
	}

	tw := tabwriter.NewWriter(output(c.out), 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "PATH\tCLASS\tSESSION")
	for _, path := range c.Paths {
		class := table.Classify(path)
		fmt.Fprintf(tw, "%s\t%s\t%s\n", path, class, yesNo(class.RequiresSession()))
	}

	return tw.Flush()
}
