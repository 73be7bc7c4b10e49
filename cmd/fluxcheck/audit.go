package main

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/jllopis/fluxcheck/pkg/audit"
)

type auditCommand struct {
	List auditListCommand `command:"list" description:"List recorded tool calls"`
}

type auditListCommand struct {
	app *app

	Tool    string        `long:"tool" description:"Only show calls to this tool"`
	Invalid bool          `long:"invalid" description:"Only show calls that found errors"`
	Since   time.Duration `long:"since" description:"Only show calls newer than this, e.g. 24h"`
	Limit   int           `long:"limit" default:"50" description:"Maximum number of events"`
}

func (c *auditListCommand) Execute([]string) error {
	a := c.app
	if a.cfg.Audit.Path == "" {
		return NewInvalidArgumentError("audit.path", "audit.path is not set; in-memory audit logs are not readable from the CLI")
	}
	store, err := audit.OpenSQLite(a.cfg.Audit.Path)
	if err != nil {
		return NewConfigError(err, a.opts.Config)
	}
	defer store.Close()

	filter := audit.Filter{Tool: c.Tool, Limit: c.Limit}
	if c.Invalid {
		valid := false
		filter.Valid = &valid
	}
	if c.Since > 0 {
		filter.Since = time.Now().Add(-c.Since)
	}
	events, err := store.List(a.ctx, filter)
	if err != nil {
		return err
	}

	if a.opts.JSON {
		if events == nil {
			events = []audit.Event{}
		}
		enc := json.NewEncoder(a.stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(events)
	}

	tw := tabwriter.NewWriter(a.stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "TIME\tTOOL\tFORMAT\tVALID\tERRORS\tSOURCE")
	for _, ev := range events {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%t\t%d\t%s\n",
			ev.RecordedAt.Format(time.RFC3339), ev.Tool, ev.Format, ev.Valid, len(ev.Errors), ev.Source)
	}
	return tw.Flush()
}
