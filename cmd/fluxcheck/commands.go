package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"

	"github.com/jllopis/fluxcheck/pkg/jobspec"
	"github.com/jllopis/fluxcheck/pkg/mcp"
	"github.com/jllopis/fluxcheck/pkg/validate"
)

// report is the CLI view of a validation result, local or remote.
type report struct {
	File    string      `json:"file,omitempty"`
	Format  string      `json:"format,omitempty"`
	Jobspec interface{} `json:"jobspec"`
	Errors  []string    `json:"errors"`
	Valid   bool        `json:"valid"`
}

type validateCommand struct {
	app *app

	FailFast bool   `long:"fail-fast" description:"Stop at the first error in each file (local only)"`
	MaxDepth int    `long:"max-depth" description:"Maximum resource nesting depth (local only, default from config)"`
	Remote   string `long:"remote" value-name:"URL" description:"Validate through a fluxcheck MCP server, e.g. http://localhost:8089/mcp"`
}

func (c *validateCommand) Execute(args []string) error {
	if len(args) == 0 {
		args = []string{"-"}
	}

	var (
		remote *mcp.Client
		v      *validate.Validator
	)
	if c.Remote != "" {
		// The remote server validates with its own settings.
		if c.FailFast || c.MaxDepth > 0 {
			return NewInvalidArgumentError("--remote", "--fail-fast and --max-depth only apply to local validation")
		}
		cl, err := c.app.dial(c.Remote)
		if err != nil {
			return err
		}
		defer cl.Close()
		remote = cl
	} else {
		mode := ""
		if c.FailFast {
			mode = jobspec.FailFast.String()
		}
		local, err := c.app.newValidator(c.app.cfg, mode, c.MaxDepth)
		if err != nil {
			return err
		}
		v = local
	}

	reports := make([]report, 0, len(args))
	for _, name := range args {
		content, err := c.app.readInput(name)
		if err != nil {
			return err
		}
		r := report{File: name}
		if remote != nil {
			ctx, cancel := c.app.timeoutContext()
			res, err := remote.Validate(ctx, content)
			cancel()
			if err != nil {
				return WrapConnectionError(err, c.Remote)
			}
			r.Jobspec, r.Errors, r.Valid = res.Jobspec, res.Errors, res.Valid
		} else {
			res := v.Validate(c.app.ctx, content)
			r.Format = res.Format.String()
			r.Jobspec, r.Errors, r.Valid = res.Jobspec, res.Errors, res.Valid
		}
		reports = append(reports, r)
	}

	if c.app.opts.JSON {
		enc := json.NewEncoder(c.app.stdout)
		enc.SetIndent("", "  ")
		var err error
		if len(reports) == 1 {
			r := reports[0]
			r.File = ""
			err = enc.Encode(r)
		} else {
			err = enc.Encode(reports)
		}
		if err != nil {
			return err
		}
	} else {
		for _, r := range reports {
			printReport(c.app.stdout, r)
		}
	}

	for _, r := range reports {
		if !r.Valid {
			return &exitError{code: 1}
		}
	}
	return nil
}

func printReport(w io.Writer, r report) {
	status := "valid"
	if !r.Valid {
		status = "invalid"
	}
	if r.Format != "" {
		fmt.Fprintf(w, "%s: %s (%s)\n", r.File, status, r.Format)
	} else {
		fmt.Fprintf(w, "%s: %s\n", r.File, status)
	}
	for _, e := range r.Errors {
		fmt.Fprintf(w, "  %s\n", e)
	}
}

type countCommand struct {
	app *app

	Totals bool   `long:"totals" description:"Aggregate counts per resource type, multiplied through ancestors"`
	Remote string `long:"remote" value-name:"URL" description:"Count through a fluxcheck MCP server"`
}

func (c *countCommand) Execute(args []string) error {
	if len(args) > 1 {
		return NewInvalidArgumentError("FILE", "count takes a single file")
	}
	name := "-"
	if len(args) == 1 {
		name = args[0]
	}
	content, err := c.app.readInput(name)
	if err != nil {
		return err
	}

	if c.Remote != "" {
		if c.Totals {
			return NewInvalidArgumentError("--remote", "--totals only applies to local counting")
		}
		return c.remote(content)
	}

	v, err := c.app.newValidator(c.app.cfg, "", 0)
	if err != nil {
		return err
	}
	counts, res := v.Count(c.app.ctx, content)
	if !res.Valid {
		fmt.Fprintln(c.app.stderr, "The jobspec is invalid:")
		for _, e := range res.Errors {
			fmt.Fprintf(c.app.stderr, "  %s\n", e)
		}
		return &exitError{code: 1}
	}
	if !res.Format.IsJobspec() {
		return NewInvalidArgumentError("FILE", fmt.Sprintf("%s is a %s script and carries no resource tree", name, res.Format))
	}

	if c.app.opts.JSON {
		enc := json.NewEncoder(c.app.stdout)
		enc.SetIndent("", "  ")
		if c.Totals {
			return enc.Encode(jobspec.Totals(counts))
		}
		return enc.Encode(counts)
	}

	if c.Totals {
		for _, t := range jobspec.Totals(counts) {
			fmt.Fprintf(c.app.stdout, "Type: %s, total: %d\n", t.Kind, t.Total)
		}
		return nil
	}
	return validate.FormatCounts(c.app.stdout, counts)
}

func (c *countCommand) remote(content string) error {
	cl, err := c.app.dial(c.Remote)
	if err != nil {
		return err
	}
	defer cl.Close()

	ctx, cancel := c.app.timeoutContext()
	defer cancel()
	text, err := cl.Count(ctx, content)
	if err != nil {
		fmt.Fprintln(c.app.stderr, err)
		return &exitError{code: 1}
	}
	fmt.Fprintln(c.app.stdout, text)
	return nil
}

// readInput returns the content of name, or stdin when name is "-".
func (a *app) readInput(name string) (string, error) {
	if name == "-" {
		data, err := io.ReadAll(a.stdin)
		if err != nil {
			return "", NewInvalidArgumentError("stdin", err.Error())
		}
		return string(data), nil
	}
	data, err := os.ReadFile(name)
	if errors.Is(err, fs.ErrNotExist) {
		return "", NewNotFoundError("file", name)
	}
	if err != nil {
		return "", NewInvalidArgumentError(name, err.Error())
	}
	return string(data), nil
}

func (a *app) dial(url string) (*mcp.Client, error) {
	cl, err := mcp.NewClientWithStreamableHTTP(url, mcp.WithTimeout(a.opts.Timeout))
	if err != nil {
		return nil, WrapConnectionError(err, url)
	}
	return cl, nil
}
