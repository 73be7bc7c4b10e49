// Copyright 2026 © The fluxcheck Authors
// SPDX-License-Identifier: Apache-2.0

// Package batch validates #FLUX: directives embedded in batch scripts.
package batch

import (
	"bufio"
	"fmt"
	"strconv"
	"strings"

	"github.com/jessevdk/go-flags"

	errs "github.com/jllopis/fluxcheck/pkg/errors"
	"github.com/jllopis/fluxcheck/pkg/jobspec"
)

// Prefix marks a directive line.
const Prefix = "#FLUX:"

// Directive is a single option parsed from a directive line. Flag is the
// option as written (-N, --output); Value is empty for switches.
type Directive struct {
	Flag  string `json:"flag"`
	Value string `json:"value,omitempty"`
	Line  int    `json:"line"`
	Known bool   `json:"known"`
}

func (d Directive) String() string {
	if d.Value == "" {
		return d.Flag
	}
	return d.Flag + "=" + d.Value
}

// IsDirective reports whether a script line carries a directive.
func IsDirective(line string) bool {
	return strings.HasPrefix(line, Prefix)
}

// HasDirectives reports whether any line of content is a directive.
func HasDirectives(content string) bool {
	for _, line := range strings.Split(content, "\n") {
		if IsDirective(line) {
			return true
		}
	}
	return false
}

// Validate scans a batch script and validates every directive line.
// Ordinary script lines are ignored. In collect-all mode one error is
// reported per offending option across the whole script.
func Validate(content string, mode jobspec.Mode) ([]Directive, errs.List) {
	var (
		out  []Directive
		list errs.List
	)
	sc := bufio.NewScanner(strings.NewReader(content))
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	lineno := 0
	for sc.Scan() {
		lineno++
		line := strings.TrimRight(sc.Text(), "\r")
		if !IsDirective(line) {
			continue
		}
		dirs, lineErrs := ParseLine(line, lineno)
		out = append(out, dirs...)
		for _, e := range lineErrs {
			list = append(list, e)
			if mode == jobspec.FailFast {
				return out, list
			}
		}
	}
	if err := sc.Err(); err != nil {
		list = append(list, errs.New(errs.CodeSyntax, "failed to read batch script", err).At(lineno+1, 0))
	}
	return out, list
}

// ParseLine parses one directive line. Unknown flags, stray arguments and
// bad values are returned as errors; known and unknown options are both
// returned as directives.
func ParseLine(line string, lineno int) ([]Directive, errs.List) {
	body := strings.TrimPrefix(line, Prefix)
	words, err := splitWords(body)
	if err != nil {
		return nil, errs.List{errs.New(errs.CodeSyntax, "malformed directive", err).At(lineno, 1)}
	}
	if len(words) == 0 {
		return nil, errs.List{errs.Newf(errs.CodeSyntax, "empty directive").At(lineno, 1)}
	}

	var opts submitOptions
	p := newParser(&opts)

	dirs, list := scan(p, words, lineno)
	if _, err := p.ParseArgs(words); err != nil {
		list = append(list, flagError(err, lineno))
		return dirs, list
	}
	for _, d := range dirs {
		if !d.Known {
			continue
		}
		if e := checkValue(p, d); e != nil {
			list = append(list, e)
		}
	}
	return dirs, list
}

// scan walks the words the way go-flags does and records each option as
// written, so unknown flags can be reported individually.
func scan(p *flags.Parser, words []string, lineno int) ([]Directive, errs.List) {
	var (
		dirs []Directive
		list errs.List
	)
	unknown := func(flag string) {
		list = append(list, errs.Newf(errs.CodeSemantic, "unrecognized directive flag %q", flag).
			WithContext("flag", flag).
			At(lineno, 1))
	}

	for i := 0; i < len(words); i++ {
		w := words[i]
		switch {
		case w == "--":
			for _, rest := range words[i+1:] {
				list = append(list, errs.Newf(errs.CodeSemantic, "unexpected argument %q in directive", rest).At(lineno, 1))
			}
			return dirs, list

		case strings.HasPrefix(w, "--"):
			name, value, hasValue := strings.Cut(w[2:], "=")
			d := Directive{Flag: "--" + name, Value: value, Line: lineno}
			opt := p.FindOptionByLongName(name)
			d.Known = opt != nil
			if !hasValue && (opt == nil || takesValue(opt)) && i+1 < len(words) && !looksLikeOption(words[i+1]) {
				i++
				d.Value = words[i]
			}
			if !d.Known {
				unknown(d.Flag)
			}
			dirs = append(dirs, d)

		case strings.HasPrefix(w, "-") && len(w) > 1 && !isNumber(w):
			cluster := []rune(w[1:])
			for j := 0; j < len(cluster); j++ {
				d := Directive{Flag: "-" + string(cluster[j]), Line: lineno}
				opt := p.FindOptionByShortName(cluster[j])
				if opt == nil {
					d.Value = string(cluster[j+1:])
					if d.Value == "" && i+1 < len(words) && !looksLikeOption(words[i+1]) {
						i++
						d.Value = words[i]
					}
					unknown(d.Flag)
					dirs = append(dirs, d)
					break
				}
				d.Known = true
				if takesValue(opt) {
					if rest := string(cluster[j+1:]); rest != "" {
						d.Value = rest
					} else if i+1 < len(words) && !looksLikeOption(words[i+1]) {
						i++
						d.Value = words[i]
					}
					dirs = append(dirs, d)
					break
				}
				dirs = append(dirs, d)
			}

		default:
			list = append(list, errs.Newf(errs.CodeSemantic, "unexpected argument %q in directive", w).At(lineno, 1))
		}
	}
	return dirs, list
}

func checkValue(p *flags.Parser, d Directive) *errs.ValidationError {
	opt := findOption(p, d.Flag)
	if opt == nil {
		return nil
	}
	switch name := opt.LongName; {
	case positiveFlags[name]:
		if v, err := strconv.Atoi(d.Value); err == nil && v < 1 {
			return errs.Newf(errs.CodeSemantic, "directive %s must be >= 1, got %d", d.Flag, v).At(d.Line, 1)
		}
	case name == "urgency":
		if v, err := strconv.Atoi(d.Value); err == nil && (v < 0 || v > maxUrgency) {
			return errs.Newf(errs.CodeSemantic, "directive %s must be between 0 and %d, got %d", d.Flag, maxUrgency, v).At(d.Line, 1)
		}
	case name == "time-limit":
		if _, err := jobspec.ParseDuration(d.Value); err != nil {
			return errs.New(errs.CodeSemantic, fmt.Sprintf("directive %s has an invalid time limit", d.Flag), err).At(d.Line, 1)
		}
	}
	return nil
}

func flagError(err error, lineno int) *errs.ValidationError {
	msg := err.Error()
	if fe, ok := err.(*flags.Error); ok {
		msg = fe.Message
	}
	return errs.Newf(errs.CodeSemantic, "invalid directive: %s", msg).At(lineno, 1)
}

func findOption(p *flags.Parser, flag string) *flags.Option {
	if strings.HasPrefix(flag, "--") {
		return p.FindOptionByLongName(flag[2:])
	}
	r := []rune(strings.TrimPrefix(flag, "-"))
	if len(r) != 1 {
		return nil
	}
	return p.FindOptionByShortName(r[0])
}

func takesValue(opt *flags.Option) bool {
	switch opt.Value().(type) {
	case bool, []bool:
		return false
	}
	return true
}

func looksLikeOption(w string) bool {
	return strings.HasPrefix(w, "-") && len(w) > 1 && !isNumber(w)
}

func isNumber(w string) bool {
	_, err := strconv.ParseFloat(w, 64)
	return err == nil
}
