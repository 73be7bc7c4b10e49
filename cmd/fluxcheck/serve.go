// Copyright 2026 © The fluxcheck Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"sync/atomic"

	"github.com/jllopis/fluxcheck/pkg/audit"
	"github.com/jllopis/fluxcheck/pkg/config"
	"github.com/jllopis/fluxcheck/pkg/mcp"
	"github.com/jllopis/fluxcheck/pkg/validate"
)

type serveCommand struct {
	app *app

	Transport string `long:"transport" choice:"stdio" choice:"http" description:"MCP transport (default from server.transport)"`
	Addr      string `long:"addr" description:"Listen address for the http transport (default from server.addr)"`
	Watch     bool   `long:"watch" description:"Reload validation settings when the config file changes"`
}

func (c *serveCommand) Execute(args []string) error {
	if len(args) > 0 {
		return NewInvalidArgumentError(args[0], "serve takes no positional arguments")
	}
	a := c.app
	cfg := a.cfg

	var current atomic.Pointer[validate.Validator]
	v, err := a.newValidator(cfg, "", 0)
	if err != nil {
		return err
	}
	current.Store(v)

	if c.Watch {
		w, err := config.NewWatcher(a.configArgs(), config.WithWatchLogger(a.logger))
		if err != nil {
			return NewConfigError(err, a.opts.Config)
		}
		w.OnChange(func(next *config.Config) {
			nv, err := a.newValidator(next, "", 0)
			if err != nil {
				a.logger.Warn("ignoring config reload", "error", err)
				return
			}
			current.Store(nv)
			a.logger.Info("validation settings reloaded", "mode", nv.Mode().String())
		})
		w.Start(a.ctx)
		defer w.Stop()
	}

	store, closeStore, err := openAudit(cfg.Audit)
	if err != nil {
		return NewConfigError(err, a.opts.Config)
	}
	defer closeStore()

	srv := mcp.NewServer(cfg.Server.Name, version,
		mcp.WithServerLogger(a.logger),
		mcp.WithServerMetrics(a.metrics),
	)
	toolOpts := []mcp.ToolsOption{mcp.WithToolsLogger(a.logger)}
	if store != nil {
		toolOpts = append(toolOpts, mcp.WithAudit(store))
	}
	mcp.NewTools(current.Load, toolOpts...).Register(srv)

	transport := c.Transport
	if transport == "" {
		transport = cfg.Server.Transport
	}
	switch transport {
	case "stdio":
		return srv.ServeStdio()
	case "http":
		addr := c.Addr
		if addr == "" {
			addr = cfg.Server.Addr
		}
		return srv.ServeStreamableHTTP(a.ctx, addr)
	default:
		return NewInvalidArgumentError("transport", fmt.Sprintf("unknown transport %q", transport))
	}
}

// openAudit returns the configured audit store, or nil when auditing is
// off. Without a path events stay in memory for the life of the server.
func openAudit(cfg config.AuditConfig) (audit.Store, func(), error) {
	if !cfg.Enabled {
		return nil, func() {}, nil
	}
	if cfg.Path == "" {
		return audit.NewMemoryStore(), func() {}, nil
	}
	s, err := audit.OpenSQLite(cfg.Path)
	if err != nil {
		return nil, nil, err
	}
	return s, func() { _ = s.Close() }, nil
}
