// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"os/signal"
	"syscall"

	"github.com/AleutianAI/documind/cmd/documind/internal/devserver"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
)

func runServeDevCommand(cmd *cobra.Command, args []string) error {
	return withApp(cmd, func(ctx context.Context, app *App) error {
		addr := devAddr
		if addr == "" {
			var err error
			if addr, err = listenAddrFor(app.Config.Server.BaseURL); err != nil {
				return err
			}
		}

		if app.Config.Logging.Level != "debug" {
			gin.SetMode(gin.ReleaseMode)
		}

		ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
		defer stop()

		app.UI.Status("serving", "http://"+addr)
		return devserver.New(devserver.Config{TokensPerSecond: devTokenRate}).ListenAndServe(ctx, addr)
	})
}

// listenAddrFor turns a base URL into a host:port to listen on.
func listenAddrFor(base string) (string, error) {
	u, err := url.Parse(base)
	if err != nil || u.Host == "" {
		return "", fmt.Errorf("cannot derive a listen address from %q", base)
	}
	if u.Port() != "" {
		return u.Host, nil
	}
	if u.Scheme == "https" {
		return u.Hostname() + ":443", nil
	}
	return u.Hostname() + ":80", nil
}
