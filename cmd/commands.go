// Copyright (c) 2024, 0x0BSoD. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
package main

import (
	"fmt"
	"net/http"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/0x0BSoD/xbot/internal/compose"
	"github.com/0x0BSoD/xbot/internal/model"
	"github.com/0x0BSoD/xbot/internal/source"
)

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show today's post count, auth cache and stored items",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			a, err := newState(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			ctx := cmd.Context()
			out := cmd.OutOrStdout()

			today, err := a.history.TodayPostedCount(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "date:        %s (%s)\n", a.clock.Date(), a.clock.Location)
			fmt.Fprintf(out, "posts today: %d/%d\n", today, cfg.DailyPostLimit)
			fmt.Fprintf(out, "dry run:     %t\n", cfg.DryRun)

			if a.files.AuthValid(ctx) {
				cache, err := a.files.Auth(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "auth cache:  valid until %s\n", cache.ValidUntil.Format(time.DateTime))
			} else {
				fmt.Fprintln(out, "auth cache:  empty")
			}

			feeds := cfg.Feeds()
			stored, err := a.files.TodayStoredCount(ctx, feeds)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "\nFEED\tSTORED TODAY\tLIMIT\tFORMAT\tURL")
			for _, feed := range feeds {
				fmt.Fprintf(w, "%s\t%d\t%d\t%s\t%s\n", feed.Name, stored[feed.Name], feed.Limit, source.Format(feed), feed.URL)
			}
			return w.Flush()
		},
	}
}

func checkCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check <url>",
		Short: "Fetch one feed and show today's items with their filter verdicts",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			a, err := newState(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			format, err := cmd.Flags().GetString("format")
			if err != nil {
				return err
			}
			feed := model.Feed{Name: "check", URL: args[0], Format: format}

			src, err := source.New(feed, a.clock.Location, &http.Client{Timeout: feedTimeout})
			if err != nil {
				return err
			}

			items, err := src.Fetch(cmd.Context())
			if err != nil {
				return fmt.Errorf("fetch %s: %w", feed.URL, err)
			}
			today := source.TodayItems(items, a.clock, 0)

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s: %d items, %d dated today (%s)\n\n", source.Format(feed), len(items), len(today), a.clock.Date())

			for i, item := range today {
				text := item.Title
				if compose.Len(text) > compose.CharLimit {
					text = compose.Truncate(text)
				}
				ok, reason := a.filter.Check(text)
				verdict := "OK"
				if !ok {
					verdict = "SKIP: " + reason
				}
				fmt.Fprintf(out, "%2d. [%s] %s\n    %s\n", i+1, item.Date.In(a.clock.Location).Format("15:04"), text, verdict)
			}
			return nil
		},
	}
	cmd.Flags().String("format", "auto", "Feed format: auto, csv, xml or json")
	return cmd
}
