package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"promo-pipelines/ledger"
	"promo-pipelines/pipelines"
	"promo-pipelines/tasks"
)

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the upload ledger of the current batch",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := envFrom(cmd)
			if err != nil {
				return err
			}
			store := ledger.NewFileStore(cfg.OutputDir)
			doc, err := store.Load()
			if errors.Is(err, ledger.ErrNoLedger) {
				fmt.Fprintln(cmd.OutOrStdout(), "No upload batch in progress.")
				return nil
			}
			if err != nil {
				return err
			}
			renderLedger(cmd.OutOrStdout(), store.Path(), doc)
			return nil
		},
	}
}

func newLookupCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "lookup PRODUCT_ID...",
		Short: "Show the channel listings of products",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := envFrom(cmd)
			if err != nil {
				return err
			}
			ids := make([]int64, 0, len(args))
			for _, a := range args {
				id, err := strconv.ParseInt(a, 10, 64)
				if err != nil || id <= 0 {
					return fmt.Errorf("invalid product id %q", a)
				}
				ids = append(ids, id)
			}

			state, err := pipelines.NewState(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer state.Close()

			renderLookup(cmd.OutOrStdout(), state.Lookup.Query(cmd.Context(), ids))
			return nil
		},
	}
}

func newSheetsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sheets",
		Short: "List the tabs of the campaign spreadsheet",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := envFrom(cmd)
			if err != nil {
				return err
			}
			ref, err := tasks.ParseSheetRef(cfg.SpreadsheetURL)
			if err != nil {
				return err
			}
			client, err := tasks.NewSheetsClient(cmd.Context(), ref.SpreadsheetID, cfg.GoogleCredentialsFile)
			if err != nil {
				return err
			}
			tabs, err := client.ListSheets(cmd.Context())
			if err != nil {
				return err
			}
			renderSheets(cmd.OutOrStdout(), tabs)
			return nil
		},
	}
}

func newHistoryCmd() *cobra.Command {
	var (
		pipeline string
		since    time.Duration
		limit    int
		asJSON   bool
	)
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent runs from Cloud Logging",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := envFrom(cmd)
			if err != nil {
				return err
			}
			client, err := tasks.NewLogClient(cmd.Context(), cfg.GCPProjectID, cfg.ServiceName)
			if err != nil {
				return err
			}
			defer client.Close()

			entries, err := client.QueryLogs(cmd.Context(), tasks.LogQuery{Pipeline: pipeline, Since: since, Limit: limit})
			if err != nil {
				return err
			}
			runs := tasks.GroupByRun(entries, cfg.GCPProjectID, cfg.ServiceName)

			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(runs)
			}
			renderHistory(cmd.OutOrStdout(), runs)
			return nil
		},
	}
	cmd.Flags().StringVar(&pipeline, "pipeline", "", "only product or brand runs")
	cmd.Flags().DurationVar(&since, "since", 24*time.Hour, "how far back to look")
	cmd.Flags().IntVar(&limit, "limit", 500, "maximum log entries to read")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print runs as JSON")
	return cmd
}

func newPipelinesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "pipelines",
		Short: "List registered pipelines",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprint(cmd.OutOrStdout(), pipelines.ListWithDescriptions())
		},
	}
}
