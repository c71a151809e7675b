package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"promo-pipelines/ledger"
	"promo-pipelines/pipelines"
	"promo-pipelines/pipelines/promotion"
	"promo-pipelines/tasks"
	"promo-pipelines/types"
)

type runFlags struct {
	sheet  string
	dryRun bool
	resume string
	yes    bool
}

func newRunCmd() *cobra.Command {
	var f runFlags
	cmd := &cobra.Command{
		Use:   "run [product|brand|all]",
		Short: "Process pending campaign rows",
		Example: `  # both kinds, resuming failed uploads if any
  promo run

  # product campaigns from a specific tab, files only
  promo run product --sheet "11월 상품" --dry-run

  # ignore the previous batch and start over
  promo run brand --resume restart`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPipelines(cmd, args, f)
		},
	}
	cmd.Flags().StringVar(&f.sheet, "sheet", "", "spreadsheet tab (default: PRODUCT_SHEET_NAME / BRAND_SHEET_NAME)")
	cmd.Flags().BoolVar(&f.dryRun, "dry-run", false, "write files without submitting or stamping rows")
	cmd.Flags().StringVar(&f.resume, "resume", "", "when failed uploads exist: retry or restart (default: ask)")
	cmd.Flags().BoolVarP(&f.yes, "yes", "y", false, "never prompt; retry failed uploads and require configured sheets")
	return cmd
}

func newResumeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "resume",
		Short: "Resubmit files that failed in the previous batch",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := envFrom(cmd)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			decision, err := ledger.CheckResume(ledger.NewFileStore(cfg.OutputDir), cfg.OutputDir, nil)
			if err != nil {
				return err
			}
			if decision.Action != ledger.ResumeFiles {
				fmt.Fprintln(cmd.OutOrStdout(), "Nothing to resume.")
				return nil
			}

			state, err := pipelines.NewState(ctx, cfg)
			if err != nil {
				return err
			}
			defer state.Close()
			state.NewRun()

			reports, err := promotion.Resume(state, decision)
			renderReports(cmd.OutOrStdout(), reports)
			return err
		},
	}
}

func runPipelines(cmd *cobra.Command, args []string, f runFlags) error {
	cfg, err := envFrom(cmd)
	if err != nil {
		return err
	}
	kinds, err := parseKinds(args)
	if err != nil {
		return err
	}
	mode, err := promotion.ParseResumeMode(f.resume)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	in := bufio.NewReader(cmd.InOrStdin())
	out := cmd.OutOrStdout()

	if mode == promotion.ResumeAuto && !f.dryRun {
		decision, err := ledger.CheckResume(ledger.NewFileStore(cfg.OutputDir), cfg.OutputDir, nil)
		if err != nil && !errors.Is(err, ledger.ErrCorruptLedger) {
			return err
		}
		if err == nil && decision.Action == ledger.ResumeFiles {
			renderPending(out, decision.Files)
			mode = promotion.ResumeRetry
			if !f.yes {
				if mode, err = askResume(in, out); err != nil {
					return err
				}
			}
		}
	}

	state, err := pipelines.NewState(ctx, cfg)
	if err != nil {
		return err
	}
	defer state.Close()

	sheet := f.sheet
	if sheet == "" && len(kinds) == 1 && mode != promotion.ResumeRetry && configuredSheet(cfg.ProductSheetName, cfg.BrandSheetName, kinds[0]) == "" {
		if f.yes {
			return fmt.Errorf("no sheet configured for %s campaigns; pass --sheet", kinds[0])
		}
		if sheet, err = chooseSheet(ctx, state, in, out); err != nil {
			return err
		}
	}

	reports, err := promotion.Execute(state, kinds, pipelines.RunOptions{SheetName: sheet, DryRun: f.dryRun}, mode)
	renderReports(out, reports)
	return err
}

func parseKinds(args []string) ([]types.CampaignKind, error) {
	if len(args) == 0 || strings.EqualFold(args[0], "all") {
		return types.Kinds, nil
	}
	kind, err := types.ParseCampaignKind(args[0])
	if err != nil {
		return nil, err
	}
	return []types.CampaignKind{kind}, nil
}

func configuredSheet(product, brand string, kind types.CampaignKind) string {
	if kind == types.KindBrand {
		return brand
	}
	return product
}

func askResume(in *bufio.Reader, out io.Writer) (promotion.ResumeMode, error) {
	for {
		fmt.Fprint(out, "Retry the failed files [r] or start over [s]? ")
		line, err := in.ReadString('\n')
		switch strings.ToLower(strings.TrimSpace(line)) {
		case "", "r", "retry":
			return promotion.ResumeRetry, nil
		case "s", "start", "restart":
			return promotion.ResumeRestart, nil
		}
		if err != nil {
			return promotion.ResumeAuto, fmt.Errorf("read answer: %w", err)
		}
	}
}

type sheetLister interface {
	ListSheets(ctx context.Context) ([]tasks.SheetInfo, error)
}

func chooseSheet(ctx context.Context, state *pipelines.State, in *bufio.Reader, out io.Writer) (string, error) {
	lister, ok := state.Sheets.(sheetLister)
	if !ok {
		return "", fmt.Errorf("sheet source cannot list tabs; pass --sheet")
	}
	tabs, err := lister.ListSheets(ctx)
	if err != nil {
		return "", err
	}
	if len(tabs) == 0 {
		return "", fmt.Errorf("spreadsheet has no tabs")
	}
	renderSheets(out, tabs)
	return pickSheet(in, out, tabs)
}

func pickSheet(in *bufio.Reader, out io.Writer, tabs []tasks.SheetInfo) (string, error) {
	for {
		fmt.Fprintf(out, "Sheet number (1-%d): ", len(tabs))
		line, err := in.ReadString('\n')
		if n, convErr := strconv.Atoi(strings.TrimSpace(line)); convErr == nil && n >= 1 && n <= len(tabs) {
			return tabs[n-1].Title, nil
		}
		if err != nil {
			return "", fmt.Errorf("read sheet choice: %w", err)
		}
	}
}
