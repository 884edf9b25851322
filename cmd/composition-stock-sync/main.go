package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/MerlinStacks/overseek-sub002/config"
	"github.com/MerlinStacks/overseek-sub002/indexsync"
	"github.com/MerlinStacks/overseek-sub002/reports"
	"github.com/MerlinStacks/overseek-sub002/workflow"
)

type syncRow workflow.CompositionSyncRow

func (r syncRow) GetCellValues() []interface{} {
	return []interface{}{r.ProductId, r.VariationId, intOrBlank(r.EffectiveStock), intOrBlank(r.StoredStock), r.NeedsSync, r.Applied, r.Error}
}

func intOrBlank(v *int) interface{} {
	if v == nil {
		return ""
	}
	return *v
}

func main() {
	tenantID := flag.String("tenant-id", "", "Required: tenant id")
	apply := flag.Bool("apply", false, "Write effective stock back; default is a dry run")
	reportPath := flag.String("report", "", "Optional: write every composition row to this .xlsx file")
	continueOnError := flag.Bool("continue-on-error", false, "Skip failing compositions and continue with the others")
	flag.Parse()

	if strings.TrimSpace(*tenantID) == "" {
		fmt.Fprintln(os.Stderr, "--tenant-id is required")
		os.Exit(1)
	}

	config.ConnectDatabaseWithRetry()
	db := config.GetDB()
	if db == nil {
		fmt.Fprintln(os.Stderr, "database not initialized")
		os.Exit(1)
	}
	logger := config.GetLogger()
	ctx := context.Background()

	dispatcher := indexsync.NewDispatcher(db, logger, indexsync.NewPublisherFromEnv(ctx, logger))
	dispatcher.Start()

	rows, err := workflow.NewCompositionWorkflow(logger, dispatcher).SyncTenant(ctx, strings.TrimSpace(*tenantID), *apply, *continueOnError)
	dispatcher.Stop()
	config.ClosePubSub()

	var diverged, applied, failed int
	for _, r := range rows {
		if r.NeedsSync {
			diverged++
		}
		if r.Applied {
			applied++
		}
		if r.Error != "" {
			failed++
		}
	}
	fmt.Printf("compositions=%d diverged=%d applied=%d failed=%d apply=%v\n", len(rows), diverged, applied, failed, *apply)

	if *reportPath != "" {
		out := make([]syncRow, 0, len(rows))
		for _, r := range rows {
			out = append(out, syncRow(r))
		}
		if rerr := reports.ExportExcel(out, *reportPath, "ProductId", "VariationId", "EffectiveStock", "StoredStock", "NeedsSync", "Applied", "Error"); rerr != nil {
			fmt.Fprintf(os.Stderr, "write report: %v\n", rerr)
			os.Exit(1)
		}
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "sync stopped: %v\n", err)
		os.Exit(1)
	}
}
