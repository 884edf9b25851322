package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/MerlinStacks/overseek-sub002/config"
	"github.com/MerlinStacks/overseek-sub002/indexsync"
	"github.com/MerlinStacks/overseek-sub002/reports"
	"github.com/MerlinStacks/overseek-sub002/workflow"
)

type errorRow workflow.ReprocessError

func (e errorRow) GetCellValues() []interface{} {
	return []interface{}{e.PurchaseOrderId, e.OrderNumber, e.Message, e.Critical}
}

func main() {
	tenantID := flag.String("tenant-id", "", "Required: tenant id")
	reportPath := flag.String("report", "", "Optional: write failed purchase orders to this .xlsx file")
	flag.Parse()

	if strings.TrimSpace(*tenantID) == "" {
		fmt.Fprintln(os.Stderr, "--tenant-id is required")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	config.ConnectDatabaseWithRetry()
	config.ConnectRedisWithRetry()
	db := config.GetDB()
	if db == nil {
		fmt.Fprintln(os.Stderr, "database not initialized")
		os.Exit(1)
	}
	logger := config.GetLogger()

	dispatcher := indexsync.NewDispatcher(db, logger, indexsync.NewPublisherFromEnv(ctx, logger))
	dispatcher.Start()

	reprocessor := workflow.NewReprocessor(db, logger, dispatcher, nil)
	progress, runErr := reprocessor.Run(ctx, strings.TrimSpace(*tenantID))

	// flush queued reindex jobs before exit
	dispatcher.Stop()
	config.ClosePubSub()

	out, _ := json.MarshalIndent(progress, "", "  ")
	fmt.Println(string(out))

	if *reportPath != "" && len(progress.Errors) > 0 {
		rows := make([]errorRow, 0, len(progress.Errors))
		for _, e := range progress.Errors {
			rows = append(rows, errorRow(e))
		}
		if err := reports.ExportExcel(rows, *reportPath, "PurchaseOrderId", "OrderNumber", "Error", "Critical"); err != nil {
			fmt.Fprintf(os.Stderr, "write report: %v\n", err)
			os.Exit(1)
		}
		fmt.Fprintf(os.Stderr, "report written to %s\n", *reportPath)
	}

	if runErr != nil {
		fmt.Fprintf(os.Stderr, "reprocess failed: %v\n", runErr)
		os.Exit(1)
	}
	for _, e := range progress.Errors {
		if e.Critical {
			fmt.Fprintln(os.Stderr, "one or more purchase orders could not be restored; manual repair required")
			os.Exit(2)
		}
	}
}
