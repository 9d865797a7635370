// stock-alert-scan checks minimum stock levels and free capacity of every
// warehouse, raising or retracting alerts as needed. Alert mails are queued
// in the outbox for the dispatcher.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/mmdatafocus/rms_backend/config"
	"github.com/mmdatafocus/rms_backend/inventory"
	"github.com/mmdatafocus/rms_backend/notify"
	"github.com/mmdatafocus/rms_backend/store"
)

func main() {
	ctx := context.Background()
	config.ConnectDatabaseWithRetry()
	db := config.GetDB()
	if db == nil {
		fmt.Fprintln(os.Stderr, "database not initialized")
		os.Exit(1)
	}
	logger := config.GetLogger()
	st := store.New(db)

	fabric := notify.NewFabric(st, notify.OutboxMailer{St: st}, nil, logger)
	scanned, failed, err := inventory.New(st, fabric, logger).ScanAll(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "scan failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("scanned %d sites, %d failed\n", scanned, failed)
	if failed > 0 {
		os.Exit(2)
	}
}
