// realm-prune deletes shared realms (2SITES_*, REQ_*) that no record
// references any more.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/mmdatafocus/rms_backend/config"
	"github.com/mmdatafocus/rms_backend/realm"
	"github.com/mmdatafocus/rms_backend/store"
)

func main() {
	config.ConnectDatabaseWithRetry()
	db := config.GetDB()
	if db == nil {
		fmt.Fprintln(os.Stderr, "database not initialized")
		os.Exit(1)
	}
	n, err := realm.PruneSharedRealms(context.Background(), store.New(db), config.GetLogger())
	if err != nil {
		fmt.Fprintf(os.Stderr, "prune failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("pruned %d realms\n", n)
}
