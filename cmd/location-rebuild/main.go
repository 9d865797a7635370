// location-rebuild recomputes path, ancestor names, inherited coordinates
// and bounds of every location, level by level.
//
// Usage:
//
//	DB_USER=... DB_PASSWORD=... DB_HOST=... DB_NAME=... go run ./cmd/location-rebuild [-chunk 500]
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/mmdatafocus/rms_backend/config"
	"github.com/mmdatafocus/rms_backend/location"
	"github.com/mmdatafocus/rms_backend/realm"
	"github.com/mmdatafocus/rms_backend/store"
)

func main() {
	chunk := flag.Int("chunk", 0, "Optional: rows per page (defaults to LOCATION_CHUNK_SIZE)")
	timeout := flag.Duration("timeout", 2*time.Hour, "Give up after this long")
	flag.Parse()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	config.ConnectDatabaseWithRetry()
	db := config.GetDB()
	if db == nil {
		fmt.Fprintln(os.Stderr, "database not initialized")
		os.Exit(1)
	}
	logger := config.GetLogger()

	tree := location.New(store.New(db), logger)
	if *chunk > 0 {
		tree.ChunkSize = *chunk
	}
	if config.GetSettings().RedisAddress != "" {
		config.ConnectRedisWithRetry(ctx)
		tree.Locker = realm.RedisLocker{Client: config.GetRedisLock()}
	}

	n, err := tree.RebuildLocationTree(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "rebuild failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("rebuilt %d locations\n", n)
}
