package main

import (
	"context"
	"flag"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/mnohosten/laura-db/pkg/admin"
	"github.com/mnohosten/laura-db/pkg/index"
	"github.com/mnohosten/laura-db/pkg/storage"
)

func main() {
	dataDir := flag.String("data-dir", "./data", "data directory for the page file")
	bufferPoolSize := flag.Int("buffer-pool-size", 1000, "buffer pool size in pages (1 page = 4KB)")
	adminAddr := flag.String("admin-addr", "", "admin HTTP surface address (host:port); empty disables it")
	flag.Parse()

	engineConfig := storage.DefaultConfig(*dataDir)
	engineConfig.BufferPoolSize = *bufferPoolSize

	engine, err := storage.NewEngine(engineConfig)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to open storage engine: %v\n", err)
		os.Exit(1)
	}
	defer engine.Close()

	tree, err := index.NewBTree(engine.Pool())
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to construct b+tree: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("data directory: %s\n", *dataDir)
	fmt.Printf("buffer pool size: %d pages\n", *bufferPoolSize)

	if *adminAddr == "" {
		fmt.Println("admin surface disabled (pass -admin-addr to enable)")
		return
	}

	host, portStr, err := net.SplitHostPort(*adminAddr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid -admin-addr %q: %v\n", *adminAddr, err)
		os.Exit(1)
	}
	var port int
	if _, err := fmt.Sscanf(portStr, "%d", &port); err != nil {
		fmt.Fprintf(os.Stderr, "invalid port in -admin-addr %q: %v\n", *adminAddr, err)
		os.Exit(1)
	}

	adminConfig := admin.DefaultConfig()
	adminConfig.Host = host
	adminConfig.Port = port

	adminSrv := admin.New(adminConfig, engine, tree)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fmt.Printf("admin surface listening on %s\n", adminSrv.Addr())
	if err := adminSrv.Start(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "admin server error: %v\n", err)
		os.Exit(1)
	}
}
