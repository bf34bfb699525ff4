package main

import (
	"context"
	"fmt"
	"log"
	"os/signal"
	"syscall"

	"github.com/OTNL99/WEIGHLINK-AUTOMATION-SYSTEM-WAS/pkg/weighlink"
)

func main() {
	flow, err := weighlink.Conf("../../configs/weighlink.example.yaml")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	callback := func(_ context.Context, r *weighlink.Record) error {
		meta, _ := r.Metadata.JSON()
		fmt.Printf("%s value=%s raw=%q tag=%s\n", r.TimestampText(), r.ValueText(), r.Raw, meta)
		return nil
	}

	if err := flow.Run(ctx, weighlink.StreamOutCallback("stdout", callback)); err != nil && err != context.Canceled {
		log.Fatalf("gateway error: %v", err)
	}
}
