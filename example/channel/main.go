package main

import (
	"bufio"
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/OTNL99/WEIGHLINK-AUTOMATION-SYSTEM-WAS"
)

// Reads weights typed on stdin through a Publisher and prints what reaches the channel sink.
func main() {
	cfg, err := weighlink.ParseConfig([]byte("queue: {path: ./data/example_queue.csv}\nsink: {kind: none}\n"))
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sink, records, closeRecords := weighlink.NewChannelSink("stdout", 32)
	defer closeRecords()
	go printer(records)

	pub := weighlink.NewPublisher("stdin")
	go func() {
		sc := bufio.NewScanner(os.Stdin)
		for sc.Scan() {
			if err := pub.Publish(ctx, sc.Text(), weighlink.Metadata{"operator": os.Getenv("USER")}); err != nil {
				log.Printf("publish: %v", err)
			}
		}
	}()

	gw, err := weighlink.NewGateway(cfg, weighlink.WithSink(sink), weighlink.WithCollectors(pub))
	if err != nil {
		log.Fatalf("gateway: %v", err)
	}
	if err := gw.Run(ctx); err != nil {
		log.Fatalf("gateway error: %v", err)
	}
}

func printer(records <-chan *weighlink.Record) {
	for r := range records {
		fmt.Printf("[%s] %s (%s)\n", r.TimestampText(), r.ValueText(), r.Raw)
	}
}
