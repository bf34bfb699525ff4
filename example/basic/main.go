package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/OTNL99/WEIGHLINK-AUTOMATION-SYSTEM-WAS"
)

// Runs the gateway exactly as configured: sources from the YAML, sink.kind for delivery,
// the CSV queue as fallback.
func main() {
	path := "../../configs/weighlink.example.yaml"
	if len(os.Args) > 1 {
		path = os.Args[1]
	}

	flow, err := weighlink.Conf(path)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	gw, err := flow.StreamOUT()
	if err != nil {
		log.Fatalf("build gateway: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := gw.Start(ctx); err != nil {
		log.Fatalf("start: %v", err)
	}
	st := gw.Status()
	log.Printf("online=%t queued=%d collectors=%v", st.Online, st.QueueLen, st.Collectors)

	<-ctx.Done()
	if err := gw.Shutdown(context.Background()); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatalf("shutdown: %v", err)
	}
}
