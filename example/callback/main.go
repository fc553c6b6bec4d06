package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/ghalamif/perfwatch"
)

func main() {
	flow, err := perfwatch.Conf("../../data/config.yaml")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	callback := func(batch []perfwatch.Reading) error {
		for _, r := range batch {
			fmt.Printf("%s session=%s channel=%s seq=%d value=%.2f\n",
				r.Timestamp.Format(time.RFC3339Nano),
				r.Session,
				r.Channel,
				r.Seq,
				r.Value,
			)
		}
		return nil
	}

	if err := flow.Run(ctx, perfwatch.StreamOutCallback("stdout", callback)); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatalf("runtime error: %v", err)
	}
}
