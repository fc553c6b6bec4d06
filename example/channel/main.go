package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"os/signal"
	"syscall"

	"github.com/ghalamif/perfwatch"
)

func main() {
	flow, err := perfwatch.Conf("../../data/config.yaml")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sink, batches, closeBatches := perfwatch.NewChannelSink("fanout", 32)
	defer closeBatches()

	go resistanceWorker(batches)

	if err := flow.Run(ctx, perfwatch.StreamOutSink(sink)); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatalf("runtime error: %v", err)
	}
}

// resistanceWorker recomputes flow resistance from archived readings, pairing
// flow and kidney 1 pressure by sequence number.
func resistanceWorker(batches <-chan []perfwatch.Reading) {
	flow := map[int64]float64{}
	for batch := range batches {
		for _, r := range batch {
			switch r.Channel {
			case perfwatch.ChannelFlow:
				if len(flow) > 1024 {
					clear(flow)
				}
				flow[r.Seq] = r.Value
			case perfwatch.ChannelPressureKidney1:
				f, ok := flow[r.Seq]
				if !ok {
					continue
				}
				delete(flow, r.Seq)
				if res, ok := perfwatch.Resistance(f, r.Value); ok && !math.IsNaN(res) {
					fmt.Printf("seq=%d resistance=%.1f mmHg·min/L\n", r.Seq, res)
				}
			}
		}
	}
}
