// Command ccrtdemo runs a producer/consumer scenario over the runtime: a
// nursery with one producer fiber sending three values over an unbuffered
// channel and the channel registered to auto-close once the producer has
// joined, plus one consumer fiber in a second nursery draining it until
// close. It prints "sum = 6".
package main

import (
	"fmt"
	"os"
	"time"

	ccrt "github.com/sreekotay/ccrt"
	"github.com/sreekotay/ccrt/channel"
	"github.com/sreekotay/ccrt/deadline"
	"github.com/sreekotay/ccrt/rtconfig"
	"github.com/sreekotay/ccrt/rtlog"
)

func main() {
	logger := rtlog.NewDefaultLogger(rtlog.LevelInfo)
	rt, err := ccrt.New(logger, rtconfig.WithWorkers(4))
	if err != nil {
		fmt.Fprintln(os.Stderr, "ccrtdemo: failed to start runtime:", err)
		os.Exit(1)
	}
	defer rt.Shutdown()

	n := rt.Nursery(ccrt.DeadlineFromTimeout(5 * time.Second))

	ch := channel.New[int](channel.Config{Capacity: 0, Topology: channel.Topo1to1})
	n.AddClosingChan(ch)

	n.Spawn(func(dl deadline.Deadline) error {
		for _, v := range []int{1, 2, 3} {
			if r := ch.Send(v, dl); r != channel.Ok {
				return fmt.Errorf("producer: send failed: %v", r)
			}
		}
		return nil
	})

	// The consumer is not a child of n, so n can close ch after joining the
	// producer while the consumer is still waiting for that close.
	consumers := rt.Nursery(ccrt.DeadlineFromTimeout(5 * time.Second))
	sum := 0
	consumers.Spawn(func(dl deadline.Deadline) error {
		for {
			var v int
			r := ch.Recv(&v, dl)
			switch r {
			case channel.Ok:
				sum += v
			case channel.Closed:
				return nil
			default:
				return fmt.Errorf("consumer: recv failed: %v", r)
			}
		}
	})

	if err := n.Wait(); err != nil {
		fmt.Fprintln(os.Stderr, "ccrtdemo: producer nursery failed:", err)
		os.Exit(1)
	}
	if err := consumers.Wait(); err != nil {
		fmt.Fprintln(os.Stderr, "ccrtdemo: consumer nursery failed:", err)
		os.Exit(1)
	}

	fmt.Printf("sum = %d\n", sum)
}
