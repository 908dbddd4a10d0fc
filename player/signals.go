package player

import (
	"context"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"
)

const defaultNetInterval = 5 * time.Second

// Prober answers whether the network looks reachable right now.
type Prober func(ctx context.Context) bool

func defaultProber(ctx context.Context) bool {
	d := net.Dialer{Timeout: 2 * time.Second}
	conn, err := d.DialContext(ctx, "tcp", "1.1.1.1:53")
	if err != nil {
		return false
	}
	conn.Close()
	return true
}

// RunLifecycleSignals forwards terminal job control signals as
// lifecycle transitions: suspend maps to entering the background,
// continue to returning to the foreground.
func RunLifecycleSignals(ctx context.Context, out chan<- Signal) {
	ch := make(chan os.Signal, 4)
	signal.Notify(ch, syscall.SIGTSTP, syscall.SIGCONT)
	defer signal.Stop(ch)

	for {
		select {
		case <-ctx.Done():
			return
		case sig := <-ch:
			kind := SignalEnterForeground
			if sig == syscall.SIGTSTP {
				kind = SignalEnterBackground
			}
			select {
			case out <- Signal{Kind: kind, At: time.Now()}:
			case <-ctx.Done():
				return
			}
		}
	}
}

// RunNetworkSignals polls reachability and emits edge-triggered offline
// and online signals to every sink. One prober serves all consumers,
// so the coordinator and the health monitor see the same transitions
// instead of racing their own dials. Sends never block; a full sink
// misses the edge.
func RunNetworkSignals(ctx context.Context, prober Prober, interval time.Duration, outs ...chan<- Signal) {
	if prober == nil {
		prober = defaultProber
	}
	if interval <= 0 {
		interval = defaultNetInterval
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	online := true
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			now := prober(ctx)
			if now == online {
				continue
			}
			online = now
			kind := SignalOffline
			if online {
				kind = SignalOnline
			}
			sig := Signal{Kind: kind, At: time.Now()}
			for _, out := range outs {
				select {
				case out <- sig:
				default:
				}
			}
		}
	}
}
