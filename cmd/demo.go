package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"runtime"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/billm/pezbus/internal/config"
	"github.com/billm/pezbus/internal/logger"
	"github.com/billm/pezbus/pkg/heartbeat"
	"github.com/billm/pezbus/pkg/ipc"
	"github.com/billm/pezbus/pkg/trace"
	"github.com/billm/pezbus/pkg/types"
)

// demoBody is the payload text every demo heartbeat carries
const demoBody = "FOOBAR"

var (
	demoCount    int
	demoInterval time.Duration
)

var demoCmd = &cobra.Command{
	Use:   "demo",
	Short: "Run the main/foo timer scenario and print the counters",
	Long: `demo registers the configured identities (main and foo by default). Every
identity after the first sends a heartbeat to the first one on a timer; the
first identity prints each payload it receives as a hex dump. When all
heartbeats have arrived the per-identity counters are printed.`,
	Args: cobra.NoArgs,
	RunE: runDemo,
}

func runDemo(cmd *cobra.Command, args []string) error {
	cfg, err := setup(cmd)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("count") {
		cfg.Demo.Count = demoCount
	}
	if cmd.Flags().Changed("interval") {
		cfg.Demo.Interval = demoInterval
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	bus, err := ipc.New(cfg.Bus, rootLog)
	if err != nil {
		return fmt.Errorf("failed to create bus: %w", err)
	}
	if err := bus.Start(ctx); err != nil {
		return fmt.Errorf("failed to start bus: %w", err)
	}

	out := cmd.OutOrStdout()
	runErr := runScenario(ctx, bus, cfg.Demo, out, rootLog)

	if err := bus.Close(); err != nil {
		rootLog.Error("Bus close failed", "error", err)
	}
	fmt.Fprint(out, renderDump(bus.Dump(), bus.RouterStats()))

	return runErr
}

// runScenario attaches cfg.Identities and has every identity after the
// first send cfg.Count heartbeats to the first, which prints them.
func runScenario(ctx context.Context, bus *ipc.Bus, cfg config.DemoConfig, out io.Writer, log *logger.Logger) error {
	if log == nil {
		log = logger.Global()
	}
	if len(cfg.Identities) < 2 {
		return types.NewError(types.ErrCodeInvalidArgument, "demo needs at least two identities")
	}
	if cfg.Count <= 0 || cfg.Interval <= 0 {
		return types.NewError(types.ErrCodeInvalidArgument, "demo count and interval must be positive")
	}

	receiverName := cfg.Identities[0]
	receiver, receiverTok, err := bus.Attach(receiverName)
	if err != nil {
		return err
	}

	type sender struct {
		ep  *ipc.Endpoint
		tok types.Token
	}
	senders := make([]sender, 0, len(cfg.Identities)-1)
	for _, name := range cfg.Identities[1:] {
		ep, tok, err := bus.Attach(name)
		if err != nil {
			return err
		}
		senders = append(senders, sender{ep: ep, tok: tok})
	}

	g, gctx := errgroup.WithContext(ctx)
	var outMu sync.Mutex
	expected := cfg.Count * len(senders)
	receiveTimeout := 2*cfg.Interval + time.Second

	g.Go(func() error {
		defer pinThread(cfg.LockOSThread, receiverName, log)()

		for i := 0; i < expected; i++ {
			payload, err := receiver.Receive(gctx, receiverTok, receiveTimeout)
			if err != nil {
				return err
			}

			hb, err := heartbeat.Decode(payload)
			if err != nil {
				log.Warn("Undecodable payload", "name", receiverName, "size", len(payload), "error", err)
				continue
			}

			outMu.Lock()
			fmt.Fprintf(out, "%s <- %s seq=%d size=%d\n%s", receiverName, hb.Source, hb.Seq, len(payload), trace.Dump(payload))
			outMu.Unlock()
		}
		return nil
	})

	for _, s := range senders {
		s := s
		g.Go(func() error {
			defer pinThread(cfg.LockOSThread, s.ep.Name(), log)()

			ticker := time.NewTicker(cfg.Interval)
			defer ticker.Stop()

			for seq := 1; seq <= cfg.Count; seq++ {
				select {
				case <-gctx.Done():
					return gctx.Err()
				case <-ticker.C:
				}

				data, err := heartbeat.New(s.ep.Name(), receiverName, uint64(seq), demoBody).Encode()
				if err != nil {
					return err
				}
				if err := s.ep.Send(s.tok, receiverName, data); err != nil {
					return err
				}
			}
			return nil
		})
	}

	return g.Wait()
}

// pinThread locks the calling goroutine to its OS thread when enabled and
// returns the matching unlock.
func pinThread(enabled bool, name string, log *logger.Logger) func() {
	if !enabled {
		return func() {}
	}
	runtime.LockOSThread()
	log.Info("Worker pinned to OS thread", "name", name, "os_thread", osThreadID())
	return runtime.UnlockOSThread
}

func init() {
	demoCmd.Flags().IntVar(&demoCount, "count", config.DefaultDemoCount,
		"Heartbeats each sender emits")
	demoCmd.Flags().DurationVar(&demoInterval, "interval", config.DefaultDemoInterval,
		"Time between heartbeats")
	rootCmd.AddCommand(demoCmd)
}
