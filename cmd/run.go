package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/billm/pezbus/internal/config"
	"github.com/billm/pezbus/internal/logger"
	"github.com/billm/pezbus/pkg/heartbeat"
	"github.com/billm/pezbus/pkg/ipc"
	"github.com/billm/pezbus/pkg/shutdown"
	"github.com/billm/pezbus/pkg/types"
)

const (
	shutdownTimeout = 10 * time.Second
	ackBody         = "ack"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the bus with a heartbeat workload until interrupted",
	Long: `run starts the bus and attaches the configured identities. The first
identity sends a heartbeat to every other identity on each interval and the
others acknowledge it. SIGHUP reloads the config file, which can toggle
tracing and the log level. On SIGINT or SIGTERM the counters are printed.`,
	Args: cobra.NoArgs,
	RunE: runBus,
}

func runBus(cmd *cobra.Command, args []string) error {
	cfg, err := setup(cmd)
	if err != nil {
		return err
	}
	if len(cfg.Demo.Identities) < 2 {
		return fmt.Errorf("run needs at least two identities, got %d", len(cfg.Demo.Identities))
	}

	rootLog.Info("Starting pezbus", "version", Version)

	bus, err := ipc.New(cfg.Bus, rootLog)
	if err != nil {
		return fmt.Errorf("failed to create bus: %w", err)
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	if err := bus.Start(ctx); err != nil {
		return fmt.Errorf("failed to start bus: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	if err := startHeartbeats(gctx, g, bus, cfg.Demo, rootLog); err != nil {
		_ = bus.Close()
		return err
	}

	reloader := config.NewReloader(cfgFile, cfg, rootLog.Slog())
	reloader.OnReload(func(ctx context.Context, newCfg *config.Config) error {
		applyFlags(cmd, newCfg)
		return applyReload(bus, rootLog, newCfg)
	})
	reloader.Start(ctx)
	defer reloader.Stop()

	sm := shutdown.New(bus, shutdownTimeout, rootLog)
	sm.AddPreHook(func(ctx context.Context) error {
		cancel()
		return g.Wait()
	})
	sm.AddPostHook(func(ctx context.Context) error {
		fmt.Fprint(cmd.OutOrStdout(), renderDump(bus.Dump(), bus.RouterStats()))
		return nil
	})
	sm.Start()
	defer sm.Stop()

	rootLog.Info("Bus is running. Press Ctrl+C to stop.", "identities", len(cfg.Demo.Identities))

	// A worker failing also ends the run
	go func() {
		<-gctx.Done()
		if ctx.Err() == nil {
			_ = sm.Shutdown(context.Background(), "worker stopped")
		}
	}()

	<-sm.Done()
	rootLog.Info("pezbus shutdown complete", "reason", sm.Reason())
	return nil
}

// applyReload pushes the reloadable settings into the running bus
func applyReload(bus *ipc.Bus, log *logger.Logger, cfg *config.Config) error {
	level, err := logger.ParseLevel(cfg.Logging.Level)
	if err != nil {
		return err
	}
	log.SetLevel(level)
	bus.SetTrace(cfg.Bus.Trace)
	return nil
}

// startHeartbeats attaches every identity. The first pings the others each
// interval; the others acknowledge every ping they receive.
func startHeartbeats(ctx context.Context, g *errgroup.Group, bus *ipc.Bus, cfg config.DemoConfig, log *logger.Logger) error {
	hubName := cfg.Identities[0]
	hub, hubTok, err := bus.Attach(hubName)
	if err != nil {
		return err
	}

	peers := cfg.Identities[1:]
	for _, name := range peers {
		ep, tok, err := bus.Attach(name)
		if err != nil {
			return err
		}
		name := name
		g.Go(func() error {
			defer pinThread(cfg.LockOSThread, name, log)()
			return ep.Serve(ctx, tok, ackHandler(ep, tok, log))
		})
	}

	g.Go(func() error {
		defer pinThread(cfg.LockOSThread, hubName, log)()
		return hub.Serve(ctx, hubTok, ipc.HandlerFunc(func(ctx context.Context, payload []byte) error {
			hb, err := heartbeat.Decode(payload)
			if err != nil {
				return err
			}
			log.Info("Heartbeat acknowledged", "from", hb.Source, "seq", hb.Seq, "rtt", hb.Age(time.Now()).String())
			return nil
		}))
	})

	g.Go(func() error {
		ticker := time.NewTicker(cfg.Interval)
		defer ticker.Stop()

		var seq uint64
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
			}

			seq++
			for _, peer := range peers {
				data, err := heartbeat.New(hubName, peer, seq, "").Encode()
				if err != nil {
					return err
				}
				if err := hub.Send(hubTok, peer, data); err != nil {
					// the router is saturated or stopping; try again next tick
					log.Warn("Heartbeat not sent", "target", peer, "seq", seq, "error", err)
				}
			}
		}
	})

	return nil
}

// ackHandler echoes each heartbeat back to its source, keeping SentAt so the
// source can measure the round trip.
func ackHandler(ep *ipc.Endpoint, tok types.Token, log *logger.Logger) ipc.Handler {
	return ipc.HandlerFunc(func(ctx context.Context, payload []byte) error {
		hb, err := heartbeat.Decode(payload)
		if err != nil {
			return err
		}
		if hb.Body == ackBody {
			return nil
		}

		reply := heartbeat.Heartbeat{
			Source: ep.Name(),
			Target: hb.Source,
			Seq:    hb.Seq,
			SentAt: hb.SentAt,
			Body:   ackBody,
		}
		data, err := reply.Encode()
		if err != nil {
			return err
		}
		log.Debug("Acknowledging heartbeat", "name", ep.Name(), "to", hb.Source, "seq", hb.Seq)
		return ep.Send(tok, hb.Source, data)
	})
}

func init() {
	rootCmd.AddCommand(runCmd)
}
