// ABOUTME: Entry point for the Zonecast control-plane monitor
// ABOUTME: Parses CLI flags, wires the controller, and runs the TUI
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/zonecast/zonecast-go/internal/config"
	"github.com/zonecast/zonecast-go/internal/control"
	"github.com/zonecast/zonecast-go/internal/discovery"
	"github.com/zonecast/zonecast-go/internal/events"
	"github.com/zonecast/zonecast-go/internal/transport"
	"github.com/zonecast/zonecast-go/internal/ui"
	"github.com/zonecast/zonecast-go/internal/version"
)

var (
	configPath    = flag.String("config", "", "Path to TOML config file")
	serverAddr    = flag.String("server", "", "Manual server address (skip mDNS discovery)")
	transportKind = flag.String("transport", "", "Control transport: tcp or ws")
	logFile       = flag.String("log-file", "zonecast.log", "Log file path")
	noTUI         = flag.Bool("no-tui", false, "Disable TUI, use streaming logs instead")
	streamLogs    = flag.Bool("stream-logs", false, "Alias for -no-tui")
)

func main() {
	flag.Parse()

	// Determine if we should use TUI or streaming logs
	useTUI := !(*noTUI || *streamLogs)

	// Set up logging
	f, err := os.OpenFile(*logFile, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
	if err != nil {
		log.Fatalf("error opening log file: %v", err)
	}
	defer func() { _ = f.Close() }()

	if useTUI {
		// TUI mode: log only to file
		log.SetOutput(f)
	} else {
		// Streaming logs mode: log to both stdout and file
		multiWriter := io.MultiWriter(os.Stdout, f)
		log.SetOutput(multiWriter)
	}

	log.Printf("Starting %s %s", version.Product, version.Version)

	// Load configuration
	cfg := config.Default()
	if *configPath != "" {
		cfg, err = config.Load(*configPath)
		if err != nil {
			log.Fatalf("Failed to load config: %v", err)
		}
	}
	if *serverAddr != "" {
		cfg.Server.Address = *serverAddr
	}
	if *transportKind != "" {
		cfg.Server.Transport = *transportKind
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	// Fall back to mDNS when no address is configured
	if cfg.Server.Address == "" {
		log.Printf("Starting server discovery...")
		disc := discovery.NewManager()
		disc.Browse()

		select {
		case server := <-disc.Servers():
			cfg.Server.Address = fmt.Sprintf("%s:%d", server.Host, server.Port)
			log.Printf("Discovered server at %s", cfg.Server.Address)
		case <-time.After(10 * time.Second):
			log.Fatalf("No server found after 10 seconds")
		}
		disc.Stop()
	}

	ctrl := control.New(control.Config{
		CallTimeout:      cfg.Server.CallTimeout,
		ReconnectInitial: cfg.Reconnect.Initial,
		ReconnectMax:     cfg.Reconnect.Max,
		Zones:            cfg.ZoneGroups(),
	}, newTransportFactory(cfg.Server))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	runDone := make(chan struct{})
	go func() {
		defer close(runDone)
		if err := ctrl.Run(ctx); err != nil {
			log.Printf("Controller stopped: %v", err)
		}
	}()

	var tuiProg *tea.Program
	var controls *ui.Controls

	if useTUI {
		controls = ui.NewControls()
		tuiProg, err = ui.Run(controls)
		if err != nil {
			log.Fatalf("Failed to start TUI: %v", err)
		}
		go func() {
			if _, err := tuiProg.Run(); err != nil {
				log.Printf("TUI exited: %v", err)
			}
		}()

		go updateLoop(ctx, ctrl, cfg.Server.Address, tuiProg)
		go handleControls(ctx, ctrl, controls)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	if controls != nil {
		select {
		case <-controls.Quit:
			log.Printf("Received quit signal from TUI")
		case <-sigChan:
			log.Printf("Shutdown signal received")
		}
	} else {
		<-sigChan
		log.Printf("Shutdown signal received")
	}

	// Ordered shutdown: cancel first so the run loop fails pending
	// calls and closes the transport, then tear down the TUI.
	cancel()
	select {
	case <-runDone:
	case <-time.After(5 * time.Second):
		log.Printf("Run loop did not exit cleanly")
	}

	if tuiProg != nil {
		tuiProg.Quit()
	}

	log.Printf("Shutdown complete")
}

// newTransportFactory builds single-use transports for the run loop
func newTransportFactory(server config.ServerConfig) func() transport.Transport {
	return func() transport.Transport {
		if server.Transport == config.TransportWebSocket {
			return transport.NewWebSocket(server.Address)
		}
		return transport.NewTCP(server.Address)
	}
}

// updateLoop pushes topology and connection phase updates into the TUI
func updateLoop(ctx context.Context, ctrl *control.Controller, addr string, prog *tea.Program) {
	sub := ctrl.Subscribe(events.DefaultBuffer)
	defer sub.Cancel()

	push := func() {
		prog.Send(ui.StatusMsg{
			Phase:      ctrl.Phase().String(),
			ServerAddr: addr,
			Zones:      ctrl.Zones(),
			Clients:    ctrl.Clients(),
		})
	}

	// Phase moves between events, so refresh on a timer as well.
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case _, ok := <-sub.C:
			if !ok {
				return
			}
			push()
		case <-ticker.C:
			push()
		}
	}
}

// handleControls forwards operator commands from the TUI to the controller
func handleControls(ctx context.Context, ctrl *control.Controller, controls *ui.Controls) {
	for {
		select {
		case <-ctx.Done():
			return
		case toggle := <-controls.MuteToggles:
			go func(t ui.MuteToggleMsg) {
				cmdCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
				defer cancel()
				if err := ctrl.SetGroupMute(cmdCtx, t.GroupID, t.Muted); err != nil {
					log.Printf("Mute toggle for %s failed: %v", t.GroupID, err)
				}
			}(toggle)
		case <-controls.Resyncs:
			ctrl.RequestResync()
		}
	}
}
