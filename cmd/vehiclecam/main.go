// Vehiclecam — CLI entry point.
//
// This tool streams live JPEG video from the vehicle over a custom
// low-latency UDP transport and bridges it into browser-friendly
// transports. One binary, three roles:
//
//	stream — run the UDP streaming server on the vehicle
//	view   — connect as a reference viewer (protocol verification)
//	bridge — forward the stream to a WebSocket or WebRTC viewer
//
// It can be launched interactively (no flags) or non-interactively via CLI
// flags (-role, -config, plus per-role overrides).
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"

	"github.com/pterm/pterm"

	"github.com/Ju-Daeng-E/Hannover-Makers-Fair-Team4/internal/bridge"
	"github.com/Ju-Daeng-E/Hannover-Makers-Fair-Team4/internal/config"
	"github.com/Ju-Daeng-E/Hannover-Makers-Fair-Team4/internal/streamer"
	"github.com/Ju-Daeng-E/Hannover-Makers-Fair-Team4/internal/util"
	"github.com/Ju-Daeng-E/Hannover-Makers-Fair-Team4/internal/viewer"
)

var version = "dev"

func main() {
	// Root context — cancelled on Ctrl+C.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	// CLI flags.
	role := flag.String("role", "", "Role: stream, view or bridge")
	cfgPath := flag.String("config", "", "Path to YAML config file")
	host := flag.String("host", "", "Streamer host (view/bridge) or listen host (stream)")
	port := flag.Int("port", 0, "Streamer UDP port, 1~65535")
	wsPort := flag.Int("ws-port", 0, "Bridge WebSocket port (bridge only)")
	fps := flag.Int("fps", 0, "Max frames per second (stream only)")
	quality := flag.Int("quality", 0, "JPEG quality 1~100 (stream only)")
	chunkSize := flag.Int("chunk-size", 0, "Datagram payload capacity (stream only)")
	outDir := flag.String("out", "", "Directory for received frames (view only)")
	rtcMode := flag.Bool("rtc", false, "Deliver frames over a WebRTC data channel (bridge only)")
	debugMode := flag.Bool("debug", false, "Enable debug logging")
	flag.Parse()

	if *debugMode {
		util.EnableDebug()
	}

	pterm.Info.Println(fmt.Sprintf("Vehiclecam — v%s", version))
	pterm.Println()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		util.LogError("%v", err)
		os.Exit(1)
	}
	applyOverrides(cfg, *host, *port, *wsPort, *fps, *quality, *chunkSize, *outDir, *rtcMode)

	switch *role {
	case "":
		// No -role flag → interactive mode.
		runInteractive(ctx, cfg)

	case "stream":
		runStream(ctx, cfg)

	case "view":
		runView(ctx, cfg)

	case "bridge":
		runBridge(ctx, cfg)

	default:
		util.LogError("invalid -role: must be 'stream', 'view' or 'bridge'")
		os.Exit(1)
	}

	util.LogInfo("shutdown complete")
}

// applyOverrides merges non-zero CLI flags over the loaded configuration.
func applyOverrides(cfg *config.Config, host string, port, wsPort, fps, quality, chunkSize int, outDir string, rtcMode bool) {
	if host != "" {
		cfg.Stream.Host = host
		cfg.View.Host = host
		cfg.Bridge.UDPHost = host
	}
	if port > 0 {
		cfg.Stream.Port = port
		cfg.View.Port = port
		cfg.Bridge.UDPPort = port
	}
	if wsPort > 0 {
		cfg.Bridge.WSPort = wsPort
	}
	if fps > 0 {
		cfg.Stream.MaxFPS = fps
	}
	if quality > 0 {
		cfg.Stream.Quality = quality
	}
	if chunkSize > 0 {
		cfg.Stream.ChunkSize = chunkSize
	}
	if outDir != "" {
		cfg.View.OutDir = outDir
	}
	if rtcMode {
		cfg.Bridge.RTC = true
	}
}

// ---------------------------------------------------------------------------
// Run modes
// ---------------------------------------------------------------------------

// runInteractive falls back to prompts when no -role flag is provided.
func runInteractive(ctx context.Context, cfg *config.Config) {
	role, _ := pterm.DefaultInteractiveSelect.
		WithOptions([]string{
			"Stream — Broadcast camera video over UDP",
			"View   — Watch a stream (reference viewer)",
			"Bridge — Forward the stream to a browser",
		}).
		WithDefaultText("Select a role").
		Show()

	pterm.Println()

	switch {
	case strings.HasPrefix(role, "Stream"):
		cfg.Stream.Port = askPort("UDP port to listen on (1 ~ 65535)", cfg.Stream.Port)
		runStream(ctx, cfg)
	case strings.HasPrefix(role, "View"):
		cfg.View.Host = askHost("Streamer host", cfg.View.Host)
		cfg.View.Port = askPort("Streamer UDP port (1 ~ 65535)", cfg.View.Port)
		runView(ctx, cfg)
	default:
		cfg.Bridge.UDPHost = askHost("Streamer host", cfg.Bridge.UDPHost)
		cfg.Bridge.UDPPort = askPort("Streamer UDP port (1 ~ 65535)", cfg.Bridge.UDPPort)
		cfg.Bridge.WSPort = askPort("WebSocket port for browsers (1 ~ 65535)", cfg.Bridge.WSPort)
		runBridge(ctx, cfg)
	}
}

// runStream executes the vehicle-side streaming server.
func runStream(ctx context.Context, cfg *config.Config) {
	source := streamer.NewPatternSource(cfg.Stream.Quality)

	s, err := streamer.New(cfg.Stream, source)
	if err != nil {
		util.LogError("failed to start streamer: %v", err)
		os.Exit(1)
	}

	util.StartStatsReporter(ctx)
	util.LogInfo("viewers connect by sending CONNECT to udp://[vehicle-ip]:%d", cfg.Stream.Port)

	if err := s.Run(ctx); err != nil {
		util.LogError("streamer failed: %v", err)
		os.Exit(1)
	}
}

// runView executes the reference viewer.
func runView(ctx context.Context, cfg *config.Config) {
	var sink viewer.Sink = viewer.NullSink{}
	if cfg.View.OutDir != "" {
		dirSink, err := viewer.NewDirSink(cfg.View.OutDir)
		if err != nil {
			util.LogError("failed to create frame sink: %v", err)
			os.Exit(1)
		}
		sink = dirSink
		util.LogInfo("writing received frames to %s/latest.jpg", cfg.View.OutDir)
	}

	util.StartStatsReporter(ctx)

	if err := viewer.New(cfg.View, sink).Run(ctx); err != nil {
		util.LogError("viewer failed: %v", err)
		os.Exit(1)
	}
}

// runBridge executes the UDP → WebSocket/WebRTC bridge.
func runBridge(ctx context.Context, cfg *config.Config) {
	util.StartStatsReporter(ctx)

	if err := bridge.New(cfg.Bridge).Run(ctx); err != nil {
		util.LogError("bridge failed: %v", err)
		os.Exit(1)
	}
}

// ---------------------------------------------------------------------------
// Helper Functions
// ---------------------------------------------------------------------------

// askPort prompts for a port number until a valid one is entered.
func askPort(prompt string, def int) int {
	for {
		raw, _ := pterm.DefaultInteractiveTextInput.
			WithDefaultValue(strconv.Itoa(def)).
			WithDefaultText(prompt).
			Show()

		port, err := strconv.Atoi(strings.TrimSpace(raw))
		if err == nil && port >= 1 && port <= 65535 {
			pterm.Println()
			return port
		}

		util.LogWarning("invalid port number: must be 1 ~ 65535")
		pterm.Println()
	}
}

// askHost prompts for a hostname or IP until a non-empty one is entered.
func askHost(prompt string, def string) string {
	for {
		raw, _ := pterm.DefaultInteractiveTextInput.
			WithDefaultValue(def).
			WithDefaultText(prompt).
			Show()

		host := strings.TrimSpace(raw)
		if host != "" {
			pterm.Println()
			return host
		}

		util.LogWarning("invalid input: please enter a host or IP")
		pterm.Println()
	}
}
