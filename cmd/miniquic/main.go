// Miniquic — CLI entry point.
//
// A minimal reliable-stream transport over UDP datagrams: the server
// publishes a catalog of random objects, the client requests a handful of
// them across multiplexed streams, and both sides drive the stop-and-wait
// engine until every byte is confirmed.
//
// It can be launched interactively (no flags) or non-interactively via CLI
// flags (-role, -addr, -files, -config).
package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand"
	"net"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"time"

	"github.com/pterm/pterm"

	"github.com/1ureka/miniquic/internal/app"
	"github.com/1ureka/miniquic/internal/config"
	"github.com/1ureka/miniquic/internal/engine"
	"github.com/1ureka/miniquic/internal/util"
)

var version = "dev"

func main() {
	// Root context — cancelled on Ctrl+C.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	// CLI flags.
	role := flag.String("role", "", "Role: server or client")
	addr := flag.String("addr", "127.0.0.1:9999", "Server address (bind address for the server role)")
	files := flag.Int("files", 0, "Client: number of objects to request, 1~10")
	configPath := flag.String("config", "", "Optional YAML file overriding protocol knobs")
	debugMode := flag.Bool("debug", false, "Enable debug logging")
	flag.Parse()

	if *debugMode {
		util.EnableDebug()
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		util.LogError("invalid configuration: %v", err)
		os.Exit(1)
	}
	if cfg.Debug {
		util.EnableDebug()
	}

	pterm.Info.Println(fmt.Sprintf("Miniquic — v%s", version))
	pterm.Println()

	switch *role {
	case "":
		// No -role flag → interactive mode.
		runInteractive(ctx, cfg)

	case "server":
		runServer(ctx, cfg, *addr)

	case "client":
		if *files < 1 || *files > app.DefaultObjectCount {
			util.LogError("invalid or missing -files (must be 1~%d)", app.DefaultObjectCount)
			os.Exit(1)
		}
		runClient(cfg, *addr, *files)

	default:
		util.LogError("invalid -role: must be 'server' or 'client'")
		os.Exit(1)
	}
}

// ---------------------------------------------------------------------------
// Run modes
// ---------------------------------------------------------------------------

// runInteractive falls back to interactive prompts when no -role flag is
// provided.
func runInteractive(ctx context.Context, cfg config.Config) {
	role, _ := pterm.DefaultInteractiveSelect.
		WithOptions([]string{"Server — Publish objects", "Client — Fetch objects"}).
		WithDefaultText("Select your role").
		Show()

	pterm.Println()

	if strings.HasPrefix(role, "Server") {
		addr := askAddr("Bind address (host:port)")
		runServer(ctx, cfg, addr)
	} else {
		addr := askAddr("Server address (host:port)")
		files := askCount(fmt.Sprintf("Number of objects to request (1 ~ %d)", app.DefaultObjectCount))
		runClient(cfg, addr, files)
	}
}

// runServer binds the engine, builds the object catalog, and serves
// requests until interrupted.
func runServer(ctx context.Context, cfg config.Config, addr string) {
	eng, err := engine.Listen(addr, cfg.EngineOptions())
	if err != nil {
		util.LogError("failed to start server: %v", err)
		os.Exit(1)
	}
	defer eng.Close()

	util.LogInfo("generating %d random objects...", app.DefaultObjectCount)
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	server := app.NewServer(eng, app.DefaultObjectCount, app.DefaultMinObjSize, app.DefaultMaxObjSize, rng)

	util.LogSuccess("server ready on %s", eng.LocalAddr())

	if err := server.Run(ctx); err != nil {
		if ctx.Err() != nil {
			util.LogInfo("server shutdown")
			return
		}
		util.LogError("serve failed: %v", err)
		os.Exit(1)
	}
}

// runClient requests files random objects and reports what arrived.
func runClient(cfg config.Config, addr string, files int) {
	serverAddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		util.LogError("invalid server address %s: %v", addr, err)
		os.Exit(1)
	}

	eng, err := engine.New(cfg.EngineOptions())
	if err != nil {
		util.LogError("failed to start client: %v", err)
		os.Exit(1)
	}
	defer eng.Close()

	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	pairs := app.RandomPairs(files, app.DefaultObjectCount, rng)

	util.LogInfo("requesting: %s", app.EncodeRequest(pairs))
	objects, err := app.Fetch(eng, serverAddr, pairs)
	if err != nil {
		util.LogError("fetch failed: %v", err)
		os.Exit(1)
	}

	util.LogSuccess("fetch complete")
	for _, p := range pairs {
		util.LogInfo("stream %d: object %d, %d bytes", p.StreamID, p.Object, len(objects[p.StreamID]))
	}
	if info, ok := eng.ConnectionInfo(serverAddr); ok {
		util.LogInfo("connection: %d packets sent, %d packets received", info.SentPackets, info.ReceivedPackets)
	}
}

// ---------------------------------------------------------------------------
// Helper Functions
// ---------------------------------------------------------------------------

// askAddr prompts the user for a host:port address until a valid one is
// entered.
func askAddr(prompt string) string {
	for {
		raw, _ := pterm.DefaultInteractiveTextInput.
			WithDefaultText(prompt).
			WithDefaultValue("127.0.0.1:9999").
			Show()

		addr := strings.TrimSpace(raw)
		if _, err := net.ResolveUDPAddr("udp", addr); err == nil {
			pterm.Println()
			return addr
		}

		util.LogWarning("invalid address: must be host:port")
		pterm.Println()
	}
}

// askCount prompts the user for an object count until a valid one is
// entered.
func askCount(prompt string) int {
	for {
		raw, _ := pterm.DefaultInteractiveTextInput.
			WithDefaultText(prompt).
			Show()

		count, err := strconv.Atoi(strings.TrimSpace(raw))
		if err == nil && count >= 1 && count <= app.DefaultObjectCount {
			pterm.Println()
			return count
		}

		util.LogWarning("invalid count: must be 1 ~ %d", app.DefaultObjectCount)
		pterm.Println()
	}
}
