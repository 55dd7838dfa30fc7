// Command live777runner keeps the live777 streaming helper alive,
// restarting it with freshly rendered arguments whenever the host's STUN-
// probed network reachability changes.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/pikvm/live777runner/pkg/config"
	"github.com/pikvm/live777runner/pkg/logging"
	"github.com/pikvm/live777runner/pkg/netcfg"
	"github.com/pikvm/live777runner/pkg/stun"
	"github.com/pikvm/live777runner/pkg/supervisor"
)

const version = "1.0.0"

func main() {
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "version", "--version", "-v":
			fmt.Printf("live777runner v%s\n", version)
			return
		case "help", "--help", "-h":
			printHelp()
			return
		}
	}
	run()
}

func printHelp() {
	fmt.Println("live777runner [--config path]")
	fmt.Println()
	fmt.Println("Supervises the live777 streaming helper, restarting it whenever")
	fmt.Println("STUN-probed network reachability changes.")
}

func run() {
	fs := flag.NewFlagSet("live777runner", flag.ExitOnError)
	configPath := fs.String("config", "", "path to the config file (YAML/JSON/TOML); empty uses built-in defaults")
	fs.Parse(os.Args[1:])

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "config error:", err)
		os.Exit(1)
	}

	log := logging.New(cfg.LogLevel)

	stunClient := stun.NewClient(cfg.StunHost, cfg.StunPort, cfg.StunTimeout, cfg.StunRetries, cfg.StunRetriesDelay, log.WithField("app", "live777runner"))
	prober := netcfg.NewProber(stunClient, log.WithField("app", "live777runner"))
	sup := supervisor.New(supervisor.Config{
		CheckInterval:     cfg.CheckInterval,
		CheckRetries:      cfg.CheckRetries,
		CheckRetriesDelay: cfg.CheckRetriesDelay,
		Cmd:               cfg.Cmd,
		CmdRemove:         cfg.CmdRemove,
		CmdAppend:         cfg.CmdAppend,
	}, prober, log.WithField("app", "live777runner"))

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	sup.Run(ctx)
}
