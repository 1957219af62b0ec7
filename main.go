package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"uptime/commands"
	"uptime/config"

	log "github.com/sirupsen/logrus"
)

func setLogLevel(level string) {
	l, err := log.ParseLevel(level)
	if err != nil {
		log.Fatalf("Invalid log level: %v", err)
	}
	log.SetLevel(l)
}

func registerGlobalFlags(fset *flag.FlagSet) {
	flag.VisitAll(func(f *flag.Flag) {
		fset.Var(f.Value, f.Name, f.Usage)
	})
}

func checkConfig(cfg string) {
	if cfg == "" {
		log.Fatal("Config file not specified")
	}
}

func loadConfig(configFile string) *config.Config {
	cfg, err := config.NewConfigFromFile(configFile)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	return cfg
}

// main is the entry point of the application.
func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	configFile := flag.String("config", "", "Path to config file")
	logLevel := flag.String("loglevel", "info", "Log level")

	initCmd := flag.NewFlagSet("init", flag.ExitOnError)
	initOpts := commands.InitOptions{}
	initCmd.StringVar(&initOpts.DataDir, "datadir", "", "Directory for the block store and commit log")
	initCmd.StringVar(&initOpts.Layout, "layout", "", "State layout: map or tree")
	initCmd.StringVar(&initOpts.Backend, "backend", "", "Block store backend: leveldb or flatfs")
	initCmd.StringVar(&initOpts.Genesis, "genesis", "", "Initial checkers, id=creator[@addr|addr],...")
	registerGlobalFlags(initCmd)

	serveCmd := flag.NewFlagSet("serve", flag.ExitOnError)
	registerGlobalFlags(serveCmd)

	callCmd := flag.NewFlagSet("call", flag.ExitOnError)
	callOpts := commands.CallOptions{}
	callCmd.StringVar(&callOpts.Address, "addr", "", "Node RPC address, defaults to the configured one")
	callCmd.StringVar(&callOpts.Method, "method", "", "Method name or number")
	callCmd.Uint64Var(&callOpts.Caller, "caller", 0, "Caller actor id")
	callCmd.StringVar(&callOpts.Peer, "peer", "", "Caller peer id")
	callCmd.StringVar(&callOpts.ID, "id", "", "Record peer id, defaults to -peer")
	callCmd.Uint64Var(&callOpts.Creator, "creator", 0, "Record owner, defaults to -caller")
	callCmd.StringVar(&callOpts.Addresses, "addresses", "", "Comma separated record addresses")
	callCmd.StringVar(&callOpts.Subject, "subject", "", "Checker reported offline")
	callCmd.StringVar(&callOpts.Genesis, "genesis", "", "Constructor checkers, id=creator[@addr|addr],...")
	callCmd.DurationVar(&callOpts.Timeout, "timeout", 10*time.Second, "Call timeout")
	registerGlobalFlags(callCmd)

	infoCmd := flag.NewFlagSet("info", flag.ExitOnError)
	infoOpts := commands.InfoOptions{}
	infoCmd.BoolVar(&infoOpts.Offline, "offline", false, "Read the local stores instead of the running node")
	infoCmd.Uint64Var(&infoOpts.History, "history", 10, "Number of recent commits to print")
	registerGlobalFlags(infoCmd)

	if len(os.Args) < 2 {
		log.WithField("args", os.Args).Fatal("Expected a subcommand")
	}
	cmd, args := os.Args[1], os.Args[2:]

	switch cmd {
	case "init":
		initCmd.Parse(args)
		checkConfig(*configFile)
		setLogLevel(*logLevel)
		cfg := config.NewEmptyConfig(*configFile)
		commands.RunInit(ctx, cfg, initOpts)
	case "serve":
		serveCmd.Parse(args)
		checkConfig(*configFile)
		setLogLevel(*logLevel)
		commands.RunServe(ctx, loadConfig(*configFile))
	case "call":
		callCmd.Parse(args)
		checkConfig(*configFile)
		setLogLevel(*logLevel)
		commands.RunCall(ctx, loadConfig(*configFile), callOpts)
	case "info":
		infoCmd.Parse(args)
		checkConfig(*configFile)
		setLogLevel(*logLevel)
		commands.RunInfo(ctx, loadConfig(*configFile), infoOpts)
	default:
		log.Fatalf("Invalid subcommand '%s'", os.Args[1])
	}
}
