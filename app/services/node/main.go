package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/ardanlabs/conf/v3"
	"github.com/cenkalti/backoff"
	"github.com/darendal/powchain/app/services/node/handlers"
	"github.com/darendal/powchain/foundation/blockchain/database"
	"github.com/darendal/powchain/foundation/blockchain/database/storage/disk"
	"github.com/darendal/powchain/foundation/blockchain/database/storage/kv"
	"github.com/darendal/powchain/foundation/blockchain/peer"
	"github.com/darendal/powchain/foundation/blockchain/state"
	"github.com/darendal/powchain/foundation/blockchain/worker"
	"github.com/darendal/powchain/foundation/events"
	"github.com/darendal/powchain/foundation/logger"
	"github.com/darendal/powchain/foundation/profile"
	"go.uber.org/zap"
)

// build is the git version of this program. It is set using build flags in the makefile.
var build = "develop"

// config is all the configuration for the application and the default
// values. Profiles are loaded first, then environment variables and command
// line flags override them.
type config struct {
	conf.Version
	Web struct {
		ReadTimeout     time.Duration `conf:"default:5s" yaml:"read_timeout"`
		WriteTimeout    time.Duration `conf:"default:30s" yaml:"write_timeout"`
		IdleTimeout     time.Duration `conf:"default:120s" yaml:"idle_timeout"`
		ShutdownTimeout time.Duration `conf:"default:20s" yaml:"shutdown_timeout"`
		DebugHost       string        `conf:"default:0.0.0.0:7080" yaml:"debug_host"`
		PublicHost      string        `conf:"help:defaults to 0.0.0.0:<identity>" yaml:"public_host"`
		PrivateHost     string        `conf:"default:0.0.0.0:9080" yaml:"private_host"`
	} `yaml:"web"`
	Node struct {
		Identity     uint16        `conf:"default:3000" yaml:"identity"`
		MineToSize   int           `yaml:"mine_to_size"`
		SyncPeer     string        `yaml:"sync_peer"`
		SyncInterval time.Duration `yaml:"sync_interval"`
		Serve        bool          `conf:"help:serve the chain after startup" yaml:"serve"`
	} `yaml:"node"`
	Block struct {
		NumberOfZeroes uint          `conf:"default:2" yaml:"number_of_zeroes"`
		ChainDirectory string        `conf:"default:zblock/chain" yaml:"chain_directory"`
		Workers        int           `conf:"default:1" yaml:"workers"`
		Storage        string        `conf:"default:disk,help:disk or badger" yaml:"storage"`
		StrictAdopt    bool          `yaml:"strict_adopt"`
		SyncTimeout    time.Duration `conf:"default:30s" yaml:"sync_timeout"`
	} `yaml:"block"`
}

func main() {

	// Construct the application logger.
	log, err := logger.New("NODE")
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
	defer log.Sync()

	// Perform the startup and shutdown sequence.
	if err := run(log); err != nil {
		log.Errorw("startup", "ERROR", err)
		log.Sync()
		os.Exit(1)
	}
}

func run(log *zap.SugaredLogger) error {

	// =========================================================================
	// Configuration

	cfg := config{
		Version: conf.Version{
			Build: build,
			Desc:  "proof of work blockchain node",
		},
	}

	// The profiles are layered underneath the environment and flags so the
	// profile directory itself can only come from the environment.
	profileDir := os.Getenv("NODE_PROFILE_DIRECTORY")
	if profileDir == "" {
		profileDir = "config"
	}

	applied, err := profile.Load(profileDir, profile.Mode(), &cfg)
	if err != nil {
		return fmt.Errorf("loading profiles: %w", err)
	}

	// Parse will set the defaults for values the profiles didn't provide and
	// then look for any overriding values in environment variables and
	// command line flags.
	const prefix = "NODE"
	help, err := conf.Parse(prefix, &cfg)
	if err != nil {
		if errors.Is(err, conf.ErrHelpWanted) {
			fmt.Println(help)
			return nil
		}
		return fmt.Errorf("parsing config: %w", err)
	}

	if cfg.Web.PublicHost == "" {
		cfg.Web.PublicHost = "0.0.0.0:" + strconv.FormatUint(uint64(cfg.Node.Identity), 10)
	}

	// =========================================================================
	// App Starting

	log.Infow("starting service", "version", build, "identity", cfg.Node.Identity)
	defer log.Infow("shutdown complete")

	log.Infow("startup", "runmode", profile.Mode(), "profiles", applied)

	// Display the current configuration to the logs.
	out, err := conf.String(&cfg)
	if err != nil {
		return fmt.Errorf("generating config for output: %w", err)
	}
	log.Infow("startup", "config", out)

	// =========================================================================
	// Blockchain Support

	// The blockchain packages accept a function of this signature to allow the
	// application to log. These raw messages are also sent to any websocket
	// client that is connected into the system through the events package.
	evts := events.New()
	ev := func(v string, args ...any) {
		s := fmt.Sprintf(v, args...)
		log.Infow(s, "traceid", "00000000-0000-0000-0000-000000000000")
		evts.Send(s)
	}

	storage, err := openStorage(log, cfg.Block.Storage, cfg.Block.ChainDirectory, cfg.Node.Identity)
	if err != nil {
		return err
	}

	// The state value represents the blockchain node and manages the blockchain
	// database and provides an API for application support.
	st, err := state.New(context.Background(), state.Config{
		Identity:    cfg.Node.Identity,
		Storage:     storage,
		Difficulty:  cfg.Block.NumberOfZeroes,
		Workers:     cfg.Block.Workers,
		StrictAdopt: cfg.Block.StrictAdopt,
		SyncTimeout: cfg.Block.SyncTimeout,
		EvHandler:   ev,
	})
	if err != nil {
		storage.Close()
		if database.IsLocalCorruption(err) {
			return fmt.Errorf("chain storage is corrupt, operator action required: %w", err)
		}
		return err
	}
	defer st.Shutdown()

	// A node that isn't serving only performs the one shot operations.
	if !cfg.Node.Serve {
		return runOnce(log, st, cfg)
	}

	// The worker package implements the background mining and the periodic
	// pull from the configured peer. The worker will register itself with
	// the state.
	worker.Run(st, worker.Config{
		SyncPeer:     peer.New(cfg.Node.SyncPeer),
		SyncInterval: cfg.Node.SyncInterval,
		EvHandler:    ev,
	})

	if cfg.Node.SyncPeer != "" {
		pullOnStartup(log, st, cfg)
	}

	if cfg.Node.MineToSize > 0 {
		st.Worker.SignalMineToSize(cfg.Node.MineToSize)
	}

	// =========================================================================
	// Start Debug Service

	log.Infow("startup", "status", "debug v1 router started", "host", cfg.Web.DebugHost)

	// Construct the mux for the debug calls.
	debugMux := handlers.DebugMux(build, log, st)

	// Start the service listening for debug requests.
	// Not concerned with shutting this down with load shedding.
	go func() {
		if err := http.ListenAndServe(cfg.Web.DebugHost, debugMux); err != nil {
			log.Errorw("shutdown", "status", "debug v1 router closed", "host", cfg.Web.DebugHost, "ERROR", err)
		}
	}()

	// =========================================================================
	// Service Start/Stop Support

	// Make a channel to listen for an interrupt or terminate signal from the OS.
	// Use a buffered channel because the signal package requires it.
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	// Make a channel to listen for errors coming from the listener. Use a
	// buffered channel so the goroutine can exit if we don't collect this error.
	serverErrors := make(chan error, 1)

	// =========================================================================
	// Start Public Service

	log.Infow("startup", "status", "initializing V1 public API support")

	// Construct the mux for the public API calls.
	publicMux := handlers.PublicMux(handlers.MuxConfig{
		Shutdown: shutdown,
		Log:      log,
		State:    st,
		Evts:     evts,
	})

	// Construct a server to service the requests against the mux.
	public := http.Server{
		Addr:         cfg.Web.PublicHost,
		Handler:      publicMux,
		ReadTimeout:  cfg.Web.ReadTimeout,
		WriteTimeout: cfg.Web.WriteTimeout,
		IdleTimeout:  cfg.Web.IdleTimeout,
		ErrorLog:     zap.NewStdLog(log.Desugar()),
	}

	// Start the service listening for api requests.
	go func() {
		log.Infow("startup", "status", "public api router started", "host", public.Addr)
		serverErrors <- public.ListenAndServe()
	}()

	// =========================================================================
	// Start Private Service

	log.Infow("startup", "status", "initializing V1 private API support")

	// Construct the mux for the private API calls.
	privateMux := handlers.PrivateMux(handlers.MuxConfig{
		Shutdown: shutdown,
		Log:      log,
		State:    st,
	})

	// Construct a server to service the requests against the mux.
	private := http.Server{
		Addr:         cfg.Web.PrivateHost,
		Handler:      privateMux,
		ReadTimeout:  cfg.Web.ReadTimeout,
		WriteTimeout: cfg.Web.WriteTimeout,
		IdleTimeout:  cfg.Web.IdleTimeout,
		ErrorLog:     zap.NewStdLog(log.Desugar()),
	}

	// Start the service listening for api requests.
	go func() {
		log.Infow("startup", "status", "private api router started", "host", private.Addr)
		serverErrors <- private.ListenAndServe()
	}()

	// =========================================================================
	// Shutdown

	// Blocking main and waiting for shutdown.
	select {
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)

	case sig := <-shutdown:
		log.Infow("shutdown", "status", "shutdown started", "signal", sig)
		defer log.Infow("shutdown", "status", "shutdown complete", "signal", sig)

		// Release any web sockets that are currently active.
		log.Infow("shutdown", "status", "shutdown web socket channels")
		evts.Shutdown()

		// Give outstanding requests a deadline for completion.
		ctx, cancelPri := context.WithTimeout(context.Background(), cfg.Web.ShutdownTimeout)
		defer cancelPri()

		// Asking listener to shut down and shed load.
		log.Infow("shutdown", "status", "shutdown private API started")
		if err := private.Shutdown(ctx); err != nil {
			private.Close()
			return fmt.Errorf("could not stop private service gracefully: %w", err)
		}

		// Give outstanding requests a deadline for completion.
		ctx, cancelPub := context.WithTimeout(context.Background(), cfg.Web.ShutdownTimeout)
		defer cancelPub()

		// Asking listener to shut down and shed load.
		log.Infow("shutdown", "status", "shutdown public API started")
		if err := public.Shutdown(ctx); err != nil {
			public.Close()
			return fmt.Errorf("could not stop public service gracefully: %w", err)
		}
	}

	return nil
}

// =============================================================================

// openStorage opens the configured block storage for the node identity.
func openStorage(log *zap.SugaredLogger, kind string, base string, identity uint16) (database.Storage, error) {
	switch kind {
	case "disk":
		return disk.New(state.ChainPath(base, identity))

	case "badger":
		path := filepath.Join(base, strconv.FormatUint(uint64(identity), 10)+".kv")
		return kv.New(path, log)
	}

	return nil, fmt.Errorf("unknown storage %q, expecting disk or badger", kind)
}

// runOnce pulls from the configured peer and mines to the configured size on
// the calling goroutine, then returns.
func runOnce(log *zap.SugaredLogger, st *state.State, cfg config) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if cfg.Node.SyncPeer != "" {
		if err := st.PullFrom(ctx, peer.New(cfg.Node.SyncPeer)); err != nil {
			return err
		}
	}

	if cfg.Node.MineToSize > 0 {
		if err := st.MineToSize(ctx, cfg.Node.MineToSize); err != nil {
			return err
		}
	}

	latest := st.RetrieveLatestBlock()
	log.Infow("run once", "status", "completed", "length", st.RetrieveLength(), "latest", latest.Hash)

	return nil
}

// pullOnStartup replaces the chain with the one from the configured peer.
// A peer that can't be reached yet is retried with an exponential backoff
// until the sync timeout passes, then the node keeps its own chain.
func pullOnStartup(log *zap.SugaredLogger, st *state.State, cfg config) {
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Block.SyncTimeout)
	defer cancel()

	pr := peer.New(cfg.Node.SyncPeer)

	op := func() error {
		err := st.PullFrom(ctx, pr)
		if err != nil && !state.IsSyncError(err) {
			return backoff.Permanent(err)
		}
		return err
	}

	notify := func(err error, wait time.Duration) {
		log.Infow("startup", "status", "retrying pull from peer", "peer", pr.Host, "wait", wait, "ERROR", err)
	}

	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = cfg.Block.SyncTimeout

	if err := backoff.RetryNotify(op, backoff.WithContext(bo, ctx), notify); err != nil {
		log.Errorw("startup", "status", "pull from peer failed", "peer", pr.Host, "ERROR", err)
		return
	}

	log.Infow("startup", "status", "pulled chain from peer", "peer", pr.Host, "length", st.RetrieveLength())
}
