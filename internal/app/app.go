// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package app wires every component of the control plane together:
// configuration, the metadata store, the dependency graph engine, the
// permission broker, push delivery, and the HTTP API. Components are
// passed around as explicit dependencies rather than global singletons,
// with an initialize/shutdown lifecycle a test harness can reset.
package app

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/basinlabs/cuid/internal/api"
	"github.com/basinlabs/cuid/internal/config"
	"github.com/basinlabs/cuid/internal/conversation"
	"github.com/basinlabs/cuid/internal/depgraph"
	"github.com/basinlabs/cuid/internal/logging"
	"github.com/basinlabs/cuid/internal/metadata"
	"github.com/basinlabs/cuid/internal/permission"
	"github.com/basinlabs/cuid/internal/push"
)

var log = logging.For("app")

// Paths collects every on-disk location the app reads from or writes to,
// all rooted under $HOME/.cui unless overridden.
type Paths struct {
	Root            string
	ConfigPath      string
	PreferencesPath string
	MetadataPath    string
	DepsPath        string
	PushPath        string
	TranscriptsRoot string
}

// DefaultPaths lays out the on-disk tree under $HOME/.cui, with the
// transcript root defaulting to the assistant CLI's own project directory.
func DefaultPaths() (Paths, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return Paths{}, fmt.Errorf("resolve home directory: %w", err)
	}
	root := filepath.Join(home, ".cui")
	return Paths{
		Root:            root,
		ConfigPath:      filepath.Join(root, "config.json"),
		PreferencesPath: filepath.Join(root, "preferences.json"),
		MetadataPath:    filepath.Join(root, "session-info.db"),
		DepsPath:        filepath.Join(root, "session-deps.json"),
		PushPath:        filepath.Join(root, "web-push.db"),
		TranscriptsRoot: filepath.Join(home, ".claude", "projects"),
	}, nil
}

// App is the process-wide container for every component, with an explicit
// lifecycle: New wires everything, Run serves until ctx is cancelled,
// Shutdown drains and closes every owned resource.
type App struct {
	paths Paths

	config            *config.Store[config.Config]
	preferences       *config.Store[config.Preferences]
	metadata          *metadata.Store
	conversation      *conversation.Service
	transcriptWatcher *conversation.Watcher
	engine            *depgraph.Engine
	permissions       *permission.Broker
	pushStore         *push.Store
	broadcaster       *push.Broadcaster
	logs              *logging.Ring
	server            *api.Server

	testMode bool
}

// Options customizes New for non-default deployments, mainly tests.
type Options struct {
	Paths    Paths
	TestMode bool
}

// New constructs every component and wires them together. It does not
// start serving HTTP; call Run for that.
func New(opts Options) (*App, error) {
	if err := os.MkdirAll(opts.Paths.Root, 0o755); err != nil {
		return nil, fmt.Errorf("create app root %s: %w", opts.Paths.Root, err)
	}

	ring := logging.NewRing(2000)

	cfgStore, err := openConfigStore(opts.Paths.ConfigPath)
	if err != nil {
		return nil, err
	}

	logging.Init(logging.Config{
		Level:  logging.ParseLevel(cfgStore.Snapshot().Logging.Level),
		Format: cfgStore.Snapshot().Logging.Format,
		Output: zerologMultiWriter(ring),
	})

	if err := cfgStore.Watch(); err != nil {
		log.Warn().Err(err).Msg("failed to start config file watcher, live reload disabled")
	}

	prefStore, err := config.Open(opts.Paths.PreferencesPath, config.Preferences{}, config.ApplyPreferencesDefaults, nil)
	if err != nil {
		return nil, fmt.Errorf("open preferences store: %w", err)
	}
	if err := prefStore.Watch(); err != nil {
		log.Warn().Err(err).Msg("failed to start preferences file watcher, live reload disabled")
	}

	mdStore, err := metadata.Open(opts.Paths.MetadataPath)
	if err != nil {
		return nil, fmt.Errorf("open metadata store: %w", err)
	}

	pushStore, err := push.Open(opts.Paths.PushPath)
	if err != nil {
		mdStore.Close()
		return nil, fmt.Errorf("open push store: %w", err)
	}
	broadcaster := push.NewBroadcaster(pushStore, push.NewHTTPSender())

	convSvc := conversation.NewService(opts.Paths.TranscriptsRoot, mdStore)
	engine := depgraph.New(opts.Paths.DepsPath, convSvc.FetchMessages)
	convSvc.AttachEngine(engine)

	if err := os.MkdirAll(opts.Paths.TranscriptsRoot, 0o755); err != nil {
		log.Warn().Err(err).Str("root", opts.Paths.TranscriptsRoot).Msg("failed to create transcript root, live cache warming disabled")
	}
	transcriptWatcher, err := convSvc.Watch()
	if err != nil {
		log.Warn().Err(err).Msg("failed to start transcript directory watcher, falling back to poll-driven cache refresh")
	}

	notify := func(req permission.Request) {
		go func() {
			_, err := broadcaster.Broadcast(context.Background(), push.Message{
				Title: "Permission requested",
				Body:  fmt.Sprintf("%s wants to run %s", req.SessionID, req.ToolName),
			})
			if err != nil {
				log.Warn().Err(err).Str("request_id", req.ID).Msg("failed to broadcast permission notification")
			}
		}()
	}
	broker := permission.New(notify)

	router := api.NewRouter(api.Dependencies{
		Config:          cfgStore,
		Preferences:     prefStore,
		Conversations:   convSvc,
		Metadata:        mdStore,
		Permissions:     broker,
		PushStore:       pushStore,
		PushBroadcaster: broadcaster,
		Logs:            ring,
		AuthToken:       cfgStore.Snapshot().AuthToken,
		TestMode:        opts.TestMode,
	})

	srvCfg := cfgStore.Snapshot().Server
	server := api.NewServer(srvCfg.Host, srvCfg.Port, router)

	return &App{
		paths:             opts.Paths,
		config:            cfgStore,
		preferences:       prefStore,
		metadata:          mdStore,
		conversation:      convSvc,
		transcriptWatcher: transcriptWatcher,
		engine:            engine,
		permissions:       broker,
		pushStore:         pushStore,
		broadcaster:       broadcaster,
		logs:              ring,
		server:            server,
		testMode:          opts.TestMode,
	}, nil
}

func openConfigStore(path string) (*config.Store[config.Config], error) {
	machineID, authToken, err := config.BootstrapIdentity()
	if err != nil {
		return nil, fmt.Errorf("bootstrap identity: %w", err)
	}

	defaults := config.Config{MachineID: machineID, AuthToken: authToken}
	config.ApplyDefaults(&defaults)

	store, err := config.Open(path, defaults, config.ApplyDefaults, config.Validate)
	if err != nil {
		return nil, fmt.Errorf("open config store: %w", err)
	}
	return store, nil
}

// Run starts the HTTP server and blocks until ctx is cancelled, then
// performs a graceful shutdown.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() { errCh <- a.server.ListenAndServe() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		return a.Shutdown(context.Background())
	}
}

// Shutdown drains the HTTP listener and closes every owned store.
func (a *App) Shutdown(ctx context.Context) error {
	log.Info().Msg("shutting down")

	if err := a.server.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("error shutting down HTTP server")
	}

	a.config.Close()
	a.preferences.Close()
	if a.transcriptWatcher != nil {
		a.transcriptWatcher.Close()
	}

	if err := a.metadata.Close(); err != nil {
		log.Error().Err(err).Msg("error closing metadata store")
	}
	if err := a.pushStore.Close(); err != nil {
		log.Error().Err(err).Msg("error closing push store")
	}
	return nil
}

// ConversationService exposes the conversation driver.
func (a *App) ConversationService() *conversation.Service { return a.conversation }

// Config exposes the configuration store.
func (a *App) Config() *config.Store[config.Config] { return a.config }

// zerologMultiWriter fans log output out to stderr and the in-memory ring
// the /api/logs endpoints read from.
func zerologMultiWriter(ring *logging.Ring) io.Writer {
	return io.MultiWriter(os.Stderr, ring)
}
