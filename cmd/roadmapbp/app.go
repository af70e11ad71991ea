package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/term"

	"roadmapbp/pkg/config"
	"roadmapbp/pkg/gateway"
	"roadmapbp/pkg/llm/middleware/metrics"
	"roadmapbp/pkg/logx"
	"roadmapbp/pkg/persistence"
	"roadmapbp/pkg/roadmap"
)

// app holds the wired collaborators for one command invocation.
type app struct {
	cfg       *config.Config
	store     persistence.Store
	gateway   *gateway.Gateway
	generator *roadmap.Generator
	drafter   *roadmap.Drafter
	feedback  *roadmap.Service
	usage     *metrics.InternalRecorder
	registry  *prometheus.Registry
	logger    *logx.Logger
}

type appOptions struct {
	configPath string
	withModel  bool
	withStore  bool
}

// newApp loads config and wires what the command needs. A store that cannot be
// opened is logged and left nil so generation still works.
func newApp(ctx context.Context, env *cliEnv, opts appOptions) (*app, error) {
	cfg, _, err := config.Load(opts.configPath)
	if err != nil {
		return nil, err //nolint:wrapcheck // already descriptive
	}
	a := &app{cfg: cfg, logger: logx.NewLogger("cli")}

	if opts.withStore {
		store, err := persistence.Open(ctx, cfg.Storage)
		if err != nil {
			if !opts.withModel {
				return nil, fmt.Errorf("failed to open %s storage: %w", cfg.Storage.Backend, err)
			}
			a.logger.Warn("Storage unavailable, results will not be saved: %v", err)
		} else {
			a.store = store
		}
	}

	if opts.withModel {
		if err := unlockSecrets(env); err != nil {
			a.Close()
			return nil, err
		}
		if err := a.wireModel(); err != nil {
			a.Close()
			return nil, err
		}
	}
	return a, nil
}

func (a *app) wireModel() error {
	a.usage = metrics.NewInternalRecorder()
	a.registry = prometheus.NewRegistry()
	a.registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	recorder := metrics.Recorder(a.usage)
	if a.cfg.Metrics.Enabled {
		recorder = metrics.Multi(a.usage, metrics.NewPrometheusRecorder(a.cfg.Metrics.Namespace, a.registry))
	}

	gw, err := gateway.NewFromConfig(a.cfg, gateway.Options{Recorder: recorder})
	if err != nil {
		return fmt.Errorf("failed to create model gateway: %w", err)
	}
	a.gateway = gw

	stages, err := roadmap.NewStages(gw, a.cfg.Pipeline.CondenseOverTokens)
	if err != nil {
		return err //nolint:wrapcheck // already descriptive
	}
	genOpts := []roadmap.GeneratorOption{roadmap.WithModelName(gw.ModelName())}
	if a.store != nil {
		genOpts = append(genOpts, roadmap.WithStore(a.store))
	}
	if a.cfg.Pipeline.RenderMode == config.RenderConcurrent {
		genOpts = append(genOpts, roadmap.WithConcurrentRendering(a.cfg.Pipeline.RenderConcurrency))
	}
	a.generator = roadmap.NewGenerator(stages, genOpts...)

	a.drafter, err = roadmap.NewDrafter(gw)
	if err != nil {
		return err //nolint:wrapcheck // already descriptive
	}
	a.feedback = roadmap.NewService(a.store)
	return nil
}

// Close releases the store.
func (a *app) Close() {
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.logger.Warn("Failed to close store: %v", err)
		}
	}
}

// unlockSecrets decrypts the secrets file into memory when it exists. The
// password comes from ROADMAPBP_SECRETS_PASSWORD or an interactive prompt.
func unlockSecrets(env *cliEnv) error {
	path := config.SecretsFilePath()
	if !config.SecretsFileExists(path) {
		return nil
	}
	password, err := secretsPassword(env, false)
	if err != nil {
		return err
	}
	if err := config.UnlockSecrets(path, password); err != nil {
		return fmt.Errorf("failed to unlock secrets file %s: %w", path, err)
	}
	return nil
}

// secretsPassword reads the password from the environment, or prompts when
// stdin is a terminal. confirm asks twice.
func secretsPassword(env *cliEnv, confirm bool) (string, error) {
	if p := os.Getenv(config.EnvSecretsPassword); p != "" {
		return p, nil
	}

	f, ok := env.stdin.(*os.File)
	if !ok || !term.IsTerminal(int(f.Fd())) {
		return "", fmt.Errorf("secrets password required: set %s", config.EnvSecretsPassword)
	}

	first, err := readPassword(env.stderr, f, "Secrets password: ")
	if err != nil {
		return "", err
	}
	if confirm {
		second, err := readPassword(env.stderr, f, "Confirm password: ")
		if err != nil {
			return "", err
		}
		if first != second {
			return "", fmt.Errorf("passwords do not match")
		}
	}
	if first == "" {
		return "", fmt.Errorf("secrets password must not be empty")
	}
	return first, nil
}

func readPassword(prompt io.Writer, f *os.File, label string) (string, error) {
	fmt.Fprint(prompt, label)
	b, err := term.ReadPassword(int(f.Fd()))
	fmt.Fprintln(prompt)
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	password := strings.TrimSpace(string(b))
	for i := range b {
		b[i] = 0
	}
	return password, nil
}

// terminalWidth returns the width of w when it is a terminal.
func terminalWidth(w io.Writer) int {
	if f, ok := w.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		if width, _, err := term.GetSize(int(f.Fd())); err == nil {
			return width
		}
	}
	return 0
}
