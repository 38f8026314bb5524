// Command gpuroute is the control-plane CLI described by §6: decide,
// feedback, status, configure, and sync subcommands, plus the serve
// subcommand that boots the HTTP ingress. Uses a Run(args, stdout, stderr)
// int dispatch pattern with a conventional process exit code.
package main

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lattice-compute/routectl/pkg/adaptive"
	"github.com/lattice-compute/routectl/pkg/apierr"
	"github.com/lattice-compute/routectl/pkg/artifacts"
	"github.com/lattice-compute/routectl/pkg/auditor"
	"github.com/lattice-compute/routectl/pkg/config"
	"github.com/lattice-compute/routectl/pkg/contracts"
	"github.com/lattice-compute/routectl/pkg/crypto"
	"github.com/lattice-compute/routectl/pkg/decisionstore"
	"github.com/lattice-compute/routectl/pkg/executor"
	"github.com/lattice-compute/routectl/pkg/federation"
	"github.com/lattice-compute/routectl/pkg/kernel"
	"github.com/lattice-compute/routectl/pkg/observability"
	"github.com/lattice-compute/routectl/pkg/policyhost"
	"github.com/lattice-compute/routectl/pkg/reward"
	"github.com/lattice-compute/routectl/pkg/router"
	"github.com/lattice-compute/routectl/pkg/strategist"

	_ "github.com/lib/pq"      // Postgres driver
	_ "modernc.org/sqlite"     // SQLite driver, pure Go
)

// exit codes, per §7: 0 ok, 1 operational failure, 2 invalid input, 3
// policy reject.
const (
	exitOK             = 0
	exitOperational    = 1
	exitInvalidInput   = 2
	exitPolicyReject   = 3
)

func main() {
	os.Exit(Run(os.Args, os.Stdout, os.Stderr))
}

// Run is the entrypoint for testing.
func Run(args []string, stdout, stderr io.Writer) int {
	if len(args) < 2 {
		return runServe(nil, stdout, stderr)
	}

	switch args[1] {
	case "serve", "server":
		return runServe(args[2:], stdout, stderr)
	case "decide":
		return runDecide(args[2:], stdout, stderr)
	case "feedback":
		return runFeedback(args[2:], stdout, stderr)
	case "status":
		return runStatus(args[2:], stdout, stderr)
	case "configure":
		return runConfigure(args[2:], stdout, stderr)
	case "sync":
		return runSync(args[2:], stdout, stderr)
	case "help", "--help", "-h":
		printUsage(stdout)
		return exitOK
	default:
		fmt.Fprintf(stderr, "Unknown command: %s\n", args[1])
		printUsage(stderr)
		return exitInvalidInput
	}
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "gpuroute - GPU compute routing control plane")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "USAGE:")
	fmt.Fprintln(w, "  gpuroute <command> [flags]")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "COMMANDS:")
	fmt.Fprintln(w, "  serve       Run the HTTP ingress (default)")
	fmt.Fprintln(w, "  decide      Request a routing decision (--tenant, --candidates)")
	fmt.Fprintln(w, "  feedback    Report an outcome for a prior decision (--decision, --success)")
	fmt.Fprintln(w, "  status      Print router status")
	fmt.Fprintln(w, "  configure   Print a named hyperparameter/reward profile")
	fmt.Fprintln(w, "  sync        Reconcile federation records from configured peers")
	fmt.Fprintln(w, "  help        Show this help")
	fmt.Fprintln(w, "")
}

// --- serve ---

func runServe(args []string, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("serve", flag.ContinueOnError)
	cmd.SetOutput(stderr)
	if err := cmd.Parse(args); err != nil {
		return exitInvalidInput
	}

	cfg := config.Load()
	logger := slog.Default()
	ctx := context.Background()

	rtr, closeFn, err := buildRouter(ctx, cfg, logger)
	if err != nil {
		fmt.Fprintf(stderr, "failed to build router: %v\n", err)
		return exitOperational
	}
	defer closeFn()

	srv := &http.Server{Addr: cfg.ListenAddr, Handler: rtr.Mux()}

	go func() {
		fmt.Fprintf(stdout, "gpuroute: listening on %s\n", cfg.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server failed", "err", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
	fmt.Fprintln(stdout, "gpuroute: shut down")
	return exitOK
}

// buildRouter wires every §4 component from cfg, selecting concrete
// backends the way a production server's startup routine does: a durable
// store and policy host when configured, an in-memory fallback otherwise.
func buildRouter(ctx context.Context, cfg config.Config, logger *slog.Logger) (*router.Router, func(), error) {
	noop := func() {}

	var store decisionstore.Store
	switch {
	case cfg.DecisionStorePath == "":
		store = decisionstore.NewMemStore()
	case hasPrefix(cfg.DecisionStorePath, "postgres://"):
		db, err := sql.Open("postgres", cfg.DecisionStorePath)
		if err != nil {
			return nil, noop, fmt.Errorf("open postgres: %w", err)
		}
		ps := decisionstore.NewPostgresStore(db)
		if err := ps.Init(ctx); err != nil {
			return nil, noop, fmt.Errorf("init postgres decision store: %w", err)
		}
		store = ps
	case hasSuffix(cfg.DecisionStorePath, ".db") || hasSuffix(cfg.DecisionStorePath, ".sqlite"):
		db, err := sql.Open("sqlite", cfg.DecisionStorePath)
		if err != nil {
			return nil, noop, fmt.Errorf("open sqlite: %w", err)
		}
		ss, err := decisionstore.NewSQLiteStore(db)
		if err != nil {
			return nil, noop, fmt.Errorf("init sqlite decision store: %w", err)
		}
		store = ss
	default:
		fs, err := decisionstore.NewFileStore(cfg.DecisionStorePath)
		if err != nil {
			return nil, noop, fmt.Errorf("open file decision store: %w", err)
		}
		store = fs
	}

	var signal router.AdaptiveSignal
	if cfg.SignalSourceURL != "" {
		signal = adaptive.NewCachingSource(adaptive.NewHTTPSource(cfg.SignalSourceURL, cfg.SignalTimeout))
	}

	backend, err := policyhost.ParseBackend(cfg.PolicyBackend)
	if err != nil {
		return nil, noop, err
	}

	var host policyhost.Host
	closeFn := noop
	switch backend {
	case policyhost.BackendWASM:
		modStore, serr := artifacts.NewStoreFromEnv(ctx)
		if serr != nil {
			return nil, noop, fmt.Errorf("artifact store for policy modules: %w", serr)
		}
		wh, werr := policyhost.NewWASMHost(ctx, modStore, policyhost.WASMHostConfig{
			WallClockCap:     200 * time.Millisecond,
			MemoryLimitBytes: 16 * 1024 * 1024,
		})
		if werr != nil {
			return nil, noop, fmt.Errorf("build wasm policy host: %w", werr)
		}
		if cfg.PolicyModulePath != "" {
			data, rerr := os.ReadFile(cfg.PolicyModulePath)
			if rerr != nil {
				return nil, noop, fmt.Errorf("read policy module: %w", rerr)
			}
			hash, serr := modStore.Store(ctx, data)
			if serr != nil {
				return nil, noop, fmt.Errorf("store policy module: %w", serr)
			}
			wh.Register(cfg.PolicyID, hash)
		}
		host = wh
		closeFn = func() { _ = wh.Close(context.Background()) }
	default:
		nh, nerr := policyhost.NewNativeHost()
		if nerr != nil {
			return nil, noop, fmt.Errorf("build native policy host: %w", nerr)
		}
		if cfg.PolicyModulePath != "" {
			data, rerr := os.ReadFile(cfg.PolicyModulePath)
			if rerr != nil {
				return nil, noop, fmt.Errorf("read native policy source: %w", rerr)
			}
			if lerr := nh.LoadPolicy(cfg.PolicyID, string(data)); lerr != nil {
				return nil, noop, fmt.Errorf("load native policy: %w", lerr)
			}
		}
		host = nh
	}

	hp := strategist.DefaultHyperparameters()
	rc := reward.DefaultConstants()
	auditMode := auditor.ModeStrict
	if cfg.ProfileName != "" {
		p, perr := config.LoadProfile(cfg.ProfilesDir, cfg.ProfileName)
		if perr != nil {
			return nil, noop, fmt.Errorf("load profile %q: %w", cfg.ProfileName, perr)
		}
		hp, rc, auditMode = p.Hyperparameters, p.Reward, p.AuditorMode
	}

	// Provider dispatch endpoints are out of this CLI's configuration
	// surface today; serve boots without an executor, recording decisions
	// but never dispatching, until a ProviderDispatcher is wired.
	var exec *executor.Executor

	var limiter kernel.LimiterStore = kernel.NewInMemoryLimiterStore()
	if cfg.RedisLimiterAddr != "" {
		limiter = kernel.NewRedisLimiterStore(cfg.RedisLimiterAddr, "", cfg.RedisLimiterDB)
	}

	var auditSink router.AuditSink
	if cfg.AuditLogPath != "" {
		auditLog, err := crypto.NewFileAuditLog(cfg.AuditLogPath)
		if err != nil {
			return nil, noop, fmt.Errorf("open audit log %s: %w", cfg.AuditLogPath, err)
		}
		auditSink = &cryptoAuditSink{log: auditLog}
	}

	var obs *observability.Provider
	if cfg.OTelEndpoint != "" {
		obs, err = observability.New(ctx, &observability.Config{
			ServiceName:    cfg.OTelServiceName,
			ServiceVersion: "dev",
			Environment:    "production",
			OTLPEndpoint:   cfg.OTelEndpoint,
			SampleRate:     1.0,
			BatchTimeout:   5 * time.Second,
			Enabled:        true,
		})
		if err != nil {
			return nil, noop, fmt.Errorf("build observability provider: %w", err)
		}
		prevClose := closeFn
		closeFn = func() {
			prevClose()
			_ = obs.Shutdown(context.Background())
		}
	}

	deps := router.Deps{
		Strategist:       strategist.New(hp, nil),
		Auditor:          auditor.New(auditMode),
		Reward:           rc,
		Store:            store,
		Executor:         exec,
		Signal:           signal,
		PolicyHost:       host,
		PolicyID:         cfg.PolicyID,
		Logger:           logger,
		DecisionDeadline: cfg.DecisionDeadline,
		Limiter:          limiter,
		LimiterPolicy:    kernel.BackpressurePolicy{RPM: 6000, Burst: 200},
	}
	if obs != nil {
		deps.Observability = obs
	}
	if auditSink != nil {
		deps.AuditSink = auditSink
	}

	return router.New(deps), closeFn, nil
}

// cryptoAuditSink adapts pkg/crypto's append-only, per-event-hashed audit log
// to router.AuditSink, keying each entry on its decision id and status.
type cryptoAuditSink struct {
	log crypto.AuditLog
}

func (s *cryptoAuditSink) Append(_ context.Context, entry contracts.AuditEntry) error {
	return s.log.Append(entry.DecisionID, string(entry.Status), entry)
}

func hasPrefix(s, prefix string) bool {
	return len(s) >= len(prefix) && s[:len(prefix)] == prefix
}

func hasSuffix(s, suffix string) bool {
	return len(s) >= len(suffix) && s[len(s)-len(suffix):] == suffix
}

// --- decide ---

func runDecide(args []string, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("decide", flag.ContinueOnError)
	cmd.SetOutput(stderr)
	addr := cmd.String("addr", "http://localhost:8080", "router base URL")
	tenant := cmd.String("tenant", "", "tenant id (required)")
	candidatesJSON := cmd.String("candidates", "", "JSON array of contracts.Provider (required)")
	contextJSON := cmd.String("context", "{}", "JSON contracts.WorkloadContext")
	if err := cmd.Parse(args); err != nil {
		return exitInvalidInput
	}

	if *tenant == "" || *candidatesJSON == "" {
		fmt.Fprintln(stderr, "Error: --tenant and --candidates are required")
		return exitInvalidInput
	}

	var body map[string]any
	if err := json.Unmarshal([]byte(fmt.Sprintf(`{"tenant":%q,"context":%s,"candidates":%s}`, *tenant, *contextJSON, *candidatesJSON)), &body); err != nil {
		fmt.Fprintf(stderr, "Error: invalid --context/--candidates JSON: %v\n", err)
		return exitInvalidInput
	}

	return postJSON(*addr+"/decisions", body, stdout, stderr)
}

// --- feedback ---

func runFeedback(args []string, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("feedback", flag.ContinueOnError)
	cmd.SetOutput(stderr)
	addr := cmd.String("addr", "http://localhost:8080", "router base URL")
	decisionID := cmd.String("decision", "", "decision id (required)")
	success := cmd.Bool("success", true, "whether the dispatch succeeded")
	costUSD := cmd.Float64("cost", 0, "actual cost")
	latencyMs := cmd.Float64("latency-ms", 0, "actual latency in ms")
	if err := cmd.Parse(args); err != nil {
		return exitInvalidInput
	}

	if *decisionID == "" {
		fmt.Fprintln(stderr, "Error: --decision is required")
		return exitInvalidInput
	}

	body := map[string]any{
		"decision_id": *decisionID,
		"outcome": map[string]any{
			"success":           *success,
			"actual_cost":       *costUSD,
			"actual_latency_ms": *latencyMs,
		},
	}
	return postJSON(*addr+"/feedback", body, stdout, stderr)
}

// --- status ---

func runStatus(args []string, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("status", flag.ContinueOnError)
	cmd.SetOutput(stderr)
	addr := cmd.String("addr", "http://localhost:8080", "router base URL")
	if err := cmd.Parse(args); err != nil {
		return exitInvalidInput
	}

	resp, err := http.Get(*addr + "/status")
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitOperational
	}
	defer resp.Body.Close()

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, resp.Body); err != nil {
		fmt.Fprintf(stderr, "Error reading response: %v\n", err)
		return exitOperational
	}
	fmt.Fprintln(stdout, buf.String())
	return exitOK
}

// --- configure ---

func runConfigure(args []string, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("configure", flag.ContinueOnError)
	cmd.SetOutput(stderr)
	profilesDir := cmd.String("profiles-dir", "profiles", "profiles directory")
	name := cmd.String("profile", "", "profile name; omit to list all profiles")
	if err := cmd.Parse(args); err != nil {
		return exitInvalidInput
	}

	if *name == "" {
		profiles, err := config.LoadAllProfiles(*profilesDir)
		if err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return exitOperational
		}
		data, _ := json.MarshalIndent(profiles, "", "  ")
		fmt.Fprintln(stdout, string(data))
		return exitOK
	}

	p, err := config.LoadProfile(*profilesDir, *name)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitOperational
	}
	data, _ := json.MarshalIndent(p, "", "  ")
	fmt.Fprintln(stdout, string(data))
	return exitOK
}

// --- sync ---

func runSync(args []string, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("sync", flag.ContinueOnError)
	cmd.SetOutput(stderr)
	peerListPath := cmd.String("peers", "", "federation peer list path (required)")
	peerName := cmd.String("peer", "", "sync only this peer; omit to sync all configured peers")
	reconcile := cmd.Bool("reconcile", false, "after syncing, compute a full deterministic-merge receipt against each peer's complete log")
	if err := cmd.Parse(args); err != nil {
		return exitInvalidInput
	}

	if *peerListPath == "" {
		fmt.Fprintln(stderr, "Error: --peers is required")
		return exitInvalidInput
	}

	peers, err := federation.LoadPeerList(*peerListPath)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitOperational
	}

	store := federation.NewMapStore()
	syncer := &federation.Syncer{
		Store:     store,
		Validator: federation.ContentHashValidator,
	}

	ctx := context.Background()
	failed := false
	for name, peer := range peers {
		if *peerName != "" && name != *peerName {
			continue
		}
		stats, err := syncer.SyncPeer(ctx, peer)
		if err != nil {
			fmt.Fprintf(stderr, "sync %s: %v\n", name, err)
			failed = true
			continue
		}
		fmt.Fprintf(stdout, "sync %s: seen=%d missing=%d inserted=%d failed=%d\n",
			name, stats.RemoteSeen, stats.Missing, stats.Inserted, stats.Failed)

		if *reconcile {
			local := localFederationRecords(store)
			result, err := federation.Reconcile(ctx, local, peer, time.Now().UTC())
			if err != nil {
				fmt.Fprintf(stderr, "reconcile %s: %v\n", name, err)
				failed = true
				continue
			}
			fmt.Fprintf(stdout, "reconcile %s: left_root=%s right_root=%s merged_root=%s events=%d\n",
				name, result.Receipt.LeftRoot, result.Receipt.RightRoot, result.Receipt.MergedRoot, result.Receipt.EventsReplayed)
			for _, rec := range result.Merged {
				_ = store.Insert(ctx, rec)
			}
		}
	}

	if failed {
		return exitOperational
	}
	return exitOK
}

// localFederationRecords projects a MapStore's contents into the
// []contracts.FederationRecord shape federation.Reconcile and pkg/merge
// operate on.
func localFederationRecords(store *federation.MapStore) []contracts.FederationRecord {
	all := store.All()
	out := make([]contracts.FederationRecord, 0, len(all))
	for _, r := range all {
		if fr, ok := r.(contracts.FederationRecord); ok {
			out = append(out, fr)
		}
	}
	return out
}

// --- HTTP client helper ---

func postJSON(url string, body map[string]any, stdout, stderr io.Writer) int {
	data, err := json.Marshal(body)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitInvalidInput
	}

	resp, err := http.Post(url, "application/json", bytes.NewReader(data))
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitOperational
	}
	defer resp.Body.Close()

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, resp.Body); err != nil {
		fmt.Fprintf(stderr, "Error reading response: %v\n", err)
		return exitOperational
	}

	if resp.StatusCode >= 300 {
		var problem struct {
			Kind string `json:"kind"`
		}
		_ = json.Unmarshal(buf.Bytes(), &problem)
		fmt.Fprintln(stderr, buf.String())
		if apierr.Kind(problem.Kind) == apierr.KindPolicyReject {
			return exitPolicyReject
		}
		if resp.StatusCode == http.StatusBadRequest {
			return exitInvalidInput
		}
		return exitOperational
	}

	fmt.Fprintln(stdout, buf.String())
	return exitOK
}
