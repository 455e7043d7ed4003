package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/VikingOwl91/capfs"
	"github.com/VikingOwl91/capfs/internal/config"
	"github.com/VikingOwl91/capfs/internal/policy"
	"github.com/VikingOwl91/capfs/internal/rootcheck"
)

var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

func main() {
	configPath := flag.String("config", "", "path to config file (optional)")
	profileName := flag.String("profile", "read-lookup", "rights profile name")
	rootDir := flag.String("root", "", "containment root directory")
	sandboxFlag := flag.Bool("sandbox", false, "enter sandbox mode before resolving")
	writeFlag := flag.Bool("write", false, "request write access instead of read")
	explain := flag.Bool("explain", false, "print effective profile and policy as JSON and exit")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("capfs %s (%s, %s)\n", version, commit, date)
		return
	}

	cfg := &config.Config{LogLevel: "info"}
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			slog.Error("failed to load config", slog.String("error", err.Error()))
			os.Exit(1)
		}
		cfg = loaded
	}

	level := parseLogLevel(cfg.LogLevel)
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	rights, err := config.ResolveProfile(*profileName, cfg.Profiles)
	if err != nil {
		logger.Error("failed to resolve profile", slog.String("error", err.Error()))
		os.Exit(1)
	}

	var engine *policy.Engine
	if len(cfg.Policy.Rules) > 0 {
		engine, err = policy.New(cfg.Policy)
		if err != nil {
			logger.Error("failed to build policy engine", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}

	if *explain {
		printExplain(*profileName, rights, cfg, *sandboxFlag)
		return
	}

	if *rootDir == "" {
		logger.Error("-root is required")
		os.Exit(1)
	}
	if flag.NArg() == 0 {
		logger.Error("at least one path argument is required")
		os.Exit(1)
	}

	resolvedRoot, err := rootcheck.Resolve(*rootDir)
	if err != nil {
		logger.Error("failed to resolve root", slog.String("error", err.Error()))
		os.Exit(1)
	}
	if err := rootcheck.Validate(resolvedRoot, cfg.AllowedRoots); err != nil {
		logger.Error("root rejected", slog.String("error", err.Error()))
		os.Exit(1)
	}

	layer := capfs.New(capfs.NewOSHost(),
		capfs.WithLogger(logger),
		capfs.WithKernelMirror(),
	)

	root, err := layer.OpenRelative(nil, resolvedRoot, capfs.OpenRead|capfs.OpenDirectory)
	if err != nil {
		logger.Error("failed to open root", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer root.Close()

	if err := root.Narrow(rights); err != nil {
		logger.Error("failed to narrow root", slog.String("error", err.Error()))
		os.Exit(1)
	}

	if *sandboxFlag {
		layer.EnterSandbox()
	}

	openFlags := capfs.OpenRead
	if *writeFlag {
		openFlags = capfs.OpenWrite
	}

	denied := 0
	for _, path := range flag.Args() {
		if !checkPath(layer, engine, root, path, openFlags, rights) {
			denied++
		}
	}
	if denied > 0 {
		os.Exit(1)
	}
}

func checkPath(layer *capfs.Layer, engine *policy.Engine, root *capfs.Descriptor, path string, flags capfs.OpenFlags, rights capfs.Set) bool {
	if engine != nil {
		effect, rule := engine.Evaluate(policy.LookupContext{
			Path:    path,
			Rights:  strings.Split(rights.Rights.String(), ","),
			Sandbox: layer.InSandbox(),
		})
		if effect == policy.Deny {
			fmt.Printf("deny  %s (policy rule %s)\n", path, rule)
			return false
		}
	}

	d, err := layer.OpenRelative(root, path, flags)
	if err != nil {
		fmt.Printf("deny  %s (%s)\n", path, classify(err))
		return false
	}
	defer d.Close()

	fmt.Printf("allow %s (rights %s)\n", path, d.Rights().Rights)
	return true
}

func classify(err error) string {
	switch {
	case errors.Is(err, capfs.ErrTraversalBeyondRoot):
		return "traversal beyond root"
	case errors.Is(err, capfs.ErrSymlinkLoop):
		return "symlink refused"
	case errors.Is(err, capfs.ErrNotCapable):
		return "not capable"
	case errors.Is(err, capfs.ErrSandboxViolation):
		return "sandbox violation"
	default:
		return err.Error()
	}
}

type explainOutput struct {
	Profile      string              `json:"profile"`
	Rights       string              `json:"rights"`
	Fcntls       []capfs.FcntlCmd    `json:"fcntls,omitempty"`
	Ioctls       []capfs.IoctlReq    `json:"ioctls,omitempty"`
	Sandbox      bool                `json:"sandbox"`
	HostSupport  string              `json:"host_support"`
	AllowedRoots []string            `json:"allowed_roots,omitempty"`
	Policy       *explainPolicy      `json:"policy,omitempty"`
}

type explainPolicy struct {
	Default string              `json:"default"`
	Rules   []explainPolicyRule `json:"rules,omitempty"`
}

type explainPolicyRule struct {
	Name       string `json:"name"`
	Expression string `json:"expression"`
	Effect     string `json:"effect"`
}

func printExplain(profile string, rights capfs.Set, cfg *config.Config, sandbox bool) {
	out := explainOutput{
		Profile:      profile,
		Rights:       rights.Rights.String(),
		Fcntls:       rights.Fcntls,
		Ioctls:       rights.Ioctls,
		Sandbox:      sandbox,
		HostSupport:  capfs.DetectHostSupport().EffectiveLevel(),
		AllowedRoots: cfg.AllowedRoots,
	}
	if len(cfg.Policy.Rules) > 0 || cfg.Policy.Default != "" {
		ep := &explainPolicy{Default: cfg.Policy.Default}
		for _, r := range cfg.Policy.Rules {
			ep.Rules = append(ep.Rules, explainPolicyRule(r))
		}
		out.Policy = ep
	}

	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(string(data))
}

func parseLogLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
