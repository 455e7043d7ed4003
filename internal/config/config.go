package config

import (
	"fmt"
	"os"
	"regexp"

	"github.com/VikingOwl91/capfs"
	"github.com/google/cel-go/cel"
	"gopkg.in/yaml.v3"
)

var profileNamePattern = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// builtinProfiles are resolvable without any config file and may not be
// shadowed by custom profiles.
var builtinProfiles = map[string]capfs.Set{
	"base":        capfs.FullSet(),
	"read-only":   {Rights: capfs.ReadOnlyRights},
	"read-lookup": {Rights: capfs.RightRead | capfs.RightLookup},
}

// ProfileConfig is the YAML-level form of a rights profile.
type ProfileConfig struct {
	Rights []string `yaml:"rights"`
	Fcntls []string `yaml:"fcntls,omitempty"`
	Ioctls []uint   `yaml:"ioctls,omitempty"`
}

// PolicyRule is one CEL lookup rule.
type PolicyRule struct {
	Name       string `yaml:"name"`
	Expression string `yaml:"expression"`
	Effect     string `yaml:"effect"`
}

// PolicyConfig configures the lookup policy engine.
type PolicyConfig struct {
	Default string       `yaml:"default"`
	Rules   []PolicyRule `yaml:"rules,omitempty"`
}

// Config is the top-level YAML config.
type Config struct {
	Profiles     map[string]ProfileConfig `yaml:"profiles,omitempty"`
	Policy       PolicyConfig             `yaml:"policy,omitempty"`
	AllowedRoots []string                 `yaml:"allowed_roots,omitempty"`
	LogLevel     string                   `yaml:"log_level"`
}

// Load reads and validates a config file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config %s: %w", path, err)
	}

	return &cfg, nil
}

func (c *Config) Validate() error {
	for name, pc := range c.Profiles {
		if err := validateProfileName(name); err != nil {
			return err
		}
		if _, err := pc.RightsSet(); err != nil {
			return fmt.Errorf("profile %q: %w", name, err)
		}
	}

	if err := c.validatePolicy(); err != nil {
		return err
	}

	if c.LogLevel == "" {
		c.LogLevel = "info"
	}

	return nil
}

func validateProfileName(name string) error {
	if name == "" {
		return fmt.Errorf("profile name must not be empty")
	}
	if len(name) > 32 {
		return fmt.Errorf("profile name %q exceeds 32 characters", name)
	}
	if !profileNamePattern.MatchString(name) {
		return fmt.Errorf("profile name %q must match [a-zA-Z0-9_-]+", name)
	}
	if _, ok := builtinProfiles[name]; ok {
		return fmt.Errorf("profile name %q shadows a built-in profile", name)
	}
	return nil
}

func (c *Config) validatePolicy() error {
	if c.Policy.Default == "" {
		c.Policy.Default = "deny"
	}
	if c.Policy.Default != "allow" && c.Policy.Default != "deny" {
		return fmt.Errorf("policy default must be 'allow' or 'deny', got %q", c.Policy.Default)
	}

	seen := make(map[string]bool)
	for i, rule := range c.Policy.Rules {
		if rule.Effect != "allow" && rule.Effect != "deny" {
			return fmt.Errorf("rule %d (%q): effect must be 'allow' or 'deny', got %q", i, rule.Name, rule.Effect)
		}
		if seen[rule.Name] {
			return fmt.Errorf("rule %d: duplicate rule name %q", i, rule.Name)
		}
		seen[rule.Name] = true
	}

	return validateCELExpressions(c.Policy.Rules)
}

func validateCELExpressions(rules []PolicyRule) error {
	if len(rules) == 0 {
		return nil
	}

	env, err := cel.NewEnv(
		cel.Variable("path", cel.StringType),
		cel.Variable("rights", cel.ListType(cel.StringType)),
		cel.Variable("sandbox", cel.BoolType),
	)
	if err != nil {
		return fmt.Errorf("creating CEL environment: %w", err)
	}

	for _, rule := range rules {
		_, issues := env.Compile(rule.Expression)
		if issues != nil && issues.Err() != nil {
			return fmt.Errorf("rule %q: invalid CEL expression: %w", rule.Name, issues.Err())
		}
	}

	return nil
}

// RightsSet converts the YAML form to a capfs.Set.
func (p ProfileConfig) RightsSet() (capfs.Set, error) {
	if len(p.Rights) == 0 {
		return capfs.Set{}, fmt.Errorf("at least one right is required")
	}
	var bits capfs.Rights
	for _, name := range p.Rights {
		bit, ok := capfs.ParseRight(name)
		if !ok {
			return capfs.Set{}, fmt.Errorf("unknown right %q", name)
		}
		bits |= bit
	}
	s := capfs.Set{Rights: bits}
	if p.Fcntls != nil {
		s.Fcntls = []capfs.FcntlCmd{}
		for _, name := range p.Fcntls {
			cmd, ok := parseFcntl(name)
			if !ok {
				return capfs.Set{}, fmt.Errorf("unknown fcntl command %q", name)
			}
			s.Fcntls = append(s.Fcntls, cmd)
		}
	}
	if p.Ioctls != nil {
		s.Ioctls = []capfs.IoctlReq{}
		for _, req := range p.Ioctls {
			s.Ioctls = append(s.Ioctls, capfs.IoctlReq(req))
		}
	}
	return s, nil
}

func parseFcntl(name string) (capfs.FcntlCmd, bool) {
	switch name {
	case "getfl":
		return capfs.FcntlGetFL, true
	case "setfl":
		return capfs.FcntlSetFL, true
	case "getown":
		return capfs.FcntlGetOwn, true
	case "setown":
		return capfs.FcntlSetOwn, true
	}
	return 0, false
}

// ResolveProfile resolves a profile name to a rights set. Built-ins win;
// other names are looked up in the provided map.
func ResolveProfile(name string, custom map[string]ProfileConfig) (capfs.Set, error) {
	if name == "" {
		return capfs.Set{}, fmt.Errorf("profile name must not be empty")
	}
	if s, ok := builtinProfiles[name]; ok {
		return s, nil
	}
	pc, ok := custom[name]
	if !ok {
		return capfs.Set{}, fmt.Errorf("unknown profile %q", name)
	}
	return pc.RightsSet()
}
