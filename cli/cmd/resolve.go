package cmd

import (
	"time"

	"github.com/urfave/cli/v2"
)

// Precedence for every setting: flag default < config file < environment
// < explicitly set flag. The environment is already folded into the config
// by config.ApplyEnv, so each resolver only decides between flag and config.

// resolveString returns the flag value if explicitly set, otherwise the
// config value if non-empty, otherwise the flag default.
func resolveString(c *cli.Context, name, cfgVal string) string {
	if c.IsSet(name) || cfgVal == "" {
		return c.String(name)
	}
	return cfgVal
}

func resolveInt(c *cli.Context, name string, cfgVal int) int {
	if c.IsSet(name) || cfgVal == 0 {
		return c.Int(name)
	}
	return cfgVal
}

func resolveInt64(c *cli.Context, name string, cfgVal int64) int64 {
	if c.IsSet(name) || cfgVal == 0 {
		return c.Int64(name)
	}
	return cfgVal
}

func resolveDuration(c *cli.Context, name string, cfgVal time.Duration) time.Duration {
	if c.IsSet(name) || cfgVal == 0 {
		return c.Duration(name)
	}
	return cfgVal
}

// resolveFlagOr resolves a false-by-default flag against a plain config
// boolean, which can only switch it on.
func resolveFlagOr(c *cli.Context, name string, cfgVal bool) bool {
	if c.IsSet(name) {
		return c.Bool(name)
	}
	return cfgVal || c.Bool(name)
}

func resolveStrings(c *cli.Context, name string, cfgVal []string) []string {
	if c.IsSet(name) || len(cfgVal) == 0 {
		return c.StringSlice(name)
	}
	return cfgVal
}
