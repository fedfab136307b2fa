// Package command builds the argument list handed to the node binary.
package command

import "strings"

// Config is an ordered, append-only list of command-line tokens.
// Tokens are never reordered or deduplicated, and no validation of flag
// names or values is performed.
type Config struct {
	args []string
}

// New returns an empty Config.
func New() *Config {
	return &Config{}
}

// Opt appends a single flag token.
func (c *Config) Opt(flag string) *Config {
	c.args = append(c.args, flag)
	return c
}

// Pair appends a flag followed by its value.
func (c *Config) Pair(flag, value string) *Config {
	c.args = append(c.args, flag, value)
	return c
}

// Extend appends every token of other, in order. A nil other is a no-op.
func (c *Config) Extend(other *Config) *Config {
	if other != nil {
		c.args = append(c.args, other.args...)
	}
	return c
}

// Args returns a copy of the accumulated tokens.
func (c *Config) Args() []string {
	if c == nil {
		return nil
	}
	return append([]string(nil), c.args...)
}

// Len returns the number of tokens.
func (c *Config) Len() int {
	if c == nil {
		return 0
	}
	return len(c.args)
}

// String returns the tokens joined by spaces (for debugging).
func (c *Config) String() string {
	if c == nil {
		return ""
	}
	return strings.Join(c.args, " ")
}
