package filter

import (
	"fmt"
	"strings"
)

// Rule is a single include or exclude rule.
type Rule struct {
	pattern *pattern
	Include bool
}

func (r Rule) String() string {
	if r.Include {
		return "+ " + r.pattern.String()
	}
	return "- " + r.pattern.String()
}

// Chain holds an ordered list of rules plus size bounds. The first matching
// rule decides; an entry no rule matches is kept.
type Chain struct {
	rules   []Rule
	minSize int64
	maxSize int64
}

func NewChain() *Chain {
	return &Chain{}
}

// AddExclude appends an exclude rule.
func (c *Chain) AddExclude(raw string) error {
	p, err := compilePattern(raw)
	if err != nil {
		return err
	}
	c.rules = append(c.rules, Rule{pattern: p})
	return nil
}

// AddInclude appends an include rule.
func (c *Chain) AddInclude(raw string) error {
	p, err := compilePattern(raw)
	if err != nil {
		return err
	}
	c.rules = append(c.rules, Rule{pattern: p, Include: true})
	return nil
}

func (c *Chain) SetMinSize(n int64) { c.minSize = n }
func (c *Chain) SetMaxSize(n int64) { c.maxSize = n }

// Empty reports whether the chain has no rules and no size bounds.
func (c *Chain) Empty() bool {
	return len(c.rules) == 0 && c.minSize == 0 && c.maxSize == 0
}

// Rules returns the rules in evaluation order.
func (c *Chain) Rules() []Rule {
	return append([]Rule(nil), c.rules...)
}

// Match reports whether an entry stays selected. relPath is slash-separated
// and relative to the volume root; size is ignored for directories.
func (c *Chain) Match(relPath string, isDir bool, size int64) bool {
	if !isDir {
		if c.minSize > 0 && size < c.minSize {
			return false
		}
		if c.maxSize > 0 && size > c.maxSize {
			return false
		}
	}

	for _, rule := range c.rules {
		if rule.pattern.match(relPath, isDir) {
			return rule.Include
		}
	}
	return true
}

func (c *Chain) String() string {
	parts := make([]string, 0, len(c.rules)+2)
	for _, r := range c.rules {
		parts = append(parts, r.String())
	}
	if c.minSize > 0 {
		parts = append(parts, fmt.Sprintf("min-size %d", c.minSize))
	}
	if c.maxSize > 0 {
		parts = append(parts, fmt.Sprintf("max-size %d", c.maxSize))
	}
	return strings.Join(parts, ", ")
}

// Options collects the CLI's selection flags.
type Options struct {
	Excludes   []string
	Includes   []string
	FilterFile string
	MinSize    string
	MaxSize    string
}

// Build assembles a chain from opts. Includes are added before excludes so
// "--include X --exclude *" keeps X; rules from the filter file follow.
func Build(opts Options) (*Chain, error) {
	c := NewChain()
	for _, p := range opts.Includes {
		if err := c.AddInclude(p); err != nil {
			return nil, fmt.Errorf("--include: %w", err)
		}
	}
	for _, p := range opts.Excludes {
		if err := c.AddExclude(p); err != nil {
			return nil, fmt.Errorf("--exclude: %w", err)
		}
	}
	if opts.FilterFile != "" {
		if err := c.LoadFile(opts.FilterFile); err != nil {
			return nil, err
		}
	}
	if opts.MinSize != "" {
		n, err := ParseSize(opts.MinSize)
		if err != nil {
			return nil, fmt.Errorf("--min-size: %w", err)
		}
		c.SetMinSize(n)
	}
	if opts.MaxSize != "" {
		n, err := ParseSize(opts.MaxSize)
		if err != nil {
			return nil, fmt.Errorf("--max-size: %w", err)
		}
		c.SetMaxSize(n)
	}
	if c.minSize > 0 && c.maxSize > 0 && c.minSize > c.maxSize {
		return nil, fmt.Errorf("--min-size %d exceeds --max-size %d", c.minSize, c.maxSize)
	}
	return c, nil
}
