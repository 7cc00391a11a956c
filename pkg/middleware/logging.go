// Package middleware provides store.Middleware implementations for console
// diagnostics.
package middleware

import (
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/goliatone/go-datastate/pkg/store"
	"github.com/mattn/go-isatty"
)

// Option configures the console middleware.
type Option func(*config)

type config struct {
	out   io.Writer
	color *bool
	value bool
}

// WithWriter sends output to w instead of os.Stderr.
func WithWriter(w io.Writer) Option {
	return func(cfg *config) {
		if w != nil {
			cfg.out = w
		}
	}
}

// WithColor forces colour output on or off. By default colour is used only
// when the writer is a terminal.
func WithColor(enabled bool) Option {
	return func(cfg *config) {
		cfg.color = &enabled
	}
}

// WithValues prints the written value under each change line.
func WithValues() Option {
	return func(cfg *config) {
		cfg.value = true
	}
}

func applyOptions(opts []Option) config {
	cfg := config{out: os.Stderr}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	return cfg
}

func (cfg config) colorEnabled() bool {
	if cfg.color != nil {
		return *cfg.color
	}
	f, ok := cfg.out.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

type palette struct {
	label  func(a ...any) string
	origin func(a ...any) string
	path   func(a ...any) string
	err    func(a ...any) string
}

func newPalette(enabled bool) palette {
	build := func(attrs ...color.Attribute) func(a ...any) string {
		c := color.New(attrs...)
		if enabled {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
		return c.SprintFunc()
	}
	return palette{
		label:  build(color.FgMagenta, color.Bold),
		origin: build(color.FgCyan),
		path:   build(color.FgGreen),
		err:    build(color.FgRed, color.Bold),
	}
}

// Logging prints one line per committed change:
//
//	> STATECHANGE: <origin>@<reason> => <path>
func Logging(opts ...Option) store.Middleware {
	cfg := applyOptions(opts)
	colors := newPalette(cfg.colorEnabled())
	return func(next store.ChangeFunc) store.ChangeFunc {
		return func(m store.Mutation) error {
			fmt.Fprintf(cfg.out, "%s %s@%s => %s\n",
				colors.label("> STATECHANGE:"),
				colors.origin(describeOrigin(m.Origin)),
				m.Reason,
				colors.path(m.Path),
			)
			if cfg.value {
				fmt.Fprintf(cfg.out, "=> value %#v\n", m.Value)
			}
			return next(m)
		}
	}
}

func describeOrigin(origin any) string {
	if id := store.OriginID(origin); id != "" {
		return id
	}
	if origin == nil {
		return "(none)"
	}
	return fmt.Sprintf("%T", origin)
}
