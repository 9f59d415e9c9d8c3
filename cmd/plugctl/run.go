package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/reglet-dev/plugabi/domain/entities"
	"github.com/reglet-dev/plugabi/domain/errors"
	"github.com/reglet-dev/plugabi/host"
	"github.com/reglet-dev/plugabi/hostfuncs"
	jsdriver "github.com/reglet-dev/plugabi/infrastructure/goja"
	"github.com/reglet-dev/plugabi/infrastructure/native"
	wasmdriver "github.com/reglet-dev/plugabi/infrastructure/wazero"
	"github.com/reglet-dev/plugabi/infrastructure/yaegi"
)

const (
	exitOK    = 0
	exitError = 1
	exitUsage = 2
)

type options struct {
	config      string
	unknownTags string
	logLevel    string
	timeout     time.Duration
	json        bool
}

type cli struct {
	opts    options
	stdout  io.Writer
	stderr  io.Writer
	logger  *slog.Logger
	manager *host.Manager
	native  *native.Driver
	closers []func(context.Context) error
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	c := &cli{stdout: stdout, stderr: stderr}

	fs := flag.NewFlagSet("plugctl", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&c.opts.config, "config", "", "plugin config file (YAML)")
	fs.StringVar(&c.opts.unknownTags, "unknown-tags", "reject", "unknown type tag policy: reject or ignore")
	fs.StringVar(&c.opts.logLevel, "log-level", "warn", "log level: debug, info, warn or error")
	fs.DurationVar(&c.opts.timeout, "timeout", 30*time.Second, "overall timeout")
	fs.BoolVar(&c.opts.json, "json", false, "print results as JSON")
	fs.Usage = func() {
		fmt.Fprintln(stderr, "usage: plugctl [flags] info|call|list ...")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}
	rest := fs.Args()
	if len(rest) == 0 {
		fs.Usage()
		return exitUsage
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(c.opts.logLevel)); err != nil {
		fmt.Fprintf(stderr, "plugctl: %v\n", err)
		return exitUsage
	}
	c.logger = slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}))

	if c.opts.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.opts.timeout)
		defer cancel()
	}

	defer c.close(context.WithoutCancel(ctx))
	if err := c.setup(ctx); err != nil {
		fmt.Fprintf(stderr, "plugctl: %v\n", err)
		return exitError
	}

	var err error
	switch cmd, params := rest[0], rest[1:]; cmd {
	case "info":
		if len(params) != 1 {
			return c.usage("info <source>")
		}
		err = c.info(ctx, params[0])
	case "call":
		if len(params) < 2 {
			return c.usage("call <source> <function> [name=value]...")
		}
		err = c.call(ctx, params[0], params[1], params[2:])
	case "list":
		err = c.list()
	default:
		fmt.Fprintf(stderr, "plugctl: unknown command %q\n", cmd)
		return exitUsage
	}
	if err != nil {
		c.fail(err)
		return exitError
	}
	return exitOK
}

func (c *cli) usage(text string) int {
	fmt.Fprintf(c.stderr, "usage: plugctl [flags] %s\n", text)
	return exitUsage
}

func (c *cli) setup(ctx context.Context) error {
	var policy entities.TagPolicy
	switch c.opts.unknownTags {
	case "reject":
		policy = entities.RejectUnknownTags
	case "ignore":
		policy = entities.IgnoreUnknownTags
	default:
		return fmt.Errorf("unknown tag policy %q", c.opts.unknownTags)
	}

	wasm, err := wasmdriver.NewDriver(ctx, wasmdriver.WithLogger(c.logger))
	if err != nil {
		return err
	}
	c.closers = append(c.closers, wasm.Close)
	c.native = native.NewDriver()

	opts := []host.Option{
		host.WithLogger(c.logger),
		host.WithUnknownTagPolicy(policy),
		host.WithDriver(wasm),
		host.WithDriver(c.native),
		host.WithDriver(jsdriver.NewDriver(jsdriver.WithLogger(c.logger))),
		host.WithDriver(yaegi.NewDriver(yaegi.WithLogger(c.logger))),
	}
	if c.opts.config != "" {
		store, err := hostfuncs.LoadConfigFile(c.opts.config)
		if err != nil {
			return err
		}
		opts = append(opts, host.WithConfigStore(store))
	}

	c.manager, err = host.NewManager(opts...)
	if err != nil {
		return err
	}
	c.closers = append([]func(context.Context) error{c.manager.Close}, c.closers...)
	return nil
}

func (c *cli) close(ctx context.Context) {
	for _, fn := range c.closers {
		if err := fn(ctx); err != nil {
			c.logger.WarnContext(ctx, "shutdown failed", "error", err)
		}
	}
}

// isBundle reports whether ref names a plugin bundle rather than a source.
func isBundle(ref string) bool {
	if strings.EqualFold(filepath.Ext(ref), ".zip") {
		return true
	}
	fi, err := os.Stat(ref)
	return err == nil && fi.IsDir()
}

func (c *cli) info(ctx context.Context, ref string) error {
	src := c.manager.ParseSource(ref)
	if isBundle(ref) {
		b, err := host.NewLoader(c.manager).OpenBundle(ref)
		if err != nil {
			return err
		}
		src = b.Source()
	}
	desc, err := c.manager.Info(ctx, src)
	if err != nil {
		return err
	}
	if c.opts.json {
		return c.encode(desc)
	}

	fmt.Fprintf(c.stdout, "name:        %s\n", desc.Name)
	fmt.Fprintf(c.stdout, "version:     %s\n", desc.Version)
	if desc.Author != "" {
		fmt.Fprintf(c.stdout, "author:      %s\n", desc.Author)
	}
	if desc.Description != "" {
		fmt.Fprintf(c.stdout, "description: %s\n", desc.Description)
	}
	for _, fn := range desc.API.API {
		params := make([]string, 0, len(fn.Arguments)+1)
		for _, a := range fn.Arguments {
			params = append(params, a.Name+" "+string(a.Type))
		}
		if fn.Variadic {
			params = append(params, "...")
		}
		fmt.Fprintf(c.stdout, "  %s %s(%s)\n", fn.ReturnType, fn.Name, strings.Join(params, ", "))
	}
	return nil
}

func (c *cli) call(ctx context.Context, ref, function string, params []string) error {
	var (
		p   *host.Plugin
		err error
	)
	if isBundle(ref) {
		p, err = host.NewLoader(c.manager).Load(ctx, ref)
	} else {
		p, err = c.manager.Load(ctx, c.manager.ParseSource(ref))
	}
	if err != nil {
		return err
	}

	spec, _ := p.Descriptor().Function(function)
	args := make([]entities.Argument, 0, len(params))
	for _, text := range params {
		a, err := parseArgument(spec, text)
		if err != nil {
			return err
		}
		args = append(args, a)
	}

	v, err := p.Call(ctx, function, args...)
	if err != nil {
		return err
	}
	if c.opts.json {
		return c.encode(entities.ResultWire(v))
	}
	if v.IsVoid() {
		fmt.Fprintln(c.stdout, "(void)")
		return nil
	}
	fmt.Fprintln(c.stdout, v.String())
	return nil
}

func (c *cli) list() error {
	if c.opts.json {
		return c.encode(map[string][]string{
			"drivers": c.manager.Drivers(),
			"native":  c.native.Names(),
		})
	}
	fmt.Fprintf(c.stdout, "drivers: %s\n", strings.Join(c.manager.Drivers(), ", "))
	fmt.Fprintf(c.stdout, "native:  %s\n", strings.Join(c.native.Names(), ", "))
	return nil
}

func (c *cli) encode(v any) error {
	enc := json.NewEncoder(c.stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// fail reports err. With -json the structured detail goes to stdout in the
// same record shape a successful call uses.
func (c *cli) fail(err error) {
	if c.opts.json {
		_ = c.encode(entities.CallResultWire{Error: errors.ToErrorDetail(err)})
		return
	}
	fmt.Fprintf(c.stderr, "plugctl: %v\n", err)
}

// parseArgument reads name=value or name:kind=value. Without an explicit
// kind the declared parameter type is used, and undeclared arguments are
// strings.
func parseArgument(spec entities.FunctionSpec, text string) (entities.Argument, error) {
	key, raw, ok := strings.Cut(text, "=")
	if !ok || key == "" {
		return entities.Argument{}, fmt.Errorf("argument %q: want name=value", text)
	}

	name, kindName, explicit := strings.Cut(key, ":")
	var kind entities.ValueKind
	switch {
	case explicit:
		if kind, ok = entities.ParseValueKind(kindName); !ok {
			return entities.Argument{}, fmt.Errorf("argument %q: unknown kind %q", name, kindName)
		}
	default:
		decl, declared := spec.Argument(name)
		if !declared {
			return entities.Arg(name, entities.String(raw)), nil
		}
		kind = decl.Type.Kind()
	}

	v, err := entities.ParseValue(kind, raw)
	if err != nil {
		return entities.Argument{}, fmt.Errorf("argument %q: %w", name, err)
	}
	return entities.Arg(name, v), nil
}
