// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Command fiberring runs a ring workload on parallel carriers and prints
// per-carrier visit counts and scheduler metrics.
//
// Usage:
//
//	fiberring [-config workload.toml] [-carriers n] [-fibers n] [-yields n] [-debug] [-v]
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"sort"
	"sync"

	"code.hybscloud.com/fiber"
	"code.hybscloud.com/fiber/metrics"
)

func main() {
	if err := run(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintln(os.Stderr, "fiberring:", err)
		os.Exit(1)
	}
}

func run(args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("fiberring", flag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.String("config", "", "TOML workload file")
	carriers := fs.Int("carriers", 0, "number of carriers")
	fibers := fs.Int("fibers", 0, "fibers per carrier")
	yields := fs.Int("yields", 0, "yields per fiber")
	debug := fs.Bool("debug", false, "validate the ring after every mutation")
	verbose := fs.Bool("v", false, "log scheduler events")
	if err := fs.Parse(args); err != nil {
		return err
	}

	w, err := loadWorkload(*configPath)
	if err != nil {
		return err
	}
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "carriers":
			w.Carriers = *carriers
		case "fibers":
			w.Fibers = *fibers
		case "yields":
			w.Yields = *yields
		case "debug":
			w.Debug = *debug
		}
	})
	if err := w.validate(); err != nil {
		return err
	}

	level := slog.LevelWarn
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	visits, p, err := runWorkload(ctx, w, logger)
	if err != nil {
		return err
	}
	report(stdout, visits, p)
	return nil
}

// runWorkload runs w and returns the visit count of every carrier.
func runWorkload(ctx context.Context, w Workload, logger *slog.Logger) (map[string]int, *metrics.BasicProvider, error) {
	p := metrics.NewBasicProvider()
	opts := []fiber.Option{fiber.WithLogger(logger), fiber.WithMetrics(p)}
	if w.StackSize > 0 {
		opts = append(opts, fiber.WithStackSize(w.StackSize))
	}
	if w.Debug {
		opts = append(opts, fiber.WithDebug())
	}

	var mu sync.Mutex
	visits := make(map[string]int, w.Carriers)
	err := fiber.RunCarriers(ctx, w.Carriers, func(ctx context.Context, c *fiber.Carrier) error {
		s := c.Scheduler()
		n := 0
		for range w.Fibers {
			if _, err := s.Spawn("worker", func(f *fiber.Fiber) error {
				for range w.Yields {
					n++
					if err := f.Yield(); err != nil {
						return err
					}
				}
				return nil
			}); err != nil {
				return err
			}
		}
		for s.Len() > 1 {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := s.Yield(); err != nil {
				return err
			}
		}
		mu.Lock()
		visits[c.Name()] = n
		mu.Unlock()
		return nil
	}, opts...)
	return visits, p, err
}

func report(out io.Writer, visits map[string]int, p *metrics.BasicProvider) {
	names := make([]string, 0, len(visits))
	for name := range visits {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(out, "%s visits=%d\n", name, visits[name])
	}
	for _, name := range p.Names() {
		fmt.Fprintf(out, "%s %d\n", name, p.Value(name))
	}
}
