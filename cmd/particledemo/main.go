// Command particledemo runs a particle simulation and writes PNG
// snapshots.
//
// By default the simulation runs on the CPU reference device and is drawn
// with the reference draw pass. With -gpu it runs on a Vulkan adapter and
// each snapshot is read back from the position texture.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/gogpu/particles"
)

// maxWriters bounds the PNG encodes in flight.
const maxWriters = 4

type options struct {
	count    int
	frames   int
	delta    float64
	behavior string
	boundary string
	dist     string
	out      string
	every    int
	size     int
	gpu      bool
	metrics  string
	verbose  bool
}

func main() {
	var o options
	flag.IntVar(&o.count, "n", 16384, "particle count")
	flag.IntVar(&o.frames, "frames", 240, "frames to simulate")
	flag.Float64Var(&o.delta, "dt", 1.0/60, "frame delta in seconds")
	flag.StringVar(&o.behavior, "behavior", "flock", "flock or morph")
	flag.StringVar(&o.boundary, "boundary", "clamp", "clamp or wrap")
	flag.StringVar(&o.dist, "dist", "volume", "volume or sphere")
	flag.StringVar(&o.out, "out", "frames", "output directory")
	flag.IntVar(&o.every, "every", 60, "write a snapshot every k frames")
	flag.IntVar(&o.size, "size", 512, "snapshot width and height")
	flag.BoolVar(&o.gpu, "gpu", false, "run on the GPU")
	flag.StringVar(&o.metrics, "metrics", "", "serve Prometheus metrics on this address")
	flag.BoolVar(&o.verbose, "v", false, "debug logging")
	flag.Parse()

	if o.verbose {
		particles.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		})))
	}
	if err := run(context.Background(), o); err != nil {
		log.Fatalf("particledemo: %v", err)
	}
}

func run(ctx context.Context, o options) error {
	b, err := particles.ParseBehavior(o.behavior)
	if err != nil {
		return err
	}
	bd, err := particles.ParseBoundary(o.boundary)
	if err != nil {
		return err
	}
	dist, err := particles.ParseDistribution(o.dist)
	if err != nil {
		return err
	}
	if o.every <= 0 {
		return errors.New("-every must be positive")
	}
	if err := os.MkdirAll(o.out, 0o755); err != nil {
		return err
	}

	var dev particles.Device
	if o.gpu {
		if dev, err = particles.NewGPUDevice(ctx); err != nil {
			return err
		}
	} else {
		dev = particles.NewReferenceDevice(0)
	}
	defer dev.Close()

	opts := []particles.Option{
		particles.WithCount(o.count),
		particles.WithBehavior(b),
		particles.WithBoundary(bd),
		particles.WithDistribution(dist),
		particles.WithVelocitySeed(true),
	}
	if o.metrics != "" {
		m := particles.NewMetrics()
		if err := m.Register(nil); err != nil {
			return err
		}
		opts = append(opts, particles.WithMetrics(m, "particledemo"))
		srv := serveMetrics(o.metrics)
		defer srv.Close()
	}

	sim, err := particles.New(dev, opts...)
	if err != nil {
		return err
	}
	defer sim.Close()

	snap, err := newSnapshotter(sim, o.size)
	if err != nil {
		return err
	}

	// Snapshots are encoded in the background while the simulation
	// keeps ticking on this goroutine.
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxWriters)
	dt := float32(o.delta)
	for frame := 1; frame <= o.frames && gctx.Err() == nil; frame++ {
		if err := sim.Tick(float32(frame)*dt, dt); err != nil {
			return stop(g, err)
		}
		if frame%o.every != 0 && frame != o.frames {
			continue
		}
		img, err := snap.snapshot(frame)
		if err != nil {
			return stop(g, err)
		}
		path := filepath.Join(o.out, fmt.Sprintf("frame_%05d.png", frame))
		g.Go(func() error {
			if err := writePNG(path, img); err != nil {
				return err
			}
			log.Printf("Wrote %s", path)
			return nil
		})
	}
	return g.Wait()
}

// stop waits for pending writers and reports their failures with err.
func stop(g *errgroup.Group, err error) error {
	return errors.Join(err, g.Wait())
}

func serveMetrics(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("metrics server: %v", err)
		}
	}()
	log.Printf("Serving metrics on %s/metrics", addr)
	return srv
}
