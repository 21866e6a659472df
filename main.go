package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"dario.cat/mergo"
	"github.com/cloudflare/tableflip"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"github.com/omalloc/reqbody/audit"
	"github.com/omalloc/reqbody/conf"
	"github.com/omalloc/reqbody/contrib/config"
	"github.com/omalloc/reqbody/contrib/config/provider/file"
	"github.com/omalloc/reqbody/contrib/log"
	"github.com/omalloc/reqbody/server"
)

var (
	id, _ = os.Hostname()

	// flagConf is the config flag.
	flagConf string = "config.yaml"
	// flagVerbose is the verbose flag.
	flagVerbose bool

	// Version is the version of the app.
	Version string = "no-set"
)

// defaultBootstrap fills in the settings a deployment can reasonably omit
// from config.yaml; mergo backfills anything the decoded file left zero.
var defaultBootstrap = conf.Bootstrap{
	Hostname: id,
	PidFile:  "reqbody.pid",
	Logger: &conf.Logger{
		Level: "info",
	},
	Server: &conf.Server{
		Addr:              ":8080",
		ReadHeaderTimeout: 5 * time.Second,
		MaxHeaderBytes:    1 << 20,
	},
	Body: &conf.Body{
		ClientBodyBufferSize: 16 * 1024,
		ClientBodyTimeout:    60 * time.Second,
		ClientBodyTempPath:   os.TempDir(),
		LingeringTime:        30 * time.Second,
		LingeringTimeout:     5 * time.Second,
		SpillBlockSize:       1 << 15,
	},
	Audit: &conf.Audit{
		Path:      "reqbody-audit",
		BlockSize: 1 << 16,
	},
}

func init() {
	flag.StringVar(&flagConf, "c", "config.yaml", "config file path")
	flag.BoolVar(&flagVerbose, "v", false, "enable verbose log")

	log.SetLogger(log.With(log.DefaultLogger, "ts", log.Timestamp(time.RFC3339), "pid", os.Getpid()))

	prometheus.Unregister(collectors.NewGoCollector())
	registerer := prometheus.WrapRegistererWithPrefix("reqbody_", prometheus.DefaultRegisterer)
	registerer.MustRegister(collectors.NewGoCollector(collectors.WithGoCollectorMemStatsMetricsDisabled()))
}

func main() {
	flag.Parse()

	if flagVerbose {
		log.SetLogger(log.With(log.NewZapLogger(&log.FileConfig{Level: "debug"}), "ts", log.Timestamp(time.RFC3339), "pid", os.Getpid()))
	}

	c := config.New[conf.Bootstrap](config.WithSource(file.NewSource(flagConf)))
	defer c.Close()

	bc := &conf.Bootstrap{}
	if err := c.Scan(bc); err != nil {
		log.Fatal(err)
	}
	if err := mergo.Merge(bc, defaultBootstrap); err != nil {
		log.Fatalf("failed to apply default configuration: %v", err)
	}

	if err := run(bc); err != nil {
		log.Fatal(err)
	}
}

func run(bc *conf.Bootstrap) error {
	stopTimeout := 30 * time.Second

	flip, err := tableflip.New(tableflip.Options{
		PIDFile:        bc.PidFile,
		UpgradeTimeout: stopTimeout,
	})
	if err != nil {
		return err
	}
	defer flip.Stop()

	if !flip.HasParent() && strings.HasSuffix(bc.Server.Addr, ".sock") {
		_ = os.Remove(bc.Server.Addr)
	}

	var auditStore *audit.Store
	if bc.Audit != nil && bc.Audit.Enabled {
		auditStore, err = audit.Open(bc.Audit.Path)
		if err != nil {
			return err
		}
		defer auditStore.Close()
	}

	srv := server.NewServer(flip, bc, auditStore)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	group, gctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		return srv.Start(gctx)
	})
	group.Go(func() error {
		return waitUpgrade(ctx, flip)
	})
	group.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), stopTimeout)
		defer cancel()
		return srv.Stop(shutdownCtx)
	})

	return group.Wait()
}

// waitUpgrade signals tableflip that this process is ready (so a parent
// from a previous upgrade can exit) and returns once the outer context is
// cancelled.
func waitUpgrade(ctx context.Context, flip *tableflip.Upgrader) error {
	if err := flip.Ready(); err != nil {
		return err
	}
	<-ctx.Done()
	return nil
}
