package main

import (
	"context"
	"crypto/x509"
	"flag"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"qpiped/internal/api"
	"qpiped/internal/config"
	"qpiped/internal/limiter"
	"qpiped/internal/logging"
	"qpiped/internal/pkgcodec"
	"qpiped/internal/quicconn"
	"qpiped/internal/status"
	"qpiped/internal/tunnel"
)

// keepaliveInterval is how often the client round-trips a ping/pong pair
// over the tunnel's QUIC connection to keep it alive and to sample latency.
const keepaliveInterval = 30 * time.Second

func runConnect(args []string) error {
	fs := flag.NewFlagSet("connect", flag.ExitOnError)
	configPath := fs.String("config", "", "path to a YAML ClientConfig; when set, overrides the server address, -rate, and relays every target pair it lists instead of a single -source/-target")
	source := fs.String("source", "", "local bind_addr:port to listen on")
	target := fs.String("target", "", "remote host:port to reach through the tunnel")
	keyPath := fs.String("key", "client.key", "path to the client private key (PEM)")
	ratePerSec := fs.Int64("rate", -1, "bandwidth cap in bytes/sec for this tunnel, -1 for unlimited")
	apiAddr := fs.String("api", "", "optional bind_addr:port for the JSON status endpoint")
	if err := fs.Parse(args); err != nil {
		return err
	}

	var targets []config.TargetPair
	rate := *ratePerSec
	var serverAddr string

	switch {
	case *configPath != "":
		cfg, err := config.LoadClientConfig(*configPath)
		if err != nil {
			return fmt.Errorf("load config %s: %w", *configPath, err)
		}
		logging.Configure(cfg.GlobalLog)
		serverAddr = cfg.ServerAddr
		targets = cfg.Targets
		rate = int64(cfg.TotalBandwidthLimit)
		if len(targets) == 0 {
			return fmt.Errorf("qpiped connect: config %s defines no Targets", *configPath)
		}
	case fs.NArg() == 1 && *source != "" && *target != "":
		logging.Configure(nil)
		serverAddr = fs.Arg(0)
		targets = []config.TargetPair{{Name: "default", Listen: *source, Target: *target}}
	default:
		return fmt.Errorf("usage: qpiped connect -source <bind_addr:port> -target <host:port> <server_addr:port>, or qpiped connect -config <path>")
	}

	pkg := os.Getenv("PACKAGE")
	if pkg == "" {
		return fmt.Errorf("qpiped connect: PACKAGE environment variable must hold the package issued by the server operator")
	}
	bundle, err := pkgcodec.Read(pkg)
	if err != nil {
		return fmt.Errorf("parse PACKAGE: %w", err)
	}

	caCert, err := x509.ParseCertificate(bundle.ServerCert)
	if err != nil {
		return fmt.Errorf("parse server CA certificate: %w", err)
	}
	leaf, err := x509.ParseCertificate(bundle.ClientCert)
	if err != nil {
		return fmt.Errorf("parse client leaf certificate: %w", err)
	}

	keyDER, err := readPEM(*keyPath, "RSA PRIVATE KEY")
	if err != nil {
		return err
	}
	key, err := x509.ParsePKCS1PrivateKey(keyDER)
	if err != nil {
		return fmt.Errorf("parse client private key: %w", err)
	}

	identity := quicconn.Identity(bundle.ClientCert, leaf, key)

	host, _, err := net.SplitHostPort(serverAddr)
	if err != nil {
		return fmt.Errorf("qpiped connect: bad server address %q: %w", serverAddr, err)
	}
	tlscfg := quicconn.ClientTLSConfig(caCert, identity, host)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	conn, err := quicconn.DialOne(ctx, serverAddr, tlscfg, quicconn.DefaultQUICConfig())
	if err != nil {
		return fmt.Errorf("connect to %s: %w", serverAddr, err)
	}
	defer conn.CloseWithError(0, "client shutting down")

	var sl *limiter.SharedLimiter
	if rate > 0 {
		sl = limiter.NewSharedLimiter(rate)
	}

	go tunnel.Keepalive(ctx, conn, serverAddr, keepaliveInterval, status.Global)

	if *apiAddr != "" {
		apiSrv := api.NewServer(*apiAddr, status.Global, sl, serverAddr)
		if err := apiSrv.Start(); err != nil {
			return fmt.Errorf("start status server: %w", err)
		}
		defer apiSrv.Stop()
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, t := range targets {
		t := t
		proxy := &tunnel.ProxyListener{
			ListenAddr: t.Listen,
			TargetAddr: t.Target,
			Conn:       conn,
			Monitor:    status.Global,
			Limiter:    sl,
		}
		g.Go(func() error { return proxy.Serve(gctx) })
	}
	return g.Wait()
}
