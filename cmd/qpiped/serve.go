package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/quic-go/quic-go"

	"qpiped/internal/api"
	"qpiped/internal/certstore"
	"qpiped/internal/config"
	"qpiped/internal/limiter"
	"qpiped/internal/logging"
	"qpiped/internal/quicconn"
	"qpiped/internal/status"
	"qpiped/internal/tunnel"
)

func runServe(args []string) error {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	configPath := fs.String("config", "", "path to a YAML ServerConfig; when set, overrides -state/-sans/-api/-rate and the bind address argument")
	stateDir := fs.String("state", defaultStateDir, "server state directory holding the CA")
	sans := fs.String("sans", "localhost", "comma-separated SANs for the bootstrapped CA")
	apiAddr := fs.String("api", "", "optional bind_addr:port for the JSON status endpoint")
	ratePerSec := fs.Int64("rate", -1, "total bandwidth cap in bytes/sec across all tunnels, -1 for unlimited")
	if err := fs.Parse(args); err != nil {
		return err
	}

	listenAddr := "[::]:60010"
	if fs.NArg() == 1 {
		listenAddr = fs.Arg(0)
	} else if fs.NArg() > 1 {
		return fmt.Errorf("usage: qpiped serve [bind_addr:port]")
	}

	sansList := splitCSV(*sans)
	rate := *ratePerSec

	if *configPath != "" {
		cfg, err := config.LoadServerConfig(*configPath)
		if err != nil {
			return fmt.Errorf("load config %s: %w", *configPath, err)
		}
		logging.Configure(cfg.GlobalLog)
		listenAddr = cfg.ListenAddr
		*stateDir = cfg.StateDir
		sansList = cfg.SANs
		*apiAddr = cfg.APIListenAddr
		rate = int64(cfg.TotalBandwidthLimit)
	} else {
		logging.Configure(nil)
	}

	caCert, caKey, err := certstore.LoadOrGenerateServer(*stateDir, sansList)
	if err != nil {
		return fmt.Errorf("load CA: %w", err)
	}

	identity := quicconn.Identity(caCert.Raw, caCert, caKey)
	tlscfg := quicconn.ServerTLSConfig(caCert, identity)

	var sl *limiter.SharedLimiter
	if rate > 0 {
		sl = limiter.NewSharedLimiter(rate)
	}

	if *apiAddr != "" {
		apiSrv := api.NewServer(*apiAddr, status.Global, sl, "")
		if err := apiSrv.Start(); err != nil {
			return fmt.Errorf("start status server: %w", err)
		}
		defer apiSrv.Stop()
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logStop := make(chan struct{})
	go status.Global.StartPeriodicLogging(time.Minute, logStop)
	defer close(logStop)

	srv := quicconn.NewServer(listenAddr, tlscfg, quicconn.DefaultQUICConfig())
	return srv.Serve(ctx, func(ctx context.Context, conn *quic.Conn) {
		handleConnection(ctx, conn, sl)
	})
}

func handleConnection(ctx context.Context, conn *quic.Conn, sl *limiter.SharedLimiter) {
	status.Global.IncConn()
	defer status.Global.DecConn()
	defer conn.CloseWithError(0, "done")

	for {
		stream, err := conn.AcceptStream(ctx)
		if err != nil {
			if ctx.Err() == nil {
				log.Printf("qpiped: accept stream from %s: %v", conn.RemoteAddr(), err)
			}
			return
		}
		go func() {
			if err := tunnel.HandleServerStream(stream, status.Global, sl); err != nil {
				log.Printf("qpiped: stream from %s: %v", conn.RemoteAddr(), err)
			}
		}()
	}
}
