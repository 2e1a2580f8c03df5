package main

import (
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"google.golang.org/grpc"

	"github.com/vzdtic/raftcore/pkg/cluster"
	"github.com/vzdtic/raftcore/pkg/kv"
	"github.com/vzdtic/raftcore/pkg/metrics"
	"github.com/vzdtic/raftcore/pkg/obs"
	"github.com/vzdtic/raftcore/pkg/raft"
	"github.com/vzdtic/raftcore/pkg/storage"
	"github.com/vzdtic/raftcore/pkg/transport/grpcio"
)

var (
	serveID          uint64
	serveListen      string
	serveAdminAddr   string
	serveMetricsAddr string
	servePeers       []string
	serveBootstrap   bool
	serveTickMS      int
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start this node and block until shut down",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().Uint64Var(&serveID, "id", 0, "this server's id")
	serveCmd.Flags().StringVar(&serveListen, "listen", "127.0.0.1:7000", "address other nodes dial for raft RPCs")
	serveCmd.Flags().StringVar(&serveAdminAddr, "admin-addr", "127.0.0.1:7500", "address the CLI's client API dials")
	serveCmd.Flags().StringVar(&serveMetricsAddr, "metrics-addr", "127.0.0.1:9090", "address Prometheus scrapes")
	serveCmd.Flags().StringArrayVar(&servePeers, "peer", nil, "id=host:port, repeatable; include every voter, including this node")
	serveCmd.Flags().BoolVar(&serveBootstrap, "bootstrap", false, "seed a brand-new cluster's configuration from --peer (first node only)")
	serveCmd.Flags().IntVar(&serveTickMS, "tick-ms", 20, "driver tick period in milliseconds")
	serveCmd.MarkFlagRequired("id")
	rootCmd.AddCommand(serveCmd)
}

func parsePeers(raw []string) (map[uint64]string, error) {
	addrs := make(map[uint64]string, len(raw))
	for _, p := range raw {
		parts := strings.SplitN(p, "=", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("raftd: malformed --peer %q, want id=host:port", p)
		}
		id, err := strconv.ParseUint(parts[0], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("raftd: malformed --peer id %q: %w", parts[0], err)
		}
		addrs[id] = parts[1]
	}
	return addrs, nil
}

// serialReceiver hands every inbound raft message to loop rather than
// calling node.Receive directly from the grpc handler goroutine. node is
// set once, after construction, since Transport and RaftNode each need
// a reference to the other.
type serialReceiver struct {
	loop *runLoop
	node *raft.RaftNode
}

func (s *serialReceiver) Receive(msg raft.Message) {
	s.loop.submit(func() { s.node.Receive(msg) })
}

func runServe(cmd *cobra.Command, args []string) error {
	lvl, err := zerolog.ParseLevel(logLevel)
	if err != nil {
		return fmt.Errorf("raftd: bad --log-level: %w", err)
	}
	zerolog.SetGlobalLevel(lvl)

	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return fmt.Errorf("raftd: create data dir: %w", err)
	}

	addrs, err := parsePeers(servePeers)
	if err != nil {
		return err
	}

	boltIO, err := storage.Open(dataDir, wallClock())
	if err != nil {
		return fmt.Errorf("raftd: open storage: %w", err)
	}

	raftLog, err := boltIO.LoadLog()
	if err != nil {
		return fmt.Errorf("raftd: load log: %w", err)
	}
	term, votedFor, err := boltIO.LoadMeta()
	if err != nil {
		return fmt.Errorf("raftd: load meta: %w", err)
	}

	var conf *raft.Configuration
	if serveBootstrap && raftLog.LastIndex() == 0 && raftLog.SnapshotIndex() == 0 {
		conf = raft.NewConfiguration()
		for id := range addrs {
			if err := conf.Add(id, raft.RoleVoter); err != nil {
				return fmt.Errorf("raftd: bootstrap configuration: %w", err)
			}
		}
	} else {
		conf = raft.NewConfiguration()
	}

	logger := obs.NewLogger(serveID, os.Stderr)
	store := kv.New()
	cfg := raft.DefaultConfig(serveID)

	loop := newRunLoop()
	recv := &serialReceiver{loop: loop}
	transport := grpcio.New(serveID, addrs, recv)
	compositeIO := newCompositeIO(boltIO, transport)
	node := raft.NewNode(cfg, compositeIO, store, logger, nil, term, votedFor, raftLog, conf)
	recv.node = node

	go loop.run()

	selfAddr := addrs[serveID]
	book := cluster.NewAddressBook(addrs)
	view := cluster.NewView(node, book)
	admin := &nodeAdmin{loop: loop, node: node, store: store, view: view, book: book}

	go func() {
		if err := transport.Serve(serveListen); err != nil {
			logger.Error().Err(err).Msg("raft transport listener stopped")
		}
	}()

	adminLis, err := net.Listen("tcp", serveAdminAddr)
	if err != nil {
		return fmt.Errorf("raftd: listen admin: %w", err)
	}
	adminServer := grpc.NewServer()
	grpcio.NewAdminServer(admin).Register(adminServer)
	go func() {
		if err := adminServer.Serve(adminLis); err != nil {
			logger.Error().Err(err).Msg("admin listener stopped")
		}
	}()

	collector := metrics.NewCollector(node)
	collector.Start()

	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", metrics.Handler())
	metricsSrv := &http.Server{Addr: serveMetricsAddr, Handler: metricsMux}
	go func() {
		if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("metrics listener stopped")
		}
	}()

	ticker := time.NewTicker(time.Duration(serveTickMS) * time.Millisecond)
	defer ticker.Stop()
	go func() {
		for range ticker.C {
			loop.submit(node.Tick)
		}
	}()

	logger.Info().Str("listen", serveListen).Str("admin", serveAdminAddr).Str("self_addr", selfAddr).Msg("raftd started")

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	logger.Info().Msg("raftd shutting down")
	collector.Stop()
	transport.Stop()
	adminServer.GracefulStop()
	metricsSrv.Close()
	loop.stop()
	return boltIO.Close()
}
