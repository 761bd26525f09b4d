package comm

import (
	"context"
	"net"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/clusterkit/topoviz/pkg/errors"
)

// rendezvousPath is the WebSocket endpoint served by the coordinator.
const rendezvousPath = "/rendezvous"

// Wire message types.
const (
	msgJoin    = "join"
	msgWelcome = "welcome"
	msgArrive  = "arrive"
	msgRelease = "release"
)

// message is the process-group wire format.
type message struct {
	Type    string `json:"type"`
	Rank    int    `json:"rank"`
	GroupID string `json:"group_id,omitempty"`
}

// Config configures group initialization.
type Config struct {
	// Logger receives group lifecycle diagnostics. Defaults to log.Default().
	Logger *log.Logger

	// DumpFile is the topology dump destination, written by the coordinator
	// when the barrier completes. Defaults to the TOPOVIZ_TOPO_DUMP_FILE
	// environment variable; empty disables the dump.
	DumpFile string
}

// Group is an initialized process group. It is not safe for concurrent use;
// the trigger is a linear init/barrier/close pipeline.
type Group struct {
	env      LaunchEnv
	id       string // group UUID, assigned by rank 0
	logger   *log.Logger
	dumpFile string

	// coordinator state
	listener net.Listener
	server   *http.Server
	mu       sync.Mutex
	peers    map[int]*lockedConn
	joined   chan int
	srvErr   chan error

	// peer state
	conn *lockedConn
}

// Init forms the process group described by env.
//
// Rank 0 listens on the rendezvous endpoint and waits until every other rank
// has joined; other ranks dial with backoff while the coordinator comes up.
// Init blocks until the group is complete or ctx is cancelled.
func Init(ctx context.Context, env LaunchEnv, cfg Config) (*Group, error) {
	if err := env.Validate(); err != nil {
		return nil, err
	}

	logger := cfg.Logger
	if logger == nil {
		logger = log.Default()
	}
	dumpFile := cfg.DumpFile
	if dumpFile == "" {
		dumpFile = os.Getenv(EnvDumpFile)
	}

	g := &Group{
		env:      env,
		logger:   logger,
		dumpFile: dumpFile,
	}

	if env.IsCoordinator() {
		if err := g.serve(ctx); err != nil {
			return nil, err
		}
	} else {
		if err := g.dial(ctx); err != nil {
			return nil, err
		}
	}

	logger.Debugf("process group ready: %s group_id=%s", env, g.id)
	return g, nil
}

// ID returns the group UUID assigned by the coordinator.
func (g *Group) ID() string { return g.id }

// serve runs the coordinator side of the rendezvous: accept worldSize-1
// joins, welcome each with the group ID.
func (g *Group) serve(ctx context.Context) error {
	g.id = uuid.NewString()
	g.peers = make(map[int]*lockedConn, g.env.WorldSize-1)
	g.joined = make(chan int, g.env.WorldSize)
	g.srvErr = make(chan error, 1)

	ln, err := net.Listen("tcp", g.env.Endpoint())
	if err != nil {
		return errors.Wrap(errors.ErrCodeRendezvous, err, "listen on %s", g.env.Endpoint())
	}
	g.listener = ln

	mux := http.NewServeMux()
	mux.HandleFunc(rendezvousPath, g.handleJoin)
	g.server = &http.Server{Handler: mux}
	go func() {
		if err := g.server.Serve(ln); err != nil && err != http.ErrServerClosed {
			g.srvErr <- err
		}
	}()

	g.logger.Debugf("rendezvous listening on %s", g.env.Endpoint())

	for {
		g.mu.Lock()
		n := len(g.peers)
		g.mu.Unlock()
		if n == g.env.WorldSize-1 {
			return nil
		}
		select {
		case <-ctx.Done():
			g.shutdown()
			return errors.Wrap(errors.ErrCodeRendezvous, ctx.Err(), "waiting for %d peers", g.env.WorldSize-1-n)
		case err := <-g.srvErr:
			g.shutdown()
			return errors.Wrap(errors.ErrCodeRendezvous, err, "rendezvous server")
		case <-g.joined:
		}
	}
}

var upgrader = websocket.Upgrader{}

// handleJoin admits one peer: read its join message, check the rank, and
// answer with a welcome carrying the group ID. The connection outlives the
// handler; Barrier and Close use it afterwards.
func (g *Group) handleJoin(w http.ResponseWriter, r *http.Request) {
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		g.logger.Warnf("rendezvous upgrade failed: %v", err)
		return
	}
	conn := newLockedConn(ws)

	var join message
	if err := conn.readJSON(&join); err != nil {
		g.logger.Warnf("rendezvous read failed: %v", err)
		conn.close()
		return
	}
	if join.Type != msgJoin || join.Rank < 1 || join.Rank >= g.env.WorldSize {
		g.logger.Warnf("rejecting join: type=%s rank=%d", join.Type, join.Rank)
		conn.close()
		return
	}

	g.mu.Lock()
	if _, dup := g.peers[join.Rank]; dup {
		g.mu.Unlock()
		g.logger.Warnf("rejecting duplicate join for rank %d", join.Rank)
		conn.close()
		return
	}
	g.peers[join.Rank] = conn
	g.mu.Unlock()

	if err := conn.writeJSON(message{Type: msgWelcome, Rank: 0, GroupID: g.id}); err != nil {
		g.logger.Warnf("welcome to rank %d failed: %v", join.Rank, err)
		g.mu.Lock()
		delete(g.peers, join.Rank)
		g.mu.Unlock()
		conn.close()
		return
	}

	g.logger.Debugf("rank %d joined", join.Rank)
	g.joined <- join.Rank
}

// dial runs the peer side of the rendezvous, retrying with capped backoff
// while the coordinator comes up. There is no overall timeout: a missing
// coordinator blocks until ctx is cancelled.
func (g *Group) dial(ctx context.Context) error {
	url := "ws://" + g.env.Endpoint() + rendezvousPath

	backoff := 100 * time.Millisecond
	const maxBackoff = 2 * time.Second

	for {
		ws, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
		if err == nil {
			g.conn = newLockedConn(ws)
			break
		}
		select {
		case <-ctx.Done():
			return errors.Wrap(errors.ErrCodeRendezvous, ctx.Err(), "dial %s", url)
		case <-time.After(backoff):
		}
		if backoff < maxBackoff {
			backoff *= 2
		}
	}

	if err := g.conn.writeJSON(message{Type: msgJoin, Rank: g.env.Rank}); err != nil {
		g.conn.close()
		return errors.Wrap(errors.ErrCodeRendezvous, err, "send join")
	}

	var welcome message
	if err := g.conn.readJSON(&welcome); err != nil {
		g.conn.close()
		return errors.Wrap(errors.ErrCodeRendezvous, err, "await welcome")
	}
	if welcome.Type != msgWelcome || welcome.GroupID == "" {
		g.conn.close()
		return errors.New(errors.ErrCodeProtocol, "unexpected rendezvous reply: %s", welcome.Type)
	}
	g.id = welcome.GroupID
	return nil
}

// Barrier blocks until every rank in the group has arrived.
//
// There is deliberately no timeout: a stalled peer hangs the whole group,
// which is acceptable for a manual debug tool. Cancelling ctx tears the
// connections down and unblocks the call with an error.
//
// On the coordinator, completing the barrier writes the topology dump if a
// dump file is configured.
func (g *Group) Barrier(ctx context.Context) error {
	stop := context.AfterFunc(ctx, func() { g.closeConns() })
	defer stop()

	var err error
	if g.env.IsCoordinator() {
		err = g.barrierCoordinator()
	} else {
		err = g.barrierPeer()
	}
	if err != nil {
		if ctx.Err() != nil {
			return errors.Wrap(errors.ErrCodeRendezvous, ctx.Err(), "barrier aborted")
		}
		return err
	}

	if g.env.IsCoordinator() && g.dumpFile != "" {
		if err := writeTopologyDump(g.dumpFile); err != nil {
			return err
		}
		g.logger.Debugf("topology dump written to %s", g.dumpFile)
	}
	return nil
}

// barrierCoordinator collects one arrive per peer, then releases all peers.
func (g *Group) barrierCoordinator() error {
	g.mu.Lock()
	conns := make([]*lockedConn, 0, len(g.peers))
	for _, c := range g.peers {
		conns = append(conns, c)
	}
	g.mu.Unlock()

	for _, c := range conns {
		var arrive message
		if err := c.readJSON(&arrive); err != nil {
			return errors.Wrap(errors.ErrCodeRendezvous, err, "await arrivals")
		}
		if arrive.Type != msgArrive || arrive.GroupID != g.id {
			return errors.New(errors.ErrCodeProtocol, "unexpected barrier message from rank %d: %s", arrive.Rank, arrive.Type)
		}
	}

	for _, c := range conns {
		if err := c.writeJSON(message{Type: msgRelease, Rank: 0, GroupID: g.id}); err != nil {
			return errors.Wrap(errors.ErrCodeRendezvous, err, "release peers")
		}
	}
	return nil
}

// barrierPeer announces arrival and blocks until released.
func (g *Group) barrierPeer() error {
	if err := g.conn.writeJSON(message{Type: msgArrive, Rank: g.env.Rank, GroupID: g.id}); err != nil {
		return errors.Wrap(errors.ErrCodeRendezvous, err, "send arrive")
	}

	var release message
	if err := g.conn.readJSON(&release); err != nil {
		return errors.Wrap(errors.ErrCodeRendezvous, err, "await release")
	}
	if release.Type != msgRelease || release.GroupID != g.id {
		return errors.New(errors.ErrCodeProtocol, "unexpected barrier reply: %s", release.Type)
	}
	return nil
}

// Close releases the group. Peers close their connection to the
// coordinator; the coordinator closes every peer connection and stops the
// rendezvous server.
func (g *Group) Close() error {
	g.closeConns()
	if g.env.IsCoordinator() {
		g.shutdown()
	}
	return nil
}

func (g *Group) closeConns() {
	if g.conn != nil {
		g.conn.close()
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, c := range g.peers {
		c.close()
	}
}

func (g *Group) shutdown() {
	if g.server != nil {
		_ = g.server.Close()
	}
	if g.listener != nil {
		_ = g.listener.Close()
	}
}
