// Package comm implements the process group used by the topology dump
// trigger.
//
// A group is formed from the environment of a distributed launch (one
// process per accelerator, torchrun-style RANK/LOCAL_RANK/WORLD_SIZE
// variables). Rank 0 is the coordinator: it serves a WebSocket rendezvous
// endpoint that the other ranks dial, and it is the only rank that writes
// the topology dump. The only collective operation is Barrier, which
// releases no rank until every rank has arrived.
package comm

import (
	"fmt"
	"net"
	"os"
	"strconv"

	"github.com/clusterkit/topoviz/pkg/errors"
)

// Environment variables of a distributed launch.
const (
	EnvRank       = "RANK"
	EnvLocalRank  = "LOCAL_RANK"
	EnvWorldSize  = "WORLD_SIZE"
	EnvMasterAddr = "MASTER_ADDR"
	EnvMasterPort = "MASTER_PORT"

	// EnvDumpFile configures the topology dump destination. Only the
	// coordinator reads it; the dump command sets it on rank 0 only.
	EnvDumpFile = "TOPOVIZ_TOPO_DUMP_FILE"
)

// Rendezvous defaults, matching the usual single-host launcher setup.
const (
	DefaultMasterAddr = "127.0.0.1"
	DefaultMasterPort = 29500
)

// LaunchEnv identifies one process of a distributed launch.
type LaunchEnv struct {
	Rank       int    // global process index, 0 <= Rank < WorldSize
	LocalRank  int    // per-host process index, selects the local device
	WorldSize  int    // total process count
	MasterAddr string // rendezvous host (rank 0)
	MasterPort int    // rendezvous port
}

// IsCoordinator reports whether this process is rank 0.
func (e LaunchEnv) IsCoordinator() bool { return e.Rank == 0 }

// Endpoint returns the rendezvous host:port.
func (e LaunchEnv) Endpoint() string {
	return net.JoinHostPort(e.MasterAddr, strconv.Itoa(e.MasterPort))
}

// Validate checks the internal consistency of the launch environment.
func (e LaunchEnv) Validate() error {
	if e.WorldSize < 1 {
		return errors.New(errors.ErrCodeInvalidEnv, "%s must be at least 1, got %d", EnvWorldSize, e.WorldSize)
	}
	if e.Rank < 0 || e.Rank >= e.WorldSize {
		return errors.New(errors.ErrCodeInvalidEnv, "%s %d out of range for %s %d", EnvRank, e.Rank, EnvWorldSize, e.WorldSize)
	}
	if e.LocalRank < 0 {
		return errors.New(errors.ErrCodeInvalidEnv, "%s must not be negative, got %d", EnvLocalRank, e.LocalRank)
	}
	if e.MasterPort < 1 || e.MasterPort > 65535 {
		return errors.New(errors.ErrCodeInvalidEnv, "%s %d is not a valid port", EnvMasterPort, e.MasterPort)
	}
	return nil
}

// FromEnv reads the launch environment of this process.
// RANK, LOCAL_RANK, and WORLD_SIZE are required; MASTER_ADDR and MASTER_PORT
// fall back to the single-host defaults.
func FromEnv() (LaunchEnv, error) {
	env := LaunchEnv{
		MasterAddr: DefaultMasterAddr,
		MasterPort: DefaultMasterPort,
	}

	var err error
	if env.Rank, err = requiredInt(EnvRank); err != nil {
		return LaunchEnv{}, err
	}
	if env.LocalRank, err = requiredInt(EnvLocalRank); err != nil {
		return LaunchEnv{}, err
	}
	if env.WorldSize, err = requiredInt(EnvWorldSize); err != nil {
		return LaunchEnv{}, err
	}

	if v := os.Getenv(EnvMasterAddr); v != "" {
		env.MasterAddr = v
	}
	if v := os.Getenv(EnvMasterPort); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return LaunchEnv{}, errors.New(errors.ErrCodeInvalidEnv, "%s must be an integer, got %q", EnvMasterPort, v)
		}
		env.MasterPort = port
	}

	if err := env.Validate(); err != nil {
		return LaunchEnv{}, err
	}
	return env, nil
}

func requiredInt(key string) (int, error) {
	v, ok := os.LookupEnv(key)
	if !ok {
		return 0, errors.New(errors.ErrCodeInvalidEnv, "%s is not set; launch with a distributed launcher", key)
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, errors.New(errors.ErrCodeInvalidEnv, "%s must be an integer, got %q", key, v)
	}
	return n, nil
}

// String implements fmt.Stringer for launch diagnostics.
func (e LaunchEnv) String() string {
	return fmt.Sprintf("rank=%d local_rank=%d world_size=%d master=%s", e.Rank, e.LocalRank, e.WorldSize, e.Endpoint())
}
