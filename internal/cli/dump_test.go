package cli

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/clusterkit/topoviz/pkg/comm"
	"github.com/clusterkit/topoviz/pkg/device"
	topoerrors "github.com/clusterkit/topoviz/pkg/errors"
)

// setLaunchEnv configures a fake single-host launch for the current test.
func setLaunchEnv(t *testing.T, rank, localRank, worldSize, deviceCount string) {
	t.Helper()
	t.Setenv(comm.EnvRank, rank)
	t.Setenv(comm.EnvLocalRank, localRank)
	t.Setenv(comm.EnvWorldSize, worldSize)
	t.Setenv(device.CountOverrideEnv, deviceCount)

	// runDump sets the dump destination on the coordinator; register the
	// variable with the test so the value is restored afterwards.
	t.Setenv(comm.EnvDumpFile, "")
	os.Unsetenv(comm.EnvDumpFile)
}

func execDump(t *testing.T, args ...string) error {
	t.Helper()

	var buf bytes.Buffer
	cmd := newDumpCmd()
	cmd.SetOut(&buf)
	cmd.SetErr(&buf)
	cmd.SetArgs(args)

	return cmd.ExecuteContext(context.Background())
}

func TestDumpRequiresLaunchEnv(t *testing.T) {
	setLaunchEnv(t, "0", "0", "1", "1")
	os.Unsetenv(comm.EnvRank)

	err := execDump(t, filepath.Join(t.TempDir(), "topology.xml"))
	if topoerrors.GetCode(err) != topoerrors.ErrCodeInvalidEnv {
		t.Errorf("GetCode(err) = %v, want %v", topoerrors.GetCode(err), topoerrors.ErrCodeInvalidEnv)
	}
}

func TestDumpNoDevices(t *testing.T) {
	setLaunchEnv(t, "0", "0", "1", "0")

	err := execDump(t, filepath.Join(t.TempDir(), "topology.xml"))
	if !errors.Is(err, ErrSilent) {
		t.Errorf("err = %v, want ErrSilent", err)
	}
}

func TestDumpWorldLargerThanDeviceCount(t *testing.T) {
	// Both the coordinator and the other ranks abort silently; only the
	// coordinator prints the diagnostic.
	for _, rank := range []string{"0", "1"} {
		t.Run("rank "+rank, func(t *testing.T) {
			setLaunchEnv(t, rank, rank, "9", "8")

			err := execDump(t, filepath.Join(t.TempDir(), "topology.xml"))
			if !errors.Is(err, ErrSilent) {
				t.Errorf("err = %v, want ErrSilent", err)
			}
		})
	}
}

func TestDumpSingleRankWritesTopology(t *testing.T) {
	setLaunchEnv(t, "0", "0", "1", "2")
	t.Setenv(comm.EnvMasterPort, "29731")

	outFile := filepath.Join(t.TempDir(), "topology.xml")
	if err := execDump(t, outFile); err != nil {
		t.Fatalf("dump failed: %v", err)
	}

	if _, err := os.Stat(outFile); err != nil {
		t.Fatalf("topology dump not written: %v", err)
	}
}

func TestDumpRequiresOutputArgument(t *testing.T) {
	if err := execDump(t); err == nil {
		t.Error("expected an argument error")
	}
}
