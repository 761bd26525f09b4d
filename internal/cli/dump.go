package cli

import (
	"context"
	"os"

	"github.com/spf13/cobra"

	"github.com/clusterkit/topoviz/pkg/comm"
	"github.com/clusterkit/topoviz/pkg/device"
)

// newDumpCmd creates the dump command: the topology dump trigger.
//
// The command must be started once per local accelerator by a distributed
// launcher that provides RANK, LOCAL_RANK, and WORLD_SIZE. All ranks meet in
// a collective barrier; completing it makes the coordinator write the
// topology dump.
func newDumpCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "dump [output-file]",
		Short: "Trigger an interconnect topology dump",
		Long: `Trigger an interconnect topology dump.

Launch one process per local accelerator device, e.g. for 8 GPUs:

  for rank in $(seq 0 7); do
    RANK=$rank LOCAL_RANK=$rank WORLD_SIZE=8 topoviz dump /tmp/topology.xml &
  done

Every process joins a process group and executes a collective barrier.
When the barrier completes, the coordinating process (rank 0) writes the
topology XML to the output file and prints a confirmation. The other ranks
print nothing.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDump(cmd.Context(), args[0])
		},
	}
}

// runDump validates the launch environment, binds the local device, and
// runs the init/barrier/teardown sequence.
func runDump(ctx context.Context, outFile string) error {
	logger := loggerFromContext(ctx)

	env, err := comm.FromEnv()
	if err != nil {
		return err
	}
	logger.Debugf("launch environment: %s", env)

	// The dump destination travels by environment variable so that the
	// group, not the command, performs the write. Only the coordinator
	// sets it.
	if env.IsCoordinator() {
		os.Setenv(comm.EnvDumpFile, outFile)
	}

	if !device.Supported() {
		printError("No accelerator devices found. Run this on a GPU machine.")
		return ErrSilent
	}

	ndev, err := device.Count()
	if err != nil {
		return err
	}
	if env.WorldSize > ndev {
		// Diagnose once per job, not once per rank.
		if env.IsCoordinator() {
			printError("world size (%d) is greater than number of devices (%d)", env.WorldSize, ndev)
		}
		return ErrSilent
	}

	dev, err := device.Bind(env.LocalRank)
	if err != nil {
		return err
	}
	logger.Debugf("bound to device %d (%s)", dev.Index, dev.BusID)

	group, err := comm.Init(ctx, env, comm.Config{Logger: logger})
	if err != nil {
		return err
	}
	defer group.Close()

	if err := group.Barrier(ctx); err != nil {
		return err
	}

	if env.IsCoordinator() {
		printSuccess("Topology written to: %s", outFile)
	}
	return nil
}
