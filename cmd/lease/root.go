package lease

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/dce-cluster/dce/cmd/util"
	"github.com/dce-cluster/dce/lib/coordinator"
	"github.com/dce-cluster/dce/rpc/client"
	"github.com/spf13/cobra"
)

var (
	coord coordinator.ICoordinator

	// LeaseCommands represents the lease command group
	LeaseCommands = &cobra.Command{
		Use:               "lease",
		Short:             "Perform maintenance lease operations",
		PersistentPreRunE: setupLeaseClient,
	}

	// holdCmd represents the hold command
	holdCmd = &cobra.Command{
		Use:   "hold [id]",
		Short: "Acquire the maintenance lease for an entity and hold it",
		Long:  "Acquire the maintenance lease for an entity identifier and hold it until the process is interrupted (SIGINT/SIGTERM). While the lease is held, no other client can create, retrieve or destroy the entity.",
		Args:  cobra.ExactArgs(1),
		RunE:  runHold,
	}

	// probeCmd represents the probe command
	probeCmd = &cobra.Command{
		Use:   "probe [id]",
		Short: "Test whether the maintenance lease for an entity is free",
		Long:  "Attempt to acquire the maintenance lease for an entity identifier and release it again immediately. Reports whether the lease could be taken.",
		Args:  cobra.ExactArgs(1),
		RunE:  runProbe,
	}
)

func init() {
	// Initialize viper
	cobra.OnInitialize(util.InitClientConfig)

	// Add subcommands to lease command
	LeaseCommands.AddCommand(holdCmd)
	LeaseCommands.AddCommand(probeCmd)

	// Add common RPC flags to the lease command
	util.SetupRPCClientFlags(LeaseCommands)

	// Shard IDs for the two backing services
	LeaseCommands.PersistentFlags().Int("entity-shard", 100, util.WrapString("ID of the entity store shard to connect to"))
	LeaseCommands.PersistentFlags().Int("lock-shard", 200, util.WrapString("ID of the lock manager shard to connect to"))
}

// setupLeaseClient initializes the coordinator over RPC clients
func setupLeaseClient(cmd *cobra.Command, _ []string) error {
	// Bind command flags to viper
	if err := util.BindCommandFlags(cmd); err != nil {
		return err
	}

	// Get client configuration components
	config := util.GetClientConfig()

	// Get serializer
	s, err := util.GetSerializer()
	if err != nil {
		return err
	}

	// Each client gets its own transport connection pool
	entityTransport, err := util.GetTransport()
	if err != nil {
		return err
	}
	lockTransport, err := util.GetTransport()
	if err != nil {
		return err
	}

	// Create the entity store client
	es, err := client.NewRPCEntityStore(
		util.GetShardID("entity-shard"),
		*config,
		entityTransport,
		s,
	)
	if err != nil {
		return err
	}

	// Create the lock manager client
	lm, err := client.NewRPCRWLockMgr(
		util.GetShardID("lock-shard"),
		*config,
		lockTransport,
		s,
	)
	if err != nil {
		return err
	}

	coord = coordinator.NewCoordinator(es, lm)
	return nil
}

// runHold handles the hold lease command
func runHold(_ *cobra.Command, args []string) error {
	id := args[0]

	acquired, err := coord.AcquireLeadership(id)
	if err != nil {
		return fmt.Errorf("failed to acquire lease: %v", err)
	}

	if !acquired {
		fmt.Printf("acquired=false\n")
		return nil
	}

	fmt.Printf("acquired=true, holding lease for %s (interrupt to release)\n", id)

	// Hold the lease until the process is interrupted
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	coord.AbandonLeadership(id)
	fmt.Printf("released=%s\n", id)

	return nil
}

// runProbe handles the probe lease command
func runProbe(_ *cobra.Command, args []string) error {
	id := args[0]

	acquired, err := coord.AcquireLeadership(id)
	if err != nil {
		return fmt.Errorf("failed to probe lease: %v", err)
	}

	if !acquired {
		fmt.Printf("free=false\n")
		return nil
	}

	coord.AbandonLeadership(id)
	fmt.Printf("free=true\n")

	return nil
}
