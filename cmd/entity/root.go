package entity

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/dce-cluster/dce/cmd/util"
	"github.com/dce-cluster/dce/lib/coordinator"
	libEntity "github.com/dce-cluster/dce/lib/entity"
	"github.com/dce-cluster/dce/rpc/client"
	"github.com/spf13/cobra"
)

var (
	coord coordinator.ICoordinator

	defaultResource string
	poolSpecs       []string

	// EntityCommands represents the entity command group
	EntityCommands = &cobra.Command{
		Use:               "entity",
		Short:             "Perform clustered entity lifecycle operations",
		PersistentPreRunE: setupEntityClient,
	}

	// createCmd represents the create command
	createCmd = &cobra.Command{
		Use:   "create [id]",
		Short: "Create a clustered entity",
		Args:  cobra.ExactArgs(1),
		RunE:  runCreate,
	}

	// retrieveCmd represents the retrieve command
	retrieveCmd = &cobra.Command{
		Use:   "retrieve [id]",
		Short: "Retrieve and validate a clustered entity",
		Long:  "Retrieve a clustered entity, validate it against the expected configuration and release it again. Fails if the entity is missing, busy or configured differently than expected.",
		Args:  cobra.ExactArgs(1),
		RunE:  runRetrieve,
	}

	// destroyCmd represents the destroy command
	destroyCmd = &cobra.Command{
		Use:   "destroy [id]",
		Short: "Destroy a clustered entity",
		Args:  cobra.ExactArgs(1),
		RunE:  runDestroy,
	}
)

func init() {
	// Initialize viper
	cobra.OnInitialize(util.InitClientConfig)

	// Add subcommands to entity command
	EntityCommands.AddCommand(createCmd)
	EntityCommands.AddCommand(retrieveCmd)
	EntityCommands.AddCommand(destroyCmd)

	// Add common RPC flags to the entity command
	util.SetupRPCClientFlags(EntityCommands)

	// Shard IDs for the two backing services
	EntityCommands.PersistentFlags().Int("entity-shard", 100, util.WrapString("ID of the entity store shard to connect to"))
	EntityCommands.PersistentFlags().Int("lock-shard", 200, util.WrapString("ID of the lock manager shard to connect to"))

	// Configuration flags shared by create and retrieve
	for _, cmd := range []*cobra.Command{createCmd, retrieveCmd} {
		cmd.Flags().StringVar(&defaultResource, "default-resource", "", util.WrapString("Name of the default resource for pools without an explicit resource"))
		cmd.Flags().StringSliceVar(&poolSpecs, "pool", nil, util.WrapString("Resource pool in the format name=sizeBytes or name=sizeBytes@resource. May be repeated"))
	}
}

// setupEntityClient initializes the coordinator over RPC clients
func setupEntityClient(cmd *cobra.Command, _ []string) error {
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

// parseConfig builds the server side configuration from the command flags
func parseConfig() (libEntity.ServerSideConfiguration, error) {
	cfg := libEntity.ServerSideConfiguration{
		DefaultResource: defaultResource,
	}

	for _, spec := range poolSpecs {
		parts := strings.SplitN(spec, "=", 2)
		if len(parts) != 2 {
			return cfg, fmt.Errorf("invalid pool format: %s (expected name=sizeBytes or name=sizeBytes@resource)", spec)
		}
		name := strings.TrimSpace(parts[0])

		size := parts[1]
		resource := ""
		if at := strings.Index(size, "@"); at != -1 {
			resource = size[at+1:]
			size = size[:at]
		}

		sizeBytes, err := strconv.ParseUint(strings.TrimSpace(size), 10, 64)
		if err != nil {
			return cfg, fmt.Errorf("invalid pool size %s: %v", size, err)
		}

		if cfg.Pools == nil {
			cfg.Pools = make(map[string]libEntity.Pool)
		}
		cfg.Pools[name] = libEntity.Pool{
			SizeBytes: sizeBytes,
			Resource:  resource,
		}
	}

	return cfg, nil
}

// runCreate handles the create entity command
func runCreate(_ *cobra.Command, args []string) error {
	id := args[0]

	cfg, err := parseConfig()
	if err != nil {
		return err
	}

	if err := coord.Create(id, cfg); err != nil {
		return fmt.Errorf("failed to create entity: %v", err)
	}

	fmt.Printf("created=%s\n", id)
	return nil
}

// runRetrieve handles the retrieve entity command
func runRetrieve(_ *cobra.Command, args []string) error {
	id := args[0]

	cfg, err := parseConfig()
	if err != nil {
		return err
	}

	e, err := coord.Retrieve(id, cfg)
	if err != nil {
		return fmt.Errorf("failed to retrieve entity: %v", err)
	}
	defer func() { _ = e.Close() }()

	fmt.Printf("retrieved=%s, valid=true\n", e.Identifier())
	return nil
}

// runDestroy handles the destroy entity command
func runDestroy(_ *cobra.Command, args []string) error {
	id := args[0]

	if err := coord.Destroy(id); err != nil {
		return fmt.Errorf("failed to destroy entity: %v", err)
	}

	fmt.Printf("destroyed=%s\n", id)
	return nil
}
