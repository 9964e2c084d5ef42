package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/opencode-ai/pocketcode/internal/registry"
)

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Manage the server registry",
	Long:  `Add, list, select, and remove opencode servers.`,
}

var serverAddCmd = &cobra.Command{
	Use:   "add <name> <url>",
	Short: "Add a server",
	Args:  cobra.ExactArgs(2),
	RunE:  runServerAdd,
}

var serverListCmd = &cobra.Command{
	Use:   "list",
	Short: "List registered servers",
	RunE:  runServerList,
}

var serverUseCmd = &cobra.Command{
	Use:   "use <id>",
	Short: "Make a server the active one and connect to it",
	Args:  cobra.ExactArgs(1),
	RunE:  runServerUse,
}

var serverRemoveCmd = &cobra.Command{
	Use:   "remove <id>",
	Short: "Remove a server",
	Args:  cobra.ExactArgs(1),
	RunE:  runServerRemove,
}

func init() {
	serverCmd.AddCommand(serverAddCmd)
	serverCmd.AddCommand(serverListCmd)
	serverCmd.AddCommand(serverUseCmd)
	serverCmd.AddCommand(serverRemoveCmd)
}

func runServerAdd(cmd *cobra.Command, args []string) error {
	a, cleanup, err := setup()
	if err != nil {
		return err
	}
	defer cleanup()
	defer a.Close()

	ctx := cmd.Context()
	if err := a.Registry.Load(ctx); err != nil {
		return err
	}

	cfg, err := a.Registry.AddServer(ctx, args[0], args[1])
	if err != nil {
		return err
	}
	fmt.Printf("added %s (%s) at %s\n", cfg.Name, cfg.ID, cfg.URL)

	// First server becomes active automatically.
	if len(a.Registry.Servers()) == 1 {
		if err := a.Registry.SetActiveServer(ctx, cfg.ID); err != nil {
			return err
		}
		fmt.Println("set as active server")
	}
	return nil
}

func runServerList(cmd *cobra.Command, args []string) error {
	a, cleanup, err := setup()
	if err != nil {
		return err
	}
	defer cleanup()
	defer a.Close()

	ctx := cmd.Context()
	if err := a.Registry.Load(ctx); err != nil {
		return err
	}

	servers := a.Registry.Servers()
	if len(servers) == 0 {
		fmt.Println("no servers registered")
		return nil
	}

	active, _ := a.Registry.ActiveServer()
	for _, s := range servers {
		marker := " "
		if s.ID == active.ID {
			marker = "*"
		}
		fmt.Printf("%s %s  %s  %s\n", marker, s.ID, s.Name, s.URL)
	}
	return nil
}

func runServerUse(cmd *cobra.Command, args []string) error {
	a, cleanup, err := setup()
	if err != nil {
		return err
	}
	defer cleanup()
	defer a.Close()

	ctx := cmd.Context()
	if err := a.Registry.Load(ctx); err != nil {
		return err
	}

	if err := a.Registry.SetActiveServer(ctx, args[0]); err != nil {
		return err
	}

	st := a.Registry.Connect(ctx, args[0])
	switch st.Status {
	case registry.StatusConnected:
		fmt.Printf("connected to %s (server v%s)\n", st.Config.URL, st.Version)
	default:
		fmt.Printf("could not connect: %s\n", st.Error)
	}
	return nil
}

func runServerRemove(cmd *cobra.Command, args []string) error {
	a, cleanup, err := setup()
	if err != nil {
		return err
	}
	defer cleanup()
	defer a.Close()

	ctx := cmd.Context()
	if err := a.Registry.Load(ctx); err != nil {
		return err
	}

	if err := a.Registry.RemoveServer(ctx, args[0]); err != nil {
		return err
	}
	fmt.Println("removed")
	return nil
}
