package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/opencode-ai/pocketcode/internal/bus"
	"github.com/opencode-ai/pocketcode/internal/config"
)

var debugCmd = &cobra.Command{
	Use:   "debug",
	Short: "Debug utilities",
	Long:  `Debug utilities for troubleshooting pocketcode configuration and connectivity.`,
}

var debugConfigCmd = &cobra.Command{
	Use:   "config",
	Short: "Show current configuration",
	RunE:  runDebugConfig,
}

var debugPathsCmd = &cobra.Command{
	Use:   "paths",
	Short: "Show system paths",
	RunE:  runDebugPaths,
}

var debugHealthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check every registered server's health",
	RunE:  runDebugHealth,
}

var debugEventsCmd = &cobra.Command{
	Use:   "events",
	Short: "Tail the active server's event stream to stdout",
	RunE:  runDebugEvents,
}

func init() {
	debugCmd.AddCommand(debugConfigCmd)
	debugCmd.AddCommand(debugPathsCmd)
	debugCmd.AddCommand(debugHealthCmd)
	debugCmd.AddCommand(debugEventsCmd)
}

func runDebugConfig(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}

	fmt.Println(string(data))
	return nil
}

func runDebugPaths(cmd *cobra.Command, args []string) error {
	paths := config.GetPaths()

	fmt.Println("Pocketcode System Paths:")
	fmt.Println()
	fmt.Printf("  Config:   %s\n", paths.Config)
	fmt.Printf("  Data:     %s\n", paths.Data)
	fmt.Printf("  State:    %s\n", paths.State)
	fmt.Printf("  Storage:  %s\n", paths.StoragePath())
	fmt.Println()
	return nil
}

func runDebugHealth(cmd *cobra.Command, args []string) error {
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

	for _, s := range servers {
		result := a.Clients.HealthCheck(ctx, s.URL)
		if result.Healthy {
			fmt.Printf("ok    %s  %s  v%s\n", s.Name, s.URL, result.Version)
		} else {
			fmt.Printf("fail  %s  %s  %s\n", s.Name, s.URL, result.Error)
		}
	}
	return nil
}

func runDebugEvents(cmd *cobra.Command, args []string) error {
	a, cleanup, err := setup()
	if err != nil {
		return err
	}
	defer cleanup()
	defer a.Close()

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	if err := a.Start(ctx); err != nil {
		return err
	}

	unsub := a.Bus.SubscribeAll(func(n bus.Notification) {
		fmt.Printf("%-20s %s\n", n.Topic, n.Payload)
	})
	defer unsub()

	fmt.Println("listening, ctrl+c to stop")
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	return nil
}
