package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/vialba/go-elect/pkg/elect"
)

var (
	iface   string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "go-elect",
	Short: "Elects a leader among the nodes on the local link.",
	Long: `Starts a leader election node on the given interface and drops into a
small shell. Commands: hello, leader, exit.`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		conf := elect.DefaultConfiguration("go-elect")
		conf.Interface = iface
		conf.Logger.ToggleDebug(verbose)

		node, err := elect.NewNode(conf)
		if err != nil {
			return fmt.Errorf("failed to start node: %w", err)
		}
		defer node.Shutdown()

		fmt.Println("MAIN: Welcome to go-elect!")
		return shell(node)
	},
}

// The interactive shell of the node. Stays up until exit or EOF.
func shell(node *elect.Node) error {
	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			return scanner.Err()
		}
		switch strings.TrimSpace(scanner.Text()) {
		case "":
		case "hello":
			fmt.Println("hello world!")
		case "leader":
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			leader, err := node.WhoIsLeader(ctx)
			cancel()
			if err != nil {
				fmt.Printf("MAIN: Error - could not query the leader: %v\n", err)
				continue
			}
			fmt.Printf("MAIN: The current leader is: %s\n", leader)
		case "exit", "quit":
			return nil
		default:
			fmt.Println("commands: hello, leader, exit")
		}
	}
}

func main() {
	rootCmd.Flags().StringVar(&iface, "iface", "", "network interface to join the multicast group on")
	rootCmd.Flags().BoolVar(&verbose, "verbose", false, "enable debug logging")
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
