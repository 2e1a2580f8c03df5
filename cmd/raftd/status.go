package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/vzdtic/raftcore/pkg/transport/grpcio"
)

var clusterCmd = &cobra.Command{
	Use:   "cluster",
	Short: "Inspect and reshape a running cluster's membership",
}

var statusAddr string

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Print the leader, term and member list as seen by one node",
	RunE:  runStatus,
}

func init() {
	statusCmd.Flags().StringVar(&statusAddr, "addr", "127.0.0.1:7500", "admin address of the node to query")
	clusterCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(clusterCmd)
}

func dialAdmin(addr string) (*grpcio.AdminClient, error) {
	return grpcio.DialAdmin(addr)
}

func runStatus(cmd *cobra.Command, args []string) error {
	c, err := dialAdmin(statusAddr)
	if err != nil {
		return err
	}
	defer c.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	resp, err := c.Do(ctx, grpcio.AdminRequest{Op: grpcio.OpStatus})
	if err != nil {
		return err
	}

	fmt.Printf("Leader:       %d\n", resp.Leader)
	fmt.Printf("Term:         %d\n", resp.Term)
	fmt.Printf("CommitIndex:  %d\n", resp.CommitIndex)
	fmt.Println("Members:")
	fmt.Printf("  %-6s %-22s %-8s %-7s %-6s\n", "ID", "ADDRESS", "ROLE", "VOTING", "LEADER")
	for _, m := range resp.Members {
		leaderMark := ""
		if m.Leader {
			leaderMark = "*"
		}
		fmt.Printf("  %-6d %-22s %-8s %-7v %-6s\n", m.ID, m.Address, m.Role, m.Voting, leaderMark)
	}
	return nil
}
