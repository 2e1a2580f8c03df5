package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/vzdtic/raftcore/pkg/raft"
	"github.com/vzdtic/raftcore/pkg/transport/grpcio"
)

var (
	addServerID      uint64
	addServerAddress string
	removeServerID   uint64
	transferTarget   uint64
	transferTimeout  int64
)

var addServerCmd = &cobra.Command{
	Use:   "add-server",
	Short: "Add a server to the cluster as a voter",
	RunE:  runAddServer,
}

var removeServerCmd = &cobra.Command{
	Use:   "remove-server",
	Short: "Remove a server from the cluster",
	RunE:  runRemoveServer,
}

var transferCmd = &cobra.Command{
	Use:   "transfer",
	Short: "Transfer leadership to another voter",
	RunE:  runTransfer,
}

func init() {
	addServerCmd.Flags().StringVar(&statusAddr, "addr", "127.0.0.1:7500", "admin address of the current leader")
	addServerCmd.Flags().Uint64Var(&addServerID, "id", 0, "id of the server to add")
	addServerCmd.Flags().StringVar(&addServerAddress, "address", "", "dial address to register for the new server")
	addServerCmd.MarkFlagRequired("id")
	addServerCmd.MarkFlagRequired("address")

	removeServerCmd.Flags().StringVar(&statusAddr, "addr", "127.0.0.1:7500", "admin address of the current leader")
	removeServerCmd.Flags().Uint64Var(&removeServerID, "id", 0, "id of the server to remove")
	removeServerCmd.MarkFlagRequired("id")

	transferCmd.Flags().StringVar(&statusAddr, "addr", "127.0.0.1:7500", "admin address of the current leader")
	transferCmd.Flags().Uint64Var(&transferTarget, "target", 0, "voter to transfer leadership to")
	transferCmd.Flags().Int64Var(&transferTimeout, "timeout-ms", 1000, "abort the transfer if it hasn't completed within this many milliseconds")

	clusterCmd.AddCommand(addServerCmd, removeServerCmd, transferCmd)
}

func runAddServer(cmd *cobra.Command, args []string) error {
	c, err := dialAdmin(statusAddr)
	if err != nil {
		return err
	}
	defer c.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	_, err = c.Do(ctx, grpcio.AdminRequest{
		Op:       grpcio.OpAddServer,
		ServerID: addServerID,
		Address:  addServerAddress,
		Role:     raft.RoleVoter,
	})
	if err != nil {
		return err
	}
	fmt.Printf("server %d added as a voter\n", addServerID)
	return nil
}

func runRemoveServer(cmd *cobra.Command, args []string) error {
	c, err := dialAdmin(statusAddr)
	if err != nil {
		return err
	}
	defer c.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	_, err = c.Do(ctx, grpcio.AdminRequest{Op: grpcio.OpRemoveServer, ServerID: removeServerID})
	if err != nil {
		return err
	}
	fmt.Printf("server %d removed\n", removeServerID)
	return nil
}

func runTransfer(cmd *cobra.Command, args []string) error {
	c, err := dialAdmin(statusAddr)
	if err != nil {
		return err
	}
	defer c.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(transferTimeout+1000)*time.Millisecond)
	defer cancel()
	_, err = c.Do(ctx, grpcio.AdminRequest{Op: grpcio.OpTransferLeader, ServerID: transferTarget, TimeoutMS: transferTimeout})
	if err != nil {
		return err
	}
	fmt.Printf("leadership transfer to %d requested\n", transferTarget)
	return nil
}
