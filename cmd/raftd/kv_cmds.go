package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/vzdtic/raftcore/pkg/transport/grpcio"
)

var kvCmd = &cobra.Command{
	Use:   "kv",
	Short: "Read and write the reference key/value state machine",
}

var kvAddr string

var kvPutCmd = &cobra.Command{
	Use:   "put <key> <value>",
	Short: "Propose a SET command through the cluster leader",
	Args:  cobra.ExactArgs(2),
	RunE:  runKVPut,
}

var kvGetCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Read a key from one node's local state machine",
	Args:  cobra.ExactArgs(1),
	RunE:  runKVGet,
}

func init() {
	kvPutCmd.Flags().StringVar(&kvAddr, "addr", "127.0.0.1:7500", "admin address of the cluster leader")
	kvGetCmd.Flags().StringVar(&kvAddr, "addr", "127.0.0.1:7500", "admin address of the node to read from")
	kvCmd.AddCommand(kvPutCmd, kvGetCmd)
	rootCmd.AddCommand(kvCmd)
}

func runKVPut(cmd *cobra.Command, args []string) error {
	c, err := dialAdmin(kvAddr)
	if err != nil {
		return err
	}
	defer c.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_, err = c.Do(ctx, grpcio.AdminRequest{Op: grpcio.OpPropose, Key: args[0], Value: []byte(args[1])})
	if err != nil {
		return err
	}
	fmt.Println("ok")
	return nil
}

func runKVGet(cmd *cobra.Command, args []string) error {
	c, err := dialAdmin(kvAddr)
	if err != nil {
		return err
	}
	defer c.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	resp, err := c.Do(ctx, grpcio.AdminRequest{Op: grpcio.OpGet, Key: args[0]})
	if err != nil {
		return err
	}
	if !resp.Found {
		fmt.Println("(not found)")
		return nil
	}
	fmt.Println(string(resp.Value))
	return nil
}
