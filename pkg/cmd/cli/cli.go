// Copyright 2026 PingCAP, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// See the License for the specific language governing permissions and
// limitations under the License.
package cli

import (
	"context"
	"time"

	"github.com/pingcap/fexec/client"
	"github.com/pingcap/fexec/pkg/cmd/util"
	"github.com/pingcap/fexec/pkg/logutil"
	"github.com/spf13/cobra"
)

// clientFactory creates the executor client used by the subcommands.
type clientFactory func() (client.ExecutorClient, error)

// options defines flags for the `cli` command.
type options struct {
	addr        string
	timeout     time.Duration
	cliLogLevel string
}

// addFlags receives a *cobra.Command reference and binds
// flags related to template printing to it.
func (o *options) addFlags(c *cobra.Command) {
	c.PersistentFlags().StringVar(&o.addr, "addr", "127.0.0.1:10240", "address of the function executor")
	c.PersistentFlags().DurationVar(&o.timeout, "timeout", 10*time.Second, "timeout of each request")
	c.PersistentFlags().StringVar(&o.cliLogLevel, "log-level", "warn", "log level (etc: debug|info|warn|error)")
}

func (o *options) context() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), o.timeout)
}

// NewCmdCli creates the `cli` command.
func NewCmdCli() *cobra.Command {
	o := &options{}
	newClient := func() (client.ExecutorClient, error) {
		return client.NewExecutorClient(o.addr)
	}
	return newCmdCli(o, newClient)
}

func newCmdCli(o *options, newClient clientFactory) *cobra.Command {
	cmds := &cobra.Command{
		Use:   "cli",
		Short: "Inspect a function executor",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return util.InitLogger(&logutil.Config{Level: o.cliLogLevel})
		},
	}
	o.addFlags(cmds)

	cmds.AddCommand(newCmdInfo(o, newClient))
	cmds.AddCommand(newCmdHealth(o, newClient))
	cmds.AddCommand(newCmdAllocation(o, newClient))
	return cmds
}

func newCmdInfo(o *options, newClient clientFactory) *cobra.Command {
	return &cobra.Command{
		Use:   "info",
		Short: "Show versions of the executor",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(o, newClient, func(ctx context.Context, c client.ExecutorClient) error {
				info, err := c.GetInfo(ctx)
				if err != nil {
					return err
				}
				return util.PrintJSON(cmd.OutOrStdout(), info)
			})
		},
	}
}

func newCmdHealth(o *options, newClient clientFactory) *cobra.Command {
	var tries int64
	command := &cobra.Command{
		Use:   "health",
		Short: "Check health of the executor",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(o, newClient, func(ctx context.Context, c client.ExecutorClient) error {
				if tries > 1 {
					if err := c.WaitHealthy(ctx, tries); err != nil {
						return err
					}
				}
				resp, err := c.CheckHealth(ctx)
				if err != nil {
					return err
				}
				return util.PrintJSON(cmd.OutOrStdout(), resp)
			})
		},
	}
	command.Flags().Int64Var(&tries, "wait", 1, "poll until healthy at most this many times")
	return command
}

func newCmdAllocation(o *options, newClient clientFactory) *cobra.Command {
	command := &cobra.Command{
		Use:   "allocation",
		Short: "Manage allocations of the executor",
	}
	command.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List allocations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(o, newClient, func(ctx context.Context, c client.ExecutorClient) error {
				allocs, err := c.ListAllocations(ctx)
				if err != nil {
					return err
				}
				return util.PrintJSON(cmd.OutOrStdout(), allocs)
			})
		},
	})
	command.AddCommand(&cobra.Command{
		Use:   "delete <allocation-id>",
		Short: "Delete a terminal allocation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(o, newClient, func(ctx context.Context, c client.ExecutorClient) error {
				if err := c.DeleteAllocation(ctx, args[0]); err != nil {
					return err
				}
				cmd.Printf("allocation %s is deleted\n", args[0])
				return nil
			})
		},
	})
	return command
}

func withClient(o *options, newClient clientFactory, fn func(context.Context, client.ExecutorClient) error) error {
	c, err := newClient()
	if err != nil {
		return err
	}
	defer c.Close()
	ctx, cancel := o.context()
	defer cancel()
	return fn(ctx, c)
}
