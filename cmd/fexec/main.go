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
package main

import (
	"os"

	"github.com/pingcap/fexec/pkg/cmd/cli"
	"github.com/pingcap/fexec/pkg/cmd/executor"
	"github.com/pingcap/fexec/pkg/version"
	"github.com/spf13/cobra"
)

// NewCmd creates the root command.
func NewCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "fexec",
		Short: "Function executor",
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
	}
}

func newCmdVersion() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Output version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Println(version.GetRawInfo())
		},
	}
}

func main() {
	cmd := NewCmd()
	cmd.AddCommand(executor.NewCmdExecutor())
	cmd.AddCommand(cli.NewCmdCli())
	cmd.AddCommand(newCmdVersion())
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
