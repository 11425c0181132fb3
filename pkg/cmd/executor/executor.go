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

package executor

import (
	"context"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/gin-gonic/gin"
	"github.com/pingcap/log"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/pingcap/fexec/executor"
	"github.com/pingcap/fexec/pkg/cmd/util"
	"github.com/pingcap/fexec/pkg/errors"
	"github.com/pingcap/fexec/pkg/memutil"
	"github.com/pingcap/fexec/pkg/version"
)

// options holds the flags of the `executor` command. Flag values land in
// flagConfig and are copied over the file config only when set explicitly.
type options struct {
	configFile string
	flagConfig *executor.Config

	// config is the merged result, valid after complete.
	config *executor.Config
}

func newOptions() *options {
	return &options{flagConfig: executor.GetDefaultExecutorConfig()}
}

// overrides maps each config flag to the field it sets.
func (o *options) overrides() map[string]func(dst *executor.Config) {
	src := o.flagConfig
	return map[string]func(dst *executor.Config){
		"name":               func(dst *executor.Config) { dst.Name = src.Name },
		"addr":               func(dst *executor.Config) { dst.Addr = src.Addr },
		"max-sessions":       func(dst *executor.Config) { dst.MaxSessions = src.MaxSessions },
		"output-blob-uri":    func(dst *executor.Config) { dst.OutputBlobURI = src.OutputBlobURI },
		"tracing-endpoint":   func(dst *executor.Config) { dst.TracingEndpoint = src.TracingEndpoint },
		"memory-limit-ratio": func(dst *executor.Config) { dst.MemoryLimitRatio = src.MemoryLimitRatio },
		"log-file":           func(dst *executor.Config) { dst.LogConf.File = src.LogConf.File },
		"log-level":          func(dst *executor.Config) { dst.LogConf.Level = src.LogConf.Level },
	}
}

func (o *options) addFlags(cmd *cobra.Command) {
	c := o.flagConfig
	flags := cmd.Flags()
	flags.StringVar(&o.configFile, "config", "", "path of the TOML configuration file")
	flags.StringVar(&c.Name, "name", c.Name, "human readable name of this executor")
	flags.StringVar(&c.Addr, "addr", c.Addr, "address serving gRPC and HTTP")
	flags.IntVar(&c.MaxSessions, "max-sessions", c.MaxSessions, "max number of open sessions, 0 means unlimited")
	flags.StringVar(&c.OutputBlobURI, "output-blob-uri", c.OutputBlobURI,
		"where large outputs are written (file:///path, s3://bucket/prefix or gs://bucket/prefix)")
	flags.StringVar(&c.TracingEndpoint, "tracing-endpoint", c.TracingEndpoint, "OTLP gRPC endpoint for traces, empty disables tracing")
	flags.Float64Var(&c.MemoryLimitRatio, "memory-limit-ratio", c.MemoryLimitRatio, "share of the memory limit the Go runtime keeps under, 0 disables")
	flags.StringVar(&c.LogConf.File, "log-file", c.LogConf.File, "log file path, empty logs to stderr")
	flags.StringVar(&c.LogConf.Level, "log-level", c.LogConf.Level, "log level (debug|info|warn|error)")
}

// complete loads the config file, applies explicitly set flags on top of it
// and validates the result.
func (o *options) complete(cmd *cobra.Command) error {
	cfg := executor.GetDefaultExecutorConfig()
	if o.configFile != "" {
		if err := cfg.ConfigFromFile(o.configFile); err != nil {
			return err
		}
	}

	overrides := o.overrides()
	cmd.Flags().Visit(func(flag *pflag.Flag) {
		if apply, ok := overrides[flag.Name]; ok {
			apply(cfg)
		}
	})

	if err := cfg.Adjust(); err != nil {
		return errors.Trace(err)
	}
	o.config = cfg
	return nil
}

func (o *options) run() error {
	if err := util.InitLogger(&o.config.LogConf); err != nil {
		return err
	}
	version.LogVersionInfo()
	if os.Getenv(gin.EnvGinMode) == "" {
		gin.SetMode(gin.ReleaseMode)
	}
	log.Info("starting function executor", zap.Stringer("config", o.config))
	if goLimit, err := memutil.SetGoMemLimit(o.config.MemoryLimitRatio); err != nil {
		log.Warn("set go memory limit failed", zap.Error(err))
	} else if goLimit > 0 {
		log.Info("go memory limit set", zap.String("limit", humanize.IBytes(uint64(goLimit))))
	}

	server := executor.NewServer(o.config, nil)
	ctx, cancel := util.NotifyShutdown(context.Background(), server.Stop)
	defer cancel()

	start := time.Now()
	err := server.Run(ctx)
	server.Stop()
	if err != nil && errors.Cause(err) != context.Canceled && !errors.Is(err, errors.ErrTCPServerClosed) {
		log.Error("function executor exited with error", zap.Error(err))
		return errors.Trace(err)
	}
	log.Info("function executor exited", zap.Duration("uptime", time.Since(start)))
	return nil
}

// NewCmdExecutor creates the `executor` command.
func NewCmdExecutor() *cobra.Command {
	o := newOptions()
	command := &cobra.Command{
		Use:          "executor",
		Short:        "Start a function executor",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := o.complete(cmd); err != nil {
				return err
			}
			return o.run()
		},
	}
	o.addFlags(command)
	return command
}
