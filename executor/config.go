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
	"bytes"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/docker/go-units"
	"github.com/goccy/go-json"
	"github.com/pingcap/fexec/pkg/blob"
	"github.com/pingcap/fexec/pkg/errors"
	"github.com/pingcap/fexec/pkg/logutil"
	"github.com/pingcap/log"
	"go.uber.org/zap"
)

const (
	defaultExecutorAddr        = "127.0.0.1:10240"
	defaultAllocationQueueSize = 1024
	defaultChunkSize           = "4MiB"
	defaultInlineOutputLimit   = "64KiB"
	defaultBlobIOConcurrency   = 8
	defaultDedupCacheSize      = 4096
	defaultStateRequestTimeout = "30s"
	defaultMemoryLimitRatio    = 0.9
)

// S3Config holds the settings of the s3:// blob backend.
type S3Config struct {
	Region   string `toml:"region" json:"region"`
	Endpoint string `toml:"endpoint" json:"endpoint"`
}

// GCSConfig holds the settings of the gs:// blob backend.
type GCSConfig struct {
	Endpoint        string `toml:"endpoint" json:"endpoint"`
	CredentialsFile string `toml:"credentials-file" json:"credentials-file"`
	Anonymous       bool   `toml:"anonymous" json:"anonymous"`
}

// Config is the configuration of a function executor.
type Config struct {
	Name    string         `toml:"name" json:"name"`
	LogConf logutil.Config `toml:"log" json:"log"`

	Addr string `toml:"addr" json:"addr"`

	MaxSessions         int `toml:"max-sessions" json:"max-sessions"`
	AllocationQueueSize int `toml:"allocation-queue-size" json:"allocation-queue-size"`

	// sizes accept units, e.g. 4MiB
	ChunkSizeStr         string `toml:"chunk-size" json:"chunk-size"`
	InlineOutputLimitStr string `toml:"inline-output-limit" json:"inline-output-limit"`
	// OutputBlobURI is where outputs above the inline limit are written.
	// When empty they are uploaded to the caller over the session stream.
	OutputBlobURI     string `toml:"output-blob-uri" json:"output-blob-uri"`
	BlobIOConcurrency int    `toml:"blob-io-concurrency" json:"blob-io-concurrency"`
	DedupCacheSize    int    `toml:"dedup-cache-size" json:"dedup-cache-size"`

	StateRequestTimeoutStr string `toml:"state-request-timeout" json:"state-request-timeout"`

	TracingEndpoint string `toml:"tracing-endpoint" json:"tracing-endpoint"`
	// MemoryLimitRatio is the share of the cgroup (or host) memory the Go
	// runtime aims to stay under. 0 disables the soft limit.
	MemoryLimitRatio float64 `toml:"memory-limit-ratio" json:"memory-limit-ratio"`

	S3  S3Config  `toml:"s3" json:"s3"`
	GCS GCSConfig `toml:"gcs" json:"gcs"`

	ChunkSize           uint64        `toml:"-" json:"-"`
	InlineOutputLimit   uint64        `toml:"-" json:"-"`
	StateRequestTimeout time.Duration `toml:"-" json:"-"`
}

// GetDefaultExecutorConfig returns a default executor config.
func GetDefaultExecutorConfig() *Config {
	return &Config{
		Name: "",
		LogConf: logutil.Config{
			Level: "info",
			File:  "",
		},
		Addr:                   defaultExecutorAddr,
		AllocationQueueSize:    defaultAllocationQueueSize,
		ChunkSizeStr:           defaultChunkSize,
		InlineOutputLimitStr:   defaultInlineOutputLimit,
		BlobIOConcurrency:      defaultBlobIOConcurrency,
		DedupCacheSize:         defaultDedupCacheSize,
		StateRequestTimeoutStr: defaultStateRequestTimeout,
		MemoryLimitRatio:       defaultMemoryLimitRatio,
	}
}

func (c *Config) String() string {
	cfg, err := json.Marshal(c)
	if err != nil {
		log.L().Error("marshal to json", zap.Reflect("executor config", c), logutil.ShortError(err))
	}
	return string(cfg)
}

// Toml returns TOML format representation of config.
func (c *Config) Toml() (string, error) {
	var b bytes.Buffer
	if err := toml.NewEncoder(&b).Encode(c); err != nil {
		log.L().Error("fail to marshal config to toml", logutil.ShortError(err))
		return "", errors.Trace(err)
	}
	return b.String(), nil
}

// Adjust validates the config and fills the parsed fields.
func (c *Config) Adjust() (err error) {
	c.LogConf.Adjust()
	if c.Name == "" {
		c.Name = "executor-" + c.Addr
	}
	if c.Addr == "" {
		return errors.ErrConfigInvalid.GenWithStackByArgs("addr is empty")
	}
	if c.MaxSessions < 0 {
		return errors.ErrConfigInvalid.GenWithStackByArgs("max-sessions is negative")
	}
	if c.AllocationQueueSize <= 0 {
		return errors.ErrConfigInvalid.GenWithStackByArgs("allocation-queue-size must be positive")
	}
	if c.MemoryLimitRatio < 0 || c.MemoryLimitRatio > 1 {
		return errors.ErrConfigInvalid.GenWithStackByArgs("memory-limit-ratio must be within [0, 1]")
	}
	if c.BlobIOConcurrency <= 0 {
		return errors.ErrConfigInvalid.GenWithStackByArgs("blob-io-concurrency must be positive")
	}

	chunkSize, err := units.RAMInBytes(c.ChunkSizeStr)
	if err != nil {
		return errors.WrapError(errors.ErrConfigInvalid, err, "chunk-size")
	}
	if chunkSize <= 0 {
		return errors.ErrConfigInvalid.GenWithStackByArgs("chunk-size must be positive")
	}
	c.ChunkSize = uint64(chunkSize)

	inlineLimit, err := units.RAMInBytes(c.InlineOutputLimitStr)
	if err != nil {
		return errors.WrapError(errors.ErrConfigInvalid, err, "inline-output-limit")
	}
	if inlineLimit < 0 {
		return errors.ErrConfigInvalid.GenWithStackByArgs("inline-output-limit is negative")
	}
	c.InlineOutputLimit = uint64(inlineLimit)

	c.StateRequestTimeout, err = time.ParseDuration(c.StateRequestTimeoutStr)
	if err != nil {
		return errors.WrapError(errors.ErrConfigInvalid, err, "state-request-timeout")
	}
	if c.StateRequestTimeout <= 0 {
		return errors.ErrConfigInvalid.GenWithStackByArgs("state-request-timeout must be positive")
	}

	if c.OutputBlobURI != "" {
		if _, err := blob.Scheme(c.OutputBlobURI); err != nil {
			return errors.WrapError(errors.ErrConfigInvalid, err, "output-blob-uri")
		}
	}
	return nil
}

// ConfigFromFile loads config from file and merges items into Config.
// Unknown items are rejected.
func (c *Config) ConfigFromFile(path string) error {
	metaData, err := toml.DecodeFile(path, c)
	if err != nil {
		return errors.WrapError(errors.ErrConfigDecodeFile, err, path)
	}
	return checkUndecodedItems(metaData)
}

// ConfigFromString loads config from a TOML document.
func (c *Config) ConfigFromString(data string) error {
	metaData, err := toml.Decode(data, c)
	if err != nil {
		return errors.WrapError(errors.ErrConfigDecodeFile, err, "<string>")
	}
	return checkUndecodedItems(metaData)
}

func checkUndecodedItems(metaData toml.MetaData) error {
	undecoded := metaData.Undecoded()
	if len(undecoded) > 0 {
		var undecodedItems []string
		for _, item := range undecoded {
			undecodedItems = append(undecodedItems, item.String())
		}
		return errors.ErrConfigUnknownItem.GenWithStackByArgs(strings.Join(undecodedItems, ","))
	}
	return nil
}
