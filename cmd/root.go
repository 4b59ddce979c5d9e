// Copyright 2024 Google Inc. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package cmd wires cfg.Config, built from flags/config-file/defaults, into
// the fuse dispatcher and calls jacobsa/fuse.Mount.
package cmd

import (
	"fmt"
	"os"

	"github.com/distfs/mfsclient/cfg"
	"github.com/distfs/mfsclient/internal/util"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile       string
	bindErr       error
	configFileErr error
	unmarshalErr  error
	MountConfig   cfg.Config
)

var rootCmd = &cobra.Command{
	Use:   "mfsclient [flags] mount_point",
	Short: "Mount a distributed filesystem locally",
	Long: `mfsclient is a FUSE client for a MooseFS-style distributed filesystem:
it caches chunk locations, file handles, inode lengths and supplementary
groups locally and talks to a cluster master/chunkserver backend for
everything else.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if bindErr != nil {
			return bindErr
		}
		if configFileErr != nil {
			return configFileErr
		}
		if unmarshalErr != nil {
			return unmarshalErr
		}

		if err := cfg.Rationalize(&MountConfig); err != nil {
			return fmt.Errorf("rationalizing config: %w", err)
		}
		if err := cfg.ValidateConfig(&MountConfig); err != nil {
			return err
		}

		mountPoint, err := util.GetResolvedPath(args[0])
		if err != nil {
			return fmt.Errorf("canonicalizing mount point: %w", err)
		}

		return mountClient(&MountConfig, mountPoint)
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config-file", "", "Path to the config file")
	bindErr = cfg.BindFlags(rootCmd.PersistentFlags())
}

func initConfig() {
	if cfgFile == "" {
		unmarshalErr = viper.Unmarshal(&MountConfig, viper.DecodeHook(cfg.DecodeHook()), yamlTagName)
		return
	}

	resolved, err := util.GetResolvedPath(cfgFile)
	if err != nil {
		configFileErr = fmt.Errorf("error while resolving config file path: %w", err)
		return
	}
	viper.SetConfigFile(resolved)
	viper.SetConfigType("yaml")

	if err := viper.ReadInConfig(); err != nil {
		configFileErr = fmt.Errorf("error while reading config file: %w", err)
		return
	}
	unmarshalErr = viper.Unmarshal(&MountConfig, viper.DecodeHook(cfg.DecodeHook()), yamlTagName)
}

// yamlTagName decodes viper's settings through cfg.Config's yaml tags, which
// carry the kebab-case keys BindFlags binds.
func yamlTagName(dc *mapstructure.DecoderConfig) { dc.TagName = "yaml" }
