// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the fsconvert CLI.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/pdiddy/fsconvert/internal/config"
	"github.com/pdiddy/fsconvert/internal/logging"
	"github.com/pdiddy/fsconvert/pkg/types"
)

// version is set at build time via ldflags.
var version = "dev"

var (
	// appCfg is loaded once in PersistentPreRunE.
	appCfg types.Config
	logger = zap.NewNop()

	closeLog = func() {}
)

// rootCmd is the base command for the fsconvert CLI.
var rootCmd = &cobra.Command{
	Use:   "fsconvert",
	Short: "Convert the filesystem of a removable drive without losing its data",
	Long: `fsconvert converts a removable USB volume between NTFS, FAT32, exFAT and
FAT. It takes the cheapest safe path: nothing when the formats are
equivalent, an in-place convert for FAT to NTFS, and otherwise a backup to
the system drive, a reformat and a restore.

Conversions need administrator rights and the host's format, convert and
robocopy tools.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(viper.GetViper())
		if err != nil {
			return err
		}
		appCfg = cfg

		log, closer, err := logging.New(cfg.Logging, os.Stderr)
		if err != nil {
			return err
		}
		logger, closeLog = log, closer
		if used := viper.ConfigFileUsed(); used != "" {
			logger.Debug("using config file", zap.String("path", used))
		}
		return nil
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().String("config", "", "config file (default: ./fsconvert.yaml or ~/.config/fsconvert/fsconvert.yaml)")
	rootCmd.PersistentFlags().String("log-level", "", "log level: debug, info, warn, error")
	rootCmd.PersistentFlags().String("log-dir", "", "directory for timestamped debug log files")

	_ = viper.BindPFlag("logging.level", rootCmd.PersistentFlags().Lookup("log-level"))
	_ = viper.BindPFlag("logging.dir", rootCmd.PersistentFlags().Lookup("log-dir"))
}

func initConfig() {
	cfgFile, _ := rootCmd.PersistentFlags().GetString("config")
	config.Setup(viper.GetViper(), cfgFile)

	if err := config.Read(viper.GetViper()); err != nil {
		fmt.Fprintln(os.Stderr, err)
	}
}

func main() {
	err := rootCmd.Execute()
	closeLog()
	if err != nil {
		os.Exit(1)
	}
}
