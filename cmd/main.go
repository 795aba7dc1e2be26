/*
Copyright 2025 Listmirror Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package main

import (
	"fmt"
	"os"

	"github.com/listmirror/listmirror"
	"github.com/listmirror/listmirror/config"
	"github.com/listmirror/listmirror/database"
	"github.com/listmirror/listmirror/internal/notification"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// CLI is the root Cobra command for the listmirror binary.
type CLI struct {
	cmd *cobra.Command
}

// appInstance holds the Listmirror instance and its configuration for
// use by the subcommands.
type appInstance struct {
	mirror *listmirror.Listmirror
	cnf    *config.Configuration
}

func recoverPanic() {
	if rec := recover(); rec != nil {
		logrus.Error(rec)
		os.Exit(1)
	}
}

// preRun loads the configuration and initializes the Listmirror
// instance before any subcommand runs.
func preRun(app *appInstance, configFile *string) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		err := config.InitConfig(*configFile)
		if err != nil {
			logrus.Fatal("error loading config ", err)
		}

		cnf, err := config.Fetch()
		if err != nil {
			return err
		}

		mirror, err := setupListmirror(cnf)
		if err != nil {
			notification.NotifyError(err)
			logrus.Fatal(err)
		}

		app.mirror = mirror
		app.cnf = cnf

		return nil
	}
}

func setupListmirror(cfg *config.Configuration) (*listmirror.Listmirror, error) {
	db, err := database.NewDataSource(cfg)
	if err != nil {
		return nil, fmt.Errorf("error getting datasource: %v", err)
	}

	mirror, err := listmirror.NewListmirror(db)
	if err != nil {
		return nil, fmt.Errorf("error creating listmirror: %v", err)
	}
	return mirror, nil
}

// NewCLI assembles the root command and its subcommands.
func NewCLI() *CLI {
	var configFile string
	app := &appInstance{}

	var rootCmd = &cobra.Command{
		Use:   "listmirror",
		Short: "Change-data-capture mirror for remote lists",
		Run:   func(cmd *cobra.Command, args []string) {},
	}

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "./listmirror.json", "Configuration file for listmirror")
	rootCmd.PersistentPreRunE = preRun(app, &configFile)

	rootCmd.AddCommand(serverCommands(app))
	rootCmd.AddCommand(workerCommands(app))
	rootCmd.AddCommand(migrateCommands(app))

	return &CLI{cmd: rootCmd}
}

func (w CLI) executeCLI() {
	if err := w.cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func main() {
	defer recoverPanic()

	cli := NewCLI()
	cli.executeCLI()
}
