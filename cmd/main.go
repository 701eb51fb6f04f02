/*
Copyright 2024 Blnk Finance Authors.

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
	"log"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/blnkfinance/surveylink"
	"github.com/blnkfinance/surveylink/config"
	"github.com/blnkfinance/surveylink/database"
	"github.com/blnkfinance/surveylink/internal/cache"
	"github.com/blnkfinance/surveylink/internal/notification"
)

// Surveylink represents the CLI application, encapsulating the root Cobra command.
type Surveylink struct {
	cmd *cobra.Command
}

// surveylinkInstance holds the linker and the configuration it was built from.
// Commands read it after the persistent pre-run has populated it.
type surveylinkInstance struct {
	linker  *surveylink.Linker
	options []surveylink.Option
	ds      database.IDataSource
	cnf     *config.Configuration
}

// recoverPanic handles any panics during program execution and logs the error using Logrus.
func recoverPanic() {
	if rec := recover(); rec != nil {
		logrus.Error(rec)
		os.Exit(1)
	}
}

// preRun loads the configuration file named by --config and builds the linker before any command runs.
func preRun(app *surveylinkInstance, configFile *string) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		err := config.InitConfig(*configFile)
		if err != nil {
			log.Fatal("error loading config", err)
		}

		cnf, err := config.Fetch()
		if err != nil {
			return err
		}

		app.cnf = cnf
		if err := setupLinker(app); err != nil {
			notification.NotifyError(err)
			log.Fatal(err)
		}
		return nil
	}
}

// setupLinker builds the linker from app.cnf. Postgres and Redis are optional:
// without a data source DNS the linker runs in memory and keeps no run history.
func setupLinker(app *surveylinkInstance) error {
	cfg := app.cnf
	app.options = []surveylink.Option{surveylink.WithNotifier(notification.NotifyError)}

	if cfg.DataSource.Dns != "" {
		ds, err := database.NewDataSource(cfg)
		if err != nil {
			return fmt.Errorf("error getting datasource: %v", err)
		}
		app.ds = ds
		app.options = append(app.options, surveylink.WithDataSource(ds))
	}

	if cfg.Redis.Dns != "" {
		c, err := cache.NewCache(cfg)
		if err != nil {
			logrus.Warnf("run cache disabled: %v", err)
		} else {
			app.options = append(app.options, surveylink.WithCache(c))
		}
	}

	linker, err := surveylink.NewLinker(cfg.Linkage, app.options...)
	if err != nil {
		return fmt.Errorf("error creating linker: %v", err)
	}
	app.linker = linker
	return nil
}

// NewCLI creates the command-line interface with the link, server, migrate and config subcommands.
func NewCLI() *Surveylink {
	var configFile string
	s := &surveylinkInstance{}

	var rootCmd = &cobra.Command{
		Use:   "surveylink",
		Short: "Link customer survey responses to the transactions they describe",
		Run:   func(cmd *cobra.Command, args []string) {},
	}

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "./surveylink.json", "Configuration file for surveylink")
	rootCmd.PersistentPreRunE = preRun(s, &configFile)

	rootCmd.AddCommand(linkCommands(s))
	rootCmd.AddCommand(serverCommands(s))
	rootCmd.AddCommand(migrateCommands(s))
	rootCmd.AddCommand(configCommands())

	return &Surveylink{cmd: rootCmd}
}

// executeCLI runs the root command, handling any errors that occur during execution.
func (s Surveylink) executeCLI() {
	if err := s.cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func main() {
	defer recoverPanic()

	cli := NewCLI()
	cli.executeCLI()
}
