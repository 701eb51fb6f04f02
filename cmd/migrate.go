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

/*
Package main provides the CLI commands for managing database migrations.
This includes commands for applying and rolling back migrations.
*/

package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/google/uuid"
	migrate "github.com/rubenv/sql-migrate"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/blnkfinance/surveylink"
	"github.com/blnkfinance/surveylink/config"
	"github.com/blnkfinance/surveylink/database"
	redlock "github.com/blnkfinance/surveylink/internal/lock"
	redis_db "github.com/blnkfinance/surveylink/internal/redis-db"
)

const (
	migrationSchema  = "surveylink"
	migrationLockKey = "surveylink:migrate"
	migrationLockTTL = 5 * time.Minute
	migrationWait    = 2 * time.Minute
)

// acquireMigrationLock serializes migrations across hosts sharing a Redis. Without
// Redis configured it returns a no-op release.
func acquireMigrationLock(ctx context.Context, cnf *config.Configuration) (func(), error) {
	if cnf.Redis.Dns == "" {
		return func() {}, nil
	}

	client, err := redis_db.NewRedisClient([]string{cnf.Redis.Dns})
	if err != nil {
		return nil, err
	}

	host, _ := os.Hostname()
	locker := redlock.NewLocker(client.Client(), migrationLockKey, fmt.Sprintf("%s-%s", host, uuid.NewString()))

	waitCtx, cancel := context.WithTimeout(ctx, migrationWait)
	defer cancel()
	if err := locker.Wait(waitCtx, migrationLockTTL, time.Second); err != nil {
		_ = client.Close()
		return nil, err
	}

	return func() {
		if err := locker.Release(context.Background()); err != nil {
			logrus.Warnf("releasing migration lock: %v", err)
		}
		_ = client.Close()
	}, nil
}

// migrateCommands creates the root command for migration-related operations.
func migrateCommands(s *surveylinkInstance) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "run surveylink database migrations",
	}

	cmd.AddCommand(migrateDirectionCommand(s, "up", migrate.Up))
	cmd.AddCommand(migrateDirectionCommand(s, "down", migrate.Down))

	return cmd
}

func migrationSource() migrate.EmbedFileSystemMigrationSource {
	return migrate.EmbedFileSystemMigrationSource{
		FileSystem: surveylink.SQLFiles,
		Root:       "sql",
	}
}

// migrateDirectionCommand applies (up) or rolls back (down) the embedded migrations.
func migrateDirectionCommand(s *surveylinkInstance, use string, direction migrate.MigrationDirection) *cobra.Command {
	cmd := &cobra.Command{
		Use: use,
		Run: func(cmd *cobra.Command, args []string) {
			release, err := acquireMigrationLock(cmd.Context(), s.cnf)
			if err != nil {
				log.Printf("Error acquiring migration lock: %v", err)
				return
			}
			defer release()

			db, err := database.ConnectDB(s.cnf.DataSource.Dns)
			if err != nil {
				log.Printf("Error connecting to database: %v", err)
				return
			}
			defer db.Close()

			migrate.SetSchema(migrationSchema)

			n, err := migrate.Exec(db, "postgres", migrationSource(), direction)
			if err != nil {
				log.Printf("Error migrating %s: %v", use, err)
				return
			}
			if direction == migrate.Up {
				fmt.Printf("Applied %d migrations!\n", n)
			} else {
				fmt.Printf("Rolled back %d migrations!\n", n)
			}
		},
	}

	return cmd
}
