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
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blnkfinance/surveylink/config"
)

func TestAcquireMigrationLockWithoutRedis(t *testing.T) {
	release, err := acquireMigrationLock(context.Background(), &config.Configuration{})
	require.NoError(t, err)
	release()
}

func TestAcquireMigrationLock(t *testing.T) {
	mr := miniredis.RunT(t)
	cnf := &config.Configuration{}
	cnf.Redis.Dns = mr.Addr()

	release, err := acquireMigrationLock(context.Background(), cnf)
	require.NoError(t, err)
	assert.True(t, mr.Exists(migrationLockKey))

	release()
	assert.False(t, mr.Exists(migrationLockKey))
}

func TestMigrationSourceFindsEmbeddedFiles(t *testing.T) {
	migrations, err := migrationSource().FindMigrations()
	require.NoError(t, err)
	assert.NotEmpty(t, migrations)
}
