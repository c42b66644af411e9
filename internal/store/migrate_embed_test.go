// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Authgate Contributors

package store

import (
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrationsFS_EmbeddedFiles(t *testing.T) {
	entries, err := migrationsFS.ReadDir("migrations")
	require.NoError(t, err)

	pattern := regexp.MustCompile(`^\d{6}_\w+\.(up|down)\.sql$`)
	ups, downs := map[string]bool{}, map[string]bool{}
	for _, entry := range entries {
		name := entry.Name()
		require.True(t, pattern.MatchString(name), "unexpected migration file %s", name)
		if stem, ok := strings.CutSuffix(name, ".up.sql"); ok {
			ups[stem] = true
		} else {
			downs[strings.TrimSuffix(name, ".down.sql")] = true
		}
	}

	assert.Equal(t, ups, downs, "every up migration needs a matching down migration")
	assert.True(t, ups["000001_create_accounts"])
}

func TestMigrationsFS_AccountsSchema(t *testing.T) {
	sql, err := migrationsFS.ReadFile("migrations/000001_create_accounts.up.sql")
	require.NoError(t, err)

	schema := string(sql)
	assert.Contains(t, schema, "CREATE UNIQUE INDEX IF NOT EXISTS idx_accounts_email_lower ON accounts (LOWER(email))")
	assert.Contains(t, schema, "accounts_otp_pair")
	assert.Contains(t, schema, "accounts_reset_pair")
}
