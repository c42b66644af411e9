// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Authgate Contributors

//go:build integration

package store_test

import (
	"context"
	"time"

	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention

	"github.com/authgate/authgate/internal/store"
)

var _ = Describe("Schema", func() {
	var migrator *store.Migrator

	BeforeEach(func() {
		var err error
		migrator, err = store.NewMigrator(databaseURL)
		Expect(err).NotTo(HaveOccurred())
		Expect(migrator.Down()).To(Succeed())
	})

	AfterEach(func() {
		Expect(migrator.Close()).To(Succeed())
	})

	It("walks the full migration cycle", func() {
		Expect(migrator.Up()).To(Succeed())

		status, err := migrator.Status()
		Expect(err).NotTo(HaveOccurred())
		Expect(status.Dirty).To(BeFalse())
		Expect(status.Pending).To(BeEmpty())
		latest := status.Version

		Expect(migrator.Steps(-1)).To(Succeed())
		version, _, err := migrator.Version()
		Expect(err).NotTo(HaveOccurred())
		Expect(version).To(Equal(latest - 1))

		Expect(migrator.Up()).To(Succeed())
		Expect(migrator.Up()).To(Succeed(), "re-running up is a no-op")
	})

	It("enforces case-insensitive email uniqueness", func() {
		ctx := context.Background()
		Expect(migrator.Up()).To(Succeed())

		pool, err := store.Connect(ctx, databaseURL, store.PoolConfig{RetryBackoff: 100 * time.Millisecond})
		Expect(err).NotTo(HaveOccurred())
		defer pool.Close()

		insert := `INSERT INTO accounts (id, email, password_hash) VALUES ($1, $2, 'x')`
		_, err = pool.Exec(ctx, insert, "01J0000000000000000000000A", "a@x.com")
		Expect(err).NotTo(HaveOccurred())
		_, err = pool.Exec(ctx, insert, "01J0000000000000000000000B", "A@X.com")
		Expect(err).To(HaveOccurred())
	})

	It("rejects half-set challenges", func() {
		ctx := context.Background()
		Expect(migrator.Up()).To(Succeed())

		pool, err := store.Connect(ctx, databaseURL, store.PoolConfig{})
		Expect(err).NotTo(HaveOccurred())
		defer pool.Close()

		_, err = pool.Exec(ctx,
			`INSERT INTO accounts (id, email, password_hash, otp_hash) VALUES ($1, $2, 'x', 'hash')`,
			"01J0000000000000000000000C", "half@x.com")
		Expect(err).To(HaveOccurred())
	})
})
