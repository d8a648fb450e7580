package sqlite_test

import (
	"context"
	"crypto/rand"
	"fmt"
	"math"
	"math/big"
	"testing"

	"github.com/sagarc03/storefront"
	"github.com/sagarc03/storefront/database/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func getRandomString(t *testing.T) string {
	t.Helper()
	n, err := rand.Int(rand.Reader, big.NewInt(math.MaxInt64))
	assert.NoError(t, err, "random string")
	return fmt.Sprintf("test%x", n.Int64())
}

func randomTables(t *testing.T) storefront.Tables {
	t.Helper()
	suffix := getRandomString(t)
	return storefront.Tables{
		Products:  "products_" + suffix,
		Customers: "customers_" + suffix,
		Orders:    "orders_" + suffix,
	}
}

// setupTestRepo creates repos over unique table names for test isolation
func setupTestRepo(t *testing.T) storefront.Repos {
	t.Helper()

	ctx := context.Background()

	db, err := sqlite.Connect(ctx, ":memory:", randomTables(t))
	require.NoError(t, err, "failed to connect")
	t.Cleanup(func() { _ = db.Close() })

	err = db.Migrate(ctx)
	require.NoError(t, err, "failed to migrate")

	return db.GetRepo()
}

func price(v float64) *float64 {
	return &v
}
