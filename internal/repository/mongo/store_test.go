package mongo

import (
	"context"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/vedran77/decsecmsg/internal/repository"
	"github.com/vedran77/decsecmsg/internal/repository/repotest"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// TestGatewayContract runs against TEST_MONGO_URI, using a throwaway
// database per subtest.
func TestGatewayContract(t *testing.T) {
	uri := os.Getenv("TEST_MONGO_URI")
	if uri == "" {
		t.Skip("TEST_MONGO_URI not set")
	}

	client, err := mongo.Connect(options.Client().ApplyURI(uri))
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(func() { _ = client.Disconnect(context.Background()) })

	repotest.Run(t, func(t *testing.T) *repository.Gateway {
		t.Helper()
		ctx := context.Background()
		db := client.Database("decsecmsg_test_" + uuid.NewString()[:8])
		t.Cleanup(func() { _ = db.Drop(ctx) })

		if err := EnsureIndexes(ctx, db); err != nil {
			t.Fatalf("ensure indexes: %v", err)
		}
		// Gateway.Close would disconnect the shared client; the subtest never calls it.
		return NewGateway(client, db)
	})
}
