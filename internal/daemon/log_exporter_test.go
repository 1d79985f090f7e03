package daemon_test

import (
	"context"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"candil-egov/internal/daemon"
)

func TestLogExporter_ExportOnce(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("ships the backlog and marks it exported", func(mt *mtest.T) {
		core, logs := observer.New(zap.InfoLevel)

		mt.AddMockResponses(
			mtest.CreateCursorResponse(1, "candil.audit_logs", mtest.FirstBatch, bson.D{
				{Key: "_id", Value: primitive.NewObjectID()},
				{Key: "timestamp", Value: time.Now()},
				{Key: "entity", Value: "borrow"},
				{Key: "action", Value: "AUTO_RETURN"},
				{Key: "performed_by", Value: "system"},
				{Key: "exported", Value: false},
			}),
			mtest.CreateCursorResponse(0, "candil.audit_logs", mtest.NextBatch),
			mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 1}, bson.E{Key: "nModified", Value: 1}),
		)

		exporter := &daemon.LogExporter{Coll: mt.Coll, Log: zap.New(core)}
		n, err := exporter.ExportOnce(context.Background())
		if err != nil {
			t.Fatalf("ExportOnce returned error: %v", err)
		}
		if n != 1 {
			t.Errorf("exported count = %d, want 1", n)
		}

		exported := logs.FilterMessage("audit export").All()
		if len(exported) != 1 {
			t.Fatalf("exported %d entries to the log stream, want 1", len(exported))
		}
		if got := exported[0].ContextMap()["action"]; got != "AUTO_RETURN" {
			t.Errorf("exported action = %v, want AUTO_RETURN", got)
		}
	})

	mt.Run("empty backlog issues no writes", func(mt *mtest.T) {
		mt.AddMockResponses(
			mtest.CreateCursorResponse(0, "candil.audit_logs", mtest.FirstBatch),
		)

		exporter := &daemon.LogExporter{Coll: mt.Coll, Log: zap.NewNop()}
		n, err := exporter.ExportOnce(context.Background())
		if err != nil {
			t.Fatalf("ExportOnce returned error: %v", err)
		}
		if n != 0 {
			t.Errorf("exported count = %d, want 0", n)
		}
	})
}
