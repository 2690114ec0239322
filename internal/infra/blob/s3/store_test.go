package s3

import (
	"bytes"
	"context"
	"io"
	"testing"

	"growcore/internal/blob/core"
)

func TestMockStoreRoundTrip(t *testing.T) {
	store := NewMockForTests()
	ctx := context.Background()
	payload := []byte(`{"growspaces":{}}`)

	info, err := store.Put(ctx, "snapshots/a.json", bytes.NewReader(payload), core.PutOptions{ContentType: "application/json"})
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	if info.Key != "snapshots/a.json" || info.Size != int64(len(payload)) {
		t.Fatalf("unexpected info %+v", info)
	}
	if _, err := store.Put(ctx, "snapshots/a.json", bytes.NewReader(payload), core.PutOptions{}); err == nil {
		t.Fatalf("expected create-only put")
	}

	got, rc, err := store.Get(ctx, "snapshots/a.json")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	back, _ := io.ReadAll(rc)
	_ = rc.Close()
	if !bytes.Equal(back, payload) {
		t.Fatalf("payload mismatch: %q", back)
	}
	if got.ContentType != "application/json" {
		t.Fatalf("content type lost: %+v", got)
	}
}

func TestMockStoreListAndDelete(t *testing.T) {
	store := NewMockForTests()
	ctx := context.Background()
	for _, key := range []string{"snapshots/a.json", "snapshots/b.json", "exports/c.csv"} {
		if _, err := store.Put(ctx, key, bytes.NewReader([]byte(key)), core.PutOptions{}); err != nil {
			t.Fatalf("put %s: %v", key, err)
		}
	}
	infos, err := store.List(ctx, "snapshots/")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(infos) != 2 || infos[0].Key != "snapshots/a.json" || infos[1].Key != "snapshots/b.json" {
		t.Fatalf("unexpected listing %+v", infos)
	}

	if ok, err := store.Delete(ctx, "snapshots/a.json"); err != nil || !ok {
		t.Fatalf("delete: ok=%v err=%v", ok, err)
	}
	if _, err := store.Head(ctx, "snapshots/a.json"); err == nil {
		t.Fatalf("expected head to fail after delete")
	}
}

func TestMockStorePresign(t *testing.T) {
	store := NewMockForTests()
	ctx := context.Background()
	url, err := store.PresignURL(ctx, "snapshots/a.json", core.SignedURLOptions{})
	if err != nil || url == "" {
		t.Fatalf("presign: %q %v", url, err)
	}
	if _, err := store.PresignURL(ctx, "snapshots/a.json", core.SignedURLOptions{Method: "DELETE"}); err == nil {
		t.Fatalf("expected unsupported method error")
	}
}

func TestOpenFromEnvRequiresBucket(t *testing.T) {
	t.Setenv("GROWCORE_BLOB_S3_BUCKET", "")
	if _, err := OpenFromEnv(context.Background()); err == nil {
		t.Fatalf("expected error without bucket")
	}
	t.Setenv("GROWCORE_BLOB_S3_BUCKET", "growcore-test")
	t.Setenv("GROWCORE_BLOB_S3_REGION", "eu-central-1")
	t.Setenv("GROWCORE_BLOB_S3_ENDPOINT", "http://minio.local:9000")
	t.Setenv("GROWCORE_BLOB_S3_PATH_STYLE", "true")
	store, err := OpenFromEnv(context.Background())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if store.Driver() != core.DriverS3 {
		t.Fatalf("unexpected driver %s", store.Driver())
	}
}
