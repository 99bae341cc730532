package app

import (
	"context"
	"time"

	"cloud.google.com/go/firestore"
	gcs "cloud.google.com/go/storage"
	"github.com/Wilyos/sistemas-box/configs"
	"google.golang.org/api/option"
	"google.golang.org/grpc"
	"google.golang.org/grpc/backoff"
	"google.golang.org/grpc/keepalive"
)

func credentialOptions(cfg configs.Config) []option.ClientOption {
	if cfg.GCP.CredentialsFile == "" {
		return nil // application default credentials
	}
	return []option.ClientOption{option.WithCredentialsFile(cfg.GCP.CredentialsFile)}
}

// InitFirestore opens the catalog client. Firestore talks gRPC, so the
// connection gets the same reconnect backoff and keepalive as our other RPC links.
func InitFirestore(ctx context.Context, cfg configs.Config) (*firestore.Client, func(), error) {
	opts := append(credentialOptions(cfg),
		option.WithGRPCDialOption(grpc.WithConnectParams(grpc.ConnectParams{
			Backoff: backoff.Config{
				BaseDelay:  200 * time.Millisecond,
				Multiplier: 1.6,
				Jitter:     0.2,
				MaxDelay:   5 * time.Second,
			},
			MinConnectTimeout: 5 * time.Second,
		})),
		option.WithGRPCDialOption(grpc.WithKeepaliveParams(keepalive.ClientParameters{
			Time:                30 * time.Second,
			Timeout:             10 * time.Second,
			PermitWithoutStream: true,
		})),
	)

	client, err := firestore.NewClient(ctx, cfg.Firestore.ProjectID, opts...)
	if err != nil {
		return nil, nil, err
	}
	return client, func() { _ = client.Close() }, nil
}

func InitGCS(ctx context.Context, cfg configs.Config) (*gcs.Client, func(), error) {
	client, err := gcs.NewClient(ctx, credentialOptions(cfg)...)
	if err != nil {
		return nil, nil, err
	}
	return client, func() { _ = client.Close() }, nil
}
