// Package backup writes point-in-time lead snapshots to S3 and reads the most
// recent one back for disaster recovery.
package backup

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/wolfman30/leadtriage/internal/leads"
	"github.com/wolfman30/leadtriage/pkg/logging"
)

// LatestKey always holds the newest snapshot.
const LatestKey = "leads/latest.json"

// ErrNoSnapshot is returned by Latest when nothing has been backed up yet.
var ErrNoSnapshot = errors.New("backup: no snapshot found")

// S3API is the subset of the S3 client used by S3Backup.
type S3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// Snapshot is the JSON document stored per backup.
type Snapshot struct {
	TakenAt time.Time    `json:"taken_at"`
	Count   int          `json:"count"`
	Leads   []leads.Lead `json:"leads"`
}

// S3Backup snapshots leads into a bucket. With no bucket every call is a no-op.
type S3Backup struct {
	bucket string
	client S3API
	logger *logging.Logger
	now    func() time.Time
}

func NewS3Backup(client S3API, bucket string, logger *logging.Logger) *S3Backup {
	if logger == nil {
		logger = logging.Default()
	}
	return &S3Backup{
		bucket: bucket,
		client: client,
		logger: logger.Component("backup"),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Enabled returns true if a bucket and client are configured.
func (b *S3Backup) Enabled() bool {
	return b != nil && b.bucket != "" && b.client != nil
}

// Snapshot writes records to a dated key and to LatestKey. It returns the dated key.
func (b *S3Backup) Snapshot(ctx context.Context, records []leads.Lead) (string, error) {
	if !b.Enabled() {
		return "", nil
	}
	now := b.now()
	if records == nil {
		records = []leads.Lead{}
	}
	data, err := json.Marshal(Snapshot{TakenAt: now, Count: len(records), Leads: records})
	if err != nil {
		return "", fmt.Errorf("backup: marshal snapshot: %w", err)
	}

	key := fmt.Sprintf("leads/snapshots/%d/%02d/%02d/%s.json",
		now.Year(), now.Month(), now.Day(), now.Format("20060102T150405Z"))
	for _, k := range []string{key, LatestKey} {
		if err := b.put(ctx, k, data); err != nil {
			return "", err
		}
	}
	b.logger.Info("lead snapshot written", "s3_key", key, "leads", len(records))
	return key, nil
}

// Latest reads the newest snapshot.
func (b *S3Backup) Latest(ctx context.Context) (Snapshot, error) {
	if !b.Enabled() {
		return Snapshot{}, ErrNoSnapshot
	}
	out, err := b.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(LatestKey),
	})
	if err != nil {
		var noKey *s3types.NoSuchKey
		if errors.As(err, &noKey) {
			return Snapshot{}, ErrNoSnapshot
		}
		return Snapshot{}, fmt.Errorf("backup: s3 get %s: %w", LatestKey, err)
	}
	defer out.Body.Close()

	raw, err := io.ReadAll(out.Body)
	if err != nil {
		return Snapshot{}, fmt.Errorf("backup: read snapshot: %w", err)
	}
	var snap Snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return Snapshot{}, fmt.Errorf("backup: decode snapshot: %w", err)
	}
	return snap, nil
}

func (b *S3Backup) put(ctx context.Context, key string, data []byte) error {
	_, err := b.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(b.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("backup: s3 put %s: %w", key, err)
	}
	return nil
}
