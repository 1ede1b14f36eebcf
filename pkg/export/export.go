// Package export uploads recorded hook event logs to S3-compatible object
// storage as JSON lines.
package export

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"

	"github.com/vango-dev/hooks/internal/errors"
	"github.com/vango-dev/hooks/pkg/hooks"
)

// ContentType is the content type of uploaded event logs.
const ContentType = "application/x-ndjson"

// Client is the subset of *s3.Client used by the Exporter.
type Client interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	s3.ListObjectsV2APIClient
}

// ClientConfig configures NewClient.
type ClientConfig struct {
	Region string

	// Endpoint overrides the S3 endpoint and switches to path-style
	// addressing, for S3-compatible stores.
	Endpoint string
}

// NewClient builds an S3 client. Credentials come from AWS_ACCESS_KEY_ID,
// AWS_SECRET_ACCESS_KEY and AWS_SESSION_TOKEN; requests are anonymous when
// they are unset.
func NewClient(cfg ClientConfig) *s3.Client {
	opts := s3.Options{
		Region:      cfg.Region,
		Credentials: envCredentials(),
	}
	if opts.Region == "" {
		opts.Region = "us-east-1"
	}
	if cfg.Endpoint != "" {
		opts.BaseEndpoint = aws.String(cfg.Endpoint)
		opts.UsePathStyle = true
	}
	return s3.New(opts)
}

func envCredentials() aws.CredentialsProvider {
	if os.Getenv("AWS_ACCESS_KEY_ID") == "" {
		return aws.AnonymousCredentials{}
	}
	return aws.CredentialsProviderFunc(func(context.Context) (aws.Credentials, error) {
		return aws.Credentials{
			AccessKeyID:     os.Getenv("AWS_ACCESS_KEY_ID"),
			SecretAccessKey: os.Getenv("AWS_SECRET_ACCESS_KEY"),
			SessionToken:    os.Getenv("AWS_SESSION_TOKEN"),
			Source:          "environment",
		}, nil
	})
}

// Exporter uploads event logs under a key prefix of one bucket.
type Exporter struct {
	client Client
	bucket string
	prefix string
	logger *slog.Logger
}

// New creates an Exporter.
func New(client Client, bucket, prefix string, logger *slog.Logger) *Exporter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Exporter{
		client: client,
		bucket: bucket,
		prefix: strings.Trim(prefix, "/"),
		logger: logger,
	}
}

// Key returns a fresh object key for a log of run.
//
// Keys are <prefix>/<run>/<date>/<uuid>.jsonl. UUIDv7 keeps keys of one run
// in upload order.
func (e *Exporter) Key(run string, now time.Time) string {
	return path.Join(e.prefix, sanitize(run), now.UTC().Format("2006-01-02"),
		uuid.Must(uuid.NewV7()).String()+".jsonl")
}

// Upload writes events as JSON lines to a new object and returns its key.
func (e *Exporter) Upload(ctx context.Context, run string, events []hooks.Event) (string, error) {
	var buf bytes.Buffer
	if err := WriteJSONLines(&buf, events); err != nil {
		return "", errors.New("H180").Wrap(err)
	}

	key := e.Key(run, time.Now())
	_, err := e.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(e.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(buf.Bytes()),
		ContentType: aws.String(ContentType),
		Metadata: map[string]string{
			"run":         run,
			"event-count": strconv.Itoa(len(events)),
			"upload-time": time.Now().UTC().Format(time.RFC3339),
		},
	})
	if err != nil {
		return "", errors.New("H180").
			WithDetail("s3://" + e.bucket + "/" + key).
			Wrap(err)
	}

	e.logger.Info("event log exported", "bucket", e.bucket, "key", key, "events", len(events))
	return key, nil
}

// List returns the keys of every log uploaded for run.
func (e *Exporter) List(ctx context.Context, run string) ([]string, error) {
	prefix := path.Join(e.prefix, sanitize(run)) + "/"
	paginator := s3.NewListObjectsV2Paginator(e.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(e.bucket),
		Prefix: aws.String(prefix),
	})

	var keys []string
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, errors.New("H180").WithDetail("listing " + prefix).Wrap(err)
		}
		for _, obj := range page.Contents {
			if obj.Key != nil {
				keys = append(keys, *obj.Key)
			}
		}
	}
	return keys, nil
}

// WriteJSONLines writes one JSON object per event.
func WriteJSONLines(w io.Writer, events []hooks.Event) error {
	enc := json.NewEncoder(w)
	for _, ev := range events {
		if err := enc.Encode(ev); err != nil {
			return err
		}
	}
	return nil
}

// sanitize keeps run names usable as a single key segment.
func sanitize(run string) string {
	run = strings.TrimSpace(run)
	if run == "" {
		return "unnamed"
	}
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_', r == '.':
			return r
		default:
			return '-'
		}
	}, run)
}
