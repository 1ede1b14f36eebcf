package export

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	stderrors "errors"
	"io"
	"sort"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/vango-dev/hooks/internal/errors"
	"github.com/vango-dev/hooks/pkg/hooks"
)

// fakeClient is an in-memory bucket.
type fakeClient struct {
	objects  map[string][]byte
	meta     map[string]map[string]string
	putErr   error
	pageSize int
}

func newFakeClient() *fakeClient {
	return &fakeClient{
		objects:  make(map[string][]byte),
		meta:     make(map[string]map[string]string),
		pageSize: 2,
	}
}

func (f *fakeClient) PutObject(ctx context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.putErr != nil {
		return nil, f.putErr
	}
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	key := aws.ToString(in.Key)
	f.objects[key] = data
	f.meta[key] = in.Metadata
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeClient) ListObjectsV2(ctx context.Context, in *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	var keys []string
	for k := range f.objects {
		if strings.HasPrefix(k, aws.ToString(in.Prefix)) && k > aws.ToString(in.ContinuationToken) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	out := &s3.ListObjectsV2Output{}
	if len(keys) > f.pageSize {
		keys = keys[:f.pageSize]
		out.IsTruncated = aws.Bool(true)
		out.NextContinuationToken = aws.String(keys[len(keys)-1])
	}
	for _, k := range keys {
		out.Contents = append(out.Contents, types.Object{Key: aws.String(k)})
	}
	return out, nil
}

func sampleEvents(t *testing.T) []hooks.Event {
	t.Helper()
	rec := hooks.NewRecorder()
	h := hooks.NewHost(hooks.WithHostObserver(rec))
	h.Mount("counter", func(inst *hooks.Instance) {
		n, _ := hooks.UseState(inst, 0)
		hooks.UseEffect(inst, func() hooks.Cleanup { return nil }, hooks.DepsOf(n))
	})
	if err := h.RunUntilIdle(context.Background()); err != nil {
		t.Fatal(err)
	}
	_ = h.Close()
	return rec.Events()
}

func TestExporter_Upload(t *testing.T) {
	client := newFakeClient()
	exp := New(client, "logs", "/hooks/events/", nil)
	events := sampleEvents(t)

	key, err := exp.Upload(context.Background(), "counter run", events)
	if err != nil {
		t.Fatalf("Upload error: %v", err)
	}

	if !strings.HasPrefix(key, "hooks/events/counter-run/") || !strings.HasSuffix(key, ".jsonl") {
		t.Errorf("key = %q", key)
	}
	if got := client.meta[key]["event-count"]; got != strconv.Itoa(len(events)) {
		t.Errorf("event-count = %q, want %d", got, len(events))
	}

	scanner := bufio.NewScanner(bytes.NewReader(client.objects[key]))
	lines := 0
	for scanner.Scan() {
		var e hooks.Event
		if err := json.Unmarshal(scanner.Bytes(), &e); err != nil {
			t.Fatalf("line %d: %v", lines, err)
		}
		if e.Kind != events[lines].Kind {
			t.Errorf("line %d kind = %s, want %s", lines, e.Kind, events[lines].Kind)
		}
		lines++
	}
	if lines != len(events) {
		t.Errorf("lines = %d, want %d", lines, len(events))
	}
}

func TestExporter_UploadFailure(t *testing.T) {
	client := newFakeClient()
	client.putErr = stderrors.New("access denied")
	exp := New(client, "logs", "p", nil)

	_, err := exp.Upload(context.Background(), "r", nil)
	var herr *errors.HookError
	if !stderrors.As(err, &herr) || herr.Code != "H180" {
		t.Fatalf("Upload() = %v, want H180", err)
	}
	if !strings.Contains(err.Error(), "access denied") {
		t.Errorf("error should carry the cause: %v", err)
	}
}

func TestExporter_List(t *testing.T) {
	client := newFakeClient()
	exp := New(client, "logs", "p", nil)
	ctx := context.Background()

	var want []string
	for i := 0; i < 5; i++ {
		key, err := exp.Upload(ctx, "run", nil)
		if err != nil {
			t.Fatal(err)
		}
		want = append(want, key)
	}
	if _, err := exp.Upload(ctx, "other", nil); err != nil {
		t.Fatal(err)
	}

	got, err := exp.List(ctx, "run")
	if err != nil {
		t.Fatalf("List error: %v", err)
	}
	sort.Strings(want)
	if len(got) != len(want) {
		t.Fatalf("List() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("List()[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestExporter_Key(t *testing.T) {
	exp := New(newFakeClient(), "b", "root", nil)
	now := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)

	a := exp.Key("demo", now)
	b := exp.Key("demo", now)
	if a == b {
		t.Error("keys must be unique")
	}
	if !strings.HasPrefix(a, "root/demo/2026-03-14/") {
		t.Errorf("key = %q", a)
	}
}

func TestSanitize(t *testing.T) {
	tests := map[string]string{
		"":            "unnamed",
		"counter":     "counter",
		"a b/c":       "a-b-c",
		" v1.2_rc-3 ": "v1.2_rc-3",
	}
	for in, want := range tests {
		if got := sanitize(in); got != want {
			t.Errorf("sanitize(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestNewClient(t *testing.T) {
	t.Setenv("AWS_ACCESS_KEY_ID", "AKIDEXAMPLE")
	t.Setenv("AWS_SECRET_ACCESS_KEY", "secret")

	client := NewClient(ClientConfig{Region: "eu-west-1", Endpoint: "http://localhost:9000"})
	opts := client.Options()
	if opts.Region != "eu-west-1" || !opts.UsePathStyle || aws.ToString(opts.BaseEndpoint) != "http://localhost:9000" {
		t.Errorf("options = region %q pathStyle %v endpoint %q", opts.Region, opts.UsePathStyle, aws.ToString(opts.BaseEndpoint))
	}
	creds, err := opts.Credentials.Retrieve(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if creds.AccessKeyID != "AKIDEXAMPLE" {
		t.Errorf("AccessKeyID = %q", creds.AccessKeyID)
	}
}
