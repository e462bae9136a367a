package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"
	"unicode/utf16"
	"unicode/utf8"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/data/aztables"
)

const (
	boardPartition = "board"
	// Table storage caps a string property at 64 KiB of UTF-16.
	maxSnapshotUnits = 32 * 1024
)

// ErrSnapshotTooLarge is returned when a snapshot does not fit in one entity.
var ErrSnapshotTooLarge = errors.New("snapshot exceeds table property limit")

type tableClient interface {
	GetEntity(ctx context.Context, partitionKey, rowKey string, options *aztables.GetEntityOptions) (aztables.GetEntityResponse, error)
	UpsertEntity(ctx context.Context, entity []byte, options *aztables.UpsertEntityOptions) (aztables.UpsertEntityResponse, error)
}

type tableCreator interface {
	CreateTable(ctx context.Context, options *aztables.CreateTableOptions) (aztables.CreateTableResponse, error)
}

// Tables stores one snapshot entity per board key in Azure Table Storage.
type Tables struct {
	table tableClient
}

type snapshotEntity struct {
	aztables.Entity
	Snapshot string `json:"Snapshot"`
}

// NewTables creates a Tables adapter from the given connection string. It
// returns the underlying client so callers can provision the table.
func NewTables(connStr, table string) (*Tables, *aztables.Client, error) {
	opts := aztables.ClientOptions{
		ClientOptions: azcore.ClientOptions{
			Retry: policy.RetryOptions{
				MaxRetries:    3,
				TryTimeout:    time.Second * 30,
				RetryDelay:    time.Second * 1,
				MaxRetryDelay: time.Second * 15,
				StatusCodes:   []int{408, 429, 500, 502, 503, 504},
			},
		},
	}
	svc, err := aztables.NewServiceClientFromConnectionString(connStr, &opts)
	if err != nil {
		return nil, nil, err
	}
	client := svc.NewClient(table)
	return &Tables{table: client}, client, nil
}

func (t *Tables) Load(ctx context.Context, key string) ([]byte, bool, error) {
	resp, err := t.table.GetEntity(ctx, boardPartition, key, nil)
	if err != nil {
		var respErr *azcore.ResponseError
		if errors.As(err, &respErr) && respErr.StatusCode == http.StatusNotFound {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("get entity %s: %w", key, err)
	}
	data, err := decodeSnapshotEntity(resp.Value)
	if err != nil {
		return nil, false, err
	}
	return data, true, nil
}

func (t *Tables) Save(ctx context.Context, key string, data []byte) error {
	if n := utf16Len(data); n > maxSnapshotUnits {
		return fmt.Errorf("%w: %d UTF-16 units", ErrSnapshotTooLarge, n)
	}
	payload, err := encodeSnapshotEntity(key, data)
	if err != nil {
		return err
	}
	if _, err := t.table.UpsertEntity(ctx, payload, &aztables.UpsertEntityOptions{UpdateMode: aztables.UpdateModeReplace}); err != nil {
		return fmt.Errorf("upsert entity %s: %w", key, err)
	}
	return nil
}

// utf16Len counts the UTF-16 code units of UTF-8 data. Invalid bytes count as
// one unit each, as they are stored as U+FFFD.
func utf16Len(data []byte) int {
	n := 0
	for len(data) > 0 {
		r, size := utf8.DecodeRune(data)
		data = data[size:]
		if l := utf16.RuneLen(r); l > 0 {
			n += l
		} else {
			n++
		}
	}
	return n
}

// EnsureTable creates the table if it does not exist yet.
func EnsureTable(ctx context.Context, client tableCreator) error {
	_, err := client.CreateTable(ctx, nil)
	if err != nil {
		var respErr *azcore.ResponseError
		if errors.As(err, &respErr) && respErr.ErrorCode == string(aztables.TableAlreadyExists) {
			return nil
		}
		return err
	}
	return nil
}

func encodeSnapshotEntity(key string, data []byte) ([]byte, error) {
	ent := map[string]any{
		"PartitionKey": boardPartition,
		"RowKey":       key,
		"Snapshot":     string(data),
	}
	return json.Marshal(ent)
}

func decodeSnapshotEntity(data []byte) ([]byte, error) {
	var ent snapshotEntity
	if err := json.Unmarshal(data, &ent); err != nil {
		return nil, err
	}
	return []byte(ent.Snapshot), nil
}
