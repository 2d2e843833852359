// Package repo implements the persistence layer of the trademark monitor.
// This file defines the key/value gateway contract shared by the SQL and
// Redis backends, the per-user key layout, and the versioned envelope every
// stored value is wrapped in.
//
// Keys:
//
//	u:{userID}:user       current account
//	u:{userID}:processes  tracked processes
//	u:{userID}:theme      UI theme preference
//	u:{userID}:chats      specialist conversations
//
// Values are JSON documents of the form {"schema_version":1,"data":...}.
// Loads reject unknown versions with ErrSchemaVersion so a caller never
// trusts data written by an incompatible build.
package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = gorm.ErrRecordNotFound

var (
	// ErrCorrupt marks a stored value that cannot be decoded.
	ErrCorrupt = errors.New("corrupt record")
	// ErrSchemaVersion is returned when a stored envelope carries an
	// unsupported version. It always comes wrapped together with ErrCorrupt.
	ErrSchemaVersion = errors.New("unsupported schema version")
)

// SchemaVersion is the envelope version written by this build.
const SchemaVersion = 1

// Storage names under a user namespace.
const (
	KeyUser      = "user"
	KeyProcesses = "processes"
	KeyTheme     = "theme"
	KeyChats     = "chats"
)

// KVGateway is the durable key/value store backing the services. Values are
// opaque bytes (already enveloped). Implementations must be safe for
// concurrent use. Get returns ErrNotFound for a missing key; Delete of a
// missing key is not an error.
type KVGateway interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
}

// Stater is implemented by gateways able to summarise the records stored
// under a key prefix. It is optional.
type Stater interface {
	Stats(ctx context.Context, prefix string) (count int64, maxUpdatedAt *time.Time, err error)
}

// UserKey builds the storage key for name within the namespace of userID.
func UserKey(userID, name string) string {
	return "u:" + strings.TrimSpace(userID) + ":" + name
}

// UserPrefix returns the key prefix shared by every record of userID.
func UserPrefix(userID string) string {
	return "u:" + strings.TrimSpace(userID) + ":"
}

type envelope struct {
	SchemaVersion int             `json:"schema_version"`
	Data          json.RawMessage `json:"data"`
}

// Encode wraps v in the current envelope.
func Encode(v any) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode payload: %w", err)
	}
	return json.Marshal(envelope{SchemaVersion: SchemaVersion, Data: data})
}

// Decode unwraps raw into v after checking the envelope version. Every
// failure wraps ErrCorrupt.
func Decode(raw []byte, v any) error {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return fmt.Errorf("%w: envelope: %v", ErrCorrupt, err)
	}
	if env.SchemaVersion != SchemaVersion {
		return fmt.Errorf("%w: %w: %d", ErrCorrupt, ErrSchemaVersion, env.SchemaVersion)
	}
	if len(env.Data) == 0 {
		return fmt.Errorf("%w: empty data", ErrCorrupt)
	}
	if err := json.Unmarshal(env.Data, v); err != nil {
		return fmt.Errorf("%w: payload: %v", ErrCorrupt, err)
	}
	return nil
}

// Load reads key from gw and decodes it into v. A missing key reports
// found=false with a nil error.
func Load(ctx context.Context, gw KVGateway, key string, v any) (found bool, err error) {
	raw, err := gw.Get(ctx, key)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := Decode(raw, v); err != nil {
		return true, err
	}
	return true, nil
}

// Save encodes v and writes it under key.
func Save(ctx context.Context, gw KVGateway, key string, v any) error {
	raw, err := Encode(v)
	if err != nil {
		return err
	}
	return gw.Put(ctx, key, raw)
}
