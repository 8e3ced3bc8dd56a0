// Package persistence loads and saves learner progress as JSON records in a key-value store.
package persistence

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/example/vocastar/internal/store"
	"github.com/example/vocastar/pkg/models"
)

// ErrReservedUser is returned for the admin id, which never has a progress record
var ErrReservedUser = errors.New("user id is reserved")

// Adapter maps user ids to namespaced records
type Adapter struct {
	kv      store.KV
	prefix  string
	adminID string
}

// NewAdapter creates an adapter writing keys prefix+userID
func NewAdapter(kv store.KV, prefix, adminID string) *Adapter {
	return &Adapter{kv: kv, prefix: prefix, adminID: adminID}
}

// Key returns the record key of userID
func (a *Adapter) Key(userID string) string {
	return a.prefix + userID
}

// UserID extracts the user id from a record key
func (a *Adapter) UserID(key string) (string, bool) {
	if !strings.HasPrefix(key, a.prefix) {
		return "", false
	}
	return strings.TrimPrefix(key, a.prefix), true
}

// IsReserved reports whether userID is the admin id
func (a *Adapter) IsReserved(userID string) bool {
	return userID == a.adminID
}

// Prefix returns the record namespace
func (a *Adapter) Prefix() string {
	return a.prefix
}

// Store returns the underlying key-value store
func (a *Adapter) Store() store.KV {
	return a.kv
}

// Load returns the stored progress of userID. Missing and unreadable records both yield a
// fresh new-learner state; found is true only when a valid record was read.
func (a *Adapter) Load(ctx context.Context, userID string) (progress *models.UserProgress, found bool, err error) {
	if a.IsReserved(userID) {
		return nil, false, ErrReservedUser
	}
	raw, ok, err := a.kv.Get(ctx, a.Key(userID))
	if err != nil {
		return nil, false, err
	}
	if !ok {
		return models.NewUserProgress(), false, nil
	}

	var p models.UserProgress
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		log.Printf("discarding corrupted progress record for %s: %v", userID, err)
		return models.NewUserProgress(), false, nil
	}
	return &p, true, nil
}

// Save writes progress as one record
func (a *Adapter) Save(ctx context.Context, userID string, progress *models.UserProgress) error {
	if a.IsReserved(userID) {
		return ErrReservedUser
	}
	data, err := json.Marshal(progress)
	if err != nil {
		return fmt.Errorf("failed to encode progress: %w", err)
	}
	return a.kv.Set(ctx, a.Key(userID), string(data))
}

// LoadRaw reads the record at key without the new-learner fallback. ok is false when the key
// is missing; a decode failure is returned as an error.
func (a *Adapter) LoadRaw(ctx context.Context, key string) (*models.UserProgress, bool, error) {
	raw, ok, err := a.kv.Get(ctx, key)
	if err != nil || !ok {
		return nil, ok, err
	}
	var p models.UserProgress
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		return nil, true, fmt.Errorf("failed to parse record %s: %w", key, err)
	}
	return &p, true, nil
}
