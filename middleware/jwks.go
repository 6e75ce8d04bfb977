package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/go-jose/go-jose/v4"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"
)

var ErrKeyNotFound = errors.New("no signing key matches the token key id")

const keyFetchTimeout = 5 * time.Second

// KeyProvider resolves a token key id to a public verification key.
type KeyProvider interface {
	Key(ctx context.Context, kid string) (interface{}, error)
}

// KeySet is the identity provider's published JWKS document. The parsed set
// is an immutable snapshot swapped atomically; a lookup miss refetches it.
type KeySet struct {
	url    string
	client *http.Client
	logger *logrus.Logger

	keys  atomic.Pointer[jose.JSONWebKeySet]
	group singleflight.Group
}

func NewKeySet(url string, client *http.Client, logger *logrus.Logger) *KeySet {
	if client == nil {
		client = &http.Client{Timeout: 5 * time.Second}
	}
	return &KeySet{
		url:    url,
		client: client,
		logger: logger,
	}
}

func (k *KeySet) Key(ctx context.Context, kid string) (interface{}, error) {
	if key, ok := k.lookup(kid); ok {
		return key, nil
	}

	if err := k.Refresh(ctx); err != nil {
		k.logger.WithError(err).WithField("jwks_url", k.url).Warn("failed to refresh signing keys")
		return nil, fmt.Errorf("%w: %v", ErrKeyNotFound, err)
	}

	if key, ok := k.lookup(kid); ok {
		return key, nil
	}
	return nil, ErrKeyNotFound
}

// Refresh fetches the key document. Concurrent callers share one fetch, which
// outlives the cancellation of whichever caller started it.
func (k *KeySet) Refresh(ctx context.Context) error {
	_, err, _ := k.group.Do("jwks", func() (interface{}, error) {
		fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), keyFetchTimeout)
		defer cancel()

		set, err := k.fetch(fetchCtx)
		if err != nil {
			return nil, err
		}
		k.keys.Store(set)
		k.logger.WithField("keys", len(set.Keys)).Debug("signing keys refreshed")
		return nil, nil
	})
	return err
}

func (k *KeySet) lookup(kid string) (interface{}, bool) {
	set := k.keys.Load()
	if set == nil {
		return nil, false
	}
	for _, key := range set.Key(kid) {
		if key.Use != "" && key.Use != "sig" {
			continue
		}
		if !key.Valid() {
			continue
		}
		return key.Key, true
	}
	return nil, false
}

func (k *KeySet) fetch(ctx context.Context) (*jose.JSONWebKeySet, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, k.url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := k.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", k.url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to fetch %s: status %d", k.url, resp.StatusCode)
	}

	var set jose.JSONWebKeySet
	if err := json.NewDecoder(resp.Body).Decode(&set); err != nil {
		return nil, fmt.Errorf("failed to decode key document: %w", err)
	}
	return &set, nil
}
