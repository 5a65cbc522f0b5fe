/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package storeutil

import (
	"fmt"

	"github.com/hyperledger/aries-framework-go/spi/storage"
	"github.com/trustbloc/logutil-go/pkg/log"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	logfields "github.com/trustbloc/creditledger/internal/pkg/log"
)

var logger = log.New("store")

// TagGroup defines a group of tags that may be used to create a compound index.
type TagGroup []string

type mongoDBProvider interface {
	CreateCustomIndexes(storeName string, model ...mongo.IndexModel) error
}

// Open opens the store for the given namespace and creates the necessary indexes. For
// supported databases, vendor-specific APIs are used in order to optimize performance.
func Open(provider storage.Provider, namespace string, tagGroups ...TagGroup) (storage.Store, error) {
	store, err := provider.OpenStore(namespace)
	if err != nil {
		return nil, fmt.Errorf("open store [%s]: %w", namespace, err)
	}

	mongoDBProvider, ok := provider.(mongoDBProvider)
	if !ok {
		// A vendor-specific store was not found. Use the generic API.
		err = provider.SetStoreConfig(namespace, storage.StoreConfiguration{TagNames: uniqueTags(tagGroups)})
		if err != nil {
			return nil, fmt.Errorf("set store configuration for [%s]: %w", namespace, err)
		}

		return store, nil
	}

	logger.Info("Using MongoDB optimized interface", logfields.WithStoreName(namespace))

	if err := createIndexes(mongoDBProvider, namespace, tagGroups); err != nil {
		return nil, fmt.Errorf("create MongoDB indexes: %w", err)
	}

	return store, nil
}

func createIndexes(provider mongoDBProvider, namespace string, tagGroups []TagGroup) error {
	for _, tagGroup := range tagGroups {
		keys := make(bson.D, len(tagGroup))

		for i, tag := range tagGroup {
			keys[i] = bson.E{Key: tag, Value: 1}
		}

		if err := provider.CreateCustomIndexes(namespace, mongo.IndexModel{Keys: keys}); err != nil {
			return fmt.Errorf("create index for [%s]: %w", namespace, err)
		}
	}

	return nil
}

func uniqueTags(tagGroups []TagGroup) []string {
	var tags []string

	for _, tagGroup := range tagGroups {
		for _, tag := range tagGroup {
			if !contains(tag, tags) {
				tags = append(tags, tag)
			}
		}
	}

	return tags
}

func contains(tag string, tags []string) bool {
	for _, t := range tags {
		if t == tag {
			return true
		}
	}

	return false
}
