/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package bridge

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/hyperledger/aries-framework-go/spi/storage"
	"github.com/trustbloc/logutil-go/pkg/log"

	logfields "github.com/trustbloc/creditledger/internal/pkg/log"
	ledgererrors "github.com/trustbloc/creditledger/pkg/errors"
	"github.com/trustbloc/creditledger/pkg/store/storeutil"
)

const (
	nameSpace = "bridge"

	bindingKey = "binding"
	supplyKey  = "supply"
)

var logger = log.New("bridge")

// Binding holds the transport coordinator identities and the emitter
// capability that the admin capability was bound to at setup.
type Binding struct {
	MessageTransportID string `json:"messageTransportId"`
	TokenTransportID   string `json:"tokenTransportId"`
	EmitterCap         string `json:"emitterCap"`
}

// AdminCapability grants minting and burning rights over the fungible
// bridged-credit unit and carries the one-time transport binding.
type AdminCapability struct {
	store     storage.Store
	marshal   func(v interface{}) ([]byte, error)
	unmarshal func(data []byte, v interface{}) error

	mutex   sync.Mutex
	binding *Binding
}

// NewAdminCapability returns the admin capability, loading any binding
// persisted by a previous run.
func NewAdminCapability(provider storage.Provider) (*AdminCapability, error) {
	store, err := storeutil.Open(provider, nameSpace)
	if err != nil {
		return nil, fmt.Errorf("open bridge store: %w", err)
	}

	c := &AdminCapability{
		store:     store,
		marshal:   json.Marshal,
		unmarshal: json.Unmarshal,
	}

	binding, err := c.loadBinding()
	if err != nil {
		return nil, err
	}

	c.binding = binding

	return c, nil
}

// Bind binds the capability to the transport coordinators. The binding
// happens exactly once and is permanent: a second call fails with
// ErrBridgeAlreadyInitialized.
func (c *AdminCapability) Bind(msgTransportID, tokenTransportID, emitterCap string) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if c.binding != nil {
		return ledgererrors.ErrBridgeAlreadyInitialized
	}

	binding := &Binding{
		MessageTransportID: msgTransportID,
		TokenTransportID:   tokenTransportID,
		EmitterCap:         emitterCap,
	}

	bindingBytes, err := c.marshal(binding)
	if err != nil {
		return fmt.Errorf("marshal bridge binding: %w", err)
	}

	if err := c.store.Put(bindingKey, bindingBytes); err != nil {
		return ledgererrors.NewTransient(fmt.Errorf("store bridge binding: %w", err))
	}

	c.binding = binding

	logger.Info("Bridge capability bound",
		logfields.WithParameter(msgTransportID), logfields.WithValue(tokenTransportID))

	return nil
}

// Binding returns the transport binding. It fails with
// ErrBridgeNotInitialized if Bind was never called.
func (c *AdminCapability) Binding() (*Binding, error) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if c.binding == nil {
		return nil, ledgererrors.ErrBridgeNotInitialized
	}

	return c.binding, nil
}

// Mint increases the supply of the fungible bridged-credit unit by the
// given amount and returns the new total supply.
func (c *AdminCapability) Mint(amount uint64) (uint64, error) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	supply, err := c.loadSupply()
	if err != nil {
		return 0, err
	}

	supply += amount

	if err := c.storeSupply(supply); err != nil {
		return 0, err
	}

	logger.Debug("Minted fungible units", logfields.WithDenom(Denom),
		logfields.WithAmount(amount))

	return supply, nil
}

// Burn decreases the supply of the fungible bridged-credit unit by the
// given amount and returns the new total supply. Burning more than the
// current supply fails with ErrInvalidAmount.
func (c *AdminCapability) Burn(amount uint64) (uint64, error) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	supply, err := c.loadSupply()
	if err != nil {
		return 0, err
	}

	if amount > supply {
		return 0, fmt.Errorf("burn %d exceeds supply %d: %w", amount, supply,
			ledgererrors.ErrInvalidAmount)
	}

	supply -= amount

	if err := c.storeSupply(supply); err != nil {
		return 0, err
	}

	logger.Debug("Burned fungible units", logfields.WithDenom(Denom),
		logfields.WithAmount(amount))

	return supply, nil
}

// TotalSupply returns the current supply of the fungible unit.
func (c *AdminCapability) TotalSupply() (uint64, error) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	return c.loadSupply()
}

func (c *AdminCapability) loadBinding() (*Binding, error) {
	bindingBytes, err := c.store.Get(bindingKey)
	if err != nil {
		if errors.Is(err, storage.ErrDataNotFound) {
			return nil, nil
		}

		return nil, ledgererrors.NewTransient(fmt.Errorf("get bridge binding: %w", err))
	}

	binding := &Binding{}

	if err := c.unmarshal(bindingBytes, binding); err != nil {
		return nil, fmt.Errorf("unmarshal bridge binding: %w", err)
	}

	return binding, nil
}

func (c *AdminCapability) loadSupply() (uint64, error) {
	supplyBytes, err := c.store.Get(supplyKey)
	if err != nil {
		if errors.Is(err, storage.ErrDataNotFound) {
			return 0, nil
		}

		return 0, ledgererrors.NewTransient(fmt.Errorf("get supply: %w", err))
	}

	var supply uint64

	if err := c.unmarshal(supplyBytes, &supply); err != nil {
		return 0, fmt.Errorf("unmarshal supply: %w", err)
	}

	return supply, nil
}

func (c *AdminCapability) storeSupply(supply uint64) error {
	supplyBytes, err := c.marshal(supply)
	if err != nil {
		return fmt.Errorf("marshal supply: %w", err)
	}

	if err := c.store.Put(supplyKey, supplyBytes); err != nil {
		return ledgererrors.NewTransient(fmt.Errorf("store supply: %w", err))
	}

	return nil
}
