/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package startcmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	ariesmongodbstorage "github.com/hyperledger/aries-framework-go-ext/component/storage/mongodb"
	ariesmemstorage "github.com/hyperledger/aries-framework-go/component/storageutil/mem"
	"github.com/hyperledger/aries-framework-go/spi/storage"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"github.com/trustbloc/logutil-go/pkg/log"

	logfields "github.com/trustbloc/creditledger/internal/pkg/log"
	"github.com/trustbloc/creditledger/pkg/bridge"
	"github.com/trustbloc/creditledger/pkg/bridge/payload"
	"github.com/trustbloc/creditledger/pkg/bridge/transport"
	ledgererrors "github.com/trustbloc/creditledger/pkg/errors"
	"github.com/trustbloc/creditledger/pkg/event"
	"github.com/trustbloc/creditledger/pkg/healthcheck"
	"github.com/trustbloc/creditledger/pkg/httpserver"
	"github.com/trustbloc/creditledger/pkg/ledger"
	"github.com/trustbloc/creditledger/pkg/marketplace"
	prometheusmetrics "github.com/trustbloc/creditledger/pkg/observability/metrics/prometheus"
	amqppubsub "github.com/trustbloc/creditledger/pkg/pubsub/amqp"
	"github.com/trustbloc/creditledger/pkg/pubsub/mempubsub"
	"github.com/trustbloc/creditledger/pkg/registry"
	balancestore "github.com/trustbloc/creditledger/pkg/store/balance"
	credentialstore "github.com/trustbloc/creditledger/pkg/store/credential"
	listingstore "github.com/trustbloc/creditledger/pkg/store/listing"
	proofstore "github.com/trustbloc/creditledger/pkg/store/proof"
	verificationstore "github.com/trustbloc/creditledger/pkg/store/verification"
)

const (
	metricsPath     = "/metrics"
	stopTimeout     = 10 * time.Second
	amqpMaxRetries  = 30
	logSpecErrorMsg = `Invalid log spec. It needs to be in the following format: ` +
		`"ModuleName1=Level1:ModuleName2=Level2:ModuleNameN=LevelN:AllOtherModuleDefaultLevel"
Valid log levels: critical,error,warn,info,debug`
)

var logger = log.New("ledger-server")

type pubSub interface {
	Publish(topic string, messages ...*message.Message) error
	IsConnected() bool
	Close() error
}

type pingable interface {
	Ping() error
}

// GetStartCmd returns the Cobra start command.
func GetStartCmd() *cobra.Command {
	startCmd := createStartCmd()

	createFlags(startCmd)

	return startCmd
}

func createStartCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start ledger-server",
		Long:  "Start ledger-server",
		RunE: func(cmd *cobra.Command, args []string) error {
			parameters, err := getParameters(cmd)
			if err != nil {
				return err
			}

			return startLedgerServices(parameters)
		},
	}
}

//nolint:funlen
func startLedgerServices(parameters *serverParameters) error {
	setLogLevels(parameters.logLevel)

	storeProvider, db, err := createStoreProvider(parameters.dbParameters)
	if err != nil {
		return err
	}

	ps := createPubSub(parameters.mqParameters)
	defer func() {
		if e := ps.Close(); e != nil {
			logger.Warn("Error closing message queue", log.WithError(e))
		}
	}()

	if _, err := createLedgerServices(storeProvider, ps, parameters); err != nil {
		return err
	}

	httpServer := httpserver.New(parameters.hostURL,
		defaultServerIdleTimeout, defaultServerReadHeaderTimeout,
		httpserver.Handler{
			Path:    healthcheck.Endpoint,
			Handler: healthcheck.NewHandler(ps, db),
		},
		httpserver.Handler{
			Path:    metricsPath,
			Handler: promhttp.Handler(),
		},
	)

	if err := httpServer.Start(); err != nil {
		return fmt.Errorf("start HTTP server: %w", err)
	}

	logger.Info("Started ledger server", logfields.WithAddress(parameters.hostURL))

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, syscall.SIGINT, syscall.SIGTERM)

	<-interrupt

	ctx, cancel := context.WithTimeout(context.Background(), stopTimeout)
	defer cancel()

	if err := httpServer.Stop(ctx); err != nil {
		logger.Warn("Error stopping HTTP server", log.WithError(err))
	}

	return nil
}

type ledgerServices struct {
	issuerCap   *registry.Capability
	registry    *registry.Registry
	marketplace *marketplace.Marketplace
}

func createLedgerServices(storeProvider storage.Provider, ps pubSub,
	parameters *serverParameters) (*ledgerServices, error) {
	verificationStore, err := verificationstore.New(storeProvider)
	if err != nil {
		return nil, fmt.Errorf("create verification store: %w", err)
	}

	credentialStore, err := credentialstore.New(storeProvider)
	if err != nil {
		return nil, fmt.Errorf("create credential store: %w", err)
	}

	proofStore, err := proofstore.New(storeProvider)
	if err != nil {
		return nil, fmt.Errorf("create proof store: %w", err)
	}

	listingStore, err := listingstore.New(storeProvider)
	if err != nil {
		return nil, fmt.Errorf("create listing store: %w", err)
	}

	balanceStore, err := balancestore.New(storeProvider)
	if err != nil {
		return nil, fmt.Errorf("create balance store: %w", err)
	}

	eventPublisher := event.NewPublisher(ps)

	adminCap, err := bridge.NewAdminCapability(storeProvider)
	if err != nil {
		return nil, fmt.Errorf("create bridge capability: %w", err)
	}

	tokenTransport, err := transport.NewTokenTransport(storeProvider)
	if err != nil {
		return nil, fmt.Errorf("create token transport: %w", err)
	}

	messageTransport, err := transport.NewMessageTransport(storeProvider, ps)
	if err != nil {
		return nil, fmt.Errorf("create message transport: %w", err)
	}

	codec, err := payload.NewCodec()
	if err != nil {
		return nil, fmt.Errorf("create payload codec: %w", err)
	}

	issuerCap := registry.NewCapability()

	err = adminCap.Bind(messageTransport.ID(), tokenTransport.ID(), issuerCap.ID())
	if err != nil && !errors.Is(err, ledgererrors.ErrBridgeAlreadyInitialized) {
		return nil, fmt.Errorf("bind bridge capability: %w", err)
	}

	if err := tokenTransport.RegisterNativeAsset(bridge.Denom); err != nil {
		return nil, fmt.Errorf("register native asset: %w", err)
	}

	metrics := prometheusmetrics.GetMetrics()

	// The registry and the marketplace both consume tokens from the same
	// credential store, so they must serialize on the same lock.
	tokenLock := &sync.Mutex{}

	reg := registry.New(
		&registry.Providers{
			VerificationLedger: verificationStore,
			CredentialStore:    credentialStore,
			ProofStore:         proofStore,
			EventPublisher:     eventPublisher,
			Metrics:            metrics,
			Clock:              ledger.SystemClock{},
			TokenLock:          tokenLock,
		},
		&registry.BridgeProviders{
			Capability:       adminCap,
			TokenTransport:   tokenTransport,
			MessageTransport: messageTransport,
			PayloadCodec:     codec,
		},
		issuerCap,
	)

	market := marketplace.New(
		marketplace.Config{
			CacheSize:       parameters.listingCacheSize,
			CacheExpiration: parameters.listingCacheExpiration,
		},
		&marketplace.Providers{
			CredentialStore: credentialStore,
			ListingStore:    listingStore,
			BalanceStore:    balanceStore,
			EventPublisher:  eventPublisher,
			Metrics:         metrics,
			TokenLock:       tokenLock,
		},
	)

	return &ledgerServices{
		issuerCap:   issuerCap,
		registry:    reg,
		marketplace: market,
	}, nil
}

func createStoreProvider(params *dbParameters) (storage.Provider, pingable, error) {
	switch {
	case strings.EqualFold(params.databaseType, databaseTypeMemOption):
		return ariesmemstorage.NewProvider(), nil, nil
	case strings.EqualFold(params.databaseType, databaseTypeMongoDBOption):
		provider, err := ariesmongodbstorage.NewProvider(params.databaseURL,
			ariesmongodbstorage.WithDBPrefix(params.databasePrefix),
			ariesmongodbstorage.WithTimeout(params.databaseTimeout))
		if err != nil {
			return nil, nil, fmt.Errorf("create MongoDB storage provider: %w", err)
		}

		return provider, provider, nil
	default:
		return nil, nil, fmt.Errorf("%s is not a valid database type. Run start --help for the available options",
			params.databaseType)
	}
}

func createPubSub(params *mqParameters) pubSub {
	if strings.EqualFold(params.queueType, queueTypeAMQPOption) {
		return amqppubsub.New(amqppubsub.Config{
			URI:                        params.queueURL,
			MaxConnectRetries:          amqpMaxRetries,
			MaxConnectionSubscriptions: params.maxConnectionSubscriptions,
		})
	}

	return mempubsub.New(mempubsub.DefaultConfig())
}

func setLogLevels(logSpec string) {
	if logSpec == "" {
		return
	}

	if err := log.SetSpec(logSpec); err != nil {
		logger.Warn(logSpecErrorMsg, log.WithError(err))

		log.SetDefaultLevel(log.INFO)
	}
}
