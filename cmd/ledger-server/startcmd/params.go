/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package startcmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/trustbloc/creditledger/internal/pkg/cmdutil"
)

const (
	defaultDatabaseTimeout              = 10 * time.Second
	defaultMQMaxConnectionSubscriptions = 1000
	defaultListingCacheSize             = 100
	defaultListingCacheExpiration       = 10 * time.Second
	defaultServerIdleTimeout            = 20 * time.Second
	defaultServerReadHeaderTimeout      = 20 * time.Second

	commonEnvVarUsageText = "Alternatively, this can be set with the following environment variable: "

	hostURLFlagName  = "host-url"
	hostURLFlagUsage = "Host:Port to serve the metrics and health check endpoints on. " +
		commonEnvVarUsageText + hostURLEnvKey
	hostURLEnvKey = "CREDITLEDGER_HOST_URL"

	databaseTypeFlagName  = "database-type"
	databaseTypeFlagUsage = "The type of database to use. Supported options: mem, mongodb. " +
		commonEnvVarUsageText + databaseTypeEnvKey
	databaseTypeEnvKey = "DATABASE_TYPE"

	databaseURLFlagName  = "database-url"
	databaseURLFlagUsage = "The URL of the database. Not needed if using mem. " +
		commonEnvVarUsageText + databaseURLEnvKey
	databaseURLEnvKey = "DATABASE_URL"

	databasePrefixFlagName  = "database-prefix"
	databasePrefixFlagUsage = "An optional prefix to be used when creating and retrieving underlying databases. " +
		commonEnvVarUsageText + databasePrefixEnvKey
	databasePrefixEnvKey = "DATABASE_PREFIX"

	databaseTimeoutFlagName  = "database-timeout"
	databaseTimeoutFlagUsage = "Total time to wait for the database to become available. Supports the Go unit " +
		"suffixes, e.g. 30s. " + commonEnvVarUsageText + databaseTimeoutEnvKey
	databaseTimeoutEnvKey = "DATABASE_TIMEOUT"

	queueTypeFlagName  = "queue-type"
	queueTypeFlagUsage = "The type of message queue to use. Supported options: mem, amqp. " +
		commonEnvVarUsageText + queueTypeEnvKey
	queueTypeEnvKey = "QUEUE_TYPE"

	queueURLFlagName  = "queue-url"
	queueURLFlagUsage = "The URL of the AMQP broker. Not needed if using mem. " +
		commonEnvVarUsageText + queueURLEnvKey
	queueURLEnvKey = "QUEUE_URL"

	mqMaxConnectionSubscriptionsFlagName  = "mq-max-connection-subscriptions"
	mqMaxConnectionSubscriptionsFlagUsage = "The maximum number of subscriptions per AMQP connection. " +
		commonEnvVarUsageText + mqMaxConnectionSubscriptionsEnvKey
	mqMaxConnectionSubscriptionsEnvKey = "MQ_MAX_CONNECTION_SUBSCRIPTIONS"

	listingCacheSizeFlagName  = "listing-cache-size"
	listingCacheSizeFlagUsage = "The maximum number of listings held in the detail cache. " +
		commonEnvVarUsageText + listingCacheSizeEnvKey
	listingCacheSizeEnvKey = "LISTING_CACHE_SIZE"

	listingCacheExpirationFlagName  = "listing-cache-expiration"
	listingCacheExpirationFlagUsage = "The expiration of entries in the listing detail cache. Supports the Go " +
		"unit suffixes, e.g. 10s. " + commonEnvVarUsageText + listingCacheExpirationEnvKey
	listingCacheExpirationEnvKey = "LISTING_CACHE_EXPIRATION"

	logLevelFlagName  = "log-level"
	logLevelFlagUsage = "Logging level, e.g. INFO, DEBUG, or a comma-separated module spec such as " +
		"registry=debug:warn. " + commonEnvVarUsageText + logLevelEnvKey
	logLevelEnvKey = "LOG_LEVEL"

	databaseTypeMemOption     = "mem"
	databaseTypeMongoDBOption = "mongodb"

	queueTypeMemOption  = "mem"
	queueTypeAMQPOption = "amqp"
)

type dbParameters struct {
	databaseType    string
	databaseURL     string
	databasePrefix  string
	databaseTimeout time.Duration
}

type mqParameters struct {
	queueType                  string
	queueURL                   string
	maxConnectionSubscriptions int
}

type serverParameters struct {
	hostURL                string
	dbParameters           *dbParameters
	mqParameters           *mqParameters
	listingCacheSize       int
	listingCacheExpiration time.Duration
	logLevel               string
}

func getParameters(cmd *cobra.Command) (*serverParameters, error) {
	hostURL, err := cmdutil.GetUserSetVarFromString(cmd, hostURLFlagName, hostURLEnvKey, false)
	if err != nil {
		return nil, err
	}

	dbParams, err := getDBParameters(cmd)
	if err != nil {
		return nil, err
	}

	mqParams, err := getMQParameters(cmd)
	if err != nil {
		return nil, err
	}

	listingCacheSize, err := cmdutil.GetInt(cmd, listingCacheSizeFlagName, listingCacheSizeEnvKey,
		defaultListingCacheSize)
	if err != nil {
		return nil, err
	}

	listingCacheExpiration, err := cmdutil.GetDuration(cmd, listingCacheExpirationFlagName,
		listingCacheExpirationEnvKey, defaultListingCacheExpiration)
	if err != nil {
		return nil, err
	}

	return &serverParameters{
		hostURL:                hostURL,
		dbParameters:           dbParams,
		mqParameters:           mqParams,
		listingCacheSize:       listingCacheSize,
		listingCacheExpiration: listingCacheExpiration,
		logLevel:               cmdutil.GetUserSetOptionalVarFromString(cmd, logLevelFlagName, logLevelEnvKey),
	}, nil
}

func getDBParameters(cmd *cobra.Command) (*dbParameters, error) {
	databaseType, err := cmdutil.GetUserSetVarFromString(cmd, databaseTypeFlagName, databaseTypeEnvKey, false)
	if err != nil {
		return nil, err
	}

	if !strings.EqualFold(databaseType, databaseTypeMemOption) &&
		!strings.EqualFold(databaseType, databaseTypeMongoDBOption) {
		return nil, fmt.Errorf("%s is not a valid database type. Run start --help for the available options",
			databaseType)
	}

	databaseURL := cmdutil.GetUserSetOptionalVarFromString(cmd, databaseURLFlagName, databaseURLEnvKey)

	if strings.EqualFold(databaseType, databaseTypeMongoDBOption) && databaseURL == "" {
		return nil, fmt.Errorf("%s is required with database type %s", databaseURLFlagName, databaseType)
	}

	databaseTimeout, err := cmdutil.GetDuration(cmd, databaseTimeoutFlagName, databaseTimeoutEnvKey,
		defaultDatabaseTimeout)
	if err != nil {
		return nil, err
	}

	return &dbParameters{
		databaseType:    databaseType,
		databaseURL:     databaseURL,
		databasePrefix:  cmdutil.GetUserSetOptionalVarFromString(cmd, databasePrefixFlagName, databasePrefixEnvKey),
		databaseTimeout: databaseTimeout,
	}, nil
}

func getMQParameters(cmd *cobra.Command) (*mqParameters, error) {
	queueType := cmdutil.GetUserSetOptionalVarFromString(cmd, queueTypeFlagName, queueTypeEnvKey)
	if queueType == "" {
		queueType = queueTypeMemOption
	}

	if !strings.EqualFold(queueType, queueTypeMemOption) &&
		!strings.EqualFold(queueType, queueTypeAMQPOption) {
		return nil, fmt.Errorf("%s is not a valid queue type. Run start --help for the available options",
			queueType)
	}

	queueURL := cmdutil.GetUserSetOptionalVarFromString(cmd, queueURLFlagName, queueURLEnvKey)

	if strings.EqualFold(queueType, queueTypeAMQPOption) && queueURL == "" {
		return nil, fmt.Errorf("%s is required with queue type %s", queueURLFlagName, queueType)
	}

	maxConnectionSubscriptions, err := cmdutil.GetInt(cmd, mqMaxConnectionSubscriptionsFlagName,
		mqMaxConnectionSubscriptionsEnvKey, defaultMQMaxConnectionSubscriptions)
	if err != nil {
		return nil, err
	}

	return &mqParameters{
		queueType:                  queueType,
		queueURL:                   queueURL,
		maxConnectionSubscriptions: maxConnectionSubscriptions,
	}, nil
}

func createFlags(startCmd *cobra.Command) {
	startCmd.Flags().StringP(hostURLFlagName, "u", "", hostURLFlagUsage)
	startCmd.Flags().StringP(databaseTypeFlagName, "t", "", databaseTypeFlagUsage)
	startCmd.Flags().StringP(databaseURLFlagName, "v", "", databaseURLFlagUsage)
	startCmd.Flags().StringP(databasePrefixFlagName, "", "", databasePrefixFlagUsage)
	startCmd.Flags().StringP(databaseTimeoutFlagName, "", "", databaseTimeoutFlagUsage)
	startCmd.Flags().StringP(queueTypeFlagName, "q", "", queueTypeFlagUsage)
	startCmd.Flags().StringP(queueURLFlagName, "", "", queueURLFlagUsage)
	startCmd.Flags().StringP(mqMaxConnectionSubscriptionsFlagName, "", "", mqMaxConnectionSubscriptionsFlagUsage)
	startCmd.Flags().StringP(listingCacheSizeFlagName, "", "", listingCacheSizeFlagUsage)
	startCmd.Flags().StringP(listingCacheExpirationFlagName, "", "", listingCacheExpirationFlagUsage)
	startCmd.Flags().StringP(logLevelFlagName, "l", "", logLevelFlagUsage)
}
