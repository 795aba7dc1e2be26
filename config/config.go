/*
Copyright 2025 Listmirror Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package config

import (
	"encoding/json"
	"errors"
	"log"
	"os"
	"strings"
	"sync/atomic"

	"github.com/kelseyhightower/envconfig"

	"github.com/listmirror/listmirror/mapping"
	"github.com/sirupsen/logrus"
)

const (
	DEFAULT_PORT = "5001"

	// DefaultBatchSize bounds how many changed items one orchestration
	// step may ingest before it hands the remainder to a continuation.
	DefaultBatchSize = 64
)

var ConfigStore atomic.Value

type ServerConfig struct {
	SSL       bool   `json:"ssl" envconfig:"LISTMIRROR_SERVER_SSL"`
	Secure    bool   `json:"secure" envconfig:"LISTMIRROR_SERVER_SECURE"`
	SecretKey string `json:"secret_key" envconfig:"LISTMIRROR_SERVER_SECRET_KEY"`
	Domain    string `json:"domain" envconfig:"LISTMIRROR_SERVER_SSL_DOMAIN"`
	Email     string `json:"ssl_email" envconfig:"LISTMIRROR_SERVER_SSL_EMAIL"`
	Port      string `json:"port" envconfig:"LISTMIRROR_SERVER_PORT"`
}

type DataSourceConfig struct {
	Dns string `json:"dns" envconfig:"LISTMIRROR_DATA_SOURCE_DNS"`
}

type RedisConfig struct {
	Dns           string `json:"dns" envconfig:"LISTMIRROR_REDIS_DNS"`
	SkipTLSVerify bool   `json:"skip_tls_verify" envconfig:"LISTMIRROR_REDIS_SKIP_TLS_VERIFY"`
}

// FeedConfig holds the connection settings for the remote change-feed
// service and the OAuth client-credentials grant used to reach it.
type FeedConfig struct {
	BaseURL      string `json:"base_url" envconfig:"LISTMIRROR_FEED_BASE_URL"`
	TokenURL     string `json:"token_url" envconfig:"LISTMIRROR_FEED_TOKEN_URL"`
	ClientID     string `json:"client_id" envconfig:"LISTMIRROR_FEED_CLIENT_ID"`
	ClientSecret string `json:"client_secret" envconfig:"LISTMIRROR_FEED_CLIENT_SECRET"`
	Scope        string `json:"scope" envconfig:"LISTMIRROR_FEED_SCOPE"`
	TimeoutSec   int    `json:"timeout_sec" envconfig:"LISTMIRROR_FEED_TIMEOUT_SEC"`
}

type SyncConfig struct {
	Queue          string `json:"queue" envconfig:"LISTMIRROR_SYNC_QUEUE"`
	BatchSize      int    `json:"batch_size" envconfig:"LISTMIRROR_SYNC_BATCH_SIZE"`
	LockTTLSec     int    `json:"lock_ttl_sec" envconfig:"LISTMIRROR_SYNC_LOCK_TTL_SEC"`
	MonitoringPort string `json:"monitoring_port" envconfig:"LISTMIRROR_SYNC_MONITORING_PORT"`
}

// ArchiveConfig points at the S3 bucket that receives dead-lettered
// queue messages. Endpoint is optional and only set for S3-compatible
// stores outside AWS.
type ArchiveConfig struct {
	S3Endpoint         string `json:"s3_endpoint" envconfig:"LISTMIRROR_ARCHIVE_S3_ENDPOINT"`
	S3BucketName       string `json:"s3_bucket_name" envconfig:"LISTMIRROR_ARCHIVE_S3_BUCKET_NAME"`
	S3Region           string `json:"s3_region" envconfig:"LISTMIRROR_ARCHIVE_S3_REGION"`
	AwsAccessKeyId     string `json:"aws_access_key_id" envconfig:"LISTMIRROR_ARCHIVE_AWS_ACCESS_KEY_ID"`
	AwsSecretAccessKey string `json:"aws_secret_access_key" envconfig:"LISTMIRROR_ARCHIVE_AWS_SECRET_ACCESS_KEY"`
}

type RateLimitConfig struct {
	RequestsPerSecond  *float64 `json:"requests_per_second" envconfig:"LISTMIRROR_RATE_LIMIT_RPS"`
	Burst              *int     `json:"burst" envconfig:"LISTMIRROR_RATE_LIMIT_BURST"`
	CleanupIntervalSec *int     `json:"cleanup_interval_sec" envconfig:"LISTMIRROR_RATE_LIMIT_CLEANUP_INTERVAL_SEC"`
}

type SlackWebhook struct {
	WebhookUrl string `json:"webhook_url"`
}

type Notification struct {
	Slack SlackWebhook `json:"slack"`
}

type Configuration struct {
	ProjectName     string                 `json:"project_name" envconfig:"LISTMIRROR_PROJECT_NAME"`
	EnableTelemetry bool                   `json:"enable_telemetry" envconfig:"LISTMIRROR_ENABLE_TELEMETRY"`
	Server          ServerConfig           `json:"server"`
	DataSource      DataSourceConfig       `json:"data_source"`
	Redis           RedisConfig            `json:"redis"`
	Feed            FeedConfig             `json:"feed"`
	Sync            SyncConfig             `json:"sync"`
	Archive         ArchiveConfig          `json:"archive"`
	RateLimit       RateLimitConfig        `json:"rate_limit"`
	Notification    Notification           `json:"notification"`
	Targets         []mapping.TargetConfig `json:"targets"`
}

func loadConfigFromFile(file string) error {
	var cnf Configuration
	_, err := os.Stat(file)
	if err == nil {
		f, err := os.Open(file)
		if err != nil {
			return err
		}
		err = json.NewDecoder(f).Decode(&cnf)
		if err != nil {
			return err
		}

	} else if errors.Is(err, os.ErrNotExist) {
		log.Println("config json not passed, will use env variables")
	}

	// override config from environment variables
	err = envconfig.Process("listmirror", &cnf)
	if err != nil {
		return err
	}

	err = cnf.validateAndAddDefaults()
	if err != nil {
		return err
	}

	ConfigStore.Store(&cnf)
	return err
}

func InitConfig(configFile string) error {
	logger()
	return loadConfigFromFile(configFile)
}

func Fetch() (*Configuration, error) {
	config := ConfigStore.Load()
	c, ok := config.(*Configuration)
	if !ok {
		return nil, errors.New("config not loaded from file. Create a json file called listmirror.json with your config ❌")
	}
	return c, nil
}

func (cnf *Configuration) validateAndAddDefaults() error {
	if cnf.ProjectName == "" {
		log.Println("Warning: Project name is empty. Setting a default name.")
		cnf.ProjectName = "Listmirror Server"
	}

	if cnf.DataSource.Dns == "" {
		log.Println("Error: Data source DNS is empty. It's a required field.")
		return errors.New("data source DNS is required")
	}

	if cnf.Redis.Dns == "" {
		log.Println("Error: Redis DNS is empty. It's a required field.")
		return errors.New("redis DNS is required")
	}

	if cnf.Feed.BaseURL == "" {
		log.Println("Error: Feed base URL is empty. It's a required field.")
		return errors.New("feed base URL is required")
	}

	// Trim white spaces from fields
	cnf.ProjectName = strings.TrimSpace(cnf.ProjectName)
	cnf.Server.Port = strings.TrimSpace(cnf.Server.Port)
	cnf.DataSource.Dns = strings.TrimSpace(cnf.DataSource.Dns)
	cnf.Redis.Dns = strings.TrimSpace(cnf.Redis.Dns)
	cnf.Feed.BaseURL = strings.TrimSuffix(strings.TrimSpace(cnf.Feed.BaseURL), "/")

	// Set default value for Port if it's empty
	if cnf.Server.Port == "" {
		cnf.Server.Port = DEFAULT_PORT
		log.Printf("Warning: Port not specified in config. Setting default port: %s", DEFAULT_PORT)
	}

	if cnf.Sync.Queue == "" {
		cnf.Sync.Queue = "list_sync"
	}

	if cnf.Sync.BatchSize <= 0 {
		cnf.Sync.BatchSize = DefaultBatchSize
		log.Printf("Warning: Sync batch size not specified. Setting default value: %d", DefaultBatchSize)
	}

	if cnf.Sync.LockTTLSec <= 0 {
		cnf.Sync.LockTTLSec = 300
	}

	if cnf.Sync.MonitoringPort == "" {
		cnf.Sync.MonitoringPort = "5002"
	}

	if cnf.Feed.TimeoutSec <= 0 {
		cnf.Feed.TimeoutSec = 30
	}

	// Rate limiting is disabled by default (when both RPS and Burst are nil)
	if cnf.RateLimit.RequestsPerSecond != nil && cnf.RateLimit.Burst == nil {
		defaultBurst := 2 * int(*cnf.RateLimit.RequestsPerSecond)
		cnf.RateLimit.Burst = &defaultBurst
		log.Printf("Warning: Rate limit burst not specified. Setting default value: %d", defaultBurst)
	}
	if cnf.RateLimit.RequestsPerSecond == nil && cnf.RateLimit.Burst != nil {
		defaultRPS := float64(*cnf.RateLimit.Burst) / 2
		cnf.RateLimit.RequestsPerSecond = &defaultRPS
		log.Printf("Warning: Rate limit RPS not specified. Setting default value: %.2f", defaultRPS)
	}
	if cnf.RateLimit.CleanupIntervalSec == nil {
		defaultCleanup := 10800 // 3 hours in seconds
		cnf.RateLimit.CleanupIntervalSec = &defaultCleanup
	}

	return nil
}

// MockConfig sets a mock configuration for testing purposes.
func MockConfig(mockConfig *Configuration) {
	ConfigStore.Store(mockConfig)
}

func logger() {
	logger := logrus.New()
	log.SetOutput(logger.Writer())
}
