/*
Copyright 2024 Blnk Finance Authors.

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
	"fmt"
	"log"
	"os"
	"strings"
	"sync/atomic"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/kelseyhightower/envconfig"
	"github.com/sirupsen/logrus"

	"github.com/blnkfinance/surveylink/model"
)

const (
	DEFAULT_PORT                   = "5005"
	DEFAULT_LOOKBACK_DAYS          = 7
	DEFAULT_MERCHANT_LOOKBACK_DAYS = 7
)

var ConfigStore atomic.Value

type ServerConfig struct {
	Secure    bool   `json:"secure" envconfig:"SURVEYLINK_SERVER_SECURE"`
	SecretKey string `json:"secret_key" envconfig:"SURVEYLINK_SERVER_SECRET_KEY"`
	Port      string `json:"port" envconfig:"SURVEYLINK_SERVER_PORT"`
}

type DataSourceConfig struct {
	Dns string `json:"dns" envconfig:"SURVEYLINK_DATA_SOURCE_DNS"`
}

type RedisConfig struct {
	Dns string `json:"dns" envconfig:"SURVEYLINK_REDIS_DNS"`
}

type S3Config struct {
	Region          string `json:"region" envconfig:"SURVEYLINK_S3_REGION"`
	Bucket          string `json:"bucket" envconfig:"SURVEYLINK_S3_BUCKET"`
	Endpoint        string `json:"endpoint" envconfig:"SURVEYLINK_S3_ENDPOINT"`
	AccessKeyID     string `json:"access_key_id" envconfig:"SURVEYLINK_S3_ACCESS_KEY_ID"`
	SecretAccessKey string `json:"secret_access_key" envconfig:"SURVEYLINK_S3_SECRET_ACCESS_KEY"`
}

type TracingConfig struct {
	Endpoint string `json:"endpoint" envconfig:"SURVEYLINK_TRACING_ENDPOINT"`
}

type RateLimitConfig struct {
	RequestsPerSecond  *float64 `json:"requests_per_second" envconfig:"SURVEYLINK_RATE_LIMIT_RPS"`
	Burst              *int     `json:"burst" envconfig:"SURVEYLINK_RATE_LIMIT_BURST"`
	CleanupIntervalSec *int     `json:"cleanup_interval_sec" envconfig:"SURVEYLINK_RATE_LIMIT_CLEANUP_INTERVAL_SEC"`
}

type SlackWebhook struct {
	WebhookUrl string `json:"webhook_url" envconfig:"SURVEYLINK_SLACK_WEBHOOK_URL"`
}

type Notification struct {
	Slack SlackWebhook `json:"slack"`
}

// LinkageConfig is the policy consumed by the index builder and the match cascade.
type LinkageConfig struct {
	// LookbackDays bounds the identity strategies: a transaction qualifies when it
	// happened at most this many days before the survey and not after it.
	LookbackDays int `json:"lookback_days" envconfig:"SURVEYLINK_LINKAGE_LOOKBACK_DAYS"`

	// MerchantLookbackDays is the number of calendar days walked back from the
	// survey date by the merchant/date fallback. The survey date itself is day 0.
	MerchantLookbackDays int `json:"merchant_lookback_days" envconfig:"SURVEYLINK_LINKAGE_MERCHANT_LOOKBACK_DAYS"`

	Workers            int                  `json:"workers" envconfig:"SURVEYLINK_LINKAGE_WORKERS"`
	CopyFields         []model.FieldMapping `json:"copy_fields" ignored:"true"`
	MerchantSeparators []string             `json:"merchant_separators" ignored:"true"`
	MerchantArticles   []string             `json:"merchant_articles" ignored:"true"`
}

// ColumnSet names the input columns that carry the fields the engine reads.
type ColumnSet struct {
	ID       string `json:"id"`
	Identity string `json:"identity"`
	Merchant string `json:"merchant"`
	Time     string `json:"time"`
}

type ColumnConfig struct {
	Transactions ColumnSet `json:"transactions"`
	Surveys      ColumnSet `json:"surveys"`
}

type Configuration struct {
	ProjectName  string           `json:"project_name" envconfig:"SURVEYLINK_PROJECT_NAME"`
	LogLevel     string           `json:"log_level" envconfig:"SURVEYLINK_LOG_LEVEL"`
	Server       ServerConfig     `json:"server"`
	DataSource   DataSourceConfig `json:"data_source"`
	Redis        RedisConfig      `json:"redis"`
	S3           S3Config         `json:"s3"`
	Tracing      TracingConfig    `json:"tracing"`
	Notification Notification     `json:"notification"`
	RateLimit    RateLimitConfig  `json:"rate_limit"`
	Linkage      LinkageConfig    `json:"linkage"`
	Columns      ColumnConfig     `json:"columns" ignored:"true"`
}

// DefaultLinkageConfig returns the lookback windows and copied fields used when nothing is configured.
func DefaultLinkageConfig() LinkageConfig {
	return LinkageConfig{
		LookbackDays:         DEFAULT_LOOKBACK_DAYS,
		MerchantLookbackDays: DEFAULT_MERCHANT_LOOKBACK_DAYS,
		Workers:              1,
		CopyFields:           DefaultCopyFields(),
		MerchantSeparators:   []string{" - "},
		MerchantArticles:     []string{"the ", "a "},
	}
}

// DefaultCopyFields lists the transaction fields downstream scoring reads.
func DefaultCopyFields() []model.FieldMapping {
	return []model.FieldMapping{
		{Source: "merchant_name", Target: "txn_merchant"},
		{Source: "occurred_at", Target: "txn_occurred_at"},
		{Source: "value", Target: "txn_value"},
		{Source: "category", Target: "txn_category"},
		{Source: "zone", Target: "txn_zone"},
		{Source: "rating", Target: "txn_rating"},
	}
}

// DefaultColumnConfig returns the column names of the standard warehouse and survey exports.
func DefaultColumnConfig() ColumnConfig {
	return ColumnConfig{
		Transactions: ColumnSet{ID: "transaction_id", Identity: "email", Merchant: "restaurant", Time: "order_time"},
		Surveys:      ColumnSet{ID: "survey_id", Identity: "email", Merchant: "restaurant", Time: "submitted_at"},
	}
}

func defaultConfiguration() Configuration {
	return Configuration{
		Linkage: DefaultLinkageConfig(),
		Columns: DefaultColumnConfig(),
	}
}

func loadConfigFromFile(file string) error {
	cnf := defaultConfiguration()
	_, err := os.Stat(file)
	if err == nil {
		f, err := os.Open(file)
		if err != nil {
			return err
		}
		defer f.Close()
		err = json.NewDecoder(f).Decode(&cnf)
		if err != nil {
			return err
		}

	} else if errors.Is(err, os.ErrNotExist) {
		log.Println("config json not passed, will use env variables")
	}

	// override config from environment variables
	err = envconfig.Process("surveylink", &cnf)
	if err != nil {
		return err
	}

	err = cnf.validateAndAddDefaults()
	if err != nil {
		return err
	}

	ConfigStore.Store(&cnf)
	return nil
}

func InitConfig(configFile string) error {
	logger()
	err := loadConfigFromFile(configFile)
	if err != nil {
		return err
	}
	cnf, _ := Fetch()
	setLogLevel(cnf.LogLevel)
	return nil
}

func Fetch() (*Configuration, error) {
	config := ConfigStore.Load()
	c, ok := config.(*Configuration)
	if !ok {
		return nil, errors.New("config not loaded from file. Create a json file called surveylink.json with your config ❌")
	}
	return c, nil
}

func (cnf *Configuration) validateAndAddDefaults() error {
	if cnf.ProjectName == "" {
		cnf.ProjectName = "Survey Linkage"
	}

	// Trim white spaces from fields
	cnf.ProjectName = strings.TrimSpace(cnf.ProjectName)
	cnf.Server.Port = strings.TrimSpace(cnf.Server.Port)
	cnf.DataSource.Dns = strings.TrimSpace(cnf.DataSource.Dns)
	cnf.Redis.Dns = strings.TrimSpace(cnf.Redis.Dns)

	if cnf.Server.Port == "" {
		cnf.Server.Port = DEFAULT_PORT
	}

	if cnf.Linkage.Workers == 0 {
		cnf.Linkage.Workers = 1
	}
	if len(cnf.Linkage.CopyFields) == 0 {
		cnf.Linkage.CopyFields = DefaultCopyFields()
	}
	if len(cnf.Linkage.MerchantSeparators) == 0 {
		cnf.Linkage.MerchantSeparators = []string{" - "}
	}

	if cnf.RateLimit.RequestsPerSecond != nil && cnf.RateLimit.Burst == nil {
		defaultBurst := 2 * int(*cnf.RateLimit.RequestsPerSecond)
		cnf.RateLimit.Burst = &defaultBurst
		logrus.Warnf("rate limit burst not specified. Setting default value: %d", defaultBurst)
	}
	if cnf.RateLimit.RequestsPerSecond == nil && cnf.RateLimit.Burst != nil {
		defaultRPS := float64(*cnf.RateLimit.Burst) / 2
		cnf.RateLimit.RequestsPerSecond = &defaultRPS
		logrus.Warnf("rate limit RPS not specified. Setting default value: %.2f", defaultRPS)
	}
	if cnf.RateLimit.CleanupIntervalSec == nil {
		defaultCleanup := 10800
		cnf.RateLimit.CleanupIntervalSec = &defaultCleanup
	}

	cnf.Columns.Transactions = cnf.Columns.Transactions.withDefaults(DefaultColumnConfig().Transactions)
	cnf.Columns.Surveys = cnf.Columns.Surveys.withDefaults(DefaultColumnConfig().Surveys)

	if err := cnf.Linkage.Validate(); err != nil {
		return fmt.Errorf("invalid linkage config: %w", err)
	}
	return nil
}

func (c ColumnSet) withDefaults(d ColumnSet) ColumnSet {
	if strings.TrimSpace(c.ID) == "" {
		c.ID = d.ID
	}
	if strings.TrimSpace(c.Identity) == "" {
		c.Identity = d.Identity
	}
	if strings.TrimSpace(c.Merchant) == "" {
		c.Merchant = d.Merchant
	}
	if strings.TrimSpace(c.Time) == "" {
		c.Time = d.Time
	}
	return c
}

// Validate checks the linkage policy. Zero lookbacks are allowed and restrict
// matching to the survey's own moment (identity) or calendar day (merchant).
func (l LinkageConfig) Validate() error {
	err := validation.ValidateStruct(&l,
		validation.Field(&l.LookbackDays, validation.Min(0)),
		validation.Field(&l.MerchantLookbackDays, validation.Min(0)),
		validation.Field(&l.Workers, validation.Min(1)),
		validation.Field(&l.CopyFields, validation.Required, validation.Each(validation.By(validateFieldMapping))),
	)
	if err != nil {
		return err
	}

	seen := make(map[string]bool, len(l.CopyFields))
	for _, f := range l.CopyFields {
		if seen[f.Target] {
			return fmt.Errorf("copy field target %q is used more than once", f.Target)
		}
		seen[f.Target] = true
	}
	return nil
}

func validateFieldMapping(value interface{}) error {
	f, ok := value.(model.FieldMapping)
	if !ok {
		return errors.New("must be a field mapping")
	}
	if strings.TrimSpace(f.Source) == "" || strings.TrimSpace(f.Target) == "" {
		return errors.New("source and target are required")
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

func setLogLevel(level string) {
	if level == "" {
		return
	}
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		logrus.Warnf("unknown log level %q, keeping %s", level, logrus.GetLevel())
		return
	}
	logrus.SetLevel(lvl)
}
