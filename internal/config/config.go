// Package config loads gateway settings from an optional config.yaml and
// the environment. Environment variables win; nested keys map to
// upper-case names joined with underscores (graph.base_url is
// GRAPH_BASE_URL).
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	"github.com/hashicorp/go-multierror"
	"github.com/spf13/viper"

	"github.com/neomorfeo/dmgateway/internal/domain"
)

// Config is the full gateway configuration.
type Config struct {
	Port             int
	DatabasePath     string
	APIKey           string
	Environment      domain.Environment
	HTTPTimeout      time.Duration
	HTTPMaxRedirects int
	LogLevel         slog.Level
	LogRedact        bool

	Graph     GraphConfig
	Custodian CustodianConfig
	MDM       MDMConfig
	Storage   StorageConfig
	Lists     ListsConfig
	Tracking  TrackingConfig

	DocumentTypes map[domain.DocumentType]domain.DocumentTypeInfo
}

// GraphConfig configures the directory (Microsoft Graph) client.
type GraphConfig struct {
	BaseURL      string
	TokenURL     string
	ClientID     string
	ClientSecret string
	Scopes       []string
	Hostname     string
	MaxRetries   uint64
}

// Validate implements validation.Validatable.
func (c GraphConfig) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.BaseURL, validation.Required, is.URL),
		validation.Field(&c.TokenURL, validation.Required, is.URL),
		validation.Field(&c.ClientID, validation.Required),
		validation.Field(&c.ClientSecret, validation.Required),
		validation.Field(&c.Scopes, validation.Required),
	)
}

// CustodianConfig configures the folder provisioning client.
type CustodianConfig struct {
	BaseURL       string
	APIKey        string
	TemplateID    string
	SubmitTimeout time.Duration
	MaxRetries    uint64
}

// Validate implements validation.Validatable.
func (c CustodianConfig) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.BaseURL, validation.Required, is.URL),
		validation.Field(&c.APIKey, validation.Required),
		validation.Field(&c.TemplateID, validation.Required),
		validation.Field(&c.SubmitTimeout, validation.Min(time.Duration(0))),
	)
}

// MDMConfig configures the numbering client.
type MDMConfig struct {
	BaseURL   string
	APIKey    string
	Requester string
}

// Validate implements validation.Validatable.
func (c MDMConfig) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.BaseURL, validation.Required, is.URL),
		validation.Field(&c.APIKey, validation.Required),
		validation.Field(&c.Requester, validation.Required),
	)
}

// StorageConfig configures the staging bucket.
type StorageConfig struct {
	Bucket      string
	Prefix      string
	Region      string
	Endpoint    string
	AccessKey   string
	SecretKey   string
	MaxFileSize int64
}

// Validate implements validation.Validatable.
func (c StorageConfig) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Bucket, validation.Required),
		validation.Field(&c.Region, validation.Required),
		validation.Field(&c.Endpoint, is.URL),
		validation.Field(&c.MaxFileSize, validation.Required, validation.Min(int64(1))),
	)
}

// ListsConfig names the directory lists and libraries.
type ListsConfig struct {
	TfisSite          string
	CaseSitesList     string
	MarketTermsList   string
	FacilityTermsList string
	CaseLibrary       string
}

// Validate implements validation.Validatable.
func (c ListsConfig) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.TfisSite, validation.Required),
		validation.Field(&c.CaseSitesList, validation.Required),
		validation.Field(&c.MarketTermsList, validation.Required),
		validation.Field(&c.FacilityTermsList, validation.Required),
		validation.Field(&c.CaseLibrary, validation.Required),
	)
}

// TrackingConfig configures background folder-job tracking.
type TrackingConfig struct {
	PollInterval time.Duration
	Deadline     time.Duration
	Workers      int
}

// Validate implements validation.Validatable.
func (c TrackingConfig) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.PollInterval, validation.Required, validation.Min(time.Second)),
		validation.Field(&c.Deadline, validation.Required, validation.Min(c.PollInterval)),
		validation.Field(&c.Workers, validation.Required, validation.Min(1)),
	)
}

// Validate checks the whole configuration and reports every problem.
func (c *Config) Validate() error {
	var result *multierror.Error

	if err := validation.ValidateStruct(c,
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
		validation.Field(&c.DatabasePath, validation.Required),
		validation.Field(&c.APIKey, validation.Required),
		validation.Field(&c.HTTPTimeout, validation.Required, validation.Min(time.Millisecond)),
		validation.Field(&c.HTTPMaxRedirects, validation.Min(0)),
	); err != nil {
		result = multierror.Append(result, err)
	}

	sections := []struct {
		name string
		v    validation.Validatable
	}{
		{"graph", c.Graph},
		{"custodian", c.Custodian},
		{"mdm", c.MDM},
		{"storage", c.Storage},
		{"lists", c.Lists},
		{"tracking", c.Tracking},
	}
	for _, s := range sections {
		if err := s.v.Validate(); err != nil {
			result = multierror.Append(result, fmt.Errorf("%s: %w", s.name, err))
		}
	}

	for _, dt := range domain.DocumentTypes {
		if _, ok := c.DocumentTypes[dt]; !ok {
			result = multierror.Append(result, fmt.Errorf("document_type_mappings: missing %q", dt))
		}
	}

	return result.ErrorOrNil()
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("port", 8080)
	v.SetDefault("database_path", "dmgateway.db")
	v.SetDefault("app_environment", string(domain.EnvironmentDev))
	v.SetDefault("http_timeout", "30s")
	v.SetDefault("http_max_redirects", 5)
	v.SetDefault("log_level", "info")
	v.SetDefault("log_redact", true)

	v.SetDefault("graph.base_url", "https://graph.microsoft.com/v1.0")
	v.SetDefault("graph.scopes", "https://graph.microsoft.com/.default")
	v.SetDefault("graph.max_retries", 3)

	v.SetDefault("custodian.template_id", "CBS Buyer")
	v.SetDefault("custodian.submit_timeout", "60s")
	v.SetDefault("custodian.max_retries", 3)

	v.SetDefault("mdm.requester", "dmgateway")

	v.SetDefault("storage.region", "eu-west-2")
	v.SetDefault("storage.max_file_size", 10<<20)

	v.SetDefault("lists.case_sites_list", "tfisCaseSitesList")
	v.SetDefault("lists.market_terms_list", "tfisMarketTermList")
	v.SetDefault("lists.facility_terms_list", "tfisFacilityList")
	v.SetDefault("lists.case_library", "Case Library")

	v.SetDefault("track.poll_interval", "30s")
	v.SetDefault("track.deadline", "2h")
	v.SetDefault("track.workers", 4)
}

// Load reads configuration. When path is empty, config.yaml is looked up
// in the working directory and ./config and a missing file is not an
// error; an explicit path must exist.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		v.AddConfigPath("config")
	}
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
		slog.Debug("no config file found, using defaults and environment")
	}

	return fromViper(v)
}

func fromViper(v *viper.Viper) (*Config, error) {
	var result *multierror.Error

	env, err := domain.Coerce(domain.Environment(strings.ToLower(v.GetString("app_environment"))), domain.Environments)
	if err != nil {
		result = multierror.Append(result, fmt.Errorf("app_environment: %w", err))
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(v.GetString("log_level"))); err != nil {
		result = multierror.Append(result, fmt.Errorf("log_level: %w", err))
	}

	docTypes, err := parseDocumentTypes(v.GetString("document_type_mappings"))
	if err != nil {
		result = multierror.Append(result, err)
	}

	cfg := &Config{
		Port:             v.GetInt("port"),
		DatabasePath:     v.GetString("database_path"),
		APIKey:           v.GetString("api_key"),
		Environment:      env,
		HTTPTimeout:      v.GetDuration("http_timeout"),
		HTTPMaxRedirects: v.GetInt("http_max_redirects"),
		LogLevel:         level,
		LogRedact:        v.GetBool("log_redact"),
		Graph: GraphConfig{
			BaseURL:      v.GetString("graph.base_url"),
			TokenURL:     v.GetString("graph.token_url"),
			ClientID:     v.GetString("graph.client_id"),
			ClientSecret: v.GetString("graph.client_secret"),
			Scopes:       splitList(v.GetString("graph.scopes")),
			Hostname:     v.GetString("graph.hostname"),
			MaxRetries:   v.GetUint64("graph.max_retries"),
		},
		Custodian: CustodianConfig{
			BaseURL:       v.GetString("custodian.base_url"),
			APIKey:        v.GetString("custodian.api_key"),
			TemplateID:    v.GetString("custodian.template_id"),
			SubmitTimeout: v.GetDuration("custodian.submit_timeout"),
			MaxRetries:    v.GetUint64("custodian.max_retries"),
		},
		MDM: MDMConfig{
			BaseURL:   v.GetString("mdm.base_url"),
			APIKey:    v.GetString("mdm.api_key"),
			Requester: v.GetString("mdm.requester"),
		},
		Storage: StorageConfig{
			Bucket:      v.GetString("storage.bucket"),
			Prefix:      v.GetString("storage.prefix"),
			Region:      v.GetString("storage.region"),
			Endpoint:    v.GetString("storage.endpoint"),
			AccessKey:   v.GetString("storage.access_key"),
			SecretKey:   v.GetString("storage.secret_key"),
			MaxFileSize: v.GetInt64("storage.max_file_size"),
		},
		Lists: ListsConfig{
			TfisSite:          v.GetString("lists.tfis_site"),
			CaseSitesList:     v.GetString("lists.case_sites_list"),
			MarketTermsList:   v.GetString("lists.market_terms_list"),
			FacilityTermsList: v.GetString("lists.facility_terms_list"),
			CaseLibrary:       v.GetString("lists.case_library"),
		},
		Tracking: TrackingConfig{
			PollInterval: v.GetDuration("track.poll_interval"),
			Deadline:     v.GetDuration("track.deadline"),
			Workers:      v.GetInt("track.workers"),
		},
		DocumentTypes: docTypes,
	}

	if err := cfg.Validate(); err != nil {
		result = multierror.Append(result, err)
	}
	if err := result.ErrorOrNil(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// parseDocumentTypes decodes DOCUMENT_TYPE_MAPPINGS, a JSON object keyed
// by document type name:
//
//	{"Legal Document": {"title": "Legal", "typeId": "5"}}
func parseDocumentTypes(raw string) (map[domain.DocumentType]domain.DocumentTypeInfo, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}

	var byName map[string]domain.DocumentTypeInfo
	if err := json.Unmarshal([]byte(raw), &byName); err != nil {
		return nil, fmt.Errorf("document_type_mappings: %w", err)
	}

	var result *multierror.Error
	out := make(map[domain.DocumentType]domain.DocumentTypeInfo, len(byName))
	for name, info := range byName {
		dt, err := domain.Coerce(domain.DocumentType(name), domain.DocumentTypes)
		if err != nil {
			result = multierror.Append(result, fmt.Errorf("document_type_mappings: %w", err))
			continue
		}
		if info.TypeID == "" {
			result = multierror.Append(result, fmt.Errorf("document_type_mappings: %q has no typeId", name))
			continue
		}
		out[dt] = info
	}
	return out, result.ErrorOrNil()
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
