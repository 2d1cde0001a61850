package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// EnvPrefix prefixes every environment variable read by LoadEnv.
const EnvPrefix = "LODGING"

// Env holds process settings read from the environment (LODGING_*). Report
// fields left empty here keep the value from the config file.
type Env struct {
	HotelsPath    string        `envconfig:"HOTELS_PATH"`
	ListingsURL   string        `envconfig:"LISTINGS_URL"`
	City          string        `envconfig:"CITY"`
	Date          string        `envconfig:"DATE"`
	RemoteTimeout time.Duration `envconfig:"REMOTE_TIMEOUT"`
	StorageKind   string        `envconfig:"STORAGE_KIND"`
	StorageDSN    string        `envconfig:"STORAGE_DSN"`

	Addr           string `envconfig:"ADDR" default:":8080"`
	MetricsBackend string `envconfig:"METRICS_BACKEND" default:"none"`
	PushgatewayURL string `envconfig:"PUSHGATEWAY_URL"`
	DatadogAddr    string `envconfig:"DATADOG_ADDR"`
}

// LoadEnv loads the given .env files (".env" when none are named) into the
// process environment and decodes the LODGING_* variables. A missing .env
// file is not an error; variables already set in the environment win over
// the file.
func LoadEnv(files ...string) (Env, error) {
	if err := godotenv.Load(files...); err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return Env{}, fmt.Errorf("load .env: %w", err)
		}
		log.Printf("config: no .env file found, using process environment")
	}

	var e Env
	if err := envconfig.Process(EnvPrefix, &e); err != nil {
		return Env{}, fmt.Errorf("environment: %w", err)
	}
	return e, nil
}

// Apply overlays the non-empty environment settings onto r.
func (e Env) Apply(r *Report) {
	if e.HotelsPath != "" {
		r.Hotels.Source = Source{Kind: "file", Path: e.HotelsPath}
	}
	if e.ListingsURL != "" {
		r.Listings.Source.Kind = "http"
		r.Listings.Source.URL = e.ListingsURL
	}
	if e.City != "" || e.Date != "" {
		vars := make(map[string]string, len(r.Listings.Source.Vars)+2)
		for k, v := range r.Listings.Source.Vars {
			vars[k] = v
		}
		if e.City != "" {
			vars["city"] = e.City
		}
		if e.Date != "" {
			vars["date"] = e.Date
		}
		r.Listings.Source.Vars = vars
	}
	if e.RemoteTimeout > 0 {
		r.Remote.Timeout = Duration(e.RemoteTimeout)
	}
	if e.StorageKind != "" {
		r.Storage.Kind = e.StorageKind
	}
	if e.StorageDSN != "" {
		r.Storage.DSN = e.StorageDSN
	}
}
