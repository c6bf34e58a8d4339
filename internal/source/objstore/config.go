// Copyright 2024 The Cockroach Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
//
// SPDX-License-Identifier: Apache-2.0

package objstore

import (
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/cockroachdb/runpoll/internal/source/objstore/providers/s3"
	"github.com/pkg/errors"
	"github.com/spf13/pflag"
)

// defaultEndpoint is used when neither the flag nor the environment
// names an S3 service. The minio API requires an endpoint to be set.
const defaultEndpoint = "https://s3.amazonaws.com"

// Provider identifies the type of providers.
type Provider int

const (
	// UnknownStorage identifies other storage not currently supported.
	UnknownStorage Provider = iota
	// LocalStorage identifies a object stored backed by local storage.
	LocalStorage
	// S3Storage identifies a object stored backed by an S3 compatible
	// service.
	S3Storage
)

// Providers maps an endpoint URL scheme to a Provider.
var Providers = map[string]Provider{
	"file":  LocalStorage,
	"http":  S3Storage,
	"https": S3Storage,
}

// Config contains the configuration necessary for connecting to an
// object store. Bucket names are supplied when a bucket is opened.
type Config struct {
	// Endpoint selects the provider. A file:///dir URL treats each
	// subdirectory of dir as a bucket. An http(s) URL names an S3
	// compatible service; credentials may be passed as query
	// parameters or in the environment.
	Endpoint string
	Region   string

	// The following are computed
	provider Provider
	local    string     // Root of the local buckets.
	s3       *s3.Config // Template; Bucket is set by Open.
}

// Bind adds flags to the set.
func (c *Config) Bind(f *pflag.FlagSet) {
	f.StringVar(&c.Endpoint, "endpoint", "",
		"the object store endpoint: file:///path for local directories or the URL of an "+
			"S3 compatible service; defaults to $AWS_ENDPOINT or AWS S3")
	f.StringVar(&c.Region, "region", "", "the region of the S3 bucket")
}

// Preflight updates the configuration with sane defaults or returns an
// error if the endpoint cannot be used.
func (c *Config) Preflight() error {
	endpoint := c.Endpoint
	if endpoint == "" {
		endpoint = os.Getenv("AWS_ENDPOINT")
	}
	if endpoint == "" {
		endpoint = defaultEndpoint
	}
	u, err := url.Parse(endpoint)
	if err != nil {
		return errors.Wrap(err, "could not parse endpoint")
	}
	params := u.Query()
	c.provider = Providers[strings.ToLower(u.Scheme)]
	switch c.provider {
	case LocalStorage:
		if u.Path == "" {
			return errors.Errorf("missing directory in endpoint %s", endpoint)
		}
		c.local = u.Path
	case S3Storage:
		if u.Host == "" {
			return errors.Errorf("missing host in endpoint %s", endpoint)
		}
		c.s3 = &s3.Config{
			AccessKey:    paramValue(params, "AWS_ACCESS_KEY_ID"),
			Endpoint:     u.Host,
			Insecure:     u.Scheme == "http",
			Region:       c.Region,
			SecretKey:    paramValue(params, "AWS_SECRET_ACCESS_KEY"),
			SessionToken: paramValue(params, "AWS_SESSION_TOKEN"),
		}
	default:
		return errors.Errorf("unknown scheme %s", u.Scheme)
	}
	return nil
}

// Provider returns the provider selected by Preflight.
func (c *Config) Provider() Provider { return c.provider }

// bucketDir returns the directory holding a local bucket.
func (c *Config) bucketDir(name string) string {
	return filepath.Join(c.local, filepath.FromSlash(name))
}

// paramValue gets the value for the specified parameter from the URL.
// If not present in the URL, it retrieves a value from the environment.
func paramValue(params url.Values, key string) string {
	value := params.Get(key)
	if value != "" {
		return value
	}
	return os.Getenv(key)
}
