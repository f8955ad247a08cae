/*
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

package env

import (
	"os"
	"strconv"
	"time"

	"github.com/samber/lo"
)

// WithDefaultInt returns the int value of the supplied environment variable or, if not present,
// the supplied default value. If the int conversion fails, returns the default
func WithDefaultInt(key string, def int) int {
	val, ok := lookup(key)
	if !ok {
		return def
	}
	i, err := strconv.Atoi(val)
	if err != nil {
		return def
	}
	return i
}

// WithDefaultString returns the string value of the supplied environment variable or, if not present or empty,
// the supplied default value.
func WithDefaultString(key string, def string) string {
	val, ok := lookup(key)
	if !ok {
		return def
	}
	return val
}

// WithDefaultBool returns the boolean value of the supplied environment variable or, if not present,
// the supplied default value.
func WithDefaultBool(key string, def bool) bool {
	val, ok := lookup(key)
	if !ok {
		return def
	}
	parsedVal, err := strconv.ParseBool(val)
	if err != nil {
		return def
	}
	return parsedVal
}

// WithDefaultDuration returns the duration value of the supplied environment variable or, if not present,
// the supplied default value. Bare integers are read as seconds. If the conversion fails, returns the default
func WithDefaultDuration(key string, def time.Duration) time.Duration {
	val, ok := lookup(key)
	if !ok {
		return def
	}
	if seconds, err := strconv.Atoi(val); err == nil {
		return time.Duration(seconds) * time.Second
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return def
	}
	return d
}

// lookup treats a variable set to the empty string as unset. Task definitions often template blank values.
func lookup(key string) (string, bool) {
	val, ok := os.LookupEnv(key)
	return val, ok && val != ""
}

// FirstNonEmpty returns the first of the supplied environment variables that is set to a non-empty value or,
// if none are, the supplied default value.
func FirstNonEmpty(def string, keys ...string) string {
	val, ok := lo.Find(lo.Map(keys, func(k string, _ int) string { return os.Getenv(k) }), func(v string) bool { return v != "" })
	if !ok {
		return def
	}
	return val
}
