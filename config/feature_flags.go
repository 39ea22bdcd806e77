package config

import (
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"
)

// FeatureFlags toggles optional parts of the desk at startup.
// Every flag can be overridden with FEATURE_<NAME>=true|false.
type FeatureFlags struct {
	mu       sync.RWMutex
	features map[string]*Feature
}

// Feature represents a single feature flag.
type Feature struct {
	Name        string
	Description string
	Enabled     bool
}

// Predefined feature flag names.
const (
	// Publish rental.overdue after each period ends.
	FeatureOverdueNotices = "overdue.notices"

	// Use the Redis item lock when Redis is enabled.
	FeatureDistributedLock = "lock.distributed"

	// Cache borrower lookups in Redis when Redis is enabled.
	FeatureBorrowerCache = "cache.borrowers"

	// Fan domain events out to other instances over Redis pub/sub.
	FeatureEventFanout = "events.fanout"
)

// LoadFeatureFlags loads feature flags from environment variables.
func LoadFeatureFlags() *FeatureFlags {
	ff := &FeatureFlags{features: make(map[string]*Feature)}
	ff.initializeDefaults()
	ff.loadFromEnvironment()
	return ff
}

func (ff *FeatureFlags) initializeDefaults() {
	for _, f := range []Feature{
		{Name: FeatureOverdueNotices, Description: "Publish overdue notices after each period", Enabled: true},
		{Name: FeatureDistributedLock, Description: "Serialize item changes across instances through Redis", Enabled: true},
		{Name: FeatureBorrowerCache, Description: "Read-through Redis cache for borrower lookups", Enabled: true},
		{Name: FeatureEventFanout, Description: "Redis pub/sub fan-out of domain events", Enabled: false},
	} {
		f := f
		ff.features[f.Name] = &f
	}
}

// loadFromEnvironment applies FEATURE_<NAME> overrides.
// Example: FEATURE_EVENTS_FANOUT=true
func (ff *FeatureFlags) loadFromEnvironment() {
	for name, feature := range ff.features {
		if val := os.Getenv(featureNameToEnvKey(name)); val != "" {
			if b, err := strconv.ParseBool(val); err == nil {
				feature.Enabled = b
			}
		}
	}
}

// featureNameToEnvKey converts feature name to environment variable key.
// "overdue.notices" -> "FEATURE_OVERDUE_NOTICES"
func featureNameToEnvKey(name string) string {
	key := strings.ToUpper(name)
	key = strings.ReplaceAll(key, ".", "_")
	return "FEATURE_" + key
}

// IsEnabled reports whether a feature is on. Unknown features are off.
func (ff *FeatureFlags) IsEnabled(featureName string) bool {
	ff.mu.RLock()
	defer ff.mu.RUnlock()

	feature, ok := ff.features[featureName]
	return ok && feature.Enabled
}

// EnableFeature turns a feature on.
func (ff *FeatureFlags) EnableFeature(featureName string) error {
	return ff.set(featureName, true)
}

// DisableFeature turns a feature off.
func (ff *FeatureFlags) DisableFeature(featureName string) error {
	return ff.set(featureName, false)
}

func (ff *FeatureFlags) set(featureName string, enabled bool) error {
	ff.mu.Lock()
	defer ff.mu.Unlock()

	feature, ok := ff.features[featureName]
	if !ok {
		return &FeatureFlagError{Feature: featureName, Message: "feature not found"}
	}
	feature.Enabled = enabled
	return nil
}

// Enabled returns the names of all enabled features, sorted.
func (ff *FeatureFlags) Enabled() []string {
	ff.mu.RLock()
	defer ff.mu.RUnlock()

	var out []string
	for name, f := range ff.features {
		if f.Enabled {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}

// FeatureFlagError represents a feature flag error.
type FeatureFlagError struct {
	Feature string
	Message string
}

func (e *FeatureFlagError) Error() string {
	return "feature flag " + e.Feature + ": " + e.Message
}
