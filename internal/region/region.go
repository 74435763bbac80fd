// Package region resolves the deployment region of the running process.
//
// Resolution happens once at boot: an explicit override wins, otherwise a
// fixed, ordered list of platform signals is consulted and the first
// non-empty answer is used. When nothing resolves, the Unresolved sentinel is
// returned instead of an empty string. The result is stored in the process
// configuration and handed to consumers; it is never re-evaluated.
package region

import (
	"os"
	"strings"
)

// Unresolved is the region reported when no source yields a value.
const Unresolved Region = "unresolved"

// Source names reported in a Resolution besides the signal names.
const (
	SourceOverride = "override"
	SourceNone     = "none"
)

// Region is a deployment region tag as reported by the platform.
type Region string

// Resolved reports whether r carries a real region.
func (r Region) Resolved() bool {
	return r != "" && r != Unresolved
}

func (r Region) String() string {
	if r == "" {
		return string(Unresolved)
	}
	return string(r)
}

// Getenv looks up an environment variable; os.Getenv in production.
type Getenv func(key string) string

// Signal is one platform region detector.
type Signal struct {
	Name   string
	Detect func(getenv Getenv) string
}

// envSignal reads the first non-empty of keys.
func envSignal(name string, keys ...string) Signal {
	return Signal{
		Name: name,
		Detect: func(getenv Getenv) string {
			for _, k := range keys {
				if v := strings.TrimSpace(getenv(k)); v != "" {
					return v
				}
			}
			return ""
		},
	}
}

// DefaultSignals are consulted in this order.
var DefaultSignals = []Signal{
	envSignal("fly", "FLY_REGION"),
	envSignal("railway", "RAILWAY_REPLICA_REGION"),
	envSignal("vercel", "VERCEL_REGION"),
	envSignal("aws", "AWS_REGION", "AWS_DEFAULT_REGION"),
	envSignal("azure", "REGION_NAME"),
}

// Resolution is the outcome of Detect.
type Resolution struct {
	Region Region
	Source string
}

// Detector resolves the deployment region.
type Detector struct {
	Override string
	Signals  []Signal
	Getenv   Getenv
}

// NewDetector returns a detector over the process environment and the
// default signals.
func NewDetector(override string) *Detector {
	return &Detector{
		Override: override,
		Signals:  DefaultSignals,
		Getenv:   os.Getenv,
	}
}

// Detect runs the override and the signals in order.
func (d *Detector) Detect() Resolution {
	if v := clean(d.Override); v != "" {
		return Resolution{Region: Region(v), Source: SourceOverride}
	}

	getenv := d.Getenv
	if getenv == nil {
		getenv = os.Getenv
	}
	for _, s := range d.Signals {
		if v := clean(s.Detect(getenv)); v != "" {
			return Resolution{Region: Region(v), Source: s.Name}
		}
	}
	return Resolution{Region: Unresolved, Source: SourceNone}
}

func clean(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
