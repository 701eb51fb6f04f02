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

package surveylink

import (
	"embed"

	"github.com/blnkfinance/surveylink/config"
	"github.com/blnkfinance/surveylink/database"
	"github.com/blnkfinance/surveylink/internal/cache"
)

//go:embed sql/*.sql
var SQLFiles embed.FS

// Linker runs the linkage engine and, when a datasource is attached, keeps a record of every run.
type Linker struct {
	cfg        config.LinkageConfig
	normalizer Normalizer
	enricher   Enricher
	cascade    []Strategy
	datasource database.IDataSource
	sink       LinkedRecordSink
	cache      cache.Cache
	notify     func(error)
}

// Option configures a Linker.
type Option func(*Linker)

// WithDataSource persists runs and their linked records.
func WithDataSource(ds database.IDataSource) Option {
	return func(l *Linker) {
		l.datasource = ds
	}
}

// WithSink sends linked records to sink instead of the datasource. Run rows
// still go to the datasource when one is attached.
func WithSink(sink LinkedRecordSink) Option {
	return func(l *Linker) {
		l.sink = sink
	}
}

// WithCache caches finished runs for GetLinkageRun.
func WithCache(c cache.Cache) Option {
	return func(l *Linker) {
		l.cache = c
	}
}

// WithCascade replaces the default strategy order.
func WithCascade(strategies ...Strategy) Option {
	return func(l *Linker) {
		l.cascade = strategies
	}
}

// WithNotifier is called with the error of every failed run.
func WithNotifier(fn func(error)) Option {
	return func(l *Linker) {
		l.notify = fn
	}
}

// NewLinker validates cfg and builds a Linker. Without options it runs purely in memory.
func NewLinker(cfg config.LinkageConfig, opts ...Option) (*Linker, error) {
	if cfg.Workers == 0 {
		cfg.Workers = 1
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	l := &Linker{
		cfg:        cfg,
		normalizer: NewNormalizer(cfg),
		enricher:   NewEnricher(cfg.CopyFields),
		cascade:    DefaultCascade(),
		notify:     func(error) {},
	}
	for _, opt := range opts {
		opt(l)
	}
	if len(l.cascade) == 0 {
		l.cascade = DefaultCascade()
	}
	return l, nil
}

// recordSink returns where linked records are written, or nil when they are not kept.
func (l *Linker) recordSink() LinkedRecordSink {
	if l.sink != nil {
		return l.sink
	}
	if l.datasource != nil {
		return l.datasource
	}
	return nil
}

// Config returns the linkage configuration the Linker was built with.
func (l *Linker) Config() config.LinkageConfig {
	return l.cfg
}

// Targets returns the copy-field target names in output order.
func (l *Linker) Targets() []string {
	return l.enricher.Targets()
}
