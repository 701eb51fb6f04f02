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
	"strings"

	"github.com/blnkfinance/surveylink/config"
)

// Normalizer turns free-text identity and merchant fields into comparable keys.
// It holds no state beyond its configuration and is safe for concurrent use.
type Normalizer struct {
	separators []string
	articles   []string
}

// NewNormalizer builds a Normalizer from the merchant naming rules in cfg.
func NewNormalizer(cfg config.LinkageConfig) Normalizer {
	n := Normalizer{}
	for _, sep := range cfg.MerchantSeparators {
		if sep != "" {
			n.separators = append(n.separators, strings.ToLower(sep))
		}
	}
	for _, article := range cfg.MerchantArticles {
		if a := strings.ToLower(strings.TrimLeft(article, " ")); strings.TrimSpace(a) != "" {
			n.articles = append(n.articles, a)
		}
	}
	return n
}

// DefaultNormalizer uses the " - " separator and strips "the " and "a ".
func DefaultNormalizer() Normalizer {
	return NewNormalizer(config.DefaultLinkageConfig())
}

// Identity trims and lower-cases an identity such as an email address.
// It reports false when nothing is left.
func (n Normalizer) Identity(raw string) (string, bool) {
	key := strings.ToLower(strings.TrimSpace(raw))
	if key == "" {
		return "", false
	}
	return key, true
}

// Merchant reduces a merchant name to its brand key. "The Pho House - Camden"
// becomes "pho house". Every non-blank name yields a key. Blank input reports
// false: an empty merchant field is absent, and strategies keyed on the
// merchant skip the survey rather than matching on an empty brand.
//
// Normalizing a key again returns the same key.
func (n Normalizer) Merchant(raw string) (string, bool) {
	key := strings.ToLower(strings.TrimSpace(raw))
	if key == "" {
		return "", false
	}

	if at := n.firstSeparator(key); at > 0 {
		if head := strings.TrimSpace(key[:at]); head != "" {
			key = head
		}
	}

	for {
		stripped := false
		for _, article := range n.articles {
			if strings.HasPrefix(key, article) {
				rest := strings.TrimSpace(key[len(article):])
				if rest == "" {
					break
				}
				key = rest
				stripped = true
			}
		}
		if !stripped {
			break
		}
	}
	return key, true
}

// firstSeparator returns the position of the earliest separator in s, or -1.
func (n Normalizer) firstSeparator(s string) int {
	at := -1
	for _, sep := range n.separators {
		if i := strings.Index(s, sep); i >= 0 && (at < 0 || i < at) {
			at = i
		}
	}
	return at
}

// NormalizeIdentity normalizes an identity with the default rules.
func NormalizeIdentity(raw string) (string, bool) {
	return DefaultNormalizer().Identity(raw)
}

// NormalizeMerchant normalizes a merchant name with the default rules.
func NormalizeMerchant(raw string) (string, bool) {
	return DefaultNormalizer().Merchant(raw)
}
