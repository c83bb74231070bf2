// Package disposition classifies processing errors into automatic
// dispositions: resubmit, retry with backoff, or permanently unavailable.
// Rules are an ordered list of case-insensitive substring matches; the
// first matching rule wins, so specific conditions must precede the
// generic network/IO matches at the bottom of the table.
package disposition

import (
	"strings"
	"time"

	"github.com/ternarybob/orbiter/internal/common"
	"github.com/ternarybob/orbiter/internal/models"
)

// Disposition is the classifier's verdict on an error.
type Disposition struct {
	Status     models.SceneStatus // submitted, unavailable or retry
	Reason     string             // user-facing note
	RetryAfter *time.Time         // set for retry dispositions
	RetryLimit int                // set for retry dispositions
	// CorruptInput marks the gzip corruption signature; the caller sends
	// an operator alert when the affected product is Landsat-family.
	CorruptInput bool
}

type rule struct {
	patterns      []string
	status        models.SceneStatus
	reason        string
	retryCategory string
	corruptInput  bool
}

// Classifier resolves error text against the ordered rule table.
type Classifier struct {
	cfg   common.ProductionConfig
	rules []rule
	now   func() time.Time
}

// NewClassifier builds the classifier with retry policy from configuration.
func NewClassifier(cfg common.ProductionConfig) *Classifier {
	return &Classifier{
		cfg:   cfg,
		rules: ruleTable,
		now:   time.Now,
	}
}

// ruleTable is ordered: corrupt-input and data-availability conditions
// first, permanent failures next, transient infrastructure last so that a
// specific signature is never swallowed by the generic network match.
var ruleTable = []rule{
	{
		patterns: []string{
			"gzip: stdin: invalid compressed data--format violated",
			"gzip: stdin: invalid compressed data--crc error",
		},
		status:        models.SceneStatusRetry,
		reason:        "Corrupt input data on cache, re-pulling from the archive",
		retryCategory: "cache_repull",
		corruptInput:  true,
	},
	{
		patterns: []string{"no such file or directory"},
		status:   models.SceneStatusSubmitted,
		reason:   "Input no longer on cache, reordering from the archive",
	},
	{
		patterns: []string{
			"could not find auxnm data file",
			"could not find auxiliary data",
			"missing auxiliary data",
		},
		status:        models.SceneStatusRetry,
		reason:        "Auxiliary correction data not yet available",
		retryCategory: "aux_data",
	},
	{
		patterns: []string{
			"solar zenith angle out of range",
			"solar zenith angle is out of range",
			"night scene",
		},
		status: models.SceneStatusUnavailable,
		reason: "Night scene, solar zenith angle out of range",
	},
	{
		patterns: []string{
			"brightness temperature is not available for oli-only",
			"thermal band not present",
		},
		status: models.SceneStatusUnavailable,
		reason: "OLI-only scenes have no thermal band",
	},
	{
		patterns: []string{"surface reflectance is not available for oli-only"},
		status:   models.SceneStatusUnavailable,
		reason:   "Surface reflectance is not available for OLI-only scenes",
	},
	{
		patterns: []string{"dswe is not available for"},
		status:   models.SceneStatusUnavailable,
		reason:   "DSWE is not available for this sensor",
	},
	{
		patterns: []string{
			"error in gdalwarp",
			"failed to reproject",
		},
		status: models.SceneStatusUnavailable,
		reason: "Reprojection failed for the requested parameters",
	},
	{
		patterns: []string{
			"outside the boundaries of the auxiliary data",
			"not within the auxiliary data bounds",
		},
		status: models.SceneStatusUnavailable,
		reason: "Scene is outside the auxiliary data spatial bounds",
	},
	{
		patterns: []string{
			"cannot create temp file for here-document",
			"error running sixs",
		},
		status:        models.SceneStatusRetry,
		reason:        "Atmospheric correction temp-file failure, retrying",
		retryCategory: "sixs",
	},
	{
		patterns: []string{
			"ssh_exchange_identification",
			"error connecting via ssh",
		},
		status:        models.SceneStatusRetry,
		reason:        "SSH failure reaching the processing node, retrying",
		retryCategory: "ssh",
	},
	{
		patterns:      []string{"lock wait timeout exceeded"},
		status:        models.SceneStatusRetry,
		reason:        "Database lock timeout, retrying",
		retryCategory: "db_lock",
	},
	{
		patterns: []string{
			"soapfault",
			"archive service unavailable",
		},
		status:        models.SceneStatusRetry,
		reason:        "Archive service connection failure, retrying",
		retryCategory: "archive",
	},
	{
		patterns: []string{
			"no space left on device",
			"read-only file system",
			"failed writing output",
		},
		status:        models.SceneStatusRetry,
		reason:        "Node write failure, retrying on another node",
		retryCategory: "node",
	},
	{
		patterns: []string{
			"connection timed out",
			"connection reset by peer",
			"connection refused",
			"read timed out",
			"network is unreachable",
			"http error",
		},
		status:        models.SceneStatusRetry,
		reason:        "Network error, retrying",
		retryCategory: "network",
	},
}

// Classify resolves error text to a disposition. Returns false when no rule
// matches; the caller must fall back to the generic error status.
func (c *Classifier) Classify(errorText string) (*Disposition, bool) {
	lower := strings.ToLower(errorText)

	for _, r := range c.rules {
		for _, pattern := range r.patterns {
			if !strings.Contains(lower, pattern) {
				continue
			}
			d := &Disposition{
				Status:       r.status,
				Reason:       r.reason,
				CorruptInput: r.corruptInput,
			}
			if r.status == models.SceneStatusRetry {
				policy := c.cfg.RetryRuleFor(r.retryCategory)
				after := c.now().Add(policy.Timeout)
				d.RetryAfter = &after
				d.RetryLimit = policy.Limit
			}
			return d, true
		}
	}
	return nil, false
}
