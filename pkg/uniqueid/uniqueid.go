// Package uniqueid derives the fingerprint that correlates the same logical
// test case across launches.
package uniqueid

import (
	"crypto/md5" //nolint:gosec // Not used for security.
	"encoding/hex"
	"strings"

	"github.com/ethpandaops/reportoor/pkg/reporting"
)

// Prefix marks generated fingerprints.
const Prefix = "auto:"

// Input is everything a fingerprint is derived from.
type Input struct {
	ProjectName   string
	LaunchName    string
	AncestorNames []string
	ItemName      string
	Parameters    []reporting.Parameter
}

// Generator produces fingerprints.
type Generator interface {
	Generate(in Input) string
}

// Compile-time interface check.
var _ Generator = (*md5Generator)(nil)

type md5Generator struct{}

// NewGenerator returns the default md5-based generator.
func NewGenerator() Generator {
	return &md5Generator{}
}

// Generate hashes project;launch;ancestors;item;parameters.
func (g *md5Generator) Generate(in Input) string {
	parts := make([]string, 0, 3+len(in.AncestorNames)+len(in.Parameters))
	parts = append(parts, in.ProjectName, in.LaunchName)
	parts = append(parts, in.AncestorNames...)
	parts = append(parts, in.ItemName)

	for _, p := range in.Parameters {
		if p.Key == "" {
			parts = append(parts, p.Value)

			continue
		}

		parts = append(parts, p.Key+"="+p.Value)
	}

	//nolint:gosec // Fingerprints correlate test cases, they are not secrets.
	sum := md5.Sum([]byte(strings.Join(parts, ";")))

	return Prefix + hex.EncodeToString(sum[:])
}
