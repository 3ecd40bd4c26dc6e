package objectkey

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Strategy names accepted by New
const (
	StrategyFlat    = "flat"
	StrategySharded = "sharded"
	StrategyTenant  = "tenant"
)

// Generator names objects for presigned uploads when the caller does not
// pick a key
type Generator interface {
	// GenerateKey creates an object key from a fresh upload id
	GenerateKey(uploadID uuid.UUID, metadata *KeyMetadata) string
}

// KeyMetadata contains information that influences key generation
type KeyMetadata struct {
	FileName    string
	ContentType string
	TenantID    string
}

// FlatGenerator stores every upload under a single prefix:
// uploads/{id}/{filename}
type FlatGenerator struct {
	Prefix string
}

func NewFlatGenerator() *FlatGenerator {
	return &FlatGenerator{Prefix: "uploads"}
}

func (g *FlatGenerator) GenerateKey(uploadID uuid.UUID, metadata *KeyMetadata) string {
	if metadata != nil && metadata.FileName != "" {
		return fmt.Sprintf("%s/%s/%s", g.Prefix, uploadID, sanitizeFilename(metadata.FileName))
	}
	return fmt.Sprintf("%s/%s", g.Prefix, uploadID)
}

// ShardedGenerator spreads uploads over Git-style shard directories:
// uploads/ab/cd1234ef5678_filename
type ShardedGenerator struct {
	Prefix string
	// ShardLength controls how many characters to use for sharding (default: 2)
	ShardLength int
}

func NewShardedGenerator() *ShardedGenerator {
	return &ShardedGenerator{
		Prefix:      "uploads",
		ShardLength: 2,
	}
}

func (g *ShardedGenerator) GenerateKey(uploadID uuid.UUID, metadata *KeyMetadata) string {
	id := strings.ReplaceAll(uploadID.String(), "-", "")

	shardLength := g.ShardLength
	if shardLength <= 0 {
		shardLength = 2
	}
	if shardLength > len(id) {
		shardLength = len(id)
	}

	filename := id[shardLength:]
	if metadata != nil && metadata.FileName != "" {
		filename = fmt.Sprintf("%s_%s", filename, sanitizeFilename(metadata.FileName))
	}

	return fmt.Sprintf("%s/%s/%s", g.Prefix, id[:shardLength], filename)
}

// TenantGenerator adds tenant isolation to another generator:
// tenants/{tenant}/{base key}
type TenantGenerator struct {
	BaseGenerator Generator
	DefaultTenant string
}

func NewTenantGenerator(base Generator) *TenantGenerator {
	if base == nil {
		base = NewShardedGenerator()
	}
	return &TenantGenerator{
		BaseGenerator: base,
		DefaultTenant: "default",
	}
}

func (g *TenantGenerator) GenerateKey(uploadID uuid.UUID, metadata *KeyMetadata) string {
	tenant := g.DefaultTenant
	if metadata != nil && metadata.TenantID != "" {
		tenant = sanitizePathComponent(metadata.TenantID)
	}
	return fmt.Sprintf("tenants/%s/%s", tenant, g.BaseGenerator.GenerateKey(uploadID, metadata))
}

// New returns the generator for a strategy name. An empty name selects the
// sharded layout.
func New(strategy string) (Generator, error) {
	switch strings.ToLower(strategy) {
	case StrategyFlat:
		return NewFlatGenerator(), nil
	case "", StrategySharded:
		return NewShardedGenerator(), nil
	case StrategyTenant:
		return NewTenantGenerator(nil), nil
	default:
		return nil, fmt.Errorf("unknown object key strategy %q", strategy)
	}
}

var unsafeChars = strings.NewReplacer(
	"/", "_",
	"\\", "_",
	":", "_",
	"*", "_",
	"?", "_",
	"\"", "_",
	"<", "_",
	">", "_",
	"|", "_",
	" ", "_",
)

func sanitizeFilename(filename string) string {
	return unsafeChars.Replace(filename)
}

func sanitizePathComponent(component string) string {
	return strings.ToLower(unsafeChars.Replace(component))
}
