package cache

import (
	"regexp"
	"strings"
)

// GlobalScope is the scope of entries that belong to no tenant
const GlobalScope = "global"

// TenantIDPattern 租户与命名空间只允许这些字符，不能含 ':' 或 glob 元字符，
// 否则一个租户的 key 或 SCAN 模式会落进另一个租户的范围
var TenantIDPattern = regexp.MustCompile(`^[A-Za-z0-9_.-]{1,128}$`)

// Scope maps an empty tenant to the global scope
func Scope(tenantID string) string {
	tenantID = strings.TrimSpace(tenantID)
	if tenantID == "" {
		return GlobalScope
	}
	return tenantID
}

// ValidateScope rejects tenant ids that cannot be used as a key segment.
// The global scope is reserved for entries stored without a tenant.
func ValidateScope(tenantID string) error {
	tenantID = strings.TrimSpace(tenantID)
	switch {
	case tenantID == "":
		return nil
	case tenantID == GlobalScope:
		return ErrInvalidKey.WithMsgf("tenant id %q is reserved", tenantID)
	case !TenantIDPattern.MatchString(tenantID):
		return ErrInvalidKey.WithMsgf("tenant id %q must match %s", tenantID, TenantIDPattern)
	}
	return nil
}

func validateNamespace(namespace string) error {
	if !TenantIDPattern.MatchString(namespace) {
		return ErrInvalidKey.WithMsgf("namespace %q must match %s", namespace, TenantIDPattern)
	}
	return nil
}

// keyBuilder renders every key the manager touches. Entries and tag sets have
// separate roots so no tenant name can reach a tag set.
type keyBuilder struct {
	prefix    string
	tagPrefix string
	// hashTag wraps the scope in {} so one tenant's entries and tag sets share a
	// cluster slot
	hashTag bool
}

func (b keyBuilder) scope(tenantID string) string {
	s := Scope(tenantID)
	if b.hashTag {
		return "{" + s + "}"
	}
	return s
}

// entry cache:{scope}:{namespace}:{identifier}
func (b keyBuilder) entry(tenantID, namespace, identifier string) string {
	return b.prefix + ":" + b.scope(tenantID) + ":" + namespace + ":" + identifier
}

// tag cache-tag:{scope}:{tag}
func (b keyBuilder) tag(tenantID, tag string) string {
	return b.tagPrefix + ":" + b.scope(tenantID) + ":" + tag
}

// tenantPattern matches every entry of one tenant. Scope and namespace are
// validated, so neither carries glob characters.
func (b keyBuilder) tenantPattern(tenantID string) string {
	return b.prefix + ":" + b.scope(tenantID) + ":*"
}

// namespacePattern matches one namespace of one tenant
func (b keyBuilder) namespacePattern(namespace, tenantID string) string {
	return b.prefix + ":" + b.scope(tenantID) + ":" + namespace + ":*"
}

func validateSegments(tenantID, namespace string) error {
	if err := ValidateScope(tenantID); err != nil {
		return err
	}
	return validateNamespace(namespace)
}
