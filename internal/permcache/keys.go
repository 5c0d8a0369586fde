package permcache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strconv"
	"strings"

	"github.com/pmhub/pmhub/internal/permission"
)

// Namespaces below the key prefix.
const (
	nsUser     = "user"
	nsResource = "resource"
	nsBatch    = "batch"
	nsRole     = "role"
	nsMatrix   = "matrix"
	nsList     = "list"
	nsDetail   = "detail"
	nsActive   = "active"
)

// Keys builds every cache key of the manager. All keys are pure functions of their inputs.
type Keys struct {
	Prefix string
}

func (k Keys) join(parts ...string) string {
	return k.Prefix + ":" + strings.Join(parts, ":")
}

func u64(id uint64) string { return strconv.FormatUint(id, 10) }
func uid(id uint) string   { return strconv.FormatUint(uint64(id), 10) }

// User is the key of a user's permission list.
func (k Keys) User(userID uint64) string {
	return k.join(nsUser, u64(userID))
}

// UserRoles is the key of a user's effective role codes.
func (k Keys) UserRoles(userID uint64) string {
	return k.join(nsUser, u64(userID), "roles")
}

// Resource is the key of one access check. resourceID is appended when set.
func (k Keys) Resource(userID uint64, resourceType, actionType, resourceID string) string {
	parts := []string{nsResource, u64(userID), resourceType, actionType}
	if resourceID != "" {
		parts = append(parts, resourceID)
	}

	return k.join(parts...)
}

// Batch is the key of a batch check. checks must be canonical.
func (k Keys) Batch(userID uint64, checks []permission.Check) string {
	h := sha256.New()
	for _, c := range checks {
		h.Write([]byte(c.Key()))
		h.Write([]byte{'\n'})
	}

	return k.join(nsBatch, u64(userID), hex.EncodeToString(h.Sum(nil)))
}

// Role is the key of a role's granted permissions.
func (k Keys) Role(roleID uint) string {
	return k.join(nsRole, uid(roleID))
}

// Matrix is the key of the role/permission matrix.
func (k Keys) Matrix() string {
	return k.join(nsMatrix, "all")
}

// List is the key of one filtered permission page.
func (k Keys) List(f permission.Filter) string {
	b, _ := json.Marshal(f.Normalize()) //nolint:errchkjson
	sum := sha256.Sum256(b)

	return k.join(nsList, hex.EncodeToString(sum[:16]))
}

// Detail is the key of one permission.
func (k Keys) Detail(permissionID uint) string {
	return k.join(nsDetail, uid(permissionID))
}

// Active is the key of the active permission list.
func (k Keys) Active() string {
	return k.join(nsActive)
}

// UserScope returns the patterns covering everything cached for one user.
func (k Keys) UserScope(userID uint64) []string {
	id := u64(userID)

	return []string{
		k.join(nsUser, id, "*"),
		k.join(nsResource, id, "*"),
		k.join(nsBatch, id, "*"),
	}
}

// AllUsers returns the patterns covering every per-user key.
func (k Keys) AllUsers() []string {
	return []string{k.join(nsUser, "*"), k.join(nsResource, "*"), k.join(nsBatch, "*")}
}

// Namespace returns the pattern covering one namespace.
func (k Keys) Namespace(ns string) string {
	return k.join(ns, "*")
}

// All returns the pattern covering every key of the manager.
func (k Keys) All() string {
	return k.Prefix + ":*"
}
