// Package packaging builds deployable artifacts: deterministic file naming
// plus zip archival of a source tree with gitignore-style exclusion rules.
package packaging

import (
	"errors"
	"fmt"
	"time"
)

// PackageType selects the artifact naming convention.
type PackageType string

const (
	TypeCMS      PackageType = "cms"
	TypeCommerce PackageType = "commerce"
	TypeHead     PackageType = "head"
	TypeSQLDB    PackageType = "sqldb"
)

var (
	ErrUnknownPackageType = errors.New("packaging: unknown package type")
	ErrInvalidDBType      = errors.New("packaging: sqldb dbType must be cms or commerce")
)

// NameOptions drives GenerateName. Version defaults to a UTC timestamp;
// Prefix is optional; DBType applies to sqldb packages only.
type NameOptions struct {
	Type    PackageType
	Version string
	Prefix  string
	DBType  string
}

// DefaultVersion returns a sortable, filesystem-safe version derived from
// the current UTC time.
func DefaultVersion() string {
	return time.Now().UTC().Format("20060102150405")
}

// GenerateName derives the artifact file name:
//
//	[prefix.]cms.app.<version>.nupkg
//	[prefix.]commerce.app.<version>.nupkg
//	[prefix.]head.app.<version>.zip
//	[prefix.]<dbType>.sqldb.<version>.bacpac
//
// It is a pure function of its options (given an explicit version).
func GenerateName(opts NameOptions) (string, error) {
	version := opts.Version
	if version == "" {
		version = DefaultVersion()
	}

	var body string
	switch opts.Type {
	case TypeCMS:
		body = fmt.Sprintf("cms.app.%s.nupkg", version)
	case TypeCommerce:
		body = fmt.Sprintf("commerce.app.%s.nupkg", version)
	case TypeHead:
		body = fmt.Sprintf("head.app.%s.zip", version)
	case TypeSQLDB:
		dbType := opts.DBType
		if dbType == "" {
			dbType = string(TypeCMS)
		}
		if dbType != string(TypeCMS) && dbType != string(TypeCommerce) {
			return "", fmt.Errorf("%w: %q", ErrInvalidDBType, opts.DBType)
		}
		body = fmt.Sprintf("%s.sqldb.%s.bacpac", dbType, version)
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownPackageType, opts.Type)
	}

	if opts.Prefix != "" {
		return opts.Prefix + "." + body, nil
	}
	return body, nil
}
