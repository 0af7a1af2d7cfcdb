package packaging

import (
	"errors"
	"testing"
	"time"
)

func TestGenerateName(t *testing.T) {
	tests := []struct {
		name string
		opts NameOptions
		want string
	}{
		{
			name: "cms with prefix",
			opts: NameOptions{Type: TypeCMS, Prefix: "mysite", Version: "1.0.0"},
			want: "mysite.cms.app.1.0.0.nupkg",
		},
		{
			name: "cms without prefix",
			opts: NameOptions{Type: TypeCMS, Version: "1.0.0"},
			want: "cms.app.1.0.0.nupkg",
		},
		{
			name: "commerce",
			opts: NameOptions{Type: TypeCommerce, Version: "2.1.3"},
			want: "commerce.app.2.1.3.nupkg",
		},
		{
			name: "head is a zip",
			opts: NameOptions{Type: TypeHead, Prefix: "shop", Version: "0.9"},
			want: "shop.head.app.0.9.zip",
		},
		{
			name: "sqldb defaults to cms database",
			opts: NameOptions{Type: TypeSQLDB, Version: "20260101"},
			want: "cms.sqldb.20260101.bacpac",
		},
		{
			name: "sqldb commerce database",
			opts: NameOptions{Type: TypeSQLDB, DBType: "commerce", Version: "20260101"},
			want: "commerce.sqldb.20260101.bacpac",
		},
		{
			name: "sqldb with prefix",
			opts: NameOptions{Type: TypeSQLDB, Prefix: "mysite", DBType: "commerce", Version: "1"},
			want: "mysite.commerce.sqldb.1.bacpac",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := GenerateName(tt.opts)
			if err != nil {
				t.Fatalf("GenerateName returned error: %v", err)
			}
			if got != tt.want {
				t.Fatalf("got %q want %q", got, tt.want)
			}
		})
	}
}

func TestGenerateNameRejectsUnknownType(t *testing.T) {
	if _, err := GenerateName(NameOptions{Type: "plugin"}); !errors.Is(err, ErrUnknownPackageType) {
		t.Fatalf("expected ErrUnknownPackageType, got %v", err)
	}
}

func TestGenerateNameRejectsBadDBType(t *testing.T) {
	_, err := GenerateName(NameOptions{Type: TypeSQLDB, DBType: "postgres"})
	if !errors.Is(err, ErrInvalidDBType) {
		t.Fatalf("expected ErrInvalidDBType, got %v", err)
	}
}

func TestDefaultVersionIsSortableAndFilesystemSafe(t *testing.T) {
	v := DefaultVersion()
	if len(v) != 14 {
		t.Fatalf("expected yyyymmddHHMMSS, got %q", v)
	}
	parsed, err := time.Parse("20060102150405", v)
	if err != nil {
		t.Fatalf("default version does not parse: %v", err)
	}
	if time.Since(parsed) > time.Minute {
		t.Fatalf("default version not derived from now: %v", parsed)
	}
	for _, r := range v {
		if r < '0' || r > '9' {
			t.Fatalf("unexpected character %q in version %q", r, v)
		}
	}
}
