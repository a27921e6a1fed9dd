package policy

import (
	"context"
	"errors"
	"testing"

	"github.com/teamdesk/teamdesk/internal/directory"
	"github.com/teamdesk/teamdesk/pkg/observability"
)

type mockDirectory struct {
	UserFunc func(ctx context.Context, id string) (*directory.User, error)
}

func (m *mockDirectory) User(ctx context.Context, id string) (*directory.User, error) {
	return m.UserFunc(ctx, id)
}

func TestTenantValidator_CanDeliver(t *testing.T) {
	tenantA := "tenant-a"
	tenantB := "tenant-b"

	tests := []struct {
		name     string
		tenantID *string
		lookup   func(ctx context.Context, id string) (*directory.User, error)
		want     bool
	}{
		{
			name:     "system scope always permits",
			tenantID: nil,
			lookup: func(ctx context.Context, id string) (*directory.User, error) {
				t.Error("system scope must not hit the directory")
				return nil, nil
			},
			want: true,
		},
		{
			name:     "matching tenant permits",
			tenantID: &tenantA,
			lookup: func(ctx context.Context, id string) (*directory.User, error) {
				return &directory.User{ID: id, TenantID: tenantA}, nil
			},
			want: true,
		},
		{
			name:     "tenant mismatch denies",
			tenantID: &tenantA,
			lookup: func(ctx context.Context, id string) (*directory.User, error) {
				return &directory.User{ID: id, TenantID: tenantB}, nil
			},
			want: false,
		},
		{
			name:     "unknown user denies",
			tenantID: &tenantA,
			lookup: func(ctx context.Context, id string) (*directory.User, error) {
				return nil, nil
			},
			want: false,
		},
		{
			name:     "lookup failure denies",
			tenantID: &tenantA,
			lookup: func(ctx context.Context, id string) (*directory.User, error) {
				return nil, errors.New("connection refused")
			},
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := NewTenantValidator(&mockDirectory{UserFunc: tt.lookup}, observability.NewLogger("test"))
			if got := v.CanDeliver(context.Background(), "user-1", tt.tenantID); got != tt.want {
				t.Errorf("CanDeliver = %v, want %v", got, tt.want)
			}
		})
	}
}
