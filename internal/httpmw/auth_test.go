package httpmw

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/golang-jwt/jwt/v5"

	"github.com/teamdesk/teamdesk/pkg/apikey"
	"github.com/teamdesk/teamdesk/pkg/observability"
)

const testSecret = "test-secret"

func signToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}
	return signed
}

func TestJWTAuth(t *testing.T) {
	tests := []struct {
		name           string
		authorization  string
		expectedStatus int
		expectedUser   string
		expectedTenant string
	}{
		{
			name:           "valid token with tenant",
			authorization:  "Bearer " + signTokenHelper(t, "user-1", "tenant-a"),
			expectedStatus: http.StatusOK,
			expectedUser:   "user-1",
			expectedTenant: "tenant-a",
		},
		{
			name:           "valid token without tenant",
			authorization:  "Bearer " + signTokenHelper(t, "user-2", ""),
			expectedStatus: http.StatusOK,
			expectedUser:   "user-2",
		},
		{
			name:           "missing header",
			authorization:  "",
			expectedStatus: http.StatusUnauthorized,
		},
		{
			name:           "garbage token",
			authorization:  "Bearer not-a-token",
			expectedStatus: http.StatusUnauthorized,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotID *Identity
			inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				gotID, _ = IdentityFrom(r.Context())
				w.WriteHeader(http.StatusOK)
			})
			handler := JWTAuth(testSecret, observability.NewLogger("test"))(inner)

			req := httptest.NewRequest("GET", "/api/v1/notifications", nil)
			if tt.authorization != "" {
				req.Header.Set("Authorization", tt.authorization)
			}
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)

			if w.Code != tt.expectedStatus {
				t.Fatalf("status = %d, want %d", w.Code, tt.expectedStatus)
			}
			if tt.expectedStatus != http.StatusOK {
				return
			}
			if gotID == nil || gotID.UserID != tt.expectedUser {
				t.Errorf("identity = %+v, want user %q", gotID, tt.expectedUser)
			}
			if tt.expectedTenant == "" {
				if gotID.TenantID != nil {
					t.Errorf("tenant = %v, want nil", *gotID.TenantID)
				}
			} else if gotID.TenantID == nil || *gotID.TenantID != tt.expectedTenant {
				t.Errorf("tenant = %v, want %q", gotID.TenantID, tt.expectedTenant)
			}
		})
	}
}

func signTokenHelper(t *testing.T, sub, tenant string) string {
	claims := jwt.MapClaims{"sub": sub, "name": "Test User"}
	if tenant != "" {
		claims["tenant_id"] = tenant
	}
	return signToken(t, claims)
}

func TestJWTAuth_RejectsTokenWithoutSubject(t *testing.T) {
	handler := JWTAuth(testSecret, observability.NewLogger("test"))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("handler must not run without a subject")
	}))
	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, jwt.MapClaims{"name": "No Sub"}))
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", w.Code)
	}
}

func TestServiceKeyAuth(t *testing.T) {
	key, hash, err := apikey.GenerateKey("svc_notify", testSecret)
	if err != nil {
		t.Fatalf("failed to generate key: %v", err)
	}

	tests := []struct {
		name           string
		header         string
		expectedStatus int
	}{
		{"valid key", key, http.StatusOK},
		{"missing key", "", http.StatusUnauthorized},
		{"wrong key", "svc_notify_deadbeef", http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := ServiceKeyAuth(testSecret, []string{hash}, observability.NewLogger("test"))(
				http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
					w.WriteHeader(http.StatusOK)
				}))
			req := httptest.NewRequest("POST", "/internal/v1/dispatch", nil)
			if tt.header != "" {
				req.Header.Set("X-API-Key", tt.header)
			}
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)
			if w.Code != tt.expectedStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.expectedStatus)
			}
		})
	}
}
