package registry

import (
	"testing"
	"time"
)

func TestParseAuthMethod(t *testing.T) {
	for _, valid := range []string{"token", "username", "sso"} {
		if _, err := ParseAuthMethod(valid); err != nil {
			t.Errorf("ParseAuthMethod(%q) unexpected error: %v", valid, err)
		}
	}
	if _, err := ParseAuthMethod("oauth"); err == nil {
		t.Error("expected error for unknown method")
	}
}

func TestProfile_Validate(t *testing.T) {
	base := Profile{
		ID:            "id-1",
		Name:          "prod",
		ServerAddress: "argocd.example.com",
		CreatedAt:     time.Now(),
	}

	tests := []struct {
		name    string
		mutate  func(p *Profile)
		wantErr bool
	}{
		{
			name:   "token without stored token is fine",
			mutate: func(p *Profile) { p.AuthMethod = AuthMethodToken },
		},
		{
			name: "token with stored token",
			mutate: func(p *Profile) {
				p.AuthMethod = AuthMethodToken
				p.APIToken = "tok"
			},
		},
		{
			name: "token with username",
			mutate: func(p *Profile) {
				p.AuthMethod = AuthMethodToken
				p.Username = "admin"
			},
			wantErr: true,
		},
		{
			name: "username auth",
			mutate: func(p *Profile) {
				p.AuthMethod = AuthMethodUsername
				p.Username = "admin"
			},
		},
		{
			name:    "username auth without username",
			mutate:  func(p *Profile) { p.AuthMethod = AuthMethodUsername },
			wantErr: true,
		},
		{
			name: "username auth with token",
			mutate: func(p *Profile) {
				p.AuthMethod = AuthMethodUsername
				p.Username = "admin"
				p.APIToken = "tok"
			},
			wantErr: true,
		},
		{
			name:   "sso",
			mutate: func(p *Profile) { p.AuthMethod = AuthMethodSSO },
		},
		{
			name: "sso with stored credentials",
			mutate: func(p *Profile) {
				p.AuthMethod = AuthMethodSSO
				p.APIToken = "tok"
			},
			wantErr: true,
		},
		{
			name: "missing name",
			mutate: func(p *Profile) {
				p.AuthMethod = AuthMethodSSO
				p.Name = ""
			},
			wantErr: true,
		},
		{
			name: "missing server",
			mutate: func(p *Profile) {
				p.AuthMethod = AuthMethodSSO
				p.ServerAddress = ""
			},
			wantErr: true,
		},
		{
			name:    "unknown method",
			mutate:  func(p *Profile) { p.AuthMethod = "oauth" },
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := base
			tt.mutate(&p)
			err := p.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestProfile_Clone(t *testing.T) {
	now := time.Now()
	p := Profile{ID: "id-1", Name: "prod", LastUsedAt: &now}

	clone := p.Clone()
	later := now.Add(time.Hour)
	*clone.LastUsedAt = later

	if !p.LastUsedAt.Equal(now) {
		t.Error("expected clone to deep-copy the last-used timestamp")
	}
}
