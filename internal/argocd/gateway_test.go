package argocd

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
)

// mockRunner records invocations and replays canned results keyed by the
// leading argocd subcommand.
type mockRunner struct {
	lookPathErr error
	results     map[string]Result
	runErr      error
	calls       [][]string
}

func (m *mockRunner) LookPath(file string) (string, error) {
	if m.lookPathErr != nil {
		return "", m.lookPathErr
	}
	return "/usr/bin/" + file, nil
}

func (m *mockRunner) Run(ctx context.Context, name string, args []string, stdin io.Reader) (Result, error) {
	m.calls = append(m.calls, args)
	if m.runErr != nil {
		return Result{ExitCode: 1}, m.runErr
	}
	if res, ok := m.results[strings.Join(args[:min(2, len(args))], " ")]; ok {
		return res, nil
	}
	return Result{}, nil
}

func (m *mockRunner) lastCall() []string {
	if len(m.calls) == 0 {
		return nil
	}
	return m.calls[len(m.calls)-1]
}

func newTestGateway(runner *mockRunner) *Gateway {
	return New("argocd", WithRunner(runner))
}

func TestGateway_CheckCLI(t *testing.T) {
	t.Run("available", func(t *testing.T) {
		runner := &mockRunner{results: map[string]Result{
			"version --client": {Stdout: "argocd: v2.9.3+6eba5be"},
		}}
		if !newTestGateway(runner).CheckCLI(context.Background()) {
			t.Error("expected CLI to be available")
		}
	})

	t.Run("binary not in path", func(t *testing.T) {
		runner := &mockRunner{lookPathErr: errors.New("not found")}
		if newTestGateway(runner).CheckCLI(context.Background()) {
			t.Error("expected CLI to be unavailable")
		}
	})

	t.Run("wrong binary", func(t *testing.T) {
		runner := &mockRunner{results: map[string]Result{
			"version --client": {Stdout: "something else entirely"},
		}}
		if newTestGateway(runner).CheckCLI(context.Background()) {
			t.Error("expected unrecognized version output to fail the check")
		}
	})
}

func TestGateway_Login(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		runner := &mockRunner{}
		g := newTestGateway(runner)
		if !g.Login(context.Background(), "argocd.example.com", "admin", "hunter2", false) {
			t.Error("expected login success")
		}

		call := runner.lastCall()
		want := []string{"login", "argocd.example.com", "--username", "admin", "--password", "hunter2"}
		if strings.Join(call, " ") != strings.Join(want, " ") {
			t.Errorf("unexpected argv: %v", call)
		}
	})

	t.Run("insecure adds flag", func(t *testing.T) {
		runner := &mockRunner{}
		g := newTestGateway(runner)
		g.Login(context.Background(), "argocd.example.com", "admin", "hunter2", true)

		call := runner.lastCall()
		if call[len(call)-1] != "--insecure" {
			t.Errorf("expected --insecure, got argv %v", call)
		}
	})

	t.Run("non-zero exit means failure", func(t *testing.T) {
		runner := &mockRunner{results: map[string]Result{
			"login argocd.example.com": {ExitCode: 1, Stderr: "invalid credentials"},
		}}
		if newTestGateway(runner).Login(context.Background(), "argocd.example.com", "admin", "wrong", false) {
			t.Error("expected login failure")
		}
	})
}

func TestGateway_LoginSSO(t *testing.T) {
	t.Run("verified by follow-up call", func(t *testing.T) {
		runner := &mockRunner{}
		g := newTestGateway(runner)
		if !g.LoginSSO(context.Background(), "argocd.example.com", false) {
			t.Error("expected sso login success")
		}
		if len(runner.calls) != 2 {
			t.Fatalf("expected login plus verification call, got %d calls", len(runner.calls))
		}
		if runner.calls[1][0] != "cluster" {
			t.Errorf("expected cluster list verification, got %v", runner.calls[1])
		}
	})

	t.Run("verification failure fails the login", func(t *testing.T) {
		runner := &mockRunner{results: map[string]Result{
			"cluster list": {ExitCode: 20, Stderr: "no session"},
		}}
		if newTestGateway(runner).LoginSSO(context.Background(), "argocd.example.com", false) {
			t.Error("expected sso login failure when verification fails")
		}
	})
}

func TestGateway_IsAuthenticated(t *testing.T) {
	tests := []struct {
		name   string
		result Result
		want   bool
	}{
		{
			name:   "logged in true",
			result: Result{Stdout: "Logged In: true\nUsername: admin\n"},
			want:   true,
		},
		{
			name:   "logged in false",
			result: Result{Stdout: "Logged In: false\n"},
			want:   false,
		},
		{
			name:   "case insensitive",
			result: Result{Stdout: "logged in: TRUE"},
			want:   true,
		},
		{
			name:   "unparseable output with clean exit defaults to authenticated",
			result: Result{Stdout: "some new output format"},
			want:   true,
		},
		{
			name:   "command failure means unauthenticated",
			result: Result{ExitCode: 1, Stderr: "rpc error: code = Unauthenticated"},
			want:   false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runner := &mockRunner{results: map[string]Result{
				"account get-user-info": tt.result,
			}}
			if got := newTestGateway(runner).IsAuthenticated(context.Background()); got != tt.want {
				t.Errorf("IsAuthenticated() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestGateway_UserInfo(t *testing.T) {
	t.Run("parses identity", func(t *testing.T) {
		runner := &mockRunner{results: map[string]Result{
			"account get-user-info": {Stdout: `{"loggedIn":true,"username":"admin","iss":"argocd","groups":["ops","dev"]}`},
		}}
		info, ok := newTestGateway(runner).UserInfo(context.Background())
		if !ok {
			t.Fatal("expected user info")
		}
		if !info.LoggedIn || info.Username != "admin" || info.Iss != "argocd" {
			t.Errorf("unexpected info: %+v", info)
		}
		if len(info.Groups) != 2 {
			t.Errorf("expected two groups, got %v", info.Groups)
		}
	})

	t.Run("command failure is absent, not an error", func(t *testing.T) {
		runner := &mockRunner{results: map[string]Result{
			"account get-user-info": {ExitCode: 1},
		}}
		if _, ok := newTestGateway(runner).UserInfo(context.Background()); ok {
			t.Error("expected absent user info")
		}
	})

	t.Run("unparseable output is absent", func(t *testing.T) {
		runner := &mockRunner{results: map[string]Result{
			"account get-user-info": {Stdout: "not json"},
		}}
		if _, ok := newTestGateway(runner).UserInfo(context.Background()); ok {
			t.Error("expected absent user info")
		}
	})
}

func TestGateway_ExecuteWithToken(t *testing.T) {
	runner := &mockRunner{}
	g := newTestGateway(runner)

	_, err := g.ExecuteWithToken(context.Background(), []string{"cluster", "list"}, "argocd.example.com", "tok-123", true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	argv := strings.Join(runner.lastCall(), " ")
	want := "cluster list --server argocd.example.com --auth-token tok-123 --insecure"
	if argv != want {
		t.Errorf("unexpected argv: %q", argv)
	}
}

func TestGateway_Errors(t *testing.T) {
	t.Run("non-zero exit surfaces CLIError with stderr", func(t *testing.T) {
		runner := &mockRunner{results: map[string]Result{
			"app list": {ExitCode: 20, Stderr: "rpc error: permission denied"},
		}}
		_, err := newTestGateway(runner).Execute(context.Background(), "app", "list")
		var cliErr *CLIError
		if !errors.As(err, &cliErr) {
			t.Fatalf("expected CLIError, got %v", err)
		}
		if cliErr.ExitCode != 20 {
			t.Errorf("expected exit code 20, got %d", cliErr.ExitCode)
		}
		if !strings.Contains(cliErr.Error(), "permission denied") {
			t.Errorf("expected stderr in message, got %q", cliErr.Error())
		}
	})

	t.Run("secrets are masked in the reported command", func(t *testing.T) {
		runner := &mockRunner{results: map[string]Result{
			"cluster list": {ExitCode: 1, Stderr: "boom"},
		}}
		g := newTestGateway(runner)

		_, err := g.ExecuteWithToken(context.Background(), []string{"cluster", "list"}, "argocd.example.com", "tok-secret", false)
		if err == nil {
			t.Fatal("expected error")
		}
		if strings.Contains(err.Error(), "tok-secret") {
			t.Errorf("token leaked into error: %q", err.Error())
		}
		if !strings.Contains(err.Error(), "[REDACTED]") {
			t.Errorf("expected redaction marker in error: %q", err.Error())
		}
	})
}

func TestGateway_Logout(t *testing.T) {
	t.Run("failure is swallowed", func(t *testing.T) {
		runner := &mockRunner{results: map[string]Result{
			"logout argocd.example.com": {ExitCode: 1, Stderr: "not logged in"},
		}}
		// Must not panic or surface anything.
		newTestGateway(runner).Logout(context.Background(), "argocd.example.com")
	})

	t.Run("server is passed through", func(t *testing.T) {
		runner := &mockRunner{}
		newTestGateway(runner).Logout(context.Background(), "argocd.example.com")

		call := runner.lastCall()
		if len(call) != 2 || call[1] != "argocd.example.com" {
			t.Errorf("unexpected argv: %v", call)
		}
	})
}
