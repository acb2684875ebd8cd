package secret

import (
	"errors"
	"testing"
)

func newTestSource(env map[string]string, terminal bool, typed string, readErr error) (*Source, *int) {
	reads := 0
	s := NewSource("CREDITD_JWT_SECRET", "token signing secret")
	s.lookupEnv = func(key string) (string, bool) {
		v, ok := env[key]
		return v, ok
	}
	s.isTerminal = func(int) bool { return terminal }
	s.readSecret = func(int) ([]byte, error) {
		reads++
		return []byte(typed), readErr
	}
	return s, &reads
}

func TestSourcePrefersEnvironment(t *testing.T) {
	s, reads := newTestSource(map[string]string{"CREDITD_JWT_SECRET": " from-env "}, true, "typed", nil)
	got, err := s.Get()
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got != "from-env" || *reads != 0 {
		t.Fatalf("unexpected value %q after %d prompts", got, *reads)
	}
}

func TestSourceRejectsEmptyEnvironment(t *testing.T) {
	s, _ := newTestSource(map[string]string{"CREDITD_JWT_SECRET": "  "}, true, "typed", nil)
	if _, err := s.Get(); err == nil {
		t.Fatalf("expected error for empty env value")
	}
}

func TestSourcePromptsOnce(t *testing.T) {
	s, reads := newTestSource(nil, true, "typed-secret", nil)
	for i := 0; i < 2; i++ {
		got, err := s.Get()
		if err != nil || got != "typed-secret" {
			t.Fatalf("get: %q %v", got, err)
		}
	}
	if *reads != 1 {
		t.Fatalf("expected a single prompt, got %d", *reads)
	}
}

func TestSourceWithoutTerminal(t *testing.T) {
	s, _ := newTestSource(nil, false, "", nil)
	if _, err := s.Get(); err == nil {
		t.Fatalf("expected error without terminal")
	}
}

func TestSourceReadFailure(t *testing.T) {
	s, _ := newTestSource(nil, true, "", errors.New("tty gone"))
	if _, err := s.Get(); err == nil {
		t.Fatalf("expected read error")
	}
}
