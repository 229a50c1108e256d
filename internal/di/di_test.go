package di_test

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/nouns-dao/nouns-onchain/internal/di"
)

type service struct{ name string }

func TestRegisterToken_LazySingleton(t *testing.T) {
	c := di.NewContainer()
	c.Register("config", "cfg-value")

	var builds atomic.Int32
	tok := di.NewToken[*service]("test:service")
	di.RegisterToken(c, tok, func(sr di.ServiceRegistry) *service {
		builds.Add(1)
		return &service{name: sr.Get("config").(string)}
	})

	if builds.Load() != 0 {
		t.Fatal("factory ran before first resolution")
	}

	var wg sync.WaitGroup
	results := make([]*service, 10)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = di.GetToken(c, tok)
		}(i)
	}
	wg.Wait()

	if builds.Load() != 1 {
		t.Fatalf("factory ran %d times, want 1", builds.Load())
	}
	for _, r := range results {
		if r != results[0] {
			t.Fatal("expected the same instance")
		}
	}
	if results[0].name != "cfg-value" {
		t.Errorf("name = %q", results[0].name)
	}
}

func TestGet_UnknownPanics(t *testing.T) {
	c := di.NewContainer()
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic for unknown service")
		}
	}()
	c.Get("missing")
}

func TestRegisterToken_ReplacesEagerValue(t *testing.T) {
	c := di.NewContainer()
	c.Register("onchain:service", &service{name: "eager"})

	tok := di.NewToken[*service]("onchain:service")
	di.RegisterToken(c, tok, func(di.ServiceRegistry) *service {
		return &service{name: "lazy"}
	})

	if got := di.GetToken(c, tok).name; got != "lazy" {
		t.Errorf("name = %q, want lazy", got)
	}
}

func TestGetToken_WrongTypePanics(t *testing.T) {
	c := di.NewContainer()
	c.Register("config", "not a service")

	defer func() {
		if recover() == nil {
			t.Fatal("expected panic for mistyped service")
		}
	}()
	di.GetToken(c, di.NewToken[*service]("config"))
}
