package peer_test

import (
	"testing"

	"github.com/darendal/powchain/foundation/blockchain/peer"
)

func Test_ChainURL(t *testing.T) {
	type table struct {
		name string
		host string
		exp  string
		fail bool
	}

	tt := []table{
		{name: "host-port", host: "localhost:3000", exp: "http://localhost:3000/blockchain"},
		{name: "url", host: "http://localhost:3000", exp: "http://localhost:3000/blockchain"},
		{name: "trailing-slash", host: "http://localhost:3000/", exp: "http://localhost:3000/blockchain"},
		{name: "full-path", host: "http://localhost:3000/v1/blocks/list", exp: "http://localhost:3000/v1/blocks/list"},
		{name: "no-host", host: "http://", fail: true},
	}

	for _, tst := range tt {
		f := func(t *testing.T) {
			got, err := peer.New(tst.host).ChainURL()
			if tst.fail {
				if err == nil {
					t.Fatalf("Test %s:\tShould fail to build a URL, got %s.", tst.name, got)
				}
				return
			}

			if err != nil {
				t.Fatalf("Test %s:\tShould be able to build a URL: %v", tst.name, err)
			}

			if got != tst.exp {
				t.Logf("Test %s:\tgot: %s", tst.name, got)
				t.Logf("Test %s:\texp: %s", tst.name, tst.exp)
				t.Fatalf("Test %s:\tShould get back the right URL.", tst.name)
			}
		}

		t.Run(tst.name, f)
	}
}

func Test_Match(t *testing.T) {
	p := peer.New("localhost:3000/")

	if !p.Match("localhost:3000") {
		t.Fatalf("Should match the same host.")
	}

	if p.Match("localhost:3001") {
		t.Fatalf("Should not match another host.")
	}
}

func Test_StatusURL(t *testing.T) {
	got, err := peer.New("http://localhost:3000/blockchain").StatusURL()
	if err != nil {
		t.Fatalf("Should be able to build a URL: %v", err)
	}

	exp := "http://localhost:3000/v1/node/status"
	if got != exp {
		t.Logf("got: %s", got)
		t.Logf("exp: %s", exp)
		t.Fatalf("Should replace the path with the status path.")
	}
}
