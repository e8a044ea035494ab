package cli

import (
	"bytes"
	"net/http/httptest"
	"testing"

	"github.com/fatih/color"
	"go.viam.com/test"

	"go.viam.com/boarddemo/config"
	"go.viam.com/boarddemo/gate"
	"go.viam.com/boarddemo/logging"
	"go.viam.com/boarddemo/web"
)

func setup(t *testing.T, opts ...gate.Option) (*gate.Gate[uint32], string) {
	t.Helper()
	g := gate.New[uint32](opts...)
	s := web.New(config.NetworkConfig{PostsPerSecond: 100, PostBurst: 100}, g, logging.NewTestLogger(t))
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)
	return g, ts.URL
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	out := &bytes.Buffer{}
	errOut := &bytes.Buffer{}
	err := NewApp(out, errOut).Run(append([]string{"ulpctl"}, args...))
	return out.String(), err
}

func TestStartAction(t *testing.T) {
	g, addr := setup(t)

	out, err := run(t, "--addr", addr, "start", "12")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, out, test.ShouldContainSubstring, "Sent 12 blink cycles")
	test.That(t, g.State(), test.ShouldEqual, gate.Filled)

	_, err = run(t, "--addr", addr, "start")
	test.That(t, err, test.ShouldNotBeNil)
	_, err = run(t, "--addr", addr, "start", "lots")
	test.That(t, err.Error(), test.ShouldContainSubstring, "invalid cycles")
}

func TestStartActionConflict(t *testing.T) {
	_, addr := setup(t, gate.WithPolicy(gate.Reject))

	_, err := run(t, "--addr", addr, "start", "1")
	test.That(t, err, test.ShouldBeNil)
	_, err = run(t, "--addr", addr, "start", "2")
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "409")
	test.That(t, err.Error(), test.ShouldContainSubstring, gate.ErrAlreadySet.Error())
}

func TestStatusAction(t *testing.T) {
	color.NoColor = true
	g, addr := setup(t)
	test.That(t, g.Set(3), test.ShouldBeNil)

	out, err := run(t, "--addr", addr+"/", "status")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, out, test.ShouldContainSubstring, "state:       filled")
	test.That(t, out, test.ShouldContainSubstring, "overwritten: 0")

	out, err = run(t, "--addr", addr, "status", "--json")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, out, test.ShouldContainSubstring, `"state":"filled"`)
}

func TestUnreachable(t *testing.T) {
	_, err := run(t, "--addr", "http://127.0.0.1:1", "status")
	test.That(t, err, test.ShouldNotBeNil)
}
