package gotest

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestArgs(t *testing.T) {
	got := Args([]string{"-race", "-count=1"}, []string{"./e2e"}, []string{"-test.v"})
	assert.Equal(t, []string{"test", "-json", "-race", "-count=1", "./e2e", "-test.v"}, got)
}

func TestRunnerDecode(t *testing.T) {
	var out bytes.Buffer
	r := NewRunner(zerolog.Nop(), WithOutput(&out, &out))

	stream := strings.Join([]string{
		`not json from TestMain`,
		`{"Action":"start","Package":"example.com/shop/e2e"}`,
		`{"Action":"output","Package":"example.com/shop/e2e","Test":"TestLogin","Output":"=== RUN   TestLogin\n"}`,
		`{"Action":"pass","Package":"example.com/shop/e2e","Test":"TestLogin","Elapsed":0.01}`,
	}, "\n")

	var actions []string
	err := r.decode(strings.NewReader(stream), func(e TestEvent) error {
		actions = append(actions, e.Action)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"start", "output", "pass"}, actions)
	assert.Equal(t, "not json from TestMain\n=== RUN   TestLogin\n", out.String())
}

func TestRunnerDecode_HandlerError(t *testing.T) {
	r := NewRunner(zerolog.Nop(), WithOutput(&bytes.Buffer{}, &bytes.Buffer{}))
	boom := errors.New("boom")

	err := r.decode(strings.NewReader(`{"Action":"start"}`), func(TestEvent) error { return boom })
	require.ErrorIs(t, err, boom)
}

func TestExitCode(t *testing.T) {
	assert.Equal(t, 0, ExitCode(nil))
	assert.Equal(t, 1, ExitCode(errors.New("boom")))
}
