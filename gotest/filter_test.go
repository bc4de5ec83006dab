package gotest

import (
	"testing"

	"github.com/qasego/qasego/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSelector(t *testing.T) {
	names := []string{"TestCheckout", "TestCheckoutGuest", "TestLogin", "TestLogout"}

	tests := []struct {
		name string
		args []string
		want []string
	}{
		{"no flags", []string{"-v", "-count", "1"}, names},
		{"run", []string{"-run", "TestCheckout"}, []string{"TestCheckout", "TestCheckoutGuest"}},
		{"run anchored", []string{"-run=^TestCheckout$"}, []string{"TestCheckout"}},
		{"double dash", []string{"--run", "Login"}, []string{"TestLogin"}},
		{"test prefix", []string{"-test.run=Log"}, []string{"TestLogin", "TestLogout"}},
		{"subtest keeps parent", []string{"-run", "TestLogin/admin"}, []string{"TestLogin"}},
		{"slash in brackets", []string{"-run", "TestLog[/i]n"}, []string{"TestLogin"}},
		{"alternatives", []string{"-run", "TestLogin|TestLogout/x"}, []string{"TestLogin", "TestLogout"}},
		{"skip", []string{"-skip", "Guest"}, []string{"TestCheckout", "TestLogin", "TestLogout"}},
		{"skip subtest keeps parent", []string{"-skip", "TestLogin/admin"}, names},
		{"run and skip", []string{"-run", "Checkout", "-skip", "Guest$"}, []string{"TestCheckout"}},
		{"last wins", []string{"-run", "Login", "-run", "Logout"}, []string{"TestLogout"}},
		{"after args", []string{"-args", "-run", "Login"}, names},
		{"flag value", []string{"-timeout", "run", "-parallel", "2"}, names},
	}

	var items []model.TestItem
	for _, n := range names {
		items = append(items, model.TestItem{NodeID: "example.com/shop." + n, Name: n})
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := NewSelector(tt.args)
			require.NoError(t, err)

			var got []string
			for _, item := range s.Filter(items) {
				got = append(got, item.Name)
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSelector_InvalidPattern(t *testing.T) {
	_, err := NewSelector([]string{"-run", "Test("})
	require.ErrorContains(t, err, "invalid -run")

	_, err = NewSelector([]string{"-skip=["})
	require.ErrorContains(t, err, "invalid -skip")
}

func TestSplitPattern(t *testing.T) {
	assert.Equal(t, [][]string{{"A", "b"}, {"C"}}, splitPattern("A/b|C"))
	assert.Equal(t, [][]string{{"A(/|x)", "y"}}, splitPattern("A(/|x)/y"))
	assert.Equal(t, [][]string{{`A\/b`}}, splitPattern(`A\/b`))
}
