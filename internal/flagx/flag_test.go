package flagx

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFilterArgs(t *testing.T) {
	allowed := []string{"-t", "-s", "-c", "--config"}

	tests := []struct {
		name string
		args []string
		want []string
	}{
		{
			name: "short flag with separate value",
			args: []string{"-t", "postgres://localhost/cards", "-x", "noise"},
			want: []string{"-t", "postgres://localhost/cards"},
		},
		{
			name: "long flag with equals",
			args: []string{"--config=conf.json", "-x", "noise"},
			want: []string{"--config=conf.json"},
		},
		{
			name: "multiple allowed flags, order preserved",
			args: []string{"-s", "s3://bucket", "-t", "sqlite:cards.db", "--other", "x"},
			want: []string{"-s", "s3://bucket", "-t", "sqlite:cards.db"},
		},
		{
			name: "unknown flags and positionals dropped",
			args: []string{"-x", "1", "--y=2", "positional"},
			want: []string{},
		},
		{
			name: "trailing flag without value kept as-is",
			args: []string{"-c"},
			want: []string{"-c"},
		},
		{
			name: "dash-starting token never consumed as a value",
			args: []string{"-c", "--config=alt.json"},
			want: []string{"-c", "--config=alt.json"},
		},
		{
			name: "repeated flag preserved in order",
			args: []string{"-c", "one.json", "-c", "two.json"},
			want: []string{"-c", "one.json", "-c", "two.json"},
		},
		{
			name: "empty args",
			args: []string{},
			want: []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FilterArgs(tt.args, allowed))
		})
	}
}

func TestJsonConfigFlags(t *testing.T) {
	origArgs := os.Args
	t.Cleanup(func() { os.Args = origArgs })

	t.Run("short -c with value", func(t *testing.T) {
		os.Args = []string{"cardkeeper", "-c", "/etc/cardkeeper/conf.json"}
		assert.Equal(t, "/etc/cardkeeper/conf.json", JsonConfigFlags())
	})

	t.Run("long -config with value", func(t *testing.T) {
		os.Args = []string{"cardkeeper", "-config", "/path/long.json"}
		assert.Equal(t, "/path/long.json", JsonConfigFlags())
	})

	t.Run("unknown flags are ignored", func(t *testing.T) {
		os.Args = []string{"cardkeeper", "-x", "1", "-y", "2"}
		assert.Empty(t, JsonConfigFlags())
	})

	t.Run("last value wins", func(t *testing.T) {
		os.Args = []string{"cardkeeper", "-c", "/path/1.json", "-config", "/path/2.json"}
		assert.Equal(t, "/path/2.json", JsonConfigFlags())
	})
}
